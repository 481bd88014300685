package docker

import (
	"strings"
	"time"
)

type State string

const (
	StateCreated    State = "created"
	StateRunning    State = "running"
	StatePaused     State = "paused"
	StateRestarting State = "restarting"
	StateRemoving   State = "removing"
	StateExited     State = "exited"
	StateDead       State = "dead"
	StateUnknown    State = "unknown"
)

type Container struct {
	ID      string            `json:"id"`
	Names   []string          `json:"names"`
	Image   string            `json:"image"`
	State   State             `json:"state"`
	Status  string            `json:"status"`
	Labels  map[string]string `json:"labels,omitempty"`
	Created time.Time         `json:"created"`
}

// DisplayName joins the container names without their leading slash.
func (c Container) DisplayName() string {
	names := make([]string, 0, len(c.Names))
	for _, n := range c.Names {
		names = append(names, strings.TrimPrefix(n, "/"))
	}
	return strings.Join(names, ", ")
}

type MemoryUsage struct {
	UsageBytes uint64 `json:"usageBytes"`
	LimitBytes uint64 `json:"limitBytes"`
}

type ContainerMetrics struct {
	ID              string      `json:"id"`
	CPUPercent      float64     `json:"cpuPercent"`
	Memory          MemoryUsage `json:"memory"`
	NetRXBytes      uint64      `json:"netRxBytes"`
	NetTXBytes      uint64      `json:"netTxBytes"`
	BlockReadBytes  uint64      `json:"blockReadBytes"`
	BlockWriteBytes uint64      `json:"blockWriteBytes"`
}

func NormalizeContainer(s ContainerSummary) Container {
	state := State(strings.ToLower(s.State))
	switch state {
	case StateCreated, StateRunning, StatePaused, StateRestarting, StateRemoving, StateExited, StateDead:
	default:
		state = StateUnknown
	}
	return Container{
		ID:      s.ID,
		Names:   s.Names,
		Image:   s.Image,
		State:   state,
		Status:  s.Status,
		Labels:  s.Labels,
		Created: time.Unix(s.Created, 0).UTC(),
	}
}

func NormalizeStats(id string, s Stats) ContainerMetrics {
	var cpuPct float64
	sysDelta := float64(s.CPUStats.SystemCPUUsage) - float64(s.PreCPUStats.SystemCPUUsage)
	cpuDelta := float64(s.CPUStats.CPUUsage.TotalUsage) - float64(s.PreCPUStats.CPUUsage.TotalUsage)
	cpus := float64(s.CPUStats.OnlineCPUs)
	if cpus == 0 {
		cpus = float64(len(s.CPUStats.CPUUsage.PercpuUsage))
		if cpus == 0 {
			cpus = 1
		}
	}
	if sysDelta > 0 && cpuDelta >= 0 {
		cpuPct = (cpuDelta / sysDelta) * cpus * 100
	}

	out := ContainerMetrics{
		ID:         id,
		CPUPercent: cpuPct,
		Memory:     MemoryUsage{UsageBytes: s.MemoryStats.Usage, LimitBytes: s.MemoryStats.Limit},
	}
	for _, n := range s.Networks {
		out.NetRXBytes += n.RxBytes
		out.NetTXBytes += n.TxBytes
	}
	for _, io := range s.BlkioStats.IoServiceBytesRecursive {
		switch strings.ToLower(io.Op) {
		case "read":
			out.BlockReadBytes += io.Value
		case "write":
			out.BlockWriteBytes += io.Value
		}
	}
	return out
}
