package monitoring

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"monitee/internal/docker"
	"monitee/internal/events"
	"monitee/internal/metrics"
	"monitee/internal/monitor"
	"monitee/internal/webcheck"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testCheckID = uuid.MustParse("6f1c2a8e-4b7d-4e39-9d2c-0a6c1f5e8b11")

// fakeHost serves one of every entity and counts calls per method.
type fakeHost struct {
	mu    sync.Mutex
	calls map[string]int
	pids  []int32
	fail  map[string]error

	diskTemp *float64
}

func newFakeHost() *fakeHost {
	t := 41.0
	return &fakeHost{calls: map[string]int{}, fail: map[string]error{}, diskTemp: &t}
}

func (f *fakeHost) hit(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
	return f.fail[name]
}

func (f *fakeHost) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeHost) CPUInfo(context.Context) (metrics.CPUInfo, error) {
	return metrics.CPUInfo{Vendor: "AMD", Model: "Ryzen", LogicalProcessorCount: 8}, f.hit("CPUInfo")
}

func (f *fakeHost) CPULoad(context.Context) (metrics.CPULoad, error) {
	return metrics.CPULoad{
		UsagePercentage: 12.5,
		Temperatures:    []float64{50, 54},
		LoadAverages:    metrics.LoadAverages{OneMinute: 0.5, FiveMinutes: 0.25, FifteenMinutes: 0.1},
	}, f.hit("CPULoad")
}

func (f *fakeHost) Uptime(context.Context) (time.Duration, error) {
	return time.Hour, f.hit("Uptime")
}

func (f *fakeHost) NetworkInterfaces(context.Context) ([]metrics.NetworkInterface, error) {
	return []metrics.NetworkInterface{{Name: "eth0", IPv4: []string{"10.0.0.2"}}}, f.hit("NetworkInterfaces")
}

func (f *fakeHost) NetworkInterfaceLoads(context.Context) ([]metrics.NetworkInterfaceLoad, error) {
	return []metrics.NetworkInterfaceLoad{{Name: "eth0", Up: true, SpeedBytesPerSecond: 125_000_000, SendBytesPerSecond: 1024}}, f.hit("NetworkInterfaceLoads")
}

func (f *fakeHost) Connectivity(context.Context) (metrics.Connectivity, error) {
	return metrics.Connectivity{ExternalIP: "203.0.113.7", Connected: true}, f.hit("Connectivity")
}

func (f *fakeHost) Disks(context.Context) ([]metrics.Disk, error) {
	return []metrics.Disk{{Name: "sda", Serial: "S1"}, {Name: "sdb"}}, f.hit("Disks")
}

func (f *fakeHost) DiskLoads(context.Context) ([]metrics.DiskLoad, error) {
	return []metrics.DiskLoad{
		{Name: "sda", ReadBytesPerSecond: 4096, Temperature: f.diskTemp},
		{Name: "sdb"},
	}, f.hit("DiskLoads")
}

func (f *fakeHost) FileSystems(context.Context) ([]metrics.FileSystem, error) {
	return []metrics.FileSystem{{ID: "/", Mount: "/", Type: "ext4"}}, f.hit("FileSystems")
}

func (f *fakeHost) FileSystemLoads(context.Context) ([]metrics.FileSystemLoad, error) {
	return []metrics.FileSystemLoad{{ID: "/", TotalSpaceBytes: 100 << 30, UsableSpaceBytes: 40 << 30}}, f.hit("FileSystemLoads")
}

func (f *fakeHost) MemoryLoad(context.Context) (metrics.MemoryLoad, error) {
	return metrics.MemoryLoad{TotalBytes: 16 << 30, AvailableBytes: 8 << 30, UsedBytes: 8 << 30}, f.hit("MemoryLoad")
}

func (f *fakeHost) Processes(context.Context, metrics.ProcessSort, int) (metrics.ProcessesInfo, error) {
	return metrics.ProcessesInfo{
		MemoryTotalBytes: 16 << 30,
		ProcessCount:     1,
		Processes:        []metrics.Process{{PID: 42, Name: "nginx", CPUPercent: 3, ResidentSetSize: 1 << 20}},
	}, f.hit("Processes")
}

func (f *fakeHost) ProcessByPID(_ context.Context, pid int32) (metrics.Process, bool, error) {
	err := f.hit("ProcessByPID")
	f.mu.Lock()
	f.pids = append(f.pids, pid)
	f.mu.Unlock()
	if pid != 42 {
		return metrics.Process{}, false, err
	}
	return metrics.Process{PID: 42, Name: "nginx", CPUPercent: 3, ResidentSetSize: 1 << 20}, true, err
}

// fakeDocker knows container "abc" with stats and "nostats" without.
type fakeDocker struct {
	calls map[string]int
	ids   []string
}

func newFakeDocker() *fakeDocker { return &fakeDocker{calls: map[string]int{}} }

var fakeContainers = []docker.Container{
	{ID: "abc", Names: []string{"/web"}, Image: "nginx", State: docker.StateRunning},
	{ID: "nostats", Names: []string{"/batch"}, Image: "busybox", State: docker.StateExited},
}

func (f *fakeDocker) Containers(context.Context) ([]docker.Container, error) {
	f.calls["Containers"]++
	return fakeContainers, nil
}

func (f *fakeDocker) ContainersWithIDs(_ context.Context, ids []string) ([]docker.Container, error) {
	f.calls["ContainersWithIDs"]++
	f.ids = append(f.ids, ids...)
	var out []docker.Container
	for _, c := range fakeContainers {
		if contains(ids, c.ID) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeDocker) Container(_ context.Context, id string) (docker.Container, bool, error) {
	f.calls["Container"]++
	c, ok := find(fakeContainers, func(c docker.Container) bool { return c.ID == id })
	return c, ok, nil
}

func (f *fakeDocker) StatsForContainer(_ context.Context, id string) (docker.ContainerMetrics, bool, error) {
	f.calls["StatsForContainer"]++
	if id != "abc" {
		return docker.ContainerMetrics{}, false, nil
	}
	return docker.ContainerMetrics{ID: "abc", CPUPercent: 7, Memory: docker.MemoryUsage{UsageBytes: 64 << 20, LimitBytes: 512 << 20}}, true, nil
}

func (f *fakeDocker) ContainerStats(ctx context.Context) ([]docker.ContainerMetrics, error) {
	f.calls["ContainerStats"]++
	s, _, _ := f.StatsForContainer(ctx, "abc")
	return []docker.ContainerMetrics{s}, nil
}

type fakeWebChecks struct {
	statusCalls int
}

func (f *fakeWebChecks) List(context.Context) ([]webcheck.Check, error) {
	return []webcheck.Check{{ID: testCheckID, URL: "https://example.com"}}, nil
}

func (f *fakeWebChecks) Get(_ context.Context, id uuid.UUID) (webcheck.Check, bool, error) {
	if id != testCheckID {
		return webcheck.Check{}, false, nil
	}
	return webcheck.Check{ID: testCheckID, URL: "https://example.com"}, true, nil
}

func (f *fakeWebChecks) Status(_ context.Context, id uuid.UUID) (webcheck.Status, bool, error) {
	f.statusCalls++
	if id != testCheckID {
		return webcheck.Status{}, false, nil
	}
	return webcheck.Status{CheckID: id, ResponseCode: 200}, true, nil
}

// memLog is an in-memory generic event log.
type memLog struct {
	mu     sync.Mutex
	events []events.Generic
}

func (l *memLog) Add(_ context.Context, e events.Generic) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
	return nil
}

func (l *memLog) Read(context.Context) ([]events.Generic, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]events.Generic(nil), l.events...), nil
}

func (l *memLog) RemoveByID(_ context.Context, id uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, e := range l.events {
		if e.EventID() == id {
			l.events = append(l.events[:i], l.events[i+1:]...)
			return nil
		}
	}
	return errors.New("no such event")
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []events.Event
}

func (n *recordingNotifier) Notify(_ context.Context, e events.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, e)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

func monitorFor(typ monitor.Type) monitor.Monitor {
	m := monitor.Monitor{ID: uuid.New(), Type: typ}
	switch typ.ValueKind() {
	case monitor.Numerical:
		m.Config.Threshold = monitor.NumericalValue(1)
	case monitor.Fractional:
		m.Config.Threshold = monitor.FractionalValue(1)
	case monitor.Conditional:
		m.Config.Threshold = monitor.ConditionalValue(true)
	}
	if !typ.Enumerable() {
		return m
	}
	var id string
	switch typ.Category() {
	case monitor.CategoryFileSystem:
		id = "/"
	case monitor.CategoryDisk:
		id = "sda"
	case monitor.CategoryNetwork:
		id = "eth0"
	case monitor.CategoryProcess:
		id = "42"
	case monitor.CategoryContainer, monitor.CategoryContainerStats:
		id = "abc"
	case monitor.CategoryWebCheck:
		id = testCheckID.String()
	}
	m.Config.MonitoredItemID = &id
	return m
}
