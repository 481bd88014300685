package metrics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	psnet "github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
)

const defaultExternalIPURL = "https://api.ipify.org"

// Host reads telemetry from the local machine through gopsutil, with a few
// Linux /sys lookups for what gopsutil does not expose.
type Host struct {
	sensors       DiskSensors
	log           *slog.Logger
	sysRoot       string
	externalIPURL string
	HTTP          *http.Client

	diskRates *rateMeter
	nicRates  *rateMeter
}

var _ Provider = (*Host)(nil)

func NewHost(sensors DiskSensors, logger *slog.Logger) *Host {
	return &Host{
		sensors:       sensors,
		log:           logger,
		sysRoot:       "/sys",
		externalIPURL: defaultExternalIPURL,
		HTTP:          &http.Client{Timeout: 5 * time.Second},
		diskRates:     newRateMeter(),
		nicRates:      newRateMeter(),
	}
}

func (h *Host) Initialize(ctx context.Context) error {
	if _, err := h.DiskLoads(ctx); err != nil {
		return fmt.Errorf("prime disk counters: %w", err)
	}
	if _, err := h.NetworkInterfaceLoads(ctx); err != nil {
		return fmt.Errorf("prime network counters: %w", err)
	}
	return nil
}

func (h *Host) CPUInfo(ctx context.Context) (CPUInfo, error) {
	infos, err := cpu.InfoWithContext(ctx)
	if err != nil {
		return CPUInfo{}, err
	}
	logical, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return CPUInfo{}, err
	}
	physical, _ := cpu.CountsWithContext(ctx, false)
	out := CPUInfo{LogicalProcessorCount: logical, PhysicalProcessorCount: physical}
	if len(infos) > 0 {
		out.Name = infos[0].ModelName
		out.Model = infos[0].Model
		out.Vendor = infos[0].VendorID
	}
	return out, nil
}

func (h *Host) CPULoad(ctx context.Context) (CPULoad, error) {
	total, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return CPULoad{}, err
	}
	cores, err := cpu.PercentWithContext(ctx, 0, true)
	if err != nil {
		return CPULoad{}, err
	}
	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		return CPULoad{}, err
	}
	out := CPULoad{
		CoreLoads:         cores,
		SystemLoadAverage: avg.Load1,
		LoadAverages:      LoadAverages{OneMinute: avg.Load1, FiveMinutes: avg.Load5, FifteenMinutes: avg.Load15},
	}
	if len(total) > 0 {
		out.UsagePercentage = total[0]
	}
	temps, _ := h.temperatures(ctx)
	for _, t := range temps {
		if isCPUSensor(t.SensorKey) && t.Temperature > 0 {
			out.Temperatures = append(out.Temperatures, t.Temperature)
		}
	}
	return out, nil
}

func isCPUSensor(key string) bool {
	key = strings.ToLower(key)
	for _, prefix := range []string{"coretemp", "k10temp", "zenpower", "cpu"} {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

// temperatures tolerates partial sensor failures, which gopsutil reports as
// warnings alongside the readings it did get.
func (h *Host) temperatures(ctx context.Context) ([]host.TemperatureStat, error) {
	temps, err := host.SensorsTemperaturesWithContext(ctx)
	if err != nil && len(temps) == 0 {
		return nil, err
	}
	return temps, nil
}

func (h *Host) Uptime(ctx context.Context) (time.Duration, error) {
	secs, err := host.UptimeWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return time.Duration(secs) * time.Second, nil
}

func (h *Host) NetworkInterfaces(ctx context.Context) ([]NetworkInterface, error) {
	ifaces, err := psnet.InterfacesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]NetworkInterface, 0, len(ifaces))
	for _, i := range ifaces {
		nic := NetworkInterface{Name: i.Name, MAC: i.HardwareAddr, Virtual: h.isVirtualNIC(i.Name)}
		for _, a := range i.Addrs {
			ip, _, _ := strings.Cut(a.Addr, "/")
			if strings.Contains(ip, ":") {
				nic.IPv6 = append(nic.IPv6, ip)
			} else {
				nic.IPv4 = append(nic.IPv4, ip)
			}
		}
		out = append(out, nic)
	}
	return out, nil
}

func (h *Host) isVirtualNIC(name string) bool {
	if runtime.GOOS != "linux" {
		return false
	}
	_, err := os.Stat(filepath.Join(h.sysRoot, "devices", "virtual", "net", name))
	return err == nil
}

func (h *Host) NetworkInterfaceLoads(ctx context.Context) ([]NetworkInterfaceLoad, error) {
	ifaces, err := psnet.InterfacesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	up := make(map[string]bool, len(ifaces))
	for _, i := range ifaces {
		for _, f := range i.Flags {
			if f == "up" {
				up[i.Name] = true
			}
		}
	}
	counters, err := psnet.IOCountersWithContext(ctx, true)
	if err != nil {
		return nil, err
	}
	out := make([]NetworkInterfaceLoad, 0, len(counters))
	for _, c := range counters {
		rx, tx := h.nicRates.rates(c.Name, c.BytesRecv, c.BytesSent)
		out = append(out, NetworkInterfaceLoad{
			Name:                  c.Name,
			Up:                    up[c.Name],
			SpeedBytesPerSecond:   h.nicSpeed(c.Name),
			BytesReceived:         c.BytesRecv,
			BytesSent:             c.BytesSent,
			ReceiveBytesPerSecond: rx,
			SendBytesPerSecond:    tx,
		})
	}
	return out, nil
}

// nicSpeed reads the negotiated link speed (Mbit/s) and converts it to bytes.
func (h *Host) nicSpeed(name string) uint64 {
	raw, ok := h.readSys("class", "net", name, "speed")
	if !ok {
		return 0
	}
	mbps, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || mbps <= 0 {
		return 0
	}
	return uint64(mbps) * 1000 * 1000 / 8
}

func (h *Host) Connectivity(ctx context.Context) (Connectivity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.externalIPURL, nil)
	if err != nil {
		return Connectivity{}, err
	}
	res, err := h.HTTP.Do(req)
	if err != nil {
		h.log.Debug("connectivity check failed", "err", err)
		return Connectivity{Connected: false}, nil
	}
	defer res.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(res.Body, 256))
	if res.StatusCode != http.StatusOK {
		return Connectivity{Connected: false}, nil
	}
	return Connectivity{Connected: true, ExternalIP: strings.TrimSpace(string(body))}, nil
}

func (h *Host) Disks(ctx context.Context) ([]Disk, error) {
	counters, err := disk.IOCountersWithContext(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Disk, 0, len(counters))
	for name, c := range counters {
		if !h.isWholeDisk(name) {
			continue
		}
		d := Disk{Name: name, Serial: c.SerialNumber}
		if d.Serial == "" {
			d.Serial, _ = disk.SerialNumberWithContext(ctx, "/dev/"+name)
		}
		d.Model, _ = h.readSys("block", name, "device", "model")
		if sectors, ok := h.readSys("block", name, "size"); ok {
			n, _ := strconv.ParseUint(sectors, 10, 64)
			d.Size = n * 512
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// isWholeDisk filters partitions out of the per-device counters on Linux.
func (h *Host) isWholeDisk(name string) bool {
	if runtime.GOOS != "linux" {
		return true
	}
	_, err := os.Stat(filepath.Join(h.sysRoot, "block", name))
	return err == nil
}

func (h *Host) DiskLoads(ctx context.Context) ([]DiskLoad, error) {
	counters, err := disk.IOCountersWithContext(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]DiskLoad, 0, len(counters))
	for name, c := range counters {
		if !h.isWholeDisk(name) {
			continue
		}
		r, w := h.diskRates.rates(name, c.ReadBytes, c.WriteBytes)
		dl := DiskLoad{
			Name:                name,
			ReadBytes:           c.ReadBytes,
			WriteBytes:          c.WriteBytes,
			ReadBytesPerSecond:  r,
			WriteBytesPerSecond: w,
		}
		if t, ok := h.sensors.Temperature(ctx, name); ok {
			dl.Temperature = &t
		}
		out = append(out, dl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (h *Host) FileSystems(ctx context.Context) ([]FileSystem, error) {
	parts, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return nil, err
	}
	out := make([]FileSystem, 0, len(parts))
	for _, p := range parts {
		out = append(out, FileSystem{
			ID:          p.Mountpoint,
			Mount:       p.Mountpoint,
			Description: fmt.Sprintf("%s (%s)", p.Device, p.Fstype),
			Type:        p.Fstype,
		})
	}
	return out, nil
}

func (h *Host) FileSystemLoads(ctx context.Context) ([]FileSystemLoad, error) {
	parts, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return nil, err
	}
	out := make([]FileSystemLoad, 0, len(parts))
	for _, p := range parts {
		u, err := disk.UsageWithContext(ctx, p.Mountpoint)
		if err != nil {
			h.log.Debug("filesystem usage", "mount", p.Mountpoint, "err", err)
			continue
		}
		out = append(out, FileSystemLoad{
			ID:               p.Mountpoint,
			TotalSpaceBytes:  u.Total,
			UsableSpaceBytes: u.Free,
			FreeSpaceBytes:   u.Total - u.Used,
		})
	}
	return out, nil
}

func (h *Host) MemoryInfo(ctx context.Context) (MemoryInfo, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return MemoryInfo{}, err
	}
	out := MemoryInfo{TotalBytes: vm.Total}
	if swap, err := mem.SwapMemoryWithContext(ctx); err == nil {
		out.SwapTotalBytes = swap.Total
	}
	return out, nil
}

func (h *Host) MemoryLoad(ctx context.Context) (MemoryLoad, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return MemoryLoad{}, err
	}
	out := MemoryLoad{
		TotalBytes:     vm.Total,
		AvailableBytes: vm.Available,
		UsedBytes:      vm.Total - vm.Available,
		UsedPercent:    vm.UsedPercent,
	}
	if swap, err := mem.SwapMemoryWithContext(ctx); err == nil {
		out.SwapUsedBytes = swap.Used
	}
	return out, nil
}

func (h *Host) Processes(ctx context.Context, by ProcessSort, limit int) (ProcessesInfo, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return ProcessesInfo{}, err
	}
	out := make([]Process, 0, len(procs))
	for _, p := range procs {
		if proc, ok := h.describe(ctx, p); ok {
			out = append(out, proc)
		}
	}
	sortProcesses(out, by)
	count := len(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return ProcessesInfo{}, err
	}
	return ProcessesInfo{MemoryTotalBytes: vm.Total, ProcessCount: count, Processes: out}, nil
}

func sortProcesses(ps []Process, by ProcessSort) {
	var less func(a, b Process) bool
	switch by {
	case SortCPU:
		less = func(a, b Process) bool { return a.CPUPercent > b.CPUPercent }
	case SortPID:
		less = func(a, b Process) bool { return a.PID < b.PID }
	case SortName:
		less = func(a, b Process) bool { return a.Name < b.Name }
	default:
		less = func(a, b Process) bool { return a.ResidentSetSize > b.ResidentSetSize }
	}
	sort.SliceStable(ps, func(i, j int) bool { return less(ps[i], ps[j]) })
}

func (h *Host) ProcessByPID(ctx context.Context, pid int32) (Process, bool, error) {
	exists, err := process.PidExistsWithContext(ctx, pid)
	if err != nil {
		return Process{}, false, err
	}
	if !exists {
		return Process{}, false, nil
	}
	p, err := process.NewProcessWithContext(ctx, pid)
	if errors.Is(err, process.ErrorProcessNotRunning) {
		return Process{}, false, nil
	}
	if err != nil {
		return Process{}, false, err
	}
	proc, ok := h.describe(ctx, p)
	return proc, ok, nil
}

// describe returns ok=false when the process exited while being read.
func (h *Host) describe(ctx context.Context, p *process.Process) (Process, bool) {
	name, err := p.NameWithContext(ctx)
	if err != nil {
		return Process{}, false
	}
	out := Process{PID: p.Pid, Name: name}
	out.Path, _ = p.ExeWithContext(ctx)
	out.CommandLine, _ = p.CmdlineWithContext(ctx)
	out.User, _ = p.UsernameWithContext(ctx)
	if status, err := p.StatusWithContext(ctx); err == nil && len(status) > 0 {
		out.State = status[0]
	}
	out.CPUPercent, _ = p.CPUPercentWithContext(ctx)
	if mi, err := p.MemoryInfoWithContext(ctx); err == nil && mi != nil {
		out.ResidentSetSize = mi.RSS
		out.VirtualSize = mi.VMS
	}
	out.StartTime, _ = p.CreateTimeWithContext(ctx)
	return out, true
}

// GPUs is empty: gopsutil has no GPU support.
func (h *Host) GPUs(context.Context) ([]GPU, error) { return []GPU{}, nil }

func (h *Host) GPULoads(context.Context) ([]GPULoad, error) { return []GPULoad{}, nil }

func (h *Host) Motherboard(context.Context) (Motherboard, error) {
	vendor, _ := h.readSys("devices", "virtual", "dmi", "id", "board_vendor")
	name, _ := h.readSys("devices", "virtual", "dmi", "id", "board_name")
	return Motherboard{Manufacturer: vendor, Model: name}, nil
}

func (h *Host) MotherboardHealth(ctx context.Context) ([]HealthData, error) {
	temps, err := h.temperatures(ctx)
	if err != nil {
		h.log.Debug("read sensors", "err", err)
		return []HealthData{}, nil
	}
	out := make([]HealthData, 0, len(temps))
	for _, t := range temps {
		out = append(out, HealthData{Description: t.SensorKey, Value: t.Temperature})
	}
	return out, nil
}

func (h *Host) HostName(context.Context) (string, error) { return os.Hostname() }

func (h *Host) OperatingSystem(ctx context.Context) (OperatingSystem, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return OperatingSystem{}, err
	}
	return OperatingSystem{
		Family:   info.PlatformFamily,
		Platform: info.Platform,
		Version:  info.PlatformVersion,
		Kernel:   info.KernelVersion,
		Arch:     info.KernelArch,
	}, nil
}

func (h *Host) readSys(parts ...string) (string, bool) {
	b, err := os.ReadFile(filepath.Join(append([]string{h.sysRoot}, parts...)...))
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(b)), true
}

type rateSample struct {
	a, b uint64
	at   time.Time
}

// rateMeter turns monotonically increasing byte counters into per-second
// rates using the previous reading of the same key.
type rateMeter struct {
	mu   sync.Mutex
	last map[string]rateSample
	now  func() time.Time
}

func newRateMeter() *rateMeter {
	return &rateMeter{last: map[string]rateSample{}, now: time.Now}
}

func (r *rateMeter) rates(key string, a, b uint64) (uint64, uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	prev, ok := r.last[key]
	r.last[key] = rateSample{a: a, b: b, at: now}
	if !ok {
		return 0, 0
	}
	elapsed := now.Sub(prev.at).Seconds()
	if elapsed <= 0 {
		return 0, 0
	}
	return perSecond(prev.a, a, elapsed), perSecond(prev.b, b, elapsed)
}

func perSecond(prev, cur uint64, elapsed float64) uint64 {
	if cur < prev {
		return 0
	}
	return uint64(float64(cur-prev) / elapsed)
}
