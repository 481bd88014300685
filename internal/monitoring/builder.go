// Package monitoring turns monitors into measurable items, tracks items that
// disappear and decides when a monitor breaches its threshold.
package monitoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"monitee/internal/docker"
	"monitee/internal/metrics"
	"monitee/internal/monitor"
	"monitee/internal/webcheck"
)

var (
	ErrItemNotFound = errors.New("monitored item not found")
	// ErrInconsistentSnapshot means two views of the same entity disagree,
	// e.g. a container is listed but has no stats.
	ErrInconsistentSnapshot = errors.New("inconsistent snapshot")
)

// MetricsSource is the read side of metrics.Cache the builder needs.
type MetricsSource interface {
	CPUInfo(ctx context.Context) (metrics.CPUInfo, error)
	CPULoad(ctx context.Context) (metrics.CPULoad, error)
	Uptime(ctx context.Context) (time.Duration, error)
	NetworkInterfaces(ctx context.Context) ([]metrics.NetworkInterface, error)
	NetworkInterfaceLoads(ctx context.Context) ([]metrics.NetworkInterfaceLoad, error)
	Connectivity(ctx context.Context) (metrics.Connectivity, error)
	Disks(ctx context.Context) ([]metrics.Disk, error)
	DiskLoads(ctx context.Context) ([]metrics.DiskLoad, error)
	FileSystems(ctx context.Context) ([]metrics.FileSystem, error)
	FileSystemLoads(ctx context.Context) ([]metrics.FileSystemLoad, error)
	MemoryLoad(ctx context.Context) (metrics.MemoryLoad, error)
	Processes(ctx context.Context, sort metrics.ProcessSort, limit int) (metrics.ProcessesInfo, error)
	ProcessByPID(ctx context.Context, pid int32) (metrics.Process, bool, error)
}

type ContainerSource interface {
	Containers(ctx context.Context) ([]docker.Container, error)
	ContainersWithIDs(ctx context.Context, ids []string) ([]docker.Container, error)
	Container(ctx context.Context, id string) (docker.Container, bool, error)
	StatsForContainer(ctx context.Context, id string) (docker.ContainerMetrics, bool, error)
	ContainerStats(ctx context.Context) ([]docker.ContainerMetrics, error)
}

type WebCheckSource interface {
	List(ctx context.Context) ([]webcheck.Check, error)
	Get(ctx context.Context, id uuid.UUID) (webcheck.Check, bool, error)
	Status(ctx context.Context, id uuid.UUID) (webcheck.Status, bool, error)
}

// Snapshot holds only the categories some monitor refers to.
type Snapshot struct {
	Load           metrics.SystemLoad        `json:"load"`
	Containers     []docker.Container        `json:"containers"`
	ContainerStats []docker.ContainerMetrics `json:"containerStats"`
	WebChecks      []webcheck.Status         `json:"webChecks"`
	Categories     []monitor.Category        `json:"categories"`

	failed map[monitor.Category]error
}

type Builder struct {
	metrics    MetricsSource
	containers ContainerSource
	webChecks  WebCheckSource
	log        *slog.Logger
}

func NewBuilder(m MetricsSource, containers ContainerSource, webChecks WebCheckSource, logger *slog.Logger) *Builder {
	return &Builder{metrics: m, containers: containers, webChecks: webChecks, log: logger}
}

// BuildSnapshot fetches the categories referenced by monitors and nothing
// else. A failing category is reported in the joined error; the rest of the
// snapshot is still usable.
func (b *Builder) BuildSnapshot(ctx context.Context, monitors []monitor.Monitor) (Snapshot, error) {
	wanted := map[monitor.Category][]string{}
	for _, m := range monitors {
		c := m.Type.Category()
		ids, seen := wanted[c]
		if !seen {
			ids = []string{}
		}
		if id := m.ItemID(); id != "" && !contains(ids, id) {
			ids = append(ids, id)
		}
		wanted[c] = ids
	}

	var snap Snapshot
	var errs []error
	fail := func(c monitor.Category, err error) {
		if snap.failed == nil {
			snap.failed = map[monitor.Category]error{}
		}
		if _, seen := snap.failed[c]; !seen {
			snap.failed[c] = err
		}
		errs = append(errs, fmt.Errorf("%s: %w", c, err))
	}
	listContainers := func(c monitor.Category) {
		ids := append(append([]string{}, wanted[monitor.CategoryContainer]...), wanted[monitor.CategoryContainerStats]...)
		var unique []string
		for _, id := range ids {
			if !contains(unique, id) {
				unique = append(unique, id)
			}
		}
		if len(unique) == 0 {
			return
		}
		list, err := b.containers.ContainersWithIDs(ctx, unique)
		if err != nil {
			fail(c, err)
			return
		}
		snap.Containers = list
	}
	for _, c := range monitor.AllCategories {
		ids, ok := wanted[c]
		if !ok {
			continue
		}
		snap.Categories = append(snap.Categories, c)
		switch c {
		case monitor.CategoryCPU:
			load, err := b.metrics.CPULoad(ctx)
			if err != nil {
				fail(c, err)
				continue
			}
			snap.Load.CPULoad = load
			snap.Load.SystemLoadAverage = load.LoadAverages.OneMinute
			if up, err := b.metrics.Uptime(ctx); err == nil {
				snap.Load.Uptime = up
			} else {
				fail(c, err)
			}
		case monitor.CategoryMemory:
			mem, err := b.metrics.MemoryLoad(ctx)
			if err != nil {
				fail(c, err)
				continue
			}
			snap.Load.Memory = mem
		case monitor.CategoryFileSystem:
			loads, err := b.metrics.FileSystemLoads(ctx)
			if err != nil {
				fail(c, err)
				continue
			}
			snap.Load.FileSystemLoads = loads
		case monitor.CategoryDisk:
			loads, err := b.metrics.DiskLoads(ctx)
			if err != nil {
				fail(c, err)
				continue
			}
			snap.Load.DiskLoads = loads
		case monitor.CategoryNetwork:
			loads, err := b.metrics.NetworkInterfaceLoads(ctx)
			if err != nil {
				fail(c, err)
				continue
			}
			snap.Load.NetworkLoads = loads
		case monitor.CategoryConnectivity:
			conn, err := b.metrics.Connectivity(ctx)
			if err != nil {
				fail(c, err)
				continue
			}
			snap.Load.Connectivity = conn
		case monitor.CategoryProcess:
			for _, id := range ids {
				pid, err := parsePID(id)
				if err != nil {
					continue
				}
				p, found, err := b.metrics.ProcessByPID(ctx, pid)
				if err != nil {
					fail(c, err)
					continue
				}
				if found {
					snap.Load.Processes = append(snap.Load.Processes, p)
				}
			}
		case monitor.CategoryContainer:
			listContainers(c)
		case monitor.CategoryContainerStats:
			if _, listed := wanted[monitor.CategoryContainer]; !listed {
				listContainers(c)
			}
			for _, id := range ids {
				s, found, err := b.containers.StatsForContainer(ctx, id)
				if err != nil {
					fail(c, err)
					continue
				}
				if found {
					snap.ContainerStats = append(snap.ContainerStats, s)
				}
			}
		case monitor.CategoryWebCheck:
			for _, id := range ids {
				checkID, err := uuid.Parse(id)
				if err != nil {
					continue
				}
				st, found, err := b.webChecks.Status(ctx, checkID)
				if err != nil {
					fail(c, err)
					continue
				}
				if found {
					snap.WebChecks = append(snap.WebChecks, st)
				}
			}
		}
	}
	return snap, errors.Join(errs...)
}

// ResolveItem produces the current item a monitor watches. It returns an
// error wrapping ErrItemNotFound when the entity no longer exists.
func (b *Builder) ResolveItem(ctx context.Context, m monitor.Monitor) (item monitor.MonitorableItem, err error) {
	start := time.Now()
	defer func() {
		b.log.Debug("resolved monitored item", "monitor", m.ID, "type", m.Type, "item", m.ItemID(), "took", time.Since(start), "err", err)
	}()

	if !m.Type.Enumerable() {
		items, err := b.ResolveAllOfType(ctx, m.Type)
		if err != nil {
			return monitor.MonitorableItem{}, err
		}
		if len(items) == 0 {
			return monitor.MonitorableItem{}, notFound(m)
		}
		return items[0], nil
	}

	id := m.ItemID()
	switch m.Type {
	case monitor.FileSystemSpace:
		fss, err := b.metrics.FileSystems(ctx)
		if err != nil {
			return monitor.MonitorableItem{}, err
		}
		loads, err := b.metrics.FileSystemLoads(ctx)
		if err != nil {
			return monitor.MonitorableItem{}, err
		}
		fs, ok := find(fss, func(f metrics.FileSystem) bool { return f.ID == id })
		load, loaded := find(loads, func(l metrics.FileSystemLoad) bool { return l.ID == id })
		if !ok || !loaded {
			return monitor.MonitorableItem{}, notFound(m)
		}
		return fileSystemItem(fs, load), nil

	case monitor.DiskReadRate, monitor.DiskWriteRate, monitor.DiskTemperature:
		disks, err := b.metrics.Disks(ctx)
		if err != nil {
			return monitor.MonitorableItem{}, err
		}
		loads, err := b.metrics.DiskLoads(ctx)
		if err != nil {
			return monitor.MonitorableItem{}, err
		}
		d, ok := find(disks, func(d metrics.Disk) bool { return d.Name == id })
		load, loaded := find(loads, func(l metrics.DiskLoad) bool { return l.Name == id })
		if !ok || !loaded {
			return monitor.MonitorableItem{}, notFound(m)
		}
		return diskItem(m.Type, d, load), nil

	case monitor.NetworkUp, monitor.NetworkUploadRate, monitor.NetworkDownloadRate:
		nics, err := b.metrics.NetworkInterfaces(ctx)
		if err != nil {
			return monitor.MonitorableItem{}, err
		}
		loads, err := b.metrics.NetworkInterfaceLoads(ctx)
		if err != nil {
			return monitor.MonitorableItem{}, err
		}
		nic, ok := find(nics, func(n metrics.NetworkInterface) bool { return n.Name == id })
		load, loaded := find(loads, func(l metrics.NetworkInterfaceLoad) bool { return l.Name == id })
		if !ok || !loaded {
			return monitor.MonitorableItem{}, notFound(m)
		}
		return networkItem(m.Type, nic, load), nil

	case monitor.ProcessExists, monitor.ProcessCPULoad, monitor.ProcessMemorySpace:
		pid, err := parsePID(id)
		if err != nil {
			return monitor.MonitorableItem{}, fmt.Errorf("%w: %v", notFound(m), err)
		}
		p, found, err := b.metrics.ProcessByPID(ctx, pid)
		if err != nil {
			return monitor.MonitorableItem{}, err
		}
		if !found {
			return monitor.MonitorableItem{}, notFound(m)
		}
		var total uint64
		if m.Type == monitor.ProcessMemorySpace {
			mem, err := b.metrics.MemoryLoad(ctx)
			if err != nil {
				return monitor.MonitorableItem{}, err
			}
			total = mem.TotalBytes
		}
		return processItem(m.Type, p, total), nil

	case monitor.ContainerRunning:
		c, found, err := b.containers.Container(ctx, id)
		if err != nil {
			return monitor.MonitorableItem{}, err
		}
		if !found {
			return monitor.MonitorableItem{}, notFound(m)
		}
		return containerRunningItem(c), nil

	case monitor.ContainerCPULoad, monitor.ContainerMemorySpace:
		c, found, err := b.containers.Container(ctx, id)
		if err != nil {
			return monitor.MonitorableItem{}, err
		}
		if !found {
			return monitor.MonitorableItem{}, notFound(m)
		}
		s, found, err := b.containers.StatsForContainer(ctx, id)
		if err != nil {
			return monitor.MonitorableItem{}, err
		}
		if !found {
			return monitor.MonitorableItem{}, fmt.Errorf("%w: container %s has no stats", ErrInconsistentSnapshot, id)
		}
		return containerStatsItem(m.Type, c, s), nil

	case monitor.WebserverUp:
		checkID, err := uuid.Parse(id)
		if err != nil {
			return monitor.MonitorableItem{}, fmt.Errorf("%w: %v", notFound(m), err)
		}
		c, found, err := b.webChecks.Get(ctx, checkID)
		if err != nil {
			return monitor.MonitorableItem{}, err
		}
		if !found {
			return monitor.MonitorableItem{}, notFound(m)
		}
		st, found, err := b.webChecks.Status(ctx, checkID)
		if err != nil {
			return monitor.MonitorableItem{}, err
		}
		if !found {
			return monitor.MonitorableItem{}, notFound(m)
		}
		return webCheckItem(c, st), nil
	}
	return monitor.MonitorableItem{}, fmt.Errorf("unsupported monitor type %q", m.Type)
}

// ResolveFromSnapshot produces the item a monitor watches using the entities
// captured in snap. Processes, containers and web check statuses come only
// from the snapshot; host categories are read through the metric cache the
// snapshot just filled.
func (b *Builder) ResolveFromSnapshot(ctx context.Context, snap Snapshot, m monitor.Monitor) (monitor.MonitorableItem, error) {
	if err, ok := snap.failed[m.Type.Category()]; ok {
		return monitor.MonitorableItem{}, fmt.Errorf("%s: %w", m.Type.Category(), err)
	}

	id := m.ItemID()
	switch m.Type {
	case monitor.ProcessExists, monitor.ProcessCPULoad, monitor.ProcessMemorySpace:
		pid, err := parsePID(id)
		if err != nil {
			return monitor.MonitorableItem{}, fmt.Errorf("%w: %v", notFound(m), err)
		}
		p, found := find(snap.Load.Processes, func(p metrics.Process) bool { return p.PID == pid })
		if !found {
			return monitor.MonitorableItem{}, notFound(m)
		}
		total := snap.Load.Memory.TotalBytes
		if m.Type == monitor.ProcessMemorySpace && total == 0 {
			mem, err := b.metrics.MemoryLoad(ctx)
			if err != nil {
				return monitor.MonitorableItem{}, err
			}
			total = mem.TotalBytes
		}
		return processItem(m.Type, p, total), nil

	case monitor.ContainerRunning:
		c, found := find(snap.Containers, func(c docker.Container) bool { return c.ID == id })
		if !found {
			return monitor.MonitorableItem{}, notFound(m)
		}
		return containerRunningItem(c), nil

	case monitor.ContainerCPULoad, monitor.ContainerMemorySpace:
		c, found := find(snap.Containers, func(c docker.Container) bool { return c.ID == id })
		if !found {
			return monitor.MonitorableItem{}, notFound(m)
		}
		s, found := find(snap.ContainerStats, func(s docker.ContainerMetrics) bool { return s.ID == id })
		if !found {
			return monitor.MonitorableItem{}, fmt.Errorf("%w: container %s has no stats", ErrInconsistentSnapshot, id)
		}
		return containerStatsItem(m.Type, c, s), nil

	case monitor.WebserverUp:
		checkID, err := uuid.Parse(id)
		if err != nil {
			return monitor.MonitorableItem{}, fmt.Errorf("%w: %v", notFound(m), err)
		}
		st, found := find(snap.WebChecks, func(s webcheck.Status) bool { return s.CheckID == checkID })
		if !found {
			return monitor.MonitorableItem{}, notFound(m)
		}
		c, found, err := b.webChecks.Get(ctx, checkID)
		if err != nil {
			return monitor.MonitorableItem{}, err
		}
		if !found {
			return monitor.MonitorableItem{}, notFound(m)
		}
		return webCheckItem(c, st), nil
	}
	return b.ResolveItem(ctx, m)
}

// ResolveAllOfType lists every current item of a type. Entities without a
// matching load entry are skipped.
func (b *Builder) ResolveAllOfType(ctx context.Context, typ monitor.Type) ([]monitor.MonitorableItem, error) {
	switch typ {
	case monitor.CPULoad, monitor.CPUTemp, monitor.LoadAverageOneMinute, monitor.LoadAverageFiveMinutes, monitor.LoadAverageFifteenMinutes:
		info, err := b.metrics.CPUInfo(ctx)
		if err != nil {
			return nil, err
		}
		load, err := b.metrics.CPULoad(ctx)
		if err != nil {
			return nil, err
		}
		return []monitor.MonitorableItem{cpuItem(typ, info, load)}, nil

	case monitor.MemorySpace, monitor.MemoryUsed:
		load, err := b.metrics.MemoryLoad(ctx)
		if err != nil {
			return nil, err
		}
		return []monitor.MonitorableItem{memoryItem(typ, load)}, nil

	case monitor.Connectivity, monitor.ExternalIPChanged:
		conn, err := b.metrics.Connectivity(ctx)
		if err != nil {
			return nil, err
		}
		return []monitor.MonitorableItem{connectivityItem(typ, conn)}, nil

	case monitor.FileSystemSpace:
		fss, err := b.metrics.FileSystems(ctx)
		if err != nil {
			return nil, err
		}
		loads, err := b.metrics.FileSystemLoads(ctx)
		if err != nil {
			return nil, err
		}
		var out []monitor.MonitorableItem
		for _, fs := range fss {
			if load, ok := find(loads, func(l metrics.FileSystemLoad) bool { return l.ID == fs.ID }); ok {
				out = append(out, fileSystemItem(fs, load))
			}
		}
		return out, nil

	case monitor.DiskReadRate, monitor.DiskWriteRate, monitor.DiskTemperature:
		disks, err := b.metrics.Disks(ctx)
		if err != nil {
			return nil, err
		}
		loads, err := b.metrics.DiskLoads(ctx)
		if err != nil {
			return nil, err
		}
		var out []monitor.MonitorableItem
		for _, d := range disks {
			load, ok := find(loads, func(l metrics.DiskLoad) bool { return l.Name == d.Name })
			if !ok || (typ == monitor.DiskTemperature && load.Temperature == nil) {
				continue
			}
			out = append(out, diskItem(typ, d, load))
		}
		return out, nil

	case monitor.NetworkUp, monitor.NetworkUploadRate, monitor.NetworkDownloadRate:
		nics, err := b.metrics.NetworkInterfaces(ctx)
		if err != nil {
			return nil, err
		}
		loads, err := b.metrics.NetworkInterfaceLoads(ctx)
		if err != nil {
			return nil, err
		}
		var out []monitor.MonitorableItem
		for _, nic := range nics {
			if load, ok := find(loads, func(l metrics.NetworkInterfaceLoad) bool { return l.Name == nic.Name }); ok {
				out = append(out, networkItem(typ, nic, load))
			}
		}
		return out, nil

	case monitor.ProcessExists, monitor.ProcessCPULoad, monitor.ProcessMemorySpace:
		sort := metrics.SortPID
		switch typ {
		case monitor.ProcessCPULoad:
			sort = metrics.SortCPU
		case monitor.ProcessMemorySpace:
			sort = metrics.SortMemory
		}
		info, err := b.metrics.Processes(ctx, sort, 0)
		if err != nil {
			return nil, err
		}
		out := make([]monitor.MonitorableItem, 0, len(info.Processes))
		for _, p := range info.Processes {
			out = append(out, processItem(typ, p, info.MemoryTotalBytes))
		}
		return out, nil

	case monitor.ContainerRunning:
		list, err := b.containers.Containers(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]monitor.MonitorableItem, 0, len(list))
		for _, c := range list {
			out = append(out, containerRunningItem(c))
		}
		return out, nil

	case monitor.ContainerCPULoad, monitor.ContainerMemorySpace:
		list, err := b.containers.Containers(ctx)
		if err != nil {
			return nil, err
		}
		stats, err := b.containers.ContainerStats(ctx)
		if err != nil {
			return nil, err
		}
		var out []monitor.MonitorableItem
		for _, c := range list {
			if s, ok := find(stats, func(s docker.ContainerMetrics) bool { return s.ID == c.ID }); ok {
				out = append(out, containerStatsItem(typ, c, s))
			}
		}
		return out, nil

	case monitor.WebserverUp:
		checks, err := b.webChecks.List(ctx)
		if err != nil {
			return nil, err
		}
		var out []monitor.MonitorableItem
		for _, c := range checks {
			st, found, err := b.webChecks.Status(ctx, c.ID)
			if err != nil {
				return nil, err
			}
			if found {
				out = append(out, webCheckItem(c, st))
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported monitor type %q", typ)
}

func notFound(m monitor.Monitor) error {
	if id := m.ItemID(); id != "" {
		return fmt.Errorf("%w: %s %q", ErrItemNotFound, m.Type, id)
	}
	return fmt.Errorf("%w: %s", ErrItemNotFound, m.Type)
}

func parsePID(id string) (int32, error) {
	pid, err := strconv.ParseInt(id, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid pid %q", id)
	}
	return int32(pid), nil
}

func find[T any](items []T, match func(T) bool) (T, bool) {
	for _, it := range items {
		if match(it) {
			return it, true
		}
	}
	var zero T
	return zero, false
}

func contains(ids []string, id string) bool {
	_, ok := find(ids, func(s string) bool { return s == id })
	return ok
}
