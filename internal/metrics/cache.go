package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"
)

// TTL is how long each category of readings stays fresh.
type TTL struct {
	CPU         time.Duration
	Network     time.Duration
	Disk        time.Duration
	FileSystem  time.Duration
	Memory      time.Duration
	Processes   time.Duration
	GPU         time.Duration
	Motherboard time.Duration
}

func DefaultTTL() TTL {
	return TTL{
		CPU:         5 * time.Second,
		Network:     5 * time.Second,
		Disk:        5 * time.Second,
		FileSystem:  5 * time.Second,
		Memory:      5 * time.Second,
		Processes:   5 * time.Second,
		GPU:         5 * time.Second,
		Motherboard: 60 * time.Second,
	}
}

type entry struct {
	value   any
	expires time.Time
}

// Cache memoizes every Provider read for its category TTL. It is safe for
// concurrent use; refreshes of one key run at most once at a time and
// concurrent readers of an expired key share the result.
type Cache struct {
	provider Provider
	ttl      TTL
	now      func() time.Time

	mu      sync.RWMutex
	entries map[string]entry
	group   singleflight.Group

	lookups metric.Int64Counter
}

var _ Provider = (*Cache)(nil)

func NewCache(p Provider, ttl TTL) *Cache {
	lookups, err := otel.Meter("monitee/metrics").Int64Counter(
		"monitee.metrics.cache",
		metric.WithDescription("Metric cache lookups by key and result"),
	)
	if err != nil {
		otel.Handle(err)
	}
	return &Cache{provider: p, ttl: ttl, now: time.Now, entries: map[string]entry{}, lookups: lookups}
}

func (c *Cache) lookup(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || !c.now().Before(e.expires) {
		return nil, false
	}
	return e.value, true
}

func (c *Cache) store(key string, v any, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = entry{value: v, expires: c.now().Add(ttl)}
	c.mu.Unlock()
}

func (c *Cache) count(ctx context.Context, key, result string) {
	if c.lookups == nil {
		return
	}
	c.lookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("key", key),
		attribute.String("result", result),
	))
}

// refreshTimeout bounds a shared refresh. The refresh ignores cancellation of
// whichever caller started it; each caller stops waiting on its own context.
const refreshTimeout = 30 * time.Second

func cached[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, fetch func(context.Context) (T, error)) (T, error) {
	var zero T
	if v, ok := c.lookup(key); ok {
		c.count(ctx, key, "hit")
		return v.(T), nil
	}
	c.count(ctx, key, "miss")
	ch := c.group.DoChan(key, func() (any, error) {
		if v, ok := c.lookup(key); ok {
			return v, nil
		}
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		fresh, err := fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		c.store(key, fresh, ttl)
		return fresh, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, fmt.Errorf("%s: %w", key, res.Err)
		}
		return res.Val.(T), nil
	case <-ctx.Done():
		return zero, fmt.Errorf("%s: %w", key, ctx.Err())
	}
}

func (c *Cache) Initialize(ctx context.Context) error { return c.provider.Initialize(ctx) }

func (c *Cache) CPUInfo(ctx context.Context) (CPUInfo, error) {
	return cached(ctx, c, "cpu.info", c.ttl.CPU, c.provider.CPUInfo)
}

func (c *Cache) CPULoad(ctx context.Context) (CPULoad, error) {
	return cached(ctx, c, "cpu.load", c.ttl.CPU, c.provider.CPULoad)
}

func (c *Cache) Uptime(ctx context.Context) (time.Duration, error) {
	return cached(ctx, c, "cpu.uptime", c.ttl.CPU, c.provider.Uptime)
}

func (c *Cache) NetworkInterfaces(ctx context.Context) ([]NetworkInterface, error) {
	return cached(ctx, c, "network.interfaces", c.ttl.Network, c.provider.NetworkInterfaces)
}

func (c *Cache) NetworkInterfaceLoads(ctx context.Context) ([]NetworkInterfaceLoad, error) {
	return cached(ctx, c, "network.loads", c.ttl.Network, c.provider.NetworkInterfaceLoads)
}

func (c *Cache) Connectivity(ctx context.Context) (Connectivity, error) {
	return cached(ctx, c, "network.connectivity", c.ttl.Network, c.provider.Connectivity)
}

func (c *Cache) Disks(ctx context.Context) ([]Disk, error) {
	return cached(ctx, c, "disk.disks", c.ttl.Disk, c.provider.Disks)
}

func (c *Cache) DiskLoads(ctx context.Context) ([]DiskLoad, error) {
	return cached(ctx, c, "disk.loads", c.ttl.Disk, c.provider.DiskLoads)
}

func (c *Cache) FileSystems(ctx context.Context) ([]FileSystem, error) {
	return cached(ctx, c, "filesystem.filesystems", c.ttl.FileSystem, c.provider.FileSystems)
}

func (c *Cache) FileSystemLoads(ctx context.Context) ([]FileSystemLoad, error) {
	return cached(ctx, c, "filesystem.loads", c.ttl.FileSystem, c.provider.FileSystemLoads)
}

func (c *Cache) MemoryInfo(ctx context.Context) (MemoryInfo, error) {
	return cached(ctx, c, "memory.info", c.ttl.Memory, c.provider.MemoryInfo)
}

func (c *Cache) MemoryLoad(ctx context.Context) (MemoryLoad, error) {
	return cached(ctx, c, "memory.load", c.ttl.Memory, c.provider.MemoryLoad)
}

func (c *Cache) Processes(ctx context.Context, sort ProcessSort, limit int) (ProcessesInfo, error) {
	key := fmt.Sprintf("processes.%s.%d", sort, limit)
	return cached(ctx, c, key, c.ttl.Processes, func(ctx context.Context) (ProcessesInfo, error) {
		return c.provider.Processes(ctx, sort, limit)
	})
}

type processLookup struct {
	process Process
	found   bool
}

func (c *Cache) ProcessByPID(ctx context.Context, pid int32) (Process, bool, error) {
	key := fmt.Sprintf("process.%d", pid)
	r, err := cached(ctx, c, key, c.ttl.Processes, func(ctx context.Context) (processLookup, error) {
		p, found, err := c.provider.ProcessByPID(ctx, pid)
		return processLookup{process: p, found: found}, err
	})
	return r.process, r.found, err
}

func (c *Cache) GPUs(ctx context.Context) ([]GPU, error) {
	return cached(ctx, c, "gpu.gpus", c.ttl.GPU, c.provider.GPUs)
}

func (c *Cache) GPULoads(ctx context.Context) ([]GPULoad, error) {
	return cached(ctx, c, "gpu.loads", c.ttl.GPU, c.provider.GPULoads)
}

func (c *Cache) Motherboard(ctx context.Context) (Motherboard, error) {
	return cached(ctx, c, "motherboard.info", c.ttl.Motherboard, c.provider.Motherboard)
}

func (c *Cache) MotherboardHealth(ctx context.Context) ([]HealthData, error) {
	return cached(ctx, c, "motherboard.health", c.ttl.Motherboard, c.provider.MotherboardHealth)
}

func (c *Cache) HostName(ctx context.Context) (string, error) {
	return cached(ctx, c, "system.hostname", c.ttl.Motherboard, c.provider.HostName)
}

func (c *Cache) OperatingSystem(ctx context.Context) (OperatingSystem, error) {
	return cached(ctx, c, "system.os", c.ttl.Motherboard, c.provider.OperatingSystem)
}

// SystemLoad assembles every load reading from the cached accessors.
func (c *Cache) SystemLoad(ctx context.Context, sort ProcessSort, limit int) (SystemLoad, error) {
	var (
		out SystemLoad
		err error
	)
	if out.Uptime, err = c.Uptime(ctx); err != nil {
		return SystemLoad{}, err
	}
	if out.CPULoad, err = c.CPULoad(ctx); err != nil {
		return SystemLoad{}, err
	}
	out.SystemLoadAverage = out.CPULoad.SystemLoadAverage
	if out.NetworkLoads, err = c.NetworkInterfaceLoads(ctx); err != nil {
		return SystemLoad{}, err
	}
	if out.Connectivity, err = c.Connectivity(ctx); err != nil {
		return SystemLoad{}, err
	}
	if out.DiskLoads, err = c.DiskLoads(ctx); err != nil {
		return SystemLoad{}, err
	}
	if out.FileSystemLoads, err = c.FileSystemLoads(ctx); err != nil {
		return SystemLoad{}, err
	}
	if out.Memory, err = c.MemoryLoad(ctx); err != nil {
		return SystemLoad{}, err
	}
	processes, err := c.Processes(ctx, sort, limit)
	if err != nil {
		return SystemLoad{}, err
	}
	out.Processes = processes.Processes
	if out.GPULoads, err = c.GPULoads(ctx); err != nil {
		return SystemLoad{}, err
	}
	if out.MotherboardHealth, err = c.MotherboardHealth(ctx); err != nil {
		return SystemLoad{}, err
	}
	return out, nil
}

// SystemInfo assembles the static host description from the cached accessors.
func (c *Cache) SystemInfo(ctx context.Context) (SystemInfo, error) {
	var (
		out SystemInfo
		err error
	)
	if out.HostName, err = c.HostName(ctx); err != nil {
		return SystemInfo{}, err
	}
	if out.OperatingSystem, err = c.OperatingSystem(ctx); err != nil {
		return SystemInfo{}, err
	}
	if out.CPUInfo, err = c.CPUInfo(ctx); err != nil {
		return SystemInfo{}, err
	}
	if out.Motherboard, err = c.Motherboard(ctx); err != nil {
		return SystemInfo{}, err
	}
	if out.Memory, err = c.MemoryInfo(ctx); err != nil {
		return SystemInfo{}, err
	}
	if out.Disks, err = c.Disks(ctx); err != nil {
		return SystemInfo{}, err
	}
	if out.FileSystems, err = c.FileSystems(ctx); err != nil {
		return SystemInfo{}, err
	}
	if out.NetworkInterfaces, err = c.NetworkInterfaces(ctx); err != nil {
		return SystemInfo{}, err
	}
	if out.GPUs, err = c.GPUs(ctx); err != nil {
		return SystemInfo{}, err
	}
	return out, nil
}
