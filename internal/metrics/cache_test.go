package metrics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingProvider struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]error
	delay time.Duration

	diskLoads []DiskLoad
	cpuLoad   CPULoad
}

func newCountingProvider() *countingProvider {
	return &countingProvider{calls: map[string]int{}, fail: map[string]error{}}
}

func (p *countingProvider) hit(name string) error {
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[name]++
	return p.fail[name]
}

func (p *countingProvider) count(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[name]
}

func (p *countingProvider) Initialize(context.Context) error { return p.hit("Initialize") }
func (p *countingProvider) CPUInfo(context.Context) (CPUInfo, error) {
	return CPUInfo{Name: "cpu", LogicalProcessorCount: 8}, p.hit("CPUInfo")
}
func (p *countingProvider) CPULoad(context.Context) (CPULoad, error) {
	return p.cpuLoad, p.hit("CPULoad")
}
func (p *countingProvider) Uptime(context.Context) (time.Duration, error) {
	return time.Hour, p.hit("Uptime")
}
func (p *countingProvider) NetworkInterfaces(context.Context) ([]NetworkInterface, error) {
	return []NetworkInterface{{Name: "eth0"}}, p.hit("NetworkInterfaces")
}
func (p *countingProvider) NetworkInterfaceLoads(context.Context) ([]NetworkInterfaceLoad, error) {
	return []NetworkInterfaceLoad{{Name: "eth0", Up: true}}, p.hit("NetworkInterfaceLoads")
}
func (p *countingProvider) Connectivity(context.Context) (Connectivity, error) {
	return Connectivity{Connected: true}, p.hit("Connectivity")
}
func (p *countingProvider) Disks(context.Context) ([]Disk, error) {
	return []Disk{{Name: "sda"}}, p.hit("Disks")
}
func (p *countingProvider) DiskLoads(context.Context) ([]DiskLoad, error) {
	return p.diskLoads, p.hit("DiskLoads")
}
func (p *countingProvider) FileSystems(context.Context) ([]FileSystem, error) {
	return []FileSystem{{ID: "/"}}, p.hit("FileSystems")
}
func (p *countingProvider) FileSystemLoads(context.Context) ([]FileSystemLoad, error) {
	return []FileSystemLoad{{ID: "/"}}, p.hit("FileSystemLoads")
}
func (p *countingProvider) MemoryInfo(context.Context) (MemoryInfo, error) {
	return MemoryInfo{TotalBytes: 1 << 30}, p.hit("MemoryInfo")
}
func (p *countingProvider) MemoryLoad(context.Context) (MemoryLoad, error) {
	return MemoryLoad{TotalBytes: 1 << 30}, p.hit("MemoryLoad")
}
func (p *countingProvider) Processes(_ context.Context, _ ProcessSort, _ int) (ProcessesInfo, error) {
	return ProcessesInfo{ProcessCount: 1, Processes: []Process{{PID: 1}}}, p.hit("Processes")
}
func (p *countingProvider) ProcessByPID(_ context.Context, pid int32) (Process, bool, error) {
	return Process{PID: pid}, pid == 1, p.hit("ProcessByPID")
}
func (p *countingProvider) GPUs(context.Context) ([]GPU, error) { return nil, p.hit("GPUs") }
func (p *countingProvider) GPULoads(context.Context) ([]GPULoad, error) {
	return nil, p.hit("GPULoads")
}
func (p *countingProvider) Motherboard(context.Context) (Motherboard, error) {
	return Motherboard{}, p.hit("Motherboard")
}
func (p *countingProvider) MotherboardHealth(context.Context) ([]HealthData, error) {
	return nil, p.hit("MotherboardHealth")
}
func (p *countingProvider) HostName(context.Context) (string, error) {
	return "box", p.hit("HostName")
}
func (p *countingProvider) OperatingSystem(context.Context) (OperatingSystem, error) {
	return OperatingSystem{Family: "debian"}, p.hit("OperatingSystem")
}

func newTestCache(p Provider) (*Cache, *time.Time) {
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	c := NewCache(p, DefaultTTL())
	c.now = func() time.Time { return now }
	return c, &now
}

func TestCacheServesWithinTTL(t *testing.T) {
	p := newCountingProvider()
	p.diskLoads = []DiskLoad{{Name: "sda", ReadBytesPerSecond: 10}}
	c, now := newTestCache(p)
	ctx := context.Background()

	first, err := c.DiskLoads(ctx)
	require.NoError(t, err)
	second, err := c.DiskLoads(ctx)
	require.NoError(t, err)
	assert.Same(t, &first[0], &second[0])
	assert.Equal(t, 1, p.count("DiskLoads"))

	*now = now.Add(5 * time.Second)
	_, err = c.DiskLoads(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, p.count("DiskLoads"))
}

func TestCacheFailedRefreshKeepsPreviousEntry(t *testing.T) {
	p := newCountingProvider()
	p.cpuLoad = CPULoad{UsagePercentage: 42}
	c, now := newTestCache(p)
	ctx := context.Background()

	_, err := c.CPULoad(ctx)
	require.NoError(t, err)

	*now = now.Add(10 * time.Second)
	p.fail["CPULoad"] = errors.New("boom")
	_, err = c.CPULoad(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cpu.load")

	c.mu.RLock()
	e, ok := c.entries["cpu.load"]
	c.mu.RUnlock()
	require.True(t, ok)
	assert.Equal(t, 42.0, e.value.(CPULoad).UsagePercentage)
}

func TestCacheKeysProcessesByArguments(t *testing.T) {
	p := newCountingProvider()
	c, _ := newTestCache(p)
	ctx := context.Background()

	_, err := c.Processes(ctx, SortMemory, -1)
	require.NoError(t, err)
	_, err = c.Processes(ctx, SortCPU, 10)
	require.NoError(t, err)
	_, err = c.Processes(ctx, SortMemory, -1)
	require.NoError(t, err)
	assert.Equal(t, 2, p.count("Processes"))

	_, found, err := c.ProcessByPID(ctx, 1)
	require.NoError(t, err)
	assert.True(t, found)
	_, found, err = c.ProcessByPID(ctx, 2)
	require.NoError(t, err)
	assert.False(t, found)
	_, _, _ = c.ProcessByPID(ctx, 2)
	assert.Equal(t, 2, p.count("ProcessByPID"))
}

func TestCacheCollapsesConcurrentRefreshes(t *testing.T) {
	p := newCountingProvider()
	p.delay = 20 * time.Millisecond
	c := NewCache(p, DefaultTTL())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.MemoryLoad(ctx)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, p.count("MemoryLoad"))
}

func TestCacheComposites(t *testing.T) {
	p := newCountingProvider()
	c, _ := newTestCache(p)
	ctx := context.Background()

	load, err := c.SystemLoad(ctx, SortMemory, -1)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, load.Uptime)
	info, err := c.SystemInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, "box", info.HostName)

	_, err = c.MemoryLoad(ctx)
	require.NoError(t, err)
	_, err = c.SystemLoad(ctx, SortMemory, -1)
	require.NoError(t, err)
	assert.Equal(t, 1, p.count("MemoryLoad"))
	assert.Equal(t, 1, p.count("CPULoad"))
}

func TestCacheInitializeIsPassThrough(t *testing.T) {
	p := newCountingProvider()
	c, _ := newTestCache(p)
	require.NoError(t, c.Initialize(context.Background()))
	require.NoError(t, c.Initialize(context.Background()))
	assert.Equal(t, 2, p.count("Initialize"))
}

type blockingMemory struct {
	*countingProvider
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (b *blockingMemory) MemoryLoad(ctx context.Context) (MemoryLoad, error) {
	b.once.Do(func() { close(b.started) })
	select {
	case <-b.release:
		return MemoryLoad{TotalBytes: 42}, nil
	case <-ctx.Done():
		return MemoryLoad{}, ctx.Err()
	}
}

func TestCacheCancelledReaderDoesNotFailSharedRefresh(t *testing.T) {
	p := &blockingMemory{
		countingProvider: newCountingProvider(),
		started:          make(chan struct{}),
		release:          make(chan struct{}),
	}
	c := NewCache(p, DefaultTTL())

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := c.MemoryLoad(ctxA)
		errA <- err
	}()
	<-p.started

	type result struct {
		load MemoryLoad
		err  error
	}
	resB := make(chan result, 1)
	go func() {
		l, err := c.MemoryLoad(context.Background())
		resB <- result{l, err}
	}()

	cancelA()
	require.ErrorIs(t, <-errA, context.Canceled)

	close(p.release)
	b := <-resB
	require.NoError(t, b.err)
	assert.Equal(t, uint64(42), b.load.TotalBytes)

	l, err := c.MemoryLoad(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(42), l.TotalBytes)
}
