package metrics

import (
	"context"
	"time"
)

// Provider reads raw telemetry from the host. Implementations may shell out
// or walk /proc, so callers go through Cache rather than calling it directly.
type Provider interface {
	// Initialize primes rate counters for disks and network interfaces.
	Initialize(ctx context.Context) error

	CPUInfo(ctx context.Context) (CPUInfo, error)
	CPULoad(ctx context.Context) (CPULoad, error)
	Uptime(ctx context.Context) (time.Duration, error)

	NetworkInterfaces(ctx context.Context) ([]NetworkInterface, error)
	NetworkInterfaceLoads(ctx context.Context) ([]NetworkInterfaceLoad, error)
	Connectivity(ctx context.Context) (Connectivity, error)

	Disks(ctx context.Context) ([]Disk, error)
	DiskLoads(ctx context.Context) ([]DiskLoad, error)

	FileSystems(ctx context.Context) ([]FileSystem, error)
	FileSystemLoads(ctx context.Context) ([]FileSystemLoad, error)

	MemoryInfo(ctx context.Context) (MemoryInfo, error)
	MemoryLoad(ctx context.Context) (MemoryLoad, error)

	// Processes lists processes ordered by sort; limit <= 0 means all.
	Processes(ctx context.Context, sort ProcessSort, limit int) (ProcessesInfo, error)
	// ProcessByPID reports found=false when no such process exists.
	ProcessByPID(ctx context.Context, pid int32) (p Process, found bool, err error)

	GPUs(ctx context.Context) ([]GPU, error)
	GPULoads(ctx context.Context) ([]GPULoad, error)

	Motherboard(ctx context.Context) (Motherboard, error)
	MotherboardHealth(ctx context.Context) ([]HealthData, error)

	HostName(ctx context.Context) (string, error)
	OperatingSystem(ctx context.Context) (OperatingSystem, error)
}
