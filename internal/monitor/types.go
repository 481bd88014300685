package monitor

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	CPULoad                   Type = "CPU_LOAD"
	CPUTemp                   Type = "CPU_TEMP"
	LoadAverageOneMinute      Type = "LOAD_AVERAGE_ONE_MINUTE"
	LoadAverageFiveMinutes    Type = "LOAD_AVERAGE_FIVE_MINUTES"
	LoadAverageFifteenMinutes Type = "LOAD_AVERAGE_FIFTEEN_MINUTES"
	MemorySpace               Type = "MEMORY_SPACE"
	MemoryUsed                Type = "MEMORY_USED"
	FileSystemSpace           Type = "FILE_SYSTEM_SPACE"
	DiskReadRate              Type = "DISK_READ_RATE"
	DiskWriteRate             Type = "DISK_WRITE_RATE"
	DiskTemperature           Type = "DISK_TEMPERATURE"
	NetworkUp                 Type = "NETWORK_UP"
	NetworkUploadRate         Type = "NETWORK_UPLOAD_RATE"
	NetworkDownloadRate       Type = "NETWORK_DOWNLOAD_RATE"
	ProcessExists             Type = "PROCESS_EXISTS"
	ProcessCPULoad            Type = "PROCESS_CPU_LOAD"
	ProcessMemorySpace        Type = "PROCESS_MEMORY_SPACE"
	ContainerRunning          Type = "CONTAINER_RUNNING"
	ContainerCPULoad          Type = "CONTAINER_CPU_LOAD"
	ContainerMemorySpace      Type = "CONTAINER_MEMORY_SPACE"
	Connectivity              Type = "CONNECTIVITY"
	ExternalIPChanged         Type = "EXTERNAL_IP_CHANGED"
	WebserverUp               Type = "WEBSERVER_UP"
)

// Category is the metric source a monitor type reads from. The snapshot
// builder only queries categories that at least one active monitor needs.
type Category string

const (
	CategoryCPU            Category = "cpu"
	CategoryMemory         Category = "memory"
	CategoryFileSystem     Category = "filesystem"
	CategoryDisk           Category = "disk"
	CategoryNetwork        Category = "network"
	CategoryConnectivity   Category = "connectivity"
	CategoryProcess        Category = "process"
	CategoryContainer      Category = "container"
	CategoryContainerStats Category = "container_stats"
	CategoryWebCheck       Category = "webcheck"
)

// AllCategories is the order in which snapshot categories are fetched.
var AllCategories = []Category{
	CategoryCPU, CategoryMemory, CategoryFileSystem, CategoryDisk, CategoryNetwork,
	CategoryConnectivity, CategoryProcess, CategoryContainer, CategoryContainerStats, CategoryWebCheck,
}

// Direction tells the evaluator which side of the threshold is a breach.
type Direction int

const (
	Above Direction = iota + 1
	Below
	NotEqual
)

type typeSpec struct {
	kind       ValueKind
	enumerable bool
	category   Category
	direction  Direction
}

var specs = map[Type]typeSpec{
	CPULoad:                   {Fractional, false, CategoryCPU, Above},
	CPUTemp:                   {Numerical, false, CategoryCPU, Above},
	LoadAverageOneMinute:      {Fractional, false, CategoryCPU, Above},
	LoadAverageFiveMinutes:    {Fractional, false, CategoryCPU, Above},
	LoadAverageFifteenMinutes: {Fractional, false, CategoryCPU, Above},
	MemorySpace:               {Numerical, false, CategoryMemory, Below},
	MemoryUsed:                {Numerical, false, CategoryMemory, Above},
	FileSystemSpace:           {Numerical, true, CategoryFileSystem, Below},
	DiskReadRate:              {Numerical, true, CategoryDisk, Above},
	DiskWriteRate:             {Numerical, true, CategoryDisk, Above},
	DiskTemperature:           {Numerical, true, CategoryDisk, Above},
	NetworkUp:                 {Conditional, true, CategoryNetwork, NotEqual},
	NetworkUploadRate:         {Numerical, true, CategoryNetwork, Above},
	NetworkDownloadRate:       {Numerical, true, CategoryNetwork, Above},
	ProcessExists:             {Conditional, true, CategoryProcess, NotEqual},
	ProcessCPULoad:            {Fractional, true, CategoryProcess, Above},
	ProcessMemorySpace:        {Numerical, true, CategoryProcess, Above},
	ContainerRunning:          {Conditional, true, CategoryContainer, NotEqual},
	ContainerCPULoad:          {Fractional, true, CategoryContainerStats, Above},
	ContainerMemorySpace:      {Numerical, true, CategoryContainerStats, Above},
	Connectivity:              {Conditional, false, CategoryConnectivity, NotEqual},
	ExternalIPChanged:         {Conditional, false, CategoryConnectivity, NotEqual},
	WebserverUp:               {Conditional, true, CategoryWebCheck, NotEqual},
}

// AllTypes lists every monitor type in a stable order.
var AllTypes = []Type{
	CPULoad, CPUTemp,
	LoadAverageOneMinute, LoadAverageFiveMinutes, LoadAverageFifteenMinutes,
	MemorySpace, MemoryUsed,
	FileSystemSpace,
	DiskReadRate, DiskWriteRate, DiskTemperature,
	NetworkUp, NetworkUploadRate, NetworkDownloadRate,
	ProcessExists, ProcessCPULoad, ProcessMemorySpace,
	ContainerRunning, ContainerCPULoad, ContainerMemorySpace,
	Connectivity, ExternalIPChanged,
	WebserverUp,
}

func (t Type) spec() typeSpec {
	s, ok := specs[t]
	if !ok {
		panic(fmt.Sprintf("monitor: unknown type %q", string(t)))
	}
	return s
}

func (t Type) Valid() bool {
	_, ok := specs[t]
	return ok
}

// ValueKind is the MonitoredValue variant both the threshold and the
// measured value of this type carry.
func (t Type) ValueKind() ValueKind { return t.spec().kind }

// Enumerable reports whether the type targets one of many named entities
// (and so needs a monitored item id) rather than the system as a whole.
func (t Type) Enumerable() bool { return t.spec().enumerable }

func (t Type) Category() Category { return t.spec().category }

func (t Type) Direction() Direction { return t.spec().direction }

func ParseType(s string) (Type, error) {
	t := Type(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown monitor type %q", s)
	}
	return t, nil
}

type Config struct {
	MonitoredItemID *string        `json:"monitoredItemId,omitempty"`
	Threshold       MonitoredValue `json:"threshold"`
	Inertia         time.Duration  `json:"inertia"`
}

type Monitor struct {
	ID     uuid.UUID `json:"id"`
	Type   Type      `json:"type"`
	Config Config    `json:"config"`
}

// ItemID returns the monitored item id or "" for singular types.
func (m Monitor) ItemID() string {
	if m.Config.MonitoredItemID == nil {
		return ""
	}
	return *m.Config.MonitoredItemID
}

func (m Monitor) Validate() error {
	if !m.Type.Valid() {
		return fmt.Errorf("unknown monitor type %q", string(m.Type))
	}
	if m.Config.Threshold.Kind() != m.Type.ValueKind() {
		return fmt.Errorf("%s threshold must be %s, got %s", m.Type, m.Type.ValueKind(), m.Config.Threshold.Kind())
	}
	if m.Type.Enumerable() && m.ItemID() == "" {
		return fmt.Errorf("%s requires a monitored item id", m.Type)
	}
	if m.Config.Inertia < 0 {
		return fmt.Errorf("inertia must not be negative")
	}
	return nil
}

type MonitorableItem struct {
	ID           *string        `json:"id,omitempty"`
	Name         string         `json:"name"`
	Description  *string        `json:"description,omitempty"`
	CurrentValue MonitoredValue `json:"currentValue"`
	MaxValue     MonitoredValue `json:"maxValue"`
	Type         Type           `json:"type"`
}
