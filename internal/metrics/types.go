package metrics

import "time"

type CPUInfo struct {
	Name                   string `json:"name"`
	Model                  string `json:"model"`
	Vendor                 string `json:"vendor"`
	PhysicalProcessorCount int    `json:"physicalProcessorCount"`
	LogicalProcessorCount  int    `json:"logicalProcessorCount"`
}

// DisplayName is what the processor is called in items and notifications.
func (c CPUInfo) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Model
}

type LoadAverages struct {
	OneMinute      float64 `json:"oneMinute"`
	FiveMinutes    float64 `json:"fiveMinutes"`
	FifteenMinutes float64 `json:"fifteenMinutes"`
}

type CPULoad struct {
	UsagePercentage   float64      `json:"usagePercentage"`
	SystemLoadAverage float64      `json:"systemLoadAverage"`
	LoadAverages      LoadAverages `json:"loadAverages"`
	CoreLoads         []float64    `json:"coreLoads"`
	Temperatures      []float64    `json:"temperatures"`
}

// AverageTemperature returns the mean sensor reading, or -1 without sensors.
func (c CPULoad) AverageTemperature() float64 {
	if len(c.Temperatures) == 0 {
		return -1
	}
	var sum float64
	for _, t := range c.Temperatures {
		sum += t
	}
	return sum / float64(len(c.Temperatures))
}

type NetworkInterface struct {
	Name    string   `json:"name"`
	MAC     string   `json:"mac"`
	IPv4    []string `json:"ipv4"`
	IPv6    []string `json:"ipv6"`
	Virtual bool     `json:"virtual"`
}

// Address is the first IPv4, else the first IPv6, else the MAC.
func (n NetworkInterface) Address() string {
	if len(n.IPv4) > 0 {
		return n.IPv4[0]
	}
	if len(n.IPv6) > 0 {
		return n.IPv6[0]
	}
	return n.MAC
}

type NetworkInterfaceLoad struct {
	Name                  string `json:"name"`
	Up                    bool   `json:"up"`
	SpeedBytesPerSecond   uint64 `json:"speedBytesPerSecond"`
	BytesReceived         uint64 `json:"bytesReceived"`
	BytesSent             uint64 `json:"bytesSent"`
	ReceiveBytesPerSecond uint64 `json:"receiveBytesPerSecond"`
	SendBytesPerSecond    uint64 `json:"sendBytesPerSecond"`
}

type Connectivity struct {
	ExternalIP string `json:"externalIp,omitempty"`
	Connected  bool   `json:"connected"`
}

type Disk struct {
	Name   string `json:"name"`
	Model  string `json:"model"`
	Serial string `json:"serial"`
	Size   uint64 `json:"size"`
}

type DiskLoad struct {
	Name                string   `json:"name"`
	ReadBytes           uint64   `json:"readBytes"`
	WriteBytes          uint64   `json:"writeBytes"`
	ReadBytesPerSecond  uint64   `json:"readBytesPerSecond"`
	WriteBytesPerSecond uint64   `json:"writeBytesPerSecond"`
	Temperature         *float64 `json:"temperature,omitempty"`
}

type FileSystem struct {
	ID          string `json:"id"`
	Mount       string `json:"mount"`
	Description string `json:"description"`
	Type        string `json:"type"`
}

type FileSystemLoad struct {
	ID               string `json:"id"`
	TotalSpaceBytes  uint64 `json:"totalSpaceBytes"`
	UsableSpaceBytes uint64 `json:"usableSpaceBytes"`
	FreeSpaceBytes   uint64 `json:"freeSpaceBytes"`
}

type MemoryInfo struct {
	TotalBytes     uint64 `json:"totalBytes"`
	SwapTotalBytes uint64 `json:"swapTotalBytes"`
}

type MemoryLoad struct {
	TotalBytes     uint64  `json:"totalBytes"`
	AvailableBytes uint64  `json:"availableBytes"`
	UsedBytes      uint64  `json:"usedBytes"`
	SwapUsedBytes  uint64  `json:"swapUsedBytes"`
	UsedPercent    float64 `json:"usedPercent"`
}

type Process struct {
	PID             int32   `json:"pid"`
	Name            string  `json:"name"`
	Path            string  `json:"path"`
	CommandLine     string  `json:"commandLine"`
	User            string  `json:"user"`
	State           string  `json:"state"`
	CPUPercent      float64 `json:"cpuPercent"`
	ResidentSetSize uint64  `json:"residentSetSize"`
	VirtualSize     uint64  `json:"virtualSize"`
	StartTime       int64   `json:"startTime"`
}

type ProcessSort string

const (
	SortMemory ProcessSort = "MEMORY"
	SortCPU    ProcessSort = "CPU"
	SortPID    ProcessSort = "PID"
	SortName   ProcessSort = "NAME"
)

type ProcessesInfo struct {
	MemoryTotalBytes uint64    `json:"memoryTotalBytes"`
	ProcessCount     int       `json:"processCount"`
	Processes        []Process `json:"processes"`
}

type GPU struct {
	Name   string `json:"name"`
	Vendor string `json:"vendor"`
}

type GPULoad struct {
	Name        string  `json:"name"`
	CoreLoad    float64 `json:"coreLoad"`
	MemoryLoad  float64 `json:"memoryLoad"`
	Temperature float64 `json:"temperature"`
}

type Motherboard struct {
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
}

type HealthData struct {
	Description string  `json:"description"`
	Value       float64 `json:"value"`
}

type OperatingSystem struct {
	Family   string `json:"family"`
	Platform string `json:"platform"`
	Version  string `json:"version"`
	Kernel   string `json:"kernel"`
	Arch     string `json:"arch"`
}

type SystemLoad struct {
	Uptime            time.Duration          `json:"uptime"`
	SystemLoadAverage float64                `json:"systemLoadAverage"`
	CPULoad           CPULoad                `json:"cpuLoad"`
	NetworkLoads      []NetworkInterfaceLoad `json:"networkInterfaceLoads"`
	Connectivity      Connectivity           `json:"connectivity"`
	DiskLoads         []DiskLoad             `json:"diskLoads"`
	FileSystemLoads   []FileSystemLoad       `json:"fileSystemLoads"`
	Memory            MemoryLoad             `json:"memory"`
	Processes         []Process              `json:"processes"`
	GPULoads          []GPULoad              `json:"gpuLoads"`
	MotherboardHealth []HealthData           `json:"motherboardHealth"`
}

type SystemInfo struct {
	HostName          string             `json:"hostName"`
	OperatingSystem   OperatingSystem    `json:"operatingSystem"`
	CPUInfo           CPUInfo            `json:"cpuInfo"`
	Motherboard       Motherboard        `json:"motherboard"`
	Memory            MemoryInfo         `json:"memory"`
	Disks             []Disk             `json:"disks"`
	FileSystems       []FileSystem       `json:"fileSystems"`
	NetworkInterfaces []NetworkInterface `json:"networkInterfaces"`
	GPUs              []GPU              `json:"gpus"`
}
