package monitoring

import (
	"strconv"

	"monitee/internal/docker"
	"monitee/internal/metrics"
	"monitee/internal/monitor"
	"monitee/internal/webcheck"
)

const (
	// DriveSpeedLimit is the theoretical ceiling for disk throughput.
	DriveSpeedLimit int64 = 14_000 * 1024 * 1024
	// MaxTemperature bounds CPU and drive temperatures in Celsius.
	MaxTemperature int64 = 120
)

var (
	percentCeiling = monitor.FractionalValue(100)
	conditionalMax = monitor.ConditionalValue(true)
)

func cpuItem(typ monitor.Type, info metrics.CPUInfo, load metrics.CPULoad) monitor.MonitorableItem {
	item := monitor.MonitorableItem{Name: info.DisplayName(), Type: typ}
	cores := monitor.FractionalValue(float32(info.LogicalProcessorCount))
	switch typ {
	case monitor.CPULoad:
		item.CurrentValue, item.MaxValue = monitor.Percent(load.UsagePercentage), percentCeiling
	case monitor.CPUTemp:
		item.CurrentValue, item.MaxValue = monitor.Celsius(load.AverageTemperature()), monitor.NumericalValue(MaxTemperature)
	case monitor.LoadAverageOneMinute:
		item.CurrentValue, item.MaxValue = monitor.Percent(load.LoadAverages.OneMinute), cores
	case monitor.LoadAverageFiveMinutes:
		item.CurrentValue, item.MaxValue = monitor.Percent(load.LoadAverages.FiveMinutes), cores
	case monitor.LoadAverageFifteenMinutes:
		item.CurrentValue, item.MaxValue = monitor.Percent(load.LoadAverages.FifteenMinutes), cores
	}
	return item
}

func memoryItem(typ monitor.Type, load metrics.MemoryLoad) monitor.MonitorableItem {
	item := monitor.MonitorableItem{Type: typ, MaxValue: monitor.Bytes(load.TotalBytes)}
	if typ == monitor.MemoryUsed {
		item.Name = "Memory space used"
		item.CurrentValue = monitor.Bytes(load.UsedBytes)
	} else {
		item.Name = "Memory space available"
		item.CurrentValue = monitor.Bytes(load.AvailableBytes)
	}
	return item
}

func fileSystemItem(fs metrics.FileSystem, load metrics.FileSystemLoad) monitor.MonitorableItem {
	return monitor.MonitorableItem{
		ID:           monitor.StringPtr(fs.ID),
		Name:         fs.Mount,
		Description:  monitor.OptionalString(fs.Description),
		CurrentValue: monitor.Bytes(load.UsableSpaceBytes),
		MaxValue:     monitor.Bytes(load.TotalSpaceBytes),
		Type:         monitor.FileSystemSpace,
	}
}

func diskItem(typ monitor.Type, d metrics.Disk, load metrics.DiskLoad) monitor.MonitorableItem {
	item := monitor.MonitorableItem{
		ID:          monitor.StringPtr(d.Name),
		Name:        d.Name,
		Description: monitor.OptionalString(d.Serial),
		Type:        typ,
		MaxValue:    monitor.NumericalValue(DriveSpeedLimit),
	}
	switch typ {
	case monitor.DiskReadRate:
		item.CurrentValue = monitor.Bytes(load.ReadBytesPerSecond)
	case monitor.DiskWriteRate:
		item.CurrentValue = monitor.Bytes(load.WriteBytesPerSecond)
	case monitor.DiskTemperature:
		item.MaxValue = monitor.NumericalValue(MaxTemperature)
		item.CurrentValue = monitor.NumericalValue(-1)
		if load.Temperature != nil {
			item.CurrentValue = monitor.Celsius(*load.Temperature)
		}
	}
	return item
}

func networkItem(typ monitor.Type, nic metrics.NetworkInterface, load metrics.NetworkInterfaceLoad) monitor.MonitorableItem {
	item := monitor.MonitorableItem{
		ID:          monitor.StringPtr(nic.Name),
		Name:        nic.Name,
		Description: monitor.OptionalString(nic.Address()),
		Type:        typ,
		MaxValue:    monitor.Bytes(load.SpeedBytesPerSecond),
	}
	switch typ {
	case monitor.NetworkUp:
		item.CurrentValue, item.MaxValue = monitor.Flag(load.Up), conditionalMax
	case monitor.NetworkUploadRate:
		item.CurrentValue = monitor.Bytes(load.SendBytesPerSecond)
	case monitor.NetworkDownloadRate:
		item.CurrentValue = monitor.Bytes(load.ReceiveBytesPerSecond)
	}
	return item
}

func processItem(typ monitor.Type, p metrics.Process, memoryTotal uint64) monitor.MonitorableItem {
	item := monitor.MonitorableItem{
		ID:          monitor.StringPtr(strconv.Itoa(int(p.PID))),
		Name:        p.Name,
		Description: monitor.OptionalString(p.Path),
		Type:        typ,
	}
	switch typ {
	case monitor.ProcessExists:
		item.CurrentValue, item.MaxValue = monitor.Flag(true), conditionalMax
	case monitor.ProcessCPULoad:
		item.CurrentValue, item.MaxValue = monitor.Percent(p.CPUPercent), percentCeiling
	case monitor.ProcessMemorySpace:
		item.CurrentValue, item.MaxValue = monitor.Bytes(p.ResidentSetSize), monitor.Bytes(memoryTotal)
	}
	return item
}

func containerRunningItem(c docker.Container) monitor.MonitorableItem {
	return monitor.MonitorableItem{
		ID:           monitor.StringPtr(c.ID),
		Name:         c.DisplayName(),
		CurrentValue: monitor.Flag(c.State == docker.StateRunning),
		MaxValue:     conditionalMax,
		Type:         monitor.ContainerRunning,
	}
}

func containerStatsItem(typ monitor.Type, c docker.Container, s docker.ContainerMetrics) monitor.MonitorableItem {
	item := monitor.MonitorableItem{
		ID:          monitor.StringPtr(s.ID),
		Name:        c.DisplayName(),
		Description: monitor.OptionalString(c.Image),
		Type:        typ,
	}
	if typ == monitor.ContainerCPULoad {
		item.CurrentValue, item.MaxValue = monitor.Percent(s.CPUPercent), percentCeiling
	} else {
		item.CurrentValue, item.MaxValue = monitor.Bytes(s.Memory.UsageBytes), monitor.Bytes(s.Memory.LimitBytes)
	}
	return item
}

func connectivityItem(typ monitor.Type, c metrics.Connectivity) monitor.MonitorableItem {
	item := monitor.MonitorableItem{Name: c.ExternalIP, MaxValue: conditionalMax, Type: typ}
	if typ == monitor.Connectivity {
		item.CurrentValue = monitor.Flag(c.Connected)
	} else {
		// The evaluator compares the name against the first address it saw.
		item.CurrentValue = monitor.Flag(true)
	}
	return item
}

func webCheckItem(c webcheck.Check, st webcheck.Status) monitor.MonitorableItem {
	return monitor.MonitorableItem{
		ID:           monitor.StringPtr(c.ID.String()),
		Name:         c.URL,
		Description:  monitor.StringPtr("Returns status 200 on a GET request"),
		CurrentValue: monitor.Flag(st.Up()),
		MaxValue:     conditionalMax,
		Type:         monitor.WebserverUp,
	}
}
