package notify

import (
	"fmt"
	"strings"

	"monitee/internal/events"
	"monitee/internal/monitor"
)

type Formatter struct {
	Temperature TemperatureUnit
}

// Format returns the title and message for an event.
func (f Formatter) Format(e events.Event, serverName string) (title, message string) {
	switch e := e.(type) {
	case events.Ongoing:
		return f.ongoingTitle(e.MonitorType, serverName), f.ongoingMessage(e)
	case events.MonitoredItemMissing:
		title = "Monitored item missing from " + serverName
		if e.MonitoredItemID == nil {
			return title, describeType(e.MonitorType) + " monitor's item is no longer present in the system"
		}
		return title, fmt.Sprintf("%s monitor's item %s is no longer present in the system", describeType(e.MonitorType), *e.MonitoredItemID)
	case events.UpdateAvailable:
		return "New monitee-agent version available for " + serverName,
			fmt.Sprintf("%s published at %s. Server is running %s", e.NewVersion, e.PublishDate.Format("2006-01-02"), e.CurrentVersion)
	}
	panic(fmt.Sprintf("notify: unhandled event %T", e))
}

var ongoingTitles = map[monitor.Type]string{
	monitor.CPULoad:                   "CPU load too high on %s",
	monitor.CPUTemp:                   "CPU temp. too high on %s",
	monitor.LoadAverageOneMinute:      "Load avg. 1m too high on %s",
	monitor.LoadAverageFiveMinutes:    "Load avg. 5m too high on %s",
	monitor.LoadAverageFifteenMinutes: "Load avg. 15m too high on %s",
	monitor.MemorySpace:               "Memory space too low on %s",
	monitor.MemoryUsed:                "Memory usage too high on %s",
	monitor.FileSystemSpace:           "Space too low on %s",
	monitor.DiskReadRate:              "Disk read rate too high on %s",
	monitor.DiskWriteRate:             "Disk write rate too high on %s",
	monitor.DiskTemperature:           "Disk temp. too high on %s",
	monitor.NetworkUp:                 "Network down on %s",
	monitor.NetworkUploadRate:         "Upload too high on %s",
	monitor.NetworkDownloadRate:       "Download too high on %s",
	monitor.ProcessExists:             "Process stopped on %s",
	monitor.ProcessCPULoad:            "Process CPU usage too high on %s",
	monitor.ProcessMemorySpace:        "Process memory usage too high on %s",
	monitor.ContainerRunning:          "Container stopped on %s",
	monitor.ContainerCPULoad:          "Container CPU load too high on %s",
	monitor.ContainerMemorySpace:      "Container memory usage too high on %s",
	monitor.Connectivity:              "Connection is down on %s",
	monitor.ExternalIPChanged:         "External IP changed on %s",
	monitor.WebserverUp:               "Webserver is down on %s",
}

func (f Formatter) ongoingTitle(t monitor.Type, serverName string) string {
	tmpl, ok := ongoingTitles[t]
	if !ok {
		panic("notify: no title for monitor type " + string(t))
	}
	return fmt.Sprintf(tmpl, serverName)
}

func (f Formatter) ongoingMessage(e events.Ongoing) string {
	th, val := f.FormatValue(e.MonitorType, e.Threshold), f.FormatValue(e.MonitorType, e.Value)
	item := ""
	if e.MonitoredItemID != nil {
		item = *e.MonitoredItemID
	}
	switch e.MonitorType {
	case monitor.CPULoad:
		return fmt.Sprintf("Load went above %s to %s", th, val)
	case monitor.CPUTemp:
		return fmt.Sprintf("Temperature went above %s to %s", th, val)
	case monitor.LoadAverageOneMinute:
		return fmt.Sprintf("1m load average went above %s to %s", th, val)
	case monitor.LoadAverageFiveMinutes:
		return fmt.Sprintf("5m load average went above %s to %s", th, val)
	case monitor.LoadAverageFifteenMinutes:
		return fmt.Sprintf("15m load average went above %s to %s", th, val)
	case monitor.MemorySpace:
		return fmt.Sprintf("Memory went below %s to %s", th, val)
	case monitor.MemoryUsed:
		return fmt.Sprintf("Memory usage went above %s to %s", th, val)
	case monitor.FileSystemSpace:
		return fmt.Sprintf("Space on %s went below %s to %s", item, th, val)
	case monitor.DiskReadRate:
		return fmt.Sprintf("Read rate on %s went above %s to %s", item, th, val)
	case monitor.DiskWriteRate:
		return fmt.Sprintf("Write rate on %s went above %s to %s", item, th, val)
	case monitor.DiskTemperature:
		return fmt.Sprintf("Temperature on %s went above %s to %s", item, th, val)
	case monitor.NetworkUp:
		return fmt.Sprintf("NIC %s went %s to %s", item, th, val)
	case monitor.NetworkUploadRate:
		return fmt.Sprintf("Upload rate on %s went above %s to %s", item, th, val)
	case monitor.NetworkDownloadRate:
		return fmt.Sprintf("Download rate on %s went above %s to %s", item, th, val)
	case monitor.ProcessExists:
		return fmt.Sprintf("Process %s is %s", item, val)
	case monitor.ProcessCPULoad:
		return fmt.Sprintf("Process CPU usage on %s went above %s to %s", item, th, val)
	case monitor.ProcessMemorySpace:
		return fmt.Sprintf("Process memory on %s went above %s to %s", item, th, val)
	case monitor.ContainerRunning:
		return fmt.Sprintf("Container %s is %s", containerName(item), val)
	case monitor.ContainerCPULoad:
		return fmt.Sprintf("Container %s CPU usage went above %s to %s", containerName(item), th, val)
	case monitor.ContainerMemorySpace:
		return fmt.Sprintf("Container %s memory usage went above %s to %s", containerName(item), th, val)
	case monitor.Connectivity:
		return "Host machine is " + val
	case monitor.ExternalIPChanged:
		return "External IP " + val
	case monitor.WebserverUp:
		return item + " is not responding with 200/OK"
	}
	panic("notify: no message for monitor type " + string(e.MonitorType))
}

func containerName(id string) string { return strings.ReplaceAll(id, "/", "") }

// FormatValue renders a value in the unit its monitor type measures.
func (f Formatter) FormatValue(t monitor.Type, v monitor.MonitoredValue) string {
	switch t {
	case monitor.CPULoad, monitor.ProcessCPULoad, monitor.ContainerCPULoad:
		return formatPercent(v.Fractional())
	case monitor.LoadAverageOneMinute, monitor.LoadAverageFiveMinutes, monitor.LoadAverageFifteenMinutes:
		return formatLoadAverage(v.Fractional())
	case monitor.CPUTemp, monitor.DiskTemperature:
		return FormatTemperature(int(v.Numerical()), f.Temperature)
	case monitor.MemorySpace, monitor.MemoryUsed, monitor.FileSystemSpace, monitor.ProcessMemorySpace, monitor.ContainerMemorySpace:
		return FormatBytes(v.Numerical())
	case monitor.DiskReadRate, monitor.DiskWriteRate:
		return FormatBytes(v.Numerical()) + "/s"
	case monitor.NetworkUploadRate, monitor.NetworkDownloadRate:
		return FormatNetworkRate(v.Numerical())
	}
	words, ok := conditionalWords[t]
	if !ok {
		panic("notify: no format for monitor type " + string(t))
	}
	if v.Conditional() {
		return words[0]
	}
	return words[1]
}

var conditionalWords = map[monitor.Type][2]string{
	monitor.NetworkUp:         {"up", "down"},
	monitor.WebserverUp:       {"up", "down"},
	monitor.ContainerRunning:  {"running", "stopped"},
	monitor.ProcessExists:     {"exists", "dead"},
	monitor.Connectivity:      {"connected", "disconnected"},
	monitor.ExternalIPChanged: {"unchanged", "changed"},
}

var typeDescriptions = map[monitor.Type]string{
	monitor.CPULoad:                   "CPU: Load percent",
	monitor.CPUTemp:                   "CPU: Temperature",
	monitor.LoadAverageOneMinute:      "Load average: 1m",
	monitor.LoadAverageFiveMinutes:    "Load average: 5m",
	monitor.LoadAverageFifteenMinutes: "Load average: 15m",
	monitor.MemorySpace:               "Memory: Free space",
	monitor.MemoryUsed:                "Memory: Usage",
	monitor.FileSystemSpace:           "File system: Free space",
	monitor.DiskReadRate:              "Drive: Read rate",
	monitor.DiskWriteRate:             "Drive: Write rate",
	monitor.DiskTemperature:           "Drive: Temperature",
	monitor.NetworkUp:                 "Network: Up",
	monitor.NetworkUploadRate:         "Network: Upload rate",
	monitor.NetworkDownloadRate:       "Network: Download rate",
	monitor.ProcessExists:             "Process: Exists",
	monitor.ProcessCPULoad:            "Process: CPU usage",
	monitor.ProcessMemorySpace:        "Process: Memory usage",
	monitor.ContainerRunning:          "Docker: Container running",
	monitor.ContainerCPULoad:          "Container: CPU usage",
	monitor.ContainerMemorySpace:      "Container: Memory usage",
	monitor.Connectivity:              "Host: Connectivity",
	monitor.ExternalIPChanged:         "Host: External IP changed",
	monitor.WebserverUp:               "Webserver: Replies 200/OK",
}

func describeType(t monitor.Type) string {
	if d, ok := typeDescriptions[t]; ok {
		return d
	}
	return string(t)
}
