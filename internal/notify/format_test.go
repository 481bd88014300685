package notify

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"monitee/internal/events"
	"monitee/internal/monitor"
)

func sampleValue(t monitor.Type) monitor.MonitoredValue {
	switch t.ValueKind() {
	case monitor.Fractional:
		return monitor.FractionalValue(42)
	case monitor.Conditional:
		return monitor.ConditionalValue(false)
	default:
		return monitor.NumericalValue(2048)
	}
}

func TestFormatCoversEveryMonitorType(t *testing.T) {
	f := Formatter{Temperature: UnitCelsius}
	for _, typ := range monitor.AllTypes {
		item := "item-1"
		ongoing := events.Ongoing{ID: uuid.New(), MonitorID: uuid.New(), MonitoredItemID: &item, MonitorType: typ, Threshold: sampleValue(typ), Value: sampleValue(typ)}
		missing := events.MonitoredItemMissing{ID: uuid.New(), MonitorType: typ, MonitorID: uuid.New(), MonitoredItemID: &item}

		require.NotPanics(t, func() {
			title, msg := f.Format(ongoing, "box")
			assert.Contains(t, title, "box", typ)
			assert.NotEmpty(t, msg, typ)

			_, msg = f.Format(missing, "box")
			assert.Contains(t, msg, "item-1", typ)
			assert.NotContains(t, msg, string(typ), "every type has a description")
		}, string(typ))
	}
}

func TestFormatOngoingMessages(t *testing.T) {
	f := Formatter{Temperature: UnitFahrenheit}
	nic, ctr := "eth0", "/web"
	tests := []struct {
		e         events.Ongoing
		wantTitle string
		wantMsg   string
	}{
		{
			events.Ongoing{MonitorType: monitor.CPULoad, Threshold: monitor.FractionalValue(80), Value: monitor.FractionalValue(93.6)},
			"CPU load too high on box", "Load went above 80% to 94%",
		},
		{
			events.Ongoing{MonitorType: monitor.CPUTemp, Threshold: monitor.NumericalValue(0), Value: monitor.NumericalValue(100)},
			"CPU temp. too high on box", "Temperature went above 32°F to 212°F",
		},
		{
			events.Ongoing{MonitorType: monitor.LoadAverageFiveMinutes, Threshold: monitor.FractionalValue(2), Value: monitor.FractionalValue(3.456)},
			"Load avg. 5m too high on box", "5m load average went above 2.00 to 3.46",
		},
		{
			events.Ongoing{MonitorType: monitor.NetworkUploadRate, MonitoredItemID: &nic, Threshold: monitor.NumericalValue(125), Value: monitor.NumericalValue(256)},
			"Upload too high on box", "Upload rate on eth0 went above 1000.0 b/s to 2.0 Kb/s",
		},
		{
			events.Ongoing{MonitorType: monitor.NetworkUp, MonitoredItemID: &nic, Threshold: monitor.ConditionalValue(true), Value: monitor.ConditionalValue(false)},
			"Network down on box", "NIC eth0 went up to down",
		},
		{
			events.Ongoing{MonitorType: monitor.ContainerRunning, MonitoredItemID: &ctr, Threshold: monitor.ConditionalValue(true), Value: monitor.ConditionalValue(false)},
			"Container stopped on box", "Container web is stopped",
		},
		{
			events.Ongoing{MonitorType: monitor.MemorySpace, Threshold: monitor.NumericalValue(1024), Value: monitor.NumericalValue(1023)},
			"Memory space too low on box", "Memory went below 1.0 KiB to 1023 B",
		},
		{
			events.Ongoing{MonitorType: monitor.ExternalIPChanged, Threshold: monitor.ConditionalValue(true), Value: monitor.ConditionalValue(false)},
			"External IP changed on box", "External IP changed",
		},
	}
	for _, tt := range tests {
		title, msg := f.Format(tt.e, "box")
		assert.Equal(t, tt.wantTitle, title)
		assert.Equal(t, tt.wantMsg, msg)
	}
}

func TestFormatDiskRate(t *testing.T) {
	assert.Equal(t, "1.0 KiB/s", Formatter{}.FormatValue(monitor.DiskReadRate, monitor.NumericalValue(1024)))
}

func TestFormatGenericEvents(t *testing.T) {
	f := Formatter{}
	disk := "sda"
	title, msg := f.Format(events.MonitoredItemMissing{MonitorType: monitor.DiskTemperature, MonitoredItemID: &disk}, "box")
	assert.Equal(t, "Monitored item missing from box", title)
	assert.Equal(t, "Drive: Temperature monitor's item sda is no longer present in the system", msg)

	title, msg = f.Format(events.UpdateAvailable{
		CurrentVersion: "0.9.0",
		NewVersion:     "1.0.0",
		PublishDate:    time.Date(2026, 4, 2, 18, 30, 0, 0, time.UTC),
	}, "box")
	assert.Equal(t, "New monitee-agent version available for box", title)
	assert.Equal(t, "1.0.0 published at 2026-04-02. Server is running 0.9.0", msg)
}

func TestDeepLinks(t *testing.T) {
	server := uuid.MustParse("11111111-2222-3333-4444-555555555555")
	mon := uuid.MustParse("aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee")
	d := DeepLinks{ServerID: server, ReleaseUser: "Krillsson", ReleaseRepo: "sys-api"}

	assert.Equal(t, "https://monitee.app/server/11111111-2222-3333-4444-555555555555/monitor/aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee",
		d.For(events.Ongoing{MonitorID: mon}))
	assert.Equal(t, "https://monitee.app/server/11111111-2222-3333-4444-555555555555/events",
		d.For(events.MonitoredItemMissing{MonitorID: mon}))
	assert.Equal(t, "https://github.com/Krillsson/sys-api/releases/latest",
		d.For(events.UpdateAvailable{}))
}
