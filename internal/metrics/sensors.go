package metrics

import (
	"context"
	"encoding/json"
	"log/slog"
	"os/exec"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DiskSensors reads a drive temperature in Celsius by device name ("sda").
type DiskSensors interface {
	Temperature(ctx context.Context, device string) (float64, bool)
}

// NewDiskSensors picks the sensor implementation for the platform. Only
// Linux with smartctl on PATH reports drive temperatures.
func NewDiskSensors(goos string, lookPath func(string) (string, error), logger *slog.Logger) DiskSensors {
	if goos != "linux" {
		return noopSensors{}
	}
	path, err := lookPath("smartctl")
	if err != nil {
		logger.Info("smartctl not found, disk temperatures disabled")
		return noopSensors{}
	}
	return NewSmartCtl(path, logger)
}

type noopSensors struct{}

func (noopSensors) Temperature(context.Context, string) (float64, bool) { return 0, false }

const ignoredDevicesLimit = 64

// SmartCtl shells out to `smartctl -jA`. Devices whose output is not the
// expected JSON are never queried again for the life of the process.
type SmartCtl struct {
	path    string
	run     func(ctx context.Context, name string, args ...string) ([]byte, error)
	ignored *lru.Cache[string, struct{}]
	log     *slog.Logger
}

func NewSmartCtl(path string, logger *slog.Logger) *SmartCtl {
	ignored, _ := lru.New[string, struct{}](ignoredDevicesLimit)
	return &SmartCtl{path: path, run: runCommand, ignored: ignored, log: logger}
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

type smartData struct {
	Temperature *struct {
		Current *float64 `json:"current"`
	} `json:"temperature"`
}

func (s *SmartCtl) Temperature(ctx context.Context, device string) (float64, bool) {
	if s.ignored.Contains(device) {
		return 0, false
	}
	dev := device
	if !strings.HasPrefix(dev, "/dev/") {
		dev = "/dev/" + dev
	}
	out, err := s.run(ctx, s.path, "-jA", dev)
	// smartctl exit codes are a bitmask; JSON on stdout is still usable.
	if len(out) == 0 {
		if err != nil {
			s.log.Warn("smartctl failed", "device", device, "err", err)
		}
		return 0, false
	}
	var data smartData
	if err := json.Unmarshal(out, &data); err != nil {
		s.ignored.Add(device, struct{}{})
		s.log.Error("unparsable smartctl output, ignoring device", "device", device, "err", err)
		return 0, false
	}
	if data.Temperature == nil || data.Temperature.Current == nil {
		return 0, false
	}
	return *data.Temperature.Current, true
}
