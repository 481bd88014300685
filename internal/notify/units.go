package notify

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/language"
)

// FormatBytes renders a byte count with binary prefixes: "1023 B", "1.0 KiB".
func FormatBytes(n int64) string {
	if n < 0 {
		return fmt.Sprintf("%d B", n)
	}
	return humanize.IBytes(uint64(n))
}

const bitPrefixes = "KMGTPE"

// FormatNetworkRate renders bytes per second as bits per second, 1024-based
// with one decimal: 125 B/s is "1000.0 b/s", 256 B/s is "2.0 Kb/s".
func FormatNetworkRate(bytesPerSecond int64) string {
	bits := float64(bytesPerSecond) * 8
	exp := 0
	for math.Abs(bits) >= 1024 && exp < len(bitPrefixes) {
		bits /= 1024
		exp++
	}
	if exp == 0 {
		return fmt.Sprintf("%.1f b/s", bits)
	}
	return fmt.Sprintf("%.1f %cb/s", bits, bitPrefixes[exp-1])
}

func formatPercent(v float32) string { return fmt.Sprintf("%.0f%%", v) }

func formatLoadAverage(v float32) string { return fmt.Sprintf("%.2f", v) }

type TemperatureUnit string

const (
	UnitSystem     TemperatureUnit = "system"
	UnitCelsius    TemperatureUnit = "celsius"
	UnitFahrenheit TemperatureUnit = "fahrenheit"
)

// ResolveTemperatureUnit turns the configured unit into celsius or
// fahrenheit. "system" and unknown values look at the locale environment.
func ResolveTemperatureUnit(configured TemperatureUnit, getenv func(string) string) TemperatureUnit {
	configured = TemperatureUnit(strings.ToLower(strings.TrimSpace(string(configured))))
	switch configured {
	case UnitCelsius, UnitFahrenheit:
		return configured
	}
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if v := getenv(key); v != "" {
			return unitForLocale(v)
		}
	}
	return UnitCelsius
}

// unitForLocale parses POSIX locale names such as "en_US.UTF-8".
func unitForLocale(locale string) TemperatureUnit {
	if i := strings.IndexAny(locale, ".@"); i >= 0 {
		locale = locale[:i]
	}
	tag, err := language.Parse(strings.ReplaceAll(locale, "_", "-"))
	if err != nil {
		return UnitCelsius
	}
	if region, conf := tag.Region(); conf == language.Exact && region.String() == "US" {
		return UnitFahrenheit
	}
	return UnitCelsius
}

func CelsiusToFahrenheit(c int) int {
	return int(math.Round(float64(c)*9/5 + 32))
}

func FormatTemperature(celsius int, unit TemperatureUnit) string {
	if unit == UnitFahrenheit {
		return fmt.Sprintf("%d°F", CelsiusToFahrenheit(celsius))
	}
	return fmt.Sprintf("%d°C", celsius)
}
