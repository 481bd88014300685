// Package telemetry installs the process-wide OpenTelemetry meter provider.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

type Config struct {
	// Enabled exports metrics to stdout every Interval. When false the
	// provider still records but nothing is exported.
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	Interval       time.Duration
}

// Setup installs a meter provider globally and returns its shutdown func.
func Setup(cfg Config) (func(context.Context) error, error) {
	if !cfg.Enabled {
		mp := sdkmetric.NewMeterProvider()
		otel.SetMeterProvider(mp)
		return mp.Shutdown, nil
	}

	exporter, err := stdoutmetric.New()
	if err != nil {
		return nil, fmt.Errorf("create metrics exporter: %w", err)
	}
	attrs := []attribute.KeyValue{attribute.String("service.name", cfg.ServiceName)}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, attribute.String("service.version", cfg.ServiceVersion))
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
		sdkmetric.WithResource(resource.NewWithAttributes("", attrs...)),
	)
	otel.SetMeterProvider(mp)
	return mp.Shutdown, nil
}
