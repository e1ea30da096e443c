// ABOUTME: Telemetry constructor: validates the config and returns a no-op Telemetry
// ABOUTME: No OpenTelemetry meter or tracer provider is set up here

package telemetry

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// TelemetryProvider holds OpenTelemetry SDK provider handles. It has no
// methods, does not implement Telemetry, and is never returned by New.
type TelemetryProvider struct {
	config         Config
	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	meter          metric.Meter
	tracer         oteltrace.Tracer
	resource       *sdkresource.Resource
}

// New returns a no-op Telemetry when cfg is disabled or valid, and an error
// when an enabled cfg fails Validate. No exporter is created.
func New(cfg Config) (Telemetry, error) {
	if !cfg.Enabled {
		return NewNoop(), nil
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}

	// For now, return a no-op implementation until the OpenTelemetry API is properly configured
	// TODO: Implement full OpenTelemetry provider setup
	return NewNoop(), nil
}

// TODO: Implement full OpenTelemetry provider with proper API once interfaces are stable
