// Package telemetry wires OpenTelemetry traces, metrics and logs, and the
// Pyroscope profiler, for the storefront backend.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.uber.org/zap"
)

// ServiceVersion is reported on every exported resource
const ServiceVersion = "1.0.0"

const shutdownTimeout = 10 * time.Second

// Endpoint is where a signal is exported over OTLP/gRPC
type Endpoint struct {
	Enabled           bool
	CollectorEndpoint string
	ServiceName       string
	Insecure          bool
}

// export is the lifecycle shared by the trace, metric and log providers.
// stop is nil while export is disabled.
type export struct {
	signal string
	logger *zap.Logger
	stop   func(context.Context) error
}

// IsEnabled reports whether the signal is exported
func (e *export) IsEnabled() bool {
	return e.stop != nil
}

// Shutdown flushes buffered data and stops the provider. Without export it
// does nothing.
func (e *export) Shutdown(ctx context.Context) error {
	if e.stop == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := e.stop(ctx); err != nil {
		return fmt.Errorf("shutdown %s provider: %w", e.signal, err)
	}
	e.logger.Info("Telemetry export stopped", zap.String("signal", e.signal))
	return nil
}

func (e *export) started(ep Endpoint, fields ...zap.Field) {
	e.logger.Info("Telemetry export started", append([]zap.Field{
		zap.String("signal", e.signal),
		zap.String("collector_endpoint", ep.CollectorEndpoint),
		zap.String("service_name", ep.ServiceName),
	}, fields...)...)
}

func newResource(serviceName string) (*resource.Resource, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build resource: %w", err)
	}
	return res, nil
}
