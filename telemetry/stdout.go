package telemetry

import (
	"context"
	"errors"
	"io"
	"time"

	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Providers bundles SDK tracer and meter providers that must be shut down
// when the process exits.
type Providers struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
}

// NewStdoutProviders exports spans and metrics as JSON to w. Metrics are
// pushed every interval and once more on shutdown.
func NewStdoutProviders(w io.Writer, interval time.Duration) (*Providers, error) {
	spanExporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, err
	}
	metricExporter, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
	if err != nil {
		return nil, err
	}
	return &Providers{
		TracerProvider: sdktrace.NewTracerProvider(sdktrace.WithBatcher(spanExporter)),
		MeterProvider: sdkmetric.NewMeterProvider(sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(interval)),
		)),
	}, nil
}

// Config returns a hook configuration bound to the providers. Parent spans
// are taken from W3C trace context and baggage metadata.
func (p *Providers) Config() Config {
	cfg := DefaultConfig()
	cfg.TracerProvider = p.TracerProvider
	cfg.MeterProvider = p.MeterProvider
	cfg.Propagator = propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{})
	return cfg
}

// Shutdown flushes and stops both providers.
func (p *Providers) Shutdown(ctx context.Context) error {
	return errors.Join(
		p.TracerProvider.Shutdown(ctx),
		p.MeterProvider.Shutdown(ctx),
	)
}
