// Package telemetry provides OpenTelemetry instrumentation for the plugin
// server. It implements [connector.DispatchHook] to add distributed tracing
// and metrics to function and script calls.
//
// Usage:
//
//	hook := telemetry.NewHook(telemetry.DefaultConfig())
//	server, err := sse.NewServer(grpcServer, sse.ServerConfig{Hook: hook, ...})
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/status"

	"github.com/hugr-lab/qlik-sse-go/connector"
	"github.com/hugr-lab/qlik-sse-go/rowstream"
	"github.com/hugr-lab/qlik-sse-go/wire"
)

const (
	instrumentationName = "github.com/hugr-lab/qlik-sse-go/telemetry"
	rpcSystem           = "qlik_sse"
)

// Config configures the OpenTelemetry dispatch hook.
type Config struct {
	// TracerProvider supplies the tracer. Defaults to otel.GetTracerProvider().
	TracerProvider trace.TracerProvider
	// MeterProvider supplies the meter. Defaults to otel.GetMeterProvider().
	MeterProvider metric.MeterProvider
	// Propagator extracts trace context from call metadata.
	// Defaults to otel.GetTextMapPropagator().
	Propagator propagation.TextMapPropagator
	// EnableTracing enables span creation. Default true.
	EnableTracing bool
	// EnableMetrics enables counter and histogram recording. Default true.
	EnableMetrics bool
	// RecordExceptions calls RecordError on the span for failed calls.
	// Default true.
	RecordExceptions bool
	// CustomAttributes are added to every span.
	CustomAttributes []attribute.KeyValue
}

// DefaultConfig returns a Config with tracing, metrics and error recording
// enabled. Providers and the propagator are resolved from the global OTel
// SDK by NewHook.
func DefaultConfig() Config {
	return Config{
		EnableTracing:    true,
		EnableMetrics:    true,
		RecordExceptions: true,
	}
}

// Hook implements connector.DispatchHook with OpenTelemetry tracing and metrics.
type Hook struct {
	cfg               Config
	tracer            trace.Tracer
	requestCounter    metric.Int64Counter
	durationHistogram metric.Float64Histogram
	rowsIn            metric.Int64Counter
	rowsOut           metric.Int64Counter
}

var _ connector.DispatchHook = (*Hook)(nil)

// NewHook creates the dispatch hook.
func NewHook(cfg Config) *Hook {
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = otel.GetTracerProvider()
	}
	if cfg.MeterProvider == nil {
		cfg.MeterProvider = otel.GetMeterProvider()
	}
	if cfg.Propagator == nil {
		cfg.Propagator = otel.GetTextMapPropagator()
	}

	h := &Hook{
		cfg:    cfg,
		tracer: cfg.TracerProvider.Tracer(instrumentationName),
	}
	if cfg.EnableMetrics {
		meter := cfg.MeterProvider.Meter(instrumentationName)
		h.requestCounter, _ = meter.Int64Counter("rpc.server.requests",
			metric.WithUnit("{request}"),
			metric.WithDescription("Number of function and script calls"),
		)
		h.durationHistogram, _ = meter.Float64Histogram("rpc.server.duration",
			metric.WithUnit("s"),
			metric.WithDescription("Duration of function and script calls"),
		)
		h.rowsIn, _ = meter.Int64Counter("sse.rows.in",
			metric.WithUnit("{row}"),
			metric.WithDescription("Rows received from the client"),
		)
		h.rowsOut, _ = meter.Int64Counter("sse.rows.out",
			metric.WithUnit("{row}"),
			metric.WithDescription("Rows returned to the client"),
		)
	}
	return h
}

// spanToken is the HookToken returned by OnCallStart.
type spanToken struct {
	span      trace.Span
	startTime time.Time
}

// OnCallStart extracts the parent trace context and starts a server span.
func (h *Hook) OnCallStart(ctx context.Context, info connector.CallInfo) (context.Context, connector.HookToken) {
	if h.cfg.Propagator != nil && info.Metadata != nil {
		ctx = h.cfg.Propagator.Extract(ctx, propagation.MapCarrier(info.Metadata))
	}

	if !h.cfg.EnableTracing {
		return ctx, &spanToken{startTime: time.Now()}
	}

	attrs := append(baseAttributes(info),
		attribute.String("sse.call_id", info.CallID),
	)
	if info.FunctionName != "" {
		attrs = append(attrs, attribute.String("sse.function_name", info.FunctionName))
	}
	if info.AppID != "" {
		attrs = append(attrs, attribute.String("sse.app_id", info.AppID))
	}
	if info.UserID != "" {
		attrs = append(attrs, attribute.String("enduser.id", info.UserID))
	}
	attrs = append(attrs, h.cfg.CustomAttributes...)

	ctx, span := h.tracer.Start(ctx, spanName(info),
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attrs...),
	)
	return ctx, &spanToken{span: span, startTime: time.Now()}
}

// OnCallEnd records metrics and row statistics, and ends the span.
func (h *Hook) OnCallEnd(ctx context.Context, token connector.HookToken, info connector.CallInfo, stats *rowstream.Stats, err error) {
	st, ok := token.(*spanToken)
	if !ok {
		return
	}
	duration := time.Since(st.startTime)

	if h.cfg.EnableMetrics {
		result := "ok"
		if err != nil {
			result = "error"
		}
		opt := metric.WithAttributes(append(baseAttributes(info), attribute.String("status", result))...)
		h.requestCounter.Add(ctx, 1, opt)
		h.durationHistogram.Record(ctx, duration.Seconds(), opt)
		if stats != nil {
			h.rowsIn.Add(ctx, stats.InputRows(), opt)
			h.rowsOut.Add(ctx, stats.OutputRows(), opt)
		}
	}

	if st.span == nil || !st.span.IsRecording() {
		return
	}
	if stats != nil {
		st.span.SetAttributes(
			attribute.Int64("sse.input_bundles", stats.InputChunks()),
			attribute.Int64("sse.input_rows", stats.InputRows()),
			attribute.Int64("sse.output_bundles", stats.OutputChunks()),
			attribute.Int64("sse.output_rows", stats.OutputRows()),
		)
	}
	if err != nil {
		st.span.SetStatus(codes.Error, err.Error())
		if h.cfg.RecordExceptions {
			st.span.RecordError(err)
		}
		st.span.SetAttributes(attribute.String("rpc.grpc.status_code", status.Code(err).String()))
	} else {
		st.span.SetStatus(codes.Ok, "")
	}
	st.span.End()
}

func spanName(info connector.CallInfo) string {
	if info.FunctionName != "" {
		return fmt.Sprintf("%s/%s/%s", wire.ConnectorServiceName, info.Method, info.FunctionName)
	}
	return fmt.Sprintf("%s/%s", wire.ConnectorServiceName, info.Method)
}

func baseAttributes(info connector.CallInfo) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("rpc.system", rpcSystem),
		attribute.String("rpc.service", wire.ConnectorServiceName),
		attribute.String("rpc.method", info.Method),
		attribute.Int("sse.function_id", int(info.FunctionID)),
		attribute.String("sse.function_type", info.FunctionType.String()),
	}
}
