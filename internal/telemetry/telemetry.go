// Package telemetry holds the OpenTelemetry instruments recorded by the
// server. The server only uses the otel API; an embedding process decides
// where the data goes by installing global providers.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "basic-lsp-server"

// Telemetry holds all server instruments.
type Telemetry struct {
	tracer trace.Tracer

	messages  metric.Int64Counter
	failures  metric.Int64Counter
	published metric.Int64Histogram
	analysis  metric.Float64Histogram
}

// New creates instruments from the global otel providers, or no-op ones when
// enabled is false.
func New(enabled bool) (*Telemetry, error) {
	if !enabled {
		return NewWithProviders(metricnoop.NewMeterProvider(), tracenoop.NewTracerProvider())
	}
	return NewWithProviders(otel.GetMeterProvider(), otel.GetTracerProvider())
}

// NewWithProviders creates instruments from explicit providers.
func NewWithProviders(mp metric.MeterProvider, tp trace.TracerProvider) (*Telemetry, error) {
	meter := mp.Meter(instrumentationName)
	t := &Telemetry{tracer: tp.Tracer(instrumentationName)}
	var err error

	t.messages, err = meter.Int64Counter("lsp.messages.received",
		metric.WithDescription("Number of protocol messages received"))
	if err != nil {
		return nil, err
	}

	t.failures, err = meter.Int64Counter("lsp.handler.failures",
		metric.WithDescription("Number of handler invocations that returned an error"))
	if err != nil {
		return nil, err
	}

	t.published, err = meter.Int64Histogram("lsp.diagnostics.published",
		metric.WithDescription("Diagnostics per publishDiagnostics notification"))
	if err != nil {
		return nil, err
	}

	t.analysis, err = meter.Float64Histogram("lsp.analysis.duration_seconds",
		metric.WithDescription("Time spent analyzing one document"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return t, nil
}

// Disabled returns no-op instruments.
func Disabled() *Telemetry {
	t, err := New(false)
	if err != nil {
		// The no-op providers never fail.
		panic(err)
	}
	return t
}

// StartMessage counts a received message and starts its dispatch span.
func (t *Telemetry) StartMessage(ctx context.Context, method, kind, sessionID string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("rpc.method", method),
		attribute.String("rpc.kind", kind),
	}
	t.messages.Add(ctx, 1, metric.WithAttributes(attrs...))

	return t.tracer.Start(ctx, method, trace.WithAttributes(
		append(attrs, attribute.String("session.id", sessionID))...,
	))
}

// HandlerFailed counts a handler error.
func (t *Telemetry) HandlerFailed(ctx context.Context, method string) {
	t.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("rpc.method", method)))
}

// DiagnosticsPublished records the size of one publish notification.
func (t *Telemetry) DiagnosticsPublished(ctx context.Context, count int) {
	t.published.Record(ctx, int64(count))
}

// AnalysisFinished records how long one analysis took.
func (t *Telemetry) AnalysisFinished(ctx context.Context, d time.Duration) {
	t.analysis.Record(ctx, d.Seconds())
}
