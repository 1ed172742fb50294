// Package observability exports operation counts, latencies and in-flight gauges through
// OpenTelemetry, scraped from the default Prometheus registry.
package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Observability is safe to use as a nil pointer; every method then does nothing.
type Observability struct {
	provider *metric.MeterProvider
	ops      otelmetric.Int64Counter
	latency  otelmetric.Float64Histogram
	inflight otelmetric.Int64UpDownCounter
}

// New registers a Prometheus exporter and makes its provider the global one.
func New(serviceName string) (*Observability, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("prometheus exporter: %w", err)
	}
	o, err := newWithReader(serviceName, exporter)
	if err != nil {
		return nil, err
	}
	otel.SetMeterProvider(o.provider)
	return o, nil
}

func newWithReader(serviceName string, reader metric.Reader) (*Observability, error) {
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	meter := provider.Meter(serviceName)

	ops, err := meter.Int64Counter("onboarding.operations",
		otelmetric.WithDescription("Onboarding operations by outcome"))
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram("onboarding.operation.duration",
		otelmetric.WithDescription("Onboarding operation latency"),
		otelmetric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	inflight, err := meter.Int64UpDownCounter("onboarding.operations.inflight",
		otelmetric.WithDescription("Onboarding operations currently running"))
	if err != nil {
		return nil, err
	}

	return &Observability{provider: provider, ops: ops, latency: latency, inflight: inflight}, nil
}

// Noop records nothing.
func Noop() *Observability {
	return nil
}

// Track marks op as in flight. Call the returned func once with the outcome.
func (o *Observability) Track(ctx context.Context, op string) func(status string) {
	if o == nil {
		return func(string) {}
	}
	opAttr := otelmetric.WithAttributes(attribute.String("operation", op))
	o.inflight.Add(ctx, 1, opAttr)
	start := time.Now()

	return func(status string) {
		o.inflight.Add(ctx, -1, opAttr)
		o.Record(ctx, op, status, time.Since(start))
	}
}

// Record counts one finished op.
func (o *Observability) Record(ctx context.Context, op, status string, elapsed time.Duration) {
	if o == nil {
		return
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("status", status),
	)
	o.ops.Add(ctx, 1, attrs)
	o.latency.Record(ctx, float64(elapsed)/float64(time.Millisecond), attrs)
}

// Shutdown flushes the provider within ctx.
func (o *Observability) Shutdown(ctx context.Context) error {
	if o == nil {
		return nil
	}
	return o.provider.Shutdown(ctx)
}
