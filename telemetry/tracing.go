// OpenTelemetry tracing for connection attempts and liveness transitions.
package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Tracer wraps OpenTelemetry tracing with connection-specific helpers.
type Tracer struct {
	tracer trace.Tracer
}

var (
	globalTracer *Tracer
	tracerMu     sync.RWMutex
)

// SetGlobalTracer sets the global tracer instance.
func SetGlobalTracer(t *Tracer) {
	tracerMu.Lock()
	defer tracerMu.Unlock()
	globalTracer = t
}

// GetTracer returns the global tracer, or a no-op tracer if not set.
func GetTracer() *Tracer {
	tracerMu.RLock()
	defer tracerMu.RUnlock()
	if globalTracer == nil {
		return &Tracer{tracer: noop.NewTracerProvider().Tracer("")}
	}
	return globalTracer
}

// NewTracer creates a new tracer with the given name from the global provider.
func NewTracer(name string) *Tracer {
	return &Tracer{tracer: otel.Tracer(name)}
}

// NewTracerFromProvider creates a tracer bound to a specific provider.
func NewTracerFromProvider(tp trace.TracerProvider, name string) *Tracer {
	return &Tracer{tracer: tp.Tracer(name)}
}

// StartSpan starts a new span with the given name.
func (t *Tracer) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}

// --- Connection Spans ---

// ConnectSpanOptions describes the outcome of one connection attempt.
type ConnectSpanOptions struct {
	Role     string
	Endpoint string
	Failures int           // consecutive failures before this attempt
	Delay    time.Duration // backoff delay that preceded this attempt
}

// StartConnectSpan starts a span covering one transport attempt, from the
// factory call until the connection opens or fails.
func (t *Tracer) StartConnectSpan(ctx context.Context, role string) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, "lifeline.connect", trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(attribute.String("lifeline.role", role))
	return ctx, span
}

// EndConnectSpan ends a connection span with attributes.
func (t *Tracer) EndConnectSpan(span trace.Span, opts ConnectSpanOptions, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("lifeline.role", opts.Role),
		attribute.Int("lifeline.reconnect.failures", opts.Failures),
	}
	if opts.Endpoint != "" {
		attrs = append(attrs, attribute.String("lifeline.endpoint", opts.Endpoint))
	}
	if opts.Delay > 0 {
		attrs = append(attrs, attribute.Int64("lifeline.reconnect.delay_ms", opts.Delay.Milliseconds()))
	}

	span.SetAttributes(attrs...)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End()
}

// --- Liveness Events ---

// RecordLiveness emits a short span marking a liveness transition
// ("signal-timeout" or "signal-recovered").
func (t *Tracer) RecordLiveness(ctx context.Context, role, endpoint, transition string) {
	_, span := t.tracer.Start(ctx, "lifeline."+transition, trace.WithSpanKind(trace.SpanKindInternal))
	span.SetAttributes(
		attribute.String("lifeline.role", role),
		attribute.String("lifeline.endpoint", endpoint),
	)
	span.End()
}
