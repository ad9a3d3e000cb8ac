package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName is the tracer and meter name used by the engine.
const InstrumentationName = "github.com/jonwraymond/toolengine"

// Attempt statuses.
const (
	StatusSuccess   = "success"
	StatusFailure   = "failure"
	StatusError     = "error"
	StatusTimeout   = "timeout"
	StatusCancelled = "cancelled"
	StatusStopped   = "stopped"
)

// Metric names.
const (
	MetricAttempts        = "toolengine.attempts"
	MetricAttemptDuration = "toolengine.attempt.duration_ms"
	MetricActive          = "toolengine.active"
	MetricRetries         = "toolengine.retries"
	MetricBatchTasks      = "toolengine.batch.tasks"
)

// Instruments holds the tracer and metric instruments used by the engine.
// A nil *Instruments is valid and records nothing.
type Instruments struct {
	tracer   trace.Tracer
	attempts metric.Int64Counter
	duration metric.Float64Histogram
	active   metric.Int64UpDownCounter
	retries  metric.Int64Counter
	batch    metric.Int64Counter
}

// New creates instruments from the given providers. Nil providers fall back
// to the global ones.
func New(tp trace.TracerProvider, mp metric.MeterProvider) (*Instruments, error) {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(InstrumentationName)

	ins := &Instruments{tracer: tp.Tracer(InstrumentationName)}
	var err error
	if ins.attempts, err = meter.Int64Counter(MetricAttempts,
		metric.WithDescription("Tool execution attempts by status")); err != nil {
		return nil, err
	}
	if ins.duration, err = meter.Float64Histogram(MetricAttemptDuration,
		metric.WithDescription("Tool execution attempt duration"),
		metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	if ins.active, err = meter.Int64UpDownCounter(MetricActive,
		metric.WithDescription("Attempts currently in flight")); err != nil {
		return nil, err
	}
	if ins.retries, err = meter.Int64Counter(MetricRetries,
		metric.WithDescription("Retries scheduled after a failed attempt")); err != nil {
		return nil, err
	}
	if ins.batch, err = meter.Int64Counter(MetricBatchTasks,
		metric.WithDescription("Batch tasks by status")); err != nil {
		return nil, err
	}
	return ins, nil
}

// Default creates instruments on the global providers. Instrument creation
// on the global providers does not fail in practice; if it does, nil is
// returned, which records nothing.
func Default() *Instruments {
	ins, err := New(nil, nil)
	if err != nil {
		return nil
	}
	return ins
}

// StartAttempt starts a span for one tool execution attempt.
func (i *Instruments) StartAttempt(ctx context.Context, toolName, executionID string) (context.Context, trace.Span) {
	if i == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	i.active.Add(ctx, 1, metric.WithAttributes(attribute.String("tool", toolName)))
	return i.tracer.Start(ctx, "toolengine.attempt",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("toolengine.tool", toolName),
			attribute.String("toolengine.execution_id", executionID),
		),
	)
}

// EndAttempt records the attempt's status and duration and ends span.
func (i *Instruments) EndAttempt(ctx context.Context, span trace.Span, toolName, status string, d time.Duration, err error) {
	if i == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("tool", toolName),
		attribute.String("status", status),
	)
	i.active.Add(ctx, -1, metric.WithAttributes(attribute.String("tool", toolName)))
	i.attempts.Add(ctx, 1, attrs)
	i.duration.Record(ctx, float64(d.Microseconds())/1000, attrs)

	span.SetAttributes(attribute.String("toolengine.status", status))
	if err != nil {
		span.RecordError(err)
	}
	if status == StatusSuccess {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetStatus(codes.Error, status)
	}
	span.End()
}

// RecordRetry counts a scheduled retry of operation.
func (i *Instruments) RecordRetry(ctx context.Context, operation string, attempt int, delay time.Duration) {
	if i == nil {
		return
	}
	i.retries.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.Int("attempt", attempt),
	))
	trace.SpanFromContext(ctx).AddEvent("toolengine.retry", trace.WithAttributes(
		attribute.Int("attempt", attempt),
		attribute.Int64("delay_ms", delay.Milliseconds()),
	))
}

// RecordBatchTask counts a finished batch task.
func (i *Instruments) RecordBatchTask(ctx context.Context, status string) {
	if i == nil {
		return
	}
	i.batch.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}
