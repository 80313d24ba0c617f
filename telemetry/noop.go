package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// NoopLogger drops every Debug/Info/Warn/Error call. engine.New falls back
// to it when the caller passes a nil Logger, and the compile/engine test
// suites and cmd/workout-run's default run use it when they don't care
// about log output, only the block lifecycle's correctness.
type NoopLogger struct{}

// NoopMetrics drops every counter/timer/gauge recording.
type NoopMetrics struct{}

// NoopTracer hands back noopSpan for every Start/Span call, so code that
// unconditionally calls tracer.Start/span.End never needs a nil check.
type NoopTracer struct{}

type noopSpan struct{}

// NewNoopLogger constructs a Logger that discards everything.
func NewNoopLogger() Logger { return NoopLogger{} }

// NewNoopMetrics constructs a Metrics recorder that discards everything.
func NewNoopMetrics() Metrics { return NoopMetrics{} }

// NewNoopTracer constructs a Tracer that only ever produces no-op spans.
func NewNoopTracer() Tracer { return NoopTracer{} }

func (NoopLogger) Debug(context.Context, string, ...any) {}
func (NoopLogger) Info(context.Context, string, ...any)  {}
func (NoopLogger) Warn(context.Context, string, ...any)  {}
func (NoopLogger) Error(context.Context, string, ...any) {}

func (NoopMetrics) IncCounter(string, float64, ...string)        {}
func (NoopMetrics) RecordTimer(string, time.Duration, ...string) {}
func (NoopMetrics) RecordGauge(string, float64, ...string)       {}

// Start returns ctx unchanged alongside a no-op span.
func (NoopTracer) Start(ctx context.Context, _ string, _ ...trace.SpanStartOption) (context.Context, Span) {
	return ctx, noopSpan{}
}

// Span always returns a no-op span, regardless of what ctx carries.
func (NoopTracer) Span(context.Context) Span { return noopSpan{} }

func (noopSpan) End(...trace.SpanEndOption)               {}
func (noopSpan) AddEvent(string, ...any)                  {}
func (noopSpan) SetStatus(codes.Code, string)             {}
func (noopSpan) RecordError(error, ...trace.EventOption)  {}
