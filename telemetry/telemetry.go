// Package telemetry defines the narrow logging/metrics/tracing interfaces
// the execution engine depends on, plus two backends for them: Clue/OTEL for
// the CLI and production wiring, no-ops for tests and any run that doesn't
// care about observability output. Apart from the Mongo span client's use of
// goa.design/clue/health, nothing outside this package imports Clue or
// OpenTelemetry directly, so compile, behavior, block, and memory
// stay free of either dependency — engine.Runtime is the only caller that
// holds a Logger/Metrics/Tracer, injected through engine.New rather than a
// package-level global.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Logger is the structured log sink the engine writes block-lifecycle
// events to: "block pushed"/"block popped" from Runtime.PushBlock/PopBlock,
// "behavior fault" from a recovered behavior panic. keyvals are mostly
// block/stack identifiers — block_key, block_type, stack_depth — and, on
// fault and contract-violation lines, the recovered value or error text;
// msg carries the message itself.
type Logger interface {
	Debug(ctx context.Context, msg string, keyvals ...any)
	Info(ctx context.Context, msg string, keyvals ...any)
	Warn(ctx context.Context, msg string, keyvals ...any)
	Error(ctx context.Context, msg string, keyvals ...any)
}

// Metrics records the engine's own dotted counters, engine.block.push and
// engine.block.pop, each tagged with block_type. RecordTimer and
// RecordGauge exist for a caller's own instrumentation — a features/span
// sink timing its writes, say — since the engine itself only calls
// IncCounter today.
type Metrics interface {
	IncCounter(name string, value float64, tags ...string)
	RecordTimer(name string, duration time.Duration, tags ...string)
	RecordGauge(name string, value float64, tags ...string)
}

// Tracer opens the single span Runtime.PushBlock starts per block push,
// named "block.push", so a trace backend can render the call tree of an
// executing workout. Span retrieves whatever span is already active on a
// context, for code that doesn't hold the one Start returned.
type Tracer interface {
	Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span)
	Span(ctx context.Context) Span
}

// Span is the handle PushBlock holds for the span it opened, closed with a
// deferred End when PushBlock returns, after the actions Mount returned
// have been queued.
//
//	tctx, span := tracer.Start(ctx, "block.push")
//	defer span.End()
//	span.AddEvent("mounted", "block_type", string(b.BlockType))
type Span interface {
	End(opts ...trace.SpanEndOption)
	AddEvent(name string, attrs ...any)
	SetStatus(code codes.Code, description string)
	RecordError(err error, opts ...trace.EventOption)
}
