package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"goa.design/clue/log"
)

// ClueLogger writes block-lifecycle log lines ("block pushed", "block
// popped", "behavior fault") through goa.design/clue/log, picking up
// whatever format/debug settings the caller already stashed on the context
// via log.Context and log.WithFormat/log.WithDebug.
type ClueLogger struct{}

// ClueMetrics records the engine's dotted counters (engine.block.push,
// engine.block.pop, ...) against an OTEL Meter.
type ClueMetrics struct {
	meter metric.Meter
}

// ClueTracer opens the one span a block push starts ("block.push") against
// an OTEL Tracer.
type ClueTracer struct {
	tracer trace.Tracer
}

type clueSpan struct {
	span trace.Span
}

// NewClueLogger constructs a Logger backed by Clue.
func NewClueLogger() Logger { return ClueLogger{} }

// NewClueMetrics builds a Metrics recorder against the process-wide
// MeterProvider. Set one with otel.SetMeterProvider — clue.ConfigureOpenTelemetry
// does this — before the engine pushes its first block.
func NewClueMetrics() Metrics {
	return &ClueMetrics{meter: otel.Meter("github.com/fitscript/engine")}
}

// NewClueTracer builds a Tracer against the process-wide TracerProvider; see
// NewClueMetrics for provider configuration.
func NewClueTracer() Tracer {
	return &ClueTracer{tracer: otel.Tracer("github.com/fitscript/engine")}
}

func (ClueLogger) Debug(ctx context.Context, msg string, keyvals ...any) {
	log.Debug(ctx, logFields(msg, keyvals)...)
}

func (ClueLogger) Info(ctx context.Context, msg string, keyvals ...any) {
	log.Info(ctx, logFields(msg, keyvals)...)
}

func (ClueLogger) Warn(ctx context.Context, msg string, keyvals ...any) {
	fields := append(logFields(msg, keyvals), log.KV{K: "severity", V: "warning"})
	log.Warn(ctx, fields...)
}

func (ClueLogger) Error(ctx context.Context, msg string, keyvals ...any) {
	log.Error(ctx, nil, logFields(msg, keyvals)...)
}

// logFields prefixes keyvals (k1, v1, k2, v2, ...) with the log message
// itself, so every line carries "msg" plus whatever block/stack identifiers
// the engine passed (block_key, block_type, stack_depth, ...). A trailing
// key with no value pairs with nil; a non-string key is dropped rather than
// coerced.
func logFields(msg string, keyvals []any) []log.Fielder {
	fields := make([]log.Fielder, 0, len(keyvals)/2+1)
	fields = append(fields, log.KV{K: "msg", V: msg})
	for i := 0; i < len(keyvals); i += 2 {
		k, ok := keyvals[i].(string)
		if !ok {
			continue
		}
		var v any
		if i+1 < len(keyvals) {
			v = keyvals[i+1]
		}
		fields = append(fields, log.KV{K: k, V: v})
	}
	return fields
}

// IncCounter increments the named counter (e.g. "engine.block.push") by
// value, dimensioned by tags.
func (m *ClueMetrics) IncCounter(name string, value float64, tags ...string) {
	counter, err := m.meter.Float64Counter(name)
	if err != nil {
		return
	}
	counter.Add(context.Background(), value, metric.WithAttributes(dimensions(tags)...))
}

// RecordTimer records a duration, in seconds, against a histogram.
func (m *ClueMetrics) RecordTimer(name string, duration time.Duration, tags ...string) {
	histogram, err := m.meter.Float64Histogram(name)
	if err != nil {
		return
	}
	histogram.Record(context.Background(), duration.Seconds(), metric.WithAttributes(dimensions(tags)...))
}

// RecordGauge records a point-in-time value. OTEL has no synchronous gauge
// instrument, so this rides a histogram under a ".gauge" suffix, matching
// the engine's own dotted metric naming rather than an underscore suffix.
func (m *ClueMetrics) RecordGauge(name string, value float64, tags ...string) {
	histogram, err := m.meter.Float64Histogram(name + ".gauge")
	if err != nil {
		return
	}
	histogram.Record(context.Background(), value, metric.WithAttributes(dimensions(tags)...))
}

// dimensions pairs up tags (k1, v1, k2, v2, ...) into OTEL attributes for a
// metric's dimensions. A trailing tag with no value pairs with "".
func dimensions(tags []string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(tags)/2+1)
	for i := 0; i < len(tags); i += 2 {
		v := ""
		if i+1 < len(tags) {
			v = tags[i+1]
		}
		attrs = append(attrs, attribute.String(tags[i], v))
	}
	return attrs
}

// Start opens a span — the engine opens exactly one per block push, named
// "block.push" — and returns the context carrying it plus the Span handle.
func (t *ClueTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span) {
	spanCtx, span := t.tracer.Start(ctx, name, opts...)
	return spanCtx, &clueSpan{span: span}
}

// Span returns the span already active on ctx, if a block push opened one.
func (t *ClueTracer) Span(ctx context.Context) Span {
	return &clueSpan{span: trace.SpanFromContext(ctx)}
}

func (s *clueSpan) End(opts ...trace.SpanEndOption) { s.span.End(opts...) }

func (s *clueSpan) AddEvent(name string, attrs ...any) {
	s.span.AddEvent(name, trace.WithAttributes(eventAttrs(attrs)...))
}

func (s *clueSpan) SetStatus(code codes.Code, description string) { s.span.SetStatus(code, description) }

func (s *clueSpan) RecordError(err error, opts ...trace.EventOption) { s.span.RecordError(err, opts...) }

// eventAttrs converts a span event's keyvals (k1, v1, k2, v2, ...) into OTEL
// attributes, typing each value by its Go kind and falling back to an empty
// string attribute for a type it doesn't recognize or a non-string key.
func eventAttrs(keyvals []any) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(keyvals)/2)
	for i := 0; i < len(keyvals); i += 2 {
		key, _ := keyvals[i].(string)
		var val any
		if i+1 < len(keyvals) {
			val = keyvals[i+1]
		}
		switch v := val.(type) {
		case string:
			attrs = append(attrs, attribute.String(key, v))
		case int:
			attrs = append(attrs, attribute.Int(key, v))
		case int64:
			attrs = append(attrs, attribute.Int64(key, v))
		case float64:
			attrs = append(attrs, attribute.Float64(key, v))
		case bool:
			attrs = append(attrs, attribute.Bool(key, v))
		default:
			attrs = append(attrs, attribute.String(key, ""))
		}
	}
	return attrs
}
