// Package spansink defines the narrow interface a durable span store
// implements to receive completion records as an ordinary output
// subscriber. The engine never depends on this package: it depends only on
// engine.OutputSubscriber, the plain function type every listener — durable
// or not — is registered as.
package spansink

import (
	"context"

	"github.com/fitscript/engine/block"
)

// Store persists a completed ExecutionSpan. Implementations are
// write-only from the engine's point of view: nothing in the core module
// ever reads a span back out of a Store.
type Store interface {
	AppendSpan(ctx context.Context, span block.ExecutionSpan) error
}

// Subscriber adapts a Store into an engine.OutputSubscriber, the shape
// SubscribeToOutput expects. Errors are logged and swallowed rather than
// propagated — a durable sink is exercised exactly like any other output
// listener (no special-casing for write failures, matching the engine's
// "subscriber errors are caught and logged" rule for every listener).
func Subscriber(ctx context.Context, store Store, logFn func(err error)) func(record block.OutputRecord) {
	return func(record block.OutputRecord) {
		if err := store.AppendSpan(ctx, record.TimeSpan); err != nil && logFn != nil {
			logFn(err)
		}
	}
}
