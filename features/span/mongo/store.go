// Package mongo wires the spansink.Store interface to the MongoDB client.
package mongo

import (
	"context"
	"errors"

	"github.com/fitscript/engine/block"
	clientsmongo "github.com/fitscript/engine/features/span/mongo/clients/mongo"
)

// Options configures the Store wrapper.
type Options struct {
	Client clientsmongo.Client
}

// Store implements spansink.Store by delegating to the Mongo client.
type Store struct {
	client clientsmongo.Client
}

// NewStore builds a Mongo-backed span store using the provided client.
func NewStore(opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("client is required")
	}
	return &Store{client: opts.Client}, nil
}

// NewStoreFromMongo is a helper that instantiates the underlying client using
// the given options.
func NewStoreFromMongo(opts clientsmongo.Options) (*Store, error) {
	client, err := clientsmongo.New(opts)
	if err != nil {
		return nil, err
	}
	return NewStore(Options{Client: client})
}

// AppendSpan persists span, upserting on its (block key, span id) pair so a
// re-emitted completion record (there is none in practice — each span
// completes and is emitted exactly once — but the write is idempotent
// regardless) never produces a duplicate document.
func (s *Store) AppendSpan(ctx context.Context, span block.ExecutionSpan) error {
	return s.client.AppendSpan(ctx, span)
}
