package spansink

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fitscript/engine/block"
)

type fakeStore struct {
	spans []block.ExecutionSpan
	err   error
}

func (s *fakeStore) AppendSpan(ctx context.Context, span block.ExecutionSpan) error {
	s.spans = append(s.spans, span)
	return s.err
}

func TestSubscriberAppendsSpan(t *testing.T) {
	store := &fakeStore{}
	sub := Subscriber(context.Background(), store, nil)

	span := block.ExecutionSpan{ID: "span-1", BlockID: "block-1"}
	sub(block.OutputRecord{SourceBlockKey: "block-1", TimeSpan: span})

	require.Equal(t, []block.ExecutionSpan{span}, store.spans)
}

func TestSubscriberLogsOnError(t *testing.T) {
	store := &fakeStore{err: errors.New("write failed")}
	var logged error
	sub := Subscriber(context.Background(), store, func(err error) { logged = err })

	sub(block.OutputRecord{TimeSpan: block.ExecutionSpan{ID: "span-1"}})

	require.EqualError(t, logged, "write failed")
}
