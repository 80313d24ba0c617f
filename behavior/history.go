package behavior

import (
	"github.com/fitscript/engine/block"
	"github.com/fitscript/engine/memory"
	"github.com/google/uuid"
)

// HistoryBehavior allocates and maintains the ExecutionSpan a block reports
// through block.Spanner: opened active on mount, finalized completed on
// pop. ParentSpanID is filled in by the stack driver, which alone knows the
// span id of the block beneath this one (see engine.Runtime.PushBlock).
type HistoryBehavior struct {
	DebugMetadata map[string]any

	ref  memory.Ref
	span block.ExecutionSpan
	has  bool
}

// NewHistoryBehavior constructs a HistoryBehavior with the given static
// debug metadata, attached at compile time.
func NewHistoryBehavior(debugMetadata map[string]any) *HistoryBehavior {
	return &HistoryBehavior{DebugMetadata: debugMetadata}
}

// OnPush opens the span, stamping the parent's span id (resolved by the
// driver, which alone knows the block beneath this one on the stack).
func (h *HistoryBehavior) OnPush(rt block.Runtime, b *block.Block, opts block.Options) []block.Action {
	start := rt.Now()
	if opts.StartTime != nil {
		start = *opts.StartTime
	}
	span := block.ExecutionSpan{
		ID:            uuid.NewString(),
		BlockID:       b.Key,
		ParentSpanID:  opts.ParentSpanID,
		Type:          b.BlockType,
		Label:         b.Label,
		StartTime:     start,
		Status:        block.SpanActive,
		Fragments:     b.Fragments,
		DebugMetadata: h.DebugMetadata,
		StackLevel:    rt.StackDepth(),
	}
	ref, err := b.Context.Allocate("span.execution", span, memory.Private)
	if err != nil {
		return nil
	}
	h.ref, h.span, h.has = ref, span, true
	return nil
}

// OnPop finalizes the span as completed.
func (h *HistoryBehavior) OnPop(rt block.Runtime, b *block.Block, opts block.Options) []block.Action {
	if !h.has {
		return nil
	}
	end := rt.Now()
	if opts.CompletedAt != nil {
		end = *opts.CompletedAt
	}
	h.span.EndTime = end
	h.span.Status = block.SpanCompleted
	b.Context.Set(h.ref, h.span)
	return nil
}

// CurrentSpan returns the span this behavior is tracking, satisfying
// block.Spanner.
func (h *HistoryBehavior) CurrentSpan() (block.ExecutionSpan, bool) {
	return h.span, h.has
}
