package behavior

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fitscript/engine/block"
	"github.com/fitscript/engine/hooks"
)

func TestCompletionBehaviorChecksOnPush(t *testing.T) {
	rt := newFakeRuntime()
	cb := NewCompletionBehavior(func(*block.Block) bool { return true }, nil, true, false)
	b := newTestBlock(rt, "block-1", cb)

	actions := cb.OnPush(rt, b, block.Options{})
	require.Len(t, actions, 1)
	require.Equal(t, "block:complete", actions[0].Type)
	require.True(t, cb.IsComplete())
}

func TestCompletionBehaviorSkipsWhenNotConfiguredToCheck(t *testing.T) {
	rt := newFakeRuntime()
	cb := NewCompletionBehavior(func(*block.Block) bool { return true }, nil, false, false)
	b := newTestBlock(rt, "block-1", cb)

	require.Nil(t, cb.OnPush(rt, b, block.Options{}))
	require.Nil(t, cb.OnNext(rt, b, block.Options{}))
	require.False(t, cb.IsComplete())
}

func TestCompletionBehaviorLatchesAndIsIdempotent(t *testing.T) {
	rt := newFakeRuntime()
	calls := 0
	cb := NewCompletionBehavior(func(*block.Block) bool { calls++; return true }, nil, false, true)
	b := newTestBlock(rt, "block-1", cb)

	actions := cb.OnNext(rt, b, block.Options{})
	require.Len(t, actions, 1)
	require.True(t, cb.IsComplete())

	// A second OnNext must not re-evaluate the predicate.
	actions = cb.OnNext(rt, b, block.Options{})
	require.Nil(t, actions)
	require.Equal(t, 1, calls)
}

func TestCompletionBehaviorEvaluatesOnTriggerEvent(t *testing.T) {
	rt := newFakeRuntime()
	cb := NewCompletionBehavior(func(*block.Block) bool { return true }, []string{"next"}, false, false)
	b := newTestBlock(rt, "block-1", cb)

	require.Nil(t, cb.OnEvent(rt, b, hooks.Event{Name: "tick"}))
	require.False(t, cb.IsComplete())

	actions := cb.OnEvent(rt, b, hooks.Event{Name: "next"})
	require.Len(t, actions, 1)
	require.True(t, cb.IsComplete())
}

func TestCompletionBehaviorDispatchesBlockCompleteEvent(t *testing.T) {
	rt := newFakeRuntime()
	cb := NewCompletionBehavior(func(*block.Block) bool { return true }, []string{"next"}, false, false)
	b := newTestBlock(rt, "block-1", cb)

	var seen hooks.Event
	_, _ = rt.bus.Register("block:complete", func(e hooks.Event) []block.Action {
		seen = e
		return nil
	}, "observer", hooks.Options{})

	actions := cb.OnEvent(rt, b, hooks.Event{Name: "next"})
	rt.QueueActions(actions)
	require.Equal(t, "block:complete", seen.Name)
	require.Equal(t, block.Key("block-1"), seen.Data)
}
