package behavior

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fitscript/engine/block"
	"github.com/fitscript/engine/fragment"
	"github.com/fitscript/engine/hooks"
)

func testCues() []Cue {
	return []Cue{
		{ID: "cue-3", ThresholdMs: 3000, Sound: "beep-short"},
		{ID: "cue-1", ThresholdMs: 1000, Sound: "beep-long"},
	}
}

func TestSoundBehaviorFiresOnThresholdCrossing(t *testing.T) {
	rt := newFakeRuntime()
	sb := NewSoundBehavior(fragment.Down, durationMs(5000), testCues())
	b := newTestBlock(rt, "block-1", sb)
	require.Nil(t, sb.OnPush(rt, b, block.Options{}))

	actions := sb.OnEvent(rt, b, hooks.Event{Name: "timer:tick", Data: TimerTickData{RemainingMs: 2500, BlockID: "block-1"}})
	require.Len(t, actions, 1)
	require.Equal(t, testCues()[0], actions[0].Payload)
}

func TestSoundBehaviorNeverRefiresTriggeredCue(t *testing.T) {
	rt := newFakeRuntime()
	sb := NewSoundBehavior(fragment.Down, durationMs(5000), testCues())
	b := newTestBlock(rt, "block-1", sb)
	_ = sb.OnPush(rt, b, block.Options{})

	_ = sb.OnEvent(rt, b, hooks.Event{Name: "timer:tick", Data: TimerTickData{RemainingMs: 2500, BlockID: "block-1"}})
	actions := sb.OnEvent(rt, b, hooks.Event{Name: "timer:tick", Data: TimerTickData{RemainingMs: 2400, BlockID: "block-1"}})
	require.Empty(t, actions)
}

func TestSoundBehaviorFiresMultipleCuesInOneTick(t *testing.T) {
	rt := newFakeRuntime()
	sb := NewSoundBehavior(fragment.Down, durationMs(5000), testCues())
	b := newTestBlock(rt, "block-1", sb)
	_ = sb.OnPush(rt, b, block.Options{})

	actions := sb.OnEvent(rt, b, hooks.Event{Name: "timer:tick", Data: TimerTickData{RemainingMs: 900, BlockID: "block-1"}})
	require.Len(t, actions, 2)
}

func TestSoundBehaviorResetUntriggersAllCues(t *testing.T) {
	rt := newFakeRuntime()
	sb := NewSoundBehavior(fragment.Down, durationMs(5000), testCues())
	b := newTestBlock(rt, "block-1", sb)
	_ = sb.OnPush(rt, b, block.Options{})
	_ = sb.OnEvent(rt, b, hooks.Event{Name: "timer:tick", Data: TimerTickData{RemainingMs: 900, BlockID: "block-1"}})

	sb.Reset(b)
	actions := sb.OnEvent(rt, b, hooks.Event{Name: "timer:tick", Data: TimerTickData{RemainingMs: 900, BlockID: "block-1"}})
	require.Len(t, actions, 2)
}

func TestSoundBehaviorIgnoresOtherBlocksTicks(t *testing.T) {
	rt := newFakeRuntime()
	sb := NewSoundBehavior(fragment.Down, durationMs(5000), testCues())
	b := newTestBlock(rt, "block-1", sb)
	_ = sb.OnPush(rt, b, block.Options{})

	actions := sb.OnEvent(rt, b, hooks.Event{Name: "timer:tick", Data: TimerTickData{RemainingMs: 500, BlockID: "other-block"}})
	require.Empty(t, actions)
}
