// Package behavior implements the pluggable lifecycle participants a
// compilation strategy attaches to a Block: timers, loop coordination,
// completion detection, history/span recording, and sound cues. Behaviors
// hold no ambient durable state of their own — everything a behavior needs
// to survive across calls lives in the block's memory.Context; a behavior
// instance only caches the small amount of derived state (a completion
// flag, a last-seen round number) that must be recomputed, not persisted.
package behavior

import (
	"time"

	"github.com/fitscript/engine/block"
	"github.com/fitscript/engine/fragment"
	"github.com/fitscript/engine/hooks"
	"github.com/fitscript/engine/memory"
)

// Priority distinguishes the authoritative workout clock (Primary) from any
// secondary timer layered on the same block.
type Priority string

const (
	Primary   Priority = "primary"
	Secondary Priority = "secondary"
)

// TimerSpan is one open-or-closed interval of a timer's running time. A
// timer that restarts (EMOM) accumulates one TimerSpan per interval.
type TimerSpan struct {
	Start time.Time
	Stop  *time.Time
}

// TimerTickData is the payload of a timer:tick event.
type TimerTickData struct {
	ElapsedMs   int64
	RemainingMs int64
	Direction   fragment.Direction
	BlockID     block.Key
}

// TimerCompleteData is the payload of a timer:complete event.
type TimerCompleteData struct {
	BlockID block.Key
}

// TimerBehavior is the authoritative workout clock attached to Timer,
// Interval, and TimeBoundRounds blocks. It tracks elapsed/remaining time
// across its timer.spans memory ref and emits timer:tick / timer:complete.
type TimerBehavior struct {
	Direction  fragment.Direction
	DurationMs *int64
	Label      string
	Priority   Priority

	spansRef   memory.Ref
	runningRef memory.Ref
	hasRefs    bool
	complete   bool
}

// NewTimerBehavior constructs a TimerBehavior. durationMs is nil for a
// count-up timer with no configured limit.
func NewTimerBehavior(direction fragment.Direction, durationMs *int64, label string, priority Priority) *TimerBehavior {
	return &TimerBehavior{Direction: direction, DurationMs: durationMs, Label: label, Priority: priority}
}

// OnPush opens the timer's first span.
func (t *TimerBehavior) OnPush(rt block.Runtime, b *block.Block, opts block.Options) []block.Action {
	now := rt.Now()
	if opts.StartTime != nil {
		now = *opts.StartTime
	}
	spansRef, err := b.Context.Allocate("timer.spans", []TimerSpan{{Start: now}}, memory.Private)
	if err != nil {
		return nil
	}
	runningRef, err := b.Context.Allocate("timer.isRunning", true, memory.Private)
	if err != nil {
		return nil
	}
	t.spansRef, t.runningRef, t.hasRefs = spansRef, runningRef, true
	return nil
}

// OnEvent reacts to "tick" by computing elapsed/remaining time and emitting
// timer:tick, and timer:complete once a countdown's duration is exhausted.
func (t *TimerBehavior) OnEvent(rt block.Runtime, b *block.Block, event hooks.Event) []block.Action {
	if event.Name != "tick" || !t.hasRefs || t.complete {
		return nil
	}
	at := event.Timestamp
	if at.IsZero() {
		at = rt.Now()
	}

	elapsed := t.elapsedMs(b, at)
	var remaining int64
	if t.DurationMs != nil {
		remaining = *t.DurationMs - elapsed
		if remaining < 0 {
			remaining = 0
		}
	}

	tickData := TimerTickData{ElapsedMs: elapsed, RemainingMs: remaining, Direction: t.Direction, BlockID: b.Key}
	// Both actions queue whatever the event's handlers return (a
	// SoundBehavior's PlaySoundAction, a loop's re-advance).
	actions := []block.Action{{
		Type:    "timer:tick",
		Payload: tickData,
		Do: func(rt block.Runtime) {
			rt.QueueActions(rt.Dispatch(hooks.Event{Name: "timer:tick", Timestamp: at, Data: tickData}))
		},
	}}

	if t.isDone(elapsed) {
		t.complete = true
		t.closeSpan(b, at)
		completeData := TimerCompleteData{BlockID: b.Key}
		actions = append(actions, block.Action{
			Type:    "timer:complete",
			Payload: completeData,
			Do: func(rt block.Runtime) {
				rt.QueueActions(rt.Dispatch(hooks.Event{Name: "timer:complete", Timestamp: at, Data: completeData}))
			},
		})
	}
	return actions
}

// Restart closes the current span (if still open) and opens a fresh one at
// now, clearing any latched completion. Used by IntervalTimerRestartBehavior
// to turn a countdown timer into an EMOM clock.
func (t *TimerBehavior) Restart(b *block.Block, now time.Time) {
	if !t.hasRefs {
		return
	}
	spans := t.currentSpans(b)
	if n := len(spans); n > 0 && spans[n-1].Stop == nil {
		stop := now
		spans[n-1].Stop = &stop
	}
	spans = append(spans, TimerSpan{Start: now})
	b.Context.Set(t.spansRef, spans)
	b.Context.Set(t.runningRef, true)
	t.complete = false
}

// IsRunning reports the last-committed value of the timer's running flag.
func (t *TimerBehavior) IsRunning(b *block.Block) bool {
	if !t.hasRefs {
		return false
	}
	v, ok := b.Context.Get(t.runningRef)
	if !ok {
		return false
	}
	running, _ := v.(bool)
	return running
}

// IsComplete reports whether the timer has reached its configured duration.
// It makes TimerBehavior a block.Completer, so every block carrying one
// (Timer, Interval, TimeBoundRounds) reports complete once its timer does,
// until Restart clears the flag.
func (t *TimerBehavior) IsComplete() bool { return t.complete }

func (t *TimerBehavior) isDone(elapsed int64) bool {
	if t.Direction != fragment.Down || t.DurationMs == nil {
		return false
	}
	return elapsed >= *t.DurationMs
}

func (t *TimerBehavior) elapsedMs(b *block.Block, at time.Time) int64 {
	spans := t.currentSpans(b)
	if len(spans) == 0 {
		return 0
	}
	last := spans[len(spans)-1]
	d := at.Sub(last.Start)
	if d < 0 {
		d = 0
	}
	return d.Milliseconds()
}

func (t *TimerBehavior) currentSpans(b *block.Block) []TimerSpan {
	v, ok := b.Context.Get(t.spansRef)
	if !ok {
		return nil
	}
	spans, _ := v.([]TimerSpan)
	return spans
}

func (t *TimerBehavior) closeSpan(b *block.Block, at time.Time) {
	spans := t.currentSpans(b)
	if len(spans) == 0 {
		return
	}
	stop := at
	spans[len(spans)-1].Stop = &stop
	b.Context.Set(t.spansRef, spans)
	b.Context.Set(t.runningRef, false)
}
