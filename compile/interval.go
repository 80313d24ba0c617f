package compile

import (
	"github.com/fitscript/engine/behavior"
	"github.com/fitscript/engine/block"
	"github.com/fitscript/engine/fragment"
)

// IntervalStrategy compiles an EMOM-style block: a countdown timer that
// restarts every round, wrapping a fixed number of rounds.
type IntervalStrategy struct{}

// Match requires a timer fragment and the repeating_interval hint.
func (IntervalStrategy) Match(statements []fragment.Statement) bool {
	st := primary(statements)
	if st.Hints.Has(fragment.HintEffort) {
		return false
	}
	return timer(st).present && st.Hints.Has(fragment.HintRepeatingInterval)
}

// Compile builds a countdown TimerBehavior, an INTERVAL
// LoopCoordinatorBehavior, and the IntervalTimerRestartBehavior that
// restarts the timer whenever the loop's round count advances.
func (IntervalStrategy) Compile(statements []fragment.Statement, rt block.Runtime, j *JIT) *block.Block {
	st := primary(statements)
	t := timer(st)
	r := rounds(st)
	key := rt.IssueKey()
	ctx := block.NewContext(rt, key)

	tb := behavior.NewTimerBehavior(fragment.Down, t.durationMs, label(st), behavior.Primary)
	loop := behavior.NewLoopCoordinatorBehavior(st.Children, behavior.Interval)
	loop.TotalRounds = r.total
	if t.durationMs != nil {
		loop.IntervalDurationMs = *t.durationMs
	}
	loop.Timer = tb
	loop.Push = j.PushChild()
	history := behavior.NewHistoryBehavior(nil)
	sound := behavior.NewSoundBehavior(fragment.Down, t.durationMs, defaultCues())
	restart := behavior.NewIntervalTimerRestartBehavior(loop, tb, sound)

	behaviors := []block.Behavior{tb, history, loop, restart, sound}
	return block.New(key, statementIDs(statements), block.Interval, label(st), fragments(statements), behaviors, ctx)
}
