package compile

import (
	"github.com/fitscript/engine/behavior"
	"github.com/fitscript/engine/block"
	"github.com/fitscript/engine/fragment"
)

// TimeBoundRoundsStrategy compiles a countdown timer wrapping an
// unbounded-round loop that completes only when the timer does — an AMRAP.
type TimeBoundRoundsStrategy struct{}

// Match requires a timer fragment plus a rounds fragment, the time_bound
// hint, or an explicit "amrap" action fragment.
func (TimeBoundRoundsStrategy) Match(statements []fragment.Statement) bool {
	st := primary(statements)
	if st.Hints.Has(fragment.HintEffort) {
		return false
	}
	t := timer(st)
	if !t.present {
		return false
	}
	return rounds(st).present || st.Hints.Has(fragment.HintTimeBound) || hasAmrapAction(st)
}

// Compile builds a countdown TimerBehavior and a TIME_BOUND
// LoopCoordinatorBehavior whose completion delegates entirely to the timer.
func (TimeBoundRoundsStrategy) Compile(statements []fragment.Statement, rt block.Runtime, j *JIT) *block.Block {
	st := primary(statements)
	t := timer(st)
	key := rt.IssueKey()
	ctx := block.NewContext(rt, key)

	tb := behavior.NewTimerBehavior(fragment.Down, t.durationMs, label(st), behavior.Primary)
	loop := behavior.NewLoopCoordinatorBehavior(st.Children, behavior.TimeBound)
	loop.Timer = tb
	loop.Push = j.PushChild()
	history := behavior.NewHistoryBehavior(nil)
	sound := behavior.NewSoundBehavior(fragment.Down, t.durationMs, defaultCues())

	behaviors := []block.Behavior{tb, history, loop, sound}
	return block.New(key, statementIDs(statements), block.TimeBoundRounds, label(st), fragments(statements), behaviors, ctx)
}
