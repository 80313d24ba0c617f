package compile

import (
	"github.com/fitscript/engine/behavior"
	"github.com/fitscript/engine/block"
	"github.com/fitscript/engine/fragment"
)

// TimerStrategy compiles a bare timer block: a count-up or countdown clock,
// optionally wrapping a single pass through its children.
type TimerStrategy struct{}

// Match requires a timer fragment or the timer hint.
func (TimerStrategy) Match(statements []fragment.Statement) bool {
	st := primary(statements)
	if st.Hints.Has(fragment.HintEffort) {
		return false
	}
	return timer(st).present || st.Hints.Has(fragment.HintTimer)
}

// Compile builds the TimerBehavior and, only if the statement has children,
// a FIXED single-round LoopCoordinatorBehavior to drive them.
func (TimerStrategy) Compile(statements []fragment.Statement, rt block.Runtime, j *JIT) *block.Block {
	st := primary(statements)
	t := timer(st)
	direction := t.direction
	if direction == "" {
		direction = fragment.Up
	}
	key := rt.IssueKey()
	ctx := block.NewContext(rt, key)

	tb := behavior.NewTimerBehavior(direction, t.durationMs, label(st), behavior.Primary)
	history := behavior.NewHistoryBehavior(nil)
	behaviors := []block.Behavior{tb, history}

	if len(st.Children) > 0 {
		loop := behavior.NewLoopCoordinatorBehavior(st.Children, behavior.Fixed)
		loop.TotalRounds = 1
		loop.Push = j.PushChild()
		behaviors = append(behaviors, loop)
	}
	if direction == fragment.Down {
		behaviors = append(behaviors, behavior.NewSoundBehavior(direction, t.durationMs, defaultCues()))
	}

	return block.New(key, statementIDs(statements), block.Timer, label(st), fragments(statements), behaviors, ctx)
}
