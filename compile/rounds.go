package compile

import (
	"github.com/fitscript/engine/behavior"
	"github.com/fitscript/engine/block"
	"github.com/fitscript/engine/fragment"
)

// RoundsStrategy compiles a fixed- or rep-scheme round loop with no timer.
type RoundsStrategy struct{}

// Match requires a rounds fragment or the fixed_rounds hint, and no timer —
// a timer-bearing statement is owned by an earlier strategy.
func (RoundsStrategy) Match(statements []fragment.Statement) bool {
	st := primary(statements)
	if st.Hints.Has(fragment.HintEffort) || timer(st).present {
		return false
	}
	return rounds(st).present || st.Hints.Has(fragment.HintFixedRounds)
}

// Compile builds a FIXED or REP_SCHEME LoopCoordinatorBehavior depending on
// whether the rounds fragment carries a single target or a per-round scheme.
func (RoundsStrategy) Compile(statements []fragment.Statement, rt block.Runtime, j *JIT) *block.Block {
	st := primary(statements)
	r := rounds(st)
	key := rt.IssueKey()
	ctx := block.NewContext(rt, key)

	loopType := behavior.Fixed
	if r.isScheme {
		loopType = behavior.RepScheme
	}
	loop := behavior.NewLoopCoordinatorBehavior(st.Children, loopType)
	loop.TotalRounds = r.total
	loop.RepScheme = r.scheme
	loop.Push = j.PushChild()
	history := behavior.NewHistoryBehavior(nil)

	behaviors := []block.Behavior{history, loop}
	return block.New(key, statementIDs(statements), block.Rounds, label(st), fragments(statements), behaviors, ctx)
}
