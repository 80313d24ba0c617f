package compile

import (
	"github.com/fitscript/engine/behavior"
	"github.com/fitscript/engine/block"
	"github.com/fitscript/engine/fragment"
)

// GroupStrategy compiles a plain container that delegates completion to a
// single pass through its children.
type GroupStrategy struct{}

// Match requires children or the group hint.
func (GroupStrategy) Match(statements []fragment.Statement) bool {
	st := primary(statements)
	return len(st.Children) > 0 || st.Hints.Has(fragment.HintGroup)
}

// Compile builds a FIXED, single-round LoopCoordinatorBehavior over the
// statement's children: the group completes after one pass through them.
func (GroupStrategy) Compile(statements []fragment.Statement, rt block.Runtime, j *JIT) *block.Block {
	st := primary(statements)
	key := rt.IssueKey()
	ctx := block.NewContext(rt, key)

	loop := behavior.NewLoopCoordinatorBehavior(st.Children, behavior.Fixed)
	loop.TotalRounds = 1
	loop.Push = j.PushChild()
	history := behavior.NewHistoryBehavior(nil)

	behaviors := []block.Behavior{history, loop}
	return block.New(key, statementIDs(statements), block.Group, label(st), fragments(statements), behaviors, ctx)
}
