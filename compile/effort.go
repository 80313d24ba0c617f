package compile

import (
	"github.com/fitscript/engine/behavior"
	"github.com/fitscript/engine/block"
	"github.com/fitscript/engine/fragment"
	"github.com/fitscript/engine/memory"
)

// EffortStrategy is the unconditional fallback: a leaf movement that
// completes on the user-originated "next" event. If a rep target was
// inherited from an enclosing REP_SCHEME loop it is copied into the block's
// own context so span metrics can report it; the engine has no per-rep tick
// source, so "target met" and "user advances" are the same event.
type EffortStrategy struct{}

// Match always succeeds: Effort is the terminal strategy in the precedence
// list and never reorders it.
func (EffortStrategy) Match(statements []fragment.Statement) bool {
	return len(statements) > 0
}

// Compile attaches HistoryBehavior and a CompletionBehavior gated on "next".
func (EffortStrategy) Compile(statements []fragment.Statement, rt block.Runtime, j *JIT) *block.Block {
	st := primary(statements)
	key := rt.IssueKey()
	ctx := block.NewContext(rt, key)

	history := behavior.NewHistoryBehavior(nil)
	completion := behavior.NewCompletionBehavior(func(*block.Block) bool { return true }, []string{"next"}, false, false)
	behaviors := []block.Behavior{history, completion}

	b := block.New(key, statementIDs(statements), block.Effort, label(st), fragments(statements), behaviors, ctx)

	if refs := ctx.Search(memory.Query{Type: "metric.reps", Visibility: memory.Inherited}); len(refs) > 0 {
		if v, ok := ctx.Get(refs[0]); ok {
			if reps, ok2 := v.(int); ok2 {
				_, _ = ctx.Allocate("metric.reps.target", reps, memory.Private)
			}
		}
	}
	return b
}
