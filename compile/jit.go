// Package compile implements the JIT compiler: an ordered set of strategies,
// each matching a statement group to a block shape and materializing the
// runtime block plus its attached behaviors. Only the block package is a
// dependency of the produced blocks; compile is the one place that knows how
// to wire behaviors together, so behavior stays free of any compile import.
package compile

import (
	"github.com/fitscript/engine/behavior"
	"github.com/fitscript/engine/block"
	"github.com/fitscript/engine/fragment"
)

// Strategy selects and compiles one child position's statement group into a
// Block. Match must be pure: no I/O, no side effects. Compile may allocate
// memory refs in the block's own context but must never queue actions.
type Strategy interface {
	Match(statements []fragment.Statement) bool
	Compile(statements []fragment.Statement, rt block.Runtime, j *JIT) *block.Block
}

// JIT holds the fixed, ordered strategy precedence described in the spec:
// TimeBoundRounds > Interval > Timer > Rounds > Group > Effort. The first
// strategy whose Match returns true compiles the group; Effort is the
// unconditional fallback and must stay last.
type JIT struct {
	Strategies []Strategy
}

// NewJIT constructs a JIT with the standard strategy precedence.
func NewJIT() *JIT {
	return &JIT{Strategies: []Strategy{
		TimeBoundRoundsStrategy{},
		IntervalStrategy{},
		TimerStrategy{},
		RoundsStrategy{},
		GroupStrategy{},
		EffortStrategy{},
	}}
}

// Compile resolves ids to statements via rt.GetStatementByID and delegates
// to the first matching strategy. Returns nil ("no block") if no id resolves
// or no strategy matches; callers treat that as nothing to push here.
//
// A child-group position that bundles more than one id directly (EMOM's
// `[Pullups, Pushups]` pair, as opposed to Fran's two separate positions)
// never reaches the strategy loop: there is no single primary statement for
// Match to inspect, so it is compiled as its own one-round group instead,
// keeping each bundled id independently push/mount/complete-able.
func (j *JIT) Compile(ids []int64, rt block.Runtime) *block.Block {
	statements := make([]fragment.Statement, 0, len(ids))
	for _, id := range ids {
		if st, ok := rt.GetStatementByID(id); ok {
			statements = append(statements, st)
		}
	}
	if len(statements) == 0 {
		return nil
	}
	if len(statements) > 1 {
		return j.compileBundledPosition(statements, rt)
	}
	for _, s := range j.Strategies {
		if s.Match(statements) {
			return s.Compile(statements, rt, j)
		}
	}
	return nil
}

// compileBundledPosition wraps a position's bundled statement ids in a
// synthetic one-round loop, one id per sub-position, mirroring the shape
// GroupStrategy builds for a statement whose own Children encode nested
// positions. Each sub-position is then compiled and pushed independently by
// the same PushChild closure, so it strategy-matches on its own statement
// rather than bleeding into its siblings.
func (j *JIT) compileBundledPosition(statements []fragment.Statement, rt block.Runtime) *block.Block {
	key := rt.IssueKey()
	ctx := block.NewContext(rt, key)

	childGroups := make([][]int64, len(statements))
	for i, st := range statements {
		childGroups[i] = []int64{st.ID}
	}

	loop := behavior.NewLoopCoordinatorBehavior(childGroups, behavior.Fixed)
	loop.TotalRounds = 1
	loop.Push = j.PushChild()
	history := behavior.NewHistoryBehavior(nil)

	behaviors := []block.Behavior{history, loop}
	return block.New(key, statementIDs(statements), block.Group, label(primary(statements)), fragments(statements), behaviors, ctx)
}

// PushChild returns the CompileAndPushChild closure wired into every
// LoopCoordinatorBehavior this JIT's strategies construct: compile the
// statements at a child position, and if one matches, push it.
func (j *JIT) PushChild() func(rt block.Runtime, ids []int64, opts block.Options) {
	return func(rt block.Runtime, ids []int64, opts block.Options) {
		child := j.Compile(ids, rt)
		if child == nil {
			return
		}
		_ = rt.PushBlock(child, opts)
	}
}
