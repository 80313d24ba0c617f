package compile

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fitscript/engine/behavior"
	"github.com/fitscript/engine/block"
	"github.com/fitscript/engine/fragment"
)

func TestGroupStrategyMatchRequiresChildrenOrHint(t *testing.T) {
	withChildren := fragment.Statement{ID: 1, Children: [][]int64{{10}}}
	require.True(t, GroupStrategy{}.Match([]fragment.Statement{withChildren}))

	withHint := fragment.Statement{ID: 2, Hints: fragment.NewHintSet(fragment.HintGroup)}
	require.True(t, GroupStrategy{}.Match([]fragment.Statement{withHint}))

	bare := fragment.Statement{ID: 3}
	require.False(t, GroupStrategy{}.Match([]fragment.Statement{bare}))
}

func TestGroupStrategyCompileSingleRoundLoop(t *testing.T) {
	st := fragment.Statement{ID: 1, Children: [][]int64{{10}, {11}, {12}}}
	rt := newFakeRuntime(st)
	b := GroupStrategy{}.Compile([]fragment.Statement{st}, rt, NewJIT())

	require.Equal(t, block.Group, b.BlockType)
	var loop *behavior.LoopCoordinatorBehavior
	for _, beh := range b.Behaviors {
		if l, ok := beh.(*behavior.LoopCoordinatorBehavior); ok {
			loop = l
		}
	}
	require.NotNil(t, loop)
	require.Equal(t, behavior.Fixed, loop.LoopType)
	require.Equal(t, 1, loop.TotalRounds)
	require.Len(t, loop.ChildGroups, 3)
}
