package compile

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fitscript/engine/behavior"
	"github.com/fitscript/engine/block"
	"github.com/fitscript/engine/fragment"
)

func TestRoundsStrategyMatchRequiresRoundsAndNoTimer(t *testing.T) {
	withRounds := fragment.Statement{ID: 1, Fragments: []fragment.Fragment{{Kind: fragment.Rounds, Value: 5}}}
	require.True(t, RoundsStrategy{}.Match([]fragment.Statement{withRounds}))

	withTimer := fragment.Statement{ID: 2, Fragments: []fragment.Fragment{
		{Kind: fragment.Rounds, Value: 5}, {Kind: fragment.Timer, Value: int64(1000)},
	}}
	require.False(t, RoundsStrategy{}.Match([]fragment.Statement{withTimer}))

	effort := fragment.Statement{ID: 3, Fragments: []fragment.Fragment{{Kind: fragment.Rounds, Value: 5}}, Hints: fragment.NewHintSet(fragment.HintEffort)}
	require.False(t, RoundsStrategy{}.Match([]fragment.Statement{effort}))
}

func TestRoundsStrategyCompileFixed(t *testing.T) {
	st := fragment.Statement{
		ID:        1,
		Fragments: []fragment.Fragment{{Kind: fragment.Rounds, Value: 4}},
		Children:  [][]int64{{10}},
	}
	rt := newFakeRuntime(st)
	b := RoundsStrategy{}.Compile([]fragment.Statement{st}, rt, NewJIT())

	require.Equal(t, block.Rounds, b.BlockType)
	var loop *behavior.LoopCoordinatorBehavior
	for _, beh := range b.Behaviors {
		if l, ok := beh.(*behavior.LoopCoordinatorBehavior); ok {
			loop = l
		}
	}
	require.NotNil(t, loop)
	require.Equal(t, behavior.Fixed, loop.LoopType)
	require.Equal(t, 4, loop.TotalRounds)
}

func TestRoundsStrategyCompileRepScheme(t *testing.T) {
	st := fragment.Statement{
		ID:        1,
		Fragments: []fragment.Fragment{{Kind: fragment.Rounds, Value: []int{21, 15, 9}}},
		Children:  [][]int64{{10}},
	}
	rt := newFakeRuntime(st)
	b := RoundsStrategy{}.Compile([]fragment.Statement{st}, rt, NewJIT())

	var loop *behavior.LoopCoordinatorBehavior
	for _, beh := range b.Behaviors {
		if l, ok := beh.(*behavior.LoopCoordinatorBehavior); ok {
			loop = l
		}
	}
	require.Equal(t, behavior.RepScheme, loop.LoopType)
	require.Equal(t, []int{21, 15, 9}, loop.RepScheme)
	require.Equal(t, 3, loop.TotalRounds)
}
