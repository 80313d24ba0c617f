package compile

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fitscript/engine/behavior"
	"github.com/fitscript/engine/block"
	"github.com/fitscript/engine/fragment"
)

func intervalStatement() fragment.Statement {
	return fragment.Statement{
		ID: 1,
		Fragments: []fragment.Fragment{
			{Kind: fragment.Timer, Value: int64(60000), Direction: fragment.Down},
			{Kind: fragment.Rounds, Value: 10},
		},
		Hints:    fragment.NewHintSet(fragment.HintRepeatingInterval),
		Children: [][]int64{{10}},
	}
}

func TestIntervalStrategyMatchRequiresTimerAndHint(t *testing.T) {
	require.True(t, IntervalStrategy{}.Match([]fragment.Statement{intervalStatement()}))

	noHint := fragment.Statement{ID: 2, Fragments: []fragment.Fragment{{Kind: fragment.Timer, Value: int64(1000)}}}
	require.False(t, IntervalStrategy{}.Match([]fragment.Statement{noHint}))
}

func TestIntervalStrategyCompileWiresTimerLoopAndRestart(t *testing.T) {
	st := intervalStatement()
	rt := newFakeRuntime(st)
	b := IntervalStrategy{}.Compile([]fragment.Statement{st}, rt, NewJIT())

	require.Equal(t, block.Interval, b.BlockType)
	require.Len(t, b.Behaviors, 5)

	tb, ok := b.Behaviors[0].(*behavior.TimerBehavior)
	require.True(t, ok)
	loop, ok := b.Behaviors[2].(*behavior.LoopCoordinatorBehavior)
	require.True(t, ok)
	require.Equal(t, behavior.Interval, loop.LoopType)
	require.Equal(t, 10, loop.TotalRounds)
	require.True(t, tb == loop.Timer)

	restart, ok := b.Behaviors[3].(*behavior.IntervalTimerRestartBehavior)
	require.True(t, ok)
	require.True(t, tb == restart.Timer)
	require.True(t, restart.Source == behavior.RoundSource(loop))

	_, ok = b.Behaviors[4].(*behavior.SoundBehavior)
	require.True(t, ok)
}
