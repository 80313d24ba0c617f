package scenario

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fitscript/engine/fragment"
)

func TestLoadParsesFranScenario(t *testing.T) {
	lookup, top, drive, err := Load("testdata/fran.yaml")
	require.NoError(t, err)
	require.Equal(t, [][]int64{{1}}, top)
	require.Len(t, drive, 6)
	require.Equal(t, DriveEvent{AtMs: 0, Type: "next"}, drive[0])

	root, ok := lookup.Get(1)
	require.True(t, ok)
	rounds, ok := root.FragmentOfKind(fragment.Rounds)
	require.True(t, ok)
	require.Equal(t, []int{21, 15, 9}, rounds.Value)
	require.Equal(t, [][]int64{{2}, {3}}, root.Children)

	thrusters, ok := lookup.Get(2)
	require.True(t, ok)
	effort, ok := thrusters.FragmentOfKind(fragment.Effort)
	require.True(t, ok)
	require.Equal(t, "Thrusters", effort.Value)
}

func TestLoadParsesEmomScenarioHintsAndTimer(t *testing.T) {
	lookup, _, _, err := Load("testdata/emom.yaml")
	require.NoError(t, err)

	root, ok := lookup.Get(1)
	require.True(t, ok)
	require.True(t, root.Hints.Has(fragment.HintRepeatingInterval))

	timer, ok := root.FragmentOfKind(fragment.Timer)
	require.True(t, ok)
	require.Equal(t, int64(60000), timer.Value)
	require.Equal(t, fragment.Down, timer.Direction)
}

func TestLoadRejectsUnknownFragmentKind(t *testing.T) {
	_, err := toFragment(fragmentDoc{Kind: "bogus", Value: 1})
	require.Error(t, err)
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, _, _, err := Load("testdata/does-not-exist.yaml")
	require.Error(t, err)
}
