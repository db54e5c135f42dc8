package optimizer

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func twoAxisSpace(t *testing.T, validator CombinationValidator) *Space {
	t.Helper()
	space, err := NewSpace([]ParameterRange{
		{Name: "sl_percent", Min: 10, Max: 20, Step: 5},
		{Name: "leverage", Min: 1.0, Max: 2.0, Step: 0.5},
	}, validator)
	require.NoError(t, err)
	return space
}

func TestNewSpaceCollectsRangeErrors(t *testing.T) {
	_, err := NewSpace([]ParameterRange{
		{Name: "", Min: 1, Max: 2, Step: 1},
		{Name: "b", Min: 1, Max: 2, Step: 0},
	}, nil)
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)
}

func TestSpaceGrid(t *testing.T) {
	space := twoAxisSpace(t, nil)
	assert.Equal(t, 9, space.GridSize())

	combos := space.Grid()
	require.Len(t, combos, 9)
	seen := map[string]bool{}
	for _, set := range combos {
		require.Contains(t, set, "sl_percent")
		require.Contains(t, set, "leverage")
		seen[set.Key()] = true
	}
	assert.Len(t, seen, 9, "every combination distinct")
	assert.True(t, seen["leverage=1.5,sl_percent=15"])
}

func TestSpaceGridValidatorFilters(t *testing.T) {
	space := twoAxisSpace(t, func(set ParamSet) bool {
		return set["leverage"] < 2.0
	})
	combos := space.Grid()
	assert.Len(t, combos, 6)
	for _, set := range combos {
		assert.Less(t, set["leverage"], 2.0)
	}
}

func TestSpaceRandomBudget(t *testing.T) {
	space := twoAxisSpace(t, nil)
	combos := space.Random(7, rand.New(rand.NewSource(42)))
	assert.LessOrEqual(t, len(combos), 7)

	// Every sample stays on the declared grids.
	slGrid := map[float64]bool{10: true, 15: true, 20: true}
	levGrid := map[float64]bool{1.0: true, 1.5: true, 2.0: true}
	for _, set := range combos {
		assert.True(t, slGrid[set["sl_percent"]])
		assert.True(t, levGrid[set["leverage"]])
	}
}

func TestSpaceRandomReproducible(t *testing.T) {
	space := twoAxisSpace(t, nil)
	first := space.Random(10, rand.New(rand.NewSource(7)))
	second := space.Random(10, rand.New(rand.NewSource(7)))
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Key(), second[i].Key())
	}
}

func TestSpaceRandomRejectedSamplesConsumeBudget(t *testing.T) {
	space := twoAxisSpace(t, func(set ParamSet) bool { return false })
	combos := space.Random(10, rand.New(rand.NewSource(1)))
	assert.Empty(t, combos, "rejected draws are not redrawn")
}

func TestParamSetKey(t *testing.T) {
	set := ParamSet{"b_axis": 2.5, "a_axis": 1}
	assert.Equal(t, "a_axis=1,b_axis=2.5", set.Key(), "sorted by name")

	clone := set.Clone()
	clone["a_axis"] = 99
	assert.Equal(t, 1.0, set["a_axis"], "clone must not alias the original")
}
