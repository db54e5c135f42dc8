package optimizer

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParameterRangeValidate(t *testing.T) {
	require.NoError(t, ParameterRange{Name: "sl", Min: 1, Max: 5, Step: 0.5}.Validate())
	require.Error(t, ParameterRange{Min: 1, Max: 5, Step: 0.5}.Validate(), "name required")
	require.Error(t, ParameterRange{Name: "sl", Min: 1, Max: 5}.Validate(), "zero step")
	require.Error(t, ParameterRange{Name: "sl", Min: 5, Max: 1, Step: 1}.Validate(), "inverted bounds")
}

func TestParameterRangeValues(t *testing.T) {
	r := ParameterRange{Name: "p", Min: 10, Max: 20, Step: 5}
	assert.Equal(t, 3, r.Count())
	assert.Equal(t, []float64{10, 15, 20}, r.Values())

	r = ParameterRange{Name: "p", Min: 1.0, Max: 2.0, Step: 0.5}
	assert.Equal(t, []float64{1.0, 1.5, 2.0}, r.Values())

	r = ParameterRange{Name: "p", Min: 7, Max: 7, Step: 1}
	assert.Equal(t, []float64{7}, r.Values(), "degenerate range is one value")
}

func TestParameterRangeFloatAccumulation(t *testing.T) {
	// 0.1 steps do not sum exactly in binary; Max must stay enumerable.
	r := ParameterRange{Name: "p", Min: 0.1, Max: 0.3, Step: 0.1}
	assert.Equal(t, 3, r.Count())
	vals := r.Values()
	require.Len(t, vals, 3)
	assert.InDelta(t, 0.3, vals[2], 1e-9)
}

func TestParameterRangeIntType(t *testing.T) {
	r := ParameterRange{Name: "p", Min: 5, Max: 10, Step: 2, Type: ValueTypeInt}
	assert.Equal(t, []float64{5, 7, 9}, r.Values())
	for _, v := range r.Values() {
		assert.Equal(t, v, float64(int(v)), "int axes yield whole numbers")
	}
}

func TestParameterRangeRandomValueStaysOnGrid(t *testing.T) {
	r := ParameterRange{Name: "p", Min: 1.0, Max: 2.0, Step: 0.25}
	grid := map[float64]bool{}
	for _, v := range r.Values() {
		grid[v] = true
	}
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		v := r.RandomValue(rng)
		assert.True(t, grid[v], "sampled %g off the step grid", v)
	}
}
