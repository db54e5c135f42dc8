// Package optimizer enumerates strategy parameter spaces and dispatches
// backtests across a worker pool, tracking the best-scoring combination.
package optimizer

import (
	"fmt"
	"math"
	"math/rand"
)

// ValueType distinguishes integer-valued from float-valued parameters.
type ValueType int

const (
	ValueTypeFloat ValueType = iota
	ValueTypeInt
)

// ParameterRange declares one searchable axis: [Min..Max] discretized by Step.
type ParameterRange struct {
	Name string
	Min  float64
	Max  float64
	Step float64
	Type ValueType
}

// Validate rejects a degenerate range before any enumeration happens.
func (r ParameterRange) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("parameter range needs a name")
	}
	if r.Step <= 0 {
		return fmt.Errorf("range %s: step must be positive, got %g", r.Name, r.Step)
	}
	if r.Max < r.Min {
		return fmt.Errorf("range %s: max %g below min %g", r.Name, r.Max, r.Min)
	}
	return nil
}

// stepEpsilon absorbs float accumulation so Max itself stays enumerable.
const stepEpsilon = 1e-9

// Count returns the number of discretized values on the grid.
func (r ParameterRange) Count() int {
	return int(math.Floor((r.Max-r.Min)/r.Step+stepEpsilon)) + 1
}

// Values enumerates the discretized grid, Min first, Max last when aligned.
func (r ParameterRange) Values() []float64 {
	n := r.Count()
	out := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, r.value(i))
	}
	return out
}

// RandomValue samples one point aligned to the step grid.
func (r ParameterRange) RandomValue(rng *rand.Rand) float64 {
	return r.value(rng.Intn(r.Count()))
}

func (r ParameterRange) value(i int) float64 {
	v := r.Min + float64(i)*r.Step
	if r.Type == ValueTypeInt {
		return math.Round(v)
	}
	return v
}
