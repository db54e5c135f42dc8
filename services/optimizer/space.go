package optimizer

import (
	"fmt"
	"math/rand"
	"sort"

	"go.uber.org/multierr"
)

// ParamSet is one candidate assignment of values to every range name.
type ParamSet map[string]float64

// Clone copies the set so a worker can own it.
func (p ParamSet) Clone() ParamSet {
	out := make(ParamSet, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Key renders the set in sorted-name order; used for deterministic
// tie-breaking and logging.
func (p ParamSet) Key() string {
	names := make([]string, 0, len(p))
	for k := range p {
		names = append(names, k)
	}
	sort.Strings(names)
	s := ""
	for i, k := range names {
		if i > 0 {
			s += ","
		}
		s += fmt.Sprintf("%s=%g", k, p[k])
	}
	return s
}

// CombinationValidator rejects infeasible combinations before they are
// queued (for example a short TP priced above a long TP).
type CombinationValidator func(ParamSet) bool

// Space enumerates or samples candidate parameter sets from declared ranges.
type Space struct {
	Ranges    []ParameterRange
	Validator CombinationValidator
}

// NewSpace validates every range and reports all violations at once.
func NewSpace(ranges []ParameterRange, validator CombinationValidator) (*Space, error) {
	var err error
	for _, r := range ranges {
		err = multierr.Append(err, r.Validate())
	}
	if err != nil {
		return nil, err
	}
	return &Space{Ranges: ranges, Validator: validator}, nil
}

// GridSize is the full Cartesian product size before validator filtering.
func (s *Space) GridSize() int {
	n := 1
	for _, r := range s.Ranges {
		n *= r.Count()
	}
	return n
}

// Grid generates the full Cartesian product axis-by-axis, filtered through
// the validator.
func (s *Space) Grid() []ParamSet {
	out := make([]ParamSet, 0, s.GridSize())
	current := make(ParamSet, len(s.Ranges))
	s.gridAxis(0, current, &out)
	return out
}

func (s *Space) gridAxis(axis int, current ParamSet, out *[]ParamSet) {
	if axis == len(s.Ranges) {
		if s.accept(current) {
			*out = append(*out, current.Clone())
		}
		return
	}
	r := s.Ranges[axis]
	for _, v := range r.Values() {
		current[r.Name] = v
		s.gridAxis(axis+1, current, out)
	}
	delete(current, r.Name)
}

// Random draws up to maxTests step-aligned samples. Duplicates count against
// the budget, so the result never exceeds maxTests combinations.
func (s *Space) Random(maxTests int, rng *rand.Rand) []ParamSet {
	out := make([]ParamSet, 0, maxTests)
	for i := 0; i < maxTests; i++ {
		set := make(ParamSet, len(s.Ranges))
		for _, r := range s.Ranges {
			set[r.Name] = r.RandomValue(rng)
		}
		if s.accept(set) {
			out = append(out, set)
		}
	}
	return out
}

func (s *Space) accept(set ParamSet) bool {
	return s.Validator == nil || s.Validator(set)
}
