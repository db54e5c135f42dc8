// Package strategies provides signal policies: interchangeable
// implementations of the trend/entry-signal capability the engine consumes.
package strategies

import (
	"fmt"

	"github.com/ironsan2kk-pixel/komass-sub001/services/series"
)

// Policy computes, per bar, the prevailing trend and the entry signal
// (+1 long, -1 short, 0 none). Concrete strategies are interchangeable
// behind this minimal capability set.
type Policy interface {
	Name() string
	WarmupBars() int
	// Evaluate may only read bars 0..i of the series it was built over.
	Evaluate(i int) (trend, signal int)
}

// Factory builds a policy over a series from named parameter values, binding
// optimizer axes to indicator settings.
type Factory func(s *series.Series, params map[string]float64) (Policy, error)

// NewFactory resolves a policy by name. Known policies: "ema_cross".
func NewFactory(name string) (Factory, error) {
	switch name {
	case "ema_cross", "":
		return func(s *series.Series, params map[string]float64) (Policy, error) {
			fast := intParam(params, "ema_fast", 26)
			slow := intParam(params, "ema_slow", 100)
			return NewEMACross(s, fast, slow)
		}, nil
	}
	return nil, fmt.Errorf("unknown policy %q", name)
}

func intParam(params map[string]float64, name string, def int) int {
	if v, ok := params[name]; ok {
		return int(v)
	}
	return def
}
