package optimizer

import (
	"fmt"
	"time"
)

// Method selects how the space is explored.
type Method int

const (
	MethodGrid Method = iota
	MethodRandom
)

func (m Method) String() string {
	switch m {
	case MethodGrid:
		return "grid"
	case MethodRandom:
		return "random"
	}
	return fmt.Sprintf("Method(%d)", int(m))
}

// ParseMethod maps the config spelling to a Method.
func ParseMethod(s string) (Method, error) {
	switch s {
	case "grid", "":
		return MethodGrid, nil
	case "random":
		return MethodRandom, nil
	}
	return MethodGrid, fmt.Errorf("unknown search method %q", s)
}

// Config drives one optimization run.
type Config struct {
	Method Method
	// Metric names the ranking value: "score" (default) for the composite,
	// or any key of Result.Metrics, higher is better. Disqualification by
	// trade count always goes through the composite score.
	Metric string
	// MaxTests bounds the random-search budget. Ignored by grid search.
	MaxTests int
	Workers  int
	// MinTrades disqualifies results with fewer trades (scored -Inf).
	MinTrades int
	// Seed makes random search reproducible; 0 means derive from the clock.
	Seed int64
	// PerTestTimeout bounds one combination's wall clock. A test that runs
	// past it is recorded as skipped. Zero disables the ceiling.
	PerTestTimeout time.Duration
}

// Result is the scored outcome of one parameter combination.
type Result struct {
	Params     ParamSet           `json:"params"`
	Score      float64            `json:"score"`
	Metrics    map[string]float64 `json:"metrics"`
	TradeCount int                `json:"trade_count"`
}

// Progress is emitted after every completed test.
type Progress struct {
	Tested     int     `json:"tested"`
	Total      int     `json:"total"`
	Percent    float64 `json:"percent"`
	Best       *Result `json:"best"`
	ETASeconds float64 `json:"eta_seconds"`
}

// Summary is the terminal outcome of a run. Best is nil when no combination
// produced a qualifying result.
type Summary struct {
	Best    *Result       `json:"best"`
	Results []*Result     `json:"results"`
	Total   int           `json:"total"`
	Tested  int           `json:"tested"`
	Skipped int           `json:"skipped"`
	Elapsed time.Duration `json:"elapsed"`
	Seed    int64         `json:"seed"`
	Method  string        `json:"method"`
}

// NoValidResult reports whether the whole run failed to produce a single
// qualifying parameter set.
func (s *Summary) NoValidResult() bool { return s.Best == nil }

// ProgressSink consumes the progress stream. Both methods are called from
// the coordinator's single reduction goroutine, never concurrently.
type ProgressSink interface {
	OnProgress(Progress)
	OnComplete(Summary)
}

type nopSink struct{}

func (nopSink) OnProgress(Progress) {}
func (nopSink) OnComplete(Summary)  {}
