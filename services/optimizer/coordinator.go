package optimizer

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// parallelThreshold is the combination count below which the pool is not
// worth spinning up and tests run sequentially regardless of Workers.
const parallelThreshold = 4

// Coordinator dispatches the evaluator over a parameter space, tracks the
// best result in a single-writer reduction, and streams progress.
type Coordinator struct {
	cfg   Config
	space *Space
	eval  Evaluator
	sink  ProgressSink
	log   *zap.Logger
}

// NewCoordinator wires a run. A nil sink and logger are replaced with no-ops.
func NewCoordinator(cfg Config, space *Space, eval Evaluator, sink ProgressSink, log *zap.Logger) *Coordinator {
	if sink == nil {
		sink = nopSink{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{cfg: cfg, space: space, eval: eval, sink: sink, log: log}
}

type outcome struct {
	params  ParamSet
	result  *Result
	err     error
	elapsed time.Duration
}

// Run executes the search. Cancellation is cooperative: the context is
// checked between dispatches, in-flight tests finish and are discarded. On
// cancellation the partial summary is returned together with the context
// error.
func (c *Coordinator) Run(ctx context.Context) (*Summary, error) {
	seed := c.cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	var combos []ParamSet
	switch c.cfg.Method {
	case MethodRandom:
		combos = c.space.Random(c.cfg.MaxTests, rand.New(rand.NewSource(seed)))
	default:
		combos = c.space.Grid()
	}
	total := len(combos)

	summary := &Summary{
		Total:  total,
		Seed:   seed,
		Method: c.cfg.Method.String(),
	}
	if total == 0 {
		c.log.Info("no parameter combinations to test")
		c.sink.OnComplete(*summary)
		return summary, nil
	}

	workers := c.cfg.Workers
	if workers < 1 {
		workers = 1
	}
	parallel := workers > 1 && total > parallelThreshold
	c.log.Info("starting optimization run",
		zap.String("method", summary.Method),
		zap.Int("combinations", total),
		zap.Int("workers", workers),
		zap.Bool("parallel", parallel),
		zap.Int64("seed", seed))

	start := time.Now()
	if parallel {
		c.runParallel(ctx, combos, workers, start, summary)
	} else {
		c.runSequential(ctx, combos, start, summary)
	}
	summary.Elapsed = time.Since(start)

	c.rank(summary)
	if err := ctx.Err(); err != nil {
		c.log.Warn("optimization cancelled",
			zap.Int("tested", summary.Tested), zap.Int("total", total))
		return summary, err
	}

	if summary.NoValidResult() {
		c.log.Info("no valid parameter set found",
			zap.Int("tested", summary.Tested), zap.Int("skipped", summary.Skipped))
	} else {
		c.log.Info("optimization complete",
			zap.Int("tested", summary.Tested),
			zap.Int("skipped", summary.Skipped),
			zap.Float64("best_score", summary.Best.Score),
			zap.String("best_params", summary.Best.Params.Key()),
			zap.Duration("elapsed", summary.Elapsed))
	}
	c.sink.OnComplete(*summary)
	return summary, nil
}

func (c *Coordinator) runSequential(ctx context.Context, combos []ParamSet, start time.Time, summary *Summary) {
	for _, set := range combos {
		if ctx.Err() != nil {
			return
		}
		out := c.runOne(ctx, set)
		c.reduce(out, start, summary)
	}
}

func (c *Coordinator) runParallel(ctx context.Context, combos []ParamSet, workers int, start time.Time, summary *Summary) {
	jobs := make(chan ParamSet)
	results := make(chan outcome)

	go func() {
		defer close(jobs)
		for _, set := range combos {
			select {
			case <-ctx.Done():
				return
			case jobs <- set:
			}
		}
	}()

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for set := range jobs {
				results <- c.runOne(ctx, set)
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	// Single-writer reduction: best-result updates and progress emission
	// happen only here, so no shared mutable state crosses goroutines.
	for out := range results {
		if ctx.Err() != nil {
			// In-flight results after cancellation are discarded.
			continue
		}
		c.reduce(out, start, summary)
	}
}

// runOne executes a single combination, converting panics and timeout
// overruns into per-test errors so one bad combination never aborts the run.
func (c *Coordinator) runOne(ctx context.Context, set ParamSet) (out outcome) {
	out.params = set
	defer func() {
		if r := recover(); r != nil {
			out.err = fmt.Errorf("worker panic: %v", r)
		}
	}()

	testStart := time.Now()
	out.result, out.err = c.eval.Evaluate(ctx, set)
	out.elapsed = time.Since(testStart)
	if out.err == nil && c.cfg.PerTestTimeout > 0 && out.elapsed > c.cfg.PerTestTimeout {
		out.err = fmt.Errorf("exceeded per-test timeout %s after %s", c.cfg.PerTestTimeout, out.elapsed)
	}
	return out
}

func (c *Coordinator) reduce(out outcome, start time.Time, summary *Summary) {
	summary.Tested++
	if out.err != nil {
		summary.Skipped++
		c.log.Warn("combination skipped",
			zap.String("params", out.params.Key()),
			zap.Error(out.err))
	} else {
		summary.Results = append(summary.Results, out.result)
		if c.better(out.result, summary.Best) {
			summary.Best = out.result
		}
	}

	elapsed := time.Since(start)
	var eta float64
	if summary.Tested > 0 && summary.Tested < summary.Total {
		perTest := elapsed.Seconds() / float64(summary.Tested)
		eta = perTest * float64(summary.Total-summary.Tested)
	}
	c.sink.OnProgress(Progress{
		Tested:     summary.Tested,
		Total:      summary.Total,
		Percent:    float64(summary.Tested) / float64(summary.Total) * 100,
		Best:       summary.Best,
		ETASeconds: eta,
	})
}

// metricValue extracts the configured ranking value from a result; the
// composite score unless another Metrics key is named.
func (c *Coordinator) metricValue(r *Result) float64 {
	if c.cfg.Metric != "" && c.cfg.Metric != "score" {
		if v, ok := r.Metrics[c.cfg.Metric]; ok {
			return v
		}
	}
	return r.Score
}

// better decides whether a should replace b as the running best. Results
// scored -Inf are disqualified regardless of the ranking metric. Equal
// values break deterministically toward the lexicographically smallest
// parameter tuple, so the winner does not depend on completion order under
// parallelism.
func (c *Coordinator) better(a, b *Result) bool {
	if math.IsInf(a.Score, -1) {
		return false
	}
	if b == nil {
		return true
	}
	av, bv := c.metricValue(a), c.metricValue(b)
	if av != bv {
		return av > bv
	}
	return a.Params.Key() < b.Params.Key()
}

// rank orders the collected results best-first using the same rule as the
// best tracker.
func (c *Coordinator) rank(summary *Summary) {
	sort.SliceStable(summary.Results, func(i, j int) bool {
		a, b := summary.Results[i], summary.Results[j]
		av, bv := c.metricValue(a), c.metricValue(b)
		if av != bv {
			return av > bv
		}
		return a.Params.Key() < b.Params.Key()
	})
}
