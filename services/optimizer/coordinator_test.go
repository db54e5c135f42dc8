package optimizer

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type evalFunc func(ctx context.Context, set ParamSet) (*Result, error)

func (f evalFunc) Evaluate(ctx context.Context, set ParamSet) (*Result, error) {
	return f(ctx, set)
}

// sumScorer scores each combination by the sum of its values.
func sumScorer(delay time.Duration) evalFunc {
	return func(ctx context.Context, set ParamSet) (*Result, error) {
		if delay > 0 {
			time.Sleep(delay)
		}
		var score float64
		for _, v := range set {
			score += v
		}
		return &Result{
			Params:     set.Clone(),
			Score:      score,
			Metrics:    map[string]float64{"total_pnl": score, "win_rate": 0.5},
			TradeCount: 10,
		}, nil
	}
}

type recordingSink struct {
	progress  []Progress
	completed []Summary
}

func (s *recordingSink) OnProgress(p Progress) { s.progress = append(s.progress, p) }
func (s *recordingSink) OnComplete(p Summary)  { s.completed = append(s.completed, p) }

func testSpace(t *testing.T) *Space {
	t.Helper()
	space, err := NewSpace([]ParameterRange{
		{Name: "a", Min: 1, Max: 4, Step: 1},
		{Name: "b", Min: 1, Max: 5, Step: 1},
	}, nil)
	require.NoError(t, err)
	return space
}

func TestCoordinatorGridParallel(t *testing.T) {
	space := testSpace(t)
	sink := &recordingSink{}
	coord := NewCoordinator(Config{Workers: 4}, space, sumScorer(0), sink, nil)

	summary, err := coord.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 20, summary.Total)
	assert.Equal(t, 20, summary.Tested)
	assert.Equal(t, 0, summary.Skipped)
	assert.Len(t, summary.Results, 20)

	require.NotNil(t, summary.Best)
	assert.Equal(t, 9.0, summary.Best.Score, "a=4 b=5 wins")
	assert.Equal(t, 4.0, summary.Best.Params["a"])
	assert.Equal(t, 5.0, summary.Best.Params["b"])

	// Ranked best-first.
	for i := 1; i < len(summary.Results); i++ {
		assert.GreaterOrEqual(t, summary.Results[i-1].Score, summary.Results[i].Score)
	}

	assert.Len(t, sink.progress, 20, "one progress event per completed test")
	require.Len(t, sink.completed, 1)
	assert.Equal(t, 20, sink.completed[0].Tested)
}

func TestCoordinatorSequentialMatchesParallel(t *testing.T) {
	space := testSpace(t)

	seq, err := NewCoordinator(Config{Workers: 1}, space, sumScorer(0), nil, nil).Run(context.Background())
	require.NoError(t, err)
	par, err := NewCoordinator(Config{Workers: 8}, space, sumScorer(0), nil, nil).Run(context.Background())
	require.NoError(t, err)

	require.NotNil(t, seq.Best)
	require.NotNil(t, par.Best)
	assert.Equal(t, seq.Best.Score, par.Best.Score)
	assert.Equal(t, seq.Best.Params.Key(), par.Best.Params.Key())
	assert.Equal(t, seq.Tested, par.Tested)
}

func TestCoordinatorDeterministicTieBreak(t *testing.T) {
	space := testSpace(t)
	constant := evalFunc(func(ctx context.Context, set ParamSet) (*Result, error) {
		return &Result{Params: set.Clone(), Score: 1.0}, nil
	})

	for _, workers := range []int{1, 6} {
		summary, err := NewCoordinator(Config{Workers: workers}, space, constant, nil, nil).Run(context.Background())
		require.NoError(t, err)
		require.NotNil(t, summary.Best)
		assert.Equal(t, "a=1,b=1", summary.Best.Params.Key(),
			"equal scores must break toward the smallest parameter tuple (workers=%d)", workers)
	}
}

func TestCoordinatorCustomMetric(t *testing.T) {
	space := testSpace(t)
	// Composite score favors high a+b, win_rate favors low a.
	eval := evalFunc(func(ctx context.Context, set ParamSet) (*Result, error) {
		return &Result{
			Params:  set.Clone(),
			Score:   set["a"] + set["b"],
			Metrics: map[string]float64{"win_rate": 10 - set["a"]},
		}, nil
	})

	summary, err := NewCoordinator(Config{Workers: 1, Metric: "win_rate"}, space, eval, nil, nil).Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, summary.Best)
	assert.Equal(t, 1.0, summary.Best.Params["a"], "ranking follows the named metric")
	assert.Equal(t, 1.0, summary.Results[0].Params["a"])
}

func TestCoordinatorRandomMethod(t *testing.T) {
	space := testSpace(t)
	cfg := Config{Method: MethodRandom, MaxTests: 7, Seed: 42, Workers: 1}

	first, err := NewCoordinator(cfg, space, sumScorer(0), nil, nil).Run(context.Background())
	require.NoError(t, err)
	assert.LessOrEqual(t, first.Total, 7)
	assert.Equal(t, int64(42), first.Seed)
	assert.Equal(t, "random", first.Method)

	second, err := NewCoordinator(cfg, space, sumScorer(0), nil, nil).Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, first.Best)
	require.NotNil(t, second.Best)
	assert.Equal(t, first.Best.Params.Key(), second.Best.Params.Key(), "same seed, same search")
}

func TestCoordinatorDisqualifiedNeverBest(t *testing.T) {
	space := testSpace(t)
	disqualified := evalFunc(func(ctx context.Context, set ParamSet) (*Result, error) {
		return &Result{Params: set.Clone(), Score: math.Inf(-1)}, nil
	})

	summary, err := NewCoordinator(Config{Workers: 2}, space, disqualified, nil, nil).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, summary.NoValidResult())
	assert.Nil(t, summary.Best)
	assert.Equal(t, 20, summary.Tested)
	assert.Len(t, summary.Results, 20, "disqualified results are still reported")
}

func TestCoordinatorSurvivesPanics(t *testing.T) {
	space := testSpace(t)
	spiky := evalFunc(func(ctx context.Context, set ParamSet) (*Result, error) {
		if set["a"] == 2 {
			panic("indicator blew up")
		}
		return sumScorer(0)(ctx, set)
	})

	summary, err := NewCoordinator(Config{Workers: 3}, space, spiky, nil, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20, summary.Tested)
	assert.Equal(t, 5, summary.Skipped, "one panic per b value at a=2")
	require.NotNil(t, summary.Best)
	assert.Equal(t, 9.0, summary.Best.Score)
}

func TestCoordinatorSkipsErroredCombinations(t *testing.T) {
	space := testSpace(t)
	flaky := evalFunc(func(ctx context.Context, set ParamSet) (*Result, error) {
		if set["b"] == 3 {
			return nil, errors.New("bad ladder")
		}
		return sumScorer(0)(ctx, set)
	})

	summary, err := NewCoordinator(Config{Workers: 1}, space, flaky, nil, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Skipped)
	assert.Len(t, summary.Results, 16)
}

func TestCoordinatorPerTestTimeout(t *testing.T) {
	space := testSpace(t)
	cfg := Config{Workers: 1, PerTestTimeout: time.Microsecond}

	summary, err := NewCoordinator(cfg, space, sumScorer(2*time.Millisecond), nil, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20, summary.Skipped, "every slow test recorded as skipped")
	assert.True(t, summary.NoValidResult())
}

type cancellingSink struct {
	recordingSink
	after  int
	cancel context.CancelFunc
}

func (s *cancellingSink) OnProgress(p Progress) {
	s.recordingSink.OnProgress(p)
	if len(s.progress) == s.after {
		s.cancel()
	}
}

func TestCoordinatorCancellation(t *testing.T) {
	space := testSpace(t)
	ctx, cancel := context.WithCancel(context.Background())
	sink := &cancellingSink{after: 3, cancel: cancel}

	summary, err := NewCoordinator(Config{Workers: 1}, space, sumScorer(0), sink, nil).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, summary.Tested, "sequential run stops at the next dispatch")
	assert.Less(t, summary.Tested, summary.Total)
	assert.Empty(t, sink.completed, "no completion event on a cancelled run")
}

func TestCoordinatorCancellationParallel(t *testing.T) {
	space := testSpace(t)
	ctx, cancel := context.WithCancel(context.Background())
	sink := &cancellingSink{after: 2, cancel: cancel}

	summary, err := NewCoordinator(Config{Workers: 4}, space, sumScorer(time.Millisecond), sink, nil).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, summary.Tested, summary.Total, "in-flight results after cancellation are discarded")
}

func TestCoordinatorEmptySpace(t *testing.T) {
	space := twoAxisSpace(t, func(ParamSet) bool { return false })
	sink := &recordingSink{}

	summary, err := NewCoordinator(Config{Workers: 2}, space, sumScorer(0), sink, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Total)
	assert.True(t, summary.NoValidResult())
	require.Len(t, sink.completed, 1)
}

func TestCoordinatorProgressETA(t *testing.T) {
	space := testSpace(t)
	sink := &recordingSink{}

	_, err := NewCoordinator(Config{Workers: 1}, space, sumScorer(time.Millisecond), sink, nil).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, sink.progress, 20)

	mid := sink.progress[9]
	assert.Equal(t, 10, mid.Tested)
	assert.InDelta(t, 50.0, mid.Percent, 1e-9)
	assert.Greater(t, mid.ETASeconds, 0.0, "remaining work implies a positive ETA")

	last := sink.progress[19]
	assert.InDelta(t, 100.0, last.Percent, 1e-9)
	assert.Zero(t, last.ETASeconds)
}
