package strategies

// Static replays precomputed trend and signal arrays. It is the adapter for
// external signal engines that deliver their output alongside the candles,
// and the workhorse of deterministic tests.
type Static struct {
	Trends  []int
	Signals []int
	Warmup  int
}

func (p *Static) Name() string { return "static" }

func (p *Static) WarmupBars() int { return p.Warmup }

func (p *Static) Evaluate(i int) (trend, signal int) {
	if i < len(p.Trends) {
		trend = p.Trends[i]
	}
	if i < len(p.Signals) {
		signal = p.Signals[i]
	}
	return trend, signal
}
