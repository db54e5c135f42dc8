package config

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ironsan2kk-pixel/komass-sub001/services/engine"
	"github.com/ironsan2kk-pixel/komass-sub001/services/optimizer"
	"github.com/ironsan2kk-pixel/komass-sub001/services/series"
	"github.com/ironsan2kk-pixel/komass-sub001/strategies"
)

// Binding builds the optimizer binding for this config: engine params come
// from the engine block with recognized axis names applied on top
// (sl_percent, leverage, commission_rate, tpN_percent, tpN_amount); the full
// candidate set plus fixed strategy params go to the policy factory.
func (c *RunConfig) Binding(s *series.Series) (optimizer.Binding, error) {
	base, err := c.EngineParams()
	if err != nil {
		return nil, err
	}
	factory, err := strategies.NewFactory(c.Strategy.Policy)
	if err != nil {
		return nil, err
	}
	fixed := c.Strategy.Params

	return func(set optimizer.ParamSet) (engine.Params, engine.SignalSource, error) {
		params := overrideEngineParams(base, set)
		if err := params.Validate(); err != nil {
			return engine.Params{}, nil, err
		}

		merged := make(map[string]float64, len(fixed)+len(set))
		for k, v := range fixed {
			merged[k] = v
		}
		for k, v := range set {
			merged[k] = v
		}
		policy, err := factory(s, merged)
		if err != nil {
			return engine.Params{}, nil, err
		}
		return params, policy, nil
	}, nil
}

func overrideEngineParams(base engine.Params, set optimizer.ParamSet) engine.Params {
	params := base
	tps := make([]engine.TakeProfitLevel, len(base.TakeProfits))
	copy(tps, base.TakeProfits)
	params.TakeProfits = tps

	for name, v := range set {
		switch name {
		case "sl_percent":
			params.SLPercent = decimal.NewFromFloat(v)
		case "leverage":
			params.Leverage = decimal.NewFromFloat(v)
		case "commission_rate":
			params.CommissionRate = decimal.NewFromFloat(v)
		default:
			var idx int
			var field string
			if n, _ := fmt.Sscanf(name, "tp%d_%s", &idx, &field); n == 2 && idx >= 1 && idx <= len(tps) {
				switch field {
				case "percent":
					tps[idx-1].Percent = decimal.NewFromFloat(v)
				case "amount":
					tps[idx-1].Amount = decimal.NewFromFloat(v)
				}
			}
		}
	}
	return params
}
