package optimizer

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// HeatmapCell is one (v1, v2) sample of the surface.
type HeatmapCell struct {
	V1         float64 `json:"v1"`
	V2         float64 `json:"v2"`
	Score      float64 `json:"score"`
	Pnl        float64 `json:"pnl"`
	WinRate    float64 `json:"win_rate"`
	TradeCount int     `json:"trade_count"`
}

// Heatmap is a 2-D scan over two parameter axes with every other parameter
// held fixed.
type Heatmap struct {
	Axis1  string          `json:"axis1"`
	Axis2  string          `json:"axis2"`
	V1     []float64       `json:"v1_values"`
	V2     []float64       `json:"v2_values"`
	Cells  [][]HeatmapCell `json:"cells"` // Cells[i][j] pairs V1[i] with V2[j]
	Base   ParamSet        `json:"base"`
	Tested int             `json:"tested"`
}

// RunHeatmap evaluates the exhaustive axis1 x axis2 grid sequentially; the
// intended grids are small, so no pool is involved. base supplies the fixed
// values for every other parameter.
func RunHeatmap(ctx context.Context, eval Evaluator, base ParamSet, axis1, axis2 ParameterRange, log *zap.Logger) (*Heatmap, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := axis1.Validate(); err != nil {
		return nil, err
	}
	if err := axis2.Validate(); err != nil {
		return nil, err
	}
	if axis1.Name == axis2.Name {
		return nil, fmt.Errorf("heatmap axes must differ, both are %q", axis1.Name)
	}

	v1s := axis1.Values()
	v2s := axis2.Values()
	hm := &Heatmap{
		Axis1: axis1.Name,
		Axis2: axis2.Name,
		V1:    v1s,
		V2:    v2s,
		Cells: make([][]HeatmapCell, len(v1s)),
		Base:  base.Clone(),
	}
	log.Info("running heatmap scan",
		zap.String("axis1", axis1.Name), zap.Int("rows", len(v1s)),
		zap.String("axis2", axis2.Name), zap.Int("cols", len(v2s)))

	for i, v1 := range v1s {
		hm.Cells[i] = make([]HeatmapCell, len(v2s))
		for j, v2 := range v2s {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			set := base.Clone()
			set[axis1.Name] = v1
			set[axis2.Name] = v2

			cell := HeatmapCell{V1: v1, V2: v2}
			res, err := eval.Evaluate(ctx, set)
			if err != nil {
				log.Warn("heatmap cell failed",
					zap.String("params", set.Key()), zap.Error(err))
			} else {
				cell.Score = res.Score
				cell.Pnl = res.Metrics["total_pnl"]
				cell.WinRate = res.Metrics["win_rate"]
				cell.TradeCount = res.TradeCount
			}
			hm.Cells[i][j] = cell
			hm.Tested++
		}
	}
	return hm, nil
}
