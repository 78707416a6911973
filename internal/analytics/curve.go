package analytics

import (
	"github.com/cinar/indicator"

	"github.com/ZenRasta/Astroedge/pkg/models"
)

// CurvePoint pairs a raw equity value with its smoothed counterpart
type CurvePoint struct {
	Ts       string  `json:"ts"`
	Equity   float64 `json:"equity"`
	Smoothed float64 `json:"smoothed"`
	Drawdown float64 `json:"drawdown"`
}

// SmoothedCurve renders an equity curve with a simple moving average
// overlay and per-point drawdown, for report tables and dashboards.
// Window is clamped to the curve length.
func SmoothedCurve(equity []models.TestEquity, window int) []CurvePoint {
	if len(equity) == 0 {
		return nil
	}
	if window <= 0 || window > len(equity) {
		window = len(equity)
	}

	values := equityValues(equity)
	sma := indicator.Sma(window, values)

	points := make([]CurvePoint, len(equity))
	var peak float64
	for i, v := range values {
		if v > peak {
			peak = v
		}
		var dd float64
		if peak > 0 {
			dd = (peak - v) / peak
		}
		points[i] = CurvePoint{
			Ts:       equity[i].Ts.UTC().Format("2006-01-02 15:04"),
			Equity:   v,
			Smoothed: sma[i],
			Drawdown: dd,
		}
	}
	return points
}
