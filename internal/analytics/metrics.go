package analytics

import (
	"math"
	"time"

	"github.com/ZenRasta/Astroedge/pkg/models"
)

const hoursPerYear = 365.25 * 24

// ComputeRunMetrics summarizes a finished simulation from its equity
// curve and trade log. Step returns feed the Sharpe ratio, annualized
// by the step cadence, so a daily run and a weekly run are comparable.
func ComputeRunMetrics(
	initialCapital float64,
	equity []models.TestEquity,
	trades []models.TestTrade,
	step time.Duration,
) models.RunMetrics {
	m := models.RunMetrics{
		TotalTrades: len(trades),
		FinalEquity: initialCapital,
	}

	if len(equity) > 0 {
		m.FinalEquity, _ = equity[len(equity)-1].Equity.Float64()
	}
	if initialCapital > 0 {
		m.TotalReturn = m.FinalEquity/initialCapital - 1
	}

	m.SharpeRatio = sharpe(equityValues(equity), step)
	m.MaxDrawdown = maxDrawdown(equityValues(equity))
	m.AnnualizedReturn = annualize(m.TotalReturn, equitySpan(equity))

	var (
		wins, closed int
		grossWin     float64
		grossLoss    float64
		holdHours    float64
	)
	for i := range trades {
		t := &trades[i]
		fees, _ := t.Fees.Float64()
		m.TotalFees += fees
		if !t.Closed() {
			continue
		}
		closed++
		pnl, _ := t.RealizedPnL.Float64()
		if pnl > 0 {
			wins++
			grossWin += pnl
		} else {
			grossLoss += -pnl
		}
		holdHours += t.ExitTime.Sub(t.EntryTime).Hours()
	}

	m.ClosedTrades = closed
	if closed > 0 {
		m.WinRate = float64(wins) / float64(closed)
		m.AvgHoldTimeHours = holdHours / float64(closed)
	}
	if grossLoss > 0 {
		m.ProfitFactor = grossWin / grossLoss
	} else if grossWin > 0 {
		m.ProfitFactor = math.Inf(1)
	}

	return m
}

func equityValues(equity []models.TestEquity) []float64 {
	out := make([]float64, len(equity))
	for i := range equity {
		out[i], _ = equity[i].Equity.Float64()
	}
	return out
}

func equitySpan(equity []models.TestEquity) time.Duration {
	if len(equity) < 2 {
		return 0
	}
	return equity[len(equity)-1].Ts.Sub(equity[0].Ts)
}

// sharpe computes the annualized Sharpe ratio of step-over-step
// returns, assuming a zero risk-free rate.
func sharpe(values []float64, step time.Duration) float64 {
	if len(values) < 3 || step <= 0 {
		return 0
	}

	returns := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			continue
		}
		returns = append(returns, values[i]/values[i-1]-1)
	}
	if len(returns) < 2 {
		return 0
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))

	std := math.Sqrt(variance)
	if std == 0 {
		return 0
	}

	periodsPerYear := hoursPerYear / step.Hours()
	return mean / std * math.Sqrt(periodsPerYear)
}

// maxDrawdown returns the largest peak-to-trough equity decline as a
// positive fraction of the peak.
func maxDrawdown(values []float64) float64 {
	var peak, worst float64
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			dd := (peak - v) / peak
			if dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

func annualize(totalReturn float64, span time.Duration) float64 {
	if span <= 0 || totalReturn <= -1 {
		return 0
	}
	years := span.Hours() / hoursPerYear
	if years <= 0 {
		return 0
	}
	return math.Pow(1+totalReturn, 1/years) - 1
}
