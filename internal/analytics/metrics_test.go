package analytics

import (
	"math"
	"testing"
	"time"

	"github.com/ZenRasta/Astroedge/pkg/models"
)

func equityCurve(start time.Time, step time.Duration, values ...float64) []models.TestEquity {
	out := make([]models.TestEquity, len(values))
	for i, v := range values {
		out[i] = models.TestEquity{
			RunID:  "run-1",
			Ts:     start.Add(time.Duration(i) * step),
			Equity: models.NewDecimal(v),
		}
	}
	return out
}

func closedTrade(pnl, fees float64, holdHours float64) models.TestTrade {
	entry := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	exit := entry.Add(time.Duration(holdHours) * time.Hour)
	return models.TestTrade{
		RunID:       "run-1",
		EntryTime:   entry,
		ExitTime:    &exit,
		Fees:        models.NewDecimal(fees),
		RealizedPnL: models.NewDecimal(pnl),
	}
}

func TestComputeRunMetrics(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	day := 24 * time.Hour

	t.Run("flat curve yields zero everything", func(t *testing.T) {
		eq := equityCurve(start, day, 1000, 1000, 1000, 1000)
		m := ComputeRunMetrics(1000, eq, nil, day)
		if m.TotalReturn != 0 || m.SharpeRatio != 0 || m.MaxDrawdown != 0 {
			t.Errorf("expected flat metrics, got %+v", m)
		}
		if m.FinalEquity != 1000 {
			t.Errorf("expected final equity 1000, got %v", m.FinalEquity)
		}
	})

	t.Run("total return from endpoints", func(t *testing.T) {
		eq := equityCurve(start, day, 1000, 1050, 1100)
		m := ComputeRunMetrics(1000, eq, nil, day)
		if math.Abs(m.TotalReturn-0.10) > 1e-12 {
			t.Errorf("expected 10%% return, got %v", m.TotalReturn)
		}
	})

	t.Run("max drawdown is worst peak to trough", func(t *testing.T) {
		eq := equityCurve(start, day, 1000, 1200, 900, 1100)
		m := ComputeRunMetrics(1000, eq, nil, day)
		want := (1200.0 - 900.0) / 1200.0
		if math.Abs(m.MaxDrawdown-want) > 1e-12 {
			t.Errorf("expected drawdown %v, got %v", want, m.MaxDrawdown)
		}
	})

	t.Run("sharpe scales with cadence", func(t *testing.T) {
		values := []float64{1000, 1010, 1005, 1020, 1015, 1030, 1028, 1040}
		daily := ComputeRunMetrics(1000, equityCurve(start, day, values...), nil, day)
		weekly := ComputeRunMetrics(1000, equityCurve(start, 7*day, values...), nil, 7*day)
		if daily.SharpeRatio <= 0 || weekly.SharpeRatio <= 0 {
			t.Fatalf("expected positive sharpe, got %v / %v", daily.SharpeRatio, weekly.SharpeRatio)
		}
		want := daily.SharpeRatio / math.Sqrt(7)
		if math.Abs(weekly.SharpeRatio-want) > 1e-9 {
			t.Errorf("expected weekly sharpe %v, got %v", want, weekly.SharpeRatio)
		}
	})

	t.Run("trade stats", func(t *testing.T) {
		trades := []models.TestTrade{
			closedTrade(50, 1, 48),
			closedTrade(-20, 1, 24),
			closedTrade(30, 1, 72),
			{RunID: "run-1", Fees: models.NewDecimal(1)}, // still open
		}
		m := ComputeRunMetrics(1000, nil, trades, day)
		if m.TotalTrades != 4 || m.ClosedTrades != 3 {
			t.Errorf("expected 4/3 trades, got %d/%d", m.TotalTrades, m.ClosedTrades)
		}
		if math.Abs(m.WinRate-2.0/3.0) > 1e-12 {
			t.Errorf("expected win rate 2/3, got %v", m.WinRate)
		}
		if math.Abs(m.ProfitFactor-80.0/20.0) > 1e-12 {
			t.Errorf("expected profit factor 4, got %v", m.ProfitFactor)
		}
		if math.Abs(m.TotalFees-4) > 1e-12 {
			t.Errorf("expected total fees 4, got %v", m.TotalFees)
		}
		if math.Abs(m.AvgHoldTimeHours-48) > 1e-12 {
			t.Errorf("expected avg hold 48h, got %v", m.AvgHoldTimeHours)
		}
	})

	t.Run("all winners gives infinite profit factor", func(t *testing.T) {
		m := ComputeRunMetrics(1000, nil, []models.TestTrade{closedTrade(10, 0, 1)}, day)
		if !math.IsInf(m.ProfitFactor, 1) {
			t.Errorf("expected +Inf profit factor, got %v", m.ProfitFactor)
		}
	})

	t.Run("empty inputs", func(t *testing.T) {
		m := ComputeRunMetrics(1000, nil, nil, day)
		if m.FinalEquity != 1000 || m.TotalReturn != 0 {
			t.Errorf("expected untouched capital, got %+v", m)
		}
	})
}

func TestSmoothedCurve(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	day := 24 * time.Hour

	t.Run("overlay tracks curve length", func(t *testing.T) {
		eq := equityCurve(start, day, 1000, 1100, 1050, 1200, 1150)
		points := SmoothedCurve(eq, 3)
		if len(points) != len(eq) {
			t.Fatalf("expected %d points, got %d", len(eq), len(points))
		}
		// from index window-1 on, sma is the trailing window mean
		want := (1100.0 + 1050.0 + 1200.0) / 3.0
		if math.Abs(points[3].Smoothed-want) > 1e-9 {
			t.Errorf("expected sma %v at index 3, got %v", want, points[3].Smoothed)
		}
	})

	t.Run("drawdown per point", func(t *testing.T) {
		eq := equityCurve(start, day, 1000, 1200, 900)
		points := SmoothedCurve(eq, 2)
		want := (1200.0 - 900.0) / 1200.0
		if math.Abs(points[2].Drawdown-want) > 1e-12 {
			t.Errorf("expected drawdown %v, got %v", want, points[2].Drawdown)
		}
	})

	t.Run("empty curve", func(t *testing.T) {
		if points := SmoothedCurve(nil, 5); points != nil {
			t.Errorf("expected nil, got %v", points)
		}
	})
}
