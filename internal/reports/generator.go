package reports

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ZenRasta/Astroedge/internal/analytics"
	"github.com/ZenRasta/Astroedge/pkg/models"
)

// RunData supplies the stored artifacts a report is built from.
// Implemented by results.Repository.
type RunData interface {
	GetRun(ctx context.Context, id string) (*models.TestRun, error)
	EquityForRun(ctx context.Context, runID string) ([]models.TestEquity, error)
	TradesForRun(ctx context.Context, runID string) ([]models.TestTrade, error)
}

// Generator builds post-run reports from persisted artifacts
type Generator struct {
	store RunData
}

// NewGenerator creates report generator
func NewGenerator(store RunData) *Generator {
	return &Generator{store: store}
}

// RunReport is a rendered summary of one finished simulation
type RunReport struct {
	Run         *models.TestRun
	Curve       []analytics.CurvePoint
	BestTrade   *models.TestTrade
	WorstTrade  *models.TestTrade
	GeneratedAt time.Time
}

// GenerateRunReport assembles the report for a run. The smoothing
// window is in steps; zero means the full curve length.
func (g *Generator) GenerateRunReport(ctx context.Context, runID string, smoothWindow int) (*RunReport, error) {
	run, err := g.store.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	if run == nil {
		return nil, fmt.Errorf("run %s not found", runID)
	}

	equity, err := g.store.EquityForRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get equity curve: %w", err)
	}

	trades, err := g.store.TradesForRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get trades: %w", err)
	}

	best, worst := extremes(trades)

	return &RunReport{
		Run:         run,
		Curve:       analytics.SmoothedCurve(equity, smoothWindow),
		BestTrade:   best,
		WorstTrade:  worst,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// extremes finds the best and worst closed trades by realized PnL
func extremes(trades []models.TestTrade) (best, worst *models.TestTrade) {
	for i := range trades {
		t := &trades[i]
		if !t.Closed() {
			continue
		}
		if best == nil || t.RealizedPnL.GreaterThan(best.RealizedPnL) {
			best = t
		}
		if worst == nil || t.RealizedPnL.LessThan(worst.RealizedPnL) {
			worst = t
		}
	}
	return best, worst
}

// Render formats the report as plain text
func (r *RunReport) Render() string {
	var b strings.Builder
	run := r.Run

	fmt.Fprintf(&b, "=== Run report: %s ===\n", run.ID)
	if run.Name != "" {
		fmt.Fprintf(&b, "Name:    %s\n", run.Name)
	}
	fmt.Fprintf(&b, "Kind:    %s\nStatus:  %s\n", run.Kind, run.Status)
	fmt.Fprintf(&b, "Period:  %s -> %s\n",
		run.StartDate.Format("2006-01-02"), run.EndDate.Format("2006-01-02"))
	fmt.Fprintf(&b, "Capital: $%.2f\n", run.InitialCapital)

	if m := run.Metrics; m != nil {
		fmt.Fprintf(&b, "\nReturn %+.2f%% (annualized %+.2f%%), Sharpe %.2f, max DD %.2f%%\n",
			m.TotalReturn*100, m.AnnualizedReturn*100, m.SharpeRatio, m.MaxDrawdown*100)
		fmt.Fprintf(&b, "Trades %d (%d closed), win rate %.0f%%, profit factor %.2f, fees $%.2f\n",
			m.TotalTrades, m.ClosedTrades, m.WinRate*100, m.ProfitFactor, m.TotalFees)
	}
	if run.FailureReason != "" {
		fmt.Fprintf(&b, "\nFailure: %s\n", run.FailureReason)
	}

	if r.BestTrade != nil {
		fmt.Fprintf(&b, "\nBest trade:  %s %s %s\n",
			r.BestTrade.MarketID, r.BestTrade.Side, r.BestTrade.RealizedPnL.StringFixed(2))
	}
	if r.WorstTrade != nil {
		fmt.Fprintf(&b, "Worst trade: %s %s %s\n",
			r.WorstTrade.MarketID, r.WorstTrade.Side, r.WorstTrade.RealizedPnL.StringFixed(2))
	}

	if len(r.Curve) > 0 {
		fmt.Fprintf(&b, "\nEquity (raw / smoothed / drawdown):\n")
		for _, p := range r.Curve {
			fmt.Fprintf(&b, "  %s  %10.2f  %10.2f  %6.2f%%\n",
				p.Ts, p.Equity, p.Smoothed, p.Drawdown*100)
		}
	}

	return b.String()
}
