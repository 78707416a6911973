package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RunMetrics holds summary performance metrics, populated only at completion
type RunMetrics struct {
	TotalReturn      float64 `json:"total_return"`
	AnnualizedReturn float64 `json:"annualized_return"`
	SharpeRatio      float64 `json:"sharpe_ratio"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	WinRate          float64 `json:"win_rate"`
	ProfitFactor     float64 `json:"profit_factor"`
	TotalTrades      int     `json:"total_trades"`
	ClosedTrades     int     `json:"closed_trades"`
	TotalFees        float64 `json:"total_fees"`
	FinalEquity      float64 `json:"final_equity"`
	AvgHoldTimeHours float64 `json:"avg_hold_time_hours"`
}

// TestRun represents one backtest or forwardtest simulation over
// [StartDate, EndDate). Status transitions running -> completed|failed|stopped
// and terminal states admit no further transitions.
type TestRun struct {
	ID             string      `db:"id" json:"id"`
	Name           string      `db:"name" json:"name"`
	Kind           RunKind     `db:"kind" json:"kind"`
	Status         RunStatus   `db:"status" json:"status"`
	StartDate      time.Time   `db:"start_date" json:"start_date"`
	EndDate        time.Time   `db:"end_date" json:"end_date"`
	InitialCapital float64     `db:"initial_capital" json:"initial_capital"`
	Params         ScanParams  `json:"params"`
	MapVersionID   string      `db:"map_version_id" json:"map_version_id"`
	Metrics        *RunMetrics `json:"metrics,omitempty"`
	FailedStep     *time.Time  `db:"failed_step" json:"failed_step,omitempty"`
	FailureReason  string      `db:"failure_reason" json:"failure_reason,omitempty"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
	FinishedAt     *time.Time  `db:"finished_at" json:"finished_at,omitempty"`
}

// TestTrade is a simulated fill belonging to a test run
type TestTrade struct {
	ID          string          `db:"id" json:"id"`
	RunID       string          `db:"run_id" json:"run_id"`
	MarketID    string          `db:"market_id" json:"market_id"`
	Side        TradeSide       `db:"side" json:"side"`
	Qty         float64         `db:"qty" json:"qty"`
	EntryPrice  float64         `db:"entry_price" json:"entry_price"`
	EntryTime   time.Time       `db:"entry_time" json:"entry_time"`
	ExitPrice   *float64        `db:"exit_price" json:"exit_price,omitempty"`
	ExitTime    *time.Time      `db:"exit_time" json:"exit_time,omitempty"`
	Fees        decimal.Decimal `db:"fees" json:"fees"`
	RealizedPnL decimal.Decimal `db:"realized_pnl" json:"realized_pnl"`
	Outcome     *int            `db:"outcome" json:"outcome,omitempty"`
}

// Closed reports whether the trade has been exited or settled
func (t *TestTrade) Closed() bool {
	return t.ExitTime != nil
}

// TestEquity is a time-stamped snapshot of simulated portfolio state,
// one row per simulated step with monotonically increasing timestamps.
type TestEquity struct {
	RunID         string          `db:"run_id" json:"run_id"`
	Ts            time.Time       `db:"ts" json:"ts"`
	Equity        decimal.Decimal `db:"equity_usdc" json:"equity_usdc"`
	RealizedPnL   decimal.Decimal `db:"realized_pnl" json:"realized_pnl"`
	UnrealizedPnL decimal.Decimal `db:"unrealized_pnl" json:"unrealized_pnl"`
	Fees          decimal.Decimal `db:"fees_usdc" json:"fees_usdc"`
	OpenPositions int             `db:"positions_count" json:"positions_count"`
}
