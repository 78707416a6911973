package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ZenRasta/Astroedge/internal/adapters/database"
	"github.com/ZenRasta/Astroedge/pkg/models"
)

// Repository persists scan output and simulation artifacts. It serves
// both the live pipeline sink and the backtest run store.
type Repository struct {
	db *database.DB
}

// NewRepository creates new results repository
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// SaveOpportunities appends scan results. The parameter snapshot is
// stored as JSON alongside each row so a result can be replayed
// without guessing the config that produced it.
func (r *Repository) SaveOpportunities(ctx context.Context, opps []models.Opportunity) error {
	if len(opps) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO opportunities (
			id, run_id, market_id, scan_time, p0, s_astro, p_astro,
			edge_net, decision, skip_reason, size_fraction, params, created_at
		) VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	for i := range opps {
		o := &opps[i]
		params, err := json.Marshal(o.Params)
		if err != nil {
			return fmt.Errorf("marshal params for %s: %w", o.ID, err)
		}

		if _, err := tx.ExecContext(ctx, query,
			o.ID, o.RunID, o.MarketID, o.ScanTime, o.P0, o.SAstro, o.PAstro,
			o.EdgeNet, o.Decision, o.SkipReason, o.SizeFrac, params, o.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to save opportunity %s: %w", o.ID, err)
		}
	}

	return tx.Commit()
}

// SaveContributions upserts the per-(market, aspect) audit rows
func (r *Repository) SaveContributions(ctx context.Context, contribs []models.AspectContribution) error {
	if len(contribs) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO aspect_contributions (
			id, market_id, aspect_id, temporal_w, angular_w, severity_w,
			category_w, eclipse_amp, contribution, lambda_days, orb_limit,
			map_version_id, evaluated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (market_id, aspect_id, map_version_id, evaluated_at) DO UPDATE SET
			temporal_w = EXCLUDED.temporal_w,
			angular_w = EXCLUDED.angular_w,
			severity_w = EXCLUDED.severity_w,
			category_w = EXCLUDED.category_w,
			eclipse_amp = EXCLUDED.eclipse_amp,
			contribution = EXCLUDED.contribution
	`

	for i := range contribs {
		c := &contribs[i]
		if c.ID == "" {
			c.ID = uuid.NewString()
		}

		if _, err := tx.ExecContext(ctx, query,
			c.ID, c.MarketID, c.AspectID, c.TemporalW, c.AngularW, c.SeverityW,
			c.CategoryW, c.EclipseAmp, c.Contribution, c.LambdaDays, c.OrbLimit,
			c.MapVersionID, c.EvaluatedAt,
		); err != nil {
			return fmt.Errorf("failed to save contribution %s/%s: %w", c.MarketID, c.AspectID, err)
		}
	}

	return tx.Commit()
}

// CreateRun inserts a new run in running state
func (r *Repository) CreateRun(ctx context.Context, run *models.TestRun) error {
	params, err := json.Marshal(run.Params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}

	if _, err := r.db.DB().ExecContext(ctx, `
		INSERT INTO test_runs (
			id, name, kind, status, start_date, end_date,
			initial_capital, params, map_version_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, run.ID, run.Name, run.Kind, run.Status, run.StartDate, run.EndDate,
		run.InitialCapital, params, run.MapVersionID, run.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to create run %s: %w", run.ID, err)
	}

	return nil
}

// UpdateRun records a status transition. Illegal transitions are
// rejected at the database level by refusing updates to terminal rows.
func (r *Repository) UpdateRun(ctx context.Context, run *models.TestRun) error {
	var metrics []byte
	if run.Metrics != nil {
		var err error
		metrics, err = json.Marshal(run.Metrics)
		if err != nil {
			return fmt.Errorf("marshal metrics: %w", err)
		}
	}

	result, err := r.db.DB().ExecContext(ctx, `
		UPDATE test_runs
		SET status = $2, metrics = $3, failed_step = $4,
			failure_reason = $5, finished_at = $6
		WHERE id = $1 AND status = 'running'
	`, run.ID, run.Status, metrics, run.FailedStep, run.FailureReason, run.FinishedAt)
	if err != nil {
		return fmt.Errorf("failed to update run %s: %w", run.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("run %s is not in running state", run.ID)
	}

	return nil
}

// GetRun loads one run. Returns nil when it does not exist.
func (r *Repository) GetRun(ctx context.Context, id string) (*models.TestRun, error) {
	row := r.db.DB().QueryRowxContext(ctx, `
		SELECT id, name, kind, status, start_date, end_date, initial_capital,
			   params, map_version_id, metrics, failed_step, failure_reason,
			   created_at, finished_at
		FROM test_runs
		WHERE id = $1
	`, id)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", id, err)
	}

	return run, nil
}

// ListRuns returns recent runs, newest first
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]models.TestRun, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.DB().QueryxContext(ctx, `
		SELECT id, name, kind, status, start_date, end_date, initial_capital,
			   params, map_version_id, metrics, failed_step, failure_reason,
			   created_at, finished_at
		FROM test_runs
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []models.TestRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}

	return runs, rows.Err()
}

// rowScanner covers both QueryRowx and Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*models.TestRun, error) {
	var run models.TestRun
	var params, metrics []byte
	var failureReason sql.NullString

	if err := row.Scan(
		&run.ID, &run.Name, &run.Kind, &run.Status, &run.StartDate,
		&run.EndDate, &run.InitialCapital, &params, &run.MapVersionID,
		&metrics, &run.FailedStep, &failureReason,
		&run.CreatedAt, &run.FinishedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(params, &run.Params); err != nil {
		return nil, fmt.Errorf("unmarshal params: %w", err)
	}
	if len(metrics) > 0 {
		run.Metrics = &models.RunMetrics{}
		if err := json.Unmarshal(metrics, run.Metrics); err != nil {
			return nil, fmt.Errorf("unmarshal metrics: %w", err)
		}
	}
	run.FailureReason = failureReason.String

	return &run, nil
}

// SaveTrades appends simulated fills for a run
func (r *Repository) SaveTrades(ctx context.Context, trades []models.TestTrade) error {
	if len(trades) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO test_trades (
			id, run_id, market_id, side, qty, entry_price, entry_time,
			exit_price, exit_time, fees, realized_pnl, outcome
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	for i := range trades {
		t := &trades[i]
		if t.ID == "" {
			t.ID = uuid.NewString()
		}

		if _, err := tx.ExecContext(ctx, query,
			t.ID, t.RunID, t.MarketID, t.Side, t.Qty, t.EntryPrice, t.EntryTime,
			t.ExitPrice, t.ExitTime, t.Fees.String(), t.RealizedPnL.String(), t.Outcome,
		); err != nil {
			return fmt.Errorf("failed to save trade %s: %w", t.ID, err)
		}
	}

	return tx.Commit()
}

// SaveEquity appends equity curve points for a run
func (r *Repository) SaveEquity(ctx context.Context, equity []models.TestEquity) error {
	if len(equity) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO test_equity (
			run_id, ts, equity_usdc, realized_pnl, unrealized_pnl,
			fees_usdc, positions_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (run_id, ts) DO UPDATE SET
			equity_usdc = EXCLUDED.equity_usdc,
			realized_pnl = EXCLUDED.realized_pnl,
			unrealized_pnl = EXCLUDED.unrealized_pnl,
			fees_usdc = EXCLUDED.fees_usdc,
			positions_count = EXCLUDED.positions_count
	`

	for i := range equity {
		e := &equity[i]
		if _, err := tx.ExecContext(ctx, query,
			e.RunID, e.Ts, e.Equity.String(), e.RealizedPnL.String(),
			e.UnrealizedPnL.String(), e.Fees.String(), e.OpenPositions,
		); err != nil {
			return fmt.Errorf("failed to save equity point at %s: %w", e.Ts, err)
		}
	}

	return tx.Commit()
}

// EquityForRun returns the equity curve ordered by timestamp
func (r *Repository) EquityForRun(ctx context.Context, runID string) ([]models.TestEquity, error) {
	var equity []models.TestEquity

	if err := r.db.DB().SelectContext(ctx, &equity, `
		SELECT run_id, ts, equity_usdc, realized_pnl, unrealized_pnl,
			   fees_usdc, positions_count
		FROM test_equity
		WHERE run_id = $1
		ORDER BY ts
	`, runID); err != nil {
		return nil, fmt.Errorf("failed to load equity for run %s: %w", runID, err)
	}

	return equity, nil
}

// TradesForRun returns all fills of a run in entry order
func (r *Repository) TradesForRun(ctx context.Context, runID string) ([]models.TestTrade, error) {
	var trades []models.TestTrade

	if err := r.db.DB().SelectContext(ctx, &trades, `
		SELECT id, run_id, market_id, side, qty, entry_price, entry_time,
			   exit_price, exit_time, fees, realized_pnl, outcome
		FROM test_trades
		WHERE run_id = $1
		ORDER BY entry_time, id
	`, runID); err != nil {
		return nil, fmt.Errorf("failed to load trades for run %s: %w", runID, err)
	}

	return trades, nil
}

// OpportunitiesForRun returns all scan results stamped with the run
func (r *Repository) OpportunitiesForRun(ctx context.Context, runID string, limit int) ([]models.Opportunity, error) {
	if limit <= 0 {
		limit = 500
	}

	rows, err := r.db.DB().QueryxContext(ctx, `
		SELECT id, COALESCE(run_id, ''), market_id, scan_time, p0, s_astro, p_astro,
			   edge_net, decision, skip_reason, size_fraction, params, created_at
		FROM opportunities
		WHERE run_id = $1
		ORDER BY scan_time, abs(edge_net) DESC
		LIMIT $2
	`, runID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load opportunities for run %s: %w", runID, err)
	}
	defer rows.Close()

	var opps []models.Opportunity
	for rows.Next() {
		var o models.Opportunity
		var params []byte
		if err := rows.Scan(
			&o.ID, &o.RunID, &o.MarketID, &o.ScanTime, &o.P0, &o.SAstro, &o.PAstro,
			&o.EdgeNet, &o.Decision, &o.SkipReason, &o.SizeFrac, &params, &o.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan opportunity: %w", err)
		}
		if err := json.Unmarshal(params, &o.Params); err != nil {
			return nil, fmt.Errorf("unmarshal params: %w", err)
		}
		opps = append(opps, o)
	}

	return opps, rows.Err()
}

// PruneOpportunities deletes live-scan rows older than the horizon.
// Run-stamped rows are kept; they belong to the run's audit trail.
func (r *Repository) PruneOpportunities(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := r.db.DB().ExecContext(ctx, `
		DELETE FROM opportunities
		WHERE run_id IS NULL AND created_at < $1
	`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to prune opportunities: %w", err)
	}

	return result.RowsAffected()
}
