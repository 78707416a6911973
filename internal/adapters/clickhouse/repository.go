package clickhouse

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ZenRasta/Astroedge/pkg/logger"
	"github.com/ZenRasta/Astroedge/pkg/models"
)

// Repository writes high-volume analytics rows to ClickHouse: every
// scan opportunity and every equity point, for dashboarding and
// parameter sweeps. PostgreSQL stays the source of truth.
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates new ClickHouse repository
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// SaveOpportunities inserts opportunity analytic rows
func (r *Repository) SaveOpportunities(ctx context.Context, opps []models.Opportunity) error {
	if len(opps) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	stmt, err := tx.Preparex(`
		INSERT INTO opportunities_analytics
		(id, run_id, market_id, scan_time, p0, s_astro, p_astro,
		 edge_net, decision, skip_reason, size_fraction, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i := range opps {
		o := &opps[i]
		if _, err := stmt.ExecContext(ctx,
			o.ID, o.RunID, o.MarketID, o.ScanTime, o.P0, o.SAstro, o.PAstro,
			o.EdgeNet, string(o.Decision), string(o.SkipReason), o.SizeFrac, o.CreatedAt,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert opportunity: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	logger.Debug("saved opportunities to ClickHouse",
		zap.Int("count", len(opps)),
	)

	return nil
}

// SaveEquity inserts equity curve analytic rows
func (r *Repository) SaveEquity(ctx context.Context, equity []models.TestEquity) error {
	if len(equity) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	stmt, err := tx.Preparex(`
		INSERT INTO equity_analytics
		(run_id, ts, equity, realized_pnl, unrealized_pnl, fees, positions_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i := range equity {
		e := &equity[i]
		if _, err := stmt.ExecContext(ctx,
			e.RunID, e.Ts,
			e.Equity.InexactFloat64(),
			e.RealizedPnL.InexactFloat64(),
			e.UnrealizedPnL.InexactFloat64(),
			e.Fees.InexactFloat64(),
			e.OpenPositions,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert equity point: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	logger.Debug("saved equity points to ClickHouse",
		zap.Int("count", len(equity)),
	)

	return nil
}
