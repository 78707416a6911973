package markets

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ZenRasta/Astroedge/internal/adapters/database"
	"github.com/ZenRasta/Astroedge/pkg/models"
)

// Repository handles market persistence: the live catalog, the price
// snapshot history used for replays, and resolution outcomes.
type Repository struct {
	db *database.DB
}

// NewRepository creates new market repository
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// UpsertMarkets refreshes the market catalog from an ingestion pass
func (r *Repository) UpsertMarkets(ctx context.Context, markets []models.Market) error {
	if len(markets) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO markets (
			id, title, description, price_yes, deadline_utc,
			liquidity_score, category_tags, rules_clarity, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			price_yes = EXCLUDED.price_yes,
			deadline_utc = EXCLUDED.deadline_utc,
			liquidity_score = EXCLUDED.liquidity_score,
			category_tags = EXCLUDED.category_tags,
			rules_clarity = EXCLUDED.rules_clarity,
			updated_at = EXCLUDED.updated_at
	`

	now := time.Now().UTC()
	for i := range markets {
		m := &markets[i]
		if err := m.Validate(); err != nil {
			return fmt.Errorf("market %s: %w", m.ID, err)
		}
		if m.UpdatedAt.IsZero() {
			m.UpdatedAt = now
		}

		if _, err := tx.ExecContext(ctx, query,
			m.ID, m.Title, m.Description, m.PriceYes, m.DeadlineUTC,
			m.LiquidityScore, m.CategoryTags, m.RulesClarity, m.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to upsert market %s: %w", m.ID, err)
		}
	}

	return tx.Commit()
}

// ActiveMarkets returns unresolved markets with deadlines after t
func (r *Repository) ActiveMarkets(ctx context.Context, t time.Time) ([]models.Market, error) {
	var markets []models.Market

	query := `
		SELECT id, title, description, price_yes, deadline_utc,
			   liquidity_score, category_tags, rules_clarity, updated_at
		FROM markets
		WHERE deadline_utc > $1 AND outcome IS NULL
		ORDER BY deadline_utc, id
	`

	if err := r.db.DB().SelectContext(ctx, &markets, query, t); err != nil {
		return nil, fmt.Errorf("failed to load active markets: %w", err)
	}

	return markets, nil
}

// RecordSnapshot appends one price observation per market to the
// snapshot history backing historical replays.
func (r *Repository) RecordSnapshot(ctx context.Context, t time.Time, markets []models.Market) error {
	if len(markets) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO market_snapshots (market_id, ts, price_yes, liquidity_score)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (market_id, ts) DO UPDATE SET
			price_yes = EXCLUDED.price_yes,
			liquidity_score = EXCLUDED.liquidity_score
	`

	for i := range markets {
		m := &markets[i]
		if _, err := tx.ExecContext(ctx, query, m.ID, t, m.PriceYes, m.LiquidityScore); err != nil {
			return fmt.Errorf("failed to record snapshot for %s: %w", m.ID, err)
		}
	}

	return tx.Commit()
}

// SnapshotAt reconstructs the market set as it stood at t: catalog
// rows joined with the latest snapshot at or before t, restricted to
// markets still open at t.
func (r *Repository) SnapshotAt(ctx context.Context, t time.Time) ([]models.Market, error) {
	var markets []models.Market

	query := `
		SELECT DISTINCT ON (m.id)
			   m.id, m.title, m.description,
			   s.price_yes, m.deadline_utc,
			   s.liquidity_score, m.category_tags, m.rules_clarity,
			   s.ts AS updated_at
		FROM markets m
		JOIN market_snapshots s ON s.market_id = m.id
		WHERE s.ts <= $1 AND m.deadline_utc > $1
		ORDER BY m.id, s.ts DESC
	`

	if err := r.db.DB().SelectContext(ctx, &markets, query, t); err != nil {
		return nil, fmt.Errorf("failed to load snapshot at %s: %w", t, err)
	}

	return markets, nil
}

// UpdatePrices applies fresh YES prices to the catalog. Unknown market
// ids are skipped, resolved markets keep their last traded price.
func (r *Repository) UpdatePrices(ctx context.Context, t time.Time, prices map[string]float64) error {
	if len(prices) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE markets SET price_yes = $2, updated_at = $3
		WHERE id = $1 AND outcome IS NULL
	`

	for id, price := range prices {
		if price < 0 || price > 1 {
			return fmt.Errorf("price out of range for %s: %.4f", id, price)
		}
		if _, err := tx.ExecContext(ctx, query, id, price, t); err != nil {
			return fmt.Errorf("failed to update price for %s: %w", id, err)
		}
	}

	return tx.Commit()
}

// Outcome returns the resolution of a market, if it has resolved
func (r *Repository) Outcome(ctx context.Context, marketID string) (int, bool, error) {
	var outcome sql.NullInt64

	err := r.db.DB().GetContext(ctx, &outcome, `
		SELECT outcome FROM markets WHERE id = $1
	`, marketID)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get outcome for %s: %w", marketID, err)
	}

	if !outcome.Valid {
		return 0, false, nil
	}
	return int(outcome.Int64), true, nil
}

// RecordOutcome marks a market as resolved
func (r *Repository) RecordOutcome(ctx context.Context, marketID string, outcome int, resolvedAt time.Time) error {
	if outcome != 0 && outcome != 1 {
		return fmt.Errorf("outcome must be 0 or 1, got %d", outcome)
	}

	result, err := r.db.DB().ExecContext(ctx, `
		UPDATE markets SET outcome = $2, resolved_at = $3 WHERE id = $1
	`, marketID, outcome, resolvedAt)
	if err != nil {
		return fmt.Errorf("failed to record outcome for %s: %w", marketID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("market %s does not exist", marketID)
	}

	return nil
}
