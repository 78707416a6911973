package events

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ZenRasta/Astroedge/internal/adapters/database"
	"github.com/ZenRasta/Astroedge/pkg/models"
)

// Repository handles aspect event persistence
type Repository struct {
	db *database.DB
}

// NewRepository creates new aspect event repository
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// SaveEvents upserts a batch of aspect events. Events are identified
// by (quarter, planet pair, aspect, peak time); a re-import of the
// same ephemeris refreshes rather than duplicates.
func (r *Repository) SaveEvents(ctx context.Context, events []models.AspectEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO aspect_events (
			id, quarter, start_utc, peak_utc, end_utc,
			planet1, planet2, aspect, orb_deg, severity,
			is_eclipse, source, confidence, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (quarter, planet1, planet2, aspect, peak_utc) DO UPDATE SET
			start_utc = EXCLUDED.start_utc,
			end_utc = EXCLUDED.end_utc,
			orb_deg = EXCLUDED.orb_deg,
			severity = EXCLUDED.severity,
			is_eclipse = EXCLUDED.is_eclipse,
			source = EXCLUDED.source,
			confidence = EXCLUDED.confidence
	`

	now := time.Now().UTC()
	for i := range events {
		e := &events[i]
		if err := e.Validate(); err != nil {
			return fmt.Errorf("event %s/%s: %w", e.Planet1, e.Planet2, err)
		}
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}

		if _, err := tx.ExecContext(ctx, query,
			e.ID, e.Quarter, e.StartUTC, e.PeakUTC, e.EndUTC,
			e.Planet1, e.Planet2, e.Aspect, e.OrbDeg, e.Severity,
			e.IsEclipse, e.Source, e.Confidence, e.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to save event %s: %w", e.ID, err)
		}
	}

	return tx.Commit()
}

// ActiveEvents returns events whose window overlaps [from, to]
func (r *Repository) ActiveEvents(ctx context.Context, from, to time.Time) ([]models.AspectEvent, error) {
	var events []models.AspectEvent

	query := `
		SELECT id, quarter, start_utc, peak_utc, end_utc,
			   planet1, planet2, aspect, orb_deg, severity,
			   is_eclipse, source, confidence, created_at
		FROM aspect_events
		WHERE start_utc <= $1 AND end_utc >= $2
		ORDER BY peak_utc, planet1, planet2
	`

	if err := r.db.DB().SelectContext(ctx, &events, query, to, from); err != nil {
		return nil, fmt.Errorf("failed to load active events: %w", err)
	}

	return events, nil
}

// EventsForQuarter returns every event of one ephemeris quarter
func (r *Repository) EventsForQuarter(ctx context.Context, quarter string) ([]models.AspectEvent, error) {
	var events []models.AspectEvent

	query := `
		SELECT id, quarter, start_utc, peak_utc, end_utc,
			   planet1, planet2, aspect, orb_deg, severity,
			   is_eclipse, source, confidence, created_at
		FROM aspect_events
		WHERE quarter = $1
		ORDER BY peak_utc, planet1, planet2
	`

	if err := r.db.DB().SelectContext(ctx, &events, query, quarter); err != nil {
		return nil, fmt.Errorf("failed to load events for quarter %s: %w", quarter, err)
	}

	return events, nil
}
