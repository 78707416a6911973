package impactmap

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ZenRasta/Astroedge/internal/adapters/database"
	"github.com/ZenRasta/Astroedge/pkg/models"
)

// Repository handles impact map version persistence. Versions are
// immutable once written; only the active flag changes.
type Repository struct {
	db *database.DB
}

// NewRepository creates new impact map repository
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// SaveVersion stores a built version with all its rules
func (r *Repository) SaveVersion(ctx context.Context, v *models.ImpactMapVersion) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO impact_map_versions (id, notes, active, created_at)
		VALUES ($1, $2, $3, $4)
	`, v.ID, v.Notes, v.Active, v.CreatedAt); err != nil {
		return fmt.Errorf("failed to save version %s: %w", v.ID, err)
	}

	for _, rule := range v.Rules {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO impact_rules (map_version_id, planet1, planet2, aspect, category, weight)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, v.ID, rule.Planet1, rule.Planet2, rule.Aspect, rule.Category, rule.Weight); err != nil {
			return fmt.Errorf("failed to save rule for version %s: %w", v.ID, err)
		}
	}

	return tx.Commit()
}

// GetVersion loads one version with its rules, indexed and ready for
// scoring. Returns nil when the version does not exist.
func (r *Repository) GetVersion(ctx context.Context, id string) (*models.ImpactMapVersion, error) {
	var v models.ImpactMapVersion

	err := r.db.DB().GetContext(ctx, &v, `
		SELECT id, notes, active, created_at
		FROM impact_map_versions
		WHERE id = $1
	`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get version %s: %w", id, err)
	}

	if err := r.db.DB().SelectContext(ctx, &v.Rules, `
		SELECT planet1, planet2, aspect, category, weight
		FROM impact_rules
		WHERE map_version_id = $1
		ORDER BY planet1, planet2, aspect, category
	`, id); err != nil {
		return nil, fmt.Errorf("failed to load rules for version %s: %w", id, err)
	}

	v.BuildIndex()
	return &v, nil
}

// ActiveVersion returns the currently active version, or nil when
// none is marked active.
func (r *Repository) ActiveVersion(ctx context.Context) (*models.ImpactMapVersion, error) {
	var id string

	err := r.db.DB().GetContext(ctx, &id, `
		SELECT id FROM impact_map_versions WHERE active ORDER BY created_at DESC LIMIT 1
	`)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve active version: %w", err)
	}

	return r.GetVersion(ctx, id)
}

// SetActive atomically flips the active flag to the given version
func (r *Repository) SetActive(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE impact_map_versions SET active = false WHERE active`); err != nil {
		return fmt.Errorf("failed to clear active flag: %w", err)
	}

	result, err := tx.ExecContext(ctx, `UPDATE impact_map_versions SET active = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to activate version %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("version %s does not exist", id)
	}

	return tx.Commit()
}

// ListVersions returns all versions without rules, newest first
func (r *Repository) ListVersions(ctx context.Context) ([]models.ImpactMapVersion, error) {
	var versions []models.ImpactMapVersion

	if err := r.db.DB().SelectContext(ctx, &versions, `
		SELECT id, notes, active, created_at
		FROM impact_map_versions
		ORDER BY created_at DESC
	`); err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}

	return versions, nil
}
