package models

import (
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Market represents one binary prediction market snapshot
type Market struct {
	ID             string         `db:"id" json:"id"`
	Title          string         `db:"title" json:"title"`
	Description    string         `db:"description" json:"description"`
	PriceYes       float64        `db:"price_yes" json:"price_yes"`
	DeadlineUTC    time.Time      `db:"deadline_utc" json:"deadline_utc"`
	LiquidityScore float64        `db:"liquidity_score" json:"liquidity_score"`
	CategoryTags   pq.StringArray `db:"category_tags" json:"category_tags"`
	RulesClarity   RulesClarity   `db:"rules_clarity" json:"rules_clarity"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// Categories converts the stored tags into typed categories,
// dropping any tag outside the closed set.
func (m *Market) Categories() []Category {
	out := make([]Category, 0, len(m.CategoryTags))
	for _, tag := range m.CategoryTags {
		c := Category(tag)
		if c.Valid() {
			out = append(out, c)
		}
	}
	return out
}

// DaysToDeadline returns days remaining until market resolution as of t
func (m *Market) DaysToDeadline(t time.Time) float64 {
	return m.DeadlineUTC.Sub(t).Hours() / 24
}

// Validate rejects malformed markets at the ingestion boundary
func (m *Market) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("market id is required")
	}
	if m.PriceYes < 0 || m.PriceYes > 1 {
		return fmt.Errorf("market %s: price_yes must be in [0,1], got %.4f", m.ID, m.PriceYes)
	}
	if m.LiquidityScore < 0 {
		return fmt.Errorf("market %s: liquidity score must be non-negative, got %.4f", m.ID, m.LiquidityScore)
	}
	if m.DeadlineUTC.IsZero() {
		return fmt.Errorf("market %s: deadline is required", m.ID)
	}
	for _, tag := range m.CategoryTags {
		if !Category(tag).Valid() {
			return fmt.Errorf("market %s: unknown category %q", m.ID, tag)
		}
	}
	return nil
}
