package models

import (
	"fmt"
	"time"
)

// Opportunity is one scan result for one market at one time.
// Append-only audit record: the params snapshot fully determines the
// derivation, so an identical replay yields identical fields.
type Opportunity struct {
	ID         string     `db:"id" json:"id"`
	RunID      string     `db:"run_id" json:"run_id,omitempty"`
	MarketID   string     `db:"market_id" json:"market_id"`
	ScanTime   time.Time  `db:"scan_time" json:"scan_time"`
	P0         float64    `db:"p0" json:"p0"`
	SAstro     float64    `db:"s_astro" json:"s_astro"`
	PAstro     float64    `db:"p_astro" json:"p_astro"`
	EdgeNet    float64    `db:"edge_net" json:"edge_net"`
	Decision   Decision   `db:"decision" json:"decision"`
	SkipReason SkipReason `db:"skip_reason" json:"skip_reason"`
	SizeFrac   float64    `db:"size_fraction" json:"size_fraction"`
	Params     ScanParams `json:"params"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// Validate enforces the documented bounds on a finished opportunity
func (o *Opportunity) Validate() error {
	if o.P0 < 0 || o.P0 > 1 {
		return fmt.Errorf("p0 must be in [0,1], got %v", o.P0)
	}
	if o.PAstro <= 0 || o.PAstro >= 1 {
		return fmt.Errorf("p_astro must be strictly inside (0,1), got %v", o.PAstro)
	}
	if o.EdgeNet < -1 || o.EdgeNet > 1 {
		return fmt.Errorf("edge_net must be in [-1,1], got %v", o.EdgeNet)
	}
	if o.SizeFrac < 0 || o.SizeFrac > 1 {
		return fmt.Errorf("size_fraction must be in [0,1], got %v", o.SizeFrac)
	}
	if o.Decision == DecisionHold && o.SizeFrac != 0 {
		return fmt.Errorf("HOLD decision must carry zero size, got %v", o.SizeFrac)
	}
	return nil
}
