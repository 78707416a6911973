package models

import (
	"fmt"
	"time"
)

// AspectEvent represents one timed planetary aspect with a strength profile.
// Events are immutable once created and identified by
// (quarter, planet pair, aspect, peak time).
type AspectEvent struct {
	ID         string    `db:"id" json:"id"`
	Quarter    string    `db:"quarter" json:"quarter"`
	StartUTC   time.Time `db:"start_utc" json:"start_utc"`
	PeakUTC    time.Time `db:"peak_utc" json:"peak_utc"`
	EndUTC     time.Time `db:"end_utc" json:"end_utc"`
	Planet1    Planet    `db:"planet1" json:"planet1"`
	Planet2    Planet    `db:"planet2" json:"planet2"`
	Aspect     Aspect    `db:"aspect" json:"aspect"`
	OrbDeg     float64   `db:"orb_deg" json:"orb_deg"`
	Severity   Severity  `db:"severity" json:"severity"`
	IsEclipse  bool      `db:"is_eclipse" json:"is_eclipse"`
	Source     string    `db:"source" json:"source"`
	Confidence float64   `db:"confidence" json:"confidence"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Validate rejects malformed events at the ingestion boundary
func (e *AspectEvent) Validate() error {
	if !e.Planet1.Valid() || !e.Planet2.Valid() {
		return fmt.Errorf("invalid planet pair %s-%s", e.Planet1, e.Planet2)
	}
	if e.Planet1 == e.Planet2 {
		return fmt.Errorf("planet pair must be distinct, got %s-%s", e.Planet1, e.Planet2)
	}
	if p1, _ := CanonicalPair(e.Planet1, e.Planet2); p1 != e.Planet1 {
		return fmt.Errorf("planet pair %s-%s is not in canonical order", e.Planet1, e.Planet2)
	}
	if !e.Aspect.Valid() {
		return fmt.Errorf("invalid aspect %q", e.Aspect)
	}
	if !e.Severity.Valid() {
		return fmt.Errorf("invalid severity %q", e.Severity)
	}
	if e.OrbDeg < 0 {
		return fmt.Errorf("orb must be non-negative, got %.3f", e.OrbDeg)
	}
	if e.Confidence < 0 || e.Confidence > 1 {
		return fmt.Errorf("confidence must be in [0,1], got %.3f", e.Confidence)
	}
	if e.EndUTC.Before(e.StartUTC) {
		return fmt.Errorf("event window end %s before start %s", e.EndUTC, e.StartUTC)
	}
	if e.PeakUTC.Before(e.StartUTC) || e.PeakUTC.After(e.EndUTC) {
		return fmt.Errorf("peak %s outside window [%s, %s]", e.PeakUTC, e.StartUTC, e.EndUTC)
	}
	return nil
}

// PairKey returns the canonical "(P1,P2)|aspect" key for impact map lookup
func (e *AspectEvent) PairKey() string {
	return fmt.Sprintf("(%s,%s)|%s", e.Planet1, e.Planet2, e.Aspect)
}

// ImpactRule maps one (planet pair, aspect, category) to a signed weight
type ImpactRule struct {
	Planet1  Planet   `db:"planet1" json:"planet1"`
	Planet2  Planet   `db:"planet2" json:"planet2"`
	Aspect   Aspect   `db:"aspect" json:"aspect"`
	Category Category `db:"category" json:"category"`
	Weight   int      `db:"weight" json:"weight"`
}

// Validate rejects rules outside the supported enums or weight range
func (r *ImpactRule) Validate() error {
	if !r.Planet1.Valid() || !r.Planet2.Valid() {
		return fmt.Errorf("invalid planet pair %s-%s", r.Planet1, r.Planet2)
	}
	if !r.Aspect.Valid() {
		return fmt.Errorf("invalid aspect %q", r.Aspect)
	}
	if !r.Category.Valid() {
		return fmt.Errorf("invalid category %q", r.Category)
	}
	if r.Weight < -3 || r.Weight > 3 {
		return fmt.Errorf("weight must be in [-3,3], got %d", r.Weight)
	}
	return nil
}

// ImpactMapVersion is an immutable, versioned set of impact rules.
// Scoring always uses one explicit version, never an implicit "latest".
type ImpactMapVersion struct {
	ID        string    `db:"id" json:"id"`
	Notes     string    `db:"notes" json:"notes"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	Rules     []ImpactRule

	// index built lazily from Rules for O(1) lookup
	index map[ruleKey]int
}

type ruleKey struct {
	p1, p2   Planet
	aspect   Aspect
	category Category
}

// BuildIndex prepares the lookup index. Must be called after Rules is populated.
func (v *ImpactMapVersion) BuildIndex() {
	v.index = make(map[ruleKey]int, len(v.Rules))
	for _, r := range v.Rules {
		p1, p2 := CanonicalPair(r.Planet1, r.Planet2)
		v.index[ruleKey{p1, p2, r.Aspect, r.Category}] = r.Weight
	}
}

// WeightFor returns the signed weight for a (pair, aspect, category), and
// whether any rule matched. Absence of a rule is not an error.
func (v *ImpactMapVersion) WeightFor(p1, p2 Planet, aspect Aspect, category Category) (int, bool) {
	if v.index == nil {
		v.BuildIndex()
	}
	a, b := CanonicalPair(p1, p2)
	w, ok := v.index[ruleKey{a, b, aspect, category}]
	return w, ok
}

// AspectContribution is the materialized per-(market, aspect) computation
// result: component weights plus the final signed contribution, with the
// parameters used so results replay without recomputation.
type AspectContribution struct {
	ID           string    `db:"id" json:"id"`
	MarketID     string    `db:"market_id" json:"market_id"`
	AspectID     string    `db:"aspect_id" json:"aspect_id"`
	TemporalW    float64   `db:"temporal_w" json:"temporal_w"`
	AngularW     float64   `db:"angular_w" json:"angular_w"`
	SeverityW    float64   `db:"severity_w" json:"severity_w"`
	CategoryW    float64   `db:"category_w" json:"category_w"`
	EclipseAmp   float64   `db:"eclipse_amp" json:"eclipse_amp"`
	Contribution float64   `db:"contribution" json:"contribution"`
	LambdaDays   float64   `db:"lambda_days" json:"lambda_days"`
	OrbLimit     float64   `db:"orb_limit" json:"orb_limit"`
	MapVersionID string    `db:"map_version_id" json:"map_version_id"`
	EvaluatedAt  time.Time `db:"evaluated_at" json:"evaluated_at"`
}
