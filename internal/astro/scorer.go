package astro

import (
	"time"

	"github.com/ZenRasta/Astroedge/pkg/models"
)

// Scorer aggregates aspect contributions for a market into a capped
// astrological score. Deterministic given the same active-event set and
// impact map version; it holds no mutable state and is safe for
// concurrent use across markets.
type Scorer struct {
	params    models.ScanParams
	impactMap *models.ImpactMapVersion
}

// NewScorer creates a scorer bound to one explicit impact map version
func NewScorer(params models.ScanParams, impactMap *models.ImpactMapVersion) *Scorer {
	return &Scorer{params: params, impactMap: impactMap}
}

// Score sums contributions from every active event against the market's
// categories and clamps the raw total to [-KCap, +KCap]. The returned
// contributions carry the component weights for auditability.
func (s *Scorer) Score(
	market *models.Market,
	t time.Time,
	events []models.AspectEvent,
) (float64, []models.AspectContribution) {
	contribs := make([]models.AspectContribution, 0, len(events))
	var raw float64

	for i := range events {
		c, ok := Contribute(&events[i], market, t, s.impactMap, s.params)
		if !ok {
			continue
		}
		raw += c.Contribution
		contribs = append(contribs, c)
	}

	return clamp(raw, -s.params.KCap, s.params.KCap), contribs
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
