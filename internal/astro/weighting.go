package astro

import (
	"math"
	"time"

	"github.com/ZenRasta/Astroedge/pkg/models"
)

const hoursPerDay = 24.0

// TemporalWeight returns the decay weight for an event evaluated at t.
// Weight is 1 at peak, decays as exp(-|t-peak|/lambda_days), and is 0
// outside [start, end] extended by the grace window.
func TemporalWeight(event *models.AspectEvent, t time.Time, lambdaDays, graceDays float64) float64 {
	grace := time.Duration(graceDays * hoursPerDay * float64(time.Hour))
	if t.Before(event.StartUTC.Add(-grace)) || t.After(event.EndUTC.Add(grace)) {
		return 0
	}
	distDays := math.Abs(t.Sub(event.PeakUTC).Hours()) / hoursPerDay
	return math.Exp(-distDays / lambdaDays)
}

// AngularWeight returns the orb falloff weight: 1 at orb=0, linearly
// decaying to 0 at the aspect-type orb limit. Callers must exclude events
// at or beyond the limit with InOrb before weighting.
func AngularWeight(orbDeg, orbLimit float64) float64 {
	if orbLimit <= 0 || orbDeg >= orbLimit {
		return 0
	}
	return 1 - orbDeg/orbLimit
}

// InOrb reports whether the event's orb is strictly inside the limit for
// its aspect type. The boundary is exclusive: orb == limit is excluded.
func InOrb(event *models.AspectEvent, limits models.OrbLimits) bool {
	limit := limits.For(event.Aspect)
	return limit > 0 && event.OrbDeg < limit
}

// SeverityWeight returns the fixed multiplier per severity tier.
// Major is always 1.0; minor is configurable but must not exceed it.
func SeverityWeight(severity models.Severity, minorWeight float64) float64 {
	if severity == models.SeverityMajor {
		return 1.0
	}
	return minorWeight
}

// categorySum adds the signed impact weights across all of the market's
// category tags. Missing rules and unknown categories contribute zero.
func categorySum(event *models.AspectEvent, market *models.Market, impactMap *models.ImpactMapVersion) float64 {
	var sum float64
	for _, category := range market.Categories() {
		w, ok := impactMap.WeightFor(event.Planet1, event.Planet2, event.Aspect, category)
		if !ok {
			continue
		}
		sum += float64(w)
	}
	return sum
}

// Contribute computes the materialized contribution of one aspect event to
// one market at evaluation time t. The second return is false when the
// event is excluded entirely (out of orb, or zero temporal weight), in
// which case no contribution row should be recorded.
//
// Events with no matching impact rule still yield a row: its contribution
// is zero, recorded explicitly rather than treated as a failure.
func Contribute(
	event *models.AspectEvent,
	market *models.Market,
	t time.Time,
	impactMap *models.ImpactMapVersion,
	params models.ScanParams,
) (models.AspectContribution, bool) {
	if !InOrb(event, params.OrbLimits) {
		return models.AspectContribution{}, false
	}

	temporalW := TemporalWeight(event, t, params.LambdaDays, params.GraceDays)
	if temporalW == 0 {
		return models.AspectContribution{}, false
	}

	orbLimit := params.OrbLimits.For(event.Aspect)
	angularW := AngularWeight(event.OrbDeg, orbLimit)
	severityW := SeverityWeight(event.Severity, params.MinorSeverity)
	categoryW := categorySum(event, market, impactMap)

	amp := 1.0
	if event.IsEclipse {
		amp = params.EclipseAmp
	}

	return models.AspectContribution{
		MarketID:     market.ID,
		AspectID:     event.ID,
		TemporalW:    temporalW,
		AngularW:     angularW,
		SeverityW:    severityW,
		CategoryW:    categoryW,
		EclipseAmp:   amp,
		Contribution: temporalW * angularW * severityW * categoryW * amp,
		LambdaDays:   params.LambdaDays,
		OrbLimit:     orbLimit,
		MapVersionID: impactMap.ID,
		EvaluatedAt:  t,
	}, true
}
