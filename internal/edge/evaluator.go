package edge

import (
	"math"
	"time"

	"github.com/ZenRasta/Astroedge/pkg/models"
)

// Evaluation is the side-effect-free result of edge evaluation for one
// market. Same inputs always produce the same decision and size.
type Evaluation struct {
	EdgeNet    float64
	Decision   models.Decision
	SkipReason models.SkipReason
	SizeFrac   float64
}

// Evaluate computes net edge after round-trip costs, applies the decision
// thresholds, and sizes the position with capped fractional Kelly.
//
// edge_net carries the sign of the implied side: positive favors YES,
// negative favors NO. Costs are subtracted from the edge magnitude, so a
// small probability gap swallowed by costs lands near zero rather than
// flipping sides.
func Evaluate(market *models.Market, p0, pAstro float64, t time.Time, params models.ScanParams) Evaluation {
	diff := pAstro - p0
	costs := params.Costs.Total()

	var edgeNet float64
	if diff >= 0 {
		edgeNet = diff - costs
	} else {
		edgeNet = diff + costs
	}
	edgeNet = clamp(edgeNet, -1, 1)

	// Gate overrides force a skip regardless of edge, recorded distinctly
	// from a threshold-driven skip.
	if reason := gateSkip(market, t, params); reason != models.SkipNone {
		return Evaluation{EdgeNet: edgeNet, Decision: models.DecisionHold, SkipReason: reason}
	}

	switch {
	case diff > 0 && edgeNet >= params.EdgeThreshold:
		return Evaluation{
			EdgeNet:  edgeNet,
			Decision: models.DecisionBuy,
			SizeFrac: kellyFraction(p0, pAstro, edgeNet, params),
		}
	case diff < 0 && edgeNet <= -params.EdgeThreshold:
		return Evaluation{
			EdgeNet:  edgeNet,
			Decision: models.DecisionSell,
			SizeFrac: kellyFraction(1-p0, 1-pAstro, -edgeNet, params),
		}
	}

	return Evaluation{EdgeNet: edgeNet, Decision: models.DecisionHold, SkipReason: models.SkipThreshold}
}

// gateSkip applies the auxiliary market gates: liquidity floor, deadline
// buffer, and rules clarity.
func gateSkip(market *models.Market, t time.Time, params models.ScanParams) models.SkipReason {
	if market.LiquidityScore < params.MinLiquidity {
		return models.SkipLiquidity
	}
	if market.DaysToDeadline(t) < params.MinDaysBuffer {
		return models.SkipDeadline
	}
	if market.RulesClarity != models.RulesClear {
		return models.SkipRulesClarity
	}
	return models.SkipNone
}

// kellyFraction sizes a position buying the implied token at price with
// estimated win probability prob. Full Kelly for a binary payout is
// f* = (b*p - q) / b with b the net odds; the result is scaled by the
// configured Kelly multiplier and capped at max position size.
func kellyFraction(price, prob, edgeNet float64, params models.ScanParams) float64 {
	if price <= 0 || price >= 1 || edgeNet <= 0 {
		return 0
	}

	b := (1 - price) / price
	full := (b*prob - (1 - prob)) / b
	if full <= 0 {
		return 0
	}

	size := params.KellyMultiplier * full
	return math.Min(size, params.MaxPositionSize)
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
