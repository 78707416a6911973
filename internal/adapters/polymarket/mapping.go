package polymarket

import (
	"encoding/json"
	"time"

	"github.com/ZenRasta/Astroedge/pkg/models"
)

// liquidityHalfScore is the USD liquidity at which the normalized
// score reaches 0.5. The saturating transform keeps deep books from
// dominating while still ordering thin markets below the gate.
const liquidityHalfScore = 10000.0

// mapGammaMarket converts a raw Gamma market into a models.Market.
// Returns false for markets that cannot be scanned: missing deadline,
// non-binary outcomes, or unparsable prices.
func mapGammaMarket(g *gammaMarket) (m models.Market, ok bool) {
	if g.ConditionID == "" || g.EndDateISO == "" {
		return m, false
	}

	deadline, err := time.Parse(time.RFC3339, g.EndDateISO)
	if err != nil {
		// Gamma sometimes returns date-only deadlines
		deadline, err = time.Parse("2006-01-02", g.EndDateISO)
		if err != nil {
			return m, false
		}
	}

	if !isBinary(g.Outcomes) {
		return m, false
	}

	price, err := g.LastradePrice.Float64()
	if err != nil || price < 0 || price > 1 {
		return m, false
	}

	liquidity, err := g.Liquidity.Float64()
	if err != nil {
		liquidity = 0
	}

	return models.Market{
		ID:             g.ConditionID,
		Title:          g.Question,
		Description:    g.Description,
		PriceYes:       price,
		DeadlineUTC:    deadline.UTC(),
		LiquidityScore: liquidityScore(liquidity),
		RulesClarity:   models.RulesClear,
		UpdatedAt:      time.Now().UTC(),
	}, true
}

// liquidityScore maps USD liquidity into [0,1) with a saturating
// transform: liq / (liq + half).
func liquidityScore(liquidity float64) float64 {
	if liquidity <= 0 {
		return 0
	}
	return liquidity / (liquidity + liquidityHalfScore)
}

// isBinary reports whether the outcomes field is exactly ["Yes","No"].
// Gamma encodes it as a JSON string array inside a string.
func isBinary(outcomes string) bool {
	var parsed []string
	if err := json.Unmarshal([]byte(outcomes), &parsed); err != nil {
		return false
	}
	return len(parsed) == 2 && parsed[0] == "Yes" && parsed[1] == "No"
}

// parseTokenIDs decodes the clobTokenIds field, a JSON string array
// inside a string. Returns nil on malformed input.
func parseTokenIDs(raw string) []string {
	if raw == "" {
		return nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil
	}
	return ids
}
