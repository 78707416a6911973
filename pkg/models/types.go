package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// NewDecimal creates decimal from float64
func NewDecimal(value float64) decimal.Decimal {
	return decimal.NewFromFloat(value)
}

// Planet represents a celestial body used in aspect events
type Planet string

const (
	PlanetSun     Planet = "SUN"
	PlanetMoon    Planet = "MOON"
	PlanetMercury Planet = "MERCURY"
	PlanetVenus   Planet = "VENUS"
	PlanetMars    Planet = "MARS"
	PlanetJupiter Planet = "JUPITER"
	PlanetSaturn  Planet = "SATURN"
	PlanetUranus  Planet = "URANUS"
	PlanetNeptune Planet = "NEPTUNE"
	PlanetPluto   Planet = "PLUTO"
)

// planetOrder defines canonical ordering for planet pairs
var planetOrder = map[Planet]int{
	PlanetSun:     0,
	PlanetMoon:    1,
	PlanetMercury: 2,
	PlanetVenus:   3,
	PlanetMars:    4,
	PlanetJupiter: 5,
	PlanetSaturn:  6,
	PlanetUranus:  7,
	PlanetNeptune: 8,
	PlanetPluto:   9,
}

// Valid reports whether the planet is one of the supported bodies
func (p Planet) Valid() bool {
	_, ok := planetOrder[p]
	return ok
}

// CanonicalPair sorts a planet pair into canonical order (Sun first, Pluto last)
func CanonicalPair(p1, p2 Planet) (Planet, Planet) {
	if planetOrder[p1] > planetOrder[p2] {
		return p2, p1
	}
	return p1, p2
}

// Aspect represents an angular relationship between two planets
type Aspect string

const (
	AspectConjunction Aspect = "conjunction"
	AspectSquare      Aspect = "square"
	AspectOpposition  Aspect = "opposition"
)

// Valid reports whether the aspect type is supported
func (a Aspect) Valid() bool {
	switch a {
	case AspectConjunction, AspectSquare, AspectOpposition:
		return true
	}
	return false
}

// Severity represents aspect strength tier
type Severity string

const (
	SeverityMajor Severity = "major"
	SeverityMinor Severity = "minor"
)

// Valid reports whether the severity tier is supported
func (s Severity) Valid() bool {
	return s == SeverityMajor || s == SeverityMinor
}

// Category represents a market category tag from the closed set
type Category string

const (
	CategoryGeopolitics        Category = "geopolitics"
	CategoryConflict           Category = "conflict"
	CategoryAccidentsInfra     Category = "accidents_infrastructure"
	CategoryLegalRegulatory    Category = "legal_regulatory"
	CategoryMarketsFinance     Category = "markets_finance"
	CategoryCommunicationsTech Category = "communications_tech"
	CategoryPublicSentiment    Category = "public_sentiment"
	CategorySports             Category = "sports"
	CategoryEntertainment      Category = "entertainment"
	CategoryScienceHealth      Category = "science_health"
	CategoryWeather            Category = "weather"
)

// AllCategories lists every supported market category
var AllCategories = []Category{
	CategoryGeopolitics,
	CategoryConflict,
	CategoryAccidentsInfra,
	CategoryLegalRegulatory,
	CategoryMarketsFinance,
	CategoryCommunicationsTech,
	CategoryPublicSentiment,
	CategorySports,
	CategoryEntertainment,
	CategoryScienceHealth,
	CategoryWeather,
}

// Valid reports whether the category is in the closed set
func (c Category) Valid() bool {
	for _, known := range AllCategories {
		if c == known {
			return true
		}
	}
	return false
}

// RulesClarity represents how unambiguous a market's resolution rules are
type RulesClarity string

const (
	RulesClear     RulesClarity = "clear"
	RulesAmbiguous RulesClarity = "ambiguous"
	RulesUnclear   RulesClarity = "unclear"
)

// Decision represents the trade decision for an opportunity.
// BUY means buy YES, SELL means buy NO, HOLD means skip.
type Decision string

const (
	DecisionBuy  Decision = "BUY"
	DecisionSell Decision = "SELL"
	DecisionHold Decision = "HOLD"
)

// TradeSide represents the outcome token a simulated trade holds
type TradeSide string

const (
	SideYes TradeSide = "YES"
	SideNo  TradeSide = "NO"
)

// Side maps a non-HOLD decision to the outcome token it implies
func (d Decision) Side() (TradeSide, error) {
	switch d {
	case DecisionBuy:
		return SideYes, nil
	case DecisionSell:
		return SideNo, nil
	}
	return "", fmt.Errorf("decision %q implies no side", d)
}

// SkipReason explains why an opportunity decision is HOLD.
// A threshold skip is the normal path; gate skips are forced overrides.
type SkipReason string

const (
	SkipNone         SkipReason = ""
	SkipThreshold    SkipReason = "below_threshold"
	SkipLiquidity    SkipReason = "low_liquidity"
	SkipDeadline     SkipReason = "deadline_too_close"
	SkipRulesClarity SkipReason = "rules_unclear"
)

// RunStatus represents the lifecycle state of a test run
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunStopped   RunStatus = "stopped"
)

// Terminal reports whether the status permits no further transitions
func (s RunStatus) Terminal() bool {
	switch s {
	case RunCompleted, RunFailed, RunStopped:
		return true
	}
	return false
}

// CanTransition reports whether a status change is legal.
// The only legal transitions are running -> {completed, failed, stopped}.
func (s RunStatus) CanTransition(to RunStatus) bool {
	return s == RunRunning && to.Terminal()
}

// RunKind distinguishes historical replays from live paper runs
type RunKind string

const (
	KindBacktest    RunKind = "backtest"
	KindForwardtest RunKind = "forwardtest"
)
