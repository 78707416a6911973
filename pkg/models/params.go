package models

import (
	"fmt"
	"time"
)

// OrbLimits holds the maximum orb (degrees) per aspect type.
// An event at or beyond its limit is excluded from scoring entirely.
type OrbLimits struct {
	Conjunction float64 `json:"conjunction"`
	Square      float64 `json:"square"`
	Opposition  float64 `json:"opposition"`
}

// For returns the orb limit for an aspect type
func (o OrbLimits) For(a Aspect) float64 {
	switch a {
	case AspectConjunction:
		return o.Conjunction
	case AspectSquare:
		return o.Square
	case AspectOpposition:
		return o.Opposition
	}
	return 0
}

// Costs holds the round-trip cost assumptions in probability units
type Costs struct {
	FeeBps   float64 `json:"fee_bps"`
	Spread   float64 `json:"spread"`
	Slippage float64 `json:"slippage"`
}

// Total returns the round-trip cost expressed in probability units
func (c Costs) Total() float64 {
	return c.FeeBps/10000.0 + c.Spread + c.Slippage
}

// ScanParams is the immutable configuration value passed into every
// pipeline call. Scoring logic never reads ambient config, so two
// concurrent scans with different params cannot interfere. A copy is
// snapshotted onto every Opportunity for reproducibility.
type ScanParams struct {
	LambdaGain    float64   `json:"lambda_gain"`
	EdgeThreshold float64   `json:"edge_threshold"`
	LambdaDays    float64   `json:"lambda_days"`
	GraceDays     float64   `json:"grace_days"`
	OrbLimits     OrbLimits `json:"orb_limits"`
	KCap          float64   `json:"k_cap"`
	EclipseAmp    float64   `json:"eclipse_amp"`
	MinorSeverity float64   `json:"minor_severity"`

	MinLiquidity  float64 `json:"min_liquidity"`
	MinDaysBuffer float64 `json:"min_days_buffer"`

	Costs Costs `json:"costs"`

	KellyMultiplier float64 `json:"kelly_multiplier"`
	MaxPositionSize float64 `json:"max_position_size"`
	MaxPositions    int     `json:"max_positions"`

	ScanInterval time.Duration `json:"scan_interval"`
}

// DefaultScanParams returns the stock parameter set
func DefaultScanParams() ScanParams {
	return ScanParams{
		LambdaGain:    0.10,
		EdgeThreshold: 0.04,
		LambdaDays:    5,
		GraceDays:     1,
		OrbLimits: OrbLimits{
			Conjunction: 6,
			Square:      8,
			Opposition:  8,
		},
		KCap:            5.0,
		EclipseAmp:      1.5,
		MinorSeverity:   0.5,
		MinLiquidity:    0.5,
		MinDaysBuffer:   2,
		Costs:           Costs{FeeBps: 60, Spread: 0.01, Slippage: 0.005},
		KellyMultiplier: 0.25,
		MaxPositionSize: 0.05,
		MaxPositions:    10,
		ScanInterval:    24 * time.Hour,
	}
}

// Validate rejects out-of-range parameters instead of silently clamping
func (p ScanParams) Validate() error {
	if p.LambdaGain <= 0 {
		return fmt.Errorf("lambda_gain must be positive, got %v", p.LambdaGain)
	}
	if p.EdgeThreshold < 0 || p.EdgeThreshold > 1 {
		return fmt.Errorf("edge_threshold must be in [0,1], got %v", p.EdgeThreshold)
	}
	if p.LambdaDays <= 0 {
		return fmt.Errorf("lambda_days must be positive, got %v", p.LambdaDays)
	}
	if p.GraceDays < 0 {
		return fmt.Errorf("grace_days must be non-negative, got %v", p.GraceDays)
	}
	if p.OrbLimits.Conjunction < 0 || p.OrbLimits.Square < 0 || p.OrbLimits.Opposition < 0 {
		return fmt.Errorf("orb limits must be non-negative")
	}
	if p.KCap <= 0 {
		return fmt.Errorf("k_cap must be positive, got %v", p.KCap)
	}
	if p.EclipseAmp < 1 {
		return fmt.Errorf("eclipse_amp must be >= 1, got %v", p.EclipseAmp)
	}
	if p.MinorSeverity <= 0 || p.MinorSeverity > 1 {
		return fmt.Errorf("minor severity weight must be in (0,1], got %v", p.MinorSeverity)
	}
	if p.Costs.FeeBps < 0 || p.Costs.Spread < 0 || p.Costs.Slippage < 0 {
		return fmt.Errorf("costs must be non-negative")
	}
	if p.KellyMultiplier <= 0 || p.KellyMultiplier > 1 {
		return fmt.Errorf("kelly_multiplier must be in (0,1], got %v", p.KellyMultiplier)
	}
	if p.MaxPositionSize <= 0 || p.MaxPositionSize > 1 {
		return fmt.Errorf("max_position_size must be in (0,1], got %v", p.MaxPositionSize)
	}
	if p.MaxPositions <= 0 {
		return fmt.Errorf("max_positions must be positive, got %d", p.MaxPositions)
	}
	if p.ScanInterval <= 0 {
		return fmt.Errorf("scan_interval must be positive, got %v", p.ScanInterval)
	}
	return nil
}
