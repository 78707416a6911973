package edge

import (
	"math"
	"testing"
	"time"

	"github.com/ZenRasta/Astroedge/pkg/models"
)

var evalTime = time.Date(2025, 8, 15, 12, 0, 0, 0, time.UTC)

func liquidMarket() *models.Market {
	return &models.Market{
		ID:             "mkt-1",
		PriceYes:       0.5,
		DeadlineUTC:    evalTime.Add(30 * 24 * time.Hour),
		LiquidityScore: 2.0,
		RulesClarity:   models.RulesClear,
	}
}

func TestEvaluate_Decisions(t *testing.T) {
	params := models.DefaultScanParams()

	t.Run("worked example skips below threshold", func(t *testing.T) {
		// p0=0.50, p_astro=sigmoid(0.20)~0.5498, costs=0.006+0.01+0.005
		pAstro := AdjustProbability(0.5, 2.0, 0.10)
		ev := Evaluate(liquidMarket(), 0.5, pAstro, evalTime, params)

		if math.Abs(ev.EdgeNet-0.0288) > 1e-3 {
			t.Errorf("expected edge_net ~ 0.0288, got %v", ev.EdgeNet)
		}
		if ev.Decision != models.DecisionHold {
			t.Errorf("expected HOLD, got %s", ev.Decision)
		}
		if ev.SkipReason != models.SkipThreshold {
			t.Errorf("expected threshold skip, got %q", ev.SkipReason)
		}
		if ev.SizeFrac != 0 {
			t.Errorf("HOLD must size zero, got %v", ev.SizeFrac)
		}
	})

	t.Run("buy on strong positive edge", func(t *testing.T) {
		ev := Evaluate(liquidMarket(), 0.5, 0.65, evalTime, params)
		if ev.Decision != models.DecisionBuy {
			t.Fatalf("expected BUY, got %s", ev.Decision)
		}
		want := 0.15 - params.Costs.Total()
		if math.Abs(ev.EdgeNet-want) > 1e-12 {
			t.Errorf("expected edge_net %v, got %v", want, ev.EdgeNet)
		}
		if ev.SizeFrac <= 0 || ev.SizeFrac > params.MaxPositionSize {
			t.Errorf("size %v outside (0, %v]", ev.SizeFrac, params.MaxPositionSize)
		}
	})

	t.Run("sell on strong negative edge", func(t *testing.T) {
		ev := Evaluate(liquidMarket(), 0.5, 0.35, evalTime, params)
		if ev.Decision != models.DecisionSell {
			t.Fatalf("expected SELL, got %s", ev.Decision)
		}
		if ev.EdgeNet >= 0 {
			t.Errorf("SELL edge must be negative, got %v", ev.EdgeNet)
		}
		if ev.SizeFrac <= 0 {
			t.Errorf("expected positive size on SELL, got %v", ev.SizeFrac)
		}
	})

	t.Run("costs swallowing edge never flips side", func(t *testing.T) {
		// tiny positive gap, large costs: must skip, not SELL
		ev := Evaluate(liquidMarket(), 0.5, 0.51, evalTime, params)
		if ev.Decision != models.DecisionHold {
			t.Errorf("expected HOLD when costs exceed gap, got %s", ev.Decision)
		}
	})

	t.Run("deterministic", func(t *testing.T) {
		first := Evaluate(liquidMarket(), 0.5, 0.65, evalTime, params)
		for i := 0; i < 5; i++ {
			again := Evaluate(liquidMarket(), 0.5, 0.65, evalTime, params)
			if again != first {
				t.Fatalf("evaluation not deterministic: %+v != %+v", again, first)
			}
		}
	})
}

func TestEvaluate_Gates(t *testing.T) {
	params := models.DefaultScanParams()

	t.Run("low liquidity forces skip", func(t *testing.T) {
		m := liquidMarket()
		m.LiquidityScore = 0.1
		ev := Evaluate(m, 0.5, 0.65, evalTime, params)
		if ev.Decision != models.DecisionHold || ev.SkipReason != models.SkipLiquidity {
			t.Errorf("expected liquidity skip, got %s/%q", ev.Decision, ev.SkipReason)
		}
		if ev.SizeFrac != 0 {
			t.Errorf("gated skip must size zero, got %v", ev.SizeFrac)
		}
	})

	t.Run("close deadline forces skip", func(t *testing.T) {
		m := liquidMarket()
		m.DeadlineUTC = evalTime.Add(12 * time.Hour)
		ev := Evaluate(m, 0.5, 0.65, evalTime, params)
		if ev.SkipReason != models.SkipDeadline {
			t.Errorf("expected deadline skip, got %q", ev.SkipReason)
		}
	})

	t.Run("ambiguous rules force skip", func(t *testing.T) {
		m := liquidMarket()
		m.RulesClarity = models.RulesAmbiguous
		ev := Evaluate(m, 0.5, 0.65, evalTime, params)
		if ev.SkipReason != models.SkipRulesClarity {
			t.Errorf("expected rules clarity skip, got %q", ev.SkipReason)
		}
	})

	t.Run("gate skip recorded distinctly from threshold skip", func(t *testing.T) {
		m := liquidMarket()
		m.LiquidityScore = 0.1
		gated := Evaluate(m, 0.5, 0.65, evalTime, params)
		thresholded := Evaluate(liquidMarket(), 0.5, 0.505, evalTime, params)
		if gated.SkipReason == thresholded.SkipReason {
			t.Error("gate and threshold skips must be distinguishable")
		}
	})
}

func TestKellySizing(t *testing.T) {
	params := models.DefaultScanParams()

	t.Run("never exceeds cap", func(t *testing.T) {
		for pAstro := 0.55; pAstro < 1.0; pAstro += 0.05 {
			ev := Evaluate(liquidMarket(), 0.5, pAstro, evalTime, params)
			if ev.SizeFrac > params.MaxPositionSize {
				t.Fatalf("p_astro=%v: size %v exceeds cap %v", pAstro, ev.SizeFrac, params.MaxPositionSize)
			}
		}
	})

	t.Run("monotone in edge until capped", func(t *testing.T) {
		prev := -1.0
		for pAstro := 0.56; pAstro <= 0.9; pAstro += 0.02 {
			ev := Evaluate(liquidMarket(), 0.5, pAstro, evalTime, params)
			if ev.SizeFrac < prev {
				t.Fatalf("size decreased as edge grew: %v < %v", ev.SizeFrac, prev)
			}
			prev = ev.SizeFrac
		}
	})
}
