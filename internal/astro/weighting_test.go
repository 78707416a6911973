package astro

import (
	"math"
	"testing"
	"time"

	"github.com/ZenRasta/Astroedge/pkg/models"
)

func testEvent(peak time.Time) *models.AspectEvent {
	return &models.AspectEvent{
		ID:       "evt-1",
		Quarter:  "2025-Q3",
		StartUTC: peak.Add(-72 * time.Hour),
		PeakUTC:  peak,
		EndUTC:   peak.Add(72 * time.Hour),
		Planet1:  models.PlanetMars,
		Planet2:  models.PlanetSaturn,
		Aspect:   models.AspectSquare,
		OrbDeg:   0,
		Severity: models.SeverityMajor,
	}
}

func testMarket(tags ...string) *models.Market {
	return &models.Market{
		ID:           "mkt-1",
		PriceYes:     0.5,
		DeadlineUTC:  time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC),
		CategoryTags: tags,
	}
}

func testImpactMap(weight int) *models.ImpactMapVersion {
	v := &models.ImpactMapVersion{
		ID: "map-v1",
		Rules: []models.ImpactRule{
			{
				Planet1:  models.PlanetMars,
				Planet2:  models.PlanetSaturn,
				Aspect:   models.AspectSquare,
				Category: models.CategoryGeopolitics,
				Weight:   weight,
			},
		},
	}
	v.BuildIndex()
	return v
}

func TestTemporalWeight(t *testing.T) {
	peak := time.Date(2025, 8, 15, 12, 0, 0, 0, time.UTC)
	evt := testEvent(peak)

	t.Run("one at peak", func(t *testing.T) {
		w := TemporalWeight(evt, peak, 5, 1)
		if w != 1.0 {
			t.Errorf("expected weight 1.0 at peak, got %v", w)
		}
	})

	t.Run("strictly decreasing away from peak", func(t *testing.T) {
		prev := 1.0
		for hours := 6; hours <= 66; hours += 6 {
			w := TemporalWeight(evt, peak.Add(time.Duration(hours)*time.Hour), 5, 1)
			if w >= prev {
				t.Fatalf("weight not strictly decreasing at +%dh: %v >= %v", hours, w, prev)
			}
			prev = w
		}
	})

	t.Run("symmetric around peak", func(t *testing.T) {
		before := TemporalWeight(evt, peak.Add(-24*time.Hour), 5, 1)
		after := TemporalWeight(evt, peak.Add(24*time.Hour), 5, 1)
		if math.Abs(before-after) > 1e-12 {
			t.Errorf("expected symmetric decay, got %v vs %v", before, after)
		}
	})

	t.Run("zero outside grace window", func(t *testing.T) {
		outside := evt.EndUTC.Add(25 * time.Hour)
		if w := TemporalWeight(evt, outside, 5, 1); w != 0 {
			t.Errorf("expected 0 outside window+grace, got %v", w)
		}
	})

	t.Run("nonzero inside grace window", func(t *testing.T) {
		inGrace := evt.EndUTC.Add(12 * time.Hour)
		if w := TemporalWeight(evt, inGrace, 5, 1); w <= 0 {
			t.Errorf("expected positive weight inside grace window, got %v", w)
		}
	})

	t.Run("exp decay matches lambda", func(t *testing.T) {
		w := TemporalWeight(evt, peak.Add(48*time.Hour), 5, 1)
		want := math.Exp(-2.0 / 5.0)
		if math.Abs(w-want) > 1e-9 {
			t.Errorf("expected %v at two days out, got %v", want, w)
		}
	})
}

func TestAngularWeight(t *testing.T) {
	t.Run("max at exact aspect", func(t *testing.T) {
		if w := AngularWeight(0, 8); w != 1.0 {
			t.Errorf("expected 1.0 at orb=0, got %v", w)
		}
	})

	t.Run("linear falloff", func(t *testing.T) {
		if w := AngularWeight(4, 8); math.Abs(w-0.5) > 1e-12 {
			t.Errorf("expected 0.5 at half the limit, got %v", w)
		}
	})

	t.Run("boundary is exclusive", func(t *testing.T) {
		evt := testEvent(time.Now().UTC())
		evt.OrbDeg = 8.0
		limits := models.OrbLimits{Conjunction: 6, Square: 8, Opposition: 8}
		if InOrb(evt, limits) {
			t.Error("orb at exactly the limit must be excluded")
		}
		evt.OrbDeg = 7.999
		if !InOrb(evt, limits) {
			t.Error("orb just inside the limit must be included")
		}
	})
}

func TestSeverityWeight(t *testing.T) {
	if w := SeverityWeight(models.SeverityMajor, 0.5); w != 1.0 {
		t.Errorf("major severity must weigh 1.0, got %v", w)
	}
	if w := SeverityWeight(models.SeverityMinor, 0.5); w != 0.5 {
		t.Errorf("minor severity must use configured weight, got %v", w)
	}
}

func TestContribute(t *testing.T) {
	peak := time.Date(2025, 8, 15, 12, 0, 0, 0, time.UTC)
	params := models.DefaultScanParams()

	t.Run("major square at peak with orb zero", func(t *testing.T) {
		evt := testEvent(peak)
		market := testMarket("geopolitics")
		c, ok := Contribute(evt, market, peak, testImpactMap(2), params)
		if !ok {
			t.Fatal("expected contribution to be included")
		}
		if c.TemporalW != 1.0 || c.AngularW != 1.0 || c.SeverityW != 1.0 {
			t.Errorf("expected unit component weights, got t=%v a=%v s=%v",
				c.TemporalW, c.AngularW, c.SeverityW)
		}
		if c.Contribution != 2.0 {
			t.Errorf("expected contribution 2.0, got %v", c.Contribution)
		}
	})

	t.Run("no rule yields explicit zero", func(t *testing.T) {
		evt := testEvent(peak)
		market := testMarket("sports")
		c, ok := Contribute(evt, market, peak, testImpactMap(2), params)
		if !ok {
			t.Fatal("in-orb event must still produce a row")
		}
		if c.Contribution != 0 || c.CategoryW != 0 {
			t.Errorf("expected zero contribution without a matching rule, got %v", c.Contribution)
		}
	})

	t.Run("unknown market category ignored", func(t *testing.T) {
		evt := testEvent(peak)
		market := testMarket("geopolitics", "astro_nonsense")
		c, ok := Contribute(evt, market, peak, testImpactMap(2), params)
		if !ok {
			t.Fatal("expected contribution to be included")
		}
		if c.Contribution != 2.0 {
			t.Errorf("unknown tag must contribute nothing, got %v", c.Contribution)
		}
	})

	t.Run("eclipse amplification", func(t *testing.T) {
		evt := testEvent(peak)
		evt.IsEclipse = true
		market := testMarket("geopolitics")
		c, ok := Contribute(evt, market, peak, testImpactMap(2), params)
		if !ok {
			t.Fatal("expected contribution to be included")
		}
		want := 2.0 * params.EclipseAmp
		if math.Abs(c.Contribution-want) > 1e-12 {
			t.Errorf("expected amplified contribution %v, got %v", want, c.Contribution)
		}
	})

	t.Run("out of orb excluded entirely", func(t *testing.T) {
		evt := testEvent(peak)
		evt.OrbDeg = 9.5
		if _, ok := Contribute(evt, testMarket("geopolitics"), peak, testImpactMap(2), params); ok {
			t.Error("event beyond orb limit must be excluded, not zero-weighted")
		}
	})

	t.Run("multiple categories sum", func(t *testing.T) {
		v := testImpactMap(2)
		v.Rules = append(v.Rules, models.ImpactRule{
			Planet1:  models.PlanetMars,
			Planet2:  models.PlanetSaturn,
			Aspect:   models.AspectSquare,
			Category: models.CategoryConflict,
			Weight:   -1,
		})
		v.BuildIndex()

		evt := testEvent(peak)
		market := testMarket("geopolitics", "conflict")
		c, ok := Contribute(evt, market, peak, v, params)
		if !ok {
			t.Fatal("expected contribution to be included")
		}
		if c.Contribution != 1.0 {
			t.Errorf("expected summed contribution 1.0 (+2-1), got %v", c.Contribution)
		}
	})
}
