package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/ZenRasta/Astroedge/internal/impactmap"
	"github.com/ZenRasta/Astroedge/pkg/models"
)

var scanTime = time.Date(2025, 8, 15, 12, 0, 0, 0, time.UTC)

type fakeEvents struct {
	events []models.AspectEvent
	err    error
}

func (f *fakeEvents) ActiveEvents(_ context.Context, _, _ time.Time) ([]models.AspectEvent, error) {
	return f.events, f.err
}

type fakeMarkets struct {
	markets []models.Market
	err     error
}

func (f *fakeMarkets) ActiveMarkets(_ context.Context, _ time.Time) ([]models.Market, error) {
	return f.markets, f.err
}

type fakeSink struct {
	opps     []models.Opportunity
	contribs []models.AspectContribution
	err      error
}

func (f *fakeSink) SaveOpportunities(_ context.Context, opps []models.Opportunity) error {
	if f.err != nil {
		return f.err
	}
	f.opps = append(f.opps, opps...)
	return nil
}

func (f *fakeSink) SaveContributions(_ context.Context, contribs []models.AspectContribution) error {
	if f.err != nil {
		return f.err
	}
	f.contribs = append(f.contribs, contribs...)
	return nil
}

func testMap(t *testing.T) *models.ImpactMapVersion {
	t.Helper()
	v, err := impactmap.BuildVersion(map[string]map[models.Category]int{
		"(MARS,SATURN)|square": {
			models.CategoryGeopolitics: 2,
			models.CategoryConflict:    3,
		},
	}, "test")
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func marsSaturnSquare(id string, peak time.Time) models.AspectEvent {
	return models.AspectEvent{
		ID:         id,
		Quarter:    "2025-Q3",
		StartUTC:   peak.Add(-5 * 24 * time.Hour),
		PeakUTC:    peak,
		EndUTC:     peak.Add(5 * 24 * time.Hour),
		Planet1:    models.PlanetMars,
		Planet2:    models.PlanetSaturn,
		Aspect:     models.AspectSquare,
		OrbDeg:     0,
		Severity:   models.SeverityMajor,
		Confidence: 1,
	}
}

func scanMarket(id string, price float64, tags ...string) models.Market {
	return models.Market{
		ID:             id,
		Title:          "test market " + id,
		PriceYes:       price,
		DeadlineUTC:    scanTime.Add(30 * 24 * time.Hour),
		LiquidityScore: 2.0,
		CategoryTags:   tags,
		RulesClarity:   models.RulesClear,
	}
}

func TestScan(t *testing.T) {
	params := models.DefaultScanParams()

	t.Run("produces one opportunity per market", func(t *testing.T) {
		p := New(
			&fakeEvents{events: []models.AspectEvent{marsSaturnSquare("ev-1", scanTime)}},
			&fakeMarkets{markets: []models.Market{
				scanMarket("mkt-a", 0.5, "geopolitics"),
				scanMarket("mkt-b", 0.5),
			}},
			nil, testMap(t), Options{Workers: 4}, nil,
		)

		result, err := p.Scan(context.Background(), scanTime, params)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Opportunities) != 2 {
			t.Fatalf("expected 2 opportunities, got %d", len(result.Opportunities))
		}
		for _, o := range result.Opportunities {
			if o.Params.EdgeThreshold != params.EdgeThreshold {
				t.Errorf("opportunity %s missing params snapshot", o.MarketID)
			}
			if o.ID == "" {
				t.Errorf("opportunity %s missing id", o.MarketID)
			}
		}
	})

	t.Run("untagged market scores zero and stays at baseline", func(t *testing.T) {
		p := New(
			&fakeEvents{events: []models.AspectEvent{marsSaturnSquare("ev-1", scanTime)}},
			&fakeMarkets{markets: []models.Market{scanMarket("mkt-b", 0.4)}},
			nil, testMap(t), Options{Workers: 1}, nil,
		)

		result, err := p.Scan(context.Background(), scanTime, params)
		if err != nil {
			t.Fatal(err)
		}
		o := result.Opportunities[0]
		if o.SAstro != 0 {
			t.Errorf("expected zero score, got %v", o.SAstro)
		}
		if o.PAstro != o.P0 {
			t.Errorf("expected p_astro == p0 at zero score, got %v vs %v", o.PAstro, o.P0)
		}
		if o.Decision != models.DecisionHold {
			t.Errorf("expected HOLD, got %s", o.Decision)
		}
	})

	t.Run("ranks actionable by absolute edge descending", func(t *testing.T) {
		// three markets with the same tag but different baseline prices
		// produce different edges against the same score
		p := New(
			&fakeEvents{events: []models.AspectEvent{marsSaturnSquare("ev-1", scanTime)}},
			&fakeMarkets{markets: []models.Market{
				scanMarket("mkt-a", 0.50, "geopolitics", "conflict"),
				scanMarket("mkt-b", 0.30, "geopolitics", "conflict"),
				scanMarket("mkt-c", 0.45, "geopolitics"),
			}},
			nil, testMap(t), Options{Workers: 4}, nil,
		)

		result, err := p.Scan(context.Background(), scanTime, params)
		if err != nil {
			t.Fatal(err)
		}

		actionable := result.Actionable()
		for i := 1; i < len(actionable); i++ {
			if math.Abs(actionable[i].EdgeNet) > math.Abs(actionable[i-1].EdgeNet) {
				t.Fatalf("ranking violated at %d: %v after %v",
					i, actionable[i].EdgeNet, actionable[i-1].EdgeNet)
			}
		}
		for i, o := range result.Opportunities {
			if o.Decision == models.DecisionHold {
				for _, rest := range result.Opportunities[i:] {
					if rest.Decision != models.DecisionHold {
						t.Fatal("HOLD ranked above an actionable opportunity")
					}
				}
				break
			}
		}
	})

	t.Run("deterministic across repeated scans", func(t *testing.T) {
		markets := []models.Market{
			scanMarket("mkt-a", 0.50, "geopolitics", "conflict"),
			scanMarket("mkt-b", 0.30, "conflict"),
			scanMarket("mkt-c", 0.45, "geopolitics"),
			scanMarket("mkt-d", 0.62),
		}
		mk := func(workers int) *Result {
			p := New(
				&fakeEvents{events: []models.AspectEvent{marsSaturnSquare("ev-1", scanTime)}},
				&fakeMarkets{markets: markets},
				nil, testMap(t), Options{Workers: workers}, nil,
			)
			r, err := p.Scan(context.Background(), scanTime, params)
			if err != nil {
				t.Fatal(err)
			}
			return r
		}

		first := mk(1)
		for _, workers := range []int{1, 2, 8} {
			again := mk(workers)
			if len(again.Opportunities) != len(first.Opportunities) {
				t.Fatalf("workers=%d: size mismatch", workers)
			}
			for i := range first.Opportunities {
				a, b := first.Opportunities[i], again.Opportunities[i]
				if a.MarketID != b.MarketID || a.EdgeNet != b.EdgeNet || a.Decision != b.Decision {
					t.Fatalf("workers=%d: order or values diverged at %d: %s/%v vs %s/%v",
						workers, i, a.MarketID, a.EdgeNet, b.MarketID, b.EdgeNet)
				}
			}
		}
	})

	t.Run("invalid market is isolated not fatal", func(t *testing.T) {
		bad := scanMarket("mkt-bad", 1.7)
		p := New(
			&fakeEvents{},
			&fakeMarkets{markets: []models.Market{scanMarket("mkt-a", 0.5), bad}},
			nil, testMap(t), Options{Workers: 2}, nil,
		)

		result, err := p.Scan(context.Background(), scanTime, params)
		if err != nil {
			t.Fatalf("bad market must not abort the scan: %v", err)
		}
		if result.MarketErrors != 1 {
			t.Errorf("expected 1 market error, got %d", result.MarketErrors)
		}
		if len(result.Opportunities) != 1 {
			t.Errorf("expected 1 surviving opportunity, got %d", len(result.Opportunities))
		}
	})

	t.Run("repository failure aborts", func(t *testing.T) {
		p := New(
			&fakeEvents{err: errors.New("db down")},
			&fakeMarkets{},
			nil, testMap(t), Options{}, nil,
		)
		if _, err := p.Scan(context.Background(), scanTime, params); err == nil {
			t.Error("expected event repository error to propagate")
		}
	})

	t.Run("invalid params rejected", func(t *testing.T) {
		p := New(&fakeEvents{}, &fakeMarkets{}, nil, testMap(t), Options{}, nil)
		bad := params
		bad.LambdaGain = 0
		if _, err := p.Scan(context.Background(), scanTime, bad); err == nil {
			t.Error("expected params validation error")
		}
	})
}

func TestScan_NoLookahead(t *testing.T) {
	params := models.DefaultScanParams()
	future := marsSaturnSquare("ev-future", scanTime.Add(24*time.Hour))
	market := scanMarket("mkt-a", 0.5, "geopolitics", "conflict")

	run := func(noLookahead bool) *Result {
		p := New(
			&fakeEvents{events: []models.AspectEvent{future}},
			&fakeMarkets{markets: []models.Market{market}},
			nil, testMap(t), Options{Workers: 1, NoLookahead: noLookahead}, nil,
		)
		r, err := p.Scan(context.Background(), scanTime, params)
		if err != nil {
			t.Fatal(err)
		}
		return r
	}

	t.Run("future peak excluded in replay mode", func(t *testing.T) {
		r := run(true)
		if r.Opportunities[0].SAstro != 0 {
			t.Errorf("future event leaked into replay score: %v", r.Opportunities[0].SAstro)
		}
		if len(r.Contributions) != 0 {
			t.Errorf("expected no contribution rows, got %d", len(r.Contributions))
		}
	})

	t.Run("future peak visible in live mode", func(t *testing.T) {
		r := run(false)
		if r.Opportunities[0].SAstro == 0 {
			t.Error("approaching event should contribute in a live scan")
		}
	})
}

func TestScan_Sink(t *testing.T) {
	params := models.DefaultScanParams()

	t.Run("persists opportunities and contributions", func(t *testing.T) {
		sink := &fakeSink{}
		p := New(
			&fakeEvents{events: []models.AspectEvent{marsSaturnSquare("ev-1", scanTime)}},
			&fakeMarkets{markets: []models.Market{scanMarket("mkt-a", 0.5, "geopolitics")}},
			sink, testMap(t), Options{Workers: 1, RunID: "run-42"}, nil,
		)

		result, err := p.Scan(context.Background(), scanTime, params)
		if err != nil {
			t.Fatal(err)
		}
		if len(sink.opps) != len(result.Opportunities) {
			t.Errorf("sink got %d opportunities, scan produced %d", len(sink.opps), len(result.Opportunities))
		}
		if len(sink.contribs) != 1 {
			t.Errorf("expected 1 contribution row, got %d", len(sink.contribs))
		}
		for _, o := range sink.opps {
			if o.RunID != "run-42" {
				t.Errorf("opportunity missing run id: %+v", o)
			}
		}
	})

	t.Run("sink failure propagates", func(t *testing.T) {
		p := New(
			&fakeEvents{},
			&fakeMarkets{markets: []models.Market{scanMarket("mkt-a", 0.5)}},
			&fakeSink{err: fmt.Errorf("clickhouse down")},
			testMap(t), Options{Workers: 1}, nil,
		)
		if _, err := p.Scan(context.Background(), scanTime, params); err == nil {
			t.Error("expected sink error to propagate")
		}
	})
}
