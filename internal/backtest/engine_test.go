package backtest

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/ZenRasta/Astroedge/internal/impactmap"
	"github.com/ZenRasta/Astroedge/pkg/models"
)

var simStart = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

type stubEvents struct {
	events []models.AspectEvent
}

func (s *stubEvents) ActiveEvents(_ context.Context, _, _ time.Time) ([]models.AspectEvent, error) {
	return s.events, nil
}

type stubHistory struct {
	markets  []models.Market
	outcomes map[string]int
	failAt   *time.Time
}

func (s *stubHistory) SnapshotAt(_ context.Context, t time.Time) ([]models.Market, error) {
	if s.failAt != nil && t.Equal(*s.failAt) {
		return nil, errors.New("snapshot store unavailable")
	}
	out := make([]models.Market, 0, len(s.markets))
	for _, m := range s.markets {
		if m.DeadlineUTC.After(t) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *stubHistory) Outcome(_ context.Context, marketID string) (int, bool, error) {
	outcome, ok := s.outcomes[marketID]
	return outcome, ok, nil
}

type stubStore struct {
	created   *models.TestRun
	updated   *models.TestRun
	trades    []models.TestTrade
	equity    []models.TestEquity
	createErr error
}

func (s *stubStore) CreateRun(_ context.Context, run *models.TestRun) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = run
	return nil
}

func (s *stubStore) UpdateRun(_ context.Context, run *models.TestRun) error {
	s.updated = run
	return nil
}

func (s *stubStore) SaveTrades(_ context.Context, trades []models.TestTrade) error {
	s.trades = trades
	return nil
}

func (s *stubStore) SaveEquity(_ context.Context, equity []models.TestEquity) error {
	s.equity = equity
	return nil
}

func simMap(t *testing.T) *models.ImpactMapVersion {
	t.Helper()
	v, err := impactmap.BuildVersion(map[string]map[models.Category]int{
		"(MARS,SATURN)|square": {
			models.CategoryGeopolitics: 3,
			models.CategoryConflict:    3,
		},
	}, "sim")
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func simConfig(t *testing.T) *Config {
	t.Helper()
	return &Config{
		Name:           "unit sim",
		Kind:           models.KindBacktest,
		StartDate:      simStart,
		EndDate:        simStart.Add(14 * 24 * time.Hour),
		Step:           24 * time.Hour,
		InitialCapital: 1000,
		Params:         models.DefaultScanParams(),
		ImpactMap:      simMap(t),
	}
}

func warMarket(deadline time.Time) models.Market {
	return models.Market{
		ID:             "mkt-war",
		Title:          "Conflict escalates before deadline?",
		PriceYes:       0.5,
		DeadlineUTC:    deadline,
		LiquidityScore: 2.0,
		CategoryTags:   []string{"geopolitics", "conflict"},
		RulesClarity:   models.RulesClear,
	}
}

func peakEvent(peak time.Time) models.AspectEvent {
	return models.AspectEvent{
		ID:         "ev-square",
		Quarter:    "2025-Q1",
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

func TestRun_FlatWithoutSignals(t *testing.T) {
	cfg := simConfig(t)
	engine := NewEngine(
		&stubEvents{},
		&stubHistory{markets: []models.Market{warMarket(cfg.EndDate.Add(24 * time.Hour))}},
		nil, nil,
	)

	result, err := engine.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Run.Status != models.RunCompleted {
		t.Fatalf("expected completed, got %s", result.Run.Status)
	}
	if len(result.Trades) != 0 {
		t.Errorf("expected no trades, got %d", len(result.Trades))
	}
	for _, eq := range result.Equity {
		v, _ := eq.Equity.Float64()
		if v != cfg.InitialCapital {
			t.Fatalf("equity must stay flat with no signals, got %v at %s", v, eq.Ts)
		}
	}
	if result.Run.Metrics == nil || result.Run.Metrics.TotalReturn != 0 {
		t.Errorf("expected zero return metrics, got %+v", result.Run.Metrics)
	}
	if result.Run.FinishedAt == nil {
		t.Error("expected finished timestamp")
	}
}

func TestRun_TradeLifecycle(t *testing.T) {
	cfg := simConfig(t)
	deadline := simStart.Add(10 * 24 * time.Hour)
	history := &stubHistory{
		markets:  []models.Market{warMarket(deadline)},
		outcomes: map[string]int{"mkt-war": 1},
	}
	store := &stubStore{}
	engine := NewEngine(&stubEvents{events: []models.AspectEvent{peakEvent(simStart)}}, history, store, nil)

	result, err := engine.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Run.Status != models.RunCompleted {
		t.Fatalf("expected completed, got %s (%s)", result.Run.Status, result.Run.FailureReason)
	}

	if len(result.Trades) != 1 {
		t.Fatalf("expected exactly one trade, got %d", len(result.Trades))
	}
	trade := result.Trades[0]
	if trade.Side != models.SideYes {
		t.Errorf("expected YES side, got %s", trade.Side)
	}
	if !trade.Closed() {
		t.Fatal("trade must be settled at deadline")
	}
	if trade.Outcome == nil || *trade.Outcome != 1 {
		t.Errorf("expected recorded outcome 1, got %v", trade.Outcome)
	}
	pnl, _ := trade.RealizedPnL.Float64()
	if pnl <= 0 {
		t.Errorf("winning settlement must realize profit, got %v", pnl)
	}

	final, _ := result.Equity[len(result.Equity)-1].Equity.Float64()
	if final <= cfg.InitialCapital {
		t.Errorf("expected final equity above initial, got %v", final)
	}
	if result.Run.Metrics.TotalReturn <= 0 {
		t.Errorf("expected positive return, got %v", result.Run.Metrics.TotalReturn)
	}
	if result.Run.Metrics.WinRate != 1 {
		t.Errorf("expected win rate 1, got %v", result.Run.Metrics.WinRate)
	}

	// the notional is the capped Kelly fraction of equity at entry
	maxNotional := cfg.Params.MaxPositionSize * cfg.InitialCapital
	if trade.Qty*trade.EntryPrice > maxNotional+1e-9 {
		t.Errorf("notional %v exceeds position cap %v", trade.Qty*trade.EntryPrice, maxNotional)
	}

	if store.updated == nil || store.updated.Status != models.RunCompleted {
		t.Error("store must receive the terminal run update")
	}
	if len(store.trades) != 1 || len(store.equity) == 0 {
		t.Errorf("store must receive artifacts, got %d trades %d equity", len(store.trades), len(store.equity))
	}
	for _, eq := range store.equity {
		if eq.RunID != result.Run.ID {
			t.Fatal("equity rows must carry the run id")
		}
	}
}

func TestRun_LosingSettlement(t *testing.T) {
	cfg := simConfig(t)
	deadline := simStart.Add(10 * 24 * time.Hour)
	history := &stubHistory{
		markets:  []models.Market{warMarket(deadline)},
		outcomes: map[string]int{"mkt-war": 0},
	}
	engine := NewEngine(&stubEvents{events: []models.AspectEvent{peakEvent(simStart)}}, history, nil, nil)

	result, err := engine.Run(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	trade := result.Trades[0]
	pnl, _ := trade.RealizedPnL.Float64()
	if pnl >= 0 {
		t.Errorf("losing settlement must realize loss, got %v", pnl)
	}
	// worthless token: loss equals the full entry notional
	if math.Abs(-pnl-trade.Qty*trade.EntryPrice) > 1e-9 {
		t.Errorf("expected loss of full notional %v, got %v", trade.Qty*trade.EntryPrice, -pnl)
	}
}

func TestRun_Cancellation(t *testing.T) {
	cfg := simConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := &stubStore{}
	engine := NewEngine(&stubEvents{}, &stubHistory{}, store, nil)

	result, err := engine.Run(ctx, cfg)
	if err != nil {
		t.Fatalf("cancellation is not an error: %v", err)
	}
	if result.Run.Status != models.RunStopped {
		t.Fatalf("expected stopped, got %s", result.Run.Status)
	}
	if result.Run.FailureReason == "" {
		t.Error("stopped run should record the cancellation cause")
	}
	if store.updated == nil || store.updated.Status != models.RunStopped {
		t.Error("partial results must still be flushed on stop")
	}
}

func TestRun_StepFailure(t *testing.T) {
	cfg := simConfig(t)
	failAt := simStart.Add(5 * 24 * time.Hour)
	history := &stubHistory{
		markets: []models.Market{warMarket(cfg.EndDate.Add(24 * time.Hour))},
		failAt:  &failAt,
	}
	engine := NewEngine(&stubEvents{}, history, nil, nil)

	result, err := engine.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("step failure terminates the run, not the call: %v", err)
	}
	if result.Run.Status != models.RunFailed {
		t.Fatalf("expected failed, got %s", result.Run.Status)
	}
	if result.Run.FailedStep == nil || !result.Run.FailedStep.Equal(failAt) {
		t.Errorf("expected failing step %s, got %v", failAt, result.Run.FailedStep)
	}
	if result.Run.FailureReason == "" {
		t.Error("failed run must record the reason")
	}
	// equity before the failing step is preserved
	if len(result.Equity) != 5 {
		t.Errorf("expected 5 equity points before failure, got %d", len(result.Equity))
	}
}

func TestRun_ConfigValidation(t *testing.T) {
	engine := NewEngine(&stubEvents{}, &stubHistory{}, nil, nil)

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"end before start", func(c *Config) { c.EndDate = c.StartDate.Add(-time.Hour) }},
		{"zero step", func(c *Config) { c.Step = 0 }},
		{"zero capital", func(c *Config) { c.InitialCapital = 0 }},
		{"missing impact map", func(c *Config) { c.ImpactMap = nil }},
		{"bad kind", func(c *Config) { c.Kind = "paper" }},
		{"bad params", func(c *Config) { c.Params.LambdaGain = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := simConfig(t)
			tc.mutate(cfg)
			if _, err := engine.Run(context.Background(), cfg); err == nil {
				t.Error("expected config validation error")
			}
		})
	}
}

func TestRun_NoLookahead(t *testing.T) {
	cfg := simConfig(t)
	cfg.EndDate = simStart.Add(3 * 24 * time.Hour)

	// event peaks after the simulation window; a replay must never act on it
	history := &stubHistory{markets: []models.Market{warMarket(simStart.Add(30 * 24 * time.Hour))}}
	engine := NewEngine(
		&stubEvents{events: []models.AspectEvent{peakEvent(simStart.Add(10 * 24 * time.Hour))}},
		history, nil, nil,
	)

	result, err := engine.Run(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Trades) != 0 {
		t.Fatalf("future-peaking event must not trigger trades, got %d", len(result.Trades))
	}
	for _, eq := range result.Equity {
		v, _ := eq.Equity.Float64()
		if v != cfg.InitialCapital {
			t.Fatal("future-peaking event leaked into equity")
		}
	}
}

func TestRun_MaxPositions(t *testing.T) {
	cfg := simConfig(t)
	cfg.Params.MaxPositions = 2

	deadline := cfg.EndDate.Add(24 * time.Hour)
	markets := []models.Market{}
	for _, id := range []string{"mkt-a", "mkt-b", "mkt-c", "mkt-d"} {
		m := warMarket(deadline)
		m.ID = id
		markets = append(markets, m)
	}
	engine := NewEngine(
		&stubEvents{events: []models.AspectEvent{peakEvent(simStart)}},
		&stubHistory{markets: markets},
		nil, nil,
	)

	result, err := engine.Run(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	maxOpen := 0
	for _, eq := range result.Equity {
		if eq.OpenPositions > maxOpen {
			maxOpen = eq.OpenPositions
		}
	}
	if maxOpen > 2 {
		t.Errorf("open positions exceeded limit: %d", maxOpen)
	}
}

func TestRun_StoreFailure(t *testing.T) {
	cfg := simConfig(t)
	engine := NewEngine(&stubEvents{}, &stubHistory{}, &stubStore{createErr: errors.New("db down")}, nil)
	if _, err := engine.Run(context.Background(), cfg); err == nil {
		t.Error("expected create run error to propagate")
	}
}
