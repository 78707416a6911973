package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ZenRasta/Astroedge/internal/analytics"
	"github.com/ZenRasta/Astroedge/internal/pipeline"
	"github.com/ZenRasta/Astroedge/pkg/logger"
	"github.com/ZenRasta/Astroedge/pkg/models"
)

// MarketHistory supplies historical market snapshots and resolution
// outcomes for replay. SnapshotAt must return markets with prices as
// they stood at t, never later.
type MarketHistory interface {
	SnapshotAt(ctx context.Context, t time.Time) ([]models.Market, error)
	Outcome(ctx context.Context, marketID string) (outcome int, resolved bool, err error)
}

// RunStore persists run lifecycle and simulation artifacts. A nil
// store keeps everything in memory.
type RunStore interface {
	CreateRun(ctx context.Context, run *models.TestRun) error
	UpdateRun(ctx context.Context, run *models.TestRun) error
	SaveTrades(ctx context.Context, trades []models.TestTrade) error
	SaveEquity(ctx context.Context, equity []models.TestEquity) error
}

// Config represents one simulation request
type Config struct {
	Name           string
	Kind           models.RunKind
	StartDate      time.Time
	EndDate        time.Time
	Step           time.Duration
	InitialCapital float64
	Params         models.ScanParams
	ImpactMap      *models.ImpactMapVersion
}

// Validate rejects unrunnable configurations up front
func (c *Config) Validate() error {
	if !c.EndDate.After(c.StartDate) {
		return fmt.Errorf("end date %s must be after start date %s", c.EndDate, c.StartDate)
	}
	if c.Step <= 0 {
		return fmt.Errorf("step must be positive, got %v", c.Step)
	}
	if c.InitialCapital <= 0 {
		return fmt.Errorf("initial capital must be positive, got %v", c.InitialCapital)
	}
	if c.ImpactMap == nil {
		return fmt.Errorf("impact map version is required")
	}
	if c.Kind != models.KindBacktest && c.Kind != models.KindForwardtest {
		return fmt.Errorf("unknown run kind %q", c.Kind)
	}
	return c.Params.Validate()
}

// position is one open simulated holding
type position struct {
	trade     models.TestTrade
	deadline  time.Time
	lastPrice float64
}

// Engine replays the scan pipeline over historical snapshots step by
// step, simulating fills, settlement at market deadlines, and equity.
// Each step only sees events whose peak has already passed, so the
// replay cannot trade on information unavailable at the time.
type Engine struct {
	events  pipeline.EventRepository
	history MarketHistory
	store   RunStore
	log     *zap.Logger

	// simulation state, reset per Run
	cash      float64
	positions map[string]*position
	trades    []models.TestTrade
	equity    []models.TestEquity
	realized  float64
	fees      float64
}

// NewEngine creates a backtest engine
func NewEngine(events pipeline.EventRepository, history MarketHistory, store RunStore, log *zap.Logger) *Engine {
	if log == nil {
		if logger.Log != nil {
			log = logger.Log
		} else {
			log = zap.NewNop()
		}
	}
	return &Engine{events: events, history: history, store: store, log: log}
}

// Result bundles the finished run with its full artifact set
type Result struct {
	Run    *models.TestRun
	Trades []models.TestTrade
	Equity []models.TestEquity
}

// Run executes the simulation. Cooperative cancellation ends the run
// as stopped with partial artifacts preserved; a step failure ends it
// as failed with the failing step recorded. Neither is a Go error at
// the run level unless persistence itself breaks.
func (e *Engine) Run(ctx context.Context, cfg *Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("backtest config: %w", err)
	}

	run := &models.TestRun{
		ID:             uuid.NewString(),
		Name:           cfg.Name,
		Kind:           cfg.Kind,
		Status:         models.RunRunning,
		StartDate:      cfg.StartDate,
		EndDate:        cfg.EndDate,
		InitialCapital: cfg.InitialCapital,
		Params:         cfg.Params,
		MapVersionID:   cfg.ImpactMap.ID,
		CreatedAt:      time.Now().UTC(),
	}
	if e.store != nil {
		if err := e.store.CreateRun(ctx, run); err != nil {
			return nil, fmt.Errorf("create run: %w", err)
		}
	}

	e.cash = cfg.InitialCapital
	e.positions = make(map[string]*position)
	e.trades = nil
	e.equity = nil
	e.realized = 0
	e.fees = 0

	scan := pipeline.New(e.events, historyMarkets{e.history}, nil, cfg.ImpactMap,
		pipeline.Options{RunID: run.ID, Workers: 1, NoLookahead: true}, e.log)

	e.log.Info("starting run",
		zap.String("run_id", run.ID),
		zap.String("kind", string(cfg.Kind)),
		zap.Time("start", cfg.StartDate),
		zap.Time("end", cfg.EndDate),
		zap.Duration("step", cfg.Step),
	)

	for t := cfg.StartDate; t.Before(cfg.EndDate); t = t.Add(cfg.Step) {
		select {
		case <-ctx.Done():
			return e.finish(run, models.RunStopped, nil, ctx.Err().Error(), cfg)
		default:
		}

		if err := e.step(ctx, scan, t, cfg); err != nil {
			failedAt := t
			run.FailedStep = &failedAt
			e.log.Error("step failed", zap.String("run_id", run.ID), zap.Time("step", t), zap.Error(err))
			return e.finish(run, models.RunFailed, nil, err.Error(), cfg)
		}
	}

	e.closeRemaining(cfg.EndDate)
	e.snapshotEquity(cfg.EndDate)

	metrics := analytics.ComputeRunMetrics(cfg.InitialCapital, e.equity, e.trades, cfg.Step)
	return e.finish(run, models.RunCompleted, &metrics, "", cfg)
}

// step advances the simulation by one tick: settle due markets, scan,
// open new positions, mark the book, and record equity.
func (e *Engine) step(ctx context.Context, scan *pipeline.Pipeline, t time.Time, cfg *Config) error {
	markets, err := e.history.SnapshotAt(ctx, t)
	if err != nil {
		return fmt.Errorf("snapshot at %s: %w", t, err)
	}

	if err := e.settleDue(ctx, t); err != nil {
		return err
	}

	result, err := scan.Scan(ctx, t, cfg.Params)
	if err != nil {
		return fmt.Errorf("scan at %s: %w", t, err)
	}

	for _, opp := range result.Actionable() {
		if len(e.positions) >= cfg.Params.MaxPositions {
			break
		}
		if _, held := e.positions[opp.MarketID]; held {
			continue
		}
		m := findMarket(markets, opp.MarketID)
		if m == nil {
			continue
		}
		e.open(&opp, m, t, cfg)
	}

	e.mark(markets)
	e.snapshotEquity(t)
	return nil
}

// open simulates a fill for one actionable opportunity. Position value
// is the Kelly fraction of current equity; the fee leg of the cost
// model is charged on notional at entry.
func (e *Engine) open(opp *models.Opportunity, m *models.Market, t time.Time, cfg *Config) {
	side, err := opp.Decision.Side()
	if err != nil {
		return
	}

	price := m.PriceYes
	if side == models.SideNo {
		price = 1 - m.PriceYes
	}
	if price <= 0 || price >= 1 {
		return
	}

	notional := opp.SizeFrac * e.currentEquity()
	fee := notional * cfg.Params.Costs.FeeBps / 10000
	if notional <= 0 || notional+fee > e.cash {
		return
	}
	qty := notional / price

	e.cash -= notional + fee
	e.fees += fee

	trade := models.TestTrade{
		ID:         uuid.NewString(),
		RunID:      opp.RunID,
		MarketID:   m.ID,
		Side:       side,
		Qty:        qty,
		EntryPrice: price,
		EntryTime:  t,
		Fees:       models.NewDecimal(fee),
	}
	e.positions[m.ID] = &position{trade: trade, deadline: m.DeadlineUTC, lastPrice: price}

	e.log.Debug("position opened",
		zap.String("market_id", m.ID),
		zap.String("side", string(side)),
		zap.Float64("price", price),
		zap.Float64("qty", qty),
	)
}

// settleDue resolves every open position whose market deadline has
// passed. A YES token pays 1 when the market resolves yes, a NO token
// pays 1 when it resolves no.
func (e *Engine) settleDue(ctx context.Context, t time.Time) error {
	for id, pos := range e.positions {
		if pos.deadline.After(t) {
			continue
		}
		outcome, resolved, err := e.history.Outcome(ctx, id)
		if err != nil {
			return fmt.Errorf("outcome for %s: %w", id, err)
		}
		if !resolved {
			continue
		}

		payoff := 0.0
		if (pos.trade.Side == models.SideYes && outcome == 1) ||
			(pos.trade.Side == models.SideNo && outcome == 0) {
			payoff = 1.0
		}
		e.close(id, payoff, t, &outcome)
	}
	return nil
}

// close exits a position at the given unit price and realizes pnl
func (e *Engine) close(marketID string, price float64, t time.Time, outcome *int) {
	pos, ok := e.positions[marketID]
	if !ok {
		return
	}

	proceeds := pos.trade.Qty * price
	pnl := proceeds - pos.trade.Qty*pos.trade.EntryPrice

	e.cash += proceeds
	e.realized += pnl

	exitAt := t
	exitPrice := price
	pos.trade.ExitPrice = &exitPrice
	pos.trade.ExitTime = &exitAt
	pos.trade.Outcome = outcome
	pos.trade.RealizedPnL = models.NewDecimal(pnl)

	e.trades = append(e.trades, pos.trade)
	delete(e.positions, marketID)

	e.log.Debug("position closed",
		zap.String("market_id", marketID),
		zap.Float64("exit_price", price),
		zap.Float64("pnl", pnl),
	)
}

// closeRemaining exits still-open positions at their last marked
// price when the simulation window ends.
func (e *Engine) closeRemaining(t time.Time) {
	for id, pos := range e.positions {
		e.close(id, pos.lastPrice, t, nil)
	}
}

// mark refreshes last prices from the current snapshot
func (e *Engine) mark(markets []models.Market) {
	for i := range markets {
		if pos, ok := e.positions[markets[i].ID]; ok {
			price := markets[i].PriceYes
			if pos.trade.Side == models.SideNo {
				price = 1 - markets[i].PriceYes
			}
			pos.lastPrice = price
		}
	}
}

func (e *Engine) currentEquity() float64 {
	total := e.cash
	for _, pos := range e.positions {
		total += pos.trade.Qty * pos.lastPrice
	}
	return total
}

func (e *Engine) unrealized() float64 {
	var total float64
	for _, pos := range e.positions {
		total += pos.trade.Qty * (pos.lastPrice - pos.trade.EntryPrice)
	}
	return total
}

// snapshotEquity appends one curve point; run id is stamped at finish
func (e *Engine) snapshotEquity(t time.Time) {
	e.equity = append(e.equity, models.TestEquity{
		Ts:            t,
		Equity:        models.NewDecimal(e.currentEquity()),
		RealizedPnL:   models.NewDecimal(e.realized),
		UnrealizedPnL: models.NewDecimal(e.unrealized()),
		Fees:          models.NewDecimal(e.fees),
		OpenPositions: len(e.positions),
	})
}

// finish stamps the terminal status, flushes artifacts, and returns
// the result. Partial artifacts are preserved for stopped and failed
// runs so they can be inspected.
func (e *Engine) finish(run *models.TestRun, status models.RunStatus, metrics *models.RunMetrics, reason string, cfg *Config) (*Result, error) {
	if !run.Status.CanTransition(status) {
		return nil, fmt.Errorf("illegal status transition %s -> %s", run.Status, status)
	}
	run.Status = status
	run.Metrics = metrics
	run.FailureReason = reason
	now := time.Now().UTC()
	run.FinishedAt = &now

	for i := range e.equity {
		e.equity[i].RunID = run.ID
	}

	if e.store != nil {
		ctx := context.Background()
		if err := e.store.SaveTrades(ctx, e.trades); err != nil {
			return nil, fmt.Errorf("save trades: %w", err)
		}
		if err := e.store.SaveEquity(ctx, e.equity); err != nil {
			return nil, fmt.Errorf("save equity: %w", err)
		}
		if err := e.store.UpdateRun(ctx, run); err != nil {
			return nil, fmt.Errorf("update run: %w", err)
		}
	}

	e.log.Info("run finished",
		zap.String("run_id", run.ID),
		zap.String("status", string(status)),
		zap.Int("trades", len(e.trades)),
		zap.Int("equity_points", len(e.equity)),
	)

	return &Result{Run: run, Trades: e.trades, Equity: e.equity}, nil
}

// historyMarkets adapts MarketHistory to the pipeline market source
type historyMarkets struct {
	h MarketHistory
}

func (a historyMarkets) ActiveMarkets(ctx context.Context, t time.Time) ([]models.Market, error) {
	return a.h.SnapshotAt(ctx, t)
}

func findMarket(markets []models.Market, id string) *models.Market {
	for i := range markets {
		if markets[i].ID == id {
			return &markets[i]
		}
	}
	return nil
}

