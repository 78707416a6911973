package pipeline

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ZenRasta/Astroedge/internal/astro"
	"github.com/ZenRasta/Astroedge/internal/edge"
	"github.com/ZenRasta/Astroedge/pkg/models"
)

// EventRepository supplies aspect events whose influence window can
// overlap the scan time.
type EventRepository interface {
	ActiveEvents(ctx context.Context, from, to time.Time) ([]models.AspectEvent, error)
}

// MarketRepository supplies the markets eligible for scanning as of t
type MarketRepository interface {
	ActiveMarkets(ctx context.Context, t time.Time) ([]models.Market, error)
}

// ResultSink persists finished scan output. A nil sink keeps results
// in memory only, which is what the backtest engine wants.
type ResultSink interface {
	SaveOpportunities(ctx context.Context, opps []models.Opportunity) error
	SaveContributions(ctx context.Context, contribs []models.AspectContribution) error
}

// Options tunes one pipeline instance
type Options struct {
	// RunID stamps every produced opportunity; empty for live scans
	RunID string

	// Workers sets the analysis pool size; <= 0 means NumCPU * 2
	Workers int

	// NoLookahead drops events whose peak lies after the scan time.
	// Historical replays must set this so future events contribute zero.
	NoLookahead bool
}

// Pipeline runs the scan: load events and markets, score each market
// against one explicit impact map version, evaluate edge, rank.
type Pipeline struct {
	events    EventRepository
	markets   MarketRepository
	sink      ResultSink
	impactMap *models.ImpactMapVersion
	opts      Options
	log       *zap.Logger
}

// New creates a pipeline bound to one impact map version
func New(
	events EventRepository,
	markets MarketRepository,
	sink ResultSink,
	impactMap *models.ImpactMapVersion,
	opts Options,
	log *zap.Logger,
) *Pipeline {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU() * 2
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		events:    events,
		markets:   markets,
		sink:      sink,
		impactMap: impactMap,
		opts:      opts,
		log:       log,
	}
}

// Result is the output of one scan tick
type Result struct {
	ScanTime      time.Time
	Opportunities []models.Opportunity
	Contributions []models.AspectContribution

	// MarketErrors counts markets dropped by per-market failures.
	// A bad market never aborts the scan.
	MarketErrors int
}

// Actionable returns the non-HOLD opportunities, already ranked by
// absolute net edge descending.
func (r *Result) Actionable() []models.Opportunity {
	out := make([]models.Opportunity, 0, len(r.Opportunities))
	for _, o := range r.Opportunities {
		if o.Decision != models.DecisionHold {
			out = append(out, o)
		}
	}
	return out
}

type marketOutput struct {
	opp      models.Opportunity
	contribs []models.AspectContribution
	err      error
}

// Scan evaluates every active market at time t. Repository failures
// abort the scan; individual market failures are logged and counted.
func (p *Pipeline) Scan(ctx context.Context, t time.Time, params models.ScanParams) (*Result, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("scan params: %w", err)
	}

	// Influence window: temporal weight is zero beyond grace days past
	// the event window, so anything outside this range cannot score.
	grace := time.Duration(params.GraceDays * 24 * float64(time.Hour))
	events, err := p.events.ActiveEvents(ctx, t.Add(-grace), t.Add(grace))
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	if p.opts.NoLookahead {
		events = dropFuturePeaks(events, t)
	}

	markets, err := p.markets.ActiveMarkets(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("load markets: %w", err)
	}

	scorer := astro.NewScorer(params, p.impactMap)

	workCh := make(chan models.Market, len(markets))
	resultCh := make(chan marketOutput, len(markets))

	var wg sync.WaitGroup
	for i := 0; i < p.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for m := range workCh {
				resultCh <- p.evaluateMarket(&m, t, events, scorer, params)
			}
		}()
	}

	for _, m := range markets {
		workCh <- m
	}
	close(workCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	result := &Result{ScanTime: t}
	for out := range resultCh {
		if out.err != nil {
			result.MarketErrors++
			p.log.Warn("market evaluation failed", zap.Error(out.err))
			continue
		}
		result.Opportunities = append(result.Opportunities, out.opp)
		result.Contributions = append(result.Contributions, out.contribs...)
	}

	rankOpportunities(result.Opportunities)
	sortContributions(result.Contributions)

	if p.sink != nil {
		if err := p.sink.SaveOpportunities(ctx, result.Opportunities); err != nil {
			return nil, fmt.Errorf("save opportunities: %w", err)
		}
		if err := p.sink.SaveContributions(ctx, result.Contributions); err != nil {
			return nil, fmt.Errorf("save contributions: %w", err)
		}
	}

	p.log.Info("scan complete",
		zap.Time("scan_time", t),
		zap.Int("markets", len(markets)),
		zap.Int("events", len(events)),
		zap.Int("opportunities", len(result.Opportunities)),
		zap.Int("actionable", len(result.Actionable())),
		zap.Int("market_errors", result.MarketErrors),
	)

	return result, nil
}

func (p *Pipeline) evaluateMarket(
	m *models.Market,
	t time.Time,
	events []models.AspectEvent,
	scorer *astro.Scorer,
	params models.ScanParams,
) marketOutput {
	if err := m.Validate(); err != nil {
		return marketOutput{err: err}
	}

	sAstro, contribs := scorer.Score(m, t, events)
	p0 := m.PriceYes
	pAstro := edge.AdjustProbability(p0, sAstro, params.LambdaGain)
	ev := edge.Evaluate(m, p0, pAstro, t, params)

	opp := models.Opportunity{
		ID:         uuid.NewString(),
		RunID:      p.opts.RunID,
		MarketID:   m.ID,
		ScanTime:   t,
		P0:         p0,
		SAstro:     sAstro,
		PAstro:     pAstro,
		EdgeNet:    ev.EdgeNet,
		Decision:   ev.Decision,
		SkipReason: ev.SkipReason,
		SizeFrac:   ev.SizeFrac,
		Params:     params,
		CreatedAt:  time.Now().UTC(),
	}
	if err := opp.Validate(); err != nil {
		return marketOutput{err: fmt.Errorf("market %s: %w", m.ID, err)}
	}

	return marketOutput{opp: opp, contribs: contribs}
}

// dropFuturePeaks filters out events peaking after the cutoff so a
// replay at t only sees what was knowable at t.
func dropFuturePeaks(events []models.AspectEvent, cutoff time.Time) []models.AspectEvent {
	kept := make([]models.AspectEvent, 0, len(events))
	for _, e := range events {
		if e.PeakUTC.After(cutoff) {
			continue
		}
		kept = append(kept, e)
	}
	return kept
}

// rankOpportunities orders actionable decisions first by absolute net
// edge descending, holds after, market id as the final tiebreak. The
// order is total, so concurrent evaluation stays reproducible.
func rankOpportunities(opps []models.Opportunity) {
	sort.Slice(opps, func(i, j int) bool {
		a, b := opps[i], opps[j]
		aHold := a.Decision == models.DecisionHold
		bHold := b.Decision == models.DecisionHold
		if aHold != bHold {
			return bHold
		}
		ae, be := math.Abs(a.EdgeNet), math.Abs(b.EdgeNet)
		if ae != be {
			return ae > be
		}
		return a.MarketID < b.MarketID
	})
}

func sortContributions(contribs []models.AspectContribution) {
	sort.Slice(contribs, func(i, j int) bool {
		a, b := contribs[i], contribs[j]
		if a.MarketID != b.MarketID {
			return a.MarketID < b.MarketID
		}
		return a.AspectID < b.AspectID
	})
}
