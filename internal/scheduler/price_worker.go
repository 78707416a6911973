package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ZenRasta/Astroedge/pkg/logger"
	"github.com/ZenRasta/Astroedge/pkg/models"
)

// PriceSource resolves CLOB token ids and fetches midpoint prices
type PriceSource interface {
	TokenIDs(ctx context.Context, conditionID string) ([]string, error)
	FetchMidpoints(ctx context.Context, tokenIDs []string) (map[string]float64, error)
}

// PriceStore is the catalog side of a price refresh
type PriceStore interface {
	ActiveMarkets(ctx context.Context, t time.Time) ([]models.Market, error)
	UpdatePrices(ctx context.Context, t time.Time, prices map[string]float64) error
}

// PriceWorker refreshes YES prices for the active catalog between full
// ingestion passes, via CLOB midpoints. Token ids are cached per market
// because the gamma lookup costs one request each.
type PriceWorker struct {
	source PriceSource
	store  PriceStore

	// market id -> YES token id
	tokens map[string]string
}

// NewPriceWorker creates new price refresh worker
func NewPriceWorker(source PriceSource, store PriceStore) *PriceWorker {
	return &PriceWorker{
		source: source,
		store:  store,
		tokens: make(map[string]string),
	}
}

// Name returns worker name
func (pw *PriceWorker) Name() string {
	return "price_refresh"
}

// Run executes one refresh cycle. Called periodically by
// pkg/worker.PeriodicWorker, never concurrently, so the token cache
// needs no locking.
func (pw *PriceWorker) Run(ctx context.Context) error {
	startTime := time.Now()
	now := startTime.UTC()

	active, err := pw.store.ActiveMarkets(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to load active markets: %w", err)
	}
	if len(active) == 0 {
		return nil
	}

	tokenToMarket := pw.resolveTokens(ctx, active)
	if len(tokenToMarket) == 0 {
		return fmt.Errorf("no tokens resolved for %d active markets", len(active))
	}

	tokenIDs := make([]string, 0, len(tokenToMarket))
	for token := range tokenToMarket {
		tokenIDs = append(tokenIDs, token)
	}

	mids, err := pw.source.FetchMidpoints(ctx, tokenIDs)
	if err != nil {
		return fmt.Errorf("failed to fetch midpoints: %w", err)
	}

	prices := make(map[string]float64, len(mids))
	for token, mid := range mids {
		prices[tokenToMarket[token]] = mid
	}

	if err := pw.store.UpdatePrices(ctx, now, prices); err != nil {
		return fmt.Errorf("failed to update prices: %w", err)
	}

	logger.Info("price refresh complete",
		zap.Int("markets", len(active)),
		zap.Int("prices", len(prices)),
		zap.Duration("latency", time.Since(startTime)),
	)

	return nil
}

// resolveTokens returns the YES token id per market, filling the cache
// for markets seen the first time. Markets whose tokens cannot be
// resolved are skipped with a warning, one bad market must not block
// the rest of the refresh.
func (pw *PriceWorker) resolveTokens(ctx context.Context, active []models.Market) map[string]string {
	tokenToMarket := make(map[string]string, len(active))

	for i := range active {
		id := active[i].ID

		token, ok := pw.tokens[id]
		if !ok {
			ids, err := pw.source.TokenIDs(ctx, id)
			if err != nil || len(ids) == 0 {
				logger.Warn("failed to resolve token ids",
					zap.String("market_id", id),
					zap.Error(err),
				)
				continue
			}
			// First token of a binary market is the YES side
			token = ids[0]
			pw.tokens[id] = token
		}

		tokenToMarket[token] = id
	}

	return tokenToMarket
}
