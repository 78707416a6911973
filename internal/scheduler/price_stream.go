package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ZenRasta/Astroedge/internal/adapters/polymarket"
	"github.com/ZenRasta/Astroedge/pkg/logger"
)

// Ticks arrive far faster than the catalog needs, the stream buffers
// them and flushes the latest price per market on this cadence.
const streamFlushInterval = 15 * time.Second

// PriceStream pushes live CLOB ticks into the catalog over the market
// WebSocket channel. It complements the midpoint poll of PriceWorker
// with near real time prices between polls.
type PriceStream struct {
	source PriceSource
	store  PriceStore
	wsURL  string
}

// NewPriceStream creates new streaming price updater
func NewPriceStream(source PriceSource, store PriceStore, wsURL string) *PriceStream {
	return &PriceStream{
		source: source,
		store:  store,
		wsURL:  wsURL,
	}
}

// Run subscribes to the market channel for the current active catalog
// and applies ticks until ctx is cancelled. Markets ingested after
// subscription are picked up by the periodic poll instead.
func (ps *PriceStream) Run(ctx context.Context) error {
	now := time.Now().UTC()

	active, err := ps.store.ActiveMarkets(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to load active markets: %w", err)
	}

	tokenToMarket := make(map[string]string, len(active))
	for i := range active {
		id := active[i].ID
		ids, err := ps.source.TokenIDs(ctx, id)
		if err != nil || len(ids) == 0 {
			logger.Warn("failed to resolve token ids for stream",
				zap.String("market_id", id),
				zap.Error(err),
			)
			continue
		}
		tokenToMarket[ids[0]] = id
	}

	if len(tokenToMarket) == 0 {
		return fmt.Errorf("no tokens to stream")
	}

	tokenIDs := make([]string, 0, len(tokenToMarket))
	for token := range tokenToMarket {
		tokenIDs = append(tokenIDs, token)
	}

	stream := polymarket.NewMarketStream(ps.wsURL, tokenIDs)
	if err := stream.Connect(); err != nil {
		return fmt.Errorf("failed to connect price stream: %w", err)
	}
	defer stream.Close()

	logger.Info("price stream started",
		zap.Int("tokens", len(tokenIDs)),
	)

	pending := make(map[string]float64)
	ticker := time.NewTicker(streamFlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			ps.flush(context.Background(), pending)
			return nil

		case update := <-stream.Prices():
			if marketID, ok := tokenToMarket[update.AssetID]; ok {
				pending[marketID] = update.Price
			}

		case err := <-stream.Errors():
			logger.Warn("price stream error", zap.Error(err))

		case <-ticker.C:
			ps.flush(ctx, pending)
			pending = make(map[string]float64)
		}
	}
}

func (ps *PriceStream) flush(ctx context.Context, pending map[string]float64) {
	if len(pending) == 0 {
		return
	}

	if err := ps.store.UpdatePrices(ctx, time.Now().UTC(), pending); err != nil {
		logger.Error("failed to flush streamed prices",
			zap.Int("markets", len(pending)),
			zap.Error(err),
		)
		return
	}

	logger.Debug("streamed prices flushed",
		zap.Int("markets", len(pending)),
	)
}
