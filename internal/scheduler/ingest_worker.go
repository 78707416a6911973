package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ZenRasta/Astroedge/internal/adapters/ai"
	"github.com/ZenRasta/Astroedge/internal/adapters/polymarket"
	"github.com/ZenRasta/Astroedge/internal/markets"
	"github.com/ZenRasta/Astroedge/pkg/logger"
)

// IngestWorker periodically pulls active markets from Polymarket,
// tags them, and records a price snapshot for later replays.
type IngestWorker struct {
	client *polymarket.Client
	tagger *ai.Tagger
	repo   *markets.Repository
}

// NewIngestWorker creates new market ingestion worker
func NewIngestWorker(client *polymarket.Client, tagger *ai.Tagger, repo *markets.Repository) *IngestWorker {
	return &IngestWorker{
		client: client,
		tagger: tagger,
		repo:   repo,
	}
}

// Name returns worker name
func (iw *IngestWorker) Name() string {
	return "market_ingest"
}

// Run executes one ingestion cycle. Called periodically by
// pkg/worker.PeriodicWorker.
func (iw *IngestWorker) Run(ctx context.Context) error {
	startTime := time.Now()

	fetched, err := iw.client.FetchActiveMarkets(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch markets: %w", err)
	}

	if iw.tagger != nil && iw.tagger.IsEnabled() {
		iw.tagger.TagMarkets(ctx, fetched)
	}

	if err := iw.repo.UpsertMarkets(ctx, fetched); err != nil {
		return fmt.Errorf("failed to upsert markets: %w", err)
	}

	snapshotAt := time.Now().UTC()
	if err := iw.repo.RecordSnapshot(ctx, snapshotAt, fetched); err != nil {
		return fmt.Errorf("failed to record snapshot: %w", err)
	}

	logger.Info("market ingestion complete",
		zap.Int("markets", len(fetched)),
		zap.Time("snapshot_at", snapshotAt),
		zap.Duration("latency", time.Since(startTime)),
	)

	return nil
}
