package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ZenRasta/Astroedge/internal/adapters/clickhouse"
	"github.com/ZenRasta/Astroedge/internal/adapters/redis"
	"github.com/ZenRasta/Astroedge/internal/adapters/telegram"
	"github.com/ZenRasta/Astroedge/internal/pipeline"
	"github.com/ZenRasta/Astroedge/pkg/logger"
	"github.com/ZenRasta/Astroedge/pkg/models"
)

// ImpactMapSource resolves the impact map version a scan should use
type ImpactMapSource interface {
	ActiveVersion(ctx context.Context) (*models.ImpactMapVersion, error)
}

// ScanWorker runs the live edge scan on a schedule. The Redis lock
// keeps multiple instances behind one database from scanning twice.
type ScanWorker struct {
	lock       *redis.ScanLock
	impactMaps ImpactMapSource
	events     pipeline.EventRepository
	markets    pipeline.MarketRepository
	sink       pipeline.ResultSink
	notifier   *telegram.Notifier
	oppWriter  *clickhouse.OpportunityBatchWriter
	params     models.ScanParams
	workers    int
}

// NewScanWorker creates new scan worker. Notifier and ClickHouse
// writer are optional and may be nil.
func NewScanWorker(
	lock *redis.ScanLock,
	impactMaps ImpactMapSource,
	events pipeline.EventRepository,
	markets pipeline.MarketRepository,
	sink pipeline.ResultSink,
	notifier *telegram.Notifier,
	oppWriter *clickhouse.OpportunityBatchWriter,
	params models.ScanParams,
	workers int,
) *ScanWorker {
	return &ScanWorker{
		lock:       lock,
		impactMaps: impactMaps,
		events:     events,
		markets:    markets,
		sink:       sink,
		notifier:   notifier,
		oppWriter:  oppWriter,
		params:     params,
		workers:    workers,
	}
}

// Name returns worker name
func (sw *ScanWorker) Name() string {
	return "edge_scan"
}

// Run executes one scan tick. Called periodically by
// pkg/worker.PeriodicWorker.
func (sw *ScanWorker) Run(ctx context.Context) error {
	if sw.lock != nil {
		acquired, err := sw.lock.TryAcquire(ctx)
		if err != nil {
			return fmt.Errorf("scan lock: %w", err)
		}
		if !acquired {
			return nil
		}
		defer sw.lock.Release(ctx)
	}

	version, err := sw.impactMaps.ActiveVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to load active impact map: %w", err)
	}
	if version == nil {
		return fmt.Errorf("no active impact map version")
	}

	scan := pipeline.New(sw.events, sw.markets, sw.sink, version, pipeline.Options{
		Workers: sw.workers,
	}, logger.Log)

	result, err := scan.Scan(ctx, time.Now().UTC(), sw.params)
	if err != nil {
		sw.alertError(err)
		return fmt.Errorf("scan failed: %w", err)
	}

	if sw.oppWriter != nil {
		for _, opp := range result.Opportunities {
			sw.oppWriter.AddOpportunity(opp)
		}
	}

	actionable := result.Actionable()
	if sw.notifier != nil && len(actionable) > 0 {
		if err := sw.notifier.SendScanAlert(actionable); err != nil {
			logger.Warn("failed to send scan alert", zap.Error(err))
		}
	}

	logger.Info("scan tick complete",
		zap.String("map_version", version.ID),
		zap.Int("opportunities", len(result.Opportunities)),
		zap.Int("actionable", len(actionable)),
		zap.Int("market_errors", result.MarketErrors),
	)

	return nil
}

// alertError notifies operators about a failed scan tick
func (sw *ScanWorker) alertError(err error) {
	if sw.notifier == nil {
		return
	}
	if sendErr := sw.notifier.SendErrorAlert("scan", err.Error()); sendErr != nil {
		logger.Warn("failed to send error alert", zap.Error(sendErr))
	}
}
