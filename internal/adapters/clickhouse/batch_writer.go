package clickhouse

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ZenRasta/Astroedge/pkg/logger"
	"github.com/ZenRasta/Astroedge/pkg/models"
)

// BatchWriter buffers records and writes them via repository in batches
type BatchWriter struct {
	repo        *Repository
	buffer      []interface{}
	bufferMu    sync.Mutex
	maxBatch    int
	flushTicker *time.Ticker
	flushFunc   func(context.Context, *Repository, []interface{}) error
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// NewBatchWriter creates new batch writer
func NewBatchWriter(
	repo *Repository,
	maxBatch int,
	maxWait time.Duration,
	flushFunc func(context.Context, *Repository, []interface{}) error,
) *BatchWriter {
	ctx, cancel := context.WithCancel(context.Background())

	bw := &BatchWriter{
		repo:      repo,
		buffer:    make([]interface{}, 0, maxBatch),
		maxBatch:  maxBatch,
		flushFunc: flushFunc,
		ctx:       ctx,
		cancel:    cancel,
	}

	bw.flushTicker = time.NewTicker(maxWait)

	bw.wg.Add(1)
	go bw.autoFlush()

	return bw
}

// Add adds record to buffer
func (bw *BatchWriter) Add(record interface{}) {
	bw.bufferMu.Lock()
	bw.buffer = append(bw.buffer, record)
	shouldFlush := len(bw.buffer) >= bw.maxBatch
	bw.bufferMu.Unlock()

	if shouldFlush {
		bw.flush()
	}
}

// autoFlush flushes buffer periodically
func (bw *BatchWriter) autoFlush() {
	defer bw.wg.Done()

	for {
		select {
		case <-bw.flushTicker.C:
			bw.flush()
		case <-bw.ctx.Done():
			bw.flush()
			return
		}
	}
}

// flush writes buffered records to ClickHouse via repository
func (bw *BatchWriter) flush() {
	bw.bufferMu.Lock()
	if len(bw.buffer) == 0 {
		bw.bufferMu.Unlock()
		return
	}

	toWrite := make([]interface{}, len(bw.buffer))
	copy(toWrite, bw.buffer)
	bw.buffer = bw.buffer[:0]
	bw.bufferMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := bw.flushFunc(ctx, bw.repo, toWrite); err != nil {
		logger.Error("failed to flush batch to ClickHouse",
			zap.Int("records", len(toWrite)),
			zap.Error(err),
		)
		return
	}

	logger.Debug("flushed batch to ClickHouse",
		zap.Int("records", len(toWrite)),
	)
}

// Close stops the writer and flushes remaining data
func (bw *BatchWriter) Close() error {
	bw.flushTicker.Stop()
	bw.cancel()
	bw.wg.Wait()
	return nil
}

// OpportunityBatchWriter specialized writer for scan opportunities
type OpportunityBatchWriter struct {
	*BatchWriter
}

// NewOpportunityBatchWriter creates batch writer for opportunities
func NewOpportunityBatchWriter(repo *Repository, maxBatch int, maxWait time.Duration) *OpportunityBatchWriter {
	flushFunc := func(ctx context.Context, r *Repository, records []interface{}) error {
		opps := make([]models.Opportunity, len(records))
		for i, record := range records {
			opps[i] = record.(models.Opportunity)
		}
		return r.SaveOpportunities(ctx, opps)
	}

	return &OpportunityBatchWriter{BatchWriter: NewBatchWriter(repo, maxBatch, maxWait, flushFunc)}
}

// AddOpportunity adds opportunity to buffer
func (obw *OpportunityBatchWriter) AddOpportunity(opp models.Opportunity) {
	obw.Add(opp)
}

// EquityBatchWriter specialized writer for equity curve points
type EquityBatchWriter struct {
	*BatchWriter
}

// NewEquityBatchWriter creates batch writer for equity points
func NewEquityBatchWriter(repo *Repository, maxBatch int, maxWait time.Duration) *EquityBatchWriter {
	flushFunc := func(ctx context.Context, r *Repository, records []interface{}) error {
		points := make([]models.TestEquity, len(records))
		for i, record := range records {
			points[i] = record.(models.TestEquity)
		}
		return r.SaveEquity(ctx, points)
	}

	return &EquityBatchWriter{BatchWriter: NewBatchWriter(repo, maxBatch, maxWait, flushFunc)}
}

// AddEquity adds equity point to buffer
func (ebw *EquityBatchWriter) AddEquity(point models.TestEquity) {
	ebw.Add(point)
}
