package polymarket

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/ZenRasta/Astroedge/pkg/logger"
)

const (
	midpointPath = "/midpoint"

	// max token ids per concurrent midpoint batch
	midpointBatchSize = 20
)

// FetchMidpoint returns the CLOB midpoint price for one token
func (c *Client) FetchMidpoint(ctx context.Context, tokenID string) (float64, error) {
	url := fmt.Sprintf("%s%s?token_id=%s", c.clobBase, midpointPath, tokenID)

	var resp midpointResponse
	if err := c.get(ctx, c.clobLimiter, url, &resp); err != nil {
		return 0, fmt.Errorf("failed to fetch midpoint for %s: %w", tokenID, err)
	}

	mid, err := resp.Mid.Float64()
	if err != nil {
		return 0, fmt.Errorf("failed to parse midpoint %q: %w", resp.Mid.String(), err)
	}
	if mid < 0 || mid > 1 {
		return 0, fmt.Errorf("midpoint out of range for %s: %.4f", tokenID, mid)
	}

	return mid, nil
}

// FetchMidpoints fetches midpoints for many tokens concurrently. One
// goroutine per batch, the shared rate limiter paces them. Tokens the
// CLOB does not know are absent from the result, not an error.
func (c *Client) FetchMidpoints(ctx context.Context, tokenIDs []string) (map[string]float64, error) {
	if len(tokenIDs) == 0 {
		return map[string]float64{}, nil
	}

	batches := splitBatches(tokenIDs, midpointBatchSize)

	type batchResult struct {
		mids map[string]float64
		err  error
		idx  int
	}

	resultCh := make(chan batchResult, len(batches))
	var wg sync.WaitGroup

	for i, batch := range batches {
		i, batch := i, batch
		wg.Add(1)
		go func() {
			defer wg.Done()
			mids, err := c.fetchMidpointBatch(ctx, batch)
			resultCh <- batchResult{mids: mids, err: err, idx: i}
		}()
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	result := make(map[string]float64, len(tokenIDs))
	var firstErr error

	for r := range resultCh {
		if r.err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("midpoint batch %d: %w", r.idx, r.err)
			}
			continue
		}
		for k, v := range r.mids {
			result[k] = v
		}
	}

	if firstErr != nil {
		return nil, firstErr
	}

	logger.Debug("midpoints fetched",
		zap.Int("tokens", len(tokenIDs)),
		zap.Int("prices", len(result)),
	)

	return result, nil
}

func (c *Client) fetchMidpointBatch(ctx context.Context, tokenIDs []string) (map[string]float64, error) {
	body := make([]midpointRequest, len(tokenIDs))
	for i, id := range tokenIDs {
		body[i] = midpointRequest{TokenID: id}
	}

	var resp map[string]string
	url := c.clobBase + midpointPath + "s"
	if err := c.post(ctx, c.clobLimiter, url, body, &resp); err != nil {
		return nil, fmt.Errorf("POST /midpoints: %w", err)
	}

	mids := make(map[string]float64, len(resp))
	for id, raw := range resp {
		mid, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		if mid >= 0 && mid <= 1 {
			mids[id] = mid
		}
	}

	return mids, nil
}

// splitBatches splits tokenIDs into slices of at most size elements
func splitBatches(tokenIDs []string, size int) [][]string {
	if size <= 0 {
		size = midpointBatchSize
	}
	batches := make([][]string, 0, (len(tokenIDs)+size-1)/size)
	for i := 0; i < len(tokenIDs); i += size {
		end := i + size
		if end > len(tokenIDs) {
			end = len(tokenIDs)
		}
		batches = append(batches, tokenIDs[i:end])
	}
	return batches
}
