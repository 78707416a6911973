package polymarket

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ZenRasta/Astroedge/pkg/logger"
	"github.com/ZenRasta/Astroedge/pkg/models"
)

const marketsPath = "/markets"

// FetchActiveMarkets returns all active, unresolved binary markets
// from the Gamma API. Pages with offset until a short page comes back.
func (c *Client) FetchActiveMarkets(ctx context.Context) ([]models.Market, error) {
	var all []models.Market
	offset := 0

	for {
		url := fmt.Sprintf("%s%s?active=true&closed=false&limit=%d&offset=%d",
			c.gammaBase, marketsPath, c.pageSize, offset)

		var page []gammaMarket
		if err := c.get(ctx, c.gammaLimiter, url, &page); err != nil {
			return nil, fmt.Errorf("failed to fetch gamma markets: %w", err)
		}

		for i := range page {
			m, ok := mapGammaMarket(&page[i])
			if !ok {
				continue
			}
			all = append(all, m)
		}

		logger.Debug("fetched gamma markets page",
			zap.Int("page_count", len(page)),
			zap.Int("total", len(all)),
			zap.Int("offset", offset),
		)

		if len(page) < c.pageSize {
			break
		}
		offset += c.pageSize
	}

	logger.Info("active markets fetched",
		zap.Int("total", len(all)),
	)

	return all, nil
}

// TokenIDs returns the CLOB token ids for the given market, YES first.
// Markets without CLOB tokens (off-book) return an empty slice.
func (c *Client) TokenIDs(ctx context.Context, conditionID string) ([]string, error) {
	url := fmt.Sprintf("%s%s?condition_ids=%s", c.gammaBase, marketsPath, conditionID)

	var page []gammaMarket
	if err := c.get(ctx, c.gammaLimiter, url, &page); err != nil {
		return nil, fmt.Errorf("failed to fetch market %s: %w", conditionID, err)
	}
	if len(page) == 0 {
		return nil, fmt.Errorf("market %s not found", conditionID)
	}

	return parseTokenIDs(page[0].ClobTokenIDs), nil
}
