package ai

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	redisAdapter "github.com/ZenRasta/Astroedge/internal/adapters/redis"
	"github.com/ZenRasta/Astroedge/pkg/logger"
	"github.com/ZenRasta/Astroedge/pkg/models"
)

// TagCache remembers tagger verdicts across ingestion cycles so
// unchanged markets are not re-classified every pull.
type TagCache interface {
	Get(ctx context.Context, marketID string) (*MarketTags, bool)
	Put(ctx context.Context, marketID string, tags *MarketTags)
}

// cachedTags is the wire form stored in Redis
type cachedTags struct {
	Categories   []string `json:"categories"`
	RulesClarity string   `json:"rules_clarity"`
}

// redisTagCache stores tags in Redis with a TTL
type redisTagCache struct {
	client *redisAdapter.Client
	ttl    time.Duration
}

// NewRedisTagCache creates new Redis-backed tag cache
func NewRedisTagCache(client *redisAdapter.Client, ttl time.Duration) TagCache {
	return &redisTagCache{client: client, ttl: ttl}
}

func tagCacheKey(marketID string) string {
	return "market:tags:" + marketID
}

func (c *redisTagCache) Get(ctx context.Context, marketID string) (*MarketTags, bool) {
	raw, err := c.client.Get(ctx, tagCacheKey(marketID)).Result()
	if err != nil {
		return nil, false
	}

	var stored cachedTags
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		logger.Warn("failed to decode cached tags",
			zap.String("market_id", marketID),
			zap.Error(err),
		)
		return nil, false
	}

	tags := &MarketTags{
		Categories:   make([]models.Category, 0, len(stored.Categories)),
		RulesClarity: models.RulesClarity(stored.RulesClarity),
	}
	for _, raw := range stored.Categories {
		c := models.Category(raw)
		if c.Valid() {
			tags.Categories = append(tags.Categories, c)
		}
	}

	return tags, true
}

func (c *redisTagCache) Put(ctx context.Context, marketID string, tags *MarketTags) {
	stored := cachedTags{
		Categories:   make([]string, len(tags.Categories)),
		RulesClarity: string(tags.RulesClarity),
	}
	for i, cat := range tags.Categories {
		stored.Categories[i] = string(cat)
	}

	raw, err := json.Marshal(stored)
	if err != nil {
		return
	}

	if err := c.client.Set(ctx, tagCacheKey(marketID), raw, c.ttl).Err(); err != nil {
		logger.Warn("failed to cache tags",
			zap.String("market_id", marketID),
			zap.Error(err),
		)
	}
}
