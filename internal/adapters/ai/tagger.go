package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ZenRasta/Astroedge/internal/adapters/config"
	"github.com/ZenRasta/Astroedge/pkg/logger"
	"github.com/ZenRasta/Astroedge/pkg/models"
)

// MarketTags is the tagger's verdict for one market
type MarketTags struct {
	Categories   []models.Category
	RulesClarity models.RulesClarity
	Reasoning    string
}

// Tagger assigns category tags and a rules clarity grade to markets
// using an OpenAI-compatible chat completions endpoint.
type Tagger struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	enabled     bool
	client      *http.Client
	cache       TagCache
}

// NewTagger creates new market tagger
func NewTagger(cfg *config.AIConfig) *Tagger {
	return &Tagger{
		apiKey:      cfg.APIKey,
		baseURL:     cfg.BaseURL,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		enabled:     cfg.Enabled && cfg.APIKey != "",
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// WithCache attaches a tag cache. Cached markets skip the provider.
func (t *Tagger) WithCache(cache TagCache) *Tagger {
	t.cache = cache
	return t
}

// IsEnabled reports whether the tagger is configured and active
func (t *Tagger) IsEnabled() bool {
	return t.enabled
}

// TagMarket classifies one market. Returns an error when the provider
// is unreachable or its answer cannot be parsed.
func (t *Tagger) TagMarket(ctx context.Context, market *models.Market) (*MarketTags, error) {
	if !t.enabled {
		return nil, fmt.Errorf("tagger is disabled")
	}

	reqBody := map[string]interface{}{
		"model": t.model,
		"messages": []map[string]string{
			{"role": "system", "content": buildTagSystemPrompt()},
			{"role": "user", "content": buildTagUserPrompt(market)},
		},
		"temperature": t.temperature,
		"max_tokens":  300,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := t.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", t.apiKey))

	startTime := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	latency := time.Since(startTime)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	content := result.Choices[0].Message.Content

	logger.Debug("tagger response",
		zap.String("market_id", market.ID),
		zap.Duration("latency", latency),
		zap.String("response", content),
	)

	tags, err := parseTagResponse(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse tagger response: %w", err)
	}

	return tags, nil
}

// TagMarkets classifies markets in place. Failures on individual
// markets are logged and skipped, so one bad answer never blocks a
// whole ingestion batch. Returns the number of markets tagged.
func (t *Tagger) TagMarkets(ctx context.Context, markets []models.Market) int {
	if !t.enabled {
		return 0
	}

	tagged := 0
	for i := range markets {
		m := &markets[i]

		var tags *MarketTags
		if t.cache != nil {
			if cached, ok := t.cache.Get(ctx, m.ID); ok {
				tags = cached
			}
		}

		if tags == nil {
			fresh, err := t.TagMarket(ctx, m)
			if err != nil {
				logger.Warn("failed to tag market",
					zap.String("market_id", m.ID),
					zap.Error(err),
				)
				continue
			}
			tags = fresh
			if t.cache != nil {
				t.cache.Put(ctx, m.ID, tags)
			}
		}

		m.CategoryTags = m.CategoryTags[:0]
		for _, c := range tags.Categories {
			m.CategoryTags = append(m.CategoryTags, string(c))
		}
		m.RulesClarity = tags.RulesClarity
		tagged++
	}

	logger.Info("markets tagged",
		zap.Int("tagged", tagged),
		zap.Int("total", len(markets)),
	)

	return tagged
}
