package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ZenRasta/Astroedge/pkg/models"
)

type fakePriceSource struct {
	tokens     map[string][]string
	mids       map[string]float64
	tokenCalls int
}

func (f *fakePriceSource) TokenIDs(ctx context.Context, conditionID string) ([]string, error) {
	f.tokenCalls++
	ids, ok := f.tokens[conditionID]
	if !ok {
		return nil, fmt.Errorf("unknown condition %s", conditionID)
	}
	return ids, nil
}

func (f *fakePriceSource) FetchMidpoints(ctx context.Context, tokenIDs []string) (map[string]float64, error) {
	out := make(map[string]float64)
	for _, id := range tokenIDs {
		if mid, ok := f.mids[id]; ok {
			out[id] = mid
		}
	}
	return out, nil
}

type fakePriceStore struct {
	active  []models.Market
	updated map[string]float64
}

func (f *fakePriceStore) ActiveMarkets(ctx context.Context, t time.Time) ([]models.Market, error) {
	return f.active, nil
}

func (f *fakePriceStore) UpdatePrices(ctx context.Context, t time.Time, prices map[string]float64) error {
	f.updated = prices
	return nil
}

func TestPriceWorker_Run(t *testing.T) {
	source := &fakePriceSource{
		tokens: map[string][]string{
			"m1": {"tok-yes-1", "tok-no-1"},
			"m2": {"tok-yes-2", "tok-no-2"},
		},
		mids: map[string]float64{
			"tok-yes-1": 0.42,
			"tok-yes-2": 0.77,
		},
	}
	store := &fakePriceStore{
		active: []models.Market{{ID: "m1"}, {ID: "m2"}},
	}

	pw := NewPriceWorker(source, store)

	if err := pw.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.updated) != 2 {
		t.Fatalf("updated %d prices, want 2", len(store.updated))
	}
	if store.updated["m1"] != 0.42 {
		t.Errorf("m1 price = %.2f, want 0.42", store.updated["m1"])
	}
	if store.updated["m2"] != 0.77 {
		t.Errorf("m2 price = %.2f, want 0.77", store.updated["m2"])
	}

	// Second run must serve token ids from the cache
	calls := source.tokenCalls
	if err := pw.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error on second run: %v", err)
	}
	if source.tokenCalls != calls {
		t.Errorf("token lookups on second run: %d, want 0", source.tokenCalls-calls)
	}
}

func TestPriceWorker_SkipsUnresolvable(t *testing.T) {
	source := &fakePriceSource{
		tokens: map[string][]string{
			"m1": {"tok-yes-1", "tok-no-1"},
		},
		mids: map[string]float64{"tok-yes-1": 0.5},
	}
	store := &fakePriceStore{
		active: []models.Market{{ID: "m1"}, {ID: "m-unknown"}},
	}

	if err := NewPriceWorker(source, store).Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.updated) != 1 {
		t.Fatalf("updated %d prices, want 1", len(store.updated))
	}
	if _, ok := store.updated["m-unknown"]; ok {
		t.Error("unresolvable market should be skipped")
	}
}

func TestPriceWorker_NoActiveMarkets(t *testing.T) {
	pw := NewPriceWorker(&fakePriceSource{}, &fakePriceStore{})
	if err := pw.Run(context.Background()); err != nil {
		t.Fatalf("empty catalog should be a no-op, got: %v", err)
	}
}
