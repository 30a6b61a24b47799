// Cartwright - Budget-Aware Cart Substitution Engine
// Copyright 2026 P. Telford (ptelford)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ptelford/cartwright

package recommend

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ptelford/cartwright/internal/catalog"
	"github.com/ptelford/cartwright/internal/profiles"
	"github.com/ptelford/cartwright/internal/recommend/intent"
)

// stubScorer returns a fixed candidate list for every item.
type stubScorer struct {
	name   string
	scores []CandidateScore
	err    error
}

func (s *stubScorer) Name() string { return s.name }

func (s *stubScorer) Candidates(_ context.Context, _ string, _ CartItem) ([]CandidateScore, error) {
	return s.scores, s.err
}

// stubReranker reverses the candidate order, or fails.
type stubReranker struct {
	available bool
	err       error
	calls     int
}

func (r *stubReranker) Name() string    { return "stub" }
func (r *stubReranker) Available() bool { return r.available }

func (r *stubReranker) Rerank(_ context.Context, _ RerankContext, cands []RankedCandidate) ([]RankedCandidate, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	out := make([]RankedCandidate, len(cands))
	for i, c := range cands {
		out[len(cands)-1-i] = c
	}
	return out, nil
}

// recordingReranker keeps the last context it was invoked with and
// preserves the input order.
type recordingReranker struct {
	rc RerankContext
}

func (r *recordingReranker) Name() string    { return "recording" }
func (r *recordingReranker) Available() bool { return true }

func (r *recordingReranker) Rerank(_ context.Context, rc RerankContext, cands []RankedCandidate) ([]RankedCandidate, error) {
	r.rc = rc
	return cands, nil
}

// meatCatalog builds a small snapshot around the ribeye scenario.
func meatCatalog(t *testing.T) *catalog.Store {
	t.Helper()

	snap, err := catalog.NewSnapshot("test-v1", []catalog.Product{
		{ID: "ribeye", Title: "Ribeye Steak", Category: "meat", Subcategory: "beef", Price: 18.99, Embedding: []float64{1, 0, 0}},
		{ID: "chuck", Title: "Chuck Roast", Category: "meat", Subcategory: "beef", Price: 9.49, Embedding: []float64{0.9, 0.1, 0}},
		{ID: "sirloin", Title: "Sirloin Steak", Category: "meat", Subcategory: "beef", Price: 12.99, Embedding: []float64{0.95, 0.05, 0}},
		{ID: "chicken", Title: "Chicken Breast", Category: "meat", Subcategory: "poultry", Price: 6.99, Embedding: []float64{0.5, 0.5, 0}},
	})
	if err != nil {
		t.Fatalf("build snapshot: %v", err)
	}
	return catalog.NewStoreFromSnapshot(snap)
}

func newTestEngine(t *testing.T, cf, semantic Scorer) *Engine {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Cache.Enabled = false

	engine, err := NewEngine(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	engine.SetSnapshotProvider(meatCatalog(t))
	engine.SetScorers(cf, semantic)
	engine.SetIntentTracker(intent.NewTracker(intent.DefaultConfig(), zerolog.Nop()))
	return engine
}

func ribeyeCart() []CartItem {
	return []CartItem{
		{ProductID: "ribeye", Title: "Ribeye Steak", Subcategory: "beef", Quantity: 1, UnitPrice: 18.99},
	}
}

func TestRecommendInvalidInput(t *testing.T) {
	engine := newTestEngine(t,
		&stubScorer{name: "cf"},
		&stubScorer{name: "semantic"},
	)

	tests := []struct {
		name string
		req  Request
	}{
		{"empty session", Request{Budget: 10, Cart: ribeyeCart()}},
		{"negative budget", Request{SessionID: "s", Budget: -1, Cart: ribeyeCart()}},
		{"empty cart", Request{SessionID: "s", Budget: 10}},
		{"negative price", Request{SessionID: "s", Budget: 10, Cart: []CartItem{
			{ProductID: "x", Quantity: 1, UnitPrice: -2},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Recommend(context.Background(), tt.req)
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestRecommendWithinBudgetYieldsNothing(t *testing.T) {
	engine := newTestEngine(t,
		&stubScorer{name: "cf", scores: []CandidateScore{{ProductID: "chuck", Score: 1}}},
		&stubScorer{name: "semantic", scores: []CandidateScore{{ProductID: "chuck", Score: 1}}},
	)

	resp, err := engine.Recommend(context.Background(), Request{
		SessionID: "s1",
		Budget:    50, // cart total 18.99 is within budget
		Cart:      ribeyeCart(),
	})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(resp.Suggestions) != 0 {
		t.Errorf("suggestions for within-budget cart: %v", resp.Suggestions)
	}
	if resp.Diagnostics.OverBudget {
		t.Error("OverBudget = true for within-budget cart")
	}
}

func TestRecommendOverBudgetSuggestsCheaperBeef(t *testing.T) {
	cf := &stubScorer{name: "cf", scores: []CandidateScore{
		{ProductID: "sirloin", Score: 0.9},
		{ProductID: "chuck", Score: 0.7},
	}}
	semantic := &stubScorer{name: "semantic", scores: []CandidateScore{
		{ProductID: "sirloin", Score: 0.95},
		{ProductID: "chuck", Score: 0.85},
		{ProductID: "chicken", Score: 0.6},
	}}
	engine := newTestEngine(t, cf, semantic)

	resp, err := engine.Recommend(context.Background(), Request{
		UserID:    "u1",
		SessionID: "s1",
		Budget:    10,
		Cart:      ribeyeCart(),
	})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}

	if !resp.Diagnostics.OverBudget {
		t.Error("OverBudget = false for 18.99 cart with budget 10")
	}
	if len(resp.Suggestions) == 0 {
		t.Fatal("no suggestions for over-budget cart")
	}
	for _, s := range resp.Suggestions {
		if s.ExpectedSaving <= 0 {
			t.Errorf("%s: saving %v, must be positive", s.Replacement.ID, s.ExpectedSaving)
		}
		if s.Replacement.ID == "ribeye" {
			t.Error("item suggested as its own substitute")
		}
		if s.Reason == "" {
			t.Errorf("%s: empty explanation", s.Replacement.ID)
		}
	}
}

func TestRecommendColdStartUsesSemanticOrder(t *testing.T) {
	// CF has nothing for this user; the output order must match the
	// semantic order exactly, filtered for cheaper-only.
	semantic := &stubScorer{name: "semantic", scores: []CandidateScore{
		{ProductID: "sirloin", Score: 0.95},
		{ProductID: "chuck", Score: 0.85},
	}}
	engine := newTestEngine(t, &stubScorer{name: "cf"}, semantic)

	resp, err := engine.Recommend(context.Background(), Request{
		SessionID: "anon",
		Budget:    10,
		Cart:      ribeyeCart(),
	})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}

	if !resp.Diagnostics.ColdStart {
		t.Error("ColdStart = false with empty CF")
	}
	if len(resp.Suggestions) != 2 {
		t.Fatalf("suggestions = %d, want 2", len(resp.Suggestions))
	}
	if resp.Suggestions[0].Replacement.ID != "sirloin" || resp.Suggestions[1].Replacement.ID != "chuck" {
		t.Errorf("order = [%s %s], want semantic order [sirloin chuck]",
			resp.Suggestions[0].Replacement.ID, resp.Suggestions[1].Replacement.ID)
	}
}

func TestRecommendRerankerAbsentKeepsBlendedOrder(t *testing.T) {
	cf := &stubScorer{name: "cf", scores: []CandidateScore{
		{ProductID: "sirloin", Score: 0.9},
		{ProductID: "chuck", Score: 0.5},
	}}
	semantic := &stubScorer{name: "semantic", scores: []CandidateScore{
		{ProductID: "sirloin", Score: 0.95},
		{ProductID: "chuck", Score: 0.85},
	}}

	// Baseline without any reranker registered.
	engine := newTestEngine(t, cf, semantic)
	baseline, err := engine.Recommend(context.Background(), Request{
		SessionID: "s1", Budget: 10, Cart: ribeyeCart(),
	})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if baseline.Diagnostics.Reranked {
		t.Error("Reranked = true without a reranker")
	}

	// An unavailable reranker must produce the identical ordering.
	engine2 := newTestEngine(t, cf, semantic)
	engine2.SetReranker(&stubReranker{available: false})
	resp, err := engine2.Recommend(context.Background(), Request{
		SessionID: "s1", Budget: 10, Cart: ribeyeCart(),
	})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if resp.Diagnostics.Reranked {
		t.Error("Reranked = true with unavailable reranker")
	}
	if len(resp.Suggestions) != len(baseline.Suggestions) {
		t.Fatalf("suggestion count differs: %d vs %d", len(resp.Suggestions), len(baseline.Suggestions))
	}
	for i := range resp.Suggestions {
		if resp.Suggestions[i].Replacement.ID != baseline.Suggestions[i].Replacement.ID {
			t.Errorf("position %d: %s, want %s (blended order must be preserved)",
				i, resp.Suggestions[i].Replacement.ID, baseline.Suggestions[i].Replacement.ID)
		}
	}
}

func TestRecommendRerankerReorders(t *testing.T) {
	cf := &stubScorer{name: "cf", scores: []CandidateScore{
		{ProductID: "sirloin", Score: 0.9},
		{ProductID: "chuck", Score: 0.5},
	}}
	semantic := &stubScorer{name: "semantic", scores: []CandidateScore{
		{ProductID: "sirloin", Score: 0.95},
		{ProductID: "chuck", Score: 0.85},
	}}
	engine := newTestEngine(t, cf, semantic)

	reranker := &stubReranker{available: true}
	engine.SetReranker(reranker)

	resp, err := engine.Recommend(context.Background(), Request{
		SessionID: "s1", Budget: 10, Cart: ribeyeCart(),
	})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}

	if !resp.Diagnostics.Reranked {
		t.Error("Reranked = false with available reranker")
	}
	if reranker.calls == 0 {
		t.Error("reranker was not invoked")
	}
	// The stub reverses: chuck now precedes sirloin.
	if resp.Suggestions[0].Replacement.ID != "chuck" {
		t.Errorf("first suggestion = %s, want chuck after rerank", resp.Suggestions[0].Replacement.ID)
	}
}

func TestRecommendRerankerFailureFallsBack(t *testing.T) {
	cf := &stubScorer{name: "cf", scores: []CandidateScore{
		{ProductID: "sirloin", Score: 0.9},
		{ProductID: "chuck", Score: 0.5},
	}}
	semantic := &stubScorer{name: "semantic", scores: []CandidateScore{
		{ProductID: "sirloin", Score: 0.95},
		{ProductID: "chuck", Score: 0.85},
	}}
	engine := newTestEngine(t, cf, semantic)
	engine.SetReranker(&stubReranker{available: true, err: errors.New("inference exploded")})

	resp, err := engine.Recommend(context.Background(), Request{
		SessionID: "s1", Budget: 10, Cart: ribeyeCart(),
	})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}

	if resp.Diagnostics.Reranked {
		t.Error("Reranked = true after reranker failure")
	}
	if resp.Suggestions[0].Replacement.ID != "sirloin" {
		t.Errorf("first suggestion = %s, want blended-order sirloin", resp.Suggestions[0].Replacement.ID)
	}
}

func TestRecommendScorerFailureIsRecovered(t *testing.T) {
	// A failing CF scorer degrades to semantic-only instead of erroring.
	cf := &stubScorer{name: "cf", err: errors.New("profile store down")}
	semantic := &stubScorer{name: "semantic", scores: []CandidateScore{
		{ProductID: "chuck", Score: 0.85},
	}}
	engine := newTestEngine(t, cf, semantic)

	resp, err := engine.Recommend(context.Background(), Request{
		SessionID: "s1", Budget: 10, Cart: ribeyeCart(),
	})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(resp.Suggestions) != 1 || resp.Suggestions[0].Replacement.ID != "chuck" {
		t.Errorf("suggestions = %v, want [chuck]", resp.Suggestions)
	}
}

func TestRecommendProfileCoefficientReachesReranker(t *testing.T) {
	cf := &stubScorer{name: "cf", scores: []CandidateScore{
		{ProductID: "sirloin", Score: 0.9},
		{ProductID: "chuck", Score: 0.5},
	}}
	semantic := &stubScorer{name: "semantic", scores: []CandidateScore{
		{ProductID: "sirloin", Score: 0.95},
		{ProductID: "chuck", Score: 0.85},
	}}
	engine := newTestEngine(t, cf, semantic)
	engine.SetProfileStore(&stubProfiles{profs: map[string]*profiles.Profile{
		"u1": {UserID: "u1", PriceSensitivity: 0.8},
	}})

	reranker := &recordingReranker{}
	engine.SetReranker(reranker)

	if _, err := engine.Recommend(context.Background(), Request{
		UserID: "u1", SessionID: "s1", Budget: 10, Cart: ribeyeCart(),
	}); err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if reranker.rc.PriceSensitivity != 0.8 {
		t.Errorf("PriceSensitivity = %v, want 0.8 from the profile", reranker.rc.PriceSensitivity)
	}

	// Anonymous shoppers contribute the neutral zero.
	if _, err := engine.Recommend(context.Background(), Request{
		SessionID: "s2", Budget: 10, Cart: ribeyeCart(),
	}); err != nil {
		t.Fatalf("Recommend (anonymous): %v", err)
	}
	if reranker.rc.PriceSensitivity != 0 {
		t.Errorf("anonymous PriceSensitivity = %v, want 0", reranker.rc.PriceSensitivity)
	}
}

func TestRecommendModeOverride(t *testing.T) {
	cf := &stubScorer{name: "cf", scores: []CandidateScore{
		{ProductID: "chuck", Score: 0.9},
	}}
	semantic := &stubScorer{name: "semantic", scores: []CandidateScore{
		{ProductID: "chuck", Score: 0.85},
	}}
	engine := newTestEngine(t, cf, semantic)

	override := intent.ModeEconomy
	resp, err := engine.Recommend(context.Background(), Request{
		SessionID:    "s1",
		Budget:       10,
		Cart:         ribeyeCart(),
		ModeOverride: &override,
	})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if resp.Diagnostics.Mode != "economy" || !resp.Diagnostics.ModeOverridden {
		t.Errorf("diagnostics mode = %s overridden = %v, want economy/true",
			resp.Diagnostics.Mode, resp.Diagnostics.ModeOverridden)
	}
}

func TestRecommendResponseCache(t *testing.T) {
	cfg := DefaultConfig()
	engine, err := NewEngine(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	engine.SetSnapshotProvider(meatCatalog(t))
	engine.SetScorers(
		&stubScorer{name: "cf", scores: []CandidateScore{{ProductID: "chuck", Score: 0.9}}},
		&stubScorer{name: "semantic", scores: []CandidateScore{{ProductID: "chuck", Score: 0.85}}},
	)
	engine.SetIntentTracker(intent.NewTracker(intent.DefaultConfig(), zerolog.Nop()))

	req := Request{SessionID: "s1", Budget: 10, Cart: ribeyeCart()}

	first, err := engine.Recommend(context.Background(), req)
	if err != nil {
		t.Fatalf("first Recommend: %v", err)
	}
	if first.Diagnostics.CacheHit {
		t.Error("first request reported a cache hit")
	}

	second, err := engine.Recommend(context.Background(), req)
	if err != nil {
		t.Fatalf("second Recommend: %v", err)
	}
	if !second.Diagnostics.CacheHit {
		t.Error("second identical request missed the cache")
	}
	if len(second.Suggestions) != len(first.Suggestions) {
		t.Errorf("cached response differs: %d vs %d suggestions", len(second.Suggestions), len(first.Suggestions))
	}
}

func TestRecommendCacheUnaffectedByCallerMutation(t *testing.T) {
	engine, err := NewEngine(DefaultConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	engine.SetSnapshotProvider(meatCatalog(t))
	engine.SetScorers(
		&stubScorer{name: "cf", scores: []CandidateScore{{ProductID: "chuck", Score: 0.9}}},
		&stubScorer{name: "semantic", scores: []CandidateScore{{ProductID: "chuck", Score: 0.85}}},
	)
	engine.SetIntentTracker(intent.NewTracker(intent.DefaultConfig(), zerolog.Nop()))

	req := Request{SessionID: "s1", Budget: 10, Cart: ribeyeCart()}

	first, err := engine.Recommend(context.Background(), req)
	if err != nil {
		t.Fatalf("first Recommend: %v", err)
	}
	if len(first.Suggestions) == 0 || len(first.Diagnostics.Items) == 0 {
		t.Fatalf("unexpected empty response: %+v", first)
	}

	origTier := first.Diagnostics.Items[0].Tier
	origSaving := first.Suggestions[0].ExpectedSaving
	first.Diagnostics.Items[0].Tier = 99
	first.Suggestions[0].ExpectedSaving = -1

	second, err := engine.Recommend(context.Background(), req)
	if err != nil {
		t.Fatalf("second Recommend: %v", err)
	}
	if !second.Diagnostics.CacheHit {
		t.Fatal("second identical request missed the cache")
	}
	if second.Diagnostics.Items[0].Tier != origTier {
		t.Errorf("cached Tier = %d, want %d (caller mutation leaked into the cache)",
			second.Diagnostics.Items[0].Tier, origTier)
	}
	if second.Suggestions[0].ExpectedSaving != origSaving {
		t.Errorf("cached ExpectedSaving = %v, want %v (caller mutation leaked into the cache)",
			second.Suggestions[0].ExpectedSaving, origSaving)
	}
}
