// Cartwright - Budget-Aware Cart Substitution Engine
// Copyright 2026 P. Telford (ptelford)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ptelford/cartwright

package recommend

import (
	"context"
	"errors"
	"testing"

	"github.com/ptelford/cartwright/internal/catalog"
	"github.com/ptelford/cartwright/internal/profiles"
)

type stubProfiles struct {
	profs map[string]*profiles.Profile
	err   error
}

func (s *stubProfiles) Get(userID string) (*profiles.Profile, error) {
	if s.err != nil {
		return nil, s.err
	}
	if p, ok := s.profs[userID]; ok {
		return p, nil
	}
	return nil, profiles.ErrNotFound
}

func (s *stubProfiles) Close() error { return nil }

func embeddingCatalog(t *testing.T) *catalog.Store {
	t.Helper()

	snap, err := catalog.NewSnapshot("v1", []catalog.Product{
		{ID: "item", Embedding: []float64{1, 0}},
		{ID: "aligned", Embedding: []float64{1, 0}},
		{ID: "diagonal", Embedding: []float64{0.5, 0.5}},
		{ID: "orthogonal", Embedding: []float64{0, 1}},
		{ID: "no-embedding"},
	})
	if err != nil {
		t.Fatalf("build snapshot: %v", err)
	}
	return catalog.NewStoreFromSnapshot(snap)
}

func TestCFScorerRanksByAffinity(t *testing.T) {
	store := &stubProfiles{profs: map[string]*profiles.Profile{
		"u1": {UserID: "u1", Embedding: []float64{1, 0}},
	}}
	scorer := NewCFScorer(store, embeddingCatalog(t), 10)

	scores, err := scorer.Candidates(context.Background(), "u1", CartItem{ProductID: "item"})
	if err != nil {
		t.Fatalf("Candidates: %v", err)
	}

	// The item itself and embedding-less products are excluded; the rest
	// are ordered by dot product descending.
	want := []string{"aligned", "diagonal", "orthogonal"}
	if len(scores) != len(want) {
		t.Fatalf("got %d candidates, want %d", len(scores), len(want))
	}
	for i, id := range want {
		if scores[i].ProductID != id {
			t.Errorf("position %d = %s, want %s", i, scores[i].ProductID, id)
		}
		if scores[i].Source != "cf" {
			t.Errorf("source = %q, want cf", scores[i].Source)
		}
	}
	if scores[0].Score <= scores[1].Score || scores[1].Score <= scores[2].Score {
		t.Errorf("scores not descending: %v", scores)
	}
}

func TestCFScorerColdStart(t *testing.T) {
	scorer := NewCFScorer(&stubProfiles{}, embeddingCatalog(t), 10)

	tests := []struct {
		name   string
		userID string
	}{
		{"unknown user", "stranger"},
		{"anonymous", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scores, err := scorer.Candidates(context.Background(), tt.userID, CartItem{ProductID: "item"})
			if err != nil {
				t.Fatalf("cold start must not error: %v", err)
			}
			if len(scores) != 0 {
				t.Errorf("cold start returned %d candidates, want 0", len(scores))
			}
		})
	}
}

func TestCFScorerEmptyProfileEmbedding(t *testing.T) {
	store := &stubProfiles{profs: map[string]*profiles.Profile{
		"u1": {UserID: "u1"},
	}}
	scorer := NewCFScorer(store, embeddingCatalog(t), 10)

	scores, err := scorer.Candidates(context.Background(), "u1", CartItem{ProductID: "item"})
	if err != nil || len(scores) != 0 {
		t.Errorf("empty-embedding profile: got %d candidates, err %v; want 0, nil", len(scores), err)
	}
}

func TestCFScorerPropagatesStoreErrors(t *testing.T) {
	scorer := NewCFScorer(&stubProfiles{err: errors.New("disk on fire")}, embeddingCatalog(t), 10)

	if _, err := scorer.Candidates(context.Background(), "u1", CartItem{ProductID: "item"}); err == nil {
		t.Error("store failure did not surface")
	}
}

func TestCFScorerTopK(t *testing.T) {
	store := &stubProfiles{profs: map[string]*profiles.Profile{
		"u1": {UserID: "u1", Embedding: []float64{1, 0}},
	}}
	scorer := NewCFScorer(store, embeddingCatalog(t), 2)

	scores, err := scorer.Candidates(context.Background(), "u1", CartItem{ProductID: "item"})
	if err != nil {
		t.Fatalf("Candidates: %v", err)
	}
	if len(scores) != 2 {
		t.Errorf("got %d candidates, want top-2", len(scores))
	}
}

func TestSemanticScorerRanksBySimilarity(t *testing.T) {
	scorer := NewSemanticScorer(embeddingCatalog(t), 10)

	scores, err := scorer.Candidates(context.Background(), "", CartItem{ProductID: "item"})
	if err != nil {
		t.Fatalf("Candidates: %v", err)
	}

	// Zero-similarity products are dropped along with the item itself.
	want := []string{"aligned", "diagonal"}
	if len(scores) != len(want) {
		t.Fatalf("got %d candidates, want %d: %v", len(scores), len(want), scores)
	}
	for i, id := range want {
		if scores[i].ProductID != id {
			t.Errorf("position %d = %s, want %s", i, scores[i].ProductID, id)
		}
	}

	// Second call resolves the item embedding from cache; results match.
	again, err := scorer.Candidates(context.Background(), "", CartItem{ProductID: "item"})
	if err != nil {
		t.Fatalf("Candidates (cached): %v", err)
	}
	if len(again) != len(scores) {
		t.Errorf("cached pass returned %d candidates, want %d", len(again), len(scores))
	}
}

// swappableSnapshots serves whichever snapshot was last installed,
// standing in for a catalog store across a reload.
type swappableSnapshots struct {
	snap *catalog.Snapshot
}

func (s *swappableSnapshots) Snapshot() *catalog.Snapshot { return s.snap }

func TestSemanticScorerCacheScopedToCatalogVersion(t *testing.T) {
	v1, err := catalog.NewSnapshot("v1", []catalog.Product{
		{ID: "item", Embedding: []float64{1, 0}},
		{ID: "aligned", Embedding: []float64{1, 0}},
		{ID: "orthogonal", Embedding: []float64{0, 1}},
	})
	if err != nil {
		t.Fatalf("build v1 snapshot: %v", err)
	}
	provider := &swappableSnapshots{snap: v1}
	scorer := NewSemanticScorer(provider, 10)

	scores, err := scorer.Candidates(context.Background(), "", CartItem{ProductID: "item"})
	if err != nil {
		t.Fatalf("Candidates (v1): %v", err)
	}
	if len(scores) != 1 || scores[0].ProductID != "aligned" {
		t.Fatalf("v1 candidates = %v, want [aligned]", scores)
	}

	// A reload flips the item's embedding. The v1 cache entry must not be
	// scored against the new generation.
	v2, err := catalog.NewSnapshot("v2", []catalog.Product{
		{ID: "item", Embedding: []float64{0, 1}},
		{ID: "aligned", Embedding: []float64{1, 0}},
		{ID: "orthogonal", Embedding: []float64{0, 1}},
	})
	if err != nil {
		t.Fatalf("build v2 snapshot: %v", err)
	}
	provider.snap = v2

	scores, err = scorer.Candidates(context.Background(), "", CartItem{ProductID: "item"})
	if err != nil {
		t.Fatalf("Candidates (v2): %v", err)
	}
	if len(scores) != 1 || scores[0].ProductID != "orthogonal" {
		t.Errorf("v2 candidates = %v, want [orthogonal]", scores)
	}
}

func TestSemanticScorerUnknownItem(t *testing.T) {
	scorer := NewSemanticScorer(embeddingCatalog(t), 10)

	scores, err := scorer.Candidates(context.Background(), "", CartItem{ProductID: "not-in-catalog"})
	if err != nil {
		t.Fatalf("unknown item must not error: %v", err)
	}
	if len(scores) != 0 {
		t.Errorf("unknown item returned %d candidates, want 0", len(scores))
	}
}
