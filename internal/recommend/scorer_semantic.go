// Cartwright - Budget-Aware Cart Substitution Engine
// Copyright 2026 P. Telford (ptelford)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ptelford/cartwright

package recommend

import (
	"context"
	"sort"
	"time"

	"github.com/ptelford/cartwright/internal/cache"
	"github.com/ptelford/cartwright/internal/catalog"
)

// itemEmbeddingCacheSize and itemEmbeddingCacheTTL bound the per-item
// embedding cache. Entries are keyed by catalog version, so a reload
// naturally invalidates the previous generation.
const (
	itemEmbeddingCacheSize = 2048
	itemEmbeddingCacheTTL  = 10 * time.Minute
)

// SemanticScorer scores catalog products by cosine similarity between the
// cart item's embedding and each product's precomputed embedding.
//
// The scorer needs no user history, so it never degrades on cold start.
// The item's own embedding lookup is cached per distinct item since carts
// repeat items across requests in a session.
type SemanticScorer struct {
	snapshot SnapshotProvider
	topK     int

	// itemEmbeddings caches the embedding lookup per catalog version and
	// item ID.
	itemEmbeddings *cache.LRU[[]float64]
}

// NewSemanticScorer creates the semantic-similarity scorer.
func NewSemanticScorer(snapshots SnapshotProvider, topK int) *SemanticScorer {
	if topK <= 0 {
		topK = 100
	}
	return &SemanticScorer{
		snapshot:       snapshots,
		topK:           topK,
		itemEmbeddings: cache.NewLRU[[]float64](itemEmbeddingCacheSize, itemEmbeddingCacheTTL),
	}
}

// Name returns the scorer identifier.
func (s *SemanticScorer) Name() string {
	return "semantic"
}

// Candidates returns the top-K most similar products to the cart item,
// descending, excluding the item itself.
func (s *SemanticScorer) Candidates(ctx context.Context, _ string, item CartItem) ([]CandidateScore, error) {
	snap := s.snapshot.Snapshot()

	itemEmb := s.itemEmbedding(snap, item)
	if len(itemEmb) == 0 {
		return nil, nil
	}

	products := snap.Products()
	scores := make([]CandidateScore, 0, len(products))
	for i := range products {
		if i%256 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}

		p := &products[i]
		if p.ID == item.ProductID || len(p.Embedding) == 0 {
			continue
		}

		sim := cosineSimilarity(itemEmb, p.Embedding)
		if sim <= 0 {
			continue
		}

		scores = append(scores, CandidateScore{
			ProductID: p.ID,
			Score:     sim,
			Source:    s.Name(),
		})
	}

	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].ProductID < scores[j].ProductID
	})

	if len(scores) > s.topK {
		scores = scores[:s.topK]
	}
	return scores, nil
}

// itemEmbedding resolves the cart item's embedding from the given
// snapshot, caching per catalog version and item. A stale entry from a
// previous catalog generation is never served against a newer snapshot.
func (s *SemanticScorer) itemEmbedding(snap *catalog.Snapshot, item CartItem) []float64 {
	key := snap.Version() + "|" + item.ProductID
	if emb, ok := s.itemEmbeddings.Get(key); ok {
		return emb
	}

	p, ok := snap.Get(item.ProductID)
	if !ok {
		return nil
	}

	s.itemEmbeddings.Add(key, p.Embedding)
	return p.Embedding
}

// Ensure SemanticScorer implements the interface.
var _ Scorer = (*SemanticScorer)(nil)
