// Cartwright - Budget-Aware Cart Substitution Engine
// Copyright 2026 P. Telford (ptelford)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ptelford/cartwright

package recommend

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/ptelford/cartwright/internal/catalog"
	"github.com/ptelford/cartwright/internal/profiles"
)

// CFScorer scores catalog products by the dot product between the user's
// learned embedding and each product's embedding.
//
// A user without a published profile is the designed cold-start signal:
// the scorer returns an empty list rather than an error, and the blender
// degrades to the semantic scorer with full weight.
type CFScorer struct {
	profiles profiles.Store
	snapshot SnapshotProvider
	topK     int
}

// SnapshotProvider supplies the current catalog snapshot. The snapshot is
// immutable, so scorers may hold it for the duration of a call.
type SnapshotProvider interface {
	Snapshot() *catalog.Snapshot
}

// NewCFScorer creates the collaborative-filtering scorer.
func NewCFScorer(store profiles.Store, snapshots SnapshotProvider, topK int) *CFScorer {
	if topK <= 0 {
		topK = 100
	}
	return &CFScorer{
		profiles: store,
		snapshot: snapshots,
		topK:     topK,
	}
}

// Name returns the scorer identifier.
func (s *CFScorer) Name() string {
	return "cf"
}

// Candidates returns the top-K catalog products by user-embedding affinity,
// descending. Cold-start users yield an empty list.
func (s *CFScorer) Candidates(ctx context.Context, userID string, item CartItem) ([]CandidateScore, error) {
	prof, err := s.profiles.Get(userID)
	if errors.Is(err, profiles.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cf scorer: %w", err)
	}
	if len(prof.Embedding) == 0 {
		return nil, nil
	}

	snap := s.snapshot.Snapshot()
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

		scores = append(scores, CandidateScore{
			ProductID: p.ID,
			Score:     dot(prof.Embedding, p.Embedding),
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

// Ensure CFScorer implements the interface.
var _ Scorer = (*CFScorer)(nil)
