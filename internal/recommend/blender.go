// Cartwright - Budget-Aware Cart Substitution Engine
// Copyright 2026 P. Telford (ptelford)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ptelford/cartwright

package recommend

import "sort"

// BlendedCandidate is a candidate with its combined and component scores.
type BlendedCandidate struct {
	// ProductID identifies the candidate.
	ProductID string

	// Score is the convex combination of the normalized scorer scores.
	Score float64

	// CFScore is the normalized collaborative-filtering component.
	CFScore float64

	// SemScore is the normalized semantic component.
	SemScore float64
}

// Blender merges the CF and semantic candidate lists into one ranked list
// using a fixed convex combination over min-max-normalized scores.
//
// When one scorer returns an empty list (cold start), the blend degrades
// to the other scorer's list with full weight, preserving that scorer's
// order exactly.
type Blender struct {
	weights BlendWeights
}

// NewBlender creates a blender with the given scorer weights.
// Weights are normalized to sum to 1.
func NewBlender(weights BlendWeights) *Blender {
	return &Blender{weights: weights.Normalize()}
}

// Blend combines the two candidate lists. Both inputs are in descending
// score order; the output is in descending blended-score order.
func (b *Blender) Blend(cf, semantic []CandidateScore) []BlendedCandidate {
	switch {
	case len(cf) == 0 && len(semantic) == 0:
		return nil
	case len(cf) == 0:
		return passthrough(semantic, func(c *BlendedCandidate, s float64) { c.SemScore = s })
	case len(semantic) == 0:
		return passthrough(cf, func(c *BlendedCandidate, s float64) { c.CFScore = s })
	}

	cfNorm := normalizeScores(cf)
	semNorm := normalizeScores(semantic)

	combined := make(map[string]*BlendedCandidate, len(cfNorm)+len(semNorm))
	for _, s := range cfNorm {
		combined[s.ProductID] = &BlendedCandidate{
			ProductID: s.ProductID,
			CFScore:   s.Score,
			Score:     b.weights.CF * s.Score,
		}
	}
	for _, s := range semNorm {
		c, ok := combined[s.ProductID]
		if !ok {
			c = &BlendedCandidate{ProductID: s.ProductID}
			combined[s.ProductID] = c
		}
		c.SemScore = s.Score
		c.Score += b.weights.Semantic * s.Score
	}

	out := make([]BlendedCandidate, 0, len(combined))
	for _, c := range combined {
		out = append(out, *c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ProductID < out[j].ProductID
	})

	return out
}

// passthrough converts a single scorer's list into blended candidates
// without rescaling, preserving the scorer's order and scores exactly.
func passthrough(scores []CandidateScore, set func(*BlendedCandidate, float64)) []BlendedCandidate {
	out := make([]BlendedCandidate, len(scores))
	for i, s := range scores {
		out[i] = BlendedCandidate{ProductID: s.ProductID, Score: s.Score}
		set(&out[i], s.Score)
	}
	return out
}
