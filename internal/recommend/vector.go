// Cartwright - Budget-Aware Cart Substitution Engine
// Copyright 2026 P. Telford (ptelford)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ptelford/cartwright

package recommend

import "math"

// dot returns the dot product of two vectors, zero on dimension mismatch.
func dot(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// cosineSimilarity computes cosine similarity between two vectors.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// normalizeScores rescales scores to [0, 1] using min-max normalization.
// Equal scores all map to 0.5. The input order is preserved.
func normalizeScores(scores []CandidateScore) []CandidateScore {
	if len(scores) == 0 {
		return scores
	}

	minScore, maxScore := scores[0].Score, scores[0].Score
	for _, s := range scores[1:] {
		if s.Score < minScore {
			minScore = s.Score
		}
		if s.Score > maxScore {
			maxScore = s.Score
		}
	}

	out := make([]CandidateScore, len(scores))
	copy(out, scores)

	rang := maxScore - minScore
	if rang == 0 {
		for i := range out {
			out[i].Score = 0.5
		}
		return out
	}

	for i := range out {
		out[i].Score = (out[i].Score - minScore) / rang
	}
	return out
}
