// Cartwright - Budget-Aware Cart Substitution Engine
// Copyright 2026 P. Telford (ptelford)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ptelford/cartwright

// Package ranking implements the learned re-ranking stage: a feature
// assembler and a gradient-boosted tree ensemble loaded from a JSON
// artifact produced by the offline training pipeline.
package ranking

import (
	"math"
	"time"

	"github.com/ptelford/cartwright/internal/catalog"
	"github.com/ptelford/cartwright/internal/recommend"
)

// Feature indices in the model's input vector. The order is part of the
// model artifact contract: the trainer emits trees whose split indices
// refer to these positions.
const (
	featCFScore = iota
	featSemanticSimilarity
	featBlendedScore
	featSavingAbs
	featSavingRel
	featWithinBudget
	featSizeRatio
	featCategoryMatch
	featSubcategoryMatch
	featPopularity
	featRecencyDays
	featProteinDelta
	featSugarDelta
	featQualityTagScore
	featDietaryMatch
	featSameCluster
	featClusterDistance
	featPriceSensitivity
	featBudgetPressure
	featIntentEMA
	featPremiumAnchor
	featMissionShare
	featCartValue
	featCartSize
	featDayOfWeek
	featHourOfDay

	// FeatureCount is the width of the model input vector.
	FeatureCount = iota
)

// qualityTags score a candidate's quality positioning from catalog tags.
// Premium markers add, discount markers subtract.
var qualityTags = map[string]float64{
	"organic":     1.0,
	"grass-fed":   1.0,
	"premium":     1.0,
	"artisan":     0.8,
	"free-range":  0.8,
	"value":       -0.8,
	"store-brand": -1.0,
	"budget":      -1.0,
}

// dietaryTags are the catalog tags that express a dietary constraint, as
// opposed to quality positioning.
var dietaryTags = map[string]struct{}{
	"vegan":       {},
	"vegetarian":  {},
	"gluten-free": {},
	"dairy-free":  {},
	"nut-free":    {},
	"sugar-free":  {},
	"kosher":      {},
	"halal":       {},
}

// FeatureRow holds the assembled features for one (item, candidate) pair.
type FeatureRow struct {
	vec [FeatureCount]float64
}

// Vector returns the feature values in model input order.
func (r *FeatureRow) Vector() []float64 {
	return r.vec[:]
}

// Assembler builds feature rows from candidates and request context. It
// reads catalog metadata through the snapshot provider so cluster
// assignments stay consistent with the catalog generation that produced
// the candidates.
type Assembler struct {
	snapshot recommend.SnapshotProvider
}

// NewAssembler creates a feature assembler.
func NewAssembler(snapshot recommend.SnapshotProvider) *Assembler {
	return &Assembler{snapshot: snapshot}
}

// Assemble builds the feature row for one candidate. Missing metadata
// contributes neutral values rather than failing: feature assembly must
// never abort a rerank.
//
//nolint:gocritic // hugeParam: rc passed by value for immutability
func (a *Assembler) Assemble(rc recommend.RerankContext, cand recommend.RankedCandidate) *FeatureRow {
	row := &FeatureRow{}
	item := rc.Item
	p := cand.Product

	row.vec[featCFScore] = cand.CFScore
	row.vec[featSemanticSimilarity] = cand.Similarity
	row.vec[featBlendedScore] = cand.Blended

	saving := item.UnitPrice - p.Price
	row.vec[featSavingAbs] = saving
	if item.UnitPrice > 0 {
		row.vec[featSavingRel] = saving / item.UnitPrice
	}

	if rc.Budget > 0 && rc.CartValue-saving*float64(item.Quantity) <= rc.Budget {
		row.vec[featWithinBudget] = 1
	}

	row.vec[featSizeRatio] = a.sizeRatio(item.ProductID, p)
	row.vec[featCategoryMatch] = a.categoryMatch(item.ProductID, p)
	if p.Subcategory == item.Subcategory {
		row.vec[featSubcategoryMatch] = 1
	}

	row.vec[featPopularity] = p.Popularity
	row.vec[featRecencyDays] = recencyDays(p.AddedAt, rc.Now)
	a.nutritionDeltas(row, item.ProductID, p)
	row.vec[featQualityTagScore] = tagScore(p.Tags)
	row.vec[featDietaryMatch] = a.dietaryMatch(item.ProductID, p)
	a.clusterFeatures(row, item.ProductID, p)

	row.vec[featPriceSensitivity] = rc.PriceSensitivity
	row.vec[featBudgetPressure] = rc.BudgetPressure
	row.vec[featIntentEMA] = rc.IntentEMA
	if rc.PremiumAnchor {
		row.vec[featPremiumAnchor] = 1
	}
	row.vec[featMissionShare] = rc.MissionShare
	row.vec[featCartValue] = rc.CartValue
	row.vec[featCartSize] = float64(rc.CartSize)
	row.vec[featDayOfWeek] = float64(rc.Now.Weekday())
	row.vec[featHourOfDay] = float64(rc.Now.Hour())

	return row
}

func (a *Assembler) categoryMatch(itemID string, cand catalog.Product) float64 {
	item, ok := a.snapshot.Snapshot().Get(itemID)
	if !ok {
		return 0
	}
	if item.Category == cand.Category {
		return 1
	}
	return 0
}

// dietaryMatch is 1 when the candidate satisfies every dietary constraint
// the original item carries, 1 when the item carries none, 0 otherwise.
// An item missing from the catalog contributes the neutral value.
func (a *Assembler) dietaryMatch(itemID string, cand catalog.Product) float64 {
	item, ok := a.snapshot.Snapshot().Get(itemID)
	if !ok {
		return 1
	}
	return dietaryCompatibility(item.Tags, cand.Tags)
}

func dietaryCompatibility(itemTags, candTags []string) float64 {
	var required []string
	for _, t := range itemTags {
		if _, ok := dietaryTags[t]; ok {
			required = append(required, t)
		}
	}
	if len(required) == 0 {
		return 1
	}

	have := make(map[string]struct{}, len(candTags))
	for _, t := range candTags {
		have[t] = struct{}{}
	}
	for _, t := range required {
		if _, ok := have[t]; !ok {
			return 0
		}
	}
	return 1
}

func (a *Assembler) nutritionDeltas(row *FeatureRow, itemID string, cand catalog.Product) {
	item, ok := a.snapshot.Snapshot().Get(itemID)
	if !ok {
		return
	}
	row.vec[featProteinDelta] = cand.Nutrition.Protein - item.Nutrition.Protein
	row.vec[featSugarDelta] = cand.Nutrition.Sugar - item.Nutrition.Sugar
}

func (a *Assembler) clusterFeatures(row *FeatureRow, itemID string, cand catalog.Product) {
	snap := a.snapshot.Snapshot()
	item, ok := snap.Get(itemID)
	if !ok {
		return
	}
	if item.Cluster == cand.Cluster {
		row.vec[featSameCluster] = 1
	}

	center, ok := snap.ClusterCenter(item.Cluster)
	if !ok || len(cand.Embedding) != len(center) {
		return
	}
	var sum float64
	for i := range center {
		d := cand.Embedding[i] - center[i]
		sum += d * d
	}
	row.vec[featClusterDistance] = math.Sqrt(sum)
}

// sizeRatio is candidate size over item size, neutral 1.0 when either
// side is unknown.
func (a *Assembler) sizeRatio(itemID string, cand catalog.Product) float64 {
	if cand.SizeValue <= 0 {
		return 1
	}
	item, ok := a.snapshot.Snapshot().Get(itemID)
	if !ok || item.SizeValue <= 0 {
		return 1
	}
	return cand.SizeValue / item.SizeValue
}

func recencyDays(added time.Time, now time.Time) float64 {
	if added.IsZero() {
		return 0
	}
	days := now.Sub(added).Hours() / 24
	if days < 0 {
		return 0
	}
	return days
}

func tagScore(tags []string) float64 {
	var score float64
	for _, t := range tags {
		score += qualityTags[t]
	}
	if score > 1 {
		return 1
	}
	if score < -1 {
		return -1
	}
	return score
}
