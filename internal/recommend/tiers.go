// Cartwright - Budget-Aware Cart Substitution Engine
// Copyright 2026 P. Telford (ptelford)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ptelford/cartwright

package recommend

import (
	"math"

	"github.com/ptelford/cartwright/internal/recommend/intent"
)

// tierFunc narrows a blended candidate list for one cart item. It returns
// the surviving candidates and whether the chain is exhausted after this
// tier (no later tier may run).
type tierFunc func(item CartItem, cands []RankedCandidate) (result []RankedCandidate, exhausted bool)

// tier pairs a tier function with its identity for diagnostics.
type tier struct {
	number int
	name   string
	apply  tierFunc
}

// TieredFilter applies filtering tiers in strict priority order, stopping
// at the first tier that yields at least one result. The chain is an
// explicit ordered list so the priority order is auditable and each tier
// testable in isolation.
type TieredFilter struct {
	cfg   *Config
	tiers []tier
}

// NewTieredFilter creates the filter chain for the given configuration.
func NewTieredFilter(cfg *Config) *TieredFilter {
	f := &TieredFilter{cfg: cfg}
	f.tiers = []tier{
		{number: 1, name: "same_subcategory", apply: f.tierSameSubcategory},
		{number: 2, name: "any_cheaper", apply: f.tierAnyCheaper},
	}
	return f
}

// Apply runs the tier chain over guardrail-admissible candidates. Returns
// the surviving candidates (at most MaxPerItem) and the tier number that
// produced them; tier 0 means no tier yielded results.
//
// When the guardrail constraints admit no candidate at all, the chain runs
// once more without them: the guardrail shapes which substitutes are
// preferred, it must not silence the pipeline entirely.
func (f *TieredFilter) Apply(item CartItem, cands []RankedCandidate, mode intent.Mode) ([]RankedCandidate, int) {
	admissible := f.admissible(item, cands, mode)

	if result, number := f.runChain(item, admissible); number > 0 {
		return result, number
	}

	if len(admissible) < len(cands) {
		unconstrained := f.invariantGuarded(item, cands)
		if result, number := f.runChain(item, unconstrained); number > 0 {
			return result, number
		}
	}

	// Terminal: never fabricate a suggestion with zero or negative saving.
	return nil, 0
}

// runChain iterates the ordered tier list until one yields results or the
// chain is exhausted.
func (f *TieredFilter) runChain(item CartItem, cands []RankedCandidate) ([]RankedCandidate, int) {
	for _, t := range f.tiers {
		result, exhausted := t.apply(item, cands)
		if len(result) > 0 {
			return result, t.number
		}
		if exhausted {
			break
		}
	}
	return nil, 0
}

// TierName returns the diagnostic name for a tier number.
func (f *TieredFilter) TierName(number int) string {
	for _, t := range f.tiers {
		if t.number == number {
			return t.name
		}
	}
	return "none"
}

// tierSameSubcategory keeps candidates in the item's subcategory that are
// strictly cheaper. The blended order is preserved.
func (f *TieredFilter) tierSameSubcategory(item CartItem, cands []RankedCandidate) ([]RankedCandidate, bool) {
	out := make([]RankedCandidate, 0, f.cfg.Limits.MaxPerItem)
	for _, c := range cands {
		if c.Product.Subcategory != item.Subcategory {
			continue
		}
		if c.Product.Price >= item.UnitPrice {
			continue
		}

		c.Label = LabelSameCategory
		out = append(out, c)
		if len(out) == f.cfg.Limits.MaxPerItem {
			break
		}
	}
	return out, false
}

// tierAnyCheaper keeps cheaper candidates regardless of category, drawn
// from the top of the blended ranking. Results carry the fallback label so
// explanation text communicates the lower confidence.
func (f *TieredFilter) tierAnyCheaper(item CartItem, cands []RankedCandidate) ([]RankedCandidate, bool) {
	pool := cands
	if len(pool) > f.cfg.Limits.FallbackPool {
		pool = pool[:f.cfg.Limits.FallbackPool]
	}

	out := make([]RankedCandidate, 0, f.cfg.Limits.MaxPerItem)
	for _, c := range pool {
		if c.Product.Price >= item.UnitPrice {
			continue
		}
		if c.Product.Title == item.Title {
			continue
		}

		c.Label = LabelFallback
		out = append(out, c)
		if len(out) == f.cfg.Limits.MaxPerItem {
			break
		}
	}

	// Last tier in the chain.
	return out, true
}

// invariantGuarded applies only the shared invariant guards: distinct
// product and plausible discount.
func (f *TieredFilter) invariantGuarded(item CartItem, cands []RankedCandidate) []RankedCandidate {
	out := make([]RankedCandidate, 0, len(cands))
	for _, c := range cands {
		if c.Product.ID == item.ProductID {
			continue
		}
		if !f.discountReasonable(item, c) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// admissible applies the guardrail mode constraints and the shared
// invariant guards (distinct product, plausible discount).
func (f *TieredFilter) admissible(item CartItem, cands []RankedCandidate, mode intent.Mode) []RankedCandidate {
	g := f.cfg.Guardrails

	out := make([]RankedCandidate, 0, len(cands))
	for _, c := range cands {
		if c.Product.ID == item.ProductID {
			continue
		}

		if !f.discountReasonable(item, c) {
			continue
		}

		switch mode {
		case intent.ModeQuality:
			if c.Similarity < g.QualityMinSimilarity {
				continue
			}
		case intent.ModeEconomy:
			target := item.UnitPrice * (1 - g.TargetDiscount)
			if target <= 0 || math.Abs(c.Product.Price-target)/target > g.EconomyPriceBand {
				continue
			}
		case intent.ModeBalanced:
			if c.Similarity < g.BalancedMinSimilarity {
				continue
			}
			if item.UnitPrice <= 0 || math.Abs(c.Product.Price-item.UnitPrice)/item.UnitPrice > g.BalancedPriceBand {
				continue
			}
		}

		out = append(out, c)
	}
	return out
}

// discountReasonable applies the configurable discount-reasonableness
// band. Both bounds are disabled by default; deployments that want to
// reject token (<5%) or implausible (>70%) discounts set them in config.
func (f *TieredFilter) discountReasonable(item CartItem, c RankedCandidate) bool {
	g := f.cfg.Guardrails
	if g.MinDiscount == 0 && g.MaxDiscount == 0 {
		return true
	}
	if item.UnitPrice <= 0 || c.Product.Price >= item.UnitPrice {
		return true // not a discount; later tiers enforce cheaper-than
	}

	rel := (item.UnitPrice - c.Product.Price) / item.UnitPrice
	if g.MinDiscount > 0 && rel < g.MinDiscount {
		return false
	}
	if g.MaxDiscount > 0 && rel > g.MaxDiscount {
		return false
	}
	return true
}
