// Cartwright - Budget-Aware Cart Substitution Engine
// Copyright 2026 P. Telford (ptelford)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ptelford/cartwright

package recommend

import (
	"fmt"

	"github.com/ptelford/cartwright/internal/recommend/intent"
)

// explain builds the human-readable reason for a suggestion. The text
// differs by tier label: same-category suggestions speak with confidence,
// fallback suggestions are framed as personalized picks so the lower
// confidence is visible to the consumer.
func explain(item CartItem, c RankedCandidate, saving float64, mode intent.Mode) string {
	switch c.Label {
	case LabelSameCategory:
		switch mode {
		case intent.ModeQuality:
			return fmt.Sprintf("A close match to %s in %s: save %.2f without trading down.",
				item.Title, c.Product.Subcategory, saving)
		case intent.ModeEconomy:
			return fmt.Sprintf("Swap %s for %s and save %.2f in the same aisle.",
				item.Title, c.Product.Title, saving)
		default:
			return fmt.Sprintf("%s is a cheaper option in %s, saving %.2f.",
				c.Product.Title, c.Product.Subcategory, saving)
		}
	case LabelFallback:
		return fmt.Sprintf("Based on your shopping, %s could stand in for %s and save %.2f.",
			c.Product.Title, item.Title, saving)
	default:
		return fmt.Sprintf("Save %.2f by choosing %s.", saving, c.Product.Title)
	}
}
