// Cartwright - Budget-Aware Cart Substitution Engine
// Copyright 2026 P. Telford (ptelford)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ptelford/cartwright

package recommend

import (
	"context"
	"errors"
	"time"

	"github.com/ptelford/cartwright/internal/catalog"
	"github.com/ptelford/cartwright/internal/recommend/intent"
)

// ErrInvalidInput indicates malformed caller input (negative budget, empty
// cart). It is the only error the pipeline surfaces to callers; every other
// degradation recovers locally.
var ErrInvalidInput = errors.New("invalid input")

// CartItem is a snapshot of one cart line at request time. The cart is
// owned by an external collaborator; the engine reads a snapshot per
// request.
type CartItem struct {
	// ProductID is the catalog identifier of the item.
	ProductID string `json:"product_id"`

	// Title is the item's display name.
	Title string `json:"title"`

	// Subcategory is the item's fine-grained category.
	Subcategory string `json:"subcategory"`

	// Quantity is the number of units in the cart.
	Quantity int `json:"quantity"`

	// UnitPrice is the per-unit price.
	UnitPrice float64 `json:"unit_price"`
}

// LineTotal returns the cart line's total price.
func (i CartItem) LineTotal() float64 {
	q := i.Quantity
	if q < 1 {
		q = 1
	}
	return float64(q) * i.UnitPrice
}

// CandidateScore is one scorer's opinion of a candidate product.
// Ephemeral, produced per request.
type CandidateScore struct {
	// ProductID identifies the candidate.
	ProductID string `json:"product_id"`

	// Score is the scorer-specific relevance score, descending order.
	Score float64 `json:"score"`

	// Source is the scorer that produced the score ("cf", "semantic").
	Source string `json:"source"`
}

// Scorer produces a ranked candidate list over the catalog for a cart item.
// Scorers are pure functions of their inputs and the catalog state, safe
// for unlimited concurrent use across requests. An empty result is a valid
// outcome (cold start), not an error.
type Scorer interface {
	// Name returns the scorer identifier ("cf", "semantic").
	Name() string

	// Candidates returns the top candidates for a cart item in descending
	// score order.
	Candidates(ctx context.Context, userID string, item CartItem) ([]CandidateScore, error)
}

// SuggestionLabel distinguishes how confident the filter tier that
// produced a suggestion is. Tier 2 results carry the fallback label so
// downstream explanation text can communicate lower confidence.
type SuggestionLabel string

const (
	// LabelSameCategory marks Tier 1 results: same subcategory, cheaper.
	LabelSameCategory SuggestionLabel = "same_category"

	// LabelFallback marks Tier 2 results: cheaper pick regardless of
	// category, drawn from the personalized ranking.
	LabelFallback SuggestionLabel = "fallback"
)

// Suggestion is one substitute recommendation for a cart item.
// Invariant: ExpectedSaving > 0 and Replacement.ID != the original
// product's ID.
type Suggestion struct {
	// Replace is the title of the original cart item being replaced.
	Replace string `json:"replace"`

	// Replacement is the recommended substitute product.
	Replacement catalog.Product `json:"replacement_product"`

	// Reason is the human-readable explanation for the suggestion.
	Reason string `json:"reason"`

	// ExpectedSaving is the per-unit saving: original price minus
	// replacement price. Always positive.
	ExpectedSaving float64 `json:"expected_saving"`

	// Label communicates the confidence tier of the suggestion.
	Label SuggestionLabel `json:"label"`
}

// Request is a recommendation request.
type Request struct {
	// UserID identifies the requesting user. Empty for anonymous
	// shoppers (cold start).
	UserID string `json:"user_id,omitempty"`

	// SessionID identifies the shopping session for intent tracking.
	SessionID string `json:"session_id"`

	// Cart is the ordered cart snapshot.
	Cart []CartItem `json:"cart"`

	// Budget is the shopper's stated budget.
	Budget float64 `json:"budget"`

	// ModeOverride forces a guardrail mode, bypassing the intent
	// tracker. Nil uses the tracked mode.
	ModeOverride *intent.Mode `json:"-"`

	// MaxPerItem caps suggestions per cart item. Defaults to
	// Config.Limits.MaxPerItem if zero.
	MaxPerItem int `json:"max_per_item,omitempty"`

	// RequestID is a unique identifier for tracing.
	RequestID string `json:"request_id,omitempty"`
}

// Response is a recommendation response.
type Response struct {
	// Suggestions is the full suggestion list across all cart items,
	// in cart order.
	Suggestions []Suggestion `json:"suggestions"`

	// Diagnostics exposes which pipeline paths were taken.
	Diagnostics Diagnostics `json:"diagnostics"`
}

// Diagnostics reports the pipeline paths taken for observability.
type Diagnostics struct {
	// RequestID is the unique request identifier.
	RequestID string `json:"request_id"`

	// Mode is the guardrail mode applied.
	Mode string `json:"mode"`

	// ModeOverridden reports whether the caller forced the mode.
	ModeOverridden bool `json:"mode_overridden,omitempty"`

	// ColdStart reports whether the user had no embedding profile.
	ColdStart bool `json:"cold_start"`

	// Reranked reports whether the learned re-ranker ordered the output.
	Reranked bool `json:"reranked"`

	// OverBudget reports whether the cart total exceeded the budget.
	OverBudget bool `json:"over_budget"`

	// CartTotal is the cart total at request time.
	CartTotal float64 `json:"cart_total"`

	// Items describes the path taken per cart item.
	Items []ItemDiagnostics `json:"items,omitempty"`

	// CacheHit indicates the response was served from cache.
	CacheHit bool `json:"cache_hit"`

	// LatencyMS is the end-to-end latency in milliseconds.
	LatencyMS int64 `json:"latency_ms"`

	// Timestamp is when the response was generated.
	Timestamp time.Time `json:"timestamp"`
}

// ItemDiagnostics describes the pipeline path for one cart item.
type ItemDiagnostics struct {
	// ProductID identifies the cart item.
	ProductID string `json:"product_id"`

	// Tier is the filter tier that produced suggestions (1 or 2);
	// zero when no tier yielded results.
	Tier int `json:"tier"`

	// Candidates is the blended candidate count before filtering.
	Candidates int `json:"candidates"`

	// Suggestions is the number of suggestions emitted for the item.
	Suggestions int `json:"suggestions"`

	// Reranked reports whether the re-ranker ordered this item's
	// candidates.
	Reranked bool `json:"reranked"`
}

// RankedCandidate is a filtered candidate carrying the scores the filter
// and the re-ranker need.
type RankedCandidate struct {
	// Product is the candidate product.
	Product catalog.Product

	// Blended is the hybrid-blended score, the re-ranker tie-breaker and
	// the fallback order.
	Blended float64

	// CFScore is the collaborative-filtering component score.
	CFScore float64

	// SemScore is the semantic-similarity component score.
	SemScore float64

	// Similarity is the raw cosine similarity to the original item.
	Similarity float64

	// Label is the filter tier label.
	Label SuggestionLabel
}

// RerankContext carries the request-level features the re-ranker needs for
// one cart item's candidate set.
type RerankContext struct {
	// Item is the cart item being replaced.
	Item CartItem

	// Budget is the stated budget.
	Budget float64

	// CartValue is the cart total at request time.
	CartValue float64

	// CartSize is the number of cart lines.
	CartSize int

	// BudgetPressure is the normalized amount the cart exceeds the
	// budget, in [0, 1].
	BudgetPressure float64

	// IntentEMA is the smoothed intent value for the session.
	IntentEMA float64

	// PriceSensitivity is the user's learned price-sensitivity
	// coefficient, zero when unknown.
	PriceSensitivity float64

	// PremiumAnchor reports whether the cart contains a high-value item.
	PremiumAnchor bool

	// MissionShare is the share of cart lines in the cart's dominant
	// top-level category (coarse shopping-mission signal).
	MissionShare float64

	// Now is the request time for temporal features.
	Now time.Time
}

// Reranker reorders a filtered candidate set using a learned model.
// Implementations must fail soft: an error return means the caller keeps
// the blended order.
type Reranker interface {
	// Name returns the reranker identifier.
	Name() string

	// Available reports whether the model artifact is loaded and usable.
	// Resolved at startup and after opportunistic artifact re-checks,
	// never re-detected per request.
	Available() bool

	// Rerank returns the candidates in model order. Candidates the model
	// fails on individually keep their pre-rerank position.
	Rerank(ctx context.Context, rc RerankContext, cands []RankedCandidate) ([]RankedCandidate, error)
}
