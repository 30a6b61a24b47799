// Cartwright - Budget-Aware Cart Substitution Engine
// Copyright 2026 P. Telford (ptelford)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ptelford/cartwright

package recommend

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ptelford/cartwright/internal/cache"
	"github.com/ptelford/cartwright/internal/metrics"
	"github.com/ptelford/cartwright/internal/profiles"
	"github.com/ptelford/cartwright/internal/recommend/intent"
)

// Engine coordinates the recommendation pipeline: scorers, blender, tiered
// filter, intent-derived guardrails, and the optional learned re-ranker.
// It is safe for concurrent use; the only shared mutable state is the
// per-session intent store, which serializes internally per session.
type Engine struct {
	config *Config
	logger zerolog.Logger

	cfScorer  Scorer
	semScorer Scorer
	blender   *Blender
	filter    *TieredFilter

	tracker  *intent.Tracker
	snapshot SnapshotProvider
	profiles profiles.Store

	// reranker is the optional learned ranking stage. Nil or unavailable
	// means the blended order is used as-is.
	reranker Reranker

	// respCache caches full responses per cart/budget/mode fingerprint.
	respCache *cache.LRU[*Response]
}

// NewEngine creates a recommendation engine.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewEngine(cfg *Config, logger zerolog.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	e := &Engine{
		config:  cfg,
		logger:  logger.With().Str("component", "recommend").Logger(),
		blender: NewBlender(cfg.Weights),
		filter:  NewTieredFilter(cfg),
	}

	if cfg.Cache.Enabled {
		e.respCache = cache.NewLRU[*Response](cfg.Cache.MaxEntries, cfg.Cache.TTL)
	}

	return e, nil
}

// SetScorers wires the two candidate scorers. The scorer set is closed by
// design: the blender is written against the Scorer interface, not against
// the concrete types.
func (e *Engine) SetScorers(cf, semantic Scorer) {
	e.cfScorer = cf
	e.semScorer = semantic
}

// SetSnapshotProvider wires the catalog snapshot source.
func (e *Engine) SetSnapshotProvider(sp SnapshotProvider) {
	e.snapshot = sp
}

// SetProfileStore wires the user profile store. The engine reads the
// learned price-sensitivity coefficient from it once per request.
func (e *Engine) SetProfileStore(s profiles.Store) {
	e.profiles = s
}

// SetIntentTracker wires the per-session intent tracker.
func (e *Engine) SetIntentTracker(t *intent.Tracker) {
	e.tracker = t
}

// SetReranker wires the optional learned re-ranker. Availability is
// resolved by the reranker itself at startup; the engine only consults the
// capability flag per call.
func (e *Engine) SetReranker(r Reranker) {
	e.reranker = r
	e.logger.Info().
		Str("reranker", r.Name()).
		Bool("available", r.Available()).
		Msg("registered reranker")
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() *Config {
	return e.config.Clone()
}

// Recommend generates substitute suggestions for a cart over budget.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) Recommend(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	req = e.prepareRequest(req)
	if err := e.validateRequest(req); err != nil {
		metrics.RecommendRequestsTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	logger := e.logger.With().
		Str("request_id", req.RequestID).
		Str("session_id", req.SessionID).
		Logger()

	mode, overridden, ema := e.resolveMode(req)

	if resp := e.checkCache(req, mode, start); resp != nil {
		logger.Debug().Msg("response cache hit")
		metrics.ResponseCacheHits.Inc()
		metrics.RecommendRequestsTotal.WithLabelValues("ok").Inc()
		return resp, nil
	}
	if e.respCache != nil {
		metrics.ResponseCacheMisses.Inc()
	}

	cartTotal := cartValue(req.Cart)
	overBudget := cartTotal > req.Budget

	resp := &Response{
		Suggestions: []Suggestion{},
		Diagnostics: Diagnostics{
			RequestID:      req.RequestID,
			Mode:           mode.String(),
			ModeOverridden: overridden,
			OverBudget:     overBudget,
			CartTotal:      cartTotal,
		},
	}

	if !overBudget && e.config.OnlyWhenOverBudget {
		logger.Debug().
			Float64("cart_total", cartTotal).
			Float64("budget", req.Budget).
			Msg("cart within budget, no suggestions needed")
		e.finish(resp, start)
		return resp, nil
	}

	rc := e.buildRerankContext(req, cartTotal, ema)
	coldStart := true

	for _, item := range req.Cart {
		itemDiag, suggestions, hadCF := e.recommendForItem(ctx, req, item, mode, rc, logger)
		if hadCF {
			coldStart = false
		}
		resp.Suggestions = append(resp.Suggestions, suggestions...)
		resp.Diagnostics.Items = append(resp.Diagnostics.Items, itemDiag)
		if itemDiag.Reranked {
			resp.Diagnostics.Reranked = true
		}
	}

	resp.Diagnostics.ColdStart = coldStart
	if coldStart {
		metrics.ColdStartTotal.Inc()
	}

	e.finish(resp, start)
	e.storeCache(req, mode, resp)

	logger.Debug().
		Int("suggestions", len(resp.Suggestions)).
		Bool("cold_start", coldStart).
		Bool("reranked", resp.Diagnostics.Reranked).
		Int64("latency_ms", resp.Diagnostics.LatencyMS).
		Msg("recommendation complete")

	metrics.RecommendRequestsTotal.WithLabelValues("ok").Inc()
	metrics.RecommendLatency.Observe(time.Since(start).Seconds())
	return resp, nil
}

// recommendForItem runs the full pipeline for one cart item.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) recommendForItem(ctx context.Context, req Request, item CartItem, mode intent.Mode, rc RerankContext, logger zerolog.Logger) (ItemDiagnostics, []Suggestion, bool) {
	diag := ItemDiagnostics{ProductID: item.ProductID}

	cfScores, semScores := e.runScorers(ctx, req.UserID, item, logger)
	hadCF := len(cfScores) > 0

	blended := e.blender.Blend(cfScores, semScores)
	diag.Candidates = len(blended)
	if len(blended) == 0 {
		metrics.TierSelectedTotal.WithLabelValues("none").Inc()
		return diag, nil, hadCF
	}

	ranked := e.resolveCandidates(item, blended)

	filtered, tierNum := e.filter.Apply(item, ranked, mode)
	diag.Tier = tierNum
	metrics.TierSelectedTotal.WithLabelValues(e.filter.TierName(tierNum)).Inc()
	if len(filtered) == 0 {
		return diag, nil, hadCF
	}

	rc.Item = item
	filtered, diag.Reranked = e.applyReranker(ctx, rc, filtered, logger)

	maxPerItem := req.MaxPerItem
	if len(filtered) > maxPerItem {
		filtered = filtered[:maxPerItem]
	}

	suggestions := e.buildSuggestions(item, filtered, mode)
	diag.Suggestions = len(suggestions)
	return diag, suggestions, hadCF
}

// runScorers executes the CF and semantic scorers concurrently for one
// cart item. Scorer failures are recovered locally: a failed scorer
// contributes an empty list, never an error to the caller.
func (e *Engine) runScorers(ctx context.Context, userID string, item CartItem, logger zerolog.Logger) (cfScores, semScores []CandidateScore) {
	scoreCtx, cancel := context.WithTimeout(ctx, e.config.Limits.ScoreTimeout)
	defer cancel()

	g, gctx := errgroup.WithContext(scoreCtx)

	g.Go(func() error {
		scores, err := e.cfScorer.Candidates(gctx, userID, item)
		if err != nil {
			logger.Warn().Err(err).Str("scorer", e.cfScorer.Name()).Msg("scorer failed")
			return nil
		}
		cfScores = scores
		return nil
	})

	g.Go(func() error {
		scores, err := e.semScorer.Candidates(gctx, userID, item)
		if err != nil {
			logger.Warn().Err(err).Str("scorer", e.semScorer.Name()).Msg("scorer failed")
			return nil
		}
		semScores = scores
		return nil
	})

	_ = g.Wait() // scorer errors are swallowed above
	return cfScores, semScores
}

// resolveCandidates looks up candidate products and attaches the raw
// similarity to the original item, preserving the blended order.
func (e *Engine) resolveCandidates(item CartItem, blended []BlendedCandidate) []RankedCandidate {
	snap := e.snapshot.Snapshot()

	var itemEmb []float64
	if p, ok := snap.Get(item.ProductID); ok {
		itemEmb = p.Embedding
	}

	out := make([]RankedCandidate, 0, len(blended))
	for _, b := range blended {
		p, ok := snap.Get(b.ProductID)
		if !ok {
			continue
		}

		out = append(out, RankedCandidate{
			Product:    p,
			Blended:    b.Score,
			CFScore:    b.CFScore,
			SemScore:   b.SemScore,
			Similarity: cosineSimilarity(itemEmb, p.Embedding),
		})
	}
	return out
}

// applyReranker reorders the filtered candidates with the learned model
// when it is available. Any failure - missing artifact, open breaker,
// timeout, inference error - falls back to the blended order. Fallback is
// not an error path: it is logged and counted, never surfaced.
func (e *Engine) applyReranker(ctx context.Context, rc RerankContext, cands []RankedCandidate, logger zerolog.Logger) ([]RankedCandidate, bool) {
	if e.reranker == nil || len(cands) < 2 {
		return cands, false
	}
	if !e.reranker.Available() {
		metrics.RerankerFallbacksTotal.WithLabelValues("unavailable").Inc()
		return cands, false
	}

	rerankCtx, cancel := context.WithTimeout(ctx, e.config.Limits.RerankTimeout)
	defer cancel()

	reordered, err := e.reranker.Rerank(rerankCtx, rc, cands)
	if err != nil {
		reason := "inference_error"
		if rerankCtx.Err() != nil {
			reason = "timeout"
		}
		metrics.RerankerFallbacksTotal.WithLabelValues(reason).Inc()
		logger.Debug().Err(err).Str("reason", reason).Msg("reranker fallback to blended order")
		return cands, false
	}

	return reordered, true
}

// buildSuggestions converts surviving candidates into suggestions,
// enforcing the positive-saving and distinct-product invariants as the
// final guard even under partial failure upstream.
func (e *Engine) buildSuggestions(item CartItem, cands []RankedCandidate, mode intent.Mode) []Suggestion {
	out := make([]Suggestion, 0, len(cands))
	for _, c := range cands {
		saving := item.UnitPrice - c.Product.Price
		if saving <= 0 || c.Product.ID == item.ProductID {
			continue
		}

		out = append(out, Suggestion{
			Replace:        item.Title,
			Replacement:    c.Product,
			Reason:         explain(item, c, saving, mode),
			ExpectedSaving: saving,
			Label:          c.Label,
		})
		metrics.SuggestionsEmittedTotal.WithLabelValues(string(c.Label)).Inc()
	}
	return out
}

// prepareRequest applies defaults and generates a request ID if needed.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) prepareRequest(req Request) Request {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	if req.MaxPerItem <= 0 || req.MaxPerItem > e.config.Limits.MaxPerItem {
		req.MaxPerItem = e.config.Limits.MaxPerItem
	}
	return req
}

// validateRequest rejects malformed caller input. This is the only
// caller-visible failure in the pipeline.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) validateRequest(req Request) error {
	if req.SessionID == "" {
		return fmt.Errorf("%w: session_id is required", ErrInvalidInput)
	}
	if req.Budget < 0 {
		return fmt.Errorf("%w: budget must be non-negative, got %.2f", ErrInvalidInput, req.Budget)
	}
	if len(req.Cart) == 0 {
		return fmt.Errorf("%w: cart is empty", ErrInvalidInput)
	}
	if len(req.Cart) > e.config.Limits.MaxCartItems {
		return fmt.Errorf("%w: cart exceeds %d items", ErrInvalidInput, e.config.Limits.MaxCartItems)
	}
	for i, item := range req.Cart {
		if item.ProductID == "" {
			return fmt.Errorf("%w: cart item %d has no product id", ErrInvalidInput, i)
		}
		if item.UnitPrice < 0 {
			return fmt.Errorf("%w: cart item %d has negative price", ErrInvalidInput, i)
		}
		if item.Quantity < 0 {
			return fmt.Errorf("%w: cart item %d has negative quantity", ErrInvalidInput, i)
		}
	}
	return nil
}

// resolveMode picks the guardrail mode: the caller's override wins,
// otherwise the intent tracker's adopted mode for the session.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) resolveMode(req Request) (mode intent.Mode, overridden bool, ema float64) {
	ema = 0.5
	if e.tracker != nil {
		if st, ok := e.tracker.State(req.SessionID); ok {
			ema = st.EMA
		}
	}

	if req.ModeOverride != nil {
		return *req.ModeOverride, true, ema
	}
	if e.tracker != nil {
		return e.tracker.Mode(req.SessionID), false, ema
	}
	return intent.ModeBalanced, false, ema
}

// buildRerankContext assembles the request-level ranking features shared
// by all cart items.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) buildRerankContext(req Request, cartTotal, ema float64) RerankContext {
	pressure := 0.0
	if req.Budget > 0 && cartTotal > req.Budget {
		pressure = (cartTotal - req.Budget) / req.Budget
		if pressure > 1 {
			pressure = 1
		}
	}

	premium := false
	categoryCounts := make(map[string]int)
	snap := e.snapshot.Snapshot()
	for _, item := range req.Cart {
		if item.UnitPrice >= e.config.PremiumAnchorPrice {
			premium = true
		}
		if p, ok := snap.Get(item.ProductID); ok {
			categoryCounts[p.Category]++
		}
	}

	missionShare := 0.0
	for _, n := range categoryCounts {
		share := float64(n) / float64(len(req.Cart))
		if share > missionShare {
			missionShare = share
		}
	}

	return RerankContext{
		Budget:           req.Budget,
		CartValue:        cartTotal,
		CartSize:         len(req.Cart),
		BudgetPressure:   pressure,
		IntentEMA:        ema,
		PriceSensitivity: e.priceSensitivity(req.UserID),
		PremiumAnchor:    premium,
		MissionShare:     missionShare,
		Now:              time.Now(),
	}
}

// priceSensitivity reads the user's learned coefficient, zero for
// anonymous shoppers, unknown users, and store failures.
func (e *Engine) priceSensitivity(userID string) float64 {
	if e.profiles == nil || userID == "" {
		return 0
	}
	prof, err := e.profiles.Get(userID)
	if err != nil {
		return 0
	}
	return prof.PriceSensitivity
}

// finish stamps latency and timestamp on a response.
func (e *Engine) finish(resp *Response, start time.Time) {
	resp.Diagnostics.LatencyMS = time.Since(start).Milliseconds()
	resp.Diagnostics.Timestamp = time.Now()
}

// cacheKey fingerprints a request for response caching.
//
//nolint:gocritic // hugeParam: req passed by value for simplicity
func (e *Engine) cacheKey(req Request, mode intent.Mode) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s|%s|%.2f|%d|", req.UserID, req.SessionID, mode.String(), req.Budget, req.MaxPerItem)
	for _, item := range req.Cart {
		fmt.Fprintf(h, "%s:%d:%.2f|", item.ProductID, item.Quantity, item.UnitPrice)
	}
	return fmt.Sprintf("rec:%x", h.Sum64())
}

// checkCache returns a copy of a cached response, nil on miss.
//
//nolint:gocritic // hugeParam: req passed by value for simplicity
func (e *Engine) checkCache(req Request, mode intent.Mode, start time.Time) *Response {
	if e.respCache == nil {
		return nil
	}

	cached, ok := e.respCache.Get(e.cacheKey(req, mode))
	if !ok {
		return nil
	}

	resp := cloneResponse(cached)
	resp.Diagnostics.CacheHit = true
	resp.Diagnostics.LatencyMS = time.Since(start).Milliseconds()
	return resp
}

// cloneResponse copies a response deeply enough that cached entries and
// caller-visible responses never share slice backing arrays.
func cloneResponse(resp *Response) *Response {
	out := &Response{
		Suggestions: make([]Suggestion, len(resp.Suggestions)),
		Diagnostics: resp.Diagnostics,
	}
	copy(out.Suggestions, resp.Suggestions)

	if len(resp.Diagnostics.Items) > 0 {
		items := make([]ItemDiagnostics, len(resp.Diagnostics.Items))
		copy(items, resp.Diagnostics.Items)
		out.Diagnostics.Items = items
	}
	return out
}

// storeCache stores a response if caching is enabled.
//
//nolint:gocritic // hugeParam: req passed by value for simplicity
func (e *Engine) storeCache(req Request, mode intent.Mode, resp *Response) {
	if e.respCache == nil {
		return
	}
	e.respCache.Add(e.cacheKey(req, mode), cloneResponse(resp))
}

// cartValue sums the cart line totals.
func cartValue(cart []CartItem) float64 {
	var total float64
	for _, item := range cart {
		total += item.LineTotal()
	}
	return total
}
