// Cartwright - Budget-Aware Cart Substitution Engine
// Copyright 2026 P. Telford (ptelford)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ptelford/cartwright

package ranking

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/ptelford/cartwright/internal/metrics"
	"github.com/ptelford/cartwright/internal/recommend"
)

// Config holds re-ranker settings.
type Config struct {
	// ModelPath is the model artifact location. Availability is resolved
	// once at startup; a missing artifact disables the stage without
	// failing the process.
	ModelPath string

	// ReloadInterval bounds how often the artifact mtime is re-checked.
	// Zero disables opportunistic reload.
	ReloadInterval time.Duration

	// Breaker settings. After FailureThreshold consecutive inference
	// failures the stage stops being consulted for BreakerTimeout.
	FailureThreshold uint32
	BreakerTimeout   time.Duration
}

// DefaultConfig returns production re-ranker settings.
func DefaultConfig() Config {
	return Config{
		ReloadInterval:   30 * time.Second,
		FailureThreshold: 5,
		BreakerTimeout:   30 * time.Second,
	}
}

// Reranker scores candidates with a gradient-boosted model and reorders
// them by predicted relevance. All failure modes degrade to the incoming
// order: candidates whose inference fails keep their pre-rerank
// positions, and a tripped breaker or missing model leaves the blended
// order untouched.
type Reranker struct {
	config    Config
	logger    zerolog.Logger
	assembler *Assembler

	model   atomic.Pointer[Model]
	breaker *gobreaker.CircuitBreaker[[]recommend.RankedCandidate]

	reloadMu   sync.Mutex
	lastReload time.Time
}

// NewReranker creates a re-ranker and attempts the initial model load.
// A load failure is logged, recorded in the availability gauge, and the
// stage starts unavailable.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewReranker(cfg Config, snapshot recommend.SnapshotProvider, logger zerolog.Logger) *Reranker {
	r := &Reranker{
		config:    cfg,
		logger:    logger.With().Str("component", "reranker").Logger(),
		assembler: NewAssembler(snapshot),
	}

	cbSettings := gobreaker.Settings{
		Name:    "reranker",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.logger.Warn().
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("reranker circuit breaker state change")
		},
	}
	r.breaker = gobreaker.NewCircuitBreaker[[]recommend.RankedCandidate](cbSettings)

	if cfg.ModelPath == "" {
		r.logger.Info().Msg("no model path configured, reranker disabled")
		metrics.RerankerAvailable.Set(0)
		return r
	}

	m, err := Load(cfg.ModelPath)
	if err != nil {
		r.logger.Warn().Err(err).Str("path", cfg.ModelPath).Msg("model load failed, reranker disabled")
		metrics.RerankerAvailable.Set(0)
		return r
	}

	r.model.Store(m)
	r.lastReload = time.Now()
	metrics.RerankerAvailable.Set(1)
	r.logger.Info().
		Str("path", cfg.ModelPath).
		Str("version", m.Version).
		Int("trees", len(m.Trees)).
		Msg("ranking model loaded")
	return r
}

// Name implements recommend.Reranker.
func (r *Reranker) Name() string { return "gbdt" }

// Available implements recommend.Reranker. It reports whether a model is
// loaded; breaker state is handled inside Rerank so half-open probes can
// still run.
func (r *Reranker) Available() bool {
	return r.model.Load() != nil
}

// Rerank implements recommend.Reranker. The incoming slice is never
// mutated; the reordered copy preserves the incoming order between
// candidates whose scores could not be computed.
//
//nolint:gocritic // hugeParam: rc passed by value for immutability
func (r *Reranker) Rerank(ctx context.Context, rc recommend.RerankContext, cands []recommend.RankedCandidate) ([]recommend.RankedCandidate, error) {
	m := r.model.Load()
	if m == nil {
		return nil, ErrModelUnavailable
	}

	r.maybeReload()

	return r.breaker.Execute(func() ([]recommend.RankedCandidate, error) {
		return r.scoreAndSort(ctx, m, rc, cands)
	})
}

type scoredCandidate struct {
	cand   recommend.RankedCandidate
	score  float64
	scored bool
}

// scoreAndSort runs inference per candidate. Per-candidate failures are
// fail-soft: the candidate keeps its incoming position relative to other
// unscored candidates and to the scored ordering around it. A context
// deadline aborts the whole pass so stale partial rankings are never
// returned.
//
//nolint:gocritic // hugeParam: rc passed by value for immutability
func (r *Reranker) scoreAndSort(ctx context.Context, m *Model, rc recommend.RerankContext, cands []recommend.RankedCandidate) ([]recommend.RankedCandidate, error) {
	scored := make([]scoredCandidate, len(cands))
	failures := 0

	for i, c := range cands {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("rerank aborted: %w", err)
		}

		sc := scoredCandidate{cand: c}
		row := r.assembler.Assemble(rc, c)
		score, err := m.Score(row.Vector())
		if err != nil {
			failures++
			r.logger.Debug().Err(err).Str("product_id", c.Product.ID).Msg("candidate scoring failed")
		} else {
			sc.score = score
			sc.scored = true
		}
		scored[i] = sc
	}

	if failures == len(cands) {
		return nil, fmt.Errorf("all %d candidates failed scoring", failures)
	}

	// Sort the scored candidates by model score, then place them into the
	// slots left open by the unscored ones, which pin their incoming
	// positions.
	ranked := make([]scoredCandidate, 0, len(scored)-failures)
	for _, sc := range scored {
		if sc.scored {
			ranked = append(ranked, sc)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	out := make([]recommend.RankedCandidate, len(scored))
	next := 0
	for i, sc := range scored {
		if !sc.scored {
			out[i] = sc.cand
		} else {
			out[i] = ranked[next].cand
			next++
		}
	}
	return out, nil
}

// maybeReload re-checks the artifact mtime at most once per reload
// interval and hot-swaps the model when the file changed. Reload
// failures keep the current model.
func (r *Reranker) maybeReload() {
	if r.config.ReloadInterval <= 0 {
		return
	}

	r.reloadMu.Lock()
	defer r.reloadMu.Unlock()

	if time.Since(r.lastReload) < r.config.ReloadInterval {
		return
	}
	r.lastReload = time.Now()

	cur := r.model.Load()
	info, err := os.Stat(r.config.ModelPath)
	if err != nil {
		return
	}
	if cur != nil && !info.ModTime().After(cur.ModTime()) {
		return
	}

	m, err := Load(r.config.ModelPath)
	if err != nil {
		r.logger.Warn().Err(err).Msg("model reload failed, keeping current model")
		return
	}

	r.model.Store(m)
	metrics.RerankerAvailable.Set(1)
	r.logger.Info().
		Str("version", m.Version).
		Int("trees", len(m.Trees)).
		Msg("ranking model reloaded")
}

// Reload forces a model reload regardless of the reload interval. Used
// by the model watcher service.
func (r *Reranker) Reload() error {
	if r.config.ModelPath == "" {
		return ErrModelUnavailable
	}

	m, err := Load(r.config.ModelPath)
	if err != nil {
		return err
	}

	r.reloadMu.Lock()
	r.lastReload = time.Now()
	r.reloadMu.Unlock()

	r.model.Store(m)
	metrics.RerankerAvailable.Set(1)
	return nil
}

// ModelVersion returns the loaded model version, empty when unavailable.
func (r *Reranker) ModelVersion() string {
	if m := r.model.Load(); m != nil {
		return m.Version
	}
	return ""
}
