// Cartwright - Budget-Aware Cart Substitution Engine
// Copyright 2026 P. Telford (ptelford)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ptelford/cartwright

// Package intent tracks a smoothed per-session "quality-seeking vs.
// economy-seeking" signal and derives the guardrail mode from it.
//
// Each interaction event yields an instantaneous intent value in [0, 1]
// which is folded into an exponential moving average. The EMA maps to one
// of three guardrail modes, with a cooldown between adopted switches so a
// noisy short-term signal cannot thrash the mode.
//
// State is process-local and keyed by session ID. Sessions are independent;
// updates within one session serialize on a per-session lock.
package intent

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ptelford/cartwright/internal/metrics"
)

// Mode is the guardrail policy constraining candidate admissibility.
type Mode int

const (
	// ModeBalanced admits candidates with moderate similarity and price bands.
	ModeBalanced Mode = iota
	// ModeQuality admits only candidates highly similar to the original item.
	ModeQuality
	// ModeEconomy admits only candidates near the target discount band.
	ModeEconomy
)

// String returns a human-readable mode name.
func (m Mode) String() string {
	switch m {
	case ModeBalanced:
		return "balanced"
	case ModeQuality:
		return "quality"
	case ModeEconomy:
		return "economy"
	default:
		return "unknown"
	}
}

// ParseMode converts a mode name to a Mode. Unknown names map to balanced.
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "balanced":
		return ModeBalanced, true
	case "quality":
		return ModeQuality, true
	case "economy":
		return ModeEconomy, true
	default:
		return ModeBalanced, false
	}
}

// EventType classifies session interaction events.
type EventType int

const (
	// EventView indicates the shopper viewed a product.
	EventView EventType = iota
	// EventCartAdd indicates a product was added to the cart.
	EventCartAdd
	// EventCartRemove indicates a product was removed from the cart.
	EventCartRemove
	// EventPurchase indicates a completed purchase.
	EventPurchase
)

// String returns a human-readable event type name.
func (t EventType) String() string {
	switch t {
	case EventView:
		return "view"
	case EventCartAdd:
		return "cart_add"
	case EventCartRemove:
		return "cart_remove"
	case EventPurchase:
		return "purchase"
	default:
		return "unknown"
	}
}

// ParseEventType converts an event type name to an EventType.
func ParseEventType(s string) (EventType, bool) {
	switch s {
	case "view":
		return EventView, true
	case "cart_add":
		return EventCartAdd, true
	case "cart_remove":
		return EventCartRemove, true
	case "purchase":
		return EventPurchase, true
	default:
		return EventView, false
	}
}

// Event is a single session interaction.
type Event struct {
	// Type classifies the interaction.
	Type EventType

	// ProductID is the product the event concerns.
	ProductID string

	// Price is the unit price of the product acted on.
	Price float64

	// ReferencePrice is the price of the item the product was compared
	// against (the original item of an accepted swap). Zero when there is
	// no reference.
	ReferencePrice float64

	// Timestamp is when the event occurred. Zero means "now".
	Timestamp time.Time
}

// State is the tracked intent state for one session.
type State struct {
	// EMA is the smoothed intent value in [0, 1]. High values indicate
	// quality-seeking behavior, low values economy-seeking.
	EMA float64 `json:"ema"`

	// Mode is the currently adopted guardrail mode.
	Mode Mode `json:"-"`

	// LastSwitch is when the mode last changed. Zero until the first
	// adopted switch.
	LastSwitch time.Time `json:"last_switch,omitempty"`

	// LastSeen is when the session last produced an event.
	LastSeen time.Time `json:"last_seen"`
}

// Config holds tracker parameters.
type Config struct {
	// Alpha is the EMA smoothing factor. Default: 0.3.
	Alpha float64

	// InitialEMA is the neutral starting value for new sessions.
	// Default: 0.5.
	InitialEMA float64

	// UpperThreshold is the EMA above which quality mode is desired.
	// Default: 0.65.
	UpperThreshold float64

	// LowerThreshold is the EMA below which economy mode is desired.
	// Default: 0.35.
	LowerThreshold float64

	// Cooldown is the minimum time between adopted mode switches.
	// Default: 45s.
	Cooldown time.Duration

	// SessionTTL is how long an idle session's state is retained.
	// Default: 2h.
	SessionTTL time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Alpha:          0.3,
		InitialEMA:     0.5,
		UpperThreshold: 0.65,
		LowerThreshold: 0.35,
		Cooldown:       45 * time.Second,
		SessionTTL:     2 * time.Hour,
	}
}

// session pairs a state with its lock. The per-session lock serializes
// concurrent updates for the same session (rapid double-click) without
// blocking other sessions.
type session struct {
	mu    sync.Mutex
	state State
}

// Tracker maintains intent state for all active sessions.
type Tracker struct {
	cfg    Config
	logger zerolog.Logger

	mu       sync.RWMutex // guards the sessions map, not the states
	sessions map[string]*session

	// now is injectable for tests.
	now func() time.Time

	// onSwitch is invoked for every adopted mode switch.
	onSwitch func(Mode)
}

// NewTracker creates a tracker with the given configuration.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewTracker(cfg Config, logger zerolog.Logger) *Tracker {
	if cfg.Alpha <= 0 || cfg.Alpha > 1 {
		cfg.Alpha = 0.3
	}
	if cfg.InitialEMA == 0 {
		cfg.InitialEMA = 0.5
	}
	if cfg.UpperThreshold == 0 {
		cfg.UpperThreshold = 0.65
	}
	if cfg.LowerThreshold == 0 {
		cfg.LowerThreshold = 0.35
	}
	if cfg.Cooldown == 0 {
		cfg.Cooldown = 45 * time.Second
	}
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 2 * time.Hour
	}

	return &Tracker{
		cfg:      cfg,
		logger:   logger.With().Str("component", "intent").Logger(),
		sessions: make(map[string]*session),
		now:      time.Now,
	}
}

// SetClock overrides the time source. Tests only.
func (t *Tracker) SetClock(now func() time.Time) {
	t.now = now
}

// SetSwitchHook registers a callback for adopted mode switches.
func (t *Tracker) SetSwitchHook(fn func(Mode)) {
	t.onSwitch = fn
}

// Observe folds an event into the session's intent state and returns the
// updated state.
func (t *Tracker) Observe(sessionID string, ev Event) State {
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = t.now()
	}
	return t.ObserveValue(sessionID, Instantaneous(ev), ts)
}

// ObserveValue folds a precomputed instantaneous intent value into the
// session's state. The EMA update is
//
//	ema_new = alpha*instant + (1-alpha)*ema_prev
func (t *Tracker) ObserveValue(sessionID string, instant float64, ts time.Time) State {
	s := t.getOrCreate(sessionID)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.EMA = t.cfg.Alpha*instant + (1-t.cfg.Alpha)*s.state.EMA
	s.state.LastSeen = ts

	desired := t.desiredMode(s.state.EMA)
	if desired != s.state.Mode {
		// A switch is adopted only after the cooldown has elapsed since
		// the last adopted switch; the timestamp is recorded for adopted
		// switches only.
		if s.state.LastSwitch.IsZero() || ts.Sub(s.state.LastSwitch) >= t.cfg.Cooldown {
			prev := s.state.Mode
			s.state.Mode = desired
			s.state.LastSwitch = ts

			t.logger.Debug().
				Str("session_id", sessionID).
				Str("from", prev.String()).
				Str("to", desired.String()).
				Float64("ema", s.state.EMA).
				Msg("guardrail mode switch adopted")

			metrics.IntentModeSwitchesTotal.WithLabelValues(desired.String()).Inc()
			if t.onSwitch != nil {
				t.onSwitch(desired)
			}
		}
	}

	return s.state
}

// Mode returns the current guardrail mode for a session. Sessions without
// state are balanced.
func (t *Tracker) Mode(sessionID string) Mode {
	t.mu.RLock()
	s, ok := t.sessions[sessionID]
	t.mu.RUnlock()
	if !ok {
		return ModeBalanced
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Mode
}

// State returns a copy of the session's state and whether it exists.
func (t *Tracker) State(sessionID string) (State, bool) {
	t.mu.RLock()
	s, ok := t.sessions[sessionID]
	t.mu.RUnlock()
	if !ok {
		return State{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, true
}

// Len returns the number of tracked sessions.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}

// Prune drops sessions idle for longer than the session TTL and returns
// how many were removed.
func (t *Tracker) Prune() int {
	cutoff := t.now().Add(-t.cfg.SessionTTL)

	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for id, s := range t.sessions {
		s.mu.Lock()
		idle := s.state.LastSeen.Before(cutoff)
		s.mu.Unlock()
		if idle {
			delete(t.sessions, id)
			removed++
		}
	}
	metrics.IntentSessionsActive.Set(float64(len(t.sessions)))

	return removed
}

// getOrCreate returns the session, creating neutral state on first event.
func (t *Tracker) getOrCreate(sessionID string) *session {
	t.mu.RLock()
	s, ok := t.sessions[sessionID]
	t.mu.RUnlock()
	if ok {
		return s
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok = t.sessions[sessionID]; ok {
		return s
	}

	s = &session{state: State{
		EMA:  t.cfg.InitialEMA,
		Mode: ModeBalanced,
	}}
	t.sessions[sessionID] = s
	metrics.IntentSessionsActive.Set(float64(len(t.sessions)))
	return s
}

// desiredMode maps an EMA value to the mode it calls for.
func (t *Tracker) desiredMode(ema float64) Mode {
	switch {
	case ema > t.cfg.UpperThreshold:
		return ModeQuality
	case ema < t.cfg.LowerThreshold:
		return ModeEconomy
	default:
		return ModeBalanced
	}
}

// Instantaneous computes the instantaneous intent value in [0, 1] for an
// event. Acting on a product pricier than its reference pushes intent
// toward quality; acting on a cheaper one pushes it toward economy.
func Instantaneous(ev Event) float64 {
	var base float64
	switch ev.Type {
	case EventView:
		base = 0.5
	case EventCartAdd:
		base = 0.6
	case EventCartRemove:
		base = 0.4
	case EventPurchase:
		base = 0.7
	default:
		base = 0.5
	}

	if ev.ReferencePrice > 0 && ev.Price > 0 {
		delta := (ev.Price - ev.ReferencePrice) / ev.ReferencePrice
		if delta > 1 {
			delta = 1
		}
		if delta < -1 {
			delta = -1
		}
		base += 0.3 * delta
	}

	if base < 0 {
		return 0
	}
	if base > 1 {
		return 1
	}
	return base
}
