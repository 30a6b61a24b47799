// Cartwright - Budget-Aware Cart Substitution Engine
// Copyright 2026 P. Telford (ptelford)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ptelford/cartwright

package intent

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

const epsilon = 1e-9

func TestObserveValueEMASequence(t *testing.T) {
	tracker := NewTracker(DefaultConfig(), zerolog.Nop())

	// alpha=0.3 starting from 0.5: feeding 1.0, 0.0, 1.0 must produce
	// 0.65, 0.455, 0.6185.
	instants := []float64{1.0, 0.0, 1.0}
	want := []float64{0.65, 0.455, 0.6185}

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, instant := range instants {
		st := tracker.ObserveValue("s1", instant, ts.Add(time.Duration(i)*time.Second))
		if math.Abs(st.EMA-want[i]) > epsilon {
			t.Errorf("step %d: EMA = %v, want %v", i, st.EMA, want[i])
		}
	}
}

func TestModeSwitchCooldown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cooldown = 45 * time.Second
	tracker := NewTracker(cfg, zerolog.Nop())

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Drive the EMA above the upper threshold: first switch is adopted.
	var st State
	for i := 0; i < 5; i++ {
		st = tracker.ObserveValue("s1", 1.0, base.Add(time.Duration(i)*time.Second))
	}
	if st.Mode != ModeQuality {
		t.Fatalf("mode after quality signals = %v, want %v", st.Mode, ModeQuality)
	}
	switchedAt := st.LastSwitch

	// Drive the EMA below the lower threshold 10s after the switch: the
	// cooldown must keep the adopted mode unchanged.
	for i := 0; i < 8; i++ {
		st = tracker.ObserveValue("s1", 0.0, switchedAt.Add(10*time.Second))
	}
	if st.EMA >= cfg.LowerThreshold {
		t.Fatalf("EMA = %v, expected below lower threshold %v", st.EMA, cfg.LowerThreshold)
	}
	if st.Mode != ModeQuality {
		t.Errorf("mode switched during cooldown: got %v, want %v", st.Mode, ModeQuality)
	}
	if !st.LastSwitch.Equal(switchedAt) {
		t.Errorf("LastSwitch updated on suppressed switch: got %v, want %v", st.LastSwitch, switchedAt)
	}

	// The same signal 50s after the switch is past the cooldown and must
	// be adopted.
	st = tracker.ObserveValue("s1", 0.0, switchedAt.Add(50*time.Second))
	if st.Mode != ModeEconomy {
		t.Errorf("mode after cooldown = %v, want %v", st.Mode, ModeEconomy)
	}
	if !st.LastSwitch.Equal(switchedAt.Add(50 * time.Second)) {
		t.Errorf("LastSwitch not updated on adopted switch")
	}
}

func TestSuppressedSwitchDoesNotStartCooldown(t *testing.T) {
	cfg := DefaultConfig()
	tracker := NewTracker(cfg, zerolog.Nop())

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		tracker.ObserveValue("s1", 1.0, base.Add(time.Duration(i)*time.Second))
	}
	st, _ := tracker.State("s1")
	switchedAt := st.LastSwitch

	// Suppressed attempts inside the cooldown must not reset the window:
	// an attempt right after the cooldown expires still succeeds.
	tracker.ObserveValue("s1", 0.0, switchedAt.Add(20*time.Second))
	tracker.ObserveValue("s1", 0.0, switchedAt.Add(40*time.Second))
	st = tracker.ObserveValue("s1", 0.0, switchedAt.Add(46*time.Second))
	if st.Mode != ModeEconomy {
		t.Errorf("switch after cooldown expiry not adopted: mode = %v", st.Mode)
	}
}

func TestDesiredModeThresholds(t *testing.T) {
	tracker := NewTracker(DefaultConfig(), zerolog.Nop())

	tests := []struct {
		ema  float64
		want Mode
	}{
		{0.9, ModeQuality},
		{0.651, ModeQuality},
		{0.65, ModeBalanced}, // boundary is exclusive
		{0.5, ModeBalanced},
		{0.35, ModeBalanced}, // boundary is exclusive
		{0.349, ModeEconomy},
		{0.1, ModeEconomy},
	}

	for _, tt := range tests {
		if got := tracker.desiredMode(tt.ema); got != tt.want {
			t.Errorf("desiredMode(%v) = %v, want %v", tt.ema, got, tt.want)
		}
	}
}

func TestInstantaneous(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		want float64
	}{
		{"view no reference", Event{Type: EventView}, 0.5},
		{"cart add no reference", Event{Type: EventCartAdd}, 0.6},
		{"cart remove no reference", Event{Type: EventCartRemove}, 0.4},
		{"purchase no reference", Event{Type: EventPurchase}, 0.7},
		{
			"add pricier than reference pushes quality",
			Event{Type: EventCartAdd, Price: 15, ReferencePrice: 10},
			0.75, // 0.6 + 0.3*0.5
		},
		{
			"add cheaper than reference pushes economy",
			Event{Type: EventCartAdd, Price: 5, ReferencePrice: 10},
			0.45, // 0.6 + 0.3*(-0.5)
		},
		{
			"delta clamped at +1",
			Event{Type: EventPurchase, Price: 100, ReferencePrice: 10},
			1.0, // 0.7 + 0.3, clamped
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Instantaneous(tt.ev); math.Abs(got-tt.want) > epsilon {
				t.Errorf("Instantaneous() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	tracker := NewTracker(DefaultConfig(), zerolog.Nop())
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		tracker.ObserveValue("quality-session", 1.0, ts)
		tracker.ObserveValue("economy-session", 0.0, ts)
	}

	if got := tracker.Mode("quality-session"); got != ModeQuality {
		t.Errorf("quality-session mode = %v, want %v", got, ModeQuality)
	}
	if got := tracker.Mode("economy-session"); got != ModeEconomy {
		t.Errorf("economy-session mode = %v, want %v", got, ModeEconomy)
	}
	if got := tracker.Mode("unknown-session"); got != ModeBalanced {
		t.Errorf("unknown session mode = %v, want %v", got, ModeBalanced)
	}
}

func TestPrune(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SessionTTL = time.Hour
	tracker := NewTracker(cfg, zerolog.Nop())

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tracker.SetClock(func() time.Time { return now })

	tracker.ObserveValue("stale", 0.5, now.Add(-2*time.Hour))
	tracker.ObserveValue("fresh", 0.5, now.Add(-time.Minute))

	if removed := tracker.Prune(); removed != 1 {
		t.Errorf("Prune() = %d, want 1", removed)
	}
	if _, ok := tracker.State("stale"); ok {
		t.Error("stale session survived prune")
	}
	if _, ok := tracker.State("fresh"); !ok {
		t.Error("fresh session was pruned")
	}
}

func TestSwitchHook(t *testing.T) {
	tracker := NewTracker(DefaultConfig(), zerolog.Nop())

	var switches []Mode
	tracker.SetSwitchHook(func(m Mode) { switches = append(switches, m) })

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		tracker.ObserveValue("s1", 1.0, ts.Add(time.Duration(i)*time.Second))
	}

	if len(switches) != 1 || switches[0] != ModeQuality {
		t.Errorf("switch hook calls = %v, want [quality]", switches)
	}
}

func TestParseModeAndEventType(t *testing.T) {
	if m, ok := ParseMode("economy"); !ok || m != ModeEconomy {
		t.Errorf("ParseMode(economy) = %v, %v", m, ok)
	}
	if _, ok := ParseMode("bogus"); ok {
		t.Error("ParseMode accepted unknown mode")
	}
	if et, ok := ParseEventType("cart_remove"); !ok || et != EventCartRemove {
		t.Errorf("ParseEventType(cart_remove) = %v, %v", et, ok)
	}
	if _, ok := ParseEventType("bogus"); ok {
		t.Error("ParseEventType accepted unknown type")
	}
}
