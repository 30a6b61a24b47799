// Cartwright - Budget-Aware Cart Substitution Engine
// Copyright 2026 P. Telford (ptelford)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ptelford/cartwright

package cache

import (
	"sync"
	"testing"
	"time"
)

func TestGetAdd(t *testing.T) {
	c := NewLRU[string](4, time.Minute)

	if _, ok := c.Get("a"); ok {
		t.Error("Get on empty cache returned a value")
	}

	c.Add("a", "alpha")
	v, ok := c.Get("a")
	if !ok || v != "alpha" {
		t.Errorf("Get(a) = %q, %v; want alpha, true", v, ok)
	}

	// Update in place.
	c.Add("a", "alpha2")
	if v, _ := c.Get("a"); v != "alpha2" {
		t.Errorf("Get(a) after update = %q, want alpha2", v)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRU[int](3, time.Minute)

	c.Add("a", 1)
	c.Add("b", 2)
	c.Add("c", 3)

	// Touch "a" so "b" becomes the eviction candidate.
	c.Get("a")
	c.Add("d", 4)

	if _, ok := c.Get("b"); ok {
		t.Error("least recently used entry survived eviction")
	}
	for _, key := range []string{"a", "c", "d"} {
		if _, ok := c.Get(key); !ok {
			t.Errorf("entry %q evicted unexpectedly", key)
		}
	}
}

func TestTTLExpiry(t *testing.T) {
	c := NewLRU[int](4, 10*time.Millisecond)

	c.Add("a", 1)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("fresh entry not found")
	}

	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get("a"); ok {
		t.Error("expired entry still served")
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d after lazy expiry, want 0", c.Len())
	}
}

func TestRemoveAndPurge(t *testing.T) {
	c := NewLRU[int](4, time.Minute)

	c.Add("a", 1)
	c.Add("b", 2)

	c.Remove("a")
	c.Remove("missing") // no-op
	if _, ok := c.Get("a"); ok {
		t.Error("removed entry still present")
	}

	c.Purge()
	if c.Len() != 0 {
		t.Errorf("Len = %d after Purge, want 0", c.Len())
	}
	if _, ok := c.Get("b"); ok {
		t.Error("entry survived Purge")
	}
}

func TestStats(t *testing.T) {
	c := NewLRU[int](4, time.Minute)

	c.Add("a", 1)
	c.Get("a")
	c.Get("a")
	c.Get("missing")

	hits, misses := c.Stats()
	if hits != 2 || misses != 1 {
		t.Errorf("Stats = %d hits, %d misses; want 2, 1", hits, misses)
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := NewLRU[int](64, time.Minute)
	keys := []string{"a", "b", "c", "d", "e", "f", "g", "h"}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := keys[(w+i)%len(keys)]
				c.Add(key, i)
				c.Get(key)
			}
		}(w)
	}
	wg.Wait()

	if c.Len() > len(keys) {
		t.Errorf("Len = %d, want at most %d", c.Len(), len(keys))
	}
}
