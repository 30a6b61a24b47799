// Cartwright - Budget-Aware Cart Substitution Engine
// Copyright 2026 P. Telford (ptelford)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ptelford/cartwright

// Package catalog holds the read-only product catalog snapshot consumed by
// the recommendation pipeline. The catalog is owned by an external
// collaborator (ingestion, storage); Cartwright only loads and queries it.
package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Nutrition holds the per-serving nutrition attributes used for
// dietary-match features.
type Nutrition struct {
	Protein  float64 `json:"protein"`
	Sugar    float64 `json:"sugar"`
	Calories float64 `json:"calories"`
	Sodium   float64 `json:"sodium"`
}

// Product is a single catalog entry. Products are immutable after catalog
// load.
type Product struct {
	// ID is the stable, content-derived product identifier.
	ID string `json:"id"`

	// Title is the display name.
	Title string `json:"title"`

	// Category is the top-level category (e.g. "Meat & Seafood").
	Category string `json:"category"`

	// Subcategory is the fine-grained category (e.g. "Fresh Meat").
	Subcategory string `json:"subcategory"`

	// Price is the unit price.
	Price float64 `json:"price"`

	// Nutrition holds per-serving nutrition attributes.
	Nutrition Nutrition `json:"nutrition"`

	// Tags are free-form quality/diet tags ("organic", "premium", ...).
	Tags []string `json:"tags,omitempty"`

	// SizeValue is the package size in a unit consistent within a
	// subcategory (grams, milliliters). Zero when unknown.
	SizeValue float64 `json:"size_value,omitempty"`

	// Popularity is a pre-computed popularity score in [0, 1].
	Popularity float64 `json:"popularity,omitempty"`

	// AddedAt is when the product entered the catalog (recency signal).
	AddedAt time.Time `json:"added_at,omitempty"`

	// Embedding is the precomputed text embedding of title/category/
	// description. Produced by an external training job.
	Embedding []float64 `json:"embedding,omitempty"`

	// Cluster is the semantic cluster label assigned by the external
	// training job. Negative when unassigned.
	Cluster int `json:"cluster"`
}

// ProductID derives the stable content-derived identifier for a product.
// The same title/subcategory pair always maps to the same ID, so the ID
// survives catalog reloads.
func ProductID(title, subcategory string) string {
	h := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(title)) + "|" + strings.ToLower(strings.TrimSpace(subcategory))))
	return hex.EncodeToString(h[:8])
}

// Snapshot is an immutable view of the product catalog. All query methods
// are safe for unlimited concurrent use.
type Snapshot struct {
	products []Product
	byID     map[string]int

	// clusterCenters maps cluster label to the mean embedding of its
	// members, used for distance-to-center features.
	clusterCenters map[int][]float64

	version  string
	loadedAt time.Time
}

// snapshotFile is the on-disk catalog artifact format.
type snapshotFile struct {
	Version  string    `json:"version"`
	Products []Product `json:"products"`
}

// LoadFile reads a catalog snapshot from a JSON artifact.
func LoadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var f snapshotFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	return NewSnapshot(f.Version, f.Products)
}

// NewSnapshot builds a snapshot from already-decoded products. IDs missing
// from the source are derived from content; duplicate IDs are rejected.
func NewSnapshot(version string, products []Product) (*Snapshot, error) {
	s := &Snapshot{
		products:       make([]Product, len(products)),
		byID:           make(map[string]int, len(products)),
		clusterCenters: make(map[int][]float64),
		version:        version,
		loadedAt:       time.Now(),
	}
	copy(s.products, products)

	for i := range s.products {
		p := &s.products[i]
		if p.ID == "" {
			p.ID = ProductID(p.Title, p.Subcategory)
		}
		if _, dup := s.byID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate product id %q (%s)", p.ID, p.Title)
		}
		s.byID[p.ID] = i
	}

	s.computeClusterCenters()
	return s, nil
}

// computeClusterCenters builds the mean embedding per cluster label.
func (s *Snapshot) computeClusterCenters() {
	counts := make(map[int]int)
	for i := range s.products {
		p := &s.products[i]
		if p.Cluster < 0 || len(p.Embedding) == 0 {
			continue
		}

		center, ok := s.clusterCenters[p.Cluster]
		if !ok {
			center = make([]float64, len(p.Embedding))
			s.clusterCenters[p.Cluster] = center
		}
		if len(center) != len(p.Embedding) {
			continue // inconsistent dimension, skip
		}
		for d := range center {
			center[d] += p.Embedding[d]
		}
		counts[p.Cluster]++
	}

	for label, center := range s.clusterCenters {
		n := float64(counts[label])
		if n == 0 {
			continue
		}
		for d := range center {
			center[d] /= n
		}
	}
}

// Get returns the product with the given ID.
func (s *Snapshot) Get(id string) (Product, bool) {
	i, ok := s.byID[id]
	if !ok {
		return Product{}, false
	}
	return s.products[i], true
}

// Products returns the full product list. Callers must not mutate it.
func (s *Snapshot) Products() []Product {
	return s.products
}

// ClusterCenter returns the mean embedding for a cluster label.
func (s *Snapshot) ClusterCenter(label int) ([]float64, bool) {
	c, ok := s.clusterCenters[label]
	return c, ok
}

// Len returns the number of products in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.products)
}

// Version returns the catalog artifact version string.
func (s *Snapshot) Version() string {
	return s.version
}

// LoadedAt returns when the snapshot was loaded.
func (s *Snapshot) LoadedAt() time.Time {
	return s.loadedAt
}
