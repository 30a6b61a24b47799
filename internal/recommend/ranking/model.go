// Cartwright - Budget-Aware Cart Substitution Engine
// Copyright 2026 P. Telford (ptelford)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ptelford/cartwright

package ranking

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"
)

// ErrModelUnavailable is returned when no model artifact is loaded.
var ErrModelUnavailable = errors.New("ranking model unavailable")

// node is one split or leaf in a regression tree. Leaves carry Value;
// splits carry a feature index, a threshold, and child indices into the
// tree's node slice. Values below or equal to the threshold go left.
type node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
	Leaf      bool    `json:"leaf"`
}

// tree is a single regression tree stored as a flat node array with the
// root at index 0.
type tree struct {
	Nodes []node `json:"nodes"`
}

// score walks the tree for one feature vector.
func (t *tree) score(features []float64) float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Leaf {
			return n.Value
		}
		if features[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// validate checks node references and feature indices so that scoring
// can run without bounds checks failing at inference time.
func (t *tree) validate(featureCount int) error {
	if len(t.Nodes) == 0 {
		return errors.New("tree has no nodes")
	}
	for i, n := range t.Nodes {
		if n.Leaf {
			continue
		}
		if n.Feature < 0 || n.Feature >= featureCount {
			return fmt.Errorf("node %d: feature index %d out of range", i, n.Feature)
		}
		if n.Left <= i || n.Left >= len(t.Nodes) || n.Right <= i || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d: child index out of range", i)
		}
	}
	return nil
}

// Model is a gradient-boosted ensemble of regression trees. A prediction
// is the base score plus the learning-rate-weighted sum of tree outputs.
// Models are immutable after Load; scoring is safe for concurrent use.
type Model struct {
	Version      string  `json:"version"`
	FeatureCount int     `json:"feature_count"`
	BaseScore    float64 `json:"base_score"`
	LearningRate float64 `json:"learning_rate"`
	Trees        []tree  `json:"trees"`

	loadedAt time.Time
	mtime    time.Time
}

// Load reads and validates a model artifact from disk.
func Load(path string) (*Model, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat model: %w", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}

	var m Model
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse model: %w", err)
	}

	if m.FeatureCount != FeatureCount {
		return nil, fmt.Errorf("model expects %d features, engine produces %d", m.FeatureCount, FeatureCount)
	}
	if len(m.Trees) == 0 {
		return nil, errors.New("model has no trees")
	}
	if m.LearningRate <= 0 {
		m.LearningRate = 1.0
	}
	for i := range m.Trees {
		if err := m.Trees[i].validate(m.FeatureCount); err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
	}

	m.loadedAt = time.Now()
	m.mtime = info.ModTime()
	return &m, nil
}

// Score predicts the relevance of one feature vector.
func (m *Model) Score(features []float64) (float64, error) {
	if len(features) != m.FeatureCount {
		return 0, fmt.Errorf("expected %d features, got %d", m.FeatureCount, len(features))
	}

	score := m.BaseScore
	for i := range m.Trees {
		score += m.LearningRate * m.Trees[i].score(features)
	}
	return score, nil
}

// ModTime returns the artifact modification time captured at load.
func (m *Model) ModTime() time.Time {
	return m.mtime
}

// LoadedAt returns when the model was loaded.
func (m *Model) LoadedAt() time.Time {
	return m.loadedAt
}
