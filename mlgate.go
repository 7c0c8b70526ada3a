// FILE: mlgate.go
// Package main – File-loaded champion/challenger classifier gate.
//
// Adapts the in-process logistic math of the teacher's micro-model
// (sigmoid over a weighted feature sum) from a trained-in-memory model to a
// file-loaded, hot-reloadable classifier. The champion blocks trades; the
// challenger is scored on every signal that reaches the gate but never
// blocks, its score recorded only as a shadow prediction.
package main

import (
	"encoding/json"
	"math"
	"os"
	"sync/atomic"
)

// Classifier is the on-disk representation of a scoring model.
type Classifier struct {
	Version      string             `json:"version"`
	FeatureNames []string           `json:"featureNames"`
	Bias         float64            `json:"bias"`
	Weights      map[string]float64 `json:"weights"`
}

// sigmoid returns 1/(1+e^-x) with clamping for numerical stability.
func sigmoid(x float64) float64 {
	if x > 20 {
		return 1
	}
	if x < -20 {
		return 0
	}
	return 1 / (1 + math.Exp(-x))
}

// Score computes σ(bias + Σ w_i·f_i) over the features present, finite, and
// named in Weights. Missing or non-finite features are skipped rather than
// treated as zero, so absence never silently counts against a feature.
func (c *Classifier) Score(features map[string]float64) float64 {
	z := c.Bias
	for name, w := range c.Weights {
		f, ok := features[name]
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		z += w * f
	}
	return sigmoid(z)
}

// MLGate holds the atomically-swapped champion and challenger classifiers.
// A nil classifier means "no decision" for that slot.
type MLGate struct {
	championPath   string
	challengerPath string

	champion   atomic.Pointer[Classifier]
	challenger atomic.Pointer[Classifier]
}

// NewMLGate returns a gate that will load from the given paths on Reload.
// Either path may be empty, meaning that slot is permanently absent.
func NewMLGate(championPath, challengerPath string) *MLGate {
	return &MLGate{championPath: championPath, challengerPath: challengerPath}
}

// Reload re-reads the champion and challenger files from disk and swaps
// them in atomically. A missing or unparsable file leaves that slot
// unchanged (logged, not fatal) rather than blocking on a half-loaded model.
func (g *MLGate) Reload() {
	if c, ok := loadClassifier(g.championPath); ok {
		g.champion.Store(c)
	}
	if c, ok := loadClassifier(g.challengerPath); ok {
		g.challenger.Store(c)
	}
}

func loadClassifier(path string) (*Classifier, bool) {
	if path == "" {
		return nil, false
	}
	bs, err := os.ReadFile(path)
	if err != nil {
		logWarn("mlgate", "read failed", "path", path, "err", err)
		return nil, false
	}
	var c Classifier
	if err := json.Unmarshal(bs, &c); err != nil {
		logWarn("mlgate", "parse failed", "path", path, "err", err)
		return nil, false
	}
	return &c, true
}

// ChampionScore returns the champion's score and version, or ok=false if no
// champion is currently loaded.
func (g *MLGate) ChampionScore(features map[string]float64) (score float64, version string, ok bool) {
	c := g.champion.Load()
	if c == nil {
		return 0, "", false
	}
	return c.Score(features), c.Version, true
}

// ChallengerScore returns the challenger's shadow score and version, or
// ok=false if no challenger is currently loaded. Never blocks a trade.
func (g *MLGate) ChallengerScore(features map[string]float64) (score float64, version string, ok bool) {
	c := g.challenger.Load()
	if c == nil {
		return 0, "", false
	}
	return c.Score(features), c.Version, true
}
