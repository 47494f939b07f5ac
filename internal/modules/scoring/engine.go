// Package scoring aggregates feature contribution vectors into normalized
// scores and decision bands.
package scoring

import (
	"math"

	"github.com/aristath/storeops/internal/config"
	"github.com/aristath/storeops/internal/domain"
)

// ScoreResult is the immutable outcome of scoring one feature vector.
// A new context always yields a freshly computed result; nothing is cached
// across contexts.
type ScoreResult struct {
	Score      float64              `json:"score"`
	Band       domain.Band          `json:"band"`
	Thresholds config.Thresholds    `json:"thresholds"`
	Features   domain.FeatureVector `json:"features"`
}

// Engine maps feature vectors onto [0,1] scores and classifies them.
// Thresholds are injected at construction; the engine holds no other state.
type Engine struct {
	thresholds config.Thresholds
}

// NewEngine creates a scoring engine with explicit thresholds
func NewEngine(thresholds config.Thresholds) *Engine {
	return &Engine{thresholds: thresholds}
}

// Score normalizes the signed contribution sum onto [0,1] and classifies it.
// norm = clamp(sum / max(absSum, 1), -1, 1); score = (norm + 1) / 2.
// An empty vector yields a neutral 0.5, deliberately, not as an error.
func (e *Engine) Score(features domain.FeatureVector) ScoreResult {
	var sum, absSum float64
	for _, v := range features {
		sum += v
		absSum += math.Abs(v)
	}

	norm := sum / math.Max(absSum, 1)
	norm = math.Max(-1, math.Min(1, norm))
	score := (norm + 1) / 2

	return ScoreResult{
		Score:      score,
		Band:       e.band(score),
		Thresholds: e.thresholds,
		Features:   features,
	}
}

func (e *Engine) band(score float64) domain.Band {
	switch {
	case score >= e.thresholds.AutoApplyMin:
		return domain.BandAuto
	case score >= e.thresholds.ProposeMin:
		return domain.BandPropose
	default:
		return domain.BandDiscard
	}
}
