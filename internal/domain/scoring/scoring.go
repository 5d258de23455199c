// Package scoring turns a fingerprint's distance from a baseline into a
// bounded anomaly score and a good/bad verdict.
package scoring

import (
	"fmt"
	"math"

	"github.com/deepp5/catrack/internal/domain/model"
)

// Default scoring configuration constants.
const (
	DefaultScale    = 20.0
	DefaultMaxScore = 100.0
)

// Option applies a configuration option to the ZScoreScorer.
type Option func(*ZScoreScorer)

// WithScale sets the factor applied to the mean absolute z-score.
func WithScale(scale float64) Option {
	return func(s *ZScoreScorer) {
		if scale > 0 {
			s.scale = scale
		}
	}
}

// WithMaxScore sets the upper clamp of the score range.
func WithMaxScore(limit float64) Option {
	return func(s *ZScoreScorer) {
		if limit > 0 {
			s.maxScore = limit
		}
	}
}

// Scorer computes an anomaly score for a fingerprint against per-dimension
// reference statistics.
type Scorer interface {
	Score(fp, mean, std []float64) (float64, error)
}

// ZScoreScorer scores by the mean absolute z-score over all dimensions,
// scaled and clamped to [0, maxScore].
type ZScoreScorer struct {
	scale    float64
	maxScore float64
}

// NewZScoreScorer creates a new scorer with configuration options.
func NewZScoreScorer(opts ...Option) *ZScoreScorer {
	s := &ZScoreScorer{
		scale:    DefaultScale,
		maxScore: DefaultMaxScore,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score returns the scaled mean |z|. The three slices must share one length.
func (s *ZScoreScorer) Score(fp, mean, std []float64) (float64, error) {
	if len(fp) == 0 || len(fp) != len(mean) || len(fp) != len(std) {
		return 0, fmt.Errorf("%w: fingerprint %d, mean %d, std %d",
			model.ErrDimensionMismatch, len(fp), len(mean), len(std))
	}

	var sum float64
	for i, v := range fp {
		sum += math.Abs(v-mean[i]) / std[i]
	}
	score := sum / float64(len(fp)) * s.scale

	// std > 0 is guaranteed by the baseline, but guard NaN so the clamp holds.
	if math.IsNaN(score) {
		return s.maxScore, nil
	}
	return math.Max(0, math.Min(s.maxScore, score)), nil
}

// Classify labels a score: bad iff score >= threshold. A score exactly at
// the threshold is bad.
func Classify(score, threshold float64) model.Label {
	if score >= threshold {
		return model.LabelBad
	}
	return model.LabelGood
}
