// Package baseline derives per-dimension reference statistics and a
// decision threshold from labelled fingerprints.
package baseline

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/deepp5/catrack/internal/domain/model"
	"github.com/deepp5/catrack/internal/domain/scoring"
)

// Result is a freshly built baseline plus the calibration figures behind
// its threshold.
type Result struct {
	FeatureMean []float64
	FeatureStd  []float64
	Threshold   float64
	MaxGood     float64
	// MinBad is nil when no bad fingerprints were supplied.
	MinBad *float64
	// Separated is true when every bad score exceeded every good score and
	// the threshold is the midpoint between them.
	Separated bool
	NumGood   int
	NumBad    int
}

// Builder is stateless apart from its configuration and safe for concurrent use.
type Builder struct {
	marginFactor float64
	stdEpsilon   float64
	minGood      int
	scorer       scoring.Scorer
}

// NewBuilder creates a new builder with configuration options.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		marginFactor: DefaultMarginFactor,
		stdEpsilon:   DefaultStdEpsilon,
		minGood:      DefaultMinGood,
		scorer:       scoring.NewZScoreScorer(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build computes the baseline. Only good fingerprints shape the mean and
// std; bad ones are scored against them to tune the threshold.
func (b *Builder) Build(good, bad []model.Fingerprint) (Result, error) {
	if len(good) < b.minGood {
		return Result{}, fmt.Errorf("%w: %d good samples, need at least %d",
			model.ErrInsufficientData, len(good), b.minGood)
	}

	dim := good[0].Dim()
	if dim == 0 {
		return Result{}, fmt.Errorf("%w: empty fingerprint", model.ErrDimensionMismatch)
	}
	for _, fp := range append(append([]model.Fingerprint{}, good...), bad...) {
		if fp.Dim() != dim {
			return Result{}, fmt.Errorf("%w: expected %d dimensions, got %d",
				model.ErrDimensionMismatch, dim, fp.Dim())
		}
	}

	mean := make([]float64, dim)
	std := make([]float64, dim)
	column := make([]float64, len(good))
	for d := 0; d < dim; d++ {
		for i, fp := range good {
			column[i] = fp[d]
		}
		mean[d] = stat.Mean(column, nil)
		std[d] = math.Sqrt(stat.MomentAbout(2, column, mean[d], nil)) + b.stdEpsilon
	}

	goodScores, err := b.scoreAll(good, mean, std)
	if err != nil {
		return Result{}, err
	}
	res := Result{
		FeatureMean: mean,
		FeatureStd:  std,
		MaxGood:     floats.Max(goodScores),
		NumGood:     len(good),
		NumBad:      len(bad),
	}
	res.Threshold = res.MaxGood * b.marginFactor

	if len(bad) > 0 {
		badScores, err := b.scoreAll(bad, mean, std)
		if err != nil {
			return Result{}, err
		}
		minBad := floats.Min(badScores)
		res.MinBad = &minBad
		if res.MaxGood < minBad {
			res.Threshold = (res.MaxGood + minBad) / 2
			res.Separated = true
		}
	}
	return res, nil
}

func (b *Builder) scoreAll(fps []model.Fingerprint, mean, std []float64) ([]float64, error) {
	scores := make([]float64, len(fps))
	for i, fp := range fps {
		s, err := b.scorer.Score(fp, mean, std)
		if err != nil {
			return nil, fmt.Errorf("score exemplar %d: %w", i, err)
		}
		scores[i] = s
	}
	return scores, nil
}
