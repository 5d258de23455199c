package baseline

import "github.com/deepp5/catrack/internal/domain/scoring"

// Default calibration constants.
const (
	DefaultMarginFactor = 1.15
	DefaultStdEpsilon   = 1e-6
	DefaultMinGood      = 2
)

// Option applies a configuration option to the Builder.
type Option func(*Builder)

// WithMarginFactor sets the multiplier applied to the worst good score when
// the good and bad populations are not cleanly separated.
func WithMarginFactor(f float64) Option {
	return func(b *Builder) {
		if f > 0 {
			b.marginFactor = f
		}
	}
}

// WithStdEpsilon sets the constant added to every population std.
func WithStdEpsilon(eps float64) Option {
	return func(b *Builder) {
		if eps > 0 {
			b.stdEpsilon = eps
		}
	}
}

// WithScorer sets the scorer used to calibrate the threshold. It must be the
// same scorer that later scores clips against the baseline.
func WithScorer(s scoring.Scorer) Option {
	return func(b *Builder) {
		if s != nil {
			b.scorer = s
		}
	}
}

// WithMinGood sets the minimum number of good fingerprints. Values below 2
// are ignored since a single exemplar has no spread.
func WithMinGood(n int) Option {
	return func(b *Builder) {
		if n >= DefaultMinGood {
			b.minGood = n
		}
	}
}
