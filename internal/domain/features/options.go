package features

// Default analysis parameters. The fingerprint layout depends on
// DefaultNumCoefficients, so changing it invalidates stored baselines.
const (
	DefaultSampleRate      = 16000
	DefaultFrameSize       = 1024
	DefaultHopSize         = 512
	DefaultNumCoefficients = 20
	DefaultNumMelFilters   = 40
)

// Option applies a configuration option to the Extractor.
type Option func(*Extractor)

// WithSampleRate sets the PCM rate the extractor expects.
func WithSampleRate(rate int) Option {
	return func(e *Extractor) {
		e.sampleRate = rate
	}
}

// WithFrame sets the analysis frame length and hop in samples.
func WithFrame(size, hop int) Option {
	return func(e *Extractor) {
		e.frameSize = size
		e.hopSize = hop
	}
}

// WithNumCoefficients sets K, the number of cepstral coefficients per frame.
func WithNumCoefficients(k int) Option {
	return func(e *Extractor) {
		e.numCoeffs = k
	}
}

// WithNumMelFilters sets the number of triangular mel bands.
func WithNumMelFilters(n int) Option {
	return func(e *Extractor) {
		e.numFilters = n
	}
}

// WithFrequencyRange limits the filter bank to [low, high] Hz. A zero high
// edge means Nyquist.
func WithFrequencyRange(low, high float64) Option {
	return func(e *Extractor) {
		e.lowHz = low
		e.highHz = high
	}
}
