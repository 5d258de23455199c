// Package features turns mono PCM into a fixed-length MFCC fingerprint.
package features

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/deepp5/catrack/internal/domain/model"
)

// logFloor keeps log-mel energies finite for silent bands.
const logFloor = 1e-10

// Extractor computes MFCC fingerprints. All derived tables are built once in
// NewExtractor and only read afterwards, so one Extractor may be shared by
// any number of goroutines.
type Extractor struct {
	sampleRate int
	frameSize  int
	hopSize    int
	numCoeffs  int
	numFilters int
	lowHz      float64
	highHz     float64

	window     []float64
	filterBank [][]float64
	dct        [][]float64
}

// NewExtractor creates an extractor with configuration options.
func NewExtractor(opts ...Option) (*Extractor, error) {
	e := &Extractor{
		sampleRate: DefaultSampleRate,
		frameSize:  DefaultFrameSize,
		hopSize:    DefaultHopSize,
		numCoeffs:  DefaultNumCoefficients,
		numFilters: DefaultNumMelFilters,
	}
	for _, opt := range opts {
		opt(e)
	}

	nyquist := float64(e.sampleRate) / 2
	if e.highHz == 0 {
		e.highHz = nyquist
	}
	switch {
	case e.sampleRate <= 0, e.frameSize <= 0, e.hopSize <= 0:
		return nil, fmt.Errorf("%w: sample rate %d, frame %d, hop %d", ErrInvalidParams, e.sampleRate, e.frameSize, e.hopSize)
	case e.numCoeffs <= 0 || e.numFilters <= 0 || e.numCoeffs > e.numFilters:
		return nil, fmt.Errorf("%w: %d coefficients from %d mel filters", ErrInvalidParams, e.numCoeffs, e.numFilters)
	case e.lowHz < 0 || e.highHz > nyquist || e.lowHz >= e.highHz:
		return nil, fmt.Errorf("%w: frequency range [%g, %g] Hz at %d Hz", ErrInvalidParams, e.lowHz, e.highHz, e.sampleRate)
	}

	e.window = hannWindow(e.frameSize)
	e.filterBank = melFilterBank(e.numFilters, e.frameSize, e.sampleRate, e.lowHz, e.highHz)
	e.dct = dctMatrix(e.numCoeffs, e.numFilters)
	return e, nil
}

// NumCoefficients returns K.
func (e *Extractor) NumCoefficients() int { return e.numCoeffs }

// Dim returns the fingerprint length, 2K.
func (e *Extractor) Dim() int { return 2 * e.numCoeffs }

// SampleRate returns the PCM rate the extractor was built for.
func (e *Extractor) SampleRate() int { return e.sampleRate }

// FrameCount returns how many full frames fit in n samples.
func (e *Extractor) FrameCount(n int) int {
	if n < e.frameSize {
		return 0
	}
	return (n-e.frameSize)/e.hopSize + 1
}

// MFCC returns the T×K coefficient matrix, one row per frame. Trailing
// samples that do not fill a frame are ignored.
func (e *Extractor) MFCC(pcm []float64) ([][]float64, error) {
	frames := e.FrameCount(len(pcm))
	if frames == 0 {
		return nil, fmt.Errorf("%w: %d samples, need at least %d", model.ErrInsufficientData, len(pcm), e.frameSize)
	}

	out := make([][]float64, frames)
	buf := make([]float64, e.frameSize)
	power := make([]float64, e.frameSize/2+1)
	logMel := make([]float64, e.numFilters)

	for t := 0; t < frames; t++ {
		start := t * e.hopSize
		copy(buf, pcm[start:start+e.frameSize])
		floats.Mul(buf, e.window)

		spectrum := fft.FFTReal(buf)
		for k := range power {
			mag := cmplx.Abs(spectrum[k])
			power[k] = mag * mag
		}

		for m, weights := range e.filterBank {
			energy := floats.Dot(weights, power)
			logMel[m] = math.Log(math.Max(energy, logFloor))
		}

		coeffs := make([]float64, e.numCoeffs)
		for k, basis := range e.dct {
			coeffs[k] = floats.Dot(basis, logMel)
		}
		out[t] = coeffs
	}
	return out, nil
}

// Extract summarises pcm as K per-coefficient means followed by K
// per-coefficient population standard deviations.
func (e *Extractor) Extract(pcm []float64) (model.Fingerprint, error) {
	matrix, err := e.MFCC(pcm)
	if err != nil {
		return nil, err
	}

	fp := make(model.Fingerprint, 2*e.numCoeffs)
	column := make([]float64, len(matrix))
	for k := 0; k < e.numCoeffs; k++ {
		for t, row := range matrix {
			column[t] = row[k]
		}
		mean := stat.Mean(column, nil)
		fp[k] = mean
		fp[e.numCoeffs+k] = math.Sqrt(stat.MomentAbout(2, column, mean, nil))
	}
	return fp, nil
}
