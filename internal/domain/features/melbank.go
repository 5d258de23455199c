package features

import "math"

func hzToMel(hz float64) float64 {
	return 2595.0 * math.Log10(1.0+hz/700.0)
}

func melToHz(mel float64) float64 {
	return 700.0 * (math.Pow(10, mel/2595.0) - 1.0)
}

// melFilterBank builds numFilters triangular filters over the one-sided
// spectrum of an fftSize transform. Edges are spaced evenly on the mel scale
// and each bin is weighted by its exact centre frequency rather than being
// snapped to the nearest edge bin, so narrow low bands never collapse to zero.
func melFilterBank(numFilters, fftSize, sampleRate int, lowHz, highHz float64) [][]float64 {
	numBins := fftSize/2 + 1
	lowMel, highMel := hzToMel(lowHz), hzToMel(highHz)

	edges := make([]float64, numFilters+2)
	for i := range edges {
		edges[i] = melToHz(lowMel + (highMel-lowMel)*float64(i)/float64(numFilters+1))
	}

	binHz := float64(sampleRate) / float64(fftSize)
	bank := make([][]float64, numFilters)
	for m := 0; m < numFilters; m++ {
		left, centre, right := edges[m], edges[m+1], edges[m+2]
		weights := make([]float64, numBins)
		for k := 0; k < numBins; k++ {
			f := float64(k) * binHz
			switch {
			case f > left && f <= centre:
				weights[k] = (f - left) / (centre - left)
			case f > centre && f < right:
				weights[k] = (right - f) / (right - centre)
			}
		}
		bank[m] = weights
	}
	return bank
}

// dctMatrix returns the orthonormal DCT-II basis truncated to numCoeffs rows.
func dctMatrix(numCoeffs, n int) [][]float64 {
	m := make([][]float64, numCoeffs)
	scale0 := math.Sqrt(1.0 / float64(n))
	scale := math.Sqrt(2.0 / float64(n))
	for k := 0; k < numCoeffs; k++ {
		row := make([]float64, n)
		s := scale
		if k == 0 {
			s = scale0
		}
		for i := 0; i < n; i++ {
			row[i] = s * math.Cos(math.Pi*float64(k)*(2*float64(i)+1)/(2*float64(n)))
		}
		m[k] = row
	}
	return m
}

// hannWindow is the periodic Hann window used for spectral analysis.
func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}
