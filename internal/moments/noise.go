// Package moments estimates the noise level of a Doppler spectrum and derives
// the radar moments (reflectivity, mean velocity, width, skewness, kurtosis)
// from a single, already unaliased, spectrum.
package moments

import (
	"math"
	"sort"
)

// Noise holds the noise level of one spectrum in linear power units.
// Peak is the largest bin attributed to noise, Mean the average noise bin.
type Noise struct {
	Peak float64 `json:"peak_noise"`
	Mean float64 `json:"mean_noise"`
}

// NoNoise is the "no value" noise estimate.
func NoNoise() Noise {
	return Noise{Peak: math.NaN(), Mean: math.NaN()}
}

// Valid reports whether both noise levels carry a value.
func (n Noise) Valid() bool {
	return !math.IsNaN(n.Peak) && !math.IsNaN(n.Mean)
}

// HildebrandSekhon estimates the noise floor of an incoherently averaged
// power spectrum. The ascending-sorted bins are searched for the longest
// prefix whose spread is compatible with white noise averaged nAvg times,
// i.e. mean² >= nAvg * variance. NaN bins are ignored; a spectrum without
// finite bins yields NoNoise.
func HildebrandSekhon(spec []float64, nAvg int) Noise {
	sorted := make([]float64, 0, len(spec))
	for _, v := range spec {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			sorted = append(sorted, v)
		}
	}
	if len(sorted) == 0 {
		return NoNoise()
	}
	if nAvg < 1 {
		nAvg = 1
	}
	sort.Float64s(sorted)

	sum := make([]float64, len(sorted)+1)
	sumSq := make([]float64, len(sorted)+1)
	for i, v := range sorted {
		sum[i+1] = sum[i] + v
		sumSq[i+1] = sumSq[i] + v*v
	}

	n := len(sorted)
	for ; n > 1; n-- {
		mean := sum[n] / float64(n)
		variance := sumSq[n]/float64(n) - mean*mean
		// Relative tolerance absorbs cancellation on flat spectra.
		if variance <= 1e-12*mean*mean || mean*mean >= float64(nAvg)*variance {
			break
		}
	}
	return Noise{Peak: sorted[n-1], Mean: sum[n] / float64(n)}
}
