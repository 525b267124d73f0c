// Package testutil provides shared test fixtures: it synthesises Doppler
// spectra with a known true velocity so processing tests can plant folds and
// check recovery.
package testutil

import "math"

// FFTAxis returns n velocity bin centres -vn + i*2vn/n, the axis of an
// n-point Doppler FFT with Nyquist velocity vn.
func FFTAxis(vn float64, n int) []float64 {
	axis := make([]float64, n)
	delv := 2 * vn / float64(n)
	for i := range axis {
		axis[i] = -vn + float64(i)*delv
	}
	return axis
}

// GaussianSpectrum returns a spectrum on axis holding a Gaussian peak of
// amplitude amp and width sigma centred on the true velocity vm, on top of a
// flat noise floor. A vm outside the axis range is folded back exactly as the
// radar would record it.
func GaussianSpectrum(axis []float64, vm, sigma, amp, floor float64) []float64 {
	n := len(axis)
	span := float64(n) * (axis[1] - axis[0])
	spec := make([]float64, n)
	for i, v := range axis {
		s := floor
		for c := -4; c <= 4; c++ {
			d := v + float64(c)*span - vm
			s += amp * math.Exp(-d*d/(2*sigma*sigma))
		}
		spec[i] = s
	}
	return spec
}

// Flat returns a noise-only spectrum of n bins at level floor.
func Flat(n int, floor float64) []float64 {
	spec := make([]float64, n)
	for i := range spec {
		spec[i] = floor
	}
	return spec
}

// NaNs returns n NaN values, the fill marker for missing bins.
func NaNs(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// Wrap folds v into [-vn, vn).
func Wrap(v, vn float64) float64 {
	span := 2 * vn
	w := math.Mod(v+vn, span)
	if w < 0 {
		w += span
	}
	return w - vn
}
