package moments

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Selection is a set of moments to compute.
type Selection uint8

const (
	SelectZe Selection = 1 << iota
	SelectVm
	SelectSigma
	SelectSkew
	SelectKurt

	SelectAll = SelectZe | SelectVm | SelectSigma | SelectSkew | SelectKurt
)

// Has reports whether s includes every moment in o.
func (s Selection) Has(o Selection) bool { return s&o == o }

// ParseSelection maps moment names ("Ze", "VEL", "sw", "skew", "kurt", ...)
// to a Selection. Unknown names are reported through ok=false.
func ParseSelection(names []string) (sel Selection, ok bool) {
	ok = true
	for _, name := range names {
		switch name {
		case "Ze", "ze", "Z", "reflectivity":
			sel |= SelectZe
		case "VEL", "vm", "Vm", "velocity":
			sel |= SelectVm
		case "sw", "sigma", "width":
			sel |= SelectSigma
		case "skew", "skewness":
			sel |= SelectSkew
		case "kurt", "kurtosis":
			sel |= SelectKurt
		default:
			ok = false
		}
	}
	return sel, ok
}

// Moments are the radar moments of one spectrum together with the noise level
// they were computed against. Unselected or undetermined moments are NaN.
type Moments struct {
	Ze    float64 `json:"ze"`
	Vm    float64 `json:"vm"`
	Sigma float64 `json:"sigma"`
	Skew  float64 `json:"skew"`
	Kurt  float64 `json:"kurt"`
	Noise Noise   `json:"noise"`
}

// Empty returns a Moments value with no computed moment.
func Empty(noise Noise) Moments {
	nan := math.NaN()
	return Moments{Ze: nan, Vm: nan, Sigma: nan, Skew: nan, Kurt: nan, Noise: noise}
}

// HasSignal reports whether the mean velocity could be determined.
func (m Moments) HasSignal() bool { return !math.IsNaN(m.Vm) }

// Estimator computes moments from the contiguous signal region around the
// spectral maximum. Bins are weighted by their power above the mean noise.
type Estimator struct{}

// Estimate computes the selected moments of spec on the velocity axis vel.
// vel must be evenly spaced: a peak region wrapping across an edge is
// continued on the neighbouring period.
// When noise carries no value it is derived with HildebrandSekhon from nAvg.
// The returned Moments.Noise is the noise actually used.
func (Estimator) Estimate(spec, vel []float64, nAvg int, noise Noise, sel Selection) Moments {
	if len(spec) == 0 || len(spec) != len(vel) {
		return Empty(NoNoise())
	}
	if !noise.Valid() {
		noise = HildebrandSekhon(spec, nAvg)
		if !noise.Valid() {
			return Empty(noise)
		}
	}

	lo, hi, ok := PeakEdges(spec, noise.Peak)
	if !ok {
		return Empty(noise)
	}

	nb := len(spec)
	n := hi - lo + 1
	v := make([]float64, n)
	w := make([]float64, n)
	for i := range w {
		b, turns := WrapBin(lo+i, nb)
		v[i] = vel[b]
		if turns != 0 {
			v[i] += float64(turns*nb) * (vel[1] - vel[0])
		}
		w[i] = spec[b] - noise.Mean
		if w[i] < 0 {
			w[i] = 0
		}
	}
	total := floats.Sum(w)
	if total <= 0 {
		return Empty(noise)
	}

	m := Empty(noise)
	if sel.Has(SelectZe) {
		m.Ze = total
	}
	vm := stat.Mean(v, w)
	if sel.Has(SelectVm) {
		m.Vm = vm
	}
	if sel&(SelectSigma|SelectSkew|SelectKurt) == 0 {
		return m
	}

	sigma := math.Sqrt(stat.Moment(2, v, w))
	if sel.Has(SelectSigma) {
		m.Sigma = sigma
	}
	if sigma == 0 {
		return m
	}
	if sel.Has(SelectSkew) {
		m.Skew = stat.Moment(3, v, w) / (sigma * sigma * sigma)
	}
	if sel.Has(SelectKurt) {
		m.Kurt = stat.Moment(4, v, w) / (sigma * sigma * sigma * sigma)
	}
	return m
}

// PeakEdges returns the bin range of the contiguous run of bins above
// threshold that contains the spectral maximum. The spectrum is periodic, so
// the run may wrap across either edge: lo can be negative and hi can pass the
// last bin. WrapBin maps the range back onto spec.
func PeakEdges(spec []float64, threshold float64) (lo, hi int, ok bool) {
	peak := -1
	for i, v := range spec {
		if math.IsNaN(v) {
			continue
		}
		if peak < 0 || v > spec[peak] {
			peak = i
		}
	}
	if peak < 0 || !(spec[peak] > threshold) {
		return 0, 0, false
	}
	n := len(spec)
	lo, hi = peak, peak
	for hi-lo+1 < n {
		if b, _ := WrapBin(lo-1, n); !(spec[b] > threshold) {
			break
		}
		lo--
	}
	for hi-lo+1 < n {
		if b, _ := WrapBin(hi+1, n); !(spec[b] > threshold) {
			break
		}
		hi++
	}
	return lo, hi, true
}

// WrapBin maps bin i of the periodic extension of an n-bin axis to its bin
// on the axis and the number of whole axis lengths it lies away from it.
func WrapBin(i, n int) (bin, turns int) {
	turns = i / n
	if i%n < 0 {
		turns--
	}
	return i - turns*n, turns
}
