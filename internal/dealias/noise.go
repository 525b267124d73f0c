package dealias

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/cloudradar/internal/moments"
)

// Run is an inclusive range of consecutive significant bins. Peak is the bin
// holding the run's maximum.
type Run struct {
	Start int `json:"start"`
	End   int `json:"end"`
	Peak  int `json:"peak"`
}

// Detection is the per-gate output of the noise and aliasing detector.
type Detection struct {
	Noise          []moments.Noise
	AliasCandidate []bool
	Runs           [][]Run
	// SignalPower is the summed power above mean noise inside the runs.
	SignalPower []float64
}

// AnyAliasCandidate reports whether at least one gate is flagged.
func (d Detection) AnyAliasCandidate() bool {
	for _, f := range d.AliasCandidate {
		if f {
			return true
		}
	}
	return false
}

// SignificantRuns returns the maximal runs of at least minConsecutive bins
// strictly above threshold. NaN bins break runs.
func SignificantRuns(spec []float64, threshold float64, minConsecutive int) []Run {
	var runs []Run
	start := -1
	flush := func(end int) {
		if start >= 0 && end-start+1 >= minConsecutive {
			peak := start
			for i := start + 1; i <= end; i++ {
				if spec[i] > spec[peak] {
					peak = i
				}
			}
			runs = append(runs, Run{Start: start, End: end, Peak: peak})
		}
		start = -1
	}
	for i, v := range spec {
		if v > threshold {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i - 1)
	}
	flush(len(spec) - 1)
	return runs
}

// NearEdge reports whether bin lies within margin bins of either end of an
// n-bin axis.
func NearEdge(bin, n, margin int) bool {
	return bin < margin || bin >= n-margin
}

// detectGate estimates the noise of one gate and looks for significant
// signal peaking next to a Nyquist edge.
func detectGate(spec []float64, nAvg int, cfg Config) (moments.Noise, []Run, bool, float64) {
	noise := moments.HildebrandSekhon(spec, nAvg)
	if !noise.Valid() {
		return noise, nil, false, 0
	}
	runs := SignificantRuns(spec, cfg.threshold(noise), cfg.MinConsecutiveBins)
	alias := false
	power := 0.0
	for _, r := range runs {
		if NearEdge(r.Peak, len(spec), cfg.EdgeMargin) {
			alias = true
		}
		for i := r.Start; i <= r.End; i++ {
			power += spec[i] - noise.Mean
		}
	}
	return noise, runs, alias, power
}

// detect runs the noise and aliasing detector over all gates.
func detect(spectra *mat.Dense, geo *geometry, cfg Config) Detection {
	d := Detection{
		Noise:          make([]moments.Noise, geo.gates),
		AliasCandidate: make([]bool, geo.gates),
		Runs:           make([][]Run, geo.gates),
		SignalPower:    make([]float64, geo.gates),
	}
	for g := 0; g < geo.gates; g++ {
		seq := geo.seqOf(g)
		spec := spectra.RawRowView(g)[:seq.nfft]
		d.Noise[g], d.Runs[g], d.AliasCandidate[g], d.SignalPower[g] = detectGate(spec, seq.nAvg, cfg)
	}
	return d
}

// dominantPeakNearEdge applies the edge test to the strongest significant
// run of spec.
func dominantPeakNearEdge(spec []float64, noise moments.Noise, cfg Config) bool {
	if !noise.Valid() {
		return false
	}
	runs := SignificantRuns(spec, cfg.threshold(noise), cfg.MinConsecutiveBins)
	if len(runs) == 0 {
		return false
	}
	best := runs[0]
	for _, r := range runs[1:] {
		if spec[r.Peak] > spec[best.Peak] {
			best = r
		}
	}
	return NearEdge(best.Peak, len(spec), cfg.EdgeMargin)
}

// hasSignal is the layer membership test: significant runs carrying more
// than NegligiblePower above the noise.
func (d Detection) hasSignal(g int, cfg Config) bool {
	return len(d.Runs[g]) > 0 && d.SignalPower[g] > cfg.NegligiblePower && !math.IsNaN(d.SignalPower[g])
}
