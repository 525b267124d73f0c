package dealias

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// ArtifactTemplate marks spectral bins produced by the acquisition
// electronics rather than by scatterers. validBins[g] is the number of
// valid bins of gate g; its axis is antisymmetric, so the zero-velocity bin
// is validBins[g]/2. The mask has the same shape as spectra.
type ArtifactTemplate interface {
	Mask(spectra *mat.Dense, validBins []int) [][]bool
}

// SpikeTemplate flags single-bin spikes at fixed offsets from the
// zero-velocity bin: a candidate matches when it exceeds both neighbours
// by more than Ratio.
type SpikeTemplate struct {
	Offsets []int
	Ratio   float64
}

// Mask implements ArtifactTemplate.
func (t SpikeTemplate) Mask(spectra *mat.Dense, validBins []int) [][]bool {
	gates, bins := spectra.Dims()
	mask := make([][]bool, gates)
	for g := 0; g < gates; g++ {
		mask[g] = make([]bool, bins)
		n := validBins[g]
		row := spectra.RawRowView(g)
		zero := n / 2
		for _, off := range t.Offsets {
			b := zero + off
			if b < 1 || b > n-2 {
				continue
			}
			v, l, r := row[b], row[b-1], row[b+1]
			if math.IsNaN(v) || math.IsNaN(l) || math.IsNaN(r) {
				continue
			}
			if v > t.Ratio*l && v > t.Ratio*r {
				mask[g][b] = true
			}
		}
	}
	return mask
}

// filterArtifacts masks the artifact candidates of spectra and invalidates,
// in place, gates whose above-threshold bins are all flagged. Partially
// contaminated gates are kept as recorded. spectra must be owned by the
// caller; det is the detection computed on it.
func filterArtifacts(spectra *mat.Dense, geo *geometry, det Detection, cfg Config) (mask [][]bool, invalidated []int) {
	valid := make([]int, geo.gates)
	for g := range valid {
		valid[g] = geo.seqOf(g).nfft
	}
	mask = cfg.artifacts().Mask(spectra, valid)

	for g := 0; g < geo.gates; g++ {
		if !det.Noise[g].Valid() {
			continue
		}
		row := spectra.RawRowView(g)
		threshold := cfg.threshold(det.Noise[g])
		flagged, clean := 0, 0
		for b := 0; b < valid[g]; b++ {
			if !(row[b] > threshold) {
				continue
			}
			if mask[g][b] {
				flagged++
			} else {
				clean++
			}
		}
		if flagged > 0 && clean == 0 {
			for b := range row {
				row[b] = math.NaN()
			}
			invalidated = append(invalidated, g)
		}
	}
	return mask, invalidated
}
