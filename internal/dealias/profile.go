package dealias

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/cloudradar/internal/moments"
	"github.com/banshee-data/cloudradar/internal/units"
)

// Profile is one time column of Doppler spectra, ordered by increasing range.
type Profile struct {
	Time time.Time

	// Spectra is [gates x bins]; NaN marks unused trailing bins and missing gates.
	Spectra *mat.Dense
	// SpectraUnits is the power unit of Spectra (units.Linear or units.DB).
	// Empty means linear; decibel spectra are converted before processing.
	SpectraUnits string

	// Velocity holds one increasing axis per chirp sequence. Trailing NaN
	// bins beyond the sequence's FFT length are allowed.
	Velocity [][]float64
	// RangeOffsets is the first gate of every chirp sequence. Nil means a
	// single sequence starting at gate 0.
	RangeOffsets []int
	// AveragingCounts is the number of incoherent averages per sequence.
	AveragingCounts []int
	// RangeResolution is the gate spacing, in the unit of MaxGapDistance.
	RangeResolution float64

	// PreviousVm is the previous column's mean velocity per gate, or nil.
	PreviousVm []float64
}

// MomentsSet is the struct-of-arrays view of the moments over all gates.
type MomentsSet struct {
	Ze        []float64 `json:"ze"`
	Vm        []float64 `json:"vm"`
	Sigma     []float64 `json:"sigma"`
	Skew      []float64 `json:"skew"`
	Kurt      []float64 `json:"kurt"`
	PeakNoise []float64 `json:"peak_noise"`
	MeanNoise []float64 `json:"mean_noise"`
}

func newMomentsSet(n int) MomentsSet {
	nan := func() []float64 {
		out := make([]float64, n)
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	return MomentsSet{
		Ze: nan(), Vm: nan(), Sigma: nan(), Skew: nan(), Kurt: nan(),
		PeakNoise: nan(), MeanNoise: nan(),
	}
}

// At returns the moments of gate g.
func (ms MomentsSet) At(g int) moments.Moments {
	return moments.Moments{
		Ze: ms.Ze[g], Vm: ms.Vm[g], Sigma: ms.Sigma[g], Skew: ms.Skew[g], Kurt: ms.Kurt[g],
		Noise: moments.Noise{Peak: ms.PeakNoise[g], Mean: ms.MeanNoise[g]},
	}
}

func (ms MomentsSet) set(g int, m moments.Moments, sel moments.Selection) {
	nan := math.NaN()
	pick := func(s moments.Selection, v float64) float64 {
		if sel.Has(s) {
			return v
		}
		return nan
	}
	ms.Ze[g] = pick(moments.SelectZe, m.Ze)
	ms.Vm[g] = m.Vm
	ms.Sigma[g] = pick(moments.SelectSigma, m.Sigma)
	ms.Skew[g] = pick(moments.SelectSkew, m.Skew)
	ms.Kurt[g] = pick(moments.SelectKurt, m.Kurt)
	ms.PeakNoise[g] = m.Noise.Peak
	ms.MeanNoise[g] = m.Noise.Mean
}

// Layer is an inclusive range of gates holding contiguous signal.
type Layer struct {
	Base int `json:"base"`
	Top  int `json:"top"`
}

// Len is the number of gates in the layer.
func (l Layer) Len() int { return l.Top - l.Base + 1 }

// LayerResult records how one layer was processed. Seed is -1 when the
// layer held no clean signal and its gates were estimated independently.
type LayerResult struct {
	Layer
	Seed          int  `json:"seed"`
	NoCleanSignal bool `json:"no_clean_signal"`
}

// Path records which branch of the processing produced a result.
type Path string

const (
	PathNoData     Path = "no_data"
	PathNoAliasing Path = "no_aliasing"
	PathDealiased  Path = "dealiased"
)

// Result is the processed profile. It never shares memory with the Profile.
type Result struct {
	Time   time.Time
	Path   Path
	NoData bool

	// Spectra and Velocity are [gates x bins]; every gate carries the
	// velocity axis its emitted spectrum lives on.
	Spectra  *mat.Dense
	Velocity *mat.Dense

	Moments        MomentsSet
	AliasCandidate []bool
	Status         []Status
	Layers         []LayerResult

	// Folded marks gates whose spectrum was shifted by whole spans. Unlike
	// AliasCandidate it is never set from the detector alone.
	Folded []bool

	// ArtifactMask is the contamination mask when the artifact filter ran.
	ArtifactMask [][]bool
	// Invalidated lists gates dropped as fully contaminated.
	Invalidated []int
}

// Gates is the number of range gates in the result.
func (r *Result) Gates() int { return len(r.Status) }

// sequence is the resolved geometry of one chirp sequence.
type sequence struct {
	index int
	first int // first gate
	vel   []float64
	nfft  int
	nAvg  int
	vn    float64
	delv  float64
	span  float64
}

type geometry struct {
	gates int
	bins  int
	seqs  []sequence
}

func newGeometry(p Profile) (*geometry, error) {
	if p.Spectra == nil {
		return nil, fmt.Errorf("%w: no spectra", ErrInvalidProfile)
	}
	gates, bins := p.Spectra.Dims()
	if gates == 0 || bins == 0 {
		return nil, fmt.Errorf("%w: empty spectra", ErrInvalidProfile)
	}
	if len(p.Velocity) == 0 {
		return nil, fmt.Errorf("%w: no velocity table", ErrInvalidProfile)
	}
	if p.SpectraUnits != "" && !units.IsValid(p.SpectraUnits) {
		return nil, fmt.Errorf("%w: spectra units %q, must be one of: %s", ErrInvalidProfile, p.SpectraUnits, units.GetValidUnitsString())
	}
	offsets := p.RangeOffsets
	if offsets == nil {
		offsets = []int{0}
	}
	nseq := len(p.Velocity)
	if len(offsets) != nseq {
		return nil, fmt.Errorf("%w: %d range offsets for %d chirp sequences", ErrInvalidProfile, len(offsets), nseq)
	}
	if len(p.AveragingCounts) != nseq {
		return nil, fmt.Errorf("%w: %d averaging counts for %d chirp sequences", ErrInvalidProfile, len(p.AveragingCounts), nseq)
	}
	if !(p.RangeResolution > 0) {
		return nil, fmt.Errorf("%w: range resolution must be positive, got %f", ErrInvalidProfile, p.RangeResolution)
	}
	if p.PreviousVm != nil && len(p.PreviousVm) != gates {
		return nil, fmt.Errorf("%w: previous velocity has %d gates, spectra have %d", ErrInvalidProfile, len(p.PreviousVm), gates)
	}

	geo := &geometry{gates: gates, bins: bins, seqs: make([]sequence, nseq)}
	for i, vel := range p.Velocity {
		if offsets[i] < 0 || offsets[i] >= gates || (i == 0 && offsets[i] != 0) || (i > 0 && offsets[i] <= offsets[i-1]) {
			return nil, fmt.Errorf("%w: range offsets %v do not partition %d gates", ErrInvalidProfile, offsets, gates)
		}
		if p.AveragingCounts[i] < 1 {
			return nil, fmt.Errorf("%w: averaging count of sequence %d must be >= 1", ErrInvalidProfile, i)
		}
		nfft := 0
		for nfft < len(vel) && !math.IsNaN(vel[nfft]) {
			nfft++
		}
		for _, v := range vel[nfft:] {
			if !math.IsNaN(v) {
				return nil, fmt.Errorf("%w: velocity axis of sequence %d has values after fill", ErrInvalidProfile, i)
			}
		}
		if nfft < 2 {
			return nil, fmt.Errorf("%w: velocity axis of sequence %d has %d valid bins", ErrInvalidProfile, i, nfft)
		}
		if nfft > bins {
			return nil, fmt.Errorf("%w: velocity axis of sequence %d has %d bins, spectra have %d", ErrInvalidProfile, i, nfft, bins)
		}
		for j := 1; j < nfft; j++ {
			if vel[j] <= vel[j-1] {
				return nil, fmt.Errorf("%w: velocity axis of sequence %d is not increasing at bin %d", ErrInvalidProfile, i, j)
			}
		}
		if !antisymmetric(vel[:nfft]) {
			return nil, fmt.Errorf("%w: velocity axis of sequence %d is not antisymmetric about zero", ErrInvalidProfile, i)
		}
		delv := vel[1] - vel[0]
		geo.seqs[i] = sequence{
			index: i,
			first: offsets[i],
			vel:   vel[:nfft:nfft],
			nfft:  nfft,
			nAvg:  p.AveragingCounts[i],
			vn:    -vel[0],
			delv:  delv,
			span:  float64(nfft) * delv,
		}
	}
	return geo, nil
}

// antisymmetric reports whether the increasing axis vel has its zero-velocity
// bin at len(vel)/2 with the bins around it mirrored. The first bin of an
// even-length FFT axis has no mirror.
func antisymmetric(vel []float64) bool {
	n := len(vel)
	c := n / 2
	tol := 1e-3 * (vel[1] - vel[0])
	if math.Abs(vel[c]) > tol {
		return false
	}
	for j := 1; c+j < n; j++ {
		if math.Abs(vel[c+j]+vel[c-j]) > tol {
			return false
		}
	}
	return true
}

// seqOf returns the chirp sequence gate g belongs to.
func (geo *geometry) seqOf(g int) *sequence {
	for i := len(geo.seqs) - 1; i > 0; i-- {
		if g >= geo.seqs[i].first {
			return &geo.seqs[i]
		}
	}
	return &geo.seqs[0]
}

// nearestBin returns the bin whose centre is closest to v.
func (s *sequence) nearestBin(v float64) int {
	best := 0
	for i, c := range s.vel {
		if math.Abs(c-v) < math.Abs(s.vel[best]-v) {
			best = i
		}
	}
	return best
}

// window cuts nfft bins out of the periodic extension of spec, centred on bin
// c of copy k (copy 0 is the recorded axis). ok is false when |k| exceeds
// maxFold.
func (s *sequence) window(spec []float64, c, k, maxFold int) (wspec, wvel []float64, ok bool) {
	if k > maxFold || k < -maxFold {
		return nil, nil, false
	}
	n := s.nfft
	start := c + k*n - n/2
	wspec = make([]float64, n)
	wvel = make([]float64, n)
	for i := range wspec {
		b, turns := moments.WrapBin(start+i, n)
		wspec[i] = spec[b]
		wvel[i] = s.vel[b] + float64(turns)*s.span
	}
	return wspec, wvel, true
}

// allMissing reports whether every valid bin of every gate is NaN.
func allMissing(spectra *mat.Dense, geo *geometry) bool {
	for g := 0; g < geo.gates; g++ {
		row := spectra.RawRowView(g)[:geo.seqOf(g).nfft]
		for _, v := range row {
			if !math.IsNaN(v) {
				return false
			}
		}
	}
	return true
}
