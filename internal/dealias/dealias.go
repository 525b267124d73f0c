// Package dealias resolves Doppler velocity aliasing in cloud radar spectra.
//
// A profile (one time column of range gates) is processed in stages: noise
// and aliasing detection, artifact filtering, cloud layer segmentation, seed
// selection and a bidirectional unwrap sweep from the seed of every layer.
// Profiles without any aliasing candidate skip the sweep entirely. Every gate
// of the result carries a Status summarising how trustworthy its folding is.
package dealias

import (
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/cloudradar/internal/moments"
	"github.com/banshee-data/cloudradar/internal/monitoring"
	"github.com/banshee-data/cloudradar/internal/units"
)

var logf = monitoring.Component("dealias").Logf

// Processor dealiases profiles with a validated configuration. It holds no
// mutable state and is safe for concurrent use.
type Processor struct {
	cfg Config
}

// NewProcessor validates cfg once and returns a Processor using it.
func NewProcessor(cfg Config) (*Processor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Processor{cfg: cfg}, nil
}

// Config returns the configuration the processor was built with.
func (pr *Processor) Config() Config { return pr.cfg }

// Dealias processes one profile. Structural problems with the input are
// returned as errors wrapping ErrInvalidProfile; everything else, including
// profiles without any data, is reported through the Result.
func (pr *Processor) Dealias(p Profile) (*Result, error) {
	geo, err := newGeometry(p)
	if err != nil {
		return nil, err
	}
	if allMissing(p.Spectra, geo) {
		return &Result{Time: p.Time, Path: PathNoData, NoData: true}, nil
	}

	work := mat.DenseCopyOf(p.Spectra)
	if p.SpectraUnits == units.DB {
		for g := 0; g < geo.gates; g++ {
			units.ToLinearSlice(work.RawRowView(g), p.SpectraUnits)
		}
	}

	cfg := pr.cfg
	det := detect(work, geo, cfg)

	var mask [][]bool
	var invalidated []int
	if cfg.ArtifactModeGates > 0 && geo.gates == cfg.ArtifactModeGates {
		mask, invalidated = filterArtifacts(work, geo, det, cfg)
		if len(invalidated) > 0 {
			logf("%d gates invalidated as artifacts", len(invalidated))
			det = detect(work, geo, cfg)
		}
	}

	pc := &profileContext{
		cfg:     cfg,
		sel:     cfg.Moments | moments.SelectVm,
		geo:     geo,
		spectra: work,
		det:     det,
		prev:    p.PreviousVm,
	}
	pc.raw = make([]moments.Moments, geo.gates)
	est := cfg.estimator()
	for g := 0; g < geo.gates; g++ {
		seq := geo.seqOf(g)
		pc.raw[g] = est.Estimate(pc.row(g), seq.vel, seq.nAvg, det.Noise[g], pc.sel)
	}

	res := newResult(p, geo, work)
	res.ArtifactMask = mask
	res.Invalidated = invalidated

	if !det.AnyAliasCandidate() {
		res.Path = PathNoAliasing
		for g := 0; g < geo.gates; g++ {
			res.Moments.set(g, pc.raw[g], cfg.Moments)
		}
		return res, nil
	}

	res.Path = PathDealiased
	copy(res.AliasCandidate, det.AliasCandidate)
	for _, layer := range SegmentLayers(signalMask(det, cfg), p.RangeResolution, cfg.MaxGapDistance) {
		lr, gates := pc.layer(layer)
		for _, r := range gates {
			res.record(r, cfg.Moments)
		}
		res.Layers = append(res.Layers, lr)
	}
	return res, nil
}

// layer processes one cloud layer and returns its gates.
func (pc *profileContext) layer(layer Layer) (LayerResult, []gateResult) {
	idx0, ok := selectSeed(layer, pc.raw, pc.det)
	if !ok {
		logf("layer %d-%d: no clean signal, moments computed per gate", layer.Base, layer.Top)
		out := make([]gateResult, 0, layer.Len())
		for g := layer.Base; g <= layer.Top; g++ {
			r := pc.unfolded(g)
			r.alias = pc.det.AliasCandidate[g]
			out = append(out, r)
		}
		return LayerResult{Layer: layer, Seed: -1, NoCleanSignal: true}, out
	}

	seed := pc.seed(idx0)
	var down, up []gateResult
	var wg sync.WaitGroup
	if idx0 > layer.Base {
		wg.Add(1)
		go func() {
			defer wg.Done()
			down = pc.propagate(idx0-1, layer.Base, -1, seed.mom.Vm)
		}()
	}
	if idx0 < layer.Top {
		wg.Add(1)
		go func() {
			defer wg.Done()
			up = pc.propagate(idx0+1, layer.Top, +1, seed.mom.Vm)
		}()
	}
	wg.Wait()

	out := make([]gateResult, 0, layer.Len())
	out = append(out, down...)
	out = append(out, seed)
	return LayerResult{Layer: layer, Seed: idx0}, append(out, up...)
}

// newResult allocates the result arrays: spectra and velocity as recorded,
// moments NaN, status zero.
func newResult(p Profile, geo *geometry, work *mat.Dense) *Result {
	res := &Result{
		Time:           p.Time,
		Spectra:        mat.DenseCopyOf(work),
		Velocity:       mat.NewDense(geo.gates, geo.bins, nil),
		Moments:        newMomentsSet(geo.gates),
		AliasCandidate: make([]bool, geo.gates),
		Folded:         make([]bool, geo.gates),
		Status:         make([]Status, geo.gates),
	}
	for g := 0; g < geo.gates; g++ {
		setRow(res.Velocity, g, geo.seqOf(g).vel)
	}
	return res
}

// record writes one gate of a sweep into the result.
func (res *Result) record(r gateResult, sel moments.Selection) {
	setRow(res.Spectra, r.gate, r.spec)
	setRow(res.Velocity, r.gate, r.vel)
	res.Moments.set(r.gate, r.mom, sel)
	res.AliasCandidate[r.gate] = r.alias
	res.Folded[r.gate] = r.folded
	res.Status[r.gate] |= r.status
}

// setRow copies vals into the start of row g and fills the rest with NaN.
func setRow(m *mat.Dense, g int, vals []float64) {
	row := m.RawRowView(g)
	n := copy(row, vals)
	for i := n; i < len(row); i++ {
		row[i] = math.NaN()
	}
}

// Dealias is a convenience wrapper validating cfg and processing p.
func Dealias(p Profile, cfg Config) (*Result, error) {
	pr, err := NewProcessor(cfg)
	if err != nil {
		return nil, fmt.Errorf("dealias: %w", err)
	}
	return pr.Dealias(p)
}
