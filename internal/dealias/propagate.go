package dealias

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/cloudradar/internal/moments"
)

// gateResult is what the sweep emits for one gate.
type gateResult struct {
	gate   int
	spec   []float64
	vel    []float64
	mom    moments.Moments
	status Status
	alias  bool
	folded bool
}

// profileContext is the read-only state shared by the sweeps of a profile.
type profileContext struct {
	cfg     Config
	sel     moments.Selection
	geo     *geometry
	spectra *mat.Dense
	det     Detection
	raw     []moments.Moments
	prev    []float64
}

func (pc *profileContext) row(g int) []float64 {
	return pc.spectra.RawRowView(g)[:pc.geo.seqOf(g).nfft]
}

func (pc *profileContext) hasSignal(g int) bool {
	return len(pc.det.Runs[g]) > 0 && pc.raw[g].HasSignal()
}

// unfolded is gate g emitted as recorded.
func (pc *profileContext) unfolded(g int) gateResult {
	return gateResult{gate: g, spec: pc.row(g), vel: pc.geo.seqOf(g).vel, mom: pc.raw[g]}
}

// checkResidual applies the post-fold checks common to every emitted gate.
func (pc *profileContext) checkResidual(r *gateResult) {
	if dominantPeakNearEdge(r.spec, r.mom.Noise, pc.cfg) {
		r.status = r.status.With(StatusNearNyquist)
	}
	if pc.prev != nil && r.gate < len(pc.prev) {
		if p := pc.prev[r.gate]; !math.IsNaN(p) && math.Abs(r.mom.Vm-p) > pc.cfg.JumpThreshold {
			r.status = r.status.With(StatusInconsistentPrevious)
		}
	}
}

// seed emits the anchor gate of a layer, presumed unaliased.
func (pc *profileContext) seed(g int) gateResult {
	r := pc.unfolded(g)
	pc.checkResidual(&r)
	return r
}

// fold emits gate g refolded to be continuous with vmGuess.
func (pc *profileContext) fold(g int, vmGuess float64) gateResult {
	r := pc.unfolded(g)
	if math.IsNaN(vmGuess) {
		r.status = r.status.With(StatusNoInitialGuess)
		pc.checkResidual(&r)
		return r
	}

	seq := pc.geo.seqOf(g)
	vmRaw := pc.raw[g].Vm
	k := int(math.Round((vmGuess - vmRaw) / seq.span))
	r.alias = k != 0
	if k != 0 {
		wspec, wvel, ok := seq.window(r.spec, seq.nearestBin(vmRaw), k, pc.cfg.MaxFoldCount)
		var m moments.Moments
		if ok {
			m = pc.cfg.estimator().Estimate(wspec, wvel, seq.nAvg, moments.NoNoise(), pc.sel)
		}
		if ok && m.HasSignal() {
			r.spec, r.vel, r.mom = wspec, wvel, m
			r.folded = true
		} else {
			r.status = r.status.With(StatusBoundaryReached)
		}
	}
	pc.checkResidual(&r)
	return r
}

// propagate sweeps from start to end inclusive in steps of dir (+1 or -1),
// folding every gate against the velocity of the last gate with signal.
// Gates without signal are emitted unchanged and do not move the guess; a
// no-signal run longer than GuessGapGates drops it.
func (pc *profileContext) propagate(start, end, dir int, vmGuess float64) []gateResult {
	var out []gateResult
	gap := 0
	for g := start; ; g += dir {
		if !pc.hasSignal(g) {
			r := pc.unfolded(g)
			r.mom = moments.Empty(r.mom.Noise)
			out = append(out, r)
			gap++
			if gap > pc.cfg.GuessGapGates {
				vmGuess = math.NaN()
			}
		} else {
			gap = 0
			r := pc.fold(g, vmGuess)
			vmGuess = r.mom.Vm
			out = append(out, r)
		}
		if g == end {
			break
		}
	}
	return out
}
