package dealias

import (
	"math"

	"github.com/banshee-data/cloudradar/internal/moments"
)

// selectSeed picks the gate of layer whose raw mean velocity is closest to
// zero among gates with significant signal; ties go to the lowest gate.
// ok is false when the layer holds no clean signal.
func selectSeed(layer Layer, raw []moments.Moments, det Detection) (idx int, ok bool) {
	idx = -1
	best := math.Inf(1)
	for g := layer.Base; g <= layer.Top; g++ {
		if len(det.Runs[g]) == 0 || !raw[g].HasSignal() {
			continue
		}
		if v := math.Abs(raw[g].Vm); v < best {
			best, idx = v, g
		}
	}
	return idx, idx >= 0
}
