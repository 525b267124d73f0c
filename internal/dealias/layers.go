package dealias

import "math"

// SegmentLayers groups gates with signal into layers. Runs separated by at
// most ceil(maxGapDistance/dr) gates without signal are merged.
func SegmentLayers(hasSignal []bool, dr, maxGapDistance float64) []Layer {
	maxGap := 0
	if dr > 0 {
		maxGap = int(math.Ceil(maxGapDistance / dr))
	}

	var layers []Layer
	for g := 0; g < len(hasSignal); g++ {
		if !hasSignal[g] {
			continue
		}
		top := g
		for top+1 < len(hasSignal) && hasSignal[top+1] {
			top++
		}
		if n := len(layers); n > 0 && g-layers[n-1].Top-1 <= maxGap {
			layers[n-1].Top = top
		} else {
			layers = append(layers, Layer{Base: g, Top: top})
		}
		g = top
	}
	return layers
}

func signalMask(det Detection, cfg Config) []bool {
	mask := make([]bool, len(det.Runs))
	for g := range mask {
		mask[g] = det.hasSignal(g, cfg)
	}
	return mask
}
