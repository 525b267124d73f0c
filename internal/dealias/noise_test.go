package dealias

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/cloudradar/internal/moments"
	"github.com/banshee-data/cloudradar/internal/testutil"
)

func TestSignificantRuns(t *testing.T) {
	t.Parallel()
	nan := math.NaN()
	tests := []struct {
		name string
		spec []float64
		min  int
		want []Run
	}{
		{"empty", nil, 3, nil},
		{"below threshold", []float64{1, 1, 1, 1}, 1, nil},
		{"threshold is exclusive", []float64{2, 2, 2}, 1, nil},
		{"single run", []float64{1, 3, 5, 4, 1}, 3, []Run{{Start: 1, End: 3, Peak: 2}}},
		{"too short", []float64{1, 3, 5, 1, 1}, 3, nil},
		{"run at end", []float64{1, 1, 3, 4, 6}, 3, []Run{{Start: 2, End: 4, Peak: 4}}},
		{"two runs", []float64{3, 4, 1, 1, 5, 6, 7}, 2, []Run{{Start: 0, End: 1, Peak: 1}, {Start: 4, End: 6, Peak: 6}}},
		{"NaN breaks run", []float64{3, 4, nan, 5, 6}, 3, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SignificantRuns(tt.spec, 2, tt.min))
		})
	}
}

func TestNearEdge(t *testing.T) {
	t.Parallel()
	assert.True(t, NearEdge(0, 128, 4))
	assert.True(t, NearEdge(3, 128, 4))
	assert.False(t, NearEdge(4, 128, 4))
	assert.False(t, NearEdge(123, 128, 4))
	assert.True(t, NearEdge(124, 128, 4))
	assert.True(t, NearEdge(127, 128, 4))
	assert.False(t, NearEdge(0, 128, 0))
}

func TestDetectGate(t *testing.T) {
	t.Parallel()
	axis := testutil.FFTAxis(testVn, testBins)
	cfg := DefaultConfig()

	t.Run("centred peak", func(t *testing.T) {
		noise, runs, alias, power := detectGate(testutil.GaussianSpectrum(axis, 0.5, testSigma, 1, testFloor), testNAvg, cfg)
		require.True(t, noise.Valid())
		require.Len(t, runs, 1)
		assert.False(t, alias)
		assert.Greater(t, power, 0.0)
		assert.InDelta(t, 0.5, axis[runs[0].Peak], 2*testVn/testBins)
	})

	t.Run("peak at edge", func(t *testing.T) {
		_, runs, alias, _ := detectGate(testutil.GaussianSpectrum(axis, 3.95, testSigma, 1, testFloor), testNAvg, cfg)
		require.NotEmpty(t, runs)
		assert.True(t, alias)
	})

	t.Run("noise only", func(t *testing.T) {
		noise, runs, alias, power := detectGate(testutil.Flat(testBins, testFloor), testNAvg, cfg)
		assert.True(t, noise.Valid())
		assert.Empty(t, runs)
		assert.False(t, alias)
		assert.Zero(t, power)
	})

	t.Run("missing", func(t *testing.T) {
		noise, runs, alias, _ := detectGate(testutil.NaNs(testBins), testNAvg, cfg)
		assert.False(t, noise.Valid())
		assert.Nil(t, runs)
		assert.False(t, alias)
	})
}

func TestDominantPeakNearEdge(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	noise := moments.Noise{Peak: 1, Mean: 1}

	// weak run at the edge, strong run in the middle
	spec := testutil.Flat(32, 1)
	spec[0], spec[1], spec[2] = 3, 4, 3
	spec[15], spec[16], spec[17] = 5, 9, 5
	assert.False(t, dominantPeakNearEdge(spec, noise, cfg))

	spec[30], spec[31], spec[29] = 12, 20, 12
	assert.True(t, dominantPeakNearEdge(spec, noise, cfg))

	assert.False(t, dominantPeakNearEdge(spec, moments.NoNoise(), cfg))
}

func TestDetectionHasSignal(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.NegligiblePower = 0.5
	det := Detection{
		Runs:        [][]Run{nil, {{Start: 0, End: 2, Peak: 1}}, {{Start: 0, End: 2, Peak: 1}}, {{Start: 0, End: 2, Peak: 1}}},
		SignalPower: []float64{10, 0.4, 0.6, math.NaN()},
	}
	assert.Equal(t, []bool{false, false, true, false}, signalMask(det, cfg))
}
