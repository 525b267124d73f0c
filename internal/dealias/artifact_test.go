package dealias

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/cloudradar/internal/testutil"
)

func TestSpikeTemplateMask(t *testing.T) {
	t.Parallel()
	row := testutil.Flat(16, 1)
	row[8] = 50  // zero bin
	row[10] = 5  // not enough above neighbours
	row[14] = 50 // offset 6
	row[15] = math.NaN()
	spectra := denseFrom([][]float64{row, testutil.NaNs(16)}, 16)

	mask := SpikeTemplate{Offsets: []int{-8, 0, 2, 6, 7}, Ratio: 10}.Mask(spectra, []int{16, 16})

	require.Len(t, mask, 2)
	var flagged []int
	for b, m := range mask[0] {
		if m {
			flagged = append(flagged, b)
		}
	}
	// bin 0 has no left neighbour and bin 14 a NaN right neighbour
	assert.Equal(t, []int{8}, flagged)
	assert.NotContains(t, mask[1], true)
}

func TestSpikeTemplateUsesValidBins(t *testing.T) {
	t.Parallel()
	row := append(testutil.Flat(8, 1), testutil.NaNs(8)...)
	row[4] = 50
	spectra := denseFrom([][]float64{row}, 16)

	mask := SpikeTemplate{Offsets: []int{0}, Ratio: 10}.Mask(spectra, []int{8})
	assert.True(t, mask[0][4])
	assert.False(t, mask[0][8])
}

func artifactProfile() Profile {
	axis := testutil.FFTAxis(testVn, testBins)
	flat := testutil.Flat(testBins, testFloor)
	spike := testutil.Flat(testBins, testFloor)
	spike[testBins/2] = 0.5
	mixed := testutil.GaussianSpectrum(axis, 1.0, testSigma, 1, testFloor)
	mixed[testBins/2] = 0.5
	return profileFromRows([][]float64{
		flat,
		spike,
		mixed,
		flat,
		testutil.GaussianSpectrum(axis, 0.5, testSigma, 1, testFloor),
		flat,
	})
}

func TestDealiasInvalidatesArtifactGates(t *testing.T) {
	t.Parallel()
	p := artifactProfile()
	input := mat.DenseCopyOf(p.Spectra)
	cfg := DefaultConfig()
	cfg.ArtifactModeGates = 6

	res := mustDealias(t, p, cfg)

	assert.Equal(t, []int{1}, res.Invalidated)
	require.Len(t, res.ArtifactMask, 6)
	assert.True(t, res.ArtifactMask[1][testBins/2])
	assert.True(t, res.ArtifactMask[2][testBins/2])
	assert.False(t, res.ArtifactMask[0][testBins/2])

	for _, v := range res.Spectra.RawRowView(1) {
		require.True(t, math.IsNaN(v))
	}
	assert.True(t, math.IsNaN(res.Moments.Vm[1]))

	// partial contamination is left as recorded
	assert.Equal(t, input.RawRowView(2), res.Spectra.RawRowView(2))
	assert.InDelta(t, 1.0, res.Moments.Vm[2], 1e-3)
	assert.InDelta(t, 0.5, res.Moments.Vm[4], 1e-3)

	assert.True(t, mat.Equal(input, p.Spectra))
}

func TestDealiasArtifactFilterNeedsMatchingGateCount(t *testing.T) {
	t.Parallel()
	for _, gates := range []int{0, 7} {
		cfg := DefaultConfig()
		cfg.ArtifactModeGates = gates

		res := mustDealias(t, artifactProfile(), cfg)

		assert.Nil(t, res.Invalidated)
		assert.Nil(t, res.ArtifactMask)
		assert.InDelta(t, 0, res.Moments.Vm[1], 1e-9)
	}
}
