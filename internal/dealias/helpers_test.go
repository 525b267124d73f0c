package dealias

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/cloudradar/internal/moments"
	"github.com/banshee-data/cloudradar/internal/testutil"
)

const (
	testVn    = 4.0
	testBins  = 128
	testSigma = 0.1
	testFloor = 1e-3
	testNAvg  = 20
	testDr    = 30.0
	// testSpan is the unambiguous interval of the test axis, 2*testVn.
	testSpan = 8.0
)

var testTime = time.Date(2021, 6, 14, 12, 0, 0, 0, time.UTC)

// rowsFor synthesises one spectrum per true velocity; NaN gives a noise-only gate.
func rowsFor(axis []float64, truth []float64) [][]float64 {
	rows := make([][]float64, len(truth))
	for g, v := range truth {
		if math.IsNaN(v) {
			rows[g] = testutil.Flat(len(axis), testFloor)
			continue
		}
		rows[g] = testutil.GaussianSpectrum(axis, v, testSigma, 1.0, testFloor)
	}
	return rows
}

// denseFrom stacks rows into a [gates x bins] matrix, padding short rows with NaN.
func denseFrom(rows [][]float64, bins int) *mat.Dense {
	m := mat.NewDense(len(rows), bins, nil)
	for g, row := range rows {
		setRow(m, g, row)
	}
	return m
}

// singleChirpProfile builds a one-sequence profile with the planted truth.
func singleChirpProfile(truth []float64) Profile {
	return profileFromRows(rowsFor(testutil.FFTAxis(testVn, testBins), truth))
}

// profileFromRows wraps spectra recorded on the single test axis.
func profileFromRows(rows [][]float64) Profile {
	axis := testutil.FFTAxis(testVn, testBins)
	return Profile{
		Time:            testTime,
		Spectra:         denseFrom(rows, testBins),
		Velocity:        [][]float64{axis},
		AveragingCounts: []int{testNAvg},
		RangeResolution: testDr,
	}
}

// ramp returns start + step*g for g in [0, n).
func ramp(start, step float64, n int) []float64 {
	out := make([]float64, n)
	for g := range out {
		out[g] = start + step*float64(g)
	}
	return out
}

func concat(parts ...[]float64) []float64 {
	var out []float64
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func rawVm(spec, vel []float64) float64 {
	return moments.Estimator{}.Estimate(spec, vel, testNAvg, moments.NoNoise(), moments.SelectVm).Vm
}

func mustDealias(t *testing.T, p Profile, cfg Config) *Result {
	t.Helper()
	res, err := Dealias(p, cfg)
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}
