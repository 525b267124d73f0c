package db

import (
	"context"
	"encoding/json"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/cloudradar/internal/dealias"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

var resultTime = time.Date(2021, 6, 14, 12, 0, 0, 0, time.UTC)

// sampleResult is a three-gate result: an empty gate, a folded gate and a
// gate flagged near Nyquist whose detector flag was kept without a fold.
func sampleResult() *dealias.Result {
	nan := math.NaN()
	return &dealias.Result{
		Time: resultTime,
		Path: dealias.PathDealiased,
		Moments: dealias.MomentsSet{
			Ze:        []float64{nan, 2.5e-3, 1e-3},
			Vm:        []float64{nan, 4.6, -3.9},
			Sigma:     []float64{nan, 0.2, 0.1},
			Skew:      []float64{nan, nan, nan},
			Kurt:      []float64{nan, nan, nan},
			PeakNoise: []float64{1e-3, 1e-3, 1.1e-3},
			MeanNoise: []float64{9e-4, 9e-4, 1e-3},
		},
		AliasCandidate: []bool{false, true, true},
		Folded:         []bool{false, true, false},
		Status:         []dealias.Status{0, 0, dealias.StatusNearNyquist.With(dealias.StatusNoInitialGuess)},
		Layers:         []dealias.LayerResult{{Layer: dealias.Layer{Base: 1, Top: 2}, Seed: 2}},
		Invalidated:    []int{0},
	}
}

func TestRunLifecycle(t *testing.T) {
	db := newTestDB(t)

	run := &Run{Version: "v0.1.0", Input: "series.json", ConfigJSON: json.RawMessage(`{"noise_mode":"peak"}`)}
	require.NoError(t, db.CreateRun(run))
	assert.NotEmpty(t, run.RunID)
	assert.NotZero(t, run.StartedAtNs)

	got, err := db.GetRun(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, "v0.1.0", got.Version)
	assert.Equal(t, "series.json", got.Input)
	assert.JSONEq(t, `{"noise_mode":"peak"}`, string(got.ConfigJSON))
	assert.Nil(t, got.FinishedAtNs)

	finished := time.Unix(0, run.StartedAtNs).Add(time.Second)
	require.NoError(t, db.FinishRun(run.RunID, 12, finished))
	got, err = db.GetRun(run.RunID)
	require.NoError(t, err)
	require.NotNil(t, got.FinishedAtNs)
	assert.Equal(t, finished.UnixNano(), *got.FinishedAtNs)
	assert.Equal(t, 12, got.ProfileCount)
}

func TestRunNotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetRun("missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, db.FinishRun("missing", 1, time.Now()), ErrRunNotFound)
}

func TestListRunsNewestFirst(t *testing.T) {
	db := newTestDB(t)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, db.CreateRun(&Run{RunID: id, StartedAtNs: int64(i+1) * 1000}))
	}
	runs, err := db.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "c", runs[0].RunID)
	assert.Equal(t, "a", runs[2].RunID)

	runs, err = db.ListRuns(2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestRecordResultRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	run := &Run{}
	require.NoError(t, db.CreateRun(run))

	res := sampleResult()
	require.NoError(t, db.RecordResult(ctx, run.RunID, 0, res))
	require.NoError(t, db.RecordResult(ctx, run.RunID, 1,
		&dealias.Result{Time: resultTime.Add(time.Minute), Path: dealias.PathNoData, NoData: true}))

	summaries, err := db.ProfileSummaries(run.RunID)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	s := summaries[0]
	assert.True(t, resultTime.Equal(s.Time))
	assert.Equal(t, dealias.PathDealiased, s.Path)
	assert.False(t, s.NoData)
	assert.Equal(t, 3, s.Gates)
	assert.Equal(t, res.Layers, s.Layers)
	assert.Equal(t, 1, s.FoldedGates)
	assert.Equal(t, 1, s.FlaggedGates)
	assert.Equal(t, 1, s.InvalidatedGates)

	empty := summaries[1]
	assert.True(t, empty.NoData)
	assert.Equal(t, dealias.PathNoData, empty.Path)
	assert.Empty(t, empty.Layers)

	gates, err := db.GateResults(run.RunID, 0)
	require.NoError(t, err)
	require.Len(t, gates, 3)
	assert.True(t, math.IsNaN(gates[0].Vm))
	assert.Equal(t, 1e-3, gates[0].PeakNoise)
	assert.Equal(t, 4.6, gates[1].Vm)
	assert.True(t, gates[1].AliasCandidate)
	assert.True(t, gates[1].Folded)
	assert.True(t, math.IsNaN(gates[1].Skew))
	assert.Equal(t, -3.9, gates[2].Vm)
	assert.True(t, gates[2].AliasCandidate)
	assert.False(t, gates[2].Folded)
	assert.True(t, gates[2].Status.Has(dealias.StatusNearNyquist))
	assert.True(t, gates[2].Status.Has(dealias.StatusNoInitialGuess))

	gates, err = db.GateResults(run.RunID, 1)
	require.NoError(t, err)
	assert.Empty(t, gates)
}

func TestRecordResultReplaces(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	run := &Run{}
	require.NoError(t, db.CreateRun(run))

	res := sampleResult()
	require.NoError(t, db.RecordResult(ctx, run.RunID, 0, res))
	res.Status[2] = 0
	require.NoError(t, db.RecordResult(ctx, run.RunID, 0, res))

	summaries, err := db.ProfileSummaries(run.RunID)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 0, summaries[0].FlaggedGates)

	gates, err := db.GateResults(run.RunID, 0)
	require.NoError(t, err)
	assert.Len(t, gates, 3)
}

func TestRecordResultRequiresRun(t *testing.T) {
	db := newTestDB(t)
	err := db.RecordResult(context.Background(), "unknown", 0, sampleResult())
	assert.Error(t, err)
}

func TestStatusCounts(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	run := &Run{}
	require.NoError(t, db.CreateRun(run))
	require.NoError(t, db.RecordResult(ctx, run.RunID, 0, sampleResult()))
	require.NoError(t, db.RecordResult(ctx, run.RunID, 1, sampleResult()))

	counts, err := db.StatusCounts(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{
		StatusOK:           4,
		"near_nyquist":     2,
		"no_initial_guess": 2,
	}, counts)
}
