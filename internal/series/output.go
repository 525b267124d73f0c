package series

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/banshee-data/cloudradar/internal/dealias"
	"github.com/banshee-data/cloudradar/internal/fsutil"
	"github.com/banshee-data/cloudradar/internal/units"
)

// Output is the result file of one processing run.
type Output struct {
	RunID    string       `json:"run_id,omitempty"`
	Version  string       `json:"version,omitempty"`
	Profiles []ResultData `json:"profiles"`
}

// MomentsData is the per-gate moments of one result. ZeDB repeats Ze in
// decibels.
type MomentsData struct {
	Ze        Values `json:"ze"`
	ZeDB      Values `json:"ze_db"`
	Vm        Values `json:"vm"`
	Sigma     Values `json:"sigma"`
	Skew      Values `json:"skew"`
	Kurt      Values `json:"kurt"`
	PeakNoise Values `json:"peak_noise"`
	MeanNoise Values `json:"mean_noise"`
}

// ResultData is one dealiased profile. Status holds the numeric status codes.
type ResultData struct {
	Time           time.Time             `json:"time"`
	Path           dealias.Path          `json:"path"`
	NoData         bool                  `json:"no_data,omitempty"`
	Layers         []dealias.LayerResult `json:"layers,omitempty"`
	Moments        *MomentsData          `json:"moments,omitempty"`
	AliasCandidate []bool                `json:"alias_candidate,omitempty"`
	Folded         []bool                `json:"folded,omitempty"`
	Status         []int                 `json:"status,omitempty"`
	Invalidated    []int                 `json:"invalidated,omitempty"`

	// Spectra and Velocity are only written on request.
	Spectra  []Values `json:"spectra,omitempty"`
	Velocity []Values `json:"velocity,omitempty"`
}

// NewResultData converts res for output. withSpectra adds the corrected
// spectra and their velocity axes.
func NewResultData(res *dealias.Result, withSpectra bool) ResultData {
	rd := ResultData{Time: res.Time, Path: res.Path, NoData: res.NoData}
	if res.NoData {
		return rd
	}
	ms := res.Moments
	rd.Layers = res.Layers
	rd.Moments = &MomentsData{
		Ze:        valuesOf(ms.Ze),
		ZeDB:      decibels(ms.Ze),
		Vm:        valuesOf(ms.Vm),
		Sigma:     valuesOf(ms.Sigma),
		Skew:      valuesOf(ms.Skew),
		Kurt:      valuesOf(ms.Kurt),
		PeakNoise: valuesOf(ms.PeakNoise),
		MeanNoise: valuesOf(ms.MeanNoise),
	}
	rd.AliasCandidate = append([]bool(nil), res.AliasCandidate...)
	rd.Folded = append([]bool(nil), res.Folded...)
	rd.Status = make([]int, len(res.Status))
	for g, s := range res.Status {
		rd.Status[g] = s.Code()
	}
	rd.Invalidated = res.Invalidated

	if withSpectra && res.Spectra != nil {
		gates, _ := res.Spectra.Dims()
		rd.Spectra = make([]Values, gates)
		rd.Velocity = make([]Values, gates)
		for g := 0; g < gates; g++ {
			rd.Spectra[g] = valuesOf(res.Spectra.RawRowView(g))
			rd.Velocity[g] = valuesOf(res.Velocity.RawRowView(g))
		}
	}
	return rd
}

func decibels(xs []float64) Values {
	if xs == nil {
		return nil
	}
	out := make(Values, len(xs))
	for i, x := range xs {
		out[i] = units.LinearToDB(x)
	}
	return out
}

// StatusAt decodes the status of gate g.
func (rd ResultData) StatusAt(g int) dealias.Status {
	return dealias.StatusFromCode(rd.Status[g])
}

// NewOutput converts a run's results for output.
func NewOutput(runID, version string, results []*dealias.Result, withSpectra bool) *Output {
	out := &Output{RunID: runID, Version: version, Profiles: make([]ResultData, len(results))}
	for i, res := range results {
		out.Profiles[i] = NewResultData(res, withSpectra)
	}
	return out
}

// EncodeOutput writes out to w.
func EncodeOutput(w io.Writer, out *Output) error {
	if err := json.NewEncoder(w).Encode(out); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}

// DecodeOutput reads an Output from r.
func DecodeOutput(r io.Reader) (*Output, error) {
	var out Output
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode output: %w", err)
	}
	return &out, nil
}

// SaveOutput writes out to path, creating its directory when needed.
func SaveOutput(fsys fsutil.FileSystem, path string, out *Output) (err error) {
	path = filepath.Clean(path)
	if dir := filepath.Dir(path); dir != "." {
		if err := fsys.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close output file: %w", cerr)
		}
	}()
	return EncodeOutput(f, out)
}
