// Package series reads and writes time series of radar spectra and their
// dealiased results as JSON documents.
//
// NaN, used throughout the processing for missing bins and gates, is written
// as null. Input spectra may be shorter than the widest velocity axis; they
// are padded with NaN when converted to profiles.
package series

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/cloudradar/internal/dealias"
	"github.com/banshee-data/cloudradar/internal/fsutil"
	"github.com/banshee-data/cloudradar/internal/units"
)

// ErrInvalidDocument is wrapped by every structural document error.
var ErrInvalidDocument = errors.New("invalid series document")

// Document is the input file: the chirp geometry shared by every profile and
// the profiles themselves.
type Document struct {
	Velocity        []Values      `json:"velocity"`
	RangeOffsets    []int         `json:"range_offsets,omitempty"`
	AveragingCounts []int         `json:"averaging_counts"`
	RangeResolution float64       `json:"range_resolution"`
	SpectraUnits    string        `json:"spectra_units,omitempty"`
	ProfileData     []ProfileData `json:"profiles"`
}

// ProfileData is one time column of a Document.
type ProfileData struct {
	Time       time.Time `json:"time"`
	Spectra    []Values  `json:"spectra"`
	PreviousVm Values    `json:"previous_vm,omitempty"`
}

// Decode reads a Document from r.
func Decode(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode series document: %w", err)
	}
	return &doc, nil
}

// Encode writes doc to w.
func Encode(w io.Writer, doc *Document) error {
	if err := json.NewEncoder(w).Encode(doc); err != nil {
		return fmt.Errorf("failed to encode series document: %w", err)
	}
	return nil
}

// Load reads the Document stored at path.
func Load(fsys fsutil.FileSystem, path string) (*Document, error) {
	f, err := fsys.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open series file: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Profiles converts the document into dealias profiles. Spectra rows are
// padded with NaN to the widest axis or row of the document.
func (d *Document) Profiles() ([]dealias.Profile, error) {
	if len(d.Velocity) == 0 {
		return nil, fmt.Errorf("%w: no velocity axis", ErrInvalidDocument)
	}
	if d.SpectraUnits != "" && !units.IsValid(d.SpectraUnits) {
		return nil, fmt.Errorf("%w: invalid spectra_units %q, must be one of: %s", ErrInvalidDocument, d.SpectraUnits, units.GetValidUnitsString())
	}
	bins := 0
	for _, v := range d.Velocity {
		bins = max(bins, len(v))
	}
	for _, p := range d.ProfileData {
		for _, row := range p.Spectra {
			bins = max(bins, len(row))
		}
	}

	if bins == 0 {
		return nil, fmt.Errorf("%w: empty velocity axes and spectra", ErrInvalidDocument)
	}

	velocity := make([][]float64, len(d.Velocity))
	for i, v := range d.Velocity {
		velocity[i] = v
	}

	profiles := make([]dealias.Profile, len(d.ProfileData))
	for i, p := range d.ProfileData {
		if len(p.Spectra) == 0 {
			return nil, fmt.Errorf("%w: profile %d has no gates", ErrInvalidDocument, i)
		}
		spectra := mat.NewDense(len(p.Spectra), bins, nil)
		for g, row := range p.Spectra {
			dst := spectra.RawRowView(g)
			n := copy(dst, row)
			for b := n; b < bins; b++ {
				dst[b] = nan
			}
		}
		profiles[i] = dealias.Profile{
			Time:            p.Time,
			Spectra:         spectra,
			SpectraUnits:    d.SpectraUnits,
			Velocity:        velocity,
			RangeOffsets:    d.RangeOffsets,
			AveragingCounts: d.AveragingCounts,
			RangeResolution: d.RangeResolution,
			PreviousVm:      p.PreviousVm,
		}
	}
	return profiles, nil
}

// FromProfiles builds a Document from profiles. The chirp geometry is taken
// from the first profile.
func FromProfiles(profiles []dealias.Profile) (*Document, error) {
	if len(profiles) == 0 {
		return nil, fmt.Errorf("%w: no profiles", ErrInvalidDocument)
	}
	first := profiles[0]
	doc := &Document{
		RangeOffsets:    first.RangeOffsets,
		AveragingCounts: first.AveragingCounts,
		RangeResolution: first.RangeResolution,
		SpectraUnits:    first.SpectraUnits,
		ProfileData:     make([]ProfileData, len(profiles)),
	}
	for _, v := range first.Velocity {
		doc.Velocity = append(doc.Velocity, valuesOf(v))
	}
	for i, p := range profiles {
		if p.Spectra == nil {
			return nil, fmt.Errorf("%w: profile %d has no spectra", ErrInvalidDocument, i)
		}
		gates, _ := p.Spectra.Dims()
		pd := ProfileData{Time: p.Time, Spectra: make([]Values, gates)}
		for g := range pd.Spectra {
			pd.Spectra[g] = valuesOf(p.Spectra.RawRowView(g))
		}
		if p.PreviousVm != nil {
			pd.PreviousVm = valuesOf(p.PreviousVm)
		}
		doc.ProfileData[i] = pd
	}
	return doc, nil
}
