package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/cloudradar/internal/dealias"
	"github.com/banshee-data/cloudradar/internal/moments"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/dealias.defaults.json"

// DealiasTuning represents the tuning file of the dealiasing chain. Fields
// left out of the file fall back to dealias.DefaultConfig through the Get*
// accessors, so partial files are safe.
type DealiasTuning struct {
	// Moments names the moments to report, e.g. ["Ze", "VEL", "sw"].
	Moments *[]string `json:"moments,omitempty" yaml:"moments,omitempty"`

	// Noise and alias detection
	NoiseMode          *string  `json:"noise_mode,omitempty" yaml:"noise_mode,omitempty"` // "mean" or "peak"
	PeakFactor         *float64 `json:"peak_factor,omitempty" yaml:"peak_factor,omitempty"`
	MeanFactor         *float64 `json:"mean_factor,omitempty" yaml:"mean_factor,omitempty"`
	MinConsecutiveBins *int     `json:"min_consecutive_bins,omitempty" yaml:"min_consecutive_bins,omitempty"`
	EdgeMargin         *int     `json:"edge_margin,omitempty" yaml:"edge_margin,omitempty"`

	// Layers
	MaxGapDistance  *float64 `json:"max_gap_distance,omitempty" yaml:"max_gap_distance,omitempty"`
	NegligiblePower *float64 `json:"negligible_power,omitempty" yaml:"negligible_power,omitempty"`

	// Unwrap sweep
	GuessGapGates *int     `json:"guess_gap_gates,omitempty" yaml:"guess_gap_gates,omitempty"`
	MaxFoldCount  *int     `json:"max_fold_count,omitempty" yaml:"max_fold_count,omitempty"`
	JumpThreshold *float64 `json:"jump_threshold,omitempty" yaml:"jump_threshold,omitempty"`

	// Artifact filter (disabled unless artifact_mode_gates is set)
	ArtifactModeGates *int     `json:"artifact_mode_gates,omitempty" yaml:"artifact_mode_gates,omitempty"`
	ArtifactOffsets   *[]int   `json:"artifact_offsets,omitempty" yaml:"artifact_offsets,omitempty"`
	SpikeRatio        *float64 `json:"spike_ratio,omitempty" yaml:"spike_ratio,omitempty"`

	// Series processing
	Workers       *int  `json:"workers,omitempty" yaml:"workers,omitempty"`
	ChainPrevious *bool `json:"chain_previous,omitempty" yaml:"chain_previous,omitempty"`
}

var defaults = dealias.DefaultConfig()

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyDealiasTuning returns a DealiasTuning with all fields set to nil.
func EmptyDealiasTuning() *DealiasTuning {
	return &DealiasTuning{}
}

// DefaultDealiasTuning returns a DealiasTuning with every field set to its default.
func DefaultDealiasTuning() *DealiasTuning {
	names := defaultMomentNames()
	offsets := append([]int(nil), defaults.ArtifactOffsets...)
	return &DealiasTuning{
		Moments:            &names,
		NoiseMode:          ptrString(string(defaults.NoiseMode)),
		PeakFactor:         ptrFloat64(defaults.PeakFactor),
		MeanFactor:         ptrFloat64(defaults.MeanFactor),
		MinConsecutiveBins: ptrInt(defaults.MinConsecutiveBins),
		EdgeMargin:         ptrInt(defaults.EdgeMargin),
		MaxGapDistance:     ptrFloat64(defaults.MaxGapDistance),
		NegligiblePower:    ptrFloat64(defaults.NegligiblePower),
		GuessGapGates:      ptrInt(defaults.GuessGapGates),
		MaxFoldCount:       ptrInt(defaults.MaxFoldCount),
		JumpThreshold:      ptrFloat64(defaults.JumpThreshold),
		ArtifactModeGates:  ptrInt(defaults.ArtifactModeGates),
		ArtifactOffsets:    &offsets,
		SpikeRatio:         ptrFloat64(defaults.SpikeRatio),
		Workers:            ptrInt(0),
		ChainPrevious:      ptrBool(false),
	}
}

func defaultMomentNames() []string {
	return []string{"Ze", "VEL", "sw", "skew", "kurt"}
}

// LoadDealiasTuning loads a DealiasTuning from a JSON or YAML file.
// The file must have a .json, .yaml or .yml extension and be under 1MB.
func LoadDealiasTuning(path string) (*DealiasTuning, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	switch ext {
	case ".json", ".yaml", ".yml":
	default:
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyDealiasTuning()
	if ext == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches the current directory and its parents up to the repository root.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *DealiasTuning {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,    // from cmd/dealias/
		"../../" + DefaultConfigPath, // from internal/config/
	}
	for _, path := range candidates {
		if cfg, err := LoadDealiasTuning(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *DealiasTuning) Validate() error {
	if c.Moments != nil {
		if len(*c.Moments) == 0 {
			return fmt.Errorf("moments must name at least one moment")
		}
		if _, ok := moments.ParseSelection(*c.Moments); !ok {
			return fmt.Errorf("moments contains an unknown name: %v", *c.Moments)
		}
	}
	if c.NoiseMode != nil {
		switch dealias.NoiseMode(*c.NoiseMode) {
		case dealias.NoiseModeMean, dealias.NoiseModePeak:
		default:
			return fmt.Errorf("noise_mode must be %q or %q, got %q", dealias.NoiseModeMean, dealias.NoiseModePeak, *c.NoiseMode)
		}
	}
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}

	if err := c.ToDealiasConfig().Validate(); err != nil {
		return err
	}
	return nil
}

// ToDealiasConfig builds the dealias.Config described by c. Call Validate
// first; unknown moment names are ignored here.
func (c *DealiasTuning) ToDealiasConfig() dealias.Config {
	return dealias.Config{
		Moments:            c.GetMoments(),
		NoiseMode:          c.GetNoiseMode(),
		PeakFactor:         c.GetPeakFactor(),
		MeanFactor:         c.GetMeanFactor(),
		MinConsecutiveBins: c.GetMinConsecutiveBins(),
		EdgeMargin:         c.GetEdgeMargin(),
		MaxGapDistance:     c.GetMaxGapDistance(),
		NegligiblePower:    c.GetNegligiblePower(),
		GuessGapGates:      c.GetGuessGapGates(),
		MaxFoldCount:       c.GetMaxFoldCount(),
		JumpThreshold:      c.GetJumpThreshold(),
		ArtifactModeGates:  c.GetArtifactModeGates(),
		ArtifactOffsets:    c.GetArtifactOffsets(),
		SpikeRatio:         c.GetSpikeRatio(),
	}
}

// GetMoments returns the selected moments or the default (all of them).
func (c *DealiasTuning) GetMoments() moments.Selection {
	if c.Moments == nil {
		return defaults.Moments
	}
	sel, _ := moments.ParseSelection(*c.Moments)
	return sel
}

// GetNoiseMode returns the noise_mode value or the default.
func (c *DealiasTuning) GetNoiseMode() dealias.NoiseMode {
	if c.NoiseMode == nil {
		return defaults.NoiseMode
	}
	return dealias.NoiseMode(*c.NoiseMode)
}

// GetPeakFactor returns the peak_factor value or the default.
func (c *DealiasTuning) GetPeakFactor() float64 {
	if c.PeakFactor == nil {
		return defaults.PeakFactor
	}
	return *c.PeakFactor
}

// GetMeanFactor returns the mean_factor value or the default.
func (c *DealiasTuning) GetMeanFactor() float64 {
	if c.MeanFactor == nil {
		return defaults.MeanFactor
	}
	return *c.MeanFactor
}

// GetMinConsecutiveBins returns the min_consecutive_bins value or the default.
func (c *DealiasTuning) GetMinConsecutiveBins() int {
	if c.MinConsecutiveBins == nil {
		return defaults.MinConsecutiveBins
	}
	return *c.MinConsecutiveBins
}

// GetEdgeMargin returns the edge_margin value or the default.
func (c *DealiasTuning) GetEdgeMargin() int {
	if c.EdgeMargin == nil {
		return defaults.EdgeMargin
	}
	return *c.EdgeMargin
}

// GetMaxGapDistance returns the max_gap_distance value or the default.
func (c *DealiasTuning) GetMaxGapDistance() float64 {
	if c.MaxGapDistance == nil {
		return defaults.MaxGapDistance
	}
	return *c.MaxGapDistance
}

// GetNegligiblePower returns the negligible_power value or the default.
func (c *DealiasTuning) GetNegligiblePower() float64 {
	if c.NegligiblePower == nil {
		return defaults.NegligiblePower
	}
	return *c.NegligiblePower
}

// GetGuessGapGates returns the guess_gap_gates value or the default.
func (c *DealiasTuning) GetGuessGapGates() int {
	if c.GuessGapGates == nil {
		return defaults.GuessGapGates
	}
	return *c.GuessGapGates
}

// GetMaxFoldCount returns the max_fold_count value or the default.
func (c *DealiasTuning) GetMaxFoldCount() int {
	if c.MaxFoldCount == nil {
		return defaults.MaxFoldCount
	}
	return *c.MaxFoldCount
}

// GetJumpThreshold returns the jump_threshold value or the default.
func (c *DealiasTuning) GetJumpThreshold() float64 {
	if c.JumpThreshold == nil {
		return defaults.JumpThreshold
	}
	return *c.JumpThreshold
}

// GetArtifactModeGates returns the artifact_mode_gates value or the default (disabled).
func (c *DealiasTuning) GetArtifactModeGates() int {
	if c.ArtifactModeGates == nil {
		return defaults.ArtifactModeGates
	}
	return *c.ArtifactModeGates
}

// GetArtifactOffsets returns a copy of the artifact_offsets value or the default.
func (c *DealiasTuning) GetArtifactOffsets() []int {
	if c.ArtifactOffsets == nil {
		return append([]int(nil), defaults.ArtifactOffsets...)
	}
	return append([]int(nil), (*c.ArtifactOffsets)...)
}

// GetSpikeRatio returns the spike_ratio value or the default.
func (c *DealiasTuning) GetSpikeRatio() float64 {
	if c.SpikeRatio == nil {
		return defaults.SpikeRatio
	}
	return *c.SpikeRatio
}

// GetWorkers returns the workers value or 0 (one per CPU).
func (c *DealiasTuning) GetWorkers() int {
	if c.Workers == nil {
		return 0
	}
	return *c.Workers
}

// GetChainPrevious returns the chain_previous value or the default.
func (c *DealiasTuning) GetChainPrevious() bool {
	if c.ChainPrevious == nil {
		return false
	}
	return *c.ChainPrevious
}

// SeriesOptions returns the series processing options of c.
func (c *DealiasTuning) SeriesOptions() dealias.SeriesOptions {
	return dealias.SeriesOptions{Workers: c.GetWorkers(), ChainPrevious: c.GetChainPrevious()}
}
