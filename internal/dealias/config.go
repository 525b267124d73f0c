package dealias

import (
	"errors"
	"fmt"

	"github.com/banshee-data/cloudradar/internal/moments"
)

var (
	// ErrInvalidConfig is wrapped by every configuration validation error.
	ErrInvalidConfig = errors.New("invalid dealias config")
	// ErrInvalidProfile is wrapped by every structural input error.
	ErrInvalidProfile = errors.New("invalid profile")
)

// NoiseMode selects which noise level significance thresholds are built on.
type NoiseMode string

const (
	NoiseModeMean NoiseMode = "mean"
	NoiseModePeak NoiseMode = "peak"
)

// MomentEstimator computes radar moments from one unaliased spectrum segment.
// moments.Estimator is the default implementation. Implementations must be
// safe for concurrent use; the two sweeps of a layer run in parallel.
type MomentEstimator interface {
	Estimate(spec, vel []float64, nAvg int, noise moments.Noise, sel moments.Selection) moments.Moments
}

// Config holds every tunable of the dealiasing chain.
type Config struct {
	// Moments selects the moments reported in the result. Vm is always
	// computed because the sweep depends on it.
	Moments moments.Selection

	// NoiseMode picks MeanNoise*MeanFactor or PeakNoise*PeakFactor as the
	// significance threshold.
	NoiseMode  NoiseMode
	PeakFactor float64
	MeanFactor float64

	// MinConsecutiveBins is the shortest run of bins above threshold that
	// counts as signal.
	MinConsecutiveBins int

	// EdgeMargin is the distance (bins) from a Nyquist edge within which a
	// spectral maximum marks the gate as a candidate for aliasing.
	EdgeMargin int

	// MaxGapDistance (same unit as the range resolution) bridges no-signal
	// gaps when building cloud layers.
	MaxGapDistance float64

	// NegligiblePower is the summed power above noise a gate must exceed to
	// count as part of a cloud layer.
	NegligiblePower float64

	// GuessGapGates is the longest run of no-signal gates a sweep carries its
	// velocity guess across.
	GuessGapGates int

	// MaxFoldCount is the largest number of whole spans a gate may be
	// shifted by; larger folds raise StatusBoundaryReached.
	MaxFoldCount int

	// JumpThreshold (m/s) against the previous profile's velocity.
	JumpThreshold float64

	// ArtifactModeGates enables the artifact filter for profiles with exactly
	// this many gates. Zero disables it.
	ArtifactModeGates int
	// ArtifactOffsets are the candidate artifact bins relative to the
	// zero-velocity bin.
	ArtifactOffsets []int
	// SpikeRatio is how much a candidate must exceed both neighbours to
	// match the spike template.
	SpikeRatio float64

	// Estimator and Artifacts override the default collaborators.
	Estimator MomentEstimator
	Artifacts ArtifactTemplate
}

// DefaultConfig returns the defaults used for 94 GHz FMCW cloud radar data.
func DefaultConfig() Config {
	return Config{
		Moments:            moments.SelectAll,
		NoiseMode:          NoiseModePeak,
		PeakFactor:         1.0,
		MeanFactor:         2.0,
		MinConsecutiveBins: 3,
		EdgeMargin:         4,
		MaxGapDistance:     150,
		NegligiblePower:    0,
		GuessGapGates:      10,
		MaxFoldCount:       1,
		JumpThreshold:      5.0,
		ArtifactModeGates:  0,
		ArtifactOffsets:    []int{0},
		SpikeRatio:         10,
	}
}

// Validate checks that the configuration values are usable.
func (c Config) Validate() error {
	if c.Moments == 0 {
		return fmt.Errorf("%w: no moments selected", ErrInvalidConfig)
	}
	switch c.NoiseMode {
	case NoiseModeMean, NoiseModePeak:
	default:
		return fmt.Errorf("%w: noise mode must be %q or %q, got %q", ErrInvalidConfig, NoiseModeMean, NoiseModePeak, c.NoiseMode)
	}
	if c.PeakFactor <= 0 || c.MeanFactor <= 0 {
		return fmt.Errorf("%w: noise factors must be positive, got peak=%f mean=%f", ErrInvalidConfig, c.PeakFactor, c.MeanFactor)
	}
	if c.MinConsecutiveBins < 1 {
		return fmt.Errorf("%w: min_consecutive_bins must be >= 1, got %d", ErrInvalidConfig, c.MinConsecutiveBins)
	}
	if c.EdgeMargin < 0 {
		return fmt.Errorf("%w: edge_margin must be non-negative, got %d", ErrInvalidConfig, c.EdgeMargin)
	}
	if c.MaxGapDistance < 0 || c.NegligiblePower < 0 {
		return fmt.Errorf("%w: max_gap_distance and negligible_power must be non-negative", ErrInvalidConfig)
	}
	if c.GuessGapGates < 0 {
		return fmt.Errorf("%w: guess_gap_gates must be non-negative, got %d", ErrInvalidConfig, c.GuessGapGates)
	}
	if c.MaxFoldCount < 1 {
		return fmt.Errorf("%w: max_fold_count must be >= 1, got %d", ErrInvalidConfig, c.MaxFoldCount)
	}
	if c.JumpThreshold <= 0 {
		return fmt.Errorf("%w: jump_threshold must be positive, got %f", ErrInvalidConfig, c.JumpThreshold)
	}
	if c.ArtifactModeGates < 0 {
		return fmt.Errorf("%w: artifact_mode_gates must be non-negative, got %d", ErrInvalidConfig, c.ArtifactModeGates)
	}
	if c.ArtifactModeGates > 0 && c.Artifacts == nil && c.SpikeRatio <= 1 {
		return fmt.Errorf("%w: spike_ratio must be > 1, got %f", ErrInvalidConfig, c.SpikeRatio)
	}
	return nil
}

func (c Config) threshold(noise moments.Noise) float64 {
	if c.NoiseMode == NoiseModeMean {
		return noise.Mean * c.MeanFactor
	}
	return noise.Peak * c.PeakFactor
}

func (c Config) estimator() MomentEstimator {
	if c.Estimator != nil {
		return c.Estimator
	}
	return moments.Estimator{}
}

func (c Config) artifacts() ArtifactTemplate {
	if c.Artifacts != nil {
		return c.Artifacts
	}
	return SpikeTemplate{Offsets: c.ArtifactOffsets, Ratio: c.SpikeRatio}
}
