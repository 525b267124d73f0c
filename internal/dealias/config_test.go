package dealias

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/cloudradar/internal/moments"
)

func TestDefaultConfigIsValid(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, moments.SelectAll, cfg.Moments)
	assert.Equal(t, NoiseModePeak, cfg.NoiseMode)
	assert.Equal(t, 1, cfg.MaxFoldCount)
	assert.Equal(t, 0, cfg.ArtifactModeGates)
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"no moments", func(c *Config) { c.Moments = 0 }},
		{"noise mode", func(c *Config) { c.NoiseMode = "median" }},
		{"peak factor", func(c *Config) { c.PeakFactor = 0 }},
		{"mean factor", func(c *Config) { c.MeanFactor = -1 }},
		{"min bins", func(c *Config) { c.MinConsecutiveBins = 0 }},
		{"edge margin", func(c *Config) { c.EdgeMargin = -1 }},
		{"gap distance", func(c *Config) { c.MaxGapDistance = -1 }},
		{"negligible power", func(c *Config) { c.NegligiblePower = -1 }},
		{"guess gap", func(c *Config) { c.GuessGapGates = -1 }},
		{"fold count", func(c *Config) { c.MaxFoldCount = 0 }},
		{"jump", func(c *Config) { c.JumpThreshold = 0 }},
		{"artifact gates", func(c *Config) { c.ArtifactModeGates = -1 }},
		{"spike ratio", func(c *Config) {
			c.ArtifactModeGates = 250
			c.SpikeRatio = 1
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestConfigSpikeRatioIgnoredWithCustomTemplate(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.ArtifactModeGates = 250
	cfg.SpikeRatio = 0
	cfg.Artifacts = SpikeTemplate{Offsets: []int{0}, Ratio: 3}
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, cfg.Artifacts, cfg.artifacts())
}

func TestConfigThreshold(t *testing.T) {
	t.Parallel()
	noise := moments.Noise{Peak: 3, Mean: 2}
	cfg := DefaultConfig()
	cfg.PeakFactor = 1.5
	assert.Equal(t, 4.5, cfg.threshold(noise))

	cfg.NoiseMode = NoiseModeMean
	assert.Equal(t, 4.0, cfg.threshold(noise))
}

func TestConfigDefaultCollaborators(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	assert.Equal(t, moments.Estimator{}, cfg.estimator())
	assert.Equal(t, SpikeTemplate{Offsets: []int{0}, Ratio: 10}, cfg.artifacts())
}
