package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Validate(Default()))
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
wipe:
  default_method: zero
  max_speed_mbps: 50
verification:
  entropy_pass_threshold: 7.8
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "zero", cfg.Wipe.DefaultMethod)
	assert.Equal(t, 50.0, cfg.Wipe.MaxSpeedMBps)
	assert.Equal(t, 7.8, cfg.Verification.EntropyPass)
	// Untouched sections keep their defaults.
	assert.Equal(t, Default().Verification.SampleCount, cfg.Verification.SampleCount)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero chunk size", func(c *Config) { c.Wipe.ChunkSize = 0 }},
		{"oversized chunk", func(c *Config) { c.Wipe.ChunkSize = 200 * 1024 * 1024 }},
		{"negative speed", func(c *Config) { c.Wipe.MaxSpeedMBps = -1 }},
		{"too many passes", func(c *Config) { c.Wipe.MaxPasses = 99 }},
		{"bad timeout", func(c *Config) { c.Wipe.PassTimeout = "soon" }},
		{"too few samples", func(c *Config) { c.Verification.SampleCount = 1 }},
		{"tiny sample size", func(c *Config) { c.Verification.SampleSize = 64 }},
		{"fraction out of range", func(c *Config) { c.Verification.RandomFraction = 1.5 }},
		{"entropy out of range", func(c *Config) { c.Verification.EntropyPass = 9 }},
		{"empty store path", func(c *Config) { c.Certificate.StorePath = "" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, Validate(cfg))
		})
	}
}

func TestSaveRefusesInvalidConfig(t *testing.T) {
	cfg := Default()
	cfg.Wipe.ChunkSize = -1
	assert.Error(t, Save(cfg, filepath.Join(t.TempDir(), "config.yaml")))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Wipe.DefaultMethod = "dod5220"

	require.NoError(t, Save(cfg, path))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestPassTimeoutDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 12*time.Hour, cfg.PassTimeout())

	cfg.Wipe.PassTimeout = "90m"
	assert.Equal(t, 90*time.Minute, cfg.PassTimeout())
}
