package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full engine configuration.
type Config struct {
	Safety       SafetyConfig       `yaml:"safety"`
	Wipe         WipeConfig         `yaml:"wipe"`
	Verification VerificationConfig `yaml:"verification"`
	Certificate  CertificateConfig  `yaml:"certificate"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// SafetyConfig controls SafetyGuard policy.
type SafetyConfig struct {
	RequireConfirmation bool     `yaml:"require_confirmation"`
	AllowedDevices      []string `yaml:"allowed_devices"`
	DeniedDevices       []string `yaml:"denied_devices"`
}

// WipeConfig controls pass execution.
type WipeConfig struct {
	DefaultMethod string  `yaml:"default_method"`
	ChunkSize     int64   `yaml:"chunk_size"`
	MaxSpeedMBps  float64 `yaml:"max_speed_mbps"`
	PassTimeout   string  `yaml:"pass_timeout"`
	MaxPasses     int     `yaml:"max_passes"`
}

// VerificationConfig controls post-wipe sampling. Thresholds are
// method-dependent defaults; the verdict records the values actually used.
type VerificationConfig struct {
	SampleCount    int     `yaml:"sample_count"`
	SampleSize     int     `yaml:"sample_size"`
	RandomFraction float64 `yaml:"random_fraction"`
	EntropyPass    float64 `yaml:"entropy_pass_threshold"`
}

// CertificateConfig controls signing and persistence of certificates.
type CertificateConfig struct {
	StorePath  string `yaml:"store_path"`
	SigningKey string `yaml:"signing_key"`
	HMACSecret string `yaml:"hmac_secret"`
	Issuer     string `yaml:"issuer"`
}

// LoggingConfig controls the process logger.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	File    string `yaml:"file"`
	Console bool   `yaml:"console"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Safety: SafetyConfig{
			RequireConfirmation: true,
		},
		Wipe: WipeConfig{
			DefaultMethod: "random",
			ChunkSize:     4 * 1024 * 1024,
			MaxSpeedMBps:  0,
			PassTimeout:   "12h",
			MaxPasses:     10,
		},
		Verification: VerificationConfig{
			SampleCount:    24,
			SampleSize:     64 * 1024,
			RandomFraction: 0.25,
			EntropyPass:    7.5,
		},
		Certificate: CertificateConfig{
			StorePath: "./certificates/certificates.db",
			Issuer:    "SIH Disk Wipeout",
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
		},
	}
}

// Load reads configuration from path, falling back to defaults when the
// path is empty or the file does not exist.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks configuration invariants.
func Validate(cfg *Config) error {
	if cfg.Wipe.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", cfg.Wipe.ChunkSize)
	}
	if cfg.Wipe.ChunkSize > 100*1024*1024 {
		return fmt.Errorf("chunk size too large (max 100MB), got %d", cfg.Wipe.ChunkSize)
	}
	if cfg.Wipe.MaxSpeedMBps < 0 {
		return fmt.Errorf("max speed cannot be negative, got %f", cfg.Wipe.MaxSpeedMBps)
	}
	if cfg.Wipe.MaxPasses <= 0 || cfg.Wipe.MaxPasses > 35 {
		return fmt.Errorf("max passes must be between 1 and 35, got %d", cfg.Wipe.MaxPasses)
	}
	if cfg.Wipe.PassTimeout != "" {
		if _, err := time.ParseDuration(cfg.Wipe.PassTimeout); err != nil {
			return fmt.Errorf("invalid pass timeout format: %s", cfg.Wipe.PassTimeout)
		}
	}

	if cfg.Verification.SampleCount < 3 || cfg.Verification.SampleCount > 10000 {
		return fmt.Errorf("sample count must be between 3 and 10000, got %d", cfg.Verification.SampleCount)
	}
	if cfg.Verification.SampleSize < 512 || cfg.Verification.SampleSize > 16*1024*1024 {
		return fmt.Errorf("sample size must be between 512 bytes and 16MB, got %d", cfg.Verification.SampleSize)
	}
	if cfg.Verification.RandomFraction < 0 || cfg.Verification.RandomFraction > 1 {
		return fmt.Errorf("random fraction must be between 0 and 1, got %f", cfg.Verification.RandomFraction)
	}
	if cfg.Verification.EntropyPass < 0 || cfg.Verification.EntropyPass > 8 {
		return fmt.Errorf("entropy threshold must be between 0 and 8 bits/byte, got %f", cfg.Verification.EntropyPass)
	}

	if cfg.Certificate.StorePath == "" {
		return fmt.Errorf("certificate store path must not be empty")
	}

	switch cfg.Logging.Level {
	case "", "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", cfg.Logging.Level)
	}

	return nil
}

// Save writes the configuration to path, validating it first.
func Save(cfg *Config, path string) error {
	if err := Validate(cfg); err != nil {
		return fmt.Errorf("cannot save invalid config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// PassTimeout returns the parsed pass timeout, defaulting to 12 hours.
func (c *Config) PassTimeout() time.Duration {
	if c.Wipe.PassTimeout == "" {
		return 12 * time.Hour
	}
	d, err := time.ParseDuration(c.Wipe.PassTimeout)
	if err != nil {
		return 12 * time.Hour
	}
	return d
}
