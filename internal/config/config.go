// Package config loads service configuration from YAML with environment
// overrides for secrets.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds the full service configuration.
type Config struct {
	Env       string          `yaml:"env"`
	HTTP      HTTPConfig      `yaml:"http"`
	Storage   StorageConfig   `yaml:"storage"`
	Detection DetectionConfig `yaml:"detection"`
	Assistant AssistantConfig `yaml:"assistant"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// StorageConfig holds filesystem and database paths.
type StorageConfig struct {
	UploadDir    string `yaml:"upload_dir"`
	PurifiedDir  string `yaml:"purified_dir"`
	DatabasePath string `yaml:"database_path"`
}

// DetectionConfig holds tunables for the detection engine. Zero values fall
// back to detector defaults.
type DetectionConfig struct {
	SpectralComponents  int     `yaml:"spectral_components"`
	SpectralPercentile  float64 `yaml:"spectral_percentile"`
	Clusters            int     `yaml:"clusters"`
	DBSCANEps           float64 `yaml:"dbscan_eps"`
	DBSCANMinSamples    int     `yaml:"dbscan_min_samples"`
	Seed                int64   `yaml:"seed"`
	InfluenceSampleCap  int     `yaml:"influence_sample_cap"`
	InfluenceDamping    float64 `yaml:"influence_damping"`
	InfluencePercentile float64 `yaml:"influence_percentile"`
}

// AssistantConfig holds the OpenAI-compatible assistant settings. The API
// key comes from OPENAI_API_KEY when unset here.
type AssistantConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		Env: "local",
		HTTP: HTTPConfig{
			Port:            8000,
			ReadTimeoutSec:  30,
			WriteTimeoutSec: 60,
			ShutdownSec:     10,
		},
		Storage: StorageConfig{
			UploadDir:    "uploads/datasets",
			PurifiedDir:  "uploads/purified",
			DatabasePath: "blackforge.db",
		},
		Assistant: AssistantConfig{
			Model: "gpt-4o-mini",
		},
	}
}

// Load reads configuration from path, applying defaults for unset fields.
// An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	if cfg.Assistant.APIKey == "" {
		cfg.Assistant.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid http port %d", c.HTTP.Port)
	}
	if c.Storage.UploadDir == "" || c.Storage.PurifiedDir == "" {
		return fmt.Errorf("storage directories must be set")
	}
	if c.Storage.DatabasePath == "" {
		return fmt.Errorf("database path must be set")
	}
	return nil
}
