package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	API   APIConfig   `yaml:"api"`
	State StateConfig `yaml:"state"`
	Log   LogConfig   `yaml:"log"`
}

type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type StateConfig struct {
	Path    string `yaml:"path"`
	SealKey string `yaml:"seal_key"` // hex-encoded 32-byte key; empty disables sealing
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads the config file at path, falling back to defaults for anything
// unset. An empty path skips the file entirely. Environment variables win
// over both.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		expanded := expandEnvVars(string(data))

		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "http://localhost:8000",
			Timeout: 30 * time.Second,
		},
		State: StateConfig{
			Path: defaultStatePath(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "teamtask.db"
	}
	return filepath.Join(dir, "teamtask", "state.db")
}

func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url must be set")
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be positive")
	}
	if c.State.Path == "" {
		return fmt.Errorf("state.path must be set")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error")
	}
	return nil
}

func expandEnvVars(s string) string {
	return os.ExpandEnv(s)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TEAMTASK_API_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("TEAMTASK_STATE_PATH"); v != "" {
		cfg.State.Path = v
	}
	if v := os.Getenv("TEAMTASK_SEAL_KEY"); v != "" {
		cfg.State.SealKey = v
	}
	if v := os.Getenv("TEAMTASK_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("TEAMTASK_API_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.API.Timeout = d
		}
	}
}
