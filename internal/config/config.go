// Package config loads stepviz settings from YAML, environment and defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the full stepviz configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Backend BackendConfig `yaml:"backend"`
	Python  PythonConfig  `yaml:"python"`
	Trace   TraceConfig   `yaml:"trace"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig configures web mode.
type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required"`
}

// BackendConfig selects and configures the C++ execution backend.
type BackendConfig struct {
	// Kind is "piston" (remote API) or "local" (g++ on this machine).
	Kind string `yaml:"kind" validate:"oneof=piston local"`

	PistonURL  string `yaml:"piston_url" validate:"omitempty,url"`
	CppVersion string `yaml:"cpp_version"`

	// RequestsPerSecond paces calls to the remote API. Zero disables pacing.
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"gte=0"`

	// Timeout bounds one HTTP round trip. Zero means no client timeout.
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`

	Compiler      string   `yaml:"compiler" validate:"required_if=Kind local"`
	CompilerFlags []string `yaml:"compiler_flags"`
}

// PythonConfig configures the embedded interpreter session.
type PythonConfig struct {
	Binary string `yaml:"binary" validate:"required"`
}

// TraceConfig bounds trace synthesis.
type TraceConfig struct {
	StepLimit int `yaml:"step_limit" validate:"gte=1,lte=100000"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `yaml:"json"`
	File  string `yaml:"file"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{Addr: ":8080"},
		Backend: BackendConfig{
			Kind:              "piston",
			PistonURL:         "https://emkc.org/api/v2/piston",
			CppVersion:        "10.2.0",
			RequestsPerSecond: 4,
			Timeout:           30 * time.Second,
			Compiler:          "g++",
			CompilerFlags:     []string{"-std=c++17", "-O0"},
		},
		Python: PythonConfig{Binary: "python3"},
		Trace:  TraceConfig{StepLimit: 1000},
		Log:    LogConfig{Level: "info"},
	}
}

// DefaultPath is where Load looks when no path is given.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".stepviz", "config.yaml")
}

// Load reads path (or DefaultPath when path is empty and the file exists),
// applies STEPVIZ_* environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		case explicit || !errors.Is(err, os.ErrNotExist):
			return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Backend.Kind == "piston" && c.Backend.PistonURL == "" {
		return errors.New("invalid config: backend.piston_url is required for the piston backend")
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("STEPVIZ_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("STEPVIZ_BACKEND"); v != "" {
		cfg.Backend.Kind = v
	}
	if v := os.Getenv("STEPVIZ_PISTON_URL"); v != "" {
		cfg.Backend.PistonURL = v
	}
	if v := os.Getenv("STEPVIZ_PYTHON"); v != "" {
		cfg.Python.Binary = v
	}
	if v := os.Getenv("STEPVIZ_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("STEPVIZ_STEP_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("STEPVIZ_STEP_LIMIT: %w", err)
		}
		cfg.Trace.StepLimit = n
	}
	return nil
}
