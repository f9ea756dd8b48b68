// Package config loads the runtime settings for a cfgtrace session: the
// shared-memory window capacity, the external dot renderer binary, the
// output directory for rendered graphs, and the log level.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for a cfgtrace host process.
type Config struct {
	// WindowCapacity is the byte size W of the shared-memory CFG window.
	WindowCapacity uint64 `yaml:"window_capacity" env:"CFGTRACE_WINDOW_CAPACITY"`

	// RendererPath is the path to the Graphviz dot binary used to turn
	// rendered documents into images.
	RendererPath string `yaml:"renderer_path" env:"CFGTRACE_RENDERER_PATH"`

	// OutputDir is where rendered .dot and image files are written.
	OutputDir string `yaml:"output_dir" env:"CFGTRACE_OUTPUT_DIR"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" env:"CFGTRACE_LOG_LEVEL"`

	// JSONLog switches the logger to newline-delimited JSON output.
	JSONLog bool `yaml:"json_log" env:"CFGTRACE_JSON_LOG"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		WindowCapacity: 4 << 20, // 4 MiB
		RendererPath:   "dot",
		OutputDir:      ".",
		LogLevel:       "info",
		JSONLog:        false,
	}
}

// Load reads configuration from a YAML file at path, falling back to
// defaults for any field the file omits, then applying environment
// overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(cfg)
			return cfg, cfg.Validate()
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CFGTRACE_WINDOW_CAPACITY"); v != "" {
		var n uint64
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil && n > 0 {
			cfg.WindowCapacity = n
		}
	}
	if v := os.Getenv("CFGTRACE_RENDERER_PATH"); v != "" {
		cfg.RendererPath = v
	}
	if v := os.Getenv("CFGTRACE_OUTPUT_DIR"); v != "" {
		cfg.OutputDir = v
	}
	if v := os.Getenv("CFGTRACE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("CFGTRACE_JSON_LOG"); v != "" {
		cfg.JSONLog = v == "true" || v == "1"
	}
}

// Validate checks that the configuration has valid required fields.
func (c *Config) Validate() error {
	if c.WindowCapacity == 0 {
		return fmt.Errorf("config: window_capacity must be positive")
	}
	if c.RendererPath == "" {
		return fmt.Errorf("config: renderer_path must not be empty")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("config: output_dir must not be empty")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: invalid log_level %q", c.LogLevel)
	}
	return nil
}
