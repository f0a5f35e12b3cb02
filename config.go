package cache

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/selasijean/golang-computed-cache/telemetry"
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("cache: invalid config")

// Config is the file form of the cache options.
type Config struct {
	MaxSize int `yaml:"max_size"`
	// EnableStats defaults to true when omitted.
	EnableStats *bool            `yaml:"enable_stats"`
	Telemetry   telemetry.Config `yaml:"telemetry"`
}

// LoadConfig reads a YAML config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes and validates a YAML config.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the config values.
func (c Config) Validate() error {
	if c.MaxSize < 0 {
		return fmt.Errorf("%w: max_size must not be negative, got %d", ErrInvalidConfig, c.MaxSize)
	}
	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Options converts the config into cache options. Zero values keep the defaults.
func (c Config) Options() []CacheOption {
	var opts []CacheOption
	if c.MaxSize > 0 {
		opts = append(opts, OptMaxSize(c.MaxSize))
	}
	if c.EnableStats != nil {
		opts = append(opts, OptStats(*c.EnableStats))
	}
	return opts
}
