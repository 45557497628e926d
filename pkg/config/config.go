// Package config handles configuration for iossim.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileName is the per-project config file looked up in the working directory.
const FileName = ".iossim.yaml"

// Config represents the iossim configuration (.iossim.yaml).
type Config struct {
	// Target simulator used when --udid and IOSSIM_UDID are both unset
	UDID string `yaml:"udid"`

	// Tool overrides
	IDB   string `yaml:"idb"`   // Path to the idb client
	Xcrun string `yaml:"xcrun"` // Path to xcrun

	Build  BuildConfig  `yaml:"build"`
	Scroll ScrollConfig `yaml:"scroll"`
}

// BuildConfig holds defaults for the build command.
type BuildConfig struct {
	Scheme          string `yaml:"scheme"`
	Configuration   string `yaml:"configuration"`
	DerivedData     string `yaml:"derivedData"`
	DestinationName string `yaml:"destinationName"`
}

// ScrollConfig holds defaults for the scroll command.
type ScrollConfig struct {
	Distance float64 `yaml:"distance"` // points
	Speed    float64 `yaml:"speed"`    // swipe duration in seconds
}

// Built-in defaults.
const (
	DefaultConfiguration   = "Debug"
	DefaultDerivedData     = "/tmp/ios_sim_derived"
	DefaultDestinationName = "iPhone 16 Pro"
	DefaultScrollDistance  = 300
	DefaultScrollSpeed     = 0.4
)

// Default returns a config populated with built-in defaults.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Build.Configuration == "" {
		c.Build.Configuration = DefaultConfiguration
	}
	if c.Build.DerivedData == "" {
		c.Build.DerivedData = DefaultDerivedData
	}
	if c.Build.DestinationName == "" {
		c.Build.DestinationName = DefaultDestinationName
	}
	if c.Scroll.Distance <= 0 {
		c.Scroll.Distance = DefaultScrollDistance
	}
	if c.Scroll.Speed <= 0 {
		c.Scroll.Speed = DefaultScrollSpeed
	}
}

// Binaries returns tool path overrides keyed by tool name.
func (c *Config) Binaries() map[string]string {
	return map[string]string{
		"idb":   c.IDB,
		"xcrun": c.Xcrun,
	}
}

// Load loads configuration from a file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.applyDefaults()

	return &cfg, nil
}

// Resolve finds the config to use. An explicit path must exist; otherwise
// .iossim.yaml in dir is tried, then <home>/config.yaml, then defaults.
func Resolve(explicit, dir string) (*Config, error) {
	if explicit != "" {
		return Load(explicit)
	}

	for _, candidate := range []string{
		filepath.Join(dir, FileName),
		filepath.Join(GetHome(), "config.yaml"),
	} {
		cfg, err := Load(candidate)
		if err == nil {
			return cfg, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return Default(), nil
}

// LoadDotEnv loads KEY=VALUE pairs from .env in dir into the process
// environment. Variables already set are left alone; a missing file is not an error.
func LoadDotEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	return godotenv.Load(path)
}
