// Package config handles inkyd configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/inkyd/config.yaml, /config/config.yaml,
// /etc/inkyd/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "inkyd", "config.yaml"))
	}

	paths = append(paths, "/config/config.yaml") // Container convention
	paths = append(paths, "/etc/inkyd/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all inkyd configuration. It maps directly to
// SPEC_FULL.md §2's StartOptions plus the ambient listen/telemetry/
// display settings the application supervisor needs before it can
// build the root service container.
type Config struct {
	Listen     ListenConfig     `yaml:"listen"`
	Display    DisplayConfig    `yaml:"display"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	BasePath   string           `yaml:"base_path"`
	StoragePath string          `yaml:"storage_path"`
	HardReset  bool             `yaml:"hard_reset"`
	LogLevel   string           `yaml:"log_level"`
	DataSources DataSourcesConfig `yaml:"data_sources"`
}

// ListenConfig defines the HTTP API server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// DisplayConfig selects and configures the display backend.
type DisplayConfig struct {
	Backend   string `yaml:"backend"`    // "simulator" (only backend shipped by the core)
	OutputDir string `yaml:"output_dir"` // simulator: directory PNG frames are written to
	Width     int    `yaml:"width"`
	Height    int    `yaml:"height"`
}

// TelemetryConfig controls the optional sqlite-backed telemetry audit
// log. The websocket telemetry stream is always served and has no
// setting here.
type TelemetryConfig struct {
	StoreEnabled bool   `yaml:"store_enabled"`
	StorePath    string `yaml:"store_path"`
}

// DataSourcesConfig carries credentials/settings for the sample data
// sources shipped with the core.
type DataSourcesConfig struct {
	GitHubToken string `yaml:"github_token"`
	GitHubRepo  string `yaml:"github_repo"` // "owner/name"
	MQTTBroker  string `yaml:"mqtt_broker"`
	WebURL      string `yaml:"web_url"`
}

// Load reads configuration from a YAML file, expands environment
// variables, applies defaults for any unset fields, and validates the
// result. After Load returns successfully, all fields are usable
// without additional nil/empty checks.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${GITHUB_TOKEN}). Convenience
	// for container deployments; putting values directly in the file is
	// still the recommended approach.
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// applyDefaults fills in zero-value fields with sensible defaults.
// Called automatically by Load. After this, callers can read any field
// without checking for empty strings or zero values.
func (c *Config) applyDefaults() {
	if c.Listen.Port == 0 {
		c.Listen.Port = 8080
	}
	if c.BasePath == "" {
		c.BasePath = "."
	}
	if c.StoragePath == "" {
		c.StoragePath = filepath.Join(c.BasePath, "storage")
	}
	if c.Display.Backend == "" {
		c.Display.Backend = "simulator"
	}
	if c.Display.OutputDir == "" {
		c.Display.OutputDir = filepath.Join(c.StoragePath, "frames")
	}
	if c.Display.Width == 0 {
		c.Display.Width = 800
	}
	if c.Display.Height == 0 {
		c.Display.Height = 480
	}
	if c.Telemetry.StorePath == "" {
		c.Telemetry.StorePath = filepath.Join(c.StoragePath, "telemetry.db")
	}
}

// Validate checks that the configuration is internally consistent.
// It runs after applyDefaults, so it can assume defaults are populated.
// Returns an error describing the first problem found, or nil.
func (c *Config) Validate() error {
	if c.Listen.Port < 1 || c.Listen.Port > 65535 {
		return fmt.Errorf("listen.port %d out of range (1-65535)", c.Listen.Port)
	}
	if c.Display.Backend != "simulator" {
		return fmt.Errorf("display.backend %q not supported (only \"simulator\" ships with the core)", c.Display.Backend)
	}
	if c.LogLevel != "" {
		if _, err := ParseLogLevel(c.LogLevel); err != nil {
			return err
		}
	}
	return nil
}

// Default returns a default configuration suitable for local
// development against the simulator display. All defaults are already
// applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}
