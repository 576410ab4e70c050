package shared

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Gateway  GatewayConfig  `toml:"gateway"`
	Database DatabaseConfig `toml:"database"`
	Monitor  MonitorConfig  `toml:"monitor"`
	Sync     SyncConfig     `toml:"sync"`
}

// GatewayConfig contains remote data gateway settings.
type GatewayConfig struct {
	BaseURL             string  `toml:"base_url"`
	Token               string  `toml:"token"`
	RateLimit           float64 `toml:"rate_limit"`
	TimeoutSeconds      int     `toml:"timeout_seconds"`
	PollIntervalSeconds int     `toml:"poll_interval_seconds"`
}

// DatabaseConfig contains local cache database settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// MonitorConfig contains network monitor settings.
type MonitorConfig struct {
	PollIntervalSeconds int `toml:"poll_interval_seconds"`
}

// SyncConfig contains sync and migration engine settings.
type SyncConfig struct {
	MaxRetries         int `toml:"max_retries"`
	MigrationBatchSize int `toml:"migration_batch_size"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	// Check if file already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	// Write the embedded example config to the file
	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
