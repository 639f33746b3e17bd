// Package daemon manages the Gearfall daemon lifecycle and configuration.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds all daemon configuration.
type Config struct {
	API       APIConfig       `toml:"api"`
	Store     StoreConfig     `toml:"store"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Sync      SyncConfig      `toml:"sync"`
	Offline   OfflineConfig   `toml:"offline"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host        string   `toml:"host"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// StoreConfig controls persistent storage.
type StoreConfig struct {
	Dir string `toml:"dir"`
}

// SchedulerConfig controls the queue driver. An empty TickInterval means
// the scheduler only runs on the external /admin/tick trigger.
type SchedulerConfig struct {
	TickInterval      string `toml:"tick_interval"`
	MaxQueueSize      int    `toml:"max_queue_size"`
	DefaultMaxRetries int    `toml:"default_max_retries"`
}

// SyncConfig controls connection staleness handling.
type SyncConfig struct {
	StaleAfter      string `toml:"stale_after"`
	DropAfter       string `toml:"drop_after"`
	CleanupInterval string `toml:"cleanup_interval"`
}

// OfflineConfig controls offline catch-up.
type OfflineConfig struct {
	Enabled bool `toml:"enabled"`
}

// TelemetryConfig controls observability endpoints.
type TelemetryConfig struct {
	Prometheus bool `toml:"prometheus"`
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host:        "127.0.0.1",
			Port:        8464,
			CORSOrigins: []string{"*"},
		},
		Store: StoreConfig{
			Dir: gearfallHome(),
		},
		Scheduler: SchedulerConfig{
			TickInterval:      "5s",
			MaxQueueSize:      20,
			DefaultMaxRetries: 3,
		},
		Sync: SyncConfig{
			StaleAfter:      "90s",
			DropAfter:       "10m",
			CleanupInterval: "60s",
		},
		Offline: OfflineConfig{
			Enabled: true,
		},
		Telemetry: TelemetryConfig{
			Prometheus: true,
		},
	}
}

// LoadConfig reads config from $GEARFALL_HOME/config.toml, falling back
// to defaults.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	path := filepath.Join(gearfallHome(), "config.toml")

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil // No config file yet — use defaults
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes the config to $GEARFALL_HOME/config.toml.
func SaveConfig(cfg Config) error {
	path := filepath.Join(gearfallHome(), "config.toml")
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// gearfallHome returns the Gearfall data directory.
func gearfallHome() string {
	if env := os.Getenv("GEARFALL_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".gearfall")
}

// Home is exported for use by other packages.
func Home() string {
	return gearfallHome()
}
