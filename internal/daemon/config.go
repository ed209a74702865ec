// Package daemon holds the engine's runtime configuration. TOML on disk,
// defaults that run out of the box with in-memory storage.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the full daemon configuration.
type Config struct {
	API     APIConfig     `toml:"api"`
	Storage StorageConfig `toml:"storage"`
	Redis   RedisConfig   `toml:"redis"`
	Catalog CatalogConfig `toml:"catalog"`
}

// APIConfig configures the HTTP server.
type APIConfig struct {
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	Metrics bool   `toml:"metrics"`
}

// Addr returns the listen address.
func (a APIConfig) Addr() string { return fmt.Sprintf("%s:%d", a.Host, a.Port) }

// StorageConfig selects the ledger store backend.
type StorageConfig struct {
	// Backend is one of "memory", "sqlite", "postgres".
	Backend string `toml:"backend"`

	// Dir is the data directory for the sqlite backend.
	Dir string `toml:"dir"`

	// DatabaseURL is the connection URL for the postgres backend.
	DatabaseURL string `toml:"database_url"`
}

// RedisConfig configures the optional lifetime-points leaderboard.
type RedisConfig struct {
	Enabled  bool   `toml:"enabled"`
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// CatalogConfig points at an optional catalog override file.
type CatalogConfig struct {
	// Path to a TOML catalog; empty means the built-in defaults.
	Path string `toml:"path"`
}

// DefaultConfig returns a configuration that runs with no external services.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host:    "127.0.0.1",
			Port:    8420,
			Metrics: true,
		},
		Storage: StorageConfig{
			Backend: "memory",
			Dir:     defaultDataDir(),
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "127.0.0.1:6379",
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".minifi"
	}
	return filepath.Join(home, ".minifi")
}

// Load reads a config file, filling unset fields from the defaults.
// A missing file is not an error; the defaults are returned.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("daemon: parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks cross-field consistency.
func (c Config) Validate() error {
	switch c.Storage.Backend {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("daemon: unknown storage backend %q", c.Storage.Backend)
	}
	if c.Storage.Backend == "postgres" && c.Storage.DatabaseURL == "" {
		return fmt.Errorf("daemon: postgres backend requires storage.database_url")
	}
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("daemon: invalid api port %d", c.API.Port)
	}
	return nil
}
