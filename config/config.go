// Package config loads the playlistd configuration from an optional YAML or
// JSON file and from PLAYLIST_* environment variables. Environment variables
// win over the file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/c0deZ3R0/go-playlist-kit/logging"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "PLAYLIST_"

// FileEnv names the variable pointing at the optional config file.
const FileEnv = EnvPrefix + "CONFIG_FILE"

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config is the complete daemon configuration.
type Config struct {
	ReplicaID   string   `json:"replica_id" yaml:"replica_id" env:"REPLICA_ID"`
	Capacity    int      `json:"capacity" yaml:"capacity" env:"CAPACITY"`
	Unavailable []string `json:"unavailable,omitempty" yaml:"unavailable,omitempty" env:"UNAVAILABLE"`
	// Resolver is "remove-wins" or "last-writer-wins".
	Resolver string `json:"resolver" yaml:"resolver" env:"RESOLVER"`

	HTTP  HTTPConfig     `json:"http" yaml:"http" envPrefix:"HTTP_"`
	Store StoreConfig    `json:"store" yaml:"store" envPrefix:"STORE_"`
	Redis RedisConfig    `json:"redis" yaml:"redis" envPrefix:"REDIS_"`
	Log   logging.Config `json:"log" yaml:"log"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr            string        `json:"addr" yaml:"addr" env:"ADDR"`
	RequestTimeout  time.Duration `json:"request_timeout" yaml:"request_timeout" env:"REQUEST_TIMEOUT"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	MaxRequestSize  int64         `json:"max_request_size" yaml:"max_request_size" env:"MAX_REQUEST_SIZE"`
}

// StoreConfig selects the event store.
type StoreConfig struct {
	Driver string `json:"driver" yaml:"driver" env:"DRIVER"`
	DSN    string `json:"dsn" yaml:"dsn" env:"DSN"`
	// Listen subscribes to Postgres change notifications so other replicas'
	// writes invalidate cached playlists.
	Listen bool `json:"listen" yaml:"listen" env:"LISTEN"`
}

// RedisConfig enables change broadcasts when URL is set.
type RedisConfig struct {
	URL     string `json:"url" yaml:"url" env:"URL"`
	Channel string `json:"channel" yaml:"channel" env:"CHANNEL"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	host, _ := os.Hostname()
	if host == "" {
		host = "playlistd"
	}
	return Config{
		ReplicaID: host,
		Resolver:  "remove-wins",
		HTTP: HTTPConfig{
			Addr:            ":8080",
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxRequestSize:  10 * 1024 * 1024,
		},
		Store: StoreConfig{Driver: DriverMemory},
		Redis: RedisConfig{Channel: "playlist-events"},
		Log:   logging.DefaultConfig,
	}
}

// Load builds the configuration: defaults, then the file named by
// PLAYLIST_CONFIG_FILE if set, then environment variables.
func Load() (Config, error) {
	cfg := Default()
	if path := os.Getenv(FileEnv); path != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.Log = logging.ApplyEnvironmentDefaults(cfg.Log)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile overlays the YAML or JSON file at path onto cfg. The format
// follows the extension; anything but .json is read as YAML.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}
	return nil
}

// Validate rejects settings the daemon cannot start with.
func (c Config) Validate() error {
	if c.ReplicaID == "" {
		return fmt.Errorf("replica id is required")
	}
	if c.Capacity < 0 {
		return fmt.Errorf("capacity must be >= 0, got %d", c.Capacity)
	}
	switch c.Resolver {
	case "remove-wins", "last-writer-wins":
	default:
		return fmt.Errorf("unknown resolver %q", c.Resolver)
	}
	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("store driver %s requires a dsn", c.Store.Driver)
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Store.Listen && c.Store.Driver != DriverPostgres {
		return fmt.Errorf("store listen requires the postgres driver")
	}
	if c.HTTP.Addr == "" {
		return fmt.Errorf("http addr is required")
	}
	return nil
}
