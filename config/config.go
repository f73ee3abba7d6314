// Package config loads the TOML server configuration, grounded on
// original_source/src/config.rs's Config: auto-creating a template file
// on first run and honoring a CONFIG_PATH environment override.
package config

import (
	"os"

	"github.com/BurntSushi/toml"
	"github.com/go-kit/log/level"

	"github.com/touchhouse/touchhouse/toucherr"
)

const defaultConfigFileName = "touch_config.toml"

const defaultConfigTemplate = `# Storage directory
storage_directory = "db_files/"

# TCP socket to accept connections
tcp_socket = "127.0.0.1:7070"

# Max connections at a time
max_connections = 100

# Allowed values:
# - 1 => Info
# - 2 => Warn
# - 3 => Error
log_level = 1

# Seconds the background merger sleeps between sweeps when no table has two or more parts
# to merge; merging is not gated on database load
background_merge_available_under = 30

# HTTP address the Prometheus /metrics endpoint listens on
metrics_addr = "127.0.0.1:9070"
`

// Config is the server's runtime configuration.
type Config struct {
	StorageDirectory              string `toml:"storage_directory"`
	TCPSocket                     string `toml:"tcp_socket"`
	LogLevel                      uint8  `toml:"log_level"`
	MaxConnections                int    `toml:"max_connections"`
	BackgroundMergeAvailableUnder uint32 `toml:"background_merge_available_under"`
	MetricsAddr                   string `toml:"metrics_addr"`
}

// Level maps the configured numeric log_level onto a go-kit/log level
// filter option, matching config.rs's get_log_level mapping (anything
// other than 2 or 3 defaults to Info).
func (c *Config) Level() level.Option {
	switch c.LogLevel {
	case 2:
		return level.AllowWarn()
	case 3:
		return level.AllowError()
	default:
		return level.AllowInfo()
	}
}

// Load reads the configuration file named by the CONFIG_PATH env var
// (or "touch_config.toml" if it is unset), writing the default template
// first if the file does not yet exist, then ensures StorageDirectory
// exists.
func Load() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = defaultConfigFileName
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.WriteFile(path, []byte(defaultConfigTemplate), 0o644); err != nil {
			return nil, toucherr.Newf(toucherr.Internal, "write default config template: %v", err)
		}
	}

	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, toucherr.Newf(toucherr.Internal, "decode config file %s: %v", path, err)
	}

	if err := os.MkdirAll(cfg.StorageDirectory, 0o755); err != nil {
		return nil, toucherr.Newf(toucherr.PermissionDenied, "create storage directory %s: %v", cfg.StorageDirectory, err)
	}
	info, err := os.Stat(cfg.StorageDirectory)
	if err != nil || !info.IsDir() {
		return nil, toucherr.Newf(toucherr.Internal, "storage directory %s is not a directory", cfg.StorageDirectory)
	}

	return &cfg, nil
}
