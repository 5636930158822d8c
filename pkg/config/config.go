// Package config loads rctmon's TOML settings file, merging in defaults
// for anything the file omits.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// DefaultConfigPath is where rctmon looks for a config file if none is
// given on the command line.
const DefaultConfigPath = "rctmon.toml"

// Config is the root of the TOML settings tree.
type Config struct {
	Transport TransportConfig `toml:"transport"`
	Catalog   CatalogConfig   `toml:"catalog"`
	Logger    LoggerConfig    `toml:"logger"`
	Foxglove  FoxgloveConfig  `toml:"foxglove"`

	path string `toml:"-"`
}

// TransportConfig configures the reconnecting TCP client.
type TransportConfig struct {
	Addr         string `toml:"addr"`
	Reconnect    string `toml:"reconnect"`
	ReconnectMax string `toml:"reconnect_max"`
	DialTimeout  string `toml:"dial_timeout"`
	ReadTimeout  string `toml:"read_timeout"`
	BufSize      int    `toml:"buf_size"`
}

// CatalogConfig points at the OID catalog file to load at startup.
type CatalogConfig struct {
	Path string `toml:"path"`
}

// LoggerConfig configures the JSONL frame logger.
type LoggerConfig struct {
	Path string `toml:"path"`
}

// FoxgloveConfig configures the telemetry-over-websocket bridge.
type FoxgloveConfig struct {
	WSAddr   string `toml:"ws_addr"`
	Topic    string `toml:"topic"`
	LogTopic string `toml:"log_topic"`
}

// Default returns the configuration rctmon runs with if no file is
// present, or as the base a loaded file's fields are merged onto.
func Default() Config {
	return Config{
		Transport: TransportConfig{
			Addr:         "127.0.0.1:8899",
			Reconnect:    "1s",
			ReconnectMax: "30s",
			DialTimeout:  "5s",
			ReadTimeout:  "0s",
			BufSize:      64 * 1024,
		},
		Catalog: CatalogConfig{
			Path: "catalog.toml",
		},
		Logger: LoggerConfig{
			Path: "",
		},
		Foxglove: FoxgloveConfig{
			WSAddr:   "127.0.0.1:8765",
			Topic:    "rctmon/frame",
			LogTopic: "/rctmon/log",
		},
	}
}

// Load reads and parses the config file at path, requiring it to exist.
func Load(path string) (Config, error) {
	cfg, exists, err := LoadOrDefault(path)
	if err != nil {
		return Config{}, err
	}
	if !exists {
		return Config{}, os.ErrNotExist
	}
	return cfg, nil
}

// LoadOrDefault reads and parses the config file at path, falling back
// to Default() if it does not exist. The second return reports whether
// a file was actually read.
func LoadOrDefault(path string) (Config, bool, error) {
	cfg := Default()
	cfg.path = path

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.normalize()
			return cfg, false, nil
		}
		return Config{}, false, fmt.Errorf("read config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, true, fmt.Errorf("parse config: %w", err)
	}
	cfg.path = path
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return Config{}, true, err
	}
	return cfg, true, nil
}

// Save writes cfg to path, creating its parent directory if needed.
func (cfg *Config) Save(path string) error {
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return err
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	cfg.path = path
	return nil
}

// ConfigPath returns the path this config was loaded from or would save
// to, empty if it was never loaded or saved.
func (cfg *Config) ConfigPath() string {
	return cfg.path
}

// Validate checks that all duration-valued fields parse and numeric
// fields are in range.
func (cfg *Config) Validate() error {
	durations := map[string]string{
		"transport.reconnect":     cfg.Transport.Reconnect,
		"transport.reconnect_max": cfg.Transport.ReconnectMax,
		"transport.dial_timeout":  cfg.Transport.DialTimeout,
		"transport.read_timeout":  cfg.Transport.ReadTimeout,
	}
	for field, value := range durations {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
	}
	if cfg.Transport.BufSize <= 0 {
		return fmt.Errorf("transport.buf_size must be positive")
	}
	if cfg.Transport.Addr == "" {
		return fmt.Errorf("transport.addr must not be empty")
	}
	return nil
}

func (cfg *Config) normalize() {
	def := Default()

	if cfg.Transport.Addr == "" {
		cfg.Transport.Addr = def.Transport.Addr
	}
	if cfg.Transport.Reconnect == "" {
		cfg.Transport.Reconnect = def.Transport.Reconnect
	}
	if cfg.Transport.ReconnectMax == "" {
		cfg.Transport.ReconnectMax = def.Transport.ReconnectMax
	}
	if cfg.Transport.DialTimeout == "" {
		cfg.Transport.DialTimeout = def.Transport.DialTimeout
	}
	if cfg.Transport.ReadTimeout == "" {
		cfg.Transport.ReadTimeout = def.Transport.ReadTimeout
	}
	if cfg.Transport.BufSize <= 0 {
		cfg.Transport.BufSize = def.Transport.BufSize
	}
	if cfg.Catalog.Path == "" {
		cfg.Catalog.Path = def.Catalog.Path
	}
	if cfg.Foxglove.WSAddr == "" {
		cfg.Foxglove.WSAddr = def.Foxglove.WSAddr
	}
	if cfg.Foxglove.Topic == "" {
		cfg.Foxglove.Topic = def.Foxglove.Topic
	}
	if cfg.Foxglove.LogTopic == "" {
		cfg.Foxglove.LogTopic = def.Foxglove.LogTopic
	}
}

// Durations parses the string duration fields, returning them ready for
// use by pkg/transport's functional options. Called after Validate has
// already confirmed they parse.
func (cfg *Config) Durations() (reconnect, reconnectMax, dialTimeout, readTimeout time.Duration) {
	reconnect, _ = time.ParseDuration(cfg.Transport.Reconnect)
	reconnectMax, _ = time.ParseDuration(cfg.Transport.ReconnectMax)
	dialTimeout, _ = time.ParseDuration(cfg.Transport.DialTimeout)
	readTimeout, _ = time.ParseDuration(cfg.Transport.ReadTimeout)
	return
}
