// Package conf loads and saves the host configuration document.
package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/file"
	"github.com/go-kratos/kratos/v2/encoding"
	"github.com/go-kratos/kratos/v2/encoding/json"

	"github.com/go-lynx/vectorium/log"
)

// FileName is the default configuration file name.
const FileName = "vectorium.json"

// Config is the persisted host configuration.
type Config struct {
	AutoScan                bool     `json:"autoScan"`
	PluginDirectory         string   `json:"pluginDirectory"`
	ScanIntervalSeconds     int      `json:"pluginScanInterval_seconds"`
	EnabledPlugins          []string `json:"enabledPlugins"`
	WatchPluginFolder       bool     `json:"watchPluginFolder"`
	EnforceRequiredServices bool     `json:"enforceRequiredServices"`
	TickRate                int      `json:"tickRate"`
	Log                     Log      `json:"log"`
	Admin                   Admin    `json:"admin"`
	OTLPEndpoint            string   `json:"otlpEndpoint,omitempty"`
	CloseBanner             bool     `json:"closeBanner,omitempty"`
}

// Log configures the host logger.
type Log struct {
	Level      string `json:"level"`
	File       string `json:"file,omitempty"`
	MaxSizeMB  int    `json:"maxSizeMb,omitempty"`
	MaxBackups int    `json:"maxBackups,omitempty"`
	MaxAgeDays int    `json:"maxAgeDays,omitempty"`
	Compress   bool   `json:"compress,omitempty"`
}

// Admin configures the HTTP admin server. An empty Addr disables it.
type Admin struct {
	Addr      string `json:"addr,omitempty"`
	JWTSecret string `json:"jwtSecret,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		AutoScan:            true,
		PluginDirectory:     "plugins",
		ScanIntervalSeconds: 5,
		EnabledPlugins:      []string{},
		TickRate:            60,
		Log:                 Log{Level: "info"},
	}
}

// ScanInterval returns the scan interval, never less than one second.
func (c *Config) ScanInterval() time.Duration {
	if c.ScanIntervalSeconds < 1 {
		return time.Second
	}
	return time.Duration(c.ScanIntervalSeconds) * time.Second
}

// TickInterval returns the frame interval for TickRate.
func (c *Config) TickInterval() time.Duration {
	rate := c.TickRate
	if rate <= 0 {
		rate = 60
	}
	return time.Second / time.Duration(rate)
}

// IsEnabled reports whether name is listed in EnabledPlugins.
func (c *Config) IsEnabled(name string) bool {
	for _, n := range c.EnabledPlugins {
		if n == name {
			return true
		}
	}
	return false
}

// DefaultPath returns <executable dir>/config/vectorium.json.
func DefaultPath() string {
	exe, err := os.Executable()
	if err != nil {
		return filepath.Join("config", FileName)
	}
	return filepath.Join(filepath.Dir(exe), "config", FileName)
}

// Load reads path. Keys absent from the document keep their defaults. When
// the document cannot be read, the default configuration is written to
// path and read back; only a failure of that second attempt is returned.
func Load(path string) (*Config, error) {
	cfg, err := read(path)
	if err == nil {
		return cfg, nil
	}
	log.Warnf("could not load config %s (%v), writing defaults", path, err)
	if err := Save(path, Default()); err != nil {
		return nil, err
	}
	return read(path)
}

func read(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	c := config.New(config.WithSource(file.NewSource(path)))
	defer func() {
		if err := c.Close(); err != nil {
			log.Warnf("failed to close configuration: %v", err)
		}
	}()
	if err := c.Load(); err != nil {
		return nil, fmt.Errorf("failed to load configuration from %s: %w", path, err)
	}
	cfg := Default()
	if err := c.Scan(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration from %s: %w", path, err)
	}
	if cfg.EnabledPlugins == nil {
		cfg.EnabledPlugins = []string{}
	}
	return cfg, nil
}

// Save writes cfg to path, creating parent directories. The file is
// replaced atomically.
func Save(path string, cfg *Config) error {
	data, err := encoding.GetCodec(json.Name).Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
