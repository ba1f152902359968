// Package config loads and persists the server configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the persisted application configuration.
type Config struct {
	ListenAddr         string        `yaml:"listen_addr"`
	ServiceName        string        `yaml:"service_name"`
	ServiceDescription string        `yaml:"service_description"`
	StorageBackend     string        `yaml:"storage_backend"`
	StoragePath        string        `yaml:"storage_path"`
	PlayerBinary       string        `yaml:"player_binary,omitempty"`
	ReapInterval       time.Duration `yaml:"reap_interval"`
	MaxLineBytes       int           `yaml:"max_line_bytes"`
	LogLevel           string        `yaml:"log_level"`
	LogFile            string        `yaml:"log_file,omitempty"`
}

// Defaults returns the baseline configuration used on first run.
func Defaults() Config {
	home, _ := os.UserHomeDir()
	return Config{
		ListenAddr:         "0.0.0.0:7654",
		ServiceName:        "PodRadio Control",
		ServiceDescription: "PodRadio remote control service",
		StorageBackend:     "json",
		StoragePath:        filepath.Join(home, ".podradio", "subscriptions.json"),
		ReapInterval:       5 * time.Second,
		MaxLineBytes:       1 << 20,
		LogLevel:           "info",
	}
}

// Load reads configuration from disk. A missing file yields the defaults;
// environment overrides apply either way.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := Defaults()
			applyEnv(&cfg)
			if err := cfg.validate(); err != nil {
				return Config{}, err
			}
			return cfg, nil
		}
		return Config{}, err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Save writes configuration back to disk atomically with restrictive
// directory permissions.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	temp := path + ".tmp"
	if err := os.WriteFile(temp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(temp, path)
}

// EnsureFile writes the default configuration to path when no file exists
// yet, so a first run leaves an editable config behind. An existing file is
// never touched.
func EnsureFile(path string) error {
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return Save(path, Defaults())
}

func applyEnv(cfg *Config) {
	if addr := strings.TrimSpace(os.Getenv("PODRADIO_LISTEN_ADDR")); addr != "" {
		cfg.ListenAddr = addr
	}
	if level := strings.TrimSpace(os.Getenv("PODRADIO_LOG_LEVEL")); level != "" {
		cfg.LogLevel = level
	}
}

func (c Config) validate() error {
	switch c.StorageBackend {
	case "json", "sqlite":
	default:
		return fmt.Errorf("unknown storage backend %q (want json or sqlite)", c.StorageBackend)
	}
	if strings.TrimSpace(c.ListenAddr) == "" {
		return errors.New("listen_addr must not be empty")
	}
	if c.ReapInterval <= 0 {
		return errors.New("reap_interval must be positive")
	}
	if c.MaxLineBytes <= 0 {
		return errors.New("max_line_bytes must be positive")
	}
	return nil
}
