package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Config holds the full service configuration. Values come from the YAML
// config file and can be overridden from the environment.
type Config struct {
	Host   HostConfig   `yaml:"host" envPrefix:"HOST_"`
	BinDir string       `yaml:"binDir" env:"BINDIR"`
	Store  StoreConfig  `yaml:"store" envPrefix:"STORE_"`
	Files  FilesConfig  `yaml:"files" envPrefix:"FILE_"`
	Mail   RemoteConfig `yaml:"mail" envPrefix:"MAILOUT_"`
	Talk   RemoteConfig `yaml:"talk" envPrefix:"TALK_"`
	Router RemoteConfig `yaml:"router" envPrefix:"ROUTER_"`
	Log    LogConfig    `yaml:"log" envPrefix:"LOG_"`
}

// HostConfig configures the hosting core
type HostConfig struct {
	Host string `yaml:"host" env:"HOST"`
	Port int    `yaml:"port" env:"PORT"`

	// TimeScale is the unix-time divisor. The default of 60 makes one
	// time unit equal one minute; tests shrink it.
	TimeScale int64 `yaml:"timeScale" env:"TIMESCALE"`

	// WorkDir is the working directory; auto-generated under /tmp when
	// unset
	WorkDir string `yaml:"workDir" env:"WORKDIR"`

	UsersSeeTemporaryTurns bool `yaml:"usersSeeTemporaryTurns" env:"USERSSEETEMPORARYTURNS"`

	// KickAfterMissed resigns a slot's primary after this many missed
	// turns in a row; 0 disables
	KickAfterMissed int `yaml:"kickAfterMissed" env:"KICKAFTERMISSED"`

	// Backups selects result-backup handling: "keep" or "unpack"
	Backups string `yaml:"backups" env:"BACKUPS"`

	// InitialSuspend delays all scheduled events by this many scaled
	// minutes on startup, giving players a grace period after outages
	InitialSuspend int64 `yaml:"initialSuspend" env:"INITIALSUSPEND"`
}

// StoreConfig configures the metadata store
type StoreConfig struct {
	Path string `yaml:"path" env:"PATH"`
}

// FilesConfig configures the two file services
type FilesConfig struct {
	HostRoot string `yaml:"hostRoot" env:"HOSTROOT"`
	UserRoot string `yaml:"userRoot" env:"USERROOT"`
}

// RemoteConfig is an address of a downstream collaborator
type RemoteConfig struct {
	Host string `yaml:"host" env:"HOST"`
	Port int    `yaml:"port" env:"PORT"`
}

// LogConfig configures logging
type LogConfig struct {
	Level string `yaml:"level" env:"LEVEL"`
	JSON  bool   `yaml:"json" env:"JSON"`
}

// Addr returns the listen address
func (c *HostConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Host: HostConfig{
			Host:      "127.0.0.1",
			Port:      7777,
			TimeScale: 60,
			Backups:   "keep",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads the YAML file (when path is non-empty), applies environment
// overrides, and fills derived defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if cfg.Host.TimeScale <= 0 {
		cfg.Host.TimeScale = 60
	}
	if cfg.Host.WorkDir == "" {
		cfg.Host.WorkDir = filepath.Join(os.TempDir(), "starhost-"+uuid.NewString()[:8])
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = cfg.Host.WorkDir
	}
	if cfg.Files.HostRoot == "" {
		cfg.Files.HostRoot = filepath.Join(cfg.Host.WorkDir, "host")
	}
	if cfg.Files.UserRoot == "" {
		cfg.Files.UserRoot = filepath.Join(cfg.Host.WorkDir, "user")
	}
	if cfg.Host.Backups != "keep" && cfg.Host.Backups != "unpack" {
		return nil, fmt.Errorf("bad backups mode %q (want keep or unpack)", cfg.Host.Backups)
	}

	return cfg, nil
}
