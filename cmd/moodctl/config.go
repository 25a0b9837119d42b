package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	configEnv   = "MOODCTL_CONFIG"
	defaultFile = "moodctl.yaml"
)

// Config is the moodctl configuration. Sources, highest priority first:
// the --config flag, MOODCTL_CONFIG, ./moodctl.yaml, then environment only.
// Environment variables always override file values.
type Config struct {
	BaseURL  string        `yaml:"base_url" env:"MOODCTL_BASE_URL" env-default:"http://localhost:8080/api"`
	Mode     string        `yaml:"mode" env:"MOODCTL_MODE" env-default:"bearer"`
	Timeout  time.Duration `yaml:"timeout" env:"MOODCTL_TIMEOUT" env-default:"30s"`
	LogLevel string        `yaml:"log_level" env:"MOODCTL_LOG_LEVEL" env-default:"warn"`
	Store    StoreConfig   `yaml:"store"`
}

// StoreConfig selects where credentials persist between invocations.
type StoreConfig struct {
	Kind        string        `yaml:"kind" env:"MOODCTL_STORE" env-default:"file"`
	Path        string        `yaml:"path" env:"MOODCTL_STORE_PATH"`
	RedisAddr   string        `yaml:"redis_addr" env:"MOODCTL_REDIS_ADDR"`
	RedisPrefix string        `yaml:"redis_prefix" env:"MOODCTL_REDIS_PREFIX" env-default:"moodctl"`
	Profile     string        `yaml:"profile" env:"MOODCTL_PROFILE" env-default:"default"`
	TTL         time.Duration `yaml:"ttl" env:"MOODCTL_STORE_TTL" env-default:"0s"`
}

func (c *Config) validate() error {
	switch c.Mode {
	case "bearer", "cookie":
	default:
		return fmt.Errorf("mode must be bearer or cookie, got %q", c.Mode)
	}
	switch c.Store.Kind {
	case "memory", "file":
	case "redis":
		if c.Store.RedisAddr == "" {
			return errors.New("store.redis_addr is required for the redis store")
		}
	default:
		return fmt.Errorf("store.kind must be memory, file or redis, got %q", c.Store.Kind)
	}
	if c.Timeout < 0 {
		return errors.New("timeout must be >= 0")
	}
	return nil
}

// credentialsPath returns the file store location, defaulting under the
// user config directory.
func (c *Config) credentialsPath() (string, error) {
	if c.Store.Path != "" {
		return c.Store.Path, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "moodctl", c.Store.Profile+".cred"), nil
}

// Load reads the configuration; see Config for source priority.
func Load(path string) (*Config, error) {
	var cfg Config

	tryRead := func(p string) (*Config, error) {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", p, err)
		}
		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to overlay env: %w", err)
		}
		return &cfg, nil
	}

	var (
		out *Config
		err error
	)
	switch {
	case path != "":
		out, err = tryRead(path)
	case os.Getenv(configEnv) != "":
		out, err = tryRead(os.Getenv(configEnv))
	default:
		if _, statErr := os.Stat(defaultFile); statErr == nil {
			out, err = tryRead(defaultFile)
		} else if err = cleanenv.ReadEnv(&cfg); err == nil {
			out = &cfg
		} else {
			err = fmt.Errorf("config not found: provide --config, %s, %s or env vars: %w", configEnv, defaultFile, err)
		}
	}
	if err != nil {
		return nil, err
	}
	if err := out.validate(); err != nil {
		return nil, err
	}
	return out, nil
}
