package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	DefaultBaseURL        = "http://localhost:8080"
	DefaultPollInterval   = 5 * time.Second
	DefaultRequestTimeout = 10 * time.Second
	DefaultMaxAttachment  = 10 << 20
)

// Environment overrides, also read from a .env file in the working directory.
const (
	EnvBaseURL      = "SSUKCHAT_BASE_URL"
	EnvProfile      = "SSUKCHAT_PROFILE"
	EnvPollInterval = "SSUKCHAT_POLL_INTERVAL"
)

// Config represents the global ~/.ssukchat/config.toml.
type Config struct {
	DefaultProfile string        `toml:"default_profile"`
	BaseURL        string        `toml:"base_url"`
	PollInterval   time.Duration `toml:"poll_interval"`
	RequestTimeout time.Duration `toml:"request_timeout"`
	Endpoints      Endpoints     `toml:"endpoints"`
	Attachments    Attachments   `toml:"attachments"`
}

// Endpoints are the REST paths relative to BaseURL. Empty fields use the
// client defaults.
type Endpoints struct {
	SignIn   string `toml:"sign_in"`
	Rooms    string `toml:"rooms"`
	Messages string `toml:"messages"`
	Send     string `toml:"send"`
}

type Attachments struct {
	MaxBytes int64 `toml:"max_bytes"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		BaseURL:        DefaultBaseURL,
		PollInterval:   DefaultPollInterval,
		RequestTimeout: DefaultRequestTimeout,
		Attachments:    Attachments{MaxBytes: DefaultMaxAttachment},
	}
}

// Load reads config from the given path. Returns zero config and error if file missing.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Resolve builds the effective configuration: defaults, then the file at
// path if it exists, then .env and process environment overrides.
func Resolve(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.fillDefaults()
	return cfg, cfg.Validate()
}

// Validate reports settings the client cannot run with.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid base_url %q", c.BaseURL)
	}
	if c.PollInterval < time.Second {
		return fmt.Errorf("poll_interval %s is below 1s", c.PollInterval)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive")
	}
	if c.Attachments.MaxBytes <= 0 {
		return fmt.Errorf("attachments.max_bytes must be positive")
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvBaseURL); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv(EnvProfile); v != "" {
		c.DefaultProfile = v
	}
	if v := os.Getenv(EnvPollInterval); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", EnvPollInterval, err)
		}
		c.PollInterval = d
	}
	return nil
}

// fillDefaults restores defaults for keys a partial file zeroed out.
func (c *Config) fillDefaults() {
	d := Default()
	if c.BaseURL == "" {
		c.BaseURL = d.BaseURL
	}
	if c.PollInterval == 0 {
		c.PollInterval = d.PollInterval
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = d.RequestTimeout
	}
	if c.Attachments.MaxBytes == 0 {
		c.Attachments.MaxBytes = d.Attachments.MaxBytes
	}
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
