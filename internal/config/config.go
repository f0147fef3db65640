package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up when none is given.
const DefaultPath = "roost.yml"

// RoostConfig represents the top-level roost.yml configuration
type RoostConfig struct {
	Version  string       `yaml:"version"`
	Instance string       `yaml:"instance"`
	Redis    RedisConfig  `yaml:"redis"`
	Server   ServerConfig `yaml:"server"`
	Auth     AuthConfig   `yaml:"auth"`
	Voter    VoterConfig  `yaml:"voter"`
	Log      LogConfig    `yaml:"log"`
}

// RedisConfig points at the shared store.
type RedisConfig struct {
	URL string `yaml:"url"` // redis://[:password@]host:port/db
}

// ServerConfig configures roostd.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	PublicURL       string        `yaml:"public_url"` // Base of join links handed to voters
	AllowedOrigins  []string      `yaml:"allowed_origins,omitempty"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty"`
}

// AuthConfig configures presenter bearer tokens.
type AuthConfig struct {
	Issuer   string        `yaml:"issuer"`
	Secret   string        `yaml:"secret,omitempty"` // Prefer ROOST_JWT_SECRET over committing this
	TokenTTL time.Duration `yaml:"token_ttl,omitempty"`
}

// VoterConfig tunes voter clients.
type VoterConfig struct {
	PollInterval time.Duration `yaml:"poll_interval,omitempty"`
}

// LogConfig selects log verbosity and encoding.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "console" or "json"
}

// Env holds the environment overrides. Empty values leave the file untouched.
type Env struct {
	RedisURL       string   `env:"REDIS_URL"`
	Instance       string   `env:"ROOST_INSTANCE"`
	Addr           string   `env:"ROOST_ADDR"`
	PublicURL      string   `env:"ROOST_PUBLIC_URL"`
	AllowedOrigins []string `env:"ROOST_ALLOWED_ORIGINS" envSeparator:","`
	JWTSecret      string   `env:"ROOST_JWT_SECRET"`
	LogLevel       string   `env:"ROOST_LOG_LEVEL"`
	LogFormat      string   `env:"ROOST_LOG_FORMAT"`
}

// Default returns the configuration used when no roost.yml exists.
func Default() *RoostConfig {
	c := &RoostConfig{Version: "1.0"}
	c.applyDefaults()
	return c
}

func (c *RoostConfig) applyDefaults() {
	if c.Instance == "" {
		c.Instance = "default"
	}
	if c.Redis.URL == "" {
		c.Redis.URL = "redis://localhost:6379/0"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.PublicURL == "" {
		c.Server.PublicURL = "http://localhost:8080"
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Auth.Issuer == "" {
		c.Auth.Issuer = "roost"
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = 24 * time.Hour
	}
	if c.Voter.PollInterval == 0 {
		c.Voter.PollInterval = time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
}

// Validate applies defaults and performs strict validation on the configuration
func (c *RoostConfig) Validate() error {
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	c.applyDefaults()

	if strings.ContainsAny(c.Instance, ": ") {
		return fmt.Errorf("invalid instance name '%s': must not contain ':' or spaces", c.Instance)
	}

	if _, err := redis.ParseURL(c.Redis.URL); err != nil {
		return fmt.Errorf("invalid redis.url: %w", err)
	}

	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("server.shutdown_timeout must be >= 0, got %s", c.Server.ShutdownTimeout)
	}

	if c.Auth.TokenTTL < 0 {
		return fmt.Errorf("auth.token_ttl must be >= 0, got %s", c.Auth.TokenTTL)
	}

	if c.Voter.PollInterval < 100*time.Millisecond {
		return fmt.Errorf("voter.poll_interval must be at least 100ms, got %s", c.Voter.PollInterval)
	}

	switch c.Log.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log.level: %s (must be 'trace', 'debug', 'info', 'warn' or 'error')", c.Log.Level)
	}

	if c.Log.Format != "console" && c.Log.Format != "json" {
		return fmt.Errorf("invalid log.format: %s (must be 'console' or 'json')", c.Log.Format)
	}

	return nil
}

// ApplyEnv overlays environment overrides on top of the file values.
func (c *RoostConfig) ApplyEnv() error {
	var e Env
	if err := env.Parse(&e); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.Redis.URL, e.RedisURL)
	set(&c.Instance, e.Instance)
	set(&c.Server.Addr, e.Addr)
	set(&c.Server.PublicURL, e.PublicURL)
	set(&c.Auth.Secret, e.JWTSecret)
	set(&c.Log.Level, e.LogLevel)
	set(&c.Log.Format, e.LogFormat)
	if len(e.AllowedOrigins) > 0 {
		c.Server.AllowedOrigins = e.AllowedOrigins
	}

	return nil
}

// RedisOptions parses the configured Redis URL.
func (c *RoostConfig) RedisOptions() (*redis.Options, error) {
	opts, err := redis.ParseURL(c.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis.url: %w", err)
	}
	return opts, nil
}

// Load reads and validates roost.yml from the specified path
func Load(path string) (*RoostConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config RoostConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Resolve builds the effective configuration: .env files, then the config
// file (a missing file at the default path falls back to Default), then the
// environment.
func Resolve(path string) (*RoostConfig, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}

	if path == "" {
		path = DefaultPath
	}

	config, err := Load(path)
	if err != nil {
		if path != DefaultPath || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		config = Default()
	}

	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// LoadDotEnv loads the given .env files (".env" when none) into the process
// environment. Missing files are ignored and existing variables win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}

	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}
