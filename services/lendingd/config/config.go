package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config captures the runtime settings for the lending service daemon.
type Config struct {
	ListenAddress string          `yaml:"listen"`
	MarketsPath   string          `yaml:"markets"`
	Auth          AuthConfig      `yaml:"auth"`
	RateLimit     RateLimitConfig `yaml:"rate_limit"`
}

// AuthConfig lists the bearer tokens accepted on mutating routes.
type AuthConfig struct {
	APITokens []string `yaml:"api_tokens"`
}

// RateLimitConfig throttles per-client request rates.
type RateLimitConfig struct {
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
	Burst             int     `yaml:"burst"`
}

// Load reads the YAML configuration from disk and validates the result.
func Load(path string) (Config, error) {
	cfg := Config{
		ListenAddress: ":8465",
		MarketsPath:   "markets.toml",
	}
	if path == "" {
		return cfg, fmt.Errorf("config path required")
	}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) normalize() {
	if cfg == nil {
		return
	}
	cfg.ListenAddress = strings.TrimSpace(cfg.ListenAddress)
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":8465"
	}
	cfg.MarketsPath = strings.TrimSpace(cfg.MarketsPath)
	if cfg.MarketsPath == "" {
		cfg.MarketsPath = "markets.toml"
	}
	cfg.Auth.normalize()
	if cfg.RateLimit.RequestsPerMinute < 0 {
		cfg.RateLimit.RequestsPerMinute = 0
	}
	if cfg.RateLimit.Burst < 0 {
		cfg.RateLimit.Burst = 0
	}
}

func (cfg *Config) validate() error {
	if cfg == nil {
		return fmt.Errorf("configuration is missing")
	}
	if err := cfg.Auth.validate(); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	return nil
}

func (cfg *AuthConfig) normalize() {
	if cfg == nil {
		return
	}
	tokens := make([]string, 0, len(cfg.APITokens))
	for _, token := range cfg.APITokens {
		if trimmed := strings.TrimSpace(token); trimmed != "" {
			tokens = append(tokens, trimmed)
		}
	}
	cfg.APITokens = tokens
}

func (cfg AuthConfig) validate() error {
	if len(cfg.APITokens) == 0 {
		return fmt.Errorf("at least one api token must be configured")
	}
	return nil
}

// Enabled reports whether rate limiting is configured at all.
func (cfg RateLimitConfig) Enabled() bool {
	return cfg.RequestsPerMinute > 0
}
