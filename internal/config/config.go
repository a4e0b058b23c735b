package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the Sophia gateway
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Logging      LoggingConfig      `yaml:"logging"`
	Providers    []ProviderConfig   `yaml:"providers"`
	Routing      RoutingConfig      `yaml:"routing"`
	Cache        CacheConfig        `yaml:"cache"`
	Ledger       LedgerConfig       `yaml:"ledger"`
	Tiering      TieringConfig      `yaml:"tiering"`
	Health       HealthConfig       `yaml:"health,omitempty"`
	Integrations IntegrationsConfig `yaml:"integrations,omitempty"`
	Sessions     SessionsConfig     `yaml:"sessions,omitempty"`
}

// ServerConfig defines HTTP server settings
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// LoggingConfig defines logging settings
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// ProviderConfig defines an LLM provider connection
type ProviderConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"` // portkey, openrouter, cortex, openai-compatible
	BaseURL    string `yaml:"base_url,omitempty"`
	APIKey     string `yaml:"api_key,omitempty"`
	VirtualKey string `yaml:"virtual_key,omitempty"` // portkey only
	AppURL     string `yaml:"app_url,omitempty"`     // openrouter referer
	AppName    string `yaml:"app_name,omitempty"`    // openrouter title
	Account    string `yaml:"account,omitempty"`     // cortex account URL
	Token      string `yaml:"token,omitempty"`       // cortex bearer token
	Warehouse  string `yaml:"warehouse,omitempty"`
	Database   string `yaml:"database,omitempty"`
	Schema     string `yaml:"schema,omitempty"`
	Timeout    string `yaml:"timeout,omitempty"`
}

// GetTimeout returns the provider timeout as a time.Duration
func (p *ProviderConfig) GetTimeout() time.Duration {
	if p.Timeout == "" {
		return 60 * time.Second
	}
	d, err := time.ParseDuration(p.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// ModelConfig defines one row of the model table
type ModelConfig struct {
	Name          string   `yaml:"name"`
	Provider      string   `yaml:"provider"`
	Quality       float64  `yaml:"quality"`
	Speed         float64  `yaml:"speed"`
	CostPer1K     float64  `yaml:"cost_per_1k"`
	ContextWindow int      `yaml:"context_window"`
	Capabilities  []string `yaml:"capabilities,omitempty"`
}

// RoutingConfig defines model selection and fallback settings
type RoutingConfig struct {
	DefaultTask string        `yaml:"default_task"`
	Chain       []string      `yaml:"chain"` // provider fallback order
	Models      []ModelConfig `yaml:"models"`
}

// RedisConfig defines Redis connection settings
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// CacheConfig defines the completion cache settings
type CacheConfig struct {
	Enabled bool        `yaml:"enabled"`
	TTL     string      `yaml:"ttl,omitempty"`
	Redis   RedisConfig `yaml:"redis,omitempty"`
}

// GetTTL returns the cache TTL as a time.Duration
func (c *CacheConfig) GetTTL() time.Duration {
	if c.TTL == "" {
		return 5 * time.Minute
	}
	d, err := time.ParseDuration(c.TTL)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}

// LedgerConfig defines the watermark ledger settings
type LedgerConfig struct {
	Path         string `yaml:"path"`
	HistoryLimit int    `yaml:"history_limit,omitempty"`
}

// TieringConfig defines data tiering sweep settings
type TieringConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule,omitempty"` // cron spec
	HotToWarm     string `yaml:"hot_to_warm,omitempty"`
	WarmToCold    string `yaml:"warm_to_cold,omitempty"`
	ColdRetention string `yaml:"cold_retention,omitempty"`
}

// GetHotToWarm returns the hot->warm age threshold
func (t *TieringConfig) GetHotToWarm() time.Duration {
	return parseDurationOr(t.HotToWarm, 24*time.Hour)
}

// GetWarmToCold returns the warm->cold age threshold
func (t *TieringConfig) GetWarmToCold() time.Duration {
	return parseDurationOr(t.WarmToCold, 7*24*time.Hour)
}

// GetColdRetention returns the cold retention period before archive
func (t *TieringConfig) GetColdRetention() time.Duration {
	return parseDurationOr(t.ColdRetention, 30*24*time.Hour)
}

// HealthConfig defines provider health monitoring settings
type HealthConfig struct {
	Enabled          bool   `yaml:"enabled"`
	CheckInterval    string `yaml:"check_interval,omitempty"`
	FailureThreshold int    `yaml:"failure_threshold,omitempty"`
	HistorySize      int    `yaml:"history_size,omitempty"`
}

// GetCheckInterval returns the health check interval
func (h *HealthConfig) GetCheckInterval() time.Duration {
	return parseDurationOr(h.CheckInterval, 30*time.Second)
}

// IntegrationsConfig defines SaaS integration settings
type IntegrationsConfig struct {
	HubSpot HubSpotConfig `yaml:"hubspot,omitempty"`
	Gong    GongConfig    `yaml:"gong,omitempty"`
	Slack   SlackConfig   `yaml:"slack,omitempty"`
}

// HubSpotConfig defines the HubSpot CRM connection
type HubSpotConfig struct {
	Enabled      bool   `yaml:"enabled"`
	BaseURL      string `yaml:"base_url,omitempty"`
	APIKey       string `yaml:"api_key,omitempty"`
	SyncSchedule string `yaml:"sync_schedule,omitempty"`
}

// GongConfig defines the Gong call-recording connection
type GongConfig struct {
	Enabled      bool   `yaml:"enabled"`
	BaseURL      string `yaml:"base_url,omitempty"`
	AccessKey    string `yaml:"access_key,omitempty"`
	SecretKey    string `yaml:"secret_key,omitempty"`
	SyncSchedule string `yaml:"sync_schedule,omitempty"`
}

// SlackConfig defines the Slack bot connection
type SlackConfig struct {
	Enabled        bool   `yaml:"enabled"`
	BaseURL        string `yaml:"base_url,omitempty"`
	BotToken       string `yaml:"bot_token,omitempty"`
	DefaultChannel string `yaml:"default_channel,omitempty"`
}

// SessionsConfig defines chat session settings
type SessionsConfig struct {
	HistoryLimit int `yaml:"history_limit,omitempty"`
	MaxSessions  int `yaml:"max_sessions,omitempty"`
}

func parseDurationOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// Load reads and validates a config file. Values of the form ${VAR} are
// expanded from the environment before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.Expand(string(data), func(key string) string {
		return os.Getenv(key)
	})

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Routing.DefaultTask == "" {
		c.Routing.DefaultTask = "chat"
	}
	if c.Ledger.Path == "" {
		c.Ledger.Path = "data/sophia.db"
	}
	if c.Ledger.HistoryLimit == 0 {
		c.Ledger.HistoryLimit = 100
	}
	if c.Health.FailureThreshold == 0 {
		c.Health.FailureThreshold = 3
	}
	if c.Health.HistorySize == 0 {
		c.Health.HistorySize = 10
	}
	if c.Sessions.HistoryLimit == 0 {
		c.Sessions.HistoryLimit = 50
	}
	if c.Sessions.MaxSessions == 0 {
		c.Sessions.MaxSessions = 1000
	}
}

// Validate checks cross-field consistency
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("config: at least one provider is required")
	}
	names := make(map[string]bool, len(c.Providers))
	for _, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("config: provider with empty name")
		}
		if names[p.Name] {
			return fmt.Errorf("config: duplicate provider %q", p.Name)
		}
		names[p.Name] = true
		switch p.Type {
		case "portkey", "openrouter":
			// hosted defaults, base_url optional
		case "openai-compatible":
			if p.BaseURL == "" {
				return fmt.Errorf("config: provider %q requires base_url", p.Name)
			}
		case "cortex":
			if p.Account == "" {
				return fmt.Errorf("config: provider %q requires account", p.Name)
			}
		default:
			return fmt.Errorf("config: provider %q has unsupported type %q", p.Name, p.Type)
		}
	}
	for _, name := range c.Routing.Chain {
		if !names[name] {
			return fmt.Errorf("config: chain references unknown provider %q", name)
		}
	}
	for _, m := range c.Routing.Models {
		if m.Name == "" {
			return fmt.Errorf("config: model with empty name")
		}
		if !names[m.Provider] {
			return fmt.Errorf("config: model %q references unknown provider %q", m.Name, m.Provider)
		}
	}
	return nil
}
