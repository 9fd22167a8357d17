// Package config handles Sage's YAML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for Sage.
type Config struct {
	Version  int            `yaml:"version"`
	Model    ModelConfig    `yaml:"model"`
	Para     ParaConfig     `yaml:"para"`
	Store    StoreConfig    `yaml:"store"`
	Agent    AgentConfig    `yaml:"agent"`
	Logging  LoggingConfig  `yaml:"logging"`
	Channels ChannelsConfig `yaml:"channels"`
}

// ModelConfig configures the model backend.
type ModelConfig struct {
	BaseURL        string  `yaml:"base_url"`
	APIKey         string  `yaml:"api_key"`
	Model          string  `yaml:"model"`
	Temperature    float64 `yaml:"temperature"`
	MaxTokens      int     `yaml:"max_tokens"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

// ParaConfig configures the external PARA context provider.
type ParaConfig struct {
	Enabled        bool   `yaml:"enabled"`
	BaseURL        string `yaml:"base_url"`
	Token          string `yaml:"token"`
	EnrichResource bool   `yaml:"enrich_resources"`
}

// StoreConfig configures the record store.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// AgentConfig tunes the orchestrator windows.
type AgentConfig struct {
	HistoryLimit int `yaml:"history_limit"`
	MemoryLimit  int `yaml:"memory_limit"`
	PromptTurns  int `yaml:"prompt_turns"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
	File   string `yaml:"file"`   // empty = stdout
}

// ChannelsConfig configures the messaging channel adapters.
type ChannelsConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Discord  DiscordConfig  `yaml:"discord"`
	Slack    SlackConfig    `yaml:"slack"`
}

// TelegramConfig configures the Telegram adapter.
type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
}

// DiscordConfig configures the Discord adapter.
type DiscordConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
}

// SlackConfig configures the Slack adapter (Socket Mode).
type SlackConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Token    string `yaml:"token"`
	AppToken string `yaml:"app_token"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Version: 1,
		Model: ModelConfig{
			BaseURL:        "http://localhost:11434",
			Model:          "llama3.1:8b",
			Temperature:    0.7,
			MaxTokens:      1024,
			TimeoutSeconds: 120,
		},
		Para: ParaConfig{
			Enabled:        false,
			BaseURL:        "http://localhost:18900",
			EnrichResource: true,
		},
		Store: StoreConfig{
			Path: filepath.Join(defaultDir(), "sage.db"),
		},
		Agent: AgentConfig{
			HistoryLimit: 20,
			MemoryLimit:  10,
			PromptTurns:  10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(defaultDir(), "config.yaml")
}

// defaultDir returns Sage's home directory (~/.sage).
func defaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".sage"
	}
	return filepath.Join(home, ".sage")
}

// Load reads configuration from path. An empty path loads the default
// location. Secrets of the form ${ENV_VAR} are expanded from the
// environment.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.expandSecrets()
	return cfg, nil
}

// Save writes the configuration to path, creating parent directories as
// needed. An empty path saves to the default location.
func (c *Config) Save(path string) error {
	if path == "" {
		path = DefaultPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0600)
}

// expandSecrets resolves ${ENV_VAR} references in credential fields.
func (c *Config) expandSecrets() {
	c.Model.APIKey = expandEnvRef(c.Model.APIKey)
	c.Para.Token = expandEnvRef(c.Para.Token)
	c.Channels.Telegram.Token = expandEnvRef(c.Channels.Telegram.Token)
	c.Channels.Discord.Token = expandEnvRef(c.Channels.Discord.Token)
	c.Channels.Slack.Token = expandEnvRef(c.Channels.Slack.Token)
	c.Channels.Slack.AppToken = expandEnvRef(c.Channels.Slack.AppToken)
}

// expandEnvRef expands a "${VAR}" reference to its environment value.
// Any other value is returned unchanged.
func expandEnvRef(v string) string {
	if len(v) > 3 && v[0] == '$' && v[1] == '{' && v[len(v)-1] == '}' {
		return os.Getenv(v[2 : len(v)-1])
	}
	return v
}
