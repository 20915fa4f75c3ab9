// Package config loads the chatcache configuration surface: a YAML
// file with env-var overrides for secrets.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the full recognized option set.
type Config struct {
	DataPath string `yaml:"data_path"`

	TTLUsersHours    float64 `yaml:"ttl_users_hours"`
	TTLChannelsHours float64 `yaml:"ttl_channels_hours"`
	TTLMembersHours  float64 `yaml:"ttl_members_hours"`

	MaxAttempts     int     `yaml:"max_attempts"`
	InitialDelayMs  int     `yaml:"initial_delay_ms"`
	MaxDelayMs      int     `yaml:"max_delay_ms"`
	ExponentialBase float64 `yaml:"exponential_base"`

	RequestsPerMinute float64 `yaml:"requests_per_minute"`

	TimeoutSeconds int `yaml:"timeout_seconds"`
	MaxConnections int `yaml:"max_connections"`

	BotToken  string `yaml:"-"`
	UserToken string `yaml:"-"`

	LogLevel        string `yaml:"log_level"`
	MCPInstructions string `yaml:"mcp_instructions"`
}

const (
	defaultConfigEnv = "CHATCACHE_CONFIG_FILE"
	defaultFileName  = "chatcache.yaml"

	envBotToken  = "CHATCACHE_BOT_TOKEN"
	envUserToken = "CHATCACHE_USER_TOKEN"
)

// ResolvePath returns the config file path: $CHATCACHE_CONFIG_FILE if set,
// else ./chatcache.yaml.
func ResolvePath() string {
	if v := strings.TrimSpace(os.Getenv(defaultConfigEnv)); v != "" {
		return v
	}
	return filepath.Join(".", defaultFileName)
}

// Load reads path (falling back to defaults if the file is absent),
// then overlays credentials from the environment — tokens never live in
// the YAML file.
func Load(path string) (*Config, error) {
	cfg := defaults()

	path = strings.TrimSpace(path)
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// no file: defaults stand
		default:
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cfg.BotToken = strings.TrimSpace(os.Getenv(envBotToken))
	cfg.UserToken = strings.TrimSpace(os.Getenv(envUserToken))

	if cfg.BotToken == "" && cfg.UserToken == "" {
		return nil, fmt.Errorf("config: at least one of %s or %s must be set", envBotToken, envUserToken)
	}

	return cfg, nil
}

func defaults() *Config {
	home, _ := os.UserHomeDir()
	dataPath := filepath.Join(home, ".chatcache")

	return &Config{
		DataPath:          dataPath,
		TTLUsersHours:     24,
		TTLChannelsHours:  24,
		TTLMembersHours:   24,
		MaxAttempts:       3,
		InitialDelayMs:    1000,
		MaxDelayMs:        60000,
		ExponentialBase:   2.0,
		RequestsPerMinute: 20,
		TimeoutSeconds:    30,
		MaxConnections:    10,
		LogLevel:          "info",
	}
}
