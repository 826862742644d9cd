package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the daemon's full configuration. Values load from a YAML file
// and can be overridden by environment variables.
type Config struct {
	Server struct {
		// BaseURL is the court server's REST root, e.g. http://host:3000.
		BaseURL string `yaml:"base_url"`
		// ChannelURL is the push-channel websocket URL, e.g. ws://host:3000/socket.
		ChannelURL string `yaml:"channel_url"`
		Room       string `yaml:"room"`
		Token      string `yaml:"token"`
		AdminID    string `yaml:"admin_id"`
	} `yaml:"server"`

	Confirm struct {
		TimeoutSec int `yaml:"timeout_sec"`
	} `yaml:"confirm"`

	History struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"history"`

	Viewer struct {
		Enabled bool   `yaml:"enabled"`
		Addr    string `yaml:"addr"`
	} `yaml:"viewer"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Load reads the YAML file at path (optional) and applies environment
// overrides and defaults.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.Server.BaseURL = getEnv("COURTSIDE_BASE_URL", cfg.Server.BaseURL)
	cfg.Server.ChannelURL = getEnv("COURTSIDE_CHANNEL_URL", cfg.Server.ChannelURL)
	cfg.Server.Room = getEnv("COURTSIDE_ROOM", cfg.Server.Room)
	cfg.Server.Token = getEnv("COURTSIDE_TOKEN", cfg.Server.Token)
	cfg.Server.AdminID = getEnv("COURTSIDE_ADMIN_ID", cfg.Server.AdminID)
	cfg.History.Path = getEnv("COURTSIDE_HISTORY_PATH", cfg.History.Path)
	cfg.Viewer.Addr = getEnv("COURTSIDE_VIEWER_ADDR", cfg.Viewer.Addr)
	cfg.Log.Level = getEnv("COURTSIDE_LOG_LEVEL", cfg.Log.Level)
	cfg.Confirm.TimeoutSec = getEnvAsInt("COURTSIDE_CONFIRM_TIMEOUT_SEC", cfg.Confirm.TimeoutSec)

	applyDefaults(&cfg)

	if cfg.Server.BaseURL == "" {
		return nil, fmt.Errorf("server.base_url is required")
	}
	if cfg.Server.ChannelURL == "" {
		return nil, fmt.Errorf("server.channel_url is required")
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Room == "" {
		cfg.Server.Room = "court"
	}
	if cfg.Confirm.TimeoutSec == 0 {
		cfg.Confirm.TimeoutSec = 60
	}
	if cfg.History.Path == "" {
		cfg.History.Path = "courtside.db"
	}
	if cfg.Viewer.Addr == "" {
		cfg.Viewer.Addr = ":8080"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// ConfirmTimeout returns the confirmation timeout as a duration.
func (c *Config) ConfirmTimeout() time.Duration {
	return time.Duration(c.Confirm.TimeoutSec) * time.Second
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
