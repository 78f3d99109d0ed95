package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the server configuration, loaded from the environment.
type Config struct {
	Port         int
	MasterSecret string
	GinMode      string
	TLSCertFile  string
	TLSKeyFile   string
	TokenExpiry  time.Duration
	StateFile    string
	LogLevel     string
}

// AgentConfig holds the agent configuration, loaded from the environment.
type AgentConfig struct {
	URL      string
	Token    string
	Interval time.Duration
	LogLevel string
}

type Env interface {
	Getenv(key string) string
}

type osEnv struct{}

func (osEnv) Getenv(key string) string { return os.Getenv(key) }

func LoadConfig() (Config, error) {
	return LoadConfigFromEnv(osEnv{})
}

func LoadConfigFromEnv(env Env) (Config, error) {
	cfg := Config{
		Port:        3000,
		GinMode:     "release",
		TokenExpiry: 7 * 24 * time.Hour,
		LogLevel:    "info",
	}

	if raw := env.Getenv("PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port <= 0 || port > 65535 {
			return Config{}, fmt.Errorf("invalid PORT")
		}
		cfg.Port = port
	}

	cfg.MasterSecret = env.Getenv("MASTER_SECRET")
	if cfg.MasterSecret == "" {
		return Config{}, fmt.Errorf("MASTER_SECRET is required")
	}

	if raw := env.Getenv("GIN_MODE"); raw != "" {
		cfg.GinMode = raw
	}

	cfg.TLSCertFile = env.Getenv("TLS_CERT_FILE")
	cfg.TLSKeyFile = env.Getenv("TLS_KEY_FILE")
	cfg.StateFile = env.Getenv("STATE_FILE")

	if raw := env.Getenv("LOG_LEVEL"); raw != "" {
		cfg.LogLevel = raw
	}

	if raw := env.Getenv("TOKEN_EXPIRY_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return Config{}, fmt.Errorf("invalid TOKEN_EXPIRY_SECONDS")
		}
		cfg.TokenExpiry = time.Duration(seconds) * time.Second
	}

	return cfg, nil
}

func LoadAgentConfig() (AgentConfig, error) {
	return LoadAgentConfigFromEnv(osEnv{})
}

func LoadAgentConfigFromEnv(env Env) (AgentConfig, error) {
	cfg := AgentConfig{
		Interval: 500 * time.Millisecond,
		LogLevel: "info",
	}

	cfg.URL = env.Getenv("AGENT_URL")
	if cfg.URL == "" {
		return AgentConfig{}, fmt.Errorf("AGENT_URL is required")
	}

	cfg.Token = env.Getenv("AGENT_TOKEN")
	if cfg.Token == "" {
		return AgentConfig{}, fmt.Errorf("AGENT_TOKEN is required")
	}

	if raw := env.Getenv("AGENT_INTERVAL_MS"); raw != "" {
		ms, err := strconv.Atoi(raw)
		if err != nil || ms <= 0 {
			return AgentConfig{}, fmt.Errorf("invalid AGENT_INTERVAL_MS")
		}
		cfg.Interval = time.Duration(ms) * time.Millisecond
	}

	if raw := env.Getenv("LOG_LEVEL"); raw != "" {
		cfg.LogLevel = raw
	}

	return cfg, nil
}
