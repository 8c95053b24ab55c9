package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	Server     ServerConfig      `json:"server"`
	Redis      RedisConfig       `json:"redis"`
	Database   DatabaseConfig    `json:"database"`
	JWT        JWTConfig         `json:"jwt"`
	AI         AIConfig          `json:"ai"`
	Jobs       JobsConfig        `json:"jobs"`
	RateLimits []RateLimitConfig `json:"rate_limits"`
}

type ServerConfig struct {
	Port        string `json:"port"`
	Environment string `json:"environment"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type DatabaseConfig struct {
	DSN string `json:"dsn"`
}

type JWTConfig struct {
	Secret string `json:"secret"`
}

type AIConfig struct {
	ProviderURL          string `json:"provider_url"`
	TimeoutSeconds       int    `json:"timeout_seconds"`
	MaxTokensPerRequest  int    `json:"max_tokens_per_request"`
	DefaultMonthlyBudget int64  `json:"default_monthly_budget"`
}

type JobsConfig struct {
	// Shared secret the external scheduler must present to trigger jobs
	ResetToken string `json:"reset_token"`
	// Days of daily usage rows kept before the retention job trims them
	UsageRetentionDays int `json:"usage_retention_days"`
}

// Per-preset override for the built-in quota presets
type RateLimitConfig struct {
	Preset        string `json:"preset"`
	MaxRequests   int    `json:"max_requests"`
	WindowSeconds int    `json:"window_seconds"`
}

func (r *RedisConfig) GetRedisAddr() string {
	return r.Host + ":" + r.Port
}

func Load(path string) (*Config, error) {
	var config Config

	if file, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(file, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	config.applyDefaults()
	config.applyEnv()

	if config.JWT.Secret == "" {
		return nil, fmt.Errorf("JWT secret is required (set JWT_SECRET)")
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.Environment == "" {
		c.Server.Environment = "development"
	}
	if c.Redis.Host == "" {
		c.Redis.Host = "localhost"
	}
	if c.Redis.Port == "" {
		c.Redis.Port = "6379"
	}
	if c.AI.TimeoutSeconds <= 0 {
		c.AI.TimeoutSeconds = 60
	}
	if c.AI.MaxTokensPerRequest <= 0 {
		c.AI.MaxTokensPerRequest = 4096
	}
	if c.AI.DefaultMonthlyBudget <= 0 {
		c.AI.DefaultMonthlyBudget = 1_000_000
	}
	if c.Jobs.UsageRetentionDays <= 0 {
		c.Jobs.UsageRetentionDays = 365
	}
}

// Environment variables take precedence over the config file
func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("ENVIRONMENT"); v != "" {
		c.Server.Environment = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}
	if v := os.Getenv("REDIS_PORT"); v != "" {
		c.Redis.Port = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.Redis.DB = db
		}
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.JWT.Secret = v
	}
	if v := os.Getenv("AI_PROVIDER_URL"); v != "" {
		c.AI.ProviderURL = v
	}
	if v := os.Getenv("RESET_JOB_TOKEN"); v != "" {
		c.Jobs.ResetToken = v
	}
}
