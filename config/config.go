// Package config loads settings shared by the server and the batch jobs.
// Values come from built-in defaults, then an optional YAML file, then the
// environment.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const devJWTSecret = "your_secret_key_please_change_in_production"

type Config struct {
	ListenAddr  string       `mapstructure:"listen-addr"`
	DatabaseURL string       `mapstructure:"database-url"`
	JWTSecret   string       `mapstructure:"jwt-secret"`
	Env         string       `mapstructure:"env"`
	Log         LogConfig    `mapstructure:"log"`
	CORS        CORSConfig   `mapstructure:"cors"`
	Gemini      GeminiConfig `mapstructure:"gemini"`
}

type LogConfig struct {
	JSON  bool `mapstructure:"json"`
	Debug bool `mapstructure:"debug"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed-origins"`
}

type GeminiConfig struct {
	APIKey    string `mapstructure:"api-key"`
	Model     string `mapstructure:"model"`
	BatchSize int    `mapstructure:"batch-size"`
}

// envBindings maps config keys to the environment variables that override them.
var envBindings = map[string]string{
	"listen-addr":          "LISTEN_ADDR",
	"database-url":         "DATABASE_URL",
	"jwt-secret":           "JWT_SECRET",
	"env":                  "GO_ENV",
	"log.json":             "LOG_JSON",
	"log.debug":            "LOG_DEBUG",
	"cors.allowed-origins": "CORS_ALLOWED_ORIGINS",
	"gemini.api-key":       "GEMINI_API_KEY",
	"gemini.model":         "GEMINI_EMBEDDING_MODEL",
	"gemini.batch-size":    "GEMINI_BATCH_SIZE",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen-addr", ":8080")
	v.SetDefault("database-url", "user=admin password=password dbname=affinitydb sslmode=disable")
	v.SetDefault("jwt-secret", devJWTSecret)
	v.SetDefault("env", "development")
	v.SetDefault("log.json", false)
	v.SetDefault("log.debug", false)
	v.SetDefault("cors.allowed-origins", []string{
		"http://localhost:5173", "http://127.0.0.1:5173",
		"http://localhost:3001", "http://127.0.0.1:3001",
	})
	v.SetDefault("gemini.model", "text-embedding-004")
	v.SetDefault("gemini.batch-size", 100)
}

// Load reads the configuration. path may be empty, in which case only the
// defaults and the environment are used.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("binding %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsProduction reports whether the process runs outside development.
func (c *Config) IsProduction() bool {
	return c.Env != "" && c.Env != "development"
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return errors.New("database-url is required")
	}
	if c.IsProduction() && (c.JWTSecret == "" || c.JWTSecret == devJWTSecret) {
		return errors.New("jwt-secret must be set in production")
	}
	if c.Gemini.BatchSize < 1 {
		return fmt.Errorf("gemini.batch-size must be positive, got %d", c.Gemini.BatchSize)
	}
	return nil
}
