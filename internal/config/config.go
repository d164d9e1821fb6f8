// Package config loads service configuration from environment
// variables, with an optional .env file for local development.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config groups the full service configuration.
type Config struct {
	App   AppConfig
	DB    DBConfig
	HTTP  HTTPConfig
	Auth  AuthConfig
	Audit AuditConfig
}

// AppConfig carries general application settings.
type AppConfig struct {
	Env      string // development, staging, production
	Name     string
	LogLevel string
}

// DBConfig holds PostgreSQL connection settings. When DatabaseURL is
// set it wins over the individual fields.
type DBConfig struct {
	DatabaseURL string
	Host        string
	Port        int
	User        string
	Password    string
	Name        string
	SSLMode     string
}

// ConnectionString returns the DSN to use, preferring DATABASE_URL.
func (c DBConfig) ConnectionString() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Name,
		RawQuery: fmt.Sprintf("sslmode=%s", c.SSLMode),
	}
	return u.String()
}

// HTTPConfig configures the operational HTTP listener.
type HTTPConfig struct {
	Host string
	Port int
}

// Addr returns the listen address as host:port.
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AuthConfig configures actor token verification.
type AuthConfig struct {
	Secret string
	Issuer string
}

// AuditConfig configures the audit pipeline.
type AuditConfig struct {
	// Store selects the record store backend: "postgres" or "file".
	Store         string
	Dir           string
	FlushInterval time.Duration
	FlushTimeout  time.Duration
	RetentionDays int
}

// Load reads configuration from the environment, falling back to a
// .env file in the working directory. Environment variables win.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig()

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_NAME", "accessgov")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_NAME", "accessgov")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("HTTP_HOST", "0.0.0.0")
	v.SetDefault("HTTP_PORT", 8080)
	v.SetDefault("AUTH_ISSUER", "accessgov")
	v.SetDefault("AUDIT_STORE", "postgres")
	v.SetDefault("AUDIT_DIR", "./audit-logs")
	v.SetDefault("AUDIT_FLUSH_INTERVAL", "30s")
	v.SetDefault("AUDIT_FLUSH_TIMEOUT", "10s")
	v.SetDefault("AUDIT_RETENTION_DAYS", 90)

	cfg := &Config{
		App: AppConfig{
			Env:      v.GetString("APP_ENV"),
			Name:     v.GetString("APP_NAME"),
			LogLevel: v.GetString("LOG_LEVEL"),
		},
		DB: DBConfig{
			DatabaseURL: v.GetString("DATABASE_URL"),
			Host:        v.GetString("DB_HOST"),
			Port:        v.GetInt("DB_PORT"),
			User:        v.GetString("DB_USER"),
			Password:    v.GetString("DB_PASSWORD"),
			Name:        v.GetString("DB_NAME"),
			SSLMode:     v.GetString("DB_SSLMODE"),
		},
		HTTP: HTTPConfig{
			Host: v.GetString("HTTP_HOST"),
			Port: v.GetInt("HTTP_PORT"),
		},
		Auth: AuthConfig{
			Secret: v.GetString("AUTH_SECRET"),
			Issuer: v.GetString("AUTH_ISSUER"),
		},
		Audit: AuditConfig{
			Store:         v.GetString("AUDIT_STORE"),
			Dir:           v.GetString("AUDIT_DIR"),
			FlushInterval: v.GetDuration("AUDIT_FLUSH_INTERVAL"),
			FlushTimeout:  v.GetDuration("AUDIT_FLUSH_TIMEOUT"),
			RetentionDays: v.GetInt("AUDIT_RETENTION_DAYS"),
		},
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) validate() error {
	switch cfg.Audit.Store {
	case "postgres", "file":
	default:
		return fmt.Errorf("config: unknown audit store %q", cfg.Audit.Store)
	}
	if cfg.Audit.FlushInterval <= 0 {
		return fmt.Errorf("config: audit flush interval must be positive")
	}
	if cfg.Audit.RetentionDays <= 0 {
		return fmt.Errorf("config: audit retention days must be positive")
	}
	return nil
}
