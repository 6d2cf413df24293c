package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig is the process-wide configuration. It is loaded once at startup
// and passed by value into the components that need it; nothing mutates it
// after Load returns.
type AppConfig struct {
	EnvName  string         `yaml:"env_name"`
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth_token"`
	Database DatabaseConfig `yaml:"database"`
	CORS     CORSConfig     `yaml:"cors"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// AuthConfig controls session-token issuance and the auth gate.
type AuthConfig struct {
	// Secret is the base64-encoded HS256 signing secret.
	Secret string `yaml:"secret"`
	// ExpireSeconds is the session-token TTL.
	ExpireSeconds int64 `yaml:"expire"`
	// Prefix is the bearer prefix expected in the Authorization header.
	Prefix string `yaml:"prefix"`
	// KeepAlive makes /user/info hand back a refreshed token.
	KeepAlive bool `yaml:"keep_alive"`
	// Whitelist lists paths the auth gate never rejects.
	Whitelist []string `yaml:"whitelist"`
}

// Expire returns the session-token TTL as a duration.
func (a AuthConfig) Expire() time.Duration {
	return time.Duration(a.ExpireSeconds) * time.Second
}

// DatabaseConfig selects and configures the backing database. Driver is one
// of "sqlite", "mysql" or "postgres".
type DatabaseConfig struct {
	Driver          string `yaml:"driver"`
	DSN             string `yaml:"dsn"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime string `yaml:"conn_max_lifetime"`
}

// CORSConfig controls cross-origin settings.
type CORSConfig struct {
	AllowOrigins []string `yaml:"allow_origins"`
	AllowMethods []string `yaml:"allow_methods"`
	AllowHeaders []string `yaml:"allow_headers"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns an AppConfig pre-filled with development defaults. The
// default secret matches the documented sample config and must be replaced
// in production.
func Default() AppConfig {
	return AppConfig{
		EnvName: "dev",
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			ShutdownTimeout: "30s",
		},
		Auth: AuthConfig{
			Secret:        "8Xui8SN4mI+7egV/9dlfYYLGQJeEx4+DwmSQLwDVXJg=",
			ExpireSeconds: 24 * 60 * 60,
			Prefix:        "Token ",
			KeepAlive:     false,
			Whitelist:     []string{"/user/register", "/user/login"},
		},
		Database: DatabaseConfig{
			Driver:          "sqlite",
			DSN:             "data.sqlite3",
			MaxOpenConns:    32,
			MaxIdleConns:    8,
			ConnMaxLifetime: "5m",
		},
		CORS: CORSConfig{
			AllowOrigins: []string{"*"},
			AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders: []string{"Accept", "Authorization", "Content-Type", "X-API-Token-Id"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads and parses a YAML configuration file on top of the defaults.
// Environment variables referenced as ${VAR_NAME} are expanded first.
func Load(path string) (AppConfig, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}
	content := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(content), &cfg); err != nil {
		return cfg, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// WriteDefault writes the default configuration to a YAML file.
func WriteDefault(path string) error {
	cfg := Default()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
