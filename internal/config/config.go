package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the config file name looked up next to the binary.
const DefaultConfigFile = "config.yaml"

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr string `yaml:"addr"` // Listen address, host:port.
	Dev  bool   `yaml:"dev"`  // Development mode exposes internal error details.
}

// DatabaseConfig holds backing store settings.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"` // SQLite path or PostgreSQL DSN.
}

// JWTConfig holds token signing settings.
type JWTConfig struct {
	Secret      string `yaml:"secret"`       // HMAC signing secret.
	ExpiryHours int    `yaml:"expiry-hours"` // Token lifetime in hours.
}

// Expiry returns the configured token lifetime.
func (c JWTConfig) Expiry() time.Duration {
	hours := c.ExpiryHours
	if hours <= 0 {
		hours = 24 * 7
	}
	return time.Duration(hours) * time.Hour
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level      string `yaml:"level"`        // logrus level name.
	File       string `yaml:"file"`         // Log file path; empty logs to stderr only.
	MaxSizeMB  int    `yaml:"max-size-mb"`  // Rotate after this many megabytes.
	MaxBackups int    `yaml:"max-backups"`  // Rotated files to retain.
	MaxAgeDays int    `yaml:"max-age-days"` // Days to retain rotated files.
}

// RedisConfig holds optional cache settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`     // host:port; empty disables the cache.
	Password string `yaml:"password"` // Optional auth password.
	DB       int    `yaml:"db"`       // Redis logical database.
}

// AdminConfig holds the bootstrap admin credentials.
type AdminConfig struct {
	Email    string `yaml:"email"`    // Bootstrap admin email.
	Password string `yaml:"password"` // Bootstrap admin password.
}

// Config is the root configuration document.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	JWT      JWTConfig      `yaml:"jwt"`
	Log      LogConfig      `yaml:"log"`
	Redis    RedisConfig    `yaml:"redis"`
	Admin    AdminConfig    `yaml:"admin"`
}

// Load reads and validates the configuration file at path, applying defaults
// for optional fields.
func Load(path string) (*Config, error) {
	resolved := ResolveConfigPath(path)
	data, errRead := os.ReadFile(resolved)
	if errRead != nil {
		return nil, fmt.Errorf("config: read %s: %w", resolved, errRead)
	}

	cfg := defaultConfig()
	if errDecode := yaml.Unmarshal(data, cfg); errDecode != nil {
		return nil, fmt.Errorf("config: parse %s: %w", resolved, errDecode)
	}
	if errValidate := cfg.validate(); errValidate != nil {
		return nil, errValidate
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server:   ServerConfig{Addr: ":8080"},
		Database: DatabaseConfig{DSN: "data/cardshop.db"},
		JWT:      JWTConfig{ExpiryHours: 24 * 7},
		Log:      LogConfig{Level: "info", MaxSizeMB: 100, MaxBackups: 3, MaxAgeDays: 28},
		Admin:    AdminConfig{Email: "dora@gmail.com", Password: "doraai"},
	}
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("config: database.dsn is required")
	}
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return fmt.Errorf("config: jwt.secret is required")
	}
	return nil
}

// ResolveConfigPath expands a possibly relative or empty config path.
func ResolveConfigPath(path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		trimmed = DefaultConfigFile
	}
	if filepath.IsAbs(trimmed) {
		return trimmed
	}
	wd, errWd := os.Getwd()
	if errWd != nil {
		return trimmed
	}
	return filepath.Join(wd, trimmed)
}
