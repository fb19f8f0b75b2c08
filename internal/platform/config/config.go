// Package config loads layered configuration: built-in defaults, then an
// optional YAML file, then environment variables. ENV > file > defaults.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "MEDIVAULT_CONFIG"

// defaultConfigPaths are searched in order; the first file found wins.
var defaultConfigPaths = []string{
	"medivault.yaml",
	"medivault.yml",
	"/etc/medivault/config.yaml",
}

const envPrefix = "MEDIVAULT_"

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Auth      AuthConfig      `koanf:"auth"`
	Crypto    CryptoConfig    `koanf:"crypto"`
	Audit     AuditConfig     `koanf:"audit"`
	Redis     RedisConfig     `koanf:"redis"`
	Postgres  PostgresConfig  `koanf:"postgres"`
	Logging   LoggingConfig   `koanf:"logging"`
	Bootstrap BootstrapConfig `koanf:"bootstrap"`
}

// BootstrapConfig seeds one operator credential into the in-memory identity
// store at startup. Leave Username empty when an external identity directory
// provides credentials.
type BootstrapConfig struct {
	Username       string `koanf:"username"`
	Password       string `koanf:"password"`
	OrganizationID string `koanf:"organization_id"`
	Role           string `koanf:"role"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type AuthConfig struct {
	SigningKey    string        `koanf:"signing_key"`
	Issuer        string        `koanf:"issuer"`
	Audience      string        `koanf:"audience"`
	SessionTTL    time.Duration `koanf:"session_ttl"`
	MaxFailures   int           `koanf:"max_failures"`
	FailureWindow time.Duration `koanf:"failure_window"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

type CryptoConfig struct {
	// MasterKey is the hex-encoded 32-byte key the local custodian wraps
	// data keys under. Hex keeps it environment-variable friendly.
	MasterKey string `koanf:"master_key"`

	// AuditSalt is the hex-encoded salt for subject identifier hashing.
	AuditSalt string `koanf:"audit_salt"`
}

type AuditConfig struct {
	FlushInterval time.Duration `koanf:"flush_interval"`
	BatchSize     int           `koanf:"batch_size"`
}

type RedisConfig struct {
	URL          string        `koanf:"url"`
	PoolSize     int           `koanf:"pool_size"`
	MinIdleConns int           `koanf:"min_idle_conns"`
	DialTimeout  time.Duration `koanf:"dial_timeout"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

type PostgresConfig struct {
	// DSN empty means the in-memory audit store is used.
	DSN string `koanf:"dsn"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8443",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Auth: AuthConfig{
			Issuer:        "medivault",
			Audience:      "medivault-api",
			SessionTTL:    time.Hour,
			MaxFailures:   5,
			FailureWindow: 15 * time.Minute,
			SweepInterval: 5 * time.Minute,
		},
		Audit: AuditConfig{
			FlushInterval: 30 * time.Second,
			BatchSize:     256,
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file, and
// MEDIVAULT_* environment variables (SERVER_ADDR -> server.addr).
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", func(name string) string {
		// MEDIVAULT_AUTH_SESSION_TTL -> auth.session_ttl: the first
		// underscore separates the section from the key.
		trimmed := strings.ToLower(strings.TrimPrefix(name, envPrefix))
		return strings.Replace(trimmed, "_", ".", 1)
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range defaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func (c *Config) Validate() error {
	if c.Auth.SigningKey == "" {
		return fmt.Errorf("auth.signing_key is required")
	}
	if _, err := c.MasterKey(); err != nil {
		return err
	}
	if _, err := c.AuditSalt(); err != nil {
		return err
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("auth.session_ttl must be positive")
	}
	if c.Auth.MaxFailures <= 0 {
		return fmt.Errorf("auth.max_failures must be positive")
	}
	return nil
}

// MasterKey decodes the hex master key and checks its length.
func (c *Config) MasterKey() ([]byte, error) {
	key, err := hex.DecodeString(c.Crypto.MasterKey)
	if err != nil {
		return nil, fmt.Errorf("crypto.master_key is not valid hex")
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("crypto.master_key must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

// AuditSalt decodes the hex audit salt.
func (c *Config) AuditSalt() ([]byte, error) {
	salt, err := hex.DecodeString(c.Crypto.AuditSalt)
	if err != nil {
		return nil, fmt.Errorf("crypto.audit_salt is not valid hex")
	}
	if len(salt) < 16 {
		return nil, fmt.Errorf("crypto.audit_salt must decode to at least 16 bytes")
	}
	return salt, nil
}
