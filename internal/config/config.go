// Package config loads server configuration from an optional YAML file
// and HEARTH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mmynk/hearth/internal/crypt"
	"github.com/mmynk/hearth/internal/invite"
)

const (
	// EnvPrefix namespaces environment overrides, e.g. HEARTH_STORAGE_PATH
	// for storage.path.
	EnvPrefix = "HEARTH"

	DefaultPort             = 8080
	DefaultTokenTTL         = 24 * time.Hour
	DefaultSessionTTL       = 30 * time.Minute
	DefaultSessionCacheSize = 1024

	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// StorageConfig selects and locates the storage backend.
type StorageConfig struct {
	Backend string
	// Path is the sqlite database file or the badger directory.
	Path string
	// InMemory runs badger without touching disk. Ignored for sqlite.
	InMemory bool
}

// AuthConfig holds token settings.
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// SessionConfig bounds the open-session registry.
type SessionConfig struct {
	TTL       time.Duration
	CacheSize int
}

// Config is the server configuration.
type Config struct {
	Host          string
	Port          int
	LogLevel      string
	Storage       StorageConfig
	Auth          AuthConfig
	Session       SessionConfig
	KDFIterations int
	InviteTTL     time.Duration
}

// NewDefaultConfig creates a new Config with default settings. The JWT
// secret has no default.
func NewDefaultConfig() *Config {
	return &Config{
		Port:     DefaultPort,
		LogLevel: "info",
		Storage: StorageConfig{
			Backend: BackendSQLite,
			Path:    "./data/hearth.db",
		},
		Auth: AuthConfig{
			TokenTTL: DefaultTokenTTL,
		},
		Session: SessionConfig{
			TTL:       DefaultSessionTTL,
			CacheSize: DefaultSessionCacheSize,
		},
		KDFIterations: crypt.DefaultIterations,
		InviteTTL:     invite.DefaultTTL,
	}
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := NewDefaultConfig()
	v.SetDefault("host", d.Host)
	v.SetDefault("port", d.Port)
	v.SetDefault("log.level", d.LogLevel)
	v.SetDefault("storage.backend", d.Storage.Backend)
	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("storage.in_memory", d.Storage.InMemory)
	v.SetDefault("auth.jwt_secret", d.Auth.JWTSecret)
	v.SetDefault("auth.token_ttl", d.Auth.TokenTTL)
	v.SetDefault("session.ttl", d.Session.TTL)
	v.SetDefault("session.cache_size", d.Session.CacheSize)
	v.SetDefault("crypto.kdf_iterations", d.KDFIterations)
	v.SetDefault("invite.ttl", d.InviteTTL)
	return v
}

// Load reads configFile (if not empty) and the environment on top of the
// defaults, then validates the result.
func Load(configFile string) (*Config, error) {
	v := newViper()
	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	config := &Config{
		Host:     v.GetString("host"),
		Port:     v.GetInt("port"),
		LogLevel: v.GetString("log.level"),
		Storage: StorageConfig{
			Backend:  strings.ToLower(v.GetString("storage.backend")),
			Path:     v.GetString("storage.path"),
			InMemory: v.GetBool("storage.in_memory"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("auth.jwt_secret"),
			TokenTTL:  v.GetDuration("auth.token_ttl"),
		},
		Session: SessionConfig{
			TTL:       v.GetDuration("session.ttl"),
			CacheSize: v.GetInt("session.cache_size"),
		},
		KDFIterations: v.GetInt("crypto.kdf_iterations"),
		InviteTTL:     v.GetDuration("invite.ttl"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the configuration for values no command can run with.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendSQLite, BackendBadger:
	default:
		return fmt.Errorf("%w: unknown storage backend %q", ErrInvalidConfig, c.Storage.Backend)
	}
	if c.Storage.Path == "" && !(c.Storage.Backend == BackendBadger && c.Storage.InMemory) {
		return fmt.Errorf("%w: storage.path is required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Port)
	}
	if c.Auth.TokenTTL <= 0 || c.Session.TTL <= 0 || c.InviteTTL <= 0 {
		return fmt.Errorf("%w: durations must be positive", ErrInvalidConfig)
	}
	if c.Session.CacheSize <= 0 {
		return fmt.Errorf("%w: session.cache_size must be positive", ErrInvalidConfig)
	}
	if c.KDFIterations < 1000 {
		return fmt.Errorf("%w: crypto.kdf_iterations must be at least 1000", ErrInvalidConfig)
	}
	return nil
}

// ValidateServer additionally checks what only the RPC server needs.
func (c *Config) ValidateServer() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("%w: auth.jwt_secret is required", ErrInvalidConfig)
	}
	return nil
}

// ListenAddress returns the host:port to listen on.
func (c *Config) ListenAddress() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
