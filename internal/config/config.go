// Package config loads tree-grepper configuration through viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/trusted-programming/tree-grepper/internal/application/common/logging"
)

// Store backend names.
const (
	StoreBackendFile     = "file"
	StoreBackendSQLite   = "sqlite"
	StoreBackendPostgres = "postgres"
	StoreBackendNATS     = "nats"
)

// Config holds the complete application configuration.
type Config struct {
	Log    LogConfig    `mapstructure:"log"`
	Engine EngineConfig `mapstructure:"engine"`
	Markup MarkupConfig `mapstructure:"markup"`
	Worker WorkerConfig `mapstructure:"worker"`
	Store  StoreConfig  `mapstructure:"store"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// LoggingConfig converts to the logger's configuration.
func (l LogConfig) LoggingConfig() logging.Config {
	return logging.Config{Level: l.Level, Format: l.Format, Output: l.Output}
}

// EngineConfig holds extraction and rewrite settings.
type EngineConfig struct {
	IgnorePrefix string `mapstructure:"ignore_prefix"`
	// MaxRewriteIterations overrides the derived restart cap when positive.
	MaxRewriteIterations int `mapstructure:"max_rewrite_iterations"`
	// QueryCacheSize bounds the compiled queries kept for reuse.
	QueryCacheSize int `mapstructure:"query_cache_size"`
}

// MarkupConfig holds annotation settings.
type MarkupConfig struct {
	// Profile is a profile file path; empty selects the embedded default.
	Profile string `mapstructure:"profile"`
	Guard   int    `mapstructure:"guard"`
}

// WorkerConfig holds batch concurrency settings.
type WorkerConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// StoreConfig holds blob store settings.
type StoreConfig struct {
	Backend   string          `mapstructure:"backend"`
	Namespace string          `mapstructure:"namespace"`
	File      FileStoreConfig `mapstructure:"file"`
	SQLite    SQLiteConfig    `mapstructure:"sqlite"`
	Postgres  DatabaseConfig  `mapstructure:"postgres"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Connect   ConnectConfig   `mapstructure:"connect"`
}

// ConnectConfig bounds the retries made while opening a networked store.
type ConnectConfig struct {
	MaxRetries   int           `mapstructure:"max_retries"`
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
}

// FileStoreConfig holds filesystem store settings.
type FileStoreConfig struct {
	Root string `mapstructure:"root"`
}

// SQLiteConfig holds sqlite store settings.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// DatabaseConfig holds postgres configuration.
type DatabaseConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	Name           string `mapstructure:"name"`
	SSLMode        string `mapstructure:"sslmode"`
	MaxConnections int    `mapstructure:"max_connections"`
}

// DSN returns the database connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// NATSConfig holds NATS configuration.
type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	Bucket        string        `mapstructure:"bucket"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
}

// SetDefaults registers default values for every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stderr")

	v.SetDefault("engine.ignore_prefix", "_")
	v.SetDefault("engine.max_rewrite_iterations", 0)
	v.SetDefault("engine.query_cache_size", 256)

	v.SetDefault("markup.profile", "")
	v.SetDefault("markup.guard", 2)

	v.SetDefault("worker.concurrency", 4)

	v.SetDefault("store.backend", StoreBackendFile)
	v.SetDefault("store.namespace", "tree-grepper")
	v.SetDefault("store.file.root", ".tree-grepper")
	v.SetDefault("store.sqlite.path", "tree-grepper.db")
	v.SetDefault("store.postgres.host", "localhost")
	v.SetDefault("store.postgres.port", 5432)
	v.SetDefault("store.postgres.user", "tree_grepper")
	v.SetDefault("store.postgres.name", "tree_grepper")
	v.SetDefault("store.postgres.sslmode", "disable")
	v.SetDefault("store.postgres.max_connections", 10)
	v.SetDefault("store.nats.url", "nats://localhost:4222")
	v.SetDefault("store.nats.bucket", "tree-grepper")
	v.SetDefault("store.nats.max_reconnects", 5)
	v.SetDefault("store.nats.reconnect_wait", "2s")
	v.SetDefault("store.connect.max_retries", 3)
	v.SetDefault("store.connect.initial_delay", "200ms")
	v.SetDefault("store.connect.max_delay", "5s")
}

// Load unmarshals and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &config, nil
}

// New creates a new Config instance from Viper and panics on invalid configuration.
func New(v *viper.Viper) *Config {
	config, err := Load(v)
	if err != nil {
		panic(err)
	}
	return config
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Worker.Concurrency < 1 {
		return errors.New("worker.concurrency must be at least 1")
	}
	if c.Markup.Guard < 0 {
		return errors.New("markup.guard must not be negative")
	}
	if c.Engine.QueryCacheSize < 0 {
		return errors.New("engine.query_cache_size must not be negative")
	}
	if c.Engine.MaxRewriteIterations < 0 {
		return errors.New("engine.max_rewrite_iterations must not be negative")
	}
	if c.Store.Connect.MaxRetries < 0 {
		return errors.New("store.connect.max_retries must not be negative")
	}
	if c.Store.Namespace == "" {
		return errors.New("store.namespace is required")
	}

	switch c.Store.Backend {
	case StoreBackendFile:
		if c.Store.File.Root == "" {
			return errors.New("store.file.root is required for the file backend")
		}
	case StoreBackendSQLite:
		if c.Store.SQLite.Path == "" {
			return errors.New("store.sqlite.path is required for the sqlite backend")
		}
	case StoreBackendPostgres:
		if c.Store.Postgres.User == "" {
			return errors.New("store.postgres.user is required")
		}
		if c.Store.Postgres.Name == "" {
			return errors.New("store.postgres.name is required")
		}
		if c.Store.Postgres.Port < 1 || c.Store.Postgres.Port > 65535 {
			return errors.New("store.postgres.port must be between 1 and 65535")
		}
		if c.Store.Postgres.MaxConnections < 1 {
			return errors.New("store.postgres.max_connections must be at least 1")
		}
	case StoreBackendNATS:
		if _, err := url.Parse(c.Store.NATS.URL); err != nil || c.Store.NATS.URL == "" {
			return errors.New("store.nats.url must be a valid URL")
		}
		if c.Store.NATS.Bucket == "" {
			return errors.New("store.nats.bucket is required")
		}
	default:
		return fmt.Errorf("store.backend %q is not one of file, sqlite, postgres, nats", c.Store.Backend)
	}
	return nil
}

// EnvKeyReplacer maps nested keys to environment variable names (store.nats.url -> STORE_NATS_URL).
func EnvKeyReplacer() *strings.Replacer {
	return strings.NewReplacer(".", "_")
}
