// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Smart Notes Contributors

package config

import (
	"errors"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	snerr "github.com/OlesyaDud/smart-notes/pkg/errors"
)

// EnvPrefix prefixes every environment override, e.g.
// SMARTNOTES_EMBEDDING_API_KEY for embedding.api_key.
const EnvPrefix = "SMARTNOTES"

// Config is the top-level smartnotes configuration.
type Config struct {
	Storage   StorageConfig   `mapstructure:"storage" yaml:"storage"`
	Index     IndexConfig     `mapstructure:"index" yaml:"index"`
	Embedding EmbeddingConfig `mapstructure:"embedding" yaml:"embedding"`
	Notes     NotesConfig     `mapstructure:"notes" yaml:"notes"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Telegram  TelegramConfig  `mapstructure:"telegram" yaml:"telegram"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

// StorageConfig selects the index backend and its file.
type StorageConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// IndexConfig describes the vector collection notes live in.
type IndexConfig struct {
	Name      string `mapstructure:"name" yaml:"name"`
	Dimension int    `mapstructure:"dimension" yaml:"dimension"`
	Metric    string `mapstructure:"metric" yaml:"metric"`
}

// EmbeddingConfig selects the embedding provider. APIKey may be a
// keyring:// URI.
type EmbeddingConfig struct {
	Provider       string  `mapstructure:"provider" yaml:"provider"`
	Model          string  `mapstructure:"model" yaml:"model"`
	APIKey         string  `mapstructure:"api_key" yaml:"api_key"`
	BaseURL        string  `mapstructure:"base_url" yaml:"base_url"`
	MaxRetries     int     `mapstructure:"max_retries" yaml:"max_retries"`
	CacheSize      int     `mapstructure:"cache_size" yaml:"cache_size"`
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps" yaml:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst" yaml:"rate_limit_burst"`
}

// NotesConfig controls the note store.
type NotesConfig struct {
	IDScheme     string        `mapstructure:"id_scheme" yaml:"id_scheme"`
	DefaultTopK  int           `mapstructure:"default_top_k" yaml:"default_top_k"`
	MaxTopK      int           `mapstructure:"max_top_k" yaml:"max_top_k"`
	EmbedTimeout time.Duration `mapstructure:"embed_timeout" yaml:"embed_timeout"`
	IndexTimeout time.Duration `mapstructure:"index_timeout" yaml:"index_timeout"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Listen         string   `mapstructure:"listen" yaml:"listen"`
	CORSOrigins    []string `mapstructure:"cors_origins" yaml:"cors_origins"`
	RateLimitRPS   float64  `mapstructure:"rate_limit_rps" yaml:"rate_limit_rps"`
	RateLimitBurst int      `mapstructure:"rate_limit_burst" yaml:"rate_limit_burst"`
}

// TelegramConfig controls the Telegram bot. Token may be a keyring:// URI.
type TelegramConfig struct {
	Token       string        `mapstructure:"token" yaml:"token"`
	BaseURL     string        `mapstructure:"base_url" yaml:"base_url"`
	PollTimeout time.Duration `mapstructure:"poll_timeout" yaml:"poll_timeout"`
	Workers     int           `mapstructure:"workers" yaml:"workers"`
}

// LoggingConfig controls the default slog handler.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.path", DefaultStoragePath())
	v.SetDefault("index.name", "smart-notes")
	v.SetDefault("index.dimension", 1536)
	v.SetDefault("index.metric", "cosine")
	v.SetDefault("embedding.provider", "openai")
	v.SetDefault("embedding.model", "")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.base_url", "")
	v.SetDefault("embedding.max_retries", 2)
	v.SetDefault("embedding.cache_size", 1024)
	v.SetDefault("embedding.rate_limit_rps", 0)
	v.SetDefault("embedding.rate_limit_burst", 1)
	v.SetDefault("notes.id_scheme", "sequence")
	v.SetDefault("notes.default_top_k", 3)
	v.SetDefault("notes.max_top_k", 100)
	v.SetDefault("notes.embed_timeout", "15s")
	v.SetDefault("notes.index_timeout", "10s")
	v.SetDefault("server.listen", "127.0.0.1:18790")
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("server.rate_limit_rps", 0)
	v.SetDefault("server.rate_limit_burst", 0)
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.base_url", "https://api.telegram.org")
	v.SetDefault("telegram.poll_timeout", "30s")
	v.SetDefault("telegram.workers", 4)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// SetupEnv binds SMARTNOTES_* environment variables on v.
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// DefaultStoragePath returns ~/.local/share/smartnotes/notes.db, or a file
// in the working directory when no home directory is available.
func DefaultStoragePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "smartnotes.db"
	}
	return filepath.Join(home, ".local", "share", "smartnotes", "notes.db")
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides (prefix SMARTNOTES_).
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, snerr.Errorf(snerr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	return FromViper(v)
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, snerr.Errorf(snerr.CodeConfigParseInvalidFormat, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, snerr.Errorf(snerr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// Validate checks the configuration for logical errors.
// It returns a slice of all validation errors found, collecting all issues
// rather than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateStorage()...)
	errs = append(errs, c.validateIndex()...)
	errs = append(errs, c.validateEmbedding()...)
	errs = append(errs, c.validateNotes()...)
	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateTelegram()...)
	errs = append(errs, c.validateLogging()...)

	return errs
}

func invalid(format string, args ...any) error {
	return snerr.Errorf(snerr.CodeConfigValidateInvalidValue, "config: "+format, args...)
}

func oneOf(key, got string, allowed ...string) error {
	for _, a := range allowed {
		if got == a {
			return nil
		}
	}
	return invalid("%s must be one of [%s], got %q", key, strings.Join(allowed, ", "), got)
}

func (c *Config) validateStorage() []error {
	var errs []error
	if err := oneOf("storage.backend", c.Storage.Backend, "sqlite", "bolt"); err != nil {
		errs = append(errs, err)
	}
	if c.Storage.Path == "" {
		errs = append(errs, invalid("storage.path must not be empty"))
	}
	return errs
}

func (c *Config) validateIndex() []error {
	var errs []error
	if c.Index.Name == "" {
		errs = append(errs, invalid("index.name must not be empty"))
	}
	if c.Index.Dimension <= 0 {
		errs = append(errs, invalid("index.dimension must be greater than 0, got %d", c.Index.Dimension))
	}
	if err := oneOf("index.metric", c.Index.Metric, "cosine", "euclidean"); err != nil {
		errs = append(errs, err)
	}
	return errs
}

func (c *Config) validateEmbedding() []error {
	var errs []error
	if err := oneOf("embedding.provider", c.Embedding.Provider, "openai", "google", "local"); err != nil {
		errs = append(errs, err)
	}
	if c.Embedding.MaxRetries < 0 {
		errs = append(errs, invalid("embedding.max_retries must not be negative, got %d", c.Embedding.MaxRetries))
	}
	if c.Embedding.CacheSize < 0 {
		errs = append(errs, invalid("embedding.cache_size must not be negative, got %d", c.Embedding.CacheSize))
	}
	if c.Embedding.RateLimitRPS < 0 {
		errs = append(errs, invalid("embedding.rate_limit_rps must not be negative, got %g", c.Embedding.RateLimitRPS))
	}
	if c.Embedding.RateLimitBurst < 0 {
		errs = append(errs, invalid("embedding.rate_limit_burst must not be negative, got %d", c.Embedding.RateLimitBurst))
	}
	return errs
}

func (c *Config) validateNotes() []error {
	var errs []error
	if err := oneOf("notes.id_scheme", c.Notes.IDScheme, "sequence", "uuid", "count"); err != nil {
		errs = append(errs, err)
	}
	if c.Notes.DefaultTopK <= 0 {
		errs = append(errs, invalid("notes.default_top_k must be greater than 0, got %d", c.Notes.DefaultTopK))
	}
	if c.Notes.MaxTopK < c.Notes.DefaultTopK {
		errs = append(errs, invalid("notes.max_top_k must be at least notes.default_top_k, got %d", c.Notes.MaxTopK))
	}
	if c.Notes.EmbedTimeout <= 0 {
		errs = append(errs, invalid("notes.embed_timeout must be positive, got %s", c.Notes.EmbedTimeout))
	}
	if c.Notes.IndexTimeout <= 0 {
		errs = append(errs, invalid("notes.index_timeout must be positive, got %s", c.Notes.IndexTimeout))
	}
	return errs
}

func (c *Config) validateServer() []error {
	var errs []error

	if c.Server.Listen == "" {
		errs = append(errs, invalid("server.listen must not be empty"))
	} else {
		_, portStr, err := net.SplitHostPort(c.Server.Listen)
		if err != nil {
			errs = append(errs, invalid("server.listen must be a valid host:port address, got %q: %w", c.Server.Listen, err))
		} else if port, err := strconv.Atoi(portStr); err != nil {
			errs = append(errs, invalid("server.listen port must be a number, got %q", portStr))
		} else if port < 1 || port > 65535 {
			errs = append(errs, invalid("server.listen port must be between 1 and 65535, got %d", port))
		}
	}

	if c.Server.RateLimitRPS < 0 {
		errs = append(errs, invalid("server.rate_limit_rps must not be negative, got %g", c.Server.RateLimitRPS))
	}
	if c.Server.RateLimitBurst < 0 {
		errs = append(errs, invalid("server.rate_limit_burst must not be negative, got %d", c.Server.RateLimitBurst))
	}
	return errs
}

func (c *Config) validateTelegram() []error {
	var errs []error
	if c.Telegram.PollTimeout <= 0 {
		errs = append(errs, invalid("telegram.poll_timeout must be positive, got %s", c.Telegram.PollTimeout))
	}
	if c.Telegram.Workers <= 0 {
		errs = append(errs, invalid("telegram.workers must be greater than 0, got %d", c.Telegram.Workers))
	}
	return errs
}

func (c *Config) validateLogging() []error {
	var errs []error
	if err := oneOf("logging.level", strings.ToLower(c.Logging.Level), "debug", "info", "warn", "error"); err != nil {
		errs = append(errs, err)
	}
	if err := oneOf("logging.format", c.Logging.Format, "text", "json"); err != nil {
		errs = append(errs, err)
	}
	return errs
}
