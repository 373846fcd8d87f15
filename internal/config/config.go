// Package config loads docsql settings from .docsql.yaml, a .env file and
// DOCSQL_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/roach88/docsql/internal/docstore"
)

// Config holds the settings shared by every command.
type Config struct {
	MongoURI           string `mapstructure:"mongo_uri"`
	Database           string `mapstructure:"database"`
	JournalPath        string `mapstructure:"journal_path"`
	MetadataCollection string `mapstructure:"metadata_collection"`
	LogLevel           string `mapstructure:"log_level"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

// Defaults.
const (
	DefaultMongoURI    = "mongodb://localhost:27017"
	DefaultJournalPath = ".docsql/journal.db"
	DefaultLogLevel    = "info"
)

// Load reads configuration with this precedence, highest first:
// environment (DOCSQL_MONGO_URI, ...), dir/.env, .docsql.yaml in dir or
// the home directory, defaults. An absent config file is not an error.
func Load(dir string) (*Config, error) {
	envFile := filepath.Join(dir, ".env")
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	v.SetConfigName(".docsql")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
	}

	v.SetEnvPrefix("DOCSQL")
	v.AutomaticEnv()

	v.SetDefault("mongo_uri", DefaultMongoURI)
	v.SetDefault("database", "")
	v.SetDefault("journal_path", DefaultJournalPath)
	v.SetDefault("metadata_collection", docstore.DefaultMetadataCollection)
	v.SetDefault("log_level", DefaultLogLevel)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.MetadataCollection == "" {
		return fmt.Errorf("metadata_collection must not be empty")
	}
	return nil
}

// Level returns the slog level for LogLevel.
func (c *Config) Level() slog.Level {
	l, _ := ParseLevel(c.LogLevel)
	return l
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("invalid log_level %q: must be debug, info, warn or error", s)
}
