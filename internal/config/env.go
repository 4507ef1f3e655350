package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type BaseEnv struct {
	Env          string        `envconfig:"ENV" default:"local"`
	LogLevel     string        `envconfig:"LOG_LEVEL" default:"warn"`
	CacheDir     string        `envconfig:"CACHE_DIR" default:""`
	CacheTTL     time.Duration `envconfig:"CACHE_TTL" default:"5m"`
	MetadataTTL  time.Duration `envconfig:"METADATA_TTL" default:"10m"`
	DefaultLimit int           `envconfig:"DEFAULT_LIMIT" default:"25"`
}

type StorageEnv struct {
	Type string `envconfig:"STORAGE_TYPE" default:"local"`
	// S3 settings (used when Type == "s3")
	S3Bucket string `envconfig:"S3_BUCKET"`
	S3Prefix string `envconfig:"S3_PREFIX" default:"pm-cli/"`
	S3Region string `envconfig:"S3_REGION" default:"us-east-1"`
}

type Env struct {
	BaseEnv
	StorageEnv
}

const namespace = "PM"

func LoadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	return &env, nil
}

func (e *BaseEnv) SlogLevel() slog.Level {
	if e == nil {
		return slog.LevelWarn
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(e.LogLevel)); err != nil {
		return slog.LevelWarn
	}
	return level
}

// ResolveCacheDir returns the configured cache directory, defaulting to
// ~/.cache/pm-cli when unset.
func (e *BaseEnv) ResolveCacheDir() (string, error) {
	if e.CacheDir != "" {
		return e.CacheDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".cache", "pm-cli"), nil
}
