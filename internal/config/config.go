// Package config reads the runtime configuration from KNJIZNICA_* environment
// variables. Command-line flags override these values in cmd/knjiznica.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config is the runtime configuration.
type Config struct {
	DBPath          string
	Address         string
	LogPath         string
	DatabaseName    string
	Seed            bool
	MaxImportBytes  int64
	MaxCoverBytes   int64
	ShutdownTimeout time.Duration
}

const (
	defaultDBPath          = "knjiznica.sqlite3"
	defaultAddress         = ":8080"
	defaultDatabaseName    = "BibliotecaEscolar"
	defaultSeed            = true
	defaultMaxImportBytes  = 10 << 20
	defaultMaxCoverBytes   = 5 << 20
	defaultShutdownTimeout = 10 * time.Second
)

// Load reads the environment, falling back to defaults for unset or
// unparseable values.
func Load() *Config {
	cfg := &Config{
		DBPath:          readEnv("KNJIZNICA_DB", defaultDBPath),
		Address:         readEnv("KNJIZNICA_ADDR", defaultAddress),
		LogPath:         readEnv("KNJIZNICA_LOG", ""),
		DatabaseName:    readEnv("KNJIZNICA_NAME", defaultDatabaseName),
		Seed:            parseBool("KNJIZNICA_SEED", defaultSeed),
		MaxImportBytes:  parseInt64("KNJIZNICA_MAX_IMPORT_BYTES", defaultMaxImportBytes),
		MaxCoverBytes:   parseInt64("KNJIZNICA_MAX_COVER_BYTES", defaultMaxCoverBytes),
		ShutdownTimeout: parseDuration("KNJIZNICA_SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
	}
	if cfg.MaxImportBytes <= 0 {
		cfg.MaxImportBytes = defaultMaxImportBytes
	}
	if cfg.MaxCoverBytes <= 0 {
		cfg.MaxCoverBytes = defaultMaxCoverBytes
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	return cfg
}

func readEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func parseBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseInt64(key string, def int64) int64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			return parsed
		}
	}
	return def
}

func parseDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}
