// Package config provides configuration management for keeper.
// It loads settings from environment variables with the KEEPER_ prefix and
// provides sensible defaults for all options.
package config

import (
	"os"
	"strconv"
)

// Config holds all configuration settings for the keeper memory system.
type Config struct {
	Storage StorageConfig
	Context ContextConfig
	Search  SearchConfig
	Watcher WatcherConfig
}

// StorageConfig contains filesystem layout configuration.
type StorageConfig struct {
	MemoryPath  string // Root of the per-category memory tree (default: ./workspace/memory)
	JournalPath string // Journal directory (default: ./workspace/journal)
}

// ContextConfig shapes the memory digest built for callers.
type ContextConfig struct {
	Budget            int // Maximum digest size in bytes (default: 8000)
	RecentFacts       int // Number of most recent facts included (default: 10)
	RecentReflections int // Number of most recent reflections included (default: 5)
}

// SearchConfig contains search defaults.
type SearchConfig struct {
	DefaultLimit int // Result limit when the caller passes none (default: 20)
}

// WatcherConfig controls the external-edit watcher.
type WatcherConfig struct {
	Enabled       bool    // Watch the memory tree for edits made outside the store (default: false)
	RefreshPerSec float64 // Sustained index refresh rate under edit storms (default: 2.0)
}

// Load builds a Config from environment variables with defaults.
func Load() (*Config, error) {
	return &Config{
		Storage: StorageConfig{
			MemoryPath:  getEnv("KEEPER_MEMORY_PATH", "./workspace/memory"),
			JournalPath: getEnv("KEEPER_JOURNAL_PATH", "./workspace/journal"),
		},
		Context: ContextConfig{
			Budget:            getEnvInt("KEEPER_CONTEXT_BUDGET", 8000),
			RecentFacts:       getEnvInt("KEEPER_CONTEXT_RECENT_FACTS", 10),
			RecentReflections: getEnvInt("KEEPER_CONTEXT_RECENT_REFLECTIONS", 5),
		},
		Search: SearchConfig{
			DefaultLimit: getEnvInt("KEEPER_SEARCH_LIMIT", 20),
		},
		Watcher: WatcherConfig{
			Enabled:       getEnvBool("KEEPER_WATCH_ENABLED", false),
			RefreshPerSec: getEnvFloat("KEEPER_WATCH_REFRESH_PER_SEC", 2.0),
		},
	}, nil
}

// getEnv retrieves a string environment variable or returns the default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns the default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns the default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns the default.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
