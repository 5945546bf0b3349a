package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "./workspace/memory", cfg.Storage.MemoryPath)
	require.Equal(t, "./workspace/journal", cfg.Storage.JournalPath)
	require.Equal(t, 8000, cfg.Context.Budget)
	require.Equal(t, 10, cfg.Context.RecentFacts)
	require.Equal(t, 5, cfg.Context.RecentReflections)
	require.Equal(t, 20, cfg.Search.DefaultLimit)
	require.False(t, cfg.Watcher.Enabled)
	require.Equal(t, 2.0, cfg.Watcher.RefreshPerSec)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("KEEPER_MEMORY_PATH", "/data/memory")
	t.Setenv("KEEPER_JOURNAL_PATH", "/data/journal")
	t.Setenv("KEEPER_CONTEXT_BUDGET", "4000")
	t.Setenv("KEEPER_CONTEXT_RECENT_FACTS", "3")
	t.Setenv("KEEPER_SEARCH_LIMIT", "50")
	t.Setenv("KEEPER_WATCH_ENABLED", "true")
	t.Setenv("KEEPER_WATCH_REFRESH_PER_SEC", "0.5")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "/data/memory", cfg.Storage.MemoryPath)
	require.Equal(t, "/data/journal", cfg.Storage.JournalPath)
	require.Equal(t, 4000, cfg.Context.Budget)
	require.Equal(t, 3, cfg.Context.RecentFacts)
	require.Equal(t, 50, cfg.Search.DefaultLimit)
	require.True(t, cfg.Watcher.Enabled)
	require.Equal(t, 0.5, cfg.Watcher.RefreshPerSec)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("KEEPER_CONTEXT_BUDGET", "lots")
	t.Setenv("KEEPER_WATCH_ENABLED", "maybe")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 8000, cfg.Context.Budget)
	require.False(t, cfg.Watcher.Enabled)
}
