package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := load(viper.New(), t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Cache.MaxEntries)
	assert.Equal(t, 30*time.Minute, cfg.Cache.MaxAge)
	assert.Equal(t, 100*time.Millisecond, cfg.Cache.Stagger)
	assert.Equal(t, 5, cfg.UI.WaveCount)
	assert.False(t, cfg.IsConfigured())
}

func TestLoad_FileValues(t *testing.T) {
	dir := t.TempDir()
	yaml := `
catalog:
  url: https://films.example.org/api
  cache_ttl: 5m
cache:
  max_entries: 120
  max_age: 10m
ui:
  wave_count: 0
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := load(viper.New(), dir)
	require.NoError(t, err)

	assert.True(t, cfg.IsConfigured())
	assert.Equal(t, "https://films.example.org/api", cfg.Catalog.URL)
	assert.Equal(t, 5*time.Minute, cfg.Catalog.CacheTTL)
	assert.Equal(t, 120, cfg.Cache.MaxEntries)
	assert.Equal(t, 10*time.Minute, cfg.Cache.MaxAge)
	// Invalid values fall back to defaults
	assert.Equal(t, 5, cfg.UI.WaveCount)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("REEL_CATALOG_URL", "http://localhost:8888/.netlify/functions")
	t.Setenv("REEL_CACHE_MAX_ENTRIES", "7")

	cfg, err := load(viper.New(), t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8888/.netlify/functions", cfg.Catalog.URL)
	assert.Equal(t, 7, cfg.Cache.MaxEntries)
}

func TestLoad_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("catalog: [unterminated"), 0o644))

	_, err := load(viper.New(), dir)
	assert.Error(t, err)
}
