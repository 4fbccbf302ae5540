package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	// Run from an empty directory so no config.yaml is picked up.
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "contractors.db", cfg.Store.DatabaseURL)
	assert.Equal(t, 10, cfg.Collect.PageSize)
	assert.Equal(t, 4, cfg.Collect.Concurrency)
	assert.Equal(t, 0.7, cfg.Enrich.InsightTemp)
	assert.Equal(t, 0.3, cfg.Enrich.EvaluateTemp)
	assert.Equal(t, 2, cfg.Enrich.LowScoreThreshold)
	assert.Equal(t, float64(1), cfg.Geocode.RateLimit)
	assert.Equal(t, 10, cfg.Geocode.TimeoutSecs)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "0 2 * * 1", cfg.Schedule.Cron)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	content := `
store:
  driver: postgres
  database_url: postgres://localhost/contractors
collect:
  total: 200
  use_geo: false
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))
	t.Chdir(dir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/contractors", cfg.Store.DatabaseURL)
	assert.Equal(t, 200, cfg.Collect.Total)
	assert.False(t, cfg.Collect.UseGeo)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Untouched keys keep their defaults.
	assert.Equal(t, 10, cfg.Collect.PageSize)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONTRACTOR_SEARCH_TOKEN", "tok-123")
	t.Setenv("CONTRACTOR_ANTHROPIC_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "tok-123", cfg.Search.Token)
	assert.Equal(t, "sk-test", cfg.Anthropic.Key)
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.Validate("collect"))
	assert.Error(t, cfg.Validate("enrich"))
	assert.NoError(t, cfg.Validate("serve"))

	cfg.Search.URL = "https://search.example.com/rest/search/v2"
	assert.NoError(t, cfg.Validate("collect"))

	cfg.Anthropic.Key = "sk-test"
	assert.NoError(t, cfg.Validate("enrich"))
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.Error(t, InitLogger(LogConfig{Level: "nope", Format: "json"}))
}
