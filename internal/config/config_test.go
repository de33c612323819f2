package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryannaik/holocron/internal/config"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "holocron.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://swapi.dev/api", cfg.API.BaseURL)
	assert.Equal(t, 300*time.Millisecond, cfg.Search.Debounce)
	assert.Equal(t, 1, cfg.Search.MaxPages)
	assert.Equal(t, 10, cfg.Collection.PageSize)
	assert.Equal(t, 5, cfg.Collection.PagerWidth)
	assert.Equal(t, "127.0.0.1:8990", cfg.Server.Addr())
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
api:
  base_url: http://localhost:9000/api
  timeout: 5s
  rate_per_second: 2.5
search:
  debounce: 150ms
  max_pages: 3
server:
  port: 7000
  allowed_origins: ["example.com"]
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9000/api", cfg.API.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.API.Timeout)
	assert.InDelta(t, 2.5, cfg.API.RatePerSecond, 0.001)
	assert.Equal(t, 150*time.Millisecond, cfg.Search.Debounce)
	assert.Equal(t, 3, cfg.Search.MaxPages)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, []string{"example.com"}, cfg.Server.AllowedOrigins)
	// untouched keys keep defaults
	assert.Equal(t, 10, cfg.Collection.PageSize)
}

func TestEnvOverridesYAML(t *testing.T) {
	path := writeFile(t, "search:\n  debounce: 150ms\n")
	t.Setenv("HOLOCRON_DEBOUNCE", "1s")
	t.Setenv("HOLOCRON_PAGE_SIZE", "25")
	t.Setenv("HOLOCRON_ALLOWED_ORIGINS", "a.test, b.test")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, time.Second, cfg.Search.Debounce)
	assert.Equal(t, 25, cfg.Collection.PageSize)
	assert.Equal(t, []string{"a.test", "b.test"}, cfg.Server.AllowedOrigins)
}

func TestMalformedEnvKeepsPreviousValue(t *testing.T) {
	t.Setenv("HOLOCRON_PORT", "eighty")
	t.Setenv("HOLOCRON_TIMEOUT", "soon")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, 8990, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidateRejectsBadValues(t *testing.T) {
	path := writeFile(t, "collection:\n  page_size: 0\nsearch:\n  max_pages: 0\n")

	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collection.page_size")
	assert.Contains(t, err.Error(), "search.max_pages")
}

func TestValidateRejectsNegativeBreakerThreshold(t *testing.T) {
	t.Setenv("HOLOCRON_BREAKER_MAX_FAILURES", "-1")

	_, err := config.Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api.breaker_max_failures")

	cfg := config.Default()
	cfg.API.BreakerMaxFailures = 0
	assert.NoError(t, cfg.Validate(), "zero selects the gateway default")
}
