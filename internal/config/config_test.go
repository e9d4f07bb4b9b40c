package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/product-extractor/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 8084, cfg.Server.Port)
	assert.Equal(t, config.DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "stream:item_checks", cfg.Redis.Stream)
	assert.Equal(t, 60*time.Second, cfg.Browser.NavigationTimeout)
	assert.Equal(t, 2*time.Second, cfg.Browser.SettleDelay)
	assert.Equal(t, 10*time.Second, cfg.Worker.DelayMin)
	assert.Equal(t, 15*time.Second, cfg.Worker.DelayMax)
	assert.Equal(t, 60*time.Second, cfg.Worker.IdleDelay)
	assert.Empty(t, cfg.Render.DynamicDomains)
	assert.Equal(t, []string{"http://localhost:*", "https://localhost:*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_SQLITE_PATH", "/tmp/items.db")
	t.Setenv("WORKER_DELAY_MIN", "1s")
	t.Setenv("WORKER_DELAY_MAX", "2s")
	t.Setenv("BROWSER_HEADLESS", "false")
	t.Setenv("RENDER_DYNAMIC_DOMAINS", "zara.com, nike.com,,")
	t.Setenv("LOGGING_LEVEL", "debug")

	cfg, err := config.LoadFile("")
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, config.DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "/tmp/items.db", cfg.Database.SQLitePath)
	assert.Equal(t, time.Second, cfg.Worker.DelayMin)
	assert.Equal(t, 2*time.Second, cfg.Worker.DelayMax)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, []string{"zara.com", "nike.com"}, cfg.Render.DynamicDomains)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	err := os.WriteFile(path, []byte(`
server:
  port: 8181
database:
  url: postgres://user:pass@db:5432/items
render:
  dynamic_domains:
    - hm.com
    - uniqlo.com
preview:
  cache_ttl: 5m
`), 0o600)
	require.NoError(t, err)

	cfg, err := config.LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 8181, cfg.Server.Port)
	assert.Equal(t, "postgres://user:pass@db:5432/items", cfg.Database.URL)
	assert.Equal(t, []string{"hm.com", "uniqlo.com"}, cfg.Render.DynamicDomains)
	assert.Equal(t, 5*time.Minute, cfg.Preview.CacheTTL)
	assert.Equal(t, 256, cfg.Preview.CacheSize)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := config.LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad port", map[string]string{"SERVER_PORT": "70000"}},
		{"unknown driver", map[string]string{"DATABASE_DRIVER": "mysql"}},
		{"delay min above max", map[string]string{"WORKER_DELAY_MIN": "20s"}},
		{"zero idle delay", map[string]string{"WORKER_IDLE_DELAY": "0s"}},
		{"zero fetch timeout", map[string]string{"FETCH_TIMEOUT": "0s"}},
		{"empty preview cache", map[string]string{"PREVIEW_CACHE_SIZE": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := config.LoadFile("")
			assert.Error(t, err)
		})
	}
}
