package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr())
	assert.Equal(t, "inventory.db", cfg.Database.Path)
	assert.Equal(t, 250*time.Millisecond, cfg.Database.BusyTimeout)
	assert.Equal(t, 3, cfg.Database.BusyRetries)
	assert.Equal(t, 50*time.Millisecond, cfg.Database.BusyBackoff)
	assert.Equal(t, "single", cfg.Relations.LotCreateStrategy)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("INVENTORY_SERVER_PORT", "9191")
	t.Setenv("INVENTORY_DATABASE_PATH", "/tmp/bench.db")
	t.Setenv("INVENTORY_DATABASE_BUSY_RETRIES", "2")
	t.Setenv("INVENTORY_RELATIONS_LOT_CREATE_STRATEGY", "expand_quantity")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "/tmp/bench.db", cfg.Database.Path)
	assert.Equal(t, 2, cfg.Database.BusyRetries)
	assert.Equal(t, "expand_quantity", cfg.Relations.LotCreateStrategy)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "inventory.yaml")
	doc := `
server:
  environment: production
database:
  path: lab.db
relations:
  default_filters:
    consumable_lots: '{"filters":{"finished_date":{"predicate":"all time"}}}'
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "lab.db", cfg.Database.Path)
	assert.False(t, cfg.IsDevelopment())
	assert.Contains(t, cfg.Relations.DefaultFilters, "consumable_lots")
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			Server:    ServerConfig{Port: 8080},
			Database:  DatabaseConfig{Path: "x.db", BusyRetries: 1},
			Relations: RelationsConfig{LotCreateStrategy: "single"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"zero retries", func(c *Config) { c.Database.BusyRetries = 0 }, true},
		{"too many retries", func(c *Config) { c.Database.BusyRetries = 4 }, true},
		{"negative backoff", func(c *Config) { c.Database.BusyBackoff = -time.Second }, true},
		{"unknown strategy", func(c *Config) { c.Relations.LotCreateStrategy = "explode" }, true},
		{"empty path", func(c *Config) { c.Database.Path = "" }, true},
		{"bad filter json", func(c *Config) {
			c.Relations.DefaultFilters = map[string]string{"products": "{"}
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
