package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("file values with env override", func(t *testing.T) {
		path := writeConfig(t, `
server:
  port: 8081
database:
  driver: postgres
  dsn: postgres://ledger@localhost/ledger
auth:
  jwt_secret: file-secret
ledger:
  max_attempts: 7
  retry_backoff: 250ms
catalog:
  default_file: /etc/fieldledger/catalog.json
`)
		t.Setenv("FIELDLEDGER_SERVER_PORT", "9090")
		t.Setenv("FIELDLEDGER_REDIS_ENABLED", "true")

		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, ":9090", cfg.Server.Addr())
		assert.Equal(t, DriverPostgres, cfg.Database.Driver)
		assert.Equal(t, "postgres://ledger@localhost/ledger", cfg.Database.DSN)
		assert.Equal(t, "file-secret", cfg.Auth.JWTSecret)
		assert.Equal(t, 7, cfg.Ledger.MaxAttempts)
		assert.Equal(t, 250*time.Millisecond, cfg.Ledger.RetryBackoff)
		assert.Equal(t, "/etc/fieldledger/catalog.json", cfg.Catalog.DefaultFile)
		assert.True(t, cfg.Redis.Enabled)
	})

	t.Run("missing file falls back to defaults", func(t *testing.T) {
		t.Setenv("FIELDLEDGER_AUTH_JWT_SECRET", "env-secret")

		cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		require.NoError(t, err)

		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, DriverMemory, cfg.Database.Driver)
		assert.Equal(t, 30*time.Second, cfg.Database.StatementTimeout)
		assert.Equal(t, 5, cfg.Ledger.MaxAttempts)
		assert.Equal(t, 30*time.Second, cfg.Ledger.LockTTL)
		assert.Equal(t, 24*time.Hour, cfg.Ledger.IdempotencyTTL)
		assert.Equal(t, "INV", cfg.Ledger.NumberPrefix)
		assert.Equal(t, 10*time.Minute, cfg.Catalog.CacheTTL)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.Contains(t, cfg.Ledger.CommentTemplate, "{number}")
	})

	t.Run("postgres without dsn is rejected", func(t *testing.T) {
		path := writeConfig(t, "database:\n  driver: postgres\nauth:\n  jwt_secret: s\n")
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.dsn")
	})

	t.Run("malformed yaml is an error", func(t *testing.T) {
		path := writeConfig(t, "server: [port\n")
		_, err := Load(path)
		require.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Database: DatabaseConfig{Driver: DriverMemory},
			Auth:     AuthConfig{JWTSecret: "s"},
			Ledger:   LedgerConfig{MaxAttempts: 1},
		}
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.Database.Driver = "sqlite" }},
		{"missing secret", func(c *Config) { c.Auth.JWTSecret = "" }},
		{"zero attempts", func(c *Config) { c.Ledger.MaxAttempts = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
