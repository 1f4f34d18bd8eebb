package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, int64(2<<20), cfg.Storage.UploadMaxBytes)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "postgres", cfg.Database.Driver)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("APP_BASE_URL", "https://arte.example.org/")
	t.Setenv("CORS_ALLOWED_ORIGIN", "https://app.example.org, https://admin.example.org")
	t.Setenv("STORAGE_DIR", "/var/lib/arte")
	t.Setenv("UPLOAD_MAX_BYTES", "1048576")
	t.Setenv("JWT_TTL", "2h")
	t.Setenv("MIGRATIONS", "yes")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://arte.example.org", cfg.App.BaseURL)
	assert.Equal(t, []string{"https://app.example.org", "https://admin.example.org"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "/var/lib/arte", cfg.Storage.Dir)
	assert.Equal(t, int64(1048576), cfg.Storage.UploadMaxBytes)
	assert.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL)
	assert.True(t, cfg.App.Migrations)
}

func TestLoadYAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "arte.yaml")
	yml := `
server:
  port: "9090"
database:
  driver: sqlite
  sqlite_path: /tmp/arte.db
storage:
  dir: /data/uploads
  upload_max_bytes: 4096
auth:
  token_ttl: 30m
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "7070")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Server.Port, "env wins over file")
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "/data/uploads", cfg.Storage.Dir)
	assert.Equal(t, int64(4096), cfg.Storage.UploadMaxBytes)
	assert.Equal(t, 30*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, 15, cfg.Server.ReadTimeout, "defaults kept for absent keys")
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
	_, err := Load()
	assert.Error(t, err)
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "arte", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=arte sslmode=disable", d.DSN())
	assert.Equal(t, "postgres://u:p@db:5432/arte?sslmode=disable", d.URL())
}

func TestWarningsFlagDevelopmentSecret(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("JWT_SECRET", "")
	cfg, err := Load()
	require.NoError(t, err)
	require.Len(t, cfg.Warnings(), 1)
	assert.Contains(t, cfg.Warnings()[0], "JWT_SECRET")

	t.Setenv("JWT_SECRET", "a-real-production-secret")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.Warnings())
}
