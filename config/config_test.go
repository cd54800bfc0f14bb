package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"p9e.in/siteprogress/models"
)

func TestLoad_Defaults(t *testing.T) {
	s, err := Load(NewViper(), "")
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, s.DB.Driver)
	assert.Equal(t, 8080, s.Server.Port)
	assert.Equal(t, "gemini-2.5-flash-lite", s.Analysis.Model)
	assert.Equal(t, 90*time.Second, s.Analysis.Timeout)
	assert.Equal(t, int64(50<<20), s.Upload.MaxBytes)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_DSN", "host=localhost dbname=progress")
	t.Setenv("ANALYSIS_TIMEOUT", "15s")
	t.Setenv("GOOGLE_API_KEY", "test-key")

	s, err := Load(NewViper(), "")
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, s.DB.Driver)
	assert.Equal(t, "host=localhost dbname=progress", s.DB.DSN)
	assert.Equal(t, 15*time.Second, s.Analysis.Timeout)
	assert.Equal(t, "test-key", s.Analysis.APIKey)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "siteprogress.yaml")
	require.NoError(t, os.WriteFile(path, []byte("analysis:\n  provider: offline\ndrafts:\n  ttl: 30m\n"), 0o600))

	s, err := Load(NewViper(), path)
	require.NoError(t, err)
	assert.Equal(t, ProviderOffline, s.Analysis.Provider)
	assert.Equal(t, 30*time.Minute, s.Drafts.TTL)
}

func TestSettingsValidate(t *testing.T) {
	s, err := Load(NewViper(), "")
	require.NoError(t, err)

	s.DB.Driver = "mysql"
	s.Analysis.Timeout = 0
	err = s.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db.driver")
	assert.Contains(t, err.Error(), "analysis.timeout")
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		log, err := NewLogger("debug", format)
		require.NoError(t, err)
		assert.True(t, log.Core().Enabled(-1))
	}

	log, err := NewLogger("nonsense", "json")
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(-1), "unknown level falls back to info")
}

func TestOpenDatabase_MigrateAndSeed(t *testing.T) {
	cfg := DatabaseConfig{Driver: DriverSQLite, DSN: filepath.Join(t.TempDir(), "test.db")}
	db, err := OpenDatabase(cfg, zap.NewNop(), false)
	require.NoError(t, err)

	require.NoError(t, Migrations(db))
	require.NoError(t, Migrations(db), "migrations are idempotent")

	admin := AdminConfig{Username: "admin", Password: "s3cret"}
	require.NoError(t, SeedAdmin(db, admin, zap.NewNop()))
	require.NoError(t, SeedAdmin(db, admin, zap.NewNop()))

	var users []models.User
	require.NoError(t, db.Find(&users).Error)
	require.Len(t, users, 1)
	assert.Equal(t, models.RoleAdmin, users[0].Role)
	assert.True(t, users[0].CheckPassword("s3cret"))

	_, err = OpenDatabase(DatabaseConfig{Driver: "oracle", DSN: "x"}, zap.NewNop(), false)
	assert.Error(t, err)
}
