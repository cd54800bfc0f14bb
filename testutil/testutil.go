// Package testutil provides a migrated database for package tests.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"p9e.in/siteprogress/config"
	"p9e.in/siteprogress/models"
)

// NewTestDB opens a fresh SQLite file under t.TempDir() and migrates it.
func NewTestDB(t testing.TB) *gorm.DB {
	t.Helper()

	cfg := config.DatabaseConfig{
		Driver: config.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "siteprogress_test.db"),
	}
	db, err := config.OpenDatabase(cfg, zap.NewNop(), false)
	require.NoError(t, err)
	require.NoError(t, config.Migrations(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// CreateSite inserts a site with the given building shape.
func CreateSite(t testing.TB, db *gorm.DB, name string, basements, floors int, roof bool) *models.Site {
	t.Helper()
	site := &models.Site{
		Name:         name,
		Location:     "Test Location",
		Status:       models.SiteActive,
		NumBasements: basements,
		NumFloors:    floors,
		HasRoof:      roof,
	}
	require.NoError(t, db.Create(site).Error)
	return site
}

// CreateUser inserts a user with a throwaway password.
func CreateUser(t testing.TB, db *gorm.DB, username, role string) *models.User {
	t.Helper()
	u := &models.User{Username: username, Role: role}
	require.NoError(t, u.SetPassword("password"))
	require.NoError(t, db.Create(u).Error)
	return u
}
