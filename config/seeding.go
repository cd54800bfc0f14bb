package config

import (
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"p9e.in/siteprogress/models"
)

// SeedAdmin creates the configured administrator on first run. It does
// nothing when no credentials are configured or the username exists.
func SeedAdmin(db *gorm.DB, cfg AdminConfig, log *zap.Logger) error {
	if cfg.Username == "" || cfg.Password == "" {
		return nil
	}

	var existing models.User
	err := db.Where("username = ?", cfg.Username).First(&existing).Error
	if err == nil {
		log.Debug("admin user already present", zap.String("username", cfg.Username))
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	admin := models.User{Username: cfg.Username, Role: models.RoleAdmin}
	if err := admin.SetPassword(cfg.Password); err != nil {
		return err
	}
	if err := db.Create(&admin).Error; err != nil {
		return err
	}
	log.Info("seeded admin user", zap.String("username", admin.Username))
	return nil
}
