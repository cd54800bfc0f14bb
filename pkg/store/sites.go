package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"p9e.in/siteprogress/models"
)

// CreateSite validates and inserts a site. Names are unique.
func (s *Store) CreateSite(ctx context.Context, site *models.Site) error {
	if site.Status == "" {
		site.Status = models.SiteActive
	}
	if err := site.Validate(); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Site{}).Where("name = ?", site.Name).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("site %q: %w", site.Name, models.ErrDuplicate)
		}
		return tx.Create(site).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("site %q: %w", site.Name, models.ErrDuplicate)
	}
	if err != nil {
		return err
	}

	s.log.Info("site created",
		zap.String("site_id", site.ID.String()),
		zap.String("name", site.Name),
		zap.Int("floor_labels", len(site.FloorLabels())))
	return nil
}

// GetSite loads one site.
func (s *Store) GetSite(ctx context.Context, id uuid.UUID) (*models.Site, error) {
	var site models.Site
	if err := s.db.WithContext(ctx).First(&site, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &site, nil
}

// GetSiteByName loads one site by its unique name.
func (s *Store) GetSiteByName(ctx context.Context, name string) (*models.Site, error) {
	var site models.Site
	if err := s.db.WithContext(ctx).First(&site, "name = ?", name).Error; err != nil {
		return nil, notFound(err)
	}
	return &site, nil
}

// ListSites returns every site, newest first.
func (s *Store) ListSites(ctx context.Context) ([]models.Site, error) {
	var sites []models.Site
	err := s.db.WithContext(ctx).Order("created_at DESC").Find(&sites).Error
	return sites, err
}

// UpdateSiteStatus changes a site's status. It is the only site mutation.
func (s *Store) UpdateSiteStatus(ctx context.Context, id uuid.UUID, status string) (*models.Site, error) {
	st, ok := models.ParseSiteStatus(status)
	if !ok {
		return nil, models.NewValidationError("status", "unknown status %q", status)
	}

	res := s.db.WithContext(ctx).Model(&models.Site{}).Where("id = ?", id).Update("status", st)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, models.ErrNotFound
	}
	s.log.Info("site status changed", zap.String("site_id", id.String()), zap.String("status", string(st)))
	return s.GetSite(ctx, id)
}
