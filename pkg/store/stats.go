package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"p9e.in/siteprogress/models"
)

// SiteStatistics is the dashboard header for one site.
type SiteStatistics struct {
	TotalUpdates       int64                               `json:"totalUpdates"`
	LatestProgress     *int                                `json:"latestProgress"`
	LastUpdate         *time.Time                          `json:"lastUpdate"`
	VerificationCounts map[models.VerificationStatus]int64 `json:"verificationCounts"`
}

// SiteStatistics counts a site's records and reads the latest progress.
func (s *Store) SiteStatistics(ctx context.Context, siteID uuid.UUID) (*SiteStatistics, error) {
	db := s.db.WithContext(ctx)
	st := &SiteStatistics{VerificationCounts: map[models.VerificationStatus]int64{}}

	if err := db.Model(&models.ProgressRecord{}).Where("site_id = ?", siteID).Count(&st.TotalUpdates).Error; err != nil {
		return nil, err
	}
	if st.TotalUpdates == 0 {
		return st, nil
	}

	var latest models.ProgressRecord
	if err := db.Omit("image_blob").Where("site_id = ?", siteID).
		Order("recorded_at DESC").First(&latest).Error; err != nil {
		return nil, err
	}
	pct := latest.ProgressPercentage
	st.LatestProgress = &pct
	at := latest.RecordedAt
	st.LastUpdate = &at

	var rows []struct {
		VerificationStatus models.VerificationStatus
		Count              int64
	}
	if err := db.Model(&models.ProgressRecord{}).
		Select("verification_status, COUNT(*) AS count").
		Where("site_id = ?", siteID).
		Group("verification_status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		st.VerificationCounts[r.VerificationStatus] = r.Count
	}
	return st, nil
}

// GlobalStatistics summarises every site.
type GlobalStatistics struct {
	TotalSites   int64 `json:"totalSites"`
	ActiveSites  int64 `json:"activeSites"`
	TotalUpdates int64 `json:"totalUpdates"`
	TotalUsers   int64 `json:"totalUsers"`
}

// GlobalStatistics counts sites, updates and users.
func (s *Store) GlobalStatistics(ctx context.Context) (*GlobalStatistics, error) {
	db := s.db.WithContext(ctx)
	st := &GlobalStatistics{}
	if err := db.Model(&models.Site{}).Count(&st.TotalSites).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Site{}).Where("status = ?", models.SiteActive).Count(&st.ActiveSites).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.ProgressRecord{}).Count(&st.TotalUpdates).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.User{}).Count(&st.TotalUsers).Error; err != nil {
		return nil, err
	}
	return st, nil
}
