package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"p9e.in/siteprogress/utils"
)

// SiteStatus is the administrative lifecycle state of a site.
type SiteStatus string

const (
	SiteActive    SiteStatus = "Active"
	SiteCompleted SiteStatus = "Completed"
	SiteOnHold    SiteStatus = "On Hold"
	SiteCancelled SiteStatus = "Cancelled"
)

// SiteStatuses lists every accepted status in display order.
var SiteStatuses = []SiteStatus{SiteActive, SiteCompleted, SiteOnHold, SiteCancelled}

// ParseSiteStatus accepts any casing and the "OnHold" spelling.
func ParseSiteStatus(s string) (SiteStatus, bool) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "")
	for _, st := range SiteStatuses {
		if strings.ReplaceAll(strings.ToLower(string(st)), " ", "") == norm {
			return st, true
		}
	}
	return "", false
}

// Default building shape used when a site is created without one.
const (
	DefaultBasements = 0
	DefaultFloors    = 10
	DefaultHasRoof   = true
)

// Site is a construction site. Its building shape fixes the list of floor
// labels that progress entries may reference.
type Site struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Name         string         `gorm:"size:150;uniqueIndex;not null" json:"name"`
	Location     string         `gorm:"size:255;not null" json:"location"`
	Description  string         `gorm:"type:text" json:"description,omitempty"`
	StartDate    *time.Time     `json:"startDate,omitempty"`
	Status       SiteStatus     `gorm:"size:20;not null;default:Active" json:"status"`
	NumBasements int            `gorm:"not null;default:0" json:"numBasements"`
	NumFloors    int            `gorm:"not null;default:10" json:"numFloors"`
	HasRoof      bool           `gorm:"not null" json:"hasRoof"`
	Geofence     datatypes.JSON `json:"geofence,omitempty"` // {"coordinates":[{lat,lng},...]}
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// BeforeCreate hook for Site
func (s *Site) BeforeCreate(tx *gorm.DB) (err error) {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return
}

// FloorLabels returns the ordered floor labels implied by the building shape.
func (s *Site) FloorLabels() []string {
	return utils.FloorLabels(s.NumBasements, s.NumFloors, s.HasRoof)
}

// HasFloor reports whether label is one of the site's floors.
func (s *Site) HasFloor(label string) bool {
	return utils.ContainsFloor(s.FloorLabels(), label)
}

// ParsedGeofence decodes the stored geofence, nil when none is set.
func (s *Site) ParsedGeofence() (*utils.Geofence, error) {
	if len(s.Geofence) == 0 || string(s.Geofence) == "null" {
		return nil, nil
	}
	return utils.ParseGeofence(string(s.Geofence))
}

// Validate checks the fields an administrator supplies.
func (s *Site) Validate() error {
	var errs ValidationErrors
	if strings.TrimSpace(s.Name) == "" {
		errs.Add("name", "is required")
	}
	if strings.TrimSpace(s.Location) == "" {
		errs.Add("location", "is required")
	}
	if s.NumBasements < 0 {
		errs.Add("numBasements", "must be 0 or more")
	}
	if s.NumFloors < 1 {
		errs.Add("numFloors", "must be at least 1")
	}
	if _, ok := ParseSiteStatus(string(s.Status)); !ok {
		errs.Add("status", "unknown status %q", s.Status)
	}
	if len(s.Geofence) > 0 {
		if err := utils.ValidateGeofence(string(s.Geofence)); err != nil {
			errs.Add("geofence", "%v", err)
		}
	}
	return errs.Err()
}
