package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WorkStatus is the status an engineer selects for one work type on a floor.
type WorkStatus string

const (
	WorkNotStarted WorkStatus = "Not Started"
	WorkStarted    WorkStatus = "Started"
	Work25Complete WorkStatus = "25% Complete"
	Work50Complete WorkStatus = "50% Complete"
	Work75Complete WorkStatus = "75% Complete"
	WorkCompleted  WorkStatus = "Completed"
)

var WorkStatuses = []WorkStatus{
	WorkNotStarted, WorkStarted, Work25Complete, Work50Complete, Work75Complete, WorkCompleted,
}

// ParseWorkStatus matches s case-insensitively against WorkStatuses.
func ParseWorkStatus(s string) (WorkStatus, bool) {
	s = strings.TrimSpace(s)
	for _, st := range WorkStatuses {
		if strings.EqualFold(string(st), s) {
			return st, true
		}
	}
	return "", false
}

// WorkPhase is the overall phase of a floor in one update.
type WorkPhase string

const (
	PhaseNotStarted     WorkPhase = "Not Started"
	PhaseInProgress     WorkPhase = "In Progress"
	PhaseCompleted      WorkPhase = "Completed"
	PhaseUnderReview    WorkPhase = "Under Review"
	PhaseReworkRequired WorkPhase = "Rework Required"
)

var WorkPhases = []WorkPhase{
	PhaseNotStarted, PhaseInProgress, PhaseCompleted, PhaseUnderReview, PhaseReworkRequired,
}

// ParseWorkPhase matches s case-insensitively against WorkPhases.
func ParseWorkPhase(s string) (WorkPhase, bool) {
	s = strings.TrimSpace(s)
	for _, p := range WorkPhases {
		if strings.EqualFold(string(p), s) {
			return p, true
		}
	}
	return "", false
}

// EntrySource records how a structured row came to exist.
type EntrySource string

const (
	SourceForm         EntrySource = "form"
	SourceLegacyImport EntrySource = "legacy-import"
)

// FloorEntry is one floor reported in a progress record.
type FloorEntry struct {
	ID            uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	ProgressID    uuid.UUID   `gorm:"type:uuid;not null;index" json:"progressId"`
	SiteID        uuid.UUID   `gorm:"type:uuid;not null;index" json:"siteId"`
	FloorLabel    string      `gorm:"size:50;not null;index" json:"floorLabel"`
	WorkPhase     string      `gorm:"size:30;not null" json:"workPhase"`
	FloorProgress int         `gorm:"not null" json:"floorProgress"`
	Position      int         `gorm:"not null" json:"position"`
	RecordedAt    time.Time   `gorm:"not null" json:"recordedAt"`
	Source        EntrySource `gorm:"size:20;not null" json:"source"`
}

func (f *FloorEntry) BeforeCreate(tx *gorm.DB) (err error) {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return
}

// WorkTypeEntry is one (floor, work type) status line of a progress record.
// RecordedAt is copied from the parent record. ProgressPercentage is nil
// when the line carried a status but no percentage.
type WorkTypeEntry struct {
	ID                 uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	ProgressID         uuid.UUID   `gorm:"type:uuid;not null;index" json:"progressId"`
	FloorEntryID       uuid.UUID   `gorm:"type:uuid;not null;index" json:"floorEntryId"`
	SiteID             uuid.UUID   `gorm:"type:uuid;not null;index" json:"siteId"`
	FloorLabel         string      `gorm:"size:50;not null;index" json:"floorLabel"`
	WorkName           string      `gorm:"size:100;not null" json:"workName"`
	Status             string      `gorm:"size:30;not null" json:"status"`
	ProgressPercentage *int        `json:"progressPercentage,omitempty"`
	Position           int         `gorm:"not null" json:"position"`
	RecordedAt         time.Time   `gorm:"not null" json:"recordedAt"`
	Source             EntrySource `gorm:"size:20;not null" json:"source"`
}

func (w *WorkTypeEntry) BeforeCreate(tx *gorm.DB) (err error) {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return
}
