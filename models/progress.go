package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// VerificationStatus is the label derived from the analysis report.
type VerificationStatus string

const (
	StatusVerified          VerificationStatus = "Verified"
	StatusPartiallyVerified VerificationStatus = "Partially Verified"
	StatusNotVerified       VerificationStatus = "Not Verified"
	StatusNeedsReview       VerificationStatus = "Needs Review"
	StatusError             VerificationStatus = "Error"
)

// VerificationStatuses in display order.
var VerificationStatuses = []VerificationStatus{
	StatusVerified, StatusPartiallyVerified, StatusNotVerified, StatusNeedsReview, StatusError,
}

// Work categories offered for an update. Anything else is stored as CategoryOther.
const CategoryOther = "Other"

var WorkCategories = []string{
	"Foundation Work",
	"Structural Work",
	"Masonry",
	"Electrical Work",
	"Plumbing",
	"Finishing Work",
	"HVAC",
	"Landscaping",
	CategoryOther,
}

// NormalizeCategory returns the canonical spelling of a known category,
// CategoryOther for unknown text and "" for blank input.
func NormalizeCategory(c string) string {
	c = strings.TrimSpace(c)
	if c == "" {
		return ""
	}
	for _, known := range WorkCategories {
		if strings.EqualFold(known, c) {
			return known
		}
	}
	return CategoryOther
}

// RecordFormat tells the extractor where a record's floor data lives.
type RecordFormat string

const (
	// FormatStructured records carry FloorEntry and WorkTypeEntry rows.
	FormatStructured RecordFormat = "structured"
	// FormatLegacy records predate structured storage; floor data is
	// embedded in Description until materialized.
	FormatLegacy RecordFormat = "legacy"
)

// Image blob encodings.
const (
	ImageEncodingGob          = "gob"
	ImageEncodingLegacyPickle = "legacy-pickle"
)

// ImageMeta describes one image packed into ProgressRecord.ImageBlob.
type ImageMeta struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Bytes       int    `json:"bytes"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
}

// ProgressRecord is one submitted site update. Rows are never updated or
// deleted once written.
type ProgressRecord struct {
	ID                 uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	SiteID             uuid.UUID          `gorm:"type:uuid;not null;index:idx_progress_site_time,priority:1" json:"siteId"`
	AuthorID           uuid.UUID          `gorm:"type:uuid;not null;index" json:"authorId"`
	RecordedAt         time.Time          `gorm:"not null;index:idx_progress_site_time,priority:2" json:"recordedAt"`
	Category           string             `gorm:"size:50;not null" json:"category"`
	Description        string             `gorm:"type:text;not null" json:"description"`
	ImageBlob          []byte             `json:"-"`
	ImageEncoding      string             `gorm:"size:20" json:"imageEncoding,omitempty"`
	ImageCount         int                `gorm:"not null;default:0" json:"imageCount"`
	ImageManifest      datatypes.JSON     `json:"imageManifest,omitempty"`
	AIReport           string             `gorm:"type:text" json:"aiReport"`
	VerificationStatus VerificationStatus `gorm:"size:30;not null;index" json:"verificationStatus"`
	ProgressPercentage int                `gorm:"not null" json:"progressPercentage"`
	Latitude           *float64           `json:"latitude,omitempty"`
	Longitude          *float64           `json:"longitude,omitempty"`
	Format             RecordFormat       `gorm:"size:20;not null;default:structured" json:"format"`
	ImportKey          *string            `gorm:"size:64;uniqueIndex" json:"-"`
	CreatedAt          time.Time          `json:"createdAt"`
}

func (p *ProgressRecord) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return
}

// ProgressBundle is a record together with its structured floor rows, as
// loaded for extraction and export.
type ProgressBundle struct {
	Record    ProgressRecord  `json:"record"`
	Floors    []FloorEntry    `json:"floors"`
	WorkTypes []WorkTypeEntry `json:"workTypes"`
}
