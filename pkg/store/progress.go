package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"p9e.in/siteprogress/models"
)

// NewWorkType is one status line to persist under a floor. A nil Progress
// means no percentage was reported.
type NewWorkType struct {
	Name     string
	Status   string
	Progress *int
}

// NewFloor is one floor to persist with its work types.
type NewFloor struct {
	Label         string
	WorkPhase     string
	FloorProgress int
	WorkTypes     []NewWorkType
}

// NewProgress is everything written by one submission.
type NewProgress struct {
	SiteID             uuid.UUID
	AuthorID           uuid.UUID
	RecordedAt         time.Time
	Category           string
	Description        string
	ImageBlob          []byte
	ImageEncoding      string
	ImageCount         int
	ImageManifest      datatypes.JSON
	AIReport           string
	VerificationStatus models.VerificationStatus
	ProgressPercentage int
	Latitude           *float64
	Longitude          *float64
	Format             models.RecordFormat
	ImportKey          *string
	Floors             []NewFloor
	Source             models.EntrySource
}

// CreateProgress writes the record, its floor entries and their work type
// entries in a single transaction. Either every row is persisted or none is.
// Failures other than validation are returned as *models.StorageIntegrityError.
func (s *Store) CreateProgress(ctx context.Context, in NewProgress) (*models.ProgressRecord, error) {
	if in.RecordedAt.IsZero() {
		in.RecordedAt = time.Now()
	}
	in.RecordedAt = in.RecordedAt.UTC()
	if in.Format == "" {
		in.Format = models.FormatStructured
	}
	if in.Source == "" {
		in.Source = models.SourceForm
	}

	rec := &models.ProgressRecord{
		SiteID:             in.SiteID,
		AuthorID:           in.AuthorID,
		RecordedAt:         in.RecordedAt,
		Category:           in.Category,
		Description:        in.Description,
		ImageBlob:          in.ImageBlob,
		ImageEncoding:      in.ImageEncoding,
		ImageCount:         in.ImageCount,
		ImageManifest:      in.ImageManifest,
		AIReport:           in.AIReport,
		VerificationStatus: in.VerificationStatus,
		ProgressPercentage: in.ProgressPercentage,
		Latitude:           in.Latitude,
		Longitude:          in.Longitude,
		Format:             in.Format,
		ImportKey:          in.ImportKey,
	}
	if rec.VerificationStatus == "" {
		rec.VerificationStatus = models.StatusNeedsReview
	}

	var floorRows, workRows int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		site, err := s.checkRefs(tx, in.SiteID, in.AuthorID)
		if err != nil {
			return err
		}
		if err := checkPercentages(in); err != nil {
			return err
		}
		if in.Format == models.FormatStructured {
			if err := checkFloorLabels(site, in.Floors); err != nil {
				return err
			}
		}
		if err := tx.Create(rec).Error; err != nil {
			return fmt.Errorf("insert progress record: %w", err)
		}
		floorRows, workRows, err = insertEntries(tx, rec, in.Floors, in.Source)
		return err
	})
	if err != nil {
		return nil, s.classify("create progress", err)
	}

	s.log.Info("progress record saved",
		zap.String("record_id", rec.ID.String()),
		zap.String("site_id", rec.SiteID.String()),
		zap.String("format", string(rec.Format)),
		zap.Int("floor_entries", floorRows),
		zap.Int("work_type_entries", workRows))
	return rec, nil
}

// AttachEntries adds structured rows to an existing record that has none.
// It is used when materializing legacy descriptions.
func (s *Store) AttachEntries(ctx context.Context, recordID uuid.UUID, floors []NewFloor, source models.EntrySource) (int, error) {
	var workRows int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec models.ProgressRecord
		if err := tx.Omit("image_blob").First(&rec, "id = ?", recordID).Error; err != nil {
			return notFound(err)
		}
		var existing int64
		if err := tx.Model(&models.FloorEntry{}).Where("progress_id = ?", recordID).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return fmt.Errorf("record %s: %w", recordID, models.ErrDuplicate)
		}
		if err := checkFloorPercentages(floors); err != nil {
			return err
		}
		var err error
		_, workRows, err = insertEntries(tx, &rec, floors, source)
		return err
	})
	if err != nil {
		if errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrDuplicate) || models.IsValidation(err) {
			return 0, err
		}
		return 0, s.classify("attach entries", err)
	}
	return workRows, nil
}

// checkRefs verifies the site and author inside the transaction.
func (s *Store) checkRefs(tx *gorm.DB, siteID, authorID uuid.UUID) (*models.Site, error) {
	var errs models.ValidationErrors
	var site models.Site
	if err := tx.First(&site, "id = ?", siteID).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		errs.Add("siteId", "site %s does not exist", siteID)
	}
	var count int64
	if err := tx.Model(&models.User{}).Where("id = ?", authorID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		errs.Add("authorId", "user %s does not exist", authorID)
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}
	return &site, nil
}

func checkFloorLabels(site *models.Site, floors []NewFloor) error {
	var errs models.ValidationErrors
	for i, f := range floors {
		if !site.HasFloor(f.Label) {
			errs.Add(fmt.Sprintf("floors[%d].label", i), "%q is not a floor of %s", f.Label, site.Name)
		}
	}
	return errs.Err()
}

// checkPercentages rejects any percentage outside 0..100.
func checkPercentages(in NewProgress) error {
	var errs models.ValidationErrors
	checkPercent(&errs, "progressPercentage", in.ProgressPercentage)
	addFloorPercentages(&errs, in.Floors)
	return errs.Err()
}

func checkFloorPercentages(floors []NewFloor) error {
	var errs models.ValidationErrors
	addFloorPercentages(&errs, floors)
	return errs.Err()
}

func addFloorPercentages(errs *models.ValidationErrors, floors []NewFloor) {
	for i, f := range floors {
		field := fmt.Sprintf("floors[%d]", i)
		checkPercent(errs, field+".progress", f.FloorProgress)
		for j, w := range f.WorkTypes {
			if w.Progress != nil {
				checkPercent(errs, fmt.Sprintf("%s.workTypes[%d].progress", field, j), *w.Progress)
			}
		}
	}
}

func checkPercent(errs *models.ValidationErrors, field string, v int) {
	if v < 0 || v > 100 {
		errs.Add(field, "must be between 0 and 100, got %d", v)
	}
}

func insertEntries(tx *gorm.DB, rec *models.ProgressRecord, floors []NewFloor, source models.EntrySource) (int, int, error) {
	var workRows int
	for fi, f := range floors {
		fe := &models.FloorEntry{
			ProgressID:    rec.ID,
			SiteID:        rec.SiteID,
			FloorLabel:    strings.TrimSpace(f.Label),
			WorkPhase:     f.WorkPhase,
			FloorProgress: f.FloorProgress,
			Position:      fi,
			RecordedAt:    rec.RecordedAt,
			Source:        source,
		}
		if err := tx.Create(fe).Error; err != nil {
			return fi, workRows, fmt.Errorf("insert floor entry %q: %w", f.Label, err)
		}
		for wi, w := range f.WorkTypes {
			we := &models.WorkTypeEntry{
				ProgressID:         rec.ID,
				FloorEntryID:       fe.ID,
				SiteID:             rec.SiteID,
				FloorLabel:         fe.FloorLabel,
				WorkName:           strings.TrimSpace(w.Name),
				Status:             w.Status,
				ProgressPercentage: w.Progress,
				Position:           wi,
				RecordedAt:         rec.RecordedAt,
				Source:             source,
			}
			if err := tx.Create(we).Error; err != nil {
				return fi + 1, workRows, fmt.Errorf("insert work type entry %q on %q: %w", w.Name, f.Label, err)
			}
			workRows++
		}
	}
	return len(floors), workRows, nil
}

// classify passes validation errors through and wraps everything else.
func (s *Store) classify(op string, err error) error {
	if models.IsValidation(err) {
		return err
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%s: %w", op, models.ErrDuplicate)
	}
	s.log.Error("transaction rolled back", zap.String("op", op), zap.Error(err))
	return &models.StorageIntegrityError{Op: op, Err: err}
}

// ListProgress returns a site's records newest first without image blobs.
// limit <= 0 returns every record.
func (s *Store) ListProgress(ctx context.Context, siteID uuid.UUID, limit int) ([]models.ProgressRecord, error) {
	q := s.db.WithContext(ctx).Omit("image_blob").
		Where("site_id = ?", siteID).
		Order("recorded_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var records []models.ProgressRecord
	return records, q.Find(&records).Error
}

// GetProgress loads one record including its image blob.
func (s *Store) GetProgress(ctx context.Context, id uuid.UUID) (*models.ProgressRecord, error) {
	var rec models.ProgressRecord
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &rec, nil
}

// GetBundle loads one record with its structured rows.
func (s *Store) GetBundle(ctx context.Context, id uuid.UUID) (*models.ProgressBundle, error) {
	rec, err := s.GetProgress(ctx, id)
	if err != nil {
		return nil, err
	}
	b := &models.ProgressBundle{Record: *rec}
	db := s.db.WithContext(ctx)
	if err := db.Where("progress_id = ?", id).Order("position").Find(&b.Floors).Error; err != nil {
		return nil, err
	}
	if err := db.Where("progress_id = ?", id).Order("position").Find(&b.WorkTypes).Error; err != nil {
		return nil, err
	}
	return b, nil
}

// SiteEntries loads every record of a site in chronological order together
// with its floor and work type rows.
func (s *Store) SiteEntries(ctx context.Context, siteID uuid.UUID) ([]models.ProgressBundle, error) {
	db := s.db.WithContext(ctx)

	var records []models.ProgressRecord
	if err := db.Omit("image_blob").Where("site_id = ?", siteID).
		Order("recorded_at ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	var floors []models.FloorEntry
	if err := db.Where("site_id = ?", siteID).Order("position").Find(&floors).Error; err != nil {
		return nil, err
	}
	var works []models.WorkTypeEntry
	if err := db.Where("site_id = ?", siteID).Order("position").Find(&works).Error; err != nil {
		return nil, err
	}

	floorsBy := make(map[uuid.UUID][]models.FloorEntry)
	for _, f := range floors {
		floorsBy[f.ProgressID] = append(floorsBy[f.ProgressID], f)
	}
	worksBy := make(map[uuid.UUID][]models.WorkTypeEntry)
	for _, w := range works {
		worksBy[w.ProgressID] = append(worksBy[w.ProgressID], w)
	}

	bundles := make([]models.ProgressBundle, 0, len(records))
	for _, r := range records {
		bundles = append(bundles, models.ProgressBundle{
			Record:    r,
			Floors:    floorsBy[r.ID],
			WorkTypes: worksBy[r.ID],
		})
	}
	return bundles, nil
}

// UnmaterializedLegacy returns legacy records that have no floor entries.
// A nil siteID searches every site.
func (s *Store) UnmaterializedLegacy(ctx context.Context, siteID *uuid.UUID) ([]models.ProgressRecord, error) {
	q := s.db.WithContext(ctx).Omit("image_blob").
		Where("format = ?", models.FormatLegacy).
		Where("NOT EXISTS (SELECT 1 FROM floor_entries fe WHERE fe.progress_id = progress_records.id)").
		Order("recorded_at ASC")
	if siteID != nil {
		q = q.Where("site_id = ?", *siteID)
	}
	var records []models.ProgressRecord
	return records, q.Find(&records).Error
}

// ImportKeyExists reports whether a record with key was already imported.
func (s *Store) ImportKeyExists(ctx context.Context, key string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.ProgressRecord{}).Where("import_key = ?", key).Count(&count).Error
	return count > 0, err
}
