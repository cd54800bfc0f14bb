package legacy

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"p9e.in/siteprogress/models"
	"p9e.in/siteprogress/pkg/extractor"
	"p9e.in/siteprogress/pkg/store"
)

// Store is the subset of the record store the importer writes to.
type Store interface {
	GetSiteByName(ctx context.Context, name string) (*models.Site, error)
	CreateSite(ctx context.Context, site *models.Site) error
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	ImportUser(ctx context.Context, u *models.User) error
	ImportKeyExists(ctx context.Context, key string) (bool, error)
	CreateProgress(ctx context.Context, in store.NewProgress) (*models.ProgressRecord, error)
	UnmaterializedLegacy(ctx context.Context, siteID *uuid.UUID) ([]models.ProgressRecord, error)
	AttachEntries(ctx context.Context, recordID uuid.UUID, floors []store.NewFloor, source models.EntrySource) (int, error)
}

// Options controls an import run.
type Options struct {
	// Materialize converts parsed floor blocks of records without
	// work_types rows into structured rows during the import.
	Materialize bool
}

// Stats counts what an import or materialization did.
type Stats struct {
	UsersCreated    int `json:"usersCreated"`
	UsersReused     int `json:"usersReused"`
	SitesCreated    int `json:"sitesCreated"`
	SitesReused     int `json:"sitesReused"`
	RecordsImported int `json:"recordsImported"`
	RecordsSkipped  int `json:"recordsSkipped"`
	RecordsFailed   int `json:"recordsFailed"`
	FloorRows       int `json:"floorRows"`
	WorkTypeRows    int `json:"workTypeRows"`
}

// Importer copies an old database into the record store.
type Importer struct {
	store  Store
	log    *zap.Logger
	misses extractor.MissObserver
}

// NewImporter creates an Importer. misses may be nil.
func NewImporter(st Store, log *zap.Logger, misses extractor.MissObserver) *Importer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Importer{store: st, log: log, misses: misses}
}

// ImportKey identifies an old progress row so a rerun skips it.
func ImportKey(id int64) string { return fmt.Sprintf("progress:%d", id) }

// Import reads users, sites and progress from r. Each progress row is
// written in its own transaction; a failed row is counted and the run goes
// on. Rows already imported are skipped.
func (im *Importer) Import(ctx context.Context, r *Reader, opts Options) (*Stats, error) {
	stats := &Stats{}

	users, err := r.Users(ctx)
	if err != nil {
		return nil, err
	}
	userIDs := make(map[int64]uuid.UUID, len(users))
	for _, u := range users {
		id, created, err := im.user(ctx, u)
		if err != nil {
			return stats, fmt.Errorf("import user %q: %w", u.Username, err)
		}
		userIDs[u.ID] = id
		if created {
			stats.UsersCreated++
		} else {
			stats.UsersReused++
		}
	}

	sites, err := r.Sites(ctx)
	if err != nil {
		return stats, err
	}
	siteIDs := make(map[int64]uuid.UUID, len(sites))
	for _, s := range sites {
		id, created, err := im.site(ctx, s)
		if err != nil {
			return stats, fmt.Errorf("import site %q: %w", s.Name, err)
		}
		siteIDs[s.ID] = id
		if created {
			stats.SitesCreated++
		} else {
			stats.SitesReused++
		}
	}

	works := map[int64][]WorkType{}
	hasWorks, err := r.HasWorkTypes(ctx)
	if err != nil {
		return stats, err
	}
	if hasWorks {
		if works, err = r.WorkTypes(ctx); err != nil {
			return stats, err
		}
	}

	rows, err := r.Progress(ctx)
	if err != nil {
		return stats, err
	}
	for _, p := range rows {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		log := im.log.With(zap.Int64("legacy_id", p.ID))

		key := ImportKey(p.ID)
		exists, err := im.store.ImportKeyExists(ctx, key)
		if err != nil {
			return stats, err
		}
		if exists {
			stats.RecordsSkipped++
			continue
		}

		siteID, okSite := siteIDs[p.SiteID]
		authorID, okUser := userIDs[p.UserID]
		if !okSite || !okUser {
			log.Warn("legacy progress references a missing site or user",
				zap.Int64("site_id", p.SiteID), zap.Int64("user_id", p.UserID))
			stats.RecordsFailed++
			continue
		}

		in, err := im.record(p, key, siteID, authorID, works[p.ID], opts)
		if err != nil {
			log.Warn("legacy progress skipped", zap.Error(err))
			stats.RecordsFailed++
			continue
		}
		if _, err := im.store.CreateProgress(ctx, in); err != nil {
			log.Error("legacy progress import failed", zap.Error(err))
			stats.RecordsFailed++
			continue
		}
		stats.RecordsImported++
		for _, f := range in.Floors {
			stats.FloorRows++
			stats.WorkTypeRows += len(f.WorkTypes)
		}
	}

	im.log.Info("legacy import finished",
		zap.Int("records_imported", stats.RecordsImported),
		zap.Int("records_skipped", stats.RecordsSkipped),
		zap.Int("records_failed", stats.RecordsFailed))
	return stats, nil
}

func (im *Importer) user(ctx context.Context, u User) (uuid.UUID, bool, error) {
	existing, err := im.store.GetUserByUsername(ctx, u.Username)
	if err == nil {
		return existing.ID, false, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return uuid.Nil, false, err
	}
	role, ok := models.NormalizeRole(u.Role)
	if !ok {
		im.log.Warn("unknown legacy role, importing as viewer",
			zap.String("username", u.Username), zap.String("role", u.Role))
		role = models.RoleViewer
	}
	nu := &models.User{Username: u.Username, PasswordHash: u.Password, Role: role}
	if err := im.store.ImportUser(ctx, nu); err != nil {
		return uuid.Nil, false, err
	}
	return nu.ID, true, nil
}

func (im *Importer) site(ctx context.Context, s Site) (uuid.UUID, bool, error) {
	existing, err := im.store.GetSiteByName(ctx, s.Name)
	if err == nil {
		return existing.ID, false, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return uuid.Nil, false, err
	}

	status, ok := models.ParseSiteStatus(s.Status)
	if !ok {
		status = models.SiteActive
	}
	ns := &models.Site{
		Name:         s.Name,
		Location:     s.Location,
		Description:  s.Description,
		Status:       status,
		NumBasements: max(s.NumBasements, 0),
		NumFloors:    s.NumFloors,
		HasRoof:      s.HasRoof,
	}
	if ns.NumFloors < 1 {
		ns.NumFloors = models.DefaultFloors
	}
	if strings.TrimSpace(ns.Location) == "" {
		ns.Location = extractor.Unknown
	}
	if t, err := models.ParseTimestamp(s.StartDate); err == nil {
		ns.StartDate = &t
	}
	if err := im.store.CreateSite(ctx, ns); err != nil {
		return uuid.Nil, false, err
	}
	return ns.ID, true, nil
}

func (im *Importer) record(p Progress, key string, siteID, authorID uuid.UUID, works []WorkType, opts Options) (store.NewProgress, error) {
	at, err := models.ParseTimestamp(p.Date)
	if err != nil {
		return store.NewProgress{}, err
	}
	status := verificationStatus(p.VerificationStatus)
	in := store.NewProgress{
		SiteID:             siteID,
		AuthorID:           authorID,
		RecordedAt:         at,
		Category:           categoryOf(p.Category),
		Description:        p.Description,
		AIReport:           p.AIReport,
		VerificationStatus: status,
		ProgressPercentage: min(max(p.ProgressPercentage, 0), 100),
		Format:             models.FormatLegacy,
		ImportKey:          &key,
		Source:             models.SourceLegacyImport,
	}
	if len(p.Image) > 0 {
		in.ImageBlob = p.Image
		in.ImageEncoding = models.ImageEncodingLegacyPickle
		in.ImageCount = 1
	}

	parsed := extractor.ParseLegacy(p.Description)
	switch {
	case len(works) > 0:
		in.Floors = floorsFromRows(works, parsed)
	case opts.Materialize:
		im.observe(parsed.Misses)
		in.Floors = floorsFromParse(parsed)
	}
	return in, nil
}

func (im *Importer) observe(misses []extractor.MissReason) {
	if im.misses == nil {
		return
	}
	for _, m := range misses {
		im.misses.ObserveParseMiss(string(m))
	}
}

// Materialize adds structured rows to legacy records that still carry
// their floor data only as text. Records whose text holds no floor block
// are left alone and keep being read through the parser. A nil siteID
// covers every site.
func (im *Importer) Materialize(ctx context.Context, siteID *uuid.UUID) (*Stats, error) {
	records, err := im.store.UnmaterializedLegacy(ctx, siteID)
	if err != nil {
		return nil, err
	}
	stats := &Stats{}
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		parsed := extractor.ParseLegacy(rec.Description)
		im.observe(parsed.Misses)
		floors := floorsFromParse(parsed)
		if len(floors) == 0 {
			stats.RecordsSkipped++
			continue
		}
		n, err := im.store.AttachEntries(ctx, rec.ID, floors, models.SourceLegacyImport)
		switch {
		case errors.Is(err, models.ErrDuplicate):
			stats.RecordsSkipped++
			continue
		case err != nil:
			im.log.Error("materialize failed", zap.String("record_id", rec.ID.String()), zap.Error(err))
			stats.RecordsFailed++
			continue
		}
		stats.RecordsImported++
		stats.FloorRows += len(floors)
		stats.WorkTypeRows += n
	}
	im.log.Info("legacy records materialized",
		zap.Int("records", stats.RecordsImported),
		zap.Int("floor_rows", stats.FloorRows),
		zap.Int("work_type_rows", stats.WorkTypeRows))
	return stats, nil
}

// floorsFromParse keeps only real floor blocks. A detached checklist has
// no floor to attach to and stays readable through the parser.
func floorsFromParse(parsed extractor.LegacyParse) []store.NewFloor {
	var out []store.NewFloor
	for _, f := range parsed.Floors {
		if f.Detached {
			continue
		}
		nf := store.NewFloor{Label: f.Label, WorkPhase: f.WorkPhase, FloorProgress: f.Progress}
		for _, w := range f.WorkTypes {
			nw := store.NewWorkType{Name: w.Name, Status: w.Status}
			if w.HasProgress {
				pct := w.Progress
				nw.Progress = &pct
			}
			nf.WorkTypes = append(nf.WorkTypes, nw)
		}
		out = append(out, nf)
	}
	return out
}

// floorsFromRows groups work_types rows by floor name in first-seen order.
// Phase and floor progress come from the matching text block when there is
// one, otherwise the phase is unknown and progress is the rows' mean.
func floorsFromRows(rows []WorkType, parsed extractor.LegacyParse) []store.NewFloor {
	blocks := make(map[string]extractor.FloorFact, len(parsed.Floors))
	for _, f := range parsed.Floors {
		if !f.Detached {
			blocks[f.Label] = f
		}
	}

	index := map[string]int{}
	var out []store.NewFloor
	for _, r := range rows {
		label := strings.TrimSpace(r.FloorName)
		if label == "" {
			label = extractor.Unknown
		}
		i, ok := index[label]
		if !ok {
			i = len(out)
			index[label] = i
			out = append(out, store.NewFloor{Label: label, WorkPhase: extractor.Unknown})
		}
		pct := min(max(r.ProgressPercentage, 0), 100)
		out[i].WorkTypes = append(out[i].WorkTypes, store.NewWorkType{
			Name:     r.WorkName,
			Status:   r.Status,
			Progress: &pct,
		})
	}

	for i := range out {
		if b, ok := blocks[out[i].Label]; ok {
			out[i].WorkPhase = b.WorkPhase
			out[i].FloorProgress = b.Progress
			continue
		}
		out[i].FloorProgress = meanProgress(out[i].WorkTypes)
	}
	return out
}

// meanProgress averages the lines that carry a percentage, 0 when none do.
func meanProgress(works []store.NewWorkType) int {
	var sum, n int
	for _, w := range works {
		if w.Progress != nil {
			sum += *w.Progress
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / n
}

func categoryOf(c string) string {
	if n := models.NormalizeCategory(c); n != "" {
		return n
	}
	return models.CategoryOther
}

func verificationStatus(s string) models.VerificationStatus {
	for _, st := range models.VerificationStatuses {
		if strings.EqualFold(strings.TrimSpace(s), string(st)) {
			return st
		}
	}
	return models.StatusNeedsReview
}
