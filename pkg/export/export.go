// Package export renders a site's progress history as CSV and XLSX reports.
package export

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"p9e.in/siteprogress/models"
	"p9e.in/siteprogress/pkg/analytics"
	"p9e.in/siteprogress/pkg/extractor"
)

// Source is what the builder reads from.
type Source interface {
	GetSite(ctx context.Context, id uuid.UUID) (*models.Site, error)
	SiteEntries(ctx context.Context, siteID uuid.UUID) ([]models.ProgressBundle, error)
	ListUsers(ctx context.Context) ([]models.User, error)
}

// Update is one exported record.
type Update struct {
	Facts    extractor.RecordFacts
	Author   string
	AIReport string
}

// Report is the data behind both export formats.
type Report struct {
	Site        *models.Site
	Month       string // YYYY-MM, empty for the full history
	GeneratedAt time.Time
	Updates     []Update
	Analytics   *analytics.Report
}

// Builder assembles reports.
type Builder struct {
	src Source
	log *zap.Logger
	now func() time.Time
}

// NewBuilder creates a Builder.
func NewBuilder(src Source, log *zap.Logger) *Builder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Builder{src: src, log: log, now: time.Now}
}

// ParseMonth validates a YYYY-MM filter. An empty string means no filter.
func ParseMonth(month string) (string, error) {
	month = strings.TrimSpace(month)
	if month == "" {
		return "", nil
	}
	t, err := time.Parse("2006-01", month)
	if err != nil {
		return "", models.NewValidationError("month", "must be YYYY-MM, got %q", month)
	}
	return t.Format("2006-01"), nil
}

// Build loads every record of a site, optionally limited to one month.
func (b *Builder) Build(ctx context.Context, siteID uuid.UUID, month string) (*Report, error) {
	month, err := ParseMonth(month)
	if err != nil {
		return nil, err
	}
	site, err := b.src.GetSite(ctx, siteID)
	if err != nil {
		return nil, err
	}
	bundles, err := b.src.SiteEntries(ctx, siteID)
	if err != nil {
		return nil, err
	}
	users, err := b.src.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[uuid.UUID]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Username
	}

	rep := &Report{Site: site, Month: month, GeneratedAt: b.now().UTC()}
	facts := &extractor.SiteFacts{Site: site, FloorOrder: site.FloorLabels()}
	for _, bundle := range bundles {
		if month != "" && bundle.Record.RecordedAt.UTC().Format("2006-01") != month {
			continue
		}
		rf := extractor.FromBundle(bundle)
		author := names[bundle.Record.AuthorID]
		if author == "" {
			author = "Unknown"
		}
		rep.Updates = append(rep.Updates, Update{Facts: rf, Author: author, AIReport: bundle.Record.AIReport})
		facts.Records = append(facts.Records, rf)
	}
	sort.SliceStable(rep.Updates, func(i, j int) bool {
		return rep.Updates[i].Facts.RecordedAt.After(rep.Updates[j].Facts.RecordedAt)
	})
	rep.Analytics = analytics.Build(facts)

	b.log.Info("export built",
		zap.String("site_id", siteID.String()),
		zap.String("month", month),
		zap.Int("updates", len(rep.Updates)))
	return rep, nil
}

// Columns of the Updates table in both formats.
var Columns = []string{
	"Date", "Category", "Engineer", "Floor", "Floor Progress %", "Overall Progress %",
	"Verification Status", "Work Phase", "Work Types", "Description Summary", "AI Report Summary",
}

const notAvailable = "N/A"

// rows flattens the updates to one row per floor; an update without floors
// produces a single row with N/A floor columns.
func (r *Report) rows() [][]string {
	var out [][]string
	for _, u := range r.Updates {
		base := func(floor, floorProgress, phase, works string) []string {
			return []string{
				u.Facts.RecordedAt.Format("2006-01-02 15:04:05"),
				u.Facts.Category,
				u.Author,
				floor,
				floorProgress,
				fmt.Sprintf("%d", u.Facts.ProgressPercentage),
				string(u.Facts.VerificationStatus),
				phase,
				works,
				truncate(u.Facts.Summary, 200),
				aiSummary(u.AIReport),
			}
		}
		if len(u.Facts.Floors) == 0 {
			out = append(out, base(notAvailable, notAvailable, notAvailable, notAvailable))
			continue
		}
		for _, f := range u.Facts.Floors {
			progress := fmt.Sprintf("%d", f.Progress)
			if f.Detached {
				progress = notAvailable
			}
			out = append(out, base(orNA(f.Label), progress, orNA(f.WorkPhase), workList(f.WorkTypes)))
		}
	}
	return out
}

func workList(works []extractor.WorkFact) string {
	if len(works) == 0 {
		return notAvailable
	}
	parts := make([]string, 0, len(works))
	for _, w := range works {
		if w.HasProgress {
			parts = append(parts, fmt.Sprintf("%s: %s | %d%%", w.Name, w.Status, w.Progress))
		} else {
			parts = append(parts, fmt.Sprintf("%s: %s", w.Name, w.Status))
		}
	}
	return strings.Join(parts, "; ")
}

func aiSummary(report string) string {
	report = strings.TrimSpace(report)
	if report == "" {
		return notAvailable
	}
	first, _, _ := strings.Cut(report, "\n")
	return truncateRunes(first, 150)
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return truncateRunes(s, n) + "..."
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return notAvailable
	}
	return s
}

// Filename returns the download name for a report.
func Filename(site *models.Site, ext string, at time.Time) string {
	return fmt.Sprintf("monthly_progress_report_%s_%s.%s", sanitizeFilename(site.Name), at.Format("20060102"), ext)
}

func sanitizeFilename(filename string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, filename)
}
