// Package extractor turns stored progress records into per-floor and
// per-work-type facts. New records carry structured rows; records written
// before those rows existed are read from the floor blocks embedded in their
// description text.
package extractor

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"p9e.in/siteprogress/models"
)

// EntrySource loads a site and every record of it with its structured rows.
type EntrySource interface {
	GetSite(ctx context.Context, id uuid.UUID) (*models.Site, error)
	SiteEntries(ctx context.Context, siteID uuid.UUID) ([]models.ProgressBundle, error)
}

// MissObserver is told about every piece of legacy text that could not be
// recovered.
type MissObserver interface {
	ObserveParseMiss(reason string)
}

// SiteFacts is everything the read side needs about one site.
type SiteFacts struct {
	Site       *models.Site  `json:"site"`
	FloorOrder []string      `json:"floorOrder"`
	Records    []RecordFacts `json:"records"`
}

// Extractor resolves a site's records into facts.
type Extractor struct {
	src    EntrySource
	log    *zap.Logger
	misses MissObserver
}

// New creates an Extractor. misses may be nil.
func New(src EntrySource, log *zap.Logger, misses MissObserver) *Extractor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Extractor{src: src, log: log, misses: misses}
}

// SiteFacts loads and resolves every record of a site, oldest first.
func (e *Extractor) SiteFacts(ctx context.Context, siteID uuid.UUID) (*SiteFacts, error) {
	site, err := e.src.GetSite(ctx, siteID)
	if err != nil {
		return nil, err
	}
	bundles, err := e.src.SiteEntries(ctx, siteID)
	if err != nil {
		return nil, fmt.Errorf("load entries for site %s: %w", siteID, err)
	}

	facts := &SiteFacts{
		Site:       site,
		FloorOrder: site.FloorLabels(),
		Records:    make([]RecordFacts, 0, len(bundles)),
	}
	var legacy, missed int
	for _, b := range bundles {
		rf := FromBundle(b)
		if rf.Source == SourceLegacy {
			legacy++
			if len(rf.Misses) > 0 {
				missed++
			}
			for _, m := range rf.Misses {
				if e.misses != nil {
					e.misses.ObserveParseMiss(string(m))
				}
			}
		}
		facts.Records = append(facts.Records, rf)
	}
	facts.Records = chronological(facts.Records)

	if legacy > 0 {
		e.log.Debug("resolved legacy records",
			zap.String("site_id", siteID.String()),
			zap.Int("legacy", legacy),
			zap.Int("with_misses", missed))
	}
	return facts, nil
}

// Floors returns the floor summaries of a site.
func (e *Extractor) Floors(ctx context.Context, siteID uuid.UUID) ([]FloorSummary, error) {
	facts, err := e.SiteFacts(ctx, siteID)
	if err != nil {
		return nil, err
	}
	return SummarizeFloors(facts.Records, facts.FloorOrder), nil
}

// WorkTypes returns the work-type summaries of a site.
func (e *Extractor) WorkTypes(ctx context.Context, siteID uuid.UUID) ([]WorkTypeSummary, error) {
	facts, err := e.SiteFacts(ctx, siteID)
	if err != nil {
		return nil, err
	}
	return SummarizeWorkTypes(facts.Records), nil
}
