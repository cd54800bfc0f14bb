package extractor

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"p9e.in/siteprogress/models"
)

// Source says which path produced a record's facts.
type Source string

const (
	SourceStructured Source = "structured"
	SourceLegacy     Source = "legacy"
)

// WorkFact is one work-type line of one floor.
type WorkFact struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	Bucket      Bucket `json:"bucket"`
	Progress    int    `json:"progress"`
	HasProgress bool   `json:"hasProgress"`
}

// FloorFact is one floor reported by one record.
type FloorFact struct {
	Label     string     `json:"label"`
	WorkPhase string     `json:"workPhase"`
	Progress  int        `json:"progress"`
	WorkTypes []WorkFact `json:"workTypes"`
	// Detached marks work types found outside any floor block. They count
	// towards work-type totals but not towards floor statistics.
	Detached bool `json:"detached,omitempty"`
}

// RecordFacts is the uniform view of one progress record, whichever path
// its floor data came from.
type RecordFacts struct {
	RecordID           uuid.UUID                 `json:"recordId"`
	SiteID             uuid.UUID                 `json:"siteId"`
	AuthorID           uuid.UUID                 `json:"authorId"`
	RecordedAt         time.Time                 `json:"recordedAt"`
	Category           string                    `json:"category"`
	VerificationStatus models.VerificationStatus `json:"verificationStatus"`
	ProgressPercentage int                       `json:"progressPercentage"`
	Summary            string                    `json:"summary"`
	Source             Source                    `json:"source"`
	Floors             []FloorFact               `json:"floors"`
	Misses             []MissReason              `json:"misses,omitempty"`
}

// FromBundle builds the facts of one record.
//
// A record contributes through exactly one path: its structured rows when
// it has any, otherwise the legacy parse of its description. Records are
// not reconciled against each other, so the same work reported once as
// text and again as rows by two different records counts twice.
func FromBundle(b models.ProgressBundle) RecordFacts {
	rf := RecordFacts{
		RecordID:           b.Record.ID,
		SiteID:             b.Record.SiteID,
		AuthorID:           b.Record.AuthorID,
		RecordedAt:         b.Record.RecordedAt,
		Category:           b.Record.Category,
		VerificationStatus: b.Record.VerificationStatus,
		ProgressPercentage: b.Record.ProgressPercentage,
	}

	if len(b.Floors) > 0 || len(b.WorkTypes) > 0 {
		rf.Source = SourceStructured
		rf.Summary = ParseLegacy(b.Record.Description).Summary
		rf.Floors = structuredFloors(b.Floors, b.WorkTypes)
		return rf
	}

	parsed := ParseLegacy(b.Record.Description)
	rf.Source = SourceLegacy
	rf.Summary = parsed.Summary
	rf.Floors = parsed.Floors
	rf.Misses = parsed.Misses
	return rf
}

func structuredFloors(floors []models.FloorEntry, works []models.WorkTypeEntry) []FloorFact {
	floors = append([]models.FloorEntry(nil), floors...)
	sort.SliceStable(floors, func(i, j int) bool { return floors[i].Position < floors[j].Position })
	works = append([]models.WorkTypeEntry(nil), works...)
	sort.SliceStable(works, func(i, j int) bool { return works[i].Position < works[j].Position })

	byEntry := make(map[uuid.UUID]int, len(floors))
	byLabel := make(map[string]int, len(floors))
	out := make([]FloorFact, 0, len(floors))
	for _, f := range floors {
		byEntry[f.ID] = len(out)
		byLabel[f.FloorLabel] = len(out)
		out = append(out, FloorFact{Label: f.FloorLabel, WorkPhase: f.WorkPhase, Progress: f.FloorProgress})
	}

	// Rows without a floor entry are grouped by label, floor progress then
	// falls back to the mean of the percentages they carry.
	var orphans []int
	for _, w := range works {
		i, ok := byEntry[w.FloorEntryID]
		if !ok {
			if i, ok = byLabel[w.FloorLabel]; !ok {
				i = len(out)
				byLabel[w.FloorLabel] = i
				out = append(out, FloorFact{Label: w.FloorLabel, WorkPhase: Unknown})
				orphans = append(orphans, i)
			}
		}
		wf := WorkFact{
			Name:   w.WorkName,
			Status: w.Status,
			Bucket: Classify(w.Status),
		}
		if w.ProgressPercentage != nil {
			wf.Progress, wf.HasProgress = *w.ProgressPercentage, true
		}
		out[i].WorkTypes = append(out[i].WorkTypes, wf)
	}
	for _, i := range orphans {
		var sum, n int
		for _, w := range out[i].WorkTypes {
			if w.HasProgress {
				sum += w.Progress
				n++
			}
		}
		if n > 0 {
			out[i].Progress = sum / n
		}
	}
	return out
}

// FilterFloors keeps only the named floors. Records left without any floor
// are dropped. With no labels the input is returned unchanged.
func FilterFloors(records []RecordFacts, labels ...string) []RecordFacts {
	if len(labels) == 0 {
		return records
	}
	keep := make(map[string]bool, len(labels))
	for _, l := range labels {
		keep[l] = true
	}

	var out []RecordFacts
	for _, r := range records {
		var floors []FloorFact
		for _, f := range r.Floors {
			if keep[f.Label] {
				floors = append(floors, f)
			}
		}
		if len(floors) == 0 {
			continue
		}
		r.Floors = floors
		out = append(out, r)
	}
	return out
}

// chronological returns a copy ordered oldest first. Equal timestamps keep
// input order.
func chronological(records []RecordFacts) []RecordFacts {
	out := append([]RecordFacts(nil), records...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].RecordedAt.Before(out[j].RecordedAt) })
	return out
}
