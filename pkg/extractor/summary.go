package extractor

import (
	"sort"
	"time"

	"p9e.in/siteprogress/models"
	"p9e.in/siteprogress/utils"
)

// FloorSummary aggregates every update that touched one floor.
type FloorSummary struct {
	FloorLabel            string    `json:"floorLabel"`
	UpdateCount           int       `json:"updateCount"`
	AverageFloorProgress  float64   `json:"averageFloorProgress"`
	MostRecentWorkPhase   string    `json:"mostRecentWorkPhase"`
	DistinctWorkTypeCount int       `json:"distinctWorkTypeCount"`
	LastUpdated           time.Time `json:"lastUpdated"`
}

// WorkTypeSummary aggregates every occurrence of one work type.
// AverageProgress is nil when no occurrence carried a percentage.
type WorkTypeSummary struct {
	WorkTypeName          string   `json:"workTypeName"`
	TotalOccurrences      int      `json:"totalOccurrences"`
	CompletedOccurrences  int      `json:"completedOccurrences"`
	InProgressOccurrences int      `json:"inProgressOccurrences"`
	OtherOccurrences      int      `json:"otherOccurrences"`
	ProgressSamples       int      `json:"progressSamples"`
	AverageProgress       *float64 `json:"averageProgress,omitempty"`
	LatestStatus          string   `json:"latestStatus"`
}

// WorkTypeDetail is one work type within one floor. Samples counts the
// updates that carried a percentage; with none, both progress fields are nil.
type WorkTypeDetail struct {
	WorkName        string    `json:"workName"`
	Updates         int       `json:"updates"`
	Samples         int       `json:"samples"`
	AverageProgress *float64  `json:"averageProgress,omitempty"`
	LatestProgress  *int      `json:"latestProgress,omitempty"`
	LatestStatus    string    `json:"latestStatus"`
	LastUpdated     time.Time `json:"lastUpdated"`
}

// FloorDetail lists the work types reported on one floor.
type FloorDetail struct {
	FloorLabel string           `json:"floorLabel"`
	WorkTypes  []WorkTypeDetail `json:"workTypes"`
}

// SummarizeFloors computes one FloorSummary per floor label appearing in
// records. The average is the simple mean of per-update floor progress; the
// most recent phase comes from the chronologically last update, input order
// breaking ties. Output follows order (the site's floor list) with unknown
// labels last.
func SummarizeFloors(records []RecordFacts, order []string) []FloorSummary {
	type acc struct {
		progress  []float64
		phase     string
		last      time.Time
		workTypes map[string]bool
	}
	byFloor := map[string]*acc{}

	for _, r := range chronological(records) {
		for _, f := range r.Floors {
			if f.Detached {
				continue
			}
			a := byFloor[f.Label]
			if a == nil {
				a = &acc{workTypes: map[string]bool{}}
				byFloor[f.Label] = a
			}
			a.progress = append(a.progress, float64(f.Progress))
			a.phase = f.WorkPhase
			a.last = r.RecordedAt
			for _, w := range f.WorkTypes {
				a.workTypes[w.Name] = true
			}
		}
	}

	labels := make([]string, 0, len(byFloor))
	for l := range byFloor {
		labels = append(labels, l)
	}
	utils.SortFloors(labels, order)

	out := make([]FloorSummary, 0, len(labels))
	for _, l := range labels {
		a := byFloor[l]
		out = append(out, FloorSummary{
			FloorLabel:            l,
			UpdateCount:           len(a.progress),
			AverageFloorProgress:  utils.Mean(a.progress),
			MostRecentWorkPhase:   a.phase,
			DistinctWorkTypeCount: len(a.workTypes),
			LastUpdated:           a.last,
		})
	}
	return out
}

// SummarizeWorkTypes computes one WorkTypeSummary per work-type name using
// the Classify buckets. Catalog work types come first in catalog order,
// others follow alphabetically.
func SummarizeWorkTypes(records []RecordFacts) []WorkTypeSummary {
	type acc struct {
		WorkTypeSummary
		progress []float64
	}
	byName := map[string]*acc{}

	for _, r := range chronological(records) {
		for _, f := range r.Floors {
			for _, w := range f.WorkTypes {
				a := byName[w.Name]
				if a == nil {
					a = &acc{WorkTypeSummary: WorkTypeSummary{WorkTypeName: w.Name}}
					byName[w.Name] = a
				}
				a.TotalOccurrences++
				switch w.Bucket {
				case BucketCompleted:
					a.CompletedOccurrences++
				case BucketInProgress:
					a.InProgressOccurrences++
				default:
					a.OtherOccurrences++
				}
				if w.HasProgress {
					a.progress = append(a.progress, float64(w.Progress))
				}
				a.LatestStatus = w.Status
			}
		}
	}

	out := make([]WorkTypeSummary, 0, len(byName))
	for _, a := range byName {
		s := a.WorkTypeSummary
		s.ProgressSamples = len(a.progress)
		s.AverageProgress = utils.MeanOrNil(a.progress)
		out = append(out, s)
	}
	SortWorkTypes(out, func(s WorkTypeSummary) string { return s.WorkTypeName })
	return out
}

// FloorWorkTypeDetails breaks each floor down by work type.
func FloorWorkTypeDetails(records []RecordFacts, order []string) []FloorDetail {
	type acc struct {
		WorkTypeDetail
		progress []float64
	}
	byFloor := map[string]map[string]*acc{}

	for _, r := range chronological(records) {
		for _, f := range r.Floors {
			if f.Detached {
				continue
			}
			works := byFloor[f.Label]
			if works == nil {
				works = map[string]*acc{}
				byFloor[f.Label] = works
			}
			for _, w := range f.WorkTypes {
				a := works[w.Name]
				if a == nil {
					a = &acc{WorkTypeDetail: WorkTypeDetail{WorkName: w.Name}}
					works[w.Name] = a
				}
				a.Updates++
				if w.HasProgress {
					a.progress = append(a.progress, float64(w.Progress))
					pct := w.Progress
					a.LatestProgress = &pct
				}
				a.LatestStatus = w.Status
				a.LastUpdated = r.RecordedAt
			}
		}
	}

	labels := make([]string, 0, len(byFloor))
	for l := range byFloor {
		labels = append(labels, l)
	}
	utils.SortFloors(labels, order)

	out := make([]FloorDetail, 0, len(labels))
	for _, l := range labels {
		detail := FloorDetail{FloorLabel: l}
		for _, a := range byFloor[l] {
			d := a.WorkTypeDetail
			d.Samples = len(a.progress)
			d.AverageProgress = utils.MeanOrNil(a.progress)
			detail.WorkTypes = append(detail.WorkTypes, d)
		}
		SortWorkTypes(detail.WorkTypes, func(d WorkTypeDetail) string { return d.WorkName })
		out = append(out, detail)
	}
	return out
}

// SortWorkTypes orders items by catalog position, then name.
func SortWorkTypes[T any](items []T, name func(T) string) {
	order := models.CatalogOrder()
	sort.SliceStable(items, func(i, j int) bool {
		a, b := name(items[i]), name(items[j])
		ia, okA := order[a]
		ib, okB := order[b]
		switch {
		case okA && okB:
			return ia < ib
		case okA != okB:
			return okA
		}
		return a < b
	})
}
