// Package analytics computes the site dashboards from extracted facts.
// Every view is a pure function of its input and is recomputed per request.
package analytics

import (
	"sort"
	"time"

	"p9e.in/siteprogress/models"
	"p9e.in/siteprogress/pkg/extractor"
	"p9e.in/siteprogress/utils"
)

// TimelinePoint is one update on the progress series.
type TimelinePoint struct {
	RecordedAt         time.Time                 `json:"recordedAt"`
	ProgressPercentage int                       `json:"progressPercentage"`
	MovingAverage      float64                   `json:"movingAverage"`
	Category           string                    `json:"category"`
	VerificationStatus models.VerificationStatus `json:"verificationStatus"`
}

// timelineWindow is the number of updates smoothed by MovingAverage.
const timelineWindow = 3

// Timeline returns the overall progress series, oldest first.
func Timeline(records []extractor.RecordFacts) []TimelinePoint {
	sorted := sortedByTime(records)
	values := make([]float64, len(sorted))
	for i, r := range sorted {
		values[i] = float64(r.ProgressPercentage)
	}
	smoothed := utils.MovingAverage(values, timelineWindow)

	out := make([]TimelinePoint, len(sorted))
	for i, r := range sorted {
		out[i] = TimelinePoint{
			RecordedAt:         r.RecordedAt,
			ProgressPercentage: r.ProgressPercentage,
			MovingAverage:      utils.Round1(smoothed[i]),
			Category:           r.Category,
			VerificationStatus: r.VerificationStatus,
		}
	}
	return out
}

// Count is one histogram bar.
type Count struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// CategoryBreakdown counts updates per work category, largest first.
func CategoryBreakdown(records []extractor.RecordFacts) []Count {
	return histogram(records, func(r extractor.RecordFacts) string { return r.Category })
}

// VerificationBreakdown counts updates per verification status, largest first.
func VerificationBreakdown(records []extractor.RecordFacts) []Count {
	return histogram(records, func(r extractor.RecordFacts) string { return string(r.VerificationStatus) })
}

func histogram(records []extractor.RecordFacts, key func(extractor.RecordFacts) string) []Count {
	counts := map[string]int{}
	for _, r := range records {
		counts[key(r)]++
	}
	out := make([]Count, 0, len(counts))
	for l, c := range counts {
		out = append(out, Count{Label: l, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// MonthlyStat is the update count and mean overall progress of a month.
type MonthlyStat struct {
	Month           string  `json:"month"` // YYYY-MM
	Updates         int     `json:"updates"`
	AverageProgress float64 `json:"averageProgress"`
}

// Monthly groups updates by calendar month (UTC), oldest first.
func Monthly(records []extractor.RecordFacts) []MonthlyStat {
	values := map[string][]float64{}
	for _, r := range records {
		m := r.RecordedAt.UTC().Format("2006-01")
		values[m] = append(values[m], float64(r.ProgressPercentage))
	}
	out := make([]MonthlyStat, 0, len(values))
	for m, v := range values {
		out = append(out, MonthlyStat{Month: m, Updates: len(v), AverageProgress: utils.Mean(v)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// Overview is the headline block of a site dashboard.
type Overview struct {
	TotalUpdates   int        `json:"totalUpdates"`
	LatestProgress *int       `json:"latestProgress,omitempty"`
	LastUpdate     *time.Time `json:"lastUpdate,omitempty"`
	VerifiedCount  int        `json:"verifiedCount"`
	Categories     int        `json:"categories"`
	FloorsReported int        `json:"floorsReported"`
}

// Summarize builds the overview of a site.
func Summarize(records []extractor.RecordFacts) Overview {
	o := Overview{TotalUpdates: len(records)}
	categories := map[string]bool{}
	floors := map[string]bool{}

	for _, r := range sortedByTime(records) {
		p, at := r.ProgressPercentage, r.RecordedAt
		o.LatestProgress, o.LastUpdate = &p, &at
		if r.VerificationStatus == models.StatusVerified {
			o.VerifiedCount++
		}
		categories[r.Category] = true
		for _, f := range r.Floors {
			if !f.Detached {
				floors[f.Label] = true
			}
		}
	}
	o.Categories = len(categories)
	o.FloorsReported = len(floors)
	return o
}

func sortedByTime(records []extractor.RecordFacts) []extractor.RecordFacts {
	out := append([]extractor.RecordFacts(nil), records...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].RecordedAt.Before(out[j].RecordedAt) })
	return out
}
