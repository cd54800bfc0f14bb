package analytics

import (
	"p9e.in/siteprogress/pkg/extractor"
	"p9e.in/siteprogress/utils"
)

// MatrixCell is the heatmap value of one (floor, work type) pair.
type MatrixCell struct {
	Floor           string  `json:"floor"`
	WorkType        string  `json:"workType"`
	LatestProgress  int     `json:"latestProgress"`
	AverageProgress float64 `json:"averageProgress"`
	Samples         int     `json:"samples"`
	LatestStatus    string  `json:"latestStatus"`
}

// Matrix is a sparse floor x work-type grid. A pair without any recorded
// percentage has no cell; absence means "no data", never zero.
type Matrix struct {
	Floors    []string     `json:"floors"`
	WorkTypes []string     `json:"workTypes"`
	Cells     []MatrixCell `json:"cells"`

	index map[[2]string]int
}

// Cell looks up one pair.
func (m *Matrix) Cell(floor, workType string) (MatrixCell, bool) {
	i, ok := m.index[[2]string{floor, workType}]
	if !ok {
		return MatrixCell{}, false
	}
	return m.Cells[i], true
}

// FloorWorkTypeMatrix builds the heatmap. Floors follow order, work types
// the catalog.
func FloorWorkTypeMatrix(records []extractor.RecordFacts, order []string) *Matrix {
	m := &Matrix{index: map[[2]string]int{}}
	samples := map[[2]string][]float64{}
	floors := map[string]bool{}
	works := map[string]bool{}

	for _, r := range sortedByTime(records) {
		for _, f := range r.Floors {
			if f.Detached {
				continue
			}
			for _, w := range f.WorkTypes {
				if !w.HasProgress {
					continue
				}
				key := [2]string{f.Label, w.Name}
				i, ok := m.index[key]
				if !ok {
					i = len(m.Cells)
					m.index[key] = i
					m.Cells = append(m.Cells, MatrixCell{Floor: f.Label, WorkType: w.Name})
				}
				samples[key] = append(samples[key], float64(w.Progress))
				m.Cells[i].LatestProgress = w.Progress
				m.Cells[i].LatestStatus = w.Status
				floors[f.Label] = true
				works[w.Name] = true
			}
		}
	}

	for key, i := range m.index {
		m.Cells[i].Samples = len(samples[key])
		m.Cells[i].AverageProgress = utils.Mean(samples[key])
	}
	for f := range floors {
		m.Floors = append(m.Floors, f)
	}
	utils.SortFloors(m.Floors, order)
	for w := range works {
		m.WorkTypes = append(m.WorkTypes, w)
	}
	extractor.SortWorkTypes(m.WorkTypes, func(s string) string { return s })
	return m
}

// FloorCompletion is the state of one floor using the latest status of each
// of its work types. AverageProgress only covers the WithProgress work types
// that ever carried a percentage and is nil when there are none.
type FloorCompletion struct {
	FloorLabel      string   `json:"floorLabel"`
	WorkTypes       int      `json:"workTypes"`
	Completed       int      `json:"completed"`
	InProgress      int      `json:"inProgress"`
	Other           int      `json:"other"`
	WithProgress    int      `json:"withProgress"`
	AverageProgress *float64 `json:"averageProgress,omitempty"`
	CompletionRate  float64  `json:"completionRate"` // percent of work types completed
}

// FloorCompletionStats summarises every floor, in building order.
func FloorCompletionStats(records []extractor.RecordFacts, order []string) []FloorCompletion {
	details := extractor.FloorWorkTypeDetails(records, order)
	out := make([]FloorCompletion, 0, len(details))
	for _, d := range details {
		fc := FloorCompletion{FloorLabel: d.FloorLabel, WorkTypes: len(d.WorkTypes)}
		var latest []float64
		for _, w := range d.WorkTypes {
			switch extractor.Classify(w.LatestStatus) {
			case extractor.BucketCompleted:
				fc.Completed++
			case extractor.BucketInProgress:
				fc.InProgress++
			default:
				fc.Other++
			}
			if w.LatestProgress != nil {
				latest = append(latest, float64(*w.LatestProgress))
			}
		}
		fc.WithProgress = len(latest)
		fc.AverageProgress = utils.MeanOrNil(latest)
		if fc.WorkTypes > 0 {
			fc.CompletionRate = utils.Round1(float64(fc.Completed) * 100 / float64(fc.WorkTypes))
		}
		out = append(out, fc)
	}
	return out
}

// Report bundles every dashboard view of a site.
type Report struct {
	Overview       Overview                    `json:"overview"`
	Timeline       []TimelinePoint             `json:"timeline"`
	Categories     []Count                     `json:"categories"`
	Verification   []Count                     `json:"verification"`
	Monthly        []MonthlyStat               `json:"monthly"`
	Floors         []extractor.FloorSummary    `json:"floors"`
	WorkTypes      []extractor.WorkTypeSummary `json:"workTypes"`
	Matrix         *Matrix                     `json:"matrix"`
	Completion     []FloorCompletion           `json:"completion"`
	FloorDetails   []extractor.FloorDetail     `json:"floorDetails"`
	FilteredFloors []string                    `json:"filteredFloors,omitempty"`
}

// Build computes the full report. When floors are given, floor-related views
// only consider those floors; site-wide views use every record.
func Build(facts *extractor.SiteFacts, floors ...string) *Report {
	all := facts.Records
	scoped := extractor.FilterFloors(all, floors...)
	return &Report{
		Overview:       Summarize(all),
		Timeline:       Timeline(all),
		Categories:     CategoryBreakdown(all),
		Verification:   VerificationBreakdown(all),
		Monthly:        Monthly(all),
		Floors:         extractor.SummarizeFloors(scoped, facts.FloorOrder),
		WorkTypes:      extractor.SummarizeWorkTypes(scoped),
		Matrix:         FloorWorkTypeMatrix(scoped, facts.FloorOrder),
		Completion:     FloorCompletionStats(scoped, facts.FloorOrder),
		FloorDetails:   extractor.FloorWorkTypeDetails(scoped, facts.FloorOrder),
		FilteredFloors: floors,
	}
}
