package analytics

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"p9e.in/siteprogress/models"
	"p9e.in/siteprogress/pkg/extractor"
	"p9e.in/siteprogress/utils"
)

var (
	jan = time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	feb = time.Date(2025, 2, 3, 10, 0, 0, 0, time.UTC)
)

func work(name, status string, progress int) extractor.WorkFact {
	return extractor.WorkFact{Name: name, Status: status, Bucket: extractor.Classify(status), Progress: progress, HasProgress: true}
}

func record(at time.Time, category string, status models.VerificationStatus, overall int, floors ...extractor.FloorFact) extractor.RecordFacts {
	return extractor.RecordFacts{
		RecordID:           uuid.New(),
		RecordedAt:         at,
		Category:           category,
		VerificationStatus: status,
		ProgressPercentage: overall,
		Source:             extractor.SourceStructured,
		Floors:             floors,
	}
}

func sampleFacts() *extractor.SiteFacts {
	return &extractor.SiteFacts{
		FloorOrder: utils.FloorLabels(1, 3, true),
		Records: []extractor.RecordFacts{
			record(feb, "Finishing Work", models.StatusPartiallyVerified, 60,
				extractor.FloorFact{Label: "2nd Floor", WorkPhase: "In Progress", Progress: 70, WorkTypes: []extractor.WorkFact{
					work("Plastering", "Completed", 100),
					work("Electrical Work", "50% Complete", 50),
				}},
			),
			record(jan, "Structural Work", models.StatusVerified, 20,
				extractor.FloorFact{Label: "Ground Floor", WorkPhase: "Completed", Progress: 100, WorkTypes: []extractor.WorkFact{
					work("Structural Work", "Completed", 100),
				}},
				extractor.FloorFact{Label: "2nd Floor", WorkPhase: "Not Started", Progress: 10, WorkTypes: []extractor.WorkFact{
					work("Plastering", "Started", 10),
				}},
			),
			record(jan.Add(24*time.Hour), "Structural Work", models.StatusVerified, 40),
		},
	}
}

func TestTimeline(t *testing.T) {
	tl := Timeline(sampleFacts().Records)
	require.Len(t, tl, 3)
	assert.Equal(t, []int{20, 40, 60}, []int{tl[0].ProgressPercentage, tl[1].ProgressPercentage, tl[2].ProgressPercentage})
	assert.Equal(t, 30.0, tl[1].MovingAverage)
	assert.Equal(t, 40.0, tl[2].MovingAverage)
}

func TestBreakdowns(t *testing.T) {
	facts := sampleFacts()

	assert.Equal(t, []Count{{"Structural Work", 2}, {"Finishing Work", 1}}, CategoryBreakdown(facts.Records))
	assert.Equal(t, []Count{{"Verified", 2}, {"Partially Verified", 1}}, VerificationBreakdown(facts.Records))
	assert.Empty(t, CategoryBreakdown(nil))
}

func TestMonthly(t *testing.T) {
	m := Monthly(sampleFacts().Records)
	assert.Equal(t, []MonthlyStat{
		{Month: "2025-01", Updates: 2, AverageProgress: 30},
		{Month: "2025-02", Updates: 1, AverageProgress: 60},
	}, m)
}

func TestSummarize(t *testing.T) {
	o := Summarize(sampleFacts().Records)
	assert.Equal(t, 3, o.TotalUpdates)
	require.NotNil(t, o.LatestProgress)
	assert.Equal(t, 60, *o.LatestProgress)
	assert.Equal(t, feb, *o.LastUpdate)
	assert.Equal(t, 2, o.VerifiedCount)
	assert.Equal(t, 2, o.Categories)
	assert.Equal(t, 2, o.FloorsReported)

	empty := Summarize(nil)
	assert.Nil(t, empty.LatestProgress)
}

func TestFloorWorkTypeMatrix(t *testing.T) {
	facts := sampleFacts()
	m := FloorWorkTypeMatrix(facts.Records, facts.FloorOrder)

	assert.Equal(t, []string{"Ground Floor", "2nd Floor"}, m.Floors)
	assert.Equal(t, []string{"Structural Work", "Plastering", "Electrical Work"}, m.WorkTypes)
	assert.Len(t, m.Cells, 3)

	c, ok := m.Cell("2nd Floor", "Plastering")
	require.True(t, ok)
	assert.Equal(t, 100, c.LatestProgress)
	assert.Equal(t, 55.0, c.AverageProgress)
	assert.Equal(t, 2, c.Samples)

	_, ok = m.Cell("Ground Floor", "Plastering")
	assert.False(t, ok, "missing cells are absent, not zero")
}

func TestFloorWorkTypeMatrix_SkipsUnknownProgress(t *testing.T) {
	rec := record(jan, "Masonry", models.StatusNeedsReview, 10, extractor.FloorFact{
		Label:     "1st Floor",
		WorkTypes: []extractor.WorkFact{{Name: "Masonry Work", Status: "Started", Bucket: extractor.BucketInProgress}},
	})
	m := FloorWorkTypeMatrix([]extractor.RecordFacts{rec}, nil)
	assert.Empty(t, m.Cells)
	assert.Empty(t, m.Floors)
}

func TestFloorCompletionStats(t *testing.T) {
	facts := sampleFacts()
	stats := FloorCompletionStats(facts.Records, facts.FloorOrder)
	require.Len(t, stats, 2)

	ground := stats[0]
	assert.Equal(t, "Ground Floor", ground.FloorLabel)
	assert.Equal(t, 1, ground.Completed)
	assert.Equal(t, 100.0, ground.CompletionRate)

	second := stats[1]
	assert.Equal(t, "2nd Floor", second.FloorLabel)
	assert.Equal(t, 2, second.WorkTypes)
	assert.Equal(t, 1, second.Completed)
	assert.Equal(t, 1, second.InProgress)
	assert.Equal(t, 2, second.WithProgress)
	require.NotNil(t, second.AverageProgress)
	assert.Equal(t, 75.0, *second.AverageProgress)
	assert.Equal(t, 50.0, second.CompletionRate)
}

func TestFloorCompletionStats_LinesWithoutPercentage(t *testing.T) {
	rec := record(jan, "Finishing Work", models.StatusVerified, 40, extractor.FloorFact{
		Label: "2nd Floor", WorkPhase: "In Progress", Progress: 60,
		WorkTypes: []extractor.WorkFact{
			{Name: "Plastering", Status: "Completed", Bucket: extractor.BucketCompleted, Progress: 100, HasProgress: true},
			{Name: "Electrical Work", Status: "Started", Bucket: extractor.BucketInProgress},
		},
	})
	stats := FloorCompletionStats([]extractor.RecordFacts{rec}, nil)
	require.Len(t, stats, 1)
	assert.Equal(t, 2, stats[0].WorkTypes)
	assert.Equal(t, 1, stats[0].Completed)
	assert.Equal(t, 1, stats[0].InProgress)
	assert.Equal(t, 1, stats[0].WithProgress)
	require.NotNil(t, stats[0].AverageProgress)
	assert.Equal(t, 100.0, *stats[0].AverageProgress, "a work type with no percentage is not averaged as zero")

	rec.Floors[0].WorkTypes = rec.Floors[0].WorkTypes[1:]
	stats = FloorCompletionStats([]extractor.RecordFacts{rec}, nil)
	require.Len(t, stats, 1)
	assert.Zero(t, stats[0].WithProgress)
	assert.Nil(t, stats[0].AverageProgress)
}

func TestBuild_FloorFilter(t *testing.T) {
	facts := sampleFacts()

	full := Build(facts)
	assert.Len(t, full.Floors, 2)
	assert.Equal(t, 3, full.Overview.TotalUpdates)

	scoped := Build(facts, "Ground Floor")
	require.Len(t, scoped.Floors, 1)
	assert.Equal(t, "Ground Floor", scoped.Floors[0].FloorLabel)
	require.Len(t, scoped.WorkTypes, 1)
	assert.Equal(t, "Structural Work", scoped.WorkTypes[0].WorkTypeName)
	assert.Equal(t, 3, scoped.Overview.TotalUpdates, "site-wide views ignore the filter")
	assert.Len(t, scoped.Timeline, 3)
}
