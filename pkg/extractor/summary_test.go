package extractor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"p9e.in/siteprogress/models"
)

var day = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

// noPercent marks a work row reported without a percentage.
const noPercent = -1

type workRow struct {
	name, status string
	progress     int
}

type floorRow struct {
	label, phase string
	progress     int
	works        []workRow
}

func bundle(siteID uuid.UUID, at time.Time, floors ...floorRow) models.ProgressBundle {
	rec := models.ProgressRecord{
		ID:                 uuid.New(),
		SiteID:             siteID,
		RecordedAt:         at,
		Category:           "Structural Work",
		Description:        "update",
		VerificationStatus: models.StatusVerified,
		ProgressPercentage: 40,
		Format:             models.FormatStructured,
	}
	b := models.ProgressBundle{Record: rec}
	for i, f := range floors {
		fe := models.FloorEntry{ID: uuid.New(), ProgressID: rec.ID, SiteID: siteID, FloorLabel: f.label,
			WorkPhase: f.phase, FloorProgress: f.progress, Position: i, RecordedAt: at}
		b.Floors = append(b.Floors, fe)
		for j, w := range f.works {
			we := models.WorkTypeEntry{ID: uuid.New(), ProgressID: rec.ID,
				FloorEntryID: fe.ID, SiteID: siteID, FloorLabel: f.label, WorkName: w.name, Status: w.status,
				Position: j, RecordedAt: at}
			if w.progress != noPercent {
				pct := w.progress
				we.ProgressPercentage = &pct
			}
			b.WorkTypes = append(b.WorkTypes, we)
		}
	}
	return b
}

func legacyBundle(siteID uuid.UUID, at time.Time, description string) models.ProgressBundle {
	return models.ProgressBundle{Record: models.ProgressRecord{
		ID: uuid.New(), SiteID: siteID, RecordedAt: at, Category: "Masonry",
		Description: description, VerificationStatus: models.StatusNeedsReview, Format: models.FormatLegacy,
	}}
}

func factsOf(bundles ...models.ProgressBundle) []RecordFacts {
	out := make([]RecordFacts, 0, len(bundles))
	for _, b := range bundles {
		out = append(out, FromBundle(b))
	}
	return out
}

func TestSummarizeFloors_Structured(t *testing.T) {
	site := uuid.New()
	order := []string{"Basement 1", "Ground Floor", "1st Floor", "2nd Floor"}

	records := factsOf(
		bundle(site, day,
			floorRow{"2nd Floor", "In Progress", 30, []workRow{{"Plastering", "Started", 20}, {"Painting", "Not Started", 0}}},
			floorRow{"Ground Floor", "Completed", 100, []workRow{{"Flooring", "Completed", 100}}},
		),
		bundle(site, day.Add(48*time.Hour),
			floorRow{"2nd Floor", "Under Review", 50, []workRow{{"Plastering", "Completed", 100}}},
		),
		bundle(site, day.Add(24*time.Hour),
			floorRow{"2nd Floor", "In Progress", 40, []workRow{{"Electrical Work", "50% Complete", 50}}},
		),
	)

	floors := SummarizeFloors(records, order)
	require.Len(t, floors, 2)

	assert.Equal(t, "Ground Floor", floors[0].FloorLabel, "ordered by building position")
	assert.Equal(t, 1, floors[0].UpdateCount)
	assert.Equal(t, 100.0, floors[0].AverageFloorProgress)

	second := floors[1]
	assert.Equal(t, "2nd Floor", second.FloorLabel)
	assert.Equal(t, 3, second.UpdateCount)
	assert.InDelta(t, (30.0+50.0+40.0)/3, second.AverageFloorProgress, 1e-9)
	assert.Equal(t, "Under Review", second.MostRecentWorkPhase, "latest by timestamp, not input order")
	assert.Equal(t, 3, second.DistinctWorkTypeCount)
	assert.Equal(t, day.Add(48*time.Hour), second.LastUpdated)
}

func TestSummarizeWorkTypes_Structured(t *testing.T) {
	site := uuid.New()
	records := factsOf(
		bundle(site, day,
			floorRow{"1st Floor", "In Progress", 30, []workRow{{"Plastering", "Started", 20}, {"Painting", "Not Started", 0}}},
			floorRow{"2nd Floor", "In Progress", 30, []workRow{{"Plastering", "75% Complete", 75}}},
		),
		bundle(site, day.Add(time.Hour),
			floorRow{"1st Floor", "Completed", 100, []workRow{{"Plastering", "Completed", 100}}},
		),
	)

	byName := map[string]WorkTypeSummary{}
	for _, s := range SummarizeWorkTypes(records) {
		byName[s.WorkTypeName] = s
	}

	p := byName["Plastering"]
	assert.Equal(t, 3, p.TotalOccurrences)
	assert.Equal(t, 1, p.CompletedOccurrences)
	assert.Equal(t, 2, p.InProgressOccurrences)
	assert.Equal(t, 0, p.OtherOccurrences)
	assert.Equal(t, 3, p.ProgressSamples)
	require.NotNil(t, p.AverageProgress)
	assert.InDelta(t, 65.0, *p.AverageProgress, 1e-9)
	assert.Equal(t, "Completed", p.LatestStatus)

	paint := byName["Painting"]
	assert.Equal(t, 1, paint.TotalOccurrences)
	assert.Equal(t, 0, paint.CompletedOccurrences)
	assert.Equal(t, 0, paint.InProgressOccurrences)
	assert.Equal(t, 1, paint.OtherOccurrences)
}

func TestSummarizeWorkTypes_CatalogOrder(t *testing.T) {
	site := uuid.New()
	records := factsOf(bundle(site, day,
		floorRow{"1st Floor", "In Progress", 10, []workRow{
			{"Zinc Cladding", "Started", 5}, {"Painting", "Started", 5}, {"Structural Work", "Started", 5}, {"Acoustic Panels", "Started", 5},
		}},
	))

	var names []string
	for _, s := range SummarizeWorkTypes(records) {
		names = append(names, s.WorkTypeName)
	}
	assert.Equal(t, []string{"Structural Work", "Painting", "Acoustic Panels", "Zinc Cladding"}, names)
}

func TestSummaries_MixedSources(t *testing.T) {
	site := uuid.New()
	order := []string{"Ground Floor", "1st Floor", "2nd Floor"}

	records := factsOf(
		legacyBundle(site, day, wellFormed),
		legacyBundle(site, day.Add(time.Hour), "Cleared debris, no floor details."),
		bundle(site, day.Add(2*time.Hour),
			floorRow{"2nd Floor", "Completed", 100, []workRow{{"Plastering", "Completed", 100}}},
		),
	)
	assert.Equal(t, SourceLegacy, records[0].Source)
	assert.Equal(t, SourceLegacy, records[1].Source)
	assert.Equal(t, SourceStructured, records[2].Source)

	floors := SummarizeFloors(records, order)
	require.Len(t, floors, 1)
	assert.Equal(t, 2, floors[0].UpdateCount, "legacy and structured contributions are not deduplicated")
	assert.Equal(t, 80.0, floors[0].AverageFloorProgress)
	assert.Equal(t, "Completed", floors[0].MostRecentWorkPhase)
	assert.Equal(t, 3, floors[0].DistinctWorkTypeCount)

	var plastering WorkTypeSummary
	for _, s := range SummarizeWorkTypes(records) {
		if s.WorkTypeName == "Plastering" {
			plastering = s
		}
	}
	assert.Equal(t, 2, plastering.TotalOccurrences)
	assert.Equal(t, 2, plastering.CompletedOccurrences)
}

func TestFloorWorkTypeDetails(t *testing.T) {
	site := uuid.New()
	records := factsOf(
		bundle(site, day, floorRow{"1st Floor", "In Progress", 20, []workRow{{"Plastering", "Started", 20}}}),
		bundle(site, day.Add(time.Hour), floorRow{"1st Floor", "In Progress", 60, []workRow{{"Plastering", "75% Complete", 80}}}),
	)

	details := FloorWorkTypeDetails(records, []string{"Ground Floor", "1st Floor"})
	require.Len(t, details, 1)
	require.Len(t, details[0].WorkTypes, 1)

	d := details[0].WorkTypes[0]
	assert.Equal(t, "Plastering", d.WorkName)
	assert.Equal(t, 2, d.Updates)
	assert.Equal(t, 2, d.Samples)
	require.NotNil(t, d.AverageProgress)
	assert.Equal(t, 50.0, *d.AverageProgress)
	require.NotNil(t, d.LatestProgress)
	assert.Equal(t, 80, *d.LatestProgress)
	assert.Equal(t, "75% Complete", d.LatestStatus)
}

func TestSummaries_LinesWithoutPercentage(t *testing.T) {
	site := uuid.New()
	records := factsOf(
		bundle(site, day, floorRow{"2nd Floor", "In Progress", 60, []workRow{
			{"Plastering", "Completed", 100}, {"Electrical Work", "Started", noPercent},
		}}),
		bundle(site, day.Add(time.Hour), floorRow{"2nd Floor", "In Progress", 60, []workRow{
			{"Electrical Work", "Started", noPercent},
		}}),
	)
	assert.False(t, records[0].Floors[0].WorkTypes[1].HasProgress)

	details := FloorWorkTypeDetails(records, nil)
	require.Len(t, details, 1)
	require.Len(t, details[0].WorkTypes, 2)
	plastering, electrical := details[0].WorkTypes[0], details[0].WorkTypes[1]
	assert.Equal(t, "Plastering", plastering.WorkName)
	require.NotNil(t, plastering.LatestProgress)
	assert.Equal(t, 100, *plastering.LatestProgress)

	assert.Equal(t, "Electrical Work", electrical.WorkName)
	assert.Equal(t, 2, electrical.Updates)
	assert.Zero(t, electrical.Samples)
	assert.Nil(t, electrical.LatestProgress)
	assert.Nil(t, electrical.AverageProgress)
	assert.Equal(t, "Started", electrical.LatestStatus)

	for _, s := range SummarizeWorkTypes(records) {
		if s.WorkTypeName == "Electrical Work" {
			assert.Equal(t, 2, s.TotalOccurrences)
			assert.Zero(t, s.ProgressSamples)
			assert.Nil(t, s.AverageProgress)
		}
	}
}

func TestFilterFloors(t *testing.T) {
	site := uuid.New()
	records := factsOf(
		bundle(site, day, floorRow{"1st Floor", "In Progress", 20, nil}, floorRow{"2nd Floor", "In Progress", 20, nil}),
		bundle(site, day, floorRow{"Ground Floor", "In Progress", 20, nil}),
	)

	filtered := FilterFloors(records, "2nd Floor")
	require.Len(t, filtered, 1)
	require.Len(t, filtered[0].Floors, 1)
	assert.Equal(t, "2nd Floor", filtered[0].Floors[0].Label)
	assert.Len(t, records[0].Floors, 2, "input is not modified")

	assert.Equal(t, records, FilterFloors(records))
}

func TestFromBundle_RowsWithoutFloorEntry(t *testing.T) {
	site := uuid.New()
	rec := models.ProgressRecord{ID: uuid.New(), SiteID: site, RecordedAt: day}
	full, started := 100, 20
	b := models.ProgressBundle{Record: rec, WorkTypes: []models.WorkTypeEntry{
		{ProgressID: rec.ID, FloorLabel: "1st Floor", WorkName: "Plastering", Status: "Completed", ProgressPercentage: &full},
		{ProgressID: rec.ID, FloorLabel: "1st Floor", WorkName: "Painting", Status: "Started", ProgressPercentage: &started, Position: 1},
		{ProgressID: rec.ID, FloorLabel: "1st Floor", WorkName: "Flooring", Status: "Started", Position: 2},
	}}

	rf := FromBundle(b)
	assert.Equal(t, SourceStructured, rf.Source)
	require.Len(t, rf.Floors, 1)
	assert.Equal(t, Unknown, rf.Floors[0].WorkPhase)
	assert.Equal(t, 60, rf.Floors[0].Progress, "lines without a percentage stay out of the mean")
	require.Len(t, rf.Floors[0].WorkTypes, 3)
	assert.False(t, rf.Floors[0].WorkTypes[2].HasProgress)
}

type fakeSource struct {
	site    *models.Site
	bundles []models.ProgressBundle
	err     error
}

func (f *fakeSource) GetSite(_ context.Context, id uuid.UUID) (*models.Site, error) {
	if f.site == nil || f.site.ID != id {
		return nil, models.ErrNotFound
	}
	return f.site, nil
}

func (f *fakeSource) SiteEntries(context.Context, uuid.UUID) ([]models.ProgressBundle, error) {
	return f.bundles, f.err
}

type missCounter map[string]int

func (m missCounter) ObserveParseMiss(reason string) { m[reason]++ }

func TestExtractor_SiteFacts(t *testing.T) {
	site := &models.Site{ID: uuid.New(), NumBasements: 1, NumFloors: 3, HasRoof: true}
	src := &fakeSource{site: site, bundles: []models.ProgressBundle{
		legacyBundle(site.ID, day.Add(time.Hour), "nothing structured here"),
		bundle(site.ID, day, floorRow{"2nd Floor", "In Progress", 40, []workRow{{"Plastering", "Completed", 100}}}),
	}}
	misses := missCounter{}
	ex := New(src, nil, misses)

	facts, err := ex.SiteFacts(context.Background(), site.ID)
	require.NoError(t, err)
	assert.Equal(t, site.FloorLabels(), facts.FloorOrder)
	require.Len(t, facts.Records, 2)
	assert.Equal(t, SourceStructured, facts.Records[0].Source, "oldest first")
	assert.Equal(t, 1, misses[string(MissNoFloorBlock)])

	floors, err := ex.Floors(context.Background(), site.ID)
	require.NoError(t, err)
	require.Len(t, floors, 1)
	assert.Equal(t, "2nd Floor", floors[0].FloorLabel)

	_, err = ex.WorkTypes(context.Background(), uuid.New())
	assert.ErrorIs(t, err, models.ErrNotFound)

	src.err = errors.New("disk gone")
	_, err = ex.SiteFacts(context.Background(), site.ID)
	assert.ErrorContains(t, err, "disk gone")
}
