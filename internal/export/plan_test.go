package export

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itinera-ai/itinera/internal/trip"
)

var base = time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

func sampleCandidate() *trip.CandidateItinerary {
	return trip.NewCandidate(0, []trip.Day{
		{Index: 1, Items: []trip.Item{
			{Type: trip.ItemPOI, Title: "Temple walk", Start: base.Add(9 * time.Hour), End: base.Add(11 * time.Hour), Cost: 0, Confidence: 0.9},
			{Type: trip.ItemMeal, Title: "Lunch", Start: base.Add(12*time.Hour + 30*time.Minute), End: base.Add(13*time.Hour + 30*time.Minute), Cost: 30, Confidence: 1},
			{Type: trip.ItemPOI, Title: "Museum", Start: base.Add(14 * time.Hour), End: base.Add(16 * time.Hour), Cost: 20, Confidence: 0.3},
			{Type: trip.ItemPOI, Title: "Night market", Start: base.Add(19*time.Hour + 30*time.Minute), End: base.Add(21 * time.Hour), Cost: 15, Confidence: 0.9},
		}},
		{Index: 2, Items: []trip.Item{
			{Type: trip.ItemPOI, Title: "Castle", Start: base.Add(33 * time.Hour), End: base.Add(35 * time.Hour), Cost: 8, Confidence: 0.9},
		}},
	})
}

// TestBuildBandsItemsByStartTime tests the part-of-day grouping.
func TestBuildBandsItemsByStartTime(t *testing.T) {
	plan := Build(sampleCandidate(), base, BuildOptions{Destination: "Tokyo"}, nil)

	require.Len(t, plan.Itinerary, 2)
	day1 := plan.Itinerary[0]
	require.Len(t, day1.Items, 4)

	assert.Equal(t, Morning, day1.Items[0].Band)
	assert.Equal(t, Afternoon, day1.Items[1].Band, "12:30 is afternoon")
	assert.Equal(t, Afternoon, day1.Items[2].Band)
	assert.Equal(t, Evening, day1.Items[3].Band)

	assert.Equal(t, "2026-09-01", day1.Date)
	assert.Equal(t, "2026-09-02", plan.Itinerary[1].Date)
	assert.Equal(t, "09:00", day1.Items[0].Start)
}

// TestBuildBandsOvernightItems tests that small-hour entries land in the
// catch-all band instead of morning.
func TestBuildBandsOvernightItems(t *testing.T) {
	c := trip.NewCandidate(0, []trip.Day{
		{Index: 1, Items: []trip.Item{
			{Type: trip.ItemMove, Title: "Red-eye arrival", Start: base.Add(3 * time.Hour), End: base.Add(4 * time.Hour), Confidence: 0.9},
			{Type: trip.ItemPOI, Title: "Sunrise viewpoint", Start: base.Add(5 * time.Hour), End: base.Add(6 * time.Hour), Confidence: 0.9},
		}},
	})

	plan := Build(c, base, BuildOptions{Destination: "Tokyo"}, nil)

	require.Len(t, plan.Itinerary, 1)
	assert.Equal(t, Other, plan.Itinerary[0].Items[0].Band)
	assert.Equal(t, Morning, plan.Itinerary[0].Items[1].Band, "05:00 is already morning")
}

// TestBuildFlagsLowConfidenceItems tests the tentative-entry marker.
func TestBuildFlagsLowConfidenceItems(t *testing.T) {
	plan := Build(sampleCandidate(), base, BuildOptions{Destination: "Tokyo"}, nil)

	day1 := plan.Itinerary[0]
	assert.False(t, day1.Items[0].LowConfidence)
	assert.True(t, day1.Items[2].LowConfidence, "museum entry came from degraded data")
}

// TestBuildCarriesTotalsAndLedger tests cost propagation.
func TestBuildCarriesTotalsAndLedger(t *testing.T) {
	c := sampleCandidate()
	plan := Build(c, base, BuildOptions{Destination: "Tokyo", Budget: 2000}, nil)

	assert.InDelta(t, c.Metrics.CostTotal, plan.CostTotal, 0.001)
	assert.InDelta(t, c.Ledger.Total(), plan.CostTotal, 0.001)
	assert.Contains(t, plan.Summary, "Tokyo")
	assert.Equal(t, 2, plan.Days)
}

// TestBuildDeduplicatesRisks tests advisory merging from candidate and
// run-level findings.
func TestBuildDeduplicatesRisks(t *testing.T) {
	c := sampleCandidate()
	shared := trip.ConflictRecord{
		Category:    trip.ConflictReachability,
		Description: "no known transit path",
		Severity:    trip.SeverityRisk,
	}
	c.Conflicts = []trip.ConflictRecord{shared}

	hard := trip.ConflictRecord{
		Category:    trip.ConflictBudget,
		Description: "over budget",
		Severity:    trip.SeverityMajor,
	}

	plan := Build(c, base, BuildOptions{Destination: "Tokyo"}, []trip.ConflictRecord{shared, hard})

	require.Len(t, plan.Risks, 1, "duplicate advisories collapse, hard conflicts are not risks")
	assert.Equal(t, "reachability", plan.Risks[0].Category)
}

// TestBuildDegradedPlan tests the degraded marker and summary note.
func TestBuildDegradedPlan(t *testing.T) {
	plan := Build(sampleCandidate(), base, BuildOptions{Destination: "Tokyo", Degraded: true}, nil)

	assert.True(t, plan.Degraded)
	assert.Contains(t, plan.Summary, "best available")
}

// TestPlanSerialization tests both output documents render.
func TestPlanSerialization(t *testing.T) {
	plan := Build(sampleCandidate(), base, BuildOptions{Destination: "Tokyo"}, nil)

	yamlDoc, err := plan.MarshalYAMLDoc()
	require.NoError(t, err)
	assert.Contains(t, string(yamlDoc), "destination: Tokyo")

	jsonDoc, err := plan.MarshalJSONDoc()
	require.NoError(t, err)
	assert.Contains(t, string(jsonDoc), `"destination": "Tokyo"`)
}
