package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridian-env/wastestream/internal/entities"
	"github.com/veridian-env/wastestream/internal/model"
)

func TestJaccardScorer(t *testing.T) {
	tests := []struct {
		name      string
		candidate string
		existing  string
		want      float64
	}{
		{"identical", "main street facility", "main street facility", 1.0},
		{"disjoint", "plant a", "warehouse b", 0.0},
		{"partial overlap", "main street facility", "main street depot", 0.5},
		{"empty candidate", "", "plant a", 0.0},
		{"word order ignored", "facility main street", "main street facility", 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, JaccardScorer(tt.candidate, tt.existing), 0.001)
		})
	}
}

func TestReconciler_LocationCandidates_RankedAndFloored(t *testing.T) {
	rec := NewReconciler(DefaultReconcilerConfig(), nil)
	existing := []entities.Location{
		{ID: "loc-1", Name: "Main Street Facility", NormalizedName: "main street facility", City: "Dayton", State: "OH"},
		{ID: "loc-2", Name: "Main Street Depot", NormalizedName: "main street depot", City: "Columbus", State: "OH"},
		{ID: "loc-3", Name: "Riverside Warehouse", NormalizedName: "riverside warehouse"},
	}

	cands := rec.LocationCandidates(&model.LocationData{Name: "Main Street Facility", City: "Dayton", State: "OH"}, existing)
	require.Len(t, cands, 2, "riverside warehouse is below the floor")
	assert.Equal(t, "loc-1", cands[0].EntityID)
	assert.InDelta(t, 1.0, cands[0].Score, 0.001, "exact name plus city and state boost clamps at 1")
	assert.Equal(t, "loc-2", cands[1].EntityID)
	assert.Greater(t, cands[0].Score, cands[1].Score)
}

func TestReconciler_CityStateBoost(t *testing.T) {
	rec := NewReconciler(ReconcilerConfig{CandidateFloor: 0.3}, nil)
	existing := []entities.Location{
		{ID: "same-city", NormalizedName: "central processing plant", City: "Dayton", State: "OH"},
		{ID: "other-city", NormalizedName: "central processing plant", City: "Austin", State: "TX"},
	}

	cands := rec.LocationCandidates(&model.LocationData{Name: "Central Processing", City: "Dayton", State: "OH"}, existing)
	require.Len(t, cands, 2)
	assert.Equal(t, "same-city", cands[0].EntityID)
	assert.InDelta(t, 0.1, cands[0].Score-cands[1].Score, 0.001)
}

func TestReconciler_MaxCandidates(t *testing.T) {
	rec := NewReconciler(ReconcilerConfig{MaxCandidates: 2, CandidateFloor: 0.1}, nil)
	existing := []entities.Location{
		{ID: "a", NormalizedName: "plant one"},
		{ID: "b", NormalizedName: "plant two"},
		{ID: "c", NormalizedName: "plant three"},
	}

	cands := rec.LocationCandidates(&model.LocationData{Name: "Plant"}, existing)
	assert.Len(t, cands, 2)
}

func TestReconciler_NeedsReview(t *testing.T) {
	rec := NewReconciler(DefaultReconcilerConfig(), nil)

	assert.False(t, rec.NeedsReview(nil))
	assert.False(t, rec.NeedsReview([]model.DuplicateCandidate{{Score: 0.6}}))
	assert.True(t, rec.NeedsReview([]model.DuplicateCandidate{{Score: 0.9}}))
	assert.True(t, rec.NeedsReview([]model.DuplicateCandidate{{Score: 0.85}}))
}

func TestReconciler_ProjectCandidates(t *testing.T) {
	rec := NewReconciler(DefaultReconcilerConfig(), nil)
	existing := []entities.Project{
		{ID: "p-1", Name: "Cardboard OCC Recycling"},
		{ID: "p-2", Name: "Hazardous Waste Disposal"},
	}

	cands := rec.ProjectCandidates(&model.ProjectData{Name: "Cardboard OCC Recycling"}, existing)
	require.Len(t, cands, 1)
	assert.Equal(t, "p-1", cands[0].EntityID)
	assert.InDelta(t, 1.0, cands[0].Score, 0.001)
}

func TestReconciler_PluggableScorer(t *testing.T) {
	always := func(_, _ string) float64 { return 0.99 }
	rec := NewReconciler(DefaultReconcilerConfig(), always)

	cands := rec.LocationCandidates(&model.LocationData{Name: "Anything"},
		[]entities.Location{{ID: "loc-1", NormalizedName: "unrelated"}})
	require.Len(t, cands, 1)
	assert.True(t, rec.NeedsReview(cands))
}
