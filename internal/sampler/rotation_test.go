package sampler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/price-stats/sampling-cli/internal/model"
)

func TestApplyRotationExcludesLongRetainedUnits(t *testing.T) {
	units := []model.Location{
		{FacilityID: "100", Region: "London"},
		{FacilityID: "200", Region: "London"},
		{FacilityID: "300", Region: "London"},
	}
	retained := map[string]int{"100": 3, "200": 2}

	available, rotatedOut := applyRotation(units, retained, 3)

	require.Len(t, available, 2)
	assert.Equal(t, "200", available[0].FacilityID)
	assert.Equal(t, "300", available[1].FacilityID)
	assert.Equal(t, []string{"100"}, rotatedOut)
}

func TestApplyRotationDisabled(t *testing.T) {
	units := []model.Location{{FacilityID: "100", Region: "London"}}
	retained := map[string]int{"100": 99}

	available, rotatedOut := applyRotation(units, retained, 0)

	assert.Len(t, available, 1)
	assert.Empty(t, rotatedOut)
}

func TestApplyRotationNeverEmptiesStratum(t *testing.T) {
	units := []model.Location{
		{FacilityID: "100", Region: "London"},
		{FacilityID: "200", Region: "London"},
	}
	retained := map[string]int{"100": 3, "200": 4}

	available, rotatedOut := applyRotation(units, retained, 3)

	assert.Len(t, available, 2)
	assert.Empty(t, rotatedOut)
}

func TestRetainedCountsStreaks(t *testing.T) {
	history := []model.Sample{
		{Units: []model.SelectedUnit{{FacilityID: "100"}, {FacilityID: "200"}, {FacilityID: "400"}}},
		{Units: []model.SelectedUnit{{FacilityID: "100"}, {FacilityID: "200"}}},
		{Units: []model.SelectedUnit{{FacilityID: "100"}, {FacilityID: "300"}}},
	}

	counts := RetainedCounts(history)

	assert.Equal(t, 3, counts["100"])
	assert.Equal(t, 2, counts["200"])
	assert.Equal(t, 1, counts["400"])
	// Absent from the most recent sample, so no active streak.
	assert.Zero(t, counts["300"])
}

func TestRetainedCountsStreakBreaks(t *testing.T) {
	// Facility 100 skipped the middle period, so the older selection does
	// not extend its streak.
	history := []model.Sample{
		{Units: []model.SelectedUnit{{FacilityID: "100"}}},
		{Units: []model.SelectedUnit{{FacilityID: "200"}}},
		{Units: []model.SelectedUnit{{FacilityID: "100"}}},
	}

	counts := RetainedCounts(history)
	assert.Equal(t, 1, counts["100"])
}

func TestRetainedCountsEmptyHistory(t *testing.T) {
	assert.Empty(t, RetainedCounts(nil))
}

func TestDrawRotationExcludesAndRefreshes(t *testing.T) {
	f := testFrame(map[string]int{"London": 10})
	retained := map[string]int{"London-001": 3, "London-002": 3}

	result, err := Draw(f, Options{
		Seed:       13,
		Allocation: Allocation{Default: 3},
		Retained:   retained,
		MaxPeriods: 3,
	})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"London-001", "London-002"}, result.RotatedOut)
	for _, u := range result.Sample.Units {
		assert.NotContains(t, []string{"London-001", "London-002"}, u.FacilityID)
	}
}
