package frame

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/price-stats/sampling-cli/internal/model"
)

func writeTempCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadLocationsCSV(t *testing.T) {
	path := writeTempCSV(t, "frame.csv",
		"FacilityID,LocName,Region,Merge_ID,Merge_Num,Sum_Turnov,OutletCt\n"+
			"100.0,Main,LONDON,200,1,1000.5,300\n"+
			"200,Annex,london,100,2,500,100\n")

	locations, err := ReadLocations(context.Background(), path, ReadOptions{})
	require.NoError(t, err)
	require.Len(t, locations, 2)

	assert.Equal(t, model.Location{
		FacilityID: "100",
		Name:       "Main",
		Region:     "London",
		MergeID:    "200",
		MergeRole:  model.MergeRoleAcceptor,
		Turnover:   1000.5,
		Outlets:    300,
	}, locations[0])

	assert.Equal(t, "London", locations[1].Region)
	assert.Equal(t, model.MergeRoleDonor, locations[1].MergeRole)
}

func TestReadLocationsMissingIDColumn(t *testing.T) {
	path := writeTempCSV(t, "bad.csv", "Name,Region\nMain,London\n")

	_, err := ReadLocations(context.Background(), path, ReadOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no facility ID column")
}

func TestReadLocationsMissingRegionColumn(t *testing.T) {
	path := writeTempCSV(t, "bad.csv", "FacilityID,Name\n100,Main\n")

	_, err := ReadLocations(context.Background(), path, ReadOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no region column")
}

func TestReadLocationsEmptyID(t *testing.T) {
	path := writeTempCSV(t, "bad.csv", "FacilityID,Region\n,London\n")

	_, err := ReadLocations(context.Background(), path, ReadOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty facility ID")
}

func TestReadLocationsMissingFile(t *testing.T) {
	_, err := ReadLocations(context.Background(), filepath.Join(t.TempDir(), "nope.csv"), ReadOptions{})
	require.Error(t, err)
}

func TestLoadFrameFileRecomputesDerivedColumns(t *testing.T) {
	path := writeTempCSV(t, "built.csv",
		"FacilityID,Region,Sum_Turnov,OutletCt\n"+
			"100,London,1000,250\n"+
			"200,Wales,600,300\n")

	f, err := LoadFrameFile(context.Background(), path, ReadOptions{})
	require.NoError(t, err)
	require.Len(t, f.Locations, 2)

	assert.Equal(t, 1000.0, f.Locations[0].TotalTurnover)
	assert.Equal(t, 250, f.Locations[0].TotalOutlets)
	assert.InDelta(t, 4.0, f.Locations[0].AvgTurnover, 1e-9)
	assert.InDelta(t, 2.0, f.Locations[1].AvgTurnover, 1e-9)
	assert.NotEmpty(t, f.ID)
	assert.Equal(t, path, f.Source)
}

func TestLoadFrameFileKeepsDerivedColumns(t *testing.T) {
	path := writeTempCSV(t, "built.csv",
		"FacilityID,Region,Sum_Turnov,OutletCt,Total_TURNOV,Total_OutletCt,avg_TURNOV\n"+
			"100,London,1000,250,1500,400,3.75\n")

	f, err := LoadFrameFile(context.Background(), path, ReadOptions{})
	require.NoError(t, err)
	require.Len(t, f.Locations, 1)

	assert.Equal(t, 1500.0, f.Locations[0].TotalTurnover)
	assert.Equal(t, 400, f.Locations[0].TotalOutlets)
	assert.InDelta(t, 3.75, f.Locations[0].AvgTurnover, 1e-9)
}

func TestLoadFrameFileRejectsDuplicateIDs(t *testing.T) {
	path := writeTempCSV(t, "built.csv",
		"FacilityID,Region,OutletCt\n100,London,250\n100,Wales,300\n")

	_, err := LoadFrameFile(context.Background(), path, ReadOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate facility ID")
}
