package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/price-stats/sampling-cli/internal/model"
)

func testSample() *model.Sample {
	return &model.Sample{
		ID:      "sample-1",
		FrameID: "frame-1",
		Period:  "2022",
		Seed:    42,
		DrawnAt: time.Date(2022, 6, 1, 12, 0, 0, 0, time.UTC),
		Units: []model.SelectedUnit{
			{FacilityID: "100", Name: "Main", Region: "London", SizeMeasure: 4, Weight: 0.4, InclusionProb: 1, Rank: 1, Certainty: true, Rotation: model.RotationContinuing},
			{FacilityID: "200", Name: "Annex", Region: "Wales", SizeMeasure: 2, Weight: 0.2, InclusionProb: 0.5, Rank: 1, Rotation: model.RotationNew},
		},
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestWriteSampleCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.csv")

	require.NoError(t, WriteSample(testSample(), path, false))

	records := readCSV(t, path)
	require.Len(t, records, 3)
	assert.Equal(t, sampleHeader, records[0])
	assert.Equal(t, []string{"100", "Main", "London", "4", "0.4", "1", "1", "true", "continuing"}, records[1])
	assert.Equal(t, []string{"200", "Annex", "Wales", "2", "0.2", "0.5", "1", "false", "new"}, records[2])
}

func TestWriteFrameCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.csv")
	f := &model.Frame{Locations: []model.Location{{
		FacilityID:    "100",
		Name:          "Main",
		Region:        "London",
		MergeID:       "200",
		MergeRole:     model.MergeRoleAcceptor,
		Turnover:      1000,
		Outlets:       300,
		TotalTurnover: 1500,
		TotalOutlets:  400,
		AvgTurnover:   3.75,
	}}}

	require.NoError(t, WriteFrame(f, path, false))

	records := readCSV(t, path)
	require.Len(t, records, 2)
	assert.Equal(t, frameHeader, records[0])
	assert.Equal(t, []string{"100", "Main", "London", "200", "1", "1000", "300", "1500", "400", "3.75"}, records[1])
}

func TestWriteRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.csv")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))

	err := WriteSample(testSample(), path, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	// The existing file is untouched.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))

	require.NoError(t, WriteSample(testSample(), path, true))
}

func TestWriteCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "nested", "sample.csv")

	require.NoError(t, WriteSample(testSample(), path, false))

	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestWriteDuplicateLinksCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dups.csv")
	dups := []model.DuplicateLink{
		{MergeID: "900", FacilityIDs: []string{"100", "200"}},
	}

	require.NoError(t, WriteDuplicateLinks(dups, path, false))

	records := readCSV(t, path)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"900", "100;200"}, records[1])
}

func TestWriteSampleXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.xlsx")

	require.NoError(t, WriteSample(testSample(), path, false))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestBuildManifest(t *testing.T) {
	m := BuildManifest(testSample(), map[string]int{"London": 1, "Wales": 1}, 0, 3, []string{"999"})

	assert.Equal(t, "sample-1", m.SampleID)
	assert.Equal(t, "frame-1", m.FrameID)
	assert.Equal(t, int64(42), m.Seed)
	assert.Equal(t, []string{"999"}, m.RotatedOut)

	require.Len(t, m.Strata, 2)
	london := m.Strata[0]
	assert.Equal(t, "London", london.Region)
	assert.Equal(t, 1, london.Selected)
	assert.Equal(t, 1, london.Certainty)
	assert.Equal(t, 1, london.Continuing)
	assert.Equal(t, 1.0, london.SumInclusion)

	wales := m.Strata[1]
	assert.Equal(t, "Wales", wales.Region)
	assert.Equal(t, 1, wales.New)
	assert.Equal(t, 0.5, wales.SumInclusion)
}

func TestWriteManifestYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.yaml")
	m := BuildManifest(testSample(), nil, 5, 3, nil)

	require.NoError(t, WriteManifest(m, path, false))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got Manifest
	require.NoError(t, yaml.Unmarshal(data, &got))
	assert.Equal(t, m.SampleID, got.SampleID)
	assert.Equal(t, m.Seed, got.Seed)
	assert.Len(t, got.Strata, 2)
}
