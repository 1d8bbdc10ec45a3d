package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/price-stats/sampling-cli/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func testFrame(id string, builtAt time.Time) *model.Frame {
	return &model.Frame{
		ID:      id,
		Period:  "2022",
		Source:  "SampleFrame.xlsx",
		BuiltAt: builtAt,
		Locations: []model.Location{
			{
				FacilityID:    "100",
				Name:          "Main",
				Region:        "London",
				MergeID:       "200",
				MergeRole:     model.MergeRoleAcceptor,
				Turnover:      1000,
				Outlets:       300,
				DonorTurnover: 500,
				DonorOutlets:  100,
				TotalTurnover: 1500,
				TotalOutlets:  400,
				AvgTurnover:   3.75,
				Geom:          []byte{0x01, 0x02},
			},
			{FacilityID: "300", Name: "Solo", Region: "Wales", TotalTurnover: 800, TotalOutlets: 400, AvgTurnover: 2},
		},
	}
}

func testSample(id, frameID string, drawnAt time.Time, facilityIDs ...string) *model.Sample {
	sm := &model.Sample{
		ID:      id,
		FrameID: frameID,
		Period:  "2022",
		Seed:    42,
		DrawnAt: drawnAt,
	}
	for i, fid := range facilityIDs {
		sm.Units = append(sm.Units, model.SelectedUnit{
			FacilityID:    fid,
			Region:        "London",
			SizeMeasure:   float64(i + 1),
			Weight:        0.1,
			InclusionProb: 0.5,
			Rank:          i + 1,
			Rotation:      model.RotationNew,
		})
	}
	return sm
}

func TestSQLiteFrameRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	f := testFrame("frame-1", time.Now().UTC())
	require.NoError(t, s.SaveFrame(ctx, f))

	got, err := s.GetFrame(ctx, "frame-1")
	require.NoError(t, err)

	assert.Equal(t, f.ID, got.ID)
	assert.Equal(t, f.Period, got.Period)
	assert.Equal(t, f.Source, got.Source)
	require.Len(t, got.Locations, 2)
	assert.Equal(t, f.Locations[0], got.Locations[0])
	assert.Equal(t, f.Locations[1], got.Locations[1])
}

func TestSQLiteLatestFrame(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	older := testFrame("frame-old", time.Now().UTC().Add(-time.Hour))
	newer := testFrame("frame-new", time.Now().UTC())
	require.NoError(t, s.SaveFrame(ctx, older))
	require.NoError(t, s.SaveFrame(ctx, newer))

	got, err := s.LatestFrame(ctx)
	require.NoError(t, err)
	assert.Equal(t, "frame-new", got.ID)
}

func TestSQLiteFrameNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetFrame(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLiteSampleRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	f := testFrame("frame-1", time.Now().UTC())
	require.NoError(t, s.SaveFrame(ctx, f))

	sm := testSample("sample-1", "frame-1", time.Now().UTC(), "100", "300")
	sm.Units[0].Certainty = true
	sm.Units[0].Rotation = model.RotationContinuing
	require.NoError(t, s.SaveSample(ctx, sm))

	got, err := s.GetSample(ctx, "sample-1")
	require.NoError(t, err)

	assert.Equal(t, sm.ID, got.ID)
	assert.Equal(t, sm.FrameID, got.FrameID)
	assert.Equal(t, sm.Seed, got.Seed)
	require.Len(t, got.Units, 2)
	assert.True(t, got.Units[0].Certainty)
	assert.Equal(t, model.RotationContinuing, got.Units[0].Rotation)
	assert.Equal(t, model.RotationNew, got.Units[1].Rotation)
}

func TestSQLiteRecentSamplesOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	f := testFrame("frame-1", time.Now().UTC())
	require.NoError(t, s.SaveFrame(ctx, f))

	base := time.Now().UTC()
	for i, id := range []string{"sample-a", "sample-b", "sample-c"} {
		sm := testSample(id, "frame-1", base.Add(time.Duration(i)*time.Minute), "100")
		require.NoError(t, s.SaveSample(ctx, sm))
	}

	got, err := s.RecentSamples(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "sample-c", got[0].ID)
	assert.Equal(t, "sample-b", got[1].ID)
	require.Len(t, got[0].Units, 1)
}

func TestSQLiteDrawRunLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.CreateDrawRun(ctx, "frame-1", 42)
	require.NoError(t, err)
	assert.Equal(t, model.DrawStatusFailed, run.Status)

	require.NoError(t, s.CompleteDrawRun(ctx, run.ID, "sample-1", 7))

	runs, err := s.ListDrawRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.DrawStatusComplete, runs[0].Status)
	assert.Equal(t, "sample-1", runs[0].SampleID)
	assert.Equal(t, 7, runs[0].UnitCount)
	assert.Equal(t, int64(42), runs[0].Seed)
}

func TestSQLiteFailDrawRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.CreateDrawRun(ctx, "frame-1", 42)
	require.NoError(t, err)

	require.NoError(t, s.FailDrawRun(ctx, run.ID, eris.New("stratum \"Narnia\" has no eligible units")))

	runs, err := s.ListDrawRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.DrawStatusFailed, runs[0].Status)
	assert.Contains(t, runs[0].Error, "no eligible units")
}

func TestSQLiteCompleteUnknownRun(t *testing.T) {
	s := newTestStore(t)

	err := s.CompleteDrawRun(context.Background(), "nope", "sample-1", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
