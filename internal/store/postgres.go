package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/price-stats/sampling-cli/internal/db"
	"github.com/price-stats/sampling-cli/internal/model"
)

// PostgresStore implements Store using pgxpool. Frame location and sample
// unit writes go through the COPY protocol; a locations_current side table
// is upserted on every frame save so the latest figures for any facility
// can be queried without walking frames.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS frames (
	id             TEXT PRIMARY KEY,
	period         TEXT NOT NULL DEFAULT '',
	source         TEXT NOT NULL DEFAULT '',
	built_at       TIMESTAMPTZ NOT NULL,
	location_count INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS frame_locations (
	frame_id       TEXT NOT NULL REFERENCES frames(id),
	facility_id    TEXT NOT NULL,
	name           TEXT NOT NULL DEFAULT '',
	region         TEXT NOT NULL,
	merge_id       TEXT NOT NULL DEFAULT '',
	merge_role     INTEGER NOT NULL DEFAULT 0,
	turnover       DOUBLE PRECISION NOT NULL DEFAULT 0,
	outlets        INTEGER NOT NULL DEFAULT 0,
	donor_turnover DOUBLE PRECISION NOT NULL DEFAULT 0,
	donor_outlets  INTEGER NOT NULL DEFAULT 0,
	total_turnover DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_outlets  INTEGER NOT NULL DEFAULT 0,
	avg_turnover   DOUBLE PRECISION NOT NULL DEFAULT 0,
	geom           BYTEA,
	PRIMARY KEY (frame_id, facility_id)
);

CREATE TABLE IF NOT EXISTS locations_current (
	facility_id    TEXT PRIMARY KEY,
	name           TEXT NOT NULL DEFAULT '',
	region         TEXT NOT NULL,
	total_turnover DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_outlets  INTEGER NOT NULL DEFAULT 0,
	avg_turnover   DOUBLE PRECISION NOT NULL DEFAULT 0,
	frame_id       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS samples (
	id       TEXT PRIMARY KEY,
	frame_id TEXT NOT NULL REFERENCES frames(id),
	period   TEXT NOT NULL DEFAULT '',
	seed     BIGINT NOT NULL,
	drawn_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS sample_units (
	sample_id      TEXT NOT NULL REFERENCES samples(id),
	facility_id    TEXT NOT NULL,
	name           TEXT NOT NULL DEFAULT '',
	region         TEXT NOT NULL,
	size_measure   DOUBLE PRECISION NOT NULL DEFAULT 0,
	weight         DOUBLE PRECISION NOT NULL DEFAULT 0,
	inclusion_prob DOUBLE PRECISION NOT NULL DEFAULT 0,
	rank           INTEGER NOT NULL DEFAULT 0,
	certainty      BOOLEAN NOT NULL DEFAULT FALSE,
	rotation       TEXT NOT NULL DEFAULT 'new',
	PRIMARY KEY (sample_id, facility_id)
);

CREATE TABLE IF NOT EXISTS draw_runs (
	id         TEXT PRIMARY KEY,
	frame_id   TEXT NOT NULL,
	sample_id  TEXT,
	seed       BIGINT NOT NULL,
	status     TEXT NOT NULL,
	error      TEXT,
	unit_count INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_frames_built_at ON frames(built_at);
CREATE INDEX IF NOT EXISTS idx_frame_locations_region ON frame_locations(region);
CREATE INDEX IF NOT EXISTS idx_samples_drawn_at ON samples(drawn_at);
CREATE INDEX IF NOT EXISTS idx_draw_runs_created_at ON draw_runs(created_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

var frameLocationColumns = []string{
	"frame_id", "facility_id", "name", "region", "merge_id", "merge_role",
	"turnover", "outlets", "donor_turnover", "donor_outlets",
	"total_turnover", "total_outlets", "avg_turnover", "geom",
}

func (s *PostgresStore) SaveFrame(ctx context.Context, f *model.Frame) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO frames (id, period, source, built_at, location_count) VALUES ($1, $2, $3, $4, $5)`,
		f.ID, f.Period, f.Source, f.BuiltAt, len(f.Locations),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert frame %s", f.ID)
	}

	rows := make([][]any, 0, len(f.Locations))
	for _, loc := range f.Locations {
		rows = append(rows, []any{
			f.ID, loc.FacilityID, loc.Name, loc.Region, loc.MergeID, int(loc.MergeRole),
			loc.Turnover, loc.Outlets, loc.DonorTurnover, loc.DonorOutlets,
			loc.TotalTurnover, loc.TotalOutlets, loc.AvgTurnover, loc.Geom,
		})
	}
	if _, err := db.CopyFrom(ctx, s.pool, "frame_locations", frameLocationColumns, rows); err != nil {
		return err
	}

	current := make([][]any, 0, len(f.Locations))
	for _, loc := range f.Locations {
		current = append(current, []any{
			loc.FacilityID, loc.Name, loc.Region,
			loc.TotalTurnover, loc.TotalOutlets, loc.AvgTurnover, f.ID,
		})
	}
	_, err = db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "locations_current",
		Columns:      []string{"facility_id", "name", "region", "total_turnover", "total_outlets", "avg_turnover", "frame_id"},
		ConflictKeys: []string{"facility_id"},
	}, current)
	return err
}

func (s *PostgresStore) GetFrame(ctx context.Context, frameID string) (*model.Frame, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, period, source, built_at FROM frames WHERE id = $1`, frameID,
	)
	return s.scanFrame(ctx, row)
}

func (s *PostgresStore) LatestFrame(ctx context.Context) (*model.Frame, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, period, source, built_at FROM frames ORDER BY built_at DESC LIMIT 1`,
	)
	return s.scanFrame(ctx, row)
}

func (s *PostgresStore) scanFrame(ctx context.Context, row pgx.Row) (*model.Frame, error) {
	var f model.Frame
	err := row.Scan(&f.ID, &f.Period, &f.Source, &f.BuiltAt)
	if err == pgx.ErrNoRows {
		return nil, eris.New("postgres: frame not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get frame")
	}

	rows, err := s.pool.Query(ctx,
		`SELECT facility_id, name, region, merge_id, merge_role, turnover, outlets,
		        donor_turnover, donor_outlets, total_turnover, total_outlets, avg_turnover, geom
		 FROM frame_locations WHERE frame_id = $1 ORDER BY facility_id`,
		f.ID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get frame locations")
	}
	defer rows.Close()

	for rows.Next() {
		var loc model.Location
		var role int
		if err := rows.Scan(
			&loc.FacilityID, &loc.Name, &loc.Region, &loc.MergeID, &role,
			&loc.Turnover, &loc.Outlets, &loc.DonorTurnover, &loc.DonorOutlets,
			&loc.TotalTurnover, &loc.TotalOutlets, &loc.AvgTurnover, &loc.Geom,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan location")
		}
		loc.MergeRole = model.MergeRole(role)
		f.Locations = append(f.Locations, loc)
	}
	return &f, eris.Wrap(rows.Err(), "postgres: iterate locations")
}

var sampleUnitColumns = []string{
	"sample_id", "facility_id", "name", "region", "size_measure",
	"weight", "inclusion_prob", "rank", "certainty", "rotation",
}

func (s *PostgresStore) SaveSample(ctx context.Context, sm *model.Sample) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO samples (id, frame_id, period, seed, drawn_at) VALUES ($1, $2, $3, $4, $5)`,
		sm.ID, sm.FrameID, sm.Period, sm.Seed, sm.DrawnAt,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert sample %s", sm.ID)
	}

	rows := make([][]any, 0, len(sm.Units))
	for _, u := range sm.Units {
		rows = append(rows, []any{
			sm.ID, u.FacilityID, u.Name, u.Region, u.SizeMeasure,
			u.Weight, u.InclusionProb, u.Rank, u.Certainty, string(u.Rotation),
		})
	}
	_, err = db.CopyFrom(ctx, s.pool, "sample_units", sampleUnitColumns, rows)
	return err
}

func (s *PostgresStore) GetSample(ctx context.Context, sampleID string) (*model.Sample, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, frame_id, period, seed, drawn_at FROM samples WHERE id = $1`, sampleID,
	)

	var sm model.Sample
	err := row.Scan(&sm.ID, &sm.FrameID, &sm.Period, &sm.Seed, &sm.DrawnAt)
	if err == pgx.ErrNoRows {
		return nil, eris.New("postgres: sample not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get sample")
	}

	if err := s.loadUnits(ctx, &sm); err != nil {
		return nil, err
	}
	return &sm, nil
}

func (s *PostgresStore) RecentSamples(ctx context.Context, limit int) ([]model.Sample, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, frame_id, period, seed, drawn_at FROM samples ORDER BY drawn_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list samples")
	}
	defer rows.Close()

	var samples []model.Sample
	for rows.Next() {
		var sm model.Sample
		if err := rows.Scan(&sm.ID, &sm.FrameID, &sm.Period, &sm.Seed, &sm.DrawnAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan sample")
		}
		samples = append(samples, sm)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate samples")
	}

	for i := range samples {
		if err := s.loadUnits(ctx, &samples[i]); err != nil {
			return nil, err
		}
	}
	return samples, nil
}

func (s *PostgresStore) loadUnits(ctx context.Context, sm *model.Sample) error {
	rows, err := s.pool.Query(ctx,
		`SELECT facility_id, name, region, size_measure, weight, inclusion_prob, rank, certainty, rotation
		 FROM sample_units WHERE sample_id = $1 ORDER BY region, rank`,
		sm.ID,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: get sample units")
	}
	defer rows.Close()

	for rows.Next() {
		var u model.SelectedUnit
		var rotation string
		if err := rows.Scan(
			&u.FacilityID, &u.Name, &u.Region, &u.SizeMeasure,
			&u.Weight, &u.InclusionProb, &u.Rank, &u.Certainty, &rotation,
		); err != nil {
			return eris.Wrap(err, "postgres: scan unit")
		}
		u.Rotation = model.RotationStatus(rotation)
		sm.Units = append(sm.Units, u)
	}
	return eris.Wrap(rows.Err(), "postgres: iterate units")
}

func (s *PostgresStore) CreateDrawRun(ctx context.Context, frameID string, seed int64) (*model.DrawRun, error) {
	run := &model.DrawRun{
		ID:        uuid.New().String(),
		FrameID:   frameID,
		Seed:      seed,
		Status:    model.DrawStatusFailed, // flipped to complete on success
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO draw_runs (id, frame_id, seed, status, created_at) VALUES ($1, $2, $3, $4, $5)`,
		run.ID, run.FrameID, run.Seed, string(run.Status), run.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert draw run")
	}
	return run, nil
}

func (s *PostgresStore) CompleteDrawRun(ctx context.Context, runID, sampleID string, unitCount int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE draw_runs SET status = $1, sample_id = $2, unit_count = $3 WHERE id = $4`,
		string(model.DrawStatusComplete), sampleID, unitCount, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete draw run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: draw run %s not found", runID)
	}
	return nil
}

func (s *PostgresStore) FailDrawRun(ctx context.Context, runID string, cause error) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE draw_runs SET status = $1, error = $2 WHERE id = $3`,
		string(model.DrawStatusFailed), cause.Error(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail draw run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: draw run %s not found", runID)
	}
	return nil
}

func (s *PostgresStore) ListDrawRuns(ctx context.Context, limit int) ([]model.DrawRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, frame_id, COALESCE(sample_id, ''), seed, status, COALESCE(error, ''), unit_count, created_at
		 FROM draw_runs ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list draw runs")
	}
	defer rows.Close()

	var runs []model.DrawRun
	for rows.Next() {
		var r model.DrawRun
		var status string
		if err := rows.Scan(&r.ID, &r.FrameID, &r.SampleID, &r.Seed, &status, &r.Error, &r.UnitCount, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan draw run")
		}
		r.Status = model.DrawStatus(status)
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: iterate draw runs")
}
