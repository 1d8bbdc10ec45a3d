package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/price-stats/sampling-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS frames (
	id             TEXT PRIMARY KEY,
	period         TEXT NOT NULL DEFAULT '',
	source         TEXT NOT NULL DEFAULT '',
	built_at       DATETIME NOT NULL,
	location_count INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS frame_locations (
	frame_id       TEXT NOT NULL REFERENCES frames(id),
	facility_id    TEXT NOT NULL,
	name           TEXT NOT NULL DEFAULT '',
	region         TEXT NOT NULL,
	merge_id       TEXT NOT NULL DEFAULT '',
	merge_role     INTEGER NOT NULL DEFAULT 0,
	turnover       REAL NOT NULL DEFAULT 0,
	outlets        INTEGER NOT NULL DEFAULT 0,
	donor_turnover REAL NOT NULL DEFAULT 0,
	donor_outlets  INTEGER NOT NULL DEFAULT 0,
	total_turnover REAL NOT NULL DEFAULT 0,
	total_outlets  INTEGER NOT NULL DEFAULT 0,
	avg_turnover   REAL NOT NULL DEFAULT 0,
	geom           BLOB,
	PRIMARY KEY (frame_id, facility_id)
);

CREATE TABLE IF NOT EXISTS samples (
	id       TEXT PRIMARY KEY,
	frame_id TEXT NOT NULL REFERENCES frames(id),
	period   TEXT NOT NULL DEFAULT '',
	seed     INTEGER NOT NULL,
	drawn_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS sample_units (
	sample_id      TEXT NOT NULL REFERENCES samples(id),
	facility_id    TEXT NOT NULL,
	name           TEXT NOT NULL DEFAULT '',
	region         TEXT NOT NULL,
	size_measure   REAL NOT NULL DEFAULT 0,
	weight         REAL NOT NULL DEFAULT 0,
	inclusion_prob REAL NOT NULL DEFAULT 0,
	rank           INTEGER NOT NULL DEFAULT 0,
	certainty      INTEGER NOT NULL DEFAULT 0,
	rotation       TEXT NOT NULL DEFAULT 'new',
	PRIMARY KEY (sample_id, facility_id)
);

CREATE TABLE IF NOT EXISTS draw_runs (
	id         TEXT PRIMARY KEY,
	frame_id   TEXT NOT NULL,
	sample_id  TEXT,
	seed       INTEGER NOT NULL,
	status     TEXT NOT NULL,
	error      TEXT,
	unit_count INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_frames_built_at ON frames(built_at);
CREATE INDEX IF NOT EXISTS idx_frame_locations_region ON frame_locations(region);
CREATE INDEX IF NOT EXISTS idx_samples_drawn_at ON samples(drawn_at);
CREATE INDEX IF NOT EXISTS idx_draw_runs_created_at ON draw_runs(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveFrame(ctx context.Context, f *model.Frame) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save frame")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO frames (id, period, source, built_at, location_count) VALUES (?, ?, ?, ?, ?)`,
		f.ID, f.Period, f.Source, f.BuiltAt, len(f.Locations),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert frame %s", f.ID)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO frame_locations
		 (frame_id, facility_id, name, region, merge_id, merge_role, turnover, outlets,
		  donor_turnover, donor_outlets, total_turnover, total_outlets, avg_turnover, geom)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare location insert")
	}
	defer stmt.Close() //nolint:errcheck

	for _, loc := range f.Locations {
		_, err = stmt.ExecContext(ctx,
			f.ID, loc.FacilityID, loc.Name, loc.Region, loc.MergeID, int(loc.MergeRole),
			loc.Turnover, loc.Outlets, loc.DonorTurnover, loc.DonorOutlets,
			loc.TotalTurnover, loc.TotalOutlets, loc.AvgTurnover, loc.Geom,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert location %s", loc.FacilityID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit save frame")
}

func (s *SQLiteStore) GetFrame(ctx context.Context, frameID string) (*model.Frame, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, period, source, built_at FROM frames WHERE id = ?`, frameID,
	)
	return s.scanFrame(ctx, row)
}

func (s *SQLiteStore) LatestFrame(ctx context.Context) (*model.Frame, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, period, source, built_at FROM frames ORDER BY built_at DESC LIMIT 1`,
	)
	return s.scanFrame(ctx, row)
}

func (s *SQLiteStore) scanFrame(ctx context.Context, row *sql.Row) (*model.Frame, error) {
	var f model.Frame
	err := row.Scan(&f.ID, &f.Period, &f.Source, &f.BuiltAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("sqlite: frame not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get frame")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT facility_id, name, region, merge_id, merge_role, turnover, outlets,
		        donor_turnover, donor_outlets, total_turnover, total_outlets, avg_turnover, geom
		 FROM frame_locations WHERE frame_id = ? ORDER BY facility_id`,
		f.ID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get frame locations")
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		var loc model.Location
		var role int
		if err := rows.Scan(
			&loc.FacilityID, &loc.Name, &loc.Region, &loc.MergeID, &role,
			&loc.Turnover, &loc.Outlets, &loc.DonorTurnover, &loc.DonorOutlets,
			&loc.TotalTurnover, &loc.TotalOutlets, &loc.AvgTurnover, &loc.Geom,
		); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan location")
		}
		loc.MergeRole = model.MergeRole(role)
		f.Locations = append(f.Locations, loc)
	}
	return &f, eris.Wrap(rows.Err(), "sqlite: iterate locations")
}

func (s *SQLiteStore) SaveSample(ctx context.Context, sm *model.Sample) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save sample")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO samples (id, frame_id, period, seed, drawn_at) VALUES (?, ?, ?, ?, ?)`,
		sm.ID, sm.FrameID, sm.Period, sm.Seed, sm.DrawnAt,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert sample %s", sm.ID)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO sample_units
		 (sample_id, facility_id, name, region, size_measure, weight, inclusion_prob, rank, certainty, rotation)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare unit insert")
	}
	defer stmt.Close() //nolint:errcheck

	for _, u := range sm.Units {
		_, err = stmt.ExecContext(ctx,
			sm.ID, u.FacilityID, u.Name, u.Region, u.SizeMeasure,
			u.Weight, u.InclusionProb, u.Rank, boolToInt(u.Certainty), string(u.Rotation),
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert unit %s", u.FacilityID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit save sample")
}

func (s *SQLiteStore) GetSample(ctx context.Context, sampleID string) (*model.Sample, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, frame_id, period, seed, drawn_at FROM samples WHERE id = ?`, sampleID,
	)

	var sm model.Sample
	err := row.Scan(&sm.ID, &sm.FrameID, &sm.Period, &sm.Seed, &sm.DrawnAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("sqlite: sample not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get sample")
	}

	if err := s.loadUnits(ctx, &sm); err != nil {
		return nil, err
	}
	return &sm, nil
}

func (s *SQLiteStore) RecentSamples(ctx context.Context, limit int) ([]model.Sample, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, frame_id, period, seed, drawn_at FROM samples ORDER BY drawn_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list samples")
	}
	defer rows.Close() //nolint:errcheck

	var samples []model.Sample
	for rows.Next() {
		var sm model.Sample
		if err := rows.Scan(&sm.ID, &sm.FrameID, &sm.Period, &sm.Seed, &sm.DrawnAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan sample")
		}
		samples = append(samples, sm)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate samples")
	}

	for i := range samples {
		if err := s.loadUnits(ctx, &samples[i]); err != nil {
			return nil, err
		}
	}
	return samples, nil
}

func (s *SQLiteStore) loadUnits(ctx context.Context, sm *model.Sample) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT facility_id, name, region, size_measure, weight, inclusion_prob, rank, certainty, rotation
		 FROM sample_units WHERE sample_id = ? ORDER BY region, rank`,
		sm.ID,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: get sample units")
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		var u model.SelectedUnit
		var certainty int
		var rotation string
		if err := rows.Scan(
			&u.FacilityID, &u.Name, &u.Region, &u.SizeMeasure,
			&u.Weight, &u.InclusionProb, &u.Rank, &certainty, &rotation,
		); err != nil {
			return eris.Wrap(err, "sqlite: scan unit")
		}
		u.Certainty = certainty != 0
		u.Rotation = model.RotationStatus(rotation)
		sm.Units = append(sm.Units, u)
	}
	return eris.Wrap(rows.Err(), "sqlite: iterate units")
}

func (s *SQLiteStore) CreateDrawRun(ctx context.Context, frameID string, seed int64) (*model.DrawRun, error) {
	run := &model.DrawRun{
		ID:        uuid.New().String(),
		FrameID:   frameID,
		Seed:      seed,
		Status:    model.DrawStatusFailed, // flipped to complete on success
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO draw_runs (id, frame_id, seed, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.FrameID, run.Seed, string(run.Status), run.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert draw run")
	}
	return run, nil
}

func (s *SQLiteStore) CompleteDrawRun(ctx context.Context, runID, sampleID string, unitCount int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE draw_runs SET status = ?, sample_id = ?, unit_count = ? WHERE id = ?`,
		string(model.DrawStatusComplete), sampleID, unitCount, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete draw run %s", runID)
	}
	return checkRowsAffected(res, "draw run", runID)
}

func (s *SQLiteStore) FailDrawRun(ctx context.Context, runID string, cause error) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE draw_runs SET status = ?, error = ? WHERE id = ?`,
		string(model.DrawStatusFailed), cause.Error(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail draw run %s", runID)
	}
	return checkRowsAffected(res, "draw run", runID)
}

func (s *SQLiteStore) ListDrawRuns(ctx context.Context, limit int) ([]model.DrawRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, frame_id, COALESCE(sample_id, ''), seed, status, COALESCE(error, ''), unit_count, created_at
		 FROM draw_runs ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list draw runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.DrawRun
	for rows.Next() {
		var r model.DrawRun
		var status string
		if err := rows.Scan(&r.ID, &r.FrameID, &r.SampleID, &r.Seed, &status, &r.Error, &r.UnitCount, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan draw run")
		}
		r.Status = model.DrawStatus(status)
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: iterate draw runs")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func checkRowsAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("sqlite: %s %s not found", kind, id)
	}
	return nil
}
