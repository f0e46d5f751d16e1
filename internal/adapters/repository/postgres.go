package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/turf/internal/domain/model"
	"github.com/okian/turf/pkg/metrics"
)

const postgresBackendName = "postgres"

// Querier is the subset of pgx used by PostgresStore.
// Both *pgxpool.Pool and pgxmock pools satisfy it.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id                TEXT PRIMARY KEY,
	user_id           TEXT NOT NULL,
	start_time        TIMESTAMPTZ NOT NULL,
	end_time          TIMESTAMPTZ,
	state             TEXT NOT NULL,
	duration_seconds  BIGINT NOT NULL DEFAULT 0,
	total_steps       INTEGER NOT NULL DEFAULT 0,
	distance_meters   DOUBLE PRECISION NOT NULL DEFAULT 0,
	points            JSONB NOT NULL DEFAULT '[]'::jsonb,
	territory         JSONB,
	territory_area_m2 DOUBLE PRECISION NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS runs_user_start_idx ON runs (user_id, start_time DESC);
`

const runColumns = `id, user_id, start_time, end_time, state, duration_seconds, total_steps, distance_meters, points::text, COALESCE(territory::text, ''), territory_area_m2`

// PostgresStore persists runs in a single runs table. Points and the
// territory ring are JSONB columns.
type PostgresStore struct {
	db Querier
}

// ConnectPostgres opens and pings a pool.
func ConnectPostgres(ctx context.Context, url string) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return pool, nil
}

// NewPostgresStore creates a store over db.
func NewPostgresStore(db Querier) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the runs table when missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate runs: %w", err)
	}
	return nil
}

// Save upserts run.
func (s *PostgresStore) Save(ctx context.Context, run model.Run) error {
	if run.ID == "" {
		return fmt.Errorf("%w: run id must not be empty", model.ErrInvalidInput)
	}
	start := time.Now()
	defer func() { metrics.RecordStoreLatency(postgresBackendName, "save", time.Since(start)) }()

	points, err := json.Marshal(encodePoints(run.Points))
	if err != nil {
		return fmt.Errorf("marshal points: %w", err)
	}
	var territory []byte
	if run.HasTerritory() {
		if territory, err = json.Marshal(encodeRing(run.Territory)); err != nil {
			return fmt.Errorf("marshal territory: %w", err)
		}
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO runs (id, user_id, start_time, end_time, state, duration_seconds, total_steps, distance_meters, points, territory, territory_area_m2)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (id) DO UPDATE SET
			end_time = EXCLUDED.end_time,
			state = EXCLUDED.state,
			duration_seconds = EXCLUDED.duration_seconds,
			total_steps = EXCLUDED.total_steps,
			distance_meters = EXCLUDED.distance_meters,
			points = EXCLUDED.points,
			territory = EXCLUDED.territory,
			territory_area_m2 = EXCLUDED.territory_area_m2
	`, run.ID, run.UserID, run.StartTime, run.EndTime, string(run.State), run.DurationSeconds,
		run.TotalSteps, run.DistanceMeters, string(points), nullableJSON(territory), run.TerritoryAreaM2)
	if err != nil {
		return fmt.Errorf("save run %q: %w", run.ID, err)
	}
	return nil
}

func nullableJSON(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}

func scanRun(row pgx.Row) (model.Run, error) {
	var (
		rec       runRecord
		endTime   pgtype.Timestamptz
		points    string
		territory string
	)
	if err := row.Scan(&rec.ID, &rec.UserID, &rec.StartTime, &endTime, &rec.State, &rec.DurationSeconds,
		&rec.TotalSteps, &rec.DistanceMeters, &points, &territory, &rec.TerritoryAreaM2); err != nil {
		return model.Run{}, err
	}
	if endTime.Valid {
		t := endTime.Time
		rec.EndTime = &t
	}
	if err := json.Unmarshal([]byte(points), &rec.Points); err != nil {
		return model.Run{}, fmt.Errorf("%w: points: %v", ErrCorruptRecord, err)
	}
	if territory != "" {
		if err := json.Unmarshal([]byte(territory), &rec.Territory); err != nil {
			return model.Run{}, fmt.Errorf("%w: territory: %v", ErrCorruptRecord, err)
		}
	}
	return rec.toRun(), nil
}

// FindByID returns the run or model.ErrNotFound.
func (s *PostgresStore) FindByID(ctx context.Context, id string) (model.Run, error) {
	run, err := scanRun(s.db.QueryRow(ctx, `SELECT `+runColumns+` FROM runs WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Run{}, fmt.Errorf("run %q: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return model.Run{}, fmt.Errorf("find run %q: %w", id, err)
	}
	return run, nil
}

// FindOpenRunForUser returns the user's most recent open run.
func (s *PostgresStore) FindOpenRunForUser(ctx context.Context, userID string) (model.Run, bool, error) {
	run, err := scanRun(s.db.QueryRow(ctx, `SELECT `+runColumns+` FROM runs
		WHERE user_id=$1 AND state IN ('ACTIVE','PAUSED')
		ORDER BY start_time DESC LIMIT 1`, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Run{}, false, nil
	}
	if err != nil {
		return model.Run{}, false, fmt.Errorf("find open run: %w", err)
	}
	return run, true, nil
}

// FindAllByUser returns the user's runs, newest start first.
func (s *PostgresStore) FindAllByUser(ctx context.Context, userID string) ([]model.Run, error) {
	rows, err := s.db.Query(ctx, `SELECT `+runColumns+` FROM runs WHERE user_id=$1 ORDER BY start_time DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []model.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RangeTotals sums the user's runs that started in [from, to] in SQL.
func (s *PostgresStore) RangeTotals(ctx context.Context, userID string, from, to time.Time) (model.Totals, error) {
	start := time.Now()
	defer func() { metrics.RecordStoreLatency(postgresBackendName, "totals", time.Since(start)) }()

	var (
		steps       int64
		distance    float64
		territories int64
	)
	err := s.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(total_steps),0), COALESCE(SUM(distance_meters),0), COUNT(territory)
		FROM runs WHERE user_id=$1 AND start_time >= $2 AND start_time <= $3
	`, userID, from, to).Scan(&steps, &distance, &territories)
	if err != nil {
		return model.Totals{}, fmt.Errorf("totals for %q: %w", userID, err)
	}
	return model.Totals{Steps: steps, DistanceMeters: distance, TerritoriesClaimed: int(territories)}, nil
}

// ClaimedTerritories lists claimed territories, newest first.
func (s *PostgresStore) ClaimedTerritories(ctx context.Context) ([]model.ClaimedTerritory, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, territory::text, territory_area_m2, end_time
		FROM runs WHERE territory IS NOT NULL AND end_time IS NOT NULL
		ORDER BY end_time DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list territories: %w", err)
	}
	defer rows.Close()

	out := []model.ClaimedTerritory{}
	for rows.Next() {
		var (
			t    model.ClaimedTerritory
			ring string
			raw  [][2]float64
		)
		if err := rows.Scan(&t.RunID, &t.UserID, &ring, &t.AreaM2, &t.ClaimedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(ring), &raw); err != nil {
			return nil, fmt.Errorf("%w: territory: %v", ErrCorruptRecord, err)
		}
		t.Ring = decodeRing(raw)
		out = append(out, t)
	}
	return out, rows.Err()
}

// Count returns the number of stored runs.
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int64
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM runs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count runs: %w", err)
	}
	return int(n), nil
}

// Close closes the pool when the querier owns one.
func (s *PostgresStore) Close() error {
	if c, ok := s.db.(interface{ Close() }); ok {
		c.Close()
	}
	return nil
}
