package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"courtedge/internal/models"
)

// ErrNoRuns is returned by LatestRun before the first archived run.
var ErrNoRuns = errors.New("no archived runs")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id      TEXT PRIMARY KEY,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	payload     JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS player_ids (
	key TEXT PRIMARY KEY,
	id  TEXT NOT NULL
);
`

// Store archives runs and backs the permanent identifier map in
// Postgres for multi-process deployments.
type Store struct {
	db *sqlx.DB
}

// Open connects, pings and bootstraps the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}
	log.Debug().Msg("persistence store ready")
	return &Store{db: db}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun archives one finished run, payload and all.
func (s *Store) SaveRun(ctx context.Context, run models.RunOutput) error {
	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, started_at, finished_at, payload)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (run_id) DO NOTHING`,
		run.RunID, run.StartedAt, run.FinishedAt, payload)
	if err != nil {
		return fmt.Errorf("archive run %s: %w", run.RunID, err)
	}
	return nil
}

// LatestRun returns the most recently finished archived run.
func (s *Store) LatestRun(ctx context.Context) (models.RunOutput, error) {
	var payload []byte
	err := s.db.GetContext(ctx, &payload,
		`SELECT payload FROM runs ORDER BY finished_at DESC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return models.RunOutput{}, ErrNoRuns
	}
	if err != nil {
		return models.RunOutput{}, fmt.Errorf("load latest run: %w", err)
	}
	var run models.RunOutput
	if err := json.Unmarshal(payload, &run); err != nil {
		return models.RunOutput{}, fmt.Errorf("decode archived run: %w", err)
	}
	return run, nil
}

// Lookup returns the identifier mapped to key.
func (s *Store) Lookup(ctx context.Context, key string) (string, bool) {
	var id string
	err := s.db.GetContext(ctx, &id, `SELECT id FROM player_ids WHERE key = $1`, key)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Warn().Err(err).Str("key", key).Msg("identifier lookup failed")
		}
		return "", false
	}
	return id, true
}

// PutIfAbsent maps key to id unless a prior writer won; the stored
// value is returned either way.
func (s *Store) PutIfAbsent(ctx context.Context, key, id string) (string, bool) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO player_ids (key, id) VALUES ($1, $2) ON CONFLICT (key) DO NOTHING`,
		key, id)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("identifier insert failed")
		return id, false
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return id, true
	}
	if existing, ok := s.Lookup(ctx, key); ok {
		return existing, false
	}
	return id, false
}
