package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urbantwin/hybridsim/internal/models"
)

// PostgresStore keeps a durable record of completed runs so studies can be
// compared after the fact; the results file on disk is overwritten per run.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, cfg models.DatabaseConfig) (*PostgresStore, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error pinging database: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			run_id       TEXT PRIMARY KEY,
			started_at   TIMESTAMPTZ NOT NULL,
			finished_at  TIMESTAMPTZ NOT NULL,
			hotspots     JSONB NOT NULL,
			failed       JSONB,
			corrections  JSONB NOT NULL,
			link_count   INTEGER NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("creating runs table: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveRun(ctx context.Context, result *models.RunResult) error {
	hotspots, err := json.Marshal(result.Hotspots)
	if err != nil {
		return err
	}
	failed, err := json.Marshal(result.FailedHotspots)
	if err != nil {
		return err
	}
	corrections, err := json.Marshal(result.Corrections)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO runs (run_id, started_at, finished_at, hotspots, failed, corrections, link_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (run_id) DO UPDATE SET
			finished_at = EXCLUDED.finished_at,
			hotspots    = EXCLUDED.hotspots,
			failed      = EXCLUDED.failed,
			corrections = EXCLUDED.corrections,
			link_count  = EXCLUDED.link_count`,
		result.RunID, result.StartedAt, result.FinishedAt, hotspots, failed, corrections, result.LinkCount,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", result.RunID, err)
	}
	return nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}
