package progress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is the subset of *pgxpool.Pool used here.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Postgres reads and writes the platform's watch_history table directly.
type Postgres struct {
	db  querier
	now func() time.Time
}

// NewPostgres returns a Store backed by the watch_history table.
func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db, now: time.Now}
}

// OpenPostgres connects a pool and verifies it with a ping.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, func(), error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.MaxConns = 4

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewPostgres(pool), pool.Close, nil
}

const selectProgress = `SELECT progress_seconds, is_completed, last_watched_at
FROM watch_history WHERE user_id = $1 AND video_id = $2`

const upsertProgress = `
INSERT INTO watch_history (user_id, video_id, progress_seconds, is_completed, last_watched_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (user_id, video_id)
DO UPDATE SET
  progress_seconds = EXCLUDED.progress_seconds,
  is_completed     = EXCLUDED.is_completed,
  last_watched_at  = EXCLUDED.last_watched_at`

func (p *Postgres) Get(ctx context.Context, userID, videoID string) (Record, error) {
	rec := emptyRecord(userID, videoID)
	err := p.db.QueryRow(ctx, selectProgress, userID, videoID).
		Scan(&rec.ProgressSeconds, &rec.IsCompleted, &rec.LastWatchedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return emptyRecord(userID, videoID), nil
	}
	if err != nil {
		return Record{}, fmt.Errorf("select watch_history: %w", err)
	}
	return rec, nil
}

func (p *Postgres) Save(ctx context.Context, userID, videoID string, seconds int, completed bool) error {
	if err := validate(seconds); err != nil {
		return err
	}

	_, err := p.db.Exec(ctx, upsertProgress, userID, videoID, seconds, completed, p.now().UTC())
	if err != nil {
		return fmt.Errorf("upsert watch_history: %w", err)
	}
	return nil
}
