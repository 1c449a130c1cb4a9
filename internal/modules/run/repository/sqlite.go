package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/reshetovitsme/channel-posts/internal/modules/run/domain"
	apperrors "github.com/reshetovitsme/channel-posts/internal/shared/errors"
	"github.com/samber/oops"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteStorage implements run.Repository on an embedded SQLite database
type SQLiteStorage struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database at path
func Open(ctx context.Context, path string) (*SQLiteStorage, error) {
	if strings.TrimSpace(path) == "" {
		return nil, apperrors.Mark(apperrors.ErrStorage, oops.Errorf("history path is required"))
	}

	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, apperrors.Mark(apperrors.ErrStorage, oops.With("dir", dir, "context", "failed to create history directory").Wrap(err))
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, apperrors.Mark(apperrors.ErrStorage, oops.With("path", path, "context", "failed to open history").Wrap(err))
	}
	// Single writer; also keeps :memory: databases on one connection.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, apperrors.Mark(apperrors.ErrStorage, oops.With("path", path, "context", "failed to apply schema").Wrap(err))
	}

	return &SQLiteStorage{db: db}, nil
}

// Save inserts or updates a run keyed by its ID
func (s *SQLiteStorage) Save(ctx context.Context, run *domain.Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, finished_at, state, fetched, retained, persisted, media_failures, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			finished_at = excluded.finished_at,
			state = excluded.state,
			fetched = excluded.fetched,
			retained = excluded.retained,
			persisted = excluded.persisted,
			media_failures = excluded.media_failures,
			error = excluded.error`,
		run.ID.String(),
		run.StartedAt.UnixNano(),
		unixNano(run.FinishedAt),
		run.State.String(),
		run.Fetched,
		run.Retained,
		run.Persisted,
		run.MediaFailures,
		run.Error,
	)
	if err != nil {
		return apperrors.Mark(apperrors.ErrStorage, oops.With("run_id", run.ID, "context", "failed to save run").Wrap(err))
	}
	return nil
}

// Recent returns up to limit runs, newest first
func (s *SQLiteStorage) Recent(ctx context.Context, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, state, fetched, retained, persisted, media_failures, error
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, apperrors.Mark(apperrors.ErrStorage, oops.With("context", "failed to query runs").Wrap(err))
	}
	defer rows.Close()

	runs := []domain.Run{}
	for rows.Next() {
		var (
			id, state         string
			started, finished int64
			r                 domain.Run
		)
		if err := rows.Scan(&id, &started, &finished, &state, &r.Fetched, &r.Retained, &r.Persisted, &r.MediaFailures, &r.Error); err != nil {
			return nil, apperrors.Mark(apperrors.ErrStorage, oops.With("context", "failed to scan run").Wrap(err))
		}
		if r.ID, err = uuid.Parse(id); err != nil {
			return nil, apperrors.Mark(apperrors.ErrStorage, oops.With("run_id", id).Wrap(err))
		}
		if r.State, err = domain.ParseState(state); err != nil {
			return nil, apperrors.Mark(apperrors.ErrStorage, oops.With("run_id", id).Wrap(err))
		}
		r.StartedAt = time.Unix(0, started).UTC()
		if finished != 0 {
			r.FinishedAt = time.Unix(0, finished).UTC()
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Mark(apperrors.ErrStorage, oops.With("context", "failed to iterate runs").Wrap(err))
	}
	return runs, nil
}

// Close releases the database handle
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}
