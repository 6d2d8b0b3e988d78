package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"tubetext/errors"
)

const (
	saveJobQuery = `
        INSERT INTO jobs (
            id, url, video_id, kind, status, progress, status_text,
            title, duration, file_name, file_size, cached,
            error, error_kind, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            status = excluded.status,
            progress = excluded.progress,
            status_text = excluded.status_text,
            title = excluded.title,
            duration = excluded.duration,
            file_name = excluded.file_name,
            file_size = excluded.file_size,
            cached = excluded.cached,
            error = excluded.error,
            error_kind = excluded.error_kind,
            updated_at = excluded.updated_at
    `

	getJobQuery = `
        SELECT id, url, video_id, kind, status, progress, status_text,
               title, duration, file_name, file_size, cached,
               error, error_kind, created_at, updated_at
        FROM jobs WHERE id = ?
    `

	getActiveJobQuery = `
        SELECT id, url, video_id, kind, status, progress, status_text,
               title, duration, file_name, file_size, cached,
               error, error_kind, created_at, updated_at
        FROM jobs
        WHERE video_id = ? AND kind = ? AND status IN ('pending', 'processing')
        ORDER BY created_at DESC
        LIMIT 1
    `

	listJobsQuery = `
        SELECT id, url, video_id, kind, status, progress, status_text,
               title, duration, file_name, file_size, cached,
               error, error_kind, created_at, updated_at
        FROM jobs
        ORDER BY created_at DESC
        LIMIT ?
    `

	getStaleJobsQuery = `
        SELECT id, url, video_id, kind, status, progress, status_text,
               title, duration, file_name, file_size, cached,
               error, error_kind, created_at, updated_at
        FROM jobs
        WHERE status = 'processing' AND updated_at < ?
    `
)

type preparedStatements struct {
	save      *sql.Stmt
	get       *sql.Stmt
	getActive *sql.Stmt
	list      *sql.Stmt
	getStale  *sql.Stmt
}

func (stmts *preparedStatements) prepare(ctx context.Context, db *sql.DB) error {
	const op = "preparedStatements.prepare"

	var err error

	if stmts.save, err = db.PrepareContext(ctx, saveJobQuery); err != nil {
		return errors.Internal(op, err, "failed to prepare save statement")
	}

	if stmts.get, err = db.PrepareContext(ctx, getJobQuery); err != nil {
		return errors.Internal(op, err, "failed to prepare get statement")
	}

	if stmts.getActive, err = db.PrepareContext(ctx, getActiveJobQuery); err != nil {
		return errors.Internal(op, err, "failed to prepare getActive statement")
	}

	if stmts.list, err = db.PrepareContext(ctx, listJobsQuery); err != nil {
		return errors.Internal(op, err, "failed to prepare list statement")
	}

	if stmts.getStale, err = db.PrepareContext(ctx, getStaleJobsQuery); err != nil {
		return errors.Internal(op, err, "failed to prepare getStale statement")
	}

	return nil
}

func (stmts *preparedStatements) close() error {
	var errs []error

	statements := [...]*sql.Stmt{
		stmts.save,
		stmts.get,
		stmts.getActive,
		stmts.list,
		stmts.getStale,
	}

	for _, stmt := range statements {
		if stmt != nil {
			if err := stmt.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("failed to close prepared statements: %v", errs)
	}

	return nil
}
