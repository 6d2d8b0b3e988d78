package sqlite

import (
	"context"
	"database/sql"
	"time"

	"tubetext/errors"
	"tubetext/models"
)

type Repository struct {
	db *DB
}

func NewRepository(db *DB) (*Repository, error) {
	return &Repository{db: db}, nil
}

func (r *Repository) Save(ctx context.Context, job *models.Job) error {
	const op = "SQLiteRepository.Save"

	for i := 0; i < 3; i++ { // Simple retry logic
		err := r.save(ctx, job)
		if err == nil {
			return nil
		}
		if !isLockError(err) {
			return errors.Internal(op, err, "Failed to save job")
		}
		time.Sleep(time.Second * time.Duration(i+1))
	}
	return errors.Internal(op, nil, "Failed after retries")
}

func (r *Repository) save(ctx context.Context, job *models.Job) error {
	_, err := r.db.statements.save.ExecContext(ctx,
		job.ID,
		job.URL,
		job.VideoID,
		string(job.Kind),
		string(job.Status),
		job.Progress,
		job.StatusText,
		job.Title,
		job.Duration,
		job.FileName,
		job.FileSize,
		job.Cached,
		job.Error,
		job.ErrorKind,
		job.CreatedAt,
		job.UpdatedAt,
	)
	return err
}

func (r *Repository) Find(ctx context.Context, id string) (*models.Job, error) {
	const op = "SQLiteRepository.Find"

	job, err := scanJob(r.db.statements.get.QueryRowContext(ctx, id))
	if err == sql.ErrNoRows {
		return nil, errors.NotFound(op, nil, "Job not found")
	}
	if err != nil {
		return nil, errors.Internal(op, err, "Failed to query job")
	}
	return job, nil
}

func (r *Repository) FindActive(ctx context.Context, videoID string, kind models.Kind) (*models.Job, error) {
	const op = "SQLiteRepository.FindActive"

	job, err := scanJob(r.db.statements.getActive.QueryRowContext(ctx, videoID, string(kind)))
	if err == sql.ErrNoRows {
		return nil, errors.NotFound(op, nil, "No active job")
	}
	if err != nil {
		return nil, errors.Internal(op, err, "Failed to query active job")
	}
	return job, nil
}

func (r *Repository) List(ctx context.Context, limit int) ([]*models.Job, error) {
	const op = "SQLiteRepository.List"

	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.statements.list.QueryContext(ctx, limit)
	if err != nil {
		return nil, errors.Internal(op, err, "Failed to list jobs")
	}
	defer rows.Close()

	return collectJobs(op, rows)
}

func (r *Repository) FindStale(ctx context.Context, cutoff time.Time) ([]*models.Job, error) {
	const op = "SQLiteRepository.FindStale"

	rows, err := r.db.statements.getStale.QueryContext(ctx, cutoff)
	if err != nil {
		return nil, errors.Internal(op, err, "Failed to query stale jobs")
	}
	defer rows.Close()

	return collectJobs(op, rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*models.Job, error) {
	job := &models.Job{}
	var kind, status string

	err := row.Scan(
		&job.ID,
		&job.URL,
		&job.VideoID,
		&kind,
		&status,
		&job.Progress,
		&job.StatusText,
		&job.Title,
		&job.Duration,
		&job.FileName,
		&job.FileSize,
		&job.Cached,
		&job.Error,
		&job.ErrorKind,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Kind = models.Kind(kind)
	job.Status = models.Status(status)
	return job, nil
}

func collectJobs(op string, rows *sql.Rows) ([]*models.Job, error) {
	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, errors.Internal(op, err, "Failed to scan job")
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Internal(op, err, "Failed to iterate jobs")
	}
	return jobs, nil
}
