package repository

import (
	"context"
	"time"

	"tubetext/models"
)

type JobRepository interface {
	Save(ctx context.Context, job *models.Job) error
	Find(ctx context.Context, id string) (*models.Job, error)
	// FindActive returns a pending or processing job for the same video and
	// kind, used to deduplicate submissions.
	FindActive(ctx context.Context, videoID string, kind models.Kind) (*models.Job, error)
	List(ctx context.Context, limit int) ([]*models.Job, error)
	// FindStale returns processing jobs untouched since the cutoff.
	FindStale(ctx context.Context, cutoff time.Time) ([]*models.Job, error)
}
