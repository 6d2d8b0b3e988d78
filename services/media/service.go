package media

import (
	"context"
	"time"

	"tubetext/downloader"
	"tubetext/errors"
	"tubetext/models"
	"tubetext/repository"
	"tubetext/storage"
	"tubetext/transcription"
	"tubetext/validation"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type Repository = repository.JobRepository

// Downloader fetches media for a video and reports the produced artifact.
type Downloader interface {
	Download(ctx context.Context, req downloader.Request) (*downloader.Result, error)
}

// Transcriber recognizes speech in a local audio file.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) ([]transcription.Segment, error)
}

// SubtitleMirror copies generated subtitles to remote storage. Mirror
// failures never fail the job.
type SubtitleMirror interface {
	SaveSubtitle(ctx context.Context, videoID, content string) error
}

type Service interface {
	// SubmitDownload queues a download job, or returns the active job for
	// the same video.
	SubmitDownload(ctx context.Context, url string, audioOnly bool) (*models.Job, error)

	// SubmitTranscribe queues a transcription job, downloading audio first
	// when none is cached.
	SubmitTranscribe(ctx context.Context, url string) (*models.Job, error)

	GetJob(ctx context.Context, id string) (*models.Job, error)
	ListJobs(ctx context.Context, limit int) ([]*models.Job, error)

	// RecoverStale marks processing jobs untouched past the timeout as
	// failed. Called once at startup.
	RecoverStale(ctx context.Context) error

	Close()
}

type Config struct {
	// ProcessTimeout is the maximum time allowed for a single job
	ProcessTimeout time.Duration `json:"process_timeout"`

	Workers      int `json:"workers"`
	MaxQueueSize int `json:"max_queue_size"`
}

type service struct {
	repo       Repository
	queue      *JobQueue
	downloader Downloader
	transcribe Transcriber
	store      *storage.Store
	mirror     SubtitleMirror
	validator  *validation.Validator
	config     Config
	logger     *logrus.Logger
}

func NewService(
	repo Repository,
	dl Downloader,
	tr Transcriber,
	store *storage.Store,
	mirror SubtitleMirror,
	validator *validation.Validator,
	config Config,
) Service {
	if config.ProcessTimeout <= 0 {
		config.ProcessTimeout = 30 * time.Minute
	}
	if config.Workers <= 0 {
		config.Workers = 4
	}
	if config.MaxQueueSize <= 0 {
		config.MaxQueueSize = 100
	}

	s := &service{
		repo:       repo,
		downloader: dl,
		transcribe: tr,
		store:      store,
		mirror:     mirror,
		validator:  validator,
		config:     config,
		logger:     logrus.StandardLogger(),
		queue:      NewJobQueue(config.Workers, config.MaxQueueSize, config.ProcessTimeout),
	}
	s.queue.Start(s.process)
	return s
}

func (s *service) SubmitDownload(ctx context.Context, url string, audioOnly bool) (*models.Job, error) {
	kind := models.KindDownloadVideo
	if audioOnly {
		kind = models.KindDownloadAudio
	}
	return s.submit(ctx, url, kind)
}

func (s *service) SubmitTranscribe(ctx context.Context, url string) (*models.Job, error) {
	return s.submit(ctx, url, models.KindTranscribe)
}

func (s *service) submit(ctx context.Context, url string, kind models.Kind) (*models.Job, error) {
	const op = "MediaService.submit"
	logger := s.logger.WithFields(logrus.Fields{
		"url":  url,
		"kind": kind,
	})

	if err := s.validator.ValidateURL(url); err != nil {
		logger.WithError(err).Info("URL validation failed")
		return nil, err
	}

	videoID := validation.VideoID(url)

	// An active job for the same video and kind is returned as-is instead
	// of queueing duplicate work.
	if existing, err := s.repo.FindActive(ctx, videoID, kind); err == nil {
		if s.queue.IsActive(existing.ID) || existing.Status == models.StatusPending {
			logger.WithField("job_id", existing.ID).Info("Returning active job")
			return existing, nil
		}
	}

	now := time.Now()
	job := &models.Job{
		ID:        uuid.New().String(),
		URL:       url,
		VideoID:   videoID,
		Kind:      kind,
		Status:    models.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Save(ctx, job); err != nil {
		return nil, err
	}

	// Transcriptions with cached audio skip the download, so they finish
	// fast; let them jump the queue.
	priority := 0
	if kind == models.KindTranscribe {
		if _, _, ok := s.store.FindMedia(videoID, true); ok {
			priority = 1
		}
	}

	// The job outlives the HTTP request; the queue owns its context.
	if _, err := s.queue.Submit(context.Background(), job, priority); err != nil {
		job.Status = models.StatusFailed
		job.Error = err.Error()
		job.UpdatedAt = time.Now()
		if saveErr := s.repo.Save(ctx, job); saveErr != nil {
			logger.WithError(saveErr).Error("Failed to record queue rejection")
		}
		return nil, errors.Internal(op, err, "Job queue is full, try again later")
	}

	logger.WithField("job_id", job.ID).Info("Job queued")
	return job, nil
}

func (s *service) GetJob(ctx context.Context, id string) (*models.Job, error) {
	const op = "MediaService.GetJob"

	if id == "" {
		return nil, errors.InvalidInput(op, nil, "Job ID is required")
	}
	return s.repo.Find(ctx, id)
}

func (s *service) ListJobs(ctx context.Context, limit int) ([]*models.Job, error) {
	return s.repo.List(ctx, limit)
}

func (s *service) RecoverStale(ctx context.Context) error {
	const op = "MediaService.RecoverStale"

	stale, err := s.repo.FindStale(ctx, time.Now().Add(-s.config.ProcessTimeout))
	if err != nil {
		return err
	}

	for _, job := range stale {
		job.Status = models.StatusFailed
		job.Error = "job abandoned after restart"
		job.UpdatedAt = time.Now()
		if err := s.repo.Save(ctx, job); err != nil {
			return errors.Internal(op, err, "Failed to mark stale job")
		}
		s.logger.WithField("job_id", job.ID).Warn("Marked stale job as failed")
	}
	return nil
}

func (s *service) Close() {
	s.queue.Close()
}

// process is the queue worker entrypoint.
func (s *service) process(ctx context.Context, job *models.Job) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ProcessTimeout)
	defer cancel()

	job.Status = models.StatusProcessing
	job.UpdatedAt = time.Now()
	if err := s.repo.Save(ctx, job); err != nil {
		return err
	}

	var err error
	switch job.Kind {
	case models.KindTranscribe:
		err = s.processTranscribe(ctx, job)
	default:
		err = s.processDownload(ctx, job)
	}

	if err != nil {
		s.fail(job, err)
		return err
	}

	job.Status = models.StatusCompleted
	job.Progress = 100
	job.UpdatedAt = time.Now()
	return s.repo.Save(context.Background(), job)
}

func (s *service) processDownload(ctx context.Context, job *models.Job) error {
	result, err := s.downloader.Download(ctx, downloader.Request{
		URL:       job.URL,
		VideoID:   job.VideoID,
		AudioOnly: job.Kind == models.KindDownloadAudio,
		Progress:  s.progressSink(job, 0, 100),
	})
	if err != nil {
		return err
	}

	job.Title = result.Title
	job.Duration = result.Duration
	job.FileName = result.FileName
	job.FileSize = result.FileSize
	job.Cached = result.Cached
	return nil
}

func (s *service) processTranscribe(ctx context.Context, job *models.Job) error {
	logger := s.logger.WithField("job_id", job.ID)

	// An existing subtitle file makes this a cache hit.
	if name, size, ok := s.store.FindSubtitle(job.VideoID); ok {
		logger.Info("Subtitle already exists")
		job.FileName = name
		job.FileSize = size
		job.Cached = true
		job.StatusText = "Subtitle file already exists"
		return nil
	}

	// Make sure the audio is on disk, downloading it when needed.
	if _, _, ok := s.store.FindMedia(job.VideoID, true); !ok {
		s.report(job, "Audio not found, downloading...", 5)
		result, err := s.downloader.Download(ctx, downloader.Request{
			URL:       job.URL,
			VideoID:   job.VideoID,
			AudioOnly: true,
			Progress:  s.progressSink(job, 5, 50),
		})
		if err != nil {
			return err
		}
		job.Title = result.Title
		job.Duration = result.Duration
	} else {
		logger.Info("Using cached audio file")
	}

	s.report(job, "Recognizing speech...", 55)
	segments, err := s.transcribe.Transcribe(ctx, s.store.AudioPath(job.VideoID))
	if err != nil {
		return err
	}

	s.report(job, "Generating subtitle file...", 90)
	content := transcription.RenderSRT(segments)
	if err := transcription.WriteSRT(segments, s.store.SubtitlePath(job.VideoID)); err != nil {
		return err
	}

	if s.mirror != nil {
		if err := s.mirror.SaveSubtitle(ctx, job.VideoID, content); err != nil {
			logger.WithError(err).Warn("Failed to mirror subtitle to object storage")
		}
	}

	name, size, ok := s.store.FindSubtitle(job.VideoID)
	if !ok {
		return errors.Internal("MediaService.processTranscribe", nil, "Subtitle file missing after generation")
	}
	job.FileName = name
	job.FileSize = size
	return nil
}

// progressSink maps a child task's 0-100 progress into the job's [lo, hi]
// band and persists each update.
func (s *service) progressSink(job *models.Job, lo, hi int) downloader.ProgressFunc {
	return func(status string, percent int) {
		s.report(job, status, lo+(hi-lo)*percent/100)
	}
}

func (s *service) report(job *models.Job, status string, percent int) {
	job.StatusText = status
	job.Progress = percent
	job.UpdatedAt = time.Now()
	if err := s.repo.Save(context.Background(), job); err != nil {
		s.logger.WithError(err).WithField("job_id", job.ID).Warn("Failed to persist progress update")
	}
}

func (s *service) fail(job *models.Job, err error) {
	job.Status = models.StatusFailed
	job.Error = err.Error()
	if _, ok := err.(*downloader.ToolError); ok {
		job.ErrorKind = string(downloader.ErrKind(err))
	}
	job.UpdatedAt = time.Now()
	if saveErr := s.repo.Save(context.Background(), job); saveErr != nil {
		s.logger.WithError(saveErr).WithField("job_id", job.ID).Error("Failed to persist job failure")
	}
}
