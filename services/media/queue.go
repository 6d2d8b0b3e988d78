package media

import (
	"context"
	"errors"
	"sync"
	"time"

	"tubetext/models"

	"github.com/sirupsen/logrus"
)

// Common errors
var (
	ErrQueueFull = errors.New("job queue is full")
)

// ProcessFunc runs one queued job to completion.
type ProcessFunc func(ctx context.Context, job *models.Job) error

type JobQueue struct {
	jobs         chan *queuedJob
	priorityJobs chan *queuedJob
	activeJobs   map[string]*queuedJob
	workerCount  int
	maxJobs      int
	hungTimeout  time.Duration
	logger       *logrus.Logger
	mu           sync.Mutex
	quit         chan struct{}
}

type queuedJob struct {
	job        *models.Job
	ctx        context.Context
	cancelFunc context.CancelFunc
	result     chan error
	priority   int
	startTime  time.Time
}

func NewJobQueue(workerCount, maxQueueSize int, hungTimeout time.Duration) *JobQueue {
	if hungTimeout <= 0 {
		hungTimeout = 30 * time.Minute
	}
	return &JobQueue{
		jobs:         make(chan *queuedJob, maxQueueSize),
		priorityJobs: make(chan *queuedJob, 5), // Small buffer for priority jobs
		activeJobs:   make(map[string]*queuedJob),
		workerCount:  workerCount,
		maxJobs:      maxQueueSize,
		hungTimeout:  hungTimeout,
		logger:       logrus.StandardLogger(),
		quit:         make(chan struct{}),
	}
}

// Start begins processing jobs
func (q *JobQueue) Start(processFunc ProcessFunc) {
	for i := 0; i < q.workerCount; i++ {
		go q.worker(i, processFunc)
	}

	go q.monitorHungJobs()
}

// Submit adds a job to the queue
func (q *JobQueue) Submit(ctx context.Context, job *models.Job, priority int) (<-chan error, error) {
	jobCtx, cancel := context.WithCancel(ctx)

	queued := &queuedJob{
		job:        job,
		ctx:        jobCtx,
		cancelFunc: cancel,
		result:     make(chan error, 1),
		priority:   priority,
		startTime:  time.Now(),
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.jobs) >= q.maxJobs {
		cancel()
		return nil, ErrQueueFull
	}

	q.activeJobs[job.ID] = queued

	if priority > 0 {
		select {
		case q.priorityJobs <- queued:
			// Successfully queued
		default:
			// Priority queue full, use regular queue
			q.jobs <- queued
		}
	} else {
		q.jobs <- queued
	}

	return queued.result, nil
}

// Cancel attempts to cancel a job
func (q *JobQueue) Cancel(jobID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	queued, exists := q.activeJobs[jobID]
	if !exists {
		return false
	}

	queued.cancelFunc()
	return true
}

// IsActive reports whether a job is queued or running.
func (q *JobQueue) IsActive(jobID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	_, exists := q.activeJobs[jobID]
	return exists
}

func (q *JobQueue) worker(id int, processFunc ProcessFunc) {
	log := q.logger.WithField("worker_id", id)
	log.Info("Starting worker")

	for {
		var queued *queuedJob
		// First check priority queue, then regular queue
		select {
		case <-q.quit:
			log.Info("Worker shutting down")
			return
		case queued = <-q.priorityJobs:
		default:
			select {
			case <-q.quit:
				log.Info("Worker shutting down")
				return
			case queued = <-q.jobs:
			case queued = <-q.priorityJobs:
			}
		}

		jobLog := log.WithFields(logrus.Fields{
			"job_id": queued.job.ID,
			"kind":   queued.job.Kind,
		})
		jobLog.Info("Processing job")

		startTime := time.Now()
		err := processFunc(queued.ctx, queued.job)
		duration := time.Since(startTime)

		if err != nil {
			jobLog.WithError(err).WithField("duration_ms", duration.Milliseconds()).Error("Job failed")
		} else {
			jobLog.WithField("duration_ms", duration.Milliseconds()).Info("Job succeeded")
		}

		select {
		case queued.result <- err:
		default:
			// No one listening for result
		}

		queued.cancelFunc()

		q.mu.Lock()
		delete(q.activeJobs, queued.job.ID)
		q.mu.Unlock()
	}
}

// Close shuts down the queue
func (q *JobQueue) Close() {
	close(q.quit)

	q.mu.Lock()
	defer q.mu.Unlock()

	for _, queued := range q.activeJobs {
		queued.cancelFunc()
	}
}

// monitorHungJobs periodically checks for hung jobs
func (q *JobQueue) monitorHungJobs() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-q.quit:
			return
		case <-ticker.C:
			q.checkHungJobs()
		}
	}
}

// checkHungJobs logs jobs that have been running too long. Cancellation is
// left to the caller's policy.
func (q *JobQueue) checkHungJobs() {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	for id, queued := range q.activeJobs {
		if now.Sub(queued.startTime) > q.hungTimeout {
			q.logger.WithFields(logrus.Fields{
				"job_id":   id,
				"duration": now.Sub(queued.startTime),
			}).Warn("Found hung job")
		}
	}
}
