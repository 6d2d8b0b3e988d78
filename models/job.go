package models

import (
	"time"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

type Kind string

const (
	KindDownloadVideo Kind = "download_video"
	KindDownloadAudio Kind = "download_audio"
	KindTranscribe    Kind = "transcribe"
)

// Job is one logical download or transcription request tracked through the
// worker queue and persisted for polling.
type Job struct {
	ID         string    `json:"id"`
	URL        string    `json:"url"`
	VideoID    string    `json:"video_id"`
	Kind       Kind      `json:"kind"`
	Status     Status    `json:"status"`
	Progress   int       `json:"progress"`
	StatusText string    `json:"status_text,omitempty"`
	Title      string    `json:"title,omitempty"`
	Duration   float64   `json:"duration,omitempty"`
	FileName   string    `json:"file_name,omitempty"`
	FileSize   int64     `json:"file_size,omitempty"`
	Cached     bool      `json:"cached"`
	Error      string    `json:"error,omitempty"`
	ErrorKind  string    `json:"error_kind,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Status check methods
func (j *Job) IsProcessing() bool { return j.Status == StatusProcessing }
func (j *Job) IsCompleted() bool  { return j.Status == StatusCompleted }
func (j *Job) IsFailed() bool     { return j.Status == StatusFailed }

// IsStale checks if the job has been stuck in processing for too long
func (j *Job) IsStale(timeout time.Duration) bool {
	if j.Status != StatusProcessing {
		return false
	}
	return time.Since(j.UpdatedAt) > timeout
}
