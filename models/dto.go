package models

// JobResponse represents the API view of a job
type JobResponse struct {
	ID          string  `json:"id"`
	URL         string  `json:"url"`
	Kind        Kind    `json:"kind"`
	Status      Status  `json:"status"`
	Progress    int     `json:"progress"`
	StatusText  string  `json:"status_text,omitempty"`
	Title       string  `json:"title,omitempty"`
	Duration    float64 `json:"duration,omitempty"`
	FileName    string  `json:"file_name,omitempty"`
	FileSize    int64   `json:"file_size,omitempty"`
	Cached      bool    `json:"cached"`
	DownloadURL string  `json:"download_url,omitempty"`
	Error       string  `json:"error,omitempty"`
	ErrorKind   string  `json:"error_kind,omitempty"`
}

// NewJobResponse creates a response from a job model
func NewJobResponse(j *Job) *JobResponse {
	resp := &JobResponse{
		ID:         j.ID,
		URL:        j.URL,
		Kind:       j.Kind,
		Status:     j.Status,
		Progress:   j.Progress,
		StatusText: j.StatusText,
		Title:      j.Title,
		Duration:   j.Duration,
		FileName:   j.FileName,
		FileSize:   j.FileSize,
		Cached:     j.Cached,
		Error:      j.Error,
		ErrorKind:  j.ErrorKind,
	}
	if j.Status == StatusCompleted && j.FileName != "" {
		resp.DownloadURL = "/api/v1/download/file/" + j.FileName
	}
	return resp
}
