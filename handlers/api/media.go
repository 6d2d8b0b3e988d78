package api

import (
	"net/http"

	"tubetext/errors"
	"tubetext/models"
	"tubetext/services/media"
	"tubetext/storage"

	"github.com/sirupsen/logrus"
)

type MediaHandler struct {
	service media.Service
	store   *storage.Store
	logger  *logrus.Logger
}

func NewMediaHandler(service media.Service, store *storage.Store) *MediaHandler {
	return &MediaHandler{
		service: service,
		store:   store,
		logger:  logrus.StandardLogger(),
	}
}

type createDownloadRequest struct {
	URL       string `json:"url"`
	AudioOnly bool   `json:"audio_only"`
}

type createTranscribeRequest struct {
	URL string `json:"url"`
}

// HandleCreateDownload handles POST /api/v1/download
func (h *MediaHandler) HandleCreateDownload(w http.ResponseWriter, r *http.Request) {
	const op = "MediaHandler.HandleCreateDownload"

	var req createDownloadRequest
	if err := readJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	if req.URL == "" {
		respondError(w, r, errors.InvalidInput(op, nil, "URL is required"))
		return
	}

	job, err := h.service.SubmitDownload(r.Context(), req.URL, req.AudioOnly)
	if err != nil {
		h.logger.WithError(err).Error("Failed to submit download")
		respondError(w, r, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"job_id":     job.ID,
		"video_id":   job.VideoID,
		"audio_only": req.AudioOnly,
	}).Info("Download job created")

	respondJSON(w, r, http.StatusAccepted, models.NewJobResponse(job))
}

// HandleCreateTranscribe handles POST /api/v1/transcribe
func (h *MediaHandler) HandleCreateTranscribe(w http.ResponseWriter, r *http.Request) {
	const op = "MediaHandler.HandleCreateTranscribe"

	var req createTranscribeRequest
	if err := readJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	if req.URL == "" {
		respondError(w, r, errors.InvalidInput(op, nil, "URL is required"))
		return
	}

	job, err := h.service.SubmitTranscribe(r.Context(), req.URL)
	if err != nil {
		h.logger.WithError(err).Error("Failed to submit transcription")
		respondError(w, r, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"job_id":   job.ID,
		"video_id": job.VideoID,
	}).Info("Transcription job created")

	respondJSON(w, r, http.StatusAccepted, models.NewJobResponse(job))
}

// HandleGetStatus handles GET /api/v1/download/status/{id} and
// GET /api/v1/transcribe/status/{id}
func (h *MediaHandler) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	const op = "MediaHandler.HandleGetStatus"

	id := r.PathValue("id")
	if id == "" {
		respondError(w, r, errors.InvalidInput(op, nil, "Job ID is required"))
		return
	}

	job, err := h.service.GetJob(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, r, http.StatusOK, models.NewJobResponse(job))
}

// HandleGetFile handles GET /api/v1/download/file/{filename}
func (h *MediaHandler) HandleGetFile(w http.ResponseWriter, r *http.Request) {
	const op = "MediaHandler.HandleGetFile"

	name := r.PathValue("filename")
	if name == "" {
		respondError(w, r, errors.InvalidInput(op, nil, "Filename is required"))
		return
	}

	path, err := h.store.ResolveFile(name)
	if err != nil {
		respondError(w, r, errors.NotFound(op, err, "File not found"))
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	http.ServeFile(w, r, path)
}

// HandleListFiles handles GET /api/v1/download/list
func (h *MediaHandler) HandleListFiles(w http.ResponseWriter, r *http.Request) {
	const op = "MediaHandler.HandleListFiles"

	files, err := h.store.List()
	if err != nil {
		respondError(w, r, errors.Internal(op, err, "Failed to list files"))
		return
	}

	respondJSON(w, r, http.StatusOK, map[string]interface{}{
		"files": files,
		"count": len(files),
	})
}
