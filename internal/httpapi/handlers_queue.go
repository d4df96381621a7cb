package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"ocrd/internal/queue"
	"ocrd/pkg/types"
)

// handleQueueAdd godoc
// @Summary Enqueue uploaded files for sequential processing
// @Accept mpfd
// @Produce json
// @Param files formData file true "Files to enqueue"
// @Success 200 {object} types.EnqueueResponse
// @Failure 400 {object} types.ErrorResponse
// @Router /queue/add [post]
func (s *Server) handleQueueAdd(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	if r.MultipartForm == nil || len(r.MultipartForm.File["files"]) == 0 {
		writeJSONError(w, http.StatusBadRequest, "No files provided")
		return
	}

	uploads := make([]queue.Upload, 0, len(r.MultipartForm.File["files"]))
	for _, fh := range r.MultipartForm.File["files"] {
		if fh.Filename == "" {
			continue
		}
		path, err := s.saveUpload(fh, s.tempUploadDir())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		uploads = append(uploads, queue.Upload{Filename: fh.Filename, TempPath: path})
	}

	ids := s.queue.Enqueue(uploads, parseOCRParams(r))
	SetQueueDepth(s.queue.Snapshot().Total)
	writeJSON(w, http.StatusOK, types.EnqueueResponse{
		Status: "success",
		IDs:    ids,
		Added:  len(ids),
	})
}

// handleQueueStatus godoc
// @Summary Aggregate queue snapshot
// @Produce json
// @Success 200 {object} types.QueueStatusResponse
// @Router /queue/status [get]
func (s *Server) handleQueueStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.queue.Snapshot())
}

// handleQueueProcess godoc
// @Summary Drain all pending items sequentially
// @Produce json
// @Success 200 {object} types.DrainSummary
// @Failure 429 {object} types.ErrorResponse
// @Failure 504 {object} types.ErrorResponse
// @Router /queue/process [post]
func (s *Server) handleQueueProcess(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	// The drain survives a dropped client; only process shutdown stops it.
	summary, err := s.queue.Drain(serverBaseCtx)
	if err != nil {
		logRequestEnd(r, "queue_process", http.StatusInternalServerError, start, err)
		writeServiceError(w, err)
		return
	}
	SetModelLoaded(true)
	SetQueueDepth(s.queue.Snapshot().Total)
	for _, item := range summary.Items {
		CountJob(item.Status)
	}
	logRequestEnd(r, "queue_process", http.StatusOK, start, nil)
	writeJSON(w, http.StatusOK, summary)
}

// handleQueueClear godoc
// @Summary Remove all non-processing items from the queue
// @Produce json
// @Success 200 {object} map[string]string
// @Router /queue/clear [post]
func (s *Server) handleQueueClear(w http.ResponseWriter, r *http.Request) {
	s.queue.Clear()
	SetQueueDepth(s.queue.Snapshot().Total)
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// handleQueueRemove godoc
// @Summary Remove one queue item by id
// @Produce json
// @Param id path int true "Queue item id"
// @Success 200 {object} map[string]string
// @Failure 404 {object} types.ErrorResponse
// @Router /queue/remove/{id} [delete]
func (s *Server) handleQueueRemove(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid queue item id")
		return
	}
	if err := s.queue.Remove(id); err != nil {
		writeServiceError(w, err)
		return
	}
	SetQueueDepth(s.queue.Snapshot().Total)
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// handleQueueHistory godoc
// @Summary List past drain summaries, newest first
// @Produce json
// @Param limit query int false "Maximum entries to return"
// @Success 200 {object} map[string]any
// @Router /queue/history [get]
func (s *Server) handleQueueHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "drain history not enabled")
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	drains, err := s.history.ListDrains(limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"drains": drains,
	})
}
