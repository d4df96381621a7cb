package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"ocrd/pkg/types"
)

// handleHealth godoc
// @Summary Service health
// @Produce json
// @Success 200 {object} types.HealthResponse
// @Router /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.HealthResponse{
		Status:       "ok",
		ModelLoaded:  s.mgr.Loaded(),
		GPUAvailable: s.mgr.Device().Available,
	})
}

// handleProgress godoc
// @Summary Current load/processing progress
// @Produce json
// @Success 200 {object} types.ProgressInfo
// @Router /progress [get]
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	st := s.mgr.Tracker().Snapshot()
	writeJSON(w, http.StatusOK, types.ProgressInfo{
		Status:          string(st.Status),
		Stage:           st.Stage,
		Message:         st.Message,
		ProgressPercent: st.ProgressPercent,
		CharsGenerated:  st.CharsGenerated,
		RawTokenStream:  st.RawTokenStream,
		Timestamp:       st.Timestamp.Unix(),
	})
}

// handleLoadModel godoc
// @Summary Load the OCR model, blocking until ready or timeout
// @Accept json
// @Produce json
// @Param request body types.LoadModelRequest false "Options"
// @Success 200 {object} types.LoadModelResponse
// @Failure 504 {object} types.ErrorResponse
// @Router /load_model [post]
func (s *Server) handleLoadModel(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req types.LoadModelRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	if err := s.mgr.EnsureLoaded(ctx, req.ForceCPU); err != nil {
		logRequestEnd(r, "load_model", http.StatusInternalServerError, start, err)
		writeServiceError(w, err)
		return
	}
	SetModelLoaded(true)
	logRequestEnd(r, "load_model", http.StatusOK, start, nil)
	writeJSON(w, http.StatusOK, types.LoadModelResponse{
		Status:  "success",
		Message: "Model loaded successfully",
	})
}

// handleModelInfo godoc
// @Summary Model and device information
// @Produce json
// @Success 200 {object} types.ModelInfoResponse
// @Router /model_info [get]
func (s *Server) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	dev := s.mgr.Device()
	writeJSON(w, http.StatusOK, types.ModelInfoResponse{
		ModelName:        s.mgr.ModelName(),
		CacheDir:         s.mgr.CacheDir(),
		ModelLoaded:      s.mgr.Loaded(),
		GPUAvailable:     dev.Available,
		GPUName:          dev.Name,
		DevicePreference: s.mgr.DevicePreference(),
	})
}
