package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"ocrd/pkg/types"
)

// handleTTS godoc
// @Summary Synthesize speech from text
// @Accept json
// @Produce json
// @Param request body types.TTSRequest true "Synthesis request"
// @Success 200 {object} types.TTSResponse
// @Failure 400 {object} types.ErrorResponse
// @Failure 503 {object} types.ErrorResponse
// @Router /tts [post]
func (s *Server) handleTTS(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if s.synth == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "tts not enabled")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req types.TTSRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	resp, err := s.synth.Synthesize(ctx, req)
	if err != nil {
		logRequestEnd(r, "tts", http.StatusInternalServerError, start, err)
		writeServiceError(w, err)
		return
	}
	logRequestEnd(r, "tts", http.StatusOK, start, nil)
	writeJSON(w, http.StatusOK, resp)
}

// handleTTSEngines godoc
// @Summary Report available TTS engines
// @Produce json
// @Success 200 {object} types.TTSEnginesResponse
// @Router /tts/engines [get]
func (s *Server) handleTTSEngines(w http.ResponseWriter, r *http.Request) {
	if s.synth == nil {
		writeJSON(w, http.StatusOK, types.TTSEnginesResponse{})
		return
	}
	writeJSON(w, http.StatusOK, s.synth.Availability())
}
