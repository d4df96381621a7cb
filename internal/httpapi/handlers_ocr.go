package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"ocrd/internal/common/fsutil"
	"ocrd/internal/ocr"
	"ocrd/pkg/types"
)

// parseOCRParams reads the shared multipart form fields with the original
// defaults: document conversion at Gundam geometry.
func parseOCRParams(r *http.Request) types.OCRParams {
	p := types.OCRParams{
		PromptType: "document",
		BaseSize:   1024,
		ImageSize:  640,
		CropMode:   true,
	}
	if v := r.FormValue("prompt_type"); v != "" {
		p.PromptType = v
	}
	if v := r.FormValue("base_size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			p.BaseSize = n
		}
	}
	if v := r.FormValue("image_size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			p.ImageSize = n
		}
	}
	if v := r.FormValue("crop_mode"); v != "" {
		p.CropMode = strings.EqualFold(v, "true")
	}
	return p
}

// ensureReadyForInference gates ad-hoc OCR: reject while a drain owns the
// engine, then lazily load the model.
func (s *Server) ensureReadyForInference(w http.ResponseWriter, r *http.Request) bool {
	if s.queue.Draining() {
		IncrementBackpressure("drain")
		writeJSONError(w, http.StatusTooManyRequests, "queue processing in progress, try again later")
		return false
	}
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	if err := s.mgr.EnsureLoaded(ctx, false); err != nil {
		writeServiceError(w, err)
		return false
	}
	SetModelLoaded(true)
	return true
}

// handleOCR godoc
// @Summary Single-image OCR
// @Accept mpfd
// @Produce json
// @Param image formData file true "Image to recognize"
// @Param prompt_type formData string false "document, ocr, free, figure, describe or tesseract"
// @Success 200 {object} types.OCRResponse
// @Failure 400 {object} types.ErrorResponse
// @Failure 429 {object} types.ErrorResponse
// @Router /ocr [post]
func (s *Server) handleOCR(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	_, fh, err := r.FormFile("image")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "No image provided")
		return
	}
	if !s.ensureReadyForInference(w, r) {
		return
	}

	imgPath, err := s.saveUpload(fh, s.tempUploadDir())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	res, err := s.dispatcher.Run(ctx, ocr.Request{
		ImagePath: imgPath,
		OutputDir: s.outputRoot,
		Params:    parseOCRParams(r),
	})
	defer s.mgr.Tracker().Reset()
	if err != nil {
		logRequestEnd(r, "ocr", http.StatusInternalServerError, start, err)
		writeServiceError(w, err)
		return
	}

	resp := types.OCRResponse{
		Status:     "success",
		Result:     res.Text,
		PromptType: res.PromptType,
		RawTokens:  res.RawTokens,
		Warning:    res.Warning,
	}
	if res.HasBoxes {
		resp.BoxesImagePath = ocr.BoxesFile
	}
	logRequestEnd(r, "ocr", http.StatusOK, start, nil)
	writeJSON(w, http.StatusOK, resp)
}

// handleOCRPDF godoc
// @Summary Per-page OCR over an uploaded PDF
// @Accept mpfd
// @Produce json
// @Param pdf formData file true "PDF to recognize"
// @Success 200 {object} types.PDFResponse
// @Failure 400 {object} types.ErrorResponse
// @Router /ocr_pdf [post]
func (s *Server) handleOCRPDF(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	_, fh, err := r.FormFile("pdf")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "No PDF provided")
		return
	}
	if !s.ensureReadyForInference(w, r) {
		return
	}

	pdfPath, err := s.saveUpload(fh, s.tempUploadDir())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	defer func() {
		if err := fsutil.RemoveWithRetry(pdfPath, 500*time.Millisecond); err != nil && zlog != nil {
			zlog.Warn().Err(err).Str("path", pdfPath).Msg("could not remove temp pdf")
		}
	}()

	params := parseOCRParams(r)
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	res, err := s.dispatcher.RunPDF(ctx, pdfPath, s.outputRoot, params)
	defer s.mgr.Tracker().Reset()
	if err != nil {
		logRequestEnd(r, "ocr_pdf", http.StatusInternalServerError, start, err)
		writeServiceError(w, err)
		return
	}

	logRequestEnd(r, "ocr_pdf", http.StatusOK, start, nil)
	writeJSON(w, http.StatusOK, types.PDFResponse{
		Status:       "success",
		PromptType:   params.PromptType,
		Pages:        res.Pages,
		CombinedText: res.Combined,
	})
}

// handleOCRBatch godoc
// @Summary OCR over multiple uploaded images
// @Accept mpfd
// @Produce json
// @Param images formData file true "Images to recognize"
// @Success 200 {object} types.BatchResponse
// @Failure 400 {object} types.ErrorResponse
// @Router /ocr_batch [post]
func (s *Server) handleOCRBatch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	if r.MultipartForm == nil || len(r.MultipartForm.File["images"]) == 0 {
		writeJSONError(w, http.StatusBadRequest, "No images provided")
		return
	}
	if !s.ensureReadyForInference(w, r) {
		return
	}

	inputs := make([]ocr.BatchInput, 0, len(r.MultipartForm.File["images"]))
	for _, fh := range r.MultipartForm.File["images"] {
		path, err := s.saveUpload(fh, s.tempUploadDir())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		inputs = append(inputs, ocr.BatchInput{Filename: fh.Filename, Path: path})
	}

	params := parseOCRParams(r)
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	res, err := s.dispatcher.RunBatch(ctx, inputs, s.outputRoot, params)
	defer s.mgr.Tracker().Reset()
	if err != nil {
		logRequestEnd(r, "ocr_batch", http.StatusInternalServerError, start, err)
		writeServiceError(w, err)
		return
	}

	logRequestEnd(r, "ocr_batch", http.StatusOK, start, nil)
	writeJSON(w, http.StatusOK, types.BatchResponse{
		Status:       "success",
		PromptType:   params.PromptType,
		Items:        res.Items,
		CombinedText: res.Combined,
	})
}

// handleOCRTesseract godoc
// @Summary CPU OCR via Tesseract
// @Accept mpfd
// @Produce json
// @Param image formData file true "Image to recognize"
// @Param lang formData string false "'+'-joined language codes, default eng"
// @Success 200 {object} types.OCRResponse
// @Failure 400 {object} types.ErrorResponse
// @Failure 503 {object} types.ErrorResponse
// @Router /ocr_tesseract [post]
func (s *Server) handleOCRTesseract(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	tess := s.dispatcher.Tesseract()
	if tess == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "tesseract engine not configured")
		return
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	_, fh, err := r.FormFile("image")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "No image provided")
		return
	}
	lang := r.FormValue("lang")
	if lang == "" {
		lang = "eng"
	}

	imgPath, err := s.saveUpload(fh, s.tempUploadDir())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	defer func() {
		_ = fsutil.RemoveWithRetry(imgPath, 500*time.Millisecond)
	}()

	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	res, err := tess.Recognize(ctx, imgPath, lang, s.outputRoot)
	if err != nil {
		logRequestEnd(r, "ocr_tesseract", http.StatusInternalServerError, start, err)
		writeServiceError(w, err)
		return
	}

	logRequestEnd(r, "ocr_tesseract", http.StatusOK, start, nil)
	writeJSON(w, http.StatusOK, types.OCRResponse{
		Status:     "success",
		Result:     res.Text,
		PromptType: ocr.PromptTesseract,
		Warning:    res.Warning,
	})
}

// handleTesseractInfo godoc
// @Summary Tesseract installation report
// @Produce json
// @Success 200 {object} engine.TesseractReport
// @Router /tesseract_info [get]
func (s *Server) handleTesseractInfo(w http.ResponseWriter, r *http.Request) {
	tess := s.dispatcher.Tesseract()
	if tess == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "tesseract engine not configured")
		return
	}
	writeJSON(w, http.StatusOK, tess.Report())
}
