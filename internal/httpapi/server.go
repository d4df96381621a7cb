// Package httpapi exposes the daemon's JSON surface: model lifecycle,
// single-shot and batch OCR, the job queue, outputs serving and TTS.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ocrd/internal/manager"
	"ocrd/internal/ocr"
	"ocrd/internal/queue"
	"ocrd/internal/store"
	"ocrd/internal/tts"
)

// serverBaseCtx is a process-level context that can be canceled on shutdown.
// Defaults to Background if not set.
var serverBaseCtx = context.Background()

// SetBaseContext sets the process-level base context used by handlers.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		serverBaseCtx = context.Background()
		return
	}
	serverBaseCtx = ctx
}

// joinContexts returns a context that is canceled when either a or b is done.
// The returned cancel func must be called to release the goroutine when handler ends.
func joinContexts(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-a.Done():
			cancel()
		case <-b.Done():
			cancel()
		}
	}()
	return ctx, cancel
}

// Server wires the subsystems behind the HTTP surface.
type Server struct {
	mgr        *manager.Manager
	dispatcher *ocr.Dispatcher
	queue      *queue.Queue
	synth      *tts.Synthesizer
	history    *store.HistoryStore
	// outputRoot is the outputs directory results are written under and
	// served from.
	outputRoot string
}

// NewServer constructs the HTTP server. synth and history may be nil to
// disable TTS and drain history.
func NewServer(mgr *manager.Manager, disp *ocr.Dispatcher, q *queue.Queue, synth *tts.Synthesizer, history *store.HistoryStore, outputRoot string) *Server {
	return &Server{
		mgr:        mgr,
		dispatcher: disp,
		queue:      q,
		synth:      synth,
		history:    history,
		outputRoot: outputRoot,
	}
}

// Routes builds the chi mux with the full route table.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(MetricsMiddleware)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}

	r.Get("/health", s.handleHealth)
	r.Get("/progress", s.handleProgress)
	r.Post("/load_model", s.handleLoadModel)
	r.Get("/model_info", s.handleModelInfo)

	r.Post("/ocr", s.handleOCR)
	r.Post("/ocr_pdf", s.handleOCRPDF)
	r.Post("/ocr_batch", s.handleOCRBatch)
	r.Post("/ocr_tesseract", s.handleOCRTesseract)
	r.Get("/tesseract_info", s.handleTesseractInfo)

	r.Post("/queue/add", s.handleQueueAdd)
	r.Get("/queue/status", s.handleQueueStatus)
	r.Post("/queue/process", s.handleQueueProcess)
	r.Post("/queue/clear", s.handleQueueClear)
	r.Delete("/queue/remove/{id}", s.handleQueueRemove)
	r.Get("/queue/history", s.handleQueueHistory)

	r.Post("/tts", s.handleTTS)
	r.Get("/tts/engines", s.handleTTSEngines)

	r.Get("/outputs/*", s.handleOutputs)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if s.mgr.Loaded() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("loading"))
	})

	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	MountSwagger(r)

	return r
}

// writeJSON encodes v with a JSON content type.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && zlog != nil {
		zlog.Error().Err(err).Msg("response encode failed")
	}
}

// saveUpload persists one multipart file under dir with a collision-free
// name, preserving the original extension.
func (s *Server) saveUpload(fh *multipart.FileHeader, dir string) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	ext := filepath.Ext(fh.Filename)
	if ext == "" {
		ext = ".bin"
	}
	dstPath := filepath.Join(dir, fmt.Sprintf("upload_%s%s", uuid.NewString(), ext))
	dst, err := os.Create(dstPath)
	if err != nil {
		return "", err
	}
	defer dst.Close()
	if _, err := dst.ReadFrom(src); err != nil {
		os.Remove(dstPath)
		return "", err
	}
	return dstPath, nil
}

// tempUploadDir is where uploads live until their job consumes them.
func (s *Server) tempUploadDir() string {
	return filepath.Join(s.outputRoot, "uploads")
}
