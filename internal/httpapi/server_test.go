package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ocrd/internal/engine"
	"ocrd/internal/manager"
	"ocrd/internal/ocr"
	"ocrd/internal/progress"
	"ocrd/internal/queue"
	"ocrd/internal/store"
	"ocrd/internal/tts"
	"ocrd/pkg/types"
)

// fakeRuntime loads instantly and writes scripted result files on Infer.
// An optional gate blocks Infer until released, for concurrency tests.
type fakeRuntime struct {
	mu      sync.Mutex
	files   map[string]string
	console string
	gate    chan struct{}
}

func (f *fakeRuntime) LoadTokenizer(ctx context.Context) error                 { return nil }
func (f *fakeRuntime) LoadModel(ctx context.Context, p engine.Placement) error { return nil }
func (f *fakeRuntime) Warmup(ctx context.Context) error                        { return nil }
func (f *fakeRuntime) ClearCache(ctx context.Context) error                    { return nil }
func (f *fakeRuntime) Close() error                                            { return nil }

func (f *fakeRuntime) Infer(ctx context.Context, req engine.Request, stdout io.Writer) error {
	f.mu.Lock()
	gate := f.gate
	files := f.files
	console := f.console
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(req.OutputDir, name), []byte(content), 0o644); err != nil {
			return err
		}
	}
	if console != "" {
		_, _ = stdout.Write([]byte(console))
	}
	return nil
}

// fakeTTSEngine writes a marker audio file.
type fakeTTSEngine struct{ available bool }

func (f *fakeTTSEngine) Name() string    { return "edge_tts" }
func (f *fakeTTSEngine) Ext() string     { return ".mp3" }
func (f *fakeTTSEngine) Available() bool { return f.available }
func (f *fakeTTSEngine) Synthesize(ctx context.Context, text, language, outputPath string) (tts.Result, error) {
	if err := os.WriteFile(outputPath, []byte("audio"), 0o644); err != nil {
		return tts.Result{}, err
	}
	return tts.Result{Voice: tts.VoiceFor(language), Language: language, Engine: "edge_tts"}, nil
}

type fixture struct {
	handler http.Handler
	rt      *fakeRuntime
	mgr     *manager.Manager
	queue   *queue.Queue
	outDir  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := zerolog.Nop()
	outDir := t.TempDir()

	rt := &fakeRuntime{files: map[string]string{"result.mmd": "# recognized"}}
	tracker := progress.NewTracker(log)
	mgr := manager.NewWithConfig(manager.ManagerConfig{
		ModelName:       "test/model",
		CacheDir:        t.TempDir(),
		LoadTimeout:     2 * time.Second,
		MonitorInterval: 5 * time.Millisecond,
	}, rt, tracker, log)

	disp := ocr.NewDispatcher(rt, nil, tracker, log)
	disp.SetConsole(io.Discard)

	history, err := store.Open(outDir)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { history.Close() })

	q := queue.New(queue.Deps{
		Loader:     mgr,
		Dispatcher: disp,
		Clearer:    rt,
		Tracker:    tracker,
		History:    history,
		OutputRoot: outDir,
	}, log)

	synth := tts.NewSynthesizer(&fakeTTSEngine{available: true}, nil, outDir, log)
	srv := NewServer(mgr, disp, q, synth, history, outDir)
	return &fixture{handler: srv.Routes(), rt: rt, mgr: mgr, queue: q, outDir: outDir}
}

func (f *fixture) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

// multipartBody builds a multipart form with the given files and fields.
func multipartBody(t *testing.T, field string, filenames []string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, name := range filenames {
		fw, err := mw.CreateFormFile(field, name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write([]byte("fake image bytes")); err != nil {
			t.Fatal(err)
		}
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decode[types.HealthResponse](t, rec)
	if resp.Status != "ok" || resp.ModelLoaded {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestProgressInitiallyIdle(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/progress", nil))
	resp := decode[types.ProgressInfo](t, rec)
	if resp.Status != "idle" {
		t.Fatalf("status = %q, want idle", resp.Status)
	}
}

func TestLoadModelThenReady(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, httptest.NewRequest(http.MethodPost, "/load_model", strings.NewReader(`{"force_cpu":true}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("load_model status = %d body=%s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("readyz = %d after load", rec.Code)
	}
	health := decode[types.HealthResponse](t, f.do(t, httptest.NewRequest(http.MethodGet, "/health", nil)))
	if !health.ModelLoaded {
		t.Fatal("health does not report model loaded")
	}
}

func TestReadyzBeforeLoad(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz = %d before load, want 503", rec.Code)
	}
}

func TestOCRHappyPath(t *testing.T) {
	f := newFixture(t)
	f.rt.files["result_with_boxes.jpg"] = "jpg"
	body, ct := multipartBody(t, "image", []string{"scan.jpg"}, map[string]string{"prompt_type": "document"})
	req := httptest.NewRequest(http.MethodPost, "/ocr", body)
	req.Header.Set("Content-Type", ct)

	rec := f.do(t, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	resp := decode[types.OCRResponse](t, rec)
	if resp.Result != "# recognized" || resp.PromptType != "document" {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.BoxesImagePath != "result_with_boxes.jpg" {
		t.Fatalf("boxes path = %q", resp.BoxesImagePath)
	}
}

func TestOCRMissingImage(t *testing.T) {
	f := newFixture(t)
	body, ct := multipartBody(t, "other", []string{"x.jpg"}, nil)
	req := httptest.NewRequest(http.MethodPost, "/ocr", body)
	req.Header.Set("Content-Type", ct)

	rec := f.do(t, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	resp := decode[types.ErrorResponse](t, rec)
	if resp.Status != "error" || resp.Message != "No image provided" || resp.Code != 400 {
		t.Fatalf("error payload = %+v", resp)
	}
}

func TestOCRBatch(t *testing.T) {
	f := newFixture(t)
	f.rt.mu.Lock()
	f.rt.files = map[string]string{"result.txt": "batch text"}
	f.rt.mu.Unlock()

	body, ct := multipartBody(t, "images", []string{"a.jpg", "b.jpg"}, map[string]string{"prompt_type": "ocr"})
	req := httptest.NewRequest(http.MethodPost, "/ocr_batch", body)
	req.Header.Set("Content-Type", ct)

	rec := f.do(t, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	resp := decode[types.BatchResponse](t, rec)
	if len(resp.Items) != 2 || resp.CombinedText != "batch text\n\nbatch text" {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestQueueLifecycle(t *testing.T) {
	f := newFixture(t)

	body, ct := multipartBody(t, "files", []string{"a.jpg", "b.jpg"}, map[string]string{"prompt_type": "document"})
	req := httptest.NewRequest(http.MethodPost, "/queue/add", body)
	req.Header.Set("Content-Type", ct)
	add := decode[types.EnqueueResponse](t, f.do(t, req))
	if add.Added != 2 || len(add.IDs) != 2 {
		t.Fatalf("add = %+v", add)
	}

	status := decode[types.QueueStatusResponse](t, f.do(t, httptest.NewRequest(http.MethodGet, "/queue/status", nil)))
	if status.Pending != 2 {
		t.Fatalf("status = %+v", status)
	}

	rec := f.do(t, httptest.NewRequest(http.MethodDelete, "/queue/remove/999", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("remove unknown = %d, want 404", rec.Code)
	}

	rec = f.do(t, httptest.NewRequest(http.MethodPost, "/queue/process", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("process = %d body=%s", rec.Code, rec.Body.String())
	}
	summary := decode[types.DrainSummary](t, rec)
	if summary.Total != 2 || summary.Completed != 2 {
		t.Fatalf("summary = %+v", summary)
	}

	// The persisted summary sits inside the drain folder.
	if _, err := os.Stat(filepath.Join(f.outDir, summary.OutputDir, "summary.json")); err != nil {
		t.Fatalf("summary.json missing: %v", err)
	}

	// History now lists the drain.
	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/queue/history", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("history = %d", rec.Code)
	}
	var hist struct {
		Status string               `json:"status"`
		Drains []types.DrainSummary `json:"drains"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &hist); err != nil {
		t.Fatal(err)
	}
	if len(hist.Drains) != 1 || hist.Drains[0].Completed != 2 {
		t.Fatalf("history = %+v", hist)
	}
}

func TestQueueClear(t *testing.T) {
	f := newFixture(t)
	body, ct := multipartBody(t, "files", []string{"a.jpg"}, nil)
	req := httptest.NewRequest(http.MethodPost, "/queue/add", body)
	req.Header.Set("Content-Type", ct)
	f.do(t, req)

	rec := f.do(t, httptest.NewRequest(http.MethodPost, "/queue/clear", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("clear = %d", rec.Code)
	}
	status := decode[types.QueueStatusResponse](t, f.do(t, httptest.NewRequest(http.MethodGet, "/queue/status", nil)))
	if status.Total != 0 {
		t.Fatalf("status after clear = %+v", status)
	}
}

func TestAdHocOCRRejectedDuringDrain(t *testing.T) {
	f := newFixture(t)
	gate := make(chan struct{})
	f.rt.mu.Lock()
	f.rt.gate = gate
	f.rt.mu.Unlock()

	body, ct := multipartBody(t, "files", []string{"a.jpg"}, nil)
	req := httptest.NewRequest(http.MethodPost, "/queue/add", body)
	req.Header.Set("Content-Type", ct)
	f.do(t, req)

	drainDone := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		drainDone <- f.do(t, httptest.NewRequest(http.MethodPost, "/queue/process", nil))
	}()

	// Wait until the drain item is actually in flight.
	deadline := time.After(2 * time.Second)
	for {
		if f.queue.Draining() {
			break
		}
		select {
		case <-deadline:
			t.Fatal("drain never started")
		case <-time.After(5 * time.Millisecond):
		}
	}

	ocrBody, ocrCT := multipartBody(t, "image", []string{"x.jpg"}, nil)
	ocrReq := httptest.NewRequest(http.MethodPost, "/ocr", ocrBody)
	ocrReq.Header.Set("Content-Type", ocrCT)
	rec := f.do(t, ocrReq)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("ocr during drain = %d, want 429", rec.Code)
	}

	close(gate)
	if rec := <-drainDone; rec.Code != http.StatusOK {
		t.Fatalf("drain = %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestTTS(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, httptest.NewRequest(http.MethodPost, "/tts",
		strings.NewReader(`{"text":"Hello world"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("tts = %d body=%s", rec.Code, rec.Body.String())
	}
	resp := decode[types.TTSResponse](t, rec)
	if resp.Engine != "edge_tts" || resp.Language != "en" {
		t.Fatalf("resp = %+v", resp)
	}
	if _, err := os.Stat(filepath.Join(f.outDir, resp.Path)); err != nil {
		t.Fatalf("audio file missing: %v", err)
	}
}

func TestTTSEmptyText(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, httptest.NewRequest(http.MethodPost, "/tts", strings.NewReader(`{}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("tts empty = %d, want 400", rec.Code)
	}
}

func TestTTSEngines(t *testing.T) {
	f := newFixture(t)
	resp := decode[types.TTSEnginesResponse](t, f.do(t, httptest.NewRequest(http.MethodGet, "/tts/engines", nil)))
	if !resp.EdgeTTS || resp.CoquiXTTS {
		t.Fatalf("engines = %+v", resp)
	}
}

func TestOutputsServing(t *testing.T) {
	f := newFixture(t)
	if err := os.WriteFile(filepath.Join(f.outDir, "result.txt"), []byte("text artifact"), 0o644); err != nil {
		t.Fatal(err)
	}

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/outputs/result.txt", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "text artifact" {
		t.Fatalf("outputs = %d %q", rec.Code, rec.Body.String())
	}

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/outputs/missing.txt", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing = %d, want 404", rec.Code)
	}
}

func TestOutputsMarkdownRendering(t *testing.T) {
	f := newFixture(t)
	if err := os.WriteFile(filepath.Join(f.outDir, "result.mmd"), []byte("# Heading"), 0o644); err != nil {
		t.Fatal(err)
	}

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/outputs/result.mmd?format=html", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("render = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("content type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "<h1") {
		t.Fatalf("body = %q, want rendered heading", rec.Body.String())
	}
}

func TestOutputsPathTraversal(t *testing.T) {
	f := newFixture(t)
	// A secret outside the outputs tree must not be reachable.
	secret := filepath.Join(filepath.Dir(f.outDir), "secret.txt")
	if err := os.WriteFile(secret, []byte("nope"), 0o644); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/outputs/foo", nil)
	req.URL.Path = "/outputs/../secret.txt"
	rec := f.do(t, req)
	if rec.Code == http.StatusOK && rec.Body.String() == "nope" {
		t.Fatal("path traversal leaked a file outside outputs")
	}
}

func TestTesseractUnconfigured(t *testing.T) {
	f := newFixture(t)
	body, ct := multipartBody(t, "image", []string{"x.jpg"}, nil)
	req := httptest.NewRequest(http.MethodPost, "/ocr_tesseract", body)
	req.Header.Set("Content-Type", ct)
	if rec := f.do(t, req); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("tesseract = %d, want 503", rec.Code)
	}
	if rec := f.do(t, httptest.NewRequest(http.MethodGet, "/tesseract_info", nil)); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("tesseract_info = %d, want 503", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics = %d", rec.Code)
	}
}
