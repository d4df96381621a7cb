package ocr

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ocrd/internal/common/fsutil"
	"ocrd/internal/engine"
	"ocrd/internal/progress"
	"ocrd/pkg/types"
)

// tempRemoveDelay is the retry delay for deleting temp uploads that are
// still locked by a scanner or the OS right after inference.
const tempRemoveDelay = 500 * time.Millisecond

// Dispatcher runs recognitions. The engine runtime is stateful and
// non-reentrant, so every inference in the process goes through the
// dispatcher's single mutex, whichever route triggered it.
type Dispatcher struct {
	inferMu sync.Mutex

	runtime engine.Runtime
	tess    *engine.Tesseract
	// tessLangs is the '+'-joined default language list for tesseract jobs.
	tessLangs string
	tracker   *progress.Tracker
	// console receives the engine's forwarded output; defaults to stdout.
	console io.Writer
	log     zerolog.Logger
}

// NewDispatcher constructs a Dispatcher. tess may be nil when Tesseract
// support is disabled.
func NewDispatcher(rt engine.Runtime, tess *engine.Tesseract, tracker *progress.Tracker, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		runtime:   rt,
		tess:      tess,
		tessLangs: "eng",
		tracker:   tracker,
		console:   os.Stdout,
		log:       log,
	}
}

// SetConsole overrides where engine output is forwarded (tests).
func (d *Dispatcher) SetConsole(w io.Writer) { d.console = w }

// SetTesseractLanguages sets the default languages for tesseract jobs.
func (d *Dispatcher) SetTesseractLanguages(langs string) {
	if langs != "" {
		d.tessLangs = langs
	}
}

// Request is one single-shot recognition.
type Request struct {
	// ImagePath is the input image; it is deleted after the call unless
	// KeepInput is set, tolerating transient locks with one retry.
	ImagePath string
	OutputDir string
	Params    types.OCRParams
	KeepInput bool
	// OnProgress, if set, receives the running generated-character count.
	OnProgress func(chars int)
}

// Result is the outcome of one single-shot recognition.
type Result struct {
	Text       string
	RawTokens  string
	PromptType string
	HasBoxes   bool
	// Warning carries non-fatal notes (missing tesseract language packs).
	Warning string
}

// Run performs one recognition with output capture active and locates the
// result artifact by the prompt type's filename convention. A missing
// result file yields the placeholder text, never an error.
func (d *Dispatcher) Run(ctx context.Context, req Request) (Result, error) {
	if !req.KeepInput {
		defer func() {
			if err := fsutil.RemoveWithRetry(req.ImagePath, tempRemoveDelay); err != nil {
				d.log.Warn().Err(err).Str("path", req.ImagePath).Msg("could not remove temp upload")
			}
		}()
	}

	if req.Params.PromptType == PromptTesseract {
		return d.runTesseract(ctx, req)
	}

	promptType, cfg := resolvePrompt(req.Params.PromptType)
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create output dir: %w", err)
	}

	capture := progress.NewCaptureWriter(d.console, d.tracker)
	capture.OnUpdate = req.OnProgress

	d.inferMu.Lock()
	err := d.runtime.Infer(ctx, engine.Request{
		Prompt:    cfg.prompt,
		ImagePath: req.ImagePath,
		OutputDir: req.OutputDir,
		BaseSize:  req.Params.BaseSize,
		ImageSize: req.Params.ImageSize,
		CropMode:  req.Params.CropMode,
	}, capture)
	d.inferMu.Unlock()
	if err != nil {
		return Result{}, fmt.Errorf("inference: %w", err)
	}

	text := d.readResult(req.OutputDir, cfg.resultFile)
	return Result{
		Text:       text,
		RawTokens:  capture.RawTokens(),
		PromptType: promptType,
		HasBoxes:   fsutil.PathExists(filepath.Join(req.OutputDir, BoxesFile)),
	}, nil
}

// runTesseract serves promptType=tesseract through the CPU engine using
// the dispatcher's default language list. Callers needing a specific
// language use the dedicated /ocr_tesseract route instead.
func (d *Dispatcher) runTesseract(ctx context.Context, req Request) (Result, error) {
	if d.tess == nil {
		return Result{}, engine.ErrUnavailable("tesseract engine not configured")
	}
	d.inferMu.Lock()
	res, err := d.tess.Recognize(ctx, req.ImagePath, d.tessLangs, req.OutputDir)
	d.inferMu.Unlock()
	if err != nil {
		return Result{}, err
	}
	return Result{
		Text:       res.Text,
		PromptType: PromptTesseract,
		Warning:    res.Warning,
	}, nil
}

// Tesseract exposes the CPU engine for the dedicated route; nil when disabled.
func (d *Dispatcher) Tesseract() *engine.Tesseract { return d.tess }

// readResult reads the conventional result file, falling back to the first
// text-like file in dir, then to the placeholder.
func (d *Dispatcher) readResult(dir, resultFile string) string {
	path := filepath.Join(dir, resultFile)
	if data, err := os.ReadFile(path); err == nil {
		return string(data)
	}

	d.log.Warn().Str("expected", resultFile).Str("dir", dir).Msg("expected result file not found, scanning for alternatives")
	entries, err := os.ReadDir(dir)
	if err == nil {
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			switch strings.ToLower(filepath.Ext(e.Name())) {
			case ".txt", ".mmd", ".md":
				if data, err := os.ReadFile(filepath.Join(dir, e.Name())); err == nil {
					d.log.Info().Str("file", e.Name()).Msg("read result from alternative file")
					return string(data)
				}
			}
		}
	}

	d.log.Warn().Str("dir", dir).Msg("no result file found in output directory")
	return noResultPlaceholder
}
