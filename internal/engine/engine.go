// Package engine abstracts the external OCR inference runtime. The runtime
// is stateful and non-reentrant: callers must serialize Infer calls.
package engine

import (
	"context"
	"io"
)

// Placement describes where the model should live and at what precision.
type Placement struct {
	// Device is "cuda" or "cpu".
	Device string
	// DType is "bf16", "f16" or "f32".
	DType string
}

// Request is a single-shot inference request. The engine writes its result
// files into OutputDir and emits console output (including progress
// markers) to the stdout writer passed to Infer.
type Request struct {
	Prompt     string
	ImagePath  string
	OutputDir  string
	BaseSize   int
	ImageSize  int
	CropMode   bool
}

// Runtime is the externally supplied inference engine. Load* methods may
// download multi-GB weights into the cache directory on first use.
type Runtime interface {
	// LoadTokenizer prepares the tokenizer for the configured model.
	LoadTokenizer(ctx context.Context) error
	// LoadModel downloads/loads the model weights and applies placement.
	LoadModel(ctx context.Context, p Placement) error
	// Warmup runs an optional post-load optimization pass.
	Warmup(ctx context.Context) error
	// Infer performs one inference, streaming console output to stdout.
	Infer(ctx context.Context, req Request, stdout io.Writer) error
	// ClearCache releases accelerator memory held between inferences.
	ClearCache(ctx context.Context) error
	// Close terminates the runtime and releases all resources.
	Close() error
}

// unavailableError signals a missing external dependency (engine binary,
// tesseract install) so the HTTP layer can return 503 instead of 500.
type unavailableError struct{ msg string }

func (e unavailableError) Error() string { return e.msg }

// ErrUnavailable constructs an unavailableError.
func ErrUnavailable(msg string) error { return unavailableError{msg: msg} }

// IsUnavailable reports whether err indicates a missing/failed runtime dependency.
func IsUnavailable(err error) bool {
	_, ok := err.(unavailableError)
	return ok
}
