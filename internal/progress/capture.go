package progress

import (
	"io"
	"strings"
	"sync"
	"unicode/utf8"
)

// sectionMarker is the separator the engine prints between output sections.
// Section 0 is preamble, section 1 echoes the configuration, section 2 is
// the live token generation, section 3+ is trailing statistics.
const sectionMarker = "===================="

// CaptureWriter intercepts the engine's console output for the duration of
// one inference call. Every write is forwarded to dst, accumulated, and
// re-scanned for the marker-delimited generation section; whenever that
// section is non-empty its length and text are pushed into the tracker.
//
// Re-splitting the whole buffer on each write is deliberate: total
// generation text is bounded, and the engine gives us no better signal.
type CaptureWriter struct {
	mu      sync.Mutex
	dst     io.Writer
	tracker *Tracker
	// OnUpdate, if set, is invoked with the running character count on
	// every non-empty extraction (used for per-item queue progress).
	OnUpdate func(chars int)

	buf strings.Builder
}

// NewCaptureWriter wraps dst; dst may be nil to discard forwarded bytes.
func NewCaptureWriter(dst io.Writer, tracker *Tracker) *CaptureWriter {
	return &CaptureWriter{dst: dst, tracker: tracker}
}

// Write forwards p to the underlying writer, then re-derives the current
// generation text. Forwarding failures never fail the inference call.
func (w *CaptureWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.dst != nil {
		// Best effort; a broken console must not abort inference.
		_, _ = w.dst.Write(p)
	}

	// Accumulate as valid UTF-8, substituting replacement characters for
	// any mangled bytes rather than erroring out.
	w.buf.WriteString(strings.ToValidUTF8(string(p), "�"))

	text := extractGeneration(w.buf.String())
	if text != "" {
		chars := utf8.RuneCountInString(text)
		w.tracker.Update(StatusProcessing, "ocr", "Generating OCR...", 50, chars, text)
		if w.OnUpdate != nil {
			w.OnUpdate(chars)
		}
	}
	return len(p), nil
}

// RawTokens returns the generation text seen so far, or "" if fewer than
// two markers have appeared.
func (w *CaptureWriter) RawTokens() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return extractGeneration(w.buf.String())
}

// extractGeneration returns the trimmed text strictly between the 2nd and
// 3rd marker occurrences, or "" when the generation section has not started.
func extractGeneration(acc string) string {
	if strings.Count(acc, sectionMarker) < 2 {
		return ""
	}
	parts := strings.Split(acc, sectionMarker)
	if len(parts) < 3 {
		return ""
	}
	text := strings.TrimSpace(parts[2])
	text = strings.TrimLeft(text, "=")
	return strings.TrimSpace(text)
}
