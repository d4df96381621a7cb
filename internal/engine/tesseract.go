package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/otiai10/gosseract/v2"
	"github.com/rs/zerolog"
)

// TesseractReport describes the local Tesseract installation.
type TesseractReport struct {
	Available bool     `json:"available"`
	Version   string   `json:"version,omitempty"`
	Languages []string `json:"languages,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// TesseractResult is the outcome of one Tesseract recognition.
type TesseractResult struct {
	Text     string
	LangUsed string
	// Warning is set when a requested language pack is not installed.
	Warning string
}

// Tesseract is the CPU OCR fallback. Unlike the model engine it needs no
// load phase and produces no boxes artifact.
type Tesseract struct {
	clientFactory func() *gosseract.Client
	log           zerolog.Logger
}

// NewTesseract constructs a Tesseract engine backed by gosseract.
func NewTesseract(log zerolog.Logger) *Tesseract {
	return &Tesseract{clientFactory: gosseract.NewClient, log: log}
}

// Report probes the installation without mutating any state.
func (t *Tesseract) Report() TesseractReport {
	langs, err := gosseract.GetAvailableLanguages()
	if err != nil {
		return TesseractReport{Available: false, Error: err.Error()}
	}
	c := t.clientFactory()
	defer c.Close()
	return TesseractReport{Available: true, Version: c.Version(), Languages: langs}
}

// Recognize runs Tesseract on imagePath with the requested '+'-joined
// languages, writing result.txt into outputDir when non-empty. Requested
// languages not installed are dropped with a warning; when none survive,
// eng (or the first installed language) is used.
func (t *Tesseract) Recognize(ctx context.Context, imagePath, lang, outputDir string) (TesseractResult, error) {
	if err := ctx.Err(); err != nil {
		return TesseractResult{}, err
	}
	available, err := gosseract.GetAvailableLanguages()
	if err != nil {
		return TesseractResult{}, ErrUnavailable("tesseract not available: " + err.Error())
	}

	requested := strings.Split(lang, "+")
	valid := make([]string, 0, len(requested))
	for _, l := range requested {
		if l != "" && contains(available, l) {
			valid = append(valid, l)
		}
	}
	var warning string
	if len(valid) < len(requested) {
		missing := make([]string, 0)
		for _, l := range requested {
			if l != "" && !contains(available, l) {
				missing = append(missing, l)
			}
		}
		warning = fmt.Sprintf("language packs not installed: %s", strings.Join(missing, ", "))
		t.log.Warn().Strs("missing", missing).Msg("requested tesseract languages unavailable")
	}
	if len(valid) == 0 {
		if contains(available, "eng") {
			valid = []string{"eng"}
		} else if len(available) > 0 {
			valid = available[:1]
		} else {
			return TesseractResult{}, ErrUnavailable("no tesseract language data installed")
		}
	}

	c := t.clientFactory()
	defer c.Close()
	if err := c.SetImage(imagePath); err != nil {
		return TesseractResult{}, fmt.Errorf("set image: %w", err)
	}
	if err := c.SetLanguage(valid...); err != nil {
		return TesseractResult{}, fmt.Errorf("set languages: %w", err)
	}
	text, err := c.Text()
	if err != nil {
		return TesseractResult{}, fmt.Errorf("recognize text: %w", err)
	}

	if outputDir != "" {
		if err := os.MkdirAll(outputDir, 0o755); err != nil {
			return TesseractResult{}, err
		}
		if err := os.WriteFile(filepath.Join(outputDir, "result.txt"), []byte(text), 0o644); err != nil {
			return TesseractResult{}, fmt.Errorf("save result: %w", err)
		}
	}

	return TesseractResult{
		Text:     text,
		LangUsed: strings.Join(valid, "+"),
		Warning:  warning,
	}, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
