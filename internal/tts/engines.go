package tts

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/rs/zerolog"

	"ocrd/internal/engine"
)

// coquiModel is the XTTS v2 multilingual model id.
const coquiModel = "tts_models/multilingual/multi-dataset/xtts_v2"

// Result describes one finished synthesis.
type Result struct {
	Voice    string
	Language string
	Engine   string
}

// Engine is one speech backend.
type Engine interface {
	Name() string
	// Ext is the audio container extension this engine produces.
	Ext() string
	Available() bool
	Synthesize(ctx context.Context, text, language, outputPath string) (Result, error)
}

// EdgeEngine shells out to the edge-tts CLI. CPU-friendly; needs network.
type EdgeEngine struct {
	// Bin is the edge-tts executable, default "edge-tts".
	Bin string
	log zerolog.Logger
}

// NewEdgeEngine constructs an EdgeEngine; bin may be empty for the default.
func NewEdgeEngine(bin string, log zerolog.Logger) *EdgeEngine {
	if bin == "" {
		bin = "edge-tts"
	}
	return &EdgeEngine{Bin: bin, log: log}
}

func (e *EdgeEngine) Name() string { return "edge_tts" }
func (e *EdgeEngine) Ext() string  { return ".mp3" }

func (e *EdgeEngine) Available() bool {
	_, err := exec.LookPath(e.Bin)
	return err == nil
}

func (e *EdgeEngine) Synthesize(ctx context.Context, text, language, outputPath string) (Result, error) {
	if !e.Available() {
		return Result{}, engine.ErrUnavailable("edge-tts not installed")
	}
	voice := VoiceFor(language)
	e.log.Info().Str("voice", voice).Str("language", language).Msg("edge tts synthesis")

	cmd := exec.CommandContext(ctx, e.Bin,
		"--voice", voice,
		"--text", text,
		"--write-media", outputPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return Result{}, fmt.Errorf("edge-tts: %w: %s", err, stderr.String())
	}
	return Result{Voice: voice, Language: language, Engine: e.Name()}, nil
}

// CoquiEngine shells out to the Coqui tts CLI with the XTTS v2 model.
type CoquiEngine struct {
	// Bin is the tts executable, default "tts".
	Bin string
	log zerolog.Logger
}

// NewCoquiEngine constructs a CoquiEngine; bin may be empty for the default.
func NewCoquiEngine(bin string, log zerolog.Logger) *CoquiEngine {
	if bin == "" {
		bin = "tts"
	}
	return &CoquiEngine{Bin: bin, log: log}
}

func (e *CoquiEngine) Name() string { return "coqui_xtts" }
func (e *CoquiEngine) Ext() string  { return ".wav" }

func (e *CoquiEngine) Available() bool {
	_, err := exec.LookPath(e.Bin)
	return err == nil
}

func (e *CoquiEngine) Synthesize(ctx context.Context, text, language, outputPath string) (Result, error) {
	if !e.Available() {
		return Result{}, engine.ErrUnavailable("coqui tts not installed")
	}
	lang := coquiLangFor(language)
	e.log.Info().Str("language", lang).Msg("coqui tts synthesis")

	cmd := exec.CommandContext(ctx, e.Bin,
		"--model_name", coquiModel,
		"--text", text,
		"--language_idx", lang,
		"--out_path", outputPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return Result{}, fmt.Errorf("coqui tts: %w: %s", err, stderr.String())
	}
	return Result{Language: lang, Engine: e.Name()}, nil
}
