package tts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ocrd/internal/engine"
	"ocrd/pkg/types"
)

// ErrEmptyText is returned for a synthesis request without text.
var ErrEmptyText = errors.New("no text provided")

// Synthesizer routes requests to the available engines and writes audio
// under the outputs directory.
type Synthesizer struct {
	edge       Engine
	coqui      Engine
	outputRoot string
	log        zerolog.Logger
}

// NewSynthesizer wires both engines. Either may be nil to disable it.
func NewSynthesizer(edge, coqui Engine, outputRoot string, log zerolog.Logger) *Synthesizer {
	return &Synthesizer{edge: edge, coqui: coqui, outputRoot: outputRoot, log: log}
}

// Availability reports which engines are usable right now.
func (s *Synthesizer) Availability() types.TTSEnginesResponse {
	return types.TTSEnginesResponse{
		EdgeTTS:   s.edge != nil && s.edge.Available(),
		CoquiXTTS: s.coqui != nil && s.coqui.Available(),
	}
}

// Synthesize generates speech for req. Language is auto-detected from the
// text when unset. Edge is preferred; coqui is used when explicitly
// requested. The returned Path is relative to the outputs directory.
func (s *Synthesizer) Synthesize(ctx context.Context, req types.TTSRequest) (types.TTSResponse, error) {
	if req.Text == "" {
		return types.TTSResponse{}, ErrEmptyText
	}

	language := req.Language
	if language == "" {
		language = DetectLanguage(req.Text)
	}

	eng, err := s.pick(req.Engine)
	if err != nil {
		return types.TTSResponse{}, err
	}

	if err := os.MkdirAll(s.outputRoot, 0o755); err != nil {
		return types.TTSResponse{}, err
	}
	filename := fmt.Sprintf("tts_%s%s", uuid.NewString(), eng.Ext())
	outputPath := filepath.Join(s.outputRoot, filename)

	res, err := eng.Synthesize(ctx, req.Text, language, outputPath)
	if err != nil {
		return types.TTSResponse{}, err
	}
	return types.TTSResponse{
		Status:   "success",
		Path:     filename,
		Voice:    res.Voice,
		Language: res.Language,
		Engine:   res.Engine,
	}, nil
}

// pick selects the engine: an explicit request wins, otherwise edge when
// available, then coqui.
func (s *Synthesizer) pick(requested string) (Engine, error) {
	switch requested {
	case "edge", "edge_tts":
		if s.edge == nil || !s.edge.Available() {
			return nil, engine.ErrUnavailable("edge-tts not installed")
		}
		return s.edge, nil
	case "coqui", "coqui_xtts":
		if s.coqui == nil || !s.coqui.Available() {
			return nil, engine.ErrUnavailable("coqui tts not installed")
		}
		return s.coqui, nil
	case "":
		if s.edge != nil && s.edge.Available() {
			return s.edge, nil
		}
		if s.coqui != nil && s.coqui.Available() {
			return s.coqui, nil
		}
		return nil, engine.ErrUnavailable("no tts engine available")
	default:
		return nil, fmt.Errorf("unknown tts engine %q", requested)
	}
}
