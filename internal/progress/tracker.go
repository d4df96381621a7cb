// Package progress tracks process-wide load/processing state for polling
// clients, and scrapes structured progress out of the inference engine's
// console output.
package progress

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Status is the coarse lifecycle status exposed to clients.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusLoading    Status = "loading"
	StatusLoaded     Status = "loaded"
	StatusError      Status = "error"
	StatusProcessing Status = "processing"
)

// State is a point-in-time copy of the tracker contents.
type State struct {
	Status          Status
	Stage           string
	Message         string
	ProgressPercent int
	CharsGenerated  int
	RawTokenStream  string
	Timestamp       time.Time
}

// Tracker is the singleton progress state machine. All mutations go through
// Update under one lock; readers get a consistent copy from Snapshot.
type Tracker struct {
	mu    sync.Mutex
	state State
	log   zerolog.Logger
}

// NewTracker returns a Tracker in the idle state.
func NewTracker(log zerolog.Logger) *Tracker {
	return &Tracker{
		state: State{Status: StatusIdle, Timestamp: time.Now()},
		log:   log,
	}
}

// Update atomically replaces all fields and logs the transition.
func (t *Tracker) Update(status Status, stage, message string, percent, chars int, rawTokens string) {
	t.mu.Lock()
	t.state = State{
		Status:          status,
		Stage:           stage,
		Message:         message,
		ProgressPercent: percent,
		CharsGenerated:  chars,
		RawTokenStream:  rawTokens,
		Timestamp:       time.Now(),
	}
	t.mu.Unlock()

	ev := t.log.Info().
		Str("status", string(status)).
		Str("stage", stage).
		Int("percent", percent)
	if chars > 0 {
		ev = ev.Int("chars", chars)
	}
	ev.Msg(message)
}

// Reset returns the tracker to idle with all counters cleared.
func (t *Tracker) Reset() {
	t.Update(StatusIdle, "", "", 0, 0, "")
}

// Snapshot returns a consistent copy of the current state.
func (t *Tracker) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}
