package manager

import (
	"context"
	"fmt"
	"os"
	"time"

	"ocrd/internal/common/fsutil"
	"ocrd/internal/progress"
)

// EnsureLoaded makes sure the model is ready, blocking up to the configured
// load timeout. Semantics (documented choice between the two historical
// variants): if the model is loaded it returns immediately; if a load is in
// flight it attaches to that attempt rather than starting a second one; on
// timeout it returns a distinct load-timeout error while the background
// load keeps running. forceCPU pins device placement for a newly started
// load; it cannot retarget one already in flight.
func (m *Manager) EnsureLoaded(ctx context.Context, forceCPU bool) error {
	done, started := m.attachOrStart(forceCPU)
	if done == nil {
		return nil // already loaded
	}
	if started {
		m.publisher.Publish(Event{Name: "load_start", Fields: map[string]any{"model": m.cfg.ModelName}})
	}

	timer := time.NewTimer(m.cfg.LoadTimeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		m.publisher.Publish(Event{Name: "load_timeout", Fields: map[string]any{"model": m.cfg.ModelName}})
		return loadTimeoutError{model: m.cfg.ModelName}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.loaded {
		return loadFailedError{msg: m.loadErr}
	}
	return nil
}

// attachOrStart returns the done channel of the load to wait on (nil when
// already loaded) and whether this call started a new load. The load entry
// function runs at most once across concurrent callers.
func (m *Manager) attachOrStart(forceCPU bool) (<-chan struct{}, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loaded {
		return nil, false
	}
	if m.loading {
		return m.loadDone, false
	}
	if forceCPU {
		m.devicePreference = "cpu"
	} else {
		m.devicePreference = m.cfg.DevicePreference
	}
	m.loading = true
	m.loadErr = ""
	m.loadDone = make(chan struct{})
	go m.loadBackground(m.loadDone, m.devicePreference)
	return m.loadDone, true
}

// loadBackground performs the staged load. It owns all progress reporting
// for the load phase and always closes done, success or not.
func (m *Manager) loadBackground(done chan struct{}, pref string) {
	defer close(done)

	err := m.runLoadStages(pref)

	m.mu.Lock()
	m.loading = false
	if err != nil {
		// Discard partial state so a retry starts clean.
		m.loaded = false
		m.loadErr = err.Error()
	} else {
		m.loaded = true
		m.loadErr = ""
	}
	m.mu.Unlock()

	if err != nil {
		m.log.Error().Err(err).Msg("model load failed")
		m.tracker.Update(progress.StatusError, "failed", err.Error(), 0, 0, "")
		m.publisher.Publish(Event{Name: "load_error", Fields: map[string]any{"error": err.Error()}})
		return
	}
	m.tracker.Update(progress.StatusLoaded, "complete", "Model ready!", 100, 0, "")
	m.publisher.Publish(Event{Name: "load_ready", Fields: map[string]any{"model": m.cfg.ModelName}})
}

func (m *Manager) runLoadStages(pref string) error {
	ctx := context.Background()

	m.tracker.Update(progress.StatusLoading, "init", "Initializing model loading...", 0, 0, "")
	m.log.Info().Str("model", m.cfg.ModelName).Str("cache", m.cfg.CacheDir).Msg("loading model")
	if err := os.MkdirAll(m.cfg.CacheDir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	m.tracker.Update(progress.StatusLoading, "tokenizer", "Loading tokenizer...", 10, 0, "")
	if err := m.runtime.LoadTokenizer(ctx); err != nil {
		return fmt.Errorf("tokenizer: %w", err)
	}
	m.tracker.Update(progress.StatusLoading, "tokenizer", "Tokenizer loaded", 20, 0, "")

	initialSize := fsutil.DirSize(m.cfg.CacheDir)
	cached := initialSize > cachedThresholdBytes
	if cached {
		m.tracker.Update(progress.StatusLoading, "model", "Loading model from cache...", 25, 0, "")
	} else {
		m.tracker.Update(progress.StatusLoading, "model", "Downloading model files (this will take several minutes)...", 25, 0, "")
	}

	// The monitor keeps the percent moving while the engine downloads;
	// it must stop as soon as the load call returns, regardless of outcome.
	stop := make(chan struct{})
	monDone := m.startDownloadMonitor(stop, initialSize, cached)

	dev := m.Device()
	p := placement(pref, dev)
	if pref == "gpu" && !dev.Available {
		m.log.Warn().Msg("accelerator requested but not available; falling back to CPU")
	}
	loadErr := m.runtime.LoadModel(ctx, p)
	close(stop)
	<-monDone
	if loadErr != nil {
		return fmt.Errorf("model: %w", loadErr)
	}

	m.tracker.Update(progress.StatusLoading, "gpu", "Switching model to eval mode...", 80, 0, "")
	m.tracker.Update(progress.StatusLoading, "gpu", fmt.Sprintf("Placing model on %s (%s)...", p.Device, p.DType), 90, 0, "")
	if p.Device == "cuda" {
		m.log.Info().Str("dtype", p.DType).Msg("model placed on accelerator")
	} else {
		m.log.Info().Msg("model placed on CPU (inference will be slower)")
	}

	m.tracker.Update(progress.StatusLoading, "optimize", "Optimizing model...", 95, 0, "")
	if err := m.runtime.Warmup(ctx); err != nil {
		return fmt.Errorf("warmup: %w", err)
	}
	m.tracker.Update(progress.StatusLoading, "warmup", "Warmup complete", 98, 0, "")
	return nil
}
