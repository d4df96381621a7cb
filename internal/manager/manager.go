package manager

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ocrd/internal/engine"
	"ocrd/internal/progress"
)

// Manager owns the model lifecycle: at most one load in flight
// process-wide, staged progress reporting, device placement, and a ready
// predicate. The model handle itself lives inside the engine runtime; the
// manager only tracks whether it is usable.
type Manager struct {
	mu       sync.Mutex
	loaded   bool
	loading  bool
	loadErr  string
	loadDone chan struct{} // closed when the in-flight load finishes

	// devicePreference is auto, cpu or gpu; set per load trigger.
	devicePreference string
	device           DeviceInfo

	runtime   engine.Runtime
	tracker   *progress.Tracker
	publisher EventPublisher
	cfg       ManagerConfig
	log       zerolog.Logger
}

// NewWithConfig constructs a Manager from ManagerConfig.
func NewWithConfig(cfg ManagerConfig, rt engine.Runtime, tracker *progress.Tracker, log zerolog.Logger) *Manager {
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = defaultLoadTimeout
	}
	if cfg.MonitorInterval <= 0 {
		cfg.MonitorInterval = defaultMonitorInterval
	}
	if cfg.DevicePreference == "" {
		cfg.DevicePreference = "auto"
	}
	m := &Manager{
		devicePreference: cfg.DevicePreference,
		runtime:          rt,
		tracker:          tracker,
		publisher:        noopPublisher{},
		cfg:              cfg,
		log:              log,
	}
	m.device = DetectDevice(log)
	return m
}

// SetPublisher installs an event publisher (tests, future subscribers).
func (m *Manager) SetPublisher(p EventPublisher) {
	if p == nil {
		p = noopPublisher{}
	}
	m.publisher = p
}

// Loaded reports whether the model is ready for inference.
func (m *Manager) Loaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loaded
}

// Device returns the detected accelerator info.
func (m *Manager) Device() DeviceInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.device
}

// DevicePreference returns the preference used by the most recent load.
func (m *Manager) DevicePreference() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.devicePreference
}

// Runtime exposes the engine runtime for inference and cache release.
func (m *Manager) Runtime() engine.Runtime { return m.runtime }

// Tracker exposes the progress tracker for snapshot reads.
func (m *Manager) Tracker() *progress.Tracker { return m.tracker }

// ModelName returns the configured model identifier.
func (m *Manager) ModelName() string { return m.cfg.ModelName }

// CacheDir returns the weight cache directory.
func (m *Manager) CacheDir() string { return m.cfg.CacheDir }

// LastError returns the most recent load failure message, if any.
func (m *Manager) LastError() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadErr
}

// sleepCtx waits for d, honoring done-channel style interruption via the
// returned bool (false when stop fired first).
func sleepOrStop(d time.Duration, stop <-chan struct{}) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-stop:
		return false
	}
}
