package manager

import "time"

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultLoadTimeout     = 5 * time.Minute
	defaultMonitorInterval = 2 * time.Second

	// cachedThresholdBytes: a cache dir larger than this means the weights
	// are already on disk and the load is a cache read, not a download.
	cachedThresholdBytes = 100 * 1024 * 1024
)

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	// ModelName is the pretrained model identifier.
	ModelName string
	// CacheDir is where the engine downloads/caches weights.
	CacheDir string
	// DevicePreference is auto, cpu or gpu.
	DevicePreference string
	// LoadTimeout bounds how long EnsureLoaded blocks on an in-flight load.
	LoadTimeout time.Duration
	// MonitorInterval is the download monitor sampling period.
	MonitorInterval time.Duration
}
