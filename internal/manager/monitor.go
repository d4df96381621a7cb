package manager

import (
	"fmt"

	"ocrd/internal/common/fsutil"
	"ocrd/internal/progress"
)

// maxDownloadPercent caps the monitor's contribution; the stages after the
// load call own 80-100.
const maxDownloadPercent = 75

// startDownloadMonitor samples cumulative bytes in the cache dir every
// MonitorInterval. Growth advances the percent by a fixed step (capped at
// 75) and reports the downloaded size; when the size is unchanged the same
// percent is re-announced for a few samples so the UI does not look frozen.
// The monitor exits when stop is closed; the returned channel is closed on
// exit.
func (m *Manager) startDownloadMonitor(stop <-chan struct{}, initialSize int64, cached bool) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		lastSize := initialSize
		stallCount := 0
		percent := 25
		for percent < maxDownloadPercent {
			if !sleepOrStop(m.cfg.MonitorInterval, stop) {
				return
			}
			current := fsutil.DirSize(m.cfg.CacheDir)
			if current > lastSize {
				stallCount = 0
				percent += 2
				if percent > maxDownloadPercent {
					percent = maxDownloadPercent
				}
				sizeMB := float64(current) / (1024 * 1024)
				m.tracker.Update(progress.StatusLoading, "model",
					fmt.Sprintf("Downloading model files... (%.1f MB downloaded)", sizeMB), percent, 0, "")
				lastSize = current
				continue
			}
			stallCount++
			if stallCount < 5 {
				msg := "Downloading model files..."
				if cached {
					msg = "Loading model from cache..."
				}
				m.tracker.Update(progress.StatusLoading, "model", msg, percent, 0, "")
			}
		}
		// Percent is maxed; idle until the load call returns.
		<-stop
	}()
	return done
}
