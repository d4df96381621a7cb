package manager

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ocrd/internal/progress"
)

func TestDownloadMonitorAdvancesOnGrowth(t *testing.T) {
	dir := t.TempDir()
	rt := &fakeRuntime{}
	m, tr := newTestManager(rt, dir)

	stop := make(chan struct{})
	done := m.startDownloadMonitor(stop, 0, false)

	// Simulate weight files arriving.
	for i := 0; i < 3; i++ {
		data := make([]byte, 4096)
		if err := os.WriteFile(filepath.Join(dir, "shard"+string(rune('a'+i))+".bin"), data, 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(3 * m.cfg.MonitorInterval)
	}
	close(stop)
	<-done

	st := tr.Snapshot()
	if st.Status != progress.StatusLoading || st.Stage != "model" {
		t.Fatalf("tracker state = %+v, want loading/model", st)
	}
	if st.ProgressPercent < 27 {
		t.Fatalf("percent = %d, want growth beyond 25", st.ProgressPercent)
	}
	if !strings.Contains(st.Message, "MB downloaded") {
		t.Fatalf("message = %q, want download size report", st.Message)
	}
}

func TestDownloadMonitorStallReannouncesCached(t *testing.T) {
	dir := t.TempDir()
	rt := &fakeRuntime{}
	m, tr := newTestManager(rt, dir)

	stop := make(chan struct{})
	done := m.startDownloadMonitor(stop, 0, true)
	time.Sleep(4 * m.cfg.MonitorInterval)
	close(stop)
	<-done

	st := tr.Snapshot()
	if st.Message != "Loading model from cache..." {
		t.Fatalf("message = %q, want cache re-announce", st.Message)
	}
	if st.ProgressPercent != 25 {
		t.Fatalf("percent = %d, want unchanged 25", st.ProgressPercent)
	}
}

func TestDownloadMonitorStopsPromptly(t *testing.T) {
	rt := &fakeRuntime{}
	m, _ := newTestManager(rt, t.TempDir())

	stop := make(chan struct{})
	done := m.startDownloadMonitor(stop, 0, false)
	close(stop)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not exit after stop")
	}
}
