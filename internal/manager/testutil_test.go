package manager

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"ocrd/internal/engine"
	"ocrd/internal/progress"
)

// fakeRuntime counts lifecycle calls and can be told to fail or stall.
type fakeRuntime struct {
	tokenizerCalls int32
	modelCalls     int32
	warmupCalls    int32
	clearCalls     int32

	tokenizerErr error
	modelErr     error
	modelDelay   time.Duration
	lastPlace    engine.Placement
}

func (f *fakeRuntime) LoadTokenizer(ctx context.Context) error {
	atomic.AddInt32(&f.tokenizerCalls, 1)
	return f.tokenizerErr
}

func (f *fakeRuntime) LoadModel(ctx context.Context, p engine.Placement) error {
	atomic.AddInt32(&f.modelCalls, 1)
	f.lastPlace = p
	if f.modelDelay > 0 {
		time.Sleep(f.modelDelay)
	}
	return f.modelErr
}

func (f *fakeRuntime) Warmup(ctx context.Context) error {
	atomic.AddInt32(&f.warmupCalls, 1)
	return nil
}

func (f *fakeRuntime) Infer(ctx context.Context, req engine.Request, stdout io.Writer) error {
	return nil
}

func (f *fakeRuntime) ClearCache(ctx context.Context) error {
	atomic.AddInt32(&f.clearCalls, 1)
	return nil
}

func (f *fakeRuntime) Close() error { return nil }

func newTestManager(rt engine.Runtime, cacheDir string) (*Manager, *progress.Tracker) {
	tr := progress.NewTracker(zerolog.Nop())
	m := NewWithConfig(ManagerConfig{
		ModelName:       "test/model",
		CacheDir:        cacheDir,
		LoadTimeout:     2 * time.Second,
		MonitorInterval: 5 * time.Millisecond,
	}, rt, tr, zerolog.Nop())
	// Tests control placement explicitly; ignore host hardware.
	m.device = DeviceInfo{}
	return m, tr
}
