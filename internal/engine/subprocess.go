package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// SubprocessConfig configures the spawned engine process.
type SubprocessConfig struct {
	// Bin is the engine executable (required).
	Bin string
	// ModelName is the pretrained model identifier, e.g. deepseek-ai/DeepSeek-OCR.
	ModelName string
	// CacheDir is where the engine downloads/caches weights.
	CacheDir string
	// Host defaults to 127.0.0.1.
	Host string
	// ExtraArgs are appended to the engine command line.
	ExtraArgs []string
	// SpawnTimeout bounds waiting for the control endpoint to come up.
	SpawnTimeout time.Duration
}

// subprocessRuntime spawns the engine binary and drives it over a local
// HTTP control API: /health, /load_tokenizer, /load_model, /warmup,
// /infer (streams console output in the response body), /clear_cache.
type subprocessRuntime struct {
	cfg        SubprocessConfig
	log        zerolog.Logger
	httpClient *http.Client

	// mu is held across the whole spawn/teardown path so concurrent
	// callers cannot each start an engine process.
	mu      sync.Mutex
	cmd     *exec.Cmd
	waitCh  chan error // receives the watcher's cmd.Wait result exactly once
	baseURL string
}

// NewSubprocess constructs a subprocess-backed Runtime. The process is
// spawned lazily on first use.
func NewSubprocess(cfg SubprocessConfig, log zerolog.Logger) Runtime {
	if strings.TrimSpace(cfg.Host) == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.SpawnTimeout <= 0 {
		cfg.SpawnTimeout = 30 * time.Second
	}
	// Timeout deliberately 0: every call carries a context deadline; model
	// download and inference can both run for minutes.
	return &subprocessRuntime{cfg: cfg, log: log, httpClient: &http.Client{Timeout: 0}}
}

func (r *subprocessRuntime) LoadTokenizer(ctx context.Context) error {
	return r.control(ctx, "/load_tokenizer", map[string]any{
		"model":     r.cfg.ModelName,
		"cache_dir": r.cfg.CacheDir,
	})
}

func (r *subprocessRuntime) LoadModel(ctx context.Context, p Placement) error {
	return r.control(ctx, "/load_model", map[string]any{
		"model":     r.cfg.ModelName,
		"cache_dir": r.cfg.CacheDir,
		"device":    p.Device,
		"dtype":     p.DType,
	})
}

func (r *subprocessRuntime) Warmup(ctx context.Context) error {
	return r.control(ctx, "/warmup", map[string]any{})
}

func (r *subprocessRuntime) ClearCache(ctx context.Context) error {
	return r.control(ctx, "/clear_cache", map[string]any{})
}

// Infer posts the request and copies the engine's streamed console output
// (progress markers included) into stdout as it arrives.
func (r *subprocessRuntime) Infer(ctx context.Context, req Request, stdout io.Writer) error {
	base, err := r.ensureProcess()
	if err != nil {
		return err
	}
	payload := map[string]any{
		"prompt":     req.Prompt,
		"image":      req.ImagePath,
		"output_dir": req.OutputDir,
		"base_size":  req.BaseSize,
		"image_size": req.ImageSize,
		"crop_mode":  req.CropMode,
	}
	body, _ := json.Marshal(payload)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/infer", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("engine http error: %s: %s", resp.Status, string(b))
	}
	if _, err := io.Copy(stdout, resp.Body); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("engine output stream: %w", err)
	}
	return nil
}

// control posts a small JSON command and waits for 2xx.
func (r *subprocessRuntime) control(ctx context.Context, path string, payload map[string]any) error {
	base, err := r.ensureProcess()
	if err != nil {
		return err
	}
	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("engine %s: %s: %s", path, resp.Status, strings.TrimSpace(string(b)))
	}
	return nil
}

func (r *subprocessRuntime) isHealthy(baseURL string, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// ensureProcess starts (or returns the existing) engine process and waits
// for its control endpoint. The lock is held for the whole path: a second
// caller observing no process must not spawn one of its own.
func (r *subprocessRuntime) ensureProcess() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cmd != nil {
		if r.isHealthy(r.baseURL, 1*time.Second) {
			return r.baseURL, nil
		}
		// Unhealthy: tear down and respawn.
		r.terminate()
	}

	if strings.TrimSpace(r.cfg.Bin) == "" {
		return "", ErrUnavailable("ocr engine binary not configured")
	}

	port, err := pickFreePort(r.cfg.Host)
	if err != nil {
		return "", err
	}
	baseURL := fmt.Sprintf("http://%s:%d", r.cfg.Host, port)

	args := []string{
		"--host", r.cfg.Host,
		"--port", strconv.Itoa(port),
		"--model", r.cfg.ModelName,
		"--cache-dir", r.cfg.CacheDir,
	}
	args = append(args, r.cfg.ExtraArgs...)

	cmd := exec.Command(r.cfg.Bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return "", ErrUnavailable(fmt.Sprintf("start ocr engine: %v", err))
	}
	r.log.Info().Int("pid", cmd.Process.Pid).Str("url", baseURL).Msg("engine spawned")

	// The watcher owns the single cmd.Wait; everyone else reaps through
	// waitCh so the process is never waited on twice.
	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()
	r.cmd = cmd
	r.waitCh = waitCh
	r.baseURL = baseURL

	deadline := time.Now().Add(r.cfg.SpawnTimeout)
	for {
		if time.Now().After(deadline) {
			r.terminate()
			return "", ErrUnavailable("ocr engine not ready in time: " + baseURL)
		}
		select {
		case werr := <-waitCh:
			tail := stderr.String()
			if len(tail) > 4096 {
				tail = tail[len(tail)-4096:]
			}
			r.cmd = nil
			r.waitCh = nil
			r.baseURL = ""
			if werr != nil {
				return "", ErrUnavailable(fmt.Sprintf("ocr engine exited early: %v; stderr tail: %s", werr, tail))
			}
			return "", ErrUnavailable("ocr engine exited before ready: " + baseURL)
		default:
		}
		if r.isHealthy(baseURL, 1*time.Second) {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	r.log.Info().Str("url", baseURL).Msg("engine ready")
	return baseURL, nil
}

// terminate signals the current process and reaps it via the watcher's wait
// result: SIGTERM first, SIGKILL after a grace period. Caller holds mu.
func (r *subprocessRuntime) terminate() {
	cmd, waitCh := r.cmd, r.waitCh
	r.cmd = nil
	r.waitCh = nil
	r.baseURL = ""
	if cmd == nil || cmd.Process == nil {
		return
	}
	_ = cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-waitCh:
	case <-time.After(3 * time.Second):
		_ = cmd.Process.Kill()
		<-waitCh
	}
}

// Close terminates the engine process and releases all resources.
func (r *subprocessRuntime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.terminate()
	return nil
}

func pickFreePort(host string) (int, error) {
	l, err := net.Listen("tcp", host+":0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	addr := l.Addr().String()
	lastColon := strings.LastIndex(addr, ":")
	if lastColon < 0 {
		return 0, fmt.Errorf("unexpected addr: %s", addr)
	}
	return strconv.Atoi(addr[lastColon+1:])
}
