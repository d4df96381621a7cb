package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"ocrd/internal/common/fsutil"
	"ocrd/internal/config"
	"ocrd/internal/engine"
	"ocrd/internal/httpapi"
	"ocrd/internal/manager"
	"ocrd/internal/ocr"
	"ocrd/internal/progress"
	"ocrd/internal/queue"
	"ocrd/internal/store"
	"ocrd/internal/tts"
)

var (
	flagConfig    string
	flagAddr      string
	flagCacheDir  string
	flagOutputDir string
	flagModel     string
	flagEngineBin string
	flagDevice    string
	flagNoTTS     bool
	flagCORS      bool
)

func main() {
	root := &cobra.Command{
		Use:   "ocrd",
		Short: "Local OCR and TTS daemon",
		Long:  "ocrd exposes document/image OCR and text-to-speech over a local HTTP API, managing model lifecycle and a sequential job queue.",
		RunE:  run,
	}
	root.Flags().StringVarP(&flagConfig, "config", "c", "", "Config file (.yaml/.json/.toml); flags override file values")
	root.Flags().StringVar(&flagAddr, "addr", "", "HTTP listen address (default 127.0.0.1:5000)")
	root.Flags().StringVar(&flagCacheDir, "cache-dir", "", "Model weight cache directory (default ~/.ocrd/models)")
	root.Flags().StringVar(&flagOutputDir, "output-dir", "", "Results directory (default ~/.ocrd/outputs)")
	root.Flags().StringVar(&flagModel, "model", "", "Model identifier (default deepseek-ai/DeepSeek-OCR)")
	root.Flags().StringVar(&flagEngineBin, "engine-bin", "", "OCR engine binary (default ocr-engine)")
	root.Flags().StringVar(&flagDevice, "device", "", "Device preference: auto, cpu or gpu (default auto)")
	root.Flags().BoolVar(&flagNoTTS, "no-tts", false, "Disable the TTS endpoints")
	root.Flags().BoolVar(&flagCORS, "cors", false, "Allow cross-origin requests from any origin (local UI)")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		With().Timestamp().Logger()

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	cacheDir, err := fsutil.ExpandHome(cfg.CacheDir)
	if err != nil {
		return err
	}
	outputDir, err := fsutil.ExpandHome(cfg.OutputDir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return err
	}

	tracker := progress.NewTracker(log.With().Str("component", "progress").Logger())

	runtime := engine.NewSubprocess(engine.SubprocessConfig{
		Bin:       cfg.EngineBin,
		ModelName: cfg.ModelName,
		CacheDir:  cacheDir,
	}, log.With().Str("component", "engine").Logger())
	defer runtime.Close()

	mgr := manager.NewWithConfig(manager.ManagerConfig{
		ModelName:        cfg.ModelName,
		CacheDir:         cacheDir,
		DevicePreference: cfg.DevicePreference,
		LoadTimeout:      time.Duration(cfg.LoadTimeoutSec) * time.Second,
	}, runtime, tracker, log.With().Str("component", "manager").Logger())

	tess := engine.NewTesseract(log.With().Str("component", "tesseract").Logger())
	dispatcher := ocr.NewDispatcher(runtime, tess, tracker, log.With().Str("component", "ocr").Logger())
	dispatcher.SetTesseractLanguages(cfg.TesseractLangs)

	var synth *tts.Synthesizer
	if !flagNoTTS {
		ttsLog := log.With().Str("component", "tts").Logger()
		synth = tts.NewSynthesizer(
			tts.NewEdgeEngine(cfg.EdgeTTSBin, ttsLog),
			tts.NewCoquiEngine(cfg.CoquiTTSBin, ttsLog),
			outputDir, ttsLog)
	}

	history, err := store.Open(outputDir)
	if err != nil {
		log.Warn().Err(err).Msg("drain history disabled")
		history = nil
	} else {
		defer history.Close()
	}

	q := queue.New(queue.Deps{
		Loader:     mgr,
		Dispatcher: dispatcher,
		Clearer:    runtime,
		Tracker:    tracker,
		History:    historyOrNil(history),
		OutputRoot: outputDir,
	}, log.With().Str("component", "queue").Logger())

	httpapi.SetLogger(log.With().Str("component", "http").Logger())
	if cfg.MaxUploadMB > 0 {
		httpapi.SetMaxUploadBytes(int64(cfg.MaxUploadMB) << 20)
	}
	if flagCORS {
		httpapi.SetCORSOptions(true, []string{"*"},
			[]string{"GET", "POST", "DELETE", "OPTIONS"},
			[]string{"Accept", "Content-Type"})
	}

	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpapi.SetBaseContext(baseCtx)

	server := httpapi.NewServer(mgr, dispatcher, q, synth, history, outputDir)
	srv := &http.Server{Addr: cfg.Addr, Handler: server.Routes()}

	go func() {
		log.Info().Str("addr", cfg.Addr).Str("model", cfg.ModelName).
			Str("cache", cacheDir).Str("outputs", outputDir).Msg("ocrd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	cancelBase()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown error")
	}
	return nil
}

// loadConfig merges file config (if given), flag overrides and defaults.
func loadConfig(log zerolog.Logger) (config.Config, error) {
	var cfg config.Config
	if flagConfig != "" {
		loaded, err := config.Load(flagConfig)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
		log.Info().Str("path", flagConfig).Msg("config loaded")
	}

	if flagAddr != "" {
		cfg.Addr = flagAddr
	}
	if flagCacheDir != "" {
		cfg.CacheDir = flagCacheDir
	}
	if flagOutputDir != "" {
		cfg.OutputDir = flagOutputDir
	}
	if flagModel != "" {
		cfg.ModelName = flagModel
	}
	if flagEngineBin != "" {
		cfg.EngineBin = flagEngineBin
	}
	if flagDevice != "" {
		cfg.DevicePreference = flagDevice
	}

	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:5000"
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = filepath.Join("~", ".ocrd", "models")
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = filepath.Join("~", ".ocrd", "outputs")
	}
	if cfg.ModelName == "" {
		cfg.ModelName = "deepseek-ai/DeepSeek-OCR"
	}
	if cfg.EngineBin == "" {
		cfg.EngineBin = "ocr-engine"
	}
	if cfg.DevicePreference == "" {
		cfg.DevicePreference = "auto"
	}
	return cfg, nil
}

// historyOrNil avoids storing a typed nil in the queue's History interface.
func historyOrNil(h *store.HistoryStore) queue.History {
	if h == nil {
		return nil
	}
	return h
}
