package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-interpreter/internal/audio"
	"github.com/lexiqai/voice-interpreter/internal/audio/device"
	"github.com/lexiqai/voice-interpreter/internal/config"
	"github.com/lexiqai/voice-interpreter/internal/control"
	"github.com/lexiqai/voice-interpreter/internal/observability"
	"github.com/lexiqai/voice-interpreter/internal/pipeline"
	"github.com/lexiqai/voice-interpreter/internal/sessionlog"
	"github.com/lexiqai/voice-interpreter/internal/stt"
	"github.com/lexiqai/voice-interpreter/internal/translate"
	"github.com/lexiqai/voice-interpreter/internal/tts"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	mode := flag.String("mode", "", "audio source: mic or wav (overrides config)")
	input := flag.String("input", "", "WAV file for wav mode (overrides config)")
	stopFile := flag.String("stop-file", "", "stop the session when this file appears")
	listDevices := flag.Bool("list-devices", false, "print audio devices and exit")
	flag.Parse()

	if *listDevices {
		if err := printDevices(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to list devices: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Load configuration
	cfg, err := config.Load(*configPath, func(c *config.Config) {
		if *mode != "" {
			c.App.Mode = *mode
		}
		if *input != "" {
			c.App.InputWAV = *input
		}
		if *stopFile != "" {
			c.App.StopFile = *stopFile
		}
	})
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.Logging.Level, cfg.Logging.Pretty)
	sessionID := observability.NewSessionID()
	logger := observability.WithSession(sessionID)

	logger.Info().
		Str("mode", cfg.App.Mode).
		Bool("mock", cfg.App.Mock).
		Int("sample_rate", cfg.App.SampleRate).
		Str("dir", cfg.App.Dir).
		Str("asr", cfg.ASR.Engine).
		Str("mt", cfg.MT.Engine).
		Str("tts", cfg.TTS.Engine).
		Msg("Voice interpreter starting")

	if err := run(cfg, sessionID, logger); err != nil {
		logger.Error().Err(err).Msg("Interpreter stopped with error")
		os.Exit(1)
	}
	logger.Info().Msg("Interpreter exited gracefully")
}

func run(cfg *config.Config, sessionID string, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to init tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdownTracing(flushCtx)
	}()

	pcfg, err := pipeline.NewConfig(cfg)
	if err != nil {
		return err
	}

	recognizer, err := stt.New(cfg.ASR, cfg.Resilience, cfg.App.Mock, logger)
	if err != nil {
		return fmt.Errorf("failed to create recognizer: %w", err)
	}
	defer recognizer.Close()

	translator, err := translate.New(ctx, cfg.MT, cfg.Resilience, cfg.App.Mock, logger)
	if err != nil {
		return fmt.Errorf("failed to create translator: %w", err)
	}
	defer translator.Close()

	synthesizer, err := tts.New(cfg.TTS, cfg.Resilience, cfg.App.Mock, cfg.App.SampleRate, logger)
	if err != nil {
		return fmt.Errorf("failed to create synthesizer: %w", err)
	}
	defer synthesizer.Close()

	source, err := openSource(cfg)
	if err != nil {
		return err
	}
	defer source.Close()

	player, err := openPlayer(cfg, logger)
	if err != nil {
		return err
	}
	defer player.Close()

	sessionLog, err := sessionlog.New(cfg.Logging, sessionID, time.Now(), logger)
	if err != nil {
		return fmt.Errorf("failed to open session log: %w", err)
	}
	defer sessionLog.Close()

	p, err := pipeline.New(pcfg, pipeline.Engines{
		Source:      source,
		Recognizer:  recognizer,
		Translator:  translator,
		Synthesizer: synthesizer,
		Player:      player,
		SessionLog:  sessionLog,
	}, logger)
	if err != nil {
		return err
	}

	if cfg.Metrics.Enabled {
		server := startMetricsServer(cfg.Metrics.Addr, translator, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			server.Shutdown(shutdownCtx)
		}()
	}

	runCtx := ctx
	if cfg.App.StopFile != "" {
		stopped, err := control.WatchStopFile(ctx, cfg.App.StopFile, logger)
		if err != nil {
			return err
		}
		var cancel context.CancelFunc
		runCtx, cancel = context.WithCancel(ctx)
		defer cancel()
		go func() {
			select {
			case <-stopped:
				cancel()
			case <-runCtx.Done():
			}
		}()
	}

	return p.Run(runCtx)
}

func openSource(cfg *config.Config) (audio.Source, error) {
	switch cfg.App.Mode {
	case config.ModeWAV:
		src, err := audio.OpenFileSource(cfg.App.InputWAV, cfg.App.SampleRate, cfg.App.ChunkMs)
		if err != nil {
			return nil, err
		}
		return src, nil
	default:
		mic, err := device.OpenMicrophone(cfg.App.SampleRate, cfg.App.ChunkMs)
		if err != nil {
			return nil, fmt.Errorf("failed to open microphone: %w", err)
		}
		return mic, nil
	}
}

// openPlayer discards audio in mock mode unless an output device was named.
func openPlayer(cfg *config.Config, logger zerolog.Logger) (audio.Player, error) {
	if cfg.App.Mock && cfg.TTS.Playback.Device == "" {
		logger.Info().Msg("Mock mode without a playback device, audio is discarded")
		return audio.NullPlayer{}, nil
	}
	player, err := device.NewPlayer(cfg.TTS.Playback.Device, cfg.TTS.Playback.Volume, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open player: %w", err)
	}
	return player, nil
}

func startMetricsServer(addr string, translator translate.Translator, logger zerolog.Logger) *http.Server {
	checks := map[string]observability.HealthCheckFunc{}
	if h, ok := translator.(interface {
		Health(ctx context.Context) (bool, error)
	}); ok {
		checks["translator"] = h.Health
	}

	server := &http.Server{
		Addr:         addr,
		Handler:      observability.NewMux(checks),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("Metrics server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()
	return server
}

func printDevices() error {
	if err := device.Initialize(); err != nil {
		return err
	}
	defer device.Terminate()

	for _, output := range []bool{false, true} {
		_, infos, err := device.List(output)
		if err != nil {
			return err
		}
		kind := "Input"
		if output {
			kind = "Output"
		}
		fmt.Printf("%s devices:\n", kind)
		for _, d := range infos {
			fmt.Printf("  [%d] %s (%d ch)\n", d.Index, strings.TrimSpace(d.Name), d.Channels)
		}
	}
	return nil
}
