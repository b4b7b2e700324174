package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"reflexiad/internal/backend"
	"reflexiad/internal/breaker"
	"reflexiad/internal/common/fsutil"
	"reflexiad/internal/complexity"
	"reflexiad/internal/config"
	"reflexiad/internal/health"
	"reflexiad/internal/httpapi"
	"reflexiad/internal/manager"
	"reflexiad/internal/quant"
	"reflexiad/internal/resource"
	"reflexiad/internal/respcache"
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "reflexiad",
		Short:         "Resource-aware control daemon for a local LLM runtime",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runServe,
	}
	root.Flags().String("config", envOr("REFLEXIAD_CONFIG", ""), "Path to a YAML/JSON/TOML config file")
	root.Flags().String("addr", envOr("REFLEXIAD_ADDR", ""), "HTTP listen address, e.g. :8080")
	root.Flags().String("backend-url", envOr("REFLEXIAD_BACKEND_URL", ""), "Base URL of the inference runtime")
	root.Flags().String("model", envOr("REFLEXIAD_MODEL", ""), "Base model name the runtime serves")
	root.Flags().String("log-level", envOr("REFLEXIAD_LOG_LEVEL", ""), "Log level: debug|info|warn|error")
	return root
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel)
	httpapi.SetLogger(logger)

	be := backend.New(backend.Config{
		BaseURL:        cfg.Backend.URL,
		APIKey:         cfg.Backend.APIKey,
		Model:          cfg.Backend.Model,
		RequestTimeout: time.Duration(cfg.Backend.RequestTimeoutSec) * time.Second,
		ConnectTimeout: time.Duration(cfg.Backend.ConnectTimeoutSec) * time.Second,
		Log:            logger,
	})

	est := complexity.New(complexity.Weights{
		Length: cfg.Complexity.WeightLength,
		Terms:  cfg.Complexity.WeightTerms,
		Struct: cfg.Complexity.WeightStruct,
	}, cfg.Complexity.Terms)

	ladder := quant.DefaultLadder()
	if len(cfg.Tiers) > 0 {
		ladder = make(quant.Ladder, 0, len(cfg.Tiers))
		for _, t := range cfg.Tiers {
			ladder = append(ladder, quant.Tier(t))
		}
	}
	if err := ladder.Validate(); err != nil {
		return err
	}

	ctrl := quant.NewController(quant.ControllerConfig{
		Ladder:  ladder,
		SoftPct: cfg.Memory.SoftPct,
		HardPct: cfg.Memory.HardPct,
		Backend: be,
		Log:     logger,
	})

	cache, err := respcache.New(cfg.Cache.MaxEntries, cfg.Cache.MaxBytes, logger)
	if err != nil {
		return err
	}

	brk := breaker.New(breaker.Config{
		Name:             "backend",
		FailureThreshold: cfg.Breaker.FailureThreshold,
		Window:           time.Duration(cfg.Breaker.WindowSec) * time.Second,
		Cooldown:         time.Duration(cfg.Breaker.CooldownSec) * time.Second,
		IsFailure:        func(err error) bool { return err != nil && !backend.IsInvalidRequest(err) },
		Log:              logger,
	})

	probe, err := resource.NewProcProbe()
	if err != nil {
		return err
	}

	var mgr *manager.Manager
	monitor := resource.NewMonitor(resource.MonitorConfig{
		Probe:       probe,
		Interval:    time.Duration(cfg.Memory.SampleIntervalSec) * time.Second,
		HistorySize: cfg.Memory.HistorySize,
		PressurePct: cfg.Memory.HardPct,
		OnPressure:  func(snap resource.Snapshot) { mgr.HandleMemoryPressure(snap) },
		Log:         logger,
	})

	mgr = manager.NewWithConfig(manager.ManagerConfig{
		Estimator:  est,
		Monitor:    monitor,
		Controller: ctrl,
		Cache:      cache,
		Breaker:    brk,
		Retry: breaker.RetryPolicy{
			MaxAttempts:     cfg.Retry.MaxAttempts,
			InitialInterval: time.Duration(cfg.Retry.InitialIntervalMS) * time.Millisecond,
			MaxInterval:     time.Duration(cfg.Retry.MaxIntervalMS) * time.Millisecond,
			Retryable: func(err error) bool {
				return err != nil && !breaker.IsOpen(err) && !backend.IsInvalidRequest(err)
			},
		},
		Backend:         be,
		SoftPct:         cfg.Memory.SoftPct,
		CacheMaxEntries: cfg.Cache.MaxEntries,
		CacheMaxBytes:   cfg.Cache.MaxBytes,
		Log:             logger,
	})

	hmon := health.New(health.Config{
		Backend:        mgr,
		Memory:         monitor,
		Cache:          cache,
		Breaker:        brk,
		ProbeTimeout:   time.Duration(cfg.Health.ProbeTimeoutSec) * time.Second,
		SnapshotMaxAge: time.Duration(cfg.Health.SnapshotMaxAgeSec) * time.Second,
		Log:            logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	httpapi.SetBaseContext(ctx)

	monitor.Start(ctx)
	defer monitor.Stop()
	go hmon.Run(ctx, time.Duration(cfg.Health.IntervalSec)*time.Second)

	mux := httpapi.NewMux(mgr, hmon)
	srv := &http.Server{Addr: cfg.Addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr).Str("backend", cfg.Backend.URL).Msg("reflexiad listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-stop:
	}
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown error")
	}
	return nil
}

// loadConfig reads the optional config file, then applies flag overrides and
// defaults.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	var cfg config.Config
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		expanded, err := fsutil.ExpandHome(path)
		if err != nil {
			return cfg, err
		}
		cfg, err = config.Load(expanded)
		if err != nil {
			return cfg, err
		}
	}
	if v, _ := cmd.Flags().GetString("addr"); v != "" {
		cfg.Addr = v
	}
	if v, _ := cmd.Flags().GetString("backend-url"); v != "" {
		cfg.Backend.URL = v
	}
	if v, _ := cmd.Flags().GetString("model"); v != "" {
		cfg.Backend.Model = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if err := cfg.Normalize(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Str("service", "reflexiad").Logger()
}
