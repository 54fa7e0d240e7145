// Command inkframed is the e-ink display daemon: it discovers content
// plugins, resolves the weekly schedule and keeps the panel showing the right
// thing, with a management HTTP API on the side.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/inkframe/inkframe/internal/api"
	"github.com/inkframe/inkframe/internal/cache"
	"github.com/inkframe/inkframe/internal/config"
	"github.com/inkframe/inkframe/internal/display"
	"github.com/inkframe/inkframe/internal/engine"
	"github.com/inkframe/inkframe/internal/instance"
	xflog "github.com/inkframe/inkframe/internal/log"
	"github.com/inkframe/inkframe/internal/metrics"
	"github.com/inkframe/inkframe/internal/orchestrator"
	"github.com/inkframe/inkframe/internal/plugins/banner"
	"github.com/inkframe/inkframe/internal/plugins/clock"
	"github.com/inkframe/inkframe/internal/registry"
	"github.com/inkframe/inkframe/internal/schedule"
	"github.com/inkframe/inkframe/internal/telemetry"
)

var (
	version   = "v1.0.0"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	cfg, err := config.NewLoader(*configPath).Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "inkframed: %v\n", err)
		os.Exit(1)
	}

	xflog.Configure(xflog.Config{
		Level:   cfg.LogLevel,
		Service: "inkframe",
		Version: version,
	})
	logger := xflog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info().
		Str("event", "startup").
		Str("version", version).
		Str("commit", commit).
		Str("build_date", buildDate).
		Str("listen", cfg.Listen).
		Str("data_dir", cfg.DataDir).
		Msg("starting inkframed")

	if err := run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("daemon exited with error")
	}
	logger.Info().Str("event", "shutdown").Msg("inkframed stopped")
}

func run(ctx context.Context, cfg config.Config) error {
	logger := xflog.WithComponent("daemon")

	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	if err := os.MkdirAll(cfg.PluginsDir, 0o750); err != nil {
		return fmt.Errorf("create plugins dir: %w", err)
	}

	tracing, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "inkframe",
		ServiceVersion: version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := tracing.Shutdown(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("telemetry shutdown")
		}
	}()

	// Plugin registry: built-in factories plus whatever the plugins dir holds.
	reg := registry.New()
	reg.RegisterFactory(clock.ID, clock.New)
	reg.RegisterFactory(banner.ID, banner.New)
	if err := reg.Discover(cfg.PluginsDir); err != nil {
		return fmt.Errorf("discover plugins: %w", err)
	}
	metrics.SetPluginsLoaded(len(reg.List()))

	instances, err := instance.Open(filepath.Join(cfg.DataDir, "instances.db"), reg)
	if err != nil {
		return fmt.Errorf("open instance store: %w", err)
	}
	defer func() {
		if err := instances.Close(); err != nil {
			logger.Warn().Err(err).Msg("close instance store")
		}
	}()

	sched, err := schedule.NewStore(filepath.Join(cfg.DataDir, "schedule.json"))
	if err != nil {
		return fmt.Errorf("open schedule store: %w", err)
	}

	renderCache := cache.NewNoop()
	if cfg.CacheEnabled {
		renderCache, err = cache.OpenBadger(filepath.Join(cfg.DataDir, "render-cache"))
		if err != nil {
			return fmt.Errorf("open render cache: %w", err)
		}
	}
	defer func() {
		if err := renderCache.Close(); err != nil {
			logger.Warn().Err(err).Msg("close render cache")
		}
	}()

	device := display.NewFileController(cfg.OutputPath, cfg.Device.Width, cfg.Device.Height)

	orch := orchestrator.New(orchestrator.Config{
		TickInterval:       cfg.TickInterval,
		RenderTimeout:      cfg.RenderTimeout,
		JoinTimeout:        cfg.JoinTimeout,
		DisplayMinInterval: cfg.DisplayMinInterval,
		Device:             cfg.Device,
	}, engine.New(), sched, instances, reg, device, renderCache)

	// Disabling or deleting an instance must retire its running execution
	// before the store commits the change.
	instances.SetDeactivateHook(orch.DeactivateInstance)

	apiServer := api.NewServer(api.Config{
		RateLimitEnabled:  cfg.RateLimit.Enabled,
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Version:           version,
	}, reg, instances, sched, orch)

	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	metricsServer := &http.Server{
		Addr:              cfg.MetricsListen,
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return orch.Run(gctx)
	})

	g.Go(func() error {
		// Manifest changes swap plugins in place without a restart.
		return reg.Watch(gctx, cfg.PluginsDir)
	})

	g.Go(func() error {
		logger.Info().Str("addr", cfg.Listen).Msg("management API listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		logger.Info().Str("addr", cfg.MetricsListen).Msg("metrics listening")
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("api server shutdown")
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("metrics server shutdown")
		}
		return nil
	})

	return g.Wait()
}
