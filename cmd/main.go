package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/opengolfcoach/bridge/internal/adapters/status"
	app "github.com/opengolfcoach/bridge/internal/app"
	"github.com/opengolfcoach/bridge/internal/config"
	"github.com/opengolfcoach/bridge/pkg/logger"
	"github.com/opengolfcoach/bridge/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout           = 10 * time.Second
	writeTimeout          = 10 * time.Second
	idleTimeout           = 60 * time.Second
	readHeaderTimeout     = 5 * time.Second
	shutdownTimeout       = 15 * time.Second
	systemMetricsInterval = 10 * time.Second
)

func main() {
	// Disable default Go metrics collection; the bridge collects its own
	// system metrics.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	svc := app.New(cfg, app.WithLogger(log))
	if err := svc.Start(ctx); err != nil {
		os.Stderr.WriteString("failed to start service: " + err.Error() + "\n")
		return
	}
	defer svc.Stop(context.Background())

	go startSystemMetricsUpdater(ctx)
	go watchSettingsReload(ctx, svc, log)

	// Status HTTP surface: health, metrics, shot history, catalog.
	mux := http.NewServeMux()
	statusOpts := []status.Option{
		status.WithSessionState(svc.SessionState),
		status.WithDisplayConnected(svc.DisplayConnected),
	}
	if h := svc.History(); h != nil {
		statusOpts = append(statusOpts, status.WithHistory(h))
	}
	status.NewServer(statusOpts...).Register(mux)

	srv := &http.Server{
		Addr:              cfg.StatusAddr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting status server", logger.String("addr", cfg.StatusAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("status server failed: " + err.Error() + "\n")
		}
	}()

	<-ctx.Done()
	log.Info(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "status server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "bridge stopped")
}

// watchSettingsReload re-reads configuration on SIGHUP and swaps the
// presentation settings. The swap lands between shots, never mid-shot.
func watchSettingsReload(ctx context.Context, svc *app.Service, log logger.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			cfg, err := config.Load(ctx)
			if err != nil {
				log.Warn(ctx, "reload failed; keeping current settings", logger.Error(err))
				continue
			}
			svc.ApplySettings(app.SettingsFromConfig(cfg))
			log.Info(ctx, "presentation settings reloaded",
				logger.String("unit_system", cfg.UnitSystem),
				logger.Bool("show_labels", cfg.ShowLabels),
				logger.Bool("show_units", cfg.ShowUnits),
			)
		}
	}
}

// startSystemMetricsUpdater starts a background goroutine that updates
// system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}
