package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/generalbots/botcore/internal/config"
)

func buildServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the botcore server",
		Long: `Start the botcore server.

The server loads configuration, opens the configured persistence
backend, starts one drive monitor per configured bot, starts the
automation scheduler, and serves inbound messages and health/metrics
over HTTP. Graceful shutdown is handled on SIGINT/SIGTERM.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "botcore.yaml", "Path to YAML configuration file")
	return cmd
}

func runServe(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)
	logger.Info("starting botcore", "version", version, "config", configPath, "bots", len(cfg.Bots))

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := NewApp(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("wire app: %w", err)
	}

	app.scheduler.Start(ctx)
	defer app.scheduler.Stop()

	stopMonitors := startMonitorLoop(ctx, app, cfg.Drive.PollInterval, logger)
	defer stopMonitors()

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort),
		Handler: newRouter(app),
	}

	metricsServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler: newMetricsRouter(),
	}

	errCh := make(chan error, 2)
	go func() { errCh <- runHTTPServer(server, "http") }()
	go func() { errCh <- runHTTPServer(metricsServer, "metrics") }()

	logger.Info("botcore started",
		"http_addr", server.Addr,
		"metrics_addr", metricsServer.Addr,
	)

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)
	return nil
}

func runHTTPServer(server *http.Server, name string) error {
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("%s server: %w", name, err)
	}
	return nil
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

// startMonitorLoop ticks every configured bot's drive monitor at
// cfg.Drive.PollInterval (spec.md §4.6), backing off per monitor: after
// a failed tick, that monitor is skipped until its Backoff() has
// elapsed. Returns a stop func.
func startMonitorLoop(ctx context.Context, app *App, interval time.Duration, logger *slog.Logger) func() {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		next := make(map[string]time.Time) // botID -> earliest next tick after a failure
		for {
			select {
			case <-ctx.Done():
				close(done)
				return
			case now := <-ticker.C:
				for botID, m := range app.Monitors() {
					if now.Before(next[botID]) {
						continue
					}
					if err := m.Tick(ctx); err != nil {
						next[botID] = now.Add(m.Backoff())
						logger.Warn("drive monitor tick failed", "bot_id", botID, "error", err)
					}
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}
