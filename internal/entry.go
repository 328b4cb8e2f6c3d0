// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/starford/muninn/internal/api"
	"github.com/starford/muninn/internal/apperr"
	"github.com/starford/muninn/internal/gateway"
	"github.com/starford/muninn/internal/history"
	"github.com/starford/muninn/internal/mcpserver"
	"github.com/starford/muninn/internal/scan"
	"github.com/starford/muninn/internal/sse"
	"github.com/starford/muninn/internal/storage"
)

const watchDebounce = 2 * time.Second

// ScanOnce runs a single scan pass and exits. Used by the one-shot CLI
// subcommand, e.g. from an external scheduler.
func ScanOnce(ctx context.Context, cfg *Config) error {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))

	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	hist, err := history.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init history: %w", err)
	}
	defer hist.Close()

	gw, err := gateway.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, logger)
	if err != nil {
		return fmt.Errorf("init gateway: %w", err)
	}

	scanner := scan.New(store, hist, gw, scan.Config{
		Rules:     cfg.Reminder.Rules(),
		StartHour: cfg.Reminder.StartHour,
		EndHour:   cfg.Reminder.EndHour,
		Location:  cfg.Reminder.Location(),
	}, logger)

	res, err := scanner.Scan(ctx)
	if err != nil {
		return err
	}
	logger.Info("scan complete",
		slog.Int("notes", res.Notes),
		slog.Int("candidates", res.Candidates),
		slog.Int("delivered", res.Delivered),
		slog.Int("failed", res.Failed),
		slog.Int("pending", res.Pending),
		slog.Bool("window_closed", res.WindowClosed),
		slog.String("duration", res.Duration.String()))
	return nil
}

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger. In MCP mode stdout carries the
	// protocol, so logs go to stderr.
	logOut := os.Stdout
	if app.mcp {
		logOut = os.Stderr
	}
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("scan_interval", cfg.Reminder.Interval().String()),
		slog.Int("start_hour", cfg.Reminder.StartHour),
		slog.Int("end_hour", cfg.Reminder.EndHour),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure vault directory exists.
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return fmt.Errorf("create vault dir: %w", err)
	}

	// Initialize storage.
	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	// Initialize sent-history database.
	hist, err := history.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init history: %w", err)
	}
	defer hist.Close()

	// Delivery gateway. Missing credentials are not fatal: the daemon
	// runs, scans keep reminders pending, and deliveries fail until
	// credentials show up in the config.
	gw, err := gateway.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, logger)
	if err != nil {
		return fmt.Errorf("init gateway: %w", err)
	}

	rules := cfg.Reminder.Rules()
	scanner := scan.New(store, hist, gw, scan.Config{
		Rules:     rules,
		StartHour: cfg.Reminder.StartHour,
		EndHour:   cfg.Reminder.EndHour,
		Location:  cfg.Reminder.Location(),
	}, logger)

	if app.mcp {
		logger.Info("Starting MCP server on stdio")
		srv := mcpserver.New(scanner, store, hist, rules.Presets)
		return srv.ServeStdio()
	}

	// SSE broker, fed by scan lifecycle events.
	broker := sse.NewBroker()
	defer broker.Close()
	scanner.OnEvent = func(event string, data map[string]any) {
		broker.Publish(sse.Event{Type: event, Data: data})
	}

	// Build API handler and router.
	h := api.NewHandler(scanner, hist, rules.Presets)
	apiRouter := api.NewRouter(h, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	runScan := func() {
		if _, err := scanner.Scan(gCtx); err != nil {
			if errors.Is(err, apperr.ErrScanInProgress) {
				logger.Debug("scan already in progress, skipping tick")
				return
			}
			logger.Error("scan failed", slog.String("error", err.Error()))
		}
	}

	// Periodic scans in the configured zone.
	sched := cron.New(cron.WithLocation(cfg.Reminder.Location()))
	if _, err := sched.AddFunc(fmt.Sprintf("@every %s", cfg.Reminder.Interval()), runScan); err != nil {
		return fmt.Errorf("schedule scans: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	// Rescan shortly after vault edits.
	g.Go(func() error {
		if err := scan.Watch(gCtx, cfg.Vault.Path, watchDebounce, logger, runScan); err != nil {
			logger.Warn("vault watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	// Initial scan on startup.
	g.Go(func() error {
		runScan()
		return nil
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
