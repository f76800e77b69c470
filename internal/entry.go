// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/crmdesk/internal/api"
	"github.com/starford/crmdesk/internal/mcpserver"
	"github.com/starford/crmdesk/internal/sse"
)

func newApplication(opts []Option) (*application, error) {
	app := &application{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := newLogger(app.logOutput, cfg.App.LogLevel)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("source_driver", cfg.Source.Driver),
		slog.String("fixtures_path", cfg.Source.Fixtures),
		slog.Bool("watch", cfg.Source.Watch),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker receives every store change.
	broker := sse.NewBroker(cfg.Events.DashboardThrottle)
	defer broker.Close()

	c, err := newCore(ctx, app, logger, broker)
	if err != nil {
		return err
	}
	defer c.close()

	mcpSrv, err := mcpserver.New(c.leads, c.messages, c.registry)
	if err != nil {
		return fmt.Errorf("init mcp server: %w", err)
	}

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           newRouter(cfg, c, broker, mcpSrv, app.logOutput),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Reload the memory source when fixture files change.
	g.Go(func() error {
		return c.watch(gCtx, cfg.Source.Watch)
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
		defer signal.Stop(quit)

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

// RunMCP serves the MCP tools on stdin/stdout until the client disconnects.
// Logs go to stderr so they never mix with the protocol stream.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	logger := newLogger(app.logOutput, app.config.App.LogLevel)

	c, err := newCore(ctx, app, logger, nil)
	if err != nil {
		return err
	}
	defer c.close()

	mcpSrv, err := mcpserver.New(c.leads, c.messages, c.registry)
	if err != nil {
		return fmt.Errorf("init mcp server: %w", err)
	}

	watchCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		if err := c.watch(watchCtx, app.config.Source.Watch); err != nil {
			logger.Error("fixture watcher failed", slog.String("error", err.Error()))
		}
	}()

	logger.Info("MCP server listening on stdio")
	return mcpSrv.ServeStdio()
}

func newRouter(cfg *Config, c *core, broker *sse.Broker, mcpSrv *mcpserver.Server, accessLog io.Writer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(api.LiftQueryToken)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  log.New(accessLog, "", log.LstdFlags),
		NoColor: true,
	}))
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !c.leads.Snapshot().Loaded || !c.messages.Snapshot().Loaded {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"loading"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api; the SSE stream is served at /api/events.
	r.Mount("/api", api.NewRouter(api.Services{
		Leads:      c.leads,
		Messages:   c.messages,
		Components: c.registry,
	}, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker))

	if cfg.Assistant.Enabled {
		r.With(api.AuthMiddleware(cfg.Auth.AuthEnabled(), cfg.Auth.Token)).
			Handle(cfg.Assistant.Path, mcpSrv.Handler())
	}

	return r
}
