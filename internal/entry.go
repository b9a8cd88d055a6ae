// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/folio/internal/api"
	"github.com/starford/folio/internal/mcpserver"
	"github.com/starford/folio/internal/record"
	"github.com/starford/folio/internal/recordservice"
	"github.com/starford/folio/internal/sse"
	"github.com/starford/folio/internal/watch"
	"github.com/starford/folio/pkg/folio"
)

// NewLogger returns the structured JSON logger used by every command.
func NewLogger(cfg *Config, w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
}

// OpenStore opens the record store described by cfg.Store.
func OpenStore(cfg *Config, logger *slog.Logger) (*folio.Store, error) {
	ser, err := record.SerializerByName(cfg.Store.Serializer)
	if err != nil {
		return nil, err
	}
	src, err := watch.New(cfg.Store.ChangeSource, cfg.Store.PollInterval, logger)
	if err != nil {
		return nil, err
	}
	store, err := folio.Open(cfg.Store.Path,
		folio.WithSerializer(ser),
		folio.WithSource(src),
		folio.WithCache(cfg.Store.CacheSize),
		folio.WithConcurrency(cfg.Store.IOConcurrency),
		folio.WithTypes(cfg.Store.Types...),
		folio.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return store, nil
}

func (a *application) init() (*slog.Logger, *recordservice.Service, error) {
	if a.config == nil {
		return nil, nil, fmt.Errorf("config is required")
	}
	cfg := a.config

	logger := NewLogger(cfg, a.logOut)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("store_path", cfg.Store.Path),
		slog.String("serializer", cfg.Store.Serializer),
		slog.String("change_source", cfg.Store.ChangeSource),
		slog.String("log_level", cfg.App.LogLevel.String()))

	store := a.store
	if store == nil {
		var err error
		if store, err = OpenStore(cfg, logger); err != nil {
			return nil, nil, err
		}
	}
	return logger, recordservice.New(store, logger), nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := newApplication(os.Stdout, opts...)
	logger, svc, err := app.init()
	if err != nil {
		return err
	}
	cfg := app.config

	// SSE broker.
	broker := sse.NewBroker(cfg.App.HTTP.EventThrottle)
	defer broker.Close()

	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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

	// One change feed per configured type.
	for _, typ := range cfg.Store.Types {
		g.Go(func() error {
			if err := svc.Feed(gCtx, typ, broker.PublishRecordEvent); err != nil {
				logger.Error("feed failed", slog.String("type", typ), slog.String("error", err.Error()))
			}
			return nil
		})
	}

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

		// Stops the feeds.
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools on stdin/stdout. Logs go to stderr so they do
// not corrupt the protocol stream.
func RunMCP(_ context.Context, opts ...Option) error {
	app := newApplication(os.Stderr, opts...)
	logger, svc, err := app.init()
	if err != nil {
		return err
	}

	logger.Info("MCP server starting on stdio")
	if err := mcpserver.New(svc).ServeStdio(); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}
