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
	"golang.org/x/sync/errgroup"

	"github.com/starford/komorebi/internal/api"
	"github.com/starford/komorebi/internal/index"
	"github.com/starford/komorebi/internal/sse"
	"github.com/starford/komorebi/internal/tools"
)

// Run serves the HTTP API and keeps the task index current until ctx is
// cancelled or a shutdown signal arrives.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts...)
	if err != nil {
		return err
	}
	cfg, logger := app.config, app.logger

	svc, err := app.build(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	broker := sse.NewBroker(sse.WithLogger(logger), sse.WithHeartbeat(30*time.Second))
	defer broker.Close()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	api.MountHealth(r, svc.db.Ping)

	r.Mount("/api", api.NewRouter(svc.tools, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker))

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := index.Watch(gCtx, svc.db, svc.projects, logger, broker.PublishProjectEvent); err != nil {
			return fmt.Errorf("watcher: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

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

		// SSE streams never end on their own.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown ends the run group once the server has been asked to stop, so
// the watcher goroutine is cancelled too.
var errShutdown = errors.New("shutdown")

// RunMCP serves the tool façade over MCP stdio until stdin closes.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts...)
	if err != nil {
		return err
	}
	svc, err := app.build(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	app.logger.Info("Serving MCP over stdio")
	return svc.tools.ServeStdio()
}

// CallTool runs one tool and returns its text. isError reports a tool-level
// failure; err is reserved for setup problems and unknown tools.
func CallTool(ctx context.Context, name string, args map[string]any, opts ...Option) (text string, isError bool, err error) {
	app, err := newApplication(opts...)
	if err != nil {
		return "", false, err
	}
	svc, err := app.build(ctx)
	if err != nil {
		return "", false, err
	}
	defer svc.Close()

	res, ok := svc.tools.Call(ctx, name, args)
	if !ok {
		return "", false, fmt.Errorf("unknown tool: %s", name)
	}
	return tools.Text(res), res.IsError, nil
}
