package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"sales-dashboard/internal/config"
)

const hookTimeout = 10 * time.Second

type shutdownHook struct {
	name string
	fn   func(ctx context.Context) error
}

// GracefulServer serves until its context is canceled, drains in-flight
// requests, then runs the registered hooks in order.
type GracefulServer struct {
	server *http.Server
	config config.ServerConfig
	logger *slog.Logger

	mu    sync.Mutex
	hooks []shutdownHook
}

func NewGracefulServer(server *http.Server, cfg config.ServerConfig, logger *slog.Logger) *GracefulServer {
	return &GracefulServer{
		server: server,
		config: cfg,
		logger: logger,
	}
}

// RegisterShutdownHook adds fn to run after the HTTP server has stopped.
// Hooks run sequentially in registration order.
func (gs *GracefulServer) RegisterShutdownHook(name string, fn func(ctx context.Context) error) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	gs.hooks = append(gs.hooks, shutdownHook{name: name, fn: fn})
}

func (gs *GracefulServer) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", gs.server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", gs.server.Addr, err)
	}
	return gs.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done or the server fails.
// Cancellation is a clean stop and returns the shutdown result.
func (gs *GracefulServer) Serve(ctx context.Context, ln net.Listener) error {
	serverErrors := make(chan error, 1)
	go func() {
		gs.logger.Info("starting server",
			"addr", ln.Addr().String(),
			"read_timeout", gs.config.ReadTimeout,
			"write_timeout", gs.config.WriteTimeout,
		)
		serverErrors <- gs.server.Serve(ln)
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)

	case <-ctx.Done():
		gs.logger.Info("shutdown requested", "cause", context.Cause(ctx))

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), gs.config.ShutdownTimeout)
		defer cancel()

		err := gs.shutdown(shutdownCtx)
		if serveErr := <-serverErrors; serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			err = errors.Join(err, fmt.Errorf("server failed: %w", serveErr))
		}
		return err
	}
}

func (gs *GracefulServer) shutdown(ctx context.Context) error {
	gs.logger.Info("stopping HTTP server", "timeout", gs.config.ShutdownTimeout)

	var errs []error
	if err := gs.server.Shutdown(ctx); err != nil {
		gs.logger.Error("HTTP server shutdown failed", "error", err)
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	} else {
		gs.logger.Info("HTTP server stopped gracefully")
	}

	gs.mu.Lock()
	hooks := append([]shutdownHook(nil), gs.hooks...)
	gs.mu.Unlock()

	for _, h := range hooks {
		hookCtx, cancel := context.WithTimeout(ctx, hookTimeout)
		err := h.fn(hookCtx)
		cancel()
		if err != nil {
			gs.logger.Error("shutdown hook failed", "hook", h.name, "error", err)
			errs = append(errs, fmt.Errorf("shutdown hook %s: %w", h.name, err))
			continue
		}
		gs.logger.Debug("shutdown hook completed", "hook", h.name)
	}

	gs.logger.Info("graceful shutdown completed")
	return errors.Join(errs...)
}
