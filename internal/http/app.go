// Package http wires the gin router, the domain modules and the server
// lifecycle together.
package http

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"time"

	"lightchurch_backend/internal/events"
	"lightchurch_backend/platform/config"
	"lightchurch_backend/platform/logger"

	"golang.org/x/sync/errgroup"
)

// RouterConfig is the slice of configuration the router reads.
type RouterConfig interface {
	config.HTTPConfig
	config.JWTConfig
}

// HealthChecker backs GET /api/health.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Runner is implemented by modules that own background work, such as the
// address session janitor. Run blocks until ctx is done.
type Runner interface {
	Run(ctx context.Context) error
}

// App is assembled by the composition root and handed to the router.
type App struct {
	Config   RouterConfig
	Logger   *logger.Logger
	Health   HealthChecker
	EventBus events.Bus
	Modules  []Module
}

// Serve listens on the configured address and runs every Runner module
// alongside the server. When ctx is done the server drains for at most
// shutdownTimeout; the first failure of any part stops the others.
func Serve(ctx context.Context, app *App, handler nethttp.Handler, shutdownTimeout time.Duration) error {
	server := &nethttp.Server{
		Addr:              app.Config.GetHTTPAddr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		app.Logger.Info("server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	for _, m := range app.Modules {
		runner, ok := m.(Runner)
		if !ok {
			continue
		}
		name := m.Name()
		group.Go(func() error {
			if err := runner.Run(groupCtx); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			return nil
		})
	}

	group.Go(func() error {
		<-groupCtx.Done()
		app.Logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			app.Logger.Warn("server shutdown incomplete", "error", err)
		}
		return nil
	})

	return group.Wait()
}
