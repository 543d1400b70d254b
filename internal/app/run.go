package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/vk/flowdash/internal/ctxlog"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// Run serves HTTP and polls metrics until ctx is cancelled, then shuts
// everything down gracefully.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	ln, err := net.Listen("tcp", a.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.config.Addr, err)
	}

	srv := &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	a.mu.Lock()
	a.httpServer = srv
	a.addr = ln.Addr().String()
	a.mu.Unlock()

	a.feed.Open()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("🚀 Server listening", "address", fmt.Sprintf("http://%s", ln.Addr()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return a.poller.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		return a.shutdown()
	})

	err = g.Wait()
	a.logger.Info("🏁 Server stopped.")
	return err
}

func (a *App) shutdown() error {
	a.logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	a.feed.Close()

	var errs []error
	a.mu.Lock()
	srv := a.httpServer
	a.mu.Unlock()
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			a.logger.Error("HTTP server shutdown failed", "error", err)
			errs = append(errs, err)
		}
	}
	if err := a.close(ctx); err != nil {
		errs = append(errs, err)
	}
	a.logger.Debug("Shutdown complete.")
	return errors.Join(errs...)
}
