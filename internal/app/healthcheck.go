package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/vk/panelsync/internal/ctxlog"
)

// healthHandler reports liveness.
func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	a.logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

func (a *App) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", a.healthHandler)
	mux.Handle("/metrics", a.metrics.Handler())
	return mux
}

// newHealthCheckServer returns nil when the server is disabled.
func (a *App) newHealthCheckServer() *http.Server {
	if a.cfg.HealthcheckPort <= 0 {
		a.logger.Debug("Health check server not started: disabled")
		return nil
	}
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.HealthcheckPort),
		Handler:           a.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// serveHealthCheck runs the server until ctx ends. A server that cannot
// listen is logged, not fatal: the pipeline keeps running without it.
func (a *App) serveHealthCheck(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("🩺 Health check server starting", "address", fmt.Sprintf("http://localhost%s/health", a.httpServer.Addr))
		errCh <- a.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Health check server failed unexpectedly", "error", err)
		}
		return
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Info("🩺 Shutting down health check server...")
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Health check server shutdown failed", "error", err)
	}
	<-errCh
}
