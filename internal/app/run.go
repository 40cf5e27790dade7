package app

import (
	"context"
	"fmt"

	"github.com/vk/panelsync/internal/ctxlog"
	"golang.org/x/sync/errgroup"
)

// Run starts the app and blocks until ctx is cancelled or a watched folder
// fails. A watch failure is returned; cancellation is a clean exit.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if err := a.Start(ctx); err != nil {
		a.Stop()
		return err
	}
	defer a.Stop()

	g, gctx := errgroup.WithContext(ctx)
	if a.httpServer != nil {
		g.Go(func() error {
			a.serveHealthCheck(gctx)
			return nil
		})
	}
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case err := <-a.dispatcher.Failures():
			return fmt.Errorf("watched folder lost: %w", err)
		}
	})

	err := g.Wait()
	if err != nil {
		a.logger.Error("panelsync cannot continue.", "error", err)
		return err
	}
	a.logger.Debug("App.Run method finished.")
	return nil
}
