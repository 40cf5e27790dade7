package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/vk/panelsync/internal/config"
	"github.com/vk/panelsync/internal/ctxlog"
	"github.com/vk/panelsync/internal/dispatcher"
	"github.com/vk/panelsync/internal/gateway"
	"github.com/vk/panelsync/internal/gateway/sockio"
	"github.com/vk/panelsync/internal/layout"
	"github.com/vk/panelsync/internal/metrics"
)

// ErrStartup marks failures that prevent the app from activating: the hot
// folder cannot be created, the host cannot be reached, or a folder cannot
// be watched.
var ErrStartup = errors.New("startup failure")

// Option customizes an App.
type Option func(*App)

// WithGateway makes the app use g instead of dialing the configured one.
func WithGateway(g gateway.Gateway) Option {
	return func(a *App) { a.gateway = g }
}

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	cfg     config.Config
	layout  layout.Layout
	logger  *slog.Logger
	logFile *os.File
	metrics *metrics.Pipeline

	gateway    gateway.Gateway
	dispatcher *dispatcher.Dispatcher
	httpServer *http.Server

	stopOnce sync.Once
}

// NewApp validates cfg, creates the hot-folder tree and opens the log file.
// Log records go to outW and are appended to the log file under the tree.
func NewApp(outW io.Writer, cfg config.Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStartup, err)
	}

	l := cfg.Layout()
	if err := l.Ensure(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStartup, err)
	}
	logFile, err := os.OpenFile(l.LogFilePath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot open log file: %w", ErrStartup, err)
	}

	a := &App{
		cfg:     cfg,
		layout:  l,
		logger:  newLogger(cfg.LogLevel, cfg.LogFormat, io.MultiWriter(outW, logFile)),
		logFile: logFile,
		metrics: metrics.New(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger.Debug("Logger configured successfully.", "log_file", l.LogFilePath())
	return a, nil
}

// Layout returns the hot-folder tree the app serves.
func (a *App) Layout() layout.Layout { return a.layout }

// Metrics returns the pipeline collectors served on /metrics.
func (a *App) Metrics() *metrics.Pipeline { return a.metrics }

// Start activates the app: it connects to the host, starts the dispatcher
// and prepares the health check server. Any failure is an ErrStartup; the
// caller still owns Stop, which releases whatever was acquired.
func (a *App) Start(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	logger := a.logger
	logger.Debug("App.Start method started.")

	if a.gateway == nil {
		g, err := a.openGateway(ctx)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrStartup, err)
		}
		a.gateway = g
	}

	d, err := dispatcher.New(dispatcher.Config{
		Folders:   dispatcher.FoldersFor(a.layout),
		Workers:   a.cfg.Workers,
		QueueSize: a.cfg.QueueSize,
		Stability: a.cfg.Stability,
		Gateway:   a.gateway,
		Metrics:   a.metrics,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStartup, err)
	}
	if err := d.Start(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrStartup, err)
	}
	a.dispatcher = d
	a.httpServer = a.newHealthCheckServer()

	logger.Info("🚀 panelsync started",
		"root", a.layout.Root,
		"jobs", a.layout.Jobs,
		"geometry_in", a.layout.GeometryIn,
		"geometry_out", a.layout.GeometryOut,
		"workers", a.cfg.Workers,
		"gateway", a.cfg.Gateway.Mode,
	)
	return nil
}

// Stop deactivates the app. It is safe to call more than once and after a
// failed Start.
func (a *App) Stop() {
	a.stopOnce.Do(func() {
		a.logger.Info("🛑 panelsync stopping")
		if a.dispatcher != nil {
			a.dispatcher.Stop()
		}
		a.closeGateway()
		a.logger.Debug("App stopped.")
		if err := a.logFile.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to close log file: %v\n", err)
		}
	})
}

func (a *App) openGateway(ctx context.Context) (gateway.Gateway, error) {
	switch a.cfg.Gateway.Mode {
	case config.GatewayLog:
		a.logger.Warn("Using the dry-run gateway; no host application will be contacted.")
		return gateway.DryRun{}, nil
	case config.GatewaySocketIO:
		return sockio.Dial(ctx, sockio.Config{
			URL:             a.cfg.Gateway.URL,
			Namespace:       a.cfg.Gateway.Namespace,
			Timeout:         a.cfg.Gateway.Timeout,
			NewDocumentPath: a.layout.NewDocumentPath(),
		})
	default:
		return nil, fmt.Errorf("unknown gateway mode %q", a.cfg.Gateway.Mode)
	}
}

func (a *App) closeGateway() {
	c, ok := a.gateway.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		a.logger.Warn("Failed to close gateway.", "error", err)
	}
}
