package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/vk/panelsync/internal/ctxlog"
	"github.com/vk/panelsync/internal/gateway"
	"github.com/vk/panelsync/internal/layout"
	"github.com/vk/panelsync/internal/metrics"
	"github.com/vk/panelsync/internal/stability"
	"github.com/vk/panelsync/internal/watcher"
)

const (
	DefaultWorkers   = 4
	DefaultQueueSize = 256
)

// Config holds everything a Dispatcher needs. Nothing is read from global
// state.
type Config struct {
	Folders   []watcher.Folder
	Workers   int
	QueueSize int
	Stability stability.Options
	Gateway   gateway.Gateway
	// Metrics is optional; a private registry is created when nil.
	Metrics *metrics.Pipeline
}

// FoldersFor returns the jobs and geometry-import folders of a layout.
func FoldersFor(l layout.Layout) []watcher.Folder {
	return []watcher.Folder{
		{Dir: l.Jobs, Pattern: layout.JobPattern, Kind: watcher.KindJobs},
		{Dir: l.GeometryIn, Pattern: layout.GeometryPattern, Kind: watcher.KindGeometryImport},
	}
}

// task is one accepted event waiting for a worker.
type task struct {
	folder watcher.Folder
	event  watcher.RawFileEvent
}

// Dispatcher owns the watchers, the worker pool and the in-flight set.
type Dispatcher struct {
	cfg      Config
	host     *gateway.Exclusive
	metrics  *metrics.Pipeline
	inflight *inFlight

	queue    chan task
	failures chan error
	watchers []*watcher.Watcher

	cancel    context.CancelFunc
	receivers sync.WaitGroup
	workers   sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
	started   bool
}

// New validates cfg and builds a Dispatcher. Start must be called to begin
// watching.
func New(cfg Config) (*Dispatcher, error) {
	if cfg.Gateway == nil {
		return nil, errors.New("dispatcher: gateway is required")
	}
	if err := cfg.Stability.Validate(); err != nil {
		return nil, fmt.Errorf("dispatcher: %w", err)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}

	return &Dispatcher{
		cfg:      cfg,
		host:     gateway.NewExclusive(instrumented{inner: cfg.Gateway, m: cfg.Metrics}),
		metrics:  cfg.Metrics,
		inflight: newInFlight(),
		queue:    make(chan task, cfg.QueueSize),
		failures: make(chan error, len(cfg.Folders)+1),
	}, nil
}

// Metrics returns the collectors the dispatcher records into.
func (d *Dispatcher) Metrics() *metrics.Pipeline { return d.metrics }

// Failures delivers watch failures. A failure means one folder is no longer
// observed; the owner decides whether to shut down.
func (d *Dispatcher) Failures() <-chan error { return d.failures }

// Start creates a watcher per folder and begins processing. If any watcher
// cannot be created, the ones already created are closed and the error is
// returned.
func (d *Dispatcher) Start(ctx context.Context) error {
	err := errors.New("dispatcher: already started")
	d.startOnce.Do(func() {
		err = d.start(ctx)
	})
	return err
}

func (d *Dispatcher) start(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	if len(d.cfg.Folders) == 0 {
		return errors.New("dispatcher: no folders to watch")
	}

	for _, folder := range d.cfg.Folders {
		w, err := watcher.New(folder)
		if err != nil {
			for _, started := range d.watchers {
				_ = started.Close()
			}
			d.watchers = nil
			return fmt.Errorf("dispatcher: cannot watch %s folder: %w", folder.Kind, err)
		}
		d.watchers = append(d.watchers, w)
	}

	runCtx := d.startWorkers(ctx)
	for _, w := range d.watchers {
		w.Start(runCtx)
		d.receivers.Add(1)
		go d.receive(runCtx, w)
		logger.Info("👀 Watching folder", "folder", w.Folder().Kind.String(), "dir", w.Folder().Dir, "pattern", w.Folder().Pattern)
	}
	return nil
}

// startWorkers launches the pool and returns the context it runs under.
func (d *Dispatcher) startWorkers(ctx context.Context) context.Context {
	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.started = true
	for i := 1; i <= d.cfg.Workers; i++ {
		d.workers.Add(1)
		go d.worker(runCtx, i)
	}
	ctxlog.FromContext(ctx).Debug("Worker pool started.", "workers", d.cfg.Workers, "queue_size", d.cfg.QueueSize)
	return runCtx
}

// Stop closes the watchers, abandons queued attempts and waits for the
// workers to exit. It is safe to call more than once.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		if !d.started {
			return
		}
		d.cancel()
		for _, w := range d.watchers {
			_ = w.Close()
		}
		d.receivers.Wait()
		close(d.queue)
		d.workers.Wait()
	})
}

// receive forwards one watcher's events into the queue.
func (d *Dispatcher) receive(ctx context.Context, w *watcher.Watcher) {
	defer d.receivers.Done()
	folder := w.Folder()
	for {
		select {
		case ev, ok := <-w.Events():
			if !ok {
				select {
				case err := <-w.Errors():
					d.reportFailure(ctx, err)
				default:
				}
				return
			}
			d.enqueue(ctx, folder, ev)
		case err := <-w.Errors():
			d.reportFailure(ctx, err)
		}
	}
}

func (d *Dispatcher) reportFailure(ctx context.Context, err error) {
	ctxlog.FromContext(ctx).Error("Folder watch failed.", "error", err)
	select {
	case d.failures <- err:
	default:
	}
}

// enqueue applies the in-flight gate and hands the event to the pool. It
// reports whether the event was accepted.
func (d *Dispatcher) enqueue(ctx context.Context, folder watcher.Folder, ev watcher.RawFileEvent) bool {
	logger := ctxlog.FromContext(ctx).With("path", ev.Path, "folder", folder.Kind.String(), "event", ev.Kind.String())
	d.metrics.EventsReceived.WithLabelValues(folder.Kind.String(), ev.Kind.String()).Inc()

	if !d.inflight.tryAcquire(ev.Path) {
		d.metrics.EventsDeduplicated.WithLabelValues(folder.Kind.String()).Inc()
		logger.Debug("Path already in flight, event discarded.")
		return false
	}
	d.metrics.InFlight.Inc()

	select {
	case d.queue <- task{folder: folder, event: ev}:
		logger.Debug("Event queued.")
		return true
	case <-ctx.Done():
		d.release(ev.Path)
		return false
	}
}

func (d *Dispatcher) release(path string) {
	d.inflight.release(path)
	d.metrics.InFlight.Dec()
}

func (d *Dispatcher) worker(ctx context.Context, workerID int) {
	defer d.workers.Done()
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Worker started.", "worker_id", workerID)
	for t := range d.queue {
		d.process(ctx, workerID, t)
	}
	logger.Debug("Worker finished.", "worker_id", workerID)
}

// process runs one attempt. Whatever happens, the path leaves the in-flight
// set before process returns.
func (d *Dispatcher) process(ctx context.Context, workerID int, t task) (outcome string) {
	path := t.event.Path
	folderName := t.folder.Kind.String()
	ctx = ctxlog.With(ctx, "worker_id", workerID, "path", path, "folder", folderName)
	logger := ctxlog.FromContext(ctx)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Handler panicked.", "panic", r, "stack", string(debug.Stack()))
			outcome = metrics.OutcomeFailed
		}
		d.release(path)
		d.metrics.Attempts.WithLabelValues(folderName, outcome).Inc()
		logger.Debug("Attempt finished.", "outcome", outcome)
	}()

	start := time.Now()
	st := stability.Check(ctx, path, d.cfg.Stability)
	d.metrics.StabilityWait.WithLabelValues(folderName, fmt.Sprint(st.Stable)).Observe(time.Since(start).Seconds())
	if !st.Stable {
		switch st.Reason {
		case stability.ReasonCancelled:
			logger.Debug("Attempt abandoned during shutdown.")
		case stability.ReasonMissing:
			logger.Info("File vanished before it settled.")
		default:
			logger.Warn("Skipped file (not stable).", "reason", st.Reason)
		}
		return metrics.OutcomeUnstable
	}

	switch t.folder.Kind {
	case watcher.KindJobs:
		return d.handleJobFile(ctx, path)
	case watcher.KindGeometryImport:
		return d.handleGeometryFile(ctx, path)
	default:
		logger.Error("No handler for folder kind.")
		return metrics.OutcomeFailed
	}
}
