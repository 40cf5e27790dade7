package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/vk/panelsync/internal/ctxlog"
)

const eventBuffer = 64

// Watcher observes one Folder.
type Watcher struct {
	folder  Folder
	pattern string
	fsw     *fsnotify.Watcher

	events chan RawFileEvent
	errs   chan error

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
	now       func() time.Time
}

// New validates the folder and registers it with the OS. The directory must
// already exist.
func New(folder Folder) (*Watcher, error) {
	if _, err := filepath.Match(folder.Pattern, ""); err != nil {
		return nil, fmt.Errorf("watcher: bad pattern %q: %w", folder.Pattern, err)
	}
	dir, err := filepath.Abs(folder.Dir)
	if err != nil {
		return nil, fmt.Errorf("watcher: cannot resolve %s: %w", folder.Dir, err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("watcher: cannot watch %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watcher: %s is not a directory", dir)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watcher: cannot create OS watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watcher: cannot watch %s: %w", dir, err)
	}

	folder.Dir = dir
	return &Watcher{
		folder:  folder,
		pattern: strings.ToLower(folder.Pattern),
		fsw:     fsw,
		events:  make(chan RawFileEvent, eventBuffer),
		errs:    make(chan error, 1),
		done:    make(chan struct{}),
		now:     time.Now,
	}, nil
}

// Folder returns the watched folder with its directory made absolute.
func (w *Watcher) Folder() Folder { return w.folder }

// Events yields matching file events until the watcher stops, then closes.
func (w *Watcher) Events() <-chan RawFileEvent { return w.events }

// Errors receives at most one fatal error, matching ErrWatchFailure.
func (w *Watcher) Errors() <-chan error { return w.errs }

// Start begins forwarding OS notifications. It must be called once.
func (w *Watcher) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.loop(ctx)
}

// Close stops the watcher and releases the OS handle. It is safe to call
// more than once and from any goroutine.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.fsw.Close()
		w.wg.Wait()
	})
	return err
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()
	defer close(w.events)

	logger := ctxlog.FromContext(ctx).With("folder", w.folder.Kind.String(), "dir", w.folder.Dir)
	logger.Debug("Watcher started.", "pattern", w.folder.Pattern)
	defer logger.Debug("Watcher stopped.")

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if w.lostDirectory(ev) {
				w.fail(fmt.Errorf("%w: %s is no longer available", ErrWatchFailure, w.folder.Dir))
				return
			}
			raw, ok := w.translate(ev)
			if !ok {
				continue
			}
			select {
			case w.events <- raw:
			case <-ctx.Done():
				return
			case <-w.done:
				return
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				logger.Warn("OS event queue overflowed; some notifications were lost.", "error", err)
				continue
			}
			w.fail(fmt.Errorf("%w: %s: %w", ErrWatchFailure, w.folder.Dir, err))
			return
		}
	}
}

func (w *Watcher) fail(err error) {
	select {
	case w.errs <- err:
	default:
	}
}

// lostDirectory reports whether ev signals that the watched directory itself
// was removed or moved away.
func (w *Watcher) lostDirectory(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return false
	}
	if filepath.Clean(ev.Name) == w.folder.Dir {
		return true
	}
	_, err := os.Stat(w.folder.Dir)
	return errors.Is(err, os.ErrNotExist)
}

func (w *Watcher) translate(ev fsnotify.Event) (RawFileEvent, bool) {
	if filepath.Dir(ev.Name) != w.folder.Dir {
		return RawFileEvent{}, false
	}
	if ok, _ := filepath.Match(w.pattern, strings.ToLower(filepath.Base(ev.Name))); !ok {
		return RawFileEvent{}, false
	}

	var kind EventKind
	switch {
	case ev.Has(fsnotify.Create):
		kind = Created
	case ev.Has(fsnotify.Rename):
		kind = Renamed
	case ev.Has(fsnotify.Write):
		kind = Modified
	default:
		return RawFileEvent{}, false
	}
	return RawFileEvent{Path: ev.Name, Kind: kind, ObservedAt: w.now()}, true
}
