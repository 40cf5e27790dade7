// Package stability decides when a file in a hot folder has finished being
// written. A file is considered stable once two consecutive samples of its
// size and modification time are identical.
package stability

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/vk/panelsync/internal/ctxlog"
)

// Options controls the polling cadence of a single check.
type Options struct {
	// InitialDelay is waited once before the first sample so the writer can
	// finish its initial burst.
	InitialDelay time.Duration
	// PollInterval is the gap between samples.
	PollInterval time.Duration
	// Timeout bounds the whole check, measured from the call.
	Timeout time.Duration
}

// DefaultOptions mirrors the cadence the host add-in has always used.
func DefaultOptions() Options {
	return Options{
		InitialDelay: 500 * time.Millisecond,
		PollInterval: 150 * time.Millisecond,
		Timeout:      10 * time.Second,
	}
}

// Validate reports whether the options describe a usable check.
func (o Options) Validate() error {
	switch {
	case o.InitialDelay < 0:
		return errors.New("stability: initial delay cannot be negative")
	case o.PollInterval <= 0:
		return errors.New("stability: poll interval must be positive")
	case o.Timeout <= 0:
		return errors.New("stability: timeout must be positive")
	}
	return nil
}

// Outcome is the result of one stability check. It is never cached.
type Outcome struct {
	Path         string
	Stable       bool
	FinalSize    int64
	FinalModTime time.Time
	// Reason is a short, log-friendly explanation when Stable is false.
	Reason string
}

const (
	ReasonMissing   = "file disappeared"
	ReasonTimeout   = "timed out waiting for writes to settle"
	ReasonCancelled = "check cancelled"
	ReasonStatError = "stat failed"
)

type sample struct {
	size    int64
	modTime time.Time
}

// Check waits until path stops changing. It returns as soon as two
// consecutive samples match, or with Stable=false once the file vanishes,
// the timeout elapses, or ctx is cancelled. It is safe to call
// concurrently for different paths and never blocks for longer than
// Timeout + PollInterval.
func Check(ctx context.Context, path string, opts Options) Outcome {
	logger := ctxlog.FromContext(ctx).With("path", path)
	deadline := time.Now().Add(opts.Timeout)
	out := Outcome{Path: path}

	if !sleep(ctx, min(opts.InitialDelay, opts.Timeout)) {
		out.Reason = ReasonCancelled
		return out
	}

	var prev *sample
	for polls := 1; ; polls++ {
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				out.Reason = ReasonMissing
			} else {
				out.Reason = ReasonStatError
				logger.Debug("Stat failed during stability check.", "error", err)
			}
			return out
		}

		cur := sample{size: info.Size(), modTime: info.ModTime()}
		out.FinalSize, out.FinalModTime = cur.size, cur.modTime
		if prev != nil && *prev == cur {
			logger.Debug("File is stable.", "size", cur.size, "polls", polls)
			out.Stable = true
			return out
		}
		prev = &cur

		remaining := time.Until(deadline)
		if remaining <= 0 {
			out.Reason = ReasonTimeout
			return out
		}
		if !sleep(ctx, min(opts.PollInterval, remaining)) {
			out.Reason = ReasonCancelled
			return out
		}
	}
}

// sleep blocks for d or until ctx is done. It reports false on cancellation.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
