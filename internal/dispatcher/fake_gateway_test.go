package dispatcher

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"

	"github.com/vk/panelsync/internal/gateway"
)

// fakeHost is an in-memory host application. It records every call, writes
// real files for exports, and can be told to block, fail or panic.
type fakeHost struct {
	mu       sync.Mutex
	open     map[string]*gateway.Document
	active   *gateway.Document
	imports  []importCall
	exports  []string
	calls    atomic.Int32
	inHost   atomic.Int32
	peakHost atomic.Int32

	// perPath counts concurrent imports per source path.
	perPath    map[string]int
	overlapped atomic.Bool

	exportErr error
	failOn    map[string]error
	panicOn   map[string]bool
	// block, when set, holds every import until it is closed.
	block chan struct{}
}

type importCall struct {
	into   *gateway.Document
	source string
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		open:    make(map[string]*gateway.Document),
		perPath: make(map[string]int),
		failOn:  make(map[string]error),
		panicOn: make(map[string]bool),
	}
}

func (f *fakeHost) enter() func() {
	f.calls.Add(1)
	n := f.inHost.Add(1)
	for {
		p := f.peakHost.Load()
		if n <= p || f.peakHost.CompareAndSwap(p, n) {
			break
		}
	}
	return func() { f.inHost.Add(-1) }
}

func (f *fakeHost) FindOpenDocument(_ context.Context, path string) (*gateway.Document, error) {
	defer f.enter()()
	f.mu.Lock()
	defer f.mu.Unlock()
	for p, doc := range f.open {
		if gateway.SamePath(p, path) {
			return doc, nil
		}
	}
	return nil, nil
}

func (f *fakeHost) ActiveDocument(context.Context) (*gateway.Document, error) {
	defer f.enter()()
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active, nil
}

func (f *fakeHost) ImportGeometry(ctx context.Context, into *gateway.Document, source string) error {
	defer f.enter()()

	f.mu.Lock()
	f.perPath[source]++
	if f.perPath[source] > 1 {
		f.overlapped.Store(true)
	}
	block := f.block
	failure := f.failOn[source]
	shouldPanic := f.panicOn[source]
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.perPath[source]--
		f.mu.Unlock()
	}()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if shouldPanic {
		panic("host crashed importing " + source)
	}
	if failure != nil {
		return failure
	}

	f.mu.Lock()
	f.imports = append(f.imports, importCall{into: into, source: source})
	f.mu.Unlock()
	return nil
}

func (f *fakeHost) ExportGeometryAsOBJ(_ context.Context, doc *gateway.Document, dest string, _ gateway.ExportOptions) error {
	defer f.enter()()
	if doc == nil {
		return errors.New("no document")
	}
	if f.exportErr != nil {
		return f.exportErr
	}
	if err := os.WriteFile(dest, []byte("o obj-from-"+doc.ID+"\n"), 0o644); err != nil {
		return err
	}
	f.mu.Lock()
	f.exports = append(f.exports, dest)
	f.mu.Unlock()
	return nil
}

func (f *fakeHost) importCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.imports)
}

func (f *fakeHost) exportedPaths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.exports...)
}
