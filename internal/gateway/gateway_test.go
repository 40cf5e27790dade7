package gateway

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/panelsync/internal/testutil"
)

// overlapDetector records the peak number of concurrent calls.
type overlapDetector struct {
	active atomic.Int32
	peak   atomic.Int32
}

func (o *overlapDetector) enter() {
	n := o.active.Add(1)
	for {
		p := o.peak.Load()
		if n <= p || o.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	o.active.Add(-1)
}

func (o *overlapDetector) FindOpenDocument(context.Context, string) (*Document, error) {
	o.enter()
	return nil, nil
}

func (o *overlapDetector) ActiveDocument(context.Context) (*Document, error) {
	o.enter()
	return nil, nil
}

func (o *overlapDetector) ImportGeometry(context.Context, *Document, string) error {
	o.enter()
	return nil
}

func (o *overlapDetector) ExportGeometryAsOBJ(context.Context, *Document, string, ExportOptions) error {
	o.enter()
	return nil
}

func TestExclusive_NoConcurrentCalls(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	inner := &overlapDetector{}
	ex := NewExclusive(inner)
	ctx := context.Background()

	// --- Act ---
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = ex.Do(ctx, func(g Gateway) error {
				if _, err := g.ActiveDocument(ctx); err != nil {
					return err
				}
				return g.ImportGeometry(ctx, nil, "b")
			})
		}()
	}
	wg.Wait()

	// --- Assert ---
	assert.Equal(t, int32(1), inner.peak.Load())
}

func TestExclusive_GivesUpOnCancelledContext(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	ex := NewExclusive(&overlapDetector{})
	holding := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = ex.Do(context.Background(), func(Gateway) error {
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// --- Act ---
	called := false
	err := ex.Do(ctx, func(Gateway) error { called = true; return nil })

	// --- Assert ---
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, called)
}

func TestExclusive_ReleasesAfterPanic(t *testing.T) {
	t.Parallel()

	ex := NewExclusive(&overlapDetector{})

	assert.Panics(t, func() {
		_ = ex.Do(context.Background(), func(Gateway) error { panic("host crashed") })
	})
	err := ex.Do(context.Background(), func(Gateway) error { return nil })

	assert.NoError(t, err)
}

func TestSamePath(t *testing.T) {
	t.Parallel()

	assert.True(t, SamePath(`C:\Parts\Wall.ipt`, "c:/parts/WALL.ipt"))
	assert.False(t, SamePath("C:/Parts/Wall.ipt", "C:/Parts/Door.ipt"))
}

func TestDryRun(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	ctx, logs := testutil.LoggerContext(t)
	var g Gateway = DryRun{}

	// --- Act ---
	doc, err := g.FindOpenDocument(ctx, "C:/parts/Wall.ipt")
	require.NoError(t, err)
	active, err := g.ActiveDocument(ctx)
	require.NoError(t, err)
	require.NoError(t, g.ImportGeometry(ctx, active, "in.igs"))
	require.NoError(t, g.ExportGeometryAsOBJ(ctx, doc, "out.obj", ExportOptions{BringToFront: true}))

	// --- Assert ---
	assert.Nil(t, active)
	assert.Equal(t, "C:/parts/Wall.ipt", doc.Path)
	assert.Contains(t, logs.String(), "[dry-run] import geometry")
	assert.Contains(t, logs.String(), "into=\"<new document>\"")
	assert.Contains(t, logs.String(), "destination=out.obj")
}
