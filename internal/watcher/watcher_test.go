package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/panelsync/internal/testutil"
)

func startWatcher(t *testing.T, folder Folder) *Watcher {
	t.Helper()
	ctx, _ := testutil.LoggerContext(t)
	w, err := New(folder)
	require.NoError(t, err)
	w.Start(ctx)
	t.Cleanup(func() { _ = w.Close() })
	return w
}

// nextEvent waits for the next event whose path is want, skipping the
// duplicates the OS is allowed to send.
func nextEvent(t *testing.T, w *Watcher, want string) RawFileEvent {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-w.Events():
			require.True(t, ok, "event channel closed early")
			if ev.Path == want {
				return ev
			}
		case <-timeout:
			t.Fatalf("no event for %s", want)
		}
	}
}

func TestNew_MissingDirectoryFails(t *testing.T) {
	t.Parallel()

	_, err := New(Folder{Dir: filepath.Join(t.TempDir(), "absent"), Pattern: "*.json"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot watch")
}

func TestNew_FileInsteadOfDirectoryFails(t *testing.T) {
	t.Parallel()

	path := testutil.WriteFile(t, t.TempDir(), "plain.txt", "x")

	_, err := New(Folder{Dir: path, Pattern: "*"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}

func TestNew_BadPatternFails(t *testing.T) {
	t.Parallel()

	_, err := New(Folder{Dir: t.TempDir(), Pattern: "[unterminated"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad pattern")
}

func TestWatcher_EmitsMatchingFiles(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	dir := t.TempDir()
	w := startWatcher(t, Folder{Dir: dir, Pattern: "*.json", Kind: KindJobs})

	// --- Act ---
	testutil.WriteFile(t, dir, "ignored.txt", "nope")
	path := testutil.WriteFile(t, dir, "job-1.json", `{"Kind":"RotatePanel"}`)

	// --- Assert ---
	ev := nextEvent(t, w, path)
	assert.Contains(t, []EventKind{Created, Modified}, ev.Kind)
	assert.False(t, ev.ObservedAt.IsZero())
	assert.Equal(t, KindJobs, w.Folder().Kind)
}

func TestWatcher_PatternIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w := startWatcher(t, Folder{Dir: dir, Pattern: "*.igs", Kind: KindGeometryImport})

	path := testutil.WriteFile(t, dir, "EXPORT.IGS", "geometry")

	nextEvent(t, w, path)
}

func TestWatcher_ForwardsDuplicateWrites(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	dir := t.TempDir()
	w := startWatcher(t, Folder{Dir: dir, Pattern: "*.igs", Kind: KindGeometryImport})
	path := testutil.WriteFile(t, dir, "part.igs", "a")
	nextEvent(t, w, path)

	// --- Act ---
	testutil.AppendFile(t, path, "b")

	// --- Assert ---
	ev := nextEvent(t, w, path)
	assert.Equal(t, Modified, ev.Kind)
}

func TestWatcher_ReportsRemovedDirectory(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	dir := filepath.Join(t.TempDir(), "jobs")
	require.NoError(t, os.Mkdir(dir, 0o755))
	testutil.WriteFile(t, dir, "pending.json", "{}")
	w := startWatcher(t, Folder{Dir: dir, Pattern: "*.json", Kind: KindJobs})

	// --- Act ---
	require.NoError(t, os.RemoveAll(dir))

	// --- Assert ---
	select {
	case err := <-w.Errors():
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrWatchFailure))
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not report the removed directory")
	}

	testutil.Eventually(t, 5*time.Second, func() bool {
		select {
		case _, ok := <-w.Events():
			return !ok
		default:
			return false
		}
	}, "event channel should close after a watch failure")
}

func TestWatcher_CloseIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx, _ := testutil.LoggerContext(t)
	w, err := New(Folder{Dir: t.TempDir(), Pattern: "*"})
	require.NoError(t, err)
	w.Start(ctx)

	require.NoError(t, w.Close())
	assert.NotPanics(t, func() { _ = w.Close() })

	_, ok := <-w.Events()
	assert.False(t, ok)
}
