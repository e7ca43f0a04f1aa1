package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type changeRecorder struct {
	mu   sync.Mutex
	dirs []string
}

func (c *changeRecorder) record(dir string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dirs = append(c.dirs, dir)
}

func (c *changeRecorder) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.dirs)
}

func (c *changeRecorder) last() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.dirs) == 0 {
		return ""
	}
	return c.dirs[len(c.dirs)-1]
}

func newTestWatcher(t *testing.T, rec *changeRecorder) *DirectoryWatcher {
	t.Helper()

	w, err := New(Config{
		OnChange: rec.record,
		Debounce: 50 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() { w.Stop() })
	return w
}

func TestNew_RequiresCallback(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestAdd_Duplicate(t *testing.T) {
	dir := t.TempDir()
	w := newTestWatcher(t, &changeRecorder{})

	require.NoError(t, w.Add(dir))
	require.NoError(t, w.Add(dir))
	assert.Equal(t, []string{dir}, w.Directories())
}

func TestAdd_NonexistentDirectory(t *testing.T) {
	w := newTestWatcher(t, &changeRecorder{})

	err := w.Add(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
	assert.Empty(t, w.Directories())
}

func TestFileCreateTriggersDirectoryNotification(t *testing.T) {
	dir := t.TempDir()
	rec := &changeRecorder{}
	w := newTestWatcher(t, rec)

	require.NoError(t, w.Add(dir))
	w.Start()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "Foo.jar"), []byte("content"), 0o644))

	require.Eventually(t, func() bool {
		return rec.count() > 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, dir, rec.last(), "notification must carry the watched directory, not the file")
}

func TestBurstOfWritesCoalesces(t *testing.T) {
	dir := t.TempDir()
	rec := &changeRecorder{}
	w := newTestWatcher(t, rec)

	require.NoError(t, w.Add(dir))
	w.Start()

	// Rapid writes inside the debounce window should produce one callback.
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "Foo.jar"), []byte{byte(i)}, 0o644))
		time.Sleep(5 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		return rec.count() > 0
	}, 2*time.Second, 10*time.Millisecond)

	time.Sleep(150 * time.Millisecond)
	assert.LessOrEqual(t, rec.count(), 2, "burst should coalesce into at most a couple of notifications")
}

func TestRemoveStopsNotifications(t *testing.T) {
	dir := t.TempDir()
	rec := &changeRecorder{}
	w := newTestWatcher(t, rec)

	require.NoError(t, w.Add(dir))
	require.NoError(t, w.Remove(dir))
	w.Start()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "Foo.jar"), []byte("content"), 0o644))
	time.Sleep(200 * time.Millisecond)

	assert.Zero(t, rec.count())
	assert.Empty(t, w.Directories())
}

func TestStopCancelsPendingNotification(t *testing.T) {
	dir := t.TempDir()
	rec := &changeRecorder{}

	w, err := New(Config{
		OnChange: rec.record,
		Debounce: 100 * time.Millisecond,
	})
	require.NoError(t, err)
	require.NoError(t, w.Add(dir))
	w.Start()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "Foo.jar"), []byte("content"), 0o644))
	// Stop before the debounce window elapses.
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, w.Stop())

	time.Sleep(200 * time.Millisecond)
	assert.Zero(t, rec.count())
}
