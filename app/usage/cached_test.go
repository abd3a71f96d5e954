package usage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachedReader_Stats(t *testing.T) {
	root := t.TempDir()
	statsPath := filepath.Join(root, totalStatsFile)
	require.NoError(t, os.WriteFile(statsPath, []byte(`{"Button": 1}`), 0600))

	cr := NewCachedReader(NewReader(root), time.Hour)
	defer cr.Close()
	assert.Equal(t, root, cr.ReportRoot())

	st, err := cr.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, st.TotalInstances)

	require.NoError(t, os.WriteFile(statsPath, []byte(`{"Button": 1, "Card": 4}`), 0600))
	cr.invalidate()

	st, err = cr.Stats()
	require.NoError(t, err)
	assert.Equal(t, 5, st.TotalInstances)
	assert.Equal(t, 2, st.UniqueComponents)
}

func TestCachedReader_CacheHit(t *testing.T) {
	root := t.TempDir()
	statsPath := filepath.Join(root, totalStatsFile)
	require.NoError(t, os.WriteFile(statsPath, []byte(`{"Button": 1}`), 0600))

	cr := NewCachedReader(NewReader(root), time.Hour)
	require.NoError(t, cr.Close()) // no watcher, cache only

	st, err := cr.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, st.TotalInstances)

	require.NoError(t, os.WriteFile(statsPath, []byte(`{"Button": 10}`), 0600))
	st, err = cr.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, st.TotalInstances, "stale value expected from cache")
}

func TestCachedReader_ErrorsNotCached(t *testing.T) {
	root := t.TempDir()
	statsPath := filepath.Join(root, totalStatsFile)
	require.NoError(t, os.WriteFile(statsPath, []byte(`{bad`), 0600))

	cr := NewCachedReader(NewReader(root), time.Hour)
	require.NoError(t, cr.Close())

	_, err := cr.Stats()
	require.Error(t, err)

	require.NoError(t, os.WriteFile(statsPath, []byte(`{"Card": 2}`), 0600))
	st, err := cr.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, st.TotalInstances)
}

func TestCachedReader_LocalInstances(t *testing.T) {
	root := t.TempDir()
	writeInstances(t, root, "broker", "console", "Button", `[{"a":"a.tsx","c":[]}]`)

	cr := NewCachedReader(NewReader(root), time.Hour)
	require.NoError(t, cr.Close())

	got, err := cr.LocalInstances("Button")
	require.NoError(t, err)
	require.Len(t, got, 1)

	writeInstances(t, root, "cloud", "home", "Button", `[{"a":"b.tsx","c":[]}]`)
	got, err = cr.LocalInstances("Button")
	require.NoError(t, err)
	assert.Len(t, got, 1, "cached result expected")

	cr.invalidate()
	got, err = cr.LocalInstances("Button")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = cr.LocalInstances("../x")
	assert.Error(t, err)

	_, err = cr.LocalInstances("*")
	assert.Error(t, err)
	_, ok := cr.local.Get(localKeyPrefix + "*")
	assert.False(t, ok, "invalid name must not be cached")
}

func TestCachedReader_WatcherInvalidates(t *testing.T) {
	root := t.TempDir()
	statsPath := filepath.Join(root, totalStatsFile)
	require.NoError(t, os.WriteFile(statsPath, []byte(`{"Button": 1}`), 0600))

	cr := NewCachedReader(NewReader(root), time.Hour)
	defer cr.Close()
	cr.mu.Lock()
	active := cr.watcherActive
	cr.mu.Unlock()
	if !active {
		t.Skip("file watcher not available")
	}

	st, err := cr.Stats()
	require.NoError(t, err)
	require.Equal(t, 1, st.TotalInstances)

	require.NoError(t, os.WriteFile(statsPath, []byte(`{"Button": 3}`), 0600))

	assert.Eventually(t, func() bool {
		st, err := cr.Stats()
		return err == nil && st.TotalInstances == 3
	}, 5*time.Second, 50*time.Millisecond)
}

func TestCachedReader_Close(t *testing.T) {
	cr := NewCachedReader(NewReader(t.TempDir()), 0)
	assert.Equal(t, defaultCacheTTL, cr.ttl)
	assert.NoError(t, cr.Close())
	assert.NoError(t, cr.Close(), "second close should not error")
}

func TestCachedReader_MissingRoot(t *testing.T) {
	cr := NewCachedReader(NewReader(filepath.Join(t.TempDir(), "absent")), time.Hour)
	defer cr.Close()
	assert.False(t, cr.watcherActive)

	st, err := cr.Stats()
	require.NoError(t, err)
	assert.Zero(t, st.TotalInstances)
}

func TestIsRelevantEvent(t *testing.T) {
	tests := []struct {
		name     string
		event    fsnotify.Event
		expected bool
	}{
		{name: "json write", event: fsnotify.Event{Name: "/r/total_stats.json", Op: fsnotify.Write}, expected: true},
		{name: "json create", event: fsnotify.Event{Name: "/r/per-application/a/m/Button/instances.json", Op: fsnotify.Create}, expected: true},
		{name: "directory removed", event: fsnotify.Event{Name: "/r/per-application/a", Op: fsnotify.Remove}, expected: true},
		{name: "chmod only", event: fsnotify.Event{Name: "/r/total_stats.json", Op: fsnotify.Chmod}, expected: false},
		{name: "other extension", event: fsnotify.Event{Name: "/r/notes.txt", Op: fsnotify.Write}, expected: false},
		{name: "hidden file", event: fsnotify.Event{Name: "/r/.total_stats.json", Op: fsnotify.Write}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isRelevantEvent(tt.event))
		})
	}
}
