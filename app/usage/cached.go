package usage

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	cache "github.com/go-pkgz/expirable-cache/v3"
)

const (
	statsCacheKey   = "stats"
	localKeyPrefix  = "local:"
	defaultCacheTTL = 1 * time.Hour
	defaultDebounce = 500 * time.Millisecond
)

// CachedReader wraps Reader with caching and invalidates on report changes
type CachedReader struct {
	reader        *Reader
	stats         cache.Cache[string, Stats]
	local         cache.Cache[string, []LocalUsage]
	watcher       *fsnotify.Watcher
	stopCh        chan struct{}
	mu            sync.Mutex
	ttl           time.Duration
	debounce      time.Duration
	watcherActive bool
}

// NewCachedReader creates a cached reader watching the report root.
// The reader still works when the watcher can't start, relying on TTL expiry only.
func NewCachedReader(reader *Reader, ttl time.Duration) *CachedReader {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}

	cr := &CachedReader{
		reader:   reader,
		stats:    cache.NewCache[string, Stats]().WithTTL(ttl),
		local:    cache.NewCache[string, []LocalUsage]().WithTTL(ttl),
		stopCh:   make(chan struct{}),
		ttl:      ttl,
		debounce: defaultDebounce,
	}

	if err := cr.startWatcher(context.Background()); err != nil {
		slog.Warn("usage report watcher disabled", "root", reader.ReportRoot(), "error", err)
	}
	return cr
}

// ReportRoot returns the report directory
func (cr *CachedReader) ReportRoot() string {
	return cr.reader.ReportRoot()
}

// Stats returns cached aggregate stats or reads them on miss.
// Errors are not cached.
func (cr *CachedReader) Stats() (Stats, error) {
	if st, ok := cr.stats.Get(statsCacheKey); ok {
		return st, nil
	}
	st, err := cr.reader.Stats()
	if err != nil {
		return st, err
	}
	cr.stats.Set(statsCacheKey, st, cr.ttl)
	return st, nil
}

// LocalInstances returns cached per-application instances of a component
func (cr *CachedReader) LocalInstances(component string) ([]LocalUsage, error) {
	key := localKeyPrefix + component
	if res, ok := cr.local.Get(key); ok {
		return res, nil
	}
	res, err := cr.reader.LocalInstances(component)
	if err != nil {
		return nil, err
	}
	cr.local.Set(key, res, cr.ttl)
	return res, nil
}

// Close stops the watcher
func (cr *CachedReader) Close() error {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	if !cr.watcherActive {
		return nil
	}
	close(cr.stopCh)
	cr.watcherActive = false

	if cr.watcher != nil {
		return cr.watcher.Close() // nolint:wrapcheck // watcher error is descriptive
	}
	return nil
}

func (cr *CachedReader) startWatcher(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	cr.watcher = watcher

	if err := cr.addWatchRecursive(cr.reader.ReportRoot()); err != nil {
		_ = watcher.Close()
		cr.watcher = nil
		return err
	}

	cr.mu.Lock()
	cr.watcherActive = true
	cr.mu.Unlock()

	go cr.watchLoop(ctx)
	return nil
}

// addWatchRecursive watches dir and all its subdirectories
func (cr *CachedReader) addWatchRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error { // nolint:wrapcheck // walk error is descriptive
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := cr.watcher.Add(path); err != nil {
			slog.Debug("can't watch directory", "path", path, "error", err)
		}
		return nil
	})
}

// watchLoop invalidates the caches once events settle for the debounce period
func (cr *CachedReader) watchLoop(ctx context.Context) {
	debounceTimer := time.NewTimer(cr.debounce)
	debounceTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-cr.stopCh:
			return

		case event, ok := <-cr.watcher.Events:
			if !ok {
				return
			}
			// new directories (a new application or mfe) need watching too
			if event.Has(fsnotify.Create) {
				cr.watchIfDir(event.Name)
			}
			if isRelevantEvent(event) {
				debounceTimer.Reset(cr.debounce)
			}

		case <-debounceTimer.C:
			cr.invalidate()

		case err, ok := <-cr.watcher.Errors:
			if !ok {
				return
			}
			slog.Debug("usage report watcher error", "error", err)
		}
	}
}

func (cr *CachedReader) watchIfDir(path string) {
	if err := cr.addWatchRecursive(path); err != nil {
		slog.Debug("can't watch new path", "path", path, "error", err)
	}
}

// isRelevantEvent reports whether an event can change report content
func isRelevantEvent(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	if strings.HasPrefix(filepath.Base(event.Name), ".") {
		return false
	}
	// directory creation or removal changes which instance files exist
	return strings.HasSuffix(event.Name, ".json") || filepath.Ext(event.Name) == ""
}

func (cr *CachedReader) invalidate() {
	cr.stats.Purge()
	cr.local.Purge()
}
