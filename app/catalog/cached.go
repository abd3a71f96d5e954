package catalog

import (
	"context"
	"time"

	cache "github.com/go-pkgz/expirable-cache/v3"

	"github.com/solacedev/component-docs-mcp/app/github"
)

const defaultCacheTTL = 5 * time.Minute

type listing struct {
	entries []github.DirEntry
	ok      bool
}

// CachedLister wraps a Lister and keeps successful directory listings for a TTL.
// File content is not cached.
type CachedLister struct {
	lister Lister
	cache  cache.Cache[string, listing]
	ttl    time.Duration
}

// NewCachedLister creates a caching lister, ttl <= 0 selects the default
func NewCachedLister(lister Lister, ttl time.Duration) *CachedLister {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &CachedLister{
		lister: lister,
		cache:  cache.NewCache[string, listing]().WithTTL(ttl),
		ttl:    ttl,
	}
}

// ListDir returns a cached listing or asks the wrapped lister on miss
func (cl *CachedLister) ListDir(ctx context.Context, path, ref string) ([]github.DirEntry, bool, error) {
	key := path + "@" + ref
	if l, ok := cl.cache.Get(key); ok {
		return l.entries, l.ok, nil
	}

	entries, ok, err := cl.lister.ListDir(ctx, path, ref)
	if err != nil {
		return nil, false, err // nolint:wrapcheck // pass-through
	}
	cl.cache.Set(key, listing{entries: entries, ok: ok}, cl.ttl)
	return entries, ok, nil
}

// RawContent passes through to the wrapped lister
func (cl *CachedLister) RawContent(ctx context.Context, entry github.DirEntry, ref string) (string, error) {
	return cl.lister.RawContent(ctx, entry, ref) // nolint:wrapcheck // pass-through
}

// Purge drops all cached listings
func (cl *CachedLister) Purge() {
	cl.cache.Purge()
}
