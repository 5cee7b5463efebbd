// Package cache keeps compiled queries alive across engine calls.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/trusted-programming/tree-grepper/internal/application/common/slogger"
	"github.com/trusted-programming/tree-grepper/internal/domain/valueobject"
	"github.com/trusted-programming/tree-grepper/internal/port/outbound"
)

// DefaultMaxQueries bounds the cache when no size is configured.
const DefaultMaxQueries = 256

// QueryCache is a SyntaxProvider that compiles each (language, pattern) pair once.
// Cached queries are shared between goroutines; their Close is a no-op and the
// cache releases them in Close. Once full, further patterns are compiled uncached
// and owned by the caller as usual.
type QueryCache struct {
	outbound.SyntaxProvider

	mu      sync.Mutex
	entries map[string]*cacheEntry
	maxSize int
	stats   Statistics
}

type cacheEntry struct {
	query       outbound.Query
	language    string
	createdAt   time.Time
	accessCount int64
}

// Statistics tracks cache performance.
type Statistics struct {
	Hits     int64
	Misses   int64
	Bypassed int64
	Items    int
}

// HitRate returns the share of compilations served from the cache.
func (s Statistics) HitRate() float64 {
	total := s.Hits + s.Misses + s.Bypassed
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

var _ outbound.SyntaxProvider = (*QueryCache)(nil)

// NewQueryCache wraps provider. maxSize < 1 selects DefaultMaxQueries.
func NewQueryCache(provider outbound.SyntaxProvider, maxSize int) *QueryCache {
	if maxSize < 1 {
		maxSize = DefaultMaxQueries
	}
	return &QueryCache{
		SyntaxProvider: provider,
		entries:        make(map[string]*cacheEntry),
		maxSize:        maxSize,
	}
}

// Compile returns the cached query for pattern, compiling it on first use.
// Compile errors are not cached.
func (c *QueryCache) Compile(language valueobject.Language, pattern string) (outbound.Query, error) {
	key := queryKey(language, pattern)

	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[key]; ok {
		entry.accessCount++
		c.stats.Hits++
		return sharedQuery{entry.query}, nil
	}

	query, err := c.SyntaxProvider.Compile(language, pattern)
	if err != nil {
		return nil, err
	}
	if len(c.entries) >= c.maxSize {
		c.stats.Bypassed++
		slogger.DebugNoCtx("Query cache full, compiled uncached", slogger.Fields{
			"language":   language.Name(),
			"cache_size": len(c.entries),
		})
		return query, nil
	}

	c.stats.Misses++
	c.entries[key] = &cacheEntry{query: query, language: language.Name(), createdAt: time.Now()}
	c.stats.Items = len(c.entries)
	slogger.DebugNoCtx("Cached compiled query", slogger.Fields{
		"language":   language.Name(),
		"key":        key[:8] + "...",
		"cache_size": len(c.entries),
	})
	return sharedQuery{query}, nil
}

// Matches runs query, unwrapping cached queries for the underlying provider.
func (c *QueryCache) Matches(
	ctx context.Context,
	query outbound.Query,
	tree outbound.SyntaxTree,
) ([]outbound.QueryMatch, error) {
	if shared, ok := query.(sharedQuery); ok {
		query = shared.Query
	}
	return c.SyntaxProvider.Matches(ctx, query, tree)
}

// Statistics returns a snapshot of the cache counters.
func (c *QueryCache) Statistics() Statistics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Close releases every cached query. Queries handed out earlier must not be used
// afterwards.
func (c *QueryCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, entry := range c.entries {
		slogger.DebugNoCtx("Releasing cached query", slogger.Fields{
			"language":     entry.language,
			"access_count": entry.accessCount,
			"age_seconds":  time.Since(entry.createdAt).Seconds(),
		})
		entry.query.Close()
		delete(c.entries, key)
	}
	c.stats.Items = 0
}

func queryKey(language valueobject.Language, pattern string) string {
	hash := sha256.Sum256([]byte(language.Name() + "\x00" + pattern))
	return hex.EncodeToString(hash[:])
}

// sharedQuery hides Close from callers of a cached query.
type sharedQuery struct {
	outbound.Query
}

func (sharedQuery) Close() {}
