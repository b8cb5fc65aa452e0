package filecache

import (
	"container/heap"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/hupe1980/stageflow/logging"
	"github.com/hupe1980/stageflow/metrics"
)

const (
	// DefaultCapacity bounds the number of cached files.
	DefaultCapacity = 64

	// DefaultTTL bounds how long a cached copy is served without a
	// content re-read, even when the mtime looks unchanged.
	DefaultTTL = 30 * time.Second
)

// Options configures a Cache.
type Options struct {
	// Capacity is the maximum number of cached files. Values below one
	// fall back to DefaultCapacity.
	Capacity int

	// TTL is the maximum age of a cached copy. Values at or below zero
	// fall back to DefaultTTL.
	TTL time.Duration

	// Logger defaults to NoOp if nil.
	Logger logging.Logger

	// Metrics records hits, misses and evictions when set.
	Metrics *metrics.Metrics
}

type entry struct {
	path        string
	content     []byte
	mtime       time.Time
	lastChecked time.Time
	accessCount int
	lastAccess  time.Time
	index       int
}

// Cache is an mtime-validated file content cache, safe for concurrent use
// by multiple stages.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	order   entryHeap
	opts    Options

	// seams for tests to count disk traffic
	statFn func(path string) (fs.FileInfo, error)
	readFn func(path string) ([]byte, error)
	now    func() time.Time
}

// New constructs an empty Cache.
func New(optFns ...func(o *Options)) *Cache {
	opts := Options{
		Capacity: DefaultCapacity,
		TTL:      DefaultTTL,
		Logger:   logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Capacity < 1 {
		opts.Capacity = DefaultCapacity
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}

	return &Cache{
		entries: make(map[string]*entry),
		opts:    opts,
		statFn:  os.Stat,
		readFn:  os.ReadFile,
		now:     time.Now,
	}
}

// Get returns the file's content, from cache when still valid, re-read
// from disk otherwise. Absent means the file does not exist or cannot be
// read; any cached entry for it is dropped. The returned slice is a copy.
func (c *Cache) Get(path string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.getLocked(path)
}

func (c *Cache) getLocked(path string) ([]byte, bool) {
	now := c.now()

	info, err := c.statFn(path)
	if err != nil {
		if c.dropLocked(path) {
			c.opts.Logger.Debug("filecache.dropped", "path", path, "reason", "stat failed")
		}
		c.opts.Metrics.RecordCacheMiss()
		return nil, false
	}

	if e, ok := c.entries[path]; ok && info.ModTime().Equal(e.mtime) && now.Sub(e.lastChecked) < c.opts.TTL {
		c.touchLocked(e, now)
		c.opts.Metrics.RecordCacheHit()
		return append([]byte(nil), e.content...), true
	}

	content, err := c.readFn(path)
	if err != nil {
		if c.dropLocked(path) {
			c.opts.Logger.Debug("filecache.dropped", "path", path, "reason", "read failed")
		}
		c.opts.Metrics.RecordCacheMiss()
		return nil, false
	}
	c.opts.Metrics.RecordCacheMiss()

	e, ok := c.entries[path]
	if !ok {
		e = &entry{path: path}
		c.entries[path] = e
		heap.Push(&c.order, e)
	}
	e.content = content
	e.mtime = info.ModTime()
	e.lastChecked = now
	c.touchLocked(e, now)

	c.evictLocked()

	return append([]byte(nil), content...), true
}

func (c *Cache) touchLocked(e *entry, now time.Time) {
	e.accessCount++
	e.lastAccess = now
	heap.Fix(&c.order, e.index)
}

func (c *Cache) evictLocked() {
	for len(c.entries) > c.opts.Capacity {
		victim := heap.Pop(&c.order).(*entry)
		delete(c.entries, victim.path)
		c.opts.Metrics.RecordCacheEviction()
		c.opts.Logger.Debug("filecache.evicted", "path", victim.path, "accesses", victim.accessCount)
	}
}

func (c *Cache) dropLocked(path string) bool {
	e, ok := c.entries[path]
	if !ok {
		return false
	}
	delete(c.entries, path)
	heap.Remove(&c.order, e.index)
	return true
}

// Invalidate forcibly drops the entry for a path, reporting whether one
// was cached. The next Get re-reads from disk.
func (c *Cache) Invalidate(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.dropLocked(path)
}

// InvalidateAll drops every entry and returns how many were cached.
func (c *Cache) InvalidateAll() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.entries)
	c.entries = make(map[string]*entry)
	c.order = c.order[:0]
	return n
}

// LoadMultiple resolves several paths with the same freshness contract as
// Get. Absent paths are omitted from the result.
func (c *Cache) LoadMultiple(paths []string) map[string][]byte {
	out := make(map[string][]byte, len(paths))
	for _, path := range paths {
		if content, ok := c.Get(path); ok {
			out[path] = content
		}
	}
	return out
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}
