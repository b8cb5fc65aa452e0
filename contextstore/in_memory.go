package contextstore

import (
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/stageflow/core"
	"github.com/hupe1980/stageflow/logging"
	"github.com/hupe1980/stageflow/metrics"
)

// Options configures an InMemoryStore.
type Options struct {
	// DefaultTTL applies to Set calls that omit a ttl. Zero means entries
	// never expire unless given an explicit ttl.
	DefaultTTL time.Duration

	// Logger defaults to NoOp if nil.
	Logger logging.Logger

	// Metrics records cleanup sweeps when set.
	Metrics *metrics.Metrics
}

// InMemoryStore is a volatile ContextStore implementation keeping entries in
// a process local map. It is safe for concurrent access from multiple
// stages. Expired entries vanish lazily: Get and Entry delete them on
// contact, Cleanup sweeps the rest; until then they still count toward
// Size. Bulk queries return fresh maps so callers cannot mutate internal
// state.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*core.ContextEntry
	opts    Options

	now func() time.Time // overridable in tests
}

// NewInMemoryStore constructs an empty in-memory context store.
func NewInMemoryStore(optFns ...func(o *Options)) *InMemoryStore {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &InMemoryStore{
		entries: make(map[string]*core.ContextEntry),
		opts:    opts,
		now:     time.Now,
	}
}

// Set upserts an entry, overwriting any previous value and metadata. The
// variadic ttl takes at most one value: absent applies the store default,
// an explicit zero disables expiry for this entry.
func (s *InMemoryStore) Set(key string, value any, producingAgent string, ttl ...time.Duration) {
	effective := s.opts.DefaultTTL
	if len(ttl) > 0 {
		effective = ttl[0]
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = &core.ContextEntry{
		Key:            key,
		Value:          value,
		ProducingAgent: producingAgent,
		CreatedAt:      s.now(),
		TTL:            effective,
	}

	s.opts.Logger.Debug("contextstore.set", "key", key, "producing_agent", producingAgent, "ttl", effective)
}

// Get returns the value stored under key. An entry whose TTL has elapsed is
// deleted on the way out and reported absent.
func (s *InMemoryStore) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if e.Expired(s.now()) {
		delete(s.entries, key)
		return nil, false
	}
	return e.Value, true
}

// Update replaces value and producing agent only if the key exists and is
// unexpired, preserving creation time and TTL. An expired entry is dropped
// and reported as missing.
func (s *InMemoryStore) Update(key string, value any, producingAgent string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return false
	}
	if e.Expired(s.now()) {
		delete(s.entries, key)
		return false
	}

	e.Value = value
	e.ProducingAgent = producingAgent
	return true
}

// GetNamespace returns every live entry under "ns:", keyed by the remainder
// of the key after the separator.
func (s *InMemoryStore) GetNamespace(ns string) map[string]any {
	prefix := ns + ":"
	now := s.now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]any)
	for key, e := range s.entries {
		if !strings.HasPrefix(key, prefix) || e.Expired(now) {
			continue
		}
		out[strings.TrimPrefix(key, prefix)] = e.Value
	}
	return out
}

// GetBySource returns every live entry recorded with the given producing
// agent, keyed by full key.
func (s *InMemoryStore) GetBySource(producingAgent string) map[string]any {
	now := s.now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]any)
	for key, e := range s.entries {
		if e.ProducingAgent != producingAgent || e.Expired(now) {
			continue
		}
		out[key] = e.Value
	}
	return out
}

// Entry exposes a live entry together with its metadata, as a copy. The
// expiry contract matches Get.
func (s *InMemoryStore) Entry(key string) (core.ContextEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return core.ContextEntry{}, false
	}
	if e.Expired(s.now()) {
		delete(s.entries, key)
		return core.ContextEntry{}, false
	}
	return *e, true
}

// ClearNamespace removes every entry under "ns:", expired or not, and
// returns the number removed.
func (s *InMemoryStore) ClearNamespace(ns string) int {
	prefix := ns + ":"

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key := range s.entries {
		if strings.HasPrefix(key, prefix) {
			delete(s.entries, key)
			removed++
		}
	}

	s.opts.Logger.Debug("contextstore.clear_namespace", "namespace", ns, "removed", removed)
	return removed
}

// Cleanup sweeps the whole store, deleting every entry whose TTL has
// elapsed, and returns the number removed. This is the only operation that
// reclaims memory for expired entries nobody has read since expiry.
func (s *InMemoryStore) Cleanup() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, e := range s.entries {
		if e.Expired(now) {
			delete(s.entries, key)
			removed++
		}
	}

	s.opts.Metrics.RecordSweep(removed)
	if removed > 0 {
		s.opts.Logger.Debug("contextstore.cleanup", "removed", removed, "remaining", len(s.entries))
	}
	return removed
}

// Size reports storage occupancy, including expired entries no read or
// sweep has deleted yet.
func (s *InMemoryStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
