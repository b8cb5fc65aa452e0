package core

import "time"

// ContextEntry is one record in a ContextStore: the stored value plus the
// metadata that expiry and provenance queries rely on.
type ContextEntry struct {
	Key            string        `json:"key"`
	Value          any           `json:"value"`
	ProducingAgent string        `json:"producing_agent"`
	CreatedAt      time.Time     `json:"created_at"`
	TTL            time.Duration `json:"ttl"` // zero = never expires
}

// Expired reports whether the entry's TTL has elapsed as of now.
func (e ContextEntry) Expired(now time.Time) bool {
	return e.TTL > 0 && now.Sub(e.CreatedAt) >= e.TTL
}

// ContextStore is the shared surface stages use to pass intermediate
// results between concurrent and sequential waves. Keys follow the form
// "<namespace>:<id>"; the namespace is the substring before the first ':'
// and exists purely for bulk queries, not as a stored object.
//
// Entries expire lazily: an elapsed TTL makes an entry invisible to reads,
// which delete it on the way out, while Cleanup sweeps the whole store.
// Callers are expected to invoke Cleanup at natural checkpoints such as
// the end of a wave. Within one caller, a read after a completed write
// observes that write; across concurrent writers the last completed Set
// for a key wins.
type ContextStore interface {
	// Set upserts an entry, overwriting value and metadata unconditionally.
	// The variadic ttl takes at most one value: absent applies the store's
	// default, an explicit zero disables expiry for the entry.
	Set(key string, value any, producingAgent string, ttl ...time.Duration)

	// Get returns the value stored under key. An entry whose TTL has
	// elapsed is deleted on the way out and reported absent; a stale value
	// is never returned.
	Get(key string) (any, bool)

	// Update replaces value and producing agent only if the key exists and
	// is unexpired, preserving the original creation time and TTL. It
	// returns false (and changes nothing) otherwise.
	Update(key string, value any, producingAgent string) bool

	// GetNamespace returns every live entry under "ns:", keyed by the
	// remainder of the key after the separator.
	GetNamespace(ns string) map[string]any

	// GetBySource returns every live entry recorded with the given
	// producing agent, keyed by full key.
	GetBySource(producingAgent string) map[string]any

	// Entry exposes a live entry together with its metadata. The expiry
	// contract matches Get.
	Entry(key string) (ContextEntry, bool)

	// ClearNamespace removes every entry under "ns:", expired or not, and
	// returns the number removed.
	ClearNamespace(ns string) int

	// Cleanup sweeps the whole store, deleting every entry whose TTL has
	// elapsed, and returns the number removed.
	Cleanup() int

	// Size reports storage occupancy, including expired entries no read or
	// sweep has deleted yet.
	Size() int
}
