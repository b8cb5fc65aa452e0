// Package filecache provides a content cache for stages that repeatedly
// read the same files. Every lookup stats the file; the cached copy is
// served only while the on-disk mtime is unchanged and the entry is
// younger than the configured TTL, so callers never observe stale content
// from a modified file. Missing or unreadable files report absent and
// drop any cached entry.
//
// When capacity is exceeded the entry with the lowest access count is
// evicted, ties broken by the oldest last access, so frequently used
// files survive bursts of one-off reads.
package filecache
