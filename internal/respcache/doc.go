// Package respcache remembers categorizations obtained from the service so
// unchanged files are not sent again.
//
// # Validity
//
// Entries are keyed by absolute path and carry the size and modification
// time the file had when the answer was stored. A lookup only hits when the
// live file still has that size and mtime and the entry is younger than the
// TTL (7 days by default). Content is never hashed, so an edit that keeps
// both size and mtime is not detected.
//
// # Capacity
//
// At most MaxEntries (1000 by default) are kept. Recency is tracked with an
// LRU list; both a hit and a store make an entry most recent, and inserts
// beyond capacity evict the least recently used entries.
//
// # Storage
//
// The cache is a JSON object keyed by path:
//
//	{"/home/me/Downloads/a.pdf": {"category": "Documents", "size": 1024,
//	  "modified_time": 1700000000, "cached_at": 1700000100, "last_used": 1700000100}}
//
// Times are Unix seconds. Save rewrites the file atomically. A file that
// cannot be parsed is logged and replaced by an empty cache.
package respcache
