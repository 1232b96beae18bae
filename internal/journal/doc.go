// Package journal keeps the undo log: one record per attempted move, stored
// as a JSON array next to the response cache.
//
// Records are completed, undone or failed. Completed records are the undo
// candidates; the only status change ever written is completed -> undone.
// Every append and every status change is persisted before the caller moves
// on (temp file, fsync, rename, directory fsync), so a crash leaves a
// consistent prefix of the batch on disk.
//
// On open, records older than the retention window (30 days) are dropped
// and the log is capped at MaxEntries (1000), oldest first. A journal that
// cannot be parsed is set aside as <path>.corrupt and replaced by an empty
// one; the tool keeps working but that history is lost.
package journal
