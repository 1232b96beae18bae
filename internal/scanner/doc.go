// Package scanner enumerates the loose files of a target directory and
// captures the size and modification time snapshot (FileIdentity) that keys
// the response cache.
//
// Hidden entries and symlinks are never returned. Results are sorted by
// path so every later stage sees the same order for the same tree.
package scanner
