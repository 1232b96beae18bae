// Package history keeps a SQLite ledger of organize and undo runs.
//
// The ledger is informational: the undo journal remains the source of truth
// for reversing moves. Each finished run appends one row with its counters,
// and `declutter history` lists the most recent rows.
package history
