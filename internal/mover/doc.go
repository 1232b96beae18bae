// Package mover executes an organization plan.
//
// Moves run one at a time in plan order. Each completed move is appended to
// the undo journal, and the append is durable before the next move starts.
// A file that cannot be moved is recorded and skipped; the rest of the plan
// still runs.
package mover
