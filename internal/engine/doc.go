// Package engine orchestrates organize and undo runs.
//
// An organize run scans the target directory, categorizes every file through
// the dispatcher, builds a plan, asks the caller to confirm it and finally
// executes the moves. An undo run previews the journal candidates, asks for
// confirmation and restores them. Both kinds hold an advisory lock for their
// side effects, record a row in the run history and report progress as
// discrete events on an optional channel.
//
// The engine has no global state: everything it needs is passed through an
// immutable Config and a Deps bundle.
package engine
