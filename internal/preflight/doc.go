// Package preflight provides readiness checks for the directories, files and
// external service declutter depends on.
//
// These checks run in two contexts:
//   - The engine calls CheckDirectoryAccess on the target directory before
//     planning, so a bad root aborts before any side effect.
//   - The CLI "declutter status" command calls RunAll to display overall
//     health, including the categorization service.
//
// Service checks are skipped in offline mode.
package preflight
