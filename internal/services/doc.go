// Package services defines shared utilities consumed by the engine phases and
// the categorization service integration.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, phase names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper so failures can be
//     classified (transient vs configuration vs external) in run summaries.
//
// Use these helpers when wiring new engine logic so error handling and
// observability stay uniform across the tool.
package services
