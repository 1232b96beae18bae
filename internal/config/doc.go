// Package config loads, normalizes, and validates declutter configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// DECLUTTER_API_KEY and OPENROUTER_API_KEY. State file locations (cache,
// journal, history, lock, logs) default to files under paths.data_dir.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, a canonical category list, and clear validation errors.
package config
