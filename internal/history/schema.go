package history

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// migrations[i] upgrades a ledger from user_version i to i+1.
var migrations = []string{
	schemaSQL,
}

// ErrSchemaMismatch indicates the ledger was written by a newer declutter.
var ErrSchemaMismatch = errors.New("schema version mismatch")

func schemaVersion() int { return len(migrations) }

// initSchema brings the ledger up to date using SQLite's user_version.
func (s *Store) initSchema(ctx context.Context) error {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version > schemaVersion() {
		return fmt.Errorf("%w: ledger has version %d, this build understands %d (delete %s to start over)",
			ErrSchemaMismatch, version, schemaVersion(), s.path)
	}
	for next := version; next < schemaVersion(); next++ {
		if err := s.migrate(ctx, next); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) migrate(ctx context.Context, from int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", from+1, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, migrations[from]); err != nil {
		return fmt.Errorf("apply migration %d: %w", from+1, err)
	}
	// PRAGMA does not accept bound parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", from+1)); err != nil {
		return fmt.Errorf("record schema version %d: %w", from+1, err)
	}
	return tx.Commit()
}
