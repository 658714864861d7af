package store

import (
	"context"
	"database/sql"
	"fmt"
)

func (s *Store) migrate(ctx context.Context) error {
	tx, err := s.writer.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Create schema version table
	if _, err := tx.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		)
	`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}

	var version int
	err = tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	if version < 1 {
		if err := migrateV1(ctx, tx); err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
	}

	if version < 2 {
		if err := migrateV2(ctx, tx); err != nil {
			return fmt.Errorf("migration v2: %w", err)
		}
	}

	return tx.Commit()
}

func migrateV1(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{
		// One row per record; field values are a JSON object.
		`CREATE TABLE IF NOT EXISTS records (
			model      TEXT NOT NULL,
			id         INTEGER NOT NULL,
			data       TEXT NOT NULL DEFAULT '{}' CHECK (json_valid(data)),
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
			PRIMARY KEY (model, id)
		)`,

		// Trigger: keep updated_at current
		`CREATE TRIGGER IF NOT EXISTS trg_records_touch
		AFTER UPDATE OF data ON records
		BEGIN
			UPDATE records SET updated_at = strftime('%Y-%m-%dT%H:%M:%fZ','now')
			WHERE model = NEW.model AND id = NEW.id;
		END`,

		// Record schema version
		`INSERT INTO schema_version (version) VALUES (1)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

func migrateV2(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{
		// Per-model id sequence, so unlinked ids are not handed out again.
		`CREATE TABLE IF NOT EXISTS sequences (
			model   TEXT PRIMARY KEY,
			last_id INTEGER NOT NULL
		)`,

		`INSERT OR IGNORE INTO sequences (model, last_id)
		 SELECT model, MAX(id) FROM records GROUP BY model`,

		`INSERT INTO schema_version (version) VALUES (2)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}
