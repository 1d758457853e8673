package reminder

import (
	"database/sql"
	"fmt"
)

// schemaVersion is the latest schema version supported by migrate.
const schemaVersion = 1

// migrate ensures the reminders schema exists and is upgraded to
// schemaVersion.
func migrate(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY)`)
	if err != nil {
		return fmt.Errorf("migrate: create schema_migrations: %w", err)
	}

	var current int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("migrate: read current version: %w", err)
	}
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("migrate: begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	statements := []string{
		`CREATE TABLE IF NOT EXISTS reminders (
			id                 TEXT    PRIMARY KEY,
			created_by         TEXT    NOT NULL,
			assigned_to        TEXT    NOT NULL,
			title              TEXT    NOT NULL,
			message            TEXT    NOT NULL,
			fire_at            TEXT    NOT NULL,
			is_recurring       INTEGER NOT NULL DEFAULT 0,
			recurrence_pattern TEXT    NOT NULL DEFAULT '',
			priority           TEXT    NOT NULL DEFAULT 'medium',
			action_required    INTEGER NOT NULL DEFAULT 1,
			action_url         TEXT    NULL,
			data               TEXT    NULL,
			status             TEXT    NOT NULL DEFAULT 'scheduled',
			triggered_at       TEXT    NULL,
			completed_at       TEXT    NULL,
			acknowledged_at    TEXT    NULL,
			created_at         TEXT    NOT NULL,
			updated_at         TEXT    NOT NULL,
			deleted_at         TEXT    NULL,
			version            INTEGER NOT NULL DEFAULT 0,
			origin_id          TEXT    NOT NULL DEFAULT '',
			origin_key         TEXT    NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reminders_due ON reminders (status, fire_at) WHERE deleted_at IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_reminders_assignee ON reminders (assigned_to, fire_at)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_reminders_origin ON reminders (origin_key) WHERE origin_key IS NOT NULL`,
		`INSERT INTO schema_migrations (version) VALUES (1)`,
	}

	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migrate: commit: %w", err)
	}
	return nil
}
