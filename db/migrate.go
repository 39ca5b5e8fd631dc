package db

import (
	"database/sql"

	"github.com/finbridge/finbridge/errors"
	"github.com/finbridge/finbridge/logger"
)

// migrations run in order; schema_version records the last applied index.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		filename     TEXT NOT NULL,
		stored_path  TEXT NOT NULL,
		size_bytes   INTEGER NOT NULL,
		status       TEXT NOT NULL DEFAULT 'pending',
		fields       TEXT,
		error        TEXT,
		created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		processed_at TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS sync_log (
		id          TEXT PRIMARY KEY,
		plugin      TEXT NOT NULL,
		record_type TEXT NOT NULL,
		reference   TEXT NOT NULL,
		external_id TEXT,
		action      TEXT,
		success     INTEGER NOT NULL,
		error       TEXT,
		error_type  TEXT,
		created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sync_log_reference ON sync_log(reference)`,
	`CREATE INDEX IF NOT EXISTS idx_sync_log_plugin ON sync_log(plugin, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status)`,
}

// Migrate brings the schema up to date. Safe to call on every start.
func Migrate(database *sql.DB) error {
	if _, err := database.Exec(
		`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return errors.Wrap(err, "create schema_version")
	}

	var current int
	row := database.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`)
	if err := row.Scan(&current); err != nil {
		return errors.Wrap(err, "read schema version")
	}

	for i := current; i < len(migrations); i++ {
		if _, err := database.Exec(migrations[i]); err != nil {
			return errors.Wrapf(err, "apply migration %d", i+1)
		}
		if _, err := database.Exec(`INSERT INTO schema_version (version) VALUES (?)`, i+1); err != nil {
			return errors.Wrapf(err, "record migration %d", i+1)
		}
	}
	if current < len(migrations) {
		logger.Infow("schema migrated", "from", current, "to", len(migrations))
	}
	return nil
}
