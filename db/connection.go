// Package db owns the host's sqlite database: connection setup, schema
// migration, and the stores for processed documents and sync history.
package db

import (
	"database/sql"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/finbridge/finbridge/errors"
	"github.com/finbridge/finbridge/logger"
)

// Open opens (creating if needed) the sqlite database at path and applies
// pending migrations. WAL mode keeps readers unblocked during plugin
// writes; the busy timeout covers short write contention instead of
// surfacing SQLITE_BUSY to callers.
func Open(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "create database directory %s", dir)
		}
	}

	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
	database, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open database %s", path)
	}
	if err := database.Ping(); err != nil {
		database.Close()
		return nil, errors.Wrapf(err, "ping database %s", path)
	}

	// sqlite allows one writer; a single connection avoids lock churn
	database.SetMaxOpenConns(1)

	if err := Migrate(database); err != nil {
		database.Close()
		return nil, err
	}

	logger.Debugw("database ready", "path", path)
	return database, nil
}
