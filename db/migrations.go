package db

import (
	"database/sql"
	"fmt"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// migrations list all database migrations in order
var migrations = []Migration{
	{
		Version:     1,
		Description: "Create assembly log",
		SQL: `
			CREATE SEQUENCE IF NOT EXISTS assemblies_id_seq;
			CREATE TABLE IF NOT EXISTS assemblies (
				id INTEGER PRIMARY KEY DEFAULT nextval('assemblies_id_seq'),
				shader TEXT NOT NULL,
				files INTEGER NOT NULL DEFAULT 0,
				controls INTEGER NOT NULL DEFAULT 0,
				bytes INTEGER NOT NULL DEFAULT 0,
				duration_us BIGINT NOT NULL DEFAULT 0,
				cached BOOLEAN NOT NULL DEFAULT FALSE,
				error_kind TEXT, -- 'io', 'parse' or NULL on success
				error TEXT,
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
			CREATE INDEX idx_assemblies_shader ON assemblies(shader);
		`,
	},
	{
		Version:     2,
		Description: "Create session event log",
		SQL: `
			CREATE SEQUENCE IF NOT EXISTS session_events_id_seq;
			CREATE TABLE IF NOT EXISTS session_events (
				id INTEGER PRIMARY KEY DEFAULT nextval('session_events_id_seq'),
				session_id TEXT NOT NULL,
				kind TEXT NOT NULL, -- open, list, select, unselect, reload, close
				shader TEXT,
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
			CREATE INDEX idx_session_events_session ON session_events(session_id);
		`,
	},
}

// Migrate applies all pending migrations
func (db *DB) Migrate() error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return serr.Wrap(err, "failed to create migrations table")
	}

	var currentVersion int
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM migrations").Scan(&currentVersion)
	if err != nil {
		return serr.Wrap(err, "failed to get current migration version")
	}
	logger.Debug("Current migration version", "version", currentVersion)

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		logger.Info("Applying migration", "version", migration.Version, "description", migration.Description)

		err := db.Transaction(func(tx *sql.Tx) error {
			if _, err := tx.Exec(migration.SQL); err != nil {
				return serr.Wrap(err, fmt.Sprintf("failed to execute migration %d", migration.Version))
			}
			_, err := tx.Exec(
				"INSERT INTO migrations (version, description) VALUES (?, ?)",
				migration.Version, migration.Description,
			)
			if err != nil {
				return serr.Wrap(err, "failed to record migration")
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// SchemaVersion returns the highest applied migration.
func (db *DB) SchemaVersion() (int, error) {
	var v int
	if err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM migrations").Scan(&v); err != nil {
		return 0, serr.Wrap(err, "failed to read schema version")
	}
	return v, nil
}
