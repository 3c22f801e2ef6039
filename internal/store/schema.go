package store

import (
	"database/sql"

	"github.com/mon5termatt/apc-web/internal/errors"
	"github.com/mon5termatt/apc-web/internal/logger"
)

const (
	SchemaVersion = 1

	createTablesSQL = `
	   CREATE TABLE IF NOT EXISTS schema_versions (
	       version     INTEGER PRIMARY KEY,
	       applied_at  TEXT NOT NULL
	   );
	   CREATE TABLE IF NOT EXISTS readings (
	       id               INTEGER PRIMARY KEY AUTOINCREMENT,
	       timestamp        INTEGER NOT NULL,
	       line_volts       REAL NOT NULL,
	       output_volts     REAL,
	       load_pct         REAL NOT NULL,
	       battery_charge   REAL NOT NULL,
	       runtime_left_min REAL,
	       internal_temp_c  REAL,
	       watts            REAL NOT NULL,
	       amps             REAL NOT NULL,
	       status           TEXT NOT NULL,
	       on_battery       INTEGER NOT NULL CHECK (on_battery IN (0, 1)),
	       stale            INTEGER NOT NULL CHECK (stale IN (0, 1))
	   );
	   CREATE INDEX IF NOT EXISTS idx_readings_timestamp ON readings(timestamp);
	   CREATE TABLE IF NOT EXISTS power_events (
	       id           INTEGER PRIMARY KEY AUTOINCREMENT,
	       start_ts     INTEGER NOT NULL,
	       end_ts       INTEGER,
	       duration_sec INTEGER
	   );
	   CREATE INDEX IF NOT EXISTS idx_power_events_start ON power_events(start_ts);`
)

// initSchema creates the schema and records the current version.
func initSchema(db *sql.DB) error {
	errFactory := errors.New()

	tx, err := db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				logger.Debug().Err(err).Msg("Failed to rollback transaction")
			}
		}
	}()

	if _, err := tx.Exec(createTablesSQL); err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}

	if _, err := tx.Exec(`
        INSERT INTO schema_versions (version, applied_at)
        VALUES (?, datetime('now'))
    `, SchemaVersion); err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}
	committed = true

	logger.Info().Int("version", SchemaVersion).Msg("Schema initialized")

	return nil
}

// schemaVersion returns the recorded schema version, 0 for a fresh database.
func schemaVersion(db *sql.DB) (int, error) {
	errFactory := errors.New()

	exists, err := tableExists(db, "schema_versions")
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, nil
	}

	var version int
	err = db.QueryRow(`
        SELECT version
        FROM schema_versions
        ORDER BY version DESC
        LIMIT 1
    `).Scan(&version)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errFactory.Wrap(ErrSchemaValidationFailed, err)
	}

	return version, nil
}

func tableExists(db *sql.DB, tableName string) (bool, error) {
	var exists bool
	err := db.QueryRow(`
        SELECT EXISTS (
            SELECT 1 FROM sqlite_master
            WHERE type='table' AND name=?
        )
    `, tableName).Scan(&exists)
	if err != nil {
		return false, errors.New().Wrap(ErrSchemaValidationFailed, err)
	}

	return exists, nil
}

// ensureSchema initializes a fresh database or validates an existing one.
func ensureSchema(db *sql.DB) error {
	version, err := schemaVersion(db)
	if err != nil {
		return err
	}

	switch {
	case version == 0:
		return initSchema(db)
	case version == SchemaVersion:
		return nil
	default:
		return errors.New().WithData(ErrSchemaValidationFailed, struct {
			Found    int
			Expected int
		}{
			Found:    version,
			Expected: SchemaVersion,
		})
	}
}
