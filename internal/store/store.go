// Package store persists normalized UPS readings and power events in
// SQLite. The collector is the sole writer; the serving layer reads the
// same database concurrently, so writes run in short WAL transactions.
package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mon5termatt/apc-web/internal/errors"
	"github.com/mon5termatt/apc-web/internal/logger"
	"github.com/mon5termatt/apc-web/internal/reading"

	_ "github.com/mattn/go-sqlite3"
)

const defaultDirPerm = 0o755

type Config struct {
	DBPath string
}

func (c Config) Validate() error {
	if c.DBPath == "" {
		return errors.New().New(ErrInvalidDBPath)
	}

	return nil
}

// PowerEvent is one continuous interval on battery power. End and
// Duration are nil while the event is still open.
type PowerEvent struct {
	ID       int64
	Start    time.Time
	End      *time.Time
	Duration *time.Duration
}

// EventClose identifies the open event to close and when.
type EventClose struct {
	ID  int64
	End time.Time
}

// CycleUpdate carries everything one collector cycle writes. All set
// parts are applied in a single transaction so readers never observe a
// reading without its event bookkeeping. OpenEvent.ID is filled in on
// commit.
type CycleUpdate struct {
	Reading    *reading.Reading
	OpenEvent  *PowerEvent
	CloseEvent *EventClose
}

type Store struct {
	db *sql.DB
	mu sync.Mutex
}

func New(cfg Config) (*Store, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm); err != nil {
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	dsn := cfg.DBPath + "?_journal=WAL&_auto_vacuum=2"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug().Str("path", cfg.DBPath).Msg("Store initialized")

	return &Store{db: db}, nil
}

// CommitCycle applies one collection cycle's writes atomically.
func (s *Store) CommitCycle(ctx context.Context, upd CycleUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	errFactory := errors.New()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				logger.Debug().Err(err).Msg("Failed to rollback cycle transaction")
			}
		}
	}()

	if upd.Reading != nil {
		if err := insertReading(ctx, tx, upd.Reading); err != nil {
			return err
		}
	}

	var openID int64
	if upd.OpenEvent != nil {
		res, err := tx.ExecContext(ctx, `
            INSERT INTO power_events (start_ts) VALUES (?)
        `, upd.OpenEvent.Start.Unix())
		if err != nil {
			return errFactory.Wrap(ErrStorageAccess, err)
		}
		openID, err = res.LastInsertId()
		if err != nil {
			return errFactory.Wrap(ErrStorageAccess, err)
		}
	}

	if upd.CloseEvent != nil {
		res, err := tx.ExecContext(ctx, `
            UPDATE power_events
            SET end_ts = ?, duration_sec = ? - start_ts
            WHERE id = ? AND end_ts IS NULL
        `, upd.CloseEvent.End.Unix(), upd.CloseEvent.End.Unix(), upd.CloseEvent.ID)
		if err != nil {
			return errFactory.Wrap(ErrStorageAccess, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return errFactory.Wrap(ErrStorageAccess, err)
		}
		if n == 0 {
			return errFactory.WithData(ErrEventNotFound, upd.CloseEvent.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrTransactionFailed, err)
	}
	committed = true

	if upd.OpenEvent != nil {
		upd.OpenEvent.ID = openID
	}

	return nil
}

func insertReading(ctx context.Context, tx *sql.Tx, r *reading.Reading) error {
	_, err := tx.ExecContext(ctx, `
        INSERT INTO readings (
            timestamp, line_volts, output_volts,
            load_pct, battery_charge, runtime_left_min, internal_temp_c,
            watts, amps, status, on_battery, stale
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `,
		r.Timestamp.Unix(),
		r.LineVolts,
		nullFloat(r.OutputVolts),
		r.LoadPct,
		r.BatteryChargePct,
		nullFloat(r.RuntimeLeftMin),
		nullFloat(r.InternalTempC),
		r.Watts,
		r.Amps,
		r.Status,
		boolToInt(r.OnBattery),
		boolToInt(r.Stale),
	)
	if err != nil {
		return errors.New().Wrap(ErrStorageAccess, err)
	}

	return nil
}

// LatestReading returns the most recent stored reading, fresh or stale,
// or nil when the store is empty.
func (s *Store) LatestReading(ctx context.Context) (*reading.Reading, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT `+readingColumns+`
        FROM readings
        ORDER BY timestamp DESC, id DESC
        LIMIT 1
    `)

	r, err := scanReading(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.New().Wrap(ErrStorageAccess, err)
	}

	return r, nil
}

// History returns readings within the window, timestamp ascending.
func (s *Store) History(ctx context.Context, since time.Duration) ([]reading.Reading, error) {
	cutoff := time.Now().Add(-since).Unix()

	rows, err := s.db.QueryContext(ctx, `
        SELECT `+readingColumns+`
        FROM readings
        WHERE timestamp > ?
        ORDER BY timestamp ASC, id ASC
    `, cutoff)
	if err != nil {
		return nil, errors.New().Wrap(ErrStorageAccess, err)
	}
	defer rows.Close()

	var readings []reading.Reading
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, errors.New().Wrap(ErrStorageAccess, err)
		}
		readings = append(readings, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.New().Wrap(ErrStorageAccess, err)
	}

	return readings, nil
}

// Events returns power events starting within the window, including any
// still-open event, ordered by start ascending.
func (s *Store) Events(ctx context.Context, since time.Duration) ([]PowerEvent, error) {
	cutoff := time.Now().Add(-since).Unix()

	rows, err := s.db.QueryContext(ctx, `
        SELECT id, start_ts, end_ts, duration_sec
        FROM power_events
        WHERE start_ts > ? OR end_ts IS NULL
        ORDER BY start_ts ASC
    `, cutoff)
	if err != nil {
		return nil, errors.New().Wrap(ErrStorageAccess, err)
	}
	defer rows.Close()

	var events []PowerEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, errors.New().Wrap(ErrStorageAccess, err)
		}
		events = append(events, *ev)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.New().Wrap(ErrStorageAccess, err)
	}

	return events, nil
}

// OpenEvent returns the event with no end timestamp, or nil when the UPS
// is not known to be on battery. At most one such event exists.
func (s *Store) OpenEvent(ctx context.Context) (*PowerEvent, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT id, start_ts, end_ts, duration_sec
        FROM power_events
        WHERE end_ts IS NULL
        ORDER BY start_ts DESC
        LIMIT 1
    `)

	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.New().Wrap(ErrStorageAccess, err)
	}

	return ev, nil
}

// PruneOlderThan deletes readings and closed events older than the
// retention horizon. Open events are never pruned.
func (s *Store) PruneOlderThan(ctx context.Context, horizon time.Duration) (readings, events int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	errFactory := errors.New()
	cutoff := time.Now().Add(-horizon).Unix()

	res, err := s.db.ExecContext(ctx, `DELETE FROM readings WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, 0, errFactory.Wrap(ErrStorageAccess, err)
	}
	readings, _ = res.RowsAffected()

	res, err = s.db.ExecContext(ctx, `
        DELETE FROM power_events
        WHERE end_ts IS NOT NULL AND end_ts < ?
    `, cutoff)
	if err != nil {
		return readings, 0, errFactory.Wrap(ErrStorageAccess, err)
	}
	events, _ = res.RowsAffected()

	return readings, events, nil
}

// Close checkpoints the WAL and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	errFactory := errors.New()

	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return errFactory.Wrap(ErrStorageClose, err)
	}

	if err := s.db.Close(); err != nil {
		return errFactory.Wrap(ErrStorageClose, err)
	}

	return nil
}

const readingColumns = `timestamp, line_volts, output_volts,
        load_pct, battery_charge, runtime_left_min, internal_temp_c,
        watts, amps, status, on_battery, stale`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReading(row rowScanner) (*reading.Reading, error) {
	var (
		r         reading.Reading
		ts        int64
		outputV   sql.NullFloat64
		runtime   sql.NullFloat64
		temp      sql.NullFloat64
		onBattery int
		stale     int
	)

	err := row.Scan(
		&ts, &r.LineVolts, &outputV,
		&r.LoadPct, &r.BatteryChargePct, &runtime, &temp,
		&r.Watts, &r.Amps, &r.Status, &onBattery, &stale,
	)
	if err != nil {
		return nil, err
	}

	r.Timestamp = time.Unix(ts, 0)
	r.OutputVolts = floatPtr(outputV)
	r.RuntimeLeftMin = floatPtr(runtime)
	r.InternalTempC = floatPtr(temp)
	r.OnBattery = onBattery != 0
	r.Stale = stale != 0

	return &r, nil
}

func scanEvent(row rowScanner) (*PowerEvent, error) {
	var (
		ev       PowerEvent
		startTS  int64
		endTS    sql.NullInt64
		duration sql.NullInt64
	)

	if err := row.Scan(&ev.ID, &startTS, &endTS, &duration); err != nil {
		return nil, err
	}

	ev.Start = time.Unix(startTS, 0)
	if endTS.Valid {
		end := time.Unix(endTS.Int64, 0)
		ev.End = &end
	}
	if duration.Valid {
		d := time.Duration(duration.Int64) * time.Second
		ev.Duration = &d
	}

	return &ev, nil
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}

	return *f
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64

	return &v
}

func boolToInt(b bool) int {
	if b {
		return 1
	}

	return 0
}
