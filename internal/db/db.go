// Package db provides sqlite persistence for the corridor tracker: tracked
// objects, telemetry history, zones, per-(object,zone) membership state, and
// alert events.
package db

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// Sentinel errors surfaced at the store boundary so callers can map them to
// HTTP status codes without string matching.
var (
	ErrZoneNotFound   = errors.New("zone not found")
	ErrAlertNotFound  = errors.New("alert not found")
	ErrObjectNotFound = errors.New("object not found")
)

type DB struct {
	*sql.DB
}

// connPragmas rides in the DSN because foreign_keys and busy_timeout are
// per-connection settings: applying them with Exec would only configure
// whichever pooled connection served the Exec, and any connection opened
// later would run without them.
const connPragmas = "_pragma=journal_mode(WAL)" +
	"&_pragma=busy_timeout(5000)" +
	"&_pragma=synchronous(NORMAL)" +
	"&_pragma=foreign_keys(1)"

// OpenDB opens the sqlite database at path without touching the schema. The
// migrate subcommand uses this so migrations alone manage schema state.
func OpenDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?%s", path, connPragmas))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database at %s: %w", path, err)
	}

	return &DB{db}, nil
}

// NewDB opens (or creates) the sqlite database at path and ensures the base
// schema exists. Schema evolution beyond the baseline is handled by
// golang-migrate (see migrate.go); the inline schema keeps fresh databases
// and test fixtures working without a migrations directory on disk.
func NewDB(path string) (*DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(baseSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create base schema: %w", err)
	}

	return db, nil
}

// baseSchema matches migrations/000001 + 000002. Timestamps that order
// telemetry (last_seen, record/alert/state timestamps) are stored as unix
// milliseconds; row bookkeeping uses unix seconds.
const baseSchema = `
	CREATE TABLE IF NOT EXISTS tracked_objects (
		object_id        TEXT PRIMARY KEY,
		last_seen_ms     INTEGER NOT NULL,
		last_lat         DOUBLE NOT NULL,
		last_lon         DOUBLE NOT NULL,
		last_alt_m       DOUBLE,
		last_confidence  DOUBLE NOT NULL,
		speed_mps        DOUBLE,
		heading_deg      DOUBLE,
		rssi_dbm         DOUBLE,
		battery_pct      DOUBLE,
		created_at       INTEGER NOT NULL DEFAULT (strftime('%s','now')),
		updated_at       INTEGER NOT NULL DEFAULT (strftime('%s','now'))
	);

	CREATE TABLE IF NOT EXISTS telemetry_records (
		record_id    INTEGER PRIMARY KEY AUTOINCREMENT,
		object_id    TEXT NOT NULL,
		ts_ms        INTEGER NOT NULL,
		lat          DOUBLE NOT NULL,
		lon          DOUBLE NOT NULL,
		alt_m        DOUBLE,
		confidence   DOUBLE NOT NULL,
		speed_mps    DOUBLE NOT NULL,
		heading_deg  DOUBLE NOT NULL,
		rssi_dbm     DOUBLE,
		battery_pct  DOUBLE
	);
	CREATE INDEX IF NOT EXISTS idx_telemetry_object_ts
		ON telemetry_records(object_id, ts_ms);

	CREATE TABLE IF NOT EXISTS zones (
		zone_id     INTEGER PRIMARY KEY AUTOINCREMENT,
		name        TEXT NOT NULL,
		shape_kind  TEXT NOT NULL DEFAULT 'bbox',
		min_lat     DOUBLE,
		min_lon     DOUBLE,
		max_lat     DOUBLE,
		max_lon     DOUBLE,
		vertices    TEXT,
		enabled     INTEGER NOT NULL DEFAULT 1,
		created_at  INTEGER NOT NULL DEFAULT (strftime('%s','now'))
	);

	CREATE TABLE IF NOT EXISTS object_zone_state (
		object_id      TEXT NOT NULL,
		zone_id        INTEGER NOT NULL,
		inside         INTEGER NOT NULL,
		updated_at_ms  INTEGER NOT NULL,
		PRIMARY KEY (object_id, zone_id),
		FOREIGN KEY (zone_id) REFERENCES zones(zone_id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS alert_events (
		alert_id      INTEGER PRIMARY KEY AUTOINCREMENT,
		ts_ms         INTEGER NOT NULL,
		object_id     TEXT NOT NULL,
		zone_id       INTEGER,
		kind          TEXT NOT NULL,
		message       TEXT NOT NULL,
		acknowledged  INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_alert_events_ts
		ON alert_events(ts_ms);
`
