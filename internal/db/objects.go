package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// TrackedObject is the latest-known state for one object identifier. The
// last_* fields follow the monotonic-update policy (never regressed by an
// out-of-order point); the auxiliary telemetry fields always reflect the most
// recently observed point regardless of its timestamp.
type TrackedObject struct {
	ObjectID       string    `json:"object_id"`
	LastSeen       time.Time `json:"last_seen"`
	LastLat        float64   `json:"last_lat"`
	LastLon        float64   `json:"last_lon"`
	LastAltM       *float64  `json:"last_alt_m,omitempty"`
	LastConfidence float64   `json:"last_confidence"`
	SpeedMps       *float64  `json:"speed_mps,omitempty"`
	HeadingDeg     *float64  `json:"heading_deg,omitempty"`
	RssiDbm        *float64  `json:"rssi_dbm,omitempty"`
	BatteryPct     *float64  `json:"battery_pct,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

const trackedObjectColumns = `
	object_id, last_seen_ms, last_lat, last_lon, last_alt_m, last_confidence,
	speed_mps, heading_deg, rssi_dbm, battery_pct, created_at, updated_at
`

func scanTrackedObject(row interface{ Scan(...any) error }) (*TrackedObject, error) {
	var obj TrackedObject
	var lastSeenMs, createdAt, updatedAt int64
	err := row.Scan(
		&obj.ObjectID,
		&lastSeenMs,
		&obj.LastLat,
		&obj.LastLon,
		&obj.LastAltM,
		&obj.LastConfidence,
		&obj.SpeedMps,
		&obj.HeadingDeg,
		&obj.RssiDbm,
		&obj.BatteryPct,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}
	obj.LastSeen = time.UnixMilli(lastSeenMs).UTC()
	obj.CreatedAt = time.Unix(createdAt, 0).UTC()
	obj.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &obj, nil
}

// GetTrackedObjectTx fetches one object's row inside an open transaction.
// Returns ErrObjectNotFound if the identifier has never been sighted.
func GetTrackedObjectTx(ctx context.Context, tx *sql.Tx, objectID string) (*TrackedObject, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+trackedObjectColumns+` FROM tracked_objects WHERE object_id = ?`, objectID)
	obj, err := scanTrackedObject(row)
	if err == sql.ErrNoRows {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tracked object: %w", err)
	}
	return obj, nil
}

// GetTrackedObject fetches one object's row outside a transaction.
func (db *DB) GetTrackedObject(ctx context.Context, objectID string) (*TrackedObject, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+trackedObjectColumns+` FROM tracked_objects WHERE object_id = ?`, objectID)
	obj, err := scanTrackedObject(row)
	if err == sql.ErrNoRows {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tracked object: %w", err)
	}
	return obj, nil
}

// ListTrackedObjects returns all objects ordered by most recent sighting.
func (db *DB) ListTrackedObjects(ctx context.Context) ([]TrackedObject, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+trackedObjectColumns+` FROM tracked_objects ORDER BY last_seen_ms DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracked objects: %w", err)
	}
	defer rows.Close()

	var objects []TrackedObject
	for rows.Next() {
		obj, err := scanTrackedObject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tracked object: %w", err)
		}
		objects = append(objects, *obj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tracked objects: %w", err)
	}
	return objects, nil
}

// ObjectUpsert carries the per-point fields applied to a tracked object row.
type ObjectUpsert struct {
	ObjectID   string
	Timestamp  time.Time
	Lat        float64
	Lon        float64
	AltM       *float64
	Confidence float64
	SpeedMps   float64
	HeadingDeg float64
	RssiDbm    *float64
	BatteryPct *float64
}

// UpsertTrackedObjectTx applies one telemetry point to the object's row.
//
// First sighting inserts the row verbatim. On subsequent sightings the
// last-seen/position/confidence fields move only when the incoming timestamp
// is >= the stored one (ties favor the incoming point); the auxiliary
// speed/heading/signal/battery fields are overwritten unconditionally since
// they mean "most recently observed", not "most authoritative". Returns the
// row as it stands after the update.
func UpsertTrackedObjectTx(ctx context.Context, tx *sql.Tx, up ObjectUpsert) (*TrackedObject, error) {
	tsMs := up.Timestamp.UnixMilli()

	existing, err := GetTrackedObjectTx(ctx, tx, up.ObjectID)
	if err != nil && err != ErrObjectNotFound {
		return nil, err
	}

	if existing == nil {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO tracked_objects (
				object_id, last_seen_ms, last_lat, last_lon, last_alt_m,
				last_confidence, speed_mps, heading_deg, rssi_dbm, battery_pct
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			up.ObjectID, tsMs, up.Lat, up.Lon, up.AltM,
			up.Confidence, up.SpeedMps, up.HeadingDeg, up.RssiDbm, up.BatteryPct,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert tracked object: %w", err)
		}
		return GetTrackedObjectTx(ctx, tx, up.ObjectID)
	}

	if tsMs >= existing.LastSeen.UnixMilli() {
		_, err = tx.ExecContext(ctx, `
			UPDATE tracked_objects SET
				last_seen_ms = ?, last_lat = ?, last_lon = ?, last_alt_m = ?,
				last_confidence = ?, speed_mps = ?, heading_deg = ?,
				rssi_dbm = ?, battery_pct = ?,
				updated_at = strftime('%s','now')
			WHERE object_id = ?`,
			tsMs, up.Lat, up.Lon, up.AltM,
			up.Confidence, up.SpeedMps, up.HeadingDeg, up.RssiDbm, up.BatteryPct,
			up.ObjectID,
		)
	} else {
		// Late point: auxiliary telemetry only, latest position stands.
		_, err = tx.ExecContext(ctx, `
			UPDATE tracked_objects SET
				speed_mps = ?, heading_deg = ?, rssi_dbm = ?, battery_pct = ?,
				updated_at = strftime('%s','now')
			WHERE object_id = ?`,
			up.SpeedMps, up.HeadingDeg, up.RssiDbm, up.BatteryPct,
			up.ObjectID,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update tracked object: %w", err)
	}

	return GetTrackedObjectTx(ctx, tx, up.ObjectID)
}
