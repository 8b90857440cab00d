package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ObjectZoneState is the membership ledger: at most one row per
// (object, zone) pair recording whether the object was inside the zone at its
// last evaluation. Rows are created lazily on first evaluation and removed
// only by the owning zone's cascade delete.
type ObjectZoneState struct {
	ObjectID  string    `json:"object_id"`
	ZoneID    int64     `json:"zone_id"`
	Inside    bool      `json:"inside"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GetObjectZoneStateTx reads the ledger row for one pair inside an ingestion
// transaction. A nil state with nil error means the pair has never been
// evaluated.
func GetObjectZoneStateTx(ctx context.Context, tx *sql.Tx, objectID string, zoneID int64) (*ObjectZoneState, error) {
	var state ObjectZoneState
	var inside int
	var updatedAtMs int64
	err := tx.QueryRowContext(ctx, `
		SELECT object_id, zone_id, inside, updated_at_ms
		FROM object_zone_state
		WHERE object_id = ? AND zone_id = ?`,
		objectID, zoneID,
	).Scan(&state.ObjectID, &state.ZoneID, &inside, &updatedAtMs)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get object zone state: %w", err)
	}
	state.Inside = inside == 1
	state.UpdatedAt = time.UnixMilli(updatedAtMs).UTC()
	return &state, nil
}

// UpsertObjectZoneStateTx writes the pair's membership flag and timestamp
// unconditionally; unlike the tracked-object row, the ledger always moves to
// the evaluated point's result even when that point arrived late.
func UpsertObjectZoneStateTx(ctx context.Context, tx *sql.Tx, objectID string, zoneID int64, inside bool, ts time.Time) error {
	insideInt := 0
	if inside {
		insideInt = 1
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO object_zone_state (object_id, zone_id, inside, updated_at_ms)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(object_id, zone_id) DO UPDATE SET
			inside = excluded.inside,
			updated_at_ms = excluded.updated_at_ms`,
		objectID, zoneID, insideInt, ts.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert object zone state: %w", err)
	}
	return nil
}

// CountZoneStates returns the number of ledger rows for a zone. Used by
// tests to verify cascade deletes and disabled-zone exclusion.
func (db *DB) CountZoneStates(ctx context.Context, zoneID int64) (int, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM object_zone_state WHERE zone_id = ?`, zoneID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count zone states: %w", err)
	}
	return n, nil
}
