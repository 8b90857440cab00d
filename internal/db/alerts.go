package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// AlertKind enumerates the alert taxonomy.
//
// AlertStale is declared for schema and API completeness but nothing emits
// it: there is no liveness detector, so an object that goes silent while
// inside a zone never alerts. Known gap, carried over deliberately.
type AlertKind string

const (
	AlertEnter         AlertKind = "ENTER"
	AlertExit          AlertKind = "EXIT"
	AlertLowConfidence AlertKind = "LOW_CONFIDENCE"
	AlertStale         AlertKind = "STALE"
)

// AlertEvent is an immutable alert record. Only the acknowledged flag ever
// changes, and only from false to true.
type AlertEvent struct {
	AlertID      int64     `json:"alert_id"`
	Timestamp    time.Time `json:"ts"`
	ObjectID     string    `json:"object_id"`
	ZoneID       *int64    `json:"zone_id,omitempty"`
	Kind         AlertKind `json:"kind"`
	Message      string    `json:"message"`
	Acknowledged bool      `json:"acknowledged"`
}

// InsertAlertEventTx appends one alert inside an ingestion transaction so it
// commits (or rolls back) together with the ledger updates that caused it.
func InsertAlertEventTx(ctx context.Context, tx *sql.Tx, alert *AlertEvent) error {
	result, err := tx.ExecContext(ctx, `
		INSERT INTO alert_events (ts_ms, object_id, zone_id, kind, message)
		VALUES (?, ?, ?, ?, ?)`,
		alert.Timestamp.UnixMilli(), alert.ObjectID, alert.ZoneID, string(alert.Kind), alert.Message,
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	alert.AlertID = id
	return nil
}

// ListAlerts returns alerts newest first, paged by limit/offset.
func (db *DB) ListAlerts(ctx context.Context, limit, offset int) ([]AlertEvent, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT alert_id, ts_ms, object_id, zone_id, kind, message, acknowledged
		FROM alert_events
		ORDER BY ts_ms DESC, alert_id DESC
		LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []AlertEvent
	for rows.Next() {
		var a AlertEvent
		var tsMs int64
		var kind string
		var acked int
		if err := rows.Scan(&a.AlertID, &tsMs, &a.ObjectID, &a.ZoneID, &kind, &a.Message, &acked); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		a.Timestamp = time.UnixMilli(tsMs).UTC()
		a.Kind = AlertKind(kind)
		a.Acknowledged = acked == 1
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alerts: %w", err)
	}
	return alerts, nil
}

// GetAlert retrieves one alert by ID.
func (db *DB) GetAlert(ctx context.Context, id int64) (*AlertEvent, error) {
	var a AlertEvent
	var tsMs int64
	var kind string
	var acked int
	err := db.QueryRowContext(ctx, `
		SELECT alert_id, ts_ms, object_id, zone_id, kind, message, acknowledged
		FROM alert_events WHERE alert_id = ?`, id,
	).Scan(&a.AlertID, &tsMs, &a.ObjectID, &a.ZoneID, &kind, &a.Message, &acked)
	if err == sql.ErrNoRows {
		return nil, ErrAlertNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	a.Timestamp = time.UnixMilli(tsMs).UTC()
	a.Kind = AlertKind(kind)
	a.Acknowledged = acked == 1
	return &a, nil
}

// AcknowledgeAlert marks an alert acknowledged. The operation is monotone and
// idempotent: re-acknowledging an already-acknowledged alert succeeds without
// effect, and nothing ever clears the flag back to false. A missing ID
// returns ErrAlertNotFound for the API layer to map.
func (db *DB) AcknowledgeAlert(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx,
		`UPDATE alert_events SET acknowledged = 1 WHERE alert_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to acknowledge alert: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// Distinguish "missing" from "already acknowledged": the UPDATE
		// touches acknowledged rows too, so zero rows means no such alert.
		return ErrAlertNotFound
	}
	return nil
}
