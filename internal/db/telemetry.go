package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// TelemetryRecord is one append-only history entry. Records are written for
// every ingested point, including late or duplicate deliveries, and are never
// mutated afterwards.
type TelemetryRecord struct {
	RecordID   int64     `json:"record_id"`
	ObjectID   string    `json:"object_id"`
	Timestamp  time.Time `json:"ts"`
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	AltM       *float64  `json:"alt_m,omitempty"`
	Confidence float64   `json:"confidence"`
	SpeedMps   float64   `json:"speed_mps"`
	HeadingDeg float64   `json:"heading_deg"`
	RssiDbm    *float64  `json:"rssi_dbm,omitempty"`
	BatteryPct *float64  `json:"battery_pct,omitempty"`
}

// InsertTelemetryRecordTx appends one history record inside an open
// transaction.
func InsertTelemetryRecordTx(ctx context.Context, tx *sql.Tx, rec *TelemetryRecord) error {
	result, err := tx.ExecContext(ctx, `
		INSERT INTO telemetry_records (
			object_id, ts_ms, lat, lon, alt_m, confidence,
			speed_mps, heading_deg, rssi_dbm, battery_pct
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ObjectID, rec.Timestamp.UnixMilli(), rec.Lat, rec.Lon, rec.AltM,
		rec.Confidence, rec.SpeedMps, rec.HeadingDeg, rec.RssiDbm, rec.BatteryPct,
	)
	if err != nil {
		return fmt.Errorf("failed to insert telemetry record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	rec.RecordID = id
	return nil
}

// ObjectHistory returns the most recent limit records for an object, newest
// first.
func (db *DB) ObjectHistory(ctx context.Context, objectID string, limit int) ([]TelemetryRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT record_id, object_id, ts_ms, lat, lon, alt_m, confidence,
		       speed_mps, heading_deg, rssi_dbm, battery_pct
		FROM telemetry_records
		WHERE object_id = ?
		ORDER BY ts_ms DESC
		LIMIT ?`,
		objectID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query telemetry history: %w", err)
	}
	defer rows.Close()

	var records []TelemetryRecord
	for rows.Next() {
		var rec TelemetryRecord
		var tsMs int64
		if err := rows.Scan(
			&rec.RecordID, &rec.ObjectID, &tsMs, &rec.Lat, &rec.Lon, &rec.AltM,
			&rec.Confidence, &rec.SpeedMps, &rec.HeadingDeg, &rec.RssiDbm, &rec.BatteryPct,
		); err != nil {
			return nil, fmt.Errorf("failed to scan telemetry record: %w", err)
		}
		rec.Timestamp = time.UnixMilli(tsMs).UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating telemetry records: %w", err)
	}
	return records, nil
}

// SpeedSamples returns the speeds (m/s) recorded for an object over the past
// days, oldest first. Used by the percentile rollup endpoint and the report
// tool.
func (db *DB) SpeedSamples(ctx context.Context, objectID string, days int) ([]float64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days).UnixMilli()
	rows, err := db.QueryContext(ctx, `
		SELECT speed_mps FROM telemetry_records
		WHERE object_id = ? AND ts_ms >= ?
		ORDER BY ts_ms ASC`,
		objectID, cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query speed samples: %w", err)
	}
	defer rows.Close()

	var speeds []float64
	for rows.Next() {
		var s float64
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan speed sample: %w", err)
		}
		speeds = append(speeds, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating speed samples: %w", err)
	}
	return speeds, nil
}
