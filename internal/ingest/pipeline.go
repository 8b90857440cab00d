// Package ingest implements the telemetry ingestion pipeline: one telemetry
// point in, one atomic unit of work out (object state update, history append,
// zone sweep, membership ledger updates, alert inserts).
package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/arctic-data/corridor/internal/db"
)

// DefaultLowConfidenceThreshold is the confidence below which a point inside
// a zone raises a LOW_CONFIDENCE alert.
const DefaultLowConfidenceThreshold = 0.5

// Point is one validated telemetry observation. Callers (the API layer)
// guarantee ranges and a timezone-aware timestamp before it reaches the
// pipeline.
type Point struct {
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

// ZoneLookup answers "which zones could contain this point". The default is
// a linear scan over every enabled zone, which is fine at small catalog
// sizes; a spatial index can slot in behind this interface without touching
// the transition detector.
type ZoneLookup interface {
	Candidates(ctx context.Context, tx *sql.Tx, lat, lon float64) ([]db.Zone, error)
}

// LinearScan is the default ZoneLookup: every enabled zone is a candidate.
type LinearScan struct{}

func (LinearScan) Candidates(ctx context.Context, tx *sql.Tx, lat, lon float64) ([]db.Zone, error) {
	return db.EnabledZonesTx(ctx, tx)
}

// AlertPublisher receives alerts after their transaction has committed.
// Publish failures are logged, never surfaced to the ingesting caller.
type AlertPublisher interface {
	Publish(ctx context.Context, alerts []db.AlertEvent) error
}

// Pipeline ingests telemetry points against the zone catalog.
type Pipeline struct {
	db        *db.DB
	zones     ZoneLookup
	publisher AlertPublisher // optional
	threshold float64
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithZoneLookup replaces the default linear scan.
func WithZoneLookup(zl ZoneLookup) Option {
	return func(p *Pipeline) { p.zones = zl }
}

// WithAlertPublisher forwards committed alerts to an external stream.
func WithAlertPublisher(pub AlertPublisher) Option {
	return func(p *Pipeline) { p.publisher = pub }
}

// WithLowConfidenceThreshold overrides the LOW_CONFIDENCE cutoff.
func WithLowConfidenceThreshold(threshold float64) Option {
	return func(p *Pipeline) { p.threshold = threshold }
}

// NewPipeline creates a Pipeline over the given store.
func NewPipeline(database *db.DB, opts ...Option) *Pipeline {
	p := &Pipeline{
		db:        database,
		zones:     LinearScan{},
		threshold: DefaultLowConfidenceThreshold,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ingest processes one telemetry point as a single transaction: update the
// tracked object, append a history record, evaluate every candidate zone,
// update the membership ledger, and insert any alerts. Either all of it
// commits or none of it does; a storage failure rolls back everything and is
// returned to the caller.
//
// sqlite admits one writer at a time, so two concurrent points for the same
// object cannot interleave their ledger read-modify-write; the busy_timeout
// pragma turns contention into a bounded wait instead of an error.
func (p *Pipeline) Ingest(ctx context.Context, point Point) (*db.TrackedObject, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin ingestion transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			log.Printf("warning: failed to rollback ingestion transaction: %v", err)
		}
	}()

	obj, err := db.UpsertTrackedObjectTx(ctx, tx, db.ObjectUpsert{
		ObjectID:   point.ObjectID,
		Timestamp:  point.Timestamp,
		Lat:        point.Lat,
		Lon:        point.Lon,
		AltM:       point.AltM,
		Confidence: point.Confidence,
		SpeedMps:   point.SpeedMps,
		HeadingDeg: point.HeadingDeg,
		RssiDbm:    point.RssiDbm,
		BatteryPct: point.BatteryPct,
	})
	if err != nil {
		return nil, err
	}

	if err := db.InsertTelemetryRecordTx(ctx, tx, &db.TelemetryRecord{
		ObjectID:   point.ObjectID,
		Timestamp:  point.Timestamp,
		Lat:        point.Lat,
		Lon:        point.Lon,
		AltM:       point.AltM,
		Confidence: point.Confidence,
		SpeedMps:   point.SpeedMps,
		HeadingDeg: point.HeadingDeg,
		RssiDbm:    point.RssiDbm,
		BatteryPct: point.BatteryPct,
	}); err != nil {
		return nil, err
	}

	zones, err := p.zones.Candidates(ctx, tx, point.Lat, point.Lon)
	if err != nil {
		return nil, err
	}

	var alerts []db.AlertEvent
	for i := range zones {
		zoneAlerts, err := p.evaluateZone(ctx, tx, &zones[i], point)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, zoneAlerts...)
	}

	for i := range alerts {
		if err := db.InsertAlertEventTx(ctx, tx, &alerts[i]); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit ingestion transaction: %w", err)
	}

	if p.publisher != nil && len(alerts) > 0 {
		if err := p.publisher.Publish(ctx, alerts); err != nil {
			log.Printf("failed to publish %d alerts for object %s: %v", len(alerts), point.ObjectID, err)
		}
	}

	return obj, nil
}

// evaluateZone runs the per-(object, zone) state machine for one point.
//
// States are {no-row, OUTSIDE, INSIDE}. A missing row observed outside is
// created silently; observed inside it is created and raises ENTER (first
// contact while inside is alert-worthy even without a prior outside state).
// An existing row raises ENTER on false→true and EXIT on true→false.
// Independently, any point inside with confidence below the threshold raises
// LOW_CONFIDENCE — on every such point, with no suppression window. The
// ledger row always moves to this point's result and timestamp.
func (p *Pipeline) evaluateZone(ctx context.Context, tx *sql.Tx, zone *db.Zone, point Point) ([]db.AlertEvent, error) {
	isNowInside := false
	shape, err := zone.Shape()
	if err != nil {
		// Geometry failure: this zone contains nothing, but one bad zone
		// must not abort the sweep over the rest of the catalog.
		log.Printf("zone %d (%s): unusable geometry, treating as outside: %v", zone.ZoneID, zone.Name, err)
	} else {
		isNowInside = shape.Contains(point.Lat, point.Lon)
	}

	prev, err := db.GetObjectZoneStateTx(ctx, tx, point.ObjectID, zone.ZoneID)
	if err != nil {
		return nil, err
	}

	var alerts []db.AlertEvent
	addAlert := func(kind db.AlertKind, message string) {
		zoneID := zone.ZoneID
		alerts = append(alerts, db.AlertEvent{
			Timestamp: point.Timestamp,
			ObjectID:  point.ObjectID,
			ZoneID:    &zoneID,
			Kind:      kind,
			Message:   message,
		})
	}

	switch {
	case prev == nil && isNowInside:
		addAlert(db.AlertEnter,
			fmt.Sprintf("Object %s entered zone %s", point.ObjectID, zone.Name))
	case prev != nil && !prev.Inside && isNowInside:
		addAlert(db.AlertEnter,
			fmt.Sprintf("Object %s entered zone %s", point.ObjectID, zone.Name))
	case prev != nil && prev.Inside && !isNowInside:
		addAlert(db.AlertExit,
			fmt.Sprintf("Object %s exited zone %s", point.ObjectID, zone.Name))
	}

	if isNowInside && point.Confidence < p.threshold {
		addAlert(db.AlertLowConfidence,
			fmt.Sprintf("Object %s inside zone %s with low confidence %.2f",
				point.ObjectID, zone.Name, point.Confidence))
	}

	if err := db.UpsertObjectZoneStateTx(ctx, tx, point.ObjectID, zone.ZoneID, isNowInside, point.Timestamp); err != nil {
		return nil, err
	}

	return alerts, nil
}
