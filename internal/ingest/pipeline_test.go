package ingest

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arctic-data/corridor/internal/db"
)

func setupTestDB(t *testing.T) *db.DB {
	t.Helper()

	database, err := db.NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err, "NewDB failed")
	t.Cleanup(func() { database.Close() })
	return database
}

func createBBoxZone(t *testing.T, database *db.DB, name string, minLat, minLon, maxLat, maxLon float64, enabled bool) *db.Zone {
	t.Helper()

	zone := &db.Zone{
		Name:      name,
		ShapeKind: "bbox",
		MinLat:    &minLat,
		MinLon:    &minLon,
		MaxLat:    &maxLat,
		MaxLon:    &maxLon,
		Enabled:   enabled,
	}
	require.NoError(t, database.CreateZone(t.Context(), zone), "CreateZone failed")
	return zone
}

func testPoint(objectID string, ts time.Time, lat, lon, confidence float64) Point {
	return Point{
		ObjectID:   objectID,
		Timestamp:  ts,
		Lat:        lat,
		Lon:        lon,
		Confidence: confidence,
		SpeedMps:   4.2,
		HeadingDeg: 90,
	}
}

func allAlerts(t *testing.T, database *db.DB) []db.AlertEvent {
	t.Helper()
	alerts, err := database.ListAlerts(t.Context(), 100, 0)
	require.NoError(t, err, "ListAlerts failed")
	return alerts
}

var baseTime = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func TestFirstSightingInsideEmitsEnter(t *testing.T) {
	database := setupTestDB(t)
	zone := createBBoxZone(t, database, "harbour", 10, 10, 20, 20, true)
	p := NewPipeline(database)

	obj, err := p.Ingest(t.Context(), testPoint("uav-1", baseTime, 15, 15, 0.9))
	require.NoError(t, err)
	assert.Equal(t, "uav-1", obj.ObjectID)

	alerts := allAlerts(t, database)
	require.Len(t, alerts, 1)
	assert.Equal(t, db.AlertEnter, alerts[0].Kind)
	assert.Equal(t, "uav-1", alerts[0].ObjectID)
	require.NotNil(t, alerts[0].ZoneID)
	assert.Equal(t, zone.ZoneID, *alerts[0].ZoneID)
	assert.Equal(t, "Object uav-1 entered zone harbour", alerts[0].Message)
}

func TestFirstSightingOutsideIsSilent(t *testing.T) {
	database := setupTestDB(t)
	zone := createBBoxZone(t, database, "harbour", 10, 10, 20, 20, true)
	p := NewPipeline(database)

	_, err := p.Ingest(t.Context(), testPoint("uav-1", baseTime, 50, 50, 0.9))
	require.NoError(t, err)

	assert.Empty(t, allAlerts(t, database))

	// The ledger row exists with inside=false even though nothing alerted.
	n, err := database.CountZoneStates(t.Context(), zone.ZoneID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestIdempotentReEvaluationInside(t *testing.T) {
	database := setupTestDB(t)
	createBBoxZone(t, database, "harbour", 10, 10, 20, 20, true)
	p := NewPipeline(database)

	_, err := p.Ingest(t.Context(), testPoint("uav-1", baseTime, 15, 15, 0.9))
	require.NoError(t, err)
	_, err = p.Ingest(t.Context(), testPoint("uav-1", baseTime.Add(10*time.Second), 16, 16, 0.9))
	require.NoError(t, err)

	alerts := allAlerts(t, database)
	require.Len(t, alerts, 1, "inside→inside must not repeat ENTER")
	assert.Equal(t, db.AlertEnter, alerts[0].Kind)
}

func TestTransitionPairEnterThenExit(t *testing.T) {
	database := setupTestDB(t)
	createBBoxZone(t, database, "harbour", 10, 10, 20, 20, true)
	p := NewPipeline(database)

	ctx := t.Context()
	_, err := p.Ingest(ctx, testPoint("uav-1", baseTime, 50, 50, 0.9))
	require.NoError(t, err)
	_, err = p.Ingest(ctx, testPoint("uav-1", baseTime.Add(10*time.Second), 15, 15, 0.9))
	require.NoError(t, err)
	_, err = p.Ingest(ctx, testPoint("uav-1", baseTime.Add(20*time.Second), 50, 50, 0.9))
	require.NoError(t, err)

	alerts := allAlerts(t, database)
	require.Len(t, alerts, 2)
	// ListAlerts is newest first.
	assert.Equal(t, db.AlertExit, alerts[0].Kind)
	assert.Equal(t, db.AlertEnter, alerts[1].Kind)
}

func TestLowConfidenceRepeatsWhileInside(t *testing.T) {
	database := setupTestDB(t)
	createBBoxZone(t, database, "harbour", 10, 10, 20, 20, true)
	p := NewPipeline(database)

	ctx := t.Context()
	_, err := p.Ingest(ctx, testPoint("uav-1", baseTime, 15, 15, 0.3))
	require.NoError(t, err)
	_, err = p.Ingest(ctx, testPoint("uav-1", baseTime.Add(10*time.Second), 15, 15, 0.25))
	require.NoError(t, err)

	var enters, lows int
	for _, a := range allAlerts(t, database) {
		switch a.Kind {
		case db.AlertEnter:
			enters++
		case db.AlertLowConfidence:
			lows++
		}
	}
	assert.Equal(t, 1, enters, "exactly one ENTER")
	assert.Equal(t, 2, lows, "LOW_CONFIDENCE fires on every qualifying point")
}

func TestLowConfidenceMessageFormat(t *testing.T) {
	database := setupTestDB(t)
	createBBoxZone(t, database, "harbour", 10, 10, 20, 20, true)
	p := NewPipeline(database)

	_, err := p.Ingest(t.Context(), testPoint("uav-7", baseTime, 15, 15, 0.3))
	require.NoError(t, err)

	var found bool
	for _, a := range allAlerts(t, database) {
		if a.Kind == db.AlertLowConfidence {
			found = true
			assert.Equal(t, "Object uav-7 inside zone harbour with low confidence 0.30", a.Message)
		}
	}
	assert.True(t, found, "expected a LOW_CONFIDENCE alert")
}

func TestLowConfidenceOutsideDoesNotAlert(t *testing.T) {
	database := setupTestDB(t)
	createBBoxZone(t, database, "harbour", 10, 10, 20, 20, true)
	p := NewPipeline(database)

	_, err := p.Ingest(t.Context(), testPoint("uav-1", baseTime, 50, 50, 0.1))
	require.NoError(t, err)

	assert.Empty(t, allAlerts(t, database), "confidence check only applies while inside a zone")
}

func TestDisabledZoneExcluded(t *testing.T) {
	database := setupTestDB(t)
	zone := createBBoxZone(t, database, "dormant", 10, 10, 20, 20, false)
	p := NewPipeline(database)

	_, err := p.Ingest(t.Context(), testPoint("uav-1", baseTime, 15, 15, 0.9))
	require.NoError(t, err)

	assert.Empty(t, allAlerts(t, database))
	n, err := database.CountZoneStates(t.Context(), zone.ZoneID)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "disabled zones are not evaluated at all")
}

func TestMonotonicUpdatePolicy(t *testing.T) {
	database := setupTestDB(t)
	p := NewPipeline(database)
	ctx := t.Context()

	newer := testPoint("uav-1", baseTime.Add(time.Minute), 15, 15, 0.9)
	battery := 80.0
	newer.BatteryPct = &battery
	_, err := p.Ingest(ctx, newer)
	require.NoError(t, err)

	// A late point with an older timestamp must not regress the latest
	// position but still refreshes the auxiliary telemetry fields.
	stale := testPoint("uav-1", baseTime, 99, 99, 0.1)
	stale.SpeedMps = 1.5
	stale.HeadingDeg = 270
	lowBattery := 12.0
	stale.BatteryPct = &lowBattery

	obj, err := p.Ingest(ctx, stale)
	require.NoError(t, err)

	assert.Equal(t, 15.0, obj.LastLat)
	assert.Equal(t, 15.0, obj.LastLon)
	assert.Equal(t, 0.9, obj.LastConfidence)
	assert.Equal(t, baseTime.Add(time.Minute).UnixMilli(), obj.LastSeen.UnixMilli())

	require.NotNil(t, obj.SpeedMps)
	assert.Equal(t, 1.5, *obj.SpeedMps)
	require.NotNil(t, obj.HeadingDeg)
	assert.Equal(t, 270.0, *obj.HeadingDeg)
	require.NotNil(t, obj.BatteryPct)
	assert.Equal(t, 12.0, *obj.BatteryPct)
}

func TestTimestampTieFavorsIncomingPoint(t *testing.T) {
	database := setupTestDB(t)
	p := NewPipeline(database)
	ctx := t.Context()

	_, err := p.Ingest(ctx, testPoint("uav-1", baseTime, 10, 10, 0.5))
	require.NoError(t, err)

	obj, err := p.Ingest(ctx, testPoint("uav-1", baseTime, 11, 11, 0.6))
	require.NoError(t, err)

	assert.Equal(t, 11.0, obj.LastLat, "last write wins on a timestamp tie")
	assert.Equal(t, 0.6, obj.LastConfidence)
}

func TestEveryPointAppendsHistory(t *testing.T) {
	database := setupTestDB(t)
	p := NewPipeline(database)
	ctx := t.Context()

	_, err := p.Ingest(ctx, testPoint("uav-1", baseTime.Add(time.Minute), 15, 15, 0.9))
	require.NoError(t, err)
	// Stale point: no position update, but the history record still lands.
	_, err = p.Ingest(ctx, testPoint("uav-1", baseTime, 14, 14, 0.8))
	require.NoError(t, err)

	history, err := database.ObjectHistory(ctx, "uav-1", 10)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestMalformedPolygonDoesNotAbortSweep(t *testing.T) {
	database := setupTestDB(t)

	broken := "{this is not json"
	require.NoError(t, database.CreateZone(t.Context(), &db.Zone{
		Name:      "broken",
		ShapeKind: "polygon",
		Vertices:  &broken,
		Enabled:   true,
	}))
	createBBoxZone(t, database, "harbour", 10, 10, 20, 20, true)

	p := NewPipeline(database)
	_, err := p.Ingest(t.Context(), testPoint("uav-1", baseTime, 15, 15, 0.9))
	require.NoError(t, err, "a malformed zone must not fail ingestion")

	alerts := allAlerts(t, database)
	require.Len(t, alerts, 1, "the healthy zone is still evaluated")
	assert.Equal(t, db.AlertEnter, alerts[0].Kind)
}

func TestPolygonZoneTransitions(t *testing.T) {
	database := setupTestDB(t)
	ring := `[{"lat":0,"lon":0},{"lat":0,"lon":10},{"lat":10,"lon":10},{"lat":10,"lon":0}]`
	require.NoError(t, database.CreateZone(t.Context(), &db.Zone{
		Name:      "quadrant",
		ShapeKind: "polygon",
		Vertices:  &ring,
		Enabled:   true,
	}))

	p := NewPipeline(database)
	ctx := t.Context()
	_, err := p.Ingest(ctx, testPoint("uav-2", baseTime, 5, 5, 0.9))
	require.NoError(t, err)
	_, err = p.Ingest(ctx, testPoint("uav-2", baseTime.Add(10*time.Second), 50, 50, 0.9))
	require.NoError(t, err)

	alerts := allAlerts(t, database)
	require.Len(t, alerts, 2)
	assert.Equal(t, db.AlertExit, alerts[0].Kind)
	assert.Equal(t, db.AlertEnter, alerts[1].Kind)
}

// failingLookup returns an error mid-sweep to force a rollback after the
// object upsert and history append have already executed in the transaction.
type failingLookup struct{}

func (failingLookup) Candidates(ctx context.Context, tx *sql.Tx, lat, lon float64) ([]db.Zone, error) {
	return nil, errors.New("store unavailable")
}

func TestIngestionFailureLeavesNoPartialWrites(t *testing.T) {
	database := setupTestDB(t)
	createBBoxZone(t, database, "harbour", 10, 10, 20, 20, true)

	p := NewPipeline(database, WithZoneLookup(failingLookup{}))
	_, err := p.Ingest(t.Context(), testPoint("uav-1", baseTime, 15, 15, 0.9))
	require.Error(t, err)

	_, err = database.GetTrackedObject(t.Context(), "uav-1")
	assert.ErrorIs(t, err, db.ErrObjectNotFound, "object upsert must roll back")

	history, err := database.ObjectHistory(t.Context(), "uav-1", 10)
	require.NoError(t, err)
	assert.Empty(t, history, "history append must roll back")

	assert.Empty(t, allAlerts(t, database))
}

// recordingPublisher captures alerts delivered after commit.
type recordingPublisher struct {
	batches [][]db.AlertEvent
}

func (r *recordingPublisher) Publish(ctx context.Context, alerts []db.AlertEvent) error {
	r.batches = append(r.batches, alerts)
	return nil
}

func TestCommittedAlertsReachPublisher(t *testing.T) {
	database := setupTestDB(t)
	createBBoxZone(t, database, "harbour", 10, 10, 20, 20, true)

	pub := &recordingPublisher{}
	p := NewPipeline(database, WithAlertPublisher(pub))

	ctx := t.Context()
	_, err := p.Ingest(ctx, testPoint("uav-1", baseTime, 15, 15, 0.9))
	require.NoError(t, err)
	// No transition, no alerts, no publish.
	_, err = p.Ingest(ctx, testPoint("uav-1", baseTime.Add(10*time.Second), 16, 16, 0.9))
	require.NoError(t, err)

	require.Len(t, pub.batches, 1)
	require.Len(t, pub.batches[0], 1)
	assert.Equal(t, db.AlertEnter, pub.batches[0][0].Kind)
	assert.NotZero(t, pub.batches[0][0].AlertID, "published alerts carry their committed IDs")
}

func TestConfigurableConfidenceThreshold(t *testing.T) {
	database := setupTestDB(t)
	createBBoxZone(t, database, "harbour", 10, 10, 20, 20, true)

	p := NewPipeline(database, WithLowConfidenceThreshold(0.9))
	_, err := p.Ingest(t.Context(), testPoint("uav-1", baseTime, 15, 15, 0.85))
	require.NoError(t, err)

	var lows int
	for _, a := range allAlerts(t, database) {
		if a.Kind == db.AlertLowConfidence {
			lows++
		}
	}
	assert.Equal(t, 1, lows)
}
