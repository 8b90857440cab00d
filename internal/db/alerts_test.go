package db

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func insertTestAlert(t *testing.T, db *DB, alert *AlertEvent) {
	t.Helper()
	withTx(t, db, func(tx *sql.Tx) error {
		return InsertAlertEventTx(context.Background(), tx, alert)
	})
	if alert.AlertID == 0 {
		t.Fatal("expected alert ID to be set after insert")
	}
}

func TestListAlertsDescendingPaged(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		insertTestAlert(t, db, &AlertEvent{
			Timestamp: testTime(i * 10),
			ObjectID:  "uav-1",
			Kind:      AlertEnter,
			Message:   "Object uav-1 entered zone harbour",
		})
	}

	page, err := db.ListAlerts(ctx, 2, 0)
	if err != nil {
		t.Fatalf("ListAlerts failed: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(page))
	}
	if !page[0].Timestamp.After(page[1].Timestamp) {
		t.Error("alerts should be newest first")
	}
	if !page[0].Timestamp.Equal(testTime(40)) {
		t.Errorf("first alert ts = %v, want %v", page[0].Timestamp, testTime(40))
	}

	next, err := db.ListAlerts(ctx, 2, 2)
	if err != nil {
		t.Fatalf("ListAlerts failed: %v", err)
	}
	if !next[0].Timestamp.Equal(testTime(20)) {
		t.Errorf("offset paging broken: got ts %v, want %v", next[0].Timestamp, testTime(20))
	}
}

func TestAlertRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	zoneID := int64(7)
	alert := &AlertEvent{
		Timestamp: testTime(0),
		ObjectID:  "uav-9",
		ZoneID:    &zoneID,
		Kind:      AlertLowConfidence,
		Message:   "Object uav-9 inside zone harbour with low confidence 0.30",
	}
	insertTestAlert(t, db, alert)

	got, err := db.GetAlert(ctx, alert.AlertID)
	if err != nil {
		t.Fatalf("GetAlert failed: %v", err)
	}
	if diff := cmp.Diff(alert, got); diff != "" {
		t.Errorf("alert round-trip mismatch (-want +got):\n%s", diff)
	}
}

func TestAcknowledgeAlertIdempotent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	alert := &AlertEvent{
		Timestamp: testTime(0),
		ObjectID:  "uav-1",
		Kind:      AlertEnter,
		Message:   "Object uav-1 entered zone harbour",
	}
	insertTestAlert(t, db, alert)

	if err := db.AcknowledgeAlert(ctx, alert.AlertID); err != nil {
		t.Fatalf("AcknowledgeAlert failed: %v", err)
	}

	got, err := db.GetAlert(ctx, alert.AlertID)
	if err != nil {
		t.Fatalf("GetAlert failed: %v", err)
	}
	if !got.Acknowledged {
		t.Fatal("expected alert to be acknowledged")
	}

	// Re-acknowledging succeeds and the flag never reverts.
	if err := db.AcknowledgeAlert(ctx, alert.AlertID); err != nil {
		t.Fatalf("second AcknowledgeAlert failed: %v", err)
	}
	got, err = db.GetAlert(ctx, alert.AlertID)
	if err != nil {
		t.Fatalf("GetAlert failed: %v", err)
	}
	if !got.Acknowledged {
		t.Error("acknowledgment must be monotone")
	}
}

func TestAcknowledgeAlertNotFound(t *testing.T) {
	db := setupTestDB(t)

	if err := db.AcknowledgeAlert(context.Background(), 424242); err != ErrAlertNotFound {
		t.Errorf("expected ErrAlertNotFound, got %v", err)
	}
}

func TestGetAlertNotFound(t *testing.T) {
	db := setupTestDB(t)

	if _, err := db.GetAlert(context.Background(), 424242); err != ErrAlertNotFound {
		t.Errorf("expected ErrAlertNotFound, got %v", err)
	}
}
