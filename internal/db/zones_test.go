package db

import (
	"context"
	"database/sql"
	"testing"
	"time"
)

func TestCreateAndGetZone(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	zone := createTestBBoxZone(t, db, "harbour", 10, 10, 20, 20)
	if zone.ZoneID == 0 {
		t.Fatal("expected zone ID to be set after creation")
	}

	retrieved, err := db.GetZone(ctx, zone.ZoneID)
	if err != nil {
		t.Fatalf("GetZone failed: %v", err)
	}
	if retrieved.Name != "harbour" {
		t.Errorf("Name = %q, want harbour", retrieved.Name)
	}
	if !retrieved.Enabled {
		t.Error("expected zone to be enabled")
	}
	if retrieved.MinLat == nil || *retrieved.MinLat != 10 {
		t.Error("bbox bounds not round-tripped")
	}
}

func TestGetZoneNotFound(t *testing.T) {
	db := setupTestDB(t)

	if _, err := db.GetZone(context.Background(), 12345); err != ErrZoneNotFound {
		t.Errorf("expected ErrZoneNotFound, got %v", err)
	}
}

func TestEnabledZonesExcludesDisabled(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	createTestBBoxZone(t, db, "active", 0, 0, 1, 1)
	disabled := &Zone{
		Name:      "dormant",
		ShapeKind: "bbox",
		MinLat:    floatPtr(0),
		MinLon:    floatPtr(0),
		MaxLat:    floatPtr(1),
		MaxLon:    floatPtr(1),
		Enabled:   false,
	}
	if err := db.CreateZone(ctx, disabled); err != nil {
		t.Fatalf("CreateZone failed: %v", err)
	}

	var enabled []Zone
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("BeginTx failed: %v", err)
	}
	enabled, err = EnabledZonesTx(ctx, tx)
	tx.Rollback()
	if err != nil {
		t.Fatalf("EnabledZonesTx failed: %v", err)
	}

	if len(enabled) != 1 {
		t.Fatalf("expected 1 enabled zone, got %d", len(enabled))
	}
	if enabled[0].Name != "active" {
		t.Errorf("enabled zone = %q, want active", enabled[0].Name)
	}

	all, err := db.ListZones(ctx)
	if err != nil {
		t.Fatalf("ListZones failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("ListZones should include disabled zones, got %d", len(all))
	}
}

func TestZoneShapeBBox(t *testing.T) {
	zone := &Zone{ZoneID: 1, ShapeKind: "bbox",
		MinLat: floatPtr(10), MinLon: floatPtr(10),
		MaxLat: floatPtr(20), MaxLon: floatPtr(20)}

	shape, err := zone.Shape()
	if err != nil {
		t.Fatalf("Shape failed: %v", err)
	}
	if !shape.Contains(15, 15) {
		t.Error("expected interior point to be contained")
	}
}

func TestZoneShapeErrors(t *testing.T) {
	cases := []struct {
		name string
		zone Zone
	}{
		{"bbox missing bounds", Zone{ZoneID: 1, ShapeKind: "bbox", MinLat: floatPtr(1)}},
		{"polygon missing vertices", Zone{ZoneID: 2, ShapeKind: "polygon"}},
		{"polygon bad json", Zone{ZoneID: 3, ShapeKind: "polygon", Vertices: strPtr("nope")}},
		{"polygon too few vertices", Zone{ZoneID: 4, ShapeKind: "polygon", Vertices: strPtr(`[{"lat":0,"lon":0}]`)}},
		{"unknown kind", Zone{ZoneID: 5, ShapeKind: "circle"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.zone.Shape(); err == nil {
				t.Error("expected shape error")
			}
		})
	}
}

func TestDeleteZoneCascadesLedger(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	zone := createTestBBoxZone(t, db, "harbour", 10, 10, 20, 20)
	keep := createTestBBoxZone(t, db, "keeper", 30, 30, 40, 40)

	withTx(t, db, func(tx *sql.Tx) error {
		if err := UpsertObjectZoneStateTx(ctx, tx, "uav-1", zone.ZoneID, true, testTime(0)); err != nil {
			return err
		}
		return UpsertObjectZoneStateTx(ctx, tx, "uav-1", keep.ZoneID, false, testTime(0))
	})

	if err := db.DeleteZone(ctx, zone.ZoneID); err != nil {
		t.Fatalf("DeleteZone failed: %v", err)
	}

	n, err := db.CountZoneStates(ctx, zone.ZoneID)
	if err != nil {
		t.Fatalf("CountZoneStates failed: %v", err)
	}
	if n != 0 {
		t.Errorf("expected deleted zone's ledger rows to cascade, found %d", n)
	}

	n, err = db.CountZoneStates(ctx, keep.ZoneID)
	if err != nil {
		t.Fatalf("CountZoneStates failed: %v", err)
	}
	if n != 1 {
		t.Errorf("unrelated zone's ledger rows must survive, found %d", n)
	}

	if _, err := db.GetZone(ctx, zone.ZoneID); err != ErrZoneNotFound {
		t.Errorf("expected ErrZoneNotFound after delete, got %v", err)
	}
}

func TestDeleteZoneCascadesAcrossConnections(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	zone := createTestBBoxZone(t, db, "harbour", 10, 10, 20, 20)
	withTx(t, db, func(tx *sql.Tx) error {
		return UpsertObjectZoneStateTx(ctx, tx, "uav-1", zone.ZoneID, true, testTime(0))
	})

	// Discard every connection opened so far; the delete below runs on a
	// fresh one, which must still enforce foreign keys.
	db.SetMaxIdleConns(0)
	db.SetConnMaxLifetime(time.Nanosecond)
	time.Sleep(time.Millisecond)

	if err := db.DeleteZone(ctx, zone.ZoneID); err != nil {
		t.Fatalf("DeleteZone failed: %v", err)
	}
	db.SetConnMaxLifetime(0)

	n, err := db.CountZoneStates(ctx, zone.ZoneID)
	if err != nil {
		t.Fatalf("CountZoneStates failed: %v", err)
	}
	if n != 0 {
		t.Errorf("cascade did not fire on a fresh connection: %d orphaned ledger rows", n)
	}
}

func TestDeleteZoneNotFound(t *testing.T) {
	db := setupTestDB(t)

	if err := db.DeleteZone(context.Background(), 999); err != ErrZoneNotFound {
		t.Errorf("expected ErrZoneNotFound, got %v", err)
	}
}

func TestObjectZoneStateRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	zone := createTestBBoxZone(t, db, "harbour", 10, 10, 20, 20)

	withTx(t, db, func(tx *sql.Tx) error {
		state, err := GetObjectZoneStateTx(ctx, tx, "uav-1", zone.ZoneID)
		if err != nil {
			return err
		}
		if state != nil {
			t.Error("expected no ledger row before first evaluation")
		}
		return UpsertObjectZoneStateTx(ctx, tx, "uav-1", zone.ZoneID, true, testTime(0))
	})

	withTx(t, db, func(tx *sql.Tx) error {
		state, err := GetObjectZoneStateTx(ctx, tx, "uav-1", zone.ZoneID)
		if err != nil {
			return err
		}
		if state == nil || !state.Inside {
			t.Fatal("expected inside=true after upsert")
		}
		// Second upsert moves the flag unconditionally, even backwards in time.
		return UpsertObjectZoneStateTx(ctx, tx, "uav-1", zone.ZoneID, false, testTime(-10))
	})

	withTx(t, db, func(tx *sql.Tx) error {
		state, err := GetObjectZoneStateTx(ctx, tx, "uav-1", zone.ZoneID)
		if err != nil {
			return err
		}
		if state == nil || state.Inside {
			t.Fatal("expected inside=false after second upsert")
		}
		if !state.UpdatedAt.Equal(testTime(-10)) {
			t.Errorf("UpdatedAt = %v, want %v", state.UpdatedAt, testTime(-10))
		}
		return nil
	})
}
