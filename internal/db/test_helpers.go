package db

import (
	"path/filepath"
	"testing"
	"time"
)

// Helper functions for creating pointer values
func strPtr(s string) *string {
	return &s
}

func floatPtr(f float64) *float64 {
	return &f
}

// setupTestDB opens a fresh sqlite database in a per-test temp directory.
// NewDB applies the full current schema, so no migrations run in tests.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := NewDB(dbPath)
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close test database: %v", err)
		}
	})
	return db
}

// createTestBBoxZone inserts an enabled bbox zone and returns it.
func createTestBBoxZone(t *testing.T, db *DB, name string, minLat, minLon, maxLat, maxLon float64) *Zone {
	t.Helper()

	zone := &Zone{
		Name:      name,
		ShapeKind: "bbox",
		MinLat:    floatPtr(minLat),
		MinLon:    floatPtr(minLon),
		MaxLat:    floatPtr(maxLat),
		MaxLon:    floatPtr(maxLon),
		Enabled:   true,
	}
	if err := db.CreateZone(t.Context(), zone); err != nil {
		t.Fatalf("CreateZone failed: %v", err)
	}
	return zone
}

// createTestPolygonZone inserts an enabled polygon zone from a JSON vertex
// ring and returns it.
func createTestPolygonZone(t *testing.T, db *DB, name, vertices string) *Zone {
	t.Helper()

	zone := &Zone{
		Name:      name,
		ShapeKind: "polygon",
		Vertices:  strPtr(vertices),
		Enabled:   true,
	}
	if err := db.CreateZone(t.Context(), zone); err != nil {
		t.Fatalf("CreateZone failed: %v", err)
	}
	return zone
}

// testTime returns a fixed UTC timestamp offset by the given number of
// seconds, so tests get deterministic ordering without sleeping.
func testTime(offsetSeconds int) time.Time {
	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	return base.Add(time.Duration(offsetSeconds) * time.Second)
}
