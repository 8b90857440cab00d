package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/arctic-data/corridor/internal/geo"
)

// Zone is an operator-defined region. ShapeKind selects which geometry
// payload is live: bbox zones carry the four bounds, polygon zones carry a
// JSON vertex ring in Vertices. A zone whose payload is missing or malformed
// contains no point (the sweep logs and moves on).
type Zone struct {
	ZoneID    int64     `json:"zone_id"`
	Name      string    `json:"name"`
	ShapeKind string    `json:"shape_kind"`
	MinLat    *float64  `json:"min_lat,omitempty"`
	MinLon    *float64  `json:"min_lon,omitempty"`
	MaxLat    *float64  `json:"max_lat,omitempty"`
	MaxLon    *float64  `json:"max_lon,omitempty"`
	Vertices  *string   `json:"vertices,omitempty"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
}

// Shape builds the geometry for containment testing. Incomplete bbox bounds
// or an unparsable vertex ring return an error; the caller records it as a
// geometry failure and treats the zone as containing nothing.
func (z *Zone) Shape() (geo.Shape, error) {
	switch geo.ShapeKind(z.ShapeKind) {
	case geo.ShapeBBox:
		if z.MinLat == nil || z.MinLon == nil || z.MaxLat == nil || z.MaxLon == nil {
			return geo.Shape{}, fmt.Errorf("zone %d: bbox bounds incomplete", z.ZoneID)
		}
		return geo.Shape{Kind: geo.ShapeBBox, BBox: &geo.BoundingBox{
			MinLat: *z.MinLat,
			MinLon: *z.MinLon,
			MaxLat: *z.MaxLat,
			MaxLon: *z.MaxLon,
		}}, nil
	case geo.ShapePolygon:
		if z.Vertices == nil {
			return geo.Shape{}, fmt.Errorf("zone %d: polygon vertices missing", z.ZoneID)
		}
		poly, err := geo.ParsePolygon([]byte(*z.Vertices))
		if err != nil {
			return geo.Shape{}, fmt.Errorf("zone %d: %w", z.ZoneID, err)
		}
		return geo.Shape{Kind: geo.ShapePolygon, Polygon: &poly}, nil
	default:
		return geo.Shape{}, fmt.Errorf("zone %d: unknown shape kind %q", z.ZoneID, z.ShapeKind)
	}
}

const zoneColumns = `
	zone_id, name, shape_kind, min_lat, min_lon, max_lat, max_lon,
	vertices, enabled, created_at
`

func scanZone(row interface{ Scan(...any) error }) (*Zone, error) {
	var z Zone
	var enabled int
	var createdAt int64
	err := row.Scan(
		&z.ZoneID, &z.Name, &z.ShapeKind,
		&z.MinLat, &z.MinLon, &z.MaxLat, &z.MaxLon,
		&z.Vertices, &enabled, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	z.Enabled = enabled == 1
	z.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &z, nil
}

// CreateZone inserts a new zone and backfills its ID.
func (db *DB) CreateZone(ctx context.Context, z *Zone) error {
	enabled := 0
	if z.Enabled {
		enabled = 1
	}
	result, err := db.ExecContext(ctx, `
		INSERT INTO zones (
			name, shape_kind, min_lat, min_lon, max_lat, max_lon, vertices, enabled
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		z.Name, z.ShapeKind, z.MinLat, z.MinLon, z.MaxLat, z.MaxLon, z.Vertices, enabled,
	)
	if err != nil {
		return fmt.Errorf("failed to create zone: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	z.ZoneID = id
	return nil
}

// GetZone retrieves a zone by ID.
func (db *DB) GetZone(ctx context.Context, id int64) (*Zone, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+zoneColumns+` FROM zones WHERE zone_id = ?`, id)
	z, err := scanZone(row)
	if err == sql.ErrNoRows {
		return nil, ErrZoneNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get zone: %w", err)
	}
	return z, nil
}

// ListZones returns the full catalog, enabled or not.
func (db *DB) ListZones(ctx context.Context) ([]Zone, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+zoneColumns+` FROM zones ORDER BY zone_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query zones: %w", err)
	}
	defer rows.Close()
	return collectZones(rows)
}

// EnabledZonesTx reads the enabled-zone snapshot inside an ingestion
// transaction. Disabled zones are excluded entirely: not evaluated, not
// reported, their ledger rows frozen in place.
func EnabledZonesTx(ctx context.Context, tx *sql.Tx) ([]Zone, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+zoneColumns+` FROM zones WHERE enabled = 1 ORDER BY zone_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query enabled zones: %w", err)
	}
	defer rows.Close()
	return collectZones(rows)
}

func collectZones(rows *sql.Rows) ([]Zone, error) {
	var zones []Zone
	for rows.Next() {
		z, err := scanZone(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan zone: %w", err)
		}
		zones = append(zones, *z)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating zones: %w", err)
	}
	return zones, nil
}

// DeleteZone removes a zone and, through the ON DELETE CASCADE foreign key,
// every object_zone_state row that references it, in one transaction.
func (db *DB) DeleteZone(ctx context.Context, id int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `DELETE FROM zones WHERE zone_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete zone: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrZoneNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit zone delete: %w", err)
	}
	return nil
}
