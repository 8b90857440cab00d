// Package geo implements containment tests for operator-defined zones.
//
// Zones are planar regions on (longitude, latitude): either an axis-aligned
// bounding box or a simple polygon ring. All tests treat longitude as the
// x-axis and latitude as the y-axis; no great-circle math is performed.
package geo

import (
	"encoding/json"
	"fmt"
)

// ShapeKind selects which geometry a zone carries.
type ShapeKind string

const (
	ShapeBBox    ShapeKind = "bbox"
	ShapePolygon ShapeKind = "polygon"
)

// BoundingBox is an axis-aligned region. All four edges (and corners) are
// inclusive: a point exactly on the boundary is inside.
type BoundingBox struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// Contains reports whether (lat, lon) falls within the box, boundary inclusive.
func (b BoundingBox) Contains(lat, lon float64) bool {
	return b.MinLat <= lat && lat <= b.MaxLat &&
		b.MinLon <= lon && lon <= b.MaxLon
}

// Vertex is one corner of a polygon ring.
type Vertex struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Polygon is an ordered simple (non-self-intersecting) ring of vertices.
// The ring is closed implicitly: the last vertex connects back to the first.
type Polygon struct {
	Vertices []Vertex
}

// Valid reports whether the polygon has enough vertices to enclose area.
func (p Polygon) Valid() bool {
	return len(p.Vertices) >= 3
}

// Contains runs an even-odd ray cast on (x=lon, y=lat). Degenerate polygons
// (fewer than 3 vertices) contain nothing.
func (p Polygon) Contains(lat, lon float64) bool {
	if !p.Valid() {
		return false
	}

	x, y := lon, lat
	inside := false
	n := len(p.Vertices)
	j := n - 1
	for i := 0; i < n; i++ {
		xi, yi := p.Vertices[i].Lon, p.Vertices[i].Lat
		xj, yj := p.Vertices[j].Lon, p.Vertices[j].Lat

		if (yi > y) != (yj > y) &&
			x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
		j = i
	}
	return inside
}

// ParsePolygon decodes a JSON vertex list of the form
// [{"lat":..,"lon":..}, ...]. An unparsable or degenerate ring returns an
// error; callers in the zone sweep treat that as contains=false.
func ParsePolygon(data []byte) (Polygon, error) {
	var verts []Vertex
	if err := json.Unmarshal(data, &verts); err != nil {
		return Polygon{}, fmt.Errorf("failed to parse polygon vertices: %w", err)
	}
	p := Polygon{Vertices: verts}
	if !p.Valid() {
		return Polygon{}, fmt.Errorf("polygon requires at least 3 vertices, got %d", len(verts))
	}
	return p, nil
}

// Shape is the tagged union a zone evaluates against. Exactly one of the
// payloads is meaningful, selected by Kind; a shape whose payload is missing
// or malformed contains no point.
type Shape struct {
	Kind    ShapeKind
	BBox    *BoundingBox
	Polygon *Polygon
}

// Contains evaluates the shape at (lat, lon). It never fails: unknown kinds
// and absent payloads are simply outside, so one bad zone cannot abort a
// sweep over the rest of the catalog.
func (s Shape) Contains(lat, lon float64) bool {
	switch s.Kind {
	case ShapeBBox:
		if s.BBox == nil {
			return false
		}
		return s.BBox.Contains(lat, lon)
	case ShapePolygon:
		if s.Polygon == nil {
			return false
		}
		return s.Polygon.Contains(lat, lon)
	default:
		return false
	}
}
