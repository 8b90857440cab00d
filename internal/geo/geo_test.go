package geo

import "testing"

func TestBoundingBoxBoundaryInclusive(t *testing.T) {
	box := BoundingBox{MinLat: 10, MinLon: 10, MaxLat: 20, MaxLon: 20}

	inside := []struct{ lat, lon float64 }{
		{10, 15}, // south edge
		{20, 15}, // north edge
		{15, 10}, // west edge
		{15, 20}, // east edge
		{10, 10}, // corners
		{10, 20},
		{20, 10},
		{20, 20},
		{15, 15}, // interior
	}
	for _, p := range inside {
		if !box.Contains(p.lat, p.lon) {
			t.Errorf("Contains(%v, %v) = false, want true", p.lat, p.lon)
		}
	}

	outside := []struct{ lat, lon float64 }{
		{9, 15},
		{21, 15},
		{15, 9},
		{15, 21},
	}
	for _, p := range outside {
		if box.Contains(p.lat, p.lon) {
			t.Errorf("Contains(%v, %v) = true, want false", p.lat, p.lon)
		}
	}
}

func TestPolygonContainsTriangle(t *testing.T) {
	tri := Polygon{Vertices: []Vertex{
		{Lat: 0, Lon: 0},
		{Lat: 0, Lon: 10},
		{Lat: 10, Lon: 0},
	}}

	if !tri.Contains(3.33, 3.33) {
		t.Error("centroid should be inside the triangle")
	}
	if tri.Contains(20, 20) {
		t.Error("(20,20) should be outside the triangle")
	}
	// Points beyond the hypotenuse are outside even though they are inside
	// the triangle's bounding box.
	if tri.Contains(6, 6) {
		t.Error("(6,6) is past the hypotenuse, should be outside")
	}
}

func TestPolygonDegenerate(t *testing.T) {
	line := Polygon{Vertices: []Vertex{{Lat: 0, Lon: 0}, {Lat: 1, Lon: 1}}}
	if line.Valid() {
		t.Error("two-vertex polygon should not be valid")
	}
	if line.Contains(0.5, 0.5) {
		t.Error("degenerate polygon should contain nothing")
	}

	empty := Polygon{}
	if empty.Contains(0, 0) {
		t.Error("empty polygon should contain nothing")
	}
}

func TestParsePolygon(t *testing.T) {
	good := []byte(`[{"lat":0,"lon":0},{"lat":0,"lon":10},{"lat":10,"lon":0}]`)
	p, err := ParsePolygon(good)
	if err != nil {
		t.Fatalf("ParsePolygon failed: %v", err)
	}
	if len(p.Vertices) != 3 {
		t.Errorf("expected 3 vertices, got %d", len(p.Vertices))
	}

	if _, err := ParsePolygon([]byte(`not json`)); err == nil {
		t.Error("expected error for unparsable vertex data")
	}
	if _, err := ParsePolygon([]byte(`[{"lat":0,"lon":0}]`)); err == nil {
		t.Error("expected error for a ring with fewer than 3 vertices")
	}
}

func TestShapeContains(t *testing.T) {
	bbox := Shape{Kind: ShapeBBox, BBox: &BoundingBox{MinLat: 0, MinLon: 0, MaxLat: 1, MaxLon: 1}}
	if !bbox.Contains(0.5, 0.5) {
		t.Error("bbox shape should contain its interior")
	}

	poly := Shape{Kind: ShapePolygon, Polygon: &Polygon{Vertices: []Vertex{
		{Lat: 0, Lon: 0}, {Lat: 0, Lon: 4}, {Lat: 4, Lon: 4}, {Lat: 4, Lon: 0},
	}}}
	if !poly.Contains(2, 2) {
		t.Error("polygon shape should contain its interior")
	}

	// A shape with a missing payload or unknown kind contains no point.
	if (Shape{Kind: ShapeBBox}).Contains(0.5, 0.5) {
		t.Error("bbox shape without bounds should contain nothing")
	}
	if (Shape{Kind: ShapePolygon}).Contains(0.5, 0.5) {
		t.Error("polygon shape without a ring should contain nothing")
	}
	if (Shape{Kind: "circle"}).Contains(0.5, 0.5) {
		t.Error("unknown shape kind should contain nothing")
	}
}
