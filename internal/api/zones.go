package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/arctic-data/corridor/internal/db"
	"github.com/arctic-data/corridor/internal/geo"
	"github.com/arctic-data/corridor/internal/httputil"
)

func (s *Server) listZones(w http.ResponseWriter, r *http.Request) {
	zones, err := s.db.ListZones(r.Context())
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to retrieve zones: %v", err))
		return
	}
	if zones == nil {
		zones = []db.Zone{}
	}
	httputil.WriteJSONOK(w, zones)
}

// createZoneRequest is the wire form of a new zone. Exactly the fields for
// the declared shape kind must be present.
type createZoneRequest struct {
	Name     string            `json:"name"`
	Kind     string            `json:"kind"`
	MinLat   *float64          `json:"min_lat"`
	MinLon   *float64          `json:"min_lon"`
	MaxLat   *float64          `json:"max_lat"`
	MaxLon   *float64          `json:"max_lon"`
	Vertices []json.RawMessage `json:"vertices"`
	Enabled  *bool             `json:"enabled"`
}

func (req *createZoneRequest) validate() (*db.Zone, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("name is required")
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	z := &db.Zone{
		Name:      req.Name,
		ShapeKind: req.Kind,
		Enabled:   enabled,
	}

	switch geo.ShapeKind(req.Kind) {
	case geo.ShapeBBox:
		if req.MinLat == nil || req.MinLon == nil || req.MaxLat == nil || req.MaxLon == nil {
			return nil, fmt.Errorf("bbox zones require min_lat, min_lon, max_lat, max_lon")
		}
		if *req.MinLat > *req.MaxLat || *req.MinLon > *req.MaxLon {
			return nil, fmt.Errorf("bbox min bounds must not exceed max bounds")
		}
		z.MinLat, z.MinLon = req.MinLat, req.MinLon
		z.MaxLat, z.MaxLon = req.MaxLat, req.MaxLon
	case geo.ShapePolygon:
		raw, err := json.Marshal(req.Vertices)
		if err != nil {
			return nil, fmt.Errorf("failed to encode vertices: %w", err)
		}
		// Parse once up front so a malformed ring is rejected at creation
		// instead of surfacing as a geometry failure on every sweep.
		if _, err := geo.ParsePolygon(raw); err != nil {
			return nil, err
		}
		vertices := string(raw)
		z.Vertices = &vertices
	default:
		return nil, fmt.Errorf("kind must be %q or %q, got %q", geo.ShapeBBox, geo.ShapePolygon, req.Kind)
	}

	return z, nil
}

func (s *Server) createZone(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.GetMaxRequestBytes())

	var req createZoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid JSON body: %v", err))
		return
	}

	zone, err := req.validate()
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	if err := s.db.CreateZone(r.Context(), zone); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to create zone: %v", err))
		return
	}

	httputil.WriteJSONCreated(w, zone)
}

func (s *Server) deleteZone(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		httputil.BadRequest(w, "invalid zone id")
		return
	}

	if err := s.db.DeleteZone(r.Context(), id); err != nil {
		if err == db.ErrZoneNotFound {
			httputil.NotFound(w, fmt.Sprintf("zone %d not found", id))
			return
		}
		httputil.InternalServerError(w, fmt.Sprintf("failed to delete zone: %v", err))
		return
	}

	httputil.WriteJSONOK(w, map[string]string{"status": "deleted"})
}
