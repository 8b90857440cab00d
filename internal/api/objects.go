package api

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/stat"

	"github.com/arctic-data/corridor/internal/db"
	"github.com/arctic-data/corridor/internal/httputil"
	"github.com/arctic-data/corridor/internal/units"
)

func (s *Server) listObjects(w http.ResponseWriter, r *http.Request) {
	objects, err := s.db.ListTrackedObjects(r.Context())
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to retrieve objects: %v", err))
		return
	}

	for i := range objects {
		objects[i] = s.convertObjectSpeed(objects[i])
	}
	if objects == nil {
		objects = []db.TrackedObject{}
	}
	httputil.WriteJSONOK(w, objects)
}

func (s *Server) objectHistory(w http.ResponseWriter, r *http.Request) {
	objectID := r.PathValue("id")

	limit := s.cfg.GetHistoryPageSize()
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			httputil.BadRequest(w, "invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	// 404 for identifiers that have never been sighted, empty list only
	// when the object exists but the window is empty.
	if _, err := s.db.GetTrackedObject(r.Context(), objectID); err != nil {
		if err == db.ErrObjectNotFound {
			httputil.NotFound(w, fmt.Sprintf("object %s not found", objectID))
			return
		}
		httputil.InternalServerError(w, fmt.Sprintf("failed to retrieve object: %v", err))
		return
	}

	records, err := s.db.ObjectHistory(r.Context(), objectID, limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to retrieve history: %v", err))
		return
	}
	if records == nil {
		records = []db.TelemetryRecord{}
	}
	httputil.WriteJSONOK(w, records)
}

// objectSpeedStats is the percentile rollup for one object's recent speeds.
type objectSpeedStats struct {
	ObjectID string  `json:"object_id"`
	Days     int     `json:"days"`
	Count    int     `json:"count"`
	P50Speed float64 `json:"p50_speed"`
	P85Speed float64 `json:"p85_speed"`
	P98Speed float64 `json:"p98_speed"`
	MaxSpeed float64 `json:"max_speed"`
	Units    string  `json:"units"`
}

func (s *Server) objectStats(w http.ResponseWriter, r *http.Request) {
	objectID := r.PathValue("id")

	days := s.cfg.GetStatsWindowDays()
	if d := r.URL.Query().Get("days"); d != "" {
		parsed, err := strconv.Atoi(d)
		if err != nil || parsed < 1 {
			httputil.BadRequest(w, "invalid 'days' parameter")
			return
		}
		days = parsed
	}

	if _, err := s.db.GetTrackedObject(r.Context(), objectID); err != nil {
		if err == db.ErrObjectNotFound {
			httputil.NotFound(w, fmt.Sprintf("object %s not found", objectID))
			return
		}
		httputil.InternalServerError(w, fmt.Sprintf("failed to retrieve object: %v", err))
		return
	}

	speeds, err := s.db.SpeedSamples(r.Context(), objectID, days)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to retrieve speed samples: %v", err))
		return
	}

	stats := objectSpeedStats{
		ObjectID: objectID,
		Days:     days,
		Count:    len(speeds),
		Units:    s.units,
	}
	if len(speeds) > 0 {
		sort.Float64s(speeds)
		stats.P50Speed = units.ConvertSpeed(stat.Quantile(0.50, stat.Empirical, speeds, nil), s.units)
		stats.P85Speed = units.ConvertSpeed(stat.Quantile(0.85, stat.Empirical, speeds, nil), s.units)
		stats.P98Speed = units.ConvertSpeed(stat.Quantile(0.98, stat.Empirical, speeds, nil), s.units)
		stats.MaxSpeed = units.ConvertSpeed(speeds[len(speeds)-1], s.units)
	}

	httputil.WriteJSONOK(w, stats)
}
