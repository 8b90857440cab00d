package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/arctic-data/corridor/internal/httputil"
	"github.com/arctic-data/corridor/internal/ingest"
)

// telemetryRequest is the wire form of one telemetry point. The timestamp is
// an RFC 3339 string and must carry an explicit UTC offset; "naive" local
// timestamps are rejected rather than guessed at.
type telemetryRequest struct {
	ObjectID   string   `json:"object_id"`
	Timestamp  string   `json:"ts"`
	Lat        *float64 `json:"lat"`
	Lon        *float64 `json:"lon"`
	AltM       *float64 `json:"alt_m"`
	Confidence *float64 `json:"confidence"`
	SpeedMps   *float64 `json:"speed_mps"`
	HeadingDeg *float64 `json:"heading_deg"`
	RssiDbm    *float64 `json:"rssi_dbm"`
	BatteryPct *float64 `json:"battery_pct"`
}

// validate checks ranges and required fields, returning the parsed point.
func (req *telemetryRequest) validate() (ingest.Point, error) {
	var p ingest.Point

	if req.ObjectID == "" {
		return p, fmt.Errorf("object_id is required")
	}
	if len(req.ObjectID) > 128 {
		return p, fmt.Errorf("object_id too long (max 128 characters)")
	}

	if req.Timestamp == "" {
		return p, fmt.Errorf("ts is required")
	}
	// RFC 3339 requires an offset ("Z" or ±hh:mm), so naive timestamps
	// fail here.
	ts, err := time.Parse(time.RFC3339, req.Timestamp)
	if err != nil {
		return p, fmt.Errorf("ts must be RFC 3339 with an explicit UTC offset")
	}

	if req.Lat == nil || req.Lon == nil {
		return p, fmt.Errorf("lat and lon are required")
	}
	if *req.Lat < -90 || *req.Lat > 90 {
		return p, fmt.Errorf("lat must be between -90 and 90, got %v", *req.Lat)
	}
	if *req.Lon < -180 || *req.Lon > 180 {
		return p, fmt.Errorf("lon must be between -180 and 180, got %v", *req.Lon)
	}

	if req.Confidence == nil {
		return p, fmt.Errorf("confidence is required")
	}
	if *req.Confidence < 0 || *req.Confidence > 1 {
		return p, fmt.Errorf("confidence must be between 0 and 1, got %v", *req.Confidence)
	}

	var speed, heading float64
	if req.SpeedMps != nil {
		if *req.SpeedMps < 0 {
			return p, fmt.Errorf("speed_mps must be non-negative, got %v", *req.SpeedMps)
		}
		speed = *req.SpeedMps
	}
	if req.HeadingDeg != nil {
		if *req.HeadingDeg < 0 || *req.HeadingDeg >= 360 {
			return p, fmt.Errorf("heading_deg must be in [0, 360), got %v", *req.HeadingDeg)
		}
		heading = *req.HeadingDeg
	}
	if req.BatteryPct != nil && (*req.BatteryPct < 0 || *req.BatteryPct > 100) {
		return p, fmt.Errorf("battery_pct must be between 0 and 100, got %v", *req.BatteryPct)
	}

	return ingest.Point{
		ObjectID:   req.ObjectID,
		Timestamp:  ts.UTC(),
		Lat:        *req.Lat,
		Lon:        *req.Lon,
		AltM:       req.AltM,
		Confidence: *req.Confidence,
		SpeedMps:   speed,
		HeadingDeg: heading,
		RssiDbm:    req.RssiDbm,
		BatteryPct: req.BatteryPct,
	}, nil
}

func (s *Server) ingestTelemetry(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.GetMaxRequestBytes())

	var req telemetryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid JSON body: %v", err))
		return
	}

	point, err := req.validate()
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	obj, err := s.pipeline.Ingest(r.Context(), point)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to ingest telemetry: %v", err))
		return
	}

	httputil.WriteJSONCreated(w, s.convertObjectSpeed(*obj))
}
