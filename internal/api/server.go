// Package api exposes the tracker over HTTP: telemetry ingest, tracked
// object queries, zone catalog management, and the alert feed.
package api

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/arctic-data/corridor/internal/config"
	"github.com/arctic-data/corridor/internal/db"
	"github.com/arctic-data/corridor/internal/httputil"
	"github.com/arctic-data/corridor/internal/ingest"
	"github.com/arctic-data/corridor/internal/units"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	db       *db.DB
	pipeline *ingest.Pipeline
	cfg      *config.TuningConfig
	units    string
}

func NewServer(database *db.DB, pipeline *ingest.Pipeline, cfg *config.TuningConfig) *Server {
	if cfg == nil {
		cfg = config.EmptyTuningConfig()
	}
	return &Server{
		db:       database,
		pipeline: pipeline,
		cfg:      cfg,
		units:    cfg.GetSpeedUnits(),
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// CORSMiddleware allows the map frontend, served from anywhere, to call the
// API. The tracker carries no credentials so a permissive policy is fine.
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/telemetry", s.ingestTelemetry)
	mux.HandleFunc("GET /api/objects", s.listObjects)
	mux.HandleFunc("GET /api/objects/{id}/history", s.objectHistory)
	mux.HandleFunc("GET /api/objects/{id}/stats", s.objectStats)
	mux.HandleFunc("GET /api/zones", s.listZones)
	mux.HandleFunc("POST /api/zones", s.createZone)
	mux.HandleFunc("DELETE /api/zones/{id}", s.deleteZone)
	mux.HandleFunc("GET /api/alerts", s.listAlerts)
	mux.HandleFunc("POST /api/alerts/{id}/ack", s.ackAlert)
	mux.HandleFunc("GET /api/config", s.showConfig)
	mux.HandleFunc("GET /health", s.health)
	return mux
}

// Handler wraps the mux with the standard middleware stack.
func (s *Server) Handler() http.Handler {
	return LoggingMiddleware(CORSMiddleware(s.ServeMux()))
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]string{"status": "ok"})
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]interface{}{
		"units":                    s.units,
		"low_confidence_threshold": s.cfg.GetLowConfidenceThreshold(),
		"alert_page_size":          s.cfg.GetAlertPageSize(),
		"history_page_size":        s.cfg.GetHistoryPageSize(),
	})
}

// convertObjectSpeed applies display-unit conversion to an object's speed.
// Storage is always m/s; conversion happens only at this boundary.
func (s *Server) convertObjectSpeed(obj db.TrackedObject) db.TrackedObject {
	if obj.SpeedMps != nil {
		converted := units.ConvertSpeed(*obj.SpeedMps, s.units)
		obj.SpeedMps = &converted
	}
	return obj
}
