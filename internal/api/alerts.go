package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/arctic-data/corridor/internal/db"
	"github.com/arctic-data/corridor/internal/httputil"
)

func (s *Server) listAlerts(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.GetAlertPageSize()
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			httputil.BadRequest(w, "invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	offset := 0
	if o := r.URL.Query().Get("offset"); o != "" {
		parsed, err := strconv.Atoi(o)
		if err != nil || parsed < 0 {
			httputil.BadRequest(w, "invalid 'offset' parameter")
			return
		}
		offset = parsed
	}

	alerts, err := s.db.ListAlerts(r.Context(), limit, offset)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to retrieve alerts: %v", err))
		return
	}
	if alerts == nil {
		alerts = []db.AlertEvent{}
	}
	httputil.WriteJSONOK(w, alerts)
}

func (s *Server) ackAlert(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		httputil.BadRequest(w, "invalid alert id")
		return
	}

	if err := s.db.AcknowledgeAlert(r.Context(), id); err != nil {
		if err == db.ErrAlertNotFound {
			// Soft error: acknowledging a vanished alert is not fatal to
			// the operator's workflow, the body says what happened.
			httputil.NotFound(w, fmt.Sprintf("alert %d not found", id))
			return
		}
		httputil.InternalServerError(w, fmt.Sprintf("failed to acknowledge alert: %v", err))
		return
	}

	httputil.WriteJSONOK(w, map[string]string{"status": "acknowledged"})
}
