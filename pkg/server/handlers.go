package server

import (
	"encoding/json"
	"net/http"
	"time"

	"meridian-hq/saturn/pkg/monitor"
	"meridian-hq/saturn/pkg/quota"
)

// subjectStatsResponse combines the recorder's usage view with the
// ledger's quota view for one subject.
type subjectStatsResponse struct {
	SubjectID string             `json:"subject_id"`
	AccountID string             `json:"account_id"`
	Window    string             `json:"window"`
	Usage     monitor.UsageStats `json:"usage"`
	Quota     quota.Status       `json:"quota"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleSystemStats serves GET /api/v1/stats.
func (s *Server) handleSystemStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	window, ok := s.parseWindow(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, s.recorder.SystemStats(window))
}

// handleSubjectStats serves GET /api/v1/subjects/stats with subject_id
// and account_id query parameters.
func (s *Server) handleSubjectStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	subjectID := r.URL.Query().Get("subject_id")
	accountID := r.URL.Query().Get("account_id")
	if subjectID == "" || accountID == "" {
		writeError(w, http.StatusBadRequest, "subject_id and account_id are required")
		return
	}

	window, ok := s.parseWindow(w, r)
	if !ok {
		return
	}

	subject := quota.Subject{UserID: subjectID, AccountID: accountID}
	resp := subjectStatsResponse{
		SubjectID: subjectID,
		AccountID: accountID,
		Window:    window.String(),
		Usage:     s.recorder.StatsFor(subjectID, accountID, window),
		Quota:     s.ledger.Status(subject),
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleResolveAlert serves POST /api/v1/alerts/resolve with an id
// query parameter.
func (s *Server) handleResolveAlert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.engine == nil {
		writeError(w, http.StatusNotFound, "alerting is disabled")
		return
	}

	alertID := r.URL.Query().Get("id")
	if alertID == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	if !s.engine.Resolve(alertID) {
		writeError(w, http.StatusNotFound, "unknown alert id")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "resolved", "id": alertID})
}

// parseWindow reads the optional window query parameter, falling back
// to the server's default stats window. It writes a 400 response and
// returns false for unparseable values.
func (s *Server) parseWindow(w http.ResponseWriter, r *http.Request) (time.Duration, bool) {
	raw := r.URL.Query().Get("window")
	if raw == "" {
		return s.statsWindow, true
	}

	window, err := time.ParseDuration(raw)
	if err != nil || window <= 0 {
		writeError(w, http.StatusBadRequest, "invalid window duration")
		return 0, false
	}
	return window, true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}
