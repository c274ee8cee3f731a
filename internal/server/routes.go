package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealthz)

	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/alerts", s.handleActiveAlerts)
	mux.HandleFunc("GET /api/alerts/history", s.handleAlertHistory)
	mux.HandleFunc("DELETE /api/alerts/{id}", s.handleClearAlert)
	mux.HandleFunc("DELETE /api/alerts", s.handleClearAll)
	mux.HandleFunc("GET /api/records", s.handleRecords)

	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/events/ws", s.handleEventsWS)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := struct {
		Running       bool     `json:"running"`
		Roots         []string `json:"roots"`
		Records       int      `json:"records"`
		ActiveAlerts  int      `json:"active_alerts"`
		Channels      []string `json:"channels,omitempty"`
		UptimeSeconds int64    `json:"uptime_seconds"`
	}{
		Running:       s.mon.Running(),
		Roots:         s.mon.Roots(),
		Records:       len(s.mon.Records()),
		ActiveAlerts:  len(s.mgr.ActiveAlerts()),
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
	}
	if s.router != nil {
		resp.Channels = s.router.ChannelTypes()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.mgr.Stats())
}

func (s *Server) handleActiveAlerts(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.mgr.ActiveAlerts())
}

func (s *Server) handleAlertHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSONError(w, http.StatusBadRequest, "bad_request", "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.mgr.History(limit))
}

func (s *Server) handleClearAlert(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.mgr.ClearAlert(id) {
		writeJSONError(w, http.StatusNotFound, "not_found", "no active alert with that id")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"cleared": id})
}

func (s *Server) handleClearAll(w http.ResponseWriter, r *http.Request) {
	n := s.mgr.ClearAll()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]int{"cleared": n})
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.mon.Records())
}
