package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"crimemap/cluster"
	"crimemap/incident"
	"crimemap/legend"
	"crimemap/store"
)

type incidentView struct {
	incident.Incident
	Color string `json:"color"`
}

type incidentsResponse struct {
	Query     queryView      `json:"query"`
	Total     int            `json:"total"`
	Incidents []incidentView `json:"incidents"`
	Legend    []legend.Entry `json:"legend"`
}

type queryView struct {
	CrimeType string `json:"crime_type"`
	Year      int    `json:"year"`
	MonthFrom int    `json:"month_from"`
	MonthTo   int    `json:"month_to"`
}

func (s *server) parseQuery(r *http.Request) (store.Query, error) {
	q := store.Query{
		CrimeType: s.cfg.Map.DefaultCrimeType,
		Year:      s.cfg.Map.DefaultYear,
		MonthFrom: s.cfg.Map.DefaultMonthFrom,
		MonthTo:   s.cfg.Map.DefaultMonthTo,
	}
	values := r.URL.Query()
	if v := strings.TrimSpace(values.Get("crime_type")); v != "" {
		q.CrimeType = v
	}
	if v := values.Get("year"); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil {
			return q, fmt.Errorf("bad year %q", v)
		}
		q.Year = year
	}
	var err error
	if q.MonthFrom, err = monthParam(values.Get("month_from"), q.MonthFrom); err != nil {
		return q, err
	}
	if q.MonthTo, err = monthParam(values.Get("month_to"), q.MonthTo); err != nil {
		return q, err
	}
	return q, nil
}

func monthParam(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	month, err := strconv.Atoi(raw)
	if err != nil || month < 1 || month > 12 {
		return 0, fmt.Errorf("bad month %q", raw)
	}
	return month, nil
}

func (s *server) handleIncidents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q, err := s.parseQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	incidents, err := s.store.ListIncidents(r.Context(), q)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	entries := legend.Assign(incident.CountByStatus(incidents))
	views := make([]incidentView, 0, len(incidents))
	for _, inc := range incidents {
		views = append(views, incidentView{Incident: inc, Color: legend.ColorFor(entries, inc.Status)})
	}
	respondJSON(w, incidentsResponse{
		Query:     queryView(q),
		Total:     len(views),
		Incidents: views,
		Legend:    entries,
	})
}

func (s *server) handleLegend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q, err := s.parseQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	counts, err := s.store.StatusCounts(r.Context(), q)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	respondJSON(w, map[string]any{"query": queryView(q), "legend": legend.Assign(counts)})
}

func (s *server) handleClusters(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q, err := s.parseQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	radius := s.cfg.Map.ClusterRadiusM
	if v := r.URL.Query().Get("radius_m"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed <= 0 {
			http.Error(w, fmt.Sprintf("bad radius_m %q", v), http.StatusBadRequest)
			return
		}
		radius = parsed
	}
	incidents, err := s.store.ListIncidents(r.Context(), q)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	clusters := cluster.Group(incidents, radius)
	respondJSON(w, map[string]any{"query": queryView(q), "radius_m": radius, "clusters": clusters})
}

func (s *server) handleFilters(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	values, err := s.store.ListFilterValues(r.Context())
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	respondJSON(w, values)
}

func (s *server) handleMapConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	respondJSON(w, s.cfg.Map)
}

// handleIngest queues one extract file by name, e.g. after a manual upload
// into the data dir.
func (s *server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	filename := strings.TrimSpace(r.URL.Query().Get("file"))
	if filename == "" || !isExtract(filename) {
		http.Error(w, "file query param must name a csv extract", http.StatusBadRequest)
		return
	}
	if !s.enqueueIngest("api", filename) {
		http.Error(w, "queue full", http.StatusServiceUnavailable)
		return
	}
	respondJSON(w, map[string]string{"status": "queued", "file": filename})
}

func respondJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write json: %v", err)
	}
}
