package handlers

import (
	"net/http"
	"strconv"
)

const defaultAnalyticsDays = 30

func analyticsDays(r *http.Request) int {
	raw := r.URL.Query().Get("days")
	if raw == "" {
		return defaultAnalyticsDays
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days < 1 || days > 365 {
		return defaultAnalyticsDays
	}
	return days
}

func (s *Server) OrdersByStatus(w http.ResponseWriter, r *http.Request) {
	counts, err := s.Storage.OrderCountsByStatus(r.Context())
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, "failed to aggregate orders")
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func (s *Server) DailyVolume(w http.ResponseWriter, r *http.Request) {
	points, err := s.Storage.DailyOrderVolume(r.Context(), analyticsDays(r))
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, "failed to aggregate volume")
		return
	}
	writeJSON(w, http.StatusOK, points)
}

func (s *Server) LocationThroughput(w http.ResponseWriter, r *http.Request) {
	stats, err := s.Storage.LocationThroughput(r.Context(), analyticsDays(r))
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, "failed to aggregate throughput")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
