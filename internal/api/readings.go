package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/estufa-core/internal/alert"
	"github.com/nerrad567/estufa-core/internal/telemetry"
)

// defaultSensorLimit is the number of readings returned without ?limit.
const defaultSensorLimit = 10

// parseLimit reads ?limit. Absent yields 0; a non-integer or negative
// value writes a 400 and returns false.
func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeBadRequest(w, "limit must be a non-negative integer")
		return 0, false
	}
	return n, true
}

func (s *Server) handleRecentSensors(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	if limit == 0 {
		limit = defaultSensorLimit
	}

	readings, err := s.readings.RecentReadings(r.Context(), limit)
	if err != nil {
		s.logger.Error("loading recent readings", "error", err)
		writeInternalError(w, "failed to load sensor data")
		return
	}
	if readings == nil {
		readings = []telemetry.Reading{}
	}

	writeOK(w, map[string]any{
		"data":  readings,
		"count": len(readings),
	})
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	alerts, err := s.alerts.RecentAlerts(r.Context(), limit)
	if err != nil {
		s.logger.Error("loading alerts", "error", err)
		writeInternalError(w, "failed to load alerts")
		return
	}
	if alerts == nil {
		alerts = []alert.Alert{}
	}

	writeOK(w, map[string]any{
		"data":  alerts,
		"count": len(alerts),
	})
}
