package api

import (
	"net/http"

	"github.com/nerrad567/estufa-core/internal/device"
)

func (s *Server) handleListDeviceStatus(w http.ResponseWriter, r *http.Request) {
	filter := device.StatusFilter{}

	if raw := r.URL.Query().Get("device_type"); raw != "" {
		class, err := device.ParseClass(raw)
		if err != nil {
			writeBadRequest(w, "invalid device_type: "+raw)
			return
		}
		filter.Class = class
	}

	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	filter.Limit = device.ClampLimit(limit)

	statuses, err := s.statuses.ListStatuses(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing device status", "error", err)
		writeInternalError(w, "failed to list device status")
		return
	}
	if statuses == nil {
		statuses = []device.Status{}
	}

	writeOK(w, map[string]any{
		"data":  statuses,
		"count": len(statuses),
	})
}

func (s *Server) handleCurrentDeviceStatus(w http.ResponseWriter, r *http.Request) {
	statuses, err := s.statuses.CurrentStatuses(r.Context())
	if err != nil {
		s.logger.Error("loading current device status", "error", err)
		writeInternalError(w, "failed to load current device status")
		return
	}
	if statuses == nil {
		statuses = []device.Status{}
	}

	writeOK(w, map[string]any{
		"data":  statuses,
		"count": len(statuses),
	})
}
