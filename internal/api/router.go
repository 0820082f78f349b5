package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/estufa-core/internal/auth"
	"github.com/nerrad567/estufa-core/internal/link"
)

// healthCheckTimeout bounds the dependency checks behind /health.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Get("/metrics", s.handleMetrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// WebSocket (auth via token query parameter, validated in handler)
		r.Get("/ws", s.handleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Route("/broker", func(r chi.Router) {
				r.With(s.requirePermission(auth.PermStatusRead)).Get("/status", s.handleBrokerStatus)
				r.With(s.requirePermission(auth.PermCommandSend)).Post("/command", s.handleBrokerCommand)
			})

			r.Route("/devices/status", func(r chi.Router) {
				r.Use(s.requirePermission(auth.PermStatusRead))
				r.Get("/", s.handleListDeviceStatus)
				r.Get("/current", s.handleCurrentDeviceStatus)
			})

			r.With(s.requirePermission(auth.PermSensorRead)).Get("/sensors/recent", s.handleRecentSensors)
			r.With(s.requirePermission(auth.PermAlertRead)).Get("/alerts", s.handleListAlerts)
		})
	})

	return r
}

// handleHealth reports liveness plus database and broker state. It answers
// 200 even while the broker is down; only a failing database is 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	status := http.StatusOK
	dbState := "unknown"
	if s.db != nil {
		dbState = "ok"
		if err := s.db.HealthCheck(ctx); err != nil {
			s.logger.Warn("database health check failed", "error", err)
			dbState = "error"
			status = http.StatusServiceUnavailable
		}
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}

	snap := s.link.Status()
	writeJSON(w, status, map[string]any{
		"success":        status == http.StatusOK,
		"status":         overall,
		"version":        s.version,
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
		"database":       dbState,
		"broker": map[string]any{
			"state":     snap.State,
			"connected": snap.State == link.StateConnected,
		},
		"websocket_clients": s.hub.ClientCount(),
	})
}
