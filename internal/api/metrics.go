package api

import "net/http"

// handleMetrics serves the Prometheus exposition. Without a registry the
// endpoint reports 503 rather than an empty scrape.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "metrics disabled")
		return
	}
	s.metrics.Handler().ServeHTTP(w, r)
}
