package server

import (
	"context"
	"net/http"
	"time"
)

// HealthResponse is the JSON response structure for health checks.
type HealthResponse struct {
	Status     string `json:"status"`
	Redis      string `json:"redis,omitempty"`
	Error      string `json:"error,omitempty"`
	Presenting int    `json:"presenting"`
	Sockets    int    `json:"sockets"`
}

// handleHealth handles GET /healthz requests.
// Returns 200 OK if Redis is accessible, 503 Service Unavailable otherwise.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	s.presenters.mu.Lock()
	presenting := len(s.presenters.controllers)
	s.presenters.mu.Unlock()

	response := HealthResponse{
		Status:     "healthy",
		Redis:      "connected",
		Presenting: presenting,
		Sockets:    s.gateway.Stats().Connections,
	}

	if err := s.store.Ping(ctx); err != nil {
		response.Status = "unhealthy"
		response.Redis = "disconnected"
		response.Error = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, response)
		return
	}

	writeJSON(w, http.StatusOK, response)
}
