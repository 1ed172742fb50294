package api

import (
	"context"
	"net/http"
	"time"
)

const readyTimeout = 2 * time.Second

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": s.deps.Service,
		"version": s.deps.Version,
	})
}

// ready pings every dependency. Any failure makes the instance unready.
func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	results := make(map[string]string, len(s.deps.Checks))
	status := http.StatusOK

	for _, c := range s.deps.Checks {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		err := c.Ping(ctx)
		cancel()
		if err != nil {
			results[c.Name] = err.Error()
			status = http.StatusServiceUnavailable
			s.logger.Warn("readiness check failed", map[string]interface{}{"check": c.Name, "error": err})
			continue
		}
		results[c.Name] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "unavailable"
	}
	writeJSON(w, status, map[string]interface{}{"status": state, "checks": results})
}
