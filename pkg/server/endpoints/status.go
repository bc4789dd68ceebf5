package endpoints

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/fleetguard/fleetguard/pkg/metrics"
	"github.com/fleetguard/fleetguard/pkg/server"
)

// StatusResponse represents the response from /status
type StatusResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Database string `json:"database"`
	Error    string `json:"error,omitempty"`
}

// healthTimeout bounds the database check of /status
const healthTimeout = 2 * time.Second

// RegisterStatusEndpoints registers the status and metrics endpoints. Neither
// needs an identity.
func RegisterStatusEndpoints(s *server.Server) {
	s.Router.HandleFunc("/status", handleStatus(s)).Methods("GET")
	s.Router.Handle("/metrics", metrics.Handler()).Methods("GET")
}

func version() string {
	if v := os.Getenv("FLEETGUARD_VERSION"); v != "" {
		return v
	}
	return "0.1.0"
}

func handleStatus(s *server.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := StatusResponse{Status: "ok", Version: version(), Database: "ok"}

		if s.Health != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
			defer cancel()
			if err := s.Health.CheckConnectivity(ctx); err != nil {
				response.Status = "error"
				response.Database = "unavailable"
				response.Error = "database connectivity check failed"
				respondWithJSON(w, http.StatusServiceUnavailable, response)
				return
			}
		}
		respondWithJSON(w, http.StatusOK, response)
	}
}
