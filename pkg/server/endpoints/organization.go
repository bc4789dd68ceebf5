package endpoints

import (
	"net/http"

	"github.com/fleetguard/fleetguard/pkg/org"
	"github.com/fleetguard/fleetguard/pkg/server"
)

// RegisterOrganizationEndpoints registers the organization policy endpoints
func RegisterOrganizationEndpoints(s *server.Server) {
	orgRouter := s.Router.PathPrefix("/organization").Subrouter()
	orgRouter.Use(s.Identity.Middleware)

	orgRouter.HandleFunc("", handleShowOrganization(s)).Methods("GET")
	orgRouter.HandleFunc("", handleUpdateOrganization(s)).Methods("PATCH")
}

func handleShowOrganization(s *server.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := caller(w, r); !ok {
			return
		}
		respondWithJSON(w, http.StatusOK, s.Policy.Current())
	}
}

func handleUpdateOrganization(s *server.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch org.Patch
		if err := decodeJSON(r, &patch); err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		if patch.Empty() {
			respondWithError(w, http.StatusBadRequest, "no changes")
			return
		}

		current := s.Policy.Current()
		intent, ok := guard(s, w, r, "system.configure", target{
			Type: "organization",
			ID:   current.OrganizationID,
			Name: current.Name,
		})
		if !ok {
			return
		}
		policy, err := s.Policy.Update(r.Context(), patch)
		if !record(s, w, r, intent, err) {
			return
		}
		if err != nil {
			respondWithServiceError(w, err)
			return
		}
		respondWithJSON(w, http.StatusOK, policy)
	}
}
