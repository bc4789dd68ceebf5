package endpoints

import (
	"net/http"

	"github.com/fleetguard/fleetguard/pkg/model"
	"github.com/fleetguard/fleetguard/pkg/server"
)

// RegisterPermissionsEndpoints registers the permission catalog endpoints
func RegisterPermissionsEndpoints(s *server.Server) {
	permissionsRouter := s.Router.PathPrefix("/permissions").Subrouter()
	permissionsRouter.Use(s.Identity.Middleware)

	// GET /permissions?category=Fuel
	permissionsRouter.HandleFunc("", handleListPermissions(s)).Methods("GET")
	permissionsRouter.HandleFunc("/{key}", handleGetPermission(s)).Methods("GET")
}

func handleListPermissions(s *server.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		category := r.URL.Query().Get("category")

		intent, ok := guard(s, w, r, "roles.view", target{Type: "permission", Name: category})
		if !ok {
			return
		}
		perms, err := s.Catalog.List(r.Context(), category)
		if !record(s, w, r, intent, err) {
			return
		}
		if err != nil {
			respondWithServiceError(w, err)
			return
		}
		if perms == nil {
			perms = []model.Permission{}
		}
		respondWithJSON(w, http.StatusOK, perms)
	}
}

func handleGetPermission(s *server.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := pathVar(r, "key")

		intent, ok := guard(s, w, r, "roles.view", target{Type: "permission", ID: key})
		if !ok {
			return
		}
		perm, err := s.Catalog.Lookup(r.Context(), key)
		if !record(s, w, r, intent, err) {
			return
		}
		if err != nil {
			respondWithServiceError(w, err)
			return
		}
		respondWithJSON(w, http.StatusOK, perm)
	}
}
