package endpoints

import (
	"fmt"
	"net/http"

	"github.com/fleetguard/fleetguard/pkg/model"
	"github.com/fleetguard/fleetguard/pkg/server"
)

const roleResource = "role"

// RoleResponse is a role with its grants and active assignments
type RoleResponse struct {
	model.Role
	Grants      []string               `json:"grants"`
	Assignments []model.RoleAssignment `json:"assignments"`
}

// CreateRoleRequest is the body of POST /roles
type CreateRoleRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Grants      []string `json:"grants"`
}

// AssignRoleRequest is the body of POST /roles/{name}/assignments
type AssignRoleRequest struct {
	ActorID string `json:"actor_id"`
}

// RegisterRolesEndpoints registers the role store endpoints
func RegisterRolesEndpoints(s *server.Server) {
	rolesRouter := s.Router.PathPrefix("/roles").Subrouter()
	rolesRouter.Use(s.Identity.Middleware)

	rolesRouter.HandleFunc("", handleListRoles(s)).Methods("GET")
	rolesRouter.HandleFunc("", handleCreateRole(s)).Methods("POST")
	rolesRouter.HandleFunc("/{name}", handleShowRole(s)).Methods("GET")
	rolesRouter.HandleFunc("/{name}", handleDeleteRole(s)).Methods("DELETE")

	// Grants
	rolesRouter.HandleFunc("/{name}/grants/{key}", handleGrant(s)).Methods("PUT")
	rolesRouter.HandleFunc("/{name}/grants/{key}", handleRevoke(s)).Methods("DELETE")

	// Lifecycle
	rolesRouter.HandleFunc("/{name}/deactivate", handleDeactivateRole(s)).Methods("POST")
	rolesRouter.HandleFunc("/{name}/activate", handleActivateRole(s)).Methods("POST")

	// Assignments
	rolesRouter.HandleFunc("/{name}/assignments", handleAssign(s)).Methods("POST")
	rolesRouter.HandleFunc("/{name}/assignments/{actor}", handleUnassign(s)).Methods("DELETE")
}

func handleListRoles(s *server.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		intent, ok := guard(s, w, r, "roles.view", target{Type: roleResource})
		if !ok {
			return
		}
		roles, err := s.Roles.ListRoles(r.Context())
		if !record(s, w, r, intent, err) {
			return
		}
		if err != nil {
			respondWithServiceError(w, err)
			return
		}
		if roles == nil {
			roles = []model.Role{}
		}
		respondWithJSON(w, http.StatusOK, roles)
	}
}

func handleShowRole(s *server.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := pathVar(r, "name")

		intent, ok := guard(s, w, r, "roles.view", target{Type: roleResource, Name: name})
		if !ok {
			return
		}
		role, err := fetchRole(s, r, name)
		if !record(s, w, r, intent, err) {
			return
		}
		if err != nil {
			respondWithServiceError(w, err)
			return
		}
		respondWithJSON(w, http.StatusOK, role)
	}
}

func fetchRole(s *server.Server, r *http.Request, name string) (RoleResponse, error) {
	role, err := s.Roles.GetRole(r.Context(), name)
	if err != nil {
		return RoleResponse{}, err
	}
	grants, err := s.Roles.RoleGrants(r.Context(), name)
	if err != nil {
		return RoleResponse{}, err
	}
	assignments, err := s.Roles.Assignments(r.Context(), name)
	if err != nil {
		return RoleResponse{}, err
	}
	if grants == nil {
		grants = []string{}
	}
	if assignments == nil {
		assignments = []model.RoleAssignment{}
	}
	return RoleResponse{Role: role, Grants: grants, Assignments: assignments}, nil
}

func handleCreateRole(s *server.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateRoleRequest
		if err := decodeJSON(r, &req); err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		intent, ok := guard(s, w, r, "roles.create", target{Type: roleResource, Name: req.Name})
		if !ok {
			return
		}
		role, err := s.Roles.CreateRole(r.Context(), req.Name, req.Description, req.Grants)
		intent.ResourceID = role.ID
		if !record(s, w, r, intent, err) {
			return
		}
		if err != nil {
			respondWithServiceError(w, err)
			return
		}
		respondWithJSON(w, http.StatusCreated, role)
	}
}

func handleDeleteRole(s *server.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := pathVar(r, "name")

		intent, ok := guard(s, w, r, "roles.delete", target{Type: roleResource, Name: name})
		if !ok {
			return
		}
		err := s.Roles.Delete(r.Context(), name)
		if !record(s, w, r, intent, err) {
			return
		}
		if err != nil {
			respondWithServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleGrant(s *server.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, key := pathVar(r, "name"), pathVar(r, "key")

		intent, ok := guard(s, w, r, "roles.edit", target{Type: roleResource, Name: name})
		if !ok {
			return
		}
		intent.Details = "grant " + key
		err := s.Roles.Grant(r.Context(), name, key)
		if !record(s, w, r, intent, err) {
			return
		}
		if err != nil {
			respondWithServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleRevoke(s *server.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, key := pathVar(r, "name"), pathVar(r, "key")

		intent, ok := guard(s, w, r, "roles.edit", target{Type: roleResource, Name: name})
		if !ok {
			return
		}
		intent.Details = "revoke " + key
		err := s.Roles.Revoke(r.Context(), name, key)
		if !record(s, w, r, intent, err) {
			return
		}
		if err != nil {
			respondWithServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleDeactivateRole(s *server.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := pathVar(r, "name")

		intent, ok := guard(s, w, r, "roles.edit", target{Type: roleResource, Name: name})
		if !ok {
			return
		}
		ended, err := s.Roles.Deactivate(r.Context(), name)
		if err == nil {
			intent.Details = fmt.Sprintf("deactivated with %d assignments", ended)
		}
		if !record(s, w, r, intent, err) {
			return
		}
		if err != nil {
			respondWithServiceError(w, err)
			return
		}
		respondWithJSON(w, http.StatusOK, map[string]int64{"assignments_deactivated": ended})
	}
}

func handleActivateRole(s *server.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := pathVar(r, "name")

		intent, ok := guard(s, w, r, "roles.edit", target{Type: roleResource, Name: name})
		if !ok {
			return
		}
		intent.Details = "activated"
		err := s.Roles.Activate(r.Context(), name)
		if !record(s, w, r, intent, err) {
			return
		}
		if err != nil {
			respondWithServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleAssign(s *server.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := pathVar(r, "name")
		var req AssignRoleRequest
		if err := decodeJSON(r, &req); err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		intent, ok := guard(s, w, r, "roles.assign", target{Type: roleResource, Name: name})
		if !ok {
			return
		}
		intent.Details = "assign " + req.ActorID
		err := s.Roles.Assign(r.Context(), req.ActorID, name, intent.ActorID)
		if !record(s, w, r, intent, err) {
			return
		}
		if err != nil {
			respondWithServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleUnassign(s *server.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, actor := pathVar(r, "name"), pathVar(r, "actor")

		intent, ok := guard(s, w, r, "roles.assign", target{Type: roleResource, Name: name})
		if !ok {
			return
		}
		intent.Details = "unassign " + actor
		err := s.Roles.Unassign(r.Context(), actor, name)
		if !record(s, w, r, intent, err) {
			return
		}
		if err != nil {
			respondWithServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
