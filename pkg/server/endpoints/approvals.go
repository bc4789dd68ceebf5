package endpoints

import (
	"net/http"

	"github.com/fleetguard/fleetguard/pkg/audit"
	"github.com/fleetguard/fleetguard/pkg/identity"
	"github.com/fleetguard/fleetguard/pkg/model"
	"github.com/fleetguard/fleetguard/pkg/server"
)

const approvalResource = "approval_request"

// ApprovalRequestBody is the body of POST /approvals
type ApprovalRequestBody struct {
	PermissionKey string `json:"permission_key"`
	Reason        string `json:"reason"`
}

// ApprovalDecisionBody is the optional body of approve and deny
type ApprovalDecisionBody struct {
	Notes string `json:"notes"`
}

// ApproveResponse carries the token the requestor presents in
// X-Approval-Token
type ApproveResponse struct {
	Approval model.ApprovalRequest `json:"approval"`
	Token    string                `json:"token"`
}

// RegisterApprovalsEndpoints registers the elevation approval endpoints
func RegisterApprovalsEndpoints(s *server.Server) {
	approvalsRouter := s.Router.PathPrefix("/approvals").Subrouter()
	approvalsRouter.Use(s.Identity.Middleware)

	approvalsRouter.HandleFunc("", handleListApprovals(s)).Methods("GET")
	approvalsRouter.HandleFunc("", handleRequestApproval(s)).Methods("POST")
	approvalsRouter.HandleFunc("/{id}", handleShowApproval(s)).Methods("GET")
	approvalsRouter.HandleFunc("/{id}/approve", handleApprove(s)).Methods("POST")
	approvalsRouter.HandleFunc("/{id}/deny", handleDeny(s)).Methods("POST")
	approvalsRouter.HandleFunc("/{id}/cancel", handleCancel(s)).Methods("POST")
}

// visible reports whether the caller requested a or could decide it
func visible(s *server.Server, r *http.Request, id *identity.Identity, a model.ApprovalRequest) (bool, error) {
	if a.RequestorID == id.ActorID {
		return true, nil
	}
	return s.Roles.HasPermission(r.Context(), id.ActorID, a.PermissionKey)
}

func handleListApprovals(s *server.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := caller(w, r)
		if !ok {
			return
		}

		status := model.ApprovalStatus(r.URL.Query().Get("status"))
		all, err := s.Approvals.List(r.Context(), status)
		if err != nil {
			respondWithServiceError(w, err)
			return
		}

		out := []model.ApprovalRequest{}
		for _, a := range all {
			ok, err := visible(s, r, id, a)
			if err != nil {
				respondWithServiceError(w, err)
				return
			}
			if ok {
				out = append(out, a)
			}
		}
		respondWithJSON(w, http.StatusOK, out)
	}
}

func handleShowApproval(s *server.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := caller(w, r)
		if !ok {
			return
		}

		a, err := s.Approvals.Get(r.Context(), pathVar(r, "id"))
		if err != nil {
			respondWithServiceError(w, err)
			return
		}
		ok, err = visible(s, r, id, a)
		if err != nil {
			respondWithServiceError(w, err)
			return
		}
		if !ok {
			respondWithError(w, http.StatusNotFound, "Not found")
			return
		}
		respondWithJSON(w, http.StatusOK, a)
	}
}

func handleRequestApproval(s *server.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := caller(w, r)
		if !ok {
			return
		}
		var body ApprovalRequestBody
		if err := decodeJSON(r, &body); err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		a, err := s.Approvals.Request(r.Context(), id.ActorID, body.PermissionKey, body.Reason)
		in := actorIntent(id, audit.ActionCreate, target{Type: approvalResource, ID: a.ID, Name: body.Reason})
		in.PermissionKey = body.PermissionKey
		if !recordApproval(s, w, r, in, err) {
			return
		}
		if err != nil {
			respondWithServiceError(w, err)
			return
		}
		respondWithJSON(w, http.StatusCreated, a)
	}
}

// decideApproval runs an approve, deny or cancel of the request named in
// the path, recording it as action
func decideApproval(
	s *server.Server,
	action audit.Action,
	decide func(r *http.Request, id *identity.Identity, approvalID, notes string) (interface{}, error),
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := caller(w, r)
		if !ok {
			return
		}
		var body ApprovalDecisionBody
		if r.ContentLength != 0 {
			if err := decodeJSON(r, &body); err != nil {
				respondWithError(w, http.StatusBadRequest, err.Error())
				return
			}
		}

		approvalID := pathVar(r, "id")
		a, err := s.Approvals.Get(r.Context(), approvalID)
		if err != nil {
			respondWithServiceError(w, err)
			return
		}

		result, err := decide(r, id, approvalID, body.Notes)
		in := actorIntent(id, action, target{Type: approvalResource, ID: approvalID, Name: a.RequestorID})
		in.PermissionKey = a.PermissionKey
		in.ApprovalID = approvalID
		in.Details = body.Notes
		if !recordApproval(s, w, r, in, err) {
			return
		}
		if err != nil {
			respondWithServiceError(w, err)
			return
		}
		respondWithJSON(w, http.StatusOK, result)
	}
}

func recordApproval(s *server.Server, w http.ResponseWriter, r *http.Request, in audit.Intent, actionErr error) bool {
	if err := enrichIntent(s, r, &in); err != nil {
		respondWithServiceError(w, err)
		return false
	}
	return record(s, w, r, in, actionErr)
}

func handleApprove(s *server.Server) http.HandlerFunc {
	return decideApproval(s, audit.ActionApprove, func(r *http.Request, id *identity.Identity, approvalID, notes string) (interface{}, error) {
		a, token, err := s.Approvals.Approve(r.Context(), approvalID, id.ActorID, notes)
		if err != nil {
			return nil, err
		}
		return ApproveResponse{Approval: a, Token: token}, nil
	})
}

func handleDeny(s *server.Server) http.HandlerFunc {
	return decideApproval(s, audit.ActionDeny, func(r *http.Request, id *identity.Identity, approvalID, notes string) (interface{}, error) {
		a, err := s.Approvals.Deny(r.Context(), approvalID, id.ActorID, notes)
		if err != nil {
			return nil, err
		}
		return a, nil
	})
}

func handleCancel(s *server.Server) http.HandlerFunc {
	return decideApproval(s, audit.ActionUpdate, func(r *http.Request, id *identity.Identity, approvalID, _ string) (interface{}, error) {
		a, err := s.Approvals.Cancel(r.Context(), approvalID, id.ActorID)
		if err != nil {
			return nil, err
		}
		return a, nil
	})
}
