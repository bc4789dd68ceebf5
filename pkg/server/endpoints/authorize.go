package endpoints

import (
	"net/http"

	"github.com/fleetguard/fleetguard/pkg/authz"
	"github.com/fleetguard/fleetguard/pkg/identity"
	"github.com/fleetguard/fleetguard/pkg/server"
)

// AuthorizeResponse is returned to the dispatch layer by POST /authorize
type AuthorizeResponse struct {
	Allowed    bool         `json:"allowed"`
	Reason     authz.Reason `json:"reason"`
	ApprovalID string       `json:"approval_id,omitempty"`
	AuditID    string       `json:"audit_id"`
}

// RegisterAuthorizeEndpoint registers POST /authorize. The caller is the
// dispatch layer: the actor is named in the body, and falls back to the
// identity headers when the body leaves it out.
func RegisterAuthorizeEndpoint(s *server.Server) {
	authorizeRouter := s.Router.PathPrefix("/authorize").Subrouter()
	authorizeRouter.Use(s.Identity.Peer)

	authorizeRouter.HandleFunc("", handleAuthorize(s)).Methods("POST")
}

func handleAuthorize(s *server.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req authz.Request
		if err := decodeJSON(r, &req); err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		if id, ok := identity.Get(r.Context()); ok {
			fillFromIdentity(&req, id)
		}
		if req.ActorID == "" || req.PermissionKey == "" {
			respondWithError(w, http.StatusBadRequest, "actor_id and permission_key are required")
			return
		}
		if req.Action != "" && !req.Action.Valid() {
			respondWithError(w, http.StatusBadRequest, "invalid action")
			return
		}

		decision, intent, err := s.Evaluator.Evaluate(r.Context(), req)
		if err != nil {
			respondWithServiceError(w, err)
			return
		}
		entry, err := s.Ledger.Append(r.Context(), intent)
		if err != nil {
			respondWithServiceError(w, err)
			return
		}

		respondWithJSON(w, http.StatusOK, AuthorizeResponse{
			Allowed:    decision.Allowed,
			Reason:     decision.Reason,
			ApprovalID: decision.ApprovalID,
			AuditID:    entry.ID,
		})
	}
}

func fillFromIdentity(req *authz.Request, id *identity.Identity) {
	if req.ActorID == "" {
		req.ActorID = id.ActorID
		req.MFAVerified = req.MFAVerified || id.MFAVerified
		if req.ActorEmail == "" {
			req.ActorEmail = id.Email
		}
		if req.ApprovalToken == "" {
			req.ApprovalToken = id.ApprovalToken
		}
	}
	if req.IPAddress == "" {
		req.IPAddress = id.IP()
	}
	if req.RequestID == "" {
		req.RequestID = id.RequestID
	}
}
