package endpoints

import (
	"log"
	"net/http"

	"github.com/fleetguard/fleetguard/pkg/audit"
	"github.com/fleetguard/fleetguard/pkg/authz"
	"github.com/fleetguard/fleetguard/pkg/identity"
	"github.com/fleetguard/fleetguard/pkg/model"
	"github.com/fleetguard/fleetguard/pkg/server"
)

// target is the resource a guarded call acts on
type target struct {
	Type string
	ID   string
	Name string
}

// caller returns the identity set by the identity middleware
func caller(w http.ResponseWriter, r *http.Request) (*identity.Identity, bool) {
	id, ok := identity.Get(r.Context())
	if !ok || id.Anonymous() {
		respondWithError(w, http.StatusUnauthorized, "Actor identity missing")
		return nil, false
	}
	return id, true
}

// requestFor builds the authorization request of the caller
func requestFor(id *identity.Identity, key string, t target) authz.Request {
	return authz.Request{
		ActorID:       id.ActorID,
		ActorEmail:    id.Email,
		PermissionKey: key,
		MFAVerified:   id.MFAVerified,
		ApprovalToken: id.ApprovalToken,
		IPAddress:     id.IP(),
		RequestID:     id.RequestID,
		ResourceType:  t.Type,
		ResourceID:    t.ID,
		ResourceName:  t.Name,
	}
}

// guard checks that the caller holds key. A denial is written to the audit
// log and answered with 403. When guard returns true the handler must pass
// the intent to record once the action has run.
func guard(s *server.Server, w http.ResponseWriter, r *http.Request, key string, t target) (audit.Intent, bool) {
	id, ok := caller(w, r)
	if !ok {
		return audit.Intent{}, false
	}

	decision, intent, err := s.Evaluator.Evaluate(r.Context(), requestFor(id, key, t))
	if err != nil {
		respondWithServiceError(w, err)
		return audit.Intent{}, false
	}
	if !decision.Allowed {
		if _, err := s.Ledger.Append(r.Context(), intent); err != nil {
			respondWithServiceError(w, err)
			return audit.Intent{}, false
		}
		respondForbidden(w)
		return audit.Intent{}, false
	}
	return intent, true
}

// record appends the intent of a guarded call with the outcome of its
// action. It answers 500 and returns false if the entry can't be written.
func record(s *server.Server, w http.ResponseWriter, r *http.Request, in audit.Intent, actionErr error) bool {
	switch {
	case isDenial(actionErr):
		in.Outcome = model.OutcomeDenied
		in.Details = actionErr.Error()
	case actionErr != nil:
		in.Outcome = model.OutcomeFailure
		in.Details = actionErr.Error()
	}
	if _, err := s.Ledger.Append(r.Context(), in); err != nil {
		log.Printf("audit: dropping %s on %s: %v", in.Action, in.PermissionKey, err)
		respondWithError(w, http.StatusInternalServerError, "Audit log unavailable")
		return false
	}
	return true
}

// actorIntent is the intent of an unguarded call made by the caller
func actorIntent(id *identity.Identity, action audit.Action, t target) audit.Intent {
	return audit.Intent{
		ActorID:      id.ActorID,
		ActorEmail:   id.Email,
		Action:       action,
		ResourceType: t.Type,
		ResourceID:   t.ID,
		ResourceName: t.Name,
		MFAUsed:      id.MFAVerified,
		IPAddress:    id.IP(),
		RequestID:    id.RequestID,
	}
}
