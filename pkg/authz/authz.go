package authz

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/fleetguard/fleetguard/pkg/approval"
	"github.com/fleetguard/fleetguard/pkg/audit"
	"github.com/fleetguard/fleetguard/pkg/metrics"
	"github.com/fleetguard/fleetguard/pkg/model"
	"github.com/fleetguard/fleetguard/pkg/org"
	"github.com/fleetguard/fleetguard/pkg/store"
)

// ElevationRiskLevel is the risk level from which the organization's
// require_approval_for_elevation applies
const ElevationRiskLevel = 4

// ForbiddenMessage is the only thing a denied caller is told
const ForbiddenMessage = "forbidden"

// ErrForbidden is returned by helpers that turn a denial into an error
var ErrForbidden = errors.New(ForbiddenMessage)

// Catalog looks up permission definitions
type Catalog interface {
	Lookup(ctx context.Context, key string) (model.Permission, error)
}

// Roles resolves what an actor holds
type Roles interface {
	ResolveEffectivePermissions(ctx context.Context, actorID string) ([]string, error)
	ActorRoleSnapshot(ctx context.Context, actorID string) (string, error)
}

// PolicySource supplies the organization policy in effect
type PolicySource interface {
	Current() org.Policy
}

// ApprovalVerifier checks approval tokens
type ApprovalVerifier interface {
	Verify(ctx context.Context, token, actorID, key string) (approval.Grant, error)
}

// Request is one authorization check
type Request struct {
	ActorID       string `json:"actor_id"`
	ActorEmail    string `json:"actor_email,omitempty"`
	PermissionKey string `json:"permission_key"`
	MFAVerified   bool   `json:"mfa_verified"`
	ApprovalToken string `json:"pending_approval_token,omitempty"`
	IPAddress     string `json:"ip_address,omitempty"`
	RequestID     string `json:"request_id,omitempty"`

	// Action overrides the audit action derived from the permission verb
	Action       audit.Action `json:"action,omitempty"`
	ResourceType string       `json:"resource_type,omitempty"`
	ResourceID   string       `json:"resource_id,omitempty"`
	ResourceName string       `json:"resource_name,omitempty"`
}

// Decision is the outcome of a check
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  Reason `json:"reason"`

	// ApprovalID names the approval request that satisfied step 4
	ApprovalID string `json:"approval_id,omitempty"`
}

// Err returns ErrForbidden for denials, nil otherwise
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return ErrForbidden
}

// Evaluator runs authorization checks. It holds no per-actor state; every
// call reads the current roles and policy.
type Evaluator struct {
	catalog   Catalog
	roles     Roles
	policy    PolicySource
	approvals ApprovalVerifier
}

// NewEvaluator returns an Evaluator. approvals may be nil, in which case
// every approval-gated permission is denied with ReasonApprovalRequired.
func NewEvaluator(cat Catalog, roles Roles, policy PolicySource, approvals ApprovalVerifier) *Evaluator {
	return &Evaluator{catalog: cat, roles: roles, policy: policy, approvals: approvals}
}

// Evaluate decides req and returns the intent recording the decision
func (e *Evaluator) Evaluate(ctx context.Context, req Request) (Decision, audit.Intent, error) {
	decision, perm, detail, err := e.decide(ctx, req)
	if err != nil {
		return Decision{}, audit.Intent{}, err
	}

	role, err := e.roles.ActorRoleSnapshot(ctx, req.ActorID)
	if err != nil {
		return Decision{}, audit.Intent{}, err
	}

	metrics.Decisions.WithLabelValues(decision.Reason.String()).Inc()
	return decision, intentFor(req, perm, role, decision, detail), nil
}

// Allowed is Evaluate without the intent
func (e *Evaluator) Allowed(ctx context.Context, req Request) (bool, error) {
	d, _, err := e.Evaluate(ctx, req)
	return d.Allowed, err
}

func (e *Evaluator) decide(ctx context.Context, req Request) (Decision, model.Permission, string, error) {
	perm, err := e.catalog.Lookup(ctx, req.PermissionKey)
	if errors.Is(err, store.ErrNotFound) {
		return deny(ReasonNotFound), model.Permission{Key: req.PermissionKey}, "", nil
	}
	if err != nil {
		return Decision{}, model.Permission{}, "", err
	}

	held, err := e.roles.ResolveEffectivePermissions(ctx, req.ActorID)
	if err != nil {
		return Decision{}, model.Permission{}, "", err
	}
	if i := sort.SearchStrings(held, perm.Key); i == len(held) || held[i] != perm.Key {
		return deny(ReasonNotGranted), perm, "", nil
	}

	policy := e.policy.Current()
	if (perm.RequiresMFA || policy.RequireMFA) && !req.MFAVerified {
		return deny(ReasonMfaRequired), perm, "", nil
	}

	if perm.RequiresApproval || (policy.RequireApprovalForElevation && perm.RiskLevel >= ElevationRiskLevel) {
		if req.ApprovalToken == "" || e.approvals == nil {
			return deny(ReasonApprovalRequired), perm, "no approval token", nil
		}
		grant, err := e.approvals.Verify(ctx, req.ApprovalToken, req.ActorID, perm.Key)
		if errors.Is(err, store.ErrStorageFailure) {
			return Decision{}, model.Permission{}, "", err
		}
		if err != nil {
			return deny(ReasonApprovalRequired), perm, err.Error(), nil
		}
		return Decision{Allowed: true, Reason: ReasonGranted, ApprovalID: grant.RequestID}, perm,
			fmt.Sprintf("approved by %s", grant.ApproverID), nil
	}

	return Decision{Allowed: true, Reason: ReasonGranted}, perm, "", nil
}

func deny(r Reason) Decision {
	return Decision{Allowed: false, Reason: r}
}

func intentFor(req Request, perm model.Permission, role string, d Decision, detail string) audit.Intent {
	action := req.Action
	if action == "" {
		action = audit.ActionForVerb(perm.Verb())
	}
	outcome := model.OutcomeSuccess
	if !d.Allowed {
		outcome = model.OutcomeDenied
	}

	return audit.Intent{
		ActorID:       req.ActorID,
		ActorEmail:    req.ActorEmail,
		ActorRole:     role,
		Action:        action,
		ResourceType:  req.ResourceType,
		ResourceID:    req.ResourceID,
		ResourceName:  req.ResourceName,
		PermissionKey: req.PermissionKey,
		RiskLevel:     perm.RiskLevel,
		Outcome:       outcome,
		Reason:        d.Reason.String(),
		MFAUsed:       req.MFAVerified,
		ApprovalID:    d.ApprovalID,
		IPAddress:     req.IPAddress,
		RequestID:     req.RequestID,
		Details:       detail,
	}
}
