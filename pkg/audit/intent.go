package audit

import (
	"errors"
	"fmt"

	"github.com/fleetguard/fleetguard/pkg/model"
)

var (
	// ErrInvalidOutcome is returned for outcomes other than success, denied
	// and failure
	ErrInvalidOutcome = errors.New("invalid audit outcome")

	// ErrInvalidRiskLevel is returned for risk levels outside 0..5
	ErrInvalidRiskLevel = errors.New("invalid audit risk level")
)

// SystemActor is the actor ID recorded for entries written by fleetguard
// itself, such as retention purges and configuration reloads
const SystemActor = "system"

// Intent is everything the caller knows about an audited event. It carries
// no ID and no timestamp: both are assigned by the ledger when the intent is
// appended. ActorEmail and ActorRole are snapshots at the time of the event.
type Intent struct {
	ActorID           string `json:"actor_id"`
	ActorEmail        string `json:"actor_email,omitempty"`
	ActorRole         string `json:"actor_role,omitempty"`
	Action            Action `json:"action"`
	ResourceType      string `json:"resource_type,omitempty"`
	ResourceID        string `json:"resource_id,omitempty"`
	ResourceName      string `json:"resource_name,omitempty"`
	PermissionKey     string `json:"permission_key,omitempty"`
	RiskLevel         int    `json:"risk_level,omitempty"`
	Outcome           string `json:"outcome,omitempty"`
	Reason            string `json:"reason,omitempty"`
	MFAUsed           bool   `json:"mfa_used,omitempty"`
	ApprovalID        string `json:"approval_id,omitempty"`
	EmergencyOverride bool   `json:"emergency_override,omitempty"`
	IPAddress         string `json:"ip_address,omitempty"`
	RequestID         string `json:"request_id,omitempty"`
	Details           string `json:"details,omitempty"`
}

// Validate checks the closed sets and bounds of the intent
func (in Intent) Validate() error {
	if !in.Action.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidAction, in.Action)
	}
	switch in.Outcome {
	case "", model.OutcomeSuccess, model.OutcomeDenied, model.OutcomeFailure:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidOutcome, in.Outcome)
	}
	if in.RiskLevel < 0 || in.RiskLevel > model.MaxRiskLevel {
		return fmt.Errorf("%w: %d", ErrInvalidRiskLevel, in.RiskLevel)
	}
	return nil
}

// entry materializes the intent with its assigned identity
func (in Intent) entry(id string, ts Clock) model.AuditLogEntry {
	outcome := in.Outcome
	if outcome == "" {
		outcome = model.OutcomeSuccess
	}
	return model.AuditLogEntry{
		ID:                id,
		Timestamp:         ts.Now(),
		ActorID:           in.ActorID,
		ActorEmail:        in.ActorEmail,
		ActorRole:         in.ActorRole,
		Action:            string(in.Action),
		ResourceType:      in.ResourceType,
		ResourceID:        in.ResourceID,
		ResourceName:      in.ResourceName,
		PermissionKey:     in.PermissionKey,
		RiskLevel:         in.RiskLevel,
		Outcome:           outcome,
		Reason:            in.Reason,
		MFAUsed:           in.MFAUsed,
		ApprovalID:        in.ApprovalID,
		EmergencyOverride: in.EmergencyOverride,
		IPAddress:         in.IPAddress,
		RequestID:         in.RequestID,
		Details:           in.Details,
		RiskScore:         RiskScore(in.Action, in.RiskLevel, outcome == model.OutcomeDenied, in.EmergencyOverride),
	}
}
