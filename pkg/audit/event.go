package audit

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fleetguard/fleetguard/pkg/model"
)

// EntryEvent renders a persisted audit entry as a syslog event
type EntryEvent struct {
	Entry model.AuditLogEntry
}

func (e EntryEvent) MessageID() string {
	return e.Entry.Action
}

func (e EntryEvent) Message() string {
	var b strings.Builder
	actor := e.Entry.ActorID
	if e.Entry.ActorEmail != "" {
		actor = e.Entry.ActorEmail
	}
	b.WriteString(actor)
	b.WriteString(" ")
	b.WriteString(e.Entry.Action)

	if target := e.target(); target != "" {
		b.WriteString(" ")
		b.WriteString(target)
	}
	if e.Entry.PermissionKey != "" {
		fmt.Fprintf(&b, " (%s)", e.Entry.PermissionKey)
	}
	b.WriteString(": ")
	b.WriteString(e.Entry.Outcome)
	if e.Entry.Reason != "" {
		b.WriteString(" ")
		b.WriteString(e.Entry.Reason)
	}
	return b.String()
}

func (e EntryEvent) target() string {
	parts := make([]string, 0, 2)
	if e.Entry.ResourceType != "" {
		parts = append(parts, e.Entry.ResourceType)
	}
	switch {
	case e.Entry.ResourceName != "":
		parts = append(parts, e.Entry.ResourceName)
	case e.Entry.ResourceID != "":
		parts = append(parts, e.Entry.ResourceID)
	}
	return strings.Join(parts, " ")
}

func (e EntryEvent) Severity() Severity {
	switch {
	case e.Entry.EmergencyOverride:
		return SeverityAlert
	case e.Entry.Outcome == model.OutcomeFailure:
		return SeverityError
	case e.Entry.Outcome == model.OutcomeDenied:
		return SeverityWarning
	case Tier(e.Entry.RiskScore) == TierHigh:
		return SeverityNotice
	}
	return SeverityInfo
}

func (e EntryEvent) Facility() int {
	return FacilityAuthPriv
}

func (e EntryEvent) Timestamp() time.Time {
	return e.Entry.Timestamp
}

func (e EntryEvent) StructuredData() map[string]map[string]string {
	sd := map[string]map[string]string{
		SDIDActor: {
			"id":    e.Entry.ActorID,
			"email": e.Entry.ActorEmail,
			"role":  e.Entry.ActorRole,
		},
		SDIDAction: {
			"operation":  e.Entry.Action,
			"result":     e.Entry.Outcome,
			"permission": e.Entry.PermissionKey,
			"mfa":        strconv.FormatBool(e.Entry.MFAUsed),
			"approval":   e.Entry.ApprovalID,
		},
		SDIDClient: {
			"ip":      e.Entry.IPAddress,
			"request": e.Entry.RequestID,
		},
		SDIDRisk: {
			"score": strconv.Itoa(e.Entry.RiskScore),
			"tier":  Tier(e.Entry.RiskScore),
		},
	}
	if e.target() != "" {
		sd[SDIDSubject] = map[string]string{
			"type": e.Entry.ResourceType,
			"id":   e.Entry.ResourceID,
			"name": e.Entry.ResourceName,
		}
	}
	if e.Entry.EmergencyOverride {
		sd[SDIDAction]["override"] = "true"
	}
	return sd
}
