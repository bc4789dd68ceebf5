package model

import "time"

// AuditLogTable is the table guarded by the immutability plugin and trigger
const AuditLogTable = "audit_log_entries"

// Outcome values recorded on audit entries
const (
	OutcomeSuccess = "success"
	OutcomeDenied  = "denied"
	OutcomeFailure = "failure"
)

// AuditLogEntry is a write-once record of a security relevant action.
// ActorEmail and ActorRole are snapshots taken when the entry is written.
type AuditLogEntry struct {
	ID                string    `gorm:"column:id;primaryKey" json:"id"`
	Timestamp         time.Time `gorm:"column:timestamp;not null" json:"timestamp"`
	ActorID           string    `gorm:"column:actor_id" json:"actor_id"`
	ActorEmail        string    `gorm:"column:actor_email" json:"actor_email,omitempty"`
	ActorRole         string    `gorm:"column:actor_role" json:"actor_role,omitempty"`
	Action            string    `gorm:"column:action;not null" json:"action"`
	ResourceType      string    `gorm:"column:resource_type" json:"resource_type,omitempty"`
	ResourceID        string    `gorm:"column:resource_id" json:"resource_id,omitempty"`
	ResourceName      string    `gorm:"column:resource_name" json:"resource_name,omitempty"`
	PermissionKey     string    `gorm:"column:permission_key" json:"permission_key,omitempty"`
	RiskLevel         int       `gorm:"column:risk_level" json:"risk_level,omitempty"`
	Outcome           string    `gorm:"column:outcome;not null" json:"outcome"`
	Reason            string    `gorm:"column:reason" json:"reason,omitempty"`
	MFAUsed           bool      `gorm:"column:mfa_used;not null" json:"mfa_used"`
	ApprovalID        string    `gorm:"column:approval_id" json:"approval_id,omitempty"`
	EmergencyOverride bool      `gorm:"column:emergency_override;not null" json:"emergency_override"`
	IPAddress         string    `gorm:"column:ip_address" json:"ip_address,omitempty"`
	RequestID         string    `gorm:"column:request_id" json:"request_id,omitempty"`
	Details           string    `gorm:"column:details" json:"details,omitempty"`
	RiskScore         int       `gorm:"column:risk_score;not null" json:"risk_score"`
}

func (AuditLogEntry) TableName() string {
	return AuditLogTable
}
