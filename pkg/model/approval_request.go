package model

import "time"

// ApprovalStatus is the lifecycle state of an approval request
type ApprovalStatus string

const (
	ApprovalPending   ApprovalStatus = "pending"
	ApprovalApproved  ApprovalStatus = "approved"
	ApprovalDenied    ApprovalStatus = "denied"
	ApprovalExpired   ApprovalStatus = "expired"
	ApprovalCancelled ApprovalStatus = "cancelled"
)

// ApprovalRequest asks a second actor to confirm an elevated action
type ApprovalRequest struct {
	ID            string         `gorm:"column:id;primaryKey" json:"id"`
	RequestorID   string         `gorm:"column:requestor_id;not null" json:"requestor_id"`
	PermissionKey string         `gorm:"column:permission_key;not null" json:"permission_key"`
	Reason        string         `gorm:"column:reason" json:"reason,omitempty"`
	Status        ApprovalStatus `gorm:"column:status;not null" json:"status"`
	ApproverID    string         `gorm:"column:approver_id" json:"approver_id,omitempty"`
	Notes         string         `gorm:"column:notes" json:"notes,omitempty"`
	RequestedAt   time.Time      `gorm:"column:requested_at;not null" json:"requested_at"`
	ExpiresAt     time.Time      `gorm:"column:expires_at;not null" json:"expires_at"`
	DecidedAt     *time.Time     `gorm:"column:decided_at" json:"decided_at,omitempty"`
}

func (ApprovalRequest) TableName() string {
	return "approval_requests"
}

// IsExpired returns true if the request is past its expiry at t
func (a *ApprovalRequest) IsExpired(t time.Time) bool {
	return !t.Before(a.ExpiresAt)
}
