package model

import "time"

// DefaultOrganizationID keys the single organization row of a deployment
const DefaultOrganizationID = "default"

// Organization carries the policy knobs read by the evaluator and the audit
// purge.
type Organization struct {
	ID                          string    `gorm:"column:id;primaryKey" json:"id"`
	Name                        string    `gorm:"column:name;not null" json:"name"`
	Domain                      string    `gorm:"column:domain;not null" json:"domain"`
	RetentionDays               int       `gorm:"column:retention_days;not null" json:"retention_days"`
	RequireMFA                  bool      `gorm:"column:require_mfa;not null" json:"require_mfa"`
	RequireApprovalForElevation bool      `gorm:"column:require_approval_for_elevation;not null" json:"require_approval_for_elevation"`
	UpdatedAt                   time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Organization) TableName() string {
	return "organizations"
}
