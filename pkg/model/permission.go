package model

import (
	"strings"
	"time"
)

const (
	MinRiskLevel = 1
	MaxRiskLevel = 5
)

// Permission is a catalog entry. The key determines every other field and is
// never reused once registered.
type Permission struct {
	Key              string    `gorm:"column:key;primaryKey" json:"key"`
	Name             string    `gorm:"column:name;not null" json:"name"`
	Description      string    `gorm:"column:description" json:"description,omitempty"`
	Category         string    `gorm:"column:category;not null" json:"category"`
	RiskLevel        int       `gorm:"column:risk_level;not null" json:"risk_level"`
	RequiresMFA      bool      `gorm:"column:requires_mfa;not null" json:"requires_mfa"`
	RequiresApproval bool      `gorm:"column:requires_approval;not null" json:"requires_approval"`
	Deprecated       bool      `gorm:"column:deprecated;not null" json:"deprecated"`
	CreatedAt        time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Permission) TableName() string {
	return "permissions"
}

// Verb returns the part of the key after the category, e.g. "delete" for
// "users.delete".
func (p Permission) Verb() string {
	if i := strings.LastIndex(p.Key, "."); i >= 0 {
		return p.Key[i+1:]
	}
	return p.Key
}

// SameSemantics reports whether two entries for the same key describe the
// same permission. Deprecation and creation time are bookkeeping and are
// not compared.
func (p Permission) SameSemantics(o Permission) bool {
	return p.Key == o.Key &&
		p.Name == o.Name &&
		p.Description == o.Description &&
		p.Category == o.Category &&
		p.RiskLevel == o.RiskLevel &&
		p.RequiresMFA == o.RequiresMFA &&
		p.RequiresApproval == o.RequiresApproval
}
