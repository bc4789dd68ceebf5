package model

import "time"

// Role is a named set of permission grants
type Role struct {
	ID          string    `gorm:"column:id;primaryKey" json:"id"`
	Name        string    `gorm:"column:name;uniqueIndex;not null" json:"name"`
	Description string    `gorm:"column:description" json:"description,omitempty"`
	Builtin     bool      `gorm:"column:builtin;not null" json:"builtin"`
	Active      bool      `gorm:"column:active;not null" json:"active"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Role) TableName() string {
	return "roles"
}

// RoleGrant is the edge between a role and a permission key
type RoleGrant struct {
	RoleID        string    `gorm:"column:role_id;primaryKey"`
	PermissionKey string    `gorm:"column:permission_key;primaryKey"`
	GrantedAt     time.Time `gorm:"column:granted_at"`
}

func (RoleGrant) TableName() string {
	return "role_grants"
}

// RoleAssignment links an actor to a role
type RoleAssignment struct {
	ID            string     `gorm:"column:id;primaryKey" json:"id"`
	ActorID       string     `gorm:"column:actor_id;not null" json:"actor_id"`
	RoleID        string     `gorm:"column:role_id;not null" json:"role_id"`
	Active        bool       `gorm:"column:active;not null" json:"active"`
	AssignedBy    string     `gorm:"column:assigned_by" json:"assigned_by,omitempty"`
	AssignedAt    time.Time  `gorm:"column:assigned_at" json:"assigned_at"`
	DeactivatedAt *time.Time `gorm:"column:deactivated_at" json:"deactivated_at,omitempty"`
}

func (RoleAssignment) TableName() string {
	return "role_assignments"
}
