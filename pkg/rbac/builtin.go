package rbac

import (
	"strings"

	"github.com/fleetguard/fleetguard/pkg/model"
)

// Built-in role names
const (
	RoleAdmin        = "Admin"
	RoleFleetManager = "Fleet Manager"
	RoleTechnician   = "Technician"
	RoleReadOnly     = "Read-only"
	RoleDispatcher   = "Dispatcher"
)

// RoleDefinition describes a role to seed
type RoleDefinition struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description,omitempty"`
	Grants      []string `yaml:"grants" json:"grants"`
	Builtin     bool     `yaml:"-" json:"builtin"`
}

// BuiltinRoles derives the five built-in roles from the catalog entries in
// permissions. Deprecated entries are never granted.
func BuiltinRoles(permissions []model.Permission) []RoleDefinition {
	var all, manager, readOnly []string
	for _, p := range permissions {
		if p.Deprecated {
			continue
		}
		all = append(all, p.Key)
		if fleetManagerGrant(p) {
			manager = append(manager, p.Key)
		}
		if p.Verb() == "view" {
			readOnly = append(readOnly, p.Key)
		}
	}

	return []RoleDefinition{
		{
			Name:        RoleAdmin,
			Description: "Full access to every permission",
			Grants:      all,
			Builtin:     true,
		},
		{
			Name:        RoleFleetManager,
			Description: "Fleet operations without user, role or system administration",
			Grants:      manager,
			Builtin:     true,
		},
		{
			Name:        RoleTechnician,
			Description: "Records fuel transactions and looks up drivers",
			Grants:      []string{"fuel.view", "fuel.create", "drivers.view"},
			Builtin:     true,
		},
		{
			Name:        RoleReadOnly,
			Description: "View access without personally identifiable information",
			Grants:      readOnly,
			Builtin:     true,
		},
		{
			Name:        RoleDispatcher,
			Description: "Dispatches drivers to vehicles and locations",
			Grants:      []string{"assets.view", "drivers.view", "drivers.assign_vehicle", "locations.view", "fuel.view"},
			Builtin:     true,
		},
	}
}

func fleetManagerGrant(p model.Permission) bool {
	category, _, _ := strings.Cut(p.Key, ".")
	switch category {
	case "users", "system":
		return false
	case "roles":
		return p.Key == "roles.view"
	case "audit":
		return p.Key != "audit.delete"
	}
	return true
}
