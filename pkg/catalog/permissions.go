package catalog

import "github.com/fleetguard/fleetguard/pkg/model"

func perm(key, name, category string, risk int, mfa, approval bool) model.Permission {
	return model.Permission{
		Key:              key,
		Name:             name,
		Description:      name,
		Category:         category,
		RiskLevel:        risk,
		RequiresMFA:      mfa,
		RequiresApproval: approval,
	}
}

// BuiltinPermissions is the fleet permission catalog registered on every
// bootstrap
var BuiltinPermissions = []model.Permission{
	perm("assets.view", "View Assets", "Assets", 1, false, false),
	perm("assets.create", "Create Assets", "Assets", 2, false, false),
	perm("assets.edit", "Edit Assets", "Assets", 2, false, false),
	perm("assets.delete", "Delete Assets", "Assets", 3, false, false),
	perm("assets.export", "Export Assets", "Assets", 2, false, false),
	perm("assets.bulk_import", "Bulk Import Assets", "Assets", 3, false, false),
	perm("assets.view_pii", "View Asset PII", "Assets", 3, true, false),

	perm("drivers.view", "View Drivers", "Drivers", 1, false, false),
	perm("drivers.create", "Create Drivers", "Drivers", 2, false, false),
	perm("drivers.edit", "Edit Drivers", "Drivers", 2, false, false),
	perm("drivers.delete", "Delete Drivers", "Drivers", 3, false, false),
	perm("drivers.view_pii", "View Driver PII", "Drivers", 3, true, false),
	perm("drivers.assign_vehicle", "Assign Vehicle to Driver", "Drivers", 2, false, false),

	perm("fuel.view", "View Fuel Transactions", "Fuel", 1, false, false),
	perm("fuel.create", "Create Fuel Transactions", "Fuel", 2, false, false),
	perm("fuel.edit", "Edit Fuel Transactions", "Fuel", 2, false, false),
	perm("fuel.delete", "Delete Fuel Transactions", "Fuel", 3, false, false),
	perm("fuel.approve", "Approve Fuel Transactions", "Fuel", 3, false, true),
	perm("fuel.export", "Export Fuel Data", "Fuel", 2, false, false),

	perm("locations.view", "View Locations", "Locations", 1, false, false),
	perm("locations.create", "Create Locations", "Locations", 2, false, false),
	perm("locations.edit", "Edit Locations", "Locations", 2, false, false),
	perm("locations.delete", "Delete Locations", "Locations", 3, false, false),

	perm("users.view", "View Users", "Users", 2, false, false),
	perm("users.create", "Create Users", "Users", 4, true, false),
	perm("users.edit", "Edit Users", "Users", 4, true, false),
	perm("users.delete", "Delete Users", "Users", 5, true, true),
	perm("users.suspend", "Suspend Users", "Users", 4, true, false),
	perm("users.impersonate", "Impersonate Users", "Users", 5, true, true),

	perm("roles.view", "View Roles", "Roles", 2, false, false),
	perm("roles.create", "Create Roles", "Roles", 5, true, true),
	perm("roles.edit", "Edit Roles", "Roles", 5, true, true),
	perm("roles.delete", "Delete Roles", "Roles", 5, true, true),
	perm("roles.assign", "Assign Roles", "Roles", 4, true, false),

	perm("audit.view", "View Audit Logs", "Audit", 3, true, false),
	perm("audit.export", "Export Audit Logs", "Audit", 4, true, false),
	perm("audit.delete", "Delete Audit Logs", "Audit", 5, true, true),

	perm("system.configure", "Configure System Settings", "System", 5, true, true),
	perm("system.backup", "Create System Backup", "System", 4, true, false),
	perm("system.restore", "Restore System Backup", "System", 5, true, true),

	perm("api.create_token", "Create API Token", "API", 3, true, false),
	perm("api.revoke_token", "Revoke API Token", "API", 3, true, false),
	perm("api.view_tokens", "View API Tokens", "API", 2, false, false),
}

// Keys used by fleetguard's own HTTP surface
const (
	PermAuditView       = "audit.view"
	PermAuditExport     = "audit.export"
	PermRolesView       = "roles.view"
	PermRolesCreate     = "roles.create"
	PermRolesEdit       = "roles.edit"
	PermRolesDelete     = "roles.delete"
	PermRolesAssign     = "roles.assign"
	PermSystemConfigure = "system.configure"
)
