package store

// Stores bundles one implementation of every store interface
type Stores struct {
	Permissions   PermissionsStore
	Roles         RolesStore
	Audit         AuditStore
	Organizations OrganizationsStore
	Approvals     ApprovalsStore
	Health        HealthStore
}
