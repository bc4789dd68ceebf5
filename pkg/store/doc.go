// Package store provides storage abstractions for fleetguard.
//
// This package defines interfaces for database operations, allowing the
// catalog, role store, audit ledger and HTTP endpoints to be decoupled from
// the specific database implementation.
//
// # Available Stores
//
//   - PermissionsStore: permission catalog (create-if-absent, deprecate)
//   - RolesStore: roles, grants and assignments
//   - AuditStore: write-once audit log with a single purge path
//   - OrganizationsStore: organization policy
//   - ApprovalsStore: elevation approval requests
//   - HealthStore: database connectivity
//
// Two implementations exist: store/gorm for PostgreSQL and store/memory for
// tests and single-process deployments.
//
// # Errors
//
// Implementations return the sentinels defined here. Backend faults are
// wrapped with Failure so they match ErrStorageFailure:
//
//	role, err := roles.FetchRole(ctx, "Technician")
//	if errors.Is(err, store.ErrNotFound) {
//	    // Handle not found
//	}
package store
