// Package model defines the database models for fleetguard.
//
// This package contains GORM models that map to the fleetguard PostgreSQL
// schema created by the migrations under db/migrations.
//
// # Core Models
//
//   - Permission: catalog entries with risk level and elevation flags
//   - Role: named sets of permission grants
//   - RoleGrant: the permission keys granted to a role
//   - RoleAssignment: links an actor to a role
//   - Organization: retention and elevation policy
//   - AuditLogEntry: write-once audit records
//   - ApprovalRequest: second-actor approvals for elevated actions
//
// # Database Schema
//
//   - permissions: the catalog, never deleted from
//   - roles, role_grants, role_assignments: role store
//   - organizations: a single policy row
//   - audit_log_entries: rejects UPDATE and DELETE outside the purge path
//   - approval_requests: approval workflow state
package model
