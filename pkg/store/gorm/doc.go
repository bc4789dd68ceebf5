// Package gorm provides GORM-based implementations of the store interfaces
// defined in the parent store package.
//
// This package contains concrete implementations that use GORM for
// PostgreSQL operations. Database handles used with AuditStore must install
// the AuditImmutability plugin, which db.Connect does:
//
//	database.Use(gorm.AuditImmutability{})
//
// The plugin rejects UPDATE and DELETE on audit_log_entries with
// store.ErrImmutableRecord unless the statement belongs to
// AuditStore.PurgeEntries. The database trigger installed by the migrations
// enforces the same rule for clients that bypass this package.
package gorm
