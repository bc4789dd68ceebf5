package gorm

import (
	"context"
	"regexp"

	"gorm.io/gorm"

	"github.com/fleetguard/fleetguard/pkg/model"
	"github.com/fleetguard/fleetguard/pkg/store"
)

type purgeKey struct{}

// withPurge marks ctx as the retention purge. Only AuditStore.PurgeEntries
// sets it.
func withPurge(ctx context.Context) context.Context {
	return context.WithValue(ctx, purgeKey{}, true)
}

func isPurge(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	purge, _ := ctx.Value(purgeKey{}).(bool)
	return purge
}

var auditWriteSQL = regexp.MustCompile(`(?is)^\s*(UPDATE|DELETE\s+FROM|TRUNCATE(\s+TABLE)?)\s+(ONLY\s+)?("?public"?\.)?"?` + model.AuditLogTable + `"?(\s|;|$)`)

// AuditImmutability is a gorm plugin rejecting every UPDATE, DELETE and
// TRUNCATE of audit_log_entries, through the model API or raw SQL, with
// store.ErrImmutableRecord. Statements issued by the purge are let through.
type AuditImmutability struct{}

// Ensure AuditImmutability implements gorm.Plugin
var _ gorm.Plugin = AuditImmutability{}

func (AuditImmutability) Name() string {
	return "fleetguard:audit_immutability"
}

func (AuditImmutability) Initialize(db *gorm.DB) error {
	if err := db.Callback().Update().Before("gorm:update").
		Register("fleetguard:audit_immutable_update", rejectAuditModelWrite); err != nil {
		return err
	}
	if err := db.Callback().Delete().Before("gorm:delete").
		Register("fleetguard:audit_immutable_delete", rejectAuditModelWrite); err != nil {
		return err
	}
	if err := db.Callback().Raw().Before("gorm:raw").
		Register("fleetguard:audit_immutable_raw", rejectAuditRawWrite); err != nil {
		return err
	}
	if err := db.Callback().Row().Before("gorm:row").
		Register("fleetguard:audit_immutable_row", rejectAuditRawWrite); err != nil {
		return err
	}
	return db.Callback().Query().Before("gorm:query").
		Register("fleetguard:audit_immutable_query", rejectAuditRawWrite)
}

func rejectAuditModelWrite(db *gorm.DB) {
	if db.Error != nil || isPurge(db.Statement.Context) {
		return
	}
	if db.Statement.Table == model.AuditLogTable {
		_ = db.AddError(store.ErrImmutableRecord)
	}
}

func rejectAuditRawWrite(db *gorm.DB) {
	if db.Error != nil || isPurge(db.Statement.Context) {
		return
	}
	if auditWriteSQL.MatchString(db.Statement.SQL.String()) {
		_ = db.AddError(store.ErrImmutableRecord)
	}
}
