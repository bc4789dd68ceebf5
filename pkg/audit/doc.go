// Package audit implements fleetguard's append-only audit log.
//
// Callers describe a finished action as an Intent and pass it to
// Ledger.Append, which assigns a ULID, a monotonic server-side UTC
// timestamp and a risk score before inserting it exactly once. Every
// persisted entry is also echoed as an RFC5424 syslog line through Logger.
//
// # Immutability
//
// Entries cannot be changed or removed once written. The storage layer
// rejects every update and delete of audit rows with store.ErrImmutableRecord;
// Ledger.Update and Ledger.Delete exist only to surface that error. The sole
// deletion path is PurgeExpired, which removes entries older than the
// organization's retention window and records its own summary entry.
//
// # Risk Score
//
//	score = min(100, weight(action) + 12*risk_level + 5 if denied)
//	score = 100 for emergency overrides
//
// Scores below 30 are low, 30-59 medium and 60 or more high.
//
// # Usage
//
//	ledger := audit.NewLedger(store)
//	entry, err := ledger.Append(ctx, audit.Intent{
//	    ActorID:       "u-42",
//	    Action:        audit.ActionDelete,
//	    ResourceType:  "vehicle",
//	    ResourceID:    "17",
//	    PermissionKey: "assets.delete",
//	    RiskLevel:     4,
//	})
//
// Appending is an explicit obligation of every mutating call site. Nothing in
// fleetguard intercepts requests to audit them implicitly.
package audit
