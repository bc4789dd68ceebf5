package audit

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// MaxExportRows bounds a single CSV export
const MaxExportRows = 10000

var exportHeader = []string{
	"id", "timestamp", "actor_id", "actor_email", "actor_role", "action",
	"resource_type", "resource_id", "resource_name", "permission_key",
	"risk_level", "risk_score", "outcome", "reason", "mfa_used",
	"approval_id", "emergency_override", "ip_address", "request_id",
}

// Export writes matching entries to w as CSV, newest first, and returns the
// number of rows written. At most limit rows are written, where limit is
// clamped to MaxExportRows.
func (l *Ledger) Export(ctx context.Context, f Filter, limit int, w io.Writer) (int, error) {
	f.Limit = limit
	f.Offset = 0
	f = clampPage(f, MaxExportRows, MaxExportRows)

	entries, err := l.store.ListEntries(ctx, f)
	if err != nil {
		return 0, err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return 0, fmt.Errorf("writing export header: %w", err)
	}
	for _, e := range entries {
		record := []string{
			e.ID,
			e.Timestamp.UTC().Format(time.RFC3339Nano),
			e.ActorID,
			e.ActorEmail,
			e.ActorRole,
			e.Action,
			e.ResourceType,
			e.ResourceID,
			e.ResourceName,
			e.PermissionKey,
			strconv.Itoa(e.RiskLevel),
			strconv.Itoa(e.RiskScore),
			e.Outcome,
			e.Reason,
			strconv.FormatBool(e.MFAUsed),
			e.ApprovalID,
			strconv.FormatBool(e.EmergencyOverride),
			e.IPAddress,
			e.RequestID,
		}
		if err := cw.Write(record); err != nil {
			return 0, fmt.Errorf("writing export row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, fmt.Errorf("flushing export: %w", err)
	}
	return len(entries), nil
}
