package gorm

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/fleetguard/fleetguard/pkg/model"
	"github.com/fleetguard/fleetguard/pkg/store"
)

// Ensure AuditStore implements store.AuditStore
var _ store.AuditStore = (*AuditStore)(nil)

// AuditStore implements store.AuditStore using GORM. The database handle
// must have the AuditImmutability plugin installed.
type AuditStore struct {
	db *gorm.DB
}

// NewAuditStore creates a new AuditStore
func NewAuditStore(db *gorm.DB) *AuditStore {
	return &AuditStore{db: db}
}

// CreateEntry inserts an entry.
func (s *AuditStore) CreateEntry(ctx context.Context, e model.AuditLogEntry) error {
	return translate(s.db.WithContext(ctx).Create(&e).Error)
}

// FetchEntry retrieves an entry by ID.
func (s *AuditStore) FetchEntry(ctx context.Context, id string) (model.AuditLogEntry, error) {
	var e model.AuditLogEntry
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&e).Error; err != nil {
		return model.AuditLogEntry{}, translate(err)
	}
	return e, nil
}

// ListEntries returns matching entries, newest first.
func (s *AuditStore) ListEntries(ctx context.Context, f store.AuditFilter) ([]model.AuditLogEntry, error) {
	tx := applyAuditFilter(s.db.WithContext(ctx).Model(&model.AuditLogEntry{}), f).
		Order("timestamp DESC, id DESC")
	if f.Limit > 0 {
		tx = tx.Limit(f.Limit)
	}
	if f.Offset > 0 {
		tx = tx.Offset(f.Offset)
	}

	var entries []model.AuditLogEntry
	if err := tx.Find(&entries).Error; err != nil {
		return nil, translate(err)
	}
	return entries, nil
}

// CountEntries counts matching entries.
func (s *AuditStore) CountEntries(ctx context.Context, f store.AuditFilter) (int64, error) {
	var count int64
	err := applyAuditFilter(s.db.WithContext(ctx).Model(&model.AuditLogEntry{}), f).Count(&count).Error
	if err != nil {
		return 0, translate(err)
	}
	return count, nil
}

// SummarizeRisk buckets the entries of a window by risk tier.
func (s *AuditStore) SummarizeRisk(ctx context.Context, since, until time.Time) (store.RiskSummary, error) {
	summary := store.RiskSummary{ByAction: map[string]int64{}}
	db := s.db.WithContext(ctx)

	type tierRow struct {
		Total  int64
		Low    int64
		Medium int64
		High   int64
	}
	var tiers tierRow
	err := db.Raw(`
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE risk_score < ?) AS low,
			COUNT(*) FILTER (WHERE risk_score >= ? AND risk_score < ?) AS medium,
			COUNT(*) FILTER (WHERE risk_score >= ?) AS high
		FROM audit_log_entries
		WHERE timestamp >= ? AND timestamp < ?
	`, store.RiskTierMedium, store.RiskTierMedium, store.RiskTierHigh, store.RiskTierHigh, since, until).
		Scan(&tiers).Error
	if err != nil {
		return store.RiskSummary{}, translate(err)
	}
	summary.Total = tiers.Total
	summary.Low = tiers.Low
	summary.Medium = tiers.Medium
	summary.High = tiers.High

	type actionRow struct {
		Action string
		Count  int64
	}
	var actions []actionRow
	err = db.Raw(`
		SELECT action, COUNT(*) AS count
		FROM audit_log_entries
		WHERE timestamp >= ? AND timestamp < ?
		GROUP BY action
		ORDER BY action
	`, since, until).Scan(&actions).Error
	if err != nil {
		return store.RiskSummary{}, translate(err)
	}
	for _, row := range actions {
		summary.ByAction[row.Action] = row.Count
	}

	var actors []store.ActorCount
	err = db.Raw(`
		SELECT actor_id, MAX(actor_email) AS actor_email, COUNT(*) AS count
		FROM audit_log_entries
		WHERE timestamp >= ? AND timestamp < ?
		GROUP BY actor_id
		ORDER BY count DESC, actor_id
		LIMIT 10
	`, since, until).Scan(&actors).Error
	if err != nil {
		return store.RiskSummary{}, translate(err)
	}
	summary.TopActors = actors

	return summary, nil
}

// PurgeEntries deletes entries older than cutoff through the sanctioned path.
func (s *AuditStore) PurgeEntries(ctx context.Context, cutoff time.Time) (int64, error) {
	var purged int64
	err := s.db.WithContext(withPurge(ctx)).Transaction(func(tx *gorm.DB) error {
		// Lets the immutability trigger accept deletes for this transaction only
		if err := tx.Exec(`SET LOCAL fleetguard.audit_purge = 'on'`).Error; err != nil {
			return err
		}
		res := tx.Where("timestamp < ?", cutoff).Delete(&model.AuditLogEntry{})
		purged = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, translate(err)
	}
	return purged, nil
}

// UpdateEntry is rejected by the immutability plugin.
func (s *AuditStore) UpdateEntry(ctx context.Context, e model.AuditLogEntry) error {
	return translate(s.db.WithContext(ctx).Save(&e).Error)
}

// DeleteEntry is rejected by the immutability plugin.
func (s *AuditStore) DeleteEntry(ctx context.Context, id string) error {
	return translate(s.db.WithContext(ctx).Where("id = ?", id).Delete(&model.AuditLogEntry{}).Error)
}

func applyAuditFilter(tx *gorm.DB, f store.AuditFilter) *gorm.DB {
	if f.Actor != "" {
		tx = tx.Where("(actor_id = ? OR actor_email ILIKE ?)", f.Actor, "%"+f.Actor+"%")
	}
	if f.Action != "" {
		tx = tx.Where("action = ?", f.Action)
	}
	if f.ResourceType != "" {
		tx = tx.Where("resource_type = ?", f.ResourceType)
	}
	if !f.Since.IsZero() {
		tx = tx.Where("timestamp >= ?", f.Since)
	}
	if !f.Until.IsZero() {
		tx = tx.Where("timestamp < ?", f.Until)
	}
	if f.MinRiskScore > 0 {
		tx = tx.Where("risk_score >= ?", f.MinRiskScore)
	}
	if f.Search != "" {
		pattern := "%" + f.Search + "%"
		tx = tx.Where(
			"(actor_email ILIKE ? OR resource_id ILIKE ? OR resource_name ILIKE ? OR permission_key ILIKE ?)",
			pattern, pattern, pattern, pattern,
		)
	}
	return tx
}
