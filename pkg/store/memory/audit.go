package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-memdb"

	"github.com/fleetguard/fleetguard/pkg/model"
	"github.com/fleetguard/fleetguard/pkg/store"
)

const topActorsLimit = 10

// CreateEntry inserts e exactly once
func (s *Store) CreateEntry(_ context.Context, e model.AuditLogEntry) error {
	return s.update(func(txn *memdb.Txn) error {
		existing, err := txn.First(tableAudit, "id", e.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return store.ErrAlreadyExists
		}
		return txn.Insert(tableAudit, &e)
	})
}

// FetchEntry retrieves an entry by ID
func (s *Store) FetchEntry(_ context.Context, id string) (model.AuditLogEntry, error) {
	var e model.AuditLogEntry
	err := s.view(func(txn *memdb.Txn) error {
		raw, err := txn.First(tableAudit, "id", id)
		if err != nil {
			return err
		}
		if raw == nil {
			return store.ErrNotFound
		}
		e = *raw.(*model.AuditLogEntry)
		return nil
	})
	return e, err
}

// ListEntries returns matching entries, newest first
func (s *Store) ListEntries(_ context.Context, f store.AuditFilter) ([]model.AuditLogEntry, error) {
	entries, err := s.matching(f)
	if err != nil {
		return nil, err
	}

	if f.Offset >= len(entries) {
		return []model.AuditLogEntry{}, nil
	}
	entries = entries[f.Offset:]
	if f.Limit > 0 && f.Limit < len(entries) {
		entries = entries[:f.Limit]
	}
	return entries, nil
}

// CountEntries counts matching entries ignoring Limit and Offset
func (s *Store) CountEntries(_ context.Context, f store.AuditFilter) (int64, error) {
	entries, err := s.matching(f)
	return int64(len(entries)), err
}

// SummarizeRisk aggregates entries with since <= timestamp < until
func (s *Store) SummarizeRisk(_ context.Context, since, until time.Time) (store.RiskSummary, error) {
	entries, err := s.matching(store.AuditFilter{Since: since, Until: until})
	if err != nil {
		return store.RiskSummary{}, err
	}

	summary := store.RiskSummary{ByAction: map[string]int64{}, TopActors: []store.ActorCount{}}
	actors := map[string]*store.ActorCount{}
	for _, e := range entries {
		summary.Total++
		switch {
		case e.RiskScore >= store.RiskTierHigh:
			summary.High++
		case e.RiskScore >= store.RiskTierMedium:
			summary.Medium++
		default:
			summary.Low++
		}
		summary.ByAction[e.Action]++

		count, ok := actors[e.ActorID]
		if !ok {
			count = &store.ActorCount{ActorID: e.ActorID}
			actors[e.ActorID] = count
		}
		count.Count++
		if e.ActorEmail > count.ActorEmail {
			count.ActorEmail = e.ActorEmail
		}
	}

	for _, count := range actors {
		summary.TopActors = append(summary.TopActors, *count)
	}
	sort.Slice(summary.TopActors, func(i, j int) bool {
		a, b := summary.TopActors[i], summary.TopActors[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.ActorID < b.ActorID
	})
	if len(summary.TopActors) > topActorsLimit {
		summary.TopActors = summary.TopActors[:topActorsLimit]
	}
	return summary, nil
}

// PurgeEntries deletes entries older than cutoff in one transaction
func (s *Store) PurgeEntries(_ context.Context, cutoff time.Time) (int64, error) {
	var purged int64
	err := s.update(func(txn *memdb.Txn) error {
		it, err := txn.Get(tableAudit, "id")
		if err != nil {
			return err
		}
		var expired []interface{}
		for raw := it.Next(); raw != nil; raw = it.Next() {
			if raw.(*model.AuditLogEntry).Timestamp.Before(cutoff) {
				expired = append(expired, raw)
			}
		}
		for _, raw := range expired {
			if err := txn.Delete(tableAudit, raw); err != nil {
				return err
			}
		}
		purged = int64(len(expired))
		return nil
	})
	if err != nil {
		return 0, err
	}
	return purged, nil
}

// UpdateEntry always fails with ErrImmutableRecord
func (s *Store) UpdateEntry(context.Context, model.AuditLogEntry) error {
	return store.ErrImmutableRecord
}

// DeleteEntry always fails with ErrImmutableRecord
func (s *Store) DeleteEntry(context.Context, string) error {
	return store.ErrImmutableRecord
}

func (s *Store) matching(f store.AuditFilter) ([]model.AuditLogEntry, error) {
	var entries []model.AuditLogEntry
	err := s.view(func(txn *memdb.Txn) error {
		it, err := txn.Get(tableAudit, "id")
		if err != nil {
			return err
		}
		for raw := it.Next(); raw != nil; raw = it.Next() {
			e := raw.(*model.AuditLogEntry)
			if matches(e, f) {
				entries = append(entries, *e)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].Timestamp.Equal(entries[j].Timestamp) {
			return entries[i].Timestamp.After(entries[j].Timestamp)
		}
		return entries[i].ID > entries[j].ID
	})
	return entries, nil
}

func matches(e *model.AuditLogEntry, f store.AuditFilter) bool {
	if f.Actor != "" && e.ActorID != f.Actor && !containsFold(e.ActorEmail, f.Actor) {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.ResourceType != "" && e.ResourceType != f.ResourceType {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !e.Timestamp.Before(f.Until) {
		return false
	}
	if e.RiskScore < f.MinRiskScore {
		return false
	}
	if f.Search != "" &&
		!containsFold(e.ActorEmail, f.Search) &&
		!containsFold(e.ResourceID, f.Search) &&
		!containsFold(e.ResourceName, f.Search) &&
		!containsFold(e.PermissionKey, f.Search) {
		return false
	}
	return true
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
