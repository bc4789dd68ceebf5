package store

import (
	"context"
	"time"

	"github.com/fleetguard/fleetguard/pkg/model"
)

// Risk tier boundaries on the 0-100 risk score
const (
	RiskTierMedium = 30
	RiskTierHigh   = 60
)

// AuditFilter narrows audit queries. Zero values don't filter.
type AuditFilter struct {
	// Actor matches the actor ID exactly or the actor email as a substring
	Actor        string
	Action       string
	ResourceType string
	// Since is inclusive, Until is exclusive
	Since        time.Time
	Until        time.Time
	MinRiskScore int
	// Search matches email, resource and permission fields as a substring
	Search string
	Limit  int
	Offset int
}

// ActorCount is an actor with its number of entries
type ActorCount struct {
	ActorID    string `json:"actor_id"`
	ActorEmail string `json:"actor_email,omitempty"`
	Count      int64  `json:"count"`
}

// RiskSummary buckets entries of a window by risk tier
type RiskSummary struct {
	Total     int64            `json:"total"`
	Low       int64            `json:"low"`
	Medium    int64            `json:"medium"`
	High      int64            `json:"high"`
	ByAction  map[string]int64 `json:"by_action"`
	TopActors []ActorCount     `json:"top_actors"`
}

// AuditStore abstracts audit log storage. Entries are write-once: UpdateEntry
// and DeleteEntry exist so that the storage boundary can reject them, and
// always fail with ErrImmutableRecord.
type AuditStore interface {
	// CreateEntry inserts e exactly once
	CreateEntry(ctx context.Context, e model.AuditLogEntry) error

	// FetchEntry returns ErrNotFound if the entry doesn't exist
	FetchEntry(ctx context.Context, id string) (model.AuditLogEntry, error)

	// ListEntries returns matching entries, newest first
	ListEntries(ctx context.Context, f AuditFilter) ([]model.AuditLogEntry, error)

	// CountEntries counts matching entries ignoring Limit and Offset
	CountEntries(ctx context.Context, f AuditFilter) (int64, error)

	// SummarizeRisk aggregates entries with since <= timestamp < until
	SummarizeRisk(ctx context.Context, since, until time.Time) (RiskSummary, error)

	// PurgeEntries deletes entries with timestamp strictly before cutoff in
	// one statement and returns the number deleted. It is the only deletion
	// path.
	PurgeEntries(ctx context.Context, cutoff time.Time) (int64, error)

	// UpdateEntry always fails with ErrImmutableRecord
	UpdateEntry(ctx context.Context, e model.AuditLogEntry) error

	// DeleteEntry always fails with ErrImmutableRecord
	DeleteEntry(ctx context.Context, id string) error
}
