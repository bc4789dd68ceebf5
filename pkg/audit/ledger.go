package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/fleetguard/fleetguard/pkg/ids"
	"github.com/fleetguard/fleetguard/pkg/metrics"
	"github.com/fleetguard/fleetguard/pkg/model"
	"github.com/fleetguard/fleetguard/pkg/store"
)

// Filter narrows Query, Export and Count
type Filter = store.AuditFilter

// Query paging bounds
const (
	DefaultQueryLimit = 50
	MaxQueryLimit     = 1000
)

// Ledger is the append-only audit log. Entries are written exactly once by
// Append; there is no update path and the only deletion path is
// PurgeExpired.
type Ledger struct {
	store  store.AuditStore
	logger *Logger
	clock  Clock
}

// Option configures a Ledger
type Option func(*Ledger)

// WithLogger sets the syslog logger entries are echoed to
func WithLogger(l *Logger) Option {
	return func(ledger *Ledger) {
		ledger.logger = l
	}
}

// WithClock sets the timestamp source
func WithClock(c Clock) Option {
	return func(ledger *Ledger) {
		ledger.clock = c
	}
}

// NewLedger creates a Ledger over s
func NewLedger(s store.AuditStore, opts ...Option) *Ledger {
	l := &Ledger{
		store:  s,
		logger: NewLogger(),
		clock:  NewMonotonicClock(nil),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append persists in as a new entry with a server-assigned ID, timestamp and
// risk score. The entry is inserted once; a failed insert is not retried.
func (l *Ledger) Append(ctx context.Context, in Intent) (model.AuditLogEntry, error) {
	if err := in.Validate(); err != nil {
		return model.AuditLogEntry{}, err
	}

	e := in.entry(ids.New(), l.clock)
	if err := l.store.CreateEntry(ctx, e); err != nil {
		return model.AuditLogEntry{}, fmt.Errorf("appending audit entry: %w", err)
	}

	metrics.AuditAppends.WithLabelValues(e.Action, e.Outcome).Inc()
	if l.logger != nil {
		l.logger.Log(EntryEvent{Entry: e})
	}
	return e, nil
}

// Get retrieves an entry by ID
func (l *Ledger) Get(ctx context.Context, id string) (model.AuditLogEntry, error) {
	return l.store.FetchEntry(ctx, id)
}

// Query returns a page of matching entries, newest first, and the total
// number of matches
func (l *Ledger) Query(ctx context.Context, f Filter) ([]model.AuditLogEntry, int64, error) {
	f = clampPage(f, DefaultQueryLimit, MaxQueryLimit)

	entries, err := l.store.ListEntries(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	total, err := l.store.CountEntries(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// RiskSummary counts entries with since <= timestamp < until by risk tier
// and action
func (l *Ledger) RiskSummary(ctx context.Context, since, until time.Time) (store.RiskSummary, error) {
	return l.store.SummarizeRisk(ctx, since, until)
}

// Update exists so that callers holding a Ledger hit the same storage guard
// as everyone else. It always fails with store.ErrImmutableRecord.
func (l *Ledger) Update(ctx context.Context, e model.AuditLogEntry) error {
	return l.store.UpdateEntry(ctx, e)
}

// Delete always fails with store.ErrImmutableRecord
func (l *Ledger) Delete(ctx context.Context, id string) error {
	return l.store.DeleteEntry(ctx, id)
}

func clampPage(f Filter, def, max int) Filter {
	if f.Limit <= 0 {
		f.Limit = def
	}
	if f.Limit > max {
		f.Limit = max
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}
