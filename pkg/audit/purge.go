package audit

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/fleetguard/fleetguard/pkg/metrics"
	"github.com/fleetguard/fleetguard/pkg/model"
)

// ErrInvalidRetention is returned when a purge is asked to run with a
// retention window shorter than one day
var ErrInvalidRetention = errors.New("retention must be at least one day")

// Retention is the policy a purge runs under
type Retention struct {
	OrganizationID string
	Days           int
}

// Cutoff is the oldest timestamp kept when purging at asOf
func (r Retention) Cutoff(asOf time.Time) time.Time {
	return asOf.UTC().Add(-time.Duration(r.Days) * 24 * time.Hour)
}

// PurgeResult reports a completed purge
type PurgeResult struct {
	Cutoff  time.Time           `json:"cutoff"`
	Purged  int64               `json:"purged"`
	Summary model.AuditLogEntry `json:"summary"`
}

// PurgeExpired deletes every entry older than the retention window relative
// to asOf, then appends a summary entry recording the count and policy. The
// cutoff is computed once, so entries appended while the purge runs are
// never eligible.
func (l *Ledger) PurgeExpired(ctx context.Context, asOf time.Time, policy Retention) (PurgeResult, error) {
	if policy.Days < 1 {
		return PurgeResult{}, ErrInvalidRetention
	}

	cutoff := policy.Cutoff(asOf)
	purged, err := l.store.PurgeEntries(ctx, cutoff)
	if err != nil {
		return PurgeResult{}, fmt.Errorf("purging audit entries: %w", err)
	}
	metrics.AuditPurged.Add(float64(purged))

	summary, err := l.Append(ctx, Intent{
		ActorID:      SystemActor,
		Action:       ActionDelete,
		ResourceType: "audit_log",
		ResourceID:   policy.OrganizationID,
		ResourceName: "retention purge",
		Outcome:      model.OutcomeSuccess,
		Details: fmt.Sprintf("purged %d entries older than %s under retention_days=%d",
			purged, cutoff.Format(time.RFC3339), policy.Days),
	})
	if err != nil {
		return PurgeResult{Cutoff: cutoff, Purged: purged}, err
	}
	return PurgeResult{Cutoff: cutoff, Purged: purged, Summary: summary}, nil
}

// RetentionSource supplies the current retention policy
type RetentionSource func(ctx context.Context) (Retention, error)

// Purger runs PurgeExpired periodically
type Purger struct {
	ledger *Ledger
	policy RetentionSource
	clock  Clock
}

// NewPurger creates a Purger reading its policy from policy on every run
func NewPurger(ledger *Ledger, policy RetentionSource) *Purger {
	return &Purger{ledger: ledger, policy: policy, clock: ledger.clock}
}

// RunOnce performs a single purge at the current time
func (p *Purger) RunOnce(ctx context.Context) (PurgeResult, error) {
	policy, err := p.policy(ctx)
	if err != nil {
		return PurgeResult{}, fmt.Errorf("reading retention policy: %w", err)
	}
	return p.ledger.PurgeExpired(ctx, p.clock.Now(), policy)
}

// Run purges every interval until ctx is done. Failed runs are logged and
// retried on the next tick.
func (p *Purger) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := p.RunOnce(ctx)
			if err != nil {
				log.Printf("audit purge failed: %v", err)
				continue
			}
			if result.Purged > 0 {
				log.Printf("audit purge removed %d entries older than %s", result.Purged, result.Cutoff.Format(time.RFC3339))
			}
		}
	}
}
