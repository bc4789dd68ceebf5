package server

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"

	"github.com/fleetguard/fleetguard/pkg/approval"
	"github.com/fleetguard/fleetguard/pkg/audit"
	"github.com/fleetguard/fleetguard/pkg/authz"
	"github.com/fleetguard/fleetguard/pkg/catalog"
	"github.com/fleetguard/fleetguard/pkg/config"
	"github.com/fleetguard/fleetguard/pkg/org"
	"github.com/fleetguard/fleetguard/pkg/rbac"
	"github.com/fleetguard/fleetguard/pkg/store"
)

// NewServices wires the services over stores. The organization is created
// from cfg if the store has none. Without a configured signing key a random
// one is generated, so approval tokens don't survive a restart.
func NewServices(ctx context.Context, stores store.Stores, cfg *config.FleetguardConfig, opts ...audit.Option) (Services, error) {
	cat := catalog.New(stores.Permissions)
	roles, err := rbac.NewService(stores.Roles, cat)
	if err != nil {
		return Services{}, err
	}

	policy, err := org.NewHolder(ctx, stores.Organizations, cfg.Organization())
	if err != nil {
		return Services{}, fmt.Errorf("loading organization policy: %w", err)
	}

	key := []byte(cfg.ApprovalSigningKey)
	if len(key) == 0 {
		log.Printf("approval_signing_key not set, generating an ephemeral key")
		key = make([]byte, approval.MinSigningKeyLength)
		if _, err := rand.Read(key); err != nil {
			return Services{}, fmt.Errorf("generating approval signing key: %w", err)
		}
	}
	approvals, err := approval.NewService(stores.Approvals, roles, key, cfg.ApprovalTTL)
	if err != nil {
		return Services{}, err
	}

	return Services{
		Catalog:   cat,
		Roles:     roles,
		Evaluator: authz.NewEvaluator(cat, roles, policy, approvals),
		Ledger:    audit.NewLedger(stores.Audit, opts...),
		Policy:    policy,
		Approvals: approvals,
		Health:    stores.Health,
	}, nil
}
