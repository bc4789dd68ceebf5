// Package org holds the organization policy read by the evaluator and the
// audit purge.
package org

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fleetguard/fleetguard/pkg/audit"
	"github.com/fleetguard/fleetguard/pkg/model"
	"github.com/fleetguard/fleetguard/pkg/store"
)

// ErrInvalidPolicy is returned for patches that would leave the policy
// unusable
var ErrInvalidPolicy = errors.New("invalid organization policy")

// Defaults of the organization created on first start
const (
	DefaultName          = "Default Fleet Organization"
	DefaultDomain        = "fleet.local"
	DefaultRetentionDays = 365
)

// Defaults returns the organization created on first start
func Defaults() model.Organization {
	return model.Organization{
		ID:                          model.DefaultOrganizationID,
		Name:                        DefaultName,
		Domain:                      DefaultDomain,
		RetentionDays:               DefaultRetentionDays,
		RequireMFA:                  false,
		RequireApprovalForElevation: true,
	}
}

// Policy is an immutable snapshot of the organization
type Policy struct {
	OrganizationID              string    `json:"id"`
	Name                        string    `json:"name"`
	Domain                      string    `json:"domain"`
	RetentionDays               int       `json:"retention_days"`
	RequireMFA                  bool      `json:"require_mfa"`
	RequireApprovalForElevation bool      `json:"require_approval_for_elevation"`
	UpdatedAt                   time.Time `json:"updated_at"`
}

// Retention is the audit retention the policy sets
func (p Policy) Retention() audit.Retention {
	return audit.Retention{OrganizationID: p.OrganizationID, Days: p.RetentionDays}
}

func fromModel(o model.Organization) Policy {
	return Policy{
		OrganizationID:              o.ID,
		Name:                        o.Name,
		Domain:                      o.Domain,
		RetentionDays:               o.RetentionDays,
		RequireMFA:                  o.RequireMFA,
		RequireApprovalForElevation: o.RequireApprovalForElevation,
		UpdatedAt:                   o.UpdatedAt,
	}
}

func (p Policy) toModel() model.Organization {
	return model.Organization{
		ID:                          p.OrganizationID,
		Name:                        p.Name,
		Domain:                      p.Domain,
		RetentionDays:               p.RetentionDays,
		RequireMFA:                  p.RequireMFA,
		RequireApprovalForElevation: p.RequireApprovalForElevation,
		UpdatedAt:                   p.UpdatedAt,
	}
}

// Patch changes the fields it sets
type Patch struct {
	Name                        *string `json:"name,omitempty"`
	Domain                      *string `json:"domain,omitempty"`
	RetentionDays               *int    `json:"retention_days,omitempty"`
	RequireMFA                  *bool   `json:"require_mfa,omitempty"`
	RequireApprovalForElevation *bool   `json:"require_approval_for_elevation,omitempty"`
}

// Empty reports whether the patch changes nothing
func (p Patch) Empty() bool {
	return p.Name == nil && p.Domain == nil && p.RetentionDays == nil &&
		p.RequireMFA == nil && p.RequireApprovalForElevation == nil
}

func (p Patch) apply(policy Policy) (Policy, error) {
	if p.Name != nil {
		policy.Name = strings.TrimSpace(*p.Name)
	}
	if p.Domain != nil {
		policy.Domain = strings.TrimSpace(strings.ToLower(*p.Domain))
	}
	if p.RetentionDays != nil {
		policy.RetentionDays = *p.RetentionDays
	}
	if p.RequireMFA != nil {
		policy.RequireMFA = *p.RequireMFA
	}
	if p.RequireApprovalForElevation != nil {
		policy.RequireApprovalForElevation = *p.RequireApprovalForElevation
	}

	switch {
	case policy.Name == "":
		return Policy{}, fmt.Errorf("%w: name is required", ErrInvalidPolicy)
	case policy.Domain == "":
		return Policy{}, fmt.Errorf("%w: domain is required", ErrInvalidPolicy)
	case policy.RetentionDays < 1:
		return Policy{}, fmt.Errorf("%w: retention_days must be at least 1", ErrInvalidPolicy)
	}
	return policy, nil
}

// Holder serves the current policy to concurrent readers. Readers never
// block; an update is visible to every evaluation that starts after it
// returns.
type Holder struct {
	store   store.OrganizationsStore
	id      string
	current atomic.Pointer[Policy]
	mu      sync.Mutex
	now     func() time.Time
}

// NewHolder loads organization defaults.ID, creating it from defaults if it
// does not exist yet
func NewHolder(ctx context.Context, s store.OrganizationsStore, defaults model.Organization) (*Holder, error) {
	if defaults.ID == "" {
		defaults.ID = model.DefaultOrganizationID
	}
	if defaults.UpdatedAt.IsZero() {
		defaults.UpdatedAt = time.Now().UTC()
	}
	if _, err := (Patch{}).apply(fromModel(defaults)); err != nil {
		return nil, err
	}
	if _, err := s.CreateOrganization(ctx, defaults); err != nil {
		return nil, fmt.Errorf("creating organization %s: %w", defaults.ID, err)
	}

	h := &Holder{store: s, id: defaults.ID, now: time.Now}
	if _, err := h.Reload(ctx); err != nil {
		return nil, err
	}
	return h, nil
}

// Current returns the policy in effect
func (h *Holder) Current() Policy {
	return *h.current.Load()
}

// Reload replaces the policy with the stored organization
func (h *Holder) Reload(ctx context.Context) (Policy, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	o, err := h.store.FetchOrganization(ctx, h.id)
	if err != nil {
		return Policy{}, fmt.Errorf("loading organization %s: %w", h.id, err)
	}
	policy := fromModel(o)
	h.current.Store(&policy)
	return policy, nil
}

// Update applies p, persists the result and publishes it
func (h *Holder) Update(ctx context.Context, p Patch) (Policy, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	next, err := p.apply(*h.current.Load())
	if err != nil {
		return Policy{}, err
	}
	next.UpdatedAt = h.now().UTC()
	if err := h.store.SaveOrganization(ctx, next.toModel()); err != nil {
		return Policy{}, err
	}
	h.current.Store(&next)
	return next, nil
}

// RetentionSource reads the retention of the current policy
func (h *Holder) RetentionSource() audit.RetentionSource {
	return func(context.Context) (audit.Retention, error) {
		return h.Current().Retention(), nil
	}
}
