package catalog

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/fleetguard/fleetguard/pkg/model"
	"github.com/fleetguard/fleetguard/pkg/store"
)

var (
	// ErrDuplicateKey is returned when a key is registered again with
	// different semantics
	ErrDuplicateKey = errors.New("permission key already registered with different semantics")

	// ErrInvalidPermission is returned for malformed catalog entries
	ErrInvalidPermission = errors.New("invalid permission")
)

var keyPattern = regexp.MustCompile(`^[a-z0-9_]+\.[a-z0-9_]+$`)

// Catalog is the registry of named permissions. Entries are never deleted.
type Catalog struct {
	store store.PermissionsStore
	now   func() time.Time
}

// New creates a Catalog over s
func New(s store.PermissionsStore) *Catalog {
	return &Catalog{store: s, now: time.Now}
}

// Validate checks the key format and risk level of p
func Validate(p model.Permission) error {
	if !keyPattern.MatchString(p.Key) {
		return fmt.Errorf("%w: key %q must look like <category>.<verb>", ErrInvalidPermission, p.Key)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: %s has no name", ErrInvalidPermission, p.Key)
	}
	if p.RiskLevel < model.MinRiskLevel || p.RiskLevel > model.MaxRiskLevel {
		return fmt.Errorf("%w: %s risk level %d outside %d..%d",
			ErrInvalidPermission, p.Key, p.RiskLevel, model.MinRiskLevel, model.MaxRiskLevel)
	}
	return nil
}

// Register adds p to the catalog. Registering a key again with identical
// fields is a no-op; with any differing field it fails with ErrDuplicateKey.
// It returns the stored entry.
func (c *Catalog) Register(ctx context.Context, p model.Permission) (model.Permission, error) {
	stored, _, err := c.register(ctx, p)
	return stored, err
}

// RegisterAll registers every entry of ps and reports how many were new
func (c *Catalog) RegisterAll(ctx context.Context, ps []model.Permission) (int, error) {
	created := 0
	for _, p := range ps {
		_, inserted, err := c.register(ctx, p)
		if err != nil {
			return created, err
		}
		if inserted {
			created++
		}
	}
	return created, nil
}

// register inserts p if absent, then compares against whatever won the
// insert so concurrent registrations of one key agree
func (c *Catalog) register(ctx context.Context, p model.Permission) (model.Permission, bool, error) {
	if err := Validate(p); err != nil {
		return model.Permission{}, false, err
	}
	p.Deprecated = false
	if p.CreatedAt.IsZero() {
		p.CreatedAt = c.now().UTC()
	}

	inserted, err := c.store.CreatePermission(ctx, p)
	if err != nil {
		return model.Permission{}, false, err
	}
	if inserted {
		return p, true, nil
	}

	existing, err := c.store.FetchPermission(ctx, p.Key)
	if err != nil {
		return model.Permission{}, false, err
	}
	if !existing.SameSemantics(p) {
		return existing, false, fmt.Errorf("%w: %s", ErrDuplicateKey, p.Key)
	}
	return existing, false, nil
}

// Lookup returns the entry for key or store.ErrNotFound
func (c *Catalog) Lookup(ctx context.Context, key string) (model.Permission, error) {
	return c.store.FetchPermission(ctx, key)
}

// List returns entries ordered by category then key. An empty category
// lists the whole catalog.
func (c *Catalog) List(ctx context.Context, category string) ([]model.Permission, error) {
	return c.store.ListPermissions(ctx, category)
}

// Deprecate flags key as deprecated. The entry stays resolvable so that
// historical audit entries keep their meaning, but it can no longer be
// granted.
func (c *Catalog) Deprecate(ctx context.Context, key string) error {
	return c.store.DeprecatePermission(ctx, key)
}

// Grantable returns key's entry if it exists and is not deprecated
func (c *Catalog) Grantable(ctx context.Context, key string) (model.Permission, error) {
	p, err := c.Lookup(ctx, key)
	if err != nil {
		return model.Permission{}, err
	}
	if p.Deprecated {
		return model.Permission{}, fmt.Errorf("%w: %s is deprecated", ErrInvalidPermission, key)
	}
	return p, nil
}
