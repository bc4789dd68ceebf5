package catalog

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetguard/fleetguard/pkg/model"
	"github.com/fleetguard/fleetguard/pkg/store"
	"github.com/fleetguard/fleetguard/pkg/store/memory"
)

func newCatalog(t *testing.T) *Catalog {
	t.Helper()
	s, err := memory.New()
	require.NoError(t, err)
	return New(s)
}

func TestValidate(t *testing.T) {
	valid := model.Permission{Key: "fuel.view", Name: "View Fuel", RiskLevel: 1}
	assert.NoError(t, Validate(valid))

	tests := []struct {
		name string
		p    model.Permission
	}{
		{"no verb", model.Permission{Key: "fuel", Name: "x", RiskLevel: 1}},
		{"upper case", model.Permission{Key: "Fuel.View", Name: "x", RiskLevel: 1}},
		{"nested", model.Permission{Key: "fuel.card.view", Name: "x", RiskLevel: 1}},
		{"no name", model.Permission{Key: "fuel.view", RiskLevel: 1}},
		{"risk too low", model.Permission{Key: "fuel.view", Name: "x", RiskLevel: 0}},
		{"risk too high", model.Permission{Key: "fuel.view", Name: "x", RiskLevel: 6}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, Validate(tt.p), ErrInvalidPermission)
		})
	}
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	c := newCatalog(t)
	p := model.Permission{Key: "users.delete", Name: "Delete Users", Category: "Users", RiskLevel: 5, RequiresMFA: true, RequiresApproval: true}

	stored, err := c.Register(ctx, p)
	require.NoError(t, err)
	assert.False(t, stored.CreatedAt.IsZero())

	again, err := c.Register(ctx, p)
	require.NoError(t, err, "identical registration is a no-op")
	assert.Equal(t, stored.CreatedAt, again.CreatedAt)

	changed := p
	changed.RequiresApproval = false
	_, err = c.Register(ctx, changed)
	assert.ErrorIs(t, err, ErrDuplicateKey)

	got, err := c.Lookup(ctx, "users.delete")
	require.NoError(t, err)
	assert.True(t, got.RequiresApproval, "a rejected registration never changes the entry")
}

func TestRegisterConcurrentSameKey(t *testing.T) {
	ctx := context.Background()
	c := newCatalog(t)
	p := model.Permission{Key: "fuel.approve", Name: "Approve Fuel", Category: "Fuel", RiskLevel: 3, RequiresApproval: true}

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Register(ctx, p)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	all, err := c.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRegisterAllIsIdempotent(t *testing.T) {
	ctx := context.Background()
	c := newCatalog(t)

	created, err := c.RegisterAll(ctx, BuiltinPermissions)
	require.NoError(t, err)
	assert.Equal(t, len(BuiltinPermissions), created)
	first, err := c.List(ctx, "")
	require.NoError(t, err)

	created, err = c.RegisterAll(ctx, BuiltinPermissions)
	require.NoError(t, err)
	assert.Zero(t, created)
	second, err := c.List(ctx, "")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestBuiltinPermissions(t *testing.T) {
	seen := map[string]bool{}
	for _, p := range BuiltinPermissions {
		assert.NoError(t, Validate(p))
		assert.False(t, seen[p.Key], "duplicate key %s", p.Key)
		seen[p.Key] = true
	}
	assert.Len(t, BuiltinPermissions, 44)

	for _, key := range []string{PermAuditView, PermAuditExport, PermRolesView, PermRolesCreate, PermRolesEdit, PermRolesDelete, PermRolesAssign, PermSystemConfigure} {
		assert.True(t, seen[key], key)
	}
}

func TestListByCategory(t *testing.T) {
	ctx := context.Background()
	c := newCatalog(t)
	_, err := c.RegisterAll(ctx, BuiltinPermissions)
	require.NoError(t, err)

	audit, err := c.List(ctx, "Audit")
	require.NoError(t, err)
	keys := make([]string, 0, len(audit))
	for _, p := range audit {
		keys = append(keys, p.Key)
	}
	assert.Equal(t, []string{"audit.delete", "audit.export", "audit.view"}, keys)
}

func TestDeprecate(t *testing.T) {
	ctx := context.Background()
	c := newCatalog(t)
	_, err := c.Register(ctx, model.Permission{Key: "api.view_tokens", Name: "View API Tokens", Category: "API", RiskLevel: 2})
	require.NoError(t, err)

	require.NoError(t, c.Deprecate(ctx, "api.view_tokens"))

	p, err := c.Lookup(ctx, "api.view_tokens")
	require.NoError(t, err, "deprecated entries stay resolvable")
	assert.True(t, p.Deprecated)

	_, err = c.Grantable(ctx, "api.view_tokens")
	assert.ErrorIs(t, err, ErrInvalidPermission)

	_, err = c.Grantable(ctx, "api.unknown")
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.ErrorIs(t, c.Deprecate(ctx, "api.unknown"), store.ErrNotFound)
}
