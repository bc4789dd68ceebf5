package rbac

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetguard/fleetguard/pkg/catalog"
	"github.com/fleetguard/fleetguard/pkg/model"
	"github.com/fleetguard/fleetguard/pkg/store"
	"github.com/fleetguard/fleetguard/pkg/store/memory"
)

func newService(t *testing.T) (*Service, *catalog.Catalog) {
	t.Helper()
	s, err := memory.New()
	require.NoError(t, err)

	cat := catalog.New(s)
	_, err = cat.RegisterAll(context.Background(), catalog.BuiltinPermissions)
	require.NoError(t, err)

	svc, err := NewService(s, cat)
	require.NoError(t, err)
	return svc, cat
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(nil, nil)
	assert.Error(t, err)
}

func TestCreateRole(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	role, err := svc.CreateRole(ctx, " Night Shift ", "after hours", []string{"fuel.view", "fuel.view", "drivers.view"})
	require.NoError(t, err)
	assert.Equal(t, "Night Shift", role.Name)
	assert.True(t, role.Active)
	assert.False(t, role.Builtin)

	grants, err := svc.RoleGrants(ctx, "Night Shift")
	require.NoError(t, err)
	assert.Equal(t, []string{"drivers.view", "fuel.view"}, grants)

	_, err = svc.CreateRole(ctx, "Night Shift", "", nil)
	assert.ErrorIs(t, err, ErrDuplicateName)

	_, err = svc.CreateRole(ctx, "Teleporters", "", []string{"fleet.teleport"})
	assert.ErrorIs(t, err, ErrUnknownPermission)

	_, err = svc.CreateRole(ctx, "  ", "", nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestGrantRevokeAreIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, cat := newService(t)
	_, err := svc.CreateRole(ctx, "Auditors", "", nil)
	require.NoError(t, err)

	require.NoError(t, svc.Grant(ctx, "Auditors", "audit.view"))
	require.NoError(t, svc.Grant(ctx, "Auditors", "audit.view"))
	grants, err := svc.RoleGrants(ctx, "Auditors")
	require.NoError(t, err)
	assert.Equal(t, []string{"audit.view"}, grants)

	require.NoError(t, svc.Revoke(ctx, "Auditors", "audit.view"))
	require.NoError(t, svc.Revoke(ctx, "Auditors", "audit.view"))
	grants, err = svc.RoleGrants(ctx, "Auditors")
	require.NoError(t, err)
	assert.Empty(t, grants)

	require.NoError(t, cat.Deprecate(ctx, "api.view_tokens"))
	assert.ErrorIs(t, svc.Grant(ctx, "Auditors", "api.view_tokens"), ErrUnknownPermission)
	assert.ErrorIs(t, svc.Grant(ctx, "Nobody", "audit.view"), store.ErrNotFound)
}

func TestResolveEffectivePermissions(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	for _, def := range BuiltinRoles(catalog.BuiltinPermissions) {
		_, err := svc.EnsureRole(ctx, def)
		require.NoError(t, err)
	}

	keys, err := svc.ResolveEffectivePermissions(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, keys, "no assignment means no permissions")

	require.NoError(t, svc.Assign(ctx, "tech-1", RoleTechnician, "admin"))
	require.NoError(t, svc.Assign(ctx, "tech-1", RoleDispatcher, "admin"))

	keys, err = svc.ResolveEffectivePermissions(ctx, "tech-1")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"assets.view", "drivers.assign_vehicle", "drivers.view",
		"fuel.create", "fuel.view", "locations.view",
	}, keys)

	ok, err := svc.HasPermission(ctx, "tech-1", "fuel.create")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = svc.HasPermission(ctx, "tech-1", "assets.delete")
	require.NoError(t, err)
	assert.False(t, ok)

	snapshot, err := svc.ActorRoleSnapshot(ctx, "tech-1")
	require.NoError(t, err)
	assert.Equal(t, "Dispatcher,Technician", snapshot)

	require.NoError(t, svc.Unassign(ctx, "tech-1", RoleDispatcher))
	keys, err = svc.ResolveEffectivePermissions(ctx, "tech-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"drivers.view", "fuel.create", "fuel.view"}, keys)
}

func TestDeactivateCascades(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	_, err := svc.CreateRole(ctx, "Night Shift", "", []string{"fuel.view"})
	require.NoError(t, err)
	require.NoError(t, svc.Assign(ctx, "a-1", "Night Shift", "admin"))
	require.NoError(t, svc.Assign(ctx, "a-2", "Night Shift", "admin"))

	ended, err := svc.Deactivate(ctx, "Night Shift")
	require.NoError(t, err)
	assert.Equal(t, int64(2), ended)

	keys, err := svc.ResolveEffectivePermissions(ctx, "a-1")
	require.NoError(t, err)
	assert.Empty(t, keys)

	assert.ErrorIs(t, svc.Assign(ctx, "a-3", "Night Shift", "admin"), ErrRoleInactive)

	require.NoError(t, svc.Activate(ctx, "Night Shift"))
	keys, err = svc.ResolveEffectivePermissions(ctx, "a-1")
	require.NoError(t, err)
	assert.Empty(t, keys, "activation does not revive assignments")

	require.NoError(t, svc.Delete(ctx, "Night Shift"), "a deactivated role has no active assignments")
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	_, err := svc.EnsureRole(ctx, BuiltinRoles(catalog.BuiltinPermissions)[2])
	require.NoError(t, err)
	_, err = svc.CreateRole(ctx, "Temp", "", []string{"fuel.view"})
	require.NoError(t, err)
	require.NoError(t, svc.Assign(ctx, "a-1", "Temp", "admin"))

	assert.ErrorIs(t, svc.Delete(ctx, "Temp"), ErrRoleInUse)
	assert.ErrorIs(t, svc.Delete(ctx, RoleTechnician), ErrBuiltinRole)

	require.NoError(t, svc.Unassign(ctx, "a-1", "Temp"))
	require.NoError(t, svc.Delete(ctx, "Temp"))
	_, err = svc.GetRole(ctx, "Temp")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestEnsureRole(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	def := RoleDefinition{Name: "Yard", Grants: []string{"assets.view"}}

	result, err := svc.EnsureRole(ctx, def)
	require.NoError(t, err)
	assert.True(t, result.Created)

	require.NoError(t, svc.Grant(ctx, "Yard", "locations.view"))
	def.Grants = append(def.Grants, "fuel.view")
	result, err = svc.EnsureRole(ctx, def)
	require.NoError(t, err)
	assert.False(t, result.Created)
	assert.Equal(t, []string{"fuel.view"}, result.Added)

	grants, err := svc.RoleGrants(ctx, "Yard")
	require.NoError(t, err)
	assert.Equal(t, []string{"assets.view", "fuel.view", "locations.view"}, grants, "grants are never removed")

	result, err = svc.EnsureRole(ctx, def)
	require.NoError(t, err)
	assert.Empty(t, result.Added)
}

func TestBuiltinRoles(t *testing.T) {
	defs := map[string]RoleDefinition{}
	for _, def := range BuiltinRoles(catalog.BuiltinPermissions) {
		assert.True(t, def.Builtin)
		defs[def.Name] = def
	}
	require.Len(t, defs, 5)

	assert.Len(t, defs[RoleAdmin].Grants, len(catalog.BuiltinPermissions))
	assert.Equal(t, []string{"fuel.view", "fuel.create", "drivers.view"}, defs[RoleTechnician].Grants)

	manager := defs[RoleFleetManager].Grants
	assert.Contains(t, manager, "assets.delete")
	assert.Contains(t, manager, "roles.view")
	assert.Contains(t, manager, "audit.export")
	for _, denied := range []string{"users.view", "users.delete", "roles.assign", "audit.delete", "system.backup"} {
		assert.NotContains(t, manager, denied)
	}

	for _, key := range defs[RoleReadOnly].Grants {
		assert.Regexp(t, `\.view$`, key)
	}
	assert.NotContains(t, defs[RoleReadOnly].Grants, "drivers.view_pii")

	deprecated := append([]model.Permission(nil), catalog.BuiltinPermissions...)
	deprecated[0].Deprecated = true
	assert.NotContains(t, BuiltinRoles(deprecated)[0].Grants, deprecated[0].Key)
}

func TestConcurrentGrantRevoke(t *testing.T) {
	ctx := context.Background()
	svc, cat := newService(t)

	var keys []string
	for i := 0; i < 20; i++ {
		key := fmt.Sprintf("load.p%02d", i)
		_, err := cat.Register(ctx, model.Permission{Key: key, Name: key, Category: "Load", RiskLevel: 1})
		require.NoError(t, err)
		keys = append(keys, key)
	}
	// even keys start granted and get revoked, odd keys start absent and get granted
	var initial []string
	for i, key := range keys {
		if i%2 == 0 {
			initial = append(initial, key)
		}
	}
	_, err := svc.CreateRole(ctx, "Load", "", initial)
	require.NoError(t, err)
	require.NoError(t, svc.Assign(ctx, "a-1", "Load", "admin"))

	var wg sync.WaitGroup
	for i, key := range keys {
		wg.Add(1)
		go func(i int, key string) {
			defer wg.Done()
			if i%2 == 0 {
				assert.NoError(t, svc.Revoke(ctx, "Load", key))
			} else {
				assert.NoError(t, svc.Grant(ctx, "Load", key))
			}
		}(i, key)
	}
	wg.Wait()

	resolved, err := svc.ResolveEffectivePermissions(ctx, "a-1")
	require.NoError(t, err)
	var want []string
	for i, key := range keys {
		if i%2 == 1 {
			want = append(want, key)
		}
	}
	assert.Equal(t, want, resolved)
}
