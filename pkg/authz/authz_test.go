package authz

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fleetguard/fleetguard/pkg/approval"
	"github.com/fleetguard/fleetguard/pkg/audit"
	"github.com/fleetguard/fleetguard/pkg/catalog"
	"github.com/fleetguard/fleetguard/pkg/model"
	"github.com/fleetguard/fleetguard/pkg/org"
	"github.com/fleetguard/fleetguard/pkg/rbac"
	"github.com/fleetguard/fleetguard/pkg/store"
	"github.com/fleetguard/fleetguard/pkg/store/memory"
)

type fixture struct {
	eval      *Evaluator
	roles     *rbac.Service
	policy    *org.Holder
	approvals *approval.Service
}

func newFixture(t testing.TB) *fixture {
	t.Helper()
	ctx := context.Background()

	s, err := memory.New()
	require.NoError(t, err)
	cat := catalog.New(s)
	_, err = cat.RegisterAll(ctx, catalog.BuiltinPermissions)
	require.NoError(t, err)

	roles, err := rbac.NewService(s, cat)
	require.NoError(t, err)
	perms, err := cat.List(ctx, "")
	require.NoError(t, err)
	for _, def := range rbac.BuiltinRoles(perms) {
		_, err := roles.EnsureRole(ctx, def)
		require.NoError(t, err)
	}

	holder, err := org.NewHolder(ctx, s, model.Organization{
		Name:                        org.DefaultName,
		Domain:                      org.DefaultDomain,
		RetentionDays:               org.DefaultRetentionDays,
		RequireApprovalForElevation: true,
	})
	require.NoError(t, err)

	approvals, err := approval.NewService(s, roles, []byte(strings.Repeat("s", 32)), 10*time.Minute)
	require.NoError(t, err)

	require.NoError(t, roles.Assign(ctx, "admin-1", rbac.RoleAdmin, "test"))
	require.NoError(t, roles.Assign(ctx, "admin-2", rbac.RoleAdmin, "test"))
	require.NoError(t, roles.Assign(ctx, "tech", rbac.RoleTechnician, "test"))

	return &fixture{
		eval:      NewEvaluator(cat, roles, holder, approvals),
		roles:     roles,
		policy:    holder,
		approvals: approvals,
	}
}

func (f *fixture) evaluate(t *testing.T, req Request) (Decision, audit.Intent) {
	t.Helper()
	d, in, err := f.eval.Evaluate(context.Background(), req)
	require.NoError(t, err)
	return d, in
}

func TestUnknownPermissionIsDenied(t *testing.T) {
	f := newFixture(t)

	for _, actor := range []string{"admin-1", "tech", "nobody"} {
		d, in := f.evaluate(t, Request{ActorID: actor, PermissionKey: "assets.teleport", MFAVerified: true})
		assert.False(t, d.Allowed, actor)
		assert.Equal(t, ReasonNotFound, d.Reason, actor)
		assert.Equal(t, model.OutcomeDenied, in.Outcome)
		assert.Equal(t, "assets.teleport", in.PermissionKey)
		assert.NoError(t, in.Validate())
	}
}

func TestActorWithoutAssignmentsIsDeniedEverything(t *testing.T) {
	f := newFixture(t)

	for _, p := range catalog.BuiltinPermissions {
		d, _ := f.evaluate(t, Request{ActorID: "nobody", PermissionKey: p.Key, MFAVerified: true})
		assert.Equal(t, ReasonNotGranted, d.Reason, p.Key)
	}
}

func TestTechnicianScenario(t *testing.T) {
	f := newFixture(t)

	d, in := f.evaluate(t, Request{ActorID: "tech", PermissionKey: "assets.delete"})
	assert.Equal(t, Decision{Reason: ReasonNotGranted}, d)
	assert.Equal(t, audit.ActionDelete, in.Action)
	assert.Equal(t, rbac.RoleTechnician, in.ActorRole)

	d, in = f.evaluate(t, Request{ActorID: "tech", PermissionKey: "fuel.create", MFAVerified: false})
	assert.True(t, d.Allowed)
	assert.Equal(t, ReasonGranted, d.Reason)
	assert.Equal(t, model.OutcomeSuccess, in.Outcome)
	assert.Equal(t, audit.ActionCreate, in.Action)
	assert.Equal(t, 2, in.RiskLevel)
	assert.NoError(t, d.Err())
}

func TestMFAGating(t *testing.T) {
	f := newFixture(t)

	d, _ := f.evaluate(t, Request{ActorID: "admin-1", PermissionKey: "audit.view", MFAVerified: false})
	assert.Equal(t, ReasonMfaRequired, d.Reason)
	assert.ErrorIs(t, d.Err(), ErrForbidden)

	d, in := f.evaluate(t, Request{ActorID: "admin-1", PermissionKey: "audit.view", MFAVerified: true})
	assert.True(t, d.Allowed)
	assert.True(t, in.MFAUsed)
}

func TestOrganizationRequireMFAAppliesToNextEvaluation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	req := Request{ActorID: "tech", PermissionKey: "fuel.view"}

	d, _ := f.evaluate(t, req)
	require.True(t, d.Allowed)

	on := true
	_, err := f.policy.Update(ctx, org.Patch{RequireMFA: &on})
	require.NoError(t, err)
	d, _ = f.evaluate(t, req)
	assert.Equal(t, ReasonMfaRequired, d.Reason)

	off := false
	_, err = f.policy.Update(ctx, org.Patch{RequireMFA: &off})
	require.NoError(t, err)
	d, _ = f.evaluate(t, req)
	assert.True(t, d.Allowed)
}

func TestElevationApprovalFollowsPolicy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	// users.create is risk 4 without its own approval flag
	req := Request{ActorID: "admin-1", PermissionKey: "users.create", MFAVerified: true}

	d, in := f.evaluate(t, req)
	assert.Equal(t, ReasonApprovalRequired, d.Reason)
	assert.Equal(t, "no approval token", in.Details)

	off := false
	_, err := f.policy.Update(ctx, org.Patch{RequireApprovalForElevation: &off})
	require.NoError(t, err)
	d, _ = f.evaluate(t, req)
	assert.True(t, d.Allowed)

	// users.delete carries its own approval flag
	d, _ = f.evaluate(t, Request{ActorID: "admin-1", PermissionKey: "users.delete", MFAVerified: true})
	assert.Equal(t, ReasonApprovalRequired, d.Reason)
}

func TestApprovalScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	req := Request{ActorID: "admin-1", PermissionKey: "users.delete", MFAVerified: true}

	d, _ := f.evaluate(t, req)
	assert.Equal(t, ReasonApprovalRequired, d.Reason)

	pending, err := f.approvals.Request(ctx, "admin-1", "users.delete", "remove contractor")
	require.NoError(t, err)
	_, _, err = f.approvals.Approve(ctx, pending.ID, "admin-1", "")
	require.ErrorIs(t, err, approval.ErrSelfApproval)
	_, token, err := f.approvals.Approve(ctx, pending.ID, "admin-2", "")
	require.NoError(t, err)

	req.ApprovalToken = token
	d, in := f.evaluate(t, req)
	assert.True(t, d.Allowed)
	assert.Equal(t, pending.ID, d.ApprovalID)
	assert.Equal(t, pending.ID, in.ApprovalID)
	assert.Equal(t, "approved by admin-2", in.Details)

	// the token is bound to its requestor
	d, _ = f.evaluate(t, Request{ActorID: "admin-2", PermissionKey: "users.delete", MFAVerified: true, ApprovalToken: token})
	assert.Equal(t, ReasonApprovalRequired, d.Reason)

	// MFA is checked before approval
	req.MFAVerified = false
	d, _ = f.evaluate(t, req)
	assert.Equal(t, ReasonMfaRequired, d.Reason)
}

func TestNilApprovalVerifierDeniesApprovalGatedPermissions(t *testing.T) {
	f := newFixture(t)
	f.eval.approvals = nil

	d, _ := f.evaluate(t, Request{ActorID: "admin-1", PermissionKey: "users.delete", MFAVerified: true, ApprovalToken: "x"})
	assert.Equal(t, ReasonApprovalRequired, d.Reason)
}

func TestRevokedGrantIsVisibleImmediately(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	req := Request{ActorID: "tech", PermissionKey: "fuel.create"}

	d, _ := f.evaluate(t, req)
	require.True(t, d.Allowed)

	require.NoError(t, f.roles.Revoke(ctx, rbac.RoleTechnician, "fuel.create"))
	d, _ = f.evaluate(t, req)
	assert.Equal(t, ReasonNotGranted, d.Reason)

	require.NoError(t, f.roles.Grant(ctx, rbac.RoleTechnician, "fuel.create"))
	_, err := f.roles.Deactivate(ctx, rbac.RoleTechnician)
	require.NoError(t, err)
	d, _ = f.evaluate(t, req)
	assert.Equal(t, ReasonNotGranted, d.Reason)
}

func TestIntentCarriesRequestContext(t *testing.T) {
	f := newFixture(t)

	_, in := f.evaluate(t, Request{
		ActorID:       "tech",
		ActorEmail:    "tech@fleet.local",
		PermissionKey: "fuel.view",
		IPAddress:     "10.0.0.7",
		RequestID:     "req-1",
		Action:        audit.ActionExport,
		ResourceType:  "fuel_transaction",
		ResourceID:    "42",
	})
	assert.Equal(t, audit.Intent{
		ActorID:       "tech",
		ActorEmail:    "tech@fleet.local",
		ActorRole:     rbac.RoleTechnician,
		Action:        audit.ActionExport,
		ResourceType:  "fuel_transaction",
		ResourceID:    "42",
		PermissionKey: "fuel.view",
		RiskLevel:     1,
		Outcome:       model.OutcomeSuccess,
		Reason:        "Granted",
		IPAddress:     "10.0.0.7",
		RequestID:     "req-1",
	}, in)
}

type mockCatalog struct {
	mock.Mock
}

func (m *mockCatalog) Lookup(ctx context.Context, key string) (model.Permission, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(model.Permission), args.Error(1)
}

func TestStorageFailureIsReturned(t *testing.T) {
	f := newFixture(t)
	cat := &mockCatalog{}
	failure := store.Failure(errors.New("connection reset"))
	cat.On("Lookup", mock.Anything, "fuel.view").Return(model.Permission{}, failure)
	f.eval.catalog = cat

	_, _, err := f.eval.Evaluate(context.Background(), Request{ActorID: "tech", PermissionKey: "fuel.view"})
	assert.ErrorIs(t, err, store.ErrStorageFailure)
	cat.AssertExpectations(t)
}

func TestReasonJSON(t *testing.T) {
	b, err := json.Marshal(Decision{Allowed: false, Reason: ReasonMfaRequired})
	require.NoError(t, err)
	assert.JSONEq(t, `{"allowed":false,"reason":"MfaRequired"}`, string(b))

	var d Decision
	require.NoError(t, json.Unmarshal([]byte(`{"allowed":true,"reason":"granted"}`), &d))
	assert.Equal(t, ReasonGranted, d.Reason)

	assert.Error(t, json.Unmarshal([]byte(`{"reason":"Maybe"}`), &d))
	assert.Equal(t, []string{"Granted", "NotFound", "NotGranted", "MfaRequired", "ApprovalRequired"}, ReasonStrings())
	assert.False(t, Reason(9).IsAReason())
}

func BenchmarkEvaluate(b *testing.B) {
	f := newFixture(b)
	ctx := context.Background()
	req := Request{ActorID: "tech", PermissionKey: "fuel.create"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := f.eval.Evaluate(ctx, req); err != nil {
			b.Fatal(err)
		}
	}
}
