package rbac

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fleetguard/fleetguard/pkg/catalog"
	"github.com/fleetguard/fleetguard/pkg/ids"
	"github.com/fleetguard/fleetguard/pkg/model"
	"github.com/fleetguard/fleetguard/pkg/store"
)

// Service manages roles, their grants and actor assignments. Every change to
// a grant set or an assignment is a single atomic storage operation, and
// resolution reads the committed state directly with no caching.
type Service struct {
	roles   store.RolesStore
	catalog *catalog.Catalog
	now     func() time.Time
}

// NewService creates a Service. Grants are validated against cat.
func NewService(roles store.RolesStore, cat *catalog.Catalog) (*Service, error) {
	if roles == nil {
		return nil, errors.New("roles store is required")
	}
	if cat == nil {
		return nil, errors.New("catalog is required")
	}
	return &Service{roles: roles, catalog: cat, now: time.Now}, nil
}

// CreateRole creates a custom role granting keys
func (s *Service) CreateRole(ctx context.Context, name, description string, keys []string) (model.Role, error) {
	return s.createRole(ctx, RoleDefinition{Name: name, Description: description, Grants: keys})
}

func (s *Service) createRole(ctx context.Context, def RoleDefinition) (model.Role, error) {
	name := strings.TrimSpace(def.Name)
	if name == "" {
		return model.Role{}, fmt.Errorf("%w: role name is required", ErrInvalidInput)
	}
	grants, err := s.grantable(ctx, def.Grants)
	if err != nil {
		return model.Role{}, err
	}

	now := s.now().UTC()
	role := model.Role{
		ID:          ids.New(),
		Name:        name,
		Description: strings.TrimSpace(def.Description),
		Builtin:     def.Builtin,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.roles.CreateRole(ctx, role, grants); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return model.Role{}, fmt.Errorf("%w: %s", ErrDuplicateName, name)
		}
		return model.Role{}, err
	}
	return role, nil
}

// EnsureResult reports what EnsureRole changed
type EnsureResult struct {
	Role    model.Role
	Created bool
	Added   []string
}

// EnsureRole creates def's role if it is missing, otherwise adds whichever
// of def's grants the role lacks. Grants are never removed, so re-running
// with the same definition changes nothing.
func (s *Service) EnsureRole(ctx context.Context, def RoleDefinition) (EnsureResult, error) {
	role, err := s.roles.FetchRole(ctx, strings.TrimSpace(def.Name))
	switch {
	case errors.Is(err, store.ErrNotFound):
		role, err = s.createRole(ctx, def)
		if err == nil {
			return EnsureResult{Role: role, Created: true}, nil
		}
		if !errors.Is(err, ErrDuplicateName) {
			return EnsureResult{}, err
		}
		if role, err = s.roles.FetchRole(ctx, strings.TrimSpace(def.Name)); err != nil {
			return EnsureResult{}, err
		}
	case err != nil:
		return EnsureResult{}, err
	}

	grants, err := s.grantable(ctx, def.Grants)
	if err != nil {
		return EnsureResult{}, err
	}
	current, err := s.roles.FetchGrants(ctx, role.ID)
	if err != nil {
		return EnsureResult{}, err
	}
	have := make(map[string]bool, len(current))
	for _, key := range current {
		have[key] = true
	}

	result := EnsureResult{Role: role}
	for _, key := range grants {
		if have[key] {
			continue
		}
		if err := s.roles.AddGrant(ctx, role.ID, key, s.now().UTC()); err != nil {
			return result, err
		}
		result.Added = append(result.Added, key)
	}
	return result, nil
}

// Grant adds key to role. Granting an existing grant is a no-op.
func (s *Service) Grant(ctx context.Context, roleName, key string) error {
	role, err := s.GetRole(ctx, roleName)
	if err != nil {
		return err
	}
	if _, err := s.grantable(ctx, []string{key}); err != nil {
		return err
	}
	return s.roles.AddGrant(ctx, role.ID, key, s.now().UTC())
}

// Revoke removes key from role. Revoking an absent grant is a no-op.
func (s *Service) Revoke(ctx context.Context, roleName, key string) error {
	role, err := s.GetRole(ctx, roleName)
	if err != nil {
		return err
	}
	return s.roles.RemoveGrant(ctx, role.ID, key)
}

// Deactivate deactivates a role together with all of its active
// assignments in one atomic step, and returns how many assignments ended.
func (s *Service) Deactivate(ctx context.Context, roleName string) (int64, error) {
	role, err := s.GetRole(ctx, roleName)
	if err != nil {
		return 0, err
	}
	return s.roles.SetRoleActive(ctx, role.ID, false, s.now().UTC())
}

// Activate reactivates a role. Assignments ended by Deactivate stay ended.
func (s *Service) Activate(ctx context.Context, roleName string) error {
	role, err := s.GetRole(ctx, roleName)
	if err != nil {
		return err
	}
	_, err = s.roles.SetRoleActive(ctx, role.ID, true, s.now().UTC())
	return err
}

// Delete removes a custom role. It fails with ErrBuiltinRole for built-in
// roles and with ErrRoleInUse while any assignment to the role is active.
func (s *Service) Delete(ctx context.Context, roleName string) error {
	role, err := s.GetRole(ctx, roleName)
	if err != nil {
		return err
	}
	if role.Builtin {
		return fmt.Errorf("%w: %s", ErrBuiltinRole, role.Name)
	}
	return s.roles.DeleteRole(ctx, role.ID)
}

// Assign gives actorID the role. Assigning twice is a no-op; assigning an
// inactive role fails with ErrRoleInactive.
func (s *Service) Assign(ctx context.Context, actorID, roleName, assignedBy string) error {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return fmt.Errorf("%w: actor_id is required", ErrInvalidInput)
	}
	role, err := s.GetRole(ctx, roleName)
	if err != nil {
		return err
	}
	return s.roles.AddAssignment(ctx, model.RoleAssignment{
		ID:         ids.New(),
		ActorID:    actorID,
		RoleID:     role.ID,
		Active:     true,
		AssignedBy: assignedBy,
		AssignedAt: s.now().UTC(),
	})
}

// Unassign ends actorID's assignment to the role. Ending a missing
// assignment is a no-op.
func (s *Service) Unassign(ctx context.Context, actorID, roleName string) error {
	role, err := s.GetRole(ctx, roleName)
	if err != nil {
		return err
	}
	return s.roles.DeactivateAssignment(ctx, actorID, role.ID, s.now().UTC())
}

// ResolveEffectivePermissions returns the sorted union of grants across the
// actor's active assignments on active roles
func (s *Service) ResolveEffectivePermissions(ctx context.Context, actorID string) ([]string, error) {
	return s.roles.EffectivePermissions(ctx, actorID)
}

// HasPermission reports whether key is among the actor's effective
// permissions
func (s *Service) HasPermission(ctx context.Context, actorID, key string) (bool, error) {
	keys, err := s.ResolveEffectivePermissions(ctx, actorID)
	if err != nil {
		return false, err
	}
	i := sort.SearchStrings(keys, key)
	return i < len(keys) && keys[i] == key, nil
}

// ActorRoles returns the active roles the actor holds
func (s *Service) ActorRoles(ctx context.Context, actorID string) ([]model.Role, error) {
	return s.roles.FetchActorRoles(ctx, actorID)
}

// HasRole reports whether the actor holds the active role roleName
func (s *Service) HasRole(ctx context.Context, actorID, roleName string) (bool, error) {
	roles, err := s.ActorRoles(ctx, actorID)
	if err != nil {
		return false, err
	}
	for _, role := range roles {
		if role.Name == roleName {
			return true, nil
		}
	}
	return false, nil
}

// ActorRoleSnapshot joins the names of the actor's active roles, for
// recording on audit entries
func (s *Service) ActorRoleSnapshot(ctx context.Context, actorID string) (string, error) {
	roles, err := s.ActorRoles(ctx, actorID)
	if err != nil {
		return "", err
	}
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, role.Name)
	}
	return strings.Join(names, ","), nil
}

// ListRoles returns every role ordered by name
func (s *Service) ListRoles(ctx context.Context) ([]model.Role, error) {
	return s.roles.ListRoles(ctx)
}

// GetRole retrieves a role by name
func (s *Service) GetRole(ctx context.Context, name string) (model.Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Role{}, fmt.Errorf("%w: role name is required", ErrInvalidInput)
	}
	role, err := s.roles.FetchRole(ctx, name)
	if err != nil {
		return model.Role{}, fmt.Errorf("role %s: %w", name, err)
	}
	return role, nil
}

// RoleGrants returns the sorted permission keys granted to a role
func (s *Service) RoleGrants(ctx context.Context, roleName string) ([]string, error) {
	role, err := s.GetRole(ctx, roleName)
	if err != nil {
		return nil, err
	}
	return s.roles.FetchGrants(ctx, role.ID)
}

// Assignments returns the active assignments of a role
func (s *Service) Assignments(ctx context.Context, roleName string) ([]model.RoleAssignment, error) {
	role, err := s.GetRole(ctx, roleName)
	if err != nil {
		return nil, err
	}
	return s.roles.FetchAssignments(ctx, role.ID)
}

// grantable dedupes keys and checks each is a current catalog entry
func (s *Service) grantable(ctx context.Context, keys []string) ([]string, error) {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		if _, err := s.catalog.Grantable(ctx, key); err != nil {
			if errors.Is(err, store.ErrNotFound) || errors.Is(err, catalog.ErrInvalidPermission) {
				return nil, fmt.Errorf("%w: %s", ErrUnknownPermission, key)
			}
			return nil, err
		}
		out = append(out, key)
	}
	sort.Strings(out)
	return out, nil
}
