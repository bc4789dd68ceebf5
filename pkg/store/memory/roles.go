package memory

import (
	"context"
	"sort"
	"time"

	"github.com/hashicorp/go-memdb"

	"github.com/fleetguard/fleetguard/pkg/model"
	"github.com/fleetguard/fleetguard/pkg/store"
)

// CreateRole inserts a role with its initial grants
func (s *Store) CreateRole(_ context.Context, role model.Role, grants []string) error {
	return s.update(func(txn *memdb.Txn) error {
		existing, err := txn.First(tableRoles, "name", role.Name)
		if err != nil {
			return err
		}
		if existing != nil {
			return store.ErrAlreadyExists
		}
		if existing, err = txn.First(tableRoles, "id", role.ID); err != nil {
			return err
		}
		if existing != nil {
			return store.ErrAlreadyExists
		}

		if err := txn.Insert(tableRoles, &role); err != nil {
			return err
		}
		for _, key := range grants {
			if err := insertGrant(txn, role.ID, key, role.CreatedAt); err != nil {
				return err
			}
		}
		return nil
	})
}

// FetchRole retrieves a role by name
func (s *Store) FetchRole(_ context.Context, name string) (model.Role, error) {
	var role model.Role
	err := s.view(func(txn *memdb.Txn) error {
		raw, err := txn.First(tableRoles, "name", name)
		if err != nil {
			return err
		}
		if raw == nil {
			return store.ErrNotFound
		}
		role = *raw.(*model.Role)
		return nil
	})
	return role, err
}

// ListRoles returns all roles ordered by name
func (s *Store) ListRoles(_ context.Context) ([]model.Role, error) {
	var roles []model.Role
	err := s.view(func(txn *memdb.Txn) error {
		it, err := txn.Get(tableRoles, "name")
		if err != nil {
			return err
		}
		for raw := it.Next(); raw != nil; raw = it.Next() {
			roles = append(roles, *raw.(*model.Role))
		}
		return nil
	})
	return roles, err
}

// FetchGrants returns the sorted permission keys granted to a role
func (s *Store) FetchGrants(_ context.Context, roleID string) ([]string, error) {
	var keys []string
	err := s.view(func(txn *memdb.Txn) error {
		var err error
		keys, err = grantsOf(txn, roleID)
		return err
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

// AddGrant grants key to a role
func (s *Store) AddGrant(_ context.Context, roleID, key string, at time.Time) error {
	return s.update(func(txn *memdb.Txn) error {
		if _, err := roleByID(txn, roleID); err != nil {
			return err
		}
		return insertGrant(txn, roleID, key, at)
	})
}

// RemoveGrant revokes key from a role
func (s *Store) RemoveGrant(_ context.Context, roleID, key string) error {
	return s.update(func(txn *memdb.Txn) error {
		raw, err := txn.First(tableGrants, "id", roleID, key)
		if err != nil || raw == nil {
			return err
		}
		return txn.Delete(tableGrants, raw)
	})
}

// SetRoleActive flips the active flag, cascading deactivation to assignments
func (s *Store) SetRoleActive(_ context.Context, roleID string, active bool, at time.Time) (int64, error) {
	var cascaded int64
	err := s.update(func(txn *memdb.Txn) error {
		role, err := roleByID(txn, roleID)
		if err != nil {
			return err
		}
		role.Active = active
		role.UpdatedAt = at
		if err := txn.Insert(tableRoles, &role); err != nil {
			return err
		}
		if active {
			return nil
		}

		assignments, err := assignmentsOf(txn, "role", roleID)
		if err != nil {
			return err
		}
		for _, a := range assignments {
			if !a.Active {
				continue
			}
			a.Active = false
			deactivatedAt := at
			a.DeactivatedAt = &deactivatedAt
			if err := txn.Insert(tableAssignments, &a); err != nil {
				return err
			}
			cascaded++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return cascaded, nil
}

// DeleteRole removes a role with its grants and inactive assignments
func (s *Store) DeleteRole(_ context.Context, roleID string) error {
	return s.update(func(txn *memdb.Txn) error {
		role, err := roleByID(txn, roleID)
		if err != nil {
			return err
		}

		assignments, err := assignmentsOf(txn, "role", roleID)
		if err != nil {
			return err
		}
		for _, a := range assignments {
			if a.Active {
				return store.ErrRoleInUse
			}
		}

		if _, err := txn.DeleteAll(tableAssignments, "role", roleID); err != nil {
			return err
		}
		if _, err := txn.DeleteAll(tableGrants, "role", roleID); err != nil {
			return err
		}
		return txn.Delete(tableRoles, &role)
	})
}

// AddAssignment assigns a role to an actor, reactivating a previous assignment
func (s *Store) AddAssignment(_ context.Context, a model.RoleAssignment) error {
	return s.update(func(txn *memdb.Txn) error {
		role, err := roleByID(txn, a.RoleID)
		if err != nil {
			return err
		}
		if !role.Active {
			return store.ErrRoleInactive
		}

		raw, err := txn.First(tableAssignments, "pair", a.ActorID, a.RoleID)
		if err != nil {
			return err
		}
		if raw != nil {
			existing := *raw.(*model.RoleAssignment)
			if existing.Active {
				return nil
			}
			a.ID = existing.ID
		}

		a.Active = true
		a.DeactivatedAt = nil
		return txn.Insert(tableAssignments, &a)
	})
}

// DeactivateAssignment ends an actor's assignment
func (s *Store) DeactivateAssignment(_ context.Context, actorID, roleID string, at time.Time) error {
	return s.update(func(txn *memdb.Txn) error {
		raw, err := txn.First(tableAssignments, "pair", actorID, roleID)
		if err != nil || raw == nil {
			return err
		}
		a := *raw.(*model.RoleAssignment)
		if !a.Active {
			return nil
		}
		a.Active = false
		a.DeactivatedAt = &at
		return txn.Insert(tableAssignments, &a)
	})
}

// FetchAssignments returns the active assignments of a role
func (s *Store) FetchAssignments(_ context.Context, roleID string) ([]model.RoleAssignment, error) {
	var active []model.RoleAssignment
	err := s.view(func(txn *memdb.Txn) error {
		assignments, err := assignmentsOf(txn, "role", roleID)
		if err != nil {
			return err
		}
		for _, a := range assignments {
			if a.Active {
				active = append(active, a)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(active, func(i, j int) bool { return active[i].ActorID < active[j].ActorID })
	return active, nil
}

// FetchActorRoles returns the active roles an actor holds
func (s *Store) FetchActorRoles(_ context.Context, actorID string) ([]model.Role, error) {
	var roles []model.Role
	err := s.view(func(txn *memdb.Txn) error {
		var err error
		roles, err = actorRoles(txn, actorID)
		return err
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })
	return roles, nil
}

// EffectivePermissions resolves an actor's permission keys from one snapshot
func (s *Store) EffectivePermissions(_ context.Context, actorID string) ([]string, error) {
	set := map[string]struct{}{}
	err := s.view(func(txn *memdb.Txn) error {
		roles, err := actorRoles(txn, actorID)
		if err != nil {
			return err
		}
		for _, role := range roles {
			keys, err := grantsOf(txn, role.ID)
			if err != nil {
				return err
			}
			for _, key := range keys {
				set[key] = struct{}{}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func roleByID(txn *memdb.Txn, roleID string) (model.Role, error) {
	raw, err := txn.First(tableRoles, "id", roleID)
	if err != nil {
		return model.Role{}, err
	}
	if raw == nil {
		return model.Role{}, store.ErrNotFound
	}
	return *raw.(*model.Role), nil
}

func insertGrant(txn *memdb.Txn, roleID, key string, at time.Time) error {
	existing, err := txn.First(tableGrants, "id", roleID, key)
	if err != nil || existing != nil {
		return err
	}
	return txn.Insert(tableGrants, &model.RoleGrant{RoleID: roleID, PermissionKey: key, GrantedAt: at})
}

func grantsOf(txn *memdb.Txn, roleID string) ([]string, error) {
	it, err := txn.Get(tableGrants, "role", roleID)
	if err != nil {
		return nil, err
	}
	var keys []string
	for raw := it.Next(); raw != nil; raw = it.Next() {
		keys = append(keys, raw.(*model.RoleGrant).PermissionKey)
	}
	return keys, nil
}

func assignmentsOf(txn *memdb.Txn, index, value string) ([]model.RoleAssignment, error) {
	it, err := txn.Get(tableAssignments, index, value)
	if err != nil {
		return nil, err
	}
	var assignments []model.RoleAssignment
	for raw := it.Next(); raw != nil; raw = it.Next() {
		assignments = append(assignments, *raw.(*model.RoleAssignment))
	}
	return assignments, nil
}

func actorRoles(txn *memdb.Txn, actorID string) ([]model.Role, error) {
	assignments, err := assignmentsOf(txn, "actor", actorID)
	if err != nil {
		return nil, err
	}
	var roles []model.Role
	for _, a := range assignments {
		if !a.Active {
			continue
		}
		role, err := roleByID(txn, a.RoleID)
		if err != nil {
			return nil, err
		}
		if role.Active {
			roles = append(roles, role)
		}
	}
	return roles, nil
}
