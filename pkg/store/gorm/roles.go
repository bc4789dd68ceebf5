package gorm

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fleetguard/fleetguard/pkg/model"
	"github.com/fleetguard/fleetguard/pkg/store"
)

// Ensure RolesStore implements store.RolesStore
var _ store.RolesStore = (*RolesStore)(nil)

// RolesStore implements store.RolesStore using GORM
type RolesStore struct {
	db *gorm.DB
}

// NewRolesStore creates a new RolesStore
func NewRolesStore(db *gorm.DB) *RolesStore {
	return &RolesStore{db: db}
}

// CreateRole inserts a role with its initial grants.
func (s *RolesStore) CreateRole(ctx context.Context, role model.Role, grants []string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&role)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return store.ErrAlreadyExists
		}
		for _, key := range grants {
			if err := insertGrant(tx, role.ID, key, role.CreatedAt); err != nil {
				return err
			}
		}
		return nil
	})
	return translate(err)
}

// FetchRole retrieves a role by name.
func (s *RolesStore) FetchRole(ctx context.Context, name string) (model.Role, error) {
	var role model.Role
	if err := s.db.WithContext(ctx).Where("name = ?", name).First(&role).Error; err != nil {
		return model.Role{}, translate(err)
	}
	return role, nil
}

// ListRoles returns all roles ordered by name
func (s *RolesStore) ListRoles(ctx context.Context) ([]model.Role, error) {
	var roles []model.Role
	if err := s.db.WithContext(ctx).Order("name").Find(&roles).Error; err != nil {
		return nil, translate(err)
	}
	return roles, nil
}

// FetchGrants returns the sorted permission keys granted to a role
func (s *RolesStore) FetchGrants(ctx context.Context, roleID string) ([]string, error) {
	return s.scanKeys(ctx, `
		SELECT permission_key
		FROM role_grants
		WHERE role_id = ?
		ORDER BY permission_key
	`, roleID)
}

// AddGrant grants key to a role.
func (s *RolesStore) AddGrant(ctx context.Context, roleID, key string, at time.Time) error {
	return translate(insertGrant(s.db.WithContext(ctx), roleID, key, at))
}

// RemoveGrant revokes key from a role.
func (s *RolesStore) RemoveGrant(ctx context.Context, roleID, key string) error {
	return translate(s.db.WithContext(ctx).Exec(
		`DELETE FROM role_grants WHERE role_id = ? AND permission_key = ?`, roleID, key,
	).Error)
}

// SetRoleActive flips the active flag, cascading deactivation to assignments.
func (s *RolesStore) SetRoleActive(ctx context.Context, roleID string, active bool, at time.Time) (int64, error) {
	var cascaded int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Role{}).Where("id = ?", roleID).
			Updates(map[string]interface{}{"active": active, "updated_at": at})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return store.ErrNotFound
		}
		if active {
			return nil
		}

		res = tx.Exec(`
			UPDATE role_assignments
			SET active = false, deactivated_at = ?
			WHERE role_id = ? AND active
		`, at, roleID)
		cascaded = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, translate(err)
	}
	return cascaded, nil
}

// DeleteRole removes a role with its grants and inactive assignments.
func (s *RolesStore) DeleteRole(ctx context.Context, roleID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var role model.Role
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", roleID).First(&role).Error; err != nil {
			return err
		}

		var inUse int64
		if err := tx.Model(&model.RoleAssignment{}).Where("role_id = ? AND active", roleID).Count(&inUse).Error; err != nil {
			return err
		}
		if inUse > 0 {
			return store.ErrRoleInUse
		}

		if err := tx.Exec(`DELETE FROM role_assignments WHERE role_id = ?`, roleID).Error; err != nil {
			return err
		}
		if err := tx.Exec(`DELETE FROM role_grants WHERE role_id = ?`, roleID).Error; err != nil {
			return err
		}
		return tx.Exec(`DELETE FROM roles WHERE id = ?`, roleID).Error
	})
	return translate(err)
}

// AddAssignment assigns a role to an actor.
func (s *RolesStore) AddAssignment(ctx context.Context, a model.RoleAssignment) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// FOR SHARE serializes against DeleteRole and SetRoleActive on the same role
		var role model.Role
		if err := tx.Clauses(clause.Locking{Strength: "SHARE"}).Where("id = ?", a.RoleID).First(&role).Error; err != nil {
			return err
		}
		if !role.Active {
			return store.ErrRoleInactive
		}

		return tx.Exec(`
			INSERT INTO role_assignments (id, actor_id, role_id, active, assigned_by, assigned_at)
			VALUES (?, ?, ?, true, ?, ?)
			ON CONFLICT (actor_id, role_id) DO UPDATE
			SET active = true,
				assigned_by = EXCLUDED.assigned_by,
				assigned_at = EXCLUDED.assigned_at,
				deactivated_at = NULL
			WHERE role_assignments.active = false
		`, a.ID, a.ActorID, a.RoleID, a.AssignedBy, a.AssignedAt).Error
	})
	return translate(err)
}

// DeactivateAssignment ends an actor's assignment.
func (s *RolesStore) DeactivateAssignment(ctx context.Context, actorID, roleID string, at time.Time) error {
	return translate(s.db.WithContext(ctx).Exec(`
		UPDATE role_assignments
		SET active = false, deactivated_at = ?
		WHERE actor_id = ? AND role_id = ? AND active
	`, at, actorID, roleID).Error)
}

// FetchAssignments returns the active assignments of a role
func (s *RolesStore) FetchAssignments(ctx context.Context, roleID string) ([]model.RoleAssignment, error) {
	var assignments []model.RoleAssignment
	err := s.db.WithContext(ctx).
		Where("role_id = ? AND active", roleID).
		Order("actor_id").
		Find(&assignments).Error
	if err != nil {
		return nil, translate(err)
	}
	return assignments, nil
}

// FetchActorRoles returns the active roles an actor holds
func (s *RolesStore) FetchActorRoles(ctx context.Context, actorID string) ([]model.Role, error) {
	var roles []model.Role
	err := s.db.WithContext(ctx).Raw(`
		SELECT r.*
		FROM roles r
		JOIN role_assignments a ON a.role_id = r.id
		WHERE a.actor_id = ? AND a.active AND r.active
		ORDER BY r.name
	`, actorID).Scan(&roles).Error
	if err != nil {
		return nil, translate(err)
	}
	return roles, nil
}

// EffectivePermissions resolves an actor's permission keys in one statement
func (s *RolesStore) EffectivePermissions(ctx context.Context, actorID string) ([]string, error) {
	return s.scanKeys(ctx, `
		SELECT DISTINCT g.permission_key
		FROM role_assignments a
		JOIN roles r ON r.id = a.role_id
		JOIN role_grants g ON g.role_id = r.id
		WHERE a.actor_id = ? AND a.active AND r.active
		ORDER BY g.permission_key
	`, actorID)
}

func (s *RolesStore) scanKeys(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	type keyRow struct {
		PermissionKey string `gorm:"column:permission_key"`
	}

	var rows []keyRow
	if err := s.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, translate(err)
	}

	keys := make([]string, 0, len(rows))
	for _, row := range rows {
		keys = append(keys, row.PermissionKey)
	}
	return keys, nil
}

func insertGrant(tx *gorm.DB, roleID, key string, at time.Time) error {
	return tx.Exec(`
		INSERT INTO role_grants (role_id, permission_key, granted_at)
		VALUES (?, ?, ?)
		ON CONFLICT DO NOTHING
	`, roleID, key, at).Error
}
