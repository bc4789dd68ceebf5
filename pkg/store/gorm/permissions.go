package gorm

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fleetguard/fleetguard/pkg/model"
	"github.com/fleetguard/fleetguard/pkg/store"
)

// Ensure PermissionsStore implements store.PermissionsStore
var _ store.PermissionsStore = (*PermissionsStore)(nil)

// PermissionsStore implements store.PermissionsStore using GORM
type PermissionsStore struct {
	db *gorm.DB
}

// NewPermissionsStore creates a new PermissionsStore
func NewPermissionsStore(db *gorm.DB) *PermissionsStore {
	return &PermissionsStore{db: db}
}

// CreatePermission inserts p unless its key already exists.
func (s *PermissionsStore) CreatePermission(ctx context.Context, p model.Permission) (bool, error) {
	tx := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&p)
	if tx.Error != nil {
		return false, translate(tx.Error)
	}
	return tx.RowsAffected == 1, nil
}

// FetchPermission retrieves a permission by key.
func (s *PermissionsStore) FetchPermission(ctx context.Context, key string) (model.Permission, error) {
	var p model.Permission
	if err := s.db.WithContext(ctx).Where("key = ?", key).First(&p).Error; err != nil {
		return model.Permission{}, translate(err)
	}
	return p, nil
}

// ListPermissions returns entries ordered by category then key.
func (s *PermissionsStore) ListPermissions(ctx context.Context, category string) ([]model.Permission, error) {
	tx := s.db.WithContext(ctx).Order("category, key")
	if category != "" {
		tx = tx.Where("category = ?", category)
	}

	var permissions []model.Permission
	if err := tx.Find(&permissions).Error; err != nil {
		return nil, translate(err)
	}
	return permissions, nil
}

// DeprecatePermission sets the deprecated flag on key.
func (s *PermissionsStore) DeprecatePermission(ctx context.Context, key string) error {
	tx := s.db.WithContext(ctx).Model(&model.Permission{}).Where("key = ?", key).Update("deprecated", true)
	if tx.Error != nil {
		return translate(tx.Error)
	}
	if tx.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}
