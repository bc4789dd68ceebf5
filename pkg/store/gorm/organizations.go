package gorm

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fleetguard/fleetguard/pkg/model"
	"github.com/fleetguard/fleetguard/pkg/store"
)

// Ensure OrganizationsStore implements store.OrganizationsStore
var _ store.OrganizationsStore = (*OrganizationsStore)(nil)

// OrganizationsStore implements store.OrganizationsStore using GORM
type OrganizationsStore struct {
	db *gorm.DB
}

// NewOrganizationsStore creates a new OrganizationsStore
func NewOrganizationsStore(db *gorm.DB) *OrganizationsStore {
	return &OrganizationsStore{db: db}
}

// FetchOrganization retrieves an organization by ID.
func (s *OrganizationsStore) FetchOrganization(ctx context.Context, id string) (model.Organization, error) {
	var org model.Organization
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&org).Error; err != nil {
		return model.Organization{}, translate(err)
	}
	return org, nil
}

// CreateOrganization inserts org unless its ID exists.
func (s *OrganizationsStore) CreateOrganization(ctx context.Context, org model.Organization) (bool, error) {
	tx := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&org)
	if tx.Error != nil {
		return false, translate(tx.Error)
	}
	return tx.RowsAffected == 1, nil
}

// SaveOrganization overwrites the policy fields of an existing organization.
func (s *OrganizationsStore) SaveOrganization(ctx context.Context, org model.Organization) error {
	tx := s.db.WithContext(ctx).Model(&model.Organization{}).Where("id = ?", org.ID).
		Updates(map[string]interface{}{
			"name":                           org.Name,
			"domain":                         org.Domain,
			"retention_days":                 org.RetentionDays,
			"require_mfa":                    org.RequireMFA,
			"require_approval_for_elevation": org.RequireApprovalForElevation,
			"updated_at":                     org.UpdatedAt,
		})
	if tx.Error != nil {
		return translate(tx.Error)
	}
	if tx.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}
