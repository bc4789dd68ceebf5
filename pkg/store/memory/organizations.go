package memory

import (
	"context"

	"github.com/hashicorp/go-memdb"

	"github.com/fleetguard/fleetguard/pkg/model"
	"github.com/fleetguard/fleetguard/pkg/store"
)

// FetchOrganization retrieves an organization by ID
func (s *Store) FetchOrganization(_ context.Context, id string) (model.Organization, error) {
	var org model.Organization
	err := s.view(func(txn *memdb.Txn) error {
		raw, err := txn.First(tableOrganizations, "id", id)
		if err != nil {
			return err
		}
		if raw == nil {
			return store.ErrNotFound
		}
		org = *raw.(*model.Organization)
		return nil
	})
	return org, err
}

// CreateOrganization inserts org unless its ID exists
func (s *Store) CreateOrganization(_ context.Context, org model.Organization) (bool, error) {
	var inserted bool
	err := s.update(func(txn *memdb.Txn) error {
		existing, err := txn.First(tableOrganizations, "id", org.ID)
		if err != nil || existing != nil {
			return err
		}
		inserted = true
		return txn.Insert(tableOrganizations, &org)
	})
	return inserted, err
}

// SaveOrganization overwrites an existing organization
func (s *Store) SaveOrganization(_ context.Context, org model.Organization) error {
	return s.update(func(txn *memdb.Txn) error {
		existing, err := txn.First(tableOrganizations, "id", org.ID)
		if err != nil {
			return err
		}
		if existing == nil {
			return store.ErrNotFound
		}
		return txn.Insert(tableOrganizations, &org)
	})
}
