package memory

import (
	"context"
	"sort"

	"github.com/hashicorp/go-memdb"

	"github.com/fleetguard/fleetguard/pkg/model"
	"github.com/fleetguard/fleetguard/pkg/store"
)

// CreatePermission inserts p unless its key exists
func (s *Store) CreatePermission(_ context.Context, p model.Permission) (bool, error) {
	var inserted bool
	err := s.update(func(txn *memdb.Txn) error {
		existing, err := txn.First(tablePermissions, "id", p.Key)
		if err != nil || existing != nil {
			return err
		}
		inserted = true
		return txn.Insert(tablePermissions, &p)
	})
	return inserted, err
}

// FetchPermission retrieves a permission by key
func (s *Store) FetchPermission(_ context.Context, key string) (model.Permission, error) {
	var p model.Permission
	err := s.view(func(txn *memdb.Txn) error {
		raw, err := txn.First(tablePermissions, "id", key)
		if err != nil {
			return err
		}
		if raw == nil {
			return store.ErrNotFound
		}
		p = *raw.(*model.Permission)
		return nil
	})
	return p, err
}

// ListPermissions returns entries ordered by category then key
func (s *Store) ListPermissions(_ context.Context, category string) ([]model.Permission, error) {
	var permissions []model.Permission
	err := s.view(func(txn *memdb.Txn) error {
		var (
			it  memdb.ResultIterator
			err error
		)
		if category == "" {
			it, err = txn.Get(tablePermissions, "id")
		} else {
			it, err = txn.Get(tablePermissions, "category", category)
		}
		if err != nil {
			return err
		}
		for raw := it.Next(); raw != nil; raw = it.Next() {
			permissions = append(permissions, *raw.(*model.Permission))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(permissions, func(i, j int) bool {
		if permissions[i].Category != permissions[j].Category {
			return permissions[i].Category < permissions[j].Category
		}
		return permissions[i].Key < permissions[j].Key
	})
	return permissions, nil
}

// DeprecatePermission sets the deprecated flag on key
func (s *Store) DeprecatePermission(_ context.Context, key string) error {
	return s.update(func(txn *memdb.Txn) error {
		raw, err := txn.First(tablePermissions, "id", key)
		if err != nil {
			return err
		}
		if raw == nil {
			return store.ErrNotFound
		}
		p := *raw.(*model.Permission)
		p.Deprecated = true
		return txn.Insert(tablePermissions, &p)
	})
}
