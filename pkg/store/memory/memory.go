package memory

import (
	"fmt"

	"github.com/hashicorp/go-memdb"

	"github.com/fleetguard/fleetguard/pkg/store"
)

const (
	tablePermissions   = "permissions"
	tableRoles         = "roles"
	tableGrants        = "grants"
	tableAssignments   = "assignments"
	tableAudit         = "audit"
	tableOrganizations = "organizations"
	tableApprovals     = "approvals"
)

var (
	_ store.PermissionsStore   = (*Store)(nil)
	_ store.RolesStore         = (*Store)(nil)
	_ store.AuditStore         = (*Store)(nil)
	_ store.OrganizationsStore = (*Store)(nil)
	_ store.ApprovalsStore     = (*Store)(nil)
	_ store.HealthStore        = (*Store)(nil)
)

func stringIndex(name, field string, unique bool) *memdb.IndexSchema {
	return &memdb.IndexSchema{
		Name:         name,
		Unique:       unique,
		AllowMissing: name != "id",
		Indexer:      &memdb.StringFieldIndex{Field: field},
	}
}

func pairIndex(name, first, second string) *memdb.IndexSchema {
	return &memdb.IndexSchema{
		Name:   name,
		Unique: true,
		Indexer: &memdb.CompoundIndex{
			Indexes: []memdb.Indexer{
				&memdb.StringFieldIndex{Field: first},
				&memdb.StringFieldIndex{Field: second},
			},
		},
	}
}

func table(name string, indexes ...*memdb.IndexSchema) *memdb.TableSchema {
	t := &memdb.TableSchema{Name: name, Indexes: map[string]*memdb.IndexSchema{}}
	for _, idx := range indexes {
		t.Indexes[idx.Name] = idx
	}
	return t
}

func schema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			tablePermissions: table(tablePermissions,
				stringIndex("id", "Key", true),
				stringIndex("category", "Category", false),
			),
			tableRoles: table(tableRoles,
				stringIndex("id", "ID", true),
				stringIndex("name", "Name", true),
			),
			tableGrants: table(tableGrants,
				pairIndex("id", "RoleID", "PermissionKey"),
				stringIndex("role", "RoleID", false),
			),
			tableAssignments: table(tableAssignments,
				stringIndex("id", "ID", true),
				pairIndex("pair", "ActorID", "RoleID"),
				stringIndex("actor", "ActorID", false),
				stringIndex("role", "RoleID", false),
			),
			tableAudit: table(tableAudit,
				stringIndex("id", "ID", true),
			),
			tableOrganizations: table(tableOrganizations,
				stringIndex("id", "ID", true),
			),
			tableApprovals: table(tableApprovals,
				stringIndex("id", "ID", true),
				stringIndex("status", "Status", false),
			),
		},
	}
}

// Store keeps every fleetguard table in one go-memdb database
type Store struct {
	db *memdb.MemDB
}

// New creates an empty Store
func New() (*Store, error) {
	db, err := memdb.NewMemDB(schema())
	if err != nil {
		return nil, fmt.Errorf("creating memdb: %w", err)
	}
	return &Store{db: db}, nil
}

// update runs fn in a write transaction, committing only if fn succeeds
func (s *Store) update(fn func(txn *memdb.Txn) error) error {
	txn := s.db.Txn(true)
	defer txn.Abort()

	if err := fn(txn); err != nil {
		return store.Failure(err)
	}
	txn.Commit()
	return nil
}

// view runs fn against a read snapshot
func (s *Store) view(fn func(txn *memdb.Txn) error) error {
	txn := s.db.Txn(false)
	defer txn.Abort()
	return store.Failure(fn(txn))
}

// Stores returns s as every store interface
func (s *Store) Stores() store.Stores {
	return store.Stores{
		Permissions:   s,
		Roles:         s,
		Audit:         s,
		Organizations: s,
		Approvals:     s,
		Health:        s,
	}
}
