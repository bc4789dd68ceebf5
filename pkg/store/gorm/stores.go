package gorm

import (
	"gorm.io/gorm"

	"github.com/fleetguard/fleetguard/pkg/store"
)

// NewStores returns the gorm implementation of every store over db. db must
// have the AuditImmutability plugin installed.
func NewStores(db *gorm.DB) store.Stores {
	return store.Stores{
		Permissions:   NewPermissionsStore(db),
		Roles:         NewRolesStore(db),
		Audit:         NewAuditStore(db),
		Organizations: NewOrganizationsStore(db),
		Approvals:     NewApprovalsStore(db),
		Health:        NewHealthStore(db),
	}
}
