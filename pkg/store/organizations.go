package store

import (
	"context"

	"github.com/fleetguard/fleetguard/pkg/model"
)

// OrganizationsStore abstracts organization policy storage
type OrganizationsStore interface {
	// FetchOrganization returns ErrNotFound if the organization doesn't exist
	FetchOrganization(ctx context.Context, id string) (model.Organization, error)

	// CreateOrganization inserts org unless its ID exists and reports
	// whether a row was written
	CreateOrganization(ctx context.Context, org model.Organization) (bool, error)

	// SaveOrganization overwrites the policy fields of an existing organization
	SaveOrganization(ctx context.Context, org model.Organization) error
}
