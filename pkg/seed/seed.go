// Package seed bootstraps the catalog, the default organization and the
// roles a deployment needs. Bootstrap is idempotent: a second run with the
// same inputs reports no changes.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fleetguard/fleetguard/pkg/audit"
	"github.com/fleetguard/fleetguard/pkg/catalog"
	"github.com/fleetguard/fleetguard/pkg/model"
	"github.com/fleetguard/fleetguard/pkg/org"
	"github.com/fleetguard/fleetguard/pkg/rbac"
	"github.com/fleetguard/fleetguard/pkg/store"
)

// Deps are the services Bootstrap writes through
type Deps struct {
	Catalog       *catalog.Catalog
	Roles         *rbac.Service
	Organizations store.OrganizationsStore
	// Ledger, when set, records a summary entry for runs that change
	// anything
	Ledger *audit.Ledger
}

// Options select what Bootstrap seeds
type Options struct {
	// Permissions defaults to catalog.BuiltinPermissions
	Permissions []model.Permission
	// Organization defaults to org.Defaults
	Organization model.Organization
	// RolesFile is an optional YAML file of extra role definitions
	RolesFile string
	// Admins are actor IDs assigned the Admin role
	Admins []string
}

// Report lists what a Bootstrap run changed
type Report struct {
	PermissionsCreated  int                 `json:"permissions_created"`
	PermissionsTotal    int                 `json:"permissions_total"`
	OrganizationCreated bool                `json:"organization_created"`
	RolesCreated        []string            `json:"roles_created,omitempty"`
	GrantsAdded         map[string][]string `json:"grants_added,omitempty"`
	AdminsAssigned      []string            `json:"admins_assigned,omitempty"`
}

// Changed reports whether the run wrote anything
func (r Report) Changed() bool {
	return r.PermissionsCreated > 0 || r.OrganizationCreated ||
		len(r.RolesCreated) > 0 || len(r.GrantsAdded) > 0 || len(r.AdminsAssigned) > 0
}

func (r Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "permissions: %d created, %d total\n", r.PermissionsCreated, r.PermissionsTotal)
	fmt.Fprintf(&b, "organization created: %t\n", r.OrganizationCreated)
	fmt.Fprintf(&b, "roles created: %s\n", listOrNone(r.RolesCreated))
	roles := make([]string, 0, len(r.GrantsAdded))
	for role := range r.GrantsAdded {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	for _, role := range roles {
		fmt.Fprintf(&b, "grants added to %s: %s\n", role, strings.Join(r.GrantsAdded[role], ", "))
	}
	fmt.Fprintf(&b, "admins assigned: %s\n", listOrNone(r.AdminsAssigned))
	return b.String()
}

func listOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}

// RolesFile is the YAML document read from Options.RolesFile
type RolesFile struct {
	Roles []rbac.RoleDefinition `yaml:"roles"`
}

// ParseRoles decodes a roles document. Unknown fields are rejected.
func ParseRoles(r io.Reader) ([]rbac.RoleDefinition, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc RolesFile
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing roles: %w", err)
	}
	for i, def := range doc.Roles {
		if strings.TrimSpace(def.Name) == "" {
			return nil, fmt.Errorf("parsing roles: entry %d has no name", i)
		}
	}
	return doc.Roles, nil
}

// LoadRolesFile reads and parses path
func LoadRolesFile(path string) ([]rbac.RoleDefinition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseRoles(f)
}

// Bootstrap registers the catalog, ensures the organization, the built-in
// roles and the roles of opts.RolesFile, and assigns opts.Admins to Admin
func Bootstrap(ctx context.Context, deps Deps, opts Options) (Report, error) {
	report := Report{GrantsAdded: map[string][]string{}}

	var extra []rbac.RoleDefinition
	if opts.RolesFile != "" {
		defs, err := LoadRolesFile(opts.RolesFile)
		if err != nil {
			return report, err
		}
		extra = defs
	}

	permissions := opts.Permissions
	if permissions == nil {
		permissions = catalog.BuiltinPermissions
	}
	created, err := deps.Catalog.RegisterAll(ctx, permissions)
	report.PermissionsCreated = created
	if err != nil {
		return report, fmt.Errorf("registering permissions: %w", err)
	}

	registered, err := deps.Catalog.List(ctx, "")
	if err != nil {
		return report, err
	}
	report.PermissionsTotal = len(registered)

	if opts.Organization == (model.Organization{}) {
		opts.Organization = org.Defaults()
	}
	if opts.Organization.ID == "" {
		opts.Organization.ID = model.DefaultOrganizationID
	}
	if opts.Organization.UpdatedAt.IsZero() {
		opts.Organization.UpdatedAt = time.Now().UTC()
	}
	report.OrganizationCreated, err = deps.Organizations.CreateOrganization(ctx, opts.Organization)
	if err != nil {
		return report, fmt.Errorf("creating organization: %w", err)
	}

	for _, def := range append(rbac.BuiltinRoles(registered), extra...) {
		result, err := deps.Roles.EnsureRole(ctx, def)
		if err != nil {
			return report, fmt.Errorf("ensuring role %s: %w", def.Name, err)
		}
		if result.Created {
			report.RolesCreated = append(report.RolesCreated, result.Role.Name)
		} else if len(result.Added) > 0 {
			report.GrantsAdded[result.Role.Name] = append(report.GrantsAdded[result.Role.Name], result.Added...)
		}
	}

	for _, actorID := range opts.Admins {
		assigned, err := deps.Roles.HasRole(ctx, actorID, rbac.RoleAdmin)
		if err != nil {
			return report, err
		}
		if assigned {
			continue
		}
		if err := deps.Roles.Assign(ctx, actorID, rbac.RoleAdmin, audit.SystemActor); err != nil {
			return report, fmt.Errorf("assigning %s to %s: %w", actorID, rbac.RoleAdmin, err)
		}
		report.AdminsAssigned = append(report.AdminsAssigned, actorID)
	}

	if len(report.GrantsAdded) == 0 {
		report.GrantsAdded = nil
	}
	if deps.Ledger != nil && report.Changed() {
		_, err := deps.Ledger.Append(ctx, audit.Intent{
			ActorID:      audit.SystemActor,
			Action:       audit.ActionCreate,
			ResourceType: "seed",
			ResourceName: "bootstrap",
			Outcome:      model.OutcomeSuccess,
			Details:      strings.TrimSpace(strings.ReplaceAll(report.String(), "\n", "; ")),
		})
		if err != nil {
			return report, err
		}
	}
	return report, nil
}
