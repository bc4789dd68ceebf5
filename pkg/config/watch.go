package config

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/fleetguard/fleetguard/pkg/model"
	"github.com/fleetguard/fleetguard/pkg/org"
)

// PolicyUpdater receives organization changes from the config file
type PolicyUpdater interface {
	Update(ctx context.Context, p org.Patch) (org.Policy, error)
}

// Organization returns the organization the configuration seeds
func (c *FleetguardConfig) Organization() model.Organization {
	return model.Organization{
		ID:                          model.DefaultOrganizationID,
		Name:                        c.OrganizationName,
		Domain:                      c.OrganizationDomain,
		RetentionDays:               c.RetentionDays,
		RequireMFA:                  c.RequireMFA,
		RequireApprovalForElevation: c.RequireApprovalForElevation,
		UpdatedAt:                   time.Now().UTC(),
	}
}

// ApplyOrganization pushes the explicitly configured organization attributes
// into u. It reports whether anything was pushed.
func ApplyOrganization(ctx context.Context, u PolicyUpdater, c *FleetguardConfig) (bool, error) {
	patch := c.OrganizationPatch()
	if patch.Empty() {
		return false, nil
	}
	if _, err := u.Update(ctx, patch); err != nil {
		return false, err
	}
	return true, nil
}

// Watcher reloads the config file when it changes
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
}

// NewWatcher starts watching path. The parent directory is watched so that
// files replaced by rename, as editors and config management do, are seen.
func NewWatcher(path string) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}
	return &Watcher{path: filepath.Clean(path), watcher: watcher}, nil
}

// Run calls onChange with every valid reloaded configuration until ctx is
// done. Invalid files are logged and skipped.
func (w *Watcher) Run(ctx context.Context, onChange func(*FleetguardConfig)) error {
	defer func() { _ = w.watcher.Close() }()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			cfg, err := LoadFile(w.path)
			if err != nil {
				log.Printf("config: reload of %s failed: %v", w.path, err)
				continue
			}
			if err := cfg.Validate(); err != nil {
				log.Printf("config: ignoring invalid %s: %v", w.path, err)
				continue
			}
			log.Printf("config: reloaded %s", w.path)
			onChange(cfg)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("config: watcher error: %v", err)
		case <-ctx.Done():
			return nil
		}
	}
}
