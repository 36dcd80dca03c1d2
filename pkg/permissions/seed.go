package permissions

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/bcgov/sbc-auth-sub003/pkg/observability"
)

// SeedFile is the YAML document describing the full permission catalog.
// Applying a seed replaces the catalog wholesale, matching its append-only,
// administratively-managed lifecycle.
type SeedFile struct {
	Rules []SeedRule `yaml:"rules"`
}

// SeedRule is one catalog entry group in the seed file.
type SeedRule struct {
	MembershipType string `yaml:"membership_type"`
	// OrgStatus empty means the actions apply regardless of org status.
	OrgStatus string   `yaml:"org_status,omitempty"`
	Actions   []string `yaml:"actions"`
}

// LoadSeed reads and validates a seed file.
func LoadSeed(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file %s: %w", path, err)
	}

	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}

	for i, rule := range seed.Rules {
		if rule.MembershipType == "" {
			return nil, fmt.Errorf("seed rule %d: membership_type is required", i)
		}
		if len(rule.Actions) == 0 {
			return nil, fmt.Errorf("seed rule %d (%s): at least one action is required", i, rule.MembershipType)
		}
	}

	return &seed, nil
}

// ApplySeed replaces the permission catalog with the seed's contents in one
// transaction.
func ApplySeed(ctx context.Context, db *sql.DB, seed *SeedFile) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start seed transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM permissions"); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to clear permission catalog: %w", err)
	}

	for _, rule := range seed.Rules {
		var orgStatus sql.NullString
		if rule.OrgStatus != "" {
			orgStatus = sql.NullString{String: NormalizeCode(rule.OrgStatus), Valid: true}
		}

		for _, action := range rule.Actions {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO permissions (membership_type, org_status, action) VALUES ($1, $2, $3)",
				NormalizeCode(rule.MembershipType), orgStatus, NormalizeAction(action),
			); err != nil {
				tx.Rollback()
				return fmt.Errorf("failed to insert seed rule for %s: %w", rule.MembershipType, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit seed: %w", err)
	}

	return nil
}

// SeedWatcher re-applies the seed file whenever it changes on disk and
// publishes a rebuild notification. Development convenience; production
// changes go through the admin CLI.
type SeedWatcher struct {
	path     string
	db       *sql.DB
	notifier *Notifier
	logger   *observability.Logger
}

// NewSeedWatcher creates a watcher for the given seed file. notifier may be
// nil when Redis is not configured.
func NewSeedWatcher(path string, db *sql.DB, notifier *Notifier, logger *observability.Logger) *SeedWatcher {
	return &SeedWatcher{path: path, db: db, notifier: notifier, logger: logger}
}

// Run watches until the context is cancelled. The parent directory is watched
// rather than the file itself so that atomic rename-over saves keep working.
func (w *SeedWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create seed watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	w.logger.WithField("path", w.path).Info("watching permission seed file")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.apply(ctx)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.WithError(err).Warn("seed watcher error")
		}
	}
}

func (w *SeedWatcher) apply(ctx context.Context) {
	seed, err := LoadSeed(w.path)
	if err != nil {
		w.logger.WithError(err).Error("failed to load changed seed file")
		return
	}

	if err := ApplySeed(ctx, w.db, seed); err != nil {
		w.logger.WithError(err).Error("failed to apply changed seed file")
		return
	}

	w.logger.WithField("rules", len(seed.Rules)).Info("seed file re-applied")

	if w.notifier != nil {
		if err := w.notifier.PublishRebuild(ctx); err != nil {
			w.logger.WithError(err).Warn("failed to publish rebuild after seed change")
		}
	}
}
