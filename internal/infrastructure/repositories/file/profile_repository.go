// Package file implements the repositories on schema-versioned JSON files
// under a single storage directory.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"peerchat/internal/core/domain"
	"peerchat/internal/core/ports"

	"go.uber.org/zap"
)

const schemaVersion = 1

const profileFileName = "profile.json"

type profileTable struct {
	SchemaVersion int                 `json:"schemaVersion"`
	Profile       *domain.UserProfile `json:"profile"`
}

// ProfileRepository stores the single local profile in profile.json.
type ProfileRepository struct {
	path   string
	logger *zap.SugaredLogger
	mu     sync.Mutex
}

func NewProfileRepository(dir string, logger *zap.SugaredLogger) (ports.ProfileRepository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &ProfileRepository{
		path:   filepath.Join(dir, profileFileName),
		logger: logger,
	}, nil
}

func (r *ProfileRepository) Save(ctx context.Context, profile *domain.UserProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	table := profileTable{SchemaVersion: schemaVersion, Profile: profile}
	return writeTable(r.path, &table)
}

// Load returns the stored profile. Corrupt data is cleared and reported as
// absent so a broken file never wedges startup.
func (r *ProfileRepository) Load(ctx context.Context) (*domain.UserProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var table profileTable
	if err := readTable(r.path, &table); err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrProfileNotFound
		}
		r.logger.Warnw("profile table unreadable, clearing", "path", r.path, "error", err)
		if removeErr := os.Remove(r.path); removeErr != nil && !os.IsNotExist(removeErr) {
			r.logger.Warnw("failed to clear corrupt profile table", "error", removeErr)
		}
		return nil, domain.ErrProfileNotFound
	}

	if table.Profile == nil || table.Profile.UserID == "" {
		r.logger.Warnw("profile table incomplete, clearing", "path", r.path)
		if removeErr := os.Remove(r.path); removeErr != nil && !os.IsNotExist(removeErr) {
			r.logger.Warnw("failed to clear incomplete profile table", "error", removeErr)
		}
		return nil, domain.ErrProfileNotFound
	}

	return table.Profile, nil
}

func (r *ProfileRepository) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear profile: %w", err)
	}
	return nil
}

// writeTable persists a table atomically: write aside, then rename over.
func writeTable(path string, table interface{}) error {
	data, err := json.MarshalIndent(table, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode table: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write table: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace table: %w", err)
	}
	return nil
}

func readTable(path string, table interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, table); err != nil {
		return fmt.Errorf("failed to decode table: %w", err)
	}
	return nil
}
