// Package switcher is the only place that replaces a tool's live configuration
// directory as a whole.
package switcher

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/example/bridle/internal/bridle/backup"
	"github.com/example/bridle/internal/bridle/copier"
	"github.com/example/bridle/internal/bridle/domain"
	"github.com/example/bridle/internal/bridle/filelock"
	"github.com/example/bridle/internal/bridle/harness"
	"github.com/example/bridle/internal/bridle/paths"
	"github.com/example/bridle/internal/bridle/profile"
	"github.com/example/bridle/internal/bridle/settings"
	"github.com/example/bridle/internal/bridle/storage"
)

// Coordinator switches profiles into live directories and backs them up.
type Coordinator struct {
	storage  *storage.Storage
	copier   *copier.Copier
	store    *profile.Store
	backups  *backup.Service
	settings *settings.Service
	locker   filelock.Locker
	logger   *slog.Logger
}

// Options collects the Coordinator's collaborators.
type Options struct {
	Storage  *storage.Storage
	Copier   *copier.Copier
	Store    *profile.Store
	Backups  *backup.Service
	Settings *settings.Service
	// Locker guards concurrent switches of one tool. Nil disables locking.
	Locker filelock.Locker
	Logger *slog.Logger
}

// New creates a Coordinator.
func New(opts Options) *Coordinator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	locker := opts.Locker
	if locker == nil {
		locker = filelock.Nop{}
	}
	return &Coordinator{
		storage:  opts.Storage,
		copier:   opts.Copier,
		store:    opts.Store,
		backups:  opts.Backups,
		settings: opts.Settings,
		locker:   locker,
		logger:   logger,
	}
}

// BackupLive snapshots the tool's live directory and returns the backup path.
// A missing live directory is ErrNoConfigFound.
func (c *Coordinator) BackupLive(tool harness.Tool) (string, error) {
	liveDir, err := tool.ConfigDir()
	if err != nil {
		return "", err
	}
	return c.backups.Create(tool.ID(), liveDir)
}

// Switch makes the named profile live for the tool and returns the live directory.
//
// The profile is staged next to the live directory first, so the live directory
// is only ever replaced by one rename of a complete copy. Items kept outside the
// live directory (the MCP config file and external resource bundles) are
// restored after the rename. The active-profile record is saved last.
//
// Edits made to the live directory since the previous switch are discarded;
// callers that want to keep them call BackupLive first.
func (c *Coordinator) Switch(tool harness.Tool, name domain.ProfileName) (string, error) {
	if !c.store.Exists(tool, name) {
		return "", fmt.Errorf("%w: profile %q for %s", domain.ErrNotFound, name, tool.ID())
	}
	profilePath := c.store.Path(tool, name)

	liveDir, err := tool.ConfigDir()
	if err != nil {
		return "", err
	}
	external, err := harness.ExternalBundles(tool)
	if err != nil {
		return "", err
	}
	mcpPath := harness.ExternalMCPPath(tool)

	lock, err := c.locker.Acquire(tool.ID())
	if err != nil {
		return "", err
	}
	defer func() {
		if uerr := lock.Unlock(); uerr != nil {
			c.logger.Warn("failed to release switch lock", "tool", tool.ID(), "error", uerr)
		}
	}()

	staging := paths.StagingPath(liveDir)
	if err := c.stage(profilePath, staging, mcpPath, external, name); err != nil {
		return "", err
	}

	if err := c.storage.RemoveAll(liveDir); err != nil {
		return "", fmt.Errorf("%w: remove live config: %w", domain.ErrIO, err)
	}
	if err := c.storage.MkdirAll(filepath.Dir(liveDir)); err != nil {
		return "", fmt.Errorf("%w: create live parent: %w", domain.ErrIO, err)
	}
	if err := c.storage.Rename(staging, liveDir); err != nil {
		return "", fmt.Errorf("%w: promote staging dir %s: %w", domain.ErrIO, staging, err)
	}

	if mcpPath != "" {
		if err := c.restoreMCP(profilePath, mcpPath); err != nil {
			return "", err
		}
	}
	for _, b := range external {
		if err := c.copier.CopyStrict(filepath.Join(profilePath, b.Name), b.Dir); err != nil {
			return "", fmt.Errorf("%w: sync %s: %w", domain.ErrIO, b.Name, err)
		}
	}

	c.settings.SetActiveProfile(tool.ID(), name.String())
	if err := c.settings.Save(); err != nil {
		return "", err
	}

	c.logger.Info("profile switched",
		"tool", tool.ID(),
		"profile", name.String(),
		"live_dir", liveDir)
	return liveDir, nil
}

// stage builds the future live directory at staging from the profile.
func (c *Coordinator) stage(profilePath, staging, mcpPath string, external []harness.Bundle, name domain.ProfileName) error {
	if err := c.storage.RemoveAll(staging); err != nil {
		return fmt.Errorf("%w: remove stale staging dir: %w", domain.ErrIO, err)
	}
	if err := c.copier.CopyStrict(profilePath, staging); err != nil {
		c.discard(staging)
		return fmt.Errorf("%w: stage profile: %w", domain.ErrIO, err)
	}

	var outside []string
	if mcpPath != "" {
		outside = append(outside, filepath.Base(mcpPath))
	}
	for _, b := range external {
		outside = append(outside, b.Name)
	}
	for _, rel := range outside {
		if err := c.storage.RemoveAll(filepath.Join(staging, rel)); err != nil {
			c.discard(staging)
			return fmt.Errorf("%w: prune staging dir: %w", domain.ErrIO, err)
		}
	}

	if c.settings.ProfileMarker() {
		if err := c.writeMarker(staging, name); err != nil {
			c.discard(staging)
			return err
		}
	}
	return nil
}

// writeMarker replaces any marker files in dir with one for name.
func (c *Coordinator) writeMarker(dir string, name domain.ProfileName) error {
	infos, err := c.storage.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("%w: read staging dir: %w", domain.ErrIO, err)
	}
	for _, info := range infos {
		if strings.HasPrefix(info.Name(), copier.MarkerPrefix) && info.Mode().IsRegular() {
			if err := c.storage.Remove(filepath.Join(dir, info.Name())); err != nil {
				return fmt.Errorf("%w: remove stale marker: %w", domain.ErrIO, err)
			}
		}
	}
	if err := c.storage.WriteFile(filepath.Join(dir, copier.MarkerPrefix+name.String()), nil); err != nil {
		return fmt.Errorf("%w: write marker: %w", domain.ErrIO, err)
	}
	return nil
}

// restoreMCP copies the profile's MCP file back to its location outside the
// live directory. A profile without one leaves the current file alone.
func (c *Coordinator) restoreMCP(profilePath, mcpPath string) error {
	src := filepath.Join(profilePath, filepath.Base(mcpPath))
	if _, err := c.storage.Stat(src); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("%w: stat profile MCP config: %w", domain.ErrIO, err)
	}
	if err := c.storage.CopyFile(src, mcpPath); err != nil {
		return fmt.Errorf("%w: restore MCP config: %w", domain.ErrIO, err)
	}
	return nil
}

func (c *Coordinator) discard(staging string) {
	if err := c.storage.RemoveAll(staging); err != nil {
		c.logger.Warn("failed to remove staging dir", "path", staging, "error", err)
	}
}
