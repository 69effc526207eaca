package profile

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/example/bridle/internal/bridle/copier"
	"github.com/example/bridle/internal/bridle/domain"
	"github.com/example/bridle/internal/bridle/harness"
	"github.com/example/bridle/internal/bridle/paths"
	"github.com/example/bridle/internal/bridle/storage"
)

// Store maps (tool, profile name) pairs to directories under the profiles root
// and manages their lifecycle.
type Store struct {
	storage *storage.Storage
	copier  *copier.Copier
	paths   *paths.PathBuilder
	logger  *slog.Logger
}

// NewStore creates a Store.
func NewStore(storage *storage.Storage, copier *copier.Copier, paths *paths.PathBuilder, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{
		storage: storage,
		copier:  copier,
		paths:   paths,
		logger:  logger,
	}
}

// Path returns the directory of a profile. It never touches disk.
func (s *Store) Path(tool harness.Tool, name domain.ProfileName) string {
	return s.paths.ProfilePath(tool.ID(), name.String())
}

// Exists reports whether the profile directory is present.
func (s *Store) Exists(tool harness.Tool, name domain.ProfileName) bool {
	return s.storage.IsDir(s.Path(tool, name))
}

// List returns the tool's profiles sorted by name. Directories whose names are
// not valid profile names are skipped; a missing profiles root yields nil.
func (s *Store) List(tool harness.Tool) ([]domain.ProfileName, error) {
	infos, err := s.storage.ReadDir(s.paths.ToolProfilesDir(tool.ID()))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: list profiles: %w", domain.ErrIO, err)
	}

	var names []domain.ProfileName
	for _, info := range infos {
		if !info.IsDir() {
			continue
		}
		name, err := domain.ParseProfileName(info.Name())
		if err != nil || name.String() != info.Name() {
			s.logger.Debug("ignoring profile directory with invalid name", "tool", tool.ID(), "dir", info.Name())
			continue
		}
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i].String() < names[j].String() })
	return names, nil
}

// CreateEmpty creates an empty profile directory and returns its path.
func (s *Store) CreateEmpty(tool harness.Tool, name domain.ProfileName) (string, error) {
	path := s.Path(tool, name)
	exists, err := s.storage.Exists(path)
	if err != nil {
		return "", fmt.Errorf("%w: stat profile: %w", domain.ErrIO, err)
	}
	if exists {
		return "", fmt.Errorf("%w: profile %q for %s", domain.ErrAlreadyExists, name, tool.ID())
	}
	if err := s.storage.MkdirAll(path); err != nil {
		return "", fmt.Errorf("%w: create profile: %w", domain.ErrIO, err)
	}
	return path, nil
}

// CreateFromLive creates a profile holding a copy of the tool's live configuration.
//
// The live directory is copied best-effort, skipping excluded names and
// recording per-entry failures in the returned report. An MCP config file kept
// outside the live directory is stored at the profile root under its base name,
// and resource bundles living outside the live directory are stored under their
// bundle name. A tool without a live directory yields an empty profile.
func (s *Store) CreateFromLive(tool harness.Tool, name domain.ProfileName) (string, *copier.Report, error) {
	path, err := s.CreateEmpty(tool, name)
	if err != nil {
		return "", nil, err
	}

	liveDir, err := tool.ConfigDir()
	if err != nil {
		if errors.Is(err, domain.ErrNoConfigFound) {
			return path, &copier.Report{}, nil
		}
		return path, nil, err
	}

	report, err := s.copier.CopyFiltered(liveDir, path)
	if err != nil {
		return path, report, fmt.Errorf("%w: copy live config: %w", domain.ErrIO, err)
	}

	if err := s.captureExternalMCP(tool, path); err != nil {
		return path, report, err
	}

	external, err := harness.ExternalBundles(tool)
	if err != nil {
		return path, report, err
	}
	for _, b := range external {
		if err := s.copier.CopyStrict(b.Dir, filepath.Join(path, b.Name)); err != nil {
			return path, report, fmt.Errorf("%w: copy %s: %w", domain.ErrIO, b.Name, err)
		}
	}

	s.logger.Info("profile created from live config",
		"tool", tool.ID(),
		"profile", name.String(),
		"copied", len(report.Outcomes)-len(report.Failed())-len(report.Excluded()),
		"failed", len(report.Failed()))
	return path, report, nil
}

func (s *Store) captureExternalMCP(tool harness.Tool, profilePath string) error {
	mcp := harness.ExternalMCPPath(tool)
	if mcp == "" {
		return nil
	}
	dst := filepath.Join(profilePath, filepath.Base(mcp))
	if captured, err := s.storage.Exists(dst); err != nil || captured {
		return err
	}
	if exists, err := s.storage.Exists(mcp); err != nil || !exists {
		return err
	}
	if err := s.storage.CopyFile(mcp, dst); err != nil {
		return fmt.Errorf("%w: copy MCP config: %w", domain.ErrIO, err)
	}
	return nil
}

// Delete removes a profile and everything under it.
func (s *Store) Delete(tool harness.Tool, name domain.ProfileName) error {
	path := s.Path(tool, name)
	exists, err := s.storage.Exists(path)
	if err != nil {
		return fmt.Errorf("%w: stat profile: %w", domain.ErrIO, err)
	}
	if !exists {
		return fmt.Errorf("%w: profile %q for %s", domain.ErrNotFound, name, tool.ID())
	}
	if err := s.storage.RemoveAll(path); err != nil {
		return fmt.Errorf("%w: delete profile: %w", domain.ErrIO, err)
	}
	s.logger.Info("profile deleted", "tool", tool.ID(), "profile", name.String())
	return nil
}

// BootstrapDefault creates the "default" profile from live config when the tool
// is fully installed and has none yet. Failures are logged, not returned.
func (s *Store) BootstrapDefault(tool harness.Tool) bool {
	status, err := tool.InstallationStatus()
	if err != nil {
		s.logger.Warn("cannot determine installation status", "tool", tool.ID(), "error", err)
		return false
	}
	if status != harness.FullyInstalled {
		return false
	}
	name := domain.DefaultProfileName
	if s.Exists(tool, name) {
		return false
	}
	if _, _, err := s.CreateFromLive(tool, name); err != nil {
		s.logger.Warn("failed to create default profile", "tool", tool.ID(), "error", err)
		return false
	}
	return true
}
