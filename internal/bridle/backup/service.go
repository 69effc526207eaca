package backup

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/example/bridle/internal/bridle/copier"
	"github.com/example/bridle/internal/bridle/domain"
	"github.com/example/bridle/internal/bridle/paths"
	"github.com/example/bridle/internal/bridle/storage"
)

// TimestampLayout names backup directories. It sorts chronologically.
const TimestampLayout = "20060102_150405"

// maxCollisions bounds the _N suffix search when several backups land in the same second.
const maxCollisions = 1000

// Entry describes one stored backup.
type Entry struct {
	Name    string
	Path    string
	Created time.Time
}

// Service snapshots live configuration directories into timestamped backups.
type Service struct {
	storage *storage.Storage
	copier  *copier.Copier
	paths   *paths.PathBuilder
	now     func() time.Time
	logger  *slog.Logger
}

// New creates a new backup Service.
func New(storage *storage.Storage, copier *copier.Copier, paths *paths.PathBuilder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		storage: storage,
		copier:  copier,
		paths:   paths,
		now:     time.Now,
		logger:  logger,
	}
}

// SetNow allows overriding the clock for testing.
func (s *Service) SetNow(now func() time.Time) {
	if now == nil {
		s.now = time.Now
		return
	}
	s.now = now
}

// BackupDir returns the directory holding a tool's backups.
func (s *Service) BackupDir(toolID string) string {
	return s.paths.ToolBackupsDir(toolID)
}

// Create copies liveDir into a fresh backup directory for toolID and returns its path.
//
// The copy is strict: the first failure aborts and the partial backup is removed.
// Backups are named by local time; a second backup within the same second gets
// a _1, _2, ... suffix. A missing live directory is ErrNoConfigFound.
func (s *Service) Create(toolID, liveDir string) (string, error) {
	if !s.storage.IsDir(liveDir) {
		return "", fmt.Errorf("%w: %s", domain.ErrNoConfigFound, liveDir)
	}

	dir := s.BackupDir(toolID)
	if err := s.storage.MkdirAll(dir); err != nil {
		return "", fmt.Errorf("%w: create backup dir: %w", domain.ErrIO, err)
	}

	dest, err := s.reserve(dir, s.now().Format(TimestampLayout))
	if err != nil {
		return "", err
	}

	if err := s.copier.CopyStrict(liveDir, dest); err != nil {
		if rmErr := s.storage.RemoveAll(dest); rmErr != nil {
			s.logger.Warn("failed to remove partial backup", "path", dest, "error", rmErr)
		}
		return "", fmt.Errorf("%w: backup %s: %w", domain.ErrIO, liveDir, err)
	}

	s.logger.Info("backup created",
		"tool", toolID,
		"source", liveDir,
		"backup_path", dest)
	return dest, nil
}

// reserve picks the first unused name for stamp and creates it.
func (s *Service) reserve(dir, stamp string) (string, error) {
	for n := 0; n < maxCollisions; n++ {
		name := stamp
		if n > 0 {
			name = fmt.Sprintf("%s_%d", stamp, n)
		}
		candidate := filepath.Join(dir, name)
		exists, err := s.storage.Exists(candidate)
		if err != nil {
			return "", fmt.Errorf("%w: stat backup: %w", domain.ErrIO, err)
		}
		if exists {
			continue
		}
		if err := s.storage.MkdirAll(candidate); err != nil {
			return "", fmt.Errorf("%w: create backup: %w", domain.ErrIO, err)
		}
		return candidate, nil
	}
	return "", fmt.Errorf("%w: too many backups named %s", domain.ErrAlreadyExists, stamp)
}

// List returns a tool's backups, oldest first. A tool without backups yields nil.
func (s *Service) List(toolID string) ([]Entry, error) {
	dir := s.BackupDir(toolID)
	infos, err := s.storage.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read backup directory: %w", domain.ErrIO, err)
	}

	var entries []Entry
	for _, info := range infos {
		if !info.IsDir() {
			continue
		}
		entries = append(entries, Entry{
			Name:    info.Name(),
			Path:    filepath.Join(dir, info.Name()),
			Created: created(info),
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.Created.Equal(b.Created) {
			return a.Created.Before(b.Created)
		}
		if sa, sb := suffix(a.Name), suffix(b.Name); sa != sb {
			return sa < sb
		}
		return a.Name < b.Name
	})
	return entries, nil
}

// suffix returns the collision counter of a backup name, 0 when it has none.
func suffix(name string) int {
	if len(name) <= len(TimestampLayout)+1 || name[len(TimestampLayout)] != '_' {
		return 0
	}
	n, err := strconv.Atoi(name[len(TimestampLayout)+1:])
	if err != nil {
		return 0
	}
	return n
}

// created prefers the timestamp encoded in the name and falls back to mtime.
func created(info os.FileInfo) time.Time {
	name := info.Name()
	if len(name) >= len(TimestampLayout) {
		if t, err := time.ParseInLocation(TimestampLayout, name[:len(TimestampLayout)], time.Local); err == nil {
			return t
		}
	}
	return info.ModTime()
}

// PruneBackups removes a tool's backups created before now minus olderThan.
//
// Returns the number of backups deleted and any error encountered.
func (s *Service) PruneBackups(toolID string, olderThan time.Duration) (int, error) {
	if olderThan < 0 {
		return 0, fmt.Errorf("prune age must not be negative, got %s", olderThan)
	}
	entries, err := s.List(toolID)
	if err != nil {
		return 0, err
	}
	cutoff := s.now().Add(-olderThan)
	deleted := 0
	for _, entry := range entries {
		if !entry.Created.Before(cutoff) {
			continue
		}
		if err := s.storage.RemoveAll(entry.Path); err != nil {
			return deleted, fmt.Errorf("%w: delete backup: %w", domain.ErrIO, err)
		}
		s.logger.Debug("backup pruned", "tool", toolID, "backup_path", entry.Path)
		deleted++
	}
	return deleted, nil
}
