package bridle

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/afero"

	"github.com/example/bridle/internal/bridle/backup"
	"github.com/example/bridle/internal/bridle/copier"
	"github.com/example/bridle/internal/bridle/domain"
	"github.com/example/bridle/internal/bridle/extract"
	"github.com/example/bridle/internal/bridle/filelock"
	"github.com/example/bridle/internal/bridle/harness"
	"github.com/example/bridle/internal/bridle/paths"
	"github.com/example/bridle/internal/bridle/profile"
	"github.com/example/bridle/internal/bridle/settings"
	"github.com/example/bridle/internal/bridle/storage"
	"github.com/example/bridle/internal/bridle/switcher"
)

// Manager wires the profile store, switch coordinator, extractor and settings
// together for the command layer.
type Manager struct {
	fs          afero.Fs
	paths       *paths.PathBuilder
	storage     *storage.Storage
	locator     *harness.Locator
	settings    *settings.Service
	store       *profile.Store
	backups     *backup.Service
	coordinator *switcher.Coordinator
	extractor   *extract.Extractor
	logger      *slog.Logger
}

// Option customizes a Manager.
type Option func(*managerConfig)

type managerConfig struct {
	locker  filelock.Locker
	locator *harness.Locator
}

// WithLocker replaces the per-tool switch lock.
func WithLocker(l filelock.Locker) Option {
	return func(c *managerConfig) { c.locker = l }
}

// WithLocator replaces the harness locator, mainly for tests with fake tools.
func WithLocator(l *harness.Locator) Option {
	return func(c *managerConfig) { c.locator = l }
}

// NewManager creates a Manager over fs. homeDir locates the harnesses and root
// holds profiles, backups and the settings file. Call InitInfra before use.
// A nil logger discards all output.
func NewManager(fs afero.Fs, homeDir, root string, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	pb := paths.New(root)
	cfg := managerConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.locker == nil {
		cfg.locker = filelock.New(pb.LockPath)
	}
	if cfg.locator == nil {
		cfg.locator = harness.NewLocator(fs, homeDir)
	}

	stor := storage.New(fs)
	cp := copier.New(stor, logger)
	store := profile.NewStore(stor, cp, pb, logger)
	backups := backup.New(stor, cp, pb, logger)
	cfgSvc := settings.New(stor, pb.SettingsPath())

	return &Manager{
		fs:       fs,
		paths:    pb,
		storage:  stor,
		locator:  cfg.locator,
		settings: cfgSvc,
		store:    store,
		backups:  backups,
		coordinator: switcher.New(switcher.Options{
			Storage:  stor,
			Copier:   cp,
			Store:    store,
			Backups:  backups,
			Settings: cfgSvc,
			Locker:   cfg.locker,
			Logger:   logger,
		}),
		extractor: extract.New(stor, logger),
		logger:    logger,
	}
}

// FileSystem returns the filesystem the manager operates on.
func (m *Manager) FileSystem() afero.Fs {
	return m.fs
}

// Paths returns the config root layout.
func (m *Manager) Paths() *paths.PathBuilder {
	return m.paths
}

// SetNow overrides the clock used to name backups.
func (m *Manager) SetNow(now func() time.Time) {
	m.backups.SetNow(now)
}

// InitInfra creates the profiles and backups roots and loads the settings file.
func (m *Manager) InitInfra() error {
	for _, dir := range []string{m.paths.ProfilesDir(), m.paths.BackupsDir()} {
		if err := m.storage.MkdirAll(dir); err != nil {
			return fmt.Errorf("%w: create %s: %w", domain.ErrIO, dir, err)
		}
	}
	if err := m.settings.Load(); err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	return nil
}

// Tools returns the known harnesses.
func (m *Manager) Tools() []harness.Tool {
	return m.locator.Tools()
}

// ToolIDs returns the ids of the known harnesses.
func (m *Manager) ToolIDs() []string {
	return m.locator.IDs()
}

// Tool resolves a tool id. Unrecognised ids are ErrNotFound.
func (m *Manager) Tool(id string) (harness.Tool, error) {
	tool, ok := m.locator.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: unknown tool %q (known: %v)", domain.ErrNotFound, id, m.locator.IDs())
	}
	return tool, nil
}

// ToolStatus summarizes one harness for the status command.
type ToolStatus struct {
	ID            string
	Status        harness.Status
	ConfigDir     string
	ActiveProfile string
	Profiles      int
}

// Status reports installation and profile state for every known tool.
func (m *Manager) Status() ([]ToolStatus, error) {
	var out []ToolStatus
	for _, tool := range m.locator.Tools() {
		status, err := tool.InstallationStatus()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", tool.ID(), err)
		}
		dir, _ := tool.ConfigDir()
		names, err := m.store.List(tool)
		if err != nil {
			return nil, err
		}
		out = append(out, ToolStatus{
			ID:            tool.ID(),
			Status:        status,
			ConfigDir:     dir,
			ActiveProfile: m.settings.ActiveProfileFor(tool.ID()),
			Profiles:      len(names),
		})
	}
	return out, nil
}

// BootstrapDefaults creates a "default" profile for every fully installed tool
// that has none and returns the ids that got one.
func (m *Manager) BootstrapDefaults() []string {
	var created []string
	for _, tool := range m.locator.Tools() {
		if m.store.BootstrapDefault(tool) {
			created = append(created, tool.ID())
		}
	}
	return created
}

// ProfileEntry is one line of a profile listing.
type ProfileEntry struct {
	Name   string
	Active bool
}

// ListProfiles returns a tool's profiles with the active one flagged.
func (m *Manager) ListProfiles(tool harness.Tool) ([]ProfileEntry, error) {
	names, err := m.store.List(tool)
	if err != nil {
		return nil, err
	}
	active := m.settings.ActiveProfileFor(tool.ID())
	entries := make([]ProfileEntry, 0, len(names))
	for _, n := range names {
		entries = append(entries, ProfileEntry{Name: n.String(), Active: n.String() == active})
	}
	return entries, nil
}

// ActiveProfile returns the recorded active profile of a tool, or "".
func (m *Manager) ActiveProfile(tool harness.Tool) string {
	return m.settings.ActiveProfileFor(tool.ID())
}

// ProfileExists reports whether a profile directory exists.
func (m *Manager) ProfileExists(tool harness.Tool, name domain.ProfileName) bool {
	return m.store.Exists(tool, name)
}

// ShowProfile extracts the display summary of a profile.
func (m *Manager) ShowProfile(tool harness.Tool, name domain.ProfileName) (*domain.ProfileInfo, error) {
	active := m.settings.ActiveProfileFor(tool.ID()) == name.String()
	return m.extractor.Extract(tool, name, m.store.Path(tool, name), active)
}

// CreateProfile creates an empty profile, or one copied from the live config
// when fromCurrent is set. The report is nil for empty profiles.
func (m *Manager) CreateProfile(tool harness.Tool, name domain.ProfileName, fromCurrent bool) (string, *copier.Report, error) {
	if !fromCurrent {
		path, err := m.store.CreateEmpty(tool, name)
		return path, nil, err
	}
	return m.store.CreateFromLive(tool, name)
}

// RemoveProfile deletes a profile. Removing the active profile also clears the
// active record.
func (m *Manager) RemoveProfile(tool harness.Tool, name domain.ProfileName) error {
	if err := m.store.Delete(tool, name); err != nil {
		return err
	}
	if m.settings.ActiveProfileFor(tool.ID()) != name.String() {
		return nil
	}
	m.settings.ClearActiveProfile(tool.ID())
	return m.settings.Save()
}

// SwitchResult reports what a switch did.
type SwitchResult struct {
	LiveDir    string
	BackupPath string
}

// SwitchProfile makes name the live profile of tool. With backupFirst the live
// directory is backed up before it is replaced; a tool with no live directory
// yet has nothing to back up.
func (m *Manager) SwitchProfile(tool harness.Tool, name domain.ProfileName, backupFirst bool) (SwitchResult, error) {
	var result SwitchResult
	if !m.store.Exists(tool, name) {
		return result, fmt.Errorf("%w: profile %q for %s", domain.ErrNotFound, name, tool.ID())
	}
	if backupFirst {
		path, err := m.coordinator.BackupLive(tool)
		switch {
		case errors.Is(err, domain.ErrNoConfigFound):
			m.logger.Debug("no live config to back up", "tool", tool.ID())
		case err != nil:
			return result, fmt.Errorf("backup before switch: %w", err)
		default:
			result.BackupPath = path
		}
	}
	liveDir, err := m.coordinator.Switch(tool, name)
	if err != nil {
		return result, err
	}
	result.LiveDir = liveDir
	return result, nil
}

// BackupLive snapshots a tool's live directory.
func (m *Manager) BackupLive(tool harness.Tool) (string, error) {
	return m.coordinator.BackupLive(tool)
}

// ListBackups returns a tool's backups, oldest first.
func (m *Manager) ListBackups(tool harness.Tool) ([]backup.Entry, error) {
	return m.backups.List(tool.ID())
}

// PruneBackups deletes a tool's backups older than olderThan.
func (m *Manager) PruneBackups(tool harness.Tool, olderThan time.Duration) (int, error) {
	return m.backups.PruneBackups(tool.ID(), olderThan)
}

// SettingKeys lists the keys readable through GetSetting.
func (m *Manager) SettingKeys() []string {
	return m.settings.Keys()
}

// GetSetting returns a setting as a string.
func (m *Manager) GetSetting(key string) (string, error) {
	return m.settings.Get(key)
}

// SetSetting updates and persists a setting. Active-profile keys are rejected.
func (m *Manager) SetSetting(key, value string) error {
	if err := m.settings.Set(key, value); err != nil {
		return err
	}
	return m.settings.Save()
}
