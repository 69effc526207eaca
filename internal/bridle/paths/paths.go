package paths

import (
	"os"
	"path/filepath"
	"strings"
)

// Directory and file name constants under the bridle config root.
const (
	AppDirName       = "bridle"
	ProfilesDirName  = "profiles"
	BackupsDirName   = "backups"
	LocksDirName     = "locks"
	SettingsFileName = "config.toml"

	// ConfigDirEnv overrides the config root, mainly for test isolation.
	ConfigDirEnv = "BRIDLE_CONFIG_DIR"
)

// PathBuilder provides methods to construct bridle paths relative to a config root.
type PathBuilder struct {
	root string
}

// New creates a new PathBuilder for the given config root.
func New(root string) *PathBuilder {
	return &PathBuilder{root: root}
}

// ResolveRoot returns $BRIDLE_CONFIG_DIR when set, otherwise <user config dir>/bridle.
func ResolveRoot() (string, error) {
	if override := strings.TrimSpace(os.Getenv(ConfigDirEnv)); override != "" {
		return override, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, AppDirName), nil
}

// Root returns the config root directory.
func (p *PathBuilder) Root() string {
	return p.root
}

// SettingsPath returns the path to the global settings file.
func (p *PathBuilder) SettingsPath() string {
	return filepath.Join(p.root, SettingsFileName)
}

// ProfilesDir returns the directory holding one sub-directory per tool.
func (p *PathBuilder) ProfilesDir() string {
	return filepath.Join(p.root, ProfilesDirName)
}

// ToolProfilesDir returns the directory holding the profiles of one tool.
func (p *PathBuilder) ToolProfilesDir(toolID string) string {
	return filepath.Join(p.ProfilesDir(), toolID)
}

// ProfilePath returns the directory of a named profile.
func (p *PathBuilder) ProfilePath(toolID, name string) string {
	return filepath.Join(p.ToolProfilesDir(toolID), name)
}

// BackupsDir returns the directory where backups are stored.
func (p *PathBuilder) BackupsDir() string {
	return filepath.Join(p.root, BackupsDirName)
}

// ToolBackupsDir returns the backup directory of one tool.
func (p *PathBuilder) ToolBackupsDir(toolID string) string {
	return filepath.Join(p.BackupsDir(), toolID)
}

// LockPath returns the advisory lock file guarding switches of one tool.
func (p *PathBuilder) LockPath(toolID string) string {
	return filepath.Join(p.root, LocksDirName, toolID+".lock")
}

// StagingPath returns the sibling directory a live config dir is staged into.
func StagingPath(liveDir string) string {
	return filepath.Clean(liveDir) + ".bridle_tmp"
}
