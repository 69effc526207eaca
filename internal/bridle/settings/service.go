package settings

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/example/bridle/internal/bridle/domain"
	"github.com/example/bridle/internal/bridle/storage"
)

// Setting keys accepted by Get. Set accepts only KeyProfileMarker.
const (
	KeyProfileMarker = "profile_marker"
	keyActivePrefix  = "active."
)

// Config is the persisted global configuration.
type Config struct {
	// ProfileMarker makes switches drop an empty BRIDLE_PROFILE_<name> file
	// into the live directory.
	ProfileMarker bool `toml:"profile_marker"`
	// Active maps tool id to the profile most recently switched in. It is
	// advisory: the live directory is the source of truth.
	Active map[string]string `toml:"active"`
}

// Service loads and saves Config from a TOML file.
type Service struct {
	storage *storage.Storage
	path    string
	config  Config
}

// New creates a Service for the settings file at path. Call Load before use.
func New(storage *storage.Storage, path string) *Service {
	return &Service{
		storage: storage,
		path:    path,
		config:  Config{Active: map[string]string{}},
	}
}

// Path returns the settings file location.
func (s *Service) Path() string {
	return s.path
}

// Load reads the settings file. A missing file yields the zero configuration.
func (s *Service) Load() error {
	content, err := s.storage.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.config = Config{Active: map[string]string{}}
			return nil
		}
		return fmt.Errorf("%w: read settings: %w", domain.ErrIO, err)
	}

	var cfg Config
	if _, err := toml.Decode(string(content), &cfg); err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrParseFailure, s.path, err)
	}
	if cfg.Active == nil {
		cfg.Active = map[string]string{}
	}
	s.config = cfg
	return nil
}

// Save writes the settings file, replacing it atomically.
func (s *Service) Save() error {
	if err := s.storage.ValidatePathSafety(s.path); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrIO, err)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(s.config); err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	if err := s.storage.MkdirAll(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("%w: create settings dir: %w", domain.ErrIO, err)
	}
	tmp := s.path + ".tmp"
	if err := s.storage.WriteFile(tmp, buf.Bytes()); err != nil {
		return fmt.Errorf("%w: write settings: %w", domain.ErrIO, err)
	}
	if err := s.storage.Rename(tmp, s.path); err != nil {
		_ = s.storage.Remove(tmp)
		return fmt.Errorf("%w: replace settings: %w", domain.ErrIO, err)
	}
	return nil
}

// Config returns a copy of the loaded configuration.
func (s *Service) Config() Config {
	cfg := s.config
	cfg.Active = make(map[string]string, len(s.config.Active))
	for k, v := range s.config.Active {
		cfg.Active[k] = v
	}
	return cfg
}

// ProfileMarker reports whether switches write a marker file.
func (s *Service) ProfileMarker() bool {
	return s.config.ProfileMarker
}

// ActiveProfileFor returns the recorded active profile of a tool, or "".
func (s *Service) ActiveProfileFor(toolID string) string {
	return s.config.Active[toolID]
}

// SetActiveProfile records name as the active profile of toolID. The change is
// in memory until Save.
func (s *Service) SetActiveProfile(toolID, name string) {
	if s.config.Active == nil {
		s.config.Active = map[string]string{}
	}
	s.config.Active[toolID] = name
}

// ClearActiveProfile forgets the active profile of toolID.
func (s *Service) ClearActiveProfile(toolID string) {
	delete(s.config.Active, toolID)
}

// Keys lists every readable key, including one active.<tool> key per recorded tool.
func (s *Service) Keys() []string {
	keys := []string{KeyProfileMarker}
	tools := make([]string, 0, len(s.config.Active))
	for id := range s.config.Active {
		tools = append(tools, id)
	}
	sort.Strings(tools)
	for _, id := range tools {
		keys = append(keys, keyActivePrefix+id)
	}
	return keys
}

// Get returns the string form of a setting.
func (s *Service) Get(key string) (string, error) {
	switch {
	case key == KeyProfileMarker:
		return strconv.FormatBool(s.config.ProfileMarker), nil
	case strings.HasPrefix(key, keyActivePrefix) && len(key) > len(keyActivePrefix):
		return s.config.Active[strings.TrimPrefix(key, keyActivePrefix)], nil
	default:
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownSetting, key)
	}
}

// Set parses and stores a setting in memory. Active-profile keys are
// read-only here; only a switch or a profile removal changes them.
func (s *Service) Set(key, value string) error {
	switch {
	case key == KeyProfileMarker:
		b, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%s must be true or false: %w", key, err)
		}
		s.config.ProfileMarker = b
		return nil
	case strings.HasPrefix(key, keyActivePrefix):
		return fmt.Errorf("%w: %q is read-only, use a profile switch to change it", domain.ErrUnknownSetting, key)
	default:
		return fmt.Errorf("%w: %q", domain.ErrUnknownSetting, key)
	}
}
