package harness

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/example/bridle/internal/bridle/domain"
)

// Status describes what parts of a tool are present on this machine.
type Status int

const (
	NotInstalled Status = iota
	BinaryOnly
	ConfigOnly
	FullyInstalled
)

func (s Status) String() string {
	switch s {
	case BinaryOnly:
		return "binary only"
	case ConfigOnly:
		return "config only"
	case FullyInstalled:
		return "installed"
	default:
		return "not installed"
	}
}

// Shape tells how items of a resource bundle are laid out on disk.
type Shape int

const (
	// ShapeFlat bundles hold one file per item matching Bundle.Pattern.
	ShapeFlat Shape = iota
	// ShapeSubdirs bundles hold one directory per item containing Bundle.Marker.
	// An empty marker accepts every subdirectory.
	ShapeSubdirs
)

// Bundle is a named resource directory such as agents, commands or skills.
type Bundle struct {
	Name    string
	Dir     string
	Shape   Shape
	Pattern string
	Marker  string
}

// RelativeTo returns the path of the bundle inside liveDir. When the bundle
// lives outside liveDir, profiles keep it under a directory named after the bundle.
func (b Bundle) RelativeTo(liveDir string) (rel string, inside bool) {
	r, ok := within(liveDir, b.Dir)
	if !ok || r == "." {
		return b.Name, false
	}
	return r, true
}

// within returns path relative to base when path is base or below it.
func within(base, path string) (string, bool) {
	r, err := filepath.Rel(filepath.Clean(base), filepath.Clean(path))
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", false
	}
	return r, true
}

// KeyRef points at a value inside one of a profile's files.
type KeyRef struct {
	File string
	Path []string
}

// IsZero reports whether the ref is unset.
func (k KeyRef) IsZero() bool {
	return k.File == "" || len(k.Path) == 0
}

// SettingsLayout locates the theme and model values of a tool's configuration.
type SettingsLayout struct {
	Theme KeyRef
	Model KeyRef
}

// MCPParser turns raw MCP configuration bytes into server entries.
type MCPParser func(content []byte, filename string) ([]domain.MCPServer, error)

// Tool is the capability surface the profile manager needs from a harness.
type Tool interface {
	ID() string
	ConfigDir() (string, error)
	InstallationStatus() (Status, error)
	MCPConfigPath() string
	ParseMCPServers(content []byte, filename string) ([]domain.MCPServer, error)
	ResourceBundles() []Bundle
	Settings() SettingsLayout
}

// Definition is a data-driven Tool. Known harnesses are Definitions built by
// the Locator; tests construct their own.
type Definition struct {
	Name     string
	Binary   string
	Dir      string
	MCPPath  string
	Bundles  []Bundle
	Layout   SettingsLayout
	Parser   MCPParser
	Fs       afero.Fs
	LookPath func(file string) (string, error)
}

var _ Tool = (*Definition)(nil)

// ID returns the stable identifier used for profile and backup directories.
func (d *Definition) ID() string {
	return d.Name
}

// ConfigDir returns the live configuration directory.
func (d *Definition) ConfigDir() (string, error) {
	if d.Dir == "" {
		return "", fmt.Errorf("%w: %s has no configuration directory", domain.ErrNoConfigFound, d.Name)
	}
	return d.Dir, nil
}

// InstallationStatus checks for the binary on PATH and the config directory on disk.
func (d *Definition) InstallationStatus() (Status, error) {
	hasBinary := false
	if d.Binary != "" {
		lookPath := d.LookPath
		if lookPath == nil {
			lookPath = exec.LookPath
		}
		_, err := lookPath(d.Binary)
		hasBinary = err == nil
	}

	hasConfig := false
	if d.Dir != "" && d.Fs != nil {
		ok, err := afero.IsDir(d.Fs, d.Dir)
		hasConfig = err == nil && ok
	}

	switch {
	case hasBinary && hasConfig:
		return FullyInstalled, nil
	case hasBinary:
		return BinaryOnly, nil
	case hasConfig:
		return ConfigOnly, nil
	default:
		return NotInstalled, nil
	}
}

// MCPConfigPath returns the MCP configuration file, or "" when the tool has none.
func (d *Definition) MCPConfigPath() string {
	return d.MCPPath
}

// ParseMCPServers delegates to the tool's parser. Tools without a parser report no servers.
func (d *Definition) ParseMCPServers(content []byte, filename string) ([]domain.MCPServer, error) {
	if d.Parser == nil {
		return nil, nil
	}
	return d.Parser(content, filename)
}

// ResourceBundles returns the bundles the tool declares.
func (d *Definition) ResourceBundles() []Bundle {
	return d.Bundles
}

// Settings returns where theme and model live.
func (d *Definition) Settings() SettingsLayout {
	return d.Layout
}

// conventionalBundles are assumed under the live directory when a tool declares none.
var conventionalBundles = []Bundle{
	{Name: "agents", Shape: ShapeFlat, Pattern: "*.md"},
	{Name: "commands", Shape: ShapeFlat, Pattern: "*.md"},
	{Name: "skills", Shape: ShapeSubdirs, Marker: "SKILL.md"},
	{Name: "plugins", Shape: ShapeSubdirs},
}

// ConventionalBundles returns the conventional bundles rooted at dir.
func ConventionalBundles(dir string) []Bundle {
	bundles := make([]Bundle, 0, len(conventionalBundles))
	for _, b := range conventionalBundles {
		b.Dir = filepath.Join(dir, b.Name)
		bundles = append(bundles, b)
	}
	return bundles
}

// EffectiveBundles returns the tool's declared bundles, or the conventional
// agents/commands/skills/plugins directories under its live directory.
func EffectiveBundles(t Tool) ([]Bundle, error) {
	if declared := t.ResourceBundles(); len(declared) > 0 {
		return declared, nil
	}
	liveDir, err := t.ConfigDir()
	if err != nil {
		return nil, err
	}
	return ConventionalBundles(liveDir), nil
}

// ExternalBundles returns the bundles that live outside the tool's live directory.
// Those are not covered by copying the live directory and are synced separately.
func ExternalBundles(t Tool) ([]Bundle, error) {
	bundles, err := EffectiveBundles(t)
	if err != nil {
		return nil, err
	}
	liveDir, err := t.ConfigDir()
	if err != nil {
		return nil, err
	}
	var external []Bundle
	for _, b := range bundles {
		if _, inside := b.RelativeTo(liveDir); !inside {
			external = append(external, b)
		}
	}
	return external, nil
}

// ExternalMCPPath returns the tool's MCP config path when it lies outside the
// live directory, or "" otherwise.
func ExternalMCPPath(t Tool) string {
	mcp := t.MCPConfigPath()
	if mcp == "" {
		return ""
	}
	liveDir, err := t.ConfigDir()
	if err != nil {
		return mcp
	}
	if _, inside := within(liveDir, mcp); inside {
		return ""
	}
	return mcp
}
