package harness

import (
	"path/filepath"

	"github.com/spf13/afero"
)

// Stable identifiers of the known harnesses.
const (
	ClaudeCodeID = "claude-code"
	OpenCodeID   = "opencode"
	GooseID      = "goose"
	UnknownID    = "unknown"
)

// Locator knows where the supported harnesses keep their configuration.
type Locator struct {
	fs    afero.Fs
	home  string
	tools []Tool
}

// NewLocator builds the known tool definitions relative to the home directory.
func NewLocator(fs afero.Fs, home string) *Locator {
	l := &Locator{fs: fs, home: home}
	l.tools = []Tool{l.claudeCode(), l.openCode(), l.goose()}
	return l
}

// SetLookPath replaces the binary lookup of every known tool. Nil restores exec.LookPath.
func (l *Locator) SetLookPath(lookPath func(file string) (string, error)) {
	for _, t := range l.tools {
		if d, ok := t.(*Definition); ok {
			d.LookPath = lookPath
		}
	}
}

// Tools returns every known tool in display order.
func (l *Locator) Tools() []Tool {
	return l.tools
}

// Lookup returns the tool with the given id. Unrecognised ids resolve to the
// Unknown fallback and false.
func (l *Locator) Lookup(id string) (Tool, bool) {
	for _, t := range l.tools {
		if t.ID() == id {
			return t, true
		}
	}
	return Unknown(), false
}

// IDs returns the ids of the known tools.
func (l *Locator) IDs() []string {
	ids := make([]string, 0, len(l.tools))
	for _, t := range l.tools {
		ids = append(ids, t.ID())
	}
	return ids
}

// Unknown is the fallback for harnesses bridle does not recognise: it has no
// configuration directory, no MCP file and no bundles, and is never installed.
// Every operation that needs the live directory fails with ErrNoConfigFound.
func Unknown() Tool {
	return &Definition{Name: UnknownID}
}

func (l *Locator) claudeCode() *Definition {
	dir := filepath.Join(l.home, ".claude")
	return &Definition{
		Name:    ClaudeCodeID,
		Binary:  "claude",
		Dir:     dir,
		MCPPath: filepath.Join(l.home, ".claude.json"),
		Bundles: []Bundle{
			{Name: "agents", Dir: filepath.Join(dir, "agents"), Shape: ShapeFlat, Pattern: "*.md"},
			{Name: "commands", Dir: filepath.Join(dir, "commands"), Shape: ShapeFlat, Pattern: "*.md"},
			{Name: "skills", Dir: filepath.Join(dir, "skills"), Shape: ShapeSubdirs, Marker: "SKILL.md"},
		},
		Layout: SettingsLayout{
			Theme: KeyRef{File: ".claude.json", Path: []string{"theme"}},
			Model: KeyRef{File: "settings.json", Path: []string{"model"}},
		},
		Parser: ParseClaudeMCP,
		Fs:     l.fs,
	}
}

func (l *Locator) openCode() *Definition {
	dir := filepath.Join(l.home, ".config", "opencode")
	return &Definition{
		Name:    OpenCodeID,
		Binary:  "opencode",
		Dir:     dir,
		MCPPath: filepath.Join(dir, "opencode.json"),
		Bundles: []Bundle{
			{Name: "agent", Dir: filepath.Join(dir, "agent"), Shape: ShapeFlat, Pattern: "*.md"},
			{Name: "command", Dir: filepath.Join(dir, "command"), Shape: ShapeFlat, Pattern: "*.md"},
		},
		Layout: SettingsLayout{
			Theme: KeyRef{File: "opencode.json", Path: []string{"theme"}},
			Model: KeyRef{File: "opencode.json", Path: []string{"model"}},
		},
		Parser: ParseOpenCodeMCP,
		Fs:     l.fs,
	}
}

func (l *Locator) goose() *Definition {
	dir := filepath.Join(l.home, ".config", "goose")
	return &Definition{
		Name:    GooseID,
		Binary:  "goose",
		Dir:     dir,
		MCPPath: filepath.Join(dir, "config.yaml"),
		Layout: SettingsLayout{
			Model: KeyRef{File: "config.yaml", Path: []string{"GOOSE_MODEL"}},
		},
		Parser: ParseGooseMCP,
		Fs:     l.fs,
	}
}
