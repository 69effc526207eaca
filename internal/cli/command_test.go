package cli

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/bridle/internal/bridle"
	"github.com/example/bridle/internal/bridle/domain"
	"github.com/example/bridle/internal/bridle/harness"
)

type stubPrompter struct {
	selects  []selectResponse
	prompts  []promptResponse
	confirms []confirmResponse

	selectCalls  int
	promptCalls  int
	confirmCalls int
	lastItems    []string
}

type selectResponse struct {
	index int
	value string
	err   error
}

type promptResponse struct {
	value string
	err   error
}

type confirmResponse struct {
	value bool
	err   error
}

var errStubNoMore = errors.New("stub prompter: no more responses")

func (s *stubPrompter) Select(label string, items []string, defaultValue string) (int, string, error) {
	s.lastItems = items
	if s.selectCalls >= len(s.selects) {
		return 0, "", errStubNoMore
	}
	resp := s.selects[s.selectCalls]
	s.selectCalls++
	return resp.index, resp.value, resp.err
}

func (s *stubPrompter) Prompt(label string) (string, error) {
	if s.promptCalls >= len(s.prompts) {
		return "", errStubNoMore
	}
	resp := s.prompts[s.promptCalls]
	s.promptCalls++
	return resp.value, resp.err
}

func (s *stubPrompter) Confirm(label string, defaultYes bool) (bool, error) {
	if s.confirmCalls >= len(s.confirms) {
		return false, errStubNoMore
	}
	resp := s.confirms[s.confirmCalls]
	s.confirmCalls++
	return resp.value, resp.err
}

type cliEnv struct {
	mgr  *bridle.Manager
	home string
}

// newTestCommandManager builds a Manager over a temp home where only claude is
// installed as a binary.
func newTestCommandManager(t *testing.T) *cliEnv {
	t.Helper()
	home := t.TempDir()
	fs := afero.NewOsFs()
	locator := harness.NewLocator(fs, home)
	locator.SetLookPath(func(file string) (string, error) {
		if file == "claude" {
			return "/usr/bin/claude", nil
		}
		return "", errors.New("not found")
	})
	mgr := bridle.NewManager(fs, home, filepath.Join(home, "bridle"), nil, bridle.WithLocator(locator))
	require.NoError(t, mgr.InitInfra())
	return &cliEnv{mgr: mgr, home: home}
}

func (e *cliEnv) claudeLive() string {
	return filepath.Join(e.home, ".claude")
}

func (e *cliEnv) run(prompter Prompter, args ...string) (string, string, error) {
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	root := NewRootCommand(e.mgr, prompter, stdout, stderr, nil)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestNewRootCommand(t *testing.T) {
	env := newTestCommandManager(t)
	root := NewRootCommand(env.mgr, &stubPrompter{}, &bytes.Buffer{}, &bytes.Buffer{}, nil)

	names := make([]string, 0, len(root.Commands()))
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"status", "init", "profile", "backup", "config"}, names)
}

func TestVerboseRaisesLogLevel(t *testing.T) {
	env := newTestCommandManager(t)
	level := &slog.LevelVar{}
	level.Set(slog.LevelWarn)

	root := NewRootCommand(env.mgr, &stubPrompter{}, &bytes.Buffer{}, &bytes.Buffer{}, level)
	root.SetArgs([]string{"--verbose", "status"})
	require.NoError(t, root.Execute())
	assert.Equal(t, slog.LevelDebug, level.Level())
}

func TestStatusCommand(t *testing.T) {
	env := newTestCommandManager(t)
	writeFile(t, filepath.Join(env.claudeLive(), "settings.json"), "{}")

	out, _, err := env.run(&stubPrompter{}, "status")
	require.NoError(t, err)
	assert.Regexp(t, `claude-code\s+installed\s+active: -`, out)
	assert.Regexp(t, `opencode\s+not installed`, out)
}

func TestInitCommandBootstrapsDefault(t *testing.T) {
	env := newTestCommandManager(t)
	writeFile(t, filepath.Join(env.claudeLive(), "settings.json"), "{}")

	out, _, err := env.run(&stubPrompter{}, "init")
	require.NoError(t, err)
	assert.Contains(t, out, `Created profile "default" for claude-code`)

	out, _, err = env.run(&stubPrompter{}, "init")
	require.NoError(t, err)
	assert.Contains(t, out, "No new default profiles created.")
}

func TestProfileListCommand(t *testing.T) {
	env := newTestCommandManager(t)

	out, _, err := env.run(&stubPrompter{}, "profile", "list", "claude-code")
	require.NoError(t, err)
	assert.Contains(t, out, "No profiles for claude-code.")

	writeFile(t, filepath.Join(env.claudeLive(), "settings.json"), "{}")
	_, _, err = env.run(&stubPrompter{}, "profile", "create", "claude-code", "work", "--from-current")
	require.NoError(t, err)
	_, _, err = env.run(&stubPrompter{}, "profile", "create", "claude-code", "home")
	require.NoError(t, err)
	_, _, err = env.run(&stubPrompter{}, "profile", "switch", "claude-code", "work", "--no-backup")
	require.NoError(t, err)

	out, _, err = env.run(&stubPrompter{}, "profile", "list", "claude-code")
	require.NoError(t, err)
	assert.Equal(t, "  [home]\n* [work] (active)\n", out)
}

func TestProfileCommandsRejectUnknownTool(t *testing.T) {
	env := newTestCommandManager(t)

	_, _, err := env.run(&stubPrompter{}, "profile", "list", "emacs")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 1, ExitCode(err))
}

func TestProfileCreateRejectsInvalidName(t *testing.T) {
	env := newTestCommandManager(t)

	_, _, err := env.run(&stubPrompter{}, "profile", "create", "claude-code", "../escape")
	assert.ErrorIs(t, err, domain.ErrInvalidName)
}

func TestProfileCreatePromptsUntilValid(t *testing.T) {
	env := newTestCommandManager(t)
	_, _, err := env.run(&stubPrompter{}, "profile", "create", "claude-code", "work")
	require.NoError(t, err)

	prompter := &stubPrompter{prompts: []promptResponse{{value: "bad/name"}, {value: "work"}, {value: "fresh"}}}
	out, errOut, err := env.run(prompter, "profile", "create", "claude-code")
	require.NoError(t, err)
	assert.Equal(t, 3, prompter.promptCalls)
	assert.Contains(t, errOut, "Error: profile 'work' already exists.")
	assert.Contains(t, out, "Created profile fresh for claude-code")
}

func TestProfileSwitchInteractive(t *testing.T) {
	env := newTestCommandManager(t)
	writeFile(t, filepath.Join(env.claudeLive(), "settings.json"), "A")
	_, _, err := env.run(&stubPrompter{}, "profile", "create", "claude-code", "a", "--from-current")
	require.NoError(t, err)
	writeFile(t, filepath.Join(env.claudeLive(), "settings.json"), "B")
	_, _, err = env.run(&stubPrompter{}, "profile", "create", "claude-code", "b", "--from-current")
	require.NoError(t, err)
	_, _, err = env.run(&stubPrompter{}, "profile", "switch", "claude-code", "b", "--no-backup")
	require.NoError(t, err)

	prompter := &stubPrompter{selects: []selectResponse{{index: 1, value: "a"}}}
	out, _, err := env.run(prompter, "profile", "switch", "claude-code")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, prompter.lastItems, "active profile listed first")
	assert.Contains(t, out, "Backed up previous config to ")
	assert.Contains(t, out, "Successfully switched claude-code to profile: a")
	assert.Equal(t, "A", readFile(t, filepath.Join(env.claudeLive(), "settings.json")))
}

func TestProfileSwitchWithoutProfiles(t *testing.T) {
	env := newTestCommandManager(t)

	_, _, err := env.run(&stubPrompter{}, "profile", "switch", "claude-code")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestProfileSwitchNonInteractive(t *testing.T) {
	env := newTestCommandManager(t)
	_, _, err := env.run(&stubPrompter{}, "profile", "create", "claude-code", "work")
	require.NoError(t, err)

	_, _, err = env.run(NonInteractive{}, "profile", "switch", "claude-code")
	assert.ErrorIs(t, err, ErrPromptUnavailable)
}

func TestProfileRemoveCommand(t *testing.T) {
	env := newTestCommandManager(t)
	_, _, err := env.run(&stubPrompter{}, "profile", "create", "claude-code", "work")
	require.NoError(t, err)

	out, _, err := env.run(&stubPrompter{confirms: []confirmResponse{{value: false}}}, "profile", "remove", "claude-code", "work")
	require.NoError(t, err)
	assert.Contains(t, out, "Removal cancelled.")
	assert.True(t, env.mgr.ProfileExists(claudeTool(t, env), domain.MustProfileName("work")))

	out, _, err = env.run(&stubPrompter{}, "profile", "remove", "claude-code", "work", "--force")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed profile work of claude-code.")
	assert.False(t, env.mgr.ProfileExists(claudeTool(t, env), domain.MustProfileName("work")))
}

func TestProfileShowCommand(t *testing.T) {
	env := newTestCommandManager(t)
	writeFile(t, filepath.Join(env.claudeLive(), "settings.json"), `{"model":"opus"}`)
	writeFile(t, filepath.Join(env.claudeLive(), "agents", "review.md"), "")
	writeFile(t, filepath.Join(env.home, ".claude.json"),
		`{"theme":"dark","mcpServers":{"gh":{},"slack":{"disabled":true}}}`)
	_, _, err := env.run(&stubPrompter{}, "profile", "create", "claude-code", "work", "--from-current")
	require.NoError(t, err)

	out, _, err := env.run(&stubPrompter{}, "profile", "show", "claude-code", "work")
	require.NoError(t, err)
	assert.Contains(t, out, "Profile: work\n")
	assert.Contains(t, out, "Theme:   dark")
	assert.Contains(t, out, "Model:   opus")
	assert.Contains(t, out, "MCP servers (2):\n  - gh\n  - slack (disabled)\n")
	assert.Contains(t, out, "agents (1): review")
	assert.NotContains(t, out, "Warnings:")
}

func TestBackupCommands(t *testing.T) {
	env := newTestCommandManager(t)
	writeFile(t, filepath.Join(env.claudeLive(), "settings.json"), "{}")

	_, _, err := env.run(&stubPrompter{}, "backup", "create", "opencode")
	assert.ErrorIs(t, err, domain.ErrNoConfigFound)

	env.mgr.SetNow(func() time.Time { return time.Date(2020, 1, 2, 3, 4, 5, 0, time.Local) })
	out, _, err := env.run(&stubPrompter{}, "backup", "create", "claude-code")
	require.NoError(t, err)
	assert.Contains(t, out, "20200102_030405")

	out, _, err = env.run(&stubPrompter{}, "backup", "list", "claude-code")
	require.NoError(t, err)
	assert.Contains(t, out, "2020-01-02 03:04:05")

	env.mgr.SetNow(nil)
	out, _, err = env.run(&stubPrompter{confirms: []confirmResponse{{value: false}}}, "backup", "prune", "claude-code", "--older-than", "30d")
	require.NoError(t, err)
	assert.Contains(t, out, "Prune cancelled.")

	out, _, err = env.run(&stubPrompter{}, "backup", "prune", "claude-code", "--older-than", "30d", "--force")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted 1 backup(s).")

	out, _, err = env.run(&stubPrompter{}, "backup", "list", "claude-code")
	require.NoError(t, err)
	assert.Contains(t, out, "No backups for claude-code.")
}

func TestPruneCommandInteractive(t *testing.T) {
	env := newTestCommandManager(t)

	out, _, err := env.run(&stubPrompter{selects: []selectResponse{{value: "Cancel"}}}, "backup", "prune", "claude-code")
	require.NoError(t, err)
	assert.Contains(t, out, "Prune cancelled.")

	prompter := &stubPrompter{
		selects:  []selectResponse{{value: "90d"}},
		confirms: []confirmResponse{{value: true}},
	}
	out, _, err = env.run(prompter, "backup", "prune", "claude-code")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted 0 backup(s).")
}

func TestPruneCommandRejectsBadDuration(t *testing.T) {
	env := newTestCommandManager(t)

	_, _, err := env.run(&stubPrompter{}, "backup", "prune", "claude-code", "--older-than", "soon", "--force")
	assert.Error(t, err)
}

func TestPruneCommandOutOfRangeKeepsBackups(t *testing.T) {
	env := newTestCommandManager(t)
	writeFile(t, filepath.Join(env.claudeLive(), "settings.json"), "{}")
	env.mgr.SetNow(func() time.Time { return time.Now().Add(-time.Hour) })
	_, _, err := env.run(&stubPrompter{}, "backup", "create", "claude-code")
	require.NoError(t, err)
	env.mgr.SetNow(nil)

	_, _, err = env.run(&stubPrompter{}, "backup", "prune", "claude-code", "--older-than", "200000d", "--force")
	assert.Error(t, err)

	backups, err := env.mgr.ListBackups(claudeTool(t, env))
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}

func TestConfigCommands(t *testing.T) {
	env := newTestCommandManager(t)

	out, _, err := env.run(&stubPrompter{}, "config", "set", "profile_marker", "true")
	require.NoError(t, err)
	assert.Contains(t, out, "profile_marker updated.")

	out, _, err = env.run(&stubPrompter{}, "config", "get", "profile_marker")
	require.NoError(t, err)
	assert.Equal(t, "true\n", out)

	out, _, err = env.run(&stubPrompter{}, "config", "get")
	require.NoError(t, err)
	assert.Contains(t, out, "profile_marker = true")

	_, _, err = env.run(&stubPrompter{}, "config", "get", "colour")
	assert.ErrorIs(t, err, domain.ErrUnknownSetting)

	_, _, err = env.run(&stubPrompter{}, "config", "set", "active.claude-code", "ghost")
	assert.ErrorIs(t, err, domain.ErrUnknownSetting)
	out, _, err = env.run(&stubPrompter{}, "config", "get", "active.claude-code")
	require.NoError(t, err)
	assert.Equal(t, "\n", out)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 1, ExitCode(errors.New("boom")))
	assert.Equal(t, 2, ExitCode(domain.ErrLocked))
}

func TestReorderWithDefault(t *testing.T) {
	items := []string{"a", "b", "c"}
	assert.Equal(t, []string{"b", "a", "c"}, reorderWithDefault(items, "b"))
	assert.Equal(t, items, reorderWithDefault(items, ""))
	assert.Equal(t, items, reorderWithDefault(items, "a"))
	assert.Equal(t, items, reorderWithDefault(items, "zz"))
}

func claudeTool(t *testing.T, env *cliEnv) harness.Tool {
	t.Helper()
	tool, err := env.mgr.Tool("claude-code")
	require.NoError(t, err)
	return tool
}
