package bridle

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/bridle/internal/bridle/domain"
	"github.com/example/bridle/internal/bridle/harness"
	"github.com/example/bridle/internal/bridle/settings"
)

type testEnv struct {
	mgr  *Manager
	home string
	root string
}

// newTestManager builds a Manager over a temp home where only the claude
// binary is "on PATH".
func newTestManager(t *testing.T) *testEnv {
	t.Helper()
	home := t.TempDir()
	root := filepath.Join(home, ".config", "bridle")
	fs := afero.NewOsFs()

	locator := harness.NewLocator(fs, home)
	locator.SetLookPath(func(file string) (string, error) {
		if file == "claude" {
			return "/usr/local/bin/claude", nil
		}
		return "", errors.New("not found")
	})

	mgr := NewManager(fs, home, root, nil, WithLocator(locator))
	require.NoError(t, mgr.InitInfra())
	return &testEnv{mgr: mgr, home: home, root: root}
}

func (e *testEnv) claudeLive() string {
	return filepath.Join(e.home, ".claude")
}

func (e *testEnv) tool(t *testing.T, id string) harness.Tool {
	t.Helper()
	tool, err := e.mgr.Tool(id)
	require.NoError(t, err)
	return tool
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

func TestInitInfraCreatesRoots(t *testing.T) {
	env := newTestManager(t)

	assert.DirExists(t, filepath.Join(env.root, "profiles"))
	assert.DirExists(t, filepath.Join(env.root, "backups"))
}

func TestInitInfraRejectsMalformedSettings(t *testing.T) {
	env := newTestManager(t)
	writeFile(t, filepath.Join(env.root, "config.toml"), "profile_marker = = 1")

	err := env.mgr.InitInfra()
	assert.ErrorIs(t, err, domain.ErrParseFailure)
}

func TestToolLookup(t *testing.T) {
	env := newTestManager(t)

	assert.Equal(t, []string{"claude-code", "opencode", "goose"}, env.mgr.ToolIDs())
	_, err := env.mgr.Tool("vim")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBootstrapDefaultsOnlyForInstalledTools(t *testing.T) {
	env := newTestManager(t)
	writeFile(t, filepath.Join(env.claudeLive(), "settings.json"), `{"model":"opus"}`)
	writeFile(t, filepath.Join(env.home, ".config", "goose", "config.yaml"), "GOOSE_MODEL: x\n")

	created := env.mgr.BootstrapDefaults()
	assert.Equal(t, []string{"claude-code"}, created, "goose has config but no binary")

	claude := env.tool(t, "claude-code")
	assert.True(t, env.mgr.ProfileExists(claude, domain.DefaultProfileName))
	assert.Empty(t, env.mgr.BootstrapDefaults())
}

func TestStatus(t *testing.T) {
	env := newTestManager(t)
	writeFile(t, filepath.Join(env.claudeLive(), "settings.json"), "{}")
	claude := env.tool(t, "claude-code")
	_, _, err := env.mgr.CreateProfile(claude, domain.MustProfileName("work"), true)
	require.NoError(t, err)
	_, err = env.mgr.SwitchProfile(claude, domain.MustProfileName("work"), false)
	require.NoError(t, err)

	statuses, err := env.mgr.Status()
	require.NoError(t, err)
	require.Len(t, statuses, 3)
	assert.Equal(t, "claude-code", statuses[0].ID)
	assert.Equal(t, harness.FullyInstalled, statuses[0].Status)
	assert.Equal(t, "work", statuses[0].ActiveProfile)
	assert.Equal(t, 1, statuses[0].Profiles)
	assert.Equal(t, harness.NotInstalled, statuses[1].Status)
}

func TestCreateListShowRemove(t *testing.T) {
	env := newTestManager(t)
	claude := env.tool(t, "claude-code")
	writeFile(t, filepath.Join(env.claudeLive(), "settings.json"), `{"model":"opus"}`)
	writeFile(t, filepath.Join(env.claudeLive(), "agents", "review.md"), "")
	writeFile(t, filepath.Join(env.home, ".claude.json"), `{"theme":"light","mcpServers":{"gh":{}}}`)

	_, report, err := env.mgr.CreateProfile(claude, domain.MustProfileName("beta"), true)
	require.NoError(t, err)
	assert.True(t, report.OK())
	_, report, err = env.mgr.CreateProfile(claude, domain.MustProfileName("alpha"), false)
	require.NoError(t, err)
	assert.Nil(t, report)

	_, _, err = env.mgr.CreateProfile(claude, domain.MustProfileName("alpha"), false)
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	entries, err := env.mgr.ListProfiles(claude)
	require.NoError(t, err)
	assert.Equal(t, []ProfileEntry{{Name: "alpha"}, {Name: "beta"}}, entries)

	info, err := env.mgr.ShowProfile(claude, domain.MustProfileName("beta"))
	require.NoError(t, err)
	assert.Equal(t, "opus", info.Model)
	assert.Equal(t, "light", info.Theme)
	assert.Equal(t, []domain.MCPServer{{Name: "gh", Enabled: true}}, info.MCPServers)
	agents, _ := info.Resource("agents")
	assert.Equal(t, []string{"review"}, agents.Items)

	require.NoError(t, env.mgr.RemoveProfile(claude, domain.MustProfileName("alpha")))
	err = env.mgr.RemoveProfile(claude, domain.MustProfileName("alpha"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSwitchProfileBacksUpFirst(t *testing.T) {
	env := newTestManager(t)
	env.mgr.SetNow(func() time.Time { return time.Date(2025, 6, 1, 8, 0, 0, 0, time.Local) })
	claude := env.tool(t, "claude-code")
	writeFile(t, filepath.Join(env.claudeLive(), "settings.json"), "saved")
	_, _, err := env.mgr.CreateProfile(claude, domain.MustProfileName("work"), true)
	require.NoError(t, err)
	writeFile(t, filepath.Join(env.claudeLive(), "settings.json"), "unsaved edit")

	result, err := env.mgr.SwitchProfile(claude, domain.MustProfileName("work"), true)
	require.NoError(t, err)
	assert.Equal(t, env.claudeLive(), result.LiveDir)
	assert.Equal(t, filepath.Join(env.root, "backups", "claude-code", "20250601_080000"), result.BackupPath)
	assert.Equal(t, "unsaved edit", readFile(t, filepath.Join(result.BackupPath, "settings.json")))
	assert.Equal(t, "saved", readFile(t, filepath.Join(env.claudeLive(), "settings.json")))
	assert.Equal(t, "work", env.mgr.ActiveProfile(claude))

	backups, err := env.mgr.ListBackups(claude)
	require.NoError(t, err)
	require.Len(t, backups, 1)

	pruned, err := env.mgr.PruneBackups(claude, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, pruned)
}

func TestSwitchProfileWithoutLiveDir(t *testing.T) {
	env := newTestManager(t)
	opencode := env.tool(t, "opencode")
	path, _, err := env.mgr.CreateProfile(opencode, domain.MustProfileName("seed"), false)
	require.NoError(t, err)
	writeFile(t, filepath.Join(path, "opencode.json"), `{"model":"x"}`)

	result, err := env.mgr.SwitchProfile(opencode, domain.MustProfileName("seed"), true)
	require.NoError(t, err)
	assert.Empty(t, result.BackupPath)
	assert.Equal(t, `{"model":"x"}`, readFile(t, filepath.Join(result.LiveDir, "opencode.json")))
}

func TestSwitchProfileMissing(t *testing.T) {
	env := newTestManager(t)
	claude := env.tool(t, "claude-code")
	writeFile(t, filepath.Join(env.claudeLive(), "settings.json"), "{}")

	_, err := env.mgr.SwitchProfile(claude, domain.MustProfileName("ghost"), true)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	backups, err := env.mgr.ListBackups(claude)
	require.NoError(t, err)
	assert.Empty(t, backups, "no backup for a switch that cannot happen")
}

func TestRemoveActiveProfileClearsRecord(t *testing.T) {
	env := newTestManager(t)
	claude := env.tool(t, "claude-code")
	writeFile(t, filepath.Join(env.claudeLive(), "settings.json"), "{}")
	_, _, err := env.mgr.CreateProfile(claude, domain.MustProfileName("work"), true)
	require.NoError(t, err)
	_, err = env.mgr.SwitchProfile(claude, domain.MustProfileName("work"), false)
	require.NoError(t, err)

	require.NoError(t, env.mgr.RemoveProfile(claude, domain.MustProfileName("work")))
	assert.Empty(t, env.mgr.ActiveProfile(claude))
	assert.DirExists(t, env.claudeLive(), "removing a profile never touches the live dir")
}

func TestSettingsRoundTrip(t *testing.T) {
	env := newTestManager(t)

	require.NoError(t, env.mgr.SetSetting(settings.KeyProfileMarker, "true"))
	v, err := env.mgr.GetSetting(settings.KeyProfileMarker)
	require.NoError(t, err)
	assert.Equal(t, "true", v)
	assert.Contains(t, readFile(t, filepath.Join(env.root, "config.toml")), "profile_marker = true")

	err = env.mgr.SetSetting("active.claude-code", "ghost")
	assert.ErrorIs(t, err, domain.ErrUnknownSetting)
	assert.Empty(t, env.mgr.ActiveProfile(env.tool(t, "claude-code")))

	_, err = env.mgr.GetSetting("nope")
	assert.ErrorIs(t, err, domain.ErrUnknownSetting)
	assert.Contains(t, env.mgr.SettingKeys(), settings.KeyProfileMarker)
}
