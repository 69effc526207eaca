package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/bridle/internal/bridle"
	"github.com/example/bridle/internal/bridle/domain"
	"github.com/example/bridle/internal/bridle/harness"
)

// NewRootCommand constructs the root Cobra command for bridle. level, when not
// nil, is raised to Debug by --verbose.
func NewRootCommand(mgr *bridle.Manager, prompter Prompter, stdout, stderr io.Writer, level *slog.LevelVar) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "bridle",
		Short: "Harness configuration profile manager",
		Long: "bridle keeps named snapshots of AI coding tool configurations " +
			"(Claude Code, OpenCode, Goose) and switches between them safely.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if verbose && level != nil {
				level.Set(slog.LevelDebug)
			}
			return mgr.InitInfra()
		},
	}

	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging on stderr")

	cmd.AddCommand(newStatusCommand(mgr, stdout))
	cmd.AddCommand(newInitCommand(mgr, stdout))
	cmd.AddCommand(newProfileCommand(mgr, prompter, stdout, stderr))
	cmd.AddCommand(newBackupCommand(mgr, prompter, stdout))
	cmd.AddCommand(newConfigCommand(mgr, stdout))

	return cmd
}

func newStatusCommand(mgr *bridle.Manager, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show installed tools and their active profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := mgr.Status()
			if err != nil {
				return err
			}
			for _, s := range statuses {
				active := s.ActiveProfile
				if active == "" {
					active = "-"
				}
				fmt.Fprintf(stdout, "%-12s %-14s active: %-16s profiles: %d\n", s.ID, s.Status, active, s.Profiles)
			}
			return nil
		},
	}
}

func newInitCommand(mgr *bridle.Manager, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the bridle directories and a default profile for each installed tool",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			created := mgr.BootstrapDefaults()
			fmt.Fprintf(stdout, "Config root: %s\n", mgr.Paths().Root())
			if len(created) == 0 {
				fmt.Fprintln(stdout, "No new default profiles created.")
				return nil
			}
			for _, id := range created {
				fmt.Fprintf(stdout, "Created profile %q for %s from its current config.\n", domain.DefaultProfileName, id)
			}
			return nil
		},
	}
}

func newProfileCommand(mgr *bridle.Manager, prompter Prompter, stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "profile",
		Aliases: []string{"profiles"},
		Short:   "Manage the profiles of a tool",
	}
	cmd.AddCommand(newProfileListCommand(mgr, stdout))
	cmd.AddCommand(newProfileShowCommand(mgr, prompter, stdout))
	cmd.AddCommand(newProfileCreateCommand(mgr, prompter, stdout, stderr))
	cmd.AddCommand(newProfileRemoveCommand(mgr, prompter, stdout))
	cmd.AddCommand(newProfileSwitchCommand(mgr, prompter, stdout))
	return cmd
}

func newProfileListCommand(mgr *bridle.Manager, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "list <tool>",
		Short: "List the profiles of a tool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tool, err := mgr.Tool(args[0])
			if err != nil {
				return err
			}
			entries, err := mgr.ListProfiles(tool)
			if err != nil {
				return err
			}
			for _, entry := range entries {
				if entry.Active {
					fmt.Fprintf(stdout, "* [%s] (active)\n", entry.Name)
				} else {
					fmt.Fprintf(stdout, "  [%s]\n", entry.Name)
				}
			}
			if len(entries) == 0 {
				fmt.Fprintf(stdout, "No profiles for %s. Use 'bridle profile create %s <name>' to create one.\n", tool.ID(), tool.ID())
			}
			return nil
		},
	}
}

func newProfileShowCommand(mgr *bridle.Manager, prompter Prompter, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "show <tool> [name]",
		Short: "Show what a profile contains",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tool, name, err := resolveProfileArgs(mgr, prompter, args, "Select profile to show")
			if err != nil {
				return err
			}
			info, err := mgr.ShowProfile(tool, name)
			if err != nil {
				return err
			}
			printProfileInfo(stdout, info)
			return nil
		},
	}
}

func newProfileCreateCommand(mgr *bridle.Manager, prompter Prompter, stdout, stderr io.Writer) *cobra.Command {
	var fromCurrent bool

	cmd := &cobra.Command{
		Use:   "create <tool> [name]",
		Short: "Create a profile, empty or from the tool's current config",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tool, err := mgr.Tool(args[0])
			if err != nil {
				return err
			}

			var name domain.ProfileName
			if len(args) == 2 {
				name, err = domain.ParseProfileName(args[1])
				if err != nil {
					return err
				}
			} else {
				name, err = promptNewProfileName(mgr, prompter, tool, stderr)
				if err != nil {
					return err
				}
			}

			path, report, err := mgr.CreateProfile(tool, name, fromCurrent)
			if err != nil {
				return err
			}
			for _, failed := range report.Failed() {
				fmt.Fprintf(stderr, "Warning: skipped %s: %v\n", failed.Path, failed.Err)
			}
			fmt.Fprintf(stdout, "Created profile %s for %s at %s\n", name, tool.ID(), path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&fromCurrent, "from-current", false, "Copy the tool's current live config into the new profile")

	return cmd
}

func newProfileRemoveCommand(mgr *bridle.Manager, prompter Prompter, stdout io.Writer) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:     "remove <tool> [name]",
		Aliases: []string{"rm", "delete"},
		Short:   "Delete a profile",
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tool, name, err := resolveProfileArgs(mgr, prompter, args, "Select profile to remove")
			if err != nil {
				return err
			}
			if !force {
				confirm, err := prompter.Confirm(fmt.Sprintf("Delete profile %s of %s", name, tool.ID()), false)
				if err != nil {
					return err
				}
				if !confirm {
					fmt.Fprintln(stdout, "Removal cancelled.")
					return nil
				}
			}
			if err := mgr.RemoveProfile(tool, name); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Removed profile %s of %s.\n", name, tool.ID())
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Do not prompt for confirmation")

	return cmd
}

func newProfileSwitchCommand(mgr *bridle.Manager, prompter Prompter, stdout io.Writer) *cobra.Command {
	var noBackup bool

	cmd := &cobra.Command{
		Use:     "switch <tool> [name]",
		Aliases: []string{"use"},
		Short:   "Make a profile the tool's live config",
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tool, name, err := resolveProfileArgs(mgr, prompter, args, "Select profile to activate")
			if err != nil {
				return err
			}
			result, err := mgr.SwitchProfile(tool, name, !noBackup)
			if err != nil {
				return err
			}
			if result.BackupPath != "" {
				fmt.Fprintf(stdout, "Backed up previous config to %s\n", result.BackupPath)
			}
			fmt.Fprintf(stdout, "Successfully switched %s to profile: %s\n", tool.ID(), name)
			return nil
		},
	}

	cmd.Flags().BoolVar(&noBackup, "no-backup", false, "Replace the live config without backing it up first")

	return cmd
}

func newBackupCommand(mgr *bridle.Manager, prompter Prompter, stdout io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "backup",
		Aliases: []string{"backups"},
		Short:   "Manage backups of live configs",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "create <tool>",
		Short: "Back up a tool's live config now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tool, err := mgr.Tool(args[0])
			if err != nil {
				return err
			}
			path, err := mgr.BackupLive(tool)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Backup created: %s\n", path)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list <tool>",
		Short: "List a tool's backups",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tool, err := mgr.Tool(args[0])
			if err != nil {
				return err
			}
			entries, err := mgr.ListBackups(tool)
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Fprintf(stdout, "%s  %s\n", e.Created.Format(time.DateTime), e.Path)
			}
			if len(entries) == 0 {
				fmt.Fprintf(stdout, "No backups for %s.\n", tool.ID())
			}
			return nil
		},
	})
	cmd.AddCommand(newPruneCommand(mgr, prompter, stdout))
	return cmd
}

func newPruneCommand(mgr *bridle.Manager, prompter Prompter, stdout io.Writer) *cobra.Command {
	var olderThanStr string
	var force bool

	cmd := &cobra.Command{
		Use:   "prune <tool>",
		Short: "Remove outdated backups",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tool, err := mgr.Tool(args[0])
			if err != nil {
				return err
			}

			if olderThanStr == "" {
				options := []string{"30d", "90d", "180d", "Cancel"}
				_, choice, err := prompter.Select("Prune backups older than", options, "")
				if err != nil {
					return err
				}
				if choice == "Cancel" {
					fmt.Fprintln(stdout, "Prune cancelled.")
					return nil
				}
				olderThanStr = choice
			}
			duration, err := bridle.ParseRetentionInterval(olderThanStr)
			if err != nil {
				return err
			}

			if !force {
				confirm, err := prompter.Confirm(fmt.Sprintf("Delete %s backups older than %s", tool.ID(), olderThanStr), false)
				if err != nil {
					return err
				}
				if !confirm {
					fmt.Fprintln(stdout, "Prune cancelled.")
					return nil
				}
			}

			count, err := mgr.PruneBackups(tool, duration)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Deleted %d backup(s).\n", count)
			return nil
		},
	}

	cmd.Flags().StringVar(&olderThanStr, "older-than", "", "Delete backups older than the specified duration (e.g. 30d)")
	cmd.Flags().BoolVar(&force, "force", false, "Do not prompt for confirmation")

	return cmd
}

func newConfigCommand(mgr *bridle.Manager, stdout io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read or change bridle settings",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get [key]",
		Short: "Print one setting, or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys := mgr.SettingKeys()
			if len(args) == 1 {
				keys = args
			}
			for _, key := range keys {
				value, err := mgr.GetSetting(key)
				if err != nil {
					return err
				}
				if len(args) == 1 {
					fmt.Fprintln(stdout, value)
				} else {
					fmt.Fprintf(stdout, "%s = %s\n", key, value)
				}
			}
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change a setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := mgr.SetSetting(args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "%s updated.\n", args[0])
			return nil
		},
	})
	return cmd
}

// resolveProfileArgs turns <tool> [name] into a tool and profile name,
// prompting for the name when it is omitted.
func resolveProfileArgs(mgr *bridle.Manager, prompter Prompter, args []string, label string) (harness.Tool, domain.ProfileName, error) {
	tool, err := mgr.Tool(args[0])
	if err != nil {
		return nil, domain.ProfileName{}, err
	}
	if len(args) > 1 {
		// Early validation of command-line argument
		name, err := domain.ParseProfileName(args[1])
		return tool, name, err
	}

	entries, err := mgr.ListProfiles(tool)
	if err != nil {
		return nil, domain.ProfileName{}, err
	}
	if len(entries) == 0 {
		return nil, domain.ProfileName{}, fmt.Errorf("%w: no profiles for %s", domain.ErrNotFound, tool.ID())
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	active := mgr.ActiveProfile(tool)
	names = reorderWithDefault(names, active)
	_, selected, err := prompter.Select(label, names, active)
	if err != nil {
		return nil, domain.ProfileName{}, err
	}
	name, err := domain.ParseProfileName(selected)
	return tool, name, err
}

func promptNewProfileName(mgr *bridle.Manager, prompter Prompter, tool harness.Tool, stderr io.Writer) (domain.ProfileName, error) {
	for {
		input, err := prompter.Prompt("Enter a name for the new profile")
		if err != nil {
			return domain.ProfileName{}, err
		}
		name, err := domain.ParseProfileName(input)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			continue
		}
		if mgr.ProfileExists(tool, name) {
			fmt.Fprintf(stderr, "Error: profile '%s' already exists.\n", name)
			continue
		}
		return name, nil
	}
}

func printProfileInfo(w io.Writer, info *domain.ProfileInfo) {
	title := info.Name
	if info.IsActive {
		title += " (active)"
	}
	fmt.Fprintf(w, "Profile: %s\n", title)
	fmt.Fprintf(w, "Tool:    %s\n", info.ToolID)
	fmt.Fprintf(w, "Path:    %s\n", info.Path)
	if info.Theme != "" {
		fmt.Fprintf(w, "Theme:   %s\n", info.Theme)
	}
	if info.Model != "" {
		fmt.Fprintf(w, "Model:   %s\n", info.Model)
	}

	fmt.Fprintf(w, "MCP servers (%d):\n", len(info.MCPServers))
	for _, s := range info.MCPServers {
		if s.Enabled {
			fmt.Fprintf(w, "  - %s\n", s.Name)
		} else {
			fmt.Fprintf(w, "  - %s (disabled)\n", s.Name)
		}
	}

	for _, r := range info.Resources {
		switch {
		case !r.DirectoryExists:
			fmt.Fprintf(w, "%s: (none)\n", r.Name)
		case len(r.Items) == 0:
			fmt.Fprintf(w, "%s (0)\n", r.Name)
		default:
			fmt.Fprintf(w, "%s (%d): %s\n", r.Name, len(r.Items), strings.Join(r.Items, ", "))
		}
	}

	if len(info.ExtractionErrors) > 0 {
		fmt.Fprintln(w, "Warnings:")
		for _, e := range info.ExtractionErrors {
			fmt.Fprintf(w, "  - %s\n", e)
		}
	}
}

// ExitCode maps an error to a process exit status: 0 for success, 2 when the
// switch lock is held elsewhere, 1 otherwise.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, domain.ErrLocked):
		return 2
	default:
		return 1
	}
}

// reorderWithDefault moves the default value to the front of the list.
// If defaultValue is empty or not found, or already first, returns items unchanged.
func reorderWithDefault(items []string, defaultValue string) []string {
	if defaultValue == "" {
		return items
	}

	idx := -1
	for i, item := range items {
		if item == defaultValue {
			idx = i
			break
		}
	}
	if idx <= 0 {
		return items
	}

	reordered := make([]string, 0, len(items))
	reordered = append(reordered, defaultValue)
	reordered = append(reordered, items[:idx]...)
	reordered = append(reordered, items[idx+1:]...)
	return reordered
}
