package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/afero"

	"github.com/example/bridle/internal/bridle"
	"github.com/example/bridle/internal/bridle/domain"
	"github.com/example/bridle/internal/bridle/paths"
	"github.com/example/bridle/internal/cli"
)

var exitFunc = os.Exit

func main() {
	exitFunc(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the CLI with args and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	level := &slog.LevelVar{}
	level.Set(slog.LevelWarn)
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	root, err := paths.ResolveRoot()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	home, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(stderr, "Error: cannot determine home directory: %v\n", err)
		return 1
	}

	mgr := bridle.NewManager(afero.NewOsFs(), home, root, logger)

	var prompter cli.Prompter = cli.NewPromptUI(cli.WithInputValidator(func(s string) error {
		_, err := domain.ParseProfileName(s)
		return err
	}))
	if cli.IsNonInteractive() {
		prompter = cli.NonInteractive{}
	}

	cmd := cli.NewRootCommand(mgr, prompter, stdout, stderr, level)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return cli.ExitCode(err)
	}
	return 0
}
