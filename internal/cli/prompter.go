package cli

import (
	"fmt"
	"os"
)

// Prompter asks the user for input when a command is missing an argument.
type Prompter interface {
	Select(label string, items []string, defaultValue string) (int, string, error)
	Prompt(label string) (string, error)
	Confirm(label string, defaultYes bool) (bool, error)
}

// NonInteractiveEnv disables every prompt when set to "1".
const NonInteractiveEnv = "BRIDLE_NON_INTERACTIVE"

// IsNonInteractive reports whether prompts are disabled by the environment.
func IsNonInteractive() bool {
	return os.Getenv(NonInteractiveEnv) == "1"
}

// NonInteractive fails every prompt, so commands must get all input from
// arguments and flags.
type NonInteractive struct{}

func (NonInteractive) Select(label string, _ []string, _ string) (int, string, error) {
	return 0, "", fmt.Errorf("%w: %s", ErrPromptUnavailable, label)
}

func (NonInteractive) Prompt(label string) (string, error) {
	return "", fmt.Errorf("%w: %s", ErrPromptUnavailable, label)
}

func (NonInteractive) Confirm(label string, _ bool) (bool, error) {
	return false, fmt.Errorf("%w: %s", ErrPromptUnavailable, label)
}
