package cli

import "errors"

var (
	// ErrPromptCancelled indicates that the user aborted an interactive prompt.
	ErrPromptCancelled = errors.New("prompt cancelled")
	// ErrPromptUnavailable is returned when input is needed but prompts are disabled.
	ErrPromptUnavailable = errors.New("interactive input unavailable; pass the value as an argument or flag")
)
