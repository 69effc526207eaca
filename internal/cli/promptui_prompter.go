package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
)

// menuSize is the number of profiles visible at once in a selection menu.
const menuSize = 10

// PromptUI is a Prompter backed by promptui terminal widgets.
type PromptUI struct {
	stdin    io.ReadCloser
	stdout   io.WriteCloser
	validate func(string) error
}

// PromptOption configures a PromptUI.
type PromptOption func(*PromptUI)

// WithStreams redirects prompts to the given streams. A nil stream keeps the
// process default.
func WithStreams(stdin io.Reader, stdout io.Writer) PromptOption {
	return func(p *PromptUI) {
		if stdin != nil {
			p.stdin = toReadCloser(stdin)
		}
		if stdout != nil {
			p.stdout = toWriteCloser(stdout)
		}
	}
}

// WithInputValidator checks free-text answers while they are typed, so an
// invalid profile name is refused before it reaches the command.
func WithInputValidator(fn func(string) error) PromptOption {
	return func(p *PromptUI) { p.validate = fn }
}

// NewPromptUI prompts on the process's stdin and stdout unless overridden.
func NewPromptUI(opts ...PromptOption) *PromptUI {
	p := &PromptUI{stdin: os.Stdin, stdout: os.Stdout}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// choice is one row of a selection menu; Current marks the active profile.
type choice struct {
	Name    string
	Current bool
}

var choiceTemplates = &promptui.SelectTemplates{
	Label:    "{{ . }}:",
	Active:   `▸ {{ .Name | cyan }}{{ if .Current }} {{ "(active)" | faint }}{{ end }}`,
	Inactive: `  {{ .Name }}{{ if .Current }} {{ "(active)" | faint }}{{ end }}`,
	Selected: `{{ "✔" | green }} {{ .Name }}`,
}

// Select shows items with the cursor on current, which is tagged as active.
// Typing "/" filters by substring.
func (p *PromptUI) Select(label string, items []string, current string) (int, string, error) {
	choices := make([]choice, len(items))
	cursor := 0
	for i, item := range items {
		choices[i] = choice{Name: item, Current: item == current}
		if item == current {
			cursor = i
		}
	}

	menu := promptui.Select{
		Label:     label,
		Items:     choices,
		Templates: choiceTemplates,
		Size:      menuSize,
		HideHelp:  true,
		CursorPos: cursor,
		Searcher:  substringSearcher(items),
		Stdin:     p.stdin,
		Stdout:    p.stdout,
	}

	idx, _, err := menu.Run()
	if err != nil {
		return idx, "", fmt.Errorf("%w: %v", ErrPromptCancelled, err)
	}
	if idx < 0 || idx >= len(items) {
		return idx, "", fmt.Errorf("%w: nothing selected", ErrPromptCancelled)
	}
	return idx, items[idx], nil
}

// Prompt reads one line of text, trimmed.
func (p *PromptUI) Prompt(label string) (string, error) {
	input := promptui.Prompt{
		Label:  label,
		Stdin:  p.stdin,
		Stdout: p.stdout,
	}
	if p.validate != nil {
		input.Validate = func(s string) error { return p.validate(strings.TrimSpace(s)) }
	}
	value, err := input.Run()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPromptCancelled, err)
	}
	return strings.TrimSpace(value), nil
}

// Confirm asks a yes/no question; promptui appends the [y/N] hint. Answering
// no is not an error, only interrupting the prompt is.
func (p *PromptUI) Confirm(label string, defaultYes bool) (bool, error) {
	def := "N"
	if defaultYes {
		def = "Y"
	}
	question := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
		Default:   def,
		Stdin:     p.stdin,
		Stdout:    p.stdout,
	}
	answer, err := question.Run()
	switch {
	case errors.Is(err, promptui.ErrAbort):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("%w: %v", ErrPromptCancelled, err)
	}
	return strings.EqualFold(answer, "y") || (answer == "" && defaultYes), nil
}

func substringSearcher(items []string) func(input string, index int) bool {
	return func(input string, index int) bool {
		return strings.Contains(strings.ToLower(items[index]), strings.ToLower(strings.TrimSpace(input)))
	}
}

func toReadCloser(r io.Reader) io.ReadCloser {
	if rc, ok := r.(io.ReadCloser); ok {
		return rc
	}
	return io.NopCloser(r)
}

func toWriteCloser(w io.Writer) io.WriteCloser {
	if wc, ok := w.(io.WriteCloser); ok {
		return wc
	}
	return nopWriteCloser{Writer: w}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error {
	return nil
}
