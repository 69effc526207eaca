package domain

import (
	"fmt"
	"regexp"
	"strings"
)

const maxNameLength = 64

var (
	reservedNamePattern = regexp.MustCompile(`^(?i)(con|prn|aux|nul|com[1-9]|lpt[1-9])$`)
	allowedCharsPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)
)

// ProfileName is a validated profile identifier. The zero value is not valid;
// use ParseProfileName.
type ProfileName struct {
	value string
}

// DefaultProfileName is the profile bootstrapped from a tool's live config.
var DefaultProfileName = ProfileName{value: "default"}

// ParseProfileName validates name and returns it as a ProfileName.
//
// The function checks for:
//   - Empty names or whitespace-only names
//   - Dot navigation (. or ..) and embedded '..' sequences
//   - Null bytes and path separators
//   - Characters outside [A-Za-z0-9._-], or a leading '.', '_' or '-'
//   - Reserved Windows filenames (CON, PRN, AUX, NUL, COM1-9, LPT1-9)
//
// Every failure wraps ErrInvalidName.
func ParseProfileName(name string) (ProfileName, error) {
	if err := validateName(strings.TrimSpace(name)); err != nil {
		return ProfileName{}, fmt.Errorf("%w %q: %w", ErrInvalidName, name, err)
	}
	return ProfileName{value: strings.TrimSpace(name)}, nil
}

// MustProfileName is ParseProfileName for names known to be valid.
func MustProfileName(name string) ProfileName {
	n, err := ParseProfileName(name)
	if err != nil {
		panic(err)
	}
	return n
}

func validateName(name string) error {
	if name == "" {
		return ErrNameEmpty
	}
	if name == "." || name == ".." {
		return ErrNameDot
	}
	if strings.ContainsRune(name, 0) {
		return ErrNameNullByte
	}
	if strings.ContainsAny(name, `/\`) {
		return ErrNameSeparator
	}
	if strings.Contains(name, "..") {
		return ErrNameTraversal
	}
	if len(name) > maxNameLength {
		return ErrNameTooLong
	}
	if !allowedCharsPattern.MatchString(name) {
		return ErrNameInvalidChars
	}
	switch name[0] {
	case '.', '_', '-':
		return ErrNameLeadingChar
	}
	if reservedNamePattern.MatchString(name) {
		return ErrNameReserved
	}
	return nil
}

// String returns the name as stored on disk.
func (n ProfileName) String() string {
	return n.value
}

// IsZero reports whether n was never parsed.
func (n ProfileName) IsZero() bool {
	return n.value == ""
}
