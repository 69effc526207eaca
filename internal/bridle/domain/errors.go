package domain

import "errors"

// Exported error variables allow callers to use errors.Is() for error checking.
var (
	ErrAlreadyExists  = errors.New("profile already exists")
	ErrNotFound       = errors.New("not found")
	ErrInvalidName    = errors.New("invalid profile name")
	ErrNoConfigFound  = errors.New("no config found")
	ErrIO             = errors.New("filesystem error")
	ErrParseFailure   = errors.New("parse failure")
	ErrLocked         = errors.New("another switch is in progress")
	ErrUnknownSetting = errors.New("unknown setting")
)

// Name rule violations. Each is wrapped together with ErrInvalidName.
var (
	ErrNameEmpty        = errors.New("name cannot be empty")
	ErrNameTooLong      = errors.New("name is longer than 64 characters")
	ErrNameDot          = errors.New("name cannot be '.' or '..'")
	ErrNameTraversal    = errors.New("name cannot contain '..'")
	ErrNameNullByte     = errors.New("name contains null byte")
	ErrNameSeparator    = errors.New("name cannot contain path separators")
	ErrNameInvalidChars = errors.New("name may only contain letters, digits, '.', '_' and '-'")
	ErrNameLeadingChar  = errors.New("name must start with a letter or digit")
	ErrNameReserved     = errors.New("name is a reserved system filename")
)
