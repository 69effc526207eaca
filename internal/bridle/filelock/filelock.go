// Package filelock provides advisory, non-blocking per-tool locks so two bridle
// processes cannot switch the same tool at once.
package filelock

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/example/bridle/internal/bridle/domain"
)

// Locker acquires the lock guarding one tool.
type Locker interface {
	Acquire(toolID string) (Unlocker, error)
}

// Unlocker releases a held lock.
type Unlocker interface {
	Unlock() error
}

// PathFunc maps a tool id to its lock file.
type PathFunc func(toolID string) string

// FileLocker locks files named by a PathFunc. It always operates on the real
// filesystem because flock needs a file descriptor.
type FileLocker struct {
	path PathFunc
}

// New creates a FileLocker.
func New(path PathFunc) *FileLocker {
	return &FileLocker{path: path}
}

// Acquire opens (creating if needed) the tool's lock file and takes an exclusive
// lock without waiting. A lock held elsewhere yields ErrLocked.
func (l *FileLocker) Acquire(toolID string) (Unlocker, error) {
	path := l.path(toolID)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("%w: create lock dir: %w", domain.ErrIO, err)
	}

	// Lock files are never deleted so every process locks the same inode.
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("%w: open lock file: %w", domain.ErrIO, err)
	}

	if err := lockFile(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", toolID, err)
	}
	return &heldLock{f: f}, nil
}

type heldLock struct {
	f *os.File
}

func (h *heldLock) Unlock() error {
	if h.f == nil {
		return nil
	}
	unlockErr := unlockFile(h.f)
	closeErr := h.f.Close()
	h.f = nil
	if unlockErr != nil {
		return fmt.Errorf("release lock: %w", unlockErr)
	}
	return closeErr
}

// Nop is a Locker that never blocks anyone.
type Nop struct{}

// Acquire always succeeds.
func (Nop) Acquire(string) (Unlocker, error) {
	return nopUnlocker{}, nil
}

type nopUnlocker struct{}

func (nopUnlocker) Unlock() error { return nil }
