package copier

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/example/bridle/internal/bridle/storage"
)

// MarkerPrefix starts the name of the empty marker file that records which
// profile was switched into a live directory. Markers are never captured into
// profiles.
const MarkerPrefix = "BRIDLE_PROFILE_"

// excludedNames are skipped at any depth by CopyFiltered.
var excludedNames = map[string]struct{}{
	".git":         {},
	".DS_Store":    {},
	"Thumbs.db":    {},
	"__pycache__":  {},
	"node_modules": {},
}

// IsExcluded reports whether a directory entry name is skipped by CopyFiltered.
func IsExcluded(name string) bool {
	if _, ok := excludedNames[name]; ok {
		return true
	}
	return strings.HasPrefix(name, MarkerPrefix)
}

// Action is what happened to one source entry during a filtered copy.
type Action string

const (
	ActionCopied   Action = "copied"
	ActionLinked   Action = "linked"
	ActionExcluded Action = "excluded"
	ActionSkipped  Action = "skipped"
	ActionFailed   Action = "failed"
)

// Outcome records the result for one entry. Path is relative to the copy source.
type Outcome struct {
	Path   string
	Action Action
	Err    error
}

// Report collects per-entry outcomes of a best-effort copy.
type Report struct {
	Outcomes []Outcome
}

func (r *Report) add(path string, action Action, err error) {
	r.Outcomes = append(r.Outcomes, Outcome{Path: path, Action: action, Err: err})
}

// Failed returns the outcomes that could not be copied.
func (r *Report) Failed() []Outcome {
	return r.filter(ActionFailed)
}

// Excluded returns the outcomes skipped by the exclusion rules.
func (r *Report) Excluded() []Outcome {
	return r.filter(ActionExcluded)
}

// OK reports whether every entry was handled without failure.
func (r *Report) OK() bool {
	return r == nil || len(r.Failed()) == 0
}

func (r *Report) filter(action Action) []Outcome {
	if r == nil {
		return nil
	}
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Action == action {
			out = append(out, o)
		}
	}
	return out
}

// Copier copies directory trees, preserving symlinks.
type Copier struct {
	storage *storage.Storage
	logger  *slog.Logger
}

// New creates a Copier.
func New(storage *storage.Storage, logger *slog.Logger) *Copier {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Copier{storage: storage, logger: logger}
}

// CopyStrict recursively copies src into dst and stops at the first failure.
// A missing or non-directory src is a no-op.
func (c *Copier) CopyStrict(src, dst string) error {
	info, ok, err := c.sourceDir(src)
	if err != nil || !ok {
		return err
	}
	return c.copyTreeStrict(src, dst, info.Mode().Perm())
}

func (c *Copier) copyTreeStrict(src, dst string, perm os.FileMode) error {
	if err := c.storage.MkdirAllMode(dst, perm|0o700); err != nil {
		return fmt.Errorf("create directory %s: %w", dst, err)
	}

	entries, err := c.storage.ReadDir(src)
	if err != nil {
		return fmt.Errorf("read directory %s: %w", src, err)
	}

	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())

		switch mode := entry.Mode(); {
		case mode&os.ModeSymlink != 0:
			if err := c.copyLink(srcPath, dstPath); err != nil {
				return fmt.Errorf("copy symlink %s: %w", srcPath, err)
			}
		case mode.IsDir():
			if err := c.copyTreeStrict(srcPath, dstPath, mode.Perm()); err != nil {
				return err
			}
		case mode.IsRegular():
			if err := c.storage.CopyFile(srcPath, dstPath); err != nil {
				return fmt.Errorf("copy file %s: %w", srcPath, err)
			}
		}
	}
	return nil
}

// CopyFiltered recursively copies src into dst, skipping excluded names at any
// depth and continuing past per-entry failures. Only a failure to create dst
// itself is returned as an error. A missing or non-directory src is a no-op.
func (c *Copier) CopyFiltered(src, dst string) (*Report, error) {
	report := &Report{}
	info, ok, err := c.sourceDir(src)
	if err != nil || !ok {
		return report, err
	}
	if err := c.storage.MkdirAllMode(dst, info.Mode().Perm()|0o700); err != nil {
		return report, fmt.Errorf("create directory %s: %w", dst, err)
	}
	c.copyTreeFiltered(src, dst, "", report)
	return report, nil
}

func (c *Copier) copyTreeFiltered(src, dst, rel string, report *Report) {
	entries, err := c.storage.ReadDir(src)
	if err != nil {
		c.fail(report, rel, fmt.Errorf("read directory: %w", err))
		return
	}

	for _, entry := range entries {
		name := entry.Name()
		entryRel := filepath.Join(rel, name)
		srcPath := filepath.Join(src, name)
		dstPath := filepath.Join(dst, name)

		if IsExcluded(name) {
			report.add(entryRel, ActionExcluded, nil)
			continue
		}

		switch mode := entry.Mode(); {
		case mode&os.ModeSymlink != 0:
			if err := c.copyLink(srcPath, dstPath); err != nil {
				c.fail(report, entryRel, err)
				continue
			}
			report.add(entryRel, ActionLinked, nil)
		case mode.IsDir():
			if err := c.storage.MkdirAllMode(dstPath, mode.Perm()|0o700); err != nil {
				c.fail(report, entryRel, fmt.Errorf("create directory: %w", err))
				continue
			}
			c.copyTreeFiltered(srcPath, dstPath, entryRel, report)
		case mode.IsRegular():
			if err := c.storage.CopyFile(srcPath, dstPath); err != nil {
				c.fail(report, entryRel, err)
				continue
			}
			report.add(entryRel, ActionCopied, nil)
		default:
			report.add(entryRel, ActionSkipped, nil)
		}
	}
}

func (c *Copier) fail(report *Report, rel string, err error) {
	c.logger.Warn("skipping entry during copy",
		"path", rel,
		"error", err)
	report.add(rel, ActionFailed, err)
}

// copyLink recreates the symlink at src as dst with the same target string.
func (c *Copier) copyLink(src, dst string) error {
	target, err := c.storage.Readlink(src)
	if err != nil {
		return err
	}
	if err := c.storage.Remove(dst); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return c.storage.Symlink(target, dst)
}

// sourceDir stats src and reports whether it is an existing directory.
func (c *Copier) sourceDir(src string) (os.FileInfo, bool, error) {
	info, err := c.storage.Stat(src)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("stat %s: %w", src, err)
	}
	if !info.IsDir() {
		return nil, false, nil
	}
	return info, true, nil
}
