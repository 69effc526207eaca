package extract

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/example/bridle/internal/bridle/domain"
	"github.com/example/bridle/internal/bridle/harness"
	"github.com/example/bridle/internal/bridle/storage"
)

// Extractor builds read-only ProfileInfo summaries. It never writes.
type Extractor struct {
	storage *storage.Storage
	logger  *slog.Logger
}

// New creates an Extractor.
func New(storage *storage.Storage, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Extractor{storage: storage, logger: logger}
}

// Extract summarizes the profile stored at profilePath.
//
// Each step (MCP servers, every resource bundle, theme, model) is isolated: a
// failure leaves that field empty and appends a message to ExtractionErrors.
// Only a missing profile directory fails the call. For the active profile,
// resource bundles are read from the live directory so edits since the last
// switch are visible.
func (e *Extractor) Extract(tool harness.Tool, name domain.ProfileName, profilePath string, active bool) (*domain.ProfileInfo, error) {
	if !e.storage.IsDir(profilePath) {
		return nil, fmt.Errorf("%w: profile %q for %s", domain.ErrNotFound, name, tool.ID())
	}

	info := &domain.ProfileInfo{
		Name:     name.String(),
		ToolID:   tool.ID(),
		IsActive: active,
		Path:     profilePath,
	}
	addErr := func(step string, err error) {
		msg := fmt.Sprintf("%s: %v", step, err)
		info.ExtractionErrors = append(info.ExtractionErrors, msg)
		e.logger.Debug("extraction step failed", "tool", tool.ID(), "profile", name.String(), "step", step, "error", err)
	}

	servers, err := e.mcpServers(tool, profilePath)
	if err != nil {
		addErr("MCP config", err)
	}
	info.MCPServers = servers

	e.resources(tool, profilePath, active, info, addErr)

	layout := tool.Settings()
	if info.Theme, err = e.setting(profilePath, layout.Theme); err != nil {
		addErr("theme", err)
	}
	if info.Model, err = e.setting(profilePath, layout.Model); err != nil {
		addErr("model", err)
	}

	return info, nil
}

func (e *Extractor) mcpServers(tool harness.Tool, profilePath string) ([]domain.MCPServer, error) {
	mcp := tool.MCPConfigPath()
	if mcp == "" {
		return nil, nil
	}
	filename := filepath.Base(mcp)
	content, err := e.readOptional(filepath.Join(profilePath, filename))
	if err != nil || content == nil {
		return nil, err
	}
	return tool.ParseMCPServers(content, filename)
}

func (e *Extractor) resources(tool harness.Tool, profilePath string, active bool, info *domain.ProfileInfo, addErr func(string, error)) {
	bundles, err := harness.EffectiveBundles(tool)
	if err != nil {
		bundles = harness.ConventionalBundles(profilePath)
	}

	liveDir, liveErr := tool.ConfigDir()
	readLive := active && liveErr == nil

	for _, b := range bundles {
		dir := e.bundleDir(b, profilePath, liveDir, liveErr == nil, readLive)
		summary, err := Summarize(e.storage, b, dir)
		if err != nil {
			addErr(b.Name, err)
		}
		info.Resources = append(info.Resources, summary)
	}
}

// bundleDir picks where to read a bundle: the live location for the active
// profile, otherwise the profile's stored copy.
func (e *Extractor) bundleDir(b harness.Bundle, profilePath, liveDir string, hasLive, readLive bool) string {
	if !hasLive {
		return filepath.Join(profilePath, b.Name)
	}
	rel, inside := b.RelativeTo(liveDir)
	switch {
	case readLive && inside:
		return filepath.Join(liveDir, rel)
	case readLive:
		return b.Dir
	default:
		return filepath.Join(profilePath, rel)
	}
}

// setting reads the string at ref from the profile. A missing file or key is
// not an error.
func (e *Extractor) setting(profilePath string, ref harness.KeyRef) (string, error) {
	if ref.IsZero() {
		return "", nil
	}
	content, err := e.readOptional(filepath.Join(profilePath, ref.File))
	if err != nil || content == nil {
		return "", err
	}
	doc, err := harness.DecodeDocument(content, ref.File)
	if err != nil {
		return "", err
	}
	value, _, err := harness.LookupString(doc, ref.Path)
	return value, err
}

// readOptional returns nil content without error when path does not exist.
func (e *Extractor) readOptional(path string) ([]byte, error) {
	content, err := e.storage.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrIO, err)
	}
	return content, nil
}

// Summarize lists the items of bundle b found in dir.
func Summarize(s *storage.Storage, b harness.Bundle, dir string) (domain.ResourceSummary, error) {
	summary := domain.ResourceSummary{Name: b.Name, DirectoryExists: s.IsDir(dir)}
	if !summary.DirectoryExists {
		return summary, nil
	}
	var err error
	switch b.Shape {
	case harness.ShapeSubdirs:
		summary.Items, err = ListSubdirsWithFile(s, dir, b.Marker)
	default:
		pattern := b.Pattern
		if pattern == "" {
			pattern = "*"
		}
		summary.Items, err = ListFilesMatching(s, dir, pattern)
	}
	return summary, err
}

// ListFilesMatching returns the names, without extension, of regular files in
// dir matching the glob pattern, sorted.
func ListFilesMatching(s *storage.Storage, dir, pattern string) ([]string, error) {
	infos, err := s.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read %s: %w", domain.ErrIO, dir, err)
	}

	var items []string
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		ok, err := filepath.Match(pattern, info.Name())
		if err != nil {
			return nil, fmt.Errorf("%w: bad pattern %q: %w", domain.ErrParseFailure, pattern, err)
		}
		if ok {
			items = append(items, strings.TrimSuffix(info.Name(), filepath.Ext(info.Name())))
		}
	}
	sort.Strings(items)
	return items, nil
}

// ListSubdirsWithFile returns the names of subdirectories of dir that contain
// marker, sorted. An empty marker accepts every subdirectory.
func ListSubdirsWithFile(s *storage.Storage, dir, marker string) ([]string, error) {
	infos, err := s.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read %s: %w", domain.ErrIO, dir, err)
	}

	var items []string
	for _, info := range infos {
		if !info.IsDir() {
			continue
		}
		if marker != "" {
			exists, err := s.Exists(filepath.Join(dir, info.Name(), marker))
			if err != nil || !exists {
				continue
			}
		}
		items = append(items, info.Name())
	}
	sort.Strings(items)
	return items, nil
}
