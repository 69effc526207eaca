package harness

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/example/bridle/internal/bridle/domain"
)

// DecodeDocument parses a JSON or YAML configuration file into a generic map.
// The format is chosen from the filename extension; anything not .yaml/.yml is JSON.
func DecodeDocument(content []byte, filename string) (map[string]any, error) {
	var doc map[string]any
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(content, &doc); err != nil {
			return nil, fmt.Errorf("%w: parsing %s: %w", domain.ErrParseFailure, filename, err)
		}
	default:
		if err := json.Unmarshal(content, &doc); err != nil {
			return nil, fmt.Errorf("%w: parsing %s: %w", domain.ErrParseFailure, filename, err)
		}
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return doc, nil
}

// Lookup walks a key path through nested maps.
func Lookup(doc map[string]any, path []string) (any, bool) {
	var current any = doc
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// LookupString returns the string at path. A missing key is ("", false, nil);
// a present key holding a non-string is an error.
func LookupString(doc map[string]any, path []string) (string, bool, error) {
	v, ok := Lookup(doc, path)
	if !ok || v == nil {
		return "", false, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", false, fmt.Errorf("%w: %s is %T, not a string", domain.ErrParseFailure, strings.Join(path, "."), v)
	}
	return s, true, nil
}

// serverTable extracts the named server map under key, sorted by name.
// enabled decides the flag for each entry.
func serverTable(doc map[string]any, key string, include func(map[string]any) bool, enabled func(map[string]any) bool) ([]domain.MCPServer, error) {
	raw, ok := doc[key]
	if !ok || raw == nil {
		return nil, nil
	}
	table, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %q is %T, not a mapping", domain.ErrParseFailure, key, raw)
	}

	servers := make([]domain.MCPServer, 0, len(table))
	for name, value := range table {
		entry, ok := value.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: server %q is %T, not a mapping", domain.ErrParseFailure, name, value)
		}
		if include != nil && !include(entry) {
			continue
		}
		servers = append(servers, domain.MCPServer{Name: name, Enabled: enabled(entry)})
	}
	sort.Slice(servers, func(i, j int) bool { return servers[i].Name < servers[j].Name })
	return servers, nil
}

func boolField(entry map[string]any, key string, fallback bool) bool {
	if v, ok := entry[key].(bool); ok {
		return v
	}
	return fallback
}

// ParseClaudeMCP reads the "mcpServers" table; entries are enabled unless "disabled": true.
func ParseClaudeMCP(content []byte, filename string) ([]domain.MCPServer, error) {
	doc, err := DecodeDocument(content, filename)
	if err != nil {
		return nil, err
	}
	return serverTable(doc, "mcpServers", nil, func(e map[string]any) bool {
		return !boolField(e, "disabled", false)
	})
}

// ParseOpenCodeMCP reads the "mcp" table; "enabled" defaults to true.
func ParseOpenCodeMCP(content []byte, filename string) ([]domain.MCPServer, error) {
	doc, err := DecodeDocument(content, filename)
	if err != nil {
		return nil, err
	}
	return serverTable(doc, "mcp", nil, func(e map[string]any) bool {
		return boolField(e, "enabled", true)
	})
}

// gooseMCPTypes are the extension types that are MCP servers. Goose's builtin
// and platform extensions are internal and not listed.
var gooseMCPTypes = map[string]struct{}{
	"stdio":           {},
	"sse":             {},
	"http":            {},
	"streamable_http": {},
}

// ParseGooseMCP reads the "extensions" table of config.yaml.
func ParseGooseMCP(content []byte, filename string) ([]domain.MCPServer, error) {
	doc, err := DecodeDocument(content, filename)
	if err != nil {
		return nil, err
	}
	isMCP := func(e map[string]any) bool {
		t, _ := e["type"].(string)
		_, ok := gooseMCPTypes[t]
		return ok
	}
	return serverTable(doc, "extensions", isMCP, func(e map[string]any) bool {
		return boolField(e, "enabled", true)
	})
}
