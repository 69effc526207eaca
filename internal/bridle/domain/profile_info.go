package domain

// MCPServer is a named MCP server entry found in a tool's MCP configuration.
type MCPServer struct {
	Name    string
	Enabled bool
}

// ResourceSummary lists the items of one resource bundle (agents, commands, skills...).
type ResourceSummary struct {
	Name            string
	DirectoryExists bool
	Items           []string
}

// ProfileInfo is a read-only summary of a stored profile for display.
type ProfileInfo struct {
	Name             string
	ToolID           string
	IsActive         bool
	Path             string
	MCPServers       []MCPServer
	Resources        []ResourceSummary
	Theme            string
	Model            string
	ExtractionErrors []string
}

// Resource returns the summary for the named bundle, if present.
func (p *ProfileInfo) Resource(name string) (ResourceSummary, bool) {
	for _, r := range p.Resources {
		if r.Name == name {
			return r, true
		}
	}
	return ResourceSummary{}, false
}
