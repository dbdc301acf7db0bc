// Package mcptools infers the tool surface an MCP server is likely to
// advertise when the server cannot be queried directly.
package mcptools

import (
	"fmt"
	"sort"
	"strings"
)

// Tool is one tool slug attributed to a server.
type Tool struct {
	Name     string
	Server   string
	Inferred bool
}

// family maps server-name substrings to the operations that class of
// server typically exposes.
type family struct {
	keywords []string
	ops      []string
}

var families = []family{
	{
		keywords: []string{"postgres", "postgresql", "db"},
		ops:      []string{"query", "connect", "list_tables", "describe", "execute"},
	},
	{
		keywords: []string{"git", "github", "version"},
		ops:      []string{"status", "commit", "push", "pull", "branch", "create_issue"},
	},
	{
		keywords: []string{"fs", "file", "storage"},
		ops:      []string{"read", "write", "delete", "list", "search"},
	},
	{
		keywords: []string{"http", "web", "api"},
		ops:      []string{"get", "post", "put", "delete", "list"},
	},
	{
		keywords: []string{"docker", "container"},
		ops:      []string{"run", "stop", "list", "logs", "build"},
	},
	{
		keywords: []string{"search", "find"},
		ops:      []string{"search", "filter", "sort", "group"},
	},
}

// Infer returns the likely tool slugs for a server, derived from its
// name. Unknown server types get a single generic execute tool.
func Infer(serverName string) []Tool {
	slug := Slug(serverName)
	lower := strings.ToLower(serverName)

	for _, f := range families {
		for _, kw := range f.keywords {
			if strings.Contains(lower, kw) {
				return buildTools(serverName, slug, f.ops)
			}
		}
	}
	return buildTools(serverName, slug, []string{"execute"})
}

// InferAll infers tools for each named server, sorted by tool name.
func InferAll(serverNames []string) []Tool {
	var tools []Tool
	for _, name := range serverNames {
		tools = append(tools, Infer(name)...)
	}
	sort.Slice(tools, func(i, j int) bool {
		if tools[i].Server != tools[j].Server {
			return tools[i].Server < tools[j].Server
		}
		return tools[i].Name < tools[j].Name
	})
	return tools
}

// Slug normalizes a server name for use inside a tool slug.
func Slug(serverName string) string {
	slug := strings.ReplaceAll(serverName, " ", "_")
	return strings.ReplaceAll(slug, "-", "_")
}

func buildTools(server, slug string, ops []string) []Tool {
	tools := make([]Tool, 0, len(ops))
	for _, op := range ops {
		tools = append(tools, Tool{
			Name:     fmt.Sprintf("mcp__%s__%s", slug, op),
			Server:   server,
			Inferred: true,
		})
	}
	return tools
}
