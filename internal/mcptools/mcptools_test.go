package mcptools

import (
	"strings"
	"testing"
)

func toolNames(tools []Tool) []string {
	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name)
	}
	return names
}

func TestInferDatabaseServer(t *testing.T) {
	tools := Infer("postgres-prod")

	want := []string{
		"mcp__postgres_prod__query",
		"mcp__postgres_prod__connect",
		"mcp__postgres_prod__list_tables",
		"mcp__postgres_prod__describe",
		"mcp__postgres_prod__execute",
	}
	got := toolNames(tools)
	if len(got) != len(want) {
		t.Fatalf("Infer returned %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tool[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	for _, tool := range tools {
		if !tool.Inferred {
			t.Fatalf("tool %q not marked inferred", tool.Name)
		}
		if tool.Server != "postgres-prod" {
			t.Fatalf("tool %q attributed to %q", tool.Name, tool.Server)
		}
	}
}

func TestInferFamilies(t *testing.T) {
	cases := []struct {
		server string
		wantOp string
	}{
		{"github helper", "mcp__github_helper__create_issue"},
		{"local-fs", "mcp__local_fs__write"},
		{"web api gateway", "mcp__web_api_gateway__post"},
		{"docker-engine", "mcp__docker_engine__logs"},
		{"code-search", "mcp__code_search__filter"},
	}
	for _, tc := range cases {
		t.Run(tc.server, func(t *testing.T) {
			got := toolNames(Infer(tc.server))
			found := false
			for _, name := range got {
				if name == tc.wantOp {
					found = true
					break
				}
			}
			if !found {
				t.Fatalf("Infer(%q) = %v, missing %q", tc.server, got, tc.wantOp)
			}
		})
	}
}

func TestInferUnknownServerGetsGenericExecute(t *testing.T) {
	tools := Infer("weather")
	if len(tools) != 1 || tools[0].Name != "mcp__weather__execute" {
		t.Fatalf("Infer(weather) = %v", toolNames(tools))
	}
}

func TestInferAllSortsByServerThenName(t *testing.T) {
	tools := InferAll([]string{"zeta", "alpha-db"})
	if len(tools) == 0 {
		t.Fatal("InferAll returned nothing")
	}
	for i := 1; i < len(tools); i++ {
		prev, cur := tools[i-1], tools[i]
		if prev.Server > cur.Server || (prev.Server == cur.Server && prev.Name > cur.Name) {
			t.Fatalf("tools out of order at %d: %+v before %+v", i, prev, cur)
		}
	}
	for _, tool := range tools {
		if !strings.HasPrefix(tool.Name, "mcp__") {
			t.Fatalf("tool %q missing mcp__ prefix", tool.Name)
		}
	}
}
