package tools

import (
	"slices"
	"testing"

	"github.com/m4xw311/scribe/config"
)

type mockServerTool struct {
	MockTool
	server string
}

func (m *mockServerTool) Server() string { return m.server }

func newServerTool(server, name string) *mockServerTool {
	return &mockServerTool{
		MockTool: MockTool{name: name, run: func(map[string]interface{}) (string, error) { return "", nil }},
		server:   server,
	}
}

func TestRegistryBuiltins(t *testing.T) {
	registry := NewToolRegistry(config.Default())
	if !slices.Equal(registry.Names(), []string{"read_file", "list_files", "edit_file"}) {
		t.Errorf("unexpected built-ins %v", registry.Names())
	}
	if _, ok := registry.GetTool("write_file"); ok {
		t.Error("unexpected tool write_file")
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	registry := NewToolRegistry(config.Default())
	if err := registry.Register(&MockTool{name: "read_file"}); err == nil {
		t.Error("expected duplicate registration to fail")
	}
}

func TestGetActiveTools(t *testing.T) {
	registry := NewToolRegistry(config.Default())

	ts, _ := config.Default().GetToolset("default")
	active, err := registry.GetActiveTools(ts)
	if err != nil {
		t.Fatalf("GetActiveTools failed: %v", err)
	}
	var names []string
	for _, tool := range active {
		names = append(names, tool.Name())
	}
	if !slices.Equal(names, config.DefaultTools) {
		t.Errorf("unexpected active tools %v", names)
	}

	_, err = registry.GetActiveTools(&config.Toolset{Name: "bad", Tools: []string{"nope"}})
	if err == nil {
		t.Error("expected unknown tool in toolset to fail")
	}
}

// TestWildcardMCPToolSupport tests the wildcard functionality for MCP tools
func TestWildcardMCPToolSupport(t *testing.T) {
	registry := NewToolRegistry(config.Default())
	for _, tool := range []Tool{
		newServerTool("gopls", "go_definition"),
		newServerTool("gopls", "go_references"),
		newServerTool("other", "other_tool"),
	} {
		if err := registry.Register(tool); err != nil {
			t.Fatal(err)
		}
	}

	active, err := registry.GetActiveTools(&config.Toolset{Name: "test", Tools: []string{"read_file", "gopls.*", "go_definition"}})
	if err != nil {
		t.Fatalf("GetActiveTools failed: %v", err)
	}
	var names []string
	for _, tool := range active {
		names = append(names, tool.Name())
	}
	if !slices.Equal(names, []string{"read_file", "go_definition", "go_references"}) {
		t.Errorf("unexpected active tools %v", names)
	}

	if _, err := registry.GetActiveTools(&config.Toolset{Name: "test", Tools: []string{"missing.*"}}); err == nil {
		t.Error("expected wildcard for unknown server to fail")
	}
}

func TestDefinitionsSchema(t *testing.T) {
	registry := NewToolRegistry(config.Default())
	edit, _ := registry.GetTool("edit_file")
	defs := Definitions([]Tool{edit})
	if len(defs) != 1 || defs[0].Name != "edit_file" {
		t.Fatalf("unexpected definitions %+v", defs)
	}

	schema := defs[0].Parameters.Schema()
	if schema["type"] != "object" {
		t.Errorf("expected object schema, got %v", schema["type"])
	}
	props := schema["properties"].(map[string]any)
	for _, name := range []string{"path", "old_str", "new_str"} {
		prop, ok := props[name].(map[string]any)
		if !ok || prop["type"] != "string" {
			t.Errorf("expected string property %s, got %v", name, props[name])
		}
	}
	if !slices.Equal(schema["required"].([]string), []string{"path", "old_str", "new_str"}) {
		t.Errorf("unexpected required list %v", schema["required"])
	}

	list, _ := registry.GetTool("list_files")
	if _, ok := list.Parameters().Schema()["required"]; ok {
		t.Error("list_files has no required parameters")
	}
}
