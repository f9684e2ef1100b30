package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/m4xw311/scribe/config"
)

// Tool defines the interface for any action the agent can take.
type Tool interface {
	Name() string
	Description() string
	Parameters() Parameters
	Execute(ctx context.Context, args map[string]interface{}) (string, error)
}

// Property describes one named tool parameter.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Enum        []any  `json:"enum,omitempty"`
	Items       any    `json:"items,omitempty"`
}

// Parameters is the JSON-schema object advertised for a tool's arguments.
type Parameters struct {
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// Schema renders the parameters as a JSON-schema object.
func (p Parameters) Schema() map[string]any {
	props := make(map[string]any, len(p.Properties))
	for name, prop := range p.Properties {
		props[name] = prop.schema()
	}
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(p.Required) > 0 {
		schema["required"] = append([]string(nil), p.Required...)
	}
	return schema
}

func (p Property) schema() map[string]any {
	m := map[string]any{"type": p.Type}
	if p.Type == "" {
		m["type"] = "string"
	}
	if p.Description != "" {
		m["description"] = p.Description
	}
	if len(p.Enum) > 0 {
		m["enum"] = p.Enum
	}
	if p.Items != nil {
		m["items"] = p.Items
	}
	return m
}

// Definition is what the gateway is told about a tool.
type Definition struct {
	Name        string
	Description string
	Parameters  Parameters
}

// Define returns the advertised definition of t.
func Define(t Tool) Definition {
	return Definition{Name: t.Name(), Description: t.Description(), Parameters: t.Parameters()}
}

// Definitions returns the advertised definitions of ts, in order.
func Definitions(ts []Tool) []Definition {
	defs := make([]Definition, 0, len(ts))
	for _, t := range ts {
		defs = append(defs, Define(t))
	}
	return defs
}

// ServerTool is implemented by tools provided by an external MCP server.
type ServerTool interface {
	Tool
	Server() string
}

// ToolRegistry holds all available tools.
type ToolRegistry struct {
	tools map[string]Tool
	order []string
}

// NewToolRegistry creates a registry holding the built-in filesystem tools.
func NewToolRegistry(cfg *config.Config) *ToolRegistry {
	r := &ToolRegistry{tools: make(map[string]Tool)}

	// Built-in names are distinct, so registration cannot fail here.
	_ = r.Register(&ReadFileTool{fsAccess: &cfg.FilesystemAccess})
	_ = r.Register(&ListFilesTool{fsAccess: &cfg.FilesystemAccess})
	_ = r.Register(&EditFileTool{fsAccess: &cfg.FilesystemAccess})

	return r
}

// Register adds a tool. Tool names are unique across the registry.
func (r *ToolRegistry) Register(t Tool) error {
	if _, exists := r.tools[t.Name()]; exists {
		return fmt.Errorf("tool '%s' is already registered", t.Name())
	}
	r.tools[t.Name()] = t
	r.order = append(r.order, t.Name())
	return nil
}

func (r *ToolRegistry) GetTool(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names lists registered tool names in registration order.
func (r *ToolRegistry) Names() []string {
	return append([]string(nil), r.order...)
}

// GetActiveTools returns the tool instances for a given toolset. An entry of
// the form "<server>.*" selects every tool from that MCP server.
func (r *ToolRegistry) GetActiveTools(ts *config.Toolset) ([]Tool, error) {
	var activeTools []Tool
	seen := make(map[string]bool)
	add := func(t Tool) {
		if !seen[t.Name()] {
			seen[t.Name()] = true
			activeTools = append(activeTools, t)
		}
	}

	for _, toolName := range ts.Tools {
		if server, ok := strings.CutSuffix(toolName, ".*"); ok {
			matched := false
			for _, name := range r.order {
				if st, ok := r.tools[name].(ServerTool); ok && st.Server() == server {
					add(st)
					matched = true
				}
			}
			if !matched {
				return nil, fmt.Errorf("no tools registered for MCP server '%s' in toolset '%s'", server, ts.Name)
			}
			continue
		}

		if t, ok := r.GetTool(toolName); ok {
			add(t)
		} else {
			return nil, fmt.Errorf("tool '%s' from toolset '%s' is not registered", toolName, ts.Name)
		}
	}
	return activeTools, nil
}

// isPathRestricted checks if a path matches any of the glob patterns.
// Patterns are relative to the working directory; a path outside it matches
// when any trailing run of its components does.
func isPathRestricted(path string, patterns []string) (bool, error) {
	candidates := matchCandidates(path)
	for _, pattern := range patterns {
		for _, candidate := range candidates {
			match, err := doublestar.Match(pattern, candidate)
			if err != nil {
				return false, fmt.Errorf("invalid glob pattern '%s': %w", pattern, err)
			}
			if match {
				return true, nil
			}
		}
	}
	return false, nil
}

// matchCandidates returns the working-directory-relative form of path, or
// every component suffix of its absolute form when it lies outside.
func matchCandidates(path string) []string {
	path = filepath.Clean(path)
	wd, err := os.Getwd()
	if err != nil {
		return []string{filepath.ToSlash(path)}
	}
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(wd, abs)
	}
	if rel, err := filepath.Rel(wd, abs); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return []string{filepath.ToSlash(rel)}
	}

	parts := strings.Split(strings.Trim(filepath.ToSlash(abs), "/"), "/")
	candidates := make([]string, 0, len(parts))
	for i := range parts {
		candidates = append(candidates, strings.Join(parts[i:], "/"))
	}
	return candidates
}
