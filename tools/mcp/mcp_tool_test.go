package mcp

import (
	"context"
	"strings"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/m4xw311/scribe/config"
	"github.com/m4xw311/scribe/tools"
)

type shoutInput struct {
	Text string `json:"text" jsonschema:"text to shout"`
}

func startServer(t *testing.T) *MCPClient {
	t.Helper()
	ctx := context.Background()
	server := mcpsdk.NewServer(&mcpsdk.Implementation{Name: "shouter", Version: "v0.0.1"}, nil)
	mcpsdk.AddTool(server, &mcpsdk.Tool{Name: "shout", Description: "Upper-cases text"},
		func(ctx context.Context, req *mcpsdk.CallToolRequest, in shoutInput) (*mcpsdk.CallToolResult, any, error) {
			return &mcpsdk.CallToolResult{
				Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: strings.ToUpper(in.Text)}},
			}, nil, nil
		})

	clientTransport, serverTransport := mcpsdk.NewInMemoryTransports()
	if _, err := server.Connect(ctx, serverTransport, nil); err != nil {
		t.Fatalf("server connect: %v", err)
	}
	client, err := connect(ctx, "shouter", clientTransport, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { client.Stop() })
	return client
}

func TestMCPToolDiscoveryAndCall(t *testing.T) {
	client := startServer(t)

	discovered := client.Tools()
	if len(discovered) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(discovered))
	}
	tool := discovered[0]
	if tool.Name() != "shout" || tool.Server() != "shouter" {
		t.Errorf("unexpected tool identity %s/%s", tool.Server(), tool.Name())
	}

	params := tool.Parameters()
	if params.Properties["text"].Type != "string" {
		t.Errorf("expected string property, got %+v", params.Properties)
	}
	if len(params.Required) != 1 || params.Required[0] != "text" {
		t.Errorf("expected text to be required, got %v", params.Required)
	}

	out, err := tool.Execute(context.Background(), map[string]interface{}{"text": "hello"})
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if out != "HELLO" {
		t.Errorf("expected HELLO, got %q", out)
	}
}

func TestMCPToolsRegisterUnderWildcard(t *testing.T) {
	client := startServer(t)
	registry := tools.NewToolRegistry(config.Default())
	if err := client.Register(registry); err != nil {
		t.Fatalf("register: %v", err)
	}

	active, err := registry.GetActiveTools(&config.Toolset{Name: "mcp", Tools: []string{"shouter.*"}})
	if err != nil {
		t.Fatalf("GetActiveTools: %v", err)
	}
	if len(active) != 1 || active[0].Name() != "shout" {
		t.Errorf("unexpected active tools %v", active)
	}
}

func TestConvertInputSchema(t *testing.T) {
	params := convertInputSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"count": map[string]any{"type": []any{"null", "integer"}, "description": "how many"},
			"mode":  map[string]any{"type": "string", "enum": []any{"a", "b"}},
		},
		"required": []any{"mode"},
	})
	if params.Properties["count"].Type != "integer" {
		t.Errorf("expected integer, got %q", params.Properties["count"].Type)
	}
	if len(params.Properties["mode"].Enum) != 2 {
		t.Errorf("expected enum to survive, got %v", params.Properties["mode"].Enum)
	}
	if len(params.Required) != 1 || params.Required[0] != "mode" {
		t.Errorf("unexpected required %v", params.Required)
	}

	if got := convertInputSchema(nil); len(got.Properties) != 0 {
		t.Errorf("expected empty parameters, got %+v", got)
	}
}
