package mcp

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/m4xw311/scribe/errors"
	"github.com/m4xw311/scribe/logging"
	"github.com/m4xw311/scribe/tools"
)

// MCPClient manages the connection to a single MCP server subprocess.
type MCPClient struct {
	Name   string
	conn   *mcpsdk.ClientSession
	tools  []*MCPTool
	logger *slog.Logger
}

// NewMCPClient starts the MCP server subprocess and discovers the tools it provides.
func NewMCPClient(ctx context.Context, name, command string, args []string, logger *slog.Logger) (*MCPClient, error) {
	cmd := exec.Command(command, args...)
	cmd.Stderr = os.Stderr
	return connect(ctx, name, &mcpsdk.CommandTransport{Command: cmd}, logger)
}

func connect(ctx context.Context, name string, transport mcpsdk.Transport, logger *slog.Logger) (*MCPClient, error) {
	mcpClient := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "scribe", Version: "v1.0.0"}, nil)
	conn, err := mcpClient.Connect(ctx, transport, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to MCP server '%s'", name)
	}
	client := &MCPClient{
		Name:   name,
		conn:   conn,
		logger: logging.Component(logger, "mcp").With(slog.String("server", name)),
	}

	for t, err := range conn.Tools(ctx, nil) {
		if err != nil {
			conn.Close()
			return nil, errors.Wrapf(err, "failed to list tools from MCP server '%s'", name)
		}
		client.tools = append(client.tools, &MCPTool{
			serverName:  name,
			toolName:    t.Name,
			description: t.Description,
			params:      convertInputSchema(t.InputSchema),
			client:      client,
		})
	}

	client.logger.Info("initialized MCP client", slog.Int("tools", len(client.tools)))
	return client, nil
}

// Tools returns the tools provided by this server in discovery order.
func (c *MCPClient) Tools() []*MCPTool {
	return append([]*MCPTool(nil), c.tools...)
}

// Register adds every tool of this server to the registry.
func (c *MCPClient) Register(r *tools.ToolRegistry) error {
	for _, t := range c.tools {
		if err := r.Register(t); err != nil {
			return errors.Wrapf(err, "cannot register tool from MCP server '%s'", c.Name)
		}
	}
	return nil
}

// Stop closes the session, which terminates the server subprocess.
func (c *MCPClient) Stop() error {
	if c.conn == nil {
		return nil
	}
	c.logger.Info("terminating MCP server")
	return c.conn.Close()
}

// MCPTool represents a tool available from an external MCP server.
type MCPTool struct {
	serverName  string
	toolName    string
	description string
	params      tools.Parameters
	client      *MCPClient
}

var _ tools.ServerTool = (*MCPTool)(nil)

// Name returns the tool's own name. Some gateways reject separators such as
// ':' in function names, so the server name is not part of it.
func (t *MCPTool) Name() string { return t.toolName }

// Server returns the name of the MCP server providing the tool.
func (t *MCPTool) Server() string { return t.serverName }

// Description returns the tool's description, provided by the MCP server.
func (t *MCPTool) Description() string { return t.description }

func (t *MCPTool) Parameters() tools.Parameters { return t.params }

// Execute sends the arguments to the MCP server and returns the text content of the result.
func (t *MCPTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	result, err := t.client.conn.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      t.toolName,
		Arguments: args,
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to call tool '%s'", t.Name())
	}
	var sb strings.Builder
	for _, c := range result.Content {
		if text, ok := c.(*mcpsdk.TextContent); ok {
			sb.WriteString(text.Text)
		}
	}
	if result.IsError {
		return "", errors.New("tool '%s' reported an error: %s", t.Name(), sb.String())
	}
	return sb.String(), nil
}

// convertInputSchema maps an MCP input schema onto tool parameters. Only the
// top-level properties are interpreted; nested schemas pass through as items.
func convertInputSchema(schema any) tools.Parameters {
	params := tools.Parameters{Properties: map[string]tools.Property{}}
	if schema == nil {
		return params
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return params
	}
	var raw struct {
		Properties map[string]struct {
			Type        any    `json:"type"`
			Description string `json:"description"`
			Enum        []any  `json:"enum"`
			Items       any    `json:"items"`
		} `json:"properties"`
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return params
	}

	for name, p := range raw.Properties {
		prop := tools.Property{Description: p.Description, Enum: p.Enum, Items: p.Items}
		switch v := p.Type.(type) {
		case string:
			prop.Type = v
		case []any:
			// Union types collapse to their first named member.
			for _, member := range v {
				if s, ok := member.(string); ok && s != "null" {
					prop.Type = s
					break
				}
			}
		}
		params.Properties[name] = prop
	}
	params.Required = raw.Required
	return params
}
