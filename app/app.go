// Package app wires configuration, logging, tools and the LLM client into
// agents. Both the terminal binary and the websocket bridge start here.
package app

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/m4xw311/scribe/agent"
	"github.com/m4xw311/scribe/config"
	"github.com/m4xw311/scribe/errors"
	"github.com/m4xw311/scribe/llm"
	"github.com/m4xw311/scribe/logging"
	"github.com/m4xw311/scribe/tools"
	"github.com/m4xw311/scribe/tools/mcp"
)

// DefaultTraceFile receives log records when tracing is enabled.
const DefaultTraceFile = "scribe.trace"

// Options are the command-line choices shared by every front end.
type Options struct {
	ConfigPath    string
	Toolset       string
	Mode          string
	ToolVerbosity string
	Trace         bool
	TraceFile     string
}

// App holds everything needed to start conversations.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Client    llm.LLMClient
	Registry  *tools.ToolRegistry
	Mode      agent.Mode
	Verbosity agent.ToolVerbosity

	toolset    string
	mcpClients []*mcp.MCPClient
	closers    []io.Closer
}

// Setup loads configuration and starts the configured MCP servers and LLM
// client. Close must be called once the App is no longer needed.
func Setup(ctx context.Context, opts Options) (*App, error) {
	mode, err := agent.ParseMode(opts.Mode)
	if err != nil {
		return nil, err
	}
	verbosity, err := agent.ParseToolVerbosity(opts.ToolVerbosity)
	if err != nil {
		return nil, err
	}

	var cfg *config.Config
	if opts.ConfigPath != "" {
		cfg, err = config.LoadFile(opts.ConfigPath)
	} else {
		cfg, err = config.LoadConfig()
	}
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:    cfg,
		Logger:    logging.Discard(),
		Mode:      mode,
		Verbosity: verbosity,
		toolset:   opts.Toolset,
	}

	if opts.Trace {
		path := opts.TraceFile
		if path == "" {
			path = DefaultTraceFile
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot open trace file %s", path)
		}
		a.closers = append(a.closers, f)
		a.Logger = logging.New(f, logging.ParseLevel(cfg.LogLevel))
	}

	a.Registry = tools.NewToolRegistry(cfg)
	for _, server := range cfg.AdditionalMCPServers {
		client, err := mcp.NewMCPClient(ctx, server.Name, server.Command, server.Args, a.Logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.mcpClients = append(a.mcpClients, client)
		if err := client.Register(a.Registry); err != nil {
			a.Close()
			return nil, err
		}
	}

	a.Client, err = llm.NewFromConfig(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	if c, ok := a.Client.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}

	a.Logger.Info("scribe started",
		slog.String("llm", cfg.LLMClient),
		slog.String("model", cfg.Model),
		slog.String("mode", string(mode)),
		slog.Int("mcp_servers", len(a.mcpClients)),
	)
	return a, nil
}

// NewAgent starts a fresh conversation over the configured toolset.
func (a *App) NewAgent() (*agent.Agent, error) {
	return agent.New(a.Config, a.Registry, a.toolset, a.Mode, a.Client, a.Verbosity, a.Logger)
}

// Close stops the MCP servers and releases the trace file.
func (a *App) Close() error {
	var firstErr error
	for _, c := range a.mcpClients {
		if err := c.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.mcpClients = nil
	// The trace file is opened first, so close in reverse order.
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil
	return firstErr
}
