package agent

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/m4xw311/scribe/config"
	"github.com/m4xw311/scribe/errors"
	"github.com/m4xw311/scribe/llm"
	"github.com/m4xw311/scribe/logging"
	"github.com/m4xw311/scribe/session"
	"github.com/m4xw311/scribe/tools"
)

type Mode string

const (
	ModeAuto   Mode = "auto"
	ModePrompt Mode = "prompt"
)

// ParseMode validates a mode name. An empty name selects ModeAuto.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeAuto:
		return ModeAuto, nil
	case ModePrompt:
		return ModePrompt, nil
	default:
		return "", fmt.Errorf("invalid mode '%s': must be 'auto' or 'prompt'", s)
	}
}

type ToolVerbosity string

const (
	ToolVerbosityNone ToolVerbosity = "none"
	ToolVerbosityInfo ToolVerbosity = "info"
	ToolVerbosityAll  ToolVerbosity = "all"
)

// ParseToolVerbosity validates a verbosity name. An empty name selects
// ToolVerbosityInfo.
func ParseToolVerbosity(s string) (ToolVerbosity, error) {
	switch ToolVerbosity(s) {
	case "", ToolVerbosityInfo:
		return ToolVerbosityInfo, nil
	case ToolVerbosityNone:
		return ToolVerbosityNone, nil
	case ToolVerbosityAll:
		return ToolVerbosityAll, nil
	default:
		return "", fmt.Errorf("invalid tool verbosity '%s': must be 'none', 'info', or 'all'", s)
	}
}

// State is the position of the agent in its conversation loop.
type State int

const (
	StateAwaitingUserInput State = iota
	StateAwaitingInference
	StateAwaitingToolExecution
	StateAwaitingFinalInference
	StatePresenting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAwaitingUserInput:
		return "awaiting user input"
	case StateAwaitingInference:
		return "awaiting inference"
	case StateAwaitingToolExecution:
		return "awaiting tool execution"
	case StateAwaitingFinalInference:
		return "awaiting final inference"
	case StatePresenting:
		return "presenting"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

const (
	// DeniedResult answers a tool call the user refused in prompt mode.
	DeniedResult = tools.ErrorPrefix + "tool call denied by user"
	// NotExecutedResult answers tool calls requested after the tool round of
	// a user turn has already been spent.
	NotExecutedResult = tools.ErrorPrefix + "tool call not executed: only one round of tool calls is allowed per user message"
)

// ProcessCallbacks lets a front end observe and steer one round of the loop.
// Every callback is optional.
type ProcessCallbacks struct {
	// OnAssistantMessage receives the text presented to the user.
	OnAssistantMessage func(message string)
	// OnToolCall is called right before a registered tool runs.
	OnToolCall func(toolCall session.ToolCall)
	// OnToolResult receives the result recorded for every tool call.
	OnToolResult func(toolCall session.ToolCall, result string)
	// ShouldExecuteTool is consulted in prompt mode before each call.
	ShouldExecuteTool func(toolCall session.ToolCall) bool
	OnWarning         func(warning string)
}

// InputSource delivers user lines to the loop. ReadLine blocks until a line
// is available and returns io.EOF once input is exhausted.
type InputSource interface {
	ReadLine(ctx context.Context) (string, error)
}

type Agent struct {
	Config         *config.Config
	Conversation   *session.Conversation
	LLMClient      llm.LLMClient
	AvailableTools []tools.Tool
	Mode           Mode
	Verbosity      ToolVerbosity

	definitions []tools.Definition
	executor    *tools.Executor
	state       State
	logger      *slog.Logger
}

// New creates an agent advertising the tools of the named toolset. If
// registry is nil, only the built-in tools are available.
func New(cfg *config.Config, registry *tools.ToolRegistry, toolset string, mode Mode, client llm.LLMClient, verbosity ToolVerbosity, logger *slog.Logger) (*Agent, error) {
	ts, err := cfg.GetToolset(toolset)
	if err != nil {
		return nil, err
	}

	if registry == nil {
		registry = tools.NewToolRegistry(cfg)
	}
	activeTools, err := registry.GetActiveTools(ts)
	if err != nil {
		return nil, err
	}

	return &Agent{
		Config:         cfg,
		Conversation:   session.NewConversation(),
		LLMClient:      client,
		AvailableTools: activeTools,
		Mode:           mode,
		Verbosity:      verbosity,
		definitions:    tools.Definitions(activeTools),
		executor:       tools.NewExecutor(activeTools, logger),
		state:          StateAwaitingUserInput,
		logger:         logging.Component(logger, "agent"),
	}, nil
}

// State returns the current loop state.
func (a *Agent) State() State {
	return a.state
}

func (a *Agent) setState(s State) {
	if a.state != s {
		a.logger.Debug("state change", slog.String("from", a.state.String()), slog.String("to", s.String()))
	}
	a.state = s
}

// Run drives the conversation until input ends, the context is cancelled, the
// user quits, or the gateway fails. Only a gateway failure is returned.
func (a *Agent) Run(ctx context.Context, in InputSource, initialPrompt string, callbacks ProcessCallbacks) error {
	if initialPrompt = strings.TrimSpace(initialPrompt); initialPrompt != "" {
		if err := a.ProcessUserInput(ctx, initialPrompt, callbacks); err != nil {
			return a.close(ctx, err)
		}
	}

	for {
		a.setState(StateAwaitingUserInput)
		line, err := in.ReadLine(ctx)
		if err != nil {
			if stderrors.Is(err, io.EOF) {
				return a.close(ctx, nil)
			}
			return a.close(ctx, err)
		}

		userInput := strings.TrimSpace(line)
		if userInput == "" {
			continue
		}
		if userInput == "/quit" || userInput == "/exit" {
			return a.close(ctx, nil)
		}

		if err := a.ProcessUserInput(ctx, userInput, callbacks); err != nil {
			return a.close(ctx, err)
		}
	}
}

// close moves the agent to StateClosed. Errors caused by cancellation are an
// orderly shutdown, not a failure.
func (a *Agent) close(ctx context.Context, err error) error {
	a.setState(StateClosed)
	if err != nil && ctx.Err() != nil {
		a.logger.Info("conversation interrupted", slog.Any("error", err))
		return nil
	}
	if err != nil {
		a.logger.Error("conversation failed", slog.Any("error", err))
		return err
	}
	a.logger.Info("conversation closed", slog.Int("turns", a.Conversation.Len()))
	return nil
}

// ProcessUserInput runs one round of the loop for a user message: infer,
// execute the requested tools once, infer again, and present the answer.
func (a *Agent) ProcessUserInput(ctx context.Context, userInput string, callbacks ProcessCallbacks) error {
	if err := a.Conversation.Append(session.UserTurn(userInput)); err != nil {
		return errors.Wrapf(err, "cannot record user message")
	}

	a.setState(StateAwaitingInference)
	reply, err := a.infer(ctx)
	if err != nil {
		return err
	}

	if len(reply.ToolCalls) > 0 {
		a.setState(StateAwaitingToolExecution)
		for _, call := range reply.ToolCalls {
			result := a.executeTool(ctx, call, callbacks)
			if err := a.Conversation.Append(session.ToolTurn(call.ID, result)); err != nil {
				return errors.Wrapf(err, "cannot record result of tool '%s'", call.Name)
			}
			if callbacks.OnToolResult != nil {
				callbacks.OnToolResult(call, result)
			}
		}

		a.setState(StateAwaitingFinalInference)
		reply, err = a.infer(ctx)
		if err != nil {
			return err
		}

		// Calls in the follow-up reply stay in the history but are answered
		// without running, so the next request is well formed.
		for _, call := range reply.ToolCalls {
			a.logger.Warn("tool call not executed", slog.String("tool", call.Name), slog.String("id", call.ID))
			if err := a.Conversation.Append(session.ToolTurn(call.ID, NotExecutedResult)); err != nil {
				return errors.Wrapf(err, "cannot record skipped tool call '%s'", call.Name)
			}
			if callbacks.OnWarning != nil {
				callbacks.OnWarning(fmt.Sprintf("tool call '%s' was not executed", call.Name))
			}
		}
	}

	a.setState(StatePresenting)
	if callbacks.OnAssistantMessage != nil {
		callbacks.OnAssistantMessage(reply.Content)
	}
	a.setState(StateAwaitingUserInput)
	return nil
}

// infer queries the gateway with the whole history and records its reply
// verbatim.
func (a *Agent) infer(ctx context.Context) (*session.Turn, error) {
	reply, err := a.LLMClient.Chat(ctx, a.Conversation.Turns(), a.definitions)
	if err != nil {
		if errors.KindOf(err) != errors.KindTransport {
			err = errors.Wrapk(err, errors.KindTransport, "LLM chat failed")
		}
		return nil, err
	}
	reply.Role = session.RoleAssistant
	if err := a.Conversation.Append(*reply); err != nil {
		return nil, errors.Wrapf(err, "cannot record assistant reply")
	}
	a.logger.Info("assistant replied", slog.Int("tool_calls", len(reply.ToolCalls)))
	return reply, nil
}

func (a *Agent) executeTool(ctx context.Context, call session.ToolCall, callbacks ProcessCallbacks) string {
	if a.Mode == ModePrompt && callbacks.ShouldExecuteTool != nil && !callbacks.ShouldExecuteTool(call) {
		a.logger.Info("tool call denied", slog.String("tool", call.Name), slog.String("id", call.ID))
		return DeniedResult
	}
	return a.executor.Execute(ctx, call, callbacks.OnToolCall)
}
