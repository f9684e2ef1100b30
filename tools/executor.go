package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/m4xw311/scribe/errors"
	"github.com/m4xw311/scribe/logging"
	"github.com/m4xw311/scribe/session"
)

// ErrorPrefix starts every failed tool result.
const ErrorPrefix = "Error: "

// Executor runs tool calls against a fixed set of tools. It never fails:
// every outcome, including unknown tools, undecodable arguments and handler
// panics, comes back as result text for the model to read.
type Executor struct {
	tools  map[string]Tool
	logger *slog.Logger
}

// NewExecutor creates an executor dispatching over ts.
func NewExecutor(ts []Tool, logger *slog.Logger) *Executor {
	e := &Executor{
		tools:  make(map[string]Tool, len(ts)),
		logger: logging.Component(logger, "executor"),
	}
	for _, t := range ts {
		e.tools[t.Name()] = t
	}
	return e
}

// Execute runs call and returns its result text. notify, if set, is called
// once the tool is found and before it runs.
func (e *Executor) Execute(ctx context.Context, call session.ToolCall, notify func(session.ToolCall)) string {
	tool, ok := e.tools[call.Name]
	if !ok {
		err := errors.Newk(errors.KindToolNotRegistered, "tool '%s' not found", call.Name)
		e.logger.Warn("unknown tool requested", slog.String("tool", call.Name), slog.String("id", call.ID))
		return ErrorResult(err)
	}

	e.logger.Info("invoking tool", slog.String("tool", call.Name), slog.String("id", call.ID), slog.String("args", call.Arguments))
	if notify != nil {
		notify(call)
	}

	result, err := e.invoke(ctx, tool, call)
	if err != nil {
		e.logger.Warn("tool failed", slog.String("tool", call.Name), slog.String("kind", errors.KindOf(err).String()), slog.Any("error", err))
		return ErrorResult(err)
	}
	return result
}

func (e *Executor) invoke(ctx context.Context, tool Tool, call session.ToolCall) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool '%s' panicked: %v", call.Name, r)
		}
	}()

	args, err := call.DecodeArguments()
	if err != nil {
		return "", errors.Wrapk(err, errors.KindMalformedArguments, "invalid arguments for tool '%s'", call.Name)
	}
	if err := checkRequired(tool.Parameters(), args); err != nil {
		return "", err
	}
	return tool.Execute(ctx, args)
}

// ErrorResult renders err as a tool result.
func ErrorResult(err error) string {
	return ErrorPrefix + err.Error()
}
