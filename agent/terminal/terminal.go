package terminal

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/m4xw311/scribe/agent"
	"github.com/m4xw311/scribe/session"
)

type styles struct {
	user      lipgloss.Style
	assistant lipgloss.Style
	tool      lipgloss.Style
	warning   lipgloss.Style
}

func newStyles(out io.Writer) styles {
	r := lipgloss.NewRenderer(out)
	return styles{
		user:      r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		assistant: r.NewStyle().Bold(true).Foreground(lipgloss.Color("10")),
		tool:      r.NewStyle().Foreground(lipgloss.Color("11")),
		warning:   r.NewStyle().Foreground(lipgloss.Color("9")),
	}
}

// Terminal handles the terminal/CLI interaction mode for the agent
type Terminal struct {
	agent  *agent.Agent
	lines  *lineReader
	out    io.Writer
	styles styles
}

// New creates a new Terminal reading user lines from in and writing the
// conversation to out.
func New(a *agent.Agent, in io.Reader, out io.Writer) *Terminal {
	return &Terminal{
		agent:  a,
		lines:  newLineReader(in),
		out:    out,
		styles: newStyles(out),
	}
}

// Run starts the interactive terminal session. It returns when input ends,
// the user quits, or ctx is cancelled; the returned error is non-nil only if
// the conversation failed.
func (t *Terminal) Run(ctx context.Context, initialPrompt string) error {
	if initialPrompt != "" {
		fmt.Fprintf(t.out, "%s %s\n", t.styles.user.Render("You:"), initialPrompt)
	}
	defer t.lines.Close()
	return t.agent.Run(ctx, t, initialPrompt, t.callbacks(ctx))
}

// ReadLine prompts for and reads the next user line.
func (t *Terminal) ReadLine(ctx context.Context) (string, error) {
	fmt.Fprintf(t.out, "%s ", t.styles.user.Render("You:"))
	return t.lines.ReadLine(ctx)
}

func (t *Terminal) callbacks(ctx context.Context) agent.ProcessCallbacks {
	return agent.ProcessCallbacks{
		OnAssistantMessage: func(message string) {
			fmt.Fprintf(t.out, "%s %s\n", t.styles.assistant.Render("Assistant:"), message)
		},
		OnToolCall: func(toolCall session.ToolCall) {
			if t.agent.Verbosity != agent.ToolVerbosityNone {
				fmt.Fprintln(t.out, t.styles.tool.Render(describeCall(toolCall)))
			}
		},
		OnToolResult: func(toolCall session.ToolCall, result string) {
			if t.agent.Verbosity == agent.ToolVerbosityAll {
				fmt.Fprintf(t.out, "%s %s\n", t.styles.tool.Render("result:"), result)
			}
		},
		ShouldExecuteTool: func(toolCall session.ToolCall) bool {
			fmt.Fprintf(t.out, "Allow %s? (y/n): ", describeCall(toolCall))
			answer, err := t.lines.ReadLine(ctx)
			if err != nil {
				fmt.Fprintln(t.out)
				return false
			}
			answer = strings.ToLower(strings.TrimSpace(answer))
			return answer == "y" || answer == "yes"
		},
		OnWarning: func(warning string) {
			fmt.Fprintf(t.out, "%s %s\n", t.styles.warning.Render("Warning:"), warning)
		},
	}
}

// describeCall renders the observability line for a tool call.
func describeCall(toolCall session.ToolCall) string {
	return fmt.Sprintf("tool: %s(%s)", toolCall.Name, toolCall.Arguments)
}

type readResult struct {
	line string
	err  error
}

// lineReader reads lines on a background goroutine so a blocked read can be
// abandoned when the context is cancelled. Lines have no length limit.
type lineReader struct {
	results chan readResult
	done    chan struct{}
	once    sync.Once
}

func newLineReader(r io.Reader) *lineReader {
	lr := &lineReader{results: make(chan readResult), done: make(chan struct{})}
	go func() {
		defer close(lr.results)
		br := bufio.NewReader(r)
		for {
			line, err := br.ReadString('\n')
			res := readResult{line: strings.TrimRight(line, "\r\n")}
			if err != nil && line == "" {
				res.err = err
			}
			select {
			case lr.results <- res:
			case <-lr.done:
				return
			}
			if err != nil {
				if line != "" {
					// A final unterminated line is followed by end of input.
					select {
					case lr.results <- readResult{err: err}:
					case <-lr.done:
					}
				}
				return
			}
		}
	}()
	return lr
}

// Close releases the reader goroutine once it is no longer consumed.
func (lr *lineReader) Close() {
	lr.once.Do(func() { close(lr.done) })
}

func (lr *lineReader) ReadLine(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res, ok := <-lr.results:
		if !ok {
			return "", io.EOF
		}
		return res.line, res.err
	}
}
