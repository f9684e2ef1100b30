// Command ws_bridge serves the scribe conversation loop over a websocket.
//
// Every text frame from the client is one user message. Replies are JSON
// frames of the form {"type": "...", "data": "..."}. Only one conversation
// runs at a time; further connections are refused until it ends.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/m4xw311/scribe/agent"
	"github.com/m4xw311/scribe/app"
	"github.com/m4xw311/scribe/logging"
	"github.com/m4xw311/scribe/session"
)

// Frame types sent to the client.
const (
	frameAssistant  = "assistant"
	frameToolCall   = "tool_call"
	frameToolResult = "tool_result"
	frameConfirm    = "confirm"
	frameWarning    = "warning"
	frameError      = "error"
)

type frame struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	flags := flag.NewFlagSet("ws_bridge", flag.ContinueOnError)
	flags.SetOutput(stderr)
	addrFlag := flags.String("addr", ":8080", "Address to listen on")
	modeFlag := flags.String("m", "", "Execution mode: 'auto' or 'prompt' (default 'auto')")
	toolsetFlag := flags.String("t", "", "Toolset to use (defaults to 'default')")
	toolVerbosityFlag := flags.String("tool-verbosity", "", "Tool verbosity level: 'none', 'info', or 'all' (default 'info')")
	traceFlag := flags.Bool("trace", false, "Write execution traces to "+app.DefaultTraceFile)
	configFlag := flags.String("config", "", "Load configuration from this file instead of ~/.scribe and ./.scribe")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.Setup(ctx, app.Options{
		ConfigPath:    *configFlag,
		Toolset:       *toolsetFlag,
		Mode:          *modeFlag,
		ToolVerbosity: *toolVerbosityFlag,
		Trace:         *traceFlag,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error initializing scribe: %v\n", err)
		return 1
	}
	defer application.Close()

	mux := http.NewServeMux()
	mux.Handle("/ws", newBridge(application))
	server := &http.Server{Addr: *addrFlag, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logging.Component(application.Logger, "ws_bridge").Error("shutdown failed", slog.Any("error", err))
		}
	}()

	fmt.Fprintf(stderr, "WebSocket server running on ws://%s/ws\n", displayAddr(*addrFlag))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fmt.Fprintf(stderr, "Server stopped with an error: %v\n", err)
		return 1
	}
	return 0
}

func displayAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}

// bridge runs one conversation per websocket connection, one at a time.
type bridge struct {
	app      *app.App
	busy     sync.Mutex
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func newBridge(a *app.App) *bridge {
	return &bridge{
		app: a,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logging.Component(a.Logger, "ws_bridge"),
	}
}

func (b *bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !b.busy.TryLock() {
		http.Error(w, "a conversation is already in progress", http.StatusConflict)
		return
	}
	defer b.busy.Unlock()

	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Warn("upgrade failed", slog.Any("error", err))
		return
	}
	client := newSocket(conn, b.logger)
	defer client.Close()
	scribeAgent, err := b.app.NewAgent()
	if err != nil {
		client.send(frameError, err.Error())
		return
	}

	b.logger.Info("conversation started", slog.String("remote", r.RemoteAddr))
	if err := scribeAgent.Run(r.Context(), client, "", client.callbacks(r.Context(), scribeAgent)); err != nil {
		client.send(frameError, err.Error())
	}
	b.logger.Info("conversation ended", slog.String("remote", r.RemoteAddr), slog.Int("turns", scribeAgent.Conversation.Len()))
}

type readResult struct {
	line string
	err  error
}

// socket adapts a websocket connection to the agent's input source and
// callbacks. Frames are read on a background goroutine so reads can be
// abandoned on cancellation; all writes happen on the agent's goroutine.
type socket struct {
	conn    *websocket.Conn
	results chan readResult
	done    chan struct{}
	logger  *slog.Logger
}

func newSocket(conn *websocket.Conn, logger *slog.Logger) *socket {
	s := &socket{conn: conn, results: make(chan readResult), done: make(chan struct{}), logger: logger}
	go func() {
		defer close(s.results)
		for {
			res := readResult{}
			_, msg, err := conn.ReadMessage()
			if err != nil {
				// A closed socket ends the conversation like end of input.
				res.err = io.EOF
			} else {
				res.line = string(msg)
			}
			select {
			case s.results <- res:
			case <-s.done:
				return
			}
			if err != nil {
				return
			}
		}
	}()
	return s
}

// Close closes the connection and stops the reader.
func (s *socket) Close() error {
	close(s.done)
	return s.conn.Close()
}

func (s *socket) ReadLine(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res, ok := <-s.results:
		if !ok {
			return "", io.EOF
		}
		return res.line, res.err
	}
}

func (s *socket) send(typ, data string) {
	if err := s.conn.WriteJSON(frame{Type: typ, Data: data}); err != nil {
		s.logger.Warn("failed to send frame", slog.String("type", typ), slog.Any("error", err))
	}
}

func (s *socket) callbacks(ctx context.Context, a *agent.Agent) agent.ProcessCallbacks {
	return agent.ProcessCallbacks{
		OnAssistantMessage: func(message string) {
			s.send(frameAssistant, message)
		},
		OnToolCall: func(toolCall session.ToolCall) {
			if a.Verbosity != agent.ToolVerbosityNone {
				s.send(frameToolCall, fmt.Sprintf("tool: %s(%s)", toolCall.Name, toolCall.Arguments))
			}
		},
		OnToolResult: func(toolCall session.ToolCall, result string) {
			if a.Verbosity == agent.ToolVerbosityAll {
				s.send(frameToolResult, result)
			}
		},
		ShouldExecuteTool: func(toolCall session.ToolCall) bool {
			s.send(frameConfirm, fmt.Sprintf("tool: %s(%s)", toolCall.Name, toolCall.Arguments))
			answer, err := s.ReadLine(ctx)
			if err != nil {
				return false
			}
			answer = strings.ToLower(strings.TrimSpace(answer))
			return answer == "y" || answer == "yes"
		},
		OnWarning: func(warning string) {
			s.send(frameWarning, warning)
		},
	}
}
