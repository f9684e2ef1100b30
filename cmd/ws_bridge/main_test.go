package main

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/m4xw311/scribe/agent"
	"github.com/m4xw311/scribe/app"
	"github.com/m4xw311/scribe/config"
	"github.com/m4xw311/scribe/llm"
	"github.com/m4xw311/scribe/logging"
	"github.com/m4xw311/scribe/session"
	"github.com/m4xw311/scribe/tools"
)

func startBridge(t *testing.T, cfgYAML string, opts app.Options) string {
	t.Helper()
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(cfgYAML), 0644); err != nil {
		t.Fatal(err)
	}
	opts.ConfigPath = path

	application, err := app.Setup(context.Background(), opts)
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	t.Cleanup(func() { application.Close() })

	mux := http.NewServeMux()
	mux.Handle("/ws", newBridge(application))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var f frame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	return f
}

func TestBridgeConversation(t *testing.T) {
	url := startBridge(t, "llm: mock\n", app.Options{})
	conn := dial(t, url)
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte("hello")); err != nil {
		t.Fatal(err)
	}
	f := readFrame(t, conn)
	if f.Type != frameAssistant || f.Data != "I am a mock LLM. You said: 'hello'." {
		t.Errorf("unexpected frame %+v", f)
	}
}

func TestBridgeRefusesSecondConversation(t *testing.T) {
	url := startBridge(t, "llm: mock\n", app.Options{})
	first := dial(t, url)

	// Complete one exchange so the first conversation is known to be running.
	first.WriteMessage(websocket.TextMessage, []byte("hi"))
	readFrame(t, first)

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected the second connection to be refused")
	}
	if resp == nil || resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected HTTP 409, got %v", resp)
	}

	// Once the first client leaves, a new conversation can start.
	first.Close()
	deadline := time.Now().Add(5 * time.Second)
	for {
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err == nil {
			conn.Close()
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("bridge did not accept a new conversation: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestBridgePromptMode(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg := config.Default()
	application := &app.App{
		Config: cfg,
		Logger: logging.Discard(),
		Client: &llm.MockLLMClient{Responses: []session.Turn{
			session.AssistantTurn("", session.ToolCall{ID: "c1", Name: "edit_file", Arguments: `{"path":"a.txt","old_str":"","new_str":"a"}`}),
			session.AssistantTurn("created a.txt"),
		}},
		Registry:  tools.NewToolRegistry(cfg),
		Mode:      agent.ModePrompt,
		Verbosity: agent.ToolVerbosityAll,
	}
	srv := httptest.NewServer(newBridge(application))
	defer srv.Close()

	conn := dial(t, "ws"+strings.TrimPrefix(srv.URL, "http"))
	defer conn.Close()

	conn.WriteMessage(websocket.TextMessage, []byte("make a.txt"))
	f := readFrame(t, conn)
	if f.Type != frameConfirm || !strings.HasPrefix(f.Data, "tool: edit_file(") {
		t.Fatalf("expected a confirmation request, got %+v", f)
	}
	conn.WriteMessage(websocket.TextMessage, []byte("yes"))

	want := []string{frameToolCall, frameToolResult, frameAssistant}
	for _, typ := range want {
		if f := readFrame(t, conn); f.Type != typ {
			t.Fatalf("expected %s frame, got %+v", typ, f)
		}
	}
	if data, err := os.ReadFile("a.txt"); err != nil || string(data) != "a" {
		t.Errorf("approved edit did not run: %q, %v", data, err)
	}
}

func TestSendFailureIsLogged(t *testing.T) {
	var logs bytes.Buffer
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer close(done)
		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		s := newSocket(conn, logging.New(&logs, slog.LevelDebug))
		s.Close()
		s.send(frameAssistant, "too late")
	}))
	defer srv.Close()

	conn := dial(t, "ws"+strings.TrimPrefix(srv.URL, "http"))
	defer conn.Close()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("handler did not finish")
	}
	if !strings.Contains(logs.String(), "failed to send frame") {
		t.Errorf("expected the failed write to be logged, got %q", logs.String())
	}
}
