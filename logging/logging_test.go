package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestComponentLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := Component(New(&buf, slog.LevelDebug), "executor")
	logger.Info("tool invoked", slog.String("tool", "read_file"))

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("expected JSON record, got %q: %v", buf.String(), err)
	}
	if record["component"] != "executor" {
		t.Errorf("expected component attr, got %v", record["component"])
	}
	if record["tool"] != "read_file" {
		t.Errorf("expected tool attr, got %v", record["tool"])
	}
}

func TestParseLevel(t *testing.T) {
	testCases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range testCases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNilWriterDiscards(t *testing.T) {
	logger := New(nil, slog.LevelDebug)
	logger.Info("dropped")
	Component(nil, "x").Info("dropped")
}
