package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunWithMockClient(t *testing.T) {
	t.Chdir(t.TempDir())
	cfgPath := writeConfig(t, "llm: mock\n")

	var stdout, stderr bytes.Buffer
	code := run([]string{"-config", cfgPath, "hello", "there"}, strings.NewReader("second\n/exit\n"), &stdout, &stderr)
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d (stderr: %s)", code, stderr.String())
	}

	out := stdout.String()
	for _, want := range []string{
		"scribe is ready.",
		"You said: 'hello there'.",
		"You said: 'second'.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRunRejectsBadFlags(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"-no-such-flag"}, strings.NewReader(""), &stdout, &stderr); code != 2 {
		t.Errorf("expected exit code 2 for an unknown flag, got %d", code)
	}

	cfgPath := writeConfig(t, "llm: mock\n")
	stderr.Reset()
	if code := run([]string{"-config", cfgPath, "-m", "whenever"}, strings.NewReader(""), &stdout, &stderr); code != 1 {
		t.Errorf("expected exit code 1 for an invalid mode, got %d", code)
	}
	if !strings.Contains(stderr.String(), "invalid mode") {
		t.Errorf("expected an invalid mode message, got %q", stderr.String())
	}
}

func TestRunWritesTrace(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	cfgPath := writeConfig(t, "llm: mock\n")

	var stdout, stderr bytes.Buffer
	if code := run([]string{"-config", cfgPath, "-trace"}, strings.NewReader("hi\n"), &stdout, &stderr); code != 0 {
		t.Fatalf("expected exit code 0, got %d (stderr: %s)", code, stderr.String())
	}
	data, err := os.ReadFile(filepath.Join(dir, "scribe.trace"))
	if err != nil {
		t.Fatalf("trace file missing: %v", err)
	}
	if !strings.Contains(string(data), `"component":"agent"`) {
		t.Errorf("expected agent records in trace:\n%s", data)
	}
}
