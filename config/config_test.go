package config

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `
llm: openai
model: gpt-4o
toolsets:
  - name: readonly
    tools: [read_file, list_files]
filesystem_access:
  read_only: ["vendor/**"]
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.LLMClient != "openai" || cfg.Model != "gpt-4o" {
		t.Errorf("unexpected client/model %q/%q", cfg.LLMClient, cfg.Model)
	}
	if cfg.MaxTokens != 4096 {
		t.Errorf("expected default max tokens, got %d", cfg.MaxTokens)
	}
	if !slices.Contains(cfg.FilesystemAccess.ReadOnly, "vendor/**") {
		t.Errorf("read_only not loaded: %v", cfg.FilesystemAccess.ReadOnly)
	}
}

func TestLoadConfigProjectOverride(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	project := t.TempDir()
	t.Chdir(project)

	write := func(root, body string) {
		dir := filepath.Join(root, DirName)
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
	}
	write(home, "llm: anthropic\nmodel: user-model\n")
	write(project, "model: project-model\n")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.LLMClient != "anthropic" {
		t.Errorf("expected user-level llm, got %q", cfg.LLMClient)
	}
	if cfg.Model != "project-model" {
		t.Errorf("expected project-level model, got %q", cfg.Model)
	}
}

func TestDefaultHidesConfigDir(t *testing.T) {
	cfg := Default()
	if !slices.Contains(cfg.FilesystemAccess.Hidden, DirName+"/**") {
		t.Errorf("expected %s to be hidden, got %v", DirName, cfg.FilesystemAccess.Hidden)
	}
}

func TestConfiguredHiddenKeepsConfigDir(t *testing.T) {
	content := "filesystem_access:\n  hidden: [\"secret/**\"]\n"

	t.Run("LoadFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		cfg, err := LoadFile(path)
		if err != nil {
			t.Fatalf("LoadFile failed: %v", err)
		}
		want := []string{"secret/**", DirName, DirName + "/**"}
		if !slices.Equal(cfg.FilesystemAccess.Hidden, want) {
			t.Errorf("expected hidden %v, got %v", want, cfg.FilesystemAccess.Hidden)
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		t.Setenv("HOME", t.TempDir())
		project := t.TempDir()
		t.Chdir(project)
		if err := os.MkdirAll(filepath.Join(project, DirName), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(project, DirName, "config.yaml"), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		cfg, err := LoadConfig()
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		for _, pattern := range []string{"secret/**", DirName, DirName + "/**"} {
			if !slices.Contains(cfg.FilesystemAccess.Hidden, pattern) {
				t.Errorf("expected %q to be hidden, got %v", pattern, cfg.FilesystemAccess.Hidden)
			}
		}
	})
}

func TestGetToolset(t *testing.T) {
	cfg := &Config{
		Toolsets: []Toolset{
			{Name: "readonly", Tools: []string{"read_file"}},
		},
	}

	ts, err := cfg.GetToolset("readonly")
	if err != nil || ts.Name != "readonly" {
		t.Fatalf("expected readonly toolset, got %+v, %v", ts, err)
	}

	ts, err = cfg.GetToolset("missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts.Name != "default" || !slices.Equal(ts.Tools, DefaultTools) {
		t.Errorf("expected built-in default toolset, got %+v", ts)
	}

	cfg.Toolsets = append(cfg.Toolsets, Toolset{Name: "default", Tools: []string{"list_files"}})
	ts, _ = cfg.GetToolset("")
	if !slices.Equal(ts.Tools, []string{"list_files"}) {
		t.Errorf("expected configured default toolset, got %+v", ts)
	}
}
