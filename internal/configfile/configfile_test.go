package configfile

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.StoriesDir != ".sdlc-workflow/stories" {
		t.Errorf("StoriesDir = %q, want .sdlc-workflow/stories", cfg.StoriesDir)
	}
	if cfg.TasksDir != ".claude/tasks" {
		t.Errorf("TasksDir = %q, want .claude/tasks", cfg.TasksDir)
	}
	if cfg.IndexFile != ".sdlc-workflow/.index/sdlc-index.json" {
		t.Errorf("IndexFile = %q, want .sdlc-workflow/.index/sdlc-index.json", cfg.IndexFile)
	}
	if cfg.IndexDB != "" {
		t.Errorf("IndexDB = %q, want empty", cfg.IndexDB)
	}
}

func TestLoadSaveRoundtrip(t *testing.T) {
	tmpDir := t.TempDir()
	workflowDir := filepath.Join(tmpDir, ".sdlc-workflow")

	cfg := DefaultConfig()
	cfg.IndexDB = ".sdlc-workflow/.index/sdlc-index.db"

	if err := cfg.Save(workflowDir); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	loaded, err := Load(workflowDir)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("Load() returned nil config")
	}
	if *loaded != *cfg {
		t.Errorf("Load() = %+v, want %+v", *loaded, *cfg)
	}
}

func TestLoadNonexistent(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load() returned error for nonexistent layout: %v", err)
	}
	if cfg != nil {
		t.Errorf("Load() = %+v, want nil", cfg)
	}
}

func TestLoadPartialFillsDefaults(t *testing.T) {
	workflowDir := t.TempDir()
	if err := os.WriteFile(ConfigPath(workflowDir), []byte(`{"stories_dir": "docs/stories"}`), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(workflowDir)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.StoriesDir != "docs/stories" {
		t.Errorf("StoriesDir = %q, want docs/stories", cfg.StoriesDir)
	}
	if cfg.TasksDir != DefaultTasksDir {
		t.Errorf("TasksDir = %q, want default", cfg.TasksDir)
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	workflowDir := t.TempDir()
	if err := os.WriteFile(ConfigPath(workflowDir), []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(workflowDir); err == nil {
		t.Error("Load() succeeded on invalid JSON, want error")
	}
}

func TestPathResolution(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "work", "project")
	cfg := DefaultConfig()

	if got, want := cfg.StoriesPath(root), filepath.Join(root, ".sdlc-workflow", "stories"); got != want {
		t.Errorf("StoriesPath() = %q, want %q", got, want)
	}
	if got, want := cfg.TasksPath(root), filepath.Join(root, ".claude", "tasks"); got != want {
		t.Errorf("TasksPath() = %q, want %q", got, want)
	}
	if got := cfg.DatabasePath(root); got != "" {
		t.Errorf("DatabasePath() = %q, want empty when disabled", got)
	}

	abs := filepath.Join(string(filepath.Separator), "var", "index.json")
	cfg.IndexFile = abs
	if got := cfg.IndexPath(root); got != abs {
		t.Errorf("IndexPath() = %q, want absolute path kept", got)
	}
}
