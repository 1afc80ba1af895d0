package index

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/sdlc-workflow/sdlc/internal/types"
)

func sampleSnapshot() *types.Snapshot {
	story := types.NewStory("US-001")
	story.Title = "Login"
	story.Tasks = []string{"TASK-001"}
	task := types.NewTask("TASK-001")
	task.Story = "US-001"
	return &types.Snapshot{
		Metadata: types.Metadata{
			Generated:     time.Date(2025, 11, 7, 8, 0, 0, 0, time.UTC),
			SchemaVersion: types.SchemaVersion,
			TotalStories:  1,
			TotalTasks:    1,
		},
		Stories: map[string]*types.StoryRecord{"US-001": story},
		Tasks:   map[string]*types.TaskRecord{"TASK-001": task},
		Commits: map[string]*types.CommitRecord{},
		Files:   map[string]*types.FileRecord{},
	}
}

func TestWriteAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".sdlc-workflow", ".index", "sdlc-index.json")
	want := sampleSnapshot()

	if err := Write(path, want); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("snapshot not written: %v", err)
	}
	if info.Mode().Perm() != 0644 {
		t.Errorf("mode = %v, want 0644", info.Mode().Perm())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	if !strings.HasSuffix(text, "}\n") {
		t.Error("snapshot does not end with a newline")
	}
	if !strings.Contains(text, "\n  \"metadata\": {") {
		t.Error("snapshot is not indented with two spaces")
	}
	if strings.Contains(text, "null") {
		t.Errorf("snapshot contains null:\n%s", text)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteReplacesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	if err := os.WriteFile(path, []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := Write(path, sampleSnapshot()); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if _, err := Load(path); err != nil {
		t.Errorf("Load after replace failed: %v", err)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("directory holds %v, want only the snapshot", names)
	}
}

func TestWriteFailureKeepsTarget(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.json")
	// A directory at the target path cannot be replaced by a file
	if err := os.Mkdir(path, 0750); err != nil {
		t.Fatal(err)
	}
	if err := Write(path, sampleSnapshot()); err == nil {
		t.Fatal("Write succeeded over a directory")
	}
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		t.Errorf("target changed after failed write: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("failed write left %d entries behind", len(entries)-1)
	}
}

func TestLoadFillsEmptyMaps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	content := `{"metadata": {"schema_version": "1.2.0", "generated": "2025-11-07T08:00:00Z"}}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	snap, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if snap.Stories == nil || snap.Tasks == nil || snap.Commits == nil || snap.Files == nil {
		t.Errorf("Load left nil maps: %+v", snap)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		return path
	}

	if _, err := Load(filepath.Join(dir, "missing.json")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file: error = %v, want os.ErrNotExist", err)
	}
	if _, err := Load(write("bad.json", "{")); err == nil || !strings.Contains(err.Error(), "failed to parse snapshot") {
		t.Errorf("malformed file: error = %v", err)
	}
	future := write("future.json", `{"metadata": {"schema_version": "2.0.0"}}`)
	if _, err := Load(future); !errors.Is(err, ErrSnapshotIncompatible) {
		t.Errorf("future schema: error = %v, want ErrSnapshotIncompatible", err)
	}
}

func TestCheckSchema(t *testing.T) {
	tests := []struct {
		version string
		wantErr bool
	}{
		{"", false},
		{"1.0.0", false},
		{"1.4.2", false},
		{"v1.0.0", false},
		{"2.0.0", true},
		{"0.9.0", true},
		{"one", true},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			err := CheckSchema(tt.version)
			if (err != nil) != tt.wantErr {
				t.Errorf("CheckSchema(%q) error = %v, wantErr %v", tt.version, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrSnapshotIncompatible) {
				t.Errorf("CheckSchema(%q) error %v does not wrap ErrSnapshotIncompatible", tt.version, err)
			}
		})
	}
}
