package main

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/sdlc-workflow/sdlc/internal/index"
	"github.com/sdlc-workflow/sdlc/internal/testutil/fixtures"
	"github.com/sdlc-workflow/sdlc/internal/workspace"
)

func TestParseChecks(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr bool
	}{
		{"default", "", defaultChecks, false},
		{"single", "tasks", []string{"tasks"}, false},
		{"synonyms and spacing", " git , Story,index", []string{"commits", "stories", "snapshot"}, false},
		{"deduplicated", "tasks,task,tasks", []string{"tasks"}, false},
		{"unknown", "tasks,pollution", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseChecks(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseChecks(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("parseChecks(%q) mismatch (-want +got):\n%s", tt.input, diff)
			}
		})
	}
}

func discover(t *testing.T) *workspace.Layout {
	t.Helper()
	layout, _, err := workspace.Discover()
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	return layout
}

func TestValidationFindsProblems(t *testing.T) {
	requireGit(t)
	p := newProject(t)
	seedProject(t, p, true)
	p.AddStory(fixtures.Story{ID: "US-001", Title: "Login again", Subdir: "dup"})
	p.AddTask(fixtures.Task{ID: "TASK-002", Story: "US-404"})
	p.WriteFile("apps/web/page.ts", "// Design Pattern: Page\n")
	runGit(t, p.Root, "add", "apps/web")
	runGit(t, p.Root, "commit", "-q", "-m", "feat: page (US-777, TASK-099)")

	results, err := runValidation(context.Background(), discover(t), defaultChecks)
	if err != nil {
		t.Fatalf("runValidation failed: %v", err)
	}
	if !results.hasFailures() {
		t.Fatal("expected failures")
	}

	counts := map[string]int{}
	for name, r := range results.checks {
		counts[name] = len(r.problems)
	}
	want := map[string]int{"stories": 1, "tasks": 1, "commits": 2, "files": 0, "snapshot": 0}
	if diff := cmp.Diff(want, counts); diff != "" {
		t.Errorf("problem counts mismatch (-want +got):\n%s", diff)
	}
	if got := results.checks["tasks"].problems[0]; got != "TASK-002: story US-404 does not exist" {
		t.Errorf("tasks problem = %q", got)
	}
	if got := results.checks["snapshot"].suggestions; len(got) != 1 || !strings.Contains(got[0], "sdlc index") {
		t.Errorf("snapshot suggestions = %v, want a hint to run sdlc index", got)
	}

	out := results.toJSON()
	if out["healthy"] != false || out["total_problems"] != 4 {
		t.Errorf("toJSON = %v", out)
	}
}

func TestValidationHealthyAfterIndex(t *testing.T) {
	p := newProject(t)
	seedProject(t, p, false)
	runSDLCInProcess(t, p.Root, "index")

	out := runSDLCInProcess(t, p.Root, "validate", "--json")
	var got struct {
		Healthy       bool `json:"healthy"`
		TotalProblems int  `json:"total_problems"`
		Checks        map[string]struct {
			Suggestions []string `json:"suggestions"`
		} `json:"checks"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("validate output is not JSON: %v\n%s", err, out)
	}
	if !got.Healthy || got.TotalProblems != 0 {
		t.Errorf("validate = %s", out)
	}
	// Missing history is reported as a hint, not a problem
	if len(got.Checks["commits"].Suggestions) != 1 {
		t.Errorf("commits suggestions = %v", got.Checks["commits"].Suggestions)
	}
}

func TestValidateSnapshot(t *testing.T) {
	p := newProject(t)
	seedProject(t, p, false)
	layout := discover(t)

	if _, err := runIndex(context.Background(), indexParams{}); err != nil {
		t.Fatalf("runIndex failed: %v", err)
	}
	if r := validateSnapshot(layout.IndexFile); len(r.problems) != 0 || r.err != nil {
		t.Fatalf("fresh index has problems: %v %v", r.problems, r.err)
	}

	// Drop one end of the story/task edge and miscount stories
	snap, err := index.Load(layout.IndexFile)
	if err != nil {
		t.Fatal(err)
	}
	snap.Stories["US-001"].Tasks = []string{}
	snap.Metadata.TotalStories = 5
	if err := index.Write(layout.IndexFile, snap); err != nil {
		t.Fatal(err)
	}
	r := validateSnapshot(layout.IndexFile)
	want := []string{
		"metadata total_stories is 5 but the index holds 2",
		"task TASK-001: belongs to US-001 but is missing from its task list",
	}
	if diff := cmp.Diff(want, r.problems); diff != "" {
		t.Errorf("problems mismatch (-want +got):\n%s", diff)
	}

	if err := os.WriteFile(layout.IndexFile, []byte(`{"metadata": {"schema_version": "3.0.0"}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	r = validateSnapshot(layout.IndexFile)
	if len(r.problems) != 1 || !strings.Contains(r.problems[0], "incompatible snapshot schema") {
		t.Errorf("problems = %v, want a schema incompatibility", r.problems)
	}

	if err := os.WriteFile(layout.IndexFile, []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if r := validateSnapshot(layout.IndexFile); r.err == nil {
		t.Error("malformed snapshot did not produce an error")
	}
}
