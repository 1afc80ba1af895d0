package utils

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestExtractStoryRefs(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    []string
	}{
		{"single", "feat: login (US-001)", []string{"US-001"}},
		{"letter suffix", "fix: US-012B edge case", []string{"US-012B"}},
		{"several in order", "US-002 and US-001, again US-002", []string{"US-002", "US-001"}},
		{"none", "chore: bump deps", []string{}},
		{"embedded in word", "FOCUS-12 is not a story", []string{}},
		{"lowercase suffix", "US-1a", []string{"US-1"}},
		{"underscore suffix", "merge US-001_fix", []string{"US-001"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractStoryRefs(tt.message)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ExtractStoryRefs(%q) mismatch (-want +got):\n%s", tt.message, diff)
			}
		})
	}
}

func TestExtractTaskRefs(t *testing.T) {
	tests := []struct {
		message string
		want    []string
	}{
		{"feat: X (US-001, TASK-001-foo)", []string{"TASK-001-foo"}},
		{"TASK-002: plain", []string{"TASK-002"}},
		{"TASK-003-auth-flow and TASK-004", []string{"TASK-003-auth-flow", "TASK-004"}},
		{"no task here", []string{}},
	}

	for _, tt := range tests {
		got := ExtractTaskRefs(tt.message)
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("ExtractTaskRefs(%q) mismatch (-want +got):\n%s", tt.message, diff)
		}
	}
}

func TestBaseTaskID(t *testing.T) {
	tests := []struct {
		ref  string
		want string
	}{
		{"TASK-001", "TASK-001"},
		{"TASK-001-foo", "TASK-001"},
		{"TASK-0042-multi-part-name", "TASK-0042"},
		{"TASK-", ""},
		{"task-001", ""},
		{"US-001", ""},
	}

	for _, tt := range tests {
		if got := BaseTaskID(tt.ref); got != tt.want {
			t.Errorf("BaseTaskID(%q) = %q, want %q", tt.ref, got, tt.want)
		}
	}
}

func TestHasStoryToken(t *testing.T) {
	tests := []struct {
		text  string
		story string
		want  bool
	}{
		{"feat: US-1 done", "US-1", true},
		{"feat: US-10 done", "US-1", false},
		{"feat: US-1A done", "US-1", false},
		{"feat: US-1A done", "US-1A", true},
		{"(US-001,TASK-001)", "US-001", true},
		{"fix: US-001_fix branch", "US-001", true},
		{"fix: US-0011", "US-001", false},
		{"", "US-001", false},
	}

	for _, tt := range tests {
		if got := HasStoryToken(tt.text, tt.story); got != tt.want {
			t.Errorf("HasStoryToken(%q, %q) = %v, want %v", tt.text, tt.story, got, tt.want)
		}
	}
}

func TestIDPredicates(t *testing.T) {
	for _, id := range []string{"US-001", "US-12B", "US-7"} {
		if !IsStoryID(id) {
			t.Errorf("IsStoryID(%q) = false, want true", id)
		}
	}
	for _, id := range []string{"US-", "US-01ab", "us-001", "US-001 "} {
		if IsStoryID(id) {
			t.Errorf("IsStoryID(%q) = true, want false", id)
		}
	}
	for _, id := range []string{"TASK-001", "TASK-9"} {
		if !IsTaskID(id) {
			t.Errorf("IsTaskID(%q) = false, want true", id)
		}
	}
	for _, id := range []string{"TASK-001-foo", "TASK", "TEMPLATE"} {
		if IsTaskID(id) {
			t.Errorf("IsTaskID(%q) = true, want false", id)
		}
	}
}

func TestAppendUnique(t *testing.T) {
	list := []string{"a"}
	list, added := AppendUnique(list, "b")
	if !added {
		t.Error("AppendUnique added = false for new value")
	}
	list, added = AppendUnique(list, "a")
	if added {
		t.Error("AppendUnique added = true for existing value")
	}
	if diff := cmp.Diff([]string{"a", "b"}, list); diff != "" {
		t.Errorf("AppendUnique mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeRepoPath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"apps/server/a.py", "apps/server/a.py"},
		{"./apps/a.py", "apps/a.py"},
		{`apps\web\b.ts`, "apps/web/b.ts"},
		{"  src/c.tsx ", "src/c.tsx"},
	}
	for _, tt := range tests {
		if got := NormalizeRepoPath(tt.in); got != tt.want {
			t.Errorf("NormalizeRepoPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
