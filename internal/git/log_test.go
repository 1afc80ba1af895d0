package git

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/sdlc-workflow/sdlc/internal/types"
)

const (
	hashA = "a1b2c3d4e5f60718293a4b5c6d7e8f9012345678"
	hashB = "b1b2c3d4e5f60718293a4b5c6d7e8f9012345678"
	hashC = "c1b2c3d4e5f60718293a4b5c6d7e8f9012345678"
)

func header(hash, date, subject string) string {
	return recordSep + hash + fieldSep + date + fieldSep + subject
}

func TestParseLog(t *testing.T) {
	log := strings.Join([]string{
		header(hashA, "2025-11-06T10:00:00+00:00", "feat: X (US-001, TASK-001-foo)"),
		"",
		"apps/server/a.py",
		"apps/web/b.ts",
		"",
		header(hashB, "2025-11-05T09:00:00-05:00", "chore: tidy"),
		"",
		header(hashC, "2025-11-04T08:00:00Z", "fix: US-002 again"),
		"./docs/readme.md",
		"docs/readme.md",
	}, "\n")

	commits, warnings := ParseLog(strings.NewReader(log))
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if len(commits) != 3 {
		t.Fatalf("got %d commits, want 3", len(commits))
	}

	first := commits[0]
	if first.Hash != hashA {
		t.Errorf("commits[0].Hash = %q, want %q", first.Hash, hashA)
	}
	if diff := cmp.Diff([]string{"US-001"}, first.StoryRefs); diff != "" {
		t.Errorf("StoryRefs mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"TASK-001-foo"}, first.TaskRefs); diff != "" {
		t.Errorf("TaskRefs mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"apps/server/a.py", "apps/web/b.ts"}, first.Files); diff != "" {
		t.Errorf("Files mismatch (-want +got):\n%s", diff)
	}
	wantDate := time.Date(2025, 11, 6, 10, 0, 0, 0, time.UTC)
	if !first.Date.Equal(wantDate) {
		t.Errorf("Date = %v, want %v", first.Date, wantDate)
	}

	if commits[1].Files == nil || len(commits[1].Files) != 0 {
		t.Errorf("zero-file commit Files = %#v, want empty non-nil list", commits[1].Files)
	}
	if diff := cmp.Diff([]string{"docs/readme.md"}, commits[2].Files); diff != "" {
		t.Errorf("duplicate paths not collapsed (-want +got):\n%s", diff)
	}
}

func TestParseLogLastCommitWithoutFiles(t *testing.T) {
	log := header(hashA, "2025-11-06T10:00:00Z", "feat: US-001") + "\n" +
		header(hashB, "2025-11-06T11:00:00Z", "feat: US-001 final")

	commits, _ := ParseLog(strings.NewReader(log))
	if len(commits) != 2 {
		t.Fatalf("got %d commits, want 2", len(commits))
	}
	for _, c := range commits {
		if len(c.Files) != 0 {
			t.Errorf("commit %s Files = %v, want none", c.Hash, c.Files)
		}
	}
}

func TestParseLogMalformedHeaderDiscardsFiles(t *testing.T) {
	log := strings.Join([]string{
		header(hashA, "2025-11-06T10:00:00Z", "feat: US-001"),
		"a.py",
		header("not-a-hash", "2025-11-06T10:00:00Z", "broken"),
		"orphan.py",
		header(hashB, "yesterday", "bad date"),
		"also-orphan.py",
		recordSep + "only-one-field",
		"third-orphan.py",
	}, "\n")

	commits, warnings := ParseLog(strings.NewReader(log))
	if len(commits) != 1 {
		t.Fatalf("got %d commits, want 1", len(commits))
	}
	if diff := cmp.Diff([]string{"a.py"}, commits[0].Files); diff != "" {
		t.Errorf("files after malformed header leaked (-want +got):\n%s", diff)
	}
	if len(warnings) != 3 {
		t.Errorf("got %d warnings, want 3: %v", len(warnings), warnings)
	}
	for _, w := range warnings {
		if w.Source != types.SourceHistory || w.Subject == "" {
			t.Errorf("warning %+v lacks source or subject", w)
		}
	}
}

func TestParseLogMergesRepeatedHash(t *testing.T) {
	log := strings.Join([]string{
		header(hashA, "2025-11-06T10:00:00Z", "feat: US-001"),
		"a.py",
		header(hashA, "2025-11-06T10:00:00Z", "feat: US-001"),
		"a.py",
		"b.py",
	}, "\n")

	commits, _ := ParseLog(strings.NewReader(log))
	if len(commits) != 1 {
		t.Fatalf("got %d commits, want 1", len(commits))
	}
	if diff := cmp.Diff([]string{"a.py", "b.py"}, commits[0].Files); diff != "" {
		t.Errorf("Files mismatch (-want +got):\n%s", diff)
	}
}

func TestParseLogCRLF(t *testing.T) {
	log := header(hashA, "2025-11-06T10:00:00Z", "feat: US-001") + "\r\na.py\r\n"
	commits, warnings := ParseLog(strings.NewReader(log))
	if len(warnings) != 0 || len(commits) != 1 {
		t.Fatalf("commits=%d warnings=%v", len(commits), warnings)
	}
	if commits[0].Message != "feat: US-001" {
		t.Errorf("Message = %q", commits[0].Message)
	}
	if diff := cmp.Diff([]string{"a.py"}, commits[0].Files); diff != "" {
		t.Errorf("Files mismatch (-want +got):\n%s", diff)
	}
}

func TestFormatLogRoundTrip(t *testing.T) {
	want := []*types.CommitRecord{
		{
			Hash:      hashA,
			Date:      time.Date(2025, 11, 6, 10, 0, 0, 0, time.UTC),
			Message:   "feat: login (US-001, TASK-001)",
			StoryRefs: []string{"US-001"},
			TaskRefs:  []string{"TASK-001"},
			Files:     []string{"apps/server/auth.py"},
		},
		{
			Hash:      hashB,
			Date:      time.Date(2025, 11, 7, 10, 0, 0, 0, time.UTC),
			Message:   "docs only",
			StoryRefs: []string{},
			TaskRefs:  []string{},
			Files:     []string{},
		},
	}

	got, warnings := ParseLog(strings.NewReader(string(FormatLog(want))))
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

type failingSource struct{ err error }

func (f failingSource) Log(context.Context) ([]byte, error) { return nil, f.err }

func TestScanFilter(t *testing.T) {
	src := StaticLog(strings.Join([]string{
		header(hashA, "2025-11-06T10:00:00Z", "feat: US-1 login"),
		"a.py",
		header(hashB, "2025-11-06T11:00:00Z", "feat: US-10 signup"),
		"b.py",
	}, "\n"))

	res := Scan(context.Background(), src, "US-1")
	if len(res.Commits) != 1 {
		t.Fatalf("got %d commits, want 1", len(res.Commits))
	}
	if _, ok := res.Commits[hashA]; !ok {
		t.Errorf("commit mentioning US-1 missing; US-10 must not match US-1")
	}

	res = Scan(context.Background(), src, "")
	if len(res.Commits) != 2 {
		t.Errorf("unfiltered scan got %d commits, want 2", len(res.Commits))
	}
}

func TestScanUnavailableHistory(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"no git", ErrGitUnavailable, "git executable not found"},
		{"not a repo", ErrNotRepository, "not a git repository"},
		{"empty repo", ErrNoCommits, "no commits"},
		{"other", errors.New("boom"), "failed to read history: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Scan(context.Background(), failingSource{tt.err}, "")
			if len(res.Commits) != 0 {
				t.Errorf("got %d commits, want 0", len(res.Commits))
			}
			if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0].Message, tt.want) {
				t.Errorf("warnings = %v, want one containing %q", res.Warnings, tt.want)
			}
		})
	}
}
