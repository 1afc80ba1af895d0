package git

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
}

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	args = append([]string{"-c", "user.name=Test", "-c", "user.email=test@example.com", "-c", "commit.gpgsign=false"}, args...)
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %v failed: %v\n%s", args, err, out)
	}
}

func TestGitLogRealRepository(t *testing.T) {
	requireGit(t)
	dir := t.TempDir()
	runGit(t, dir, "init", "-q")

	if err := os.MkdirAll(filepath.Join(dir, "apps", "server"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "apps", "server", "a.py"), []byte("# Design Pattern: Repository\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-q", "-m", "feat: X (US-001, TASK-001-foo)")
	runGit(t, dir, "commit", "-q", "--allow-empty", "-m", "chore: empty (US-002)")

	res := Scan(context.Background(), New(dir, 0), "")
	if len(res.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", res.Warnings)
	}
	if len(res.Commits) != 2 {
		t.Fatalf("got %d commits, want 2", len(res.Commits))
	}

	var withFile, empty int
	for _, c := range res.Commits {
		switch len(c.Files) {
		case 0:
			empty++
			if diff := cmp.Diff([]string{"US-002"}, c.StoryRefs); diff != "" {
				t.Errorf("empty commit StoryRefs mismatch (-want +got):\n%s", diff)
			}
		case 1:
			withFile++
			if c.Files[0] != "apps/server/a.py" {
				t.Errorf("Files = %v, want apps/server/a.py", c.Files)
			}
			if diff := cmp.Diff([]string{"TASK-001-foo"}, c.TaskRefs); diff != "" {
				t.Errorf("TaskRefs mismatch (-want +got):\n%s", diff)
			}
		}
	}
	if withFile != 1 || empty != 1 {
		t.Errorf("withFile=%d empty=%d, want 1 and 1", withFile, empty)
	}
}

func TestGitLogNotRepository(t *testing.T) {
	requireGit(t)
	dir := t.TempDir()
	t.Setenv("GIT_CEILING_DIRECTORIES", filepath.Dir(dir))

	_, err := New(dir, 0).Log(context.Background())
	if !errors.Is(err, ErrNotRepository) {
		t.Errorf("Log() error = %v, want ErrNotRepository", err)
	}
}

func TestGitLogEmptyRepository(t *testing.T) {
	requireGit(t)
	dir := t.TempDir()
	runGit(t, dir, "init", "-q")

	res := Scan(context.Background(), New(dir, 0), "")
	if len(res.Commits) != 0 {
		t.Errorf("got %d commits from empty repository", len(res.Commits))
	}
}

func TestNewDefaultsTimeout(t *testing.T) {
	if g := New(".", 0); g.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", g.Timeout, DefaultTimeout)
	}
}
