// Package git reads commit history and extracts the story and task
// references carried in commit subjects.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/sdlc-workflow/sdlc/internal/debug"
)

// DefaultTimeout bounds a single git invocation
const DefaultTimeout = 30 * time.Second

// Sentinel errors for history that cannot be read. Callers treat all of
// them as "no commits".
var (
	ErrGitUnavailable = errors.New("git executable not found")
	ErrNotRepository  = errors.New("not a git repository")
	ErrNoCommits      = errors.New("repository has no commits")
)

// Source produces raw log output in the format written by FormatLog.
type Source interface {
	Log(ctx context.Context) ([]byte, error)
}

// Git reads history from the repository containing Dir.
type Git struct {
	Dir     string
	Timeout time.Duration
}

// New returns a Git for dir with the given timeout (DefaultTimeout if <= 0)
func New(dir string, timeout time.Duration) *Git {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Git{Dir: dir, Timeout: timeout}
}

// Log runs git log over all refs with the file list of every commit.
func (g *Git) Log(ctx context.Context) ([]byte, error) {
	return g.run(ctx, "-c", "core.quotepath=off", "log", "--all", "--no-color",
		"--pretty=format:"+LogFormat, "--name-only")
}

func (g *Git) run(ctx context.Context, args ...string) ([]byte, error) {
	if _, err := exec.LookPath("git"); err != nil {
		return nil, ErrGitUnavailable
	}

	timeout := g.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.Dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	debug.Logf("git: running git %s in %s\n", strings.Join(args, " "), g.Dir)
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("git timed out after %s", timeout)
		}
		msg := strings.TrimSpace(stderr.String())
		switch {
		case strings.Contains(msg, "not a git repository"):
			return nil, ErrNotRepository
		case strings.Contains(msg, "does not have any commits"):
			return nil, ErrNoCommits
		}
		if errors.Is(err, exec.ErrNotFound) {
			return nil, ErrGitUnavailable
		}
		if msg != "" {
			return nil, fmt.Errorf("git failed: %s: %w", msg, err)
		}
		return nil, fmt.Errorf("git failed: %w", err)
	}
	return out, nil
}
