package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/sdlc-workflow/sdlc/internal/debug"
	"github.com/sdlc-workflow/sdlc/internal/types"
	"github.com/sdlc-workflow/sdlc/internal/utils"
)

// Result holds the commits found by Scan, keyed by hash.
type Result struct {
	Commits  map[string]*types.CommitRecord
	Warnings []types.Warning
}

// Scan reads history from src. When filter is set, only commits whose
// subject mentions the filter story id as a token are kept. Unreadable
// history is a warning and an empty result, never an error.
func Scan(ctx context.Context, src Source, filter string) Result {
	res := Result{Commits: make(map[string]*types.CommitRecord)}

	out, err := src.Log(ctx)
	if err != nil {
		var msg string
		switch {
		case errors.Is(err, ErrGitUnavailable), errors.Is(err, ErrNotRepository), errors.Is(err, ErrNoCommits):
			msg = fmt.Sprintf("%v; no commits indexed", err)
		default:
			msg = fmt.Sprintf("failed to read history: %v", err)
		}
		res.Warnings = append(res.Warnings, types.Warning{Source: types.SourceHistory, Message: msg})
		return res
	}

	commits, warnings := ParseLog(bytes.NewReader(out))
	res.Warnings = append(res.Warnings, warnings...)
	for _, c := range commits {
		if filter != "" && !utils.HasStoryToken(c.Message, filter) {
			continue
		}
		res.Commits[c.Hash] = c
	}

	debug.Logf("history: found %d commits (%d parsed)\n", len(res.Commits), len(commits))
	return res
}
