// Package index assembles the linked snapshot of stories, tasks, commits
// and annotated files, and reads and writes it on disk.
package index

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sdlc-workflow/sdlc/internal/annotations"
	"github.com/sdlc-workflow/sdlc/internal/debug"
	"github.com/sdlc-workflow/sdlc/internal/git"
	"github.com/sdlc-workflow/sdlc/internal/linker"
	"github.com/sdlc-workflow/sdlc/internal/stories"
	"github.com/sdlc-workflow/sdlc/internal/tasks"
	"github.com/sdlc-workflow/sdlc/internal/types"
	"github.com/sdlc-workflow/sdlc/internal/utils"
)

// Options controls a build.
type Options struct {
	Root       string // Project root; recorded paths are relative to it
	StoriesDir string
	TasksDir   string
	History    git.Source // Defaults to git log in Root
	Filter     string     // Story id; restricts stories, tasks and commits

	Extensions     []string // Annotated source extensions (annotations.DefaultExtensions if empty)
	HeaderLines    int
	DecisionsLimit int
	GitTimeout     time.Duration

	Now func() time.Time // Generation clock, time.Now if nil
}

// Report summarizes a build. Warnings are ordered by stage: stories, tasks,
// history, annotations, then the current-task pointer.
type Report struct {
	Warnings []types.Warning
	Links    linker.Stats
	Elapsed  time.Duration
}

// Build scans all sources and links the results. Stories, tasks and history
// are scanned concurrently, each stage writing only its own result;
// annotations follow history because they need its file list. Linking
// starts only after every scan has finished. Missing or malformed inputs are
// reported as warnings; the only errors are an invalid filter and
// cancellation of ctx.
func Build(ctx context.Context, opts Options) (*types.Snapshot, Report, error) {
	var report Report
	if opts.Filter != "" && !utils.IsStoryID(opts.Filter) {
		return nil, report, fmt.Errorf("invalid story id %q: expected US-<digits> with an optional capital letter", opts.Filter)
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	history := opts.History
	if history == nil {
		history = git.New(opts.Root, opts.GitTimeout)
	}
	start := time.Now()

	var (
		storyRes stories.Result
		taskRes  tasks.Result
		histRes  git.Result
		fileRes  annotations.Result
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		debug.Logf("Scanning stories from %s...\n", opts.StoriesDir)
		storyRes = stories.Scan(stories.Options{Root: opts.Root, Dir: opts.StoriesDir, Filter: opts.Filter})
		return nil
	})
	g.Go(func() error {
		debug.Logf("Scanning tasks from %s...\n", opts.TasksDir)
		taskRes = tasks.Scan(tasks.Options{Root: opts.Root, Dir: opts.TasksDir, Filter: opts.Filter, DecisionsLimit: opts.DecisionsLimit})
		return nil
	})
	g.Go(func() error {
		debug.Logf("Scanning git commits...\n")
		histRes = git.Scan(gctx, history, opts.Filter)
		if err := gctx.Err(); err != nil {
			return err
		}
		var paths []string
		for _, c := range histRes.Commits {
			paths = append(paths, c.Files...)
		}
		debug.Logf("Scanning implementation files...\n")
		fileRes = annotations.Scan(annotations.Options{Root: opts.Root, Extensions: opts.Extensions, HeaderLines: opts.HeaderLines}, paths)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, report, fmt.Errorf("build cancelled: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, report, fmt.Errorf("build cancelled: %w", err)
	}

	report.Warnings = append(report.Warnings, storyRes.Warnings...)
	report.Warnings = append(report.Warnings, taskRes.Warnings...)
	report.Warnings = append(report.Warnings, histRes.Warnings...)
	report.Warnings = append(report.Warnings, fileRes.Warnings...)

	current, err := tasks.ReadCurrent(opts.TasksDir)
	if err != nil {
		report.Warnings = append(report.Warnings, types.Warning{Source: types.SourceTasks, Subject: tasks.CurrentFile, Message: err.Error()})
	}

	debug.Logf("Building cross-references...\n")
	report.Links = linker.Link(storyRes.Stories, taskRes.Tasks, histRes.Commits, fileRes.Files)

	snap := &types.Snapshot{
		Metadata: types.Metadata{
			Generated:     now(),
			SchemaVersion: types.SchemaVersion,
			StoryFilter:   opts.Filter,
			CurrentTask:   current,
			TotalStories:  len(storyRes.Stories),
			TotalTasks:    len(taskRes.Tasks),
			TotalCommits:  len(histRes.Commits),
			TotalFiles:    len(fileRes.Files),
		},
		Stories: storyRes.Stories,
		Tasks:   taskRes.Tasks,
		Commits: histRes.Commits,
		Files:   fileRes.Files,
	}
	report.Elapsed = time.Since(start)
	debug.Logf("Built index in %v: %d stories, %d tasks, %d commits, %d files\n", report.Elapsed,
		snap.Metadata.TotalStories, snap.Metadata.TotalTasks, snap.Metadata.TotalCommits, snap.Metadata.TotalFiles)
	return snap, report, nil
}
