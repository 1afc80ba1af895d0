package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sdlc-workflow/sdlc/internal/config"
	"github.com/sdlc-workflow/sdlc/internal/debug"
	"github.com/sdlc-workflow/sdlc/internal/index"
	"github.com/sdlc-workflow/sdlc/internal/storage/sqlite"
	"github.com/sdlc-workflow/sdlc/internal/types"
	"github.com/sdlc-workflow/sdlc/internal/utils"
	"github.com/sdlc-workflow/sdlc/internal/workspace"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the context index",
	Long: `Scan stories, tasks, git history and annotated source files, link them,
and write the snapshot (default: .sdlc-workflow/.index/sdlc-index.json).

Missing directories, malformed documents and an unreadable git history are
reported as warnings; the snapshot is still written.

Example:
  sdlc index                          # Index the whole project
  sdlc index --story-id US-001        # Only US-001 and what references it
  sdlc index --output /tmp/index.json # Write somewhere else
  sdlc index --db .sdlc-workflow/.index/sdlc-index.db  # Also mirror into SQLite`,
	Run: func(cmd *cobra.Command, _ []string) {
		params := indexParams{}
		params.storyID, _ = cmd.Flags().GetString("story-id")
		params.output, _ = cmd.Flags().GetString("output")
		params.database, _ = cmd.Flags().GetString("db")
		if !cmd.Flags().Changed("output") && params.output == "" {
			params.output = config.GetString("output")
		}
		if !cmd.Flags().Changed("db") && params.database == "" {
			params.database = config.GetString("index-db")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		run, err := runIndex(ctx, params)
		if run != nil {
			printWarnings(run.Warnings)
		}
		if err != nil {
			var usage *usageError
			if errors.As(err, &usage) {
				fatalf(2, "%v", err)
			}
			fatalf(1, "%v", err)
		}

		if jsonOutput {
			outputJSON(run.summary())
			return
		}
		run.print()
	},
}

type indexParams struct {
	storyID  string
	output   string // Snapshot destination; layout default when empty
	database string // SQLite mirror; layout default when empty
}

// usageError is a problem with the command line rather than the project
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

// indexRun is the outcome of one index build
type indexRun struct {
	Layout   *workspace.Layout
	Output   string
	Database string
	Snapshot *types.Snapshot
	Report   index.Report
	Warnings []types.Warning // Workspace, build and mirror warnings in that order
}

// indexOptions returns the build options for layout with the configured
// scanner settings applied.
func indexOptions(layout *workspace.Layout, storyID string) index.Options {
	return index.Options{
		Root:           layout.Root,
		StoriesDir:     layout.StoriesDir,
		TasksDir:       layout.TasksDir,
		Filter:         storyID,
		Extensions:     config.GetStringSlice("annotations.extensions"),
		HeaderLines:    config.GetInt("annotations.header-lines"),
		DecisionsLimit: config.GetInt("tasks.decisions-limit"),
		GitTimeout:     config.GetDuration("git.timeout"),
	}
}

// runIndex builds the snapshot and writes it. The returned run carries the
// warnings collected so far even when an error is returned.
func runIndex(ctx context.Context, params indexParams) (*indexRun, error) {
	if params.storyID != "" && !utils.IsStoryID(params.storyID) {
		return nil, &usageError{msg: fmt.Sprintf("invalid story id %q (expected US-<digits>, e.g. US-001 or US-012A)", params.storyID)}
	}

	layout, warnings, err := workspace.Discover()
	if err != nil {
		return nil, err
	}
	run := &indexRun{Layout: layout, Warnings: warnings}

	run.Output = layout.IndexFile
	if params.output != "" {
		run.Output = absPath(params.output)
	}
	run.Database = layout.IndexDB
	if params.database != "" {
		run.Database = absPath(params.database)
	}
	debug.Logf("Project root: %s\n", layout.Root)

	snap, report, err := index.Build(ctx, indexOptions(layout, params.storyID))
	if err != nil {
		return run, err
	}
	run.Snapshot = snap
	run.Report = report
	run.Warnings = append(run.Warnings, report.Warnings...)

	if err := index.Write(run.Output, snap); err != nil {
		return run, err
	}

	if run.Database != "" {
		if err := mirrorSnapshot(ctx, run.Database, snap); err != nil {
			run.Warnings = append(run.Warnings, types.Warning{
				Source:  types.SourceStorage,
				Subject: run.Database,
				Message: fmt.Sprintf("mirror not updated: %v", err),
			})
			run.Database = ""
		}
	}
	return run, nil
}

func mirrorSnapshot(ctx context.Context, path string, snap *types.Snapshot) error {
	store, err := sqlite.New(path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.ReplaceSnapshot(ctx, snap); err != nil {
		return err
	}
	return store.CheckpointWAL(ctx)
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

func (r *indexRun) summary() map[string]interface{} {
	warnings := r.Warnings
	if warnings == nil {
		warnings = []types.Warning{}
	}
	out := map[string]interface{}{
		"output":     r.Output,
		"metadata":   r.Snapshot.Metadata,
		"links":      r.Report.Links.Total(),
		"elapsed_ms": r.Report.Elapsed.Milliseconds(),
		"warnings":   warnings,
	}
	if r.Database != "" {
		out["database"] = r.Database
	}
	return out
}

func (r *indexRun) print() {
	m := r.Snapshot.Metadata
	fmt.Printf("%s Index written to %s\n", green("✓"), displayPath(r.Layout.Root, r.Output))
	if m.StoryFilter != "" {
		fmt.Printf("  Story filter: %s\n", m.StoryFilter)
	}
	fmt.Printf("  Stories: %d\n", m.TotalStories)
	fmt.Printf("  Tasks:   %d\n", m.TotalTasks)
	fmt.Printf("  Commits: %d\n", m.TotalCommits)
	fmt.Printf("  Files:   %d\n", m.TotalFiles)
	fmt.Printf("  Links:   %d\n", r.Report.Links.Total())
	if m.CurrentTask != "" {
		fmt.Printf("  Current task: %s\n", m.CurrentTask)
	}
	if r.Database != "" {
		fmt.Printf("  Mirror: %s\n", displayPath(r.Layout.Root, r.Database))
	}
	if n := len(r.Warnings); n > 0 {
		fmt.Printf("%s %d warning(s), see above\n", yellow("⚠"), n)
	}
}

// displayPath shows paths under root relative to it
func displayPath(root, p string) string {
	if rel, err := filepath.Rel(root, p); err == nil && filepath.IsLocal(rel) {
		return filepath.ToSlash(rel)
	}
	return p
}

func init() {
	indexCmd.Flags().String("story-id", "", "Only index this story (e.g. US-001) and the tasks and commits that reference it")
	indexCmd.Flags().StringP("output", "o", "", "Snapshot path (default: .sdlc-workflow/.index/sdlc-index.json)")
	indexCmd.Flags().String("db", "", "Also mirror the snapshot into this SQLite database")
	rootCmd.AddCommand(indexCmd)
}
