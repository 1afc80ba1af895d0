// Package sdlc provides a minimal public API for tools that consume the
// workflow context index.
//
// Most consumers should read the JSON snapshot (or its SQLite mirror)
// directly. This package exports the record types and the functions needed
// to build, load and write a snapshot from Go.
package sdlc

import (
	"context"

	"github.com/sdlc-workflow/sdlc/internal/index"
	"github.com/sdlc-workflow/sdlc/internal/types"
	"github.com/sdlc-workflow/sdlc/internal/workspace"
)

// Core types from internal/types
type (
	Snapshot     = types.Snapshot
	Metadata     = types.Metadata
	StoryRecord  = types.StoryRecord
	TaskRecord   = types.TaskRecord
	CommitRecord = types.CommitRecord
	FileRecord   = types.FileRecord
	Annotation   = types.Annotation
	PhaseEntry   = types.PhaseEntry
	CommitEntry  = types.CommitEntry
	TaskStatus   = types.TaskStatus
	Phase        = types.Phase
	Warning      = types.Warning
	Layout       = workspace.Layout
	BuildOptions = index.Options
	BuildReport  = index.Report
)

// TaskStatus constants
const (
	TaskNotStarted = types.TaskNotStarted
	TaskInProgress = types.TaskInProgress
	TaskCompleted  = types.TaskCompleted
)

// SchemaVersion is the snapshot format written by this version
const SchemaVersion = types.SchemaVersion

// ErrSnapshotIncompatible is returned by Load for snapshots with a
// different schema major version
var ErrSnapshotIncompatible = index.ErrSnapshotIncompatible

// FindProjectRoot finds the nearest directory containing .claude/,
// honoring $SDLC_ROOT. Returns empty string if not found.
func FindProjectRoot() string {
	return workspace.FindProjectRoot()
}

// DiscoverLayout resolves the story, task and index locations of the
// current project.
func DiscoverLayout() (*Layout, []Warning, error) {
	return workspace.Discover()
}

// Build scans the project described by opts and returns the linked snapshot
func Build(ctx context.Context, opts BuildOptions) (*Snapshot, BuildReport, error) {
	return index.Build(ctx, opts)
}

// Load reads a snapshot file
func Load(path string) (*Snapshot, error) {
	return index.Load(path)
}

// Write atomically replaces the snapshot file at path
func Write(path string, snap *Snapshot) error {
	return index.Write(path, snap)
}

// LoadCurrent loads the snapshot of the current project from its default
// location.
func LoadCurrent() (*Snapshot, error) {
	layout, _, err := workspace.Discover()
	if err != nil {
		return nil, err
	}
	return index.Load(layout.IndexFile)
}
