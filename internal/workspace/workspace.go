// Package workspace locates the project root and the well-known SDLC
// directories beneath it.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sdlc-workflow/sdlc/internal/configfile"
	"github.com/sdlc-workflow/sdlc/internal/types"
	"github.com/sdlc-workflow/sdlc/internal/utils"
)

// Marker directories
const (
	ClaudeDirName   = ".claude"
	WorkflowDirName = ".sdlc-workflow"
)

// CurrentTaskFile holds the id of the task being worked on, or "none"
const CurrentTaskFile = "current.txt"

// Layout is the resolved set of paths the index builder reads and writes.
type Layout struct {
	Root        string // Project root (or working directory when Found is false)
	Found       bool   // Whether a .claude/ marker was located
	WorkflowDir string
	StoriesDir  string
	TasksDir    string
	IndexFile   string
	IndexDB     string // Empty when the SQLite mirror is disabled
}

// CurrentTaskPath returns the location of the current-task pointer
func (l *Layout) CurrentTaskPath() string {
	return filepath.Join(l.TasksDir, CurrentTaskFile)
}

// FindProjectRoot discovers the project root using this search order:
//  1. $SDLC_ROOT environment variable (must name an existing directory)
//  2. nearest ancestor of the working directory containing .claude/
//
// Returns empty string if no root is found.
func FindProjectRoot() string {
	if root := os.Getenv("SDLC_ROOT"); root != "" {
		absRoot := utils.CanonicalizePath(root)
		if info, err := os.Stat(absRoot); err == nil && info.IsDir() {
			return absRoot
		}
	}

	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	// Resolve symlinks so paths stay stable when the repo is reached through a link
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		dir = resolved
	}
	return findMarkerInTree(dir)
}

func findMarkerInTree(dir string) string {
	for {
		if info, err := os.Stat(filepath.Join(dir, ClaudeDirName)); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			return ""
		}
		dir = parent
	}
}

// Discover resolves the layout for the current project. When no project root
// is found the working directory is used and a warning reports the missing
// structure. A malformed layout.json falls back to defaults with a warning.
func Discover() (*Layout, []types.Warning, error) {
	var warnings []types.Warning

	root := FindProjectRoot()
	found := root != ""
	if !found {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		root = utils.CanonicalizePath(cwd)
		warnings = append(warnings, types.Warning{
			Source:  types.SourceWorkspace,
			Subject: root,
			Message: fmt.Sprintf("no %s/ directory found in this directory or any parent; indexing working directory", ClaudeDirName),
		})
	}

	workflowDir := filepath.Join(root, WorkflowDirName)
	cfg, err := configfile.Load(workflowDir)
	if err != nil {
		warnings = append(warnings, types.Warning{
			Source:  types.SourceWorkspace,
			Subject: configfile.ConfigPath(workflowDir),
			Message: fmt.Sprintf("ignoring layout overrides: %v", err),
		})
		cfg = nil
	}
	if cfg == nil {
		cfg = configfile.DefaultConfig()
	}

	return &Layout{
		Root:        root,
		Found:       found,
		WorkflowDir: workflowDir,
		StoriesDir:  cfg.StoriesPath(root),
		TasksDir:    cfg.TasksPath(root),
		IndexFile:   cfg.IndexPath(root),
		IndexDB:     cfg.DatabasePath(root),
	}, warnings, nil
}
