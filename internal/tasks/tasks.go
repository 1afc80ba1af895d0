// Package tasks extracts TaskRecords from the per-task folders under
// .claude/tasks.
package tasks

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/sdlc-workflow/sdlc/internal/debug"
	"github.com/sdlc-workflow/sdlc/internal/types"
	"github.com/sdlc-workflow/sdlc/internal/utils"
)

// Well-known names inside the tasks directory
const (
	TemplateDir   = "TEMPLATE"
	StateFile     = "STATE.json"
	DecisionsFile = "decisions.md"
	ReportsDir    = "subagent-reports"
)

// DefaultDecisionsLimit caps the decision log kept per task, in characters
const DefaultDecisionsLimit = 500

// Options controls a task scan.
type Options struct {
	Root           string // Project root; folders and reports are recorded relative to it
	Dir            string // The tasks directory
	Filter         string // When set, only tasks owned by this story are kept
	DecisionsLimit int    // Characters of decisions.md kept; DefaultDecisionsLimit if <= 0
}

// Result holds the tasks found by Scan, keyed by id.
type Result struct {
	Tasks    map[string]*types.TaskRecord
	Warnings []types.Warning
}

// Scan reads every immediate subdirectory of opts.Dir that holds a
// STATE.json. Folders without one are skipped silently, malformed records
// with a warning. Records that violate task invariants are kept and
// reported. A missing directory yields an empty result.
func Scan(opts Options) Result {
	res := Result{Tasks: make(map[string]*types.TaskRecord)}

	entries, err := os.ReadDir(opts.Dir)
	if err != nil {
		if !os.IsNotExist(err) {
			res.warn(opts.Dir, fmt.Sprintf("cannot read tasks directory: %v", err))
		} else {
			debug.Logf("tasks: %s not found, skipping\n", opts.Dir)
		}
		return res
	}

	seen := make(map[string]string)
	for _, entry := range entries {
		if !entry.IsDir() || entry.Name() == TemplateDir {
			continue
		}
		dir := filepath.Join(opts.Dir, entry.Name())
		task, warnings := ParseDir(opts.Root, dir, opts.DecisionsLimit)
		res.Warnings = append(res.Warnings, warnings...)
		if task == nil {
			continue
		}
		if opts.Filter != "" && task.Story != opts.Filter {
			continue
		}
		if first, dup := seen[task.ID]; dup {
			res.warn(task.Folder, fmt.Sprintf("duplicate task id %s (already defined in %s), skipping", task.ID, first))
			continue
		}
		seen[task.ID] = task.Folder
		res.Tasks[task.ID] = task
	}

	debug.Logf("tasks: found %d in %s\n", len(res.Tasks), opts.Dir)
	return res
}

// ParseDir reads one task folder. It returns a nil task, without warnings,
// when the folder has no STATE.json.
func ParseDir(root, dir string, decisionsLimit int) (*types.TaskRecord, []types.Warning) {
	folder := relPath(root, dir)
	warn := func(subject, msg string) types.Warning {
		return types.Warning{Source: types.SourceTasks, Subject: subject, Message: msg}
	}

	data, err := os.ReadFile(filepath.Join(dir, StateFile)) // #nosec G304 - path built from the tasks directory listing
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, []types.Warning{warn(folder, fmt.Sprintf("failed to read %s: %v", StateFile, err))}
	}

	task, err := decodeState(data, filepath.Base(dir))
	if err != nil {
		return nil, []types.Warning{warn(folder, fmt.Sprintf("skipping: %v", err))}
	}
	if !utils.IsTaskID(task.ID) {
		return nil, []types.Warning{warn(folder, fmt.Sprintf("skipping: invalid task id %q", task.ID))}
	}
	task.Folder = folder

	var warnings []types.Warning
	if task.Story != "" && !utils.IsStoryID(task.Story) {
		warnings = append(warnings, warn(task.ID, fmt.Sprintf("story id %q is not well formed", task.Story)))
	}
	if err := task.Validate(); err != nil {
		for _, line := range strings.Split(err.Error(), "\n") {
			warnings = append(warnings, warn(task.ID, line))
		}
	}
	task.FilesModified = uniquePaths(task.FilesModified)

	decisions, err := readDecisions(filepath.Join(dir, DecisionsFile), decisionsLimit)
	if err != nil {
		warnings = append(warnings, warn(task.ID, err.Error()))
	}
	task.Decisions = decisions

	reports, err := filepath.Glob(filepath.Join(dir, ReportsDir, "*.md"))
	if err != nil {
		warnings = append(warnings, warn(task.ID, fmt.Sprintf("listing reports: %v", err)))
	}
	sort.Strings(reports)
	for _, r := range reports {
		task.SubagentReports = append(task.SubagentReports, relPath(root, r))
	}
	return task, warnings
}

// uniquePaths drops repeated entries, keeping first-seen order.
func uniquePaths(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		out, _ = utils.AppendUnique(out, p)
	}
	return out
}

// readDecisions returns at most limit characters of the decision log. A
// missing file is not an error.
func readDecisions(path string, limit int) (string, error) {
	data, err := os.ReadFile(path) // #nosec G304 - fixed name inside a task folder
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", DecisionsFile, err)
	}
	return truncate(string(data), limit), nil
}

func truncate(s string, limit int) string {
	if limit <= 0 {
		limit = DefaultDecisionsLimit
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}

func relPath(root, path string) string {
	if root != "" {
		if rel, err := filepath.Rel(root, path); err == nil {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.ToSlash(path)
}

func (r *Result) warn(subject, msg string) {
	r.Warnings = append(r.Warnings, types.Warning{Source: types.SourceTasks, Subject: subject, Message: msg})
}
