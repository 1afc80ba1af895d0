// Package types defines the records the context index is assembled from.
package types

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// SchemaVersion is the snapshot format written by this build (semver, no "v").
const SchemaVersion = "1.0.0"

// Fallbacks for story fields a document does not carry.
const (
	UnknownTitle  = "Unknown"
	UnknownStatus = "UNKNOWN"
	UnknownDomain = "unknown"
)

// StoryRecord is a product requirement parsed from a story document.
// Tasks, Commits and ImplementationFiles are filled in by the linker.
type StoryRecord struct {
	ID                  string   `json:"id"`
	Title               string   `json:"title"`
	Status              string   `json:"status"`
	Domain              string   `json:"domain"`
	File                string   `json:"file"`
	AcceptanceCriteria  []string `json:"acceptance_criteria"`
	Tasks               []string `json:"tasks"`
	Commits             []string `json:"commits"`
	ImplementationFiles []string `json:"implementation_files"`
}

// NewStory returns a story carrying the fallback field values and empty
// relationship lists.
func NewStory(id string) *StoryRecord {
	return &StoryRecord{
		ID:                  id,
		Title:               UnknownTitle,
		Status:              UnknownStatus,
		Domain:              UnknownDomain,
		AcceptanceCriteria:  []string{},
		Tasks:               []string{},
		Commits:             []string{},
		ImplementationFiles: []string{},
	}
}

// TaskStatus is the lifecycle state of a task
type TaskStatus string

const (
	TaskNotStarted TaskStatus = "not_started"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
)

// IsValid reports whether s is one of the known task statuses
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskNotStarted, TaskInProgress, TaskCompleted:
		return true
	}
	return false
}

// ParseTaskStatus normalizes a status read from a state file.
// An empty value means the task has not started.
func ParseTaskStatus(raw string) (TaskStatus, error) {
	s := TaskStatus(strings.ToLower(strings.TrimSpace(raw)))
	if s == "" {
		return TaskNotStarted, nil
	}
	if !s.IsValid() {
		return "", fmt.Errorf("invalid task status %q", raw)
	}
	return s, nil
}

// Phase is one stage of a task's fixed lifecycle
type Phase string

const (
	PhaseResearch       Phase = "RESEARCH"
	PhasePlanning       Phase = "PLANNING"
	PhaseImplementation Phase = "IMPLEMENTATION"
	PhaseTesting        Phase = "TESTING"
	PhaseValidation     Phase = "VALIDATION"
	PhaseCompleted      Phase = "COMPLETED"
)

// Phases lists every phase in lifecycle order.
var Phases = []Phase{
	PhaseResearch,
	PhasePlanning,
	PhaseImplementation,
	PhaseTesting,
	PhaseValidation,
	PhaseCompleted,
}

// IsValid reports whether p is a known phase
func (p Phase) IsValid() bool {
	for _, known := range Phases {
		if p == known {
			return true
		}
	}
	return false
}

// ParsePhase normalizes a phase name. An empty value means RESEARCH,
// the first phase of every task.
func ParsePhase(raw string) (Phase, error) {
	p := Phase(strings.ToUpper(strings.TrimSpace(raw)))
	if p == "" {
		return PhaseResearch, nil
	}
	if !p.IsValid() {
		return "", fmt.Errorf("invalid phase %q", raw)
	}
	return p, nil
}

// PhaseEntry records one visit to a phase. Completed is nil while the
// phase is open.
type PhaseEntry struct {
	Phase           Phase      `json:"phase"`
	Started         time.Time  `json:"started"`
	Completed       *time.Time `json:"completed"`
	DurationMinutes *float64   `json:"duration_minutes,omitempty"`
}

// IsOpen reports whether the phase has not been completed yet
func (e PhaseEntry) IsOpen() bool {
	return e.Completed == nil
}

// CommitEntry is a commit as recorded in a task's state file.
type CommitEntry struct {
	SHA          string `json:"sha"`
	Message      string `json:"message"`
	Timestamp    string `json:"timestamp"`
	FilesChanged int    `json:"files_changed"`
}

// TaskRecord is a unit of implementation work read from a task folder.
// Commits holds the entries recorded in the state file; CommitRefs holds
// the commit hashes attached by the linker.
type TaskRecord struct {
	ID              string        `json:"id"`
	SemanticName    string        `json:"semantic_name"`
	Story           string        `json:"story"`
	Status          TaskStatus    `json:"status"`
	Phase           Phase         `json:"phase"`
	PhaseHistory    []PhaseEntry  `json:"phase_history"`
	Folder          string        `json:"folder"`
	Decisions       string        `json:"decisions"`
	FilesModified   []string      `json:"files_modified"`
	Commits         []CommitEntry `json:"commits"`
	CommitRefs      []string      `json:"commit_refs"`
	SubagentReports []string      `json:"subagent_reports"`
}

// NewTask returns a not-started task with empty collections.
func NewTask(id string) *TaskRecord {
	return &TaskRecord{
		ID:              id,
		Status:          TaskNotStarted,
		Phase:           PhaseResearch,
		PhaseHistory:    []PhaseEntry{},
		FilesModified:   []string{},
		Commits:         []CommitEntry{},
		CommitRefs:      []string{},
		SubagentReports: []string{},
	}
}

// OpenPhases returns the history entries that have no completion time.
func (t *TaskRecord) OpenPhases() []PhaseEntry {
	var open []PhaseEntry
	for _, e := range t.PhaseHistory {
		if e.IsOpen() {
			open = append(open, e)
		}
	}
	return open
}

// Validate checks the task invariants: at most one open phase, no
// duplicate modified file, and no open phase once the task is completed.
func (t *TaskRecord) Validate() error {
	var errs []error
	open := t.OpenPhases()
	if len(open) > 1 {
		names := make([]string, len(open))
		for i, e := range open {
			names[i] = string(e.Phase)
		}
		errs = append(errs, fmt.Errorf("%d open phases (%s)", len(open), strings.Join(names, ", ")))
	}
	if t.Status == TaskCompleted && len(open) > 0 {
		errs = append(errs, fmt.Errorf("status is completed but phase %s is still open", open[0].Phase))
	}
	seen := make(map[string]bool, len(t.FilesModified))
	for _, f := range t.FilesModified {
		if seen[f] {
			errs = append(errs, fmt.Errorf("duplicate files_modified entry %q", f))
			continue
		}
		seen[f] = true
	}
	return errors.Join(errs...)
}

// CommitRecord is one commit from version-control history.
type CommitRecord struct {
	Hash      string    `json:"hash"`
	Date      time.Time `json:"date"`
	Message   string    `json:"message"`
	StoryRefs []string  `json:"story_refs"`
	TaskRefs  []string  `json:"task_refs"`
	Files     []string  `json:"files"`
}

// Annotation is the metadata found in a source file's leading comments.
type Annotation struct {
	DesignPattern     string `json:"design_pattern"`
	ArchitectureLayer string `json:"architecture_layer"`
	Tradeoffs         string `json:"tradeoffs"`
}

// IsEmpty reports whether no annotation label was found
func (a Annotation) IsEmpty() bool {
	return a.DesignPattern == "" && a.ArchitectureLayer == "" && a.Tradeoffs == ""
}

// FileRecord is an annotated source file and the entities that touched it.
type FileRecord struct {
	Path string `json:"path"`
	Annotation
	Stories []string `json:"stories"`
	Tasks   []string `json:"tasks"`
	Commits []string `json:"commits"`
}

// NewFile returns a file record with empty relationship lists.
func NewFile(path string, a Annotation) *FileRecord {
	return &FileRecord{
		Path:       path,
		Annotation: a,
		Stories:    []string{},
		Tasks:      []string{},
		Commits:    []string{},
	}
}

// Metadata describes a snapshot.
type Metadata struct {
	Generated     time.Time `json:"generated"`
	SchemaVersion string    `json:"schema_version"`
	StoryFilter   string    `json:"story_filter,omitempty"`
	CurrentTask   string    `json:"current_task,omitempty"`
	TotalStories  int       `json:"total_stories"`
	TotalTasks    int       `json:"total_tasks"`
	TotalCommits  int       `json:"total_commits"`
	TotalFiles    int       `json:"total_files"`
}

// Snapshot is the complete, linked index at one point in time.
type Snapshot struct {
	Metadata Metadata                 `json:"metadata"`
	Stories  map[string]*StoryRecord  `json:"stories"`
	Tasks    map[string]*TaskRecord   `json:"tasks"`
	Commits  map[string]*CommitRecord `json:"commits"`
	Files    map[string]*FileRecord   `json:"files"`
}

// Warning sources
const (
	SourceWorkspace   = "workspace"
	SourceStories     = "stories"
	SourceTasks       = "tasks"
	SourceHistory     = "history"
	SourceAnnotations = "annotations"
	SourceStorage     = "storage"
)

// Warning is a recoverable problem found while scanning. Subject names the
// offending path or id.
type Warning struct {
	Source  string `json:"source"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	if w.Subject == "" {
		return fmt.Sprintf("%s: %s", w.Source, w.Message)
	}
	return fmt.Sprintf("%s: %s: %s", w.Source, w.Subject, w.Message)
}
