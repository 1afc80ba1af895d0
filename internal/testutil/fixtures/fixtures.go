// Package fixtures builds realistic SDLC project trees for tests and
// benchmarks: story documents, task folders, annotated source files and
// the matching commit history.
package fixtures

import (
	"crypto/sha1" // #nosec G505 - fake commit hashes only
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sdlc-workflow/sdlc/internal/types"
	"github.com/sdlc-workflow/sdlc/internal/utils"
)

// domains used across all fixtures
var commonDomains = []string{
	"auth",
	"billing",
	"search",
	"notifications",
	"reporting",
}

// story titles for realistic data
var storyTitles = []string{
	"User Login",
	"Password Reset Flow",
	"Two-Factor Authentication",
	"Invoice Export",
	"Full-Text Search",
	"Email Digest",
	"Usage Dashboard",
	"Session Management",
}

// design patterns placed in file headers
var designPatterns = []string{
	"Repository",
	"Service Layer",
	"Adapter",
	"Observer",
	"Strategy",
}

var layers = []string{"Domain", "Application", "Infrastructure", "Presentation"}

// Epoch is the author date of the first generated commit
var Epoch = time.Date(2025, 11, 1, 9, 0, 0, 0, time.UTC)

// Project is a temporary project tree with the default SDLC layout.
type Project struct {
	tb   testing.TB
	Root string
}

// NewProject creates .claude/tasks and .sdlc-workflow/stories under a fresh
// temporary directory.
func NewProject(tb testing.TB) *Project {
	tb.Helper()
	root, err := filepath.EvalSymlinks(tb.TempDir())
	if err != nil {
		tb.Fatalf("failed to resolve temp dir: %v", err)
	}
	p := &Project{tb: tb, Root: root}
	p.mkdir(p.StoriesDir())
	p.mkdir(p.TasksDir())
	return p
}

func (p *Project) StoriesDir() string {
	return filepath.Join(p.Root, ".sdlc-workflow", "stories")
}

func (p *Project) TasksDir() string {
	return filepath.Join(p.Root, ".claude", "tasks")
}

func (p *Project) IndexFile() string {
	return filepath.Join(p.Root, ".sdlc-workflow", ".index", "sdlc-index.json")
}

// Story describes a story document.
type Story struct {
	ID       string
	Title    string
	Status   string
	Domain   string
	Criteria []string
	Subdir   string // Directory below the stories root, e.g. "auth"
	Slug     string // File name suffix after the id, e.g. "user-login"
}

// StoryMarkdown renders s in the story template format. Empty fields are
// left out of the document.
func StoryMarkdown(s Story) string {
	var b strings.Builder
	if s.Title != "" {
		fmt.Fprintf(&b, "# User Story: %s - %s\n\n", s.ID, s.Title)
	} else {
		fmt.Fprintf(&b, "# %s\n\n", s.ID)
	}
	if s.Status != "" {
		fmt.Fprintf(&b, "**Status:** %s\n", s.Status)
	}
	if s.Domain != "" {
		fmt.Fprintf(&b, "**Domain:** %s\n", s.Domain)
	}
	b.WriteString("\n## Description\n\nAs a user I want this feature so that I can get work done.\n\n")
	b.WriteString("## Acceptance Criteria\n\n")
	for i, c := range s.Criteria {
		fmt.Fprintf(&b, "- [ ] **AC-%d:** %s\n", i+1, c)
	}
	b.WriteString("\n## Notes\n\n- [ ] **AC-99:** not a criterion, outside the section\n")
	return b.String()
}

// AddStory writes a story document and returns its path relative to Root.
func (p *Project) AddStory(s Story) string {
	p.tb.Helper()
	name := s.ID
	if s.Slug != "" {
		name += "-" + s.Slug
	}
	rel := filepath.ToSlash(filepath.Join(".sdlc-workflow", "stories", s.Subdir, name+".md"))
	p.WriteFile(rel, StoryMarkdown(s))
	return rel
}

// PhaseVisit is one phase history entry. A nil Completed leaves the phase open.
type PhaseVisit struct {
	Phase     string
	Started   time.Time
	Completed *time.Time
}

// Task describes a task folder.
type Task struct {
	ID            string
	SemanticName  string
	Story         string
	Status        string
	Phase         string
	History       []PhaseVisit
	FilesModified []string
	Commits       []types.CommitEntry
	Decisions     string
	Reports       []string // Report names written to subagent-reports/
	Folder        string   // Defaults to ID
}

// StateJSON renders the STATE.json content of t in the current format.
func StateJSON(t Task) []byte {
	history := make([]map[string]any, 0, len(t.History))
	for _, h := range t.History {
		entry := map[string]any{
			"phase":     h.Phase,
			"started":   h.Started.Format(time.RFC3339Nano),
			"completed": nil,
		}
		if h.Completed != nil {
			entry["completed"] = h.Completed.Format(time.RFC3339Nano)
			entry["duration_minutes"] = h.Completed.Sub(h.Started).Minutes()
		}
		history = append(history, entry)
	}
	files := t.FilesModified
	if files == nil {
		files = []string{}
	}
	commits := t.Commits
	if commits == nil {
		commits = []types.CommitEntry{}
	}
	state := map[string]any{
		"task_id":       t.ID,
		"story_id":      t.Story,
		"semantic_name": t.SemanticName,
		"task_type":     "feat",
		"branch":        fmt.Sprintf("feat/%s-%s", t.ID, t.Story),
		"status":        t.Status,
		"phase": map[string]any{
			"current": t.Phase,
			"history": history,
		},
		"timestamps": map[string]any{
			"created":       Epoch.Format(time.RFC3339),
			"started":       nil,
			"last_accessed": Epoch.Format(time.RFC3339),
			"completed":     nil,
		},
		"files_modified": files,
		"commits":        commits,
		"domains":        []string{"unknown"},
	}
	data, _ := json.MarshalIndent(state, "", "  ")
	return data
}

// AddTask writes a task folder and returns its path relative to Root.
func (p *Project) AddTask(t Task) string {
	p.tb.Helper()
	folder := t.Folder
	if folder == "" {
		folder = t.ID
	}
	rel := filepath.ToSlash(filepath.Join(".claude", "tasks", folder))
	p.WriteFile(rel+"/STATE.json", string(StateJSON(t)))
	if t.Decisions != "" {
		p.WriteFile(rel+"/decisions.md", t.Decisions)
	}
	for _, r := range t.Reports {
		p.WriteFile(rel+"/subagent-reports/"+r, "# Report\n")
	}
	return rel
}

// WriteTaskState writes raw STATE.json content into a task folder.
func (p *Project) WriteTaskState(folder, content string) {
	p.tb.Helper()
	p.WriteFile(filepath.ToSlash(filepath.Join(".claude", "tasks", folder, "STATE.json")), content)
}

// SetCurrentTask writes the current-task pointer
func (p *Project) SetCurrentTask(id string) {
	p.tb.Helper()
	p.WriteFile(".claude/tasks/current.txt", id+"\n")
}

// AnnotatedSource returns a source file whose header carries the three
// annotation labels.
func AnnotatedSource(pattern, layer, tradeoffs string) string {
	return fmt.Sprintf("\"\"\"\nDesign Pattern: %s\nArchitecture Layer: %s\nTrade-offs: %s\n\"\"\"\n\nimport os\n", pattern, layer, tradeoffs)
}

// WriteFile writes content at a slash-separated path relative to Root.
func (p *Project) WriteFile(rel, content string) {
	p.tb.Helper()
	path := filepath.Join(p.Root, filepath.FromSlash(rel))
	p.mkdir(filepath.Dir(path))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		p.tb.Fatalf("failed to write %s: %v", rel, err)
	}
}

func (p *Project) mkdir(dir string) {
	p.tb.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		p.tb.Fatalf("failed to create %s: %v", dir, err)
	}
}

// Hash returns a deterministic 40-character commit hash for seed
func Hash(seed string) string {
	sum := sha1.Sum([]byte(seed)) // #nosec G401 - not used for security
	return hex.EncodeToString(sum[:])
}

// Commit builds a commit record with references extracted the way the
// history scanner does.
func Commit(seed string, date time.Time, message string, files ...string) *types.CommitRecord {
	if files == nil {
		files = []string{}
	}
	return &types.CommitRecord{
		Hash:      Hash(seed),
		Date:      date,
		Message:   message,
		StoryRefs: utils.ExtractStoryRefs(message),
		TaskRefs:  utils.ExtractTaskRefs(message),
		Files:     files,
	}
}

// DataConfig controls the shape of a generated corpus
type DataConfig struct {
	Stories        int     // number of story documents
	TasksPerStory  int     // task folders per story
	CommitsPerTask int     // commits referencing each task
	FilesPerCommit int     // files touched by each commit
	AnnotatedRatio float64 // share of touched files carrying annotations
	OrphanRatio    float64 // share of commits referencing unknown stories
	RandSeed       int64   // random seed for reproducibility
}

// DefaultSmallConfig returns a corpus that is quick enough for unit tests
func DefaultSmallConfig() DataConfig {
	return DataConfig{
		Stories:        5,
		TasksPerStory:  2,
		CommitsPerTask: 3,
		FilesPerCommit: 2,
		AnnotatedRatio: 0.5,
		OrphanRatio:    0.1,
		RandSeed:       42,
	}
}

// DefaultLargeConfig returns a corpus sized like a busy multi-year project
func DefaultLargeConfig() DataConfig {
	return DataConfig{
		Stories:        200,
		TasksPerStory:  5,
		CommitsPerTask: 8,
		FilesPerCommit: 4,
		AnnotatedRatio: 0.4,
		OrphanRatio:    0.05,
		RandSeed:       43,
	}
}

// Generate writes stories, tasks and source files into p and returns the
// commits that reference them, oldest first.
func (p *Project) Generate(cfg DataConfig) []*types.CommitRecord {
	p.tb.Helper()
	rng := rand.New(rand.NewSource(cfg.RandSeed)) // #nosec G404 - deterministic test data

	var commits []*types.CommitRecord
	written := make(map[string]bool)
	taskNum := 0
	date := Epoch

	for s := 1; s <= cfg.Stories; s++ {
		storyID := fmt.Sprintf("US-%03d", s)
		domain := commonDomains[rng.Intn(len(commonDomains))]
		p.AddStory(Story{
			ID:       storyID,
			Title:    fmt.Sprintf("%s %d", storyTitles[(s-1)%len(storyTitles)], s),
			Status:   "IN_PROGRESS",
			Domain:   domain,
			Criteria: []string{"Happy path works", "Errors are reported"},
			Subdir:   domain,
			Slug:     strings.ToLower(strings.ReplaceAll(storyTitles[(s-1)%len(storyTitles)], " ", "-")),
		})

		for k := 0; k < cfg.TasksPerStory; k++ {
			taskNum++
			taskID := fmt.Sprintf("TASK-%03d", taskNum)
			started := date
			p.AddTask(Task{
				ID:           taskID,
				SemanticName: fmt.Sprintf("%s-part-%d", domain, k+1),
				Story:        storyID,
				Status:       "in_progress",
				Phase:        "IMPLEMENTATION",
				History:      []PhaseVisit{{Phase: "IMPLEMENTATION", Started: started}},
			})

			for c := 0; c < cfg.CommitsPerTask; c++ {
				date = date.Add(time.Hour)
				ref := storyID
				if rng.Float64() < cfg.OrphanRatio {
					ref = fmt.Sprintf("US-%03d", cfg.Stories+1+rng.Intn(100))
				}
				var files []string
				for f := 0; f < cfg.FilesPerCommit; f++ {
					path := fmt.Sprintf("apps/%s/module_%d.py", domain, rng.Intn(cfg.Stories*2+1))
					files = append(files, path)
					if written[path] {
						continue
					}
					written[path] = true
					if rng.Float64() < cfg.AnnotatedRatio {
						p.WriteFile(path, AnnotatedSource(
							designPatterns[rng.Intn(len(designPatterns))],
							layers[rng.Intn(len(layers))],
							"simplicity over flexibility"))
					} else {
						p.WriteFile(path, "import os\n")
					}
				}
				msg := fmt.Sprintf("feat: step %d (%s, %s-%s)", c+1, ref, taskID, domain)
				commits = append(commits, Commit(fmt.Sprintf("%s-%d", taskID, c), date, msg, files...))
			}
		}
	}
	return commits
}
