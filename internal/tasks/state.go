package tasks

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sdlc-workflow/sdlc/internal/types"
	"github.com/sdlc-workflow/sdlc/internal/utils"
)

// stateFile is STATE.json as written by the task-state tooling. Older
// records carry "story" instead of "story_id" and a bare phase string
// instead of the {current, history} object; both shapes are accepted.
type stateFile struct {
	TaskID        string          `json:"task_id"`
	SemanticName  string          `json:"semantic_name"`
	StoryID       string          `json:"story_id"`
	Story         string          `json:"story"`
	Status        string          `json:"status"`
	Phase         json.RawMessage `json:"phase"`
	FilesModified []string        `json:"files_modified"`
	Commits       []commitEntry   `json:"commits"`
}

type phaseState struct {
	Current string       `json:"current"`
	History []phaseEntry `json:"history"`
}

type phaseEntry struct {
	Phase           string   `json:"phase"`
	Started         string   `json:"started"`
	Completed       *string  `json:"completed"`
	DurationMinutes *float64 `json:"duration_minutes"`
}

type commitEntry struct {
	SHA          string `json:"sha"`
	Message      string `json:"message"`
	Timestamp    string `json:"timestamp"`
	FilesChanged int    `json:"files_changed"`
}

// timeLayouts are tried in order. Naive timestamps are read as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

// decodeState turns STATE.json content into a task record. folderName is
// used when the record carries no task_id. Any error means the record is
// malformed and must be skipped.
func decodeState(data []byte, folderName string) (*types.TaskRecord, error) {
	var st stateFile
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("malformed STATE.json: %w", err)
	}

	id := strings.TrimSpace(st.TaskID)
	if id == "" {
		// Folders are often named after the task: TASK-005-login-form
		id = utils.BaseTaskID(folderName)
		if id == "" {
			id = folderName
		}
	}
	task := types.NewTask(id)
	task.SemanticName = st.SemanticName
	task.Story = strings.TrimSpace(st.StoryID)
	if task.Story == "" {
		task.Story = strings.TrimSpace(st.Story)
	}

	status, err := types.ParseTaskStatus(st.Status)
	if err != nil {
		return nil, err
	}
	task.Status = status

	phase, history, err := decodePhase(st.Phase)
	if err != nil {
		return nil, err
	}
	task.Phase = phase
	task.PhaseHistory = history

	if st.FilesModified != nil {
		task.FilesModified = st.FilesModified
	}
	for _, c := range st.Commits {
		task.Commits = append(task.Commits, types.CommitEntry(c))
	}
	return task, nil
}

func decodePhase(raw json.RawMessage) (types.Phase, []types.PhaseEntry, error) {
	history := []types.PhaseEntry{}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return types.PhaseResearch, history, nil
	}

	switch raw[0] {
	case '"':
		var name string
		if err := json.Unmarshal(raw, &name); err != nil {
			return "", nil, fmt.Errorf("malformed phase: %w", err)
		}
		phase, err := types.ParsePhase(name)
		return phase, history, err
	case '{':
		var ps phaseState
		if err := json.Unmarshal(raw, &ps); err != nil {
			return "", nil, fmt.Errorf("malformed phase: %w", err)
		}
		phase, err := types.ParsePhase(ps.Current)
		if err != nil {
			return "", nil, err
		}
		for i, e := range ps.History {
			entry, err := decodePhaseEntry(e)
			if err != nil {
				return "", nil, fmt.Errorf("phase history entry %d: %w", i, err)
			}
			history = append(history, entry)
		}
		return phase, history, nil
	}
	return "", nil, fmt.Errorf("malformed phase: unexpected %s", raw)
}

func decodePhaseEntry(e phaseEntry) (types.PhaseEntry, error) {
	phase, err := types.ParsePhase(e.Phase)
	if err != nil {
		return types.PhaseEntry{}, err
	}
	started, err := parseTimestamp(e.Started)
	if err != nil {
		return types.PhaseEntry{}, fmt.Errorf("started: %w", err)
	}
	entry := types.PhaseEntry{Phase: phase, Started: started, DurationMinutes: e.DurationMinutes}
	if e.Completed != nil {
		completed, err := parseTimestamp(*e.Completed)
		if err != nil {
			return types.PhaseEntry{}, fmt.Errorf("completed: %w", err)
		}
		entry.Completed = &completed
	}
	return entry, nil
}
