package linker

import (
	"fmt"
	"sort"

	"github.com/sdlc-workflow/sdlc/internal/types"
	"github.com/sdlc-workflow/sdlc/internal/utils"
)

// Inconsistency is an edge present at one end of a relationship but not
// the other, or an edge pointing at a missing record.
type Inconsistency struct {
	Kind    string `json:"kind"` // "story", "task" or "file"
	Subject string `json:"subject"`
	Message string `json:"message"`
}

func (i Inconsistency) String() string {
	return fmt.Sprintf("%s %s: %s", i.Kind, i.Subject, i.Message)
}

// Verify checks that every edge in snap is navigable from both ends and
// points at an existing record. A snapshot produced by Link has none.
func Verify(snap *types.Snapshot) []Inconsistency {
	var out []Inconsistency
	report := func(kind, subject, format string, args ...interface{}) {
		out = append(out, Inconsistency{Kind: kind, Subject: subject, Message: fmt.Sprintf(format, args...)})
	}

	for _, sid := range sortedKeys(snap.Stories) {
		story := snap.Stories[sid]
		checkDuplicates(story.Tasks, func(v string) { report("story", sid, "task %s listed twice", v) })
		checkDuplicates(story.Commits, func(v string) { report("story", sid, "commit %s listed twice", v) })
		checkDuplicates(story.ImplementationFiles, func(v string) { report("story", sid, "file %s listed twice", v) })

		for _, tid := range story.Tasks {
			task, ok := snap.Tasks[tid]
			switch {
			case !ok:
				report("story", sid, "lists missing task %s", tid)
			case task.Story != sid:
				report("story", sid, "lists task %s which belongs to %q", tid, task.Story)
			}
		}
		for _, hash := range story.Commits {
			commit, ok := snap.Commits[hash]
			switch {
			case !ok:
				report("story", sid, "lists missing commit %s", hash)
			case !contains(commit.StoryRefs, sid):
				report("story", sid, "lists commit %s which does not reference it", hash)
			}
		}
		for _, path := range story.ImplementationFiles {
			file, ok := snap.Files[path]
			switch {
			case !ok:
				report("story", sid, "lists missing file %s", path)
			case !contains(file.Stories, sid):
				report("story", sid, "lists file %s which does not list it back", path)
			}
		}
	}

	for _, tid := range sortedKeys(snap.Tasks) {
		task := snap.Tasks[tid]
		checkDuplicates(task.CommitRefs, func(v string) { report("task", tid, "commit %s listed twice", v) })
		if story, ok := snap.Stories[task.Story]; ok && !contains(story.Tasks, tid) {
			report("task", tid, "belongs to %s but is missing from its task list", task.Story)
		}
		for _, hash := range task.CommitRefs {
			commit, ok := snap.Commits[hash]
			switch {
			case !ok:
				report("task", tid, "lists missing commit %s", hash)
			case !referencesTask(commit, tid):
				report("task", tid, "lists commit %s which does not reference it", hash)
			}
		}
	}

	for _, hash := range sortedKeys(snap.Commits) {
		commit := snap.Commits[hash]
		for _, sid := range commit.StoryRefs {
			if story, ok := snap.Stories[sid]; ok && !contains(story.Commits, hash) {
				report("story", sid, "is referenced by commit %s but does not list it", hash)
			}
		}
		for _, ref := range commit.TaskRefs {
			tid := utils.BaseTaskID(ref)
			if task, ok := snap.Tasks[tid]; ok && !contains(task.CommitRefs, hash) {
				report("task", tid, "is referenced by commit %s but does not list it", hash)
			}
		}
		for _, path := range commit.Files {
			if file, ok := snap.Files[path]; ok && !contains(file.Commits, hash) {
				report("file", path, "was touched by commit %s but does not list it", hash)
			}
		}
	}

	for _, path := range sortedKeys(snap.Files) {
		file := snap.Files[path]
		checkDuplicates(file.Commits, func(v string) { report("file", path, "commit %s listed twice", v) })
		for _, hash := range file.Commits {
			commit, ok := snap.Commits[hash]
			switch {
			case !ok:
				report("file", path, "lists missing commit %s", hash)
			case !contains(commit.Files, path):
				report("file", path, "lists commit %s which did not touch it", hash)
			}
		}
		for _, sid := range file.Stories {
			story, ok := snap.Stories[sid]
			switch {
			case !ok:
				report("file", path, "lists missing story %s", sid)
			case !contains(story.ImplementationFiles, path):
				report("file", path, "lists story %s which does not list it back", sid)
			}
		}
		for _, tid := range file.Tasks {
			if _, ok := snap.Tasks[tid]; !ok {
				report("file", path, "lists missing task %s", tid)
			}
		}
	}
	return out
}

func referencesTask(commit *types.CommitRecord, tid string) bool {
	for _, ref := range commit.TaskRefs {
		if utils.BaseTaskID(ref) == tid {
			return true
		}
	}
	return false
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func checkDuplicates(list []string, onDup func(string)) {
	seen := make(map[string]bool, len(list))
	for _, v := range list {
		if seen[v] {
			onDup(v)
		}
		seen[v] = true
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
