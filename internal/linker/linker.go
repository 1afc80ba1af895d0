// Package linker computes the bidirectional edges between stories, tasks,
// commits and annotated files.
package linker

import (
	"sort"

	"github.com/sdlc-workflow/sdlc/internal/debug"
	"github.com/sdlc-workflow/sdlc/internal/types"
	"github.com/sdlc-workflow/sdlc/internal/utils"
)

// Stats counts the edges added by one Link pass. A repeated pass over the
// same records adds none.
type Stats struct {
	TaskStory   int
	CommitStory int
	CommitTask  int
	CommitFile  int
}

// Total returns the number of edges added
func (s Stats) Total() int {
	return s.TaskStory + s.CommitStory + s.CommitTask + s.CommitFile
}

// resolved holds the existing stories and tasks a commit refers to
type resolved struct {
	stories []string
	tasks   []string
}

// Link mutates the four record sets so every relationship is navigable from
// both ends. Steps run in a fixed order (task to story, then commit to
// story and task, then commit to file) because the file step reuses the
// references resolved for each commit. Only ids present in the record sets
// receive edges, and only files present in files are linked. Every insert
// is deduplicated, so Link is idempotent.
func Link(stories map[string]*types.StoryRecord, tasks map[string]*types.TaskRecord,
	commits map[string]*types.CommitRecord, files map[string]*types.FileRecord) Stats {
	var stats Stats
	var added bool

	for _, id := range sortedTaskIDs(tasks) {
		task := tasks[id]
		story, ok := stories[task.Story]
		if !ok {
			continue
		}
		story.Tasks, added = utils.AppendUnique(story.Tasks, task.ID)
		stats.TaskStory += count(added)
	}

	ordered := sortedCommits(commits)
	refs := make(map[string]resolved, len(ordered))
	for _, commit := range ordered {
		var r resolved
		for _, sid := range commit.StoryRefs {
			story, ok := stories[sid]
			if !ok {
				continue
			}
			r.stories, _ = utils.AppendUnique(r.stories, sid)
			story.Commits, added = utils.AppendUnique(story.Commits, commit.Hash)
			stats.CommitStory += count(added)
		}
		for _, ref := range commit.TaskRefs {
			tid := utils.BaseTaskID(ref)
			task, ok := tasks[tid]
			if !ok {
				continue
			}
			r.tasks, _ = utils.AppendUnique(r.tasks, tid)
			task.CommitRefs, added = utils.AppendUnique(task.CommitRefs, commit.Hash)
			stats.CommitTask += count(added)
		}
		refs[commit.Hash] = r
	}

	for _, commit := range ordered {
		r := refs[commit.Hash]
		for _, path := range commit.Files {
			file, ok := files[path]
			if !ok {
				continue
			}
			file.Commits, added = utils.AppendUnique(file.Commits, commit.Hash)
			stats.CommitFile += count(added)
			for _, sid := range r.stories {
				file.Stories, _ = utils.AppendUnique(file.Stories, sid)
				story := stories[sid]
				story.ImplementationFiles, _ = utils.AppendUnique(story.ImplementationFiles, path)
			}
			for _, tid := range r.tasks {
				file.Tasks, _ = utils.AppendUnique(file.Tasks, tid)
			}
		}
	}

	debug.Logf("linker: added %d edges\n", stats.Total())
	return stats
}

func count(added bool) int {
	if added {
		return 1
	}
	return 0
}

func sortedTaskIDs(tasks map[string]*types.TaskRecord) []string {
	ids := make([]string, 0, len(tasks))
	for id := range tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// sortedCommits orders commits oldest first, ties broken by hash
func sortedCommits(commits map[string]*types.CommitRecord) []*types.CommitRecord {
	ordered := make([]*types.CommitRecord, 0, len(commits))
	for _, c := range commits {
		ordered = append(ordered, c)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if !ordered[i].Date.Equal(ordered[j].Date) {
			return ordered[i].Date.Before(ordered[j].Date)
		}
		return ordered[i].Hash < ordered[j].Hash
	})
	return ordered
}
