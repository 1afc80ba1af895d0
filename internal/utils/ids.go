package utils

import (
	"regexp"
	"strings"
)

var (
	// \d+ is greedy, so US-1 never matches inside US-10; trailing text such
	// as "US-001_fix" still yields US-001.
	storyRefPattern = regexp.MustCompile(`\bUS-\d+[A-Z]?`)
	taskRefPattern  = regexp.MustCompile(`\bTASK-\d+(?:-[\w-]+)?`)
	baseTaskPattern = regexp.MustCompile(`^TASK-\d+`)
	storyIDPattern  = regexp.MustCompile(`^US-\d+[A-Z]?$`)
	taskIDPattern   = regexp.MustCompile(`^TASK-\d+$`)
)

// IsStoryID reports whether s is a well-formed story id like "US-001" or "US-012B"
func IsStoryID(s string) bool {
	return storyIDPattern.MatchString(s)
}

// IsTaskID reports whether s is a well-formed task id like "TASK-001"
func IsTaskID(s string) bool {
	return taskIDPattern.MatchString(s)
}

// ExtractStoryRefs returns the story ids mentioned in text, in order of
// first appearance, without duplicates.
func ExtractStoryRefs(text string) []string {
	return uniqueMatches(storyRefPattern, text)
}

// ExtractTaskRefs returns the task references mentioned in text as written,
// so "TASK-001-auth" is kept whole. Use BaseTaskID to resolve them.
func ExtractTaskRefs(text string) []string {
	return uniqueMatches(taskRefPattern, text)
}

// BaseTaskID strips a descriptive suffix from a task reference:
// "TASK-001-auth" -> "TASK-001". Returns "" when ref does not start with a
// task id.
func BaseTaskID(ref string) string {
	return baseTaskPattern.FindString(ref)
}

// HasStoryToken reports whether text mentions storyID as a whole token.
// "US-1" does not match inside "US-10".
func HasStoryToken(text, storyID string) bool {
	for _, ref := range storyRefPattern.FindAllString(text, -1) {
		if ref == storyID {
			return true
		}
	}
	return false
}

// AppendUnique appends v to list unless already present. The second return
// value reports whether list changed.
func AppendUnique(list []string, v string) ([]string, bool) {
	for _, existing := range list {
		if existing == v {
			return list, false
		}
	}
	return append(list, v), true
}

// NormalizeRepoPath converts a path as git reports it to forward-slash form without
// a leading "./".
func NormalizeRepoPath(p string) string {
	p = strings.TrimSpace(strings.ReplaceAll(p, `\`, "/"))
	for strings.HasPrefix(p, "./") {
		p = p[2:]
	}
	return p
}

func uniqueMatches(re *regexp.Regexp, text string) []string {
	refs := []string{}
	for _, m := range re.FindAllString(text, -1) {
		refs, _ = AppendUnique(refs, m)
	}
	return refs
}
