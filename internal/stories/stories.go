// Package stories extracts StoryRecords from the markdown story documents
// under .sdlc-workflow/stories.
package stories

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sdlc-workflow/sdlc/internal/debug"
	"github.com/sdlc-workflow/sdlc/internal/types"
)

// TemplateName is the story template, never indexed
const TemplateName = "TEMPLATE.md"

const filePattern = "US-*.md"

var (
	fileIDPattern   = regexp.MustCompile(`US-\d+[A-Z]?`)
	titlePattern    = regexp.MustCompile(`# User Story: US-\d+[A-Z]? - (.+)`)
	statusPattern   = regexp.MustCompile(`\*\*Status:\*\* (.+)`)
	domainPattern   = regexp.MustCompile(`\*\*Domain:\*\* (.+)`)
	criteriaSection = regexp.MustCompile(`(?s)## Acceptance Criteria\s+(.*?)(?:\n## |\z)`)
	criteriaItem    = regexp.MustCompile(`- \[ \] \*\*AC-\d+:\*\* (.+)`)
)

// Options controls a story scan.
type Options struct {
	Root   string // Project root; story file paths are recorded relative to it
	Dir    string // Directory searched recursively for US-*.md
	Filter string // When set, only the story with this id is kept
}

// Result holds the stories found by Scan, keyed by id.
type Result struct {
	Stories  map[string]*types.StoryRecord
	Warnings []types.Warning
}

// frontMatter is the optional YAML block at the top of a story document
type frontMatter struct {
	Title  string `yaml:"title"`
	Status string `yaml:"status"`
	Domain string `yaml:"domain"`
}

// Scan walks opts.Dir for story documents. A missing directory yields an
// empty result. Documents are visited in lexical path order, so when two
// documents carry the same id the first one wins.
func Scan(opts Options) Result {
	res := Result{Stories: make(map[string]*types.StoryRecord)}

	if info, err := os.Stat(opts.Dir); err != nil || !info.IsDir() {
		debug.Logf("stories: %s not found, skipping\n", opts.Dir)
		return res
	}

	var paths []string
	err := filepath.WalkDir(opts.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			res.warn(path, fmt.Sprintf("cannot read: %v", err))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || d.Name() == TemplateName {
			return nil
		}
		if ok, _ := filepath.Match(filePattern, d.Name()); ok {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		res.warn(opts.Dir, fmt.Sprintf("walk failed: %v", err))
	}
	sort.Strings(paths)

	seen := make(map[string]string)
	for _, path := range paths {
		rel := relPath(opts.Root, path)
		story, warnings := ParseFile(path, rel)
		res.Warnings = append(res.Warnings, warnings...)
		if story == nil {
			continue
		}
		if opts.Filter != "" && story.ID != opts.Filter {
			continue
		}
		if first, dup := seen[story.ID]; dup {
			res.warn(rel, fmt.Sprintf("duplicate story id %s (already defined in %s), skipping", story.ID, first))
			continue
		}
		seen[story.ID] = rel
		res.Stories[story.ID] = story
	}

	debug.Logf("stories: found %d in %s\n", len(res.Stories), opts.Dir)
	return res
}

// ParseFile reads one story document. rel is the path recorded in the
// story's File field. A nil story means the document was skipped; the
// warnings say why.
func ParseFile(path, rel string) (*types.StoryRecord, []types.Warning) {
	id := fileIDPattern.FindString(filepath.Base(path))
	if id == "" {
		return nil, []types.Warning{{Source: types.SourceStories, Subject: rel, Message: "file name carries no story id, skipping"}}
	}

	data, err := os.ReadFile(path) // #nosec G304 - path comes from the stories directory walk
	if err != nil {
		return nil, []types.Warning{{Source: types.SourceStories, Subject: rel, Message: fmt.Sprintf("failed to read: %v", err)}}
	}

	story, fmErr := Parse(id, string(data))
	story.File = rel
	var warnings []types.Warning
	if fmErr != nil {
		warnings = append(warnings, types.Warning{Source: types.SourceStories, Subject: rel, Message: fmt.Sprintf("ignoring front matter: %v", fmErr)})
	}
	return story, warnings
}

// Parse extracts a story from document content. Labeled lines take
// precedence over front matter; fields found in neither keep their
// fallback values. The returned error reports unparsable front matter,
// which is otherwise ignored.
func Parse(id, content string) (*types.StoryRecord, error) {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	story := types.NewStory(id)

	fm, body, fmErr := splitFrontMatter(content)
	if fm.Title != "" {
		story.Title = fm.Title
	}
	if fm.Status != "" {
		story.Status = fm.Status
	}
	if fm.Domain != "" {
		story.Domain = fm.Domain
	}

	if title := parseTitle(body); title != "" {
		story.Title = title
	}
	if status := parseStatus(body); status != "" {
		story.Status = status
	}
	if domain := parseDomain(body); domain != "" {
		story.Domain = domain
	}
	story.AcceptanceCriteria = parseCriteria(body)
	return story, fmErr
}

func parseTitle(content string) string {
	return firstGroup(titlePattern, content)
}

func parseStatus(content string) string {
	return firstGroup(statusPattern, content)
}

func parseDomain(content string) string {
	return firstGroup(domainPattern, content)
}

// parseCriteria returns the open "- [ ] **AC-n:**" items of the Acceptance
// Criteria section in document order. Ticked items are not collected.
func parseCriteria(content string) []string {
	criteria := []string{}
	m := criteriaSection.FindStringSubmatch(content)
	if m == nil {
		return criteria
	}
	for _, item := range criteriaItem.FindAllStringSubmatch(m[1], -1) {
		if text := strings.TrimSpace(item[1]); text != "" {
			criteria = append(criteria, text)
		}
	}
	return criteria
}

func firstGroup(re *regexp.Regexp, content string) string {
	m := re.FindStringSubmatch(content)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// splitFrontMatter separates a leading "---" delimited YAML block from the
// document body. Without a complete block the whole content is the body.
func splitFrontMatter(content string) (frontMatter, string, error) {
	var fm frontMatter
	if !strings.HasPrefix(content, "---\n") {
		return fm, content, nil
	}
	rest := content[len("---\n"):]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return fm, content, nil
	}
	block := rest[:end]
	body := rest[end+len("\n---"):]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	} else {
		body = ""
	}
	if err := yaml.Unmarshal([]byte(block), &fm); err != nil {
		return frontMatter{}, body, err
	}
	return fm, body, nil
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
	r.Warnings = append(r.Warnings, types.Warning{Source: types.SourceStories, Subject: subject, Message: msg})
}
