// Package annotations reads the design metadata that source files declare
// in their leading comments.
package annotations

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/sdlc-workflow/sdlc/internal/debug"
	"github.com/sdlc-workflow/sdlc/internal/types"
)

// DefaultHeaderLines is how much of a file is searched for labels
const DefaultHeaderLines = 50

// DefaultExtensions are the source file types that carry annotations
var DefaultExtensions = []string{".py", ".ts", ".svelte", ".tsx", ".jsx"}

var (
	designPatternLabel     = regexp.MustCompile(`(?i)Design Pattern:\s*(.+)`)
	architectureLayerLabel = regexp.MustCompile(`(?i)Architecture Layer:\s*(.+)`)
	tradeoffsLabel         = regexp.MustCompile(`(?i)Trade-offs?:\s*(.+)`)
)

// Options controls an annotation scan.
type Options struct {
	Root        string   // Paths are resolved against the project root
	Extensions  []string // DefaultExtensions when empty
	HeaderLines int      // DefaultHeaderLines when <= 0
}

// Result holds the annotated files found by Scan, keyed by path.
type Result struct {
	Files    map[string]*types.FileRecord
	Warnings []types.Warning
}

// Scan inspects each unique path. Files with another extension, files that
// no longer exist and files without any label are left out.
func Scan(opts Options, paths []string) Result {
	res := Result{Files: make(map[string]*types.FileRecord)}

	allowed := make(map[string]bool)
	exts := opts.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[ext] = true
	}

	unique := make(map[string]bool, len(paths))
	for _, p := range paths {
		unique[p] = true
	}
	sorted := make([]string, 0, len(unique))
	for p := range unique {
		sorted = append(sorted, p)
	}
	sort.Strings(sorted)

	for _, rel := range sorted {
		if !allowed[strings.ToLower(filepath.Ext(rel))] {
			continue
		}
		full := filepath.Join(opts.Root, filepath.FromSlash(rel))
		ann, err := ReadHeader(full, opts.HeaderLines)
		if err != nil {
			if !os.IsNotExist(err) {
				res.Warnings = append(res.Warnings, types.Warning{
					Source:  types.SourceAnnotations,
					Subject: rel,
					Message: fmt.Sprintf("failed to read header: %v", err),
				})
			}
			continue
		}
		if ann.IsEmpty() {
			continue
		}
		res.Files[rel] = types.NewFile(rel, ann)
	}

	debug.Logf("annotations: %d of %d files annotated\n", len(res.Files), len(sorted))
	return res
}

// ReadHeader extracts the annotation labels from the first maxLines lines
// of the file at path.
func ReadHeader(path string, maxLines int) (types.Annotation, error) {
	if maxLines <= 0 {
		maxLines = DefaultHeaderLines
	}
	f, err := os.Open(path) // #nosec G304 - path comes from commit history under the project root
	if err != nil {
		return types.Annotation{}, err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return types.Annotation{}, err
	}
	if info.IsDir() {
		return types.Annotation{}, fmt.Errorf("%s is a directory", path)
	}

	var header strings.Builder
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for n := 0; n < maxLines && scanner.Scan(); n++ {
		header.WriteString(scanner.Text())
		header.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return types.Annotation{}, err
	}
	return Parse(header.String()), nil
}

// Parse finds the first value of each label in text. Labels match
// case-insensitively; "Trade-off:" and "Trade-offs:" are both accepted.
func Parse(text string) types.Annotation {
	return types.Annotation{
		DesignPattern:     firstValue(designPatternLabel, text),
		ArchitectureLayer: firstValue(architectureLayerLabel, text),
		Tradeoffs:         firstValue(tradeoffsLabel, text),
	}
}

func firstValue(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(strings.TrimRight(m[1], "\r"))
}
