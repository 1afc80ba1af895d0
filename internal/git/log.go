package git

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sdlc-workflow/sdlc/internal/types"
	"github.com/sdlc-workflow/sdlc/internal/utils"
)

// Header separators. Every commit header starts with recordSep so it can
// never be confused with a file path.
const (
	recordSep = "\x1e"
	fieldSep  = "\x1f"
)

// LogFormat is the --pretty format whose output ParseLog reads
const LogFormat = "%x1e%H%x1f%aI%x1f%s"

const maxLineSize = 1024 * 1024

// ParseLog reads log output. Each header opens a commit; the non-blank lines
// that follow are its files until the next header or EOF. A commit with no
// file lines gets an empty file list. File lines after a malformed header
// are discarded rather than attributed to the previous commit. A hash seen
// twice is merged into one record. Commits are returned in log order.
func ParseLog(r io.Reader) ([]*types.CommitRecord, []types.Warning) {
	var (
		commits  []*types.CommitRecord
		warnings []types.Warning
		byHash   = make(map[string]*types.CommitRecord)
		current  *types.CommitRecord
		lineNo   int
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")

		if strings.HasPrefix(line, recordSep) {
			commit, err := parseHeader(line[len(recordSep):])
			if err != nil {
				warnings = append(warnings, types.Warning{
					Source:  types.SourceHistory,
					Subject: fmt.Sprintf("line %d", lineNo),
					Message: fmt.Sprintf("skipping commit: %v", err),
				})
				current = nil
				continue
			}
			if existing, ok := byHash[commit.Hash]; ok {
				current = existing
				continue
			}
			byHash[commit.Hash] = commit
			commits = append(commits, commit)
			current = commit
			continue
		}

		path := utils.NormalizeRepoPath(line)
		if path == "" || current == nil {
			continue
		}
		current.Files, _ = utils.AppendUnique(current.Files, path)
	}
	if err := scanner.Err(); err != nil {
		warnings = append(warnings, types.Warning{
			Source:  types.SourceHistory,
			Subject: fmt.Sprintf("line %d", lineNo+1),
			Message: fmt.Sprintf("stopped reading log: %v", err),
		})
	}
	return commits, warnings
}

func parseHeader(header string) (*types.CommitRecord, error) {
	parts := strings.SplitN(header, fieldSep, 3)
	if len(parts) != 3 {
		return nil, fmt.Errorf("malformed header %q", header)
	}
	hash := strings.TrimSpace(parts[0])
	if !isHash(hash) {
		return nil, fmt.Errorf("malformed commit hash %q", hash)
	}
	date, err := time.Parse(time.RFC3339, strings.TrimSpace(parts[1]))
	if err != nil {
		return nil, fmt.Errorf("commit %s: malformed date %q", hash, parts[1])
	}
	message := strings.TrimSpace(parts[2])
	return &types.CommitRecord{
		Hash:      hash,
		Date:      date,
		Message:   message,
		StoryRefs: utils.ExtractStoryRefs(message),
		TaskRefs:  utils.ExtractTaskRefs(message),
		Files:     []string{},
	}, nil
}

func isHash(s string) bool {
	if len(s) < 7 {
		return false
	}
	for _, c := range s {
		if !strings.ContainsRune("0123456789abcdef", c) {
			return false
		}
	}
	return true
}

// FormatLog renders commits in the format ParseLog reads.
func FormatLog(commits []*types.CommitRecord) []byte {
	var buf bytes.Buffer
	for i, c := range commits {
		if i > 0 {
			buf.WriteByte('\n')
		}
		fmt.Fprintf(&buf, "%s%s%s%s%s%s\n", recordSep, c.Hash, fieldSep, c.Date.Format(time.RFC3339), fieldSep, c.Message)
		for _, f := range c.Files {
			buf.WriteString(f)
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes()
}

// StaticLog is a Source serving fixed log output
type StaticLog []byte

func (s StaticLog) Log(context.Context) ([]byte, error) {
	return s, nil
}
