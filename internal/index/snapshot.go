package index

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
	"golang.org/x/mod/semver"

	"github.com/sdlc-workflow/sdlc/internal/types"
)

// ErrSnapshotIncompatible means a snapshot was written with a schema major
// version this build cannot read.
var ErrSnapshotIncompatible = errors.New("incompatible snapshot schema")

// Write stores snap at path as indented JSON. Missing parent directories
// are created. The file is replaced atomically, so readers see either the
// previous snapshot or the new one, never a partial write.
func Write(path string, snap *types.Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write snapshot %s: %w", path, err)
	}
	// atomic.WriteFile keeps the temp file's 0600 mode on new files
	if err := os.Chmod(path, 0644); err != nil {
		return fmt.Errorf("failed to set snapshot permissions: %w", err)
	}
	return nil
}

// Load reads a snapshot written by Write. Snapshots without a schema
// version predate versioning and are accepted; a different major version
// yields ErrSnapshotIncompatible.
func Load(path string) (*types.Snapshot, error) {
	data, err := os.ReadFile(path) // #nosec G304 - snapshot path chosen by the caller
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	var snap types.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot %s: %w", path, err)
	}
	if err := CheckSchema(snap.Metadata.SchemaVersion); err != nil {
		return nil, err
	}
	if snap.Stories == nil {
		snap.Stories = map[string]*types.StoryRecord{}
	}
	if snap.Tasks == nil {
		snap.Tasks = map[string]*types.TaskRecord{}
	}
	if snap.Commits == nil {
		snap.Commits = map[string]*types.CommitRecord{}
	}
	if snap.Files == nil {
		snap.Files = map[string]*types.FileRecord{}
	}
	return &snap, nil
}

// CheckSchema reports whether a snapshot schema version can be read by
// this build. Only the major version has to match.
func CheckSchema(version string) error {
	if version == "" {
		return nil
	}
	v := version
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return fmt.Errorf("%w: malformed schema version %q", ErrSnapshotIncompatible, version)
	}
	if semver.Major(v) != semver.Major("v"+types.SchemaVersion) {
		return fmt.Errorf("%w: snapshot schema %s, supported %s", ErrSnapshotIncompatible, version, types.SchemaVersion)
	}
	return nil
}
