// Package sqlite mirrors the context index into a SQLite database so it can
// be queried with SQL. The JSON snapshot stays the source of truth; the
// mirror is replaced wholesale on every build.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	sqlite3 "github.com/ncruces/go-sqlite3"
	// Import SQLite driver
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/tetratelabs/wazero"

	"github.com/sdlc-workflow/sdlc/internal/debug"
	"github.com/sdlc-workflow/sdlc/internal/types"
	"github.com/sdlc-workflow/sdlc/internal/utils"
)

// Entity kinds used in the links table
const (
	KindStory  = "story"
	KindTask   = "task"
	KindCommit = "commit"
	KindFile   = "file"
)

// Metadata keys written by ReplaceSnapshot
const (
	MetaGenerated     = "generated"
	MetaSchemaVersion = "schema_version"
	MetaStoryFilter   = "story_filter"
	MetaCurrentTask   = "current_task"
	MetaTotalStories  = "total_stories"
	MetaTotalTasks    = "total_tasks"
	MetaTotalCommits  = "total_commits"
	MetaTotalFiles    = "total_files"
)

// SQLiteStorage holds the mirror database
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
	closed atomic.Bool // Tracks whether Close() has been called
}

// setupWASMCache configures WASM compilation caching to reduce SQLite startup time.
// Returns the cache directory path (empty string if using in-memory cache).
//
// The cache lives under os.UserCacheDir()/sdlc/wasm; wazero keys entries by
// its own version, so stale entries are ignored rather than reused.
func setupWASMCache() string {
	cacheDir := ""
	if userCache, err := os.UserCacheDir(); err == nil {
		cacheDir = filepath.Join(userCache, "sdlc", "wasm")
	}

	var cache wazero.CompilationCache
	if cacheDir != "" {
		if c, err := wazero.NewCompilationCacheWithDir(cacheDir); err == nil {
			cache = c
		}
	}

	// Fallback to in-memory cache if dir creation failed
	if cache == nil {
		cache = wazero.NewCompilationCache()
		cacheDir = ""
	}

	sqlite3.RuntimeConfig = wazero.NewRuntimeConfig().WithCompilationCache(cache)
	return cacheDir
}

func init() {
	_ = setupWASMCache()
}

// New opens (creating if needed) the mirror database at path. A database
// whose schema does not match is dropped and recreated.
func New(path string) (*SQLiteStorage, error) {
	var connStr string
	if path == ":memory:" {
		// WAL mode doesn't work with shared in-memory databases, so use DELETE mode
		connStr = "file:memdb?mode=memory&cache=shared&_pragma=journal_mode(DELETE)&_pragma=busy_timeout(30000)"
	} else if strings.HasPrefix(path, "file:") {
		connStr = path
		if !strings.Contains(path, "_pragma=busy_timeout") {
			connStr += "&_pragma=busy_timeout(30000)"
		}
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		connStr = "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(30000)"
	}

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// In-memory databases are isolated per connection
	isInMemory := path == ":memory:" ||
		(strings.HasPrefix(path, "file:") && strings.Contains(path, "mode=memory"))
	if isInMemory {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// CREATE INDEX fails on a legacy table missing the indexed column, so a
	// schema error is handled like a failed probe
	if _, execErr := db.Exec(schema); execErr != nil {
		err = fmt.Errorf("%w: %v", ErrSchemaIncompatible, execErr)
	} else {
		err = verifySchemaCompatibility(db)
	}
	if err != nil {
		debug.Logf("Recreating index mirror: %v\n", err)
		if resetErr := resetSchema(db); resetErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to recreate incompatible mirror: %w (original: %v)", resetErr, err)
		}
		if err := verifySchemaCompatibility(db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("schema probe failed after recreating mirror: %w", err)
		}
	}

	absPath := path
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		absPath, err = filepath.Abs(path)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to get absolute path: %w", err)
		}
	}

	return &SQLiteStorage{db: db, dbPath: absPath}, nil
}

// ReplaceSnapshot clears the mirror and stores snap in a single
// transaction. Readers see either the previous snapshot or the new one.
func (s *SQLiteStorage) ReplaceSnapshot(ctx context.Context, snap *types.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range expectedTables() {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	links, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO links (source_kind, source_id, target_kind, target_id, position)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare links insert: %w", err)
	}
	defer func() { _ = links.Close() }()

	insertLinks := func(kind, id, targetKind string, targets []string) error {
		for i, target := range targets {
			if _, err := links.ExecContext(ctx, kind, id, targetKind, target, i); err != nil {
				return fmt.Errorf("failed to insert %s %s link: %w", kind, id, err)
			}
		}
		return nil
	}

	if err := insertStories(ctx, tx, snap.Stories, insertLinks); err != nil {
		return err
	}
	if err := insertTasks(ctx, tx, snap.Tasks, insertLinks); err != nil {
		return err
	}
	if err := insertCommits(ctx, tx, snap, insertLinks); err != nil {
		return err
	}
	if err := insertFiles(ctx, tx, snap.Files, insertLinks); err != nil {
		return err
	}
	if err := insertMetadata(ctx, tx, snap.Metadata); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	debug.Logf("Mirrored index into %s\n", s.dbPath)
	return nil
}

type linkWriter func(kind, id, targetKind string, targets []string) error

func insertStories(ctx context.Context, tx *sql.Tx, stories map[string]*types.StoryRecord, link linkWriter) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO stories (id, title, status, domain, file, acceptance_criteria)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare stories insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, id := range sortedKeys(stories) {
		st := stories[id]
		criteria, err := encodeJSON(st.AcceptanceCriteria)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, st.ID, st.Title, st.Status, st.Domain, st.File, criteria); err != nil {
			return fmt.Errorf("failed to insert story %s: %w", id, err)
		}
		if err := link(KindStory, id, KindTask, st.Tasks); err != nil {
			return err
		}
		if err := link(KindStory, id, KindCommit, st.Commits); err != nil {
			return err
		}
		if err := link(KindStory, id, KindFile, st.ImplementationFiles); err != nil {
			return err
		}
	}
	return nil
}

func insertTasks(ctx context.Context, tx *sql.Tx, tasks map[string]*types.TaskRecord, link linkWriter) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tasks (id, semantic_name, story, status, phase, folder, decisions,
			phase_history, files_modified, subagent_reports)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare tasks insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, id := range sortedKeys(tasks) {
		t := tasks[id]
		history, err := encodeJSON(t.PhaseHistory)
		if err != nil {
			return err
		}
		files, err := encodeJSON(t.FilesModified)
		if err != nil {
			return err
		}
		reports, err := encodeJSON(t.SubagentReports)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, t.ID, t.SemanticName, t.Story, string(t.Status), string(t.Phase),
			t.Folder, t.Decisions, history, files, reports); err != nil {
			return fmt.Errorf("failed to insert task %s: %w", id, err)
		}
		if t.Story != "" {
			if err := link(KindTask, id, KindStory, []string{t.Story}); err != nil {
				return err
			}
		}
		if err := link(KindTask, id, KindCommit, t.CommitRefs); err != nil {
			return err
		}
	}
	return nil
}

// insertCommits stores commits with edges to the stories and tasks they
// resolve to. Decorated or unknown references in the message are not edges.
func insertCommits(ctx context.Context, tx *sql.Tx, snap *types.Snapshot, link linkWriter) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO commits (hash, date, message) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare commits insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, hash := range sortedKeys(snap.Commits) {
		c := snap.Commits[hash]
		if _, err := stmt.ExecContext(ctx, c.Hash, c.Date.Format(time.RFC3339), c.Message); err != nil {
			return fmt.Errorf("failed to insert commit %s: %w", hash, err)
		}
		if err := link(KindCommit, hash, KindStory, resolvedStories(snap, c.StoryRefs)); err != nil {
			return err
		}
		if err := link(KindCommit, hash, KindTask, resolvedTasks(snap, c.TaskRefs)); err != nil {
			return err
		}
		if err := link(KindCommit, hash, KindFile, c.Files); err != nil {
			return err
		}
	}
	return nil
}

func resolvedStories(snap *types.Snapshot, refs []string) []string {
	ids := []string{}
	for _, ref := range refs {
		if _, ok := snap.Stories[ref]; ok {
			ids, _ = utils.AppendUnique(ids, ref)
		}
	}
	return ids
}

func resolvedTasks(snap *types.Snapshot, refs []string) []string {
	ids := []string{}
	for _, ref := range refs {
		id := utils.BaseTaskID(ref)
		if _, ok := snap.Tasks[id]; ok && id != "" {
			ids, _ = utils.AppendUnique(ids, id)
		}
	}
	return ids
}

func insertFiles(ctx context.Context, tx *sql.Tx, files map[string]*types.FileRecord, link linkWriter) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO files (path, design_pattern, architecture_layer, tradeoffs)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare files insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, path := range sortedKeys(files) {
		f := files[path]
		if _, err := stmt.ExecContext(ctx, f.Path, f.DesignPattern, f.ArchitectureLayer, f.Tradeoffs); err != nil {
			return fmt.Errorf("failed to insert file %s: %w", path, err)
		}
		if err := link(KindFile, path, KindStory, f.Stories); err != nil {
			return err
		}
		if err := link(KindFile, path, KindTask, f.Tasks); err != nil {
			return err
		}
		if err := link(KindFile, path, KindCommit, f.Commits); err != nil {
			return err
		}
	}
	return nil
}

func insertMetadata(ctx context.Context, tx *sql.Tx, m types.Metadata) error {
	values := map[string]string{
		MetaGenerated:     m.Generated.Format(time.RFC3339Nano),
		MetaSchemaVersion: m.SchemaVersion,
		MetaStoryFilter:   m.StoryFilter,
		MetaCurrentTask:   m.CurrentTask,
		MetaTotalStories:  strconv.Itoa(m.TotalStories),
		MetaTotalTasks:    strconv.Itoa(m.TotalTasks),
		MetaTotalCommits:  strconv.Itoa(m.TotalCommits),
		MetaTotalFiles:    strconv.Itoa(m.TotalFiles),
	}
	for _, key := range sortedKeys(values) {
		if err := setMetadata(ctx, tx, key, values[key]); err != nil {
			return fmt.Errorf("failed to set metadata %s: %w", key, err)
		}
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func setMetadata(ctx context.Context, db execer, key, value string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// SetMetadata sets a metadata value
func (s *SQLiteStorage) SetMetadata(ctx context.Context, key, value string) error {
	return setMetadata(ctx, s.db, key, value)
}

// GetMetadata gets a metadata value; a missing key yields ""
func (s *SQLiteStorage) GetMetadata(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// Linked returns the ids of kind targetKind that the entity (kind, id)
// lists, in snapshot order.
func (s *SQLiteStorage) Linked(ctx context.Context, kind, id, targetKind string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT target_id FROM links
		WHERE source_kind = ? AND source_id = ? AND target_kind = ?
		ORDER BY position
	`, kind, id, targetKind)
	if err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
	}
	defer func() { _ = rows.Close() }()

	targets := []string{}
	for rows.Next() {
		var target string
		if err := rows.Scan(&target); err != nil {
			return nil, err
		}
		targets = append(targets, target)
	}
	return targets, rows.Err()
}

// Counts returns the number of rows in each entity table
func (s *SQLiteStorage) Counts(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int)
	for kind, table := range map[string]string{
		KindStory:  "stories",
		KindTask:   "tasks",
		KindCommit: "commits",
		KindFile:   "files",
	} {
		var n int
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
		counts[kind] = n
	}
	return counts, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	s.closed.Store(true)
	return s.db.Close()
}

// Path returns the absolute path to the database file
func (s *SQLiteStorage) Path() string {
	return s.dbPath
}

// IsClosed returns true if Close() has been called on this storage
func (s *SQLiteStorage) IsClosed() bool {
	return s.closed.Load()
}

// CheckpointWAL flushes the WAL file into the main database file so the
// mirror can be copied safely.
func (s *SQLiteStorage) CheckpointWAL(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(FULL)")
	return err
}

func encodeJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode column: %w", err)
	}
	return string(data), nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
