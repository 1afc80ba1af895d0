//go:build bench

package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sdlc-workflow/sdlc/internal/git"
	"github.com/sdlc-workflow/sdlc/internal/index"
	"github.com/sdlc-workflow/sdlc/internal/testutil/fixtures"
	"github.com/sdlc-workflow/sdlc/internal/types"
)

// setupLargeSnapshot builds the index of a generated corpus sized like a
// busy multi-year project.
func setupLargeSnapshot(b *testing.B) *types.Snapshot {
	b.Helper()
	p := fixtures.NewProject(b)
	commits := p.Generate(fixtures.DefaultLargeConfig())
	snap, _, err := index.Build(context.Background(), index.Options{
		Root:       p.Root,
		StoriesDir: p.StoriesDir(),
		TasksDir:   p.TasksDir(),
		History:    git.StaticLog(git.FormatLog(commits)),
	})
	if err != nil {
		b.Fatalf("Build failed: %v", err)
	}
	return snap
}

// BenchmarkReplaceSnapshot_Large measures a full mirror rewrite
func BenchmarkReplaceSnapshot_Large(b *testing.B) {
	snap := setupLargeSnapshot(b)
	store, err := New(filepath.Join(b.TempDir(), "bench.db"))
	if err != nil {
		b.Fatalf("New failed: %v", err)
	}
	defer func() { _ = store.Close() }()
	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if err := store.ReplaceSnapshot(ctx, snap); err != nil {
			b.Fatalf("ReplaceSnapshot failed: %v", err)
		}
	}
}

// BenchmarkLinked_Large measures a single relationship lookup
func BenchmarkLinked_Large(b *testing.B) {
	snap := setupLargeSnapshot(b)
	store, err := New(filepath.Join(b.TempDir(), "bench.db"))
	if err != nil {
		b.Fatalf("New failed: %v", err)
	}
	defer func() { _ = store.Close() }()
	ctx := context.Background()
	if err := store.ReplaceSnapshot(ctx, snap); err != nil {
		b.Fatalf("ReplaceSnapshot failed: %v", err)
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if _, err := store.Linked(ctx, KindStory, "US-001", KindCommit); err != nil {
			b.Fatalf("Linked failed: %v", err)
		}
	}
}
