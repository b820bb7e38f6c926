package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/vaultgraph/internal/config"
	"github.com/Benny93/vaultgraph/internal/graph"
)

type readSink interface {
	Sink
	Reader
}

func setupTestBadgerSink(t *testing.T) *BadgerSink {
	t.Helper()

	sink := NewBadgerSink()
	require.NoError(t, sink.Initialize(filepath.Join(t.TempDir(), "badger"), false))
	t.Cleanup(func() { _ = sink.Close() })
	return sink
}

// forEachSink runs fn against every queryable sink implementation.
func forEachSink(t *testing.T, fn func(t *testing.T, sink readSink)) {
	t.Helper()

	t.Run("Memory", func(t *testing.T) {
		t.Parallel()
		fn(t, NewMemorySink())
	})
	t.Run("Badger", func(t *testing.T) {
		t.Parallel()
		fn(t, setupTestBadgerSink(t))
	})
}

func rootDir() *graph.GraphNode {
	return &graph.GraphNode{
		ID:      graph.DirectoryID("v", "."),
		Label:   graph.NodeDirectory,
		Name:    "vault",
		Path:    ".",
		VaultID: "v",
	}
}

func note(path, content string) *graph.GraphNode {
	return &graph.GraphNode{
		ID:      graph.NoteID("v", path),
		Label:   graph.NodeNote,
		Name:    path,
		Path:    path,
		VaultID: "v",
		Content: content,
	}
}

func TestSink_MergeNodeIsIdempotent(t *testing.T) {
	t.Parallel()

	forEachSink(t, func(t *testing.T, sink readSink) {
		ctx := context.Background()
		n := note("a.md", "first")

		require.NoError(t, sink.MergeNode(ctx, n))
		require.NoError(t, sink.MergeNode(ctx, n))

		stats, err := sink.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Nodes[graph.NodeNote])
		assert.Equal(t, 1, stats.TotalNodes())
	})
}

func TestSink_MergeNodeReplacesAttributes(t *testing.T) {
	t.Parallel()

	forEachSink(t, func(t *testing.T, sink readSink) {
		ctx := context.Background()
		when := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

		n := note("a.md", "first")
		n.CreatedAt = &when
		require.NoError(t, sink.MergeNode(ctx, n))

		updated := note("a.md", "second")
		require.NoError(t, sink.MergeNode(ctx, updated))

		got, err := sink.GetNode(ctx, n.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "second", got.Content)
		assert.Nil(t, got.CreatedAt)
	})
}

func TestSink_MergeEdge(t *testing.T) {
	t.Parallel()

	forEachSink(t, func(t *testing.T, sink readSink) {
		ctx := context.Background()
		dir := rootDir()
		n := note("a.md", "")
		require.NoError(t, sink.MergeNode(ctx, dir))
		require.NoError(t, sink.MergeNode(ctx, n))

		rel := graph.NewRelationship(graph.RelContains, dir.ID, n.ID)
		require.NoError(t, sink.MergeEdge(ctx, rel))
		require.NoError(t, sink.MergeEdge(ctx, rel))

		stats, err := sink.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Relationships[graph.RelContains])

		out, err := sink.GetOutgoing(ctx, dir.ID, graph.RelContains)
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, n.ID, out[0].Target)

		in, err := sink.GetIncoming(ctx, n.ID, "")
		require.NoError(t, err)
		require.Len(t, in, 1)
		assert.Equal(t, dir.ID, in[0].Source)

		none, err := sink.GetOutgoing(ctx, dir.ID, graph.RelHasTag)
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

func TestSink_MergeEdgeMissingEndpoint(t *testing.T) {
	t.Parallel()

	forEachSink(t, func(t *testing.T, sink readSink) {
		ctx := context.Background()
		dir := rootDir()
		require.NoError(t, sink.MergeNode(ctx, dir))

		err := sink.MergeEdge(ctx, graph.NewRelationship(graph.RelContains, dir.ID, graph.NoteID("v", "ghost.md")))
		assert.ErrorIs(t, err, ErrMissingEndpoint)

		stats, err := sink.Stats(ctx)
		require.NoError(t, err)
		assert.Zero(t, stats.TotalRelationships())
	})
}

func TestSink_Wipe(t *testing.T) {
	t.Parallel()

	forEachSink(t, func(t *testing.T, sink readSink) {
		ctx := context.Background()
		dir := rootDir()
		n := note("a.md", "")
		require.NoError(t, sink.MergeNode(ctx, dir))
		require.NoError(t, sink.MergeNode(ctx, n))
		require.NoError(t, sink.MergeEdge(ctx, graph.NewRelationship(graph.RelContains, dir.ID, n.ID)))

		require.NoError(t, sink.Wipe(ctx))

		stats, err := sink.Stats(ctx)
		require.NoError(t, err)
		assert.Zero(t, stats.TotalNodes())
		assert.Zero(t, stats.TotalRelationships())

		got, err := sink.GetNode(ctx, dir.ID)
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestSink_GetNodesByLabel(t *testing.T) {
	t.Parallel()

	forEachSink(t, func(t *testing.T, sink readSink) {
		ctx := context.Background()
		require.NoError(t, sink.MergeNode(ctx, rootDir()))
		require.NoError(t, sink.MergeNode(ctx, note("a.md", "")))
		require.NoError(t, sink.MergeNode(ctx, note("b.md", "")))

		notes, err := sink.GetNodesByLabel(ctx, graph.NodeNote)
		require.NoError(t, err)
		assert.Len(t, notes, 2)

		tags, err := sink.GetNodesByLabel(ctx, graph.NodeTag)
		require.NoError(t, err)
		assert.Empty(t, tags)
	})
}

func TestSink_Search(t *testing.T) {
	t.Parallel()

	forEachSink(t, func(t *testing.T, sink readSink) {
		ctx := context.Background()
		require.NoError(t, sink.MergeNode(ctx, note("garden.md", "Notes on tomato plants and soil")))
		require.NoError(t, sink.MergeNode(ctx, note("kitchen.md", "A tomato soup recipe")))
		require.NoError(t, sink.MergeNode(ctx, note("misc.md", "Nothing relevant")))

		results, err := sink.Search(ctx, "tomato soil", 10)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "garden.md", results[0].Path)
		assert.Equal(t, float64(2), results[0].Score)
		assert.Equal(t, "kitchen.md", results[1].Path)

		limited, err := sink.Search(ctx, "tomato", 1)
		require.NoError(t, err)
		assert.Len(t, limited, 1)
	})
}

func TestBadgerSink_ReopenReadOnly(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "badger")

	writer := NewBadgerSink()
	require.NoError(t, writer.Initialize(dbPath, false))
	require.NoError(t, writer.MergeNode(ctx, rootDir()))
	require.NoError(t, writer.Close())

	reader := NewBadgerSink()
	require.NoError(t, reader.Initialize(dbPath, true))
	defer reader.Close()

	got, err := reader.GetNode(ctx, rootDir().ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "vault", got.Name)
}

func TestBadgerSink_InvalidPath(t *testing.T) {
	t.Parallel()

	sink := NewBadgerSink()
	err := sink.Initialize("/nonexistent/path/that/does/not/exist", true)
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("Memory", func(t *testing.T) {
		t.Parallel()
		sink, err := Open(ctx, config.SinkConfig{Kind: config.SinkMemory})
		require.NoError(t, err)
		assert.IsType(t, &MemorySink{}, sink)
		assert.NoError(t, sink.Close())
	})

	t.Run("Badger", func(t *testing.T) {
		t.Parallel()
		sink, err := Open(ctx, config.SinkConfig{Kind: config.SinkBadger, Path: filepath.Join(t.TempDir(), "db")})
		require.NoError(t, err)
		assert.IsType(t, &BadgerSink{}, sink)
		assert.NoError(t, sink.Close())
	})

	t.Run("Unknown", func(t *testing.T) {
		t.Parallel()
		_, err := Open(ctx, config.SinkConfig{Kind: "sqlite"})
		assert.Error(t, err)
	})
}

func TestTokenizeForSearch(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"hello", "wörld", "42"}, tokenizeForSearch("Hello, Wörld! 42 a"))
	assert.Empty(t, tokenizeForSearch("a b c"))
}
