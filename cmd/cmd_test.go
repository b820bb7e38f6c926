package cmd

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/vaultgraph/internal/config"
	"github.com/Benny93/vaultgraph/internal/graph"
)

// writeVault creates a small vault and returns its root.
func writeVault(t *testing.T) string {
	t.Helper()

	root := filepath.Join(t.TempDir(), "vault")
	files := map[string]string{
		"index.md":             "# Index\n#home",
		"projects/alpha.md":    "---\ntags: [project/alpha]\n---\nAlpha launch plan",
		"projects/beta.md":     "Beta #project",
		".obsidian/cache.md":   "ignored #hidden",
		"projects/readme.txt":  "not a note",
		"archive/old/gone.md":  "old #archive/2020",
		"archive/old/other.md": "other",
	}
	for rel, content := range files {
		full := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	return root
}

func badgerGlobals(t *testing.T, vault string) *Globals {
	t.Helper()
	return &Globals{
		Vault:    vault,
		VaultID:  "test",
		Sink:     config.SinkBadger,
		SinkPath: filepath.Join(t.TempDir(), "badger"),
		History:  config.HistoryNone,
		Quiet:    true,
	}
}

func TestGlobals_Load(t *testing.T) {
	t.Parallel()

	t.Run("FileThenFlags", func(t *testing.T) {
		t.Parallel()

		cfgPath := filepath.Join(t.TempDir(), "vaultgraph.yaml")
		require.NoError(t, os.WriteFile(cfgPath, []byte(`
vault:
  path: /from/file
  id: file-id
ingest:
  workers: 4
sink:
  kind: memory
`), 0o644))

		g := &Globals{Config: cfgPath, VaultID: "flag-id", Verbose: true, JSONLogs: true}
		cfg, logger, err := g.load()
		require.NoError(t, err)

		assert.Equal(t, "/from/file", cfg.Vault.Path)
		assert.Equal(t, "flag-id", cfg.Vault.ID)
		assert.Equal(t, 4, cfg.Ingest.Workers)
		assert.Equal(t, config.SinkMemory, cfg.Sink.Kind)
		assert.Equal(t, slog.LevelDebug, cfg.Log.Level)
		assert.Equal(t, config.LogFormatJSON, cfg.Log.Format)
		assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))
	})

	t.Run("MissingFileUsesDefaults", func(t *testing.T) {
		t.Parallel()

		g := &Globals{Config: filepath.Join(t.TempDir(), "absent.yaml"), Quiet: true}
		cfg, _, err := g.load()
		require.NoError(t, err)

		assert.Equal(t, config.Default().Vault.ID, cfg.Vault.ID)
		assert.Equal(t, slog.LevelError, cfg.Log.Level)
	})

	t.Run("InvalidOverride", func(t *testing.T) {
		t.Parallel()

		g := &Globals{Sink: "postgres"}
		_, _, err := g.load()
		assert.Error(t, err)
	})
}

func TestSyncThenQuery(t *testing.T) {
	t.Parallel()

	vault := writeVault(t)
	g := badgerGlobals(t, vault)

	require.NoError(t, (&SyncCmd{}).Run(g))

	cfg, _, err := g.load()
	require.NoError(t, err)
	store, err := openStore(cfg)
	require.NoError(t, err)

	ctx := context.Background()
	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Nodes[graph.NodeDirectory])
	assert.Equal(t, 5, stats.Nodes[graph.NodeNote])

	tag, err := store.GetNode(ctx, graph.TagID("project/alpha"))
	require.NoError(t, err)
	require.NotNil(t, tag)
	assert.Equal(t, 1, tag.Level)

	hidden, err := store.GetNode(ctx, graph.TagID("hidden"))
	require.NoError(t, err)
	assert.Nil(t, hidden)
	require.NoError(t, store.Close())

	assert.NoError(t, (&StatusCmd{}).Run(g))
	assert.NoError(t, (&SearchCmd{Query: "launch", Limit: 5}).Run(g))
	assert.NoError(t, (&TagsCmd{}).Run(g))

	require.NoError(t, (&SyncCmd{Wipe: true}).Run(g))

	require.NoError(t, (&CleanCmd{Force: true}).Run(g))
	_, err = os.Stat(g.SinkPath)
	assert.True(t, os.IsNotExist(err))
}

func TestSyncCmd_MissingVault(t *testing.T) {
	t.Parallel()

	g := badgerGlobals(t, filepath.Join(t.TempDir(), "nope"))
	g.Sink = config.SinkMemory

	err := (&SyncCmd{}).Run(g)
	assert.Error(t, err)
}

func TestTagsCmd_File(t *testing.T) {
	t.Parallel()

	vault := writeVault(t)
	g := &Globals{Sink: config.SinkMemory, Quiet: true}

	assert.NoError(t, (&TagsCmd{File: filepath.Join(vault, "projects", "alpha.md")}).Run(g))
	assert.NoError(t, (&TagsCmd{File: filepath.Join(vault, "projects", "readme.txt")}).Run(g))
}

func TestQueryCommands_NoStore(t *testing.T) {
	t.Parallel()

	t.Run("MissingDirectory", func(t *testing.T) {
		t.Parallel()
		g := badgerGlobals(t, t.TempDir())

		assert.ErrorIs(t, (&StatusCmd{}).Run(g), errNoStore)
		assert.ErrorIs(t, (&SearchCmd{Query: "x"}).Run(g), errNoStore)
		assert.ErrorIs(t, (&TagsCmd{}).Run(g), errNoStore)
		assert.ErrorIs(t, (&CleanCmd{Force: true}).Run(g), errNoStore)
	})

	t.Run("NonBadgerSink", func(t *testing.T) {
		t.Parallel()
		g := &Globals{Sink: config.SinkMemory}

		assert.ErrorIs(t, (&StatusCmd{}).Run(g), errNoStore)
	})
}

func TestCLI_Execute(t *testing.T) {
	t.Parallel()

	vault := writeVault(t)
	args := []string{
		"--config", filepath.Join(t.TempDir(), "none.yaml"),
		"--vault", vault,
		"--sink", config.SinkMemory,
		"--history", config.HistoryNone,
		"--workers", "3",
		"-q",
		"sync",
	}
	assert.NoError(t, NewCLI().Execute(args))

	assert.Error(t, NewCLI().Execute([]string{"no-such-command"}))
}
