package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, ".md", cfg.Vault.Extension)
	assert.Equal(t, int64(10_000_000), cfg.Vault.MaxFileSize)
	assert.ElementsMatch(t, []string{".git", ".obsidian", ".trash"}, cfg.Vault.ExcludeDirs)
	assert.Equal(t, []string{".gitignore"}, cfg.Vault.ExcludeFiles)
	assert.Equal(t, SinkBadger, cfg.Sink.Kind)
	assert.Equal(t, HistoryGit, cfg.History.Provider)
	assert.Equal(t, 1, cfg.Ingest.Workers)
	assert.False(t, cfg.Sink.Wipe)
}

func TestVaultConfig_Validate(t *testing.T) {
	t.Parallel()

	t.Run("ExtensionGetsDot", func(t *testing.T) {
		t.Parallel()
		cfg := Default().Vault
		cfg.Extension = "txt"
		require.NoError(t, cfg.Validate())
		assert.Equal(t, ".txt", cfg.Extension)
	})

	t.Run("MissingID", func(t *testing.T) {
		t.Parallel()
		cfg := Default().Vault
		cfg.ID = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("ZeroSizeCeiling", func(t *testing.T) {
		t.Parallel()
		cfg := Default().Vault
		cfg.MaxFileSize = 0
		assert.Error(t, cfg.Validate())
	})
}

func TestSinkConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     SinkConfig
		wantErr bool
	}{
		{"Memory", SinkConfig{Kind: SinkMemory}, false},
		{"BadgerWithPath", SinkConfig{Kind: SinkBadger, Path: "db"}, false},
		{"BadgerWithoutPath", SinkConfig{Kind: SinkBadger}, true},
		{"Neo4j", SinkConfig{Kind: SinkNeo4j, URI: "bolt://localhost:7687", Username: "neo4j"}, false},
		{"Neo4jWithoutURI", SinkConfig{Kind: SinkNeo4j, Username: "neo4j"}, true},
		{"UnknownKind", SinkConfig{Kind: "sqlite"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateWrapsSection(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.History.Provider = "svn"

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "history")
}

func TestLoad(t *testing.T) {
	t.Setenv("VAULTGRAPH_TEST_PASSWORD", "s3cret")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
vault:
  path: /notes
  id: SDI
  exclude_prefixes: [archive/old]
sink:
  kind: neo4j
  uri: bolt://db:7687
  username: neo4j
  password: ${VAULTGRAPH_TEST_PASSWORD}
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg := Default()
	require.NoError(t, Load(path, cfg))

	assert.Equal(t, "/notes", cfg.Vault.Path)
	assert.Equal(t, "SDI", cfg.Vault.ID)
	assert.Equal(t, []string{"archive/old"}, cfg.Vault.ExcludePrefixes)
	assert.Equal(t, ".md", cfg.Vault.Extension, "defaults survive partial files")
	assert.Equal(t, "s3cret", cfg.Sink.Password)
	assert.Equal(t, slog.LevelDebug, cfg.Log.Level)
	assert.Equal(t, LogFormatJSON, cfg.Log.Format)
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	t.Run("MissingFile", func(t *testing.T) {
		t.Parallel()
		err := Load(filepath.Join(t.TempDir(), "nope.yaml"), Default())
		assert.Error(t, err)
	})

	t.Run("InvalidYAML", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("vault: [unclosed"), 0o644))
		assert.Error(t, Load(path, Default()))
	})

	t.Run("FailsValidation", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "invalid.yaml")
		require.NoError(t, os.WriteFile(path, []byte("sink:\n  kind: carrier-pigeon\n"), 0o644))
		err := Load(path, Default())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "validation")
	})
}

func TestLoadOptional(t *testing.T) {
	t.Parallel()

	cfg := Default()
	assert.NoError(t, LoadOptional(filepath.Join(t.TempDir(), "absent.yaml"), cfg))
	assert.NoError(t, LoadOptional("", cfg))
}

func TestLogConfig_NewLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	cfg := LogConfig{Level: slog.LevelWarn, Format: LogFormatJSON}
	logger := cfg.NewLogger(&buf)

	logger.Info("hidden")
	logger.Warn("shown", slog.String("path", "a.md"))

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"path":"a.md"`)
}
