// Package config holds the vaultgraph configuration: where the vault lives,
// what to exclude, where the graph is written, and how the run is logged.
//
// A Config is built once at process start (defaults, then the YAML file, then
// CLI overrides) and passed by pointer into every component.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Sink kinds.
const (
	SinkMemory = "memory"
	SinkBadger = "badger"
	SinkNeo4j  = "neo4j"
)

// History providers.
const (
	HistoryGit   = "git"
	HistoryGoGit = "go-git"
	HistoryNone  = "none"
)

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// DefaultMaxFileSize is the size ceiling above which note content is replaced
// by a placeholder.
const DefaultMaxFileSize int64 = 10_000_000

// Config represents the application configuration.
type Config struct {
	Vault   VaultConfig   `yaml:"vault"`
	Ingest  IngestConfig  `yaml:"ingest"`
	History HistoryConfig `yaml:"history"`
	Sink    SinkConfig    `yaml:"sink"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Vault.Validate(); err != nil {
		return fmt.Errorf("vault: %w", err)
	}
	if err := c.Ingest.Validate(); err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	if err := c.History.Validate(); err != nil {
		return fmt.Errorf("history: %w", err)
	}
	if err := c.Sink.Validate(); err != nil {
		return fmt.Errorf("sink: %w", err)
	}
	return c.Log.Validate()
}

// VaultConfig describes the document tree and its exclusions.
type VaultConfig struct {
	Path             string   `yaml:"path"`
	ID               string   `yaml:"id"`
	Extension        string   `yaml:"extension"`
	MaxFileSize      int64    `yaml:"max_file_size"`
	ExcludeDirs      []string `yaml:"exclude_dirs"`
	ExcludePrefixes  []string `yaml:"exclude_prefixes"`
	ExcludeFiles     []string `yaml:"exclude_files"`
	ExcludePatterns  []string `yaml:"exclude_patterns"`
	RespectGitignore bool     `yaml:"respect_gitignore"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	if c.Extension != "" && !strings.HasPrefix(c.Extension, ".") {
		c.Extension = "." + c.Extension
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.ID, validation.Required),
		validation.Field(&c.Extension, validation.Required),
		validation.Field(&c.MaxFileSize, validation.Required, validation.Min(int64(1))),
	)
}

// IngestConfig tunes the structure assembler.
type IngestConfig struct {
	// Workers bounds how many files of one directory are prepared
	// concurrently. Sink writes always stay sequential.
	Workers int `yaml:"workers"`
}

// Validate validates the ingest configuration.
func (c *IngestConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Workers, validation.Required, validation.Min(1), validation.Max(256)),
	)
}

// HistoryConfig selects how note timestamps are resolved.
type HistoryConfig struct {
	Provider string `yaml:"provider"`
}

// Validate validates the history configuration.
func (c *HistoryConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Provider, validation.Required, validation.In(HistoryGit, HistoryGoGit, HistoryNone)),
	)
}

// SinkConfig selects and configures the graph sink.
//
// Kind controls where the graph is written:
//   - "badger" (default): embedded store at Path, readable by status, search and mcp.
//   - "neo4j": a Neo4j server at URI with Username/Password.
//   - "memory": nothing is persisted; useful for dry runs.
type SinkConfig struct {
	Kind     string `yaml:"kind"`
	Path     string `yaml:"path"`
	URI      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	Wipe     bool   `yaml:"wipe"`
}

// Validate validates the sink configuration.
func (c *SinkConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Kind, validation.Required, validation.In(SinkMemory, SinkBadger, SinkNeo4j)),
		validation.Field(&c.Path, validation.When(c.Kind == SinkBadger, validation.Required)),
		validation.Field(&c.URI, validation.When(c.Kind == SinkNeo4j, validation.Required)),
		validation.Field(&c.Username, validation.When(c.Kind == SinkNeo4j, validation.Required)),
	)
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  slog.Level `yaml:"level"`
	Format string     `yaml:"format"`
}

// Validate validates the log configuration.
func (c *LogConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Format, validation.In(LogFormatText, LogFormatJSON)),
	)
}

// MetricsConfig holds the Prometheus endpoint address used in watch mode.
// An empty address disables the endpoint.
type MetricsConfig struct {
	Address string `yaml:"address"`
}

// Default returns a new Config populated with the built-in defaults.
func Default() *Config {
	return &Config{
		Vault: VaultConfig{
			Path:         ".",
			ID:           "default",
			Extension:    ".md",
			MaxFileSize:  DefaultMaxFileSize,
			ExcludeDirs:  []string{".git", ".obsidian", ".trash"},
			ExcludeFiles: []string{".gitignore"},
		},
		Ingest: IngestConfig{
			Workers: 1,
		},
		History: HistoryConfig{
			Provider: HistoryGit,
		},
		Sink: SinkConfig{
			Kind:     SinkBadger,
			Path:     ".vaultgraph/badger",
			URI:      "bolt://localhost:7687",
			Username: "neo4j",
			Database: "neo4j",
		},
		Log: LogConfig{
			Level:  slog.LevelInfo,
			Format: LogFormatText,
		},
	}
}
