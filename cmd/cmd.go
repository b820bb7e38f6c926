// Package cmd provides CLI command implementations for vaultgraph.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Benny93/vaultgraph/internal/config"
	"github.com/Benny93/vaultgraph/internal/graph"
	"github.com/Benny93/vaultgraph/internal/history"
	"github.com/Benny93/vaultgraph/internal/ingestion"
	"github.com/Benny93/vaultgraph/internal/metrics"
	"github.com/Benny93/vaultgraph/internal/storage"
	"github.com/Benny93/vaultgraph/mcp"
)

// Version is set at build time via ldflags.
var Version = "dev"

// errNoStore is returned by the query commands when no badger store exists.
var errNoStore = errors.New("no graph store found")

// Globals are the flags shared by every command. Non-empty values override
// the configuration file.
type Globals struct {
	Config   string `short:"c" default:"vaultgraph.yaml" help:"Path to the YAML configuration file"`
	Vault    string `help:"Vault root directory" placeholder:"DIR"`
	VaultID  string `name:"vault-id" help:"Identifier scoping directory and note nodes"`
	Sink     string `help:"Graph sink (memory, badger, neo4j)"`
	SinkPath string `name:"sink-path" help:"Badger store directory" placeholder:"DIR"`
	History  string `help:"History provider (git, go-git, none)"`
	Workers  int    `help:"Files prepared concurrently per directory"`
	JSONLogs bool   `name:"json-logs" help:"Log as JSON"`
	Verbose  bool   `short:"v" help:"Enable debug logging"`
	Quiet    bool   `short:"q" help:"Only log errors and suppress progress output"`
}

// load builds the effective configuration and the process logger.
func (g *Globals) load() (*config.Config, *slog.Logger, error) {
	cfg := config.Default()
	if err := config.LoadOptional(g.Config, cfg); err != nil {
		return nil, nil, err
	}

	if g.Vault != "" {
		cfg.Vault.Path = g.Vault
	}
	if g.VaultID != "" {
		cfg.Vault.ID = g.VaultID
	}
	if g.Sink != "" {
		cfg.Sink.Kind = g.Sink
	}
	if g.SinkPath != "" {
		cfg.Sink.Path = g.SinkPath
	}
	if g.History != "" {
		cfg.History.Provider = g.History
	}
	if g.Workers > 0 {
		cfg.Ingest.Workers = g.Workers
	}
	if g.JSONLogs {
		cfg.Log.Format = config.LogFormatJSON
	}
	switch {
	case g.Verbose:
		cfg.Log.Level = slog.LevelDebug
	case g.Quiet:
		cfg.Log.Level = slog.LevelError
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, cfg.Log.NewLogger(os.Stderr), nil
}

// SyncCmd derives the graph of the vault and writes it to the sink.
type SyncCmd struct {
	Wipe bool `help:"Delete everything in the sink before writing"`
}

// Run executes the sync command.
func (c *SyncCmd) Run(g *Globals) error {
	cfg, logger, err := g.load()
	if err != nil {
		return err
	}
	if c.Wipe {
		cfg.Sink.Wipe = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sink, err := storage.Open(ctx, cfg.Sink)
	if err != nil {
		return fmt.Errorf("opening %s sink: %w", cfg.Sink.Kind, err)
	}
	defer func() { _ = sink.Close() }()

	hist, err := history.New(cfg.History.Provider, cfg.Vault.Path)
	if err != nil {
		return err
	}

	var opts []ingestion.Option
	if !g.Quiet {
		opts = append(opts, ingestion.WithProgress(func(directories, notes int) {
			fmt.Printf("\r\033[KDirectories: %d  Notes: %d", directories, notes)
		}))
	}

	if !g.Quiet {
		color.Green("Syncing %s into %s sink", cfg.Vault.Path, cfg.Sink.Kind)
	}

	res, err := ingestion.NewAssembler(cfg, sink, hist, logger, opts...).Run(ctx)
	if !g.Quiet {
		fmt.Print("\r\033[K")
	}
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	if !g.Quiet {
		printResult(res)
	}
	return nil
}

func printResult(res *ingestion.Result) {
	color.Green("Sync complete in %s", res.Duration.Round(time.Millisecond))
	fmt.Printf("  Directories:    %d\n", res.Directories)
	fmt.Printf("  Notes:          %d\n", res.Notes)
	fmt.Printf("  Tags:           %d\n", res.Tags)
	fmt.Printf("  Relationships:  %d\n", res.RelationshipsWritten)

	if res.WriteErrors+res.ReadErrors+res.WalkErrors+res.HistoryMisses > 0 {
		color.Yellow("  Write errors:   %d", res.WriteErrors)
		color.Yellow("  Read errors:    %d", res.ReadErrors)
		color.Yellow("  Walk errors:    %d", res.WalkErrors)
		color.Yellow("  History misses: %d", res.HistoryMisses)
	}
}

// WatchCmd keeps the sink in sync with the vault.
type WatchCmd struct {
	Debounce time.Duration `default:"2s" help:"Quiet period before a re-sync"`
	Metrics  string        `name:"metrics-addr" help:"Serve Prometheus metrics on this address" placeholder:"HOST:PORT"`
}

// Run executes the watch command.
func (c *WatchCmd) Run(g *Globals) error {
	cfg, logger, err := g.load()
	if err != nil {
		return err
	}
	if c.Metrics != "" {
		cfg.Metrics.Address = c.Metrics
	}

	root, err := filepath.Abs(cfg.Vault.Path)
	if err != nil {
		return fmt.Errorf("resolving vault root: %w", err)
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return fmt.Errorf("%s: %w", root, ingestion.ErrRootNotFound)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sink, err := storage.Open(ctx, cfg.Sink)
	if err != nil {
		return fmt.Errorf("opening %s sink: %w", cfg.Sink.Kind, err)
	}
	defer func() { _ = sink.Close() }()

	hist, err := history.New(cfg.History.Provider, root)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	if cfg.Metrics.Address != "" {
		srv := &http.Server{
			Addr:              cfg.Metrics.Address,
			Handler:           metrics.Handler(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", slog.String("error", err.Error()))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		logger.Info("serving metrics", slog.String("address", cfg.Metrics.Address))
	}

	assembler := ingestion.NewAssembler(cfg, sink, hist, logger, ingestion.WithMetrics(m))
	sync := assembler.WatchSync(func(res *ingestion.Result) {
		if !g.Quiet {
			color.Green("[%s] synced %d notes in %d directories",
				time.Now().Format(time.TimeOnly), res.Notes, res.Directories)
		}
	})

	walker := ingestion.NewVaultWalker(cfg.Vault, os.DirFS(root), filepath.Base(root), logger)
	watcher := ingestion.NewWatcher(root, walker, sync, logger)
	watcher.SetDebounce(c.Debounce)

	fmt.Println("## Watch Mode")
	fmt.Printf("Watching %s for changes (Ctrl+C to stop)\n\n", root)

	err = watcher.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("watch error: %w", err)
	}

	fmt.Println("Watch mode stopped.")
	return nil
}

// TagsCmd prints the tags of one note, or every tag in the store.
type TagsCmd struct {
	File string `arg:"" optional:"" help:"Note to extract tags from" type:"existingfile"`
}

// Run executes the tags command.
func (c *TagsCmd) Run(g *Globals) error {
	cfg, logger, err := g.load()
	if err != nil {
		return err
	}

	if c.File != "" {
		return c.printFileTags(cfg, logger)
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	tags, err := store.GetNodesByLabel(ctx, graph.NodeTag)
	if err != nil {
		return err
	}
	if len(tags) == 0 {
		fmt.Println("No tags found")
		return nil
	}

	slices.SortFunc(tags, func(a, b *graph.GraphNode) int { return strings.Compare(a.Path, b.Path) })

	fmt.Printf("Tags (%d):\n", len(tags))
	for _, tag := range tags {
		notes, err := store.GetIncoming(ctx, tag.ID, graph.RelHasTag)
		if err != nil {
			return err
		}
		fmt.Printf("  %s%s  (%d notes)\n", strings.Repeat("  ", tag.Level), tag.Name, len(notes))
	}
	return nil
}

func (c *TagsCmd) printFileTags(cfg *config.Config, logger *slog.Logger) error {
	dir, base := filepath.Split(c.File)
	if dir == "" {
		dir = "."
	}

	content, err := ingestion.NewScanner(os.DirFS(dir), cfg.Vault.MaxFileSize, logger).Read(base)
	if err != nil {
		return fmt.Errorf("reading %s: %w", c.File, err)
	}

	tags := ingestion.ExtractTags(content)
	if len(tags) == 0 {
		fmt.Printf("No tags in %s\n", c.File)
		return nil
	}

	fmt.Printf("Tags in %s:\n", c.File)
	for _, tag := range tags {
		h := ingestion.ExpandTag(tag)
		if len(h.Levels) == 0 {
			continue
		}
		fmt.Printf("  #%s\n", tag)
		for _, level := range h.Levels {
			fmt.Printf("    %d  %s\n", level.Level, level.Path)
		}
	}
	return nil
}

// StatusCmd shows what the badger store holds.
type StatusCmd struct{}

// Run executes the status command.
func (c *StatusCmd) Run(g *Globals) error {
	cfg, _, err := g.load()
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	stats, err := store.Stats(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("Graph status for %s\n", cfg.Sink.Path)
	for _, label := range graph.Labels {
		fmt.Printf("  %-15s %d\n", string(label)+":", stats.Nodes[label])
	}
	for _, relType := range graph.RelTypes {
		fmt.Printf("  %-15s %d\n", string(relType)+":", stats.Relationships[relType])
	}
	fmt.Printf("  %-15s %d\n", "Nodes:", stats.TotalNodes())
	fmt.Printf("  %-15s %d\n", "Relationships:", stats.TotalRelationships())
	return nil
}

// SearchCmd searches note names and content.
type SearchCmd struct {
	Query string `arg:"" help:"Search query"`
	Limit int    `short:"l" default:"20" help:"Maximum number of results"`
}

// Run executes the search command.
func (c *SearchCmd) Run(g *Globals) error {
	cfg, _, err := g.load()
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	results, err := store.Search(context.Background(), c.Query, c.Limit)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("No results found")
		return nil
	}

	fmt.Printf("Results for %q:\n\n", c.Query)
	for i, r := range results {
		fmt.Printf("%d. %s (score %.0f)\n", i+1, r.Name, r.Score)
		fmt.Printf("   %s\n", r.Path)
		if r.Snippet != "" {
			fmt.Printf("   %s\n", strings.ReplaceAll(r.Snippet, "\n", " "))
		}
	}
	return nil
}

// MCPCmd starts the MCP server.
type MCPCmd struct{}

// Run executes the mcp command.
func (c *MCPCmd) Run(g *Globals) error {
	cfg, _, err := g.load()
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// stdout carries JSON-RPC only
	return mcp.NewServer(store).Run(ctx, os.Stdin, os.Stdout)
}

// CleanCmd deletes the badger store.
type CleanCmd struct {
	Force bool `short:"f" help:"Skip confirmation"`
}

// Run executes the clean command.
func (c *CleanCmd) Run(g *Globals) error {
	cfg, _, err := g.load()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfg.Sink.Path); os.IsNotExist(err) {
		return fmt.Errorf("%w at %s. Nothing to clean", errNoStore, cfg.Sink.Path)
	}

	if !c.Force {
		fmt.Printf("Delete graph store at %s? [y/N] ", cfg.Sink.Path)
		var response string
		_, _ = fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Aborted")
			return nil
		}
	}

	if err := os.RemoveAll(cfg.Sink.Path); err != nil {
		return fmt.Errorf("deleting graph store: %w", err)
	}

	color.Green("Deleted %s", cfg.Sink.Path)
	return nil
}

// openStore opens the configured badger store read-only.
func openStore(cfg *config.Config) (*storage.BadgerSink, error) {
	if cfg.Sink.Kind != config.SinkBadger {
		return nil, fmt.Errorf("%w: queries need the badger sink, configured sink is %s", errNoStore, cfg.Sink.Kind)
	}
	if _, err := os.Stat(cfg.Sink.Path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w at %s. Run 'vaultgraph sync' first", errNoStore, cfg.Sink.Path)
	}

	store := storage.NewBadgerSink()
	if err := store.Initialize(cfg.Sink.Path, true); err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	return store, nil
}

// CLI is the root Kong command structure.
type CLI struct {
	Globals

	Version kong.VersionFlag `help:"Show version information"`

	// Commands
	Sync   SyncCmd   `cmd:"" help:"Derive the vault graph and write it to the sink"`
	Watch  WatchCmd  `cmd:"" help:"Re-sync whenever the vault changes"`
	Tags   TagsCmd   `cmd:"" help:"Show the tags of a note or every tag in the store"`
	Status StatusCmd `cmd:"" help:"Show node and relationship counts of the store"`
	Search SearchCmd `cmd:"" help:"Search notes by name and content"`
	MCP    MCPCmd    `cmd:"" help:"Start MCP server (stdio transport)"`
	Clean  CleanCmd  `cmd:"" help:"Delete the graph store"`
}

// NewCLI creates a new CLI instance.
func NewCLI() *CLI {
	return &CLI{}
}

// Execute parses command-line arguments and executes the selected command.
func (c *CLI) Execute(args []string) error {
	parser, err := kong.New(c,
		kong.Name("vaultgraph"),
		kong.Description("Derive a property graph from a Markdown vault"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version": Version,
		},
	)
	if err != nil {
		return err
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	return kongCtx.Run(&c.Globals)
}
