package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Benny93/vaultgraph/internal/config"
	"github.com/Benny93/vaultgraph/internal/graph"
	"github.com/Benny93/vaultgraph/internal/history"
	"github.com/Benny93/vaultgraph/internal/metrics"
	"github.com/Benny93/vaultgraph/internal/storage"
)

// ErrRootNotFound is returned when the vault root does not exist or is not
// a directory.
var ErrRootNotFound = errors.New("vault root not found")

// Result summarizes a synchronization run.
type Result struct {
	RunID                string
	Directories          int
	Notes                int
	Tags                 int
	NodesWritten         int
	RelationshipsWritten int
	WriteErrors          int
	ReadErrors           int
	HistoryMisses        int
	WalkErrors           int
	Duration             time.Duration
}

// ProgressCallback is called after each directory with the number of
// directories and notes processed so far.
type ProgressCallback func(directories, notes int)

// Option configures an Assembler.
type Option func(*Assembler)

// WithFS reads the vault from fsys instead of the operating system. The
// configured vault path is then only used for the root name.
func WithFS(fsys fs.FS) Option {
	return func(a *Assembler) { a.fsys = fsys }
}

// WithMetrics records run counters on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Assembler) { a.metrics = m }
}

// WithProgress reports progress to cb.
func WithProgress(cb ProgressCallback) Option {
	return func(a *Assembler) { a.progress = cb }
}

// Assembler drives one full synchronization of a vault into a sink.
type Assembler struct {
	cfg      *config.Config
	sink     storage.Sink
	history  history.Provider
	logger   *slog.Logger
	fsys     fs.FS
	metrics  *metrics.Metrics
	progress ProgressCallback
}

// NewAssembler creates an assembler for the vault described by cfg.
func NewAssembler(cfg *config.Config, sink storage.Sink, hist history.Provider, logger *slog.Logger, opts ...Option) *Assembler {
	a := &Assembler{
		cfg:     cfg,
		sink:    sink,
		history: hist,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// preparedNote is a note whose content, timestamps and tags are resolved
// and which is ready to be written.
type preparedNote struct {
	node          *graph.GraphNode
	tags          []Hierarchy
	readFailed    bool
	historyMissed bool
}

// run holds the state of one Run call.
type run struct {
	*Assembler
	logger *slog.Logger
	result *Result
	tags   map[string]struct{}
}

// Run synchronizes the vault into the sink. It fails only when the root is
// missing, the sink cannot be wiped or ctx is cancelled; every other problem
// is logged, counted in the Result and skipped.
func (a *Assembler) Run(ctx context.Context) (*Result, error) {
	return a.timedRun(ctx, a.cfg.Sink.Wipe)
}

// Resync is Run with the sink wiped first, so notes and directories that
// left the vault since the previous run leave the graph too.
func (a *Assembler) Resync(ctx context.Context) (*Result, error) {
	return a.timedRun(ctx, true)
}

// WatchSync returns the SyncFunc a Watcher calls for every batch. The first
// call is a Run, every later call a Resync. report, when set, receives each
// successful Result.
func (a *Assembler) WatchSync(report func(*Result)) SyncFunc {
	synced := false
	return func(ctx context.Context) error {
		fn := a.Run
		if synced {
			fn = a.Resync
		}
		res, err := fn(ctx)
		if err != nil {
			return err
		}
		synced = true
		if report != nil {
			report(res)
		}
		return nil
	}
}

func (a *Assembler) timedRun(ctx context.Context, wipe bool) (*Result, error) {
	start := time.Now()

	res, err := a.run(ctx, wipe)
	a.metrics.RunFinished(time.Since(start), err)
	if res != nil {
		res.Duration = time.Since(start)
	}
	return res, err
}

func (a *Assembler) run(ctx context.Context, wipe bool) (*Result, error) {
	fsys, rootName, err := a.openRoot()
	if err != nil {
		return nil, err
	}

	r := &run{
		Assembler: a,
		result:    &Result{RunID: uuid.NewString()},
		tags:      make(map[string]struct{}),
	}
	r.logger = a.logger.With(slog.String("run_id", r.result.RunID))
	r.logger.Info("starting vault sync",
		slog.String("vault", a.cfg.Vault.Path),
		slog.String("vault_id", a.cfg.Vault.ID))

	if wipe {
		if err := a.sink.Wipe(ctx); err != nil {
			return nil, fmt.Errorf("wiping sink: %w", err)
		}
		r.logger.Info("sink wiped")
	}

	walker := NewVaultWalker(a.cfg.Vault, fsys, rootName, r.logger)
	scanner := NewScanner(fsys, a.cfg.Vault.MaxFileSize, r.logger)

	r.mergeNode(ctx, &graph.GraphNode{
		ID:      graph.DirectoryID(a.cfg.Vault.ID, graph.RootPath),
		Label:   graph.NodeDirectory,
		Name:    rootName,
		Path:    graph.RootPath,
		VaultID: a.cfg.Vault.ID,
	})

	err = walker.Walk(ctx, func(dir Directory) error {
		return r.processDirectory(ctx, scanner, dir)
	})
	r.result.WalkErrors = walker.Errors()
	r.result.Tags = len(r.tags)
	if err != nil {
		return r.result, err
	}

	r.logger.Info("vault sync complete",
		slog.Int("directories", r.result.Directories),
		slog.Int("notes", r.result.Notes),
		slog.Int("tags", r.result.Tags),
		slog.Int("relationships", r.result.RelationshipsWritten),
		slog.Int("write_errors", r.result.WriteErrors))
	return r.result, nil
}

// openRoot resolves the file system and display name of the vault root.
func (a *Assembler) openRoot() (fs.FS, string, error) {
	if a.fsys != nil {
		info, err := fs.Stat(a.fsys, ".")
		if err != nil || !info.IsDir() {
			return nil, "", fmt.Errorf("%s: %w", a.cfg.Vault.Path, ErrRootNotFound)
		}
		return a.fsys, rootBase(a.cfg.Vault.Path), nil
	}

	root, err := filepath.Abs(a.cfg.Vault.Path)
	if err != nil {
		return nil, "", fmt.Errorf("resolving vault root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, "", fmt.Errorf("%s: %w", root, ErrRootNotFound)
	}
	return os.DirFS(root), rootBase(root), nil
}

func rootBase(p string) string {
	base := filepath.Base(filepath.Clean(p))
	if base == "." || base == string(filepath.Separator) {
		if abs, err := filepath.Abs(p); err == nil {
			base = filepath.Base(abs)
		}
	}
	return base
}

func (r *run) processDirectory(ctx context.Context, scanner *Scanner, dir Directory) error {
	vaultID := r.cfg.Vault.ID
	dirID := graph.DirectoryID(vaultID, dir.Path)

	r.mergeNode(ctx, &graph.GraphNode{
		ID:      dirID,
		Label:   graph.NodeDirectory,
		Name:    dir.Name,
		Path:    dir.Path,
		VaultID: vaultID,
		Level:   dir.Level,
	})
	if dir.Level > 0 {
		parentID := graph.DirectoryID(vaultID, path.Dir(dir.Path))
		r.mergeEdge(ctx, graph.NewRelationship(graph.RelContains, parentID, dirID))
	}
	r.result.Directories++

	notes, err := r.prepareNotes(ctx, scanner, dir)
	if err != nil {
		return err
	}

	noteIDs := make([]string, 0, len(notes))
	for _, n := range notes {
		r.writeNote(ctx, dirID, n)
		noteIDs = append(noteIDs, n.node.ID)
	}

	// Siblings are linked only once every note of the directory exists.
	for i := range noteIDs {
		for j := i + 1; j < len(noteIDs); j++ {
			r.mergeEdge(ctx, graph.NewRelationship(graph.RelSiblingOf, noteIDs[i], noteIDs[j]))
			r.mergeEdge(ctx, graph.NewRelationship(graph.RelSiblingOf, noteIDs[j], noteIDs[i]))
		}
	}

	if r.progress != nil {
		r.progress(r.result.Directories, r.result.Notes)
	}
	return nil
}

// prepareNotes reads and parses the files of dir using up to
// cfg.Ingest.Workers goroutines. The result keeps the order of dir.Files.
func (r *run) prepareNotes(ctx context.Context, scanner *Scanner, dir Directory) ([]preparedNote, error) {
	notes := make([]preparedNote, len(dir.Files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(r.cfg.Ingest.Workers, 1))
	for i, relPath := range dir.Files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			notes[i] = r.prepareNote(gctx, scanner, dir, relPath)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return notes, nil
}

func (r *run) prepareNote(ctx context.Context, scanner *Scanner, dir Directory, relPath string) preparedNote {
	var p preparedNote

	content, err := scanner.Read(relPath)
	if err != nil {
		p.readFailed = true
		r.logger.Error("failed to read note",
			slog.String("path", relPath),
			slog.String("error", err.Error()))
		content = ""
	}

	var created, modified *time.Time
	rev, err := r.history.Lookup(ctx, relPath)
	switch {
	case err == nil:
		created, modified = &rev.Created, &rev.Modified
	case errors.Is(err, history.ErrDisabled):
		p.historyMissed = true
		r.logger.Debug("revision history disabled", slog.String("path", relPath))
	default:
		p.historyMissed = true
		r.logger.Warn("no revision timestamps for note",
			slog.String("path", relPath),
			slog.String("error", err.Error()))
	}

	for _, tag := range ExtractTags(content) {
		if h := ExpandTag(tag); len(h.Levels) > 0 {
			p.tags = append(p.tags, h)
		}
	}

	p.node = &graph.GraphNode{
		ID:         graph.NoteID(r.cfg.Vault.ID, relPath),
		Label:      graph.NodeNote,
		Name:       noteName(path.Base(relPath)),
		Path:       relPath,
		VaultID:    r.cfg.Vault.ID,
		Level:      dir.Level,
		Content:    content,
		CreatedAt:  created,
		ModifiedAt: modified,
	}
	return p
}

// writeNote writes a prepared note with its containment and tag edges.
func (r *run) writeNote(ctx context.Context, dirID string, n preparedNote) {
	if n.readFailed {
		r.result.ReadErrors++
		r.metrics.ReadError()
	}
	if n.historyMissed {
		r.result.HistoryMisses++
		r.metrics.HistoryMiss()
	}

	r.mergeNode(ctx, n.node)
	r.mergeEdge(ctx, graph.NewRelationship(graph.RelContains, dirID, n.node.ID))
	r.result.Notes++

	for _, h := range n.tags {
		for _, level := range h.Levels {
			r.mergeNode(ctx, &graph.GraphNode{
				ID:    graph.TagID(level.Path),
				Label: graph.NodeTag,
				Name:  level.Name,
				Path:  level.Path,
				Level: level.Level,
			})
			r.tags[level.Path] = struct{}{}
		}
		for _, level := range h.Levels {
			r.mergeEdge(ctx, graph.NewRelationship(graph.RelHasTag, n.node.ID, graph.TagID(level.Path)))
		}
		for _, e := range h.Edges {
			r.mergeEdge(ctx, graph.NewRelationship(graph.RelContains, graph.TagID(e.Parent), graph.TagID(e.Child)))
		}
	}
}

func (r *run) mergeNode(ctx context.Context, node *graph.GraphNode) {
	if err := r.sink.MergeNode(ctx, node); err != nil {
		r.result.WriteErrors++
		r.metrics.WriteError("node")
		r.logger.Error("failed to merge node",
			slog.String("id", node.ID),
			slog.String("error", err.Error()))
		return
	}
	r.result.NodesWritten++
	r.metrics.NodeMerged(string(node.Label))
}

func (r *run) mergeEdge(ctx context.Context, rel *graph.GraphRelationship) {
	if err := r.sink.MergeEdge(ctx, rel); err != nil {
		r.result.WriteErrors++
		r.metrics.WriteError("edge")
		r.logger.Error("failed to merge relationship",
			slog.String("id", rel.ID),
			slog.String("error", err.Error()))
		return
	}
	r.result.RelationshipsWritten++
	r.metrics.EdgeMerged(string(rel.Type))
}

// noteName strips the extension from a file name. A name that consists only
// of a leading dot and an extension, like ".md", is kept whole.
func noteName(base string) string {
	ext := path.Ext(base)
	if ext == base {
		return base
	}
	return strings.TrimSuffix(base, ext)
}
