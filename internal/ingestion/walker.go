// Package ingestion derives the vault graph from a document tree.
package ingestion

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/Benny93/vaultgraph/internal/config"
)

// Directory is one visited directory of the vault.
type Directory struct {
	// Path is the slash-separated root-relative path ("." for the root).
	Path string

	// Name is the basename of the directory.
	Name string

	// Level is the number of path segments below the root (root is 0).
	Level int

	// Files lists the eligible files directly inside the directory as
	// root-relative paths, in lexical order.
	Files []string
}

// WalkOptions controls which parts of the vault are visited.
type WalkOptions struct {
	// RootName is reported as the Name of the root directory.
	RootName string

	// Extension selects eligible files by suffix, e.g. ".md".
	Extension string

	// ExcludeDirs are directory basenames never descended into.
	ExcludeDirs []string

	// ExcludePrefixes are root-relative directory paths never descended into.
	ExcludePrefixes []string

	// ExcludeFiles are file basenames never reported.
	ExcludeFiles []string

	// ExcludePatterns are doublestar globs matched against a file's
	// basename and its root-relative path.
	ExcludePatterns []string

	// Gitignore, when set, excludes matching directories and files.
	Gitignore gitignore.Matcher
}

// Walker performs a pre-order traversal of a vault.
type Walker struct {
	fsys         fs.FS
	opts         WalkOptions
	excludeDirs  map[string]struct{}
	excludeFiles map[string]struct{}
	prefixes     []string
	patterns     []string
	logger       *slog.Logger
	errors       int
}

// NewWalker creates a walker over fsys. Invalid glob patterns are logged and
// ignored.
func NewWalker(fsys fs.FS, opts WalkOptions, logger *slog.Logger) *Walker {
	w := &Walker{
		fsys:         fsys,
		opts:         opts,
		excludeDirs:  toSet(opts.ExcludeDirs),
		excludeFiles: toSet(opts.ExcludeFiles),
		logger:       logger,
	}

	for _, p := range opts.ExcludePrefixes {
		p = strings.Trim(strings.TrimPrefix(strings.ReplaceAll(p, "\\", "/"), "./"), "/")
		if p != "" && p != "." {
			w.prefixes = append(w.prefixes, p)
		}
	}

	for _, p := range opts.ExcludePatterns {
		if !doublestar.ValidatePattern(p) {
			logger.Warn("ignoring invalid exclude pattern", slog.String("pattern", p))
			continue
		}
		w.patterns = append(w.patterns, p)
	}

	if w.opts.RootName == "" {
		w.opts.RootName = "."
	}
	return w
}

// Walk visits every non-excluded directory in pre-order, children in lexical
// order, and calls fn once per directory. Unreadable directories are logged,
// counted and skipped together with their subtree. Walk stops at the first
// error returned by fn or when ctx is done.
func (w *Walker) Walk(ctx context.Context, fn func(Directory) error) error {
	w.errors = 0
	return w.walkDir(ctx, ".", 0, fn)
}

// Errors returns the number of directories skipped during the last Walk
// because they could not be listed.
func (w *Walker) Errors() int {
	return w.errors
}

func (w *Walker) walkDir(ctx context.Context, dirPath string, level int, fn func(Directory) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	entries, err := fs.ReadDir(w.fsys, dirPath)
	if err != nil {
		w.errors++
		w.logger.Warn("skipping unreadable directory",
			slog.String("path", dirPath),
			slog.String("error", err.Error()))
		return nil
	}

	dir := Directory{Path: dirPath, Name: path.Base(dirPath), Level: level}
	if dirPath == "." {
		dir.Name = w.opts.RootName
	}

	// fs.ReadDir returns entries sorted by filename.
	var subdirs []string
	for _, entry := range entries {
		childPath := path.Join(dirPath, entry.Name())

		if entry.IsDir() {
			if w.excludedDir(childPath, entry.Name()) {
				w.logger.Debug("excluding directory", slog.String("path", childPath))
				continue
			}
			subdirs = append(subdirs, childPath)
			continue
		}

		if w.eligibleFile(childPath, entry.Name()) {
			dir.Files = append(dir.Files, childPath)
		}
	}

	if err := fn(dir); err != nil {
		return err
	}

	for _, sub := range subdirs {
		if err := w.walkDir(ctx, sub, level+1, fn); err != nil {
			return err
		}
	}
	return nil
}

// excludedDir reports whether the directory at relPath must not be visited.
func (w *Walker) excludedDir(relPath, name string) bool {
	if _, ok := w.excludeDirs[name]; ok {
		return true
	}
	for _, p := range w.prefixes {
		if relPath == p || strings.HasPrefix(relPath, p+"/") {
			return true
		}
	}
	if w.opts.Gitignore != nil && w.opts.Gitignore.Match(strings.Split(relPath, "/"), true) {
		return true
	}
	return false
}

// eligibleFile reports whether the file at relPath becomes a note.
func (w *Walker) eligibleFile(relPath, name string) bool {
	if !strings.HasSuffix(name, w.opts.Extension) {
		return false
	}
	if _, ok := w.excludeFiles[name]; ok {
		return false
	}
	for _, p := range w.patterns {
		if matchGlob(p, name) || matchGlob(p, relPath) {
			return false
		}
	}
	if w.opts.Gitignore != nil && w.opts.Gitignore.Match(strings.Split(relPath, "/"), false) {
		return false
	}
	return true
}

// Excluded reports whether a root-relative path lies in an excluded
// directory, or is itself an excluded directory or an ineligible file.
func (w *Walker) Excluded(relPath string, isDir bool) bool {
	relPath = strings.Trim(relPath, "/")
	if relPath == "" || relPath == "." {
		return false
	}

	segments := strings.Split(relPath, "/")
	for i := range segments[:len(segments)-1] {
		if w.excludedDir(strings.Join(segments[:i+1], "/"), segments[i]) {
			return true
		}
	}

	name := segments[len(segments)-1]
	if isDir {
		return w.excludedDir(relPath, name)
	}
	return !w.eligibleFile(relPath, name)
}

func matchGlob(pattern, name string) bool {
	ok, err := doublestar.Match(pattern, name)
	return err == nil && ok
}

// LoadGitignore reads the .gitignore at the root of fsys. A missing file
// yields a nil matcher.
func LoadGitignore(fsys fs.FS) (gitignore.Matcher, error) {
	content, err := fs.ReadFile(fsys, ".gitignore")
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	// Parse patterns
	var patterns []gitignore.Pattern
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}

	return gitignore.NewMatcher(patterns), nil
}

// NewVaultWalker builds the walker described by the vault section of the
// configuration. A .gitignore that cannot be read is logged and ignored.
func NewVaultWalker(vault config.VaultConfig, fsys fs.FS, rootName string, logger *slog.Logger) *Walker {
	opts := WalkOptions{
		RootName:        rootName,
		Extension:       vault.Extension,
		ExcludeDirs:     vault.ExcludeDirs,
		ExcludePrefixes: vault.ExcludePrefixes,
		ExcludeFiles:    vault.ExcludeFiles,
		ExcludePatterns: vault.ExcludePatterns,
	}
	if vault.RespectGitignore {
		matcher, err := LoadGitignore(fsys)
		if err != nil {
			logger.Warn("failed to load .gitignore", slog.String("error", err.Error()))
		}
		opts.Gitignore = matcher
	}
	return NewWalker(fsys, opts, logger)
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
