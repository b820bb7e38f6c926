package history

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

// GoGit reads history in-process with go-git. The vault may live anywhere
// inside the work tree; paths are translated to repository paths.
type GoGit struct {
	mu     sync.Mutex
	repo   *git.Repository
	prefix string
}

// NewGoGit opens the repository containing root.
func NewGoGit(root string) (*GoGit, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving vault root: %w", err)
	}

	repo, err := git.PlainOpenWithOptions(absRoot, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("opening git repository at %s: %w", absRoot, err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("opening worktree: %w", err)
	}

	prefix, err := filepath.Rel(wt.Filesystem.Root(), absRoot)
	if err != nil {
		return nil, fmt.Errorf("locating vault in worktree: %w", err)
	}
	prefix = filepath.ToSlash(prefix)
	if prefix == "." {
		prefix = ""
	}

	return &GoGit{repo: repo, prefix: prefix}, nil
}

// Lookup implements Provider.
func (g *GoGit) Lookup(ctx context.Context, relPath string) (Revision, error) {
	repoPath := relPath
	if g.prefix != "" {
		repoPath = path.Join(g.prefix, relPath)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	iter, err := g.repo.Log(&git.LogOptions{
		FileName: &repoPath,
		Order:    git.LogOrderCommitterTime,
	})
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return Revision{}, fmt.Errorf("%s: %w", relPath, ErrNoHistory)
		}
		return Revision{}, fmt.Errorf("reading log for %s: %w", relPath, err)
	}
	defer iter.Close()

	// The log is newest first.
	var newestFirst []time.Time
	err = iter.ForEach(func(c *object.Commit) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		newestFirst = append(newestFirst, c.Author.When)
		return nil
	})
	if err != nil && !errors.Is(err, storer.ErrStop) {
		return Revision{}, fmt.Errorf("walking log for %s: %w", relPath, err)
	}

	times := make([]time.Time, len(newestFirst))
	for i, t := range newestFirst {
		times[len(newestFirst)-1-i] = t
	}

	rev, err := fromTimes(times)
	if err != nil {
		return Revision{}, fmt.Errorf("%s: %w", relPath, err)
	}
	return rev, nil
}
