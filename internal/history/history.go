// Package history resolves when a note was created and last modified from
// the revision history of the vault.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Benny93/vaultgraph/internal/config"
)

var (
	// ErrNoHistory is returned when a path has no commits.
	ErrNoHistory = errors.New("no revision history")

	// ErrDisabled is returned by the None provider.
	ErrDisabled = errors.New("revision history disabled")
)

// Revision holds the first and last commit times of a path.
type Revision struct {
	Created  time.Time
	Modified time.Time
}

// Provider looks up the revision history of a root-relative, slash-separated path.
//
// Implementations return ErrNoHistory (possibly wrapped) when the path is
// untracked, and any other error when the lookup itself failed.
type Provider interface {
	Lookup(ctx context.Context, relPath string) (Revision, error)
}

// New returns the provider named by kind for the vault at root.
func New(kind, root string) (Provider, error) {
	switch kind {
	case config.HistoryGit:
		return NewGitCLI(root), nil
	case config.HistoryGoGit:
		return NewGoGit(root)
	case config.HistoryNone, "":
		return None{}, nil
	default:
		return nil, fmt.Errorf("unknown history provider %q", kind)
	}
}

// None is a Provider that never knows any history.
type None struct{}

// Lookup implements Provider.
func (None) Lookup(context.Context, string) (Revision, error) {
	return Revision{}, ErrDisabled
}

// fromTimes builds a Revision from commit times ordered oldest first.
func fromTimes(times []time.Time) (Revision, error) {
	if len(times) == 0 {
		return Revision{}, ErrNoHistory
	}
	return Revision{
		Created:  times[0],
		Modified: times[len(times)-1],
	}, nil
}
