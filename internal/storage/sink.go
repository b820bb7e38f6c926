// Package storage provides the graph sinks vaultgraph writes into.
//
// A Sink merges nodes and relationships by identity key, so writing the same
// entity twice never duplicates it. Sinks that can be queried afterwards
// also implement Reader.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/Benny93/vaultgraph/internal/config"
	"github.com/Benny93/vaultgraph/internal/graph"
)

// ErrMissingEndpoint is returned by MergeEdge when either endpoint node does
// not exist in the sink.
var ErrMissingEndpoint = errors.New("relationship endpoint does not exist")

// Sink defines the write side of a graph store.
//
// Implementations must be safe for concurrent use, and every operation must
// be idempotent under repeated identical calls.
type Sink interface {
	// Wipe deletes every node and relationship.
	Wipe(ctx context.Context) error

	// MergeNode creates the node keyed by its ID, or replaces the mutable
	// attributes of the existing one.
	MergeNode(ctx context.Context, node *graph.GraphNode) error

	// MergeEdge creates the relationship between two existing nodes unless
	// the same (source, type, target) triple already exists.
	MergeEdge(ctx context.Context, rel *graph.GraphRelationship) error

	// Close releases all resources held by the sink.
	Close() error
}

// Stats summarizes the content of a store.
type Stats struct {
	Nodes         map[graph.NodeLabel]int
	Relationships map[graph.RelType]int
}

// TotalNodes returns the number of nodes across all labels.
func (s Stats) TotalNodes() int {
	total := 0
	for _, n := range s.Nodes {
		total += n
	}
	return total
}

// TotalRelationships returns the number of relationships across all types.
func (s Stats) TotalRelationships() int {
	total := 0
	for _, n := range s.Relationships {
		total += n
	}
	return total
}

// SearchResult represents a note matching a search query.
type SearchResult struct {
	// NodeID is the ID of the matching node.
	NodeID string

	// Score is the number of query tokens found (higher is better).
	Score float64

	// Name is the name of the node.
	Name string

	// Path is the vault-relative path of the node.
	Path string

	// Snippet is a content excerpt.
	Snippet string
}

// Reader defines the query side of a graph store.
type Reader interface {
	// GetNode returns a single node by ID, or nil if not found.
	GetNode(ctx context.Context, nodeID string) (*graph.GraphNode, error)

	// GetNodesByLabel returns all nodes with the given label.
	GetNodesByLabel(ctx context.Context, label graph.NodeLabel) ([]*graph.GraphNode, error)

	// GetOutgoing returns relationships leaving nodeID, optionally filtered by type.
	GetOutgoing(ctx context.Context, nodeID string, relType graph.RelType) ([]*graph.GraphRelationship, error)

	// GetIncoming returns relationships entering nodeID, optionally filtered by type.
	GetIncoming(ctx context.Context, nodeID string, relType graph.RelType) ([]*graph.GraphRelationship, error)

	// Stats counts nodes by label and relationships by type.
	Stats(ctx context.Context) (Stats, error)

	// Search finds notes whose name or content matches the query tokens.
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
}

// Open creates the sink described by cfg. Connection failures are returned
// here so a run can abort before any traversal begins.
func Open(ctx context.Context, cfg config.SinkConfig) (Sink, error) {
	switch cfg.Kind {
	case config.SinkMemory:
		return NewMemorySink(), nil
	case config.SinkBadger:
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, fmt.Errorf("creating badger directory: %w", err)
		}
		sink := NewBadgerSink()
		if err := sink.Initialize(cfg.Path, false); err != nil {
			return nil, err
		}
		return sink, nil
	case config.SinkNeo4j:
		return OpenNeo4j(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown sink kind %q", cfg.Kind)
	}
}
