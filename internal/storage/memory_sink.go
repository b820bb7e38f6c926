package storage

import (
	"context"
	"fmt"

	"github.com/Benny93/vaultgraph/internal/graph"
)

// MemorySink keeps the graph in a KnowledgeGraph. It is used for dry runs
// and as the reference sink in tests.
type MemorySink struct {
	graph *graph.KnowledgeGraph
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{graph: graph.NewKnowledgeGraph()}
}

// Graph returns the underlying graph.
func (m *MemorySink) Graph() *graph.KnowledgeGraph {
	return m.graph
}

// Wipe implements Sink.
func (m *MemorySink) Wipe(ctx context.Context) error {
	m.graph.Clear()
	return nil
}

// MergeNode implements Sink.
func (m *MemorySink) MergeNode(ctx context.Context, node *graph.GraphNode) error {
	clone := *node
	m.graph.AddNode(&clone)
	return nil
}

// MergeEdge implements Sink.
func (m *MemorySink) MergeEdge(ctx context.Context, rel *graph.GraphRelationship) error {
	if !m.graph.HasNode(rel.Source) {
		return fmt.Errorf("source %s: %w", rel.Source, ErrMissingEndpoint)
	}
	if !m.graph.HasNode(rel.Target) {
		return fmt.Errorf("target %s: %w", rel.Target, ErrMissingEndpoint)
	}
	if m.graph.GetRelationship(rel.ID) != nil {
		return nil
	}
	clone := *rel
	m.graph.AddRelationship(&clone)
	return nil
}

// Close implements Sink.
func (m *MemorySink) Close() error {
	return nil
}

// GetNode implements Reader.
func (m *MemorySink) GetNode(ctx context.Context, nodeID string) (*graph.GraphNode, error) {
	return m.graph.GetNode(nodeID), nil
}

// GetNodesByLabel implements Reader.
func (m *MemorySink) GetNodesByLabel(ctx context.Context, label graph.NodeLabel) ([]*graph.GraphNode, error) {
	return m.graph.GetNodesByLabel(label), nil
}

// GetOutgoing implements Reader.
func (m *MemorySink) GetOutgoing(ctx context.Context, nodeID string, relType graph.RelType) ([]*graph.GraphRelationship, error) {
	return m.graph.GetOutgoing(nodeID, relType), nil
}

// GetIncoming implements Reader.
func (m *MemorySink) GetIncoming(ctx context.Context, nodeID string, relType graph.RelType) ([]*graph.GraphRelationship, error) {
	return m.graph.GetIncoming(nodeID, relType), nil
}

// Stats implements Reader.
func (m *MemorySink) Stats(ctx context.Context) (Stats, error) {
	nodes, rels := m.graph.Stats()
	return Stats{Nodes: nodes, Relationships: rels}, nil
}

// Search implements Reader.
func (m *MemorySink) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	return searchNotes(m.graph.GetNodesByLabel(graph.NodeNote), query, limit), nil
}
