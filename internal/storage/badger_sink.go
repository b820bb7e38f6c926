package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/Benny93/vaultgraph/internal/graph"
)

// Key prefixes for different data types
const (
	prefixNode     = "n:"     // node data
	prefixRel      = "r:"     // relationship data
	prefixIncoming = "i:in:"  // incoming relationships
	prefixOutgoing = "i:out:" // outgoing relationships
)

// indexSep separates the parts of an adjacency key. Node IDs and tag paths
// may contain ':' so a byte that never appears in them is used instead.
const indexSep = "\x00"

// BadgerSink is a BadgerDB-backed sink. It is the default store and the one
// the status, search and mcp commands read from.
type BadgerSink struct {
	db          *badger.DB
	initialized bool
	mu          sync.RWMutex
}

// NewBadgerSink creates a new BadgerDB sink.
func NewBadgerSink() *BadgerSink {
	return &BadgerSink{}
}

// Initialize opens or creates the BadgerDB database at the given path.
func (b *BadgerSink) Initialize(path string, readOnly bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	opts := badger.DefaultOptions(path).
		WithNumCompactors(2).
		WithNumMemtables(5).
		WithLoggingLevel(badger.ERROR) // Suppress INFO/WARNING logs

	if readOnly {
		opts = opts.WithReadOnly(true)
	}

	var err error
	b.db, err = badger.Open(opts)
	if err != nil {
		return fmt.Errorf("opening badger DB: %w", err)
	}

	b.initialized = true
	return nil
}

// Close implements Sink.
func (b *BadgerSink) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db == nil {
		return nil
	}

	err := b.db.Close()
	b.db = nil
	b.initialized = false
	return err
}

// Wipe implements Sink.
func (b *BadgerSink) Wipe(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.db.DropAll(); err != nil {
		return fmt.Errorf("dropping badger data: %w", err)
	}
	return nil
}

// MergeNode implements Sink.
func (b *BadgerSink) MergeNode(ctx context.Context, node *graph.GraphNode) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := json.Marshal(node)
	if err != nil {
		return fmt.Errorf("marshaling node: %w", err)
	}

	txn := b.db.NewTransaction(true)
	defer txn.Discard()

	if err := txn.Set(nodeKey(node.ID), data); err != nil {
		return fmt.Errorf("setting node: %w", err)
	}
	return txn.Commit()
}

// MergeEdge implements Sink.
func (b *BadgerSink) MergeEdge(ctx context.Context, rel *graph.GraphRelationship) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	txn := b.db.NewTransaction(true)
	defer txn.Discard()

	for _, id := range []string{rel.Source, rel.Target} {
		if _, err := txn.Get(nodeKey(id)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%s: %w", id, ErrMissingEndpoint)
			}
			return fmt.Errorf("getting endpoint: %w", err)
		}
	}

	if _, err := txn.Get(relKey(rel.ID)); err == nil {
		return nil
	} else if !errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("getting relationship: %w", err)
	}

	data, err := json.Marshal(rel)
	if err != nil {
		return fmt.Errorf("marshaling relationship: %w", err)
	}
	if err := txn.Set(relKey(rel.ID), data); err != nil {
		return fmt.Errorf("setting relationship: %w", err)
	}

	// Index for adjacency lists
	if err := txn.Set(outgoingKey(rel.Source, rel.Type, rel.ID), []byte(rel.ID)); err != nil {
		return fmt.Errorf("setting outgoing index: %w", err)
	}
	if err := txn.Set(incomingKey(rel.Target, rel.Type, rel.ID), []byte(rel.ID)); err != nil {
		return fmt.Errorf("setting incoming index: %w", err)
	}

	return txn.Commit()
}

// GetNode implements Reader.
func (b *BadgerSink) GetNode(ctx context.Context, nodeID string) (*graph.GraphNode, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	txn := b.db.NewTransaction(false)
	defer txn.Discard()

	return getNode(txn, nodeID)
}

// GetNodesByLabel implements Reader.
func (b *BadgerSink) GetNodesByLabel(ctx context.Context, label graph.NodeLabel) ([]*graph.GraphNode, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var nodes []*graph.GraphNode
	err := b.scanNodes(func(node *graph.GraphNode) {
		if node.Label == label {
			nodes = append(nodes, node)
		}
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return nodes, nil
}

// GetOutgoing implements Reader.
func (b *BadgerSink) GetOutgoing(ctx context.Context, nodeID string, relType graph.RelType) ([]*graph.GraphRelationship, error) {
	return b.adjacent(prefixOutgoing, nodeID, relType)
}

// GetIncoming implements Reader.
func (b *BadgerSink) GetIncoming(ctx context.Context, nodeID string, relType graph.RelType) ([]*graph.GraphRelationship, error) {
	return b.adjacent(prefixIncoming, nodeID, relType)
}

// adjacent resolves relationships through an adjacency index. An empty
// relType matches every type.
func (b *BadgerSink) adjacent(prefix, nodeID string, relType graph.RelType) ([]*graph.GraphRelationship, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	txn := b.db.NewTransaction(false)
	defer txn.Discard()

	scan := prefix + nodeID + indexSep
	if relType != "" {
		scan += string(relType) + indexSep
	}

	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(scan)
	it := txn.NewIterator(opts)
	defer it.Close()

	var rels []*graph.GraphRelationship
	for it.Rewind(); it.Valid(); it.Next() {
		var relID string
		if err := it.Item().Value(func(val []byte) error {
			relID = string(val)
			return nil
		}); err != nil {
			return nil, fmt.Errorf("reading rel ID: %w", err)
		}

		relItem, err := txn.Get(relKey(relID))
		if err != nil {
			continue // Skip if relationship not found
		}

		var rel graph.GraphRelationship
		if err := relItem.Value(func(val []byte) error {
			return json.Unmarshal(val, &rel)
		}); err != nil {
			return nil, fmt.Errorf("unmarshaling relationship: %w", err)
		}
		rels = append(rels, &rel)
	}

	return rels, nil
}

// Stats implements Reader.
func (b *BadgerSink) Stats(ctx context.Context) (Stats, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	stats := Stats{
		Nodes:         make(map[graph.NodeLabel]int),
		Relationships: make(map[graph.RelType]int),
	}

	if err := b.scanNodes(func(node *graph.GraphNode) {
		stats.Nodes[node.Label]++
	}); err != nil {
		return Stats{}, err
	}

	txn := b.db.NewTransaction(false)
	defer txn.Discard()

	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefixRel)
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		var rel graph.GraphRelationship
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &rel)
		}); err != nil {
			return Stats{}, fmt.Errorf("unmarshaling relationship: %w", err)
		}
		stats.Relationships[rel.Type]++
	}

	return stats, nil
}

// Search implements Reader.
func (b *BadgerSink) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	notes, err := b.GetNodesByLabel(ctx, graph.NodeNote)
	if err != nil {
		return nil, err
	}
	return searchNotes(notes, query, limit), nil
}

// scanNodes calls fn for every stored node. The caller must hold the lock.
func (b *BadgerSink) scanNodes(fn func(*graph.GraphNode)) error {
	txn := b.db.NewTransaction(false)
	defer txn.Discard()

	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefixNode)
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		var node graph.GraphNode
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &node)
		}); err != nil {
			return fmt.Errorf("unmarshaling node: %w", err)
		}
		fn(&node)
	}
	return nil
}

func getNode(txn *badger.Txn, nodeID string) (*graph.GraphNode, error) {
	item, err := txn.Get(nodeKey(nodeID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting node: %w", err)
	}

	var node graph.GraphNode
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &node)
	}); err != nil {
		return nil, fmt.Errorf("unmarshaling node: %w", err)
	}

	return &node, nil
}

// nodeKey returns the BadgerDB key for a node.
func nodeKey(nodeID string) []byte {
	return []byte(prefixNode + nodeID)
}

// relKey returns the BadgerDB key for a relationship.
func relKey(relID string) []byte {
	return []byte(prefixRel + relID)
}

func outgoingKey(source string, relType graph.RelType, relID string) []byte {
	return []byte(prefixOutgoing + source + indexSep + string(relType) + indexSep + relID)
}

func incomingKey(target string, relType graph.RelType, relID string) []byte {
	return []byte(prefixIncoming + target + indexSep + string(relType) + indexSep + relID)
}
