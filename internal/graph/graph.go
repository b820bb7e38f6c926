// Package graph provides the in-memory vault graph for vaultgraph.
//
// KnowledgeGraph is a map-backed graph of GraphNode and GraphRelationship
// values with O(1) lookups by ID. Secondary indexes on label, relationship
// type, and adjacency keep queries linear in the result set.
package graph

import (
	"sort"
	"sync"
)

// KnowledgeGraph is an in-memory directed graph of vault entities.
//
// Nodes and relationships are keyed by their ID, so adding an entity twice
// replaces it instead of duplicating it.
type KnowledgeGraph struct {
	mu            sync.RWMutex
	nodes         map[string]*GraphNode
	relationships map[string]*GraphRelationship

	// Secondary indexes, kept in sync by the add helpers.
	byLabel   map[NodeLabel]map[string]*GraphNode
	byRelType map[RelType]map[string]*GraphRelationship
	outgoing  map[string]map[string]*GraphRelationship
	incoming  map[string]map[string]*GraphRelationship
}

// NewKnowledgeGraph creates a new empty graph.
func NewKnowledgeGraph() *KnowledgeGraph {
	g := &KnowledgeGraph{}
	g.reset()
	return g
}

func (g *KnowledgeGraph) reset() {
	g.nodes = make(map[string]*GraphNode)
	g.relationships = make(map[string]*GraphRelationship)
	g.byLabel = make(map[NodeLabel]map[string]*GraphNode)
	g.byRelType = make(map[RelType]map[string]*GraphRelationship)
	g.outgoing = make(map[string]map[string]*GraphRelationship)
	g.incoming = make(map[string]map[string]*GraphRelationship)
}

// Clear removes every node and relationship.
func (g *KnowledgeGraph) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reset()
}

// AddNode adds a node to the graph, replacing any existing node with the same ID.
func (g *KnowledgeGraph) AddNode(node *GraphNode) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if old, ok := g.nodes[node.ID]; ok && old.Label != node.Label {
		delete(g.byLabel[old.Label], node.ID)
	}

	g.nodes[node.ID] = node

	if g.byLabel[node.Label] == nil {
		g.byLabel[node.Label] = make(map[string]*GraphNode)
	}
	g.byLabel[node.Label][node.ID] = node
}

// GetNode returns the node with the given ID, or nil if it does not exist.
func (g *KnowledgeGraph) GetNode(nodeID string) *GraphNode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[nodeID]
}

// HasNode reports whether a node with the given ID exists.
func (g *KnowledgeGraph) HasNode(nodeID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.nodes[nodeID]
	return ok
}

// AddRelationship adds a relationship to the graph, replacing any existing
// relationship with the same ID.
func (g *KnowledgeGraph) AddRelationship(rel *GraphRelationship) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if old, ok := g.relationships[rel.ID]; ok {
		delete(g.byRelType[old.Type], rel.ID)
		delete(g.outgoing[old.Source], rel.ID)
		delete(g.incoming[old.Target], rel.ID)
	}

	g.relationships[rel.ID] = rel

	if g.byRelType[rel.Type] == nil {
		g.byRelType[rel.Type] = make(map[string]*GraphRelationship)
	}
	g.byRelType[rel.Type][rel.ID] = rel

	if g.outgoing[rel.Source] == nil {
		g.outgoing[rel.Source] = make(map[string]*GraphRelationship)
	}
	g.outgoing[rel.Source][rel.ID] = rel

	if g.incoming[rel.Target] == nil {
		g.incoming[rel.Target] = make(map[string]*GraphRelationship)
	}
	g.incoming[rel.Target][rel.ID] = rel
}

// GetRelationship returns the relationship with the given ID, or nil.
func (g *KnowledgeGraph) GetRelationship(relID string) *GraphRelationship {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.relationships[relID]
}

// GetNodesByLabel returns all nodes with the given label.
func (g *KnowledgeGraph) GetNodesByLabel(label NodeLabel) []*GraphNode {
	g.mu.RLock()
	defer g.mu.RUnlock()

	nodes, ok := g.byLabel[label]
	if !ok {
		return nil
	}

	result := make([]*GraphNode, 0, len(nodes))
	for _, node := range nodes {
		result = append(result, node)
	}
	return result
}

// GetRelationshipsByType returns all relationships with the given type.
func (g *KnowledgeGraph) GetRelationshipsByType(relType RelType) []*GraphRelationship {
	g.mu.RLock()
	defer g.mu.RUnlock()

	rels, ok := g.byRelType[relType]
	if !ok {
		return nil
	}

	result := make([]*GraphRelationship, 0, len(rels))
	for _, rel := range rels {
		result = append(result, rel)
	}
	return result
}

// GetOutgoing returns relationships originating from the given node ID.
// If relType is provided, only relationships of that type are returned.
func (g *KnowledgeGraph) GetOutgoing(nodeID string, relType ...RelType) []*GraphRelationship {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return filterRels(g.outgoing[nodeID], relType)
}

// GetIncoming returns relationships targeting the given node ID.
// If relType is provided, only relationships of that type are returned.
func (g *KnowledgeGraph) GetIncoming(nodeID string, relType ...RelType) []*GraphRelationship {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return filterRels(g.incoming[nodeID], relType)
}

func filterRels(rels map[string]*GraphRelationship, relType []RelType) []*GraphRelationship {
	if len(rels) == 0 {
		return nil
	}

	result := make([]*GraphRelationship, 0, len(rels))
	for _, rel := range rels {
		if len(relType) > 0 && relType[0] != "" && rel.Type != relType[0] {
			continue
		}
		result = append(result, rel)
	}
	return result
}

// NodeIDs returns every node ID in sorted order.
func (g *KnowledgeGraph) NodeIDs() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RelationshipIDs returns every relationship ID in sorted order.
func (g *KnowledgeGraph) RelationshipIDs() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ids := make([]string, 0, len(g.relationships))
	for id := range g.relationships {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Stats counts nodes by label and relationships by type. Every label in
// Labels and every type in RelTypes is present, zero when absent.
func (g *KnowledgeGraph) Stats() (map[NodeLabel]int, map[RelType]int) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	nodes := make(map[NodeLabel]int, len(Labels))
	for _, label := range Labels {
		nodes[label] = len(g.byLabel[label])
	}
	rels := make(map[RelType]int, len(RelTypes))
	for _, relType := range RelTypes {
		rels[relType] = len(g.byRelType[relType])
	}
	return nodes, rels
}
