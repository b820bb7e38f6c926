package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewKnowledgeGraph(t *testing.T) {
	t.Parallel()

	g := NewKnowledgeGraph()

	assert.NotNil(t, g)
	assert.Empty(t, g.NodeIDs())
	assert.Empty(t, g.RelationshipIDs())
}

func TestKnowledgeGraph_AddNode(t *testing.T) {
	t.Parallel()

	t.Run("AddSingle", func(t *testing.T) {
		t.Parallel()
		g := NewKnowledgeGraph()
		node := &GraphNode{ID: NoteID("v", "a.md"), Label: NodeNote, Name: "a", Path: "a.md"}

		g.AddNode(node)

		assert.Len(t, g.NodeIDs(), 1)
		assert.Equal(t, node, g.GetNode(NoteID("v", "a.md")))
		assert.True(t, g.HasNode(NoteID("v", "a.md")))
	})

	t.Run("AddMultiple", func(t *testing.T) {
		t.Parallel()
		g := NewKnowledgeGraph()

		g.AddNode(&GraphNode{ID: DirectoryID("v", "."), Label: NodeDirectory, Name: "vault", Path: "."})
		g.AddNode(&GraphNode{ID: NoteID("v", "a.md"), Label: NodeNote, Name: "a", Path: "a.md"})
		g.AddNode(&GraphNode{ID: NoteID("v", "b.md"), Label: NodeNote, Name: "b", Path: "b.md"})

		nodes, _ := g.Stats()
		assert.Len(t, g.NodeIDs(), 3)
		assert.Equal(t, 2, nodes[NodeNote])
		assert.Equal(t, 1, nodes[NodeDirectory])
		assert.Equal(t, 0, nodes[NodeTag])
	})

	t.Run("ReplaceExisting", func(t *testing.T) {
		t.Parallel()
		g := NewKnowledgeGraph()

		g.AddNode(&GraphNode{ID: NoteID("v", "a.md"), Label: NodeNote, Content: "old"})
		g.AddNode(&GraphNode{ID: NoteID("v", "a.md"), Label: NodeNote, Content: "new"})

		assert.Len(t, g.NodeIDs(), 1)
		assert.Equal(t, "new", g.GetNode(NoteID("v", "a.md")).Content)
	})

	t.Run("ReplaceWithDifferentLabel", func(t *testing.T) {
		t.Parallel()
		g := NewKnowledgeGraph()

		g.AddNode(&GraphNode{ID: "id1", Label: NodeNote})
		g.AddNode(&GraphNode{ID: "id1", Label: NodeTag})

		nodes, _ := g.Stats()
		assert.Equal(t, 0, nodes[NodeNote])
		assert.Equal(t, 1, nodes[NodeTag])
		assert.Empty(t, g.GetNodesByLabel(NodeNote))
		assert.Len(t, g.NodeIDs(), 1)
	})
}

func TestKnowledgeGraph_Relationships(t *testing.T) {
	t.Parallel()

	g := NewKnowledgeGraph()
	root := DirectoryID("v", ".")
	note := NoteID("v", "a.md")
	tag := TagID("ai")

	g.AddNode(&GraphNode{ID: root, Label: NodeDirectory})
	g.AddNode(&GraphNode{ID: note, Label: NodeNote})
	g.AddNode(&GraphNode{ID: tag, Label: NodeTag})
	g.AddRelationship(NewRelationship(RelContains, root, note))
	g.AddRelationship(NewRelationship(RelHasTag, note, tag))

	t.Run("SameTripleIsMerged", func(t *testing.T) {
		g.AddRelationship(NewRelationship(RelHasTag, note, tag))
		assert.Len(t, g.RelationshipIDs(), 2)
	})

	t.Run("FilterOutgoingByType", func(t *testing.T) {
		assert.Len(t, g.GetOutgoing(note), 1)
		assert.Len(t, g.GetOutgoing(note, RelHasTag), 1)
		assert.Empty(t, g.GetOutgoing(note, RelContains))
	})

	t.Run("Incoming", func(t *testing.T) {
		in := g.GetIncoming(note, RelContains)
		assert.Len(t, in, 1)
		assert.Equal(t, root, in[0].Source)
	})

	t.Run("ByType", func(t *testing.T) {
		assert.Len(t, g.GetRelationshipsByType(RelContains), 1)
		assert.Nil(t, g.GetRelationshipsByType(RelSiblingOf))
	})

	t.Run("SortedIDs", func(t *testing.T) {
		assert.Equal(t, []string{root, note, tag}, g.NodeIDs())
		assert.Len(t, g.RelationshipIDs(), 2)
	})

	t.Run("Stats", func(t *testing.T) {
		nodes, rels := g.Stats()
		assert.Equal(t, map[NodeLabel]int{NodeDirectory: 1, NodeNote: 1, NodeTag: 1}, nodes)
		assert.Equal(t, map[RelType]int{RelContains: 1, RelSiblingOf: 0, RelHasTag: 1}, rels)
	})
}

func TestKnowledgeGraph_Clear(t *testing.T) {
	t.Parallel()

	g := NewKnowledgeGraph()
	g.AddNode(&GraphNode{ID: "a", Label: NodeNote})
	g.AddNode(&GraphNode{ID: "b", Label: NodeNote})
	g.AddRelationship(NewRelationship(RelSiblingOf, "a", "b"))

	g.Clear()

	nodes, rels := g.Stats()
	assert.Empty(t, g.NodeIDs())
	assert.Empty(t, g.RelationshipIDs())
	assert.Zero(t, nodes[NodeNote])
	assert.Zero(t, rels[RelSiblingOf])
}
