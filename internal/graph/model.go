// Package graph provides the vault graph data model for vaultgraph.
//
// It defines the node and relationship types that represent a vault
// (directories, notes, tags) and the edges between them (contains,
// sibling_of, has_tag), together with the deterministic identity keys
// every sink merges on.
package graph

import (
	"strings"
	"time"
)

// NodeLabel represents the type of a graph node.
type NodeLabel string

const (
	NodeDirectory NodeLabel = "Directory"
	NodeNote      NodeLabel = "Note"
	NodeTag       NodeLabel = "Tag"
)

// Labels lists every node label in a stable order.
var Labels = []NodeLabel{NodeDirectory, NodeNote, NodeTag}

// RelType represents the type of relationship between graph nodes.
type RelType string

const (
	RelContains  RelType = "CONTAINS"
	RelSiblingOf RelType = "SIBLING_OF"
	RelHasTag    RelType = "HAS_TAG"
)

// RelTypes lists every relationship type in a stable order.
var RelTypes = []RelType{RelContains, RelSiblingOf, RelHasTag}

// RootPath is the relative path of the vault root directory.
const RootPath = "."

// GraphNode represents a node in the vault graph.
type GraphNode struct {
	// ID is the merge key of the node.
	// Format: {label}:{vault_id}:{path} for directories and notes,
	// {label}:{tag_path} for tags.
	ID string `json:"id"`

	// Label is the type of the node.
	Label NodeLabel `json:"label"`

	// Name is the directory basename, the note filename without extension,
	// or the leaf segment of a tag.
	Name string `json:"name"`

	// Path is the slash-separated root-relative path, or the tag path.
	Path string `json:"path"`

	// VaultID scopes directories and notes. Empty for tags.
	VaultID string `json:"vault_id,omitempty"`

	// Level is the depth of the node (root directory and top-level tags are 0).
	Level int `json:"level"`

	// Content is the note text (notes only).
	Content string `json:"content,omitempty"`

	// CreatedAt is the first commit time of the note, nil when unknown.
	CreatedAt *time.Time `json:"created_at,omitempty"`

	// ModifiedAt is the last commit time of the note, nil when unknown.
	ModifiedAt *time.Time `json:"modified_at,omitempty"`
}

// GraphRelationship represents a directed edge in the vault graph.
type GraphRelationship struct {
	// ID is the unique identifier for the relationship, derived from its
	// type and endpoints.
	ID string `json:"id"`

	// Type is the type of relationship.
	Type RelType `json:"type"`

	// Source is the ID of the source node.
	Source string `json:"source"`

	// Target is the ID of the target node.
	Target string `json:"target"`
}

// Properties returns the mutable attributes of the node keyed the way they
// are stored in a property graph. Nil timestamps are kept as nil values so
// that a merge clears previously known dates.
func (n *GraphNode) Properties() map[string]any {
	props := map[string]any{
		"id":    n.ID,
		"name":  n.Name,
		"path":  n.Path,
		"level": n.Level,
	}

	switch n.Label {
	case NodeDirectory:
		props["vault_id"] = n.VaultID
	case NodeNote:
		props["vault_id"] = n.VaultID
		props["content"] = n.Content
		props["created_at"] = timeOrNil(n.CreatedAt)
		props["modified_at"] = timeOrNil(n.ModifiedAt)
	}

	return props
}

func timeOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

// DirectoryID returns the identity key of a directory node.
func DirectoryID(vaultID, path string) string {
	return string(NodeDirectory) + ":" + vaultID + ":" + path
}

// NoteID returns the identity key of a note node.
func NoteID(vaultID, path string) string {
	return string(NodeNote) + ":" + vaultID + ":" + path
}

// TagID returns the identity key of a tag node. Tags are not scoped by vault.
func TagID(tagPath string) string {
	return string(NodeTag) + ":" + tagPath
}

// RelationshipID returns the identity key of a relationship.
// Format: {type}:{source}->{target}
func RelationshipID(relType RelType, source, target string) string {
	return string(relType) + ":" + source + "->" + target
}

// NewRelationship builds a relationship with its deterministic ID.
func NewRelationship(relType RelType, source, target string) *GraphRelationship {
	return &GraphRelationship{
		ID:     RelationshipID(relType, source, target),
		Type:   relType,
		Source: source,
		Target: target,
	}
}

// LabelOf returns the label encoded in a node ID, or "" if the ID is not
// one produced by this package.
func LabelOf(nodeID string) NodeLabel {
	prefix, _, ok := strings.Cut(nodeID, ":")
	if !ok {
		return ""
	}
	for _, l := range Labels {
		if string(l) == prefix {
			return l
		}
	}
	return ""
}
