package ingestion

import "strings"

// TagLevel is one node of a tag's ancestor chain.
type TagLevel struct {
	// Path is the slash-joined path of the first Level+1 segments.
	Path string

	// Level is the 0-based depth of the segment.
	Level int

	// Name is the segment itself.
	Name string
}

// TagEdge links a tag level to the next deeper one.
type TagEdge struct {
	Parent string
	Child  string
}

// Hierarchy is the expansion of one tag path.
type Hierarchy struct {
	Levels []TagLevel
	Edges  []TagEdge
}

// Leaf returns the deepest level. It panics on an empty hierarchy.
func (h Hierarchy) Leaf() TagLevel {
	return h.Levels[len(h.Levels)-1]
}

// ExpandTag splits a slash-delimited tag path into its ancestor chain, e.g.
// "a/b/c" yields levels a, a/b, a/b/c and the edges a→a/b, a/b→a/b/c.
// Empty segments are dropped; a path without segments yields an empty
// Hierarchy.
func ExpandTag(tagPath string) Hierarchy {
	var segments []string
	for _, s := range strings.Split(tagPath, "/") {
		if s = strings.TrimSpace(s); s != "" {
			segments = append(segments, s)
		}
	}

	var h Hierarchy
	for i, name := range segments {
		level := TagLevel{
			Path:  strings.Join(segments[:i+1], "/"),
			Level: i,
			Name:  name,
		}
		if i > 0 {
			h.Edges = append(h.Edges, TagEdge{Parent: h.Levels[i-1].Path, Child: level.Path})
		}
		h.Levels = append(h.Levels, level)
	}
	return h
}
