package ingestion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractTags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{
			name:    "InlineListMetadata",
			content: "---\ntitle: x\ntags: [Project, Dev]\n---\nbody",
			want:    []string{"dev", "project"},
		},
		{
			name:    "QuotedInlineList",
			content: "---\ntags: [\"a/b\", 'c' , ]\n---\n",
			want:    []string{"a/b", "c"},
		},
		{
			name:    "BlockListMetadata",
			content: "---\ntags:\n  - Alpha\n  - \"beta/gamma\"\n- delta\nother: 1\n---\n",
			want:    []string{"alpha", "beta/gamma", "delta"},
		},
		{
			name:    "InlineFormWins",
			content: "---\ntags:\n  - block\ntags: [inline]\n---\n",
			want:    []string{"inline"},
		},
		{
			name:    "ScalarFormNotRecognised",
			content: "---\ntags: solo\n---\n",
			want:    []string{},
		},
		{
			name:    "LeadingWhitespaceBeforeMetadata",
			content: "\n\n  ---\ntags: [x]\n---\n",
			want:    []string{"x"},
		},
		{
			name:    "MetadataNotAtStart",
			content: "intro\n---\ntags: [x]\n---\n",
			want:    []string{},
		},
		{
			name:    "UnterminatedMetadata",
			content: "---\ntags: [x]\nno closing marker",
			want:    []string{},
		},
		{
			name:    "CRLFMetadata",
			content: "---\r\ntags: [a]\r\n---\r\n",
			want:    []string{"a"},
		},
		{
			name:    "CRLFBlockListMetadata",
			content: "---\r\ntags:\r\n  - b/c\r\n---\r\nbody #d\r\n",
			want:    []string{"b/c", "d"},
		},
		{
			name:    "EmptyMetadata",
			content: "---\n---\n#after",
			want:    []string{"after"},
		},
		{
			name:    "InlineMarkers",
			content: "Discussing #ai and #ml-ops today",
			want:    []string{"ai", "ml-ops"},
		},
		{
			name:    "InlineCodeSpanIgnored",
			content: "see `#notatag` here",
			want:    []string{},
		},
		{
			name:    "FencedCodeIgnored",
			content: "```\n#code\n```\n~~~\n#tilde\n~~~\n#real",
			want:    []string{"real"},
		},
		{
			name:    "CommentIgnored",
			content: "<!-- #hidden\nstill #hidden -->#shown",
			want:    []string{"shown"},
		},
		{
			name:    "UnterminatedFenceLeftInPlace",
			content: "```\n#kept",
			want:    []string{"kept"},
		},
		{
			name:    "MetadataTagsNotScannedAsInline",
			content: "---\ntitle: \"#nope\"\n---\n#yes",
			want:    []string{"yes"},
		},
		{
			name:    "UnicodeAndDedupe",
			content: "#Café #café #日本 #under_score",
			want:    []string{"café", "under_score", "日本"},
		},
		{
			name:    "BothSources",
			content: "---\ntags: [project/dev]\n---\nNotes #project",
			want:    []string{"project", "project/dev"},
		},
		{
			name:    "HashAlone",
			content: "# Heading\n#\n",
			want:    []string{},
		},
		{
			name:    "Empty",
			content: "",
			want:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ExtractTags(tt.content))
		})
	}
}
