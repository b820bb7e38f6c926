package ingestion

import (
	"regexp"
	"sort"
	"strings"
)

var (
	// frontmatterRe matches a metadata block delimited by "---" lines at the
	// very start of the trimmed content.
	frontmatterRe = regexp.MustCompile(`(?s)\A---[ \t]*\n(?:(.*?)\n)?---[ \t]*(?:\n|\z)`)

	// inlineTagsRe matches `tags: [a, b]` inside the metadata block.
	inlineTagsRe = regexp.MustCompile(`(?m)^tags:[ \t]*\[(.*?)\]`)

	// blockTagsRe matches `tags:` followed by one "- item" line per tag.
	blockTagsRe = regexp.MustCompile(`(?m)^tags:[ \t]*\n((?:[ \t]*-.*(?:\n|\z))+)`)

	fencedCodeRe = regexp.MustCompile("(?s)```.*?```|~~~.*?~~~")
	inlineCodeRe = regexp.MustCompile("`.*?`")
	commentRe    = regexp.MustCompile(`(?s)<!--.*?-->`)

	// inlineMarkerRe matches "#tag" markers in the body.
	inlineMarkerRe = regexp.MustCompile(`#([\p{L}\p{N}_-]+)`)
)

// ExtractTags returns the distinct tag paths declared by a note, lowercased
// and sorted. Tags come from the metadata block at the top of the note and
// from inline markers in the body outside code and comments. CRLF and CR
// line endings are accepted.
func ExtractTags(content string) []string {
	content = normalizeNewlines(content)
	seen := make(map[string]struct{})
	add := func(tag string) {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			return
		}
		seen[tag] = struct{}{}
	}

	body := content
	trimmed := strings.TrimSpace(content)
	if loc := frontmatterRe.FindStringSubmatchIndex(trimmed); loc != nil {
		if loc[2] >= 0 {
			for _, tag := range metadataTags(trimmed[loc[2]:loc[3]]) {
				add(tag)
			}
		}
		body = trimmed[loc[1]:]
	}

	for _, tag := range inlineTags(body) {
		add(tag)
	}

	tags := make([]string, 0, len(seen))
	for tag := range seen {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// metadataTags reads the tags declaration of a metadata block, preferring
// the inline list form over the block list form.
func metadataTags(block string) []string {
	if m := inlineTagsRe.FindStringSubmatch(block); m != nil {
		var tags []string
		for _, item := range strings.Split(m[1], ",") {
			tags = append(tags, unquote(item))
		}
		return tags
	}

	if m := blockTagsRe.FindStringSubmatch(block); m != nil {
		var tags []string
		for _, line := range strings.Split(m[1], "\n") {
			line = strings.TrimSpace(line)
			if !strings.HasPrefix(line, "-") {
				continue
			}
			tags = append(tags, unquote(strings.TrimPrefix(line, "-")))
		}
		return tags
	}

	return nil
}

// inlineTags finds "#tag" markers after removing fenced code, inline code
// and comments.
func inlineTags(body string) []string {
	body = fencedCodeRe.ReplaceAllString(body, "")
	body = inlineCodeRe.ReplaceAllString(body, "")
	body = commentRe.ReplaceAllString(body, "")

	var tags []string
	for _, m := range inlineMarkerRe.FindAllStringSubmatch(body, -1) {
		tags = append(tags, m[1])
	}
	return tags
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}
