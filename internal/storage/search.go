package storage

import (
	"sort"
	"strings"
	"unicode"

	"github.com/Benny93/vaultgraph/internal/graph"
)

const snippetLength = 200

// tokenizeForSearch splits text into lowercase searchable tokens.
func tokenizeForSearch(text string) []string {
	text = strings.ToLower(text)
	// Split on anything that is not a letter or digit
	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	// Filter out very short tokens
	result := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if len([]rune(t)) >= 2 {
			result = append(result, t)
		}
	}
	return result
}

// searchNotes scores every note against the query tokens. A note scores one
// point per distinct query token found in its name or content.
func searchNotes(notes []*graph.GraphNode, query string, limit int) []SearchResult {
	queryTokens := uniqueTokens(tokenizeForSearch(query))
	if len(queryTokens) == 0 {
		return []SearchResult{}
	}

	results := make([]SearchResult, 0)
	for _, node := range notes {
		if node.Label != graph.NodeNote {
			continue
		}

		present := make(map[string]struct{})
		for _, t := range tokenizeForSearch(node.Name + " " + node.Content) {
			present[t] = struct{}{}
		}

		score := 0
		for _, t := range queryTokens {
			if _, ok := present[t]; ok {
				score++
			}
		}
		if score == 0 {
			continue
		}

		results = append(results, SearchResult{
			NodeID:  node.ID,
			Score:   float64(score),
			Name:    node.Name,
			Path:    node.Path,
			Snippet: snippet(node.Content),
		})
	}

	// Sort by score descending, then path for stable output
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Path < results[j].Path
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

func uniqueTokens(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := tokens[:0]
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func snippet(content string) string {
	runes := []rune(content)
	if len(runes) > snippetLength {
		return string(runes[:snippetLength])
	}
	return content
}
