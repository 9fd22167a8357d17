package store

import (
	"time"
	"unicode"
)

// ScoreMemory calculates a relevance score for a memory given a query.
// Importance is the base signal; keyword overlap with the query, recency of
// access, and access frequency add boosts on top.
func ScoreMemory(mem *Memory, query string) float64 {
	score := mem.Importance

	score += keywordOverlap(mem.Content, query) * 0.3

	// Recency boost - recently accessed memories score slightly higher
	if !mem.LastAccessed.IsZero() {
		daysSinceAccess := time.Since(mem.LastAccessed).Hours() / 24
		score += 0.1 / (1 + daysSinceAccess*0.1)
	}

	// Access frequency boost
	if mem.AccessCount > 0 {
		n := mem.AccessCount
		if n > 10 {
			n = 10
		}
		score += 0.05 * float64(n) / 10
	}

	return score
}

// keywordOverlap calculates simple keyword overlap between two strings.
func keywordOverlap(content, query string) float64 {
	queryWords := tokenize(query)
	if len(queryWords) == 0 {
		return 0
	}

	contentWords := make(map[string]struct{})
	for _, w := range tokenize(content) {
		contentWords[w] = struct{}{}
	}

	matches := 0
	for _, qw := range queryWords {
		if _, ok := contentWords[qw]; ok {
			matches++
		}
	}

	return float64(matches) / float64(len(queryWords))
}

// tokenize splits text into lowercase words.
func tokenize(text string) []string {
	words := make([]string, 0)
	word := make([]rune, 0)

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			word = append(word, unicode.ToLower(r))
		} else if len(word) > 0 {
			words = append(words, string(word))
			word = word[:0]
		}
	}
	if len(word) > 0 {
		words = append(words, string(word))
	}

	return words
}
