package retrieval

import (
	"math"
	"strings"
)

// cosine returns the cosine similarity of two vectors, or 0 when the
// dimensions disagree or either vector has zero magnitude.
func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// queryTerms lowercases and splits a query into whitespace-separated terms.
func queryTerms(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// keywordScore is the fraction of query terms present in the lowercased
// chunk text as substrings. An empty term list scores 0.
func keywordScore(terms []string, textLower string) float64 {
	if len(terms) == 0 {
		return 0
	}
	matched := 0
	for _, term := range terms {
		if strings.Contains(textLower, term) {
			matched++
		}
	}
	return float64(matched) / float64(len(terms))
}

// matchedTerms returns the query terms found in the lowercased text, in
// query order, for highlighting.
func matchedTerms(terms []string, textLower string) []string {
	var matched []string
	for _, term := range terms {
		if strings.Contains(textLower, term) {
			matched = append(matched, term)
		}
	}
	return matched
}
