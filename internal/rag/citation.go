package rag

import (
	"regexp"

	"indexpanel/internal/retrieval"
)

var citationPattern = regexp.MustCompile(`\[chunk:([^\]\s]+)\]`)

// citedReferences extracts the chunk markers the model repeated in its
// answer and resolves them against the retrieved set. Markers that do not
// name a retrieved chunk are dropped; each chunk is referenced once, in
// order of first citation.
func citedReferences(answer string, results []retrieval.Result) []Reference {
	known := make(map[string]retrieval.Result, len(results))
	for _, r := range results {
		known[r.ChunkID] = r
	}

	var references []Reference
	seen := make(map[string]bool)
	for _, match := range citationPattern.FindAllStringSubmatch(answer, -1) {
		id := match[1]
		if seen[id] {
			continue
		}
		result, ok := known[id]
		if !ok {
			continue
		}
		seen[id] = true
		references = append(references, newReference(result))
	}
	return references
}
