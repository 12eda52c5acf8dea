package indexer

import (
	"strings"
	"unicode/utf8"
)

const (
	// chunkSize is the fixed window size in characters.
	chunkSize = 500
	// chunkOverlap is how many characters consecutive windows share.
	chunkOverlap = 100
	// minChunkLength is the trimmed length a window must exceed to be kept.
	minChunkLength = 50
)

// Chunker splits extracted text into overlapping fixed-size spans. It counts
// characters, not tokens or sentences, to avoid a tokenizer dependency.
type Chunker struct {
	size      int
	overlap   int
	minLength int
}

// NewChunker creates a Chunker with the default window geometry
// (500-character windows, 100-character overlap, 50-character minimum).
func NewChunker() *Chunker {
	return &Chunker{
		size:      chunkSize,
		overlap:   chunkOverlap,
		minLength: minChunkLength,
	}
}

// Chunk splits text into windows. The advance step is size minus overlap;
// a window is kept only if its trimmed length exceeds the minimum, and the
// final partial window is included under the same rule.
func (c *Chunker) Chunk(text string) []string {
	if text == "" {
		return nil
	}

	runes := []rune(text)
	step := c.size - c.overlap

	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}

		window := string(runes[start:end])
		if utf8.RuneCountInString(strings.TrimSpace(window)) > c.minLength {
			chunks = append(chunks, window)
		}

		if end == len(runes) {
			break
		}
	}

	return chunks
}
