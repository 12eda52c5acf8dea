package rag

import "indexpanel/internal/retrieval"

// AskRequest is a grounded question against the indexed content.
type AskRequest struct {
	// Question is the user's question to answer.
	Question string `json:"question"`
	// Mode selects the retrieval mode. Defaults to hybrid.
	Mode retrieval.Mode `json:"mode,omitempty"`
	// K optionally sets how many chunks to retrieve.
	K int `json:"k,omitempty"`
	// MinScore drops retrieved chunks scoring below it.
	MinScore float64 `json:"min_score,omitempty"`
}

// Reference identifies a chunk the answer was grounded on.
type Reference struct {
	ChunkID    string  `json:"chunk_id"`
	FilePath   string  `json:"file_path"`
	ChunkIndex int     `json:"chunk_index"`
	Title      string  `json:"title"`
	Section    string  `json:"section,omitempty"`
	Score      float64 `json:"score"`
}

// AskResponse is the generated answer plus the chunks it cites.
type AskResponse struct {
	Answer     string      `json:"answer"`
	References []Reference `json:"references"`
}
