package llm

// Message is a single message in a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatParams holds optional parameters for chat completion requests.
type ChatParams struct {
	// Model overrides the client's default model when non-empty.
	Model string

	// MaxTokens caps the generated token count. 0 means no limit.
	MaxTokens int

	// Temperature controls output randomness.
	Temperature float32
}
