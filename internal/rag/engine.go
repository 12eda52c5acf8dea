package rag

import (
	"context"
	"fmt"
	"strings"

	"indexpanel/internal/contextutil"
	"indexpanel/internal/llm"
	"indexpanel/internal/retrieval"
	"indexpanel/internal/service"
)

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_rag.go -package=mocks indexpanel/internal/rag Retriever,Generator

// Retriever finds chunks relevant to a query.
type Retriever interface {
	Search(ctx context.Context, q retrieval.Query) ([]retrieval.Result, error)
}

// Generator produces an answer from a message list.
type Generator interface {
	ChatWithMessages(ctx context.Context, messages []llm.Message, params llm.ChatParams) (string, error)
}

// Engine answers questions grounded in indexed content.
type Engine interface {
	// Ask retrieves relevant chunks and generates a cited answer.
	Ask(ctx context.Context, req AskRequest) (AskResponse, error)
}

const (
	defaultK = 5
	maxK     = 20
)

const abstention = "I couldn't find anything relevant in the indexed files to answer this question."

const systemPrompt = "You are a helpful assistant that answers questions using only the " +
	"provided context from the user's indexed files. Every context block starts with a " +
	"marker like [chunk:path#3]. When a statement in your answer comes from a block, " +
	"repeat that block's marker after the statement. If the context does not contain " +
	"enough information to answer, say so plainly instead of guessing."

type ragEngine struct {
	retriever Retriever
	generator Generator
}

// NewEngine creates a RAG engine over the given retriever and generator.
func NewEngine(retriever Retriever, generator Generator) Engine {
	return &ragEngine{
		retriever: retriever,
		generator: generator,
	}
}

// Ask answers a question using retrieval-augmented generation.
func (e *ragEngine) Ask(ctx context.Context, req AskRequest) (AskResponse, error) {
	logger := contextutil.LoggerFromContext(ctx)

	question := strings.TrimSpace(req.Question)
	if question == "" {
		return AskResponse{}, fmt.Errorf("%w: question is required", service.ErrInvalidInput)
	}

	k := req.K
	if k <= 0 {
		k = defaultK
	}
	if k > maxK {
		k = maxK
	}

	results, err := e.retriever.Search(ctx, retrieval.Query{
		Text:     question,
		Mode:     req.Mode,
		TopK:     k,
		MinScore: req.MinScore,
	})
	if err != nil {
		logger.ErrorContext(ctx, "retrieval failed", "error", err)
		return AskResponse{}, fmt.Errorf("failed to retrieve context: %w", err)
	}

	if len(results) == 0 {
		logger.InfoContext(ctx, "no chunks retrieved, abstaining", "question_length", len(question))
		return AskResponse{
			Answer:     abstention,
			References: []Reference{},
		}, nil
	}

	messages := []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: buildPrompt(question, results)},
	}

	answer, err := e.generator.ChatWithMessages(ctx, messages, llm.ChatParams{Temperature: 0.7})
	if err != nil {
		logger.ErrorContext(ctx, "generation failed", "error", err)
		return AskResponse{}, fmt.Errorf("%w: %v", service.ErrExternalService, err)
	}

	references := citedReferences(answer, results)
	if len(references) == 0 {
		// An answer without recognizable citations still gets its
		// retrieval set as references.
		references = allReferences(results)
	}

	logger.InfoContext(ctx, "question answered",
		"chunks_retrieved", len(results),
		"references", len(references),
		"answer_length", len(answer),
	)
	return AskResponse{
		Answer:     answer,
		References: references,
	}, nil
}

// buildPrompt lays the retrieved chunks out as marked context blocks
// followed by the question.
func buildPrompt(question string, results []retrieval.Result) string {
	var b strings.Builder
	b.WriteString("--- Context from indexed files ---\n\n")
	for _, r := range results {
		fmt.Fprintf(&b, "[chunk:%s]\n", r.ChunkID)
		if r.Section != "" {
			fmt.Fprintf(&b, "Section: %s\n", r.Section)
		}
		b.WriteString(r.Text)
		b.WriteString("\n\n")
	}
	b.WriteString("--- End context ---\n\n")
	b.WriteString("Question: ")
	b.WriteString(question)
	return b.String()
}

func allReferences(results []retrieval.Result) []Reference {
	references := make([]Reference, 0, len(results))
	for _, r := range results {
		references = append(references, newReference(r))
	}
	return references
}

func newReference(r retrieval.Result) Reference {
	return Reference{
		ChunkID:    r.ChunkID,
		FilePath:   r.FilePath,
		ChunkIndex: r.ChunkIndex,
		Title:      r.Title,
		Section:    r.Section,
		Score:      r.Score,
	}
}
