package extract

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_converter.go -package=mocks indexpanel/internal/extract Converter

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Converter is the narrow boundary to a document-conversion collaborator
// that turns a binary document into plain text. Implementations return an
// error when conversion is impossible; the extractor maps that to empty text.
type Converter interface {
	Convert(path string) (string, error)
}

// Extractor produces raw text for a file based on its extension.
type Extractor struct {
	converter Converter
	logger    *slog.Logger
}

// New creates an Extractor. converter may be nil, in which case binary
// document formats yield empty text.
func New(converter Converter) *Extractor {
	return &Extractor{
		converter: converter,
		logger:    slog.Default(),
	}
}

// Extract returns the plain text of the file at path. Unsupported types and
// read failures yield empty text rather than an error: the caller still
// counts the file as processed with zero chunks.
func (e *Extractor) Extract(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		content, err := os.ReadFile(path)
		if err != nil {
			e.logger.Warn("failed to read file", "path", path, "error", err)
			return ""
		}
		return markdownToText(content)
	case ".pdf", ".docx", ".xlsx", ".pptx":
		if e.converter == nil {
			return ""
		}
		text, err := e.converter.Convert(path)
		if err != nil {
			e.logger.Warn("document conversion failed", "path", path, "error", err)
			return ""
		}
		return text
	default:
		content, err := os.ReadFile(path)
		if err != nil {
			e.logger.Warn("failed to read file", "path", path, "error", err)
			return ""
		}
		return string(content)
	}
}
