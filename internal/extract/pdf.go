package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// PDFConverter extracts plain text from PDF files via pdfcpu content
// extraction. It implements Converter for the ".pdf" extension; other
// binary formats are rejected.
type PDFConverter struct{}

// NewPDFConverter creates a PDFConverter.
func NewPDFConverter() *PDFConverter {
	return &PDFConverter{}
}

// textLiteral matches string literals inside PDF content streams.
var textLiteral = regexp.MustCompile(`\(((?:\\.|[^\\()])*)\)`)

// Convert extracts the text of a PDF document. Conversion is best-effort:
// the page content streams are dumped and their text-string literals
// collected in order.
func (c *PDFConverter) Convert(path string) (string, error) {
	if strings.ToLower(filepath.Ext(path)) != ".pdf" {
		return "", fmt.Errorf("unsupported document format: %s", filepath.Ext(path))
	}

	outDir, err := os.MkdirTemp("", "pdf-extract-")
	if err != nil {
		return "", fmt.Errorf("failed to create extraction dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(outDir) }()

	conf := api.LoadConfiguration()
	if err := api.ExtractContentFile(path, outDir, nil, conf); err != nil {
		return "", fmt.Errorf("failed to extract PDF content: %w", err)
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		return "", fmt.Errorf("failed to read extraction dir: %w", err)
	}

	var b strings.Builder
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(outDir, entry.Name()))
		if err != nil {
			continue
		}
		for _, match := range textLiteral.FindAllSubmatch(raw, -1) {
			token := unescapeLiteral(string(match[1]))
			if strings.TrimSpace(token) == "" {
				continue
			}
			b.WriteString(token)
			b.WriteByte(' ')
		}
		b.WriteByte('\n')
	}

	return strings.TrimSpace(b.String()), nil
}

// unescapeLiteral resolves the escape sequences PDF string literals allow.
func unescapeLiteral(s string) string {
	replacer := strings.NewReplacer(
		`\(`, "(",
		`\)`, ")",
		`\\`, `\`,
		`\n`, "\n",
		`\r`, "\r",
		`\t`, "\t",
	)
	return replacer.Replace(s)
}
