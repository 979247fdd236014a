package converter

import (
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// MarkdownConverter converts sanitized HTML to markdown
type MarkdownConverter struct{}

// NewMarkdownConverter creates a new markdown converter
func NewMarkdownConverter() *MarkdownConverter {
	return &MarkdownConverter{}
}

// Convert converts HTML to markdown
func (c *MarkdownConverter) Convert(html string) (string, error) {
	markdown, err := md.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("failed to convert HTML to markdown: %w", err)
	}
	return NormalizeMarkdown(markdown), nil
}

// NormalizeMarkdown collapses runs of blank lines and trims the edges. The
// same pass runs after engine-specific cleaning so stored files stay stable
// across profile changes.
func NormalizeMarkdown(markdown string) string {
	for strings.Contains(markdown, "\n\n\n") {
		markdown = strings.ReplaceAll(markdown, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(markdown)
}
