package converter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/sitesync/sitesync/internal/domain"
)

// Pipeline turns a fetched wiki page into a markdown document. The stages
// run in order: decode to UTF-8, extract the article body, drop excluded
// elements, sanitize, convert to markdown.
type Pipeline struct {
	sanitizer       *Sanitizer
	extractor       *ContentExtractor
	mdConverter     *MarkdownConverter
	excludeSelector string
}

// PipelineOptions contains options for the conversion pipeline
type PipelineOptions struct {
	BaseURL         string
	ContentSelector string
	ExcludeSelector string
}

// NewPipeline creates a new conversion pipeline
func NewPipeline(opts PipelineOptions) *Pipeline {
	return &Pipeline{
		sanitizer: NewSanitizer(SanitizerOptions{
			BaseURL:          opts.BaseURL,
			RemoveNavigation: true,
		}),
		extractor:       NewContentExtractor(opts.ContentSelector),
		mdConverter:     NewMarkdownConverter(),
		excludeSelector: opts.ExcludeSelector,
	}
}

var _ domain.Converter = (*Pipeline)(nil)

// Convert processes HTML content and returns a Document
func (p *Pipeline) Convert(ctx context.Context, html string, sourceURL string) (*domain.Document, error) {
	htmlBytes, err := ConvertToUTF8([]byte(html))
	if err != nil {
		return nil, err
	}
	html = string(htmlBytes)

	content, title, err := p.extractor.Extract(html, sourceURL)
	if err != nil {
		return nil, err
	}

	if p.excludeSelector != "" {
		content = p.removeExcluded(content)
	}

	sanitized, err := p.sanitizer.Sanitize(content)
	if err != nil {
		return nil, err
	}

	markdown, err := p.mdConverter.Convert(sanitized)
	if err != nil {
		return nil, err
	}

	return &domain.Document{
		URL:         sourceURL,
		Title:       title,
		Markdown:    markdown,
		ContentHash: HashContent(markdown),
		Links:       ExtractLinks(sanitized, sourceURL),
		FetchedAt:   time.Now().UTC(),
	}, nil
}

// HashContent returns the hex SHA-256 of content
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func (p *Pipeline) removeExcluded(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}

	doc.Find(p.excludeSelector).Remove()

	result, err := doc.Find("body").Html()
	if err != nil {
		if result, err = doc.Html(); err != nil {
			return html
		}
	}

	return result
}
