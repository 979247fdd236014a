package converter

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
)

// ContentExtractor pulls the main article body out of a full wiki page.
// With a selector configured it cuts straight to that element; otherwise it
// falls back to the readability algorithm.
type ContentExtractor struct {
	selector string
}

// NewContentExtractor creates a content extractor. selector may be empty.
func NewContentExtractor(selector string) *ContentExtractor {
	return &ContentExtractor{selector: selector}
}

// Extract returns the content HTML and the page title
func (e *ContentExtractor) Extract(html, sourceURL string) (string, string, error) {
	if e.selector != "" {
		return e.extractWithSelector(html, sourceURL)
	}
	return e.extractWithReadability(html, sourceURL)
}

func (e *ContentExtractor) extractWithSelector(html, sourceURL string) (string, string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", "", err
	}

	content := doc.Find(e.selector).First()
	if content.Length() == 0 {
		// Selector missed, let readability have a go
		return e.extractWithReadability(html, sourceURL)
	}

	title := extractTitle(doc)

	contentHTML, err := content.Html()
	if err != nil {
		return "", "", err
	}

	return contentHTML, title, nil
}

func (e *ContentExtractor) extractWithReadability(html, sourceURL string) (string, string, error) {
	parsedURL, err := url.Parse(sourceURL)
	if err != nil {
		parsedURL = &url.URL{Scheme: "https", Host: "localhost"}
	}

	article, err := readability.FromReader(strings.NewReader(html), parsedURL)
	if err != nil {
		return e.extractBody(html)
	}

	return article.Content, article.Title, nil
}

func (e *ContentExtractor) extractBody(html string) (string, string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html, "", nil
	}

	title := extractTitle(doc)

	body := doc.Find("body")
	if body.Length() == 0 {
		return html, title, nil
	}

	bodyHTML, err := body.Html()
	if err != nil {
		return html, title, nil
	}

	return bodyHTML, title, nil
}

// extractTitle prefers the title tag, then the first h1, then og:title
func extractTitle(doc *goquery.Document) string {
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}

	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}

	if ogTitle, ok := doc.Find("meta[property='og:title']").Attr("content"); ok {
		return strings.TrimSpace(ogTitle)
	}

	return ""
}

// ExtractLinks returns all outbound links in the HTML, resolved against
// baseURL. Anchors, javascript, mailto and tel links are skipped.
func ExtractLinks(html, baseURL string) []string {
	var links []string

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return links
	}

	base, _ := url.Parse(baseURL)

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, exists := sel.Attr("href")
		if !exists || href == "" {
			return
		}

		if strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "javascript:") ||
			strings.HasPrefix(href, "mailto:") ||
			strings.HasPrefix(href, "tel:") {
			return
		}

		if base != nil && !strings.HasPrefix(href, "http") {
			if refURL, err := url.Parse(href); err == nil {
				href = base.ResolveReference(refURL).String()
			}
		}

		links = append(links, href)
	})

	return links
}
