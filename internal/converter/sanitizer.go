package converter

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// TagsToRemove are HTML tags that never carry article content
var TagsToRemove = []string{
	"script",
	"style",
	"noscript",
	"iframe",
	"object",
	"embed",
	"form",
	"input",
	"button",
	"select",
	"textarea",
	"footer",
	"header",
	"aside",
}

// ClassesToRemove are CSS classes that mark page chrome around the article
var ClassesToRemove = []string{
	"sidebar",
	"navigation",
	"nav",
	"menu",
	"footer",
	"header",
	"banner",
	"advertisement",
	"social",
	"share",
	"comments",
	"related",
}

// IDsToRemove are element ids that mark page chrome
var IDsToRemove = []string{
	"sidebar",
	"navigation",
	"nav",
	"menu",
	"footer",
	"header",
	"banner",
	"comments",
}

// Sanitizer strips page chrome from extracted content and normalizes links
// to absolute URLs so the stored markdown stays usable offline.
type Sanitizer struct {
	baseURL          string
	removeNavigation bool
}

// SanitizerOptions contains options for the sanitizer
type SanitizerOptions struct {
	BaseURL          string
	RemoveNavigation bool
}

// NewSanitizer creates a new sanitizer
func NewSanitizer(opts SanitizerOptions) *Sanitizer {
	return &Sanitizer{
		baseURL:          opts.BaseURL,
		removeNavigation: opts.RemoveNavigation,
	}
}

// Sanitize cleans the HTML fragment and returns it
func (s *Sanitizer) Sanitize(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	s.clean(doc)

	return doc.Html()
}

func (s *Sanitizer) clean(doc *goquery.Document) {
	for _, tag := range TagsToRemove {
		doc.Find(tag).Remove()
	}

	if s.removeNavigation {
		doc.Find("nav").Remove()
		for _, class := range ClassesToRemove {
			doc.Find("." + class).Remove()
		}
		for _, id := range IDsToRemove {
			doc.Find("#" + id).Remove()
		}
	}

	doc.Find("[style*='display:none']").Remove()
	doc.Find("[style*='display: none']").Remove()
	doc.Find("[hidden]").Remove()

	if s.baseURL != "" {
		s.normalizeURLs(doc)
	}

	s.removeEmptyElements(doc)
}

func (s *Sanitizer) normalizeURLs(doc *goquery.Document) {
	base, err := url.Parse(s.baseURL)
	if err != nil {
		return
	}

	doc.Find("a[href]").Each(func(_ int, node *goquery.Selection) {
		if href, exists := node.Attr("href"); exists {
			if abs := resolveURL(base, href); abs != "" {
				node.SetAttr("href", abs)
			}
		}
	})

	doc.Find("[src]").Each(func(_ int, node *goquery.Selection) {
		if src, exists := node.Attr("src"); exists {
			if abs := resolveURL(base, src); abs != "" {
				node.SetAttr("src", abs)
			}
		}
	})

	doc.Find("[srcset]").Each(func(_ int, node *goquery.Selection) {
		if srcset, exists := node.Attr("srcset"); exists {
			node.SetAttr("srcset", normalizeSrcset(base, srcset))
		}
	})
}

func resolveURL(base *url.URL, ref string) string {
	if ref == "" || strings.HasPrefix(ref, "#") ||
		strings.HasPrefix(ref, "javascript:") ||
		strings.HasPrefix(ref, "mailto:") ||
		strings.HasPrefix(ref, "data:") {
		return ref
	}

	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}

	return base.ResolveReference(refURL).String()
}

func normalizeSrcset(base *url.URL, srcset string) string {
	parts := strings.Split(srcset, ",")
	for i, part := range parts {
		tokens := strings.Fields(strings.TrimSpace(part))
		if len(tokens) > 0 {
			tokens[0] = resolveURL(base, tokens[0])
			parts[i] = strings.Join(tokens, " ")
		}
	}
	return strings.Join(parts, ", ")
}

func (s *Sanitizer) removeEmptyElements(doc *goquery.Document) {
	for _, tag := range []string{"p", "div", "span", "section", "article"} {
		doc.Find(tag).Each(func(_ int, node *goquery.Selection) {
			if strings.TrimSpace(node.Text()) == "" && node.Children().Length() == 0 {
				node.Remove()
			}
		})
	}
}
