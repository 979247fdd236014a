package converter

import "strings"

// IsHTMLContent reports whether the content type indicates an HTML page.
// An empty content type is assumed to be HTML.
func IsHTMLContent(contentType string) bool {
	if contentType == "" {
		return true
	}
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "text/html") ||
		strings.Contains(ct, "application/xhtml")
}
