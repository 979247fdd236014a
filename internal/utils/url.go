package utils

import (
	"net/url"
	"path"
	"regexp"
	"strings"
)

// NormalizeURL normalizes a URL for consistent handling
func NormalizeURL(rawURL string) (string, error) {
	// If no scheme is present, prepend https:// before parsing so the host
	// is correctly identified
	if !strings.Contains(rawURL, "://") && !strings.HasPrefix(rawURL, "//") {
		rawURL = "https://" + rawURL
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}

	if u.Scheme == "" {
		u.Scheme = "https"
	}

	u.Host = strings.ToLower(u.Host)

	// Remove default ports
	if (u.Scheme == "http" && u.Port() == "80") ||
		(u.Scheme == "https" && u.Port() == "443") {
		u.Host = u.Hostname()
	}

	if u.Path == "" {
		u.Path = "/"
	} else {
		u.Path = path.Clean(u.Path)
	}

	// Remove trailing slash (except for root)
	if u.Path != "/" && strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}

	u.Fragment = ""

	result := u.String()

	// Ensure root path has trailing slash
	if u.Path == "/" && u.RawQuery == "" && !strings.HasSuffix(result, "/") {
		result += "/"
	}

	return result, nil
}

// NormalizeURLWithoutQuery normalizes a URL and removes query parameters
func NormalizeURLWithoutQuery(rawURL string) (string, error) {
	normalized, err := NormalizeURL(rawURL)
	if err != nil {
		return "", err
	}

	u, err := url.Parse(normalized)
	if err != nil {
		return "", err
	}

	u.RawQuery = ""
	return u.String(), nil
}

// ResolveURL resolves a relative URL against a base URL
func ResolveURL(base, ref string) (string, error) {
	// If the base doesn't end with / and has no file extension, treat it as
	// a directory so "../page" from "/wiki/api" resolves to "/wiki/page"
	if !strings.HasSuffix(base, "/") && !strings.Contains(path.Base(base), ".") {
		base += "/"
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}

	refURL, err := url.Parse(ref)
	if err != nil {
		return "", err
	}

	return baseURL.ResolveReference(refURL).String(), nil
}

// GetDomain extracts the domain from a URL
func GetDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}

// IsSameDomain checks if two URLs have the same domain
func IsSameDomain(url1, url2 string) bool {
	return strings.EqualFold(GetDomain(url1), GetDomain(url2))
}

// IsAbsoluteURL checks if a URL is absolute
func IsAbsoluteURL(rawURL string) bool {
	if strings.HasPrefix(rawURL, "//") {
		return true
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.IsAbs()
}

// IsHTTPURL checks if a URL uses HTTP or HTTPS scheme
func IsHTTPURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// wikiMaintenanceNamespaces are MediaWiki page namespaces that carry no
// article content and should never be crawled
var wikiMaintenanceNamespaces = []string{
	"Special:", "Talk:", "User:", "User_talk:", "File:", "File_talk:",
	"Template:", "Template_talk:", "Category_talk:", "Help_talk:",
	"MediaWiki:", "Module:",
}

// IsWikiMaintenancePage reports whether a URL points at a non-article
// MediaWiki namespace page
func IsWikiMaintenancePage(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	page := path.Base(u.Path)
	if title := u.Query().Get("title"); title != "" {
		page = title
	}
	for _, ns := range wikiMaintenanceNamespaces {
		if strings.HasPrefix(page, ns) {
			return true
		}
	}
	return false
}

// HasBaseURL checks if a URL starts with the given base URL path
func HasBaseURL(targetURL, baseURL string) bool {
	if baseURL == "" {
		return true
	}

	targetParsed, err := url.Parse(targetURL)
	if err != nil {
		return false
	}

	baseParsed, err := url.Parse(baseURL)
	if err != nil {
		return false
	}

	if !strings.EqualFold(targetParsed.Host, baseParsed.Host) {
		return false
	}

	targetPath := strings.TrimSuffix(targetParsed.Path, "/")
	basePath := strings.TrimSuffix(baseParsed.Path, "/")

	if basePath == "" || basePath == "/" {
		return true
	}

	return targetPath == basePath || strings.HasPrefix(targetPath, basePath+"/")
}

// FilterLinks filters links based on exclude patterns
func FilterLinks(links []string, excludePatterns []string) []string {
	var regexps []*regexp.Regexp
	for _, pattern := range excludePatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			continue
		}
		regexps = append(regexps, re)
	}

	filtered := make([]string, 0, len(links))
	for _, link := range links {
		excluded := false
		for _, re := range regexps {
			if re.MatchString(link) {
				excluded = true
				break
			}
		}
		if !excluded {
			filtered = append(filtered, link)
		}
	}

	return filtered
}
