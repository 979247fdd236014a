package app

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DetectProfile guesses the cleaning profile for a site from its base URL.
// It only recognizes hosts that unambiguously identify the wiki engine;
// anything else returns "none" so the caller can fall back to content
// detection.
func DetectProfile(baseURL string) string {
	lower := strings.ToLower(baseURL)

	if strings.Contains(lower, "fandom.com") || strings.Contains(lower, "wikia.") {
		return "fandom"
	}

	if strings.Contains(lower, "wikipedia.org") ||
		strings.Contains(lower, "wiktionary.org") ||
		strings.Contains(lower, "wikimedia.org") ||
		strings.Contains(lower, ".miraheze.org") ||
		strings.Contains(lower, "wiki.gg") {
		return "mediawiki"
	}

	return "none"
}

// DetectProfileFromHTML inspects a fetched page for engine fingerprints.
// Self-hosted MediaWiki installs rarely have a recognizable hostname, but
// they announce themselves through the generator meta tag and the stable
// mw- element ids.
func DetectProfileFromHTML(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "none"
	}

	generator, _ := doc.Find(`meta[name="generator"]`).Attr("content")
	isMediaWiki := strings.Contains(strings.ToLower(generator), "mediawiki") ||
		doc.Find("#mw-content-text").Length() > 0 ||
		doc.Find("body.mediawiki").Length() > 0

	if !isMediaWiki {
		return "none"
	}

	if doc.Find(".fandom-community-header").Length() > 0 ||
		doc.Find(`meta[property="og:site_name"][content*="Fandom"]`).Length() > 0 {
		return "fandom"
	}

	return "mediawiki"
}
