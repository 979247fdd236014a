package cleaner

import (
	"regexp"
	"strings"
)

// MediaWiki pages rendered to markdown keep a lot of editing chrome: jump
// links, the auto-generated table of contents, [v] [t] [e] template links,
// and trailing sections (references, categories, galleries) that add noise
// to a knowledge base. These steps strip them.

var (
	wikiMetaPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)wiki.*work in progress`),
		regexp.MustCompile(`(?i)please.*contribute`),
		regexp.MustCompile(`(?i)help.*expand this`),
		regexp.MustCompile(`(?i)stub.*article`),
	}

	navBoilerplate = []string{
		"Jump to navigation",
		"Jump to search",
		"Jump to:",
	}

	wikiLineSkips = []*regexp.Regexp{
		regexp.MustCompile(`From .* Wiki$`),
		regexp.MustCompile(`Retrieved from`),
	}

	trailingSections = []*regexp.Regexp{
		regexp.MustCompile(`^##\s+External\s+[Ll]inks?\s*$`),
		regexp.MustCompile(`^##\s+See\s+[Aa]lso\s*$`),
		regexp.MustCompile(`^##\s+Further\s+[Rr]eading\s*$`),
		regexp.MustCompile(`^##\s+Version\s+[Hh]istory\s*$`),
		regexp.MustCompile(`^##\s+References\s*$`),
		regexp.MustCompile(`^##\s+Notes\s*$`),
		regexp.MustCompile(`^##\s+Footnotes\s*$`),
		regexp.MustCompile(`^##\s+Media\s*$`),
		regexp.MustCompile(`^##\s+Gallery\s*$`),
		regexp.MustCompile(`^##\s+Images\s*$`),
		regexp.MustCompile(`^##\s+Videos\s*$`),
		regexp.MustCompile(`^##\s+Categories\s*$`),
	}

	tocHeading  = regexp.MustCompile(`^##\s+Contents?\s*$`)
	tocEntry    = regexp.MustCompile(`^\s*\d+\.\s+\[.*?\]\(#.*?\)`)
	citationRef = regexp.MustCompile(`^\s*1\.\s+\[↑\]`)

	templateLinks = regexp.MustCompile(`\[\s*[vte]\s*\]\s*(•\s*)?`)
)

func mediaWikiSteps() []Step {
	return []Step{
		removeWikiMeta,
		removeNavBoilerplate,
		removeTableOfContents,
		removeWikiLineNoise,
		truncateAt(trailingSections),
		truncateAtCitations,
		removeTemplateLinks,
	}
}

func removeWikiMeta(content string) string {
	return dropLines(content, func(line string) bool {
		for _, p := range wikiMetaPatterns {
			if p.MatchString(line) {
				return true
			}
		}
		return false
	})
}

func removeNavBoilerplate(content string) string {
	return dropLines(content, func(line string) bool {
		for _, marker := range navBoilerplate {
			if strings.Contains(line, marker) {
				return true
			}
		}
		return false
	})
}

func removeWikiLineNoise(content string) string {
	return dropLines(content, func(line string) bool {
		trimmed := strings.TrimSpace(line)
		for _, p := range wikiLineSkips {
			if p.MatchString(trimmed) {
				return true
			}
		}
		return false
	})
}

// removeTableOfContents drops the "## Contents" heading and the numbered
// anchor list under it.
func removeTableOfContents(content string) string {
	lines := strings.Split(content, "\n")
	out := make([]string, 0, len(lines))
	inTOC := false

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if tocHeading.MatchString(trimmed) {
			inTOC = true
			continue
		}
		if inTOC {
			if tocEntry.MatchString(line) || trimmed == "" {
				continue
			}
			inTOC = false
		}
		out = append(out, line)
	}

	return strings.Join(out, "\n")
}

// truncateAtCitations cuts the article at the first footnote back-reference
func truncateAtCitations(content string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if citationRef.MatchString(line) {
			return strings.Join(lines[:i], "\n")
		}
	}
	return content
}

func removeTemplateLinks(content string) string {
	return templateLinks.ReplaceAllString(content, "")
}

// truncateAt builds a step that cuts the content at the first line matching
// any pattern. Trailing wiki sections always come after the article body,
// so everything below the heading goes too.
func truncateAt(patterns []*regexp.Regexp) Step {
	return func(content string) string {
		lines := strings.Split(content, "\n")
		for i, line := range lines {
			trimmed := strings.TrimSpace(line)
			for _, p := range patterns {
				if p.MatchString(trimmed) {
					return strings.Join(lines[:i], "\n")
				}
			}
		}
		return content
	}
}

func dropLines(content string, drop func(string) bool) string {
	lines := strings.Split(content, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if !drop(line) {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
