package cleaner

import (
	"regexp"
)

// Fandom runs on the MediaWiki engine, so the fandom profile is every
// MediaWiki step followed by steps for Fandom's own chrome: ad markers,
// cross-wiki promotion, community widgets and the global footer.

var (
	adMarker = regexp.MustCompile(`(?i)^\s*(Advertisement|\[Ad\])\s*$`)

	fandomPromotions = []*regexp.Regexp{
		regexp.MustCompile(`FANDOM powered by`),
		regexp.MustCompile(`More Fandom`),
		regexp.MustCompile(`Fan Central`),
		regexp.MustCompile(`Fandom Apps`),
		regexp.MustCompile(`Explore.*[Ff]andom`),
		regexp.MustCompile(`What is Fandom\?`),
		regexp.MustCompile(`Explore properties`),
	}

	communitySections = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^##\s+.*Discord\s*$`),
		regexp.MustCompile(`(?i)^##\s+Community\s*$`),
		regexp.MustCompile(`(?i)^##\s+Discussions?\s*$`),
		regexp.MustCompile(`(?i)^##\s+Comments?\s*$`),
		regexp.MustCompile(`Community content is available`),
		regexp.MustCompile(`^##\s+Related\s+[Ww]ikis?\s*$`),
	}

	fandomFooter = []*regexp.Regexp{
		regexp.MustCompile(`###\s+Follow\s+Us`),
		regexp.MustCompile(`###\s+Advertise`),
		regexp.MustCompile(`Fandom.*Inc\.`),
		regexp.MustCompile(`View Mobile Site`),
		regexp.MustCompile(`is a Fandom\s+(Games|TV|Movies|Comics|Books)\s+Community`),
	}
)

func fandomSteps() []Step {
	steps := mediaWikiSteps()
	return append(steps,
		removeAdMarkers,
		removeFandomPromotions,
		truncateAt(communitySections),
		truncateAt(fandomFooter),
	)
}

func removeAdMarkers(content string) string {
	return dropLines(content, adMarker.MatchString)
}

func removeFandomPromotions(content string) string {
	return dropLines(content, func(line string) bool {
		for _, p := range fandomPromotions {
			if p.MatchString(line) {
				return true
			}
		}
		return false
	})
}
