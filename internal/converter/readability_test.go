package converter

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wikiPage = `<!DOCTYPE html>
<html>
<head><title>Iron Sword - Example Wiki</title></head>
<body>
	<div id="mw-navigation">navigation stuff</div>
	<div id="content" class="mw-body">
		<h1>Iron Sword</h1>
		<p>The Iron Sword is a basic one-handed weapon found early in the game.
		It deals moderate damage and can be upgraded at any forge. Most players
		replace it once steel weapons become available, but its low weight keeps
		it useful for new characters exploring the starting regions.</p>
		<p>Smithing the Iron Sword requires one iron ingot and a single
		leather strip. The finished blade can be enchanted like any other
		weapon of its class.</p>
		<a href="/wiki/Steel_Sword">Steel Sword</a>
	</div>
</body>
</html>`

func TestContentExtractor_WithSelector(t *testing.T) {
	e := NewContentExtractor("#content")

	content, title, err := e.Extract(wikiPage, "https://wiki.example.com/wiki/Iron_Sword")
	require.NoError(t, err)

	assert.Equal(t, "Iron Sword - Example Wiki", title)
	assert.Contains(t, content, "basic one-handed weapon")
	assert.NotContains(t, content, "navigation stuff")
}

func TestContentExtractor_SelectorMissFallsBackToReadability(t *testing.T) {
	e := NewContentExtractor("#no-such-element")

	content, _, err := e.Extract(wikiPage, "https://wiki.example.com/wiki/Iron_Sword")
	require.NoError(t, err)
	assert.Contains(t, content, "basic one-handed weapon")
}

func TestContentExtractor_Readability(t *testing.T) {
	e := NewContentExtractor("")

	content, title, err := e.Extract(wikiPage, "https://wiki.example.com/wiki/Iron_Sword")
	require.NoError(t, err)

	assert.NotEmpty(t, title)
	assert.Contains(t, content, "iron ingot")
}

func TestExtractTitle(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{"title tag", `<html><head><title>Page Title</title></head></html>`, "Page Title"},
		{"h1 fallback", `<html><body><h1>Heading</h1></body></html>`, "Heading"},
		{"og:title fallback", `<html><head><meta property="og:title" content="OG Title"></head></html>`, "OG Title"},
		{"nothing", `<html><body><p>text</p></body></html>`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := goquery.NewDocumentFromReader(strings.NewReader(tt.html))
			require.NoError(t, err)
			assert.Equal(t, tt.want, extractTitle(doc))
		})
	}
}

func TestExtractLinks(t *testing.T) {
	html := `<div>
		<a href="/wiki/Steel_Sword">relative</a>
		<a href="https://other.example.com/page">absolute</a>
		<a href="#section">anchor</a>
		<a href="mailto:a@b.c">mail</a>
		<a href="javascript:void(0)">js</a>
	</div>`

	links := ExtractLinks(html, "https://wiki.example.com/wiki/Iron_Sword")

	assert.Contains(t, links, "https://wiki.example.com/wiki/Steel_Sword")
	assert.Contains(t, links, "https://other.example.com/page")
	assert.Len(t, links, 2)
}
