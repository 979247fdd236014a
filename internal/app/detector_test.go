package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectProfile(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		want    string
	}{
		{"fandom host", "https://minecraft.fandom.com/wiki/Minecraft_Wiki", "fandom"},
		{"legacy wikia host", "https://starwars.wikia.com", "fandom"},
		{"wikipedia", "https://en.wikipedia.org/wiki/Main_Page", "mediawiki"},
		{"miraheze farm", "https://polcompball.miraheze.org", "mediawiki"},
		{"wiki.gg farm", "https://terraria.wiki.gg", "mediawiki"},
		{"plain site", "https://example.com/docs", "none"},
		{"self-hosted wiki not recognizable by url", "https://wiki.archlinux.org", "none"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectProfile(tt.baseURL))
		})
	}
}

func TestDetectProfileFromHTML(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			"generator meta tag",
			`<html><head><meta name="generator" content="MediaWiki 1.41.0"></head><body></body></html>`,
			"mediawiki",
		},
		{
			"mw content container",
			`<html><body><div id="mw-content-text">text</div></body></html>`,
			"mediawiki",
		},
		{
			"fandom community header",
			`<html><head><meta name="generator" content="MediaWiki 1.39"></head>` +
				`<body><div class="fandom-community-header"></div></body></html>`,
			"fandom",
		},
		{
			"fandom og site name",
			`<html><head><meta name="generator" content="MediaWiki 1.39">` +
				`<meta property="og:site_name" content="Minecraft Wiki | Fandom"></head><body></body></html>`,
			"fandom",
		},
		{
			"plain page",
			`<html><head><title>Docs</title></head><body><p>hello</p></body></html>`,
			"none",
		},
		{
			"not even html",
			`{"json": true}`,
			"none",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectProfileFromHTML(tt.html))
		})
	}
}
