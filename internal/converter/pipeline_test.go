package converter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

func TestPipeline_Convert(t *testing.T) {
	p := NewPipeline(PipelineOptions{
		BaseURL:         "https://wiki.example.com",
		ContentSelector: "#content",
	})

	doc, err := p.Convert(context.Background(), wikiPage, "https://wiki.example.com/wiki/Iron_Sword")
	require.NoError(t, err)

	assert.Equal(t, "https://wiki.example.com/wiki/Iron_Sword", doc.URL)
	assert.Equal(t, "Iron Sword - Example Wiki", doc.Title)
	assert.Contains(t, doc.Markdown, "# Iron Sword")
	assert.Contains(t, doc.Markdown, "basic one-handed weapon")
	assert.NotContains(t, doc.Markdown, "navigation stuff")
	assert.Len(t, doc.ContentHash, 64)
	assert.False(t, doc.FetchedAt.IsZero())
	assert.Contains(t, doc.Links, "https://wiki.example.com/wiki/Steel_Sword")
}

func TestPipeline_ExcludeSelector(t *testing.T) {
	p := NewPipeline(PipelineOptions{
		BaseURL:         "https://wiki.example.com",
		ContentSelector: "#content",
		ExcludeSelector: ".infobox",
	})

	html := `<html><head><title>T</title></head><body><div id="content">
		<p>main text</p>
		<div class="infobox">stats table</div>
	</div></body></html>`

	doc, err := p.Convert(context.Background(), html, "https://wiki.example.com/wiki/T")
	require.NoError(t, err)

	assert.Contains(t, doc.Markdown, "main text")
	assert.NotContains(t, doc.Markdown, "stats table")
}

func TestPipeline_HashTracksContent(t *testing.T) {
	p := NewPipeline(PipelineOptions{ContentSelector: "#content"})

	pageA := `<html><head><title>A</title></head><body><div id="content"><p>version one</p></div></body></html>`
	pageB := `<html><head><title>A</title></head><body><div id="content"><p>version two</p></div></body></html>`

	docA, err := p.Convert(context.Background(), pageA, "https://wiki.example.com/wiki/A")
	require.NoError(t, err)
	docB, err := p.Convert(context.Background(), pageB, "https://wiki.example.com/wiki/A")
	require.NoError(t, err)
	docA2, err := p.Convert(context.Background(), pageA, "https://wiki.example.com/wiki/A")
	require.NoError(t, err)

	assert.NotEqual(t, docA.ContentHash, docB.ContentHash)
	assert.Equal(t, docA.ContentHash, docA2.ContentHash)
}

func TestPipeline_LegacyEncoding(t *testing.T) {
	p := NewPipeline(PipelineOptions{ContentSelector: "#content"})

	page, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(`<html><head><meta charset="iso-8859-1"><title>Café</title></head><body><div id="content"><p>Le café est prêt.</p></div></body></html>`))
	require.NoError(t, err)

	doc, err := p.Convert(context.Background(), string(page), "https://wiki.example.com/wiki/Cafe")
	require.NoError(t, err)
	assert.Contains(t, doc.Markdown, "Le café est prêt.")
}
