package converter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkdownConverter_Convert(t *testing.T) {
	conv := NewMarkdownConverter()

	t.Run("headings and paragraphs", func(t *testing.T) {
		md, err := conv.Convert(`<h1>Iron Sword</h1><p>A basic weapon.</p>`)
		require.NoError(t, err)
		assert.Contains(t, md, "# Iron Sword")
		assert.Contains(t, md, "A basic weapon.")
	})

	t.Run("links survive", func(t *testing.T) {
		md, err := conv.Convert(`<p>See <a href="https://wiki.example.com/Steel_Sword">Steel Sword</a>.</p>`)
		require.NoError(t, err)
		assert.Contains(t, md, "[Steel Sword](https://wiki.example.com/Steel_Sword)")
	})

	t.Run("lists", func(t *testing.T) {
		md, err := conv.Convert(`<ul><li>one</li><li>two</li></ul>`)
		require.NoError(t, err)
		assert.Contains(t, md, "- one")
		assert.Contains(t, md, "- two")
	})

	t.Run("blank line runs collapsed", func(t *testing.T) {
		md, err := conv.Convert(`<p>a</p><br><br><br><p>b</p>`)
		require.NoError(t, err)
		assert.NotContains(t, md, "\n\n\n")
	})
}

func TestNormalizeMarkdown(t *testing.T) {
	in := "\n\n# Title\n\n\n\n\nbody\n\n"
	out := NormalizeMarkdown(in)
	assert.Equal(t, "# Title\n\nbody", out)
}

func TestHashContent(t *testing.T) {
	a := HashContent("content")
	b := HashContent("content")
	c := HashContent("different")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
	assert.Equal(t, strings.ToLower(a), a)
}
