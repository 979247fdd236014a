package converter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizer_RemovesScriptsAndStyles(t *testing.T) {
	s := NewSanitizer(SanitizerOptions{})

	out, err := s.Sanitize(`<div><script>alert(1)</script><style>.x{}</style><p>kept</p></div>`)
	require.NoError(t, err)

	assert.NotContains(t, out, "alert(1)")
	assert.NotContains(t, out, ".x{}")
	assert.Contains(t, out, "kept")
}

func TestSanitizer_RemovesNavigationChrome(t *testing.T) {
	s := NewSanitizer(SanitizerOptions{RemoveNavigation: true})

	html := `<div>
		<nav><a href="/">Home</a></nav>
		<div class="sidebar">side</div>
		<div id="footer">foot</div>
		<p>article text</p>
	</div>`

	out, err := s.Sanitize(html)
	require.NoError(t, err)

	assert.NotContains(t, out, "Home")
	assert.NotContains(t, out, "side")
	assert.NotContains(t, out, "foot")
	assert.Contains(t, out, "article text")
}

func TestSanitizer_KeepsChromeWithoutRemoveNavigation(t *testing.T) {
	s := NewSanitizer(SanitizerOptions{})

	out, err := s.Sanitize(`<div><div class="sidebar">side</div><p>text</p></div>`)
	require.NoError(t, err)
	assert.Contains(t, out, "side")
}

func TestSanitizer_RemovesHiddenElements(t *testing.T) {
	s := NewSanitizer(SanitizerOptions{})

	out, err := s.Sanitize(`<div><span style="display:none">secret</span><span hidden>also</span><p>visible</p></div>`)
	require.NoError(t, err)

	assert.NotContains(t, out, "secret")
	assert.NotContains(t, out, "also")
	assert.Contains(t, out, "visible")
}

func TestSanitizer_NormalizesRelativeURLs(t *testing.T) {
	s := NewSanitizer(SanitizerOptions{BaseURL: "https://wiki.example.com/wiki/Iron_Sword"})

	out, err := s.Sanitize(`<p><a href="/wiki/Steel_Sword">Steel</a><img src="/images/sword.png"></p>`)
	require.NoError(t, err)

	assert.Contains(t, out, `href="https://wiki.example.com/wiki/Steel_Sword"`)
	assert.Contains(t, out, `src="https://wiki.example.com/images/sword.png"`)
}

func TestSanitizer_LeavesSpecialSchemesAlone(t *testing.T) {
	s := NewSanitizer(SanitizerOptions{BaseURL: "https://wiki.example.com/"})

	out, err := s.Sanitize(`<p><a href="#section">anchor</a><a href="mailto:x@y.z">mail</a></p>`)
	require.NoError(t, err)

	assert.Contains(t, out, `href="#section"`)
	assert.Contains(t, out, `href="mailto:x@y.z"`)
}

func TestSanitizer_RemovesEmptyElements(t *testing.T) {
	s := NewSanitizer(SanitizerOptions{})

	out, err := s.Sanitize(`<div><p>   </p><p>real</p></div>`)
	require.NoError(t, err)

	assert.Contains(t, out, "real")
	assert.NotContains(t, out, "<p>   </p>")
}

func TestNormalizeSrcset(t *testing.T) {
	s := NewSanitizer(SanitizerOptions{BaseURL: "https://wiki.example.com/"})

	out, err := s.Sanitize(`<img srcset="/a.png 1x, /b.png 2x">`)
	require.NoError(t, err)

	assert.Contains(t, out, "https://wiki.example.com/a.png 1x")
	assert.Contains(t, out, "https://wiki.example.com/b.png 2x")
}
