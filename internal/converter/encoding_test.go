package converter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

func TestDetectEncoding(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			"html5 meta charset",
			`<html><head><meta charset="iso-8859-1"></head></html>`,
			"iso-8859-1",
		},
		{
			"http-equiv meta",
			`<html><head><meta http-equiv="Content-Type" content="text/html; charset=windows-1251"></head></html>`,
			"windows-1251",
		},
		{
			"no declaration defaults to utf-8",
			`<html><body>plain ascii</body></html>`,
			"utf-8",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectEncoding([]byte(tt.content)))
		})
	}
}

func TestConvertToUTF8(t *testing.T) {
	t.Run("utf-8 passes through", func(t *testing.T) {
		content := []byte(`<html><head><meta charset="utf-8"></head><body>héllo</body></html>`)
		out, err := ConvertToUTF8(content)
		require.NoError(t, err)
		assert.Equal(t, content, out)
	})

	t.Run("latin-1 is decoded", func(t *testing.T) {
		encoder := charmap.ISO8859_1.NewEncoder()
		latin1, err := encoder.Bytes([]byte(`<html><head><meta charset="iso-8859-1"></head><body>café</body></html>`))
		require.NoError(t, err)

		out, err := ConvertToUTF8(latin1)
		require.NoError(t, err)
		assert.Contains(t, string(out), "café")
	})

	t.Run("unknown encoding returned unchanged", func(t *testing.T) {
		content := []byte(`<html><head><meta charset="no-such-charset"></head><body>x</body></html>`)
		out, err := ConvertToUTF8(content)
		require.NoError(t, err)
		assert.Equal(t, content, out)
	})
}
