package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProgressBar(t *testing.T) {
	t.Run("determinate with known total", func(t *testing.T) {
		bar := NewProgressBar(100, DescUploading)
		require.NotNil(t, bar)
	})

	t.Run("indeterminate with unknown total", func(t *testing.T) {
		bar := NewProgressBar(-1, DescCrawling)
		require.NotNil(t, bar)
	})

	t.Run("zero total", func(t *testing.T) {
		bar := NewProgressBar(0, DescProcessing)
		require.NotNil(t, bar)
	})
}

func TestProgressBarDescriptions(t *testing.T) {
	assert.Equal(t, "Crawling", DescCrawling)
	assert.Equal(t, "Uploading", DescUploading)
	assert.Equal(t, "Updating", DescUpdating)
	assert.Equal(t, "Processing", DescProcessing)
}
