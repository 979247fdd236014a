package main

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitesync/sitesync/internal/config"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	want := []string{
		"scrape", "upload", "list", "diff", "rollback", "clean", "status",
		"sync", "rebuild-state", "health", "daemon", "sites", "version",
	}
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range want {
		assert.True(t, names[name], "missing subcommand %s", name)
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{2048, "2.0 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
		{3 * 1024 * 1024 * 1024, "3.0 GiB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatSize(tt.bytes))
	}
}

func TestSitesAddWritesSiteConfig(t *testing.T) {
	dir := t.TempDir()
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("sites_dir", dir)

	require.NoError(t, sitesAddCmd.Flags().Set("cleaning", "mediawiki"))
	require.NoError(t, sitesAddCmd.Flags().Set("schedule", "0 3 * * *"))
	t.Cleanup(func() {
		_ = sitesAddCmd.Flags().Set("cleaning", "")
		_ = sitesAddCmd.Flags().Set("schedule", "")
	})

	err := sitesAddCmd.RunE(sitesAddCmd, []string{"mywiki", "https://wiki.example.com"})
	require.NoError(t, err)

	site, err := config.FindSite(dir, "mywiki")
	require.NoError(t, err)
	assert.Equal(t, "https://wiki.example.com", site.BaseURL)
	assert.Equal(t, "mediawiki", site.Cleaning)
	assert.Equal(t, "#mw-content-text", site.Selector)
	assert.Equal(t, "0 3 * * *", site.Schedule)
}

func TestSitesAddRejectsUnknownProfile(t *testing.T) {
	dir := t.TempDir()
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("sites_dir", dir)

	require.NoError(t, sitesAddCmd.Flags().Set("cleaning", "wordpress"))
	t.Cleanup(func() { _ = sitesAddCmd.Flags().Set("cleaning", "") })

	err := sitesAddCmd.RunE(sitesAddCmd, []string{"mywiki", "https://wiki.example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wordpress")
}

func TestLatestDiffRequiresScrapes(t *testing.T) {
	cfg := config.Default()
	cfg.Output.Directory = t.TempDir()
	a, err := buildAppFromConfig(cfg)
	require.NoError(t, err)

	_, err = latestDiff(a, "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no scrapes")
}
