package retention_test

import (
	"archive/tar"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitesync/sitesync/internal/domain"
	"github.com/sitesync/sitesync/internal/retention"
	"github.com/sitesync/sitesync/internal/snapshot"
	"github.com/sitesync/sitesync/internal/store"
)

const site = "mywiki"

const (
	ts1 = "2026-01-01_10-00-00"
	ts2 = "2026-01-02_10-00-00"
	ts3 = "2026-01-03_10-00-00"
)

func setup(t *testing.T) (*store.Store, *snapshot.Manager, *retention.Engine) {
	t.Helper()
	s := store.New(store.StoreOptions{Root: t.TempDir()})
	m := snapshot.NewManager(snapshot.ManagerOptions{Store: s})
	e := retention.NewEngine(retention.EngineOptions{Store: s, Snapshots: m})
	return s, m, e
}

func writeScrape(t *testing.T, s *store.Store, ts string) {
	t.Helper()
	w, err := s.NewScrape(domain.SiteInfo{Name: site, BaseURL: "https://wiki.example.com"}, ts, "crawl")
	require.NoError(t, err)
	_, err = w.Add(context.Background(), &domain.Document{
		URL:      "https://wiki.example.com/page",
		Markdown: "content from " + ts,
	})
	require.NoError(t, err)
	_, err = w.Finalize()
	require.NoError(t, err)
}

func remaining(t *testing.T, s *store.Store) []string {
	t.Helper()
	scrapes, err := s.ListScrapes(site)
	require.NoError(t, err)
	return scrapes
}

func TestApply_KeepNewest(t *testing.T) {
	s, _, e := setup(t)
	for _, ts := range []string{ts1, ts2, ts3} {
		writeScrape(t, s, ts)
	}

	report, err := e.Apply(site, 1, false)
	require.NoError(t, err)

	assert.Equal(t, "cleaned", report.Action)
	assert.Equal(t, 1, report.Kept)
	assert.Equal(t, 2, report.Deleted)
	assert.Equal(t, []string{ts3}, report.KeptTimestamps)
	assert.Equal(t, []string{ts1, ts2}, report.DeletedTimestamps)
	assert.Equal(t, []string{ts3}, remaining(t, s))
}

func TestApply_ProtectsSnapshotSource(t *testing.T) {
	s, m, e := setup(t)
	for _, ts := range []string{ts1, ts2, ts3} {
		writeScrape(t, s, ts)
	}
	require.NoError(t, m.Rebuild(site, ts2))

	report, err := e.Apply(site, 1, false)
	require.NoError(t, err)

	// the source stays even though it is not the newest; the slot it takes
	// comes out of the kept set
	assert.Equal(t, ts2, report.CurrentSource)
	assert.Equal(t, []string{ts2}, report.KeptTimestamps)
	assert.Equal(t, []string{ts1, ts3}, report.DeletedTimestamps)
	assert.Equal(t, []string{ts2}, remaining(t, s))
}

func TestApply_KeepZeroStillProtectsSource(t *testing.T) {
	s, m, e := setup(t)
	for _, ts := range []string{ts1, ts2, ts3} {
		writeScrape(t, s, ts)
	}
	require.NoError(t, m.Rebuild(site, ts3))

	report, err := e.Apply(site, 0, false)
	require.NoError(t, err)

	assert.Equal(t, []string{ts3}, report.KeptTimestamps)
	assert.Equal(t, 2, report.Deleted)
	assert.Equal(t, []string{ts3}, remaining(t, s))

	// the snapshot itself is untouched
	_, err = m.ReadMetadata(site)
	require.NoError(t, err)
}

func TestApply_KeepZeroNoSnapshot(t *testing.T) {
	s, _, e := setup(t)
	for _, ts := range []string{ts1, ts2} {
		writeScrape(t, s, ts)
	}

	report, err := e.Apply(site, 0, false)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Deleted)
	assert.Empty(t, remaining(t, s))
}

func TestApply_NothingToClean(t *testing.T) {
	s, _, e := setup(t)
	writeScrape(t, s, ts1)

	report, err := e.Apply(site, 5, false)
	require.NoError(t, err)
	assert.Equal(t, "none", report.Action)
	assert.Equal(t, 1, report.Kept)
	assert.Zero(t, report.Deleted)
	assert.Equal(t, []string{ts1}, remaining(t, s))
}

func TestApply_DryRun(t *testing.T) {
	s, _, e := setup(t)
	for _, ts := range []string{ts1, ts2, ts3} {
		writeScrape(t, s, ts)
	}

	report, err := e.Apply(site, 1, true)
	require.NoError(t, err)
	assert.Equal(t, "dry_run", report.Action)
	assert.Equal(t, 2, report.Deleted)
	assert.Len(t, remaining(t, s), 3)
}

func TestApply_NegativeKeep(t *testing.T) {
	_, _, e := setup(t)

	_, err := e.Apply(site, -1, false)
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestStatus(t *testing.T) {
	s, m, e := setup(t)
	for _, ts := range []string{ts1, ts2, ts3} {
		writeScrape(t, s, ts)
	}
	require.NoError(t, m.Rebuild(site, ts3))

	status, err := e.Status(site, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, status.TotalBackups)
	assert.Equal(t, 2, status.WillDelete)
	assert.Equal(t, ts3, status.CurrentSource)
	assert.Positive(t, status.TotalSizeBytes)
	assert.Equal(t, "needs_cleanup", status.Status)
	assert.Contains(t, status.Recommendation, "2")
}

func TestStatus_Clean(t *testing.T) {
	s, _, e := setup(t)
	writeScrape(t, s, ts1)

	status, err := e.Status(site, 5)
	require.NoError(t, err)
	assert.Zero(t, status.WillDelete)
	assert.Equal(t, "clean", status.Status)
	assert.Equal(t, "No cleanup needed", status.Recommendation)
}

func TestApply_ArchivesBeforeDelete(t *testing.T) {
	s, m, _ := setup(t)
	archiveDir := t.TempDir()
	e := retention.NewEngine(retention.EngineOptions{
		Store:     s,
		Snapshots: m,
		Archiver:  retention.NewArchiver(archiveDir, nil),
	})
	for _, ts := range []string{ts1, ts2} {
		writeScrape(t, s, ts)
	}

	report, err := e.Apply(site, 1, false)
	require.NoError(t, err)
	assert.Equal(t, []string{ts1}, report.DeletedTimestamps)
	assert.Equal(t, []string{ts2}, remaining(t, s))

	names := readArchive(t, filepath.Join(archiveDir, site, ts1+".tar.gz"))
	assert.Contains(t, names, "metadata.json")
	assert.Contains(t, names, "content/page.md")
}

func readArchive(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	tr := tar.NewReader(gz)

	var names []string
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		names = append(names, hdr.Name)
	}
	return names
}
