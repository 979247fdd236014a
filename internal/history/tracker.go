package history

import (
	"fmt"

	"github.com/sitesync/sitesync/internal/domain"
	"github.com/sitesync/sitesync/internal/store"
	"github.com/sitesync/sitesync/internal/utils"
)

// Tracker answers questions about a site's scrape history: what scrapes
// exist, how two scrapes differ, and what changed since a baseline scrape.
type Tracker struct {
	store  *store.Store
	logger *utils.Logger
}

// TrackerOptions contains options for creating a Tracker
type TrackerOptions struct {
	Store  *store.Store
	Logger *utils.Logger
}

// NewTracker creates a Tracker over the given store
func NewTracker(opts TrackerOptions) *Tracker {
	logger := opts.Logger
	if logger == nil {
		logger = utils.NewDefaultLogger()
	}
	return &Tracker{
		store:  opts.Store,
		logger: logger.WithComponent("history"),
	}
}

// ScrapeSummary is one history listing row
type ScrapeSummary struct {
	Timestamp  string `json:"timestamp"`
	Successful int    `json:"successful"`
	Failed     int    `json:"failed"`
	TotalSize  int64  `json:"total_size"`
	Corrupt    bool   `json:"corrupt,omitempty"`
}

// List returns summaries of all scrapes for a site, oldest first. Scrapes
// with unreadable manifests are listed as corrupt rather than skipped.
func (t *Tracker) List(site string) ([]ScrapeSummary, error) {
	timestamps, err := t.store.ListScrapes(site)
	if err != nil {
		return nil, err
	}

	summaries := make([]ScrapeSummary, 0, len(timestamps))
	for _, ts := range timestamps {
		manifest, err := t.store.ReadManifest(site, ts)
		if err != nil {
			summaries = append(summaries, ScrapeSummary{Timestamp: ts, Corrupt: true})
			continue
		}
		summaries = append(summaries, ScrapeSummary{
			Timestamp:  ts,
			Successful: manifest.Stats.Successful,
			Failed:     manifest.Stats.Failed,
			TotalSize:  manifest.Stats.TotalSize,
		})
	}
	return summaries, nil
}

// Get loads one scrape's manifest
func (t *Tracker) Get(site, timestamp string) (*domain.ScrapeManifest, error) {
	return t.store.ReadManifest(site, timestamp)
}

// Latest loads the newest scrape's manifest
func (t *Tracker) Latest(site string) (*domain.ScrapeManifest, error) {
	ts, err := t.store.LatestScrape(site)
	if err != nil {
		return nil, err
	}
	return t.store.ReadManifest(site, ts)
}

// Diff compares two scrapes of a site by URL and checksum
func (t *Tracker) Diff(site, oldTS, newTS string) (*domain.Diff, error) {
	oldManifest, err := t.store.ReadManifest(site, oldTS)
	if err != nil {
		return nil, fmt.Errorf("old scrape %s: %w", oldTS, err)
	}
	newManifest, err := t.store.ReadManifest(site, newTS)
	if err != nil {
		return nil, fmt.Errorf("new scrape %s: %w", newTS, err)
	}
	return DiffManifests(oldManifest, newManifest), nil
}

// ChangedSince diffs the latest scrape against a baseline scrape. An empty
// baseline means the second-latest scrape; a site with a single scrape
// reports every page as added, and a site with no scrapes reports empty
// sets rather than an error. A baseline that names a missing scrape still
// fails with ErrScrapeNotFound.
func (t *Tracker) ChangedSince(site, baseTS string) (*domain.Diff, error) {
	timestamps, err := t.store.ListScrapes(site)
	if err != nil {
		return nil, err
	}
	if len(timestamps) == 0 {
		return &domain.Diff{}, nil
	}
	latest := timestamps[len(timestamps)-1]

	if baseTS == "" && len(timestamps) > 1 {
		baseTS = timestamps[len(timestamps)-2]
	}
	if baseTS == "" {
		manifest, err := t.store.ReadManifest(site, latest)
		if err != nil {
			return nil, err
		}
		return DiffManifests(&domain.ScrapeManifest{}, manifest), nil
	}

	return t.Diff(site, baseTS, latest)
}

// DiffManifests compares two manifests by URL set and per-URL checksum
func DiffManifests(oldManifest, newManifest *domain.ScrapeManifest) *domain.Diff {
	oldFiles := oldManifest.FileMap()
	newFiles := newManifest.FileMap()

	diff := &domain.Diff{
		OldTimestamp: oldManifest.Timestamp,
		NewTimestamp: newManifest.Timestamp,
	}

	for url, newFile := range newFiles {
		oldFile, ok := oldFiles[url]
		switch {
		case !ok:
			diff.Added = append(diff.Added, url)
		case oldFile.Checksum != newFile.Checksum:
			diff.Modified = append(diff.Modified, url)
		default:
			diff.Unchanged = append(diff.Unchanged, url)
		}
	}
	for url := range oldFiles {
		if _, ok := newFiles[url]; !ok {
			diff.Removed = append(diff.Removed, url)
		}
	}

	diff.SortURLs()
	return diff
}
