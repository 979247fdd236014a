package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/sitesync/sitesync/internal/domain"
	"github.com/sitesync/sitesync/internal/utils"
)

// Store persists timestamped scrapes and their manifests under the output
// directory. Scrape directories are immutable once finalized.
type Store struct {
	layout Layout
	logger *utils.Logger
}

// StoreOptions contains options for creating a Store
type StoreOptions struct {
	Root   string
	Logger *utils.Logger
}

// New creates a Store rooted at opts.Root
func New(opts StoreOptions) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = utils.NewDefaultLogger()
	}
	return &Store{
		layout: Layout{Root: opts.Root},
		logger: logger.WithComponent("store"),
	}
}

// Layout exposes the directory layout for collaborating packages
func (s *Store) Layout() Layout {
	return s.layout
}

// ListScrapes returns all scrape timestamps for a site in ascending order.
// The current snapshot directory is not a scrape and is excluded.
func (s *Store) ListScrapes(site string) ([]string, error) {
	entries, err := os.ReadDir(s.layout.SiteDir(site))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var timestamps []string
	for _, entry := range entries {
		if !entry.IsDir() || entry.Name() == CurrentDirName {
			continue
		}
		if _, err := time.Parse(domain.TimestampLayout, entry.Name()); err != nil {
			continue
		}
		timestamps = append(timestamps, entry.Name())
	}

	sort.Strings(timestamps)
	return timestamps, nil
}

// LatestScrape returns the newest scrape timestamp for a site
func (s *Store) LatestScrape(site string) (string, error) {
	timestamps, err := s.ListScrapes(site)
	if err != nil {
		return "", err
	}
	if len(timestamps) == 0 {
		return "", domain.ErrScrapeNotFound
	}
	return timestamps[len(timestamps)-1], nil
}

// ReadManifest loads the manifest of one scrape
func (s *Store) ReadManifest(site, timestamp string) (*domain.ScrapeManifest, error) {
	data, err := os.ReadFile(s.layout.ManifestPath(site, timestamp))
	if os.IsNotExist(err) {
		return nil, domain.ErrScrapeNotFound
	}
	if err != nil {
		return nil, err
	}

	var manifest domain.ScrapeManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, domain.ErrMetadataCorrupt
	}
	return &manifest, nil
}

// WriteManifest persists a scrape manifest
func (s *Store) WriteManifest(manifest *domain.ScrapeManifest) error {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return err
	}

	path := s.layout.ManifestPath(manifest.Site.Name, manifest.Timestamp)
	if err := utils.EnsureDir(path); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ScrapeSize returns the total content size of one scrape in bytes
func (s *Store) ScrapeSize(site, timestamp string) (int64, error) {
	dir := s.layout.ScrapeDir(site, timestamp)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return 0, domain.ErrScrapeNotFound
	}
	return utils.DirSize(dir)
}

// DeleteScrape removes one scrape directory entirely
func (s *Store) DeleteScrape(site, timestamp string) error {
	dir := s.layout.ScrapeDir(site, timestamp)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return domain.ErrScrapeNotFound
	}
	s.logger.Debug().Str("site", site).Str("scrape", timestamp).Msg("Deleting scrape")
	return os.RemoveAll(dir)
}

// ReadContent reads one stored file of a scrape by its manifest path
func (s *Store) ReadContent(site, timestamp, relPath string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.layout.ScrapeContentDir(site, timestamp), relPath))
}

// ScrapeReport is the run summary written next to the manifest
type ScrapeReport struct {
	Site       string    `json:"site"`
	Timestamp  string    `json:"timestamp"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	Duration   string    `json:"duration"`
	Successful int       `json:"successful"`
	Failed     int       `json:"failed"`
	TotalSize  int64     `json:"total_size"`
}

// WriteReport persists a scrape report
func (s *Store) WriteReport(report *ScrapeReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	path := s.layout.ReportPath(report.Site, report.Timestamp)
	if err := utils.EnsureDir(path); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
