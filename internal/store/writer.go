package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sitesync/sitesync/internal/domain"
	"github.com/sitesync/sitesync/internal/utils"
)

// ScrapeWriter accumulates documents into one timestamped scrape directory
// and finalizes it with a manifest and report. Safe for concurrent Add calls.
type ScrapeWriter struct {
	store     *Store
	site      domain.SiteInfo
	timestamp string
	strategy  string
	startTime time.Time

	mu     sync.Mutex
	files  []domain.FileEntry
	failed []domain.FailedURL
	paths  map[string]bool
}

// NewScrape opens a writer for a new scrape of site at the given timestamp
func (s *Store) NewScrape(site domain.SiteInfo, timestamp, strategy string) (*ScrapeWriter, error) {
	dir := s.layout.ScrapeContentDir(site.Name, timestamp)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &ScrapeWriter{
		store:     s,
		site:      site,
		timestamp: timestamp,
		strategy:  strategy,
		startTime: time.Now(),
		paths:     map[string]bool{},
	}, nil
}

// Timestamp returns the scrape's timestamp
func (w *ScrapeWriter) Timestamp() string {
	return w.timestamp
}

// Add writes one document into the scrape's content tree and records it for
// the manifest. Path collisions between distinct URLs get a numeric suffix.
func (w *ScrapeWriter) Add(ctx context.Context, doc *domain.Document) (domain.FileEntry, error) {
	if err := ctx.Err(); err != nil {
		return domain.FileEntry{}, err
	}

	content, err := renderDocument(w.site.Name, doc)
	if err != nil {
		return domain.FileEntry{}, err
	}

	w.mu.Lock()
	relPath := w.claimPath(utils.URLToPath(doc.URL))
	w.mu.Unlock()

	fullPath := filepath.Join(w.store.layout.ScrapeContentDir(w.site.Name, w.timestamp), relPath)
	if err := utils.EnsureDir(fullPath); err != nil {
		return domain.FileEntry{}, err
	}
	if err := os.WriteFile(fullPath, content, 0644); err != nil {
		return domain.FileEntry{}, fmt.Errorf("%w: %s: %v", domain.ErrWriteFailed, relPath, err)
	}

	entry := domain.FileEntry{
		URL:      doc.URL,
		Path:     filepath.ToSlash(relPath),
		Checksum: utils.ChecksumBytes(content),
		Size:     int64(len(content)),
	}

	w.mu.Lock()
	w.files = append(w.files, entry)
	w.mu.Unlock()

	return entry, nil
}

// AddFailure records a URL that could not be scraped
func (w *ScrapeWriter) AddFailure(url string, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.failed = append(w.failed, domain.FailedURL{URL: url, Error: err.Error()})
}

// claimPath returns relPath or a suffixed variant not yet used in this
// scrape. Caller holds the lock.
func (w *ScrapeWriter) claimPath(relPath string) string {
	if !w.paths[relPath] {
		w.paths[relPath] = true
		return relPath
	}
	ext := filepath.Ext(relPath)
	base := strings.TrimSuffix(relPath, ext)
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s-%d%s", base, i, ext)
		if !w.paths[candidate] {
			w.paths[candidate] = true
			return candidate
		}
	}
}

// Finalize writes the manifest and report, sealing the scrape
func (w *ScrapeWriter) Finalize() (*domain.ScrapeManifest, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var totalSize int64
	for _, f := range w.files {
		totalSize += f.Size
	}

	manifest := &domain.ScrapeManifest{
		Site:      w.site,
		Timestamp: w.timestamp,
		Strategy:  w.strategy,
		Stats: domain.ScrapeStats{
			TotalPages: len(w.files) + len(w.failed),
			Successful: len(w.files),
			Failed:     len(w.failed),
			TotalSize:  totalSize,
		},
		Files:      w.files,
		FailedURLs: w.failed,
	}

	if err := w.store.WriteManifest(manifest); err != nil {
		return nil, err
	}

	endTime := time.Now()
	report := &ScrapeReport{
		Site:       w.site.Name,
		Timestamp:  w.timestamp,
		StartTime:  w.startTime,
		EndTime:    endTime,
		Duration:   endTime.Sub(w.startTime).Round(time.Millisecond).String(),
		Successful: len(w.files),
		Failed:     len(w.failed),
		TotalSize:  totalSize,
	}
	if err := w.store.WriteReport(report); err != nil {
		return nil, err
	}

	w.store.logger.Info().
		Str("site", w.site.Name).
		Str("scrape", w.timestamp).
		Int("files", len(w.files)).
		Int("failed", len(w.failed)).
		Msg("Scrape finalized")

	return manifest, nil
}

// renderDocument produces the stored file bytes: YAML frontmatter followed
// by the markdown body
func renderDocument(site string, doc *domain.Document) ([]byte, error) {
	fm := domain.Frontmatter{
		URL:   doc.URL,
		Site:  site,
		Title: doc.Title,
	}
	header, err := yaml.Marshal(fm)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(header)
	b.WriteString("---\n\n")
	b.WriteString(doc.Markdown)
	if !strings.HasSuffix(doc.Markdown, "\n") {
		b.WriteString("\n")
	}
	return []byte(b.String()), nil
}
