package store

import "path/filepath"

// On-disk file names within a site directory
const (
	ManifestFileName     = "metadata.json"
	ReportFileName       = "scrape_report.json"
	DeltaLogFileName     = "delta_log.json"
	UploadStatusFileName = "upload_status.json"
	ContentDirName       = "content"
	CurrentDirName       = "current"
)

// Layout maps sites, scrapes, and the current snapshot onto the output
// directory tree:
//
//	<root>/<site>/<timestamp>/content/...   immutable scrape content
//	<root>/<site>/<timestamp>/metadata.json scrape manifest
//	<root>/<site>/current/content/...       mutable snapshot
//	<root>/<site>/current/metadata.json     snapshot metadata
//	<root>/<site>/current/delta_log.json    snapshot change history
//	<root>/<site>/current/upload_status.json last reconciled remote state
type Layout struct {
	Root string
}

// SiteDir returns the directory holding all state for a site
func (l Layout) SiteDir(site string) string {
	return filepath.Join(l.Root, site)
}

// ScrapeDir returns the directory of one timestamped scrape
func (l Layout) ScrapeDir(site, timestamp string) string {
	return filepath.Join(l.Root, site, timestamp)
}

// ScrapeContentDir returns the content tree of one scrape
func (l Layout) ScrapeContentDir(site, timestamp string) string {
	return filepath.Join(l.ScrapeDir(site, timestamp), ContentDirName)
}

// ManifestPath returns the manifest path of one scrape
func (l Layout) ManifestPath(site, timestamp string) string {
	return filepath.Join(l.ScrapeDir(site, timestamp), ManifestFileName)
}

// ReportPath returns the scrape report path of one scrape
func (l Layout) ReportPath(site, timestamp string) string {
	return filepath.Join(l.ScrapeDir(site, timestamp), ReportFileName)
}

// CurrentDir returns the mutable snapshot directory of a site
func (l Layout) CurrentDir(site string) string {
	return filepath.Join(l.Root, site, CurrentDirName)
}

// CurrentContentDir returns the snapshot's content tree
func (l Layout) CurrentContentDir(site string) string {
	return filepath.Join(l.CurrentDir(site), ContentDirName)
}

// CurrentMetadataPath returns the snapshot metadata path
func (l Layout) CurrentMetadataPath(site string) string {
	return filepath.Join(l.CurrentDir(site), ManifestFileName)
}

// DeltaLogPath returns the snapshot delta log path
func (l Layout) DeltaLogPath(site string) string {
	return filepath.Join(l.CurrentDir(site), DeltaLogFileName)
}

// UploadStatusPath returns the snapshot upload status path
func (l Layout) UploadStatusPath(site string) string {
	return filepath.Join(l.CurrentDir(site), UploadStatusFileName)
}
