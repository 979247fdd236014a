package domain

import (
	"sort"
	"time"
)

// TimestampLayout is the sortable layout used for scrape directory names.
// Lexical order equals chronological order, so directory listings sort
// without parsing.
const TimestampLayout = "2006-01-02_15-04-05"

// NewTimestamp formats t as a scrape timestamp string.
func NewTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// SiteInfo identifies a configured site
type SiteInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name,omitempty"`
	BaseURL     string `json:"base_url,omitempty"`
}

// FileEntry describes one scraped page within a manifest or snapshot.
// URL is the unique key; Path is relative to the owning content directory.
type FileEntry struct {
	URL          string `json:"url"`
	Path         string `json:"path"`
	Checksum     string `json:"checksum"` // sha256 hex of the written file
	Size         int64  `json:"size"`
	AddedOn      string `json:"added_on,omitempty"`      // snapshot bookkeeping
	LastModified string `json:"last_modified,omitempty"` // snapshot bookkeeping
	RemoteID     string `json:"remote_id,omitempty"`     // upload bookkeeping
}

// FailedURL records a page that could not be scraped
type FailedURL struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

// ScrapeStats aggregates counts for one scrape run
type ScrapeStats struct {
	TotalPages int   `json:"total_pages"`
	Successful int   `json:"successful"`
	Failed     int   `json:"failed"`
	TotalSize  int64 `json:"total_size"`
}

// ScrapeManifest is the immutable record of one timestamped scrape.
// Written once by the content store; destroyed only by retention pruning.
type ScrapeManifest struct {
	Site       SiteInfo    `json:"site"`
	Timestamp  string      `json:"timestamp"`
	Strategy   string      `json:"strategy,omitempty"`
	Stats      ScrapeStats `json:"statistics"`
	Files      []FileEntry `json:"files"`
	FailedURLs []FailedURL `json:"failed_urls,omitempty"`
}

// FileMap returns the manifest's files keyed by URL
func (m *ScrapeManifest) FileMap() map[string]FileEntry {
	files := make(map[string]FileEntry, len(m.Files))
	for _, f := range m.Files {
		files[f.URL] = f
	}
	return files
}

// SnapshotState is the mutable header of the current snapshot
type SnapshotState struct {
	SourceTimestamp string    `json:"source_timestamp"`
	LastUpdated     time.Time `json:"last_updated"`
	TotalFiles      int       `json:"total_files"`
	TotalSize       int64     `json:"total_size"`
}

// SnapshotMetadata is the persisted metadata of a site's current snapshot
type SnapshotMetadata struct {
	Site  SiteInfo      `json:"site"`
	State SnapshotState `json:"current_state"`
	Files []FileEntry   `json:"files"`
}

// FileMap returns the snapshot's files keyed by URL
func (m *SnapshotMetadata) FileMap() map[string]FileEntry {
	files := make(map[string]FileEntry, len(m.Files))
	for _, f := range m.Files {
		files[f.URL] = f
	}
	return files
}

// Delta operations recorded in the snapshot's delta log
const (
	DeltaOpInitial = "initial"
	DeltaOpUpdate  = "update"
)

// DeltaCounts holds add/modify/remove counts for one snapshot mutation
type DeltaCounts struct {
	Added    int `json:"added"`
	Modified int `json:"modified"`
	Removed  int `json:"removed"`
}

// DeltaDetails lists the URLs behind the counts
type DeltaDetails struct {
	Added    []string `json:"added"`
	Modified []string `json:"modified"`
	Removed  []string `json:"removed"`
}

// DeltaEntry is one append-only audit record in the delta log
type DeltaEntry struct {
	Timestamp string        `json:"timestamp"`
	Operation string        `json:"operation"`
	Changes   DeltaCounts   `json:"changes"`
	Details   *DeltaDetails `json:"details,omitempty"`
}

// DeltaLog is the snapshot's append-only change history
type DeltaLog struct {
	Deltas []DeltaEntry `json:"deltas"`
}

// Diff is the result of comparing two scrapes by URL and checksum.
// Slices are sorted for deterministic output.
type Diff struct {
	OldTimestamp string   `json:"old_timestamp"`
	NewTimestamp string   `json:"new_timestamp"`
	Added        []string `json:"added"`
	Removed      []string `json:"removed"`
	Modified     []string `json:"modified"`
	Unchanged    []string `json:"unchanged"`
}

// HasChanges reports whether the diff contains any change
func (d *Diff) HasChanges() bool {
	return len(d.Added)+len(d.Removed)+len(d.Modified) > 0
}

// Counts returns the diff's change counts
func (d *Diff) Counts() DeltaCounts {
	return DeltaCounts{Added: len(d.Added), Modified: len(d.Modified), Removed: len(d.Removed)}
}

// SortURLs sorts all URL slices in place
func (d *Diff) SortURLs() {
	sort.Strings(d.Added)
	sort.Strings(d.Removed)
	sort.Strings(d.Modified)
	sort.Strings(d.Unchanged)
}

// Confidence describes how trustworthy a remote-state rebuild is
type Confidence string

const (
	ConfidenceVeryLow Confidence = "very_low"
	ConfidenceLow     Confidence = "low"
	ConfidenceMedium  Confidence = "medium"
	ConfidenceHigh    Confidence = "high"
)

var confidenceRank = map[Confidence]int{
	ConfidenceVeryLow: 0,
	ConfidenceLow:     1,
	ConfidenceMedium:  2,
	ConfidenceHigh:    3,
}

// Rank returns the position on the ordered scale; unknown values rank lowest
func (c Confidence) Rank() int {
	return confidenceRank[c]
}

// AtLeast reports whether c meets or exceeds min on the ordered scale
func (c Confidence) AtLeast(min Confidence) bool {
	return c.Rank() >= min.Rank()
}

// ConfidenceForRate maps a rebuild match rate to a confidence level
func ConfidenceForRate(rate float64) Confidence {
	switch {
	case rate >= 0.95:
		return ConfidenceHigh
	case rate >= 0.75:
		return ConfidenceMedium
	case rate >= 0.5:
		return ConfidenceLow
	default:
		return ConfidenceVeryLow
	}
}

// UploadStatus is the per-site record of the last reconciled remote state.
// Absent until the first successful upload; rewritten wholesale on every
// upload or rebuild.
type UploadStatus struct {
	LastUpload        time.Time   `json:"last_upload"`
	CollectionID      string      `json:"collection_id"`
	CollectionName    string      `json:"collection_name,omitempty"`
	SiteName          string      `json:"site_name"`
	FolderPrefix      string      `json:"folder_prefix"`
	FilesUploaded     int         `json:"files_uploaded"`
	FilesUpdated      int         `json:"files_updated"`
	FilesDeleted      int         `json:"files_deleted"`
	SourceTimestamp   string      `json:"source_timestamp"`
	RebuiltFromRemote bool        `json:"rebuilt_from_remote,omitempty"`
	RebuildConfidence Confidence  `json:"rebuild_confidence,omitempty"`
	RebuildMatchRate  float64     `json:"rebuild_match_rate,omitempty"`
	Files             []FileEntry `json:"files"`
}

// FileIDMap returns URL -> remote file id for all tracked files with an id
func (s *UploadStatus) FileIDMap() map[string]string {
	m := make(map[string]string, len(s.Files))
	for _, f := range s.Files {
		if f.RemoteID != "" {
			m[f.URL] = f.RemoteID
		}
	}
	return m
}

// ChecksumMap returns URL -> last confirmed checksum for all tracked files
func (s *UploadStatus) ChecksumMap() map[string]string {
	m := make(map[string]string, len(s.Files))
	for _, f := range s.Files {
		m[f.URL] = f.Checksum
	}
	return m
}

// UploadPlan describes what an upload run must do
type UploadPlan struct {
	Upload          []FileEntry       `json:"upload"`
	Delete          []string          `json:"delete"` // URLs gone from the snapshot
	PreviousFileMap map[string]string `json:"previous_file_map"`
	CollectionID    string            `json:"collection_id,omitempty"`
	Summary         string            `json:"summary"`
}

// UploadResult summarizes a completed upload or remote-state rebuild
type UploadResult struct {
	CollectionID      string            `json:"collection_id"`
	CollectionName    string            `json:"collection_name,omitempty"`
	SiteName          string            `json:"site_name"`
	FolderPrefix      string            `json:"folder_prefix"`
	FilesUploaded     int               `json:"files_uploaded"`
	FilesUpdated      int               `json:"files_updated"`
	FilesDeleted      int               `json:"files_deleted"`
	FilesReuploaded   int               `json:"files_reuploaded,omitempty"`
	FileIDMap         map[string]string `json:"file_id_map"`
	RebuiltFromRemote bool              `json:"rebuilt_from_remote,omitempty"`
	RebuildConfidence Confidence        `json:"rebuild_confidence,omitempty"`
	RebuildMatchRate  float64           `json:"rebuild_match_rate,omitempty"`
	Files             []FileEntry       `json:"files,omitempty"` // reconciled checksums on rebuild
	Summary           string            `json:"summary"`
}

// RemoteFile is one file as reported by the knowledge service
type RemoteFile struct {
	ID   string `json:"id"`
	Name string `json:"name"` // remote filename including the site folder prefix
	Hash string `json:"hash"` // content hash as computed remotely
}

// Collection is a remote knowledge collection
type Collection struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// BatchResult reports a batched collection mutation
type BatchResult struct {
	Added  int `json:"added"`
	Failed int `json:"failed"`
}

// HealthStatus classifies local-vs-remote state health
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthCorrupted HealthStatus = "corrupted"
	HealthMissing   HealthStatus = "missing"
)

// HealthReport is the result of a remote state health check
type HealthReport struct {
	Status         HealthStatus `json:"status"`
	NeedsRebuild   bool         `json:"needs_rebuild"`
	Issues         []string     `json:"issues,omitempty"`
	RemoteCount    int          `json:"remote_count"`
	LocalCount     int          `json:"local_count"`
	MissingRemote  int          `json:"missing_remote"`
	ExtraRemote    int          `json:"extra_remote"`
	Recommendation string       `json:"recommendation,omitempty"`
}

// SyncReport is the result of reconciling tracked ids against the remote set
type SyncReport struct {
	LocalCount    int      `json:"local_count"`
	RemoteCount   int      `json:"remote_count"`
	InSyncCount   int      `json:"in_sync_count"`
	MissingRemote []string `json:"missing_remote"` // tracked ids absent remotely
	ExtraRemote   []string `json:"extra_remote"`   // remote ids not tracked locally
	FixedCount    int      `json:"fixed_count"`
}

// RebuildReport carries the outcome of a rebuild-from-remote matching run
type RebuildReport struct {
	Matched         int        `json:"matched"`
	HashMatched     int        `json:"hash_matched"`
	NameMatched     int        `json:"name_matched"`
	TotalLocal      int        `json:"total_local"`
	MatchRate       float64    `json:"match_rate"`
	Confidence      Confidence `json:"confidence"`
	UnmatchedLocal  []string   `json:"unmatched_local,omitempty"`  // URLs
	UnmatchedRemote []string   `json:"unmatched_remote,omitempty"` // remote ids
}

// RetentionReport summarizes one retention pass
type RetentionReport struct {
	Action            string   `json:"action"` // none, dry_run, cleaned
	Kept              int      `json:"kept"`
	Deleted           int      `json:"deleted"`
	KeptTimestamps    []string `json:"kept_timestamps"`
	DeletedTimestamps []string `json:"deleted_timestamps"`
	CurrentSource     string   `json:"current_source,omitempty"`
	Summary           string   `json:"summary"`
}

// RetentionStatus is a read-only projection of the retention state
type RetentionStatus struct {
	TotalBackups   int    `json:"total_backups"`
	KeepCount      int    `json:"keep_count"`
	WillDelete     int    `json:"will_delete"`
	TotalSizeBytes int64  `json:"total_size_bytes"`
	CurrentSource  string `json:"current_source,omitempty"`
	Status         string `json:"status"` // clean, needs_cleanup
	Recommendation string `json:"recommendation"`
}

// Page is a raw fetched page before conversion
type Page struct {
	URL         string
	Content     []byte
	ContentType string
	StatusCode  int
	FetchedAt   time.Time
	FromCache   bool
}

// Document is a converted markdown page ready for the content store
type Document struct {
	URL         string
	Title       string
	Markdown    string
	ContentHash string
	Links       []string
	FetchedAt   time.Time
}

// Frontmatter is the YAML header written above each stored markdown file
type Frontmatter struct {
	URL   string `yaml:"url"`
	Site  string `yaml:"site"`
	Title string `yaml:"title,omitempty"`
}
