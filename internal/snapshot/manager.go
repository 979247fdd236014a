package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sitesync/sitesync/internal/domain"
	"github.com/sitesync/sitesync/internal/history"
	"github.com/sitesync/sitesync/internal/store"
	"github.com/sitesync/sitesync/internal/utils"
)

// Manager maintains the mutable "current" snapshot of a site: a content
// tree mirroring the newest scrape, metadata describing it, and an
// append-only delta log of every mutation. The snapshot is disposable
// state; it can always be rebuilt from an immutable scrape.
type Manager struct {
	store  *store.Store
	layout store.Layout
	logger *utils.Logger
}

// ManagerOptions contains options for creating a Manager
type ManagerOptions struct {
	Store  *store.Store
	Logger *utils.Logger
}

// NewManager creates a snapshot Manager over the given store
func NewManager(opts ManagerOptions) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = utils.NewDefaultLogger()
	}
	return &Manager{
		store:  opts.Store,
		layout: opts.Store.Layout(),
		logger: logger.WithComponent("snapshot"),
	}
}

// ReadMetadata loads the current snapshot metadata of a site
func (m *Manager) ReadMetadata(site string) (*domain.SnapshotMetadata, error) {
	data, err := os.ReadFile(m.layout.CurrentMetadataPath(site))
	if os.IsNotExist(err) {
		return nil, domain.ErrSnapshotMissing
	}
	if err != nil {
		return nil, err
	}

	var meta domain.SnapshotMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, domain.ErrMetadataCorrupt
	}
	return &meta, nil
}

func (m *Manager) writeMetadata(site string, meta *domain.SnapshotMetadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	path := m.layout.CurrentMetadataPath(site)
	if err := utils.EnsureDir(path); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ReadDeltaLog loads the snapshot's delta log; a missing log is an empty log
func (m *Manager) ReadDeltaLog(site string) (*domain.DeltaLog, error) {
	data, err := os.ReadFile(m.layout.DeltaLogPath(site))
	if os.IsNotExist(err) {
		return &domain.DeltaLog{}, nil
	}
	if err != nil {
		return nil, err
	}

	var log domain.DeltaLog
	if err := json.Unmarshal(data, &log); err != nil {
		return nil, domain.ErrMetadataCorrupt
	}
	return &log, nil
}

func (m *Manager) writeDeltaLog(site string, log *domain.DeltaLog) error {
	data, err := json.MarshalIndent(log, "", "  ")
	if err != nil {
		return err
	}
	path := m.layout.DeltaLogPath(site)
	if err := utils.EnsureDir(path); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (m *Manager) appendDelta(site string, entry domain.DeltaEntry) error {
	log, err := m.ReadDeltaLog(site)
	if err != nil {
		// a corrupt log must not block snapshot updates; start over
		m.logger.Warn().Str("site", site).Msg("Delta log unreadable, starting fresh")
		log = &domain.DeltaLog{}
	}
	log.Deltas = append(log.Deltas, entry)
	return m.writeDeltaLog(site, log)
}

// ReadUploadStatus loads the last reconciled remote state of a site
func (m *Manager) ReadUploadStatus(site string) (*domain.UploadStatus, error) {
	data, err := os.ReadFile(m.layout.UploadStatusPath(site))
	if os.IsNotExist(err) {
		return nil, domain.ErrUploadStateMissing
	}
	if err != nil {
		return nil, err
	}

	var status domain.UploadStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, domain.ErrMetadataCorrupt
	}
	return &status, nil
}

// WriteUploadStatus persists the reconciled remote state wholesale
func (m *Manager) WriteUploadStatus(site string, status *domain.UploadStatus) error {
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return err
	}
	path := m.layout.UploadStatusPath(site)
	if err := utils.EnsureDir(path); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// SourceTimestamp returns the scrape the current snapshot was built from
func (m *Manager) SourceTimestamp(site string) (string, error) {
	meta, err := m.ReadMetadata(site)
	if err != nil {
		return "", err
	}
	return meta.State.SourceTimestamp, nil
}

// Rebuild discards the current snapshot and reconstructs it wholesale from
// the given scrape. The delta log restarts with a single initial entry; the
// upload status is left untouched.
func (m *Manager) Rebuild(site, timestamp string) error {
	manifest, err := m.store.ReadManifest(site, timestamp)
	if err != nil {
		return fmt.Errorf("rebuild from %s: %w", timestamp, err)
	}

	contentDir := m.layout.CurrentContentDir(site)
	if err := os.RemoveAll(contentDir); err != nil {
		return err
	}
	if err := os.MkdirAll(contentDir, 0755); err != nil {
		return err
	}

	srcDir := m.layout.ScrapeContentDir(site, timestamp)
	var copied []domain.FileEntry
	var copiedURLs []string
	var totalSize int64
	for _, f := range manifest.Files {
		if err := utils.CopyFile(filepath.Join(srcDir, filepath.FromSlash(f.Path)), filepath.Join(contentDir, filepath.FromSlash(f.Path))); err != nil {
			m.logger.Warn().Str("site", site).Str("path", f.Path).Err(err).Msg("Copy failed during rebuild")
			continue
		}
		entry := f
		entry.AddedOn = timestamp
		entry.LastModified = timestamp
		copied = append(copied, entry)
		copiedURLs = append(copiedURLs, f.URL)
		totalSize += f.Size
	}

	meta := &domain.SnapshotMetadata{
		Site: manifest.Site,
		State: domain.SnapshotState{
			SourceTimestamp: timestamp,
			LastUpdated:     time.Now(),
			TotalFiles:      len(copied),
			TotalSize:       totalSize,
		},
		Files: copied,
	}
	if err := m.writeMetadata(site, meta); err != nil {
		return err
	}

	log := &domain.DeltaLog{Deltas: []domain.DeltaEntry{{
		Timestamp: timestamp,
		Operation: domain.DeltaOpInitial,
		Changes:   domain.DeltaCounts{Added: len(copied)},
		Details:   &domain.DeltaDetails{Added: copiedURLs},
	}}}
	if err := m.writeDeltaLog(site, log); err != nil {
		return err
	}

	m.logger.Info().Str("site", site).Str("scrape", timestamp).
		Int("files", len(copied)).Msg("Snapshot rebuilt")
	return nil
}

// rebuildAsDiff runs a full Rebuild and reports the result the way callers of
// UpdateFrom expect it, with every snapshot file listed as added.
func (m *Manager) rebuildAsDiff(site, timestamp string) (*domain.Diff, error) {
	if err := m.Rebuild(site, timestamp); err != nil {
		return nil, err
	}
	meta, err := m.ReadMetadata(site)
	if err != nil {
		return nil, err
	}
	diff := &domain.Diff{NewTimestamp: timestamp}
	for _, f := range meta.Files {
		diff.Added = append(diff.Added, f.URL)
	}
	return diff, nil
}

// UpdateFrom brings the snapshot up to the given scrape incrementally,
// copying only changed files and recording an update delta. Falls back to a
// full Rebuild when the snapshot is missing, its metadata is unreadable, or
// its source scrape no longer exists.
func (m *Manager) UpdateFrom(site, timestamp string) (*domain.Diff, error) {
	meta, err := m.ReadMetadata(site)
	if err != nil {
		m.logger.Info().Str("site", site).Err(err).Msg("Snapshot unusable, rebuilding")
		return m.rebuildAsDiff(site, timestamp)
	}

	sourceTS := meta.State.SourceTimestamp
	srcManifest, err := m.store.ReadManifest(site, sourceTS)
	if err != nil {
		m.logger.Info().Str("site", site).Str("source", sourceTS).
			Msg("Source scrape gone, rebuilding")
		return m.rebuildAsDiff(site, timestamp)
	}

	newManifest, err := m.store.ReadManifest(site, timestamp)
	if err != nil {
		return nil, fmt.Errorf("update from %s: %w", timestamp, err)
	}

	diff := history.DiffManifests(srcManifest, newManifest)

	contentDir := m.layout.CurrentContentDir(site)
	srcDir := m.layout.ScrapeContentDir(site, timestamp)
	newFiles := newManifest.FileMap()
	oldMeta := meta.FileMap()

	copied := map[string]bool{}
	for _, url := range append(append([]string{}, diff.Added...), diff.Modified...) {
		f := newFiles[url]
		dst := filepath.Join(contentDir, filepath.FromSlash(f.Path))
		if err := utils.CopyFile(filepath.Join(srcDir, filepath.FromSlash(f.Path)), dst); err != nil {
			m.logger.Warn().Str("site", site).Str("path", f.Path).Err(err).Msg("Copy failed during update")
			continue
		}
		copied[url] = true
	}

	for _, url := range diff.Removed {
		if old, ok := oldMeta[url]; ok {
			path := filepath.Join(contentDir, filepath.FromSlash(old.Path))
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				m.logger.Warn().Str("site", site).Str("path", old.Path).Err(err).Msg("Remove failed during update")
			}
			utils.RemoveEmptyParents(filepath.Dir(path), contentDir)
		}
	}

	// new metadata mirrors the new manifest; added_on survives for URLs the
	// snapshot already tracked
	var files []domain.FileEntry
	var totalSize int64
	for _, f := range newManifest.Files {
		entry := f
		if old, ok := oldMeta[f.URL]; ok {
			entry.AddedOn = old.AddedOn
			entry.LastModified = old.LastModified
		} else {
			entry.AddedOn = timestamp
		}
		if copied[f.URL] {
			entry.LastModified = timestamp
		}
		files = append(files, entry)
		totalSize += f.Size
	}

	meta.Site = newManifest.Site
	meta.State = domain.SnapshotState{
		SourceTimestamp: timestamp,
		LastUpdated:     time.Now(),
		TotalFiles:      len(files),
		TotalSize:       totalSize,
	}
	meta.Files = files
	if err := m.writeMetadata(site, meta); err != nil {
		return nil, err
	}

	if err := m.appendDelta(site, domain.DeltaEntry{
		Timestamp: timestamp,
		Operation: domain.DeltaOpUpdate,
		Changes:   diff.Counts(),
		Details: &domain.DeltaDetails{
			Added:    diff.Added,
			Modified: diff.Modified,
			Removed:  diff.Removed,
		},
	}); err != nil {
		return nil, err
	}

	m.logger.Info().Str("site", site).Str("scrape", timestamp).
		Int("added", len(diff.Added)).Int("modified", len(diff.Modified)).
		Int("removed", len(diff.Removed)).Msg("Snapshot updated")
	return diff, nil
}

// VerifyIntegrity checks the snapshot for inconsistencies and returns a
// human-readable issue list; an empty list means the snapshot is sound
func (m *Manager) VerifyIntegrity(site string) []string {
	var issues []string

	if _, err := os.Stat(m.layout.CurrentDir(site)); os.IsNotExist(err) {
		return []string{"current snapshot directory missing"}
	}

	meta, err := m.ReadMetadata(site)
	switch err {
	case nil:
	case domain.ErrSnapshotMissing:
		issues = append(issues, "snapshot metadata missing")
	default:
		issues = append(issues, "snapshot metadata corrupt")
	}

	contentDir := m.layout.CurrentContentDir(site)
	if meta != nil {
		tracked := map[string]bool{}
		missing := 0
		for _, f := range meta.Files {
			rel := filepath.FromSlash(f.Path)
			tracked[rel] = true
			if _, err := os.Stat(filepath.Join(contentDir, rel)); err != nil {
				missing++
			}
		}
		if missing > 0 {
			issues = append(issues, fmt.Sprintf("%d tracked files missing from disk", missing))
		}

		orphans := 0
		filepath.Walk(contentDir, func(path string, info os.FileInfo, err error) error {
			if err != nil || info.IsDir() {
				return nil
			}
			rel, relErr := filepath.Rel(contentDir, path)
			if relErr == nil && !tracked[rel] {
				orphans++
			}
			return nil
		})
		if orphans > 0 {
			issues = append(issues, fmt.Sprintf("%d orphaned files on disk", orphans))
		}
	}

	if _, err := os.Stat(m.layout.DeltaLogPath(site)); os.IsNotExist(err) {
		issues = append(issues, "delta log missing")
	}

	return issues
}

// ReadContent reads one snapshot file by its metadata path
func (m *Manager) ReadContent(site, relPath string) ([]byte, error) {
	return os.ReadFile(filepath.Join(m.layout.CurrentContentDir(site), filepath.FromSlash(relPath)))
}
