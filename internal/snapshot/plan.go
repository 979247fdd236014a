package snapshot

import (
	"errors"
	"fmt"
	"time"

	"github.com/sitesync/sitesync/internal/domain"
	"github.com/sitesync/sitesync/internal/utils"
)

// PlanUpload computes what an upload run must push and delete to make the
// remote collection mirror the current snapshot.
//
// A full plan pushes everything and deletes nothing. An incremental plan
// needs the previous upload status: without one (first upload) or with a
// corrupt one it degrades to a full plan.
func (m *Manager) PlanUpload(site string, incremental bool) (*domain.UploadPlan, error) {
	meta, err := m.ReadMetadata(site)
	if err != nil {
		return nil, err
	}

	if !incremental {
		return &domain.UploadPlan{
			Upload:          meta.Files,
			PreviousFileMap: map[string]string{},
			Summary:         fmt.Sprintf("Full upload of %d files", len(meta.Files)),
		}, nil
	}

	status, err := m.ReadUploadStatus(site)
	if errors.Is(err, domain.ErrUploadStateMissing) {
		return &domain.UploadPlan{
			Upload:          meta.Files,
			PreviousFileMap: map[string]string{},
			Summary:         fmt.Sprintf("Initial upload of %d files", len(meta.Files)),
		}, nil
	}
	if err != nil {
		m.logger.Warn().Str("site", site).Err(err).Msg("Upload status unreadable, falling back to full upload")
		return &domain.UploadPlan{
			Upload:          meta.Files,
			PreviousFileMap: map[string]string{},
			Summary:         fmt.Sprintf("Full upload of %d files (status corrupt)", len(meta.Files)),
		}, nil
	}

	lastChecksums := status.ChecksumMap()
	currentURLs := map[string]bool{}

	var upload []domain.FileEntry
	for _, f := range meta.Files {
		currentURLs[f.URL] = true
		last, known := lastChecksums[f.URL]
		if !known || last != f.Checksum {
			upload = append(upload, f)
		}
	}

	var remove []string
	for url := range lastChecksums {
		if !currentURLs[url] {
			remove = append(remove, url)
		}
	}

	return &domain.UploadPlan{
		Upload:          upload,
		Delete:          remove,
		PreviousFileMap: status.FileIDMap(),
		CollectionID:    status.CollectionID,
		Summary: fmt.Sprintf("Incremental upload: %d to push, %d to delete, %d unchanged",
			len(upload), len(remove), len(meta.Files)-len(upload)),
	}, nil
}

// SaveUploadStatus records the outcome of an upload run as the new remote
// state baseline.
//
// Checksum precedence per file, in order:
//  1. rebuild results carry the checksum the remote reported, so a file
//     whose remote hash diverges from local stays flagged for re-push
//  2. after a rebuilt baseline, files this run did not touch keep the
//     previous (remote) checksum for the same reason
//  3. otherwise the fresh local checksum
func (m *Manager) SaveUploadStatus(site string, result *domain.UploadResult) (*domain.UploadStatus, error) {
	meta, err := m.ReadMetadata(site)
	if err != nil {
		return nil, err
	}

	prev, err := m.ReadUploadStatus(site)
	if err != nil {
		prev = nil
	}
	var prevIDs, prevSums map[string]string
	prevRebuilt := false
	if prev != nil {
		prevIDs = prev.FileIDMap()
		prevSums = prev.ChecksumMap()
		prevRebuilt = prev.RebuiltFromRemote
	}

	resultSums := map[string]string{}
	for _, f := range result.Files {
		resultSums[f.URL] = f.Checksum
	}

	files := make([]domain.FileEntry, 0, len(meta.Files))
	for _, f := range meta.Files {
		entry := domain.FileEntry{
			URL:      f.URL,
			Path:     f.Path,
			Size:     f.Size,
			Checksum: f.Checksum,
		}

		_, touched := result.FileIDMap[f.URL]
		switch {
		case result.RebuiltFromRemote:
			if sum, ok := resultSums[f.URL]; ok && sum != "" {
				entry.Checksum = sum
			}
		case prevRebuilt && !touched:
			if sum, ok := prevSums[f.URL]; ok && sum != "" {
				entry.Checksum = sum
			}
		}

		if id, ok := result.FileIDMap[f.URL]; ok {
			entry.RemoteID = id
		} else if id, ok := prevIDs[f.URL]; ok {
			entry.RemoteID = id
		}

		files = append(files, entry)
	}

	status := &domain.UploadStatus{
		LastUpload:      time.Now(),
		CollectionID:    result.CollectionID,
		CollectionName:  result.CollectionName,
		SiteName:        site,
		FolderPrefix:    utils.RemoteFolderPrefix(site),
		FilesUploaded:   result.FilesUploaded,
		FilesUpdated:    result.FilesUpdated,
		FilesDeleted:    result.FilesDeleted,
		SourceTimestamp: meta.State.SourceTimestamp,
		Files:           files,
	}
	if result.RebuiltFromRemote {
		status.RebuiltFromRemote = true
		status.RebuildConfidence = result.RebuildConfidence
		status.RebuildMatchRate = result.RebuildMatchRate
	}

	if err := m.WriteUploadStatus(site, status); err != nil {
		return nil, err
	}
	return status, nil
}
