package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sitesync/sitesync/internal/config"
	"github.com/sitesync/sitesync/internal/domain"
	"github.com/sitesync/sitesync/internal/snapshot"
	"github.com/sitesync/sitesync/internal/utils"
)

// Uploader drives an upload plan against the knowledge service: deletions
// first, then new uploads in batches, then content updates for modified
// files, then collection membership. Content comes from the site's current
// snapshot.
type Uploader struct {
	client           domain.KnowledgeClient
	snaps            *snapshot.Manager
	logger           *utils.Logger
	batchSize        int
	batchPause       time.Duration
	reindexThreshold int
	showProgress     bool
}

// UploaderOptions contains options for creating an Uploader
type UploaderOptions struct {
	Client       domain.KnowledgeClient
	Snapshots    *snapshot.Manager
	Config       config.RemoteConfig
	Logger       *utils.Logger
	ShowProgress bool
}

// NewUploader creates an Uploader
func NewUploader(opts UploaderOptions) *Uploader {
	logger := opts.Logger
	if logger == nil {
		logger = utils.NewDefaultLogger()
	}
	batchSize := opts.Config.BatchSize
	if batchSize <= 0 {
		batchSize = config.DefaultBatchSize
	}
	reindexThreshold := opts.Config.ReindexThreshold
	if reindexThreshold <= 0 {
		reindexThreshold = config.DefaultReindexThreshold
	}

	return &Uploader{
		client:           opts.Client,
		snaps:            opts.Snapshots,
		logger:           logger.WithComponent("uploader"),
		batchSize:        batchSize,
		batchPause:       opts.Config.BatchPause,
		reindexThreshold: reindexThreshold,
		showProgress:     opts.ShowProgress,
	}
}

// RunOptions controls one upload run
type RunOptions struct {
	CollectionID     string // use an existing collection instead of creating one
	CollectionName   string
	Description      string
	KeepRemote       bool // detach deleted files from the collection but keep them in storage
	CleanupUntracked bool // delete untracked site-prefixed files after the run
}

// Run executes an upload plan. The returned result's FileIDMap covers only
// the files this run pushed; unchanged files keep their ids through the
// saved upload status.
func (u *Uploader) Run(ctx context.Context, site string, plan *domain.UploadPlan, opts RunOptions) (*domain.UploadResult, error) {
	collection, err := u.resolveCollection(ctx, opts)
	if err != nil {
		return nil, err
	}

	u.logger.Info().Str("site", site).Str("collection", collection.Name).
		Int("upload", len(plan.Upload)).Int("delete", len(plan.Delete)).
		Msg("Starting upload")

	result := &domain.UploadResult{
		CollectionID:   collection.ID,
		CollectionName: collection.Name,
		SiteName:       site,
		FolderPrefix:   utils.RemoteFolderPrefix(site),
		FileIDMap:      map[string]string{},
	}

	// Phase 1: deletions
	for _, url := range plan.Delete {
		id := plan.PreviousFileMap[url]
		if id == "" {
			continue
		}
		if err := u.client.RemoveFileFromCollection(ctx, collection.ID, id); err != nil {
			u.logger.Warn().Str("url", url).Err(err).Msg("Failed to remove file from collection")
			continue
		}
		if opts.KeepRemote {
			continue
		}
		if err := u.client.DeleteFile(ctx, id); err != nil {
			u.logger.Warn().Str("url", url).Err(err).Msg("Failed to delete file")
			continue
		}
		result.FilesDeleted++
	}

	// Phase 2: split the push set into new uploads and in-place updates
	var newFiles, modified []domain.FileEntry
	for _, f := range plan.Upload {
		if _, known := plan.PreviousFileMap[f.URL]; known {
			modified = append(modified, f)
		} else {
			newFiles = append(newFiles, f)
		}
	}

	// files deleted out-of-band cannot be updated in place
	var verified []domain.FileEntry
	for _, f := range modified {
		exists, err := u.client.FileExists(ctx, plan.PreviousFileMap[f.URL])
		if err != nil {
			u.logger.Warn().Str("url", f.URL).Err(err).Msg("Existence check failed, assuming present")
		}
		if exists {
			verified = append(verified, f)
			continue
		}
		u.logger.Warn().Str("url", f.URL).Msg("File deleted externally, re-uploading as new")
		newFiles = append(newFiles, f)
		result.FilesReuploaded++
	}
	modified = verified

	newIDs, err := u.uploadNew(ctx, site, newFiles, result)
	if err != nil {
		return nil, err
	}
	if len(newIDs) > 0 {
		if err := u.client.WaitForProcessing(ctx, newIDs); err != nil {
			return nil, err
		}
	}

	if err := u.updateModified(ctx, site, plan, modified, result); err != nil {
		return nil, err
	}

	// Phase 3: collection membership for the new uploads
	if len(newIDs) > 0 {
		batch, err := u.client.AddFilesToCollection(ctx, collection.ID, newIDs)
		if err != nil {
			return nil, fmt.Errorf("add files to collection: %w", err)
		}
		if batch.Failed > 0 {
			u.logger.Warn().Int("failed", batch.Failed).Msg("Some files were not added to the collection")
		}
	}

	// Phase 4: optional cleanup of site files nobody tracks anymore
	untracked := 0
	if opts.CleanupUntracked && !opts.KeepRemote {
		untracked = u.cleanupUntracked(ctx, site, collection.ID, plan, result)
	}

	totalChanges := result.FilesUploaded + result.FilesUpdated + result.FilesDeleted + untracked
	if totalChanges > u.reindexThreshold {
		u.logger.Info().Int("changes", totalChanges).Msg("Triggering reindex")
		if err := u.client.Reindex(ctx, collection.ID); err != nil {
			u.logger.Warn().Err(err).Msg("Reindex failed")
		}
	}

	result.Summary = fmt.Sprintf("Uploaded: %d, Updated: %d, Deleted: %d",
		result.FilesUploaded, result.FilesUpdated, result.FilesDeleted)
	u.logger.Info().Str("site", site).Str("summary", result.Summary).Msg("Upload finished")
	return result, nil
}

func (u *Uploader) resolveCollection(ctx context.Context, opts RunOptions) (*domain.Collection, error) {
	if opts.CollectionID != "" {
		return &domain.Collection{ID: opts.CollectionID, Name: opts.CollectionName}, nil
	}
	if opts.CollectionName == "" {
		return nil, domain.NewValidationError("collection", "a collection id or name is required")
	}
	collection, err := u.client.CreateCollection(ctx, opts.CollectionName, opts.Description)
	if err != nil {
		return nil, fmt.Errorf("resolve collection %q: %w", opts.CollectionName, err)
	}
	return collection, nil
}

// uploadNew pushes new files in batches with a small pause between batches.
// Individual failures are logged and skipped; the run continues.
func (u *Uploader) uploadNew(ctx context.Context, site string, files []domain.FileEntry, result *domain.UploadResult) ([]string, error) {
	if len(files) == 0 {
		return nil, nil
	}

	var bar interface{ Add(int) error }
	if u.showProgress {
		bar = utils.NewProgressBar(len(files), utils.DescUploading)
	}

	var mu sync.Mutex
	var newIDs []string

	for start := 0; start < len(files); start += u.batchSize {
		end := start + u.batchSize
		if end > len(files) {
			end = len(files)
		}
		batch := files[start:end]

		errs := utils.ParallelForEach(ctx, batch, len(batch), func(ctx context.Context, f domain.FileEntry) error {
			content, err := u.snaps.ReadContent(site, f.Path)
			if err != nil {
				return fmt.Errorf("read %s: %w", f.Path, err)
			}
			id, err := u.client.UploadFile(ctx, utils.RemoteFilename(site, f.Path), content)
			if err != nil {
				return err
			}

			mu.Lock()
			newIDs = append(newIDs, id)
			result.FileIDMap[f.URL] = id
			result.FilesUploaded++
			mu.Unlock()
			return nil
		})
		for i, err := range errs {
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return nil, err
				}
				u.logger.Error().Str("url", batch[i].URL).Err(err).Msg("Upload failed")
			}
		}

		if bar != nil {
			bar.Add(len(batch))
		}
		if end < len(files) && u.batchPause > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(u.batchPause):
			}
		}
	}

	u.logger.Info().Int("uploaded", result.FilesUploaded).Int("total", len(files)).
		Msg("New files uploaded")
	return newIDs, nil
}

func (u *Uploader) updateModified(ctx context.Context, site string, plan *domain.UploadPlan, files []domain.FileEntry, result *domain.UploadResult) error {
	for _, f := range files {
		content, err := u.snaps.ReadContent(site, f.Path)
		if err != nil {
			u.logger.Warn().Str("url", f.URL).Err(err).Msg("Cannot read snapshot file, skipping update")
			continue
		}

		id := plan.PreviousFileMap[f.URL]
		err = u.client.UpdateFileContent(ctx, id, content)
		if errors.Is(err, domain.ErrNotFound) {
			// deleted between the existence check and the update
			u.logger.Warn().Str("url", f.URL).Msg("File vanished during update, re-uploading")
			newID, err := u.client.UploadFile(ctx, utils.RemoteFilename(site, f.Path), content)
			if err != nil {
				u.logger.Error().Str("url", f.URL).Err(err).Msg("Re-upload failed")
				continue
			}
			result.FileIDMap[f.URL] = newID
			result.FilesUploaded++
			result.FilesReuploaded++
			continue
		}
		if err != nil {
			u.logger.Error().Str("url", f.URL).Err(err).Msg("Update failed")
			continue
		}
		result.FileIDMap[f.URL] = id
		result.FilesUpdated++
	}
	return nil
}

// cleanupUntracked deletes site-prefixed remote files no local state claims
func (u *Uploader) cleanupUntracked(ctx context.Context, site, collectionID string, plan *domain.UploadPlan, result *domain.UploadResult) int {
	files, err := u.client.ListCollectionFiles(ctx, collectionID)
	if err != nil {
		u.logger.Warn().Err(err).Msg("Cannot list collection files, skipping cleanup")
		return 0
	}

	tracked := map[string]bool{}
	for _, id := range result.FileIDMap {
		tracked[id] = true
	}
	for url, id := range plan.PreviousFileMap {
		if _, touched := result.FileIDMap[url]; touched {
			continue
		}
		if deleted := contains(plan.Delete, url); deleted {
			continue
		}
		tracked[id] = true
	}

	prefix := utils.RemoteFolderPrefix(site)
	removed := 0
	for _, f := range files {
		if !strings.HasPrefix(f.Name, prefix) || tracked[f.ID] {
			continue
		}
		if err := u.client.RemoveFileFromCollection(ctx, collectionID, f.ID); err != nil {
			u.logger.Warn().Str("id", f.ID).Err(err).Msg("Failed to detach untracked file")
			continue
		}
		if err := u.client.DeleteFile(ctx, f.ID); err != nil {
			u.logger.Warn().Str("id", f.ID).Err(err).Msg("Failed to delete untracked file")
			continue
		}
		u.logger.Debug().Str("file", f.Name).Msg("Deleted untracked file")
		removed++
	}
	if removed > 0 {
		u.logger.Info().Int("count", removed).Msg("Cleaned up untracked files")
	}
	return removed
}

func contains(items []string, want string) bool {
	for _, item := range items {
		if item == want {
			return true
		}
	}
	return false
}
