package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sitesync/sitesync/internal/domain"
	"github.com/sitesync/sitesync/internal/snapshot"
	"github.com/sitesync/sitesync/internal/utils"
)

// Reconciler repairs drift between the local upload bookkeeping and the
// remote knowledge service. It can reconstruct lost bookkeeping wholesale by
// content-hash matching against the remote inventory, and fix partial drift
// in place.
type Reconciler struct {
	client domain.KnowledgeClient
	snaps  *snapshot.Manager
	logger *utils.Logger
}

// ReconcilerOptions contains options for creating a Reconciler
type ReconcilerOptions struct {
	Client    domain.KnowledgeClient
	Snapshots *snapshot.Manager
	Logger    *utils.Logger
}

// NewReconciler creates a Reconciler
func NewReconciler(opts ReconcilerOptions) *Reconciler {
	logger := opts.Logger
	if logger == nil {
		logger = utils.NewDefaultLogger()
	}
	return &Reconciler{
		client: opts.Client,
		snaps:  opts.Snapshots,
		logger: logger.WithComponent("reconcile"),
	}
}

// siteFiles lists the collection's files belonging to this site
func (r *Reconciler) siteFiles(ctx context.Context, collectionID, site string) ([]domain.RemoteFile, error) {
	files, err := r.client.ListCollectionFiles(ctx, collectionID)
	if err != nil {
		return nil, fmt.Errorf("list remote files: %w", err)
	}

	prefix := utils.RemoteFolderPrefix(site)
	var matched []domain.RemoteFile
	for _, f := range files {
		if strings.HasPrefix(f.Name, prefix) {
			matched = append(matched, f)
		}
	}
	return matched, nil
}

// RebuildFromRemote reconstructs the upload status of a site by matching
// the current snapshot against the remote inventory. Matching runs in two
// passes: exact content hash first, then filename for files whose content
// drifted. A filename match records the remote hash so the divergent file
// is pushed on the next incremental upload.
//
// When the resulting confidence is below minConfidence the local state is
// left untouched and ErrConfidenceTooLow is returned alongside the report.
func (r *Reconciler) RebuildFromRemote(ctx context.Context, site, collectionID string, minConfidence domain.Confidence) (*domain.RebuildReport, *domain.UploadStatus, error) {
	meta, err := r.snaps.ReadMetadata(site)
	if err != nil {
		return nil, nil, err
	}

	remoteFiles, err := r.siteFiles(ctx, collectionID, site)
	if err != nil {
		return nil, nil, err
	}
	r.logger.Info().Str("site", site).Int("remote", len(remoteFiles)).
		Int("local", len(meta.Files)).Msg("Matching local files against remote inventory")

	byHash := map[string]domain.RemoteFile{}
	byName := map[string]domain.RemoteFile{}
	for _, f := range remoteFiles {
		if f.Hash != "" {
			byHash[f.Hash] = f
		}
		byName[f.Name] = f
	}

	report := &domain.RebuildReport{TotalLocal: len(meta.Files)}
	fileIDMap := map[string]string{}
	var matched []domain.FileEntry
	matchedIDs := map[string]bool{}

	for _, f := range meta.Files {
		if rf, ok := byHash[f.Checksum]; ok {
			fileIDMap[f.URL] = rf.ID
			matchedIDs[rf.ID] = true
			matched = append(matched, domain.FileEntry{URL: f.URL, Checksum: f.Checksum})
			report.HashMatched++
			continue
		}

		if rf, ok := byName[utils.RemoteFilename(site, f.Path)]; ok && !matchedIDs[rf.ID] {
			fileIDMap[f.URL] = rf.ID
			matchedIDs[rf.ID] = true
			entry := domain.FileEntry{URL: f.URL, Checksum: f.Checksum}
			if rf.Hash != "" && rf.Hash != f.Checksum {
				// remote hash wins so the drifted content gets re-pushed
				entry.Checksum = rf.Hash
			}
			matched = append(matched, entry)
			report.NameMatched++
			continue
		}

		report.UnmatchedLocal = append(report.UnmatchedLocal, f.URL)
	}

	for _, f := range remoteFiles {
		if !matchedIDs[f.ID] {
			report.UnmatchedRemote = append(report.UnmatchedRemote, f.ID)
		}
	}

	report.Matched = report.HashMatched + report.NameMatched
	if report.TotalLocal > 0 {
		report.MatchRate = float64(report.Matched) / float64(report.TotalLocal)
	}
	report.Confidence = domain.ConfidenceForRate(report.MatchRate)

	r.logger.Info().Int("matched", report.Matched).Int("hash", report.HashMatched).
		Int("name", report.NameMatched).Float64("rate", report.MatchRate).
		Str("confidence", string(report.Confidence)).Msg("Matching complete")

	if !report.Confidence.AtLeast(minConfidence) {
		r.logger.Warn().Str("confidence", string(report.Confidence)).
			Str("required", string(minConfidence)).Msg("Match confidence below threshold, state untouched")
		return report, nil, fmt.Errorf("confidence %s below %s: %w",
			report.Confidence, minConfidence, domain.ErrConfidenceTooLow)
	}

	status, err := r.snaps.SaveUploadStatus(site, &domain.UploadResult{
		CollectionID:      collectionID,
		SiteName:          site,
		FolderPrefix:      utils.RemoteFolderPrefix(site),
		FilesUploaded:     report.Matched,
		FileIDMap:         fileIDMap,
		RebuiltFromRemote: true,
		RebuildConfidence: report.Confidence,
		RebuildMatchRate:  report.MatchRate,
		Files:             matched,
	})
	if err != nil {
		return report, nil, err
	}

	r.logger.Info().Str("site", site).Msg("Upload state rebuilt from remote")
	return report, status, nil
}

// DetectResult reports the outcome of an automatic rebuild attempt
type DetectResult struct {
	Rebuilt      bool
	NeedsRebuild bool // bookkeeping is gone and could not be reconstructed
	CollectionID string
	Status       *domain.UploadStatus
	Reason       string
}

// DetectAndRebuild rebuilds missing bookkeeping before an incremental
// upload. It triggers only when the plan carries no previous id map. A
// failed detection or a low-confidence match is reported, not fatal; the
// caller degrades to a full upload.
func (r *Reconciler) DetectAndRebuild(ctx context.Context, site, collectionName string, plan *domain.UploadPlan, minConfidence domain.Confidence) (*DetectResult, error) {
	if len(plan.PreviousFileMap) > 0 {
		return &DetectResult{CollectionID: plan.CollectionID}, nil
	}

	collectionID := plan.CollectionID
	if collectionID == "" {
		id, err := r.FindCollectionByContent(ctx, collectionName, site)
		if err != nil {
			r.logger.Warn().Str("collection", collectionName).Err(err).
				Msg("No collection found, cannot rebuild state")
			return &DetectResult{NeedsRebuild: true, Reason: "no matching collection found"}, nil
		}
		collectionID = id
	}

	report, status, err := r.RebuildFromRemote(ctx, site, collectionID, minConfidence)
	if errors.Is(err, domain.ErrConfidenceTooLow) {
		return &DetectResult{
			NeedsRebuild: true,
			CollectionID: collectionID,
			Reason: fmt.Sprintf("match confidence %s below %s",
				report.Confidence, minConfidence),
		}, nil
	}
	if err != nil {
		return nil, err
	}

	return &DetectResult{Rebuilt: true, CollectionID: collectionID, Status: status}, nil
}

// FindCollectionByContent resolves a collection id by name, disambiguating
// duplicate names by which collection actually holds this site's files
func (r *Reconciler) FindCollectionByContent(ctx context.Context, name, site string) (string, error) {
	collections, err := r.client.ListCollections(ctx)
	if err != nil {
		return "", err
	}

	var matches []domain.Collection
	for _, c := range collections {
		if c.Name == name {
			matches = append(matches, c)
		}
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("collection %q: %w", name, domain.ErrCollectionNotFound)
	}
	if len(matches) == 1 {
		return matches[0].ID, nil
	}

	r.logger.Info().Int("count", len(matches)).Str("collection", name).
		Msg("Duplicate collection names, checking content")
	for _, c := range matches {
		files, err := r.siteFiles(ctx, c.ID, site)
		if err != nil {
			continue
		}
		if len(files) > 0 {
			return c.ID, nil
		}
	}

	r.logger.Warn().Str("collection", name).Str("site", site).
		Msg("No collection holds this site's files, using first name match")
	return matches[0].ID, nil
}

// Sync compares the tracked remote ids against the actual remote inventory.
// With autoFix, entries whose remote file vanished are purged from the
// upload status so the next incremental upload pushes them again. Files
// present remotely but untracked locally are reported only.
func (r *Reconciler) Sync(ctx context.Context, site, collectionID string, autoFix bool) (*domain.SyncReport, error) {
	status, err := r.snaps.ReadUploadStatus(site)
	if err != nil {
		return nil, err
	}

	remoteFiles, err := r.siteFiles(ctx, collectionID, site)
	if err != nil {
		return nil, err
	}

	remoteIDs := map[string]bool{}
	for _, f := range remoteFiles {
		remoteIDs[f.ID] = true
	}
	trackedIDs := status.FileIDMap()

	report := &domain.SyncReport{
		LocalCount:  len(trackedIDs),
		RemoteCount: len(remoteFiles),
	}

	tracked := map[string]bool{}
	for _, id := range trackedIDs {
		tracked[id] = true
		if remoteIDs[id] {
			report.InSyncCount++
		}
	}
	for _, id := range trackedIDs {
		if !remoteIDs[id] {
			report.MissingRemote = append(report.MissingRemote, id)
		}
	}
	for id := range remoteIDs {
		if !tracked[id] {
			report.ExtraRemote = append(report.ExtraRemote, id)
		}
	}

	if autoFix && len(report.MissingRemote) > 0 {
		missing := map[string]bool{}
		for _, id := range report.MissingRemote {
			missing[id] = true
		}

		kept := status.Files[:0]
		for _, f := range status.Files {
			if f.RemoteID != "" && missing[f.RemoteID] {
				report.FixedCount++
				continue
			}
			kept = append(kept, f)
		}
		status.Files = kept

		if err := r.snaps.WriteUploadStatus(site, status); err != nil {
			return nil, err
		}
		r.logger.Info().Str("site", site).Int("purged", report.FixedCount).
			Msg("Purged entries for files missing remotely")
	}

	return report, nil
}

// Health classifies the local-vs-remote state of a site
func (r *Reconciler) Health(ctx context.Context, site, collectionID string) (*domain.HealthReport, error) {
	remoteFiles, err := r.siteFiles(ctx, collectionID, site)
	if err != nil {
		return nil, err
	}

	status, err := r.snaps.ReadUploadStatus(site)
	if err != nil {
		return &domain.HealthReport{
			Status:         domain.HealthMissing,
			NeedsRebuild:   true,
			Issues:         []string{"local upload state is missing"},
			RemoteCount:    len(remoteFiles),
			Recommendation: "Run rebuild-state to reconstruct from remote",
		}, nil
	}

	remoteIDs := map[string]bool{}
	for _, f := range remoteFiles {
		remoteIDs[f.ID] = true
	}
	trackedIDs := status.FileIDMap()

	report := &domain.HealthReport{
		RemoteCount: len(remoteFiles),
		LocalCount:  len(trackedIDs),
	}
	tracked := map[string]bool{}
	for _, id := range trackedIDs {
		tracked[id] = true
		if !remoteIDs[id] {
			report.MissingRemote++
		}
	}
	for id := range remoteIDs {
		if !tracked[id] {
			report.ExtraRemote++
		}
	}

	if report.MissingRemote > 0 {
		report.Issues = append(report.Issues,
			fmt.Sprintf("%d tracked files missing from remote", report.MissingRemote))
	}
	if report.ExtraRemote > 0 {
		report.Issues = append(report.Issues,
			fmt.Sprintf("%d remote files not tracked locally", report.ExtraRemote))
	}

	switch {
	case len(report.Issues) == 0:
		report.Status = domain.HealthHealthy
	case report.LocalCount > 0 && report.MissingRemote == report.LocalCount:
		// every tracked file is gone, total state loss
		report.Status = domain.HealthCorrupted
		report.NeedsRebuild = true
		report.Recommendation = "Run rebuild-state to reconstruct from remote"
	default:
		report.Status = domain.HealthDegraded
		report.Recommendation = "Run sync --fix to resolve"
	}
	return report, nil
}
