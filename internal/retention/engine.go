package retention

import (
	"fmt"
	"sort"

	"github.com/sitesync/sitesync/internal/domain"
	"github.com/sitesync/sitesync/internal/snapshot"
	"github.com/sitesync/sitesync/internal/store"
	"github.com/sitesync/sitesync/internal/utils"
)

// Engine enforces a keep-last-N policy over a site's timestamped scrapes.
// The scrape the current snapshot was built from is never deleted: when it
// falls outside the newest N, it is kept and the oldest other kept scrape
// is evicted in its place. The live snapshot itself is not a scrape and is
// never touched.
type Engine struct {
	store    *store.Store
	snaps    *snapshot.Manager
	archiver *Archiver
	logger   *utils.Logger
}

// EngineOptions contains options for creating an Engine
type EngineOptions struct {
	Store     *store.Store
	Snapshots *snapshot.Manager
	Archiver  *Archiver // optional, archives scrapes before deleting them
	Logger    *utils.Logger
}

// NewEngine creates a retention Engine
func NewEngine(opts EngineOptions) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = utils.NewDefaultLogger()
	}
	return &Engine{
		store:    opts.Store,
		snaps:    opts.Snapshots,
		archiver: opts.Archiver,
		logger:   logger.WithComponent("retention"),
	}
}

// Apply prunes a site's scrapes down to the keep newest ones. keep=0 is
// valid and deletes every scrape except a protected snapshot source. With
// dryRun the report describes what would happen without deleting anything.
//
// Individual delete failures are logged and excluded from the deleted
// count; the run continues with the remaining scrapes.
func (e *Engine) Apply(site string, keep int, dryRun bool) (*domain.RetentionReport, error) {
	if keep < 0 {
		return nil, domain.NewValidationError("keep_count", "must be zero or greater")
	}

	scrapes, err := e.store.ListScrapes(site)
	if err != nil {
		return nil, err
	}

	source, err := e.snaps.SourceTimestamp(site)
	if err != nil {
		source = "" // no snapshot, nothing to protect
	}

	kept, toDelete := partition(scrapes, keep, source)

	report := &domain.RetentionReport{
		Kept:           len(kept),
		KeptTimestamps: kept,
		CurrentSource:  source,
	}

	if len(toDelete) == 0 {
		report.Action = "none"
		report.Summary = fmt.Sprintf("Nothing to clean, %d backups within keep limit", len(kept))
		return report, nil
	}

	if dryRun {
		report.Action = "dry_run"
		report.Deleted = len(toDelete)
		report.DeletedTimestamps = toDelete
		report.Summary = fmt.Sprintf("Would delete %d of %d backups", len(toDelete), len(scrapes))
		return report, nil
	}

	var deleted []string
	for _, ts := range toDelete {
		if e.archiver != nil {
			path, err := e.archiver.Archive(site, ts, e.store.Layout().ScrapeDir(site, ts))
			if err != nil {
				e.logger.Warn().Str("site", site).Str("scrape", ts).Err(err).
					Msg("Archive failed, keeping scrape")
				continue
			}
			e.logger.Debug().Str("scrape", ts).Str("archive", path).Msg("Scrape archived")
		}
		if err := e.store.DeleteScrape(site, ts); err != nil {
			e.logger.Error().Str("site", site).Str("scrape", ts).Err(err).
				Msg("Failed to delete scrape")
			continue
		}
		deleted = append(deleted, ts)
	}

	report.Action = "cleaned"
	report.Deleted = len(deleted)
	report.DeletedTimestamps = deleted
	report.Summary = fmt.Sprintf("Deleted %d of %d backups, kept %d", len(deleted), len(scrapes), len(kept))
	e.logger.Info().Str("site", site).Int("deleted", len(deleted)).Int("kept", len(kept)).
		Msg("Retention applied")
	return report, nil
}

// Status reports the retention state of a site without changing anything.
// Size errors on individual scrapes are logged and counted as zero.
func (e *Engine) Status(site string, keep int) (*domain.RetentionStatus, error) {
	if keep < 0 {
		return nil, domain.NewValidationError("keep_count", "must be zero or greater")
	}

	scrapes, err := e.store.ListScrapes(site)
	if err != nil {
		return nil, err
	}

	source, err := e.snaps.SourceTimestamp(site)
	if err != nil {
		source = ""
	}

	_, toDelete := partition(scrapes, keep, source)

	var totalSize int64
	for _, ts := range scrapes {
		size, err := e.store.ScrapeSize(site, ts)
		if err != nil {
			e.logger.Warn().Str("site", site).Str("scrape", ts).Err(err).
				Msg("Could not size scrape")
			continue
		}
		totalSize += size
	}

	status := &domain.RetentionStatus{
		TotalBackups:   len(scrapes),
		KeepCount:      keep,
		WillDelete:     len(toDelete),
		TotalSizeBytes: totalSize,
		CurrentSource:  source,
	}
	if len(toDelete) == 0 {
		status.Status = "clean"
		status.Recommendation = "No cleanup needed"
	} else {
		status.Status = "needs_cleanup"
		status.Recommendation = fmt.Sprintf("Run clean to remove %d old backups", len(toDelete))
	}
	return status, nil
}

// partition splits scrapes (ascending by timestamp) into kept and
// to-delete sets. The newest keep entries are kept; if the snapshot source
// falls in the delete set it is pulled back and the oldest non-source kept
// entry is evicted instead, so the kept count stays at keep.
func partition(scrapes []string, keep int, source string) (kept, toDelete []string) {
	if keep >= len(scrapes) {
		return append([]string{}, scrapes...), nil
	}

	cut := len(scrapes) - keep
	toDelete = append([]string{}, scrapes[:cut]...)
	kept = append([]string{}, scrapes[cut:]...)

	idx := -1
	for i, ts := range toDelete {
		if source != "" && ts == source {
			idx = i
			break
		}
	}
	if idx < 0 {
		return kept, toDelete
	}

	toDelete = append(toDelete[:idx], toDelete[idx+1:]...)
	kept = append([]string{source}, kept...)

	if keep > 0 && len(kept) > keep {
		for i, ts := range kept {
			if ts != source {
				toDelete = append(toDelete, ts)
				kept = append(kept[:i], kept[i+1:]...)
				break
			}
		}
		sort.Strings(toDelete)
	}
	return kept, toDelete
}
