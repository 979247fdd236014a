package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sitesync/sitesync/internal/app"
	"github.com/sitesync/sitesync/internal/domain"
)

var listCmd = &cobra.Command{
	Use:   "list <site>",
	Short: "List archived scrapes for a site",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, a, err := buildApp(cmd)
		if err != nil {
			return err
		}
		site, err := findSite(cfg, args[0])
		if err != nil {
			return err
		}

		scrapes, err := a.History().List(site.Name)
		if err != nil {
			return err
		}
		if len(scrapes) == 0 {
			fmt.Printf("No scrapes found for %s.\n", site.Name)
			return nil
		}

		source, _ := a.Snapshots().SourceTimestamp(site.Name)
		fmt.Printf("%-22s %8s %8s %10s\n", "TIMESTAMP", "PAGES", "FAILED", "SIZE")
		for i := len(scrapes) - 1; i >= 0; i-- {
			s := scrapes[i]
			marker := ""
			if s.Timestamp == source {
				marker = "  (snapshot source)"
			}
			if s.Corrupt {
				marker = "  (corrupt manifest)"
			}
			fmt.Printf("%-22s %8d %8d %10s%s\n",
				s.Timestamp, s.Successful, s.Failed, formatSize(s.TotalSize), marker)
		}
		return nil
	},
}

var diffCmd = &cobra.Command{
	Use:   "diff <site> [old-timestamp new-timestamp]",
	Short: "Show what changed between two scrapes",
	Long: `With no timestamps, compares the two most recent scrapes. With two
timestamps, compares those exact scrapes.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 && len(args) != 3 {
			return fmt.Errorf("expected <site> or <site> <old> <new>")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, a, err := buildApp(cmd)
		if err != nil {
			return err
		}
		site, err := findSite(cfg, args[0])
		if err != nil {
			return err
		}

		var diff *domain.Diff
		if len(args) == 3 {
			diff, err = a.History().Diff(site.Name, args[1], args[2])
		} else {
			diff, err = latestDiff(a, site.Name)
		}
		if err != nil {
			return err
		}

		fmt.Printf("%s -> %s\n", diff.OldTimestamp, diff.NewTimestamp)
		printURLs("added", diff.Added)
		printURLs("modified", diff.Modified)
		printURLs("removed", diff.Removed)
		fmt.Printf("%d unchanged\n", len(diff.Unchanged))
		return nil
	},
}

// latestDiff compares the two newest scrapes. A single scrape diffs
// against nothing, reporting every page as added.
func latestDiff(a *app.App, site string) (*domain.Diff, error) {
	diff, err := a.History().ChangedSince(site, "")
	if err != nil {
		return nil, err
	}
	if diff.NewTimestamp == "" {
		return nil, fmt.Errorf("no scrapes found for %s", site)
	}
	return diff, nil
}

func printURLs(label string, urls []string) {
	fmt.Printf("%d %s\n", len(urls), label)
	for _, u := range urls {
		fmt.Printf("  %s\n", u)
	}
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback <site> <timestamp>",
	Short: "Rebuild the current snapshot from an older scrape",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, a, err := buildApp(cmd)
		if err != nil {
			return err
		}
		site, err := findSite(cfg, args[0])
		if err != nil {
			return err
		}

		if err := a.Snapshots().Rebuild(site.Name, args[1]); err != nil {
			if errors.Is(err, domain.ErrScrapeNotFound) {
				return fmt.Errorf("scrape %s not found for %s, run 'sitesync list %s'", args[1], site.Name, site.Name)
			}
			return err
		}
		fmt.Printf("Snapshot for %s rebuilt from %s. The next upload will push the differences.\n",
			site.Name, args[1])
		return nil
	},
}

var cleanCmd = &cobra.Command{
	Use:   "clean <site>",
	Short: "Delete old scrapes beyond the retention count",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, a, err := buildApp(cmd)
		if err != nil {
			return err
		}
		site, err := findSite(cfg, args[0])
		if err != nil {
			return err
		}

		keep, _ := cmd.Flags().GetInt("keep")
		if keep < 0 {
			keep = cfg.Retention.KeepCount
			if site.KeepCount > 0 {
				keep = site.KeepCount
			}
		}
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		report, err := a.Retention().Apply(site.Name, keep, dryRun)
		if err != nil {
			return err
		}
		fmt.Println(report.Summary)
		for _, ts := range report.DeletedTimestamps {
			fmt.Printf("  %s\n", ts)
		}
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <site>",
	Short: "Show local and remote state for a site",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, a, err := buildApp(cmd)
		if err != nil {
			return err
		}
		site, err := findSite(cfg, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Site: %s (%s)\n", site.Name, site.BaseURL)

		meta, err := a.Snapshots().ReadMetadata(site.Name)
		switch {
		case errors.Is(err, domain.ErrSnapshotMissing):
			fmt.Println("Snapshot: none, run 'sitesync scrape' first")
		case err != nil:
			fmt.Printf("Snapshot: unreadable (%v)\n", err)
		default:
			fmt.Printf("Snapshot: %d files (%s) from scrape %s\n",
				meta.State.TotalFiles, formatSize(meta.State.TotalSize), meta.State.SourceTimestamp)
			if issues := a.Snapshots().VerifyIntegrity(site.Name); len(issues) > 0 {
				fmt.Printf("Integrity: %d issues, 'sitesync rollback %s %s' rebuilds the snapshot\n",
					len(issues), site.Name, meta.State.SourceTimestamp)
				for _, issue := range issues {
					fmt.Printf("  - %s\n", issue)
				}
			}
		}

		keep := cfg.Retention.KeepCount
		if site.KeepCount > 0 {
			keep = site.KeepCount
		}
		if ret, err := a.Retention().Status(site.Name, keep); err == nil {
			fmt.Printf("Archives: %d scrapes (%s), keep %d, %s\n",
				ret.TotalBackups, formatSize(ret.TotalSizeBytes), ret.KeepCount, ret.Status)
		}

		status, err := a.Snapshots().ReadUploadStatus(site.Name)
		switch {
		case errors.Is(err, domain.ErrUploadStateMissing):
			fmt.Println("Remote: never uploaded")
		case err != nil:
			fmt.Printf("Remote: status unreadable (%v)\n", err)
		default:
			fmt.Printf("Remote: collection %s, %d files tracked, last upload %s\n",
				status.CollectionID, len(status.Files), status.LastUpload.Format("2006-01-02 15:04:05"))
			if status.RebuiltFromRemote {
				fmt.Printf("  state rebuilt from remote (confidence %s, match rate %.0f%%)\n",
					status.RebuildConfidence, status.RebuildMatchRate*100)
			}
		}
		return nil
	},
}

func init() {
	cleanCmd.Flags().Int("keep", -1, "Number of scrapes to keep (default from config)")
	cleanCmd.Flags().Bool("dry-run", false, "Report what would be deleted without deleting")
}
