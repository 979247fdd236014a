package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync <site>",
	Short: "Reconcile tracked upload state against the remote collection",
	Long: `Compares the files tracked in the upload status against what the
remote collection actually holds. With --fix, tracked files that
vanished remotely are purged from the bookkeeping so the next upload
pushes them again. Extra remote files are reported but never deleted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, a, err := buildApp(cmd)
		if err != nil {
			return err
		}
		site, err := findSite(cfg, args[0])
		if err != nil {
			return err
		}
		ctx, stop := signalContext()
		defer stop()

		fix, _ := cmd.Flags().GetBool("fix")
		report, err := a.Reconcile(ctx, site, fix)
		if err != nil {
			return err
		}

		fmt.Printf("Tracked locally: %d, on remote: %d, in sync: %d\n",
			report.LocalCount, report.RemoteCount, report.InSyncCount)
		if len(report.MissingRemote) > 0 {
			fmt.Printf("Missing remotely: %d\n", len(report.MissingRemote))
			if report.FixedCount > 0 {
				fmt.Printf("Purged %d stale entries, re-run 'sitesync upload %s'\n",
					report.FixedCount, site.Name)
			} else {
				fmt.Println("Run with --fix to purge them from the upload state.")
			}
		}
		if len(report.ExtraRemote) > 0 {
			fmt.Printf("Untracked on remote: %d (left in place)\n", len(report.ExtraRemote))
		}
		return nil
	},
}

var rebuildStateCmd = &cobra.Command{
	Use:   "rebuild-state <site>",
	Short: "Reconstruct upload bookkeeping from the remote collection",
	Long: `Matches the current snapshot's files against the remote collection by
content hash, then by filename, and rewrites the upload status from
the result. Useful after losing the local state directory.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, a, err := buildApp(cmd)
		if err != nil {
			return err
		}
		site, err := findSite(cfg, args[0])
		if err != nil {
			return err
		}
		ctx, stop := signalContext()
		defer stop()

		collectionID, _ := cmd.Flags().GetString("collection")
		report, err := a.RebuildState(ctx, site, collectionID)
		if err != nil {
			return err
		}

		fmt.Printf("Matched %d of %d files (%.0f%%), confidence %s\n",
			report.Matched, report.TotalLocal, report.MatchRate*100, report.Confidence)
		fmt.Printf("  by hash: %d, by filename: %d\n", report.HashMatched, report.NameMatched)
		if len(report.UnmatchedLocal) > 0 {
			fmt.Printf("  %d local files have no remote counterpart and will be uploaded next run\n",
				len(report.UnmatchedLocal))
		}
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:   "health <site>",
	Short: "Check the health of a site's remote collection",
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
		ctx, stop := signalContext()
		defer stop()

		report, err := a.Health(ctx, site)
		if err != nil {
			return err
		}

		fmt.Printf("Status: %s (%d local, %d remote)\n",
			report.Status, report.LocalCount, report.RemoteCount)
		for _, issue := range report.Issues {
			fmt.Printf("  - %s\n", issue)
		}
		if report.Recommendation != "" {
			fmt.Printf("Recommendation: %s\n", report.Recommendation)
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().Bool("fix", false, "Purge tracked files that no longer exist remotely")
	rebuildStateCmd.Flags().String("collection", "", "Collection id to rebuild from (default: auto-detect)")
}
