package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sitesync/sitesync/internal/app"
	"github.com/sitesync/sitesync/internal/config"
	"github.com/sitesync/sitesync/internal/utils"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape [site]",
	Short: "Crawl a site into a new timestamped archive",
	Long: `Crawls the configured site, converts each page to markdown, applies
the cleaning profile and stores the result as an immutable timestamped
scrape. The current snapshot is updated incrementally and the retention
policy is applied afterwards.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, a, err := buildApp(cmd)
		if err != nil {
			return err
		}
		ctx, stop := signalContext()
		defer stop()

		all, _ := cmd.Flags().GetBool("all")
		if all {
			return scrapeAll(ctx, cfg, a)
		}
		if len(args) == 0 {
			return fmt.Errorf("a site name or --all is required")
		}

		site, err := findSite(cfg, args[0])
		if err != nil {
			return err
		}
		res, err := a.Scrape(ctx, site)
		if err != nil {
			return err
		}
		printScrapeResult(res)
		return nil
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload <site>",
	Short: "Push the current snapshot to the remote knowledge service",
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

		full, _ := cmd.Flags().GetBool("full")
		collectionID, _ := cmd.Flags().GetString("collection")

		status, err := a.Upload(ctx, site, app.UploadOptions{
			Full:         full,
			CollectionID: collectionID,
		})
		if err != nil {
			return err
		}
		if status == nil {
			fmt.Println("Nothing to upload.")
			return nil
		}
		fmt.Printf("Collection: %s (%s)\n", status.CollectionName, status.CollectionID)
		fmt.Printf("Uploaded %d, updated %d, deleted %d files\n",
			status.FilesUploaded, status.FilesUpdated, status.FilesDeleted)
		return nil
	},
}

func init() {
	scrapeCmd.Flags().Bool("all", false, "Scrape every configured site")
	uploadCmd.Flags().Bool("full", false, "Push everything, ignoring upload bookkeeping")
	uploadCmd.Flags().String("collection", "", "Target an existing collection id")
}

// scrapeAll runs every configured site with modest parallelism. Sites
// crawl independently so a slow wiki does not hold up the rest.
func scrapeAll(ctx context.Context, cfg *config.Config, a *app.App) error {
	sites, err := config.LoadSites(cfg.SitesDir)
	if err != nil {
		return err
	}
	if len(sites) == 0 {
		return fmt.Errorf("no sites configured in %s", cfg.SitesDir)
	}

	errs := utils.ParallelForEach(ctx, sites, 2, func(ctx context.Context, site *config.SiteConfig) error {
		res, err := a.Scrape(ctx, site)
		if err != nil {
			fmt.Printf("%s: FAILED (%v)\n", site.Name, err)
			return err
		}
		printScrapeResult(res)
		return nil
	})
	if failed := utils.CollectErrors(errs); len(failed) > 0 {
		return fmt.Errorf("%d of %d sites failed, first error: %w", len(failed), len(sites), failed[0])
	}
	return nil
}

func printScrapeResult(res *app.ScrapeResult) {
	fmt.Printf("%s: scraped %d pages (%d failed) into %s in %s\n",
		res.Site, res.Pages, res.Failed, res.Timestamp, res.Duration.Round(time.Millisecond))
	if res.Diff != nil {
		fmt.Printf("  snapshot: +%d added, ~%d modified, -%d removed, %d unchanged\n",
			len(res.Diff.Added), len(res.Diff.Modified), len(res.Diff.Removed), len(res.Diff.Unchanged))
	}
	if res.Retention != nil && res.Retention.Deleted > 0 {
		fmt.Printf("  retention: pruned %d old scrapes\n", res.Retention.Deleted)
	}
}
