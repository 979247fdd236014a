package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sitesync/sitesync/internal/app"
	"github.com/sitesync/sitesync/internal/cleaner"
	"github.com/sitesync/sitesync/internal/config"
)

var sitesCmd = &cobra.Command{
	Use:   "sites",
	Short: "Manage site configurations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sitesListCmd.RunE(cmd, args)
	},
}

var sitesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured sites",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		sites, err := config.LoadSites(cfg.SitesDir)
		if err != nil {
			return err
		}
		if len(sites) == 0 {
			fmt.Printf("No sites configured. Add one with 'sitesync sites add <name> <base-url>'.\n")
			return nil
		}

		fmt.Printf("%-16s %-40s %-10s %s\n", "NAME", "BASE URL", "CLEANING", "SCHEDULE")
		for _, s := range sites {
			cleaning := s.Cleaning
			if cleaning == "" {
				cleaning = "auto"
			}
			schedule := s.Schedule
			if schedule == "" {
				schedule = "-"
			}
			fmt.Printf("%-16s %-40s %-10s %s\n", s.Name, s.BaseURL, cleaning, schedule)
		}
		return nil
	},
}

var sitesAddCmd = &cobra.Command{
	Use:   "add <name> <base-url>",
	Short: "Add a site configuration",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		cleaning, _ := cmd.Flags().GetString("cleaning")
		if cleaning == "" {
			cleaning = app.DetectProfile(args[1])
			if cleaning != "none" {
				fmt.Printf("Detected %s cleaning profile from the URL.\n", cleaning)
			}
		}
		if _, err := cleaner.ForName(cleaning); err != nil {
			return err
		}
		selector, _ := cmd.Flags().GetString("selector")
		if selector == "" && cleaning != "none" {
			selector = "#mw-content-text"
		}
		schedule, _ := cmd.Flags().GetString("schedule")
		collection, _ := cmd.Flags().GetString("collection")
		maxDepth, _ := cmd.Flags().GetInt("max-depth")
		maxPages, _ := cmd.Flags().GetInt("max-pages")

		site := &config.SiteConfig{
			Name:       args[0],
			BaseURL:    args[1],
			Cleaning:   cleaning,
			Selector:   selector,
			Schedule:   schedule,
			Collection: collection,
			MaxDepth:   maxDepth,
			MaxPages:   maxPages,
		}
		if err := site.Validate(); err != nil {
			return err
		}
		if err := config.SaveSite(cfg.SitesDir, site); err != nil {
			return err
		}
		fmt.Printf("Site %s saved to %s. Run 'sitesync scrape %s' to start.\n",
			site.Name, cfg.SitesDir, site.Name)
		return nil
	},
}

func init() {
	sitesAddCmd.Flags().String("cleaning", "", "Cleaning profile: none, mediawiki or fandom (default: detect)")
	sitesAddCmd.Flags().String("selector", "", "CSS selector for the main content")
	sitesAddCmd.Flags().String("schedule", "", "Cron schedule for the daemon")
	sitesAddCmd.Flags().String("collection", "", "Remote collection name")
	sitesAddCmd.Flags().Int("max-depth", 0, "Max crawl depth (0: use global default)")
	sitesAddCmd.Flags().Int("max-pages", 0, "Max pages per scrape (0: unlimited)")

	sitesCmd.AddCommand(sitesListCmd)
	sitesCmd.AddCommand(sitesAddCmd)
}
