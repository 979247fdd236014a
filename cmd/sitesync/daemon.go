package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sitesync/sitesync/internal/config"
	"github.com/sitesync/sitesync/internal/scheduler"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run scheduled scrape and upload jobs",
	Long: `Runs in the foreground executing each site's cron schedule. Every
tick scrapes the site and, when a remote service is configured,
uploads the changes. Sites without a schedule are skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, a, err := buildApp(cmd)
		if err != nil {
			return err
		}
		sites, err := config.LoadSites(cfg.SitesDir)
		if err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()

		sched := scheduler.New(scheduler.Options{
			Run:    a.Refresh,
			Logger: a.Logger(),
		})
		registered := sched.RegisterAll(ctx, sites)
		if registered == 0 {
			return fmt.Errorf("no sites with a schedule in %s", cfg.SitesDir)
		}

		fmt.Printf("Scheduling %d of %d sites. Press Ctrl-C to stop.\n", registered, len(sites))
		sched.Run(ctx)
		return nil
	},
}
