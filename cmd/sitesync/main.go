package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sitesync/sitesync/internal/app"
	"github.com/sitesync/sitesync/internal/config"
	"github.com/sitesync/sitesync/pkg/version"
)

var (
	cfgFile    string
	verbose    bool
	noProgress bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sitesync",
	Short: "Mirror wiki sites into versioned markdown archives",
	Long: `SiteSync crawls wiki sites into timestamped local markdown archives
and keeps a remote knowledge service synchronized with the latest
content, uploading only what changed.`,
	Version:       version.Short(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.sitesync/config.yaml)")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output directory for scrape archives")
	rootCmd.PersistentFlags().IntP("workers", "j", config.DefaultWorkers, "Number of concurrent crawl workers")
	rootCmd.PersistentFlags().String("sites-dir", "", "Directory holding per-site YAML configs")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&noProgress, "no-progress", false, "Disable progress bars")
	rootCmd.PersistentFlags().Bool("no-cache", false, "Disable the fetch cache")

	_ = viper.BindPFlag("output.directory", rootCmd.PersistentFlags().Lookup("output"))
	_ = viper.BindPFlag("scrape.workers", rootCmd.PersistentFlags().Lookup("workers"))
	_ = viper.BindPFlag("sites_dir", rootCmd.PersistentFlags().Lookup("sites-dir"))

	rootCmd.AddCommand(scrapeCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(rollbackCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(rebuildStateCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(sitesCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

// buildApp loads configuration and constructs the application
func buildApp(cmd *cobra.Command) (*config.Config, *app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if noCache, _ := cmd.Flags().GetBool("no-cache"); noCache {
		cfg.Cache.Enabled = false
	}

	a, err := buildAppFromConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, a, nil
}

func buildAppFromConfig(cfg *config.Config) (*app.App, error) {
	return app.New(app.Options{
		Config:       cfg,
		Verbose:      verbose,
		ShowProgress: !noProgress && !verbose,
	})
}

// findSite resolves a site name against the sites directory
func findSite(cfg *config.Config, name string) (*config.SiteConfig, error) {
	site, err := config.FindSite(cfg.SitesDir, name)
	if err != nil {
		return nil, fmt.Errorf("unknown site %q (looked in %s): %w", name, cfg.SitesDir, err)
	}
	return site, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Full())
	},
}
