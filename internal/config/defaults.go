package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/sitesync/sitesync/internal/domain"
)

// Default values
const (
	// Output defaults
	DefaultOutputDir = "./outputs"

	// Scrape defaults
	DefaultWorkers        = 4
	DefaultTimeout        = 30 * time.Second
	DefaultMaxDepth       = 5
	DefaultRandomDelayMin = 500 * time.Millisecond
	DefaultRandomDelayMax = 2 * time.Second

	// Cache defaults
	DefaultCacheEnabled = true
	DefaultCacheTTL     = 12 * time.Hour

	// Retention defaults
	DefaultKeepCount = 5

	// Remote defaults
	DefaultRemoteTimeout     = 60 * time.Second
	DefaultBatchSize         = 10
	DefaultBatchPause        = 2 * time.Second
	DefaultProcessingTimeout = 5 * time.Minute
	DefaultProcessingPoll    = 2 * time.Second
	DefaultMaxRetries        = 3
	DefaultReindexThreshold  = 10

	// Logging defaults
	DefaultLogLevel  = "info"
	DefaultLogFormat = "pretty"
)

// DefaultMinRebuildConfidence is the floor below which a remote-state
// rebuild is rejected
const DefaultMinRebuildConfidence = domain.ConfidenceMedium

// DefaultExcludePatterns are URL patterns never crawled
var DefaultExcludePatterns = []string{
	`.*\.pdf$`,
	`.*action=edit.*`,
	`.*action=history.*`,
	`.*oldid=.*`,
	`.*diff=.*`,
	`.*/login.*`,
	`.*/logout.*`,
}

// ConfigDir returns the config directory path
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".sitesync"
	}
	return filepath.Join(home, ".sitesync")
}

// CacheDir returns the cache directory path
func CacheDir() string {
	return filepath.Join(ConfigDir(), "cache")
}

// SitesDir returns the default per-site config directory
func SitesDir() string {
	return filepath.Join(ConfigDir(), "sites")
}

// ConfigFilePath returns the config file path
func ConfigFilePath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Output: OutputConfig{
			Directory: DefaultOutputDir,
		},
		Scrape: ScrapeConfig{
			Workers:        DefaultWorkers,
			Timeout:        DefaultTimeout,
			MaxDepth:       DefaultMaxDepth,
			RandomDelayMin: DefaultRandomDelayMin,
			RandomDelayMax: DefaultRandomDelayMax,
		},
		Cache: CacheConfig{
			Enabled:   DefaultCacheEnabled,
			TTL:       DefaultCacheTTL,
			Directory: CacheDir(),
		},
		Retention: RetentionConfig{
			KeepCount: DefaultKeepCount,
		},
		Remote: RemoteConfig{
			Timeout:              DefaultRemoteTimeout,
			BatchSize:            DefaultBatchSize,
			BatchPause:           DefaultBatchPause,
			ProcessingTimeout:    DefaultProcessingTimeout,
			ProcessingPoll:       DefaultProcessingPoll,
			MaxRetries:           DefaultMaxRetries,
			MinRebuildConfidence: string(DefaultMinRebuildConfidence),
			ReindexThreshold:     DefaultReindexThreshold,
		},
		Upload: UploadConfig{
			Incremental: true,
			AutoRebuild: true,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		SitesDir: SitesDir(),
	}
}
