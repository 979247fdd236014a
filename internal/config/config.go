package config

import (
	"fmt"
	"time"

	"github.com/sitesync/sitesync/internal/domain"
)

// Config represents the application configuration
type Config struct {
	Output    OutputConfig    `mapstructure:"output" yaml:"output"`
	Scrape    ScrapeConfig    `mapstructure:"scrape" yaml:"scrape"`
	Cache     CacheConfig     `mapstructure:"cache" yaml:"cache"`
	Retention RetentionConfig `mapstructure:"retention" yaml:"retention"`
	Remote    RemoteConfig    `mapstructure:"remote" yaml:"remote"`
	Upload    UploadConfig    `mapstructure:"upload" yaml:"upload"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	SitesDir  string          `mapstructure:"sites_dir" yaml:"sites_dir"`
}

// OutputConfig contains local archive settings
type OutputConfig struct {
	Directory string `mapstructure:"directory" yaml:"directory"`
}

// ScrapeConfig contains crawl settings shared by all sites
type ScrapeConfig struct {
	Workers        int           `mapstructure:"workers" yaml:"workers"`
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxDepth       int           `mapstructure:"max_depth" yaml:"max_depth"`
	UserAgent      string        `mapstructure:"user_agent" yaml:"user_agent"`
	RandomDelayMin time.Duration `mapstructure:"random_delay_min" yaml:"random_delay_min"`
	RandomDelayMax time.Duration `mapstructure:"random_delay_max" yaml:"random_delay_max"`
}

// CacheConfig contains fetch cache settings
type CacheConfig struct {
	Enabled   bool          `mapstructure:"enabled" yaml:"enabled"`
	TTL       time.Duration `mapstructure:"ttl" yaml:"ttl"`
	Directory string        `mapstructure:"directory" yaml:"directory"`
}

// RetentionConfig controls pruning of old scrapes
type RetentionConfig struct {
	KeepCount      int    `mapstructure:"keep_count" yaml:"keep_count"`
	ArchiveDeleted bool   `mapstructure:"archive_deleted" yaml:"archive_deleted"`
	ArchiveDir     string `mapstructure:"archive_dir" yaml:"archive_dir"`
}

// RemoteConfig contains knowledge service connection settings
type RemoteConfig struct {
	BaseURL              string        `mapstructure:"base_url" yaml:"base_url"`
	APIKey               string        `mapstructure:"api_key" yaml:"api_key"`
	Timeout              time.Duration `mapstructure:"timeout" yaml:"timeout"`
	BatchSize            int           `mapstructure:"batch_size" yaml:"batch_size"`
	BatchPause           time.Duration `mapstructure:"batch_pause" yaml:"batch_pause"`
	ProcessingTimeout    time.Duration `mapstructure:"processing_timeout" yaml:"processing_timeout"`
	ProcessingPoll       time.Duration `mapstructure:"processing_poll" yaml:"processing_poll"`
	MaxRetries           int           `mapstructure:"max_retries" yaml:"max_retries"`
	MinRebuildConfidence string        `mapstructure:"min_rebuild_confidence" yaml:"min_rebuild_confidence"`
	ReindexThreshold     int           `mapstructure:"reindex_threshold" yaml:"reindex_threshold"`
}

// MinConfidence returns the configured rebuild confidence floor
func (r *RemoteConfig) MinConfidence() domain.Confidence {
	return domain.Confidence(r.MinRebuildConfidence)
}

// UploadConfig contains upload behavior settings
type UploadConfig struct {
	Incremental    bool `mapstructure:"incremental" yaml:"incremental"`
	KeepRemote     bool `mapstructure:"keep_remote" yaml:"keep_remote"`
	AutoRebuild    bool `mapstructure:"auto_rebuild" yaml:"auto_rebuild"`
	CleanupOrphans bool `mapstructure:"cleanup_orphans" yaml:"cleanup_orphans"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Validate validates the configuration, repairing recoverable values
func (c *Config) Validate() error {
	if c.Output.Directory == "" {
		c.Output.Directory = DefaultOutputDir
	}
	if c.Scrape.Workers < 1 {
		c.Scrape.Workers = DefaultWorkers
	}
	if c.Scrape.MaxDepth < 1 {
		c.Scrape.MaxDepth = DefaultMaxDepth
	}
	if c.Scrape.Timeout < time.Second {
		c.Scrape.Timeout = DefaultTimeout
	}
	if c.Cache.TTL < time.Minute {
		c.Cache.TTL = DefaultCacheTTL
	}
	if c.Retention.KeepCount < 0 {
		return domain.NewValidationError("retention.keep_count", "must be >= 0")
	}
	if c.Remote.BatchSize < 1 {
		c.Remote.BatchSize = DefaultBatchSize
	}
	if c.Remote.Timeout < time.Second {
		c.Remote.Timeout = DefaultRemoteTimeout
	}
	if c.Remote.ProcessingTimeout <= 0 {
		c.Remote.ProcessingTimeout = DefaultProcessingTimeout
	}
	if c.Remote.ProcessingPoll <= 0 {
		c.Remote.ProcessingPoll = DefaultProcessingPoll
	}
	if c.Remote.MaxRetries < 0 {
		c.Remote.MaxRetries = DefaultMaxRetries
	}
	if c.Remote.ReindexThreshold < 1 {
		c.Remote.ReindexThreshold = DefaultReindexThreshold
	}
	switch domain.Confidence(c.Remote.MinRebuildConfidence) {
	case domain.ConfidenceVeryLow, domain.ConfidenceLow, domain.ConfidenceMedium, domain.ConfidenceHigh:
	case "":
		c.Remote.MinRebuildConfidence = string(DefaultMinRebuildConfidence)
	default:
		return domain.NewValidationError("remote.min_rebuild_confidence",
			fmt.Sprintf("unknown confidence level %q", c.Remote.MinRebuildConfidence))
	}
	return nil
}
