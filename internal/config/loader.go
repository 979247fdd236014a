package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Load loads configuration from file, environment, and defaults.
// Uses the global viper instance to pick up CLI flag bindings.
func Load() (*Config, error) {
	v := viper.GetViper()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(ConfigDir())
	v.AddConfigPath(".")

	// Missing config file is fine, defaults apply
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	v.SetEnvPrefix("SITESYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default values in viper
func setDefaults(v *viper.Viper) {
	v.SetDefault("output.directory", DefaultOutputDir)

	v.SetDefault("scrape.workers", DefaultWorkers)
	v.SetDefault("scrape.timeout", DefaultTimeout)
	v.SetDefault("scrape.max_depth", DefaultMaxDepth)
	v.SetDefault("scrape.user_agent", "")
	v.SetDefault("scrape.random_delay_min", DefaultRandomDelayMin)
	v.SetDefault("scrape.random_delay_max", DefaultRandomDelayMax)

	v.SetDefault("cache.enabled", DefaultCacheEnabled)
	v.SetDefault("cache.ttl", DefaultCacheTTL)
	v.SetDefault("cache.directory", CacheDir())

	v.SetDefault("retention.keep_count", DefaultKeepCount)
	v.SetDefault("retention.archive_deleted", false)
	v.SetDefault("retention.archive_dir", "")

	v.SetDefault("remote.base_url", "")
	v.SetDefault("remote.api_key", "")
	v.SetDefault("remote.timeout", DefaultRemoteTimeout)
	v.SetDefault("remote.batch_size", DefaultBatchSize)
	v.SetDefault("remote.batch_pause", DefaultBatchPause)
	v.SetDefault("remote.processing_timeout", DefaultProcessingTimeout)
	v.SetDefault("remote.processing_poll", DefaultProcessingPoll)
	v.SetDefault("remote.max_retries", DefaultMaxRetries)
	v.SetDefault("remote.min_rebuild_confidence", string(DefaultMinRebuildConfidence))
	v.SetDefault("remote.reindex_threshold", DefaultReindexThreshold)

	v.SetDefault("upload.incremental", true)
	v.SetDefault("upload.keep_remote", false)
	v.SetDefault("upload.auto_rebuild", true)
	v.SetDefault("upload.cleanup_orphans", false)

	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.format", DefaultLogFormat)

	v.SetDefault("sites_dir", SitesDir())
}

// EnsureConfigDir creates the config directory if it doesn't exist
func EnsureConfigDir() error {
	return os.MkdirAll(ConfigDir(), 0755)
}

// EnsureCacheDir creates the cache directory if it doesn't exist
func EnsureCacheDir() error {
	return os.MkdirAll(CacheDir(), 0755)
}
