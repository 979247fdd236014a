package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sitesync/sitesync/internal/domain"
)

// SiteConfig describes one site to scrape and synchronize. Sites live as
// individual YAML files under the sites directory; the filename (minus
// extension) must match the Name field.
type SiteConfig struct {
	Name        string   `yaml:"name"`
	DisplayName string   `yaml:"display_name"`
	BaseURL     string   `yaml:"base_url"`
	StartURLs   []string `yaml:"start_urls,omitempty"`
	MaxDepth    int      `yaml:"max_depth,omitempty"`
	MaxPages    int      `yaml:"max_pages,omitempty"`
	Exclude     []string `yaml:"exclude,omitempty"`

	// Selector is an optional CSS selector for the article body, for
	// example #mw-content-text on MediaWiki sites. ExcludeSelector drops
	// matching elements from the selected content before conversion.
	Selector        string `yaml:"selector,omitempty"`
	ExcludeSelector string `yaml:"exclude_selector,omitempty"`

	// Cleaning selects the markdown cleaning profile: none, mediawiki, fandom
	Cleaning string `yaml:"cleaning,omitempty"`

	// Collection is the remote knowledge collection name; defaults to
	// DisplayName when empty
	Collection string `yaml:"collection,omitempty"`

	// Schedule is an optional cron expression for the daemon
	Schedule string `yaml:"schedule,omitempty"`

	// KeepCount overrides the global retention keep count when > 0
	KeepCount int `yaml:"keep_count,omitempty"`
}

// Info returns the site identity for manifests and snapshots
func (s *SiteConfig) Info() domain.SiteInfo {
	return domain.SiteInfo{
		Name:        s.Name,
		DisplayName: s.DisplayName,
		BaseURL:     s.BaseURL,
	}
}

// CollectionName returns the remote collection name for this site
func (s *SiteConfig) CollectionName() string {
	if s.Collection != "" {
		return s.Collection
	}
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return s.Name
}

// Validate checks the site config for required fields
func (s *SiteConfig) Validate() error {
	if s.Name == "" {
		return domain.NewValidationError("name", "site name is required")
	}
	if strings.ContainsAny(s.Name, "/\\ ") {
		return domain.NewValidationError("name", "site name must not contain spaces or path separators")
	}
	if s.BaseURL == "" {
		return domain.NewValidationError("base_url", "base URL is required")
	}
	if s.MaxDepth < 0 {
		return domain.NewValidationError("max_depth", "must be >= 0")
	}
	if s.MaxPages < 0 {
		return domain.NewValidationError("max_pages", "must be >= 0")
	}
	return nil
}

// LoadSite reads and validates a single site config file
func LoadSite(path string) (*SiteConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var site SiteConfig
	if err := yaml.Unmarshal(data, &site); err != nil {
		return nil, fmt.Errorf("parse site config %s: %w", path, err)
	}

	if site.Name == "" {
		site.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if site.DisplayName == "" {
		site.DisplayName = site.Name
	}

	if err := site.Validate(); err != nil {
		return nil, fmt.Errorf("site config %s: %w", path, err)
	}

	return &site, nil
}

// LoadSites reads all site configs from dir, sorted by name
func LoadSites(dir string) ([]*SiteConfig, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var sites []*SiteConfig
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		site, err := LoadSite(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		sites = append(sites, site)
	}

	sort.Slice(sites, func(i, j int) bool { return sites[i].Name < sites[j].Name })
	return sites, nil
}

// FindSite loads the named site from dir
func FindSite(dir, name string) (*SiteConfig, error) {
	for _, ext := range []string{".yaml", ".yml"} {
		path := filepath.Join(dir, name+ext)
		if _, err := os.Stat(path); err == nil {
			return LoadSite(path)
		}
	}
	return nil, fmt.Errorf("site %q: %w", name, domain.ErrNotFound)
}

// SaveSite writes a site config to dir as <name>.yaml
func SaveSite(dir string, site *SiteConfig) error {
	if err := site.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(site)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, site.Name+".yaml"), data, 0644)
}
