package config

import (
	"fmt"
	"path/filepath"
	"time"
)

// SiteConfig carries the site-wide values merged into every render context.
type SiteConfig struct {
	Title       string `yaml:"title" env:"BLOGSMITH_SITE_TITLE"`
	BaseURL     string `yaml:"base_url" env:"BLOGSMITH_BASE_URL"`
	Author      string `yaml:"author,omitempty" env:"BLOGSMITH_AUTHOR"`
	Description string `yaml:"description,omitempty"`
	PageSize    int    `yaml:"page_size,omitempty"`
	FeedItems   int    `yaml:"feed_items,omitempty"`
}

// RetryBackoffMode enumerates supported backoff growth strategies.
type RetryBackoffMode string

const (
	RetryBackoffFixed       RetryBackoffMode = "fixed"
	RetryBackoffLinear      RetryBackoffMode = "linear"
	RetryBackoffExponential RetryBackoffMode = "exponential"
)

// AssetMapping declares one static source tree copied into the output tree.
type AssetMapping struct {
	Source      string `yaml:"source"`
	Destination string `yaml:"destination"`
	Description string `yaml:"description,omitempty"`
}

// BuildConfig controls the build orchestrator and its collaborators.
type BuildConfig struct {
	PostsDir     string `yaml:"posts_dir" env:"BLOGSMITH_POSTS_DIR"`
	TemplatesDir string `yaml:"templates_dir" env:"BLOGSMITH_TEMPLATES_DIR"`
	OutputDir    string `yaml:"output_dir" env:"BLOGSMITH_OUTPUT_DIR"`
	BackupDir    string `yaml:"backup_dir,omitempty"`

	Assets []AssetMapping `yaml:"assets,omitempty"`

	// TemplateCacheSize bounds the compiled-template cache (entries).
	TemplateCacheSize int `yaml:"template_cache_size,omitempty"`
	// RenderCacheSize bounds the rendered-output cache; 0 disables it.
	RenderCacheSize int `yaml:"render_cache_size,omitempty"`

	// Timeout bounds a single build; zero means unbounded. There is no
	// guessed default: an unbounded build blocks the queue and operators
	// must opt into a limit that fits their content volume.
	Timeout time.Duration `yaml:"timeout,omitempty" env:"BLOGSMITH_BUILD_TIMEOUT"`

	// CrossVolume must be set when output and backup live on different
	// filesystems; rename-based backup is not atomic in that case and the
	// loader rejects the configuration unless explicitly acknowledged.
	CrossVolume bool `yaml:"cross_volume,omitempty"`

	MaxRetries        int              `yaml:"max_retries,omitempty"`
	RetryBackoff      RetryBackoffMode `yaml:"retry_backoff,omitempty"`
	RetryInitialDelay string           `yaml:"retry_initial_delay,omitempty"`
	RetryMaxDelay     string           `yaml:"retry_max_delay,omitempty"`
}

// GitSyncConfig controls the optional content-repository pull before builds.
type GitSyncConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url,omitempty"`
	Branch  string `yaml:"branch,omitempty"`
	Token   string `yaml:"token,omitempty" env:"BLOGSMITH_GIT_TOKEN"`
}

// NATSConfig controls optional build-event publishing.
type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url,omitempty" env:"BLOGSMITH_NATS_URL"`
	Subject string `yaml:"subject,omitempty"`
}

// DaemonConfig controls the long-running daemon process.
type DaemonConfig struct {
	Listen        string        `yaml:"listen,omitempty" env:"BLOGSMITH_LISTEN"`
	DataDir       string        `yaml:"data_dir,omitempty"`
	JobRetention  time.Duration `yaml:"job_retention,omitempty"`
	BuildInterval time.Duration `yaml:"build_interval,omitempty"`
	WatchContent  bool          `yaml:"watch_content,omitempty"`
	QuietWindow   time.Duration `yaml:"quiet_window,omitempty"`
	MaxDelay      time.Duration `yaml:"max_delay,omitempty"`
	NATS          NATSConfig    `yaml:"nats,omitempty"`
}

// Config is the root configuration document.
type Config struct {
	Site   SiteConfig    `yaml:"site"`
	Build  BuildConfig   `yaml:"build"`
	Git    GitSyncConfig `yaml:"git,omitempty"`
	Daemon DaemonConfig  `yaml:"daemon,omitempty"`
}

// ApplyDefaults fills zero values with working defaults.
func (c *Config) ApplyDefaults() {
	if c.Site.Title == "" {
		c.Site.Title = "Blog"
	}
	if c.Site.BaseURL == "" {
		c.Site.BaseURL = "http://localhost:8080"
	}
	if c.Site.PageSize <= 0 {
		c.Site.PageSize = 10
	}
	if c.Site.FeedItems <= 0 {
		c.Site.FeedItems = 20
	}
	if c.Build.PostsDir == "" {
		c.Build.PostsDir = "./posts"
	}
	if c.Build.TemplatesDir == "" {
		c.Build.TemplatesDir = "./templates"
	}
	if c.Build.OutputDir == "" {
		c.Build.OutputDir = "./site"
	}
	if c.Build.BackupDir == "" {
		c.Build.BackupDir = c.Build.OutputDir + ".backup"
	}
	if c.Build.TemplateCacheSize <= 0 {
		c.Build.TemplateCacheSize = 32
	}
	if c.Build.MaxRetries < 0 {
		c.Build.MaxRetries = 0
	}
	if c.Build.RetryBackoff == "" {
		c.Build.RetryBackoff = RetryBackoffLinear
	}
	if c.Daemon.Listen == "" {
		c.Daemon.Listen = ":8080"
	}
	if c.Daemon.DataDir == "" {
		c.Daemon.DataDir = "./daemon-data"
	}
	if c.Daemon.JobRetention <= 0 {
		c.Daemon.JobRetention = 24 * time.Hour
	}
	if c.Daemon.QuietWindow <= 0 {
		c.Daemon.QuietWindow = 2 * time.Second
	}
	if c.Daemon.MaxDelay <= 0 {
		c.Daemon.MaxDelay = 30 * time.Second
	}
	if c.Daemon.NATS.Subject == "" {
		c.Daemon.NATS.Subject = "blogsmith.builds"
	}
}

// Validate checks invariants the rest of the system depends on.
func (c *Config) Validate() error {
	if c.Site.BaseURL == "" {
		return fmt.Errorf("site.base_url is required")
	}
	if c.Build.OutputDir == "" {
		return fmt.Errorf("build.output_dir is required")
	}
	if c.Build.BackupDir == c.Build.OutputDir {
		return fmt.Errorf("build.backup_dir must differ from build.output_dir")
	}
	outParent := filepath.Dir(filepath.Clean(c.Build.OutputDir))
	bakParent := filepath.Dir(filepath.Clean(c.Build.BackupDir))
	if outParent != bakParent && !c.Build.CrossVolume {
		return fmt.Errorf("output and backup directories have different parents (%s vs %s); rename-based backup assumes the same volume, set build.cross_volume to acknowledge", outParent, bakParent)
	}
	if c.Build.RenderCacheSize < 0 {
		return fmt.Errorf("build.render_cache_size cannot be negative")
	}
	switch c.Build.RetryBackoff {
	case RetryBackoffFixed, RetryBackoffLinear, RetryBackoffExponential:
	default:
		return fmt.Errorf("build.retry_backoff must be fixed, linear or exponential (got %q)", c.Build.RetryBackoff)
	}
	if c.Git.Enabled && c.Git.URL == "" {
		return fmt.Errorf("git.url is required when git sync is enabled")
	}
	if c.Daemon.NATS.Enabled && c.Daemon.NATS.URL == "" {
		return fmt.Errorf("daemon.nats.url is required when NATS publishing is enabled")
	}
	return nil
}
