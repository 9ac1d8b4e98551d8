package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_DefaultsApplied(t *testing.T) {
	raw := `
site:
  title: Example Blog
  base_url: https://blog.example.com
build:
  output_dir: ./out/site
`
	cfg, err := Parse([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, "Example Blog", cfg.Site.Title)
	assert.Equal(t, 10, cfg.Site.PageSize)
	assert.Equal(t, 20, cfg.Site.FeedItems)
	assert.Equal(t, "./out/site.backup", cfg.Build.BackupDir)
	assert.Equal(t, 32, cfg.Build.TemplateCacheSize)
	assert.Equal(t, 24*time.Hour, cfg.Daemon.JobRetention)
	assert.Equal(t, RetryBackoffLinear, cfg.Build.RetryBackoff)
}

func TestParse_BackupMustDifferFromOutput(t *testing.T) {
	raw := `
site:
  base_url: https://blog.example.com
build:
  output_dir: ./site
  backup_dir: ./site
`
	_, err := Parse([]byte(raw))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must differ")
}

func TestParse_CrossVolumeMustBeAcknowledged(t *testing.T) {
	raw := `
site:
  base_url: https://blog.example.com
build:
  output_dir: /srv/www/site
  backup_dir: /var/backups/site
`
	_, err := Parse([]byte(raw))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cross_volume")

	raw += "  cross_volume: true\n"
	_, err = Parse([]byte(raw))
	require.NoError(t, err)
}

func TestParse_EnvOverride(t *testing.T) {
	t.Setenv("BLOGSMITH_SITE_TITLE", "Overridden")
	raw := `
site:
  title: FromFile
  base_url: https://blog.example.com
`
	cfg, err := Parse([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "Overridden", cfg.Site.Title)
}

func TestParse_GitSyncNeedsURL(t *testing.T) {
	raw := `
site:
  base_url: https://blog.example.com
git:
  enabled: true
`
	_, err := Parse([]byte(raw))
	require.Error(t, err)
}

func TestParse_InvalidBackoffRejected(t *testing.T) {
	raw := `
site:
  base_url: https://blog.example.com
build:
  retry_backoff: quadratic
`
	_, err := Parse([]byte(raw))
	require.Error(t, err)
}

func TestParse_StarterConfigIsValid(t *testing.T) {
	cfg, err := Parse([]byte(StarterConfig))
	require.NoError(t, err)
	require.Equal(t, "My Blog", cfg.Site.Title)
	require.Equal(t, "./public", cfg.Build.OutputDir)
	require.Len(t, cfg.Build.Assets, 1)
	require.True(t, cfg.Daemon.WatchContent)
}
