package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file, layers environment overrides on
// top, applies defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse builds a Config from raw YAML bytes. Environment variables override
// file values, matching how the daemon is deployed in containers.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("apply environment overrides: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// Default returns a configuration with all defaults applied, used by `init`
// and by tests that do not care about file loading.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// StarterConfig is the annotated configuration written by `blogsmith init`.
const StarterConfig = `site:
  title: "My Blog"
  base_url: "https://blog.example.com"
  author: ""
  description: ""
  page_size: 10
  feed_items: 20

build:
  posts_dir: ./posts
  templates_dir: ./templates
  output_dir: ./public
  # backup_dir defaults to output_dir + ".backup"
  assets:
    - source: ./static
      destination: static
  # retry transient failures (asset copying) before giving up
  retry_backoff: linear
  retry_initial_delay: 1s
  retry_max_delay: 30s
  max_retries: 2

# Pull content from a git repository before each build.
git:
  enabled: false
  url: ""
  branch: main

daemon:
  listen: ":8080"
  data_dir: ./data
  watch_content: true
  quiet_window: 2s
  max_delay: 30s
  # build_interval: 1h
  nats:
    enabled: false
    url: nats://localhost:4222
    subject: blogsmith.builds
`
