package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Feeds    FeedsConfig    `yaml:"feeds"`
	Mastodon MastodonConfig `yaml:"mastodon"`
	Sync     SyncConfig     `yaml:"sync"`
	State    StateConfig    `yaml:"state"`
	Events   EventsConfig   `yaml:"events"`
	LogLevel string         `yaml:"log_level"`
}

type FeedsConfig struct {
	URLs []string `yaml:"urls"`
}

type MastodonConfig struct {
	BaseURL             string        `yaml:"base_url"`
	AccessToken         string        `yaml:"access_token"`
	Visibility          string        `yaml:"visibility"`
	MaxStatusLength     int           `yaml:"max_status_length"`
	MaxMediaAttachments int           `yaml:"max_media_attachments"`
	Timeout             time.Duration `yaml:"timeout"`
}

type SyncConfig struct {
	CheckInterval    time.Duration `yaml:"check_interval"`
	MaxPostsPerCheck int           `yaml:"max_posts_per_check"`
	HistorySize      int           `yaml:"history_size"`
	RetryAttempts    int           `yaml:"retry_attempts"`
	MediaTimeout     time.Duration `yaml:"media_timeout"`
	PostDelay        time.Duration `yaml:"post_delay"`
}

// StateConfig selects the sync-state backend: a JSON document on disk
// (default) or Postgres.
type StateConfig struct {
	Backend  string         `yaml:"backend"`
	Path     string         `yaml:"path"`
	Database DatabaseConfig `yaml:"database"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// EventsConfig configures the optional RabbitMQ stream of posted statuses.
type EventsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	URL        string `yaml:"url"`
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routing_key"`
	QueueName  string `yaml:"queue_name"`
}

func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Mastodon.BaseURL == "" {
		c.Mastodon.BaseURL = "https://mastodon.social"
	}
	if c.Mastodon.Visibility == "" {
		c.Mastodon.Visibility = "public"
	}
	if c.Mastodon.MaxStatusLength == 0 {
		c.Mastodon.MaxStatusLength = 500
	}
	if c.Mastodon.MaxMediaAttachments == 0 {
		c.Mastodon.MaxMediaAttachments = 4
	}
	if c.Mastodon.Timeout == 0 {
		c.Mastodon.Timeout = 30 * time.Second
	}
	if c.Sync.CheckInterval == 0 {
		c.Sync.CheckInterval = 15 * time.Minute
	}
	if c.Sync.MaxPostsPerCheck == 0 {
		c.Sync.MaxPostsPerCheck = 5
	}
	if c.Sync.HistorySize == 0 {
		c.Sync.HistorySize = 100
	}
	if c.Sync.RetryAttempts == 0 {
		c.Sync.RetryAttempts = 3
	}
	if c.Sync.MediaTimeout == 0 {
		c.Sync.MediaTimeout = 60 * time.Second
	}
	if c.Sync.PostDelay == 0 {
		c.Sync.PostDelay = 3 * time.Second
	}
	if c.State.Backend == "" {
		c.State.Backend = "file"
	}
	if c.State.Path == "" {
		c.State.Path = "./sync_state.json"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *Config) validate() error {
	if len(c.Feeds.URLs) == 0 {
		return fmt.Errorf("config: at least one feed URL is required")
	}
	if c.Mastodon.AccessToken == "" {
		return fmt.Errorf("config: mastodon access token is required")
	}
	if c.State.Backend != "file" && c.State.Backend != "postgres" {
		return fmt.Errorf("config: unknown state backend %q", c.State.Backend)
	}
	return nil
}
