package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for storyscout.
type Config struct {
	Scraper  ScraperConfig  `mapstructure:"scraper"  yaml:"scraper"`
	Fetcher  FetcherConfig  `mapstructure:"fetcher"  yaml:"fetcher"`
	Storage  StorageConfig  `mapstructure:"storage"  yaml:"storage"`
	Schedule ScheduleConfig `mapstructure:"schedule" yaml:"schedule"`
	Logging  LoggingConfig  `mapstructure:"logging"  yaml:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"  yaml:"metrics"`
}

// ScraperConfig controls which pages are read and what is kept from them.
type ScraperConfig struct {
	Websites    []string        `mapstructure:"websites"    yaml:"websites"`
	Keywords    []string        `mapstructure:"keywords"    yaml:"keywords"`
	Concurrency int             `mapstructure:"concurrency" yaml:"concurrency"`
	Parser      string          `mapstructure:"parser"      yaml:"parser"` // css, xpath
	Selectors   SelectorsConfig `mapstructure:"selectors"   yaml:"selectors"`
}

// SelectorsConfig names the structural markers of the listing markup.
// Each marker is a tag plus an optional class.
type SelectorsConfig struct {
	StoryRow  string `mapstructure:"story_row"  yaml:"story_row"`
	TitleLine string `mapstructure:"title_line" yaml:"title_line"`
	Score     string `mapstructure:"score"      yaml:"score"`
	Age       string `mapstructure:"age"        yaml:"age"`
}

// FetcherConfig controls the page fetcher.
type FetcherConfig struct {
	RequestTimeout   time.Duration `mapstructure:"request_timeout"    yaml:"request_timeout"`
	UserAgents       []string      `mapstructure:"user_agents"        yaml:"user_agents"`
	FollowRedirects  bool          `mapstructure:"follow_redirects"   yaml:"follow_redirects"`
	MaxRedirects     int           `mapstructure:"max_redirects"      yaml:"max_redirects"`
	MaxBodySize      int64         `mapstructure:"max_body_size"      yaml:"max_body_size"`
	RespectRobotsTxt bool          `mapstructure:"respect_robots_txt" yaml:"respect_robots_txt"`
}

// StorageConfig controls the document store.
type StorageConfig struct {
	Type                   string        `mapstructure:"type"                     yaml:"type"` // mongo, bolt, memory
	URI                    string        `mapstructure:"uri"                      yaml:"uri"`
	Database               string        `mapstructure:"database"                 yaml:"database"`
	Collection             string        `mapstructure:"collection"               yaml:"collection"`
	Path                   string        `mapstructure:"path"                     yaml:"path"`
	Timezone               string        `mapstructure:"timezone"                 yaml:"timezone"`
	ServerSelectionTimeout time.Duration `mapstructure:"server_selection_timeout" yaml:"server_selection_timeout"`
	OperationTimeout       time.Duration `mapstructure:"operation_timeout"        yaml:"operation_timeout"`
}

// Location resolves the configured timezone used for day boundaries.
func (s StorageConfig) Location() (*time.Location, error) {
	if s.Timezone == "" || s.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(s.Timezone)
}

// ScheduleConfig controls watch mode.
type ScheduleConfig struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// MetricsConfig controls the Prometheus endpoint served in watch mode.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Scraper: ScraperConfig{
			Websites: []string{
				"https://news.ycombinator.com",
				"https://news.ycombinator.com/?p=2",
			},
			Keywords:    []string{"zork", "WAR", "BCI", "neuro"},
			Concurrency: 1,
			Parser:      "css",
			Selectors: SelectorsConfig{
				StoryRow:  "tr.athing",
				TitleLine: "span.titleline",
				Score:     "span.score",
				Age:       "span.age",
			},
		},
		Fetcher: FetcherConfig{
			RequestTimeout: 5 * time.Second,
			UserAgents: []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			},
			FollowRedirects: true,
			MaxRedirects:    5,
			MaxBodySize:     5 * 1024 * 1024, // 5MB
		},
		Storage: StorageConfig{
			Type:                   "mongo",
			Database:               "hacker_news_scraper_db",
			Collection:             "scrapes",
			Path:                   "./storyscout.db",
			Timezone:               "Local",
			ServerSelectionTimeout: 5 * time.Second,
			OperationTimeout:       10 * time.Second,
		},
		Schedule: ScheduleConfig{
			Interval: time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}
