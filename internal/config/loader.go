package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configuration from file, environment, and a .env file.
// Priority (highest to lowest): env vars > config file > defaults.
func Load(configPath string) (*Config, error) {
	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("STORYSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("storage.uri", "STORYSCOUT_STORAGE_URI", "MONGO_ATLAS_URI"); err != nil {
		return nil, fmt.Errorf("bind storage.uri: %w", err)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("storyscout")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".storyscout"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Scraper.Websites = listSetting(v, "scraper.websites", cfg.Scraper.Websites)
	cfg.Scraper.Keywords = listSetting(v, "scraper.keywords", cfg.Scraper.Keywords)

	return cfg, nil
}

// setDefaults registers default values in viper.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("scraper.websites", cfg.Scraper.Websites)
	v.SetDefault("scraper.keywords", cfg.Scraper.Keywords)
	v.SetDefault("scraper.concurrency", cfg.Scraper.Concurrency)
	v.SetDefault("scraper.parser", cfg.Scraper.Parser)
	v.SetDefault("scraper.selectors.story_row", cfg.Scraper.Selectors.StoryRow)
	v.SetDefault("scraper.selectors.title_line", cfg.Scraper.Selectors.TitleLine)
	v.SetDefault("scraper.selectors.score", cfg.Scraper.Selectors.Score)
	v.SetDefault("scraper.selectors.age", cfg.Scraper.Selectors.Age)

	v.SetDefault("fetcher.request_timeout", cfg.Fetcher.RequestTimeout)
	v.SetDefault("fetcher.user_agents", cfg.Fetcher.UserAgents)
	v.SetDefault("fetcher.follow_redirects", cfg.Fetcher.FollowRedirects)
	v.SetDefault("fetcher.max_redirects", cfg.Fetcher.MaxRedirects)
	v.SetDefault("fetcher.max_body_size", cfg.Fetcher.MaxBodySize)
	v.SetDefault("fetcher.respect_robots_txt", cfg.Fetcher.RespectRobotsTxt)

	v.SetDefault("storage.type", cfg.Storage.Type)
	v.SetDefault("storage.database", cfg.Storage.Database)
	v.SetDefault("storage.collection", cfg.Storage.Collection)
	v.SetDefault("storage.path", cfg.Storage.Path)
	v.SetDefault("storage.timezone", cfg.Storage.Timezone)
	v.SetDefault("storage.server_selection_timeout", cfg.Storage.ServerSelectionTimeout)
	v.SetDefault("storage.operation_timeout", cfg.Storage.OperationTimeout)

	v.SetDefault("schedule.interval", cfg.Schedule.Interval)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.output", cfg.Logging.Output)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.port", cfg.Metrics.Port)
	v.SetDefault("metrics.path", cfg.Metrics.Path)
}

// listSetting returns the cleaned list for key. Env overrides arrive as a
// single comma-separated string and are split; list items from a config file
// are kept whole, so a keyword may contain a comma.
func listSetting(v *viper.Viper, key string, decoded []string) []string {
	if raw, ok := v.Get(key).(string); ok {
		decoded = strings.Split(raw, ",")
	}
	return cleanList(decoded)
}

// cleanList trims entries and drops blanks.
func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, raw := range in {
		if s := strings.TrimSpace(raw); s != "" {
			out = append(out, s)
		}
	}
	return out
}
