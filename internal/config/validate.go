package config

import (
	"fmt"
	"net/url"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if len(cfg.Scraper.Websites) == 0 {
		return fmt.Errorf("scraper.websites must list at least one URL")
	}
	for _, site := range cfg.Scraper.Websites {
		if err := ValidateURL(site); err != nil {
			return fmt.Errorf("scraper.websites: %q: %w", site, err)
		}
	}
	if len(cfg.Scraper.Keywords) == 0 {
		return fmt.Errorf("scraper.keywords must list at least one keyword")
	}
	if cfg.Scraper.Concurrency < 1 {
		return fmt.Errorf("scraper.concurrency must be >= 1, got %d", cfg.Scraper.Concurrency)
	}
	if cfg.Scraper.Parser != "css" && cfg.Scraper.Parser != "xpath" {
		return fmt.Errorf("scraper.parser must be 'css' or 'xpath', got %q", cfg.Scraper.Parser)
	}
	sel := cfg.Scraper.Selectors
	if sel.StoryRow == "" || sel.TitleLine == "" || sel.Score == "" || sel.Age == "" {
		return fmt.Errorf("scraper.selectors: story_row, title_line, score and age are required")
	}

	if cfg.Fetcher.RequestTimeout <= 0 {
		return fmt.Errorf("fetcher.request_timeout must be > 0")
	}
	if cfg.Fetcher.MaxBodySize <= 0 {
		return fmt.Errorf("fetcher.max_body_size must be > 0")
	}
	if cfg.Fetcher.MaxRedirects < 0 {
		return fmt.Errorf("fetcher.max_redirects must be >= 0")
	}

	switch cfg.Storage.Type {
	case "mongo", "mongodb":
		if cfg.Storage.URI == "" {
			return fmt.Errorf("storage.uri is required for mongo (or set MONGO_ATLAS_URI)")
		}
		if cfg.Storage.Database == "" || cfg.Storage.Collection == "" {
			return fmt.Errorf("storage.database and storage.collection are required for mongo")
		}
	case "bolt":
		if cfg.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for bolt")
		}
	case "memory":
	default:
		return fmt.Errorf("storage.type %q is not supported (valid: mongo, bolt, memory)", cfg.Storage.Type)
	}
	if _, err := cfg.Storage.Location(); err != nil {
		return fmt.Errorf("storage.timezone: %w", err)
	}
	if cfg.Storage.ServerSelectionTimeout <= 0 || cfg.Storage.OperationTimeout <= 0 {
		return fmt.Errorf("storage timeouts must be > 0")
	}

	if cfg.Schedule.Interval <= 0 {
		return fmt.Errorf("schedule.interval must be > 0")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be 1-65535, got %d", cfg.Metrics.Port)
		}
	}

	return nil
}

// ValidateURL checks if a URL string is valid for fetching.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
