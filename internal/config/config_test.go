package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigValidWithURI(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.URI = "mongodb://localhost:27017"
	if err := Validate(cfg); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestValidateAcceptsMongoAlias(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.URI = "mongodb://localhost:27017"
	cfg.Storage.Type = "mongodb"
	if err := Validate(cfg); err != nil {
		t.Fatalf("mongodb alias should validate: %v", err)
	}

	cfg.Storage.URI = ""
	if err := Validate(cfg); err == nil || !strings.Contains(err.Error(), "storage.uri") {
		t.Errorf("mongodb alias should still require a uri, got %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"no websites", func(c *Config) { c.Scraper.Websites = nil }, "scraper.websites"},
		{"bad website", func(c *Config) { c.Scraper.Websites = []string{"ftp://x"} }, "scheme"},
		{"no keywords", func(c *Config) { c.Scraper.Keywords = nil }, "scraper.keywords"},
		{"bad parser", func(c *Config) { c.Scraper.Parser = "regex" }, "scraper.parser"},
		{"no mongo uri", func(c *Config) { c.Storage.URI = "" }, "storage.uri"},
		{"bad storage", func(c *Config) { c.Storage.Type = "sqlite" }, "storage.type"},
		{"bad tz", func(c *Config) { c.Storage.Timezone = "Mars/Olympus" }, "storage.timezone"},
		{"zero timeout", func(c *Config) { c.Fetcher.RequestTimeout = 0 }, "request_timeout"},
		{"bad level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Storage.URI = "mongodb://localhost:27017"
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "storyscout.yaml")
	content := `
scraper:
  websites:
    - https://example.com/news
  keywords: [" rust ", "go"]
  concurrency: 2
fetcher:
  request_timeout: 2s
storage:
  type: bolt
  path: /tmp/runs.db
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if len(cfg.Scraper.Websites) != 1 || cfg.Scraper.Websites[0] != "https://example.com/news" {
		t.Errorf("unexpected websites %v", cfg.Scraper.Websites)
	}
	if len(cfg.Scraper.Keywords) != 2 || cfg.Scraper.Keywords[0] != "rust" {
		t.Errorf("expected trimmed keywords, got %v", cfg.Scraper.Keywords)
	}
	if cfg.Fetcher.RequestTimeout != 2*time.Second {
		t.Errorf("expected 2s timeout, got %s", cfg.Fetcher.RequestTimeout)
	}
	if cfg.Storage.Type != "bolt" || cfg.Storage.Path != "/tmp/runs.db" {
		t.Errorf("unexpected storage config %+v", cfg.Storage)
	}
	// untouched sections keep their defaults
	if cfg.Storage.Collection != "scrapes" {
		t.Errorf("expected default collection, got %q", cfg.Storage.Collection)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("loaded config should validate: %v", err)
	}
}

func TestLoadMongoURIFromEnv(t *testing.T) {
	t.Setenv("MONGO_ATLAS_URI", "mongodb://env-host:27017")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("explicit missing config file should fail")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "c.yaml")
	if err := os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.URI != "mongodb://env-host:27017" {
		t.Errorf("expected uri from MONGO_ATLAS_URI, got %q", cfg.Storage.URI)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected debug level, got %q", cfg.Logging.Level)
	}
}

func TestLoadKeepsCommasInFileKeywords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	content := "scraper:\n  keywords: [\"war, peace\", \" zork \"]\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := []string{"war, peace", "zork"}
	if strings.Join(cfg.Scraper.Keywords, "|") != strings.Join(want, "|") {
		t.Errorf("keywords = %q, want %q", cfg.Scraper.Keywords, want)
	}
}

func TestLoadSplitsEnvKeywords(t *testing.T) {
	t.Setenv("STORYSCOUT_SCRAPER_KEYWORDS", "zork, WAR,,BCI ")

	path := filepath.Join(t.TempDir(), "c.yaml")
	if err := os.WriteFile(path, []byte("logging:\n  level: info\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := []string{"zork", "WAR", "BCI"}
	if strings.Join(cfg.Scraper.Keywords, "|") != strings.Join(want, "|") {
		t.Errorf("keywords = %q, want %q", cfg.Scraper.Keywords, want)
	}
}
