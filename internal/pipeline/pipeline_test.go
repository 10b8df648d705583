package pipeline

import (
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/IshaanNene/storyscout/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func entry(title, url string) types.Entry {
	return types.Entry{
		MatchedKeywords: []string{"zork"},
		Title:           title,
		URL:             url,
	}
}

func TestPipelineBasic(t *testing.T) {
	p := New(testLogger)
	p.Use(&TrimMiddleware{})

	e := entry("  Zork   is back  ", " https://example.com/zork ")
	result, err := p.Process(&e)
	if err != nil {
		t.Fatalf("pipeline error: %v", err)
	}
	if result.Title != "Zork   is back" {
		t.Errorf("expected ends trimmed and inner spacing kept, got %q", result.Title)
	}
	if result.URL != "https://example.com/zork" {
		t.Errorf("expected trimmed url, got %q", result.URL)
	}
}

func TestRequiredFieldsMiddleware(t *testing.T) {
	m := &RequiredFieldsMiddleware{}

	ok := entry("Zork is back", "https://example.com")
	if result, _ := m.Process(&ok); result == nil {
		t.Error("complete entry should pass")
	}

	noTitle := entry("", "https://example.com")
	if result, _ := m.Process(&noTitle); result != nil {
		t.Error("entry without title should be dropped")
	}

	noKeywords := entry("Zork", "https://example.com")
	noKeywords.MatchedKeywords = nil
	if result, _ := m.Process(&noKeywords); result != nil {
		t.Error("entry without keywords should be dropped")
	}
}

func TestDedupMiddleware(t *testing.T) {
	m := NewDedupMiddleware()

	first := entry("Zork is back", "https://a.example")
	second := entry("Zork is back", "https://b.example")
	other := entry("Zork again", "https://c.example")

	if r, _ := m.Process(&first); r == nil {
		t.Fatal("first occurrence should pass")
	}
	if r, _ := m.Process(&second); r != nil {
		t.Error("repeated title should be dropped")
	}
	if r, _ := m.Process(&other); r == nil {
		t.Error("different title should pass")
	}

	m.Reset()
	if r, _ := m.Process(&second); r == nil {
		t.Error("title should pass again after reset")
	}
}

func TestCanonicalizeURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"HTTPS://Example.COM:443/a#frag", "https://example.com/a", false},
		{"http://example.com:80/item?id=2&b=1", "http://example.com/item?id=2&b=1", false},
		{"https://example.com:8443/x", "https://example.com:8443/x", false},
		{"item?id=1", "", true},
		{"ftp://example.com/file", "", true},
	}
	for _, tt := range tests {
		got, err := CanonicalizeURL(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("CanonicalizeURL(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("CanonicalizeURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestProcessAllDefaultChain(t *testing.T) {
	p := Default(testLogger)

	entries := []types.Entry{
		entry("Zork is back", "https://example.com/zork#top"),
		entry(" Zork is back ", "https://mirror.example/zork"),
		entry("Relative zork", "item?id=5"),
		entry("", "https://example.com/empty"),
		entry("Zork II", "https://example.com/zork2"),
	}

	kept, dropped := p.ProcessAll(entries)
	if len(kept) != 2 || dropped != 3 {
		t.Fatalf("expected 2 kept / 3 dropped, got %d / %d", len(kept), dropped)
	}
	if kept[0].URL != "https://example.com/zork" {
		t.Errorf("expected canonical URL, got %q", kept[0].URL)
	}
	if kept[1].Title != "Zork II" {
		t.Errorf("order not preserved: %+v", kept)
	}
}

func TestPipelineErrorWrapsStage(t *testing.T) {
	p := New(testLogger)
	p.Use(&ResolveURLMiddleware{})

	e := entry("Zork", "mailto:someone@example.com")
	_, err := p.Process(&e)

	var perr *types.PipelineError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *types.PipelineError, got %v", err)
	}
	if perr.Stage != "resolve_url" {
		t.Errorf("unexpected stage %q", perr.Stage)
	}
	if !errors.Is(err, types.ErrInvalidURL) {
		t.Errorf("expected ErrInvalidURL in chain, got %v", err)
	}
}
