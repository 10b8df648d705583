package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/IshaanNene/storyscout/internal/types"
)

// Exporter writes saved entries to an output stream in one format.
type Exporter interface {
	// Export writes entries.
	Export(entries []types.SavedEntry) error

	// Name returns the format identifier.
	Name() string
}

// NewExporter creates the exporter for format writing to w.
func NewExporter(format string, w io.Writer, logger *slog.Logger) (Exporter, error) {
	switch format {
	case "json":
		return &JSONExporter{w: w, logger: logger.With("component", "json_export")}, nil
	case "jsonl":
		return &JSONLExporter{w: w, logger: logger.With("component", "jsonl_export")}, nil
	case "csv":
		return &CSVExporter{w: w, logger: logger.With("component", "csv_export")}, nil
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}

// CreateOutput opens path for writing, creating parent directories. An
// empty path or "-" means stdout.
func CreateOutput(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}
	return f, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// --- JSON ---

// JSONExporter writes entries as an indented JSON array.
type JSONExporter struct {
	w      io.Writer
	logger *slog.Logger
}

func (e *JSONExporter) Name() string { return "json" }

func (e *JSONExporter) Export(entries []types.SavedEntry) error {
	if entries == nil {
		entries = []types.SavedEntry{}
	}
	enc := json.NewEncoder(e.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	e.logger.Debug("JSON written", "entries", len(entries))
	return nil
}

// --- JSONL ---

// JSONLExporter writes one JSON object per line.
type JSONLExporter struct {
	w      io.Writer
	logger *slog.Logger
}

func (e *JSONLExporter) Name() string { return "jsonl" }

func (e *JSONLExporter) Export(entries []types.SavedEntry) error {
	enc := json.NewEncoder(e.w)
	for _, entry := range entries {
		if err := enc.Encode(entry); err != nil {
			return fmt.Errorf("encode JSONL: %w", err)
		}
	}
	e.logger.Debug("JSONL written", "entries", len(entries))
	return nil
}

// --- CSV ---

var csvHeaders = []string{
	"scrape_date", "title", "url", "matched_keywords",
	"points", "number_of_comments", "post_date", "updated_at",
}

// CSVExporter writes a header row followed by one row per entry. Keywords
// are joined with ";" and absent values are empty cells.
type CSVExporter struct {
	w      io.Writer
	logger *slog.Logger
}

func (e *CSVExporter) Name() string { return "csv" }

func (e *CSVExporter) Export(entries []types.SavedEntry) error {
	writer := csv.NewWriter(e.w)
	if err := writer.Write(csvHeaders); err != nil {
		return fmt.Errorf("write CSV header: %w", err)
	}

	for _, entry := range entries {
		row := []string{
			entry.ScrapeDate.Format(time.RFC3339),
			entry.Title,
			entry.URL,
			strings.Join(entry.MatchedKeywords, ";"),
			formatInt(entry.Points),
			formatInt(entry.NumberOfComments),
			formatTime(entry.PostDate),
			formatTime(entry.UpdatedAt),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	e.logger.Debug("CSV written", "entries", len(entries))
	return nil
}

func formatInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
