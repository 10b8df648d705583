package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// Metrics tracks operational counters for scrape and save passes.
type Metrics struct {
	// Fetch metrics
	PagesFetched    atomic.Int64
	PagesFailed     atomic.Int64
	PagesSkipped    atomic.Int64
	BytesDownloaded atomic.Int64

	// Extraction metrics
	RowsSeen       atomic.Int64
	EntriesMatched atomic.Int64
	EntriesDropped atomic.Int64

	// Reconciliation metrics
	RunsSaved       atomic.Int64
	RunsSkipped     atomic.Int64
	EntriesInserted atomic.Int64
	EntriesUpdated  atomic.Int64
	UpdateFailures  atomic.Int64
	SaveFailures    atomic.Int64

	// LastRunUnix is the completion time of the latest pass.
	LastRunUnix atomic.Int64

	logger *slog.Logger
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(logger *slog.Logger) *Metrics {
	return &Metrics{
		logger: logger.With("component", "metrics"),
	}
}

type sample struct {
	name  string
	help  string
	kind  string
	value int64
}

func (m *Metrics) samples() []sample {
	return []sample{
		{"storyscout_pages_fetched_total", "Listing pages fetched", "counter", m.PagesFetched.Load()},
		{"storyscout_pages_failed_total", "Listing pages that failed to fetch or parse", "counter", m.PagesFailed.Load()},
		{"storyscout_pages_skipped_total", "Listing pages skipped by robots.txt", "counter", m.PagesSkipped.Load()},
		{"storyscout_bytes_downloaded_total", "Total bytes downloaded", "counter", m.BytesDownloaded.Load()},
		{"storyscout_rows_seen_total", "Story rows inspected", "counter", m.RowsSeen.Load()},
		{"storyscout_entries_matched_total", "Entries matching a keyword", "counter", m.EntriesMatched.Load()},
		{"storyscout_entries_dropped_total", "Entries dropped by the pipeline", "counter", m.EntriesDropped.Load()},
		{"storyscout_runs_saved_total", "Scrape runs saved", "counter", m.RunsSaved.Load()},
		{"storyscout_runs_skipped_total", "Empty scrape runs skipped", "counter", m.RunsSkipped.Load()},
		{"storyscout_entries_inserted_total", "Entries inserted", "counter", m.EntriesInserted.Load()},
		{"storyscout_entries_updated_total", "Duplicate entries refreshed", "counter", m.EntriesUpdated.Load()},
		{"storyscout_update_failures_total", "Duplicate refreshes that failed", "counter", m.UpdateFailures.Load()},
		{"storyscout_save_failures_total", "Saves abandoned on validation or storage errors", "counter", m.SaveFailures.Load()},
		{"storyscout_last_run_timestamp_seconds", "Completion time of the latest pass", "gauge", m.LastRunUnix.Load()},
	}
}

// ServeHTTP serves metrics in Prometheus text exposition format.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	for _, s := range m.samples() {
		fmt.Fprintf(w, "# HELP %s %s\n", s.name, s.help)
		fmt.Fprintf(w, "# TYPE %s %s\n", s.name, s.kind)
		fmt.Fprintf(w, "%s %d\n", s.name, s.value)
	}
}

// StartServer serves metrics and /health until ctx is canceled.
func (m *Metrics) StartServer(ctx context.Context, port int, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, m)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	m.logger.Info("metrics server starting", "addr", srv.Addr, "path", path)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("metrics server error", "error", err)
		}
	}()

	return nil
}

// Snapshot returns all metrics as a map.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"pages_fetched":    m.PagesFetched.Load(),
		"pages_failed":     m.PagesFailed.Load(),
		"pages_skipped":    m.PagesSkipped.Load(),
		"bytes_downloaded": m.BytesDownloaded.Load(),
		"rows_seen":        m.RowsSeen.Load(),
		"entries_matched":  m.EntriesMatched.Load(),
		"entries_dropped":  m.EntriesDropped.Load(),
		"runs_saved":       m.RunsSaved.Load(),
		"runs_skipped":     m.RunsSkipped.Load(),
		"entries_inserted": m.EntriesInserted.Load(),
		"entries_updated":  m.EntriesUpdated.Load(),
		"update_failures":  m.UpdateFailures.Load(),
		"save_failures":    m.SaveFailures.Load(),
	}
}
