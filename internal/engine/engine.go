package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/IshaanNene/storyscout/internal/config"
	"github.com/IshaanNene/storyscout/internal/fetcher"
	"github.com/IshaanNene/storyscout/internal/keyword"
	"github.com/IshaanNene/storyscout/internal/observability"
	"github.com/IshaanNene/storyscout/internal/parser"
	"github.com/IshaanNene/storyscout/internal/pipeline"
	"github.com/IshaanNene/storyscout/internal/types"
)

// PageStatus is the outcome of one listing page within a run.
type PageStatus int

const (
	PageOK PageStatus = iota
	PageFailed
	PageSkipped
)

func (s PageStatus) String() string {
	switch s {
	case PageOK:
		return "ok"
	case PageFailed:
		return "failed"
	case PageSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// PageReport summarizes one listing page.
type PageReport struct {
	URL     string
	Status  PageStatus
	Rows    int
	Matched int
	Err     error

	// Retryable is set when a failed fetch is worth another attempt on the
	// next pass (timeouts, 429, 5xx).
	Retryable bool
}

// Report is the output of one scrape pass.
type Report struct {
	Run      *types.ScrapeRun
	Pages    []PageReport
	Dropped  int
	Duration time.Duration
}

// Failed returns how many pages could not be fetched or parsed.
func (r *Report) Failed() int {
	n := 0
	for _, p := range r.Pages {
		if p.Status == PageFailed {
			n++
		}
	}
	return n
}

// Runner fetches every configured listing page, extracts matching entries
// and assembles them into one validated ScrapeRun.
type Runner struct {
	sites       []string
	concurrency int
	fetcher     fetcher.Fetcher
	parser      parser.DocumentParser
	extractor   *parser.EntryExtractor
	metrics     *observability.Metrics
	now         func() time.Time
	newID       func() string
	logger      *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithMetrics records fetch and extraction counters on m.
func WithMetrics(m *observability.Metrics) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

// WithClock overrides the run timestamp source.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

// WithIDFunc overrides run ID generation.
func WithIDFunc(newID func() string) RunnerOption {
	return func(r *Runner) { r.newID = newID }
}

// NewRunner builds a Runner from the scraper configuration.
func NewRunner(cfg *config.ScraperConfig, f fetcher.Fetcher, logger *slog.Logger, opts ...RunnerOption) (*Runner, error) {
	matcher, err := keyword.New(cfg.Keywords)
	if err != nil {
		return nil, fmt.Errorf("keywords: %w", err)
	}

	docParser, err := parser.NewDocumentParser(cfg.Parser)
	if err != nil {
		return nil, err
	}

	extractor, err := parser.NewEntryExtractor(matcher, cfg.Selectors, logger)
	if err != nil {
		return nil, err
	}

	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	r := &Runner{
		sites:       append([]string(nil), cfg.Websites...),
		concurrency: concurrency,
		fetcher:     f,
		parser:      docParser,
		extractor:   extractor,
		now:         time.Now,
		newID:       uuid.NewString,
		logger:      logger.With("component", "runner"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

type pageResult struct {
	report  PageReport
	entries []types.Entry
}

// Run performs one scrape pass. Page failures are logged and reported in
// the Report; they never fail the run. The returned error is non-nil only
// when ctx is canceled or the assembled run fails validation.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	r.logger.Info("scrape pass starting", "sites", len(r.sites), "parser", r.parser.Name(), "concurrency", r.concurrency)

	slots := make([]pageResult, len(r.sites))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, site := range r.sites {
		g.Go(func() error {
			slots[i] = r.scrapePage(gctx, site)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &Report{Pages: make([]PageReport, 0, len(slots))}
	var collected []types.Entry
	for _, slot := range slots {
		report.Pages = append(report.Pages, slot.report)
		collected = append(collected, slot.entries...)
	}

	entries, dropped := pipeline.Default(r.logger).ProcessAll(collected)
	report.Dropped = dropped
	r.count(func(m *observability.Metrics) { m.EntriesDropped.Add(int64(dropped)) })

	run := &types.ScrapeRun{
		ID:           r.newID(),
		RunTimestamp: r.now(),
		Entries:      entries,
	}
	if err := types.ValidateRun(run); err != nil {
		return nil, err
	}

	report.Run = run
	report.Duration = time.Since(start)

	r.logger.Info("scrape pass complete",
		"run_id", run.ID,
		"entries", len(run.Entries),
		"dropped", dropped,
		"failed_pages", report.Failed(),
		"duration", report.Duration,
	)
	return report, nil
}

func (r *Runner) scrapePage(ctx context.Context, site string) pageResult {
	res := pageResult{report: PageReport{URL: site}}

	page, err := r.fetcher.Fetch(ctx, site)
	if err != nil {
		res.report.Err = err
		if errors.Is(err, types.ErrDisallowed) {
			res.report.Status = PageSkipped
			r.logger.Warn("page disallowed by robots.txt", "url", site)
			r.count(func(m *observability.Metrics) { m.PagesSkipped.Add(1) })
			return res
		}
		res.report.Status = PageFailed
		var fe *types.FetchError
		if errors.As(err, &fe) {
			res.report.Retryable = fe.IsRetryable()
		}
		r.logger.Warn("page fetch failed", "url", site, "retryable", res.report.Retryable, "error", err)
		r.count(func(m *observability.Metrics) { m.PagesFailed.Add(1) })
		return res
	}
	r.count(func(m *observability.Metrics) {
		m.PagesFetched.Add(1)
		m.BytesDownloaded.Add(int64(len(page.Body)))
	})

	root, err := r.parser.Parse(page.Body)
	if err != nil {
		var perr *types.ParseError
		if !errors.As(err, &perr) {
			err = &types.ParseError{URL: site, Backend: r.parser.Name(), Err: err}
		}
		res.report.Status = PageFailed
		res.report.Err = err
		r.logger.Warn("page parse failed", "url", site, "error", err)
		r.count(func(m *observability.Metrics) { m.PagesFailed.Add(1) })
		return res
	}

	entries, rows := r.extractor.ExtractRows(root, page.BaseURL())

	res.entries = entries
	res.report.Rows = rows
	res.report.Matched = len(entries)
	r.count(func(m *observability.Metrics) {
		m.RowsSeen.Add(int64(rows))
		m.EntriesMatched.Add(int64(len(entries)))
	})
	r.logger.Debug("page scraped", "url", site, "rows", rows, "matched", len(entries), "duration", page.FetchDuration)
	return res
}

func (r *Runner) count(fn func(m *observability.Metrics)) {
	if r.metrics != nil {
		fn(r.metrics)
	}
}
