package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/storyscout/internal/config"
	"github.com/IshaanNene/storyscout/internal/observability"
	"github.com/IshaanNene/storyscout/internal/reconcile"
	"github.com/IshaanNene/storyscout/internal/storage"
	"github.com/IshaanNene/storyscout/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

var fixedNow = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

// listing renders HN-style markup: one story row plus its metadata row per
// title.
func listing(titles ...string) string {
	var b strings.Builder
	b.WriteString(`<html><body><table>`)
	for i, title := range titles {
		fmt.Fprintf(&b, `<tr class="athing" id="%d"><td><span class="titleline"><a href="https://example.com/%d">%s</a></span></td></tr>`, i, i, title)
		fmt.Fprintf(&b, `<tr><td class="subtext"><span class="score">%d points</span> <span class="age" title="2024-03-10T08:00:00 1710057600">1 hour ago</span> <a href="item?id=%d">%d&nbsp;comments</a></td></tr>`, 10+i, i, i)
	}
	b.WriteString(`</table></body></html>`)
	return b.String()
}

type fakePage struct {
	body  string
	err   error
	delay time.Duration
}

type fakeFetcher struct {
	pages map[string]fakePage
	calls atomic.Int64
}

func (f *fakeFetcher) Fetch(ctx context.Context, rawURL string) (*types.Page, error) {
	f.calls.Add(1)
	p, ok := f.pages[rawURL]
	if !ok {
		return nil, &types.FetchError{URL: rawURL, StatusCode: 404, Err: errors.New("not found")}
	}
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, &types.FetchError{URL: rawURL, Err: ctx.Err()}
		}
	}
	if p.err != nil {
		return nil, p.err
	}
	return &types.Page{URL: rawURL, FinalURL: rawURL, StatusCode: 200, Body: []byte(p.body)}, nil
}

func (f *fakeFetcher) Close() error { return nil }

func scraperConfig(sites []string, keywords ...string) *config.ScraperConfig {
	cfg := config.DefaultConfig().Scraper
	cfg.Websites = sites
	cfg.Keywords = keywords
	return &cfg
}

func newTestRunner(t *testing.T, cfg *config.ScraperConfig, f *fakeFetcher, opts ...RunnerOption) *Runner {
	t.Helper()
	opts = append([]RunnerOption{
		WithClock(func() time.Time { return fixedNow }),
		WithIDFunc(func() string { return "run-1" }),
	}, opts...)
	r, err := NewRunner(cfg, f, testLogger, opts...)
	require.NoError(t, err)
	return r
}

func TestRunKeepsOnlyMatchingStories(t *testing.T) {
	f := &fakeFetcher{pages: map[string]fakePage{
		"https://news.example/": {body: listing("Zork is back", "Random post")},
	}}
	r := newTestRunner(t, scraperConfig([]string{"https://news.example/"}, "zork"), f)

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Run.Entries, 1)

	e := report.Run.Entries[0]
	require.Equal(t, "Zork is back", e.Title)
	require.Equal(t, []string{"zork"}, e.MatchedKeywords)
	require.Equal(t, 10, *e.Points)
	require.Equal(t, 0, *e.NumberOfComments)
	require.Equal(t, "run-1", report.Run.ID)
	require.Equal(t, fixedNow, report.Run.RunTimestamp)
	require.Equal(t, 2, report.Pages[0].Rows)
}

func TestRunSkipsFailedPages(t *testing.T) {
	f := &fakeFetcher{pages: map[string]fakePage{
		"https://news.example/?p=2": {body: listing("BCI progress", "neuro notes")},
	}}
	metrics := observability.NewMetrics(testLogger)
	cfg := scraperConfig([]string{"https://news.example/", "https://news.example/?p=2"}, "BCI", "neuro")
	r := newTestRunner(t, cfg, f, WithMetrics(metrics))

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Run.Entries, 2)
	require.Equal(t, 1, report.Failed())
	require.Equal(t, PageFailed, report.Pages[0].Status)
	require.Equal(t, PageOK, report.Pages[1].Status)

	var fe *types.FetchError
	require.ErrorAs(t, report.Pages[0].Err, &fe)

	require.EqualValues(t, 1, metrics.PagesFailed.Load())
	require.EqualValues(t, 1, metrics.PagesFetched.Load())
	require.EqualValues(t, 2, metrics.EntriesMatched.Load())
	require.EqualValues(t, 2, metrics.RowsSeen.Load())
}

func TestRunFlagsRetryableFailures(t *testing.T) {
	f := &fakeFetcher{pages: map[string]fakePage{
		"https://news.example/": {err: &types.FetchError{URL: "https://news.example/", StatusCode: 503, Err: errors.New("unavailable"), Retryable: true}},
	}}
	cfg := scraperConfig([]string{"https://news.example/", "https://news.example/?p=2"}, "zork")
	r := newTestRunner(t, cfg, f)

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, PageFailed, report.Pages[0].Status)
	require.True(t, report.Pages[0].Retryable)
	require.Equal(t, PageFailed, report.Pages[1].Status)
	require.False(t, report.Pages[1].Retryable, "404 is final")
}

type redirectingFetcher struct{ fakeFetcher }

func (f *redirectingFetcher) Fetch(ctx context.Context, rawURL string) (*types.Page, error) {
	page, err := f.fakeFetcher.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	page.FinalURL = "https://mirror.example/news/"
	return page, nil
}

func TestRunResolvesLinksAgainstFinalURL(t *testing.T) {
	body := `<html><body><table>
<tr class="athing" id="1"><td><span class="titleline"><a href="item?id=1">Zork is back</a></span></td></tr>
<tr><td class="subtext"><span class="score">3 points</span></td></tr>
</table></body></html>`
	f := &redirectingFetcher{fakeFetcher{pages: map[string]fakePage{
		"https://news.example/": {body: body},
	}}}
	cfg := scraperConfig([]string{"https://news.example/"}, "zork")
	r, err := NewRunner(cfg, f, testLogger, WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Run.Entries, 1)
	require.Equal(t, "https://mirror.example/news/item?id=1", report.Run.Entries[0].URL)
}

func TestRunOrderIsSiteOrderUnderConcurrency(t *testing.T) {
	f := &fakeFetcher{pages: map[string]fakePage{
		"https://a.example/": {body: listing("WAR one", "WAR two"), delay: 50 * time.Millisecond},
		"https://b.example/": {body: listing("WAR three")},
	}}
	cfg := scraperConfig([]string{"https://a.example/", "https://b.example/"}, "WAR")
	cfg.Concurrency = 2
	r := newTestRunner(t, cfg, f)

	report, err := r.Run(context.Background())
	require.NoError(t, err)

	var titles []string
	for _, e := range report.Run.Entries {
		titles = append(titles, e.Title)
	}
	require.Equal(t, []string{"WAR one", "WAR two", "WAR three"}, titles)
}

func TestRunDropsTitleRepeatedAcrossPages(t *testing.T) {
	f := &fakeFetcher{pages: map[string]fakePage{
		"https://news.example/":     {body: listing("Zork is back")},
		"https://news.example/?p=2": {body: listing("Zork is back", "Zork II")},
	}}
	cfg := scraperConfig([]string{"https://news.example/", "https://news.example/?p=2"}, "zork")
	r := newTestRunner(t, cfg, f)

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Run.Entries, 2)
	require.Equal(t, 1, report.Dropped)
}

func TestRunReportsDisallowedPagesAsSkipped(t *testing.T) {
	f := &fakeFetcher{pages: map[string]fakePage{
		"https://news.example/": {err: &types.FetchError{URL: "https://news.example/", Err: types.ErrDisallowed}},
	}}
	r := newTestRunner(t, scraperConfig([]string{"https://news.example/"}, "zork"), f)

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, PageSkipped, report.Pages[0].Status)
	require.True(t, report.Run.IsEmpty())
}

func TestRunCanceled(t *testing.T) {
	f := &fakeFetcher{pages: map[string]fakePage{
		"https://news.example/": {body: listing("Zork"), delay: time.Second},
	}}
	r := newTestRunner(t, scraperConfig([]string{"https://news.example/"}, "zork"), f)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewRunnerRejectsBadConfig(t *testing.T) {
	f := &fakeFetcher{}

	_, err := NewRunner(scraperConfig([]string{"https://news.example/"}), f, testLogger)
	require.Error(t, err, "no keywords")

	cfg := scraperConfig([]string{"https://news.example/"}, "zork")
	cfg.Parser = "regex"
	_, err = NewRunner(cfg, f, testLogger)
	require.Error(t, err)
}

func TestSchedulerRunOnceSavesRun(t *testing.T) {
	f := &fakeFetcher{pages: map[string]fakePage{
		"https://news.example/": {body: listing("Zork is back", "Random post")},
	}}
	r := newTestRunner(t, scraperConfig([]string{"https://news.example/"}, "zork"), f)
	store := storage.NewMemoryStore(time.UTC)
	saver := reconcile.New(store, time.UTC, testLogger)
	metrics := observability.NewMetrics(testLogger)

	s := NewScheduler(r, saver, time.Hour, metrics, testLogger)
	report, res, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Run.Entries, 1)
	require.True(t, res.Created)
	require.Equal(t, []string{"Zork is back"}, res.Inserted)
	require.NotZero(t, metrics.LastRunUnix.Load())

	// A second pass the same day refreshes instead of inserting.
	_, res, err = s.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"Zork is back"}, res.Updated)
	require.Len(t, store.Runs()[0].Saves, 1)
}

type countingSaver struct {
	calls  atomic.Int64
	stopAt int64
	cancel context.CancelFunc
}

func (s *countingSaver) Save(_ context.Context, _ *types.ScrapeRun) (*reconcile.Result, error) {
	if s.calls.Add(1) >= s.stopAt {
		s.cancel()
	}
	return &reconcile.Result{Skipped: true}, errors.New("store unreachable")
}

func TestSchedulerStartRepeatsUntilCanceled(t *testing.T) {
	f := &fakeFetcher{pages: map[string]fakePage{
		"https://news.example/": {body: listing("Zork")},
	}}
	r := newTestRunner(t, scraperConfig([]string{"https://news.example/"}, "zork"), f)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	saver := &countingSaver{stopAt: 3, cancel: cancel}

	s := NewScheduler(r, saver, 10*time.Millisecond, nil, testLogger)

	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
	require.EqualValues(t, 3, s.Passes())
	require.EqualValues(t, 3, saver.calls.Load())
}
