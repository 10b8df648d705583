// Package reconcile merges a fresh scrape run into the day's stored run:
// new titles are inserted, titles already stored today get their volatile
// fields refreshed.
package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/IshaanNene/storyscout/internal/observability"
	"github.com/IshaanNene/storyscout/internal/storage"
	"github.com/IshaanNene/storyscout/internal/types"
)

// Result describes what one Save did.
type Result struct {
	// Day is the start of the calendar day the run was saved under.
	Day time.Time

	// Created is set when the save created the day's stored run.
	Created bool

	// Inserted lists titles written as new entries, in run order.
	Inserted []string

	// Duplicates lists run titles already stored today.
	Duplicates []string

	// Updated lists duplicates whose stored entry was refreshed.
	Updated []string

	// Failed lists duplicates whose refresh failed.
	Failed []string

	// Skipped is set for an empty run; nothing touched the store.
	Skipped bool
}

// Engine reconciles scrape runs against a Store.
type Engine struct {
	store   storage.Store
	loc     *time.Location
	now     func() time.Time
	metrics *observability.Metrics
	logger  *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the clock used for updated-at stamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithMetrics records save outcomes on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates an Engine. Calendar days are evaluated in loc.
func New(store storage.Store, loc *time.Location, logger *slog.Logger, opts ...Option) *Engine {
	if loc == nil {
		loc = time.Local
	}
	e := &Engine{
		store:  store,
		loc:    loc,
		now:    time.Now,
		logger: logger.With("component", "reconcile"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Save persists run. The run's day is the calendar day of its timestamp.
//
// An empty run is a no-op. A run failing validation returns a
// *types.ValidationError before any write. Lookup, insert and append
// failures return a *types.StorageError; a failed refresh of a single
// duplicate is recorded in Result.Failed and the save continues.
func (e *Engine) Save(ctx context.Context, run *types.ScrapeRun) (*Result, error) {
	if run.IsEmpty() {
		e.logger.Info("no entries to save")
		e.count(func(m *observability.Metrics) { m.RunsSkipped.Add(1) })
		return &Result{Skipped: true}, nil
	}

	if err := types.ValidateRun(run); err != nil {
		e.logger.Error("scrape run failed validation", "run_id", run.ID, "error", err)
		e.count(func(m *observability.Metrics) { m.SaveFailures.Add(1) })
		return nil, err
	}

	day := types.StartOfDay(run.RunTimestamp, e.loc)
	res := &Result{Day: day}

	err := e.save(ctx, run, res)
	if err != nil {
		e.logger.Error("save failed", "run_id", run.ID, "day", types.DayKey(day), "error", err)
		e.count(func(m *observability.Metrics) { m.SaveFailures.Add(1) })
		return res, err
	}

	e.logger.Info("run saved",
		"run_id", run.ID,
		"day", types.DayKey(day),
		"created", res.Created,
		"inserted", len(res.Inserted),
		"updated", len(res.Updated),
		"failed", len(res.Failed),
	)
	e.count(func(m *observability.Metrics) {
		m.RunsSaved.Add(1)
		m.EntriesInserted.Add(int64(len(res.Inserted)))
		m.EntriesUpdated.Add(int64(len(res.Updated)))
		m.UpdateFailures.Add(int64(len(res.Failed)))
	})
	return res, nil
}

func (e *Engine) save(ctx context.Context, run *types.ScrapeRun, res *Result) error {
	existing, err := e.store.CountRunsForDay(ctx, res.Day)
	if err != nil {
		return err
	}

	if existing == 0 {
		if err := e.store.InsertRun(ctx, run); err != nil {
			return err
		}
		res.Created = true
		res.Inserted = run.Titles()
		return nil
	}

	stored, err := e.store.TitlesForDay(ctx, res.Day)
	if err != nil {
		return err
	}

	fresh := make([]types.Entry, 0, len(run.Entries))
	updatedAt := e.now().In(e.loc)

	for _, entry := range run.Entries {
		if _, dup := stored[entry.Title]; !dup {
			fresh = append(fresh, entry)
			continue
		}

		res.Duplicates = append(res.Duplicates, entry.Title)
		if err := e.refresh(ctx, entry, updatedAt); err != nil {
			e.logger.Warn("refresh failed", "title", entry.Title, "error", err)
			res.Failed = append(res.Failed, entry.Title)
			continue
		}
		res.Updated = append(res.Updated, entry.Title)
	}

	if len(fresh) == 0 {
		return nil
	}
	if err := e.store.AppendEntries(ctx, res.Day, fresh); err != nil {
		return err
	}
	for _, entry := range fresh {
		res.Inserted = append(res.Inserted, entry.Title)
	}
	return nil
}

// refresh updates the stored copy of entry on the earliest day holding its
// title.
func (e *Engine) refresh(ctx context.Context, entry types.Entry, at time.Time) error {
	origin, err := e.store.OriginalDayForTitle(ctx, entry.Title)
	if err != nil {
		return err
	}
	return e.store.UpdateEntry(ctx, types.StartOfDay(origin, e.loc), entry.Title, types.UpdateFrom(entry, at))
}

func (e *Engine) count(fn func(m *observability.Metrics)) {
	if e.metrics != nil {
		fn(e.metrics)
	}
}
