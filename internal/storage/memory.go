package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/IshaanNene/storyscout/internal/types"
)

// MemoryStore keeps runs in process memory. It follows the same day-range
// semantics as MongoStore and backs tests and throwaway runs.
type MemoryStore struct {
	mu   sync.Mutex
	runs []types.StoredRun
	loc  *time.Location
}

// NewMemoryStore creates an empty store. Days are evaluated in loc.
func NewMemoryStore(loc *time.Location) *MemoryStore {
	if loc == nil {
		loc = time.Local
	}
	return &MemoryStore{loc: loc}
}

func (s *MemoryStore) Name() string { return "memory" }

func (s *MemoryStore) inDay(run *types.StoredRun, day time.Time) bool {
	start, end := types.DayRange(day.In(s.loc))
	return !run.ScrapeDate.Before(start) && run.ScrapeDate.Before(end)
}

func (s *MemoryStore) CountRunsForDay(_ context.Context, day time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for i := range s.runs {
		if s.inDay(&s.runs[i], day) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) TitlesForDay(_ context.Context, day time.Time) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	titles := make(map[string]struct{})
	for i := range s.runs {
		if !s.inDay(&s.runs[i], day) {
			continue
		}
		for _, e := range s.runs[i].Saves {
			titles[e.Title] = struct{}{}
		}
	}
	return titles, nil
}

func (s *MemoryStore) OriginalDayForTitle(_ context.Context, title string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var earliest time.Time
	found := false
	for _, run := range s.runs {
		for _, e := range run.Saves {
			if e.Title != title {
				continue
			}
			if !found || run.ScrapeDate.Before(earliest) {
				earliest = run.ScrapeDate
				found = true
			}
			break
		}
	}
	if !found {
		return time.Time{}, storageErr(s.Name(), "original_day", fmt.Errorf("title %q: %w", title, types.ErrNotFound))
	}
	return earliest.In(s.loc), nil
}

func (s *MemoryStore) UpdateEntry(_ context.Context, day time.Time, title string, update types.EntryUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.runs {
		run := &s.runs[i]
		if !s.inDay(run, day) {
			continue
		}
		for j := range run.Saves {
			if run.Saves[j].Title != title {
				continue
			}
			at := update.UpdatedAt
			run.Saves[j].Points = update.Points
			run.Saves[j].NumberOfComments = update.NumberOfComments
			run.Saves[j].UpdatedAt = &at
			return nil
		}
	}
	return storageErr(s.Name(), "update_entry",
		fmt.Errorf("title %q on %s: %w", title, types.DayKey(day.In(s.loc)), types.ErrNotFound))
}

func (s *MemoryStore) InsertRun(_ context.Context, run *types.ScrapeRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs = append(s.runs, types.StoredRun{
		RunID:      run.ID,
		ScrapeDate: run.RunTimestamp,
		Saves:      append([]types.Entry(nil), run.Entries...),
	})
	return nil
}

func (s *MemoryStore) AppendEntries(_ context.Context, day time.Time, entries []types.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.runs {
		if s.inDay(&s.runs[i], day) {
			s.runs[i].Saves = append(s.runs[i].Saves, entries...)
			return nil
		}
	}
	return storageErr(s.Name(), "append_entries",
		fmt.Errorf("run on %s: %w", types.DayKey(day.In(s.loc)), types.ErrNotFound))
}

func (s *MemoryStore) SavedEntries(_ context.Context, day *time.Time) ([]types.SavedEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	runs := make([]types.StoredRun, 0, len(s.runs))
	for _, run := range s.runs {
		if day == nil || s.inDay(&run, *day) {
			runs = append(runs, run)
		}
	}
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].ScrapeDate.Before(runs[j].ScrapeDate)
	})

	var saved []types.SavedEntry
	for _, run := range runs {
		for _, e := range run.Saves {
			saved = append(saved, types.SavedEntry{Entry: e, ScrapeDate: run.ScrapeDate})
		}
	}
	return saved, nil
}

// Runs returns a copy of the stored runs.
func (s *MemoryStore) Runs() []types.StoredRun {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]types.StoredRun, len(s.runs))
	for i, run := range s.runs {
		run.Saves = append([]types.Entry(nil), run.Saves...)
		out[i] = run
	}
	return out
}

func (s *MemoryStore) Close(_ context.Context) error { return nil }
