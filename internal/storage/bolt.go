package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/IshaanNene/storyscout/internal/types"
)

var (
	runsBucket   = []byte("runs")
	titlesBucket = []byte("titles")
)

// BoltStore is an embedded single-file store. Runs are keyed by their day
// (YYYY-MM-DD in the store's location), which gives the one-run-per-day
// layout directly; a title index maps each title to the earliest day
// holding it.
type BoltStore struct {
	db     *bolt.DB
	loc    *time.Location
	logger *slog.Logger
}

// NewBoltStore opens (or creates) the database file at path.
func NewBoltStore(path string, loc *time.Location, logger *slog.Logger) (*BoltStore, error) {
	if loc == nil {
		loc = time.Local
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, storageErr("bolt", "open", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{runsBucket, titlesBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, storageErr("bolt", "init", err)
	}

	return &BoltStore{
		db:     db,
		loc:    loc,
		logger: logger.With("component", "bolt_storage", "path", path),
	}, nil
}

func (s *BoltStore) Name() string { return "bolt" }

func (s *BoltStore) key(day time.Time) []byte {
	return []byte(types.DayKey(day.In(s.loc)))
}

func (s *BoltStore) CountRunsForDay(ctx context.Context, day time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, storageErr(s.Name(), "count_runs", err)
	}
	var n int64
	err := s.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(runsBucket).Get(s.key(day)) != nil {
			n = 1
		}
		return nil
	})
	return n, storageErr(s.Name(), "count_runs", err)
}

func (s *BoltStore) TitlesForDay(ctx context.Context, day time.Time) (map[string]struct{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, storageErr(s.Name(), "titles_for_day", err)
	}
	titles := make(map[string]struct{})
	err := s.db.View(func(tx *bolt.Tx) error {
		run, err := getRun(tx, s.key(day))
		if err != nil || run == nil {
			return err
		}
		for _, e := range run.Saves {
			titles[e.Title] = struct{}{}
		}
		return nil
	})
	return titles, storageErr(s.Name(), "titles_for_day", err)
}

func (s *BoltStore) OriginalDayForTitle(ctx context.Context, title string) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, storageErr(s.Name(), "original_day", err)
	}
	var key []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(titlesBucket).Get([]byte(title))
		if v == nil {
			return fmt.Errorf("title %q: %w", title, types.ErrNotFound)
		}
		key = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return time.Time{}, storageErr(s.Name(), "original_day", err)
	}

	day, err := time.ParseInLocation("2006-01-02", string(key), s.loc)
	if err != nil {
		return time.Time{}, storageErr(s.Name(), "original_day", err)
	}
	return day, nil
}

func (s *BoltStore) UpdateEntry(ctx context.Context, day time.Time, title string, update types.EntryUpdate) error {
	if err := ctx.Err(); err != nil {
		return storageErr(s.Name(), "update_entry", err)
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		key := s.key(day)
		run, err := getRun(tx, key)
		if err != nil {
			return err
		}
		if run == nil {
			return fmt.Errorf("run on %s: %w", key, types.ErrNotFound)
		}

		for i := range run.Saves {
			if run.Saves[i].Title != title {
				continue
			}
			at := update.UpdatedAt
			run.Saves[i].Points = update.Points
			run.Saves[i].NumberOfComments = update.NumberOfComments
			run.Saves[i].UpdatedAt = &at
			return putRun(tx, key, run)
		}
		return fmt.Errorf("title %q on %s: %w", title, key, types.ErrNotFound)
	})
	return storageErr(s.Name(), "update_entry", err)
}

func (s *BoltStore) InsertRun(ctx context.Context, run *types.ScrapeRun) error {
	if err := ctx.Err(); err != nil {
		return storageErr(s.Name(), "insert_run", err)
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		key := s.key(run.RunTimestamp)
		if tx.Bucket(runsBucket).Get(key) != nil {
			return fmt.Errorf("run for %s already stored", key)
		}
		stored := &types.StoredRun{
			RunID:      run.ID,
			ScrapeDate: run.RunTimestamp,
			Saves:      append([]types.Entry(nil), run.Entries...),
		}
		if err := putRun(tx, key, stored); err != nil {
			return err
		}
		return indexTitles(tx, key, stored.Saves)
	})
	if err == nil {
		s.logger.Debug("run inserted", "run_id", run.ID, "entries", len(run.Entries))
	}
	return storageErr(s.Name(), "insert_run", err)
}

func (s *BoltStore) AppendEntries(ctx context.Context, day time.Time, entries []types.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return storageErr(s.Name(), "append_entries", err)
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		key := s.key(day)
		run, err := getRun(tx, key)
		if err != nil {
			return err
		}
		if run == nil {
			return fmt.Errorf("run on %s: %w", key, types.ErrNotFound)
		}
		run.Saves = append(run.Saves, entries...)
		if err := putRun(tx, key, run); err != nil {
			return err
		}
		return indexTitles(tx, key, entries)
	})
	return storageErr(s.Name(), "append_entries", err)
}

func (s *BoltStore) SavedEntries(ctx context.Context, day *time.Time) ([]types.SavedEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, storageErr(s.Name(), "saved_entries", err)
	}
	var saved []types.SavedEntry
	collect := func(run *types.StoredRun) {
		for _, e := range run.Saves {
			saved = append(saved, types.SavedEntry{Entry: e, ScrapeDate: run.ScrapeDate})
		}
	}

	err := s.db.View(func(tx *bolt.Tx) error {
		if day != nil {
			run, err := getRun(tx, s.key(*day))
			if err != nil || run == nil {
				return err
			}
			collect(run)
			return nil
		}

		// Keys are YYYY-MM-DD, so cursor order is day order.
		return tx.Bucket(runsBucket).ForEach(func(k, v []byte) error {
			var run types.StoredRun
			if err := json.Unmarshal(v, &run); err != nil {
				return fmt.Errorf("decode run %s: %w", k, err)
			}
			collect(&run)
			return nil
		})
	})
	return saved, storageErr(s.Name(), "saved_entries", err)
}

func (s *BoltStore) Close(_ context.Context) error {
	s.logger.Info("bolt storage closing")
	return s.db.Close()
}

func getRun(tx *bolt.Tx, key []byte) (*types.StoredRun, error) {
	v := tx.Bucket(runsBucket).Get(key)
	if v == nil {
		return nil, nil
	}
	var run types.StoredRun
	if err := json.Unmarshal(v, &run); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", key, err)
	}
	return &run, nil
}

func putRun(tx *bolt.Tx, key []byte, run *types.StoredRun) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encode run %s: %w", key, err)
	}
	return tx.Bucket(runsBucket).Put(key, data)
}

// indexTitles records key as the original day of each title unless an
// earlier day is already recorded.
func indexTitles(tx *bolt.Tx, key []byte, entries []types.Entry) error {
	b := tx.Bucket(titlesBucket)
	for _, e := range entries {
		existing := b.Get([]byte(e.Title))
		if existing != nil && bytes.Compare(existing, key) <= 0 {
			continue
		}
		if err := b.Put([]byte(e.Title), key); err != nil {
			return err
		}
	}
	return nil
}
