package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/IshaanNene/storyscout/internal/config"
	"github.com/IshaanNene/storyscout/internal/types"
)

// Store is the day-scoped document store scrape runs are reconciled against.
// Days are interpreted with DayRange: every method that takes a day covers
// [start of day, start of next day).
type Store interface {
	// CountRunsForDay returns how many stored runs fall on day.
	CountRunsForDay(ctx context.Context, day time.Time) (int64, error)

	// TitlesForDay returns every entry title stored on day.
	TitlesForDay(ctx context.Context, day time.Time) (map[string]struct{}, error)

	// OriginalDayForTitle returns a time within the earliest day holding
	// title, or types.ErrNotFound.
	OriginalDayForTitle(ctx context.Context, title string) (time.Time, error)

	// UpdateEntry refreshes points, comment count and updated-at of the
	// entry with title in the run stored on day. Other fields are untouched.
	UpdateEntry(ctx context.Context, day time.Time, title string, update types.EntryUpdate) error

	// InsertRun stores run as a new day document.
	InsertRun(ctx context.Context, run *types.ScrapeRun) error

	// AppendEntries adds entries to the run stored on day.
	AppendEntries(ctx context.Context, day time.Time, entries []types.Entry) error

	// SavedEntries lists stored entries in scrape order, limited to one day
	// when day is non-nil.
	SavedEntries(ctx context.Context, day *time.Time) ([]types.SavedEntry, error)

	// Name returns the storage backend identifier.
	Name() string

	// Close flushes pending writes and releases resources.
	Close(ctx context.Context) error
}

// Open creates the store selected by cfg.Type.
func Open(ctx context.Context, cfg *config.StorageConfig, logger *slog.Logger) (Store, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	switch cfg.Type {
	case "mongo", "mongodb":
		return NewMongoStore(ctx, cfg, logger)
	case "bolt":
		return NewBoltStore(cfg.Path, loc, logger)
	case "memory":
		return NewMemoryStore(loc), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

func storageErr(backend, op string, err error) error {
	if err == nil {
		return nil
	}
	return &types.StorageError{Backend: backend, Op: op, Err: err}
}
