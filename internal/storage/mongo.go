package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/IshaanNene/storyscout/internal/config"
	"github.com/IshaanNene/storyscout/internal/types"
)

// MongoStore keeps one document per scrape day in a MongoDB collection:
// {run_id, scrape_date, saves: [...]}.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	opTimeout  time.Duration
	loc        *time.Location
	logger     *slog.Logger
}

// NewMongoStore connects with the Stable API v1 and verifies the deployment
// is reachable.
func NewMongoStore(ctx context.Context, cfg *config.StorageConfig, logger *slog.Logger) (*MongoStore, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1)).
		SetServerSelectionTimeout(cfg.ServerSelectionTimeout)

	connectCtx, cancel := context.WithTimeout(ctx, cfg.OperationTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		return nil, storageErr("mongodb", "connect", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, storageErr("mongodb", "ping", err)
	}

	return &MongoStore{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		opTimeout:  cfg.OperationTimeout,
		loc:        loc,
		logger:     logger.With("component", "mongo_storage"),
	}, nil
}

func (s *MongoStore) Name() string { return "mongodb" }

// withCollection runs fn under a per-operation timeout and tags failures
// with the operation name.
func (s *MongoStore) withCollection(ctx context.Context, op string, fn func(ctx context.Context, coll *mongo.Collection) error) error {
	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	start := time.Now()
	err := fn(opCtx, s.collection)
	s.logger.Debug("mongodb op", "op", op, "duration", time.Since(start), "error", err)
	return storageErr(s.Name(), op, err)
}

func (s *MongoStore) CountRunsForDay(ctx context.Context, day time.Time) (int64, error) {
	var n int64
	err := s.withCollection(ctx, "count_runs", func(ctx context.Context, coll *mongo.Collection) error {
		var err error
		n, err = coll.CountDocuments(ctx, dayFilter(day))
		return err
	})
	return n, err
}

func (s *MongoStore) TitlesForDay(ctx context.Context, day time.Time) (map[string]struct{}, error) {
	titles := make(map[string]struct{})
	err := s.withCollection(ctx, "titles_for_day", func(ctx context.Context, coll *mongo.Collection) error {
		cur, err := coll.Aggregate(ctx, titlesPipeline(day))
		if err != nil {
			return err
		}
		defer cur.Close(ctx)

		for cur.Next(ctx) {
			var row struct {
				Title string `bson:"title"`
			}
			if err := cur.Decode(&row); err != nil {
				return err
			}
			titles[row.Title] = struct{}{}
		}
		return cur.Err()
	})
	return titles, err
}

func (s *MongoStore) OriginalDayForTitle(ctx context.Context, title string) (time.Time, error) {
	var doc struct {
		ScrapeDate time.Time `bson:"scrape_date"`
	}
	err := s.withCollection(ctx, "original_day", func(ctx context.Context, coll *mongo.Collection) error {
		opts := options.FindOne().
			SetSort(bson.D{{Key: "scrape_date", Value: 1}}).
			SetProjection(bson.D{{Key: "scrape_date", Value: 1}, {Key: "_id", Value: 0}})

		err := coll.FindOne(ctx, bson.D{{Key: "saves.title", Value: title}}, opts).Decode(&doc)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return fmt.Errorf("title %q: %w", title, types.ErrNotFound)
		}
		return err
	})
	if err != nil {
		return time.Time{}, err
	}
	return doc.ScrapeDate.In(s.loc), nil
}

func (s *MongoStore) UpdateEntry(ctx context.Context, day time.Time, title string, update types.EntryUpdate) error {
	return s.withCollection(ctx, "update_entry", func(ctx context.Context, coll *mongo.Collection) error {
		res, err := coll.UpdateOne(ctx, entryFilter(day, title), entryUpdateDoc(update))
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return fmt.Errorf("title %q on %s: %w", title, types.DayKey(day), types.ErrNotFound)
		}
		return nil
	})
}

func (s *MongoStore) InsertRun(ctx context.Context, run *types.ScrapeRun) error {
	doc := types.StoredRun{
		RunID:      run.ID,
		ScrapeDate: run.RunTimestamp,
		Saves:      run.Entries,
	}
	return s.withCollection(ctx, "insert_run", func(ctx context.Context, coll *mongo.Collection) error {
		_, err := coll.InsertOne(ctx, doc)
		return err
	})
}

func (s *MongoStore) AppendEntries(ctx context.Context, day time.Time, entries []types.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	return s.withCollection(ctx, "append_entries", func(ctx context.Context, coll *mongo.Collection) error {
		push := bson.D{{Key: "$push", Value: bson.D{
			{Key: "saves", Value: bson.D{{Key: "$each", Value: entries}}},
		}}}
		res, err := coll.UpdateOne(ctx, dayFilter(day), push)
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return fmt.Errorf("run on %s: %w", types.DayKey(day), types.ErrNotFound)
		}
		return nil
	})
}

func (s *MongoStore) SavedEntries(ctx context.Context, day *time.Time) ([]types.SavedEntry, error) {
	var saved []types.SavedEntry
	err := s.withCollection(ctx, "saved_entries", func(ctx context.Context, coll *mongo.Collection) error {
		cur, err := coll.Aggregate(ctx, savedPipeline(day))
		if err != nil {
			return err
		}
		defer cur.Close(ctx)

		for cur.Next(ctx) {
			var row struct {
				ScrapeDate time.Time   `bson:"scrape_date"`
				Save       types.Entry `bson:"saves"`
			}
			if err := cur.Decode(&row); err != nil {
				return err
			}
			saved = append(saved, types.SavedEntry{Entry: row.Save, ScrapeDate: row.ScrapeDate.In(s.loc)})
		}
		return cur.Err()
	})
	return saved, err
}

func (s *MongoStore) Close(ctx context.Context) error {
	s.logger.Info("mongodb storage closing")
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// --- query builders ---

func dayFilter(day time.Time) bson.D {
	start, end := types.DayRange(day)
	return bson.D{{Key: "scrape_date", Value: bson.D{
		{Key: "$gte", Value: start},
		{Key: "$lt", Value: end},
	}}}
}

func entryFilter(day time.Time, title string) bson.D {
	return append(dayFilter(day), bson.E{Key: "saves.title", Value: title})
}

func entryUpdateDoc(update types.EntryUpdate) bson.D {
	return bson.D{{Key: "$set", Value: bson.D{
		{Key: "saves.$.points", Value: update.Points},
		{Key: "saves.$.number_of_comments", Value: update.NumberOfComments},
		{Key: "saves.$.updated_at", Value: update.UpdatedAt},
	}}}
}

func titlesPipeline(day time.Time) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: dayFilter(day)}},
		{{Key: "$unwind", Value: "$saves"}},
		{{Key: "$project", Value: bson.D{
			{Key: "_id", Value: 0},
			{Key: "title", Value: "$saves.title"},
		}}},
	}
}

func savedPipeline(day *time.Time) mongo.Pipeline {
	var pipeline mongo.Pipeline
	if day != nil {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: dayFilter(*day)}})
	}
	return append(pipeline,
		bson.D{{Key: "$sort", Value: bson.D{{Key: "scrape_date", Value: 1}}}},
		bson.D{{Key: "$unwind", Value: "$saves"}},
		bson.D{{Key: "$project", Value: bson.D{
			{Key: "_id", Value: 0},
			{Key: "scrape_date", Value: 1},
			{Key: "saves", Value: 1},
		}}},
	)
}
